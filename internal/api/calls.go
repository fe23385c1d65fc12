package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/dealwatch/internal/processor"
)

// callWebhook runs one call through the pipeline. A classified call answers
// 200 even when applying the change failed; the body's success field and
// error say so.
func (s *Server) callWebhook(w http.ResponseWriter, r *http.Request) {
	var evt processor.CallEvent
	if err := decode(r, &evt); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := evt.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	res := s.deps.Processor.ProcessCall(r.Context(), evt)
	if res.Payload == nil && !res.Success {
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// classify previews how a call would be routed without acting on it.
func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	var evt processor.CallEvent
	if err := decode(r, &evt); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.deps.Processor.Classify(evt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) confirmations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Processor.Pending())
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.deps.Processor.Confirm(r.Context(), chi.URLParam(r, "id"), who)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.deps.Processor.Reject(r.Context(), chi.URLParam(r, "id"), who)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) cleanup(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Processor.Sweep(r.Context(), s.deps.Retention)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
