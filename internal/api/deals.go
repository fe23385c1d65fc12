package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

// dealWriter is implemented by directories that dealwatch owns. A CRM-backed
// directory is read-only.
type dealWriter interface {
	PutDeal(ctx context.Context, deal stall.Deal) error
}

func (s *Server) putDeal(w http.ResponseWriter, r *http.Request) {
	dw, ok := s.deps.Deals.(dealWriter)
	if !ok {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "deal directory is read-only"})
		return
	}
	var deal stall.Deal
	if err := decode(r, &deal); err != nil {
		s.writeError(w, r, err)
		return
	}
	deal.ID = chi.URLParam(r, "id")
	if err := dw.PutDeal(r.Context(), deal); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

func (s *Server) ingestDocument(w http.ResponseWriter, r *http.Request) {
	var doc stall.Document
	if err := decode(r, &doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	doc.DealID = chi.URLParam(r, "id")
	out, err := s.deps.Processor.IngestDocument(r.Context(), doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// dealStall returns the stored status, computing it when the deal has none yet.
func (s *Server) dealStall(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stall == nil {
		s.writeError(w, r, disabled("stall analysis"))
		return
	}
	id := chi.URLParam(r, "id")
	st, err := s.deps.Stall.LatestStatus(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		st, _, err = s.deps.Stall.Status(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) refreshDeal(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Processor.RefreshDeal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) dealAlerts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Alerts == nil {
		s.writeError(w, r, disabled("alerting"))
		return
	}
	list, err := s.deps.Alerts.ForDeal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []alerts.Alert{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) alert(w http.ResponseWriter, r *http.Request) {
	if s.deps.Alerts == nil {
		s.writeError(w, r, disabled("alerting"))
		return
	}
	a, err := s.deps.Alerts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.deps.Processor.AcknowledgeAlert(r.Context(), chi.URLParam(r, "id"), who)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// deliverAlert retries delivery on channels that have not taken the alert.
// Partial failure answers 502 with the alert as it now stands.
func (s *Server) deliverAlert(w http.ResponseWriter, r *http.Request) {
	if s.deps.Alerts == nil {
		s.writeError(w, r, disabled("alerting"))
		return
	}
	a, err := s.deps.Alerts.Deliver(r.Context(), chi.URLParam(r, "id"))
	if err != nil && a.ID == "" {
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"alert": a, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, a)
}
