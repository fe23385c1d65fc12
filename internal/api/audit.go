package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/audit"
)

func (s *Server) auditEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Audit.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) auditForCall(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Audit.ForCall(r.Context(), chi.URLParam(r, "id"))
	s.writeEntries(w, r, entries, err)
}

func (s *Server) auditForRecord(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Audit.ForRecord(r.Context(), chi.URLParam(r, "id"))
	s.writeEntries(w, r, entries, err)
}

func (s *Server) writeEntries(w http.ResponseWriter, r *http.Request, entries []audit.Entry, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// rollback reverses an entry and re-applies the restored value to the CRM.
// When only the CRM step fails the rollback entry is still returned with 502.
func (s *Server) rollback(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rb, err := s.deps.Processor.RollbackEntry(r.Context(), chi.URLParam(r, "id"), who)
	if err != nil && rb.ID == "" {
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"entry": rb, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, rb)
}

func (s *Server) exportAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Audit.Export(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="dealwatch-audit.json"`)
	if err := audit.EncodeJSON(w, entries); err != nil {
		s.logger.Error("audit export interrupted", "error", err)
	}
}

func (s *Server) importAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := audit.DecodeJSON(r.Body)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%v: %w", err, apperr.ErrValidation))
		return
	}
	n, err := s.deps.Audit.Import(r.Context(), entries)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"imported": n, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}
