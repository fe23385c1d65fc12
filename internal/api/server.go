package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/audit"
	"github.com/MikeSquared-Agency/dealwatch/internal/metrics"
	"github.com/MikeSquared-Agency/dealwatch/internal/processor"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

// Deps are the components the API exposes. Stall, Alerts, Deals and Metrics
// are optional; their routes answer 404 when unset.
type Deps struct {
	Processor *processor.Processor
	Audit     *audit.Log
	Stall     *stall.Analyzer
	Alerts    *alerts.Generator
	Deals     stall.DealDirectory
	Metrics   *metrics.Metrics
	Retention time.Duration
	Logger    *slog.Logger
}

type Server struct {
	router     *chi.Mux
	port       int
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

func NewServer(port int, apiToken string, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		deps:   d,
		logger: d.Logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/dealwatch/status", s.status)
	if d.Metrics != nil {
		router.Handle("/metrics", d.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))

		r.Post("/webhooks/call", s.callWebhook)
		r.Post("/classify", s.classify)

		r.Route("/audit", func(r chi.Router) {
			r.Get("/export", s.exportAudit)
			r.Post("/import", s.importAudit)
			r.Get("/calls/{id}", s.auditForCall)
			r.Get("/records/{id}", s.auditForRecord)
			r.Get("/{id}", s.auditEntry)
			r.Post("/{id}/rollback", s.rollback)
		})

		r.Route("/deals/{id}", func(r chi.Router) {
			r.Put("/", s.putDeal)
			r.Post("/documents", s.ingestDocument)
			r.Get("/stall", s.dealStall)
			r.Post("/refresh", s.refreshDeal)
			r.Get("/alerts", s.dealAlerts)
		})

		r.Route("/alerts/{id}", func(r chi.Router) {
			r.Get("/", s.alert)
			r.Post("/ack", s.acknowledgeAlert)
			r.Post("/deliver", s.deliverAlert)
		})

		r.Get("/confirmations", s.confirmations)
		r.Post("/confirmations/{id}/approve", s.approve)
		r.Post("/confirmations/{id}/reject", s.reject)

		r.Post("/maintenance/cleanup", s.cleanup)
	})

	return s
}

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// BearerAuthMiddleware requires "Authorization: Bearer <token>". An empty
// token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"agent":  "dealwatch",
		"status": "active",
	}
	if s.deps.Processor != nil {
		body["pending_confirmations"] = len(s.deps.Processor.Pending())
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrNotRollbackable):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrDownstreamUnavailable), errors.Is(err, apperr.ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %v: %w", err, apperr.ErrValidation)
	}
	return nil
}

type actorRequest struct {
	Actor string `json:"actor"`
}

// actor reads the acting user from the request body.
func actor(r *http.Request) (string, error) {
	var req actorRequest
	if err := decode(r, &req); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Actor) == "" {
		return "", fmt.Errorf("actor is required: %w", apperr.ErrValidation)
	}
	return req.Actor, nil
}

func disabled(what string) error {
	return fmt.Errorf("%s is disabled: %w", what, apperr.ErrNotFound)
}
