// Package httpapi exposes the sync and dashboard HTTP surface consumed by
// field devices and the web dashboard.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ranchcore/internal/blob"
	"ranchcore/internal/core"
	"ranchcore/pkg/domain"
)

// Server is the ranchcore HTTP API server.
type Server struct {
	svc            *core.Service
	reconciler     *core.Reconciler
	aggregator     *core.Aggregator
	blobs          blob.Store
	tokens         map[string]string
	logger         *zap.Logger
	metricsEnabled bool
}

// NewServer creates a new API server. tokens maps bearer tokens to the
// usernames they authenticate as.
func NewServer(svc *core.Service, reconciler *core.Reconciler, aggregator *core.Aggregator, blobs blob.Store, tokens map[string]string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		svc:        svc,
		reconciler: reconciler,
		aggregator: aggregator,
		blobs:      blobs,
		tokens:     tokens,
		logger:     logger,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/sync", s.handleSync)
		r.Get("/sync/entries", s.handleListSyncEntries)
		r.Get("/analytics/dashboard", s.handleDashboard)

		r.Route("/animals", func(r chi.Router) {
			r.Get("/", s.handleListAnimals)
			r.Post("/", s.handleCreateAnimal)
			r.Get("/{tag}", s.handleGetAnimal)
			r.Put("/{tag}", s.handleUpdateAnimal)
			r.Delete("/{tag}", s.handleDeleteAnimal)
			r.Post("/{tag}/photo", s.handleUploadPhoto)
			r.Get("/{tag}/photo/{filename}", s.handleGetPhoto)
		})

		r.Route("/breeding-events", func(r chi.Router) {
			r.Get("/", s.handleListBreedingEvents)
			r.Post("/", s.handleCreateBreedingEvent)
			r.Put("/{id}", s.handleUpdateBreedingEvent)
		})

		r.Get("/vaccinations", s.handleListVaccinations)
		r.Post("/vaccinations", s.handleCreateVaccination)
		r.Get("/treatments", s.handleListTreatments)
		r.Post("/treatments", s.handleCreateTreatment)
		r.Get("/mortality", s.handleListMortalities)
		r.Post("/mortality", s.handleCreateMortality)
		r.Get("/herd-counts", s.handleListHerdCounts)
		r.Post("/herd-counts", s.handleCreateHerdCount)
		r.Get("/movements", s.handleListMovements)
		r.Post("/movements", s.handleCreateMovement)
		r.Get("/rfid-scans", s.handleListRFIDScans)
		r.Post("/rfid-scans", s.handleCreateRFIDScan)
		r.Get("/ranches", s.handleListRanches)
		r.Post("/ranches", s.handleCreateRanch)
		r.Get("/system-metrics", s.handleListSystemMetrics)
	})

	return r
}

// handleSync accepts a device operation log and reconciles it. The acting
// user always comes from the authenticated token, never from the body.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var batch core.SyncBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sync batch: "+err.Error())
		return
	}
	batch.Actor = actorFrom(r.Context())

	summary, err := s.reconciler.Reconcile(r.Context(), batch)
	if err != nil {
		s.logger.Error("sync batch aborted", zap.String("device_id", batch.DeviceID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListSyncEntries(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.ListSyncEntries())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregator.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// writeJSON writes a JSON response. Encode failures mean the client went
// away mid-response; they are logged, not surfaced.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("encode response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps domain failures onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var (
		notFound    domain.NotFoundError
		validation  domain.ValidationError
		missingKey  domain.MissingKeyError
		badTable    domain.UnsupportedTableError
		derivation  domain.DerivationError
		ruleBlocked domain.RuleViolationError
	)
	switch {
	case errors.As(err, &notFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation), errors.As(err, &missingKey), errors.As(err, &badTable), errors.As(err, &derivation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &ruleBlocked):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// corsMiddleware adds CORS headers for the dashboard frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
