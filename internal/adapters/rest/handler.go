package rest

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/services"
)

// DefaultMaxUploadBytes bounds an image upload when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc       *services.Orchestrator // Dependency on the Core Service
	router    *http.ServeMux         // Standard library router
	logger    *zap.Logger
	maxUpload int64
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc *services.Orchestrator, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	h := &Handler{
		svc:       svc,
		router:    http.NewServeMux(),
		logger:    logger,
		maxUpload: maxUploadBytes,
	}

	// Register Routes
	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
// Every request passes through the logging middleware before reaching the router.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logRequests(h.router).ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	// Health Check
	h.router.HandleFunc("GET /health", h.HealthCheck)
	// Image pipelines
	h.router.HandleFunc("POST /analyze", h.Analyze)
	h.router.HandleFunc("POST /synthesize", h.Synthesize)
	// Synthesized audio
	h.router.HandleFunc("GET /audio/{name}", h.GetAudio)
	h.router.HandleFunc("GET /syntheses/{id}", h.GetSynthesis)
	// Reference table
	h.router.HandleFunc("GET /palette", h.GetPalette)
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
