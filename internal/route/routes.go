package route

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"camserver/internal/config"
	"camserver/internal/handler"
	"camserver/internal/logger"
	"camserver/internal/metrics"
	"camserver/internal/middleware"
	"camserver/internal/service"
)

var (
	allowedMethods = []string{http.MethodGet, http.MethodOptions}
	allowedHeaders = []string{"Content-Type"}
)

// preflightHandler answers CORS preflight requests for every path.
func preflightHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
}

// SetupRoutes registers the camera, motion, snapshot, log and static routes
// and wraps the router with authentication, CORS and access logging.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger, m *metrics.Metrics) http.Handler {
	// Path cleaning is left to the static handler so traversal attempts are
	// rejected rather than redirected.
	router := mux.NewRouter().SkipClean(true)

	handle := func(path, name string, h http.Handler, methods ...string) {
		router.Handle(path, m.WrapHandler(name, h)).Methods(methods...)
	}

	router.Methods(http.MethodOptions).HandlerFunc(preflightHandler)

	handle("/health", "health", handler.HealthHandler(manager, cfg), http.MethodGet, http.MethodHead)
	handle("/webcam.jpg", "webcam", handler.WebcamHandler(manager), http.MethodGet, http.MethodHead)

	// API endpoints
	handle("/api/view", "view", handler.ViewWebsocketHandler(manager, logger), http.MethodGet)
	handle("/api/motion", "motion", handler.MotionStatusHandler(manager), http.MethodGet)
	handle("/api/motion/events", "motion_events", handler.MotionEventsHandler(manager, logger), http.MethodGet)
	handle("/api/snapshots", "snapshots", handler.SnapshotsHandler(manager), http.MethodGet)
	handle("/api/snapshots/latest", "snapshot_latest", handler.LatestSnapshotHandler(manager), http.MethodGet)
	handle("/api/snapshots/{id}", "snapshot", handler.SnapshotHandler(manager), http.MethodGet)

	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	// Log endpoints
	if logger.Dir() != "" {
		handle("/logs/{level:info|warning|error}", "logs", handler.ShowLogsHandler(logger), http.MethodGet)
		handle("/logs/{level:info|warning|error}/clear", "logs_clear", handler.ClearLogsHandler(logger), http.MethodPost)
	}

	router.PathPrefix("/").Handler(m.WrapHandler("static", handler.StaticHandler(cfg.StaticDir, logger))).
		Methods(http.MethodGet, http.MethodHead)

	var h http.Handler = router
	if cfg.AuthEnabled {
		h = middleware.BasicAuth(cfg.AuthUser, cfg.AuthPass, "/health")(h)
	}
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods(allowedMethods),
		handlers.AllowedHeaders(allowedHeaders),
		handlers.IgnoreOptions(),
	)(h)

	return handlers.LoggingHandler(logger.Writer(), h)
}
