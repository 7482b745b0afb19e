package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"camserver/internal/camera"
	"camserver/internal/config"
	"camserver/internal/logger"
	"camserver/internal/metrics"
	"camserver/internal/motion"
	"camserver/internal/repository"
	"camserver/internal/repository/sqlite"
	"camserver/internal/route"
	"camserver/internal/service"
	"camserver/internal/service/storage"
	"camserver/internal/service/websocket"
	"camserver/internal/snapshot"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	source  camera.Source
	db      *sqlite.DB
	archive *storage.ArchiveService
	hub     *websocket.HubService
	manager *service.Manager
	handler http.Handler
}

// New wires every component from cfg. When source is nil the configured
// camera device is opened.
func New(cfg *config.Config, source camera.Source) (*App, error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.LogDirectory, level)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log, metrics: metrics.New()}

	if err := a.init(source); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(source camera.Source) error {
	cfg := a.config

	if source == nil {
		dev, err := camera.OpenDevice(cfg.CameraDevice, cfg.Width, cfg.Height, cfg.Framerate)
		if err != nil {
			return err
		}
		source = dev
		a.logger.Info("Camera initialized: %s @ %dfps", cfg.Resolution(), cfg.Framerate)
	}
	a.source = source

	var (
		snapshotRepo repository.SnapshotRepository
		eventRepo    repository.EventRepository
	)
	if cfg.DatabasePath != "" {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		a.db = db
		snapshotRepo = sqlite.NewSnapshotRepository(db)
		eventRepo = sqlite.NewEventRepository(db)
		a.logger.Info("Database opened: %s", cfg.DatabasePath)
	}

	var (
		detector *motion.Detector
		history  *snapshot.History
	)
	if cfg.MotionEnabled {
		var err error
		detector, err = motion.NewDetector(motion.Options{
			Threshold: cfg.MotionThreshold,
			Cooldown:  cfg.MotionCooldown,
		}, motion.NewFrameComparator(a.logger), a.logger)
		if err != nil {
			return err
		}
		history, err = snapshot.NewHistory(cfg.SnapshotLimit)
		if err != nil {
			return err
		}
		a.logger.Info("Motion detection enabled: threshold %.1f%%, cooldown %v", cfg.MotionThreshold, cfg.MotionCooldown)

		if cfg.SnapshotDirectory != "" {
			a.archive = storage.NewArchiveService(cfg.SnapshotDirectory, cfg.SnapshotLimit, snapshotRepo, a.logger, a.metrics)
		}
	} else {
		a.logger.Info("Motion detection disabled")
		eventRepo = nil
	}

	a.hub = websocket.NewHubService(a.logger, a.metrics)
	a.manager = service.NewManager(service.Options{
		Source:    source,
		Detector:  detector,
		History:   history,
		Archive:   a.archive,
		Events:    eventRepo,
		Hub:       a.hub,
		Metrics:   a.metrics,
		Framerate: cfg.Framerate,
	}, a.logger)
	a.handler = route.SetupRoutes(a.manager, cfg, a.logger, a.metrics)
	return nil
}

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Manager() *service.Manager {
	return a.manager
}

// Run starts the background services and the HTTP server and blocks until
// ctx is done or the server fails. Shutdown is graceful: in-flight requests
// finish and pending snapshots are flushed.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	start := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	start(a.hub.Run)
	start(a.manager.Run)
	if a.archive != nil {
		start(func(ctx context.Context) { a.archive.Run(ctx, a.config.FlushInterval) })
	}

	server := &http.Server{
		Addr:              a.config.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if a.config.TLSEnabled() {
			serveErr <- server.ListenAndServeTLS(a.config.TLSCertFile, a.config.TLSKeyFile)
			return
		}
		serveErr <- server.ListenAndServe()
	}()

	scheme := "http"
	if a.config.TLSEnabled() {
		scheme = "https"
	}
	a.logger.Info("Webcam server listening on %s://%s", scheme, a.config.Addr())
	if a.config.AuthEnabled {
		a.logger.Info("Authentication enabled for user %s", a.config.AuthUser)
	} else {
		a.logger.Warning("Authentication disabled")
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error shutting down server: %v", err)
	}

	cancel()
	wg.Wait()
	return runErr
}

// Close releases the camera, the database and log files.
func (a *App) Close() error {
	var errs []error
	if a.source != nil {
		errs = append(errs, a.source.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}
