package route

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camserver/internal/config"
	"camserver/internal/logger"
	"camserver/internal/metrics"
	"camserver/internal/motion"
	"camserver/internal/service"
	"camserver/internal/snapshot"
)

type byteComparator struct{}

func (byteComparator) Compare(a, b []byte, _ float64) float64 {
	if len(a) == 0 || len(b) == 0 || bytes.Equal(a, b) {
		return 0
	}
	return 100
}

func testConfig(t *testing.T, auth bool) *config.Config {
	t.Helper()
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html></html>"), 0644))

	return &config.Config{
		Host:            "0.0.0.0",
		Port:            8000,
		Width:           640,
		Height:          480,
		Framerate:       30,
		AuthEnabled:     auth,
		AuthUser:        "admin",
		AuthPass:        "secret",
		StaticDir:       static,
		MotionEnabled:   true,
		MotionThreshold: 5,
		MotionCooldown:  time.Second,
		SnapshotLimit:   3,
	}
}

func newManager(t *testing.T, motionEnabled bool) *service.Manager {
	t.Helper()
	opts := service.Options{Framerate: 30}
	if motionEnabled {
		d, err := motion.NewDetector(motion.Options{Threshold: 5, Cooldown: time.Second}, byteComparator{}, logger.Discard())
		require.NoError(t, err)
		h, err := snapshot.NewHistory(3)
		require.NoError(t, err)
		opts.Detector = d
		opts.History = h
	}
	return service.NewManager(opts, logger.Discard())
}

func do(h http.Handler, method, path string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", nil)
	req.URL.Path = path
	req.Header.Set("Origin", "http://example.com")
	if auth {
		req.SetBasicAuth("admin", "secret")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_HealthWithoutAuth(t *testing.T) {
	h := SetupRoutes(newManager(t, true), testConfig(t, true), logger.Discard(), metrics.New())

	rec := do(h, http.MethodGet, "/health", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Status string `json:"status"`
		Camera struct {
			Ready      bool   `json:"ready"`
			Resolution string `json:"resolution"`
			Framerate  int    `json:"framerate"`
		} `json:"camera"`
		Server struct {
			Host string `json:"host"`
			Port int    `json:"port"`
		} `json:"server"`
		Motion struct {
			Enabled bool `json:"enabled"`
		} `json:"motion"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.Camera.Ready)
	assert.Equal(t, "640x480", body.Camera.Resolution)
	assert.Equal(t, 30, body.Camera.Framerate)
	assert.Equal(t, "0.0.0.0", body.Server.Host)
	assert.Equal(t, 8000, body.Server.Port)
	assert.True(t, body.Motion.Enabled)
}

func TestRoutes_WebcamRequiresAuth(t *testing.T) {
	manager := newManager(t, false)
	h := SetupRoutes(manager, testConfig(t, true), logger.Discard(), metrics.New())

	rec := do(h, http.MethodGet, "/webcam.jpg", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="Webcam Access"`, rec.Header().Get("WWW-Authenticate"))

	rec = do(h, http.MethodGet, "/webcam.jpg", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Camera initializing, please wait", rec.Body.String())

	manager.HandleFrame([]byte("jpeg"))
	rec = do(h, http.MethodGet, "/webcam.jpg", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutes_NoAuthWhenDisabled(t *testing.T) {
	h := SetupRoutes(newManager(t, false), testConfig(t, false), logger.Discard(), metrics.New())

	rec := do(h, http.MethodGet, "/", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html></html>", rec.Body.String())
}

func TestRoutes_PreflightBypassesAuth(t *testing.T) {
	h := SetupRoutes(newManager(t, false), testConfig(t, true), logger.Discard(), metrics.New())

	rec := do(h, http.MethodOptions, "/webcam.jpg", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestRoutes_TraversalIsForbidden(t *testing.T) {
	h := SetupRoutes(newManager(t, false), testConfig(t, false), logger.Discard(), metrics.New())

	rec := do(h, http.MethodGet, "/../../../etc/passwd", false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(h, http.MethodGet, "/missing.css", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_MotionDisabled(t *testing.T) {
	h := SetupRoutes(newManager(t, false), testConfig(t, false), logger.Discard(), metrics.New())

	for _, path := range []string{"/api/motion", "/api/motion/events", "/api/snapshots", "/api/snapshots/latest", "/api/snapshots/abc"} {
		rec := do(h, http.MethodGet, path, false)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestRoutes_MotionStatusAndSnapshots(t *testing.T) {
	manager := newManager(t, true)
	h := SetupRoutes(manager, testConfig(t, false), logger.Discard(), metrics.New())

	rec := do(h, http.MethodGet, "/api/motion", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "idle", status["state"])
	assert.Equal(t, false, status["motion_active"])
	assert.Nil(t, status["last_motion_time"])
	assert.Equal(t, 5.0, status["threshold"])
	assert.Equal(t, 1.0, status["cooldown_seconds"])

	rec = do(h, http.MethodGet, "/api/snapshots/latest", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	manager.HandleFrame([]byte("rest"))
	manager.HandleFrame([]byte("moving"))

	rec = do(h, http.MethodGet, "/api/motion", false)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "motion_detected", status["state"])
	assert.Equal(t, true, status["motion_active"])
	assert.Equal(t, 1.0, status["event_count"])
	assert.NotNil(t, status["last_motion_time"])

	rec = do(h, http.MethodGet, "/api/snapshots/latest", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "moving", rec.Body.String())
	id := rec.Header().Get("X-Snapshot-Id")
	require.NotEmpty(t, id)

	rec = do(h, http.MethodGet, "/api/snapshots/"+id, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = do(h, http.MethodGet, "/api/snapshots", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Snapshots []struct {
			ID string `json:"id"`
		} `json:"snapshots"`
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, id, list.Snapshots[0].ID)
	assert.Equal(t, 3, list.Limit)

	// Event log needs a database.
	rec = do(h, http.MethodGet, "/api/motion/events", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_Metrics(t *testing.T) {
	m := metrics.New()
	manager := service.NewManager(service.Options{Framerate: 30, Metrics: m}, logger.Discard())
	h := SetupRoutes(manager, testConfig(t, false), logger.Discard(), m)

	manager.HandleFrame([]byte("jpeg"))
	do(h, http.MethodGet, "/webcam.jpg", false)

	rec := do(h, http.MethodGet, "/metrics", false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "camserver_frames_captured_total 1"))
	assert.True(t, strings.Contains(body, `route="webcam"`))
}

func TestRoutes_LogsOnlyWithLogDirectory(t *testing.T) {
	h := SetupRoutes(newManager(t, false), testConfig(t, false), logger.Discard(), metrics.New())
	rec := do(h, http.MethodGet, "/logs/info", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	dir := t.TempDir()
	fileLogger, err := logger.NewLogger(dir, logger.LevelInfo)
	require.NoError(t, err)
	defer fileLogger.Close()
	fileLogger.Info("hello from the log")

	h = SetupRoutes(newManager(t, false), testConfig(t, false), fileLogger, metrics.New())
	rec = do(h, http.MethodGet, "/logs/info", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello from the log")

	rec = do(h, http.MethodPost, "/logs/info/clear", false)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	data, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hello from the log")
}
