package handler

import (
	"net/http"

	"camserver/internal/config"
	"camserver/internal/dto"
	"camserver/internal/service"
)

// HealthHandler reports camera readiness and server settings. It is served
// without authentication for monitoring.
func HealthHandler(manager *service.Manager, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.HealthResponse{
			Status: "ok",
			Camera: dto.CameraHealth{
				Ready:      manager.GetFrameStore().Ready(),
				Resolution: cfg.Resolution(),
				Framerate:  cfg.Framerate,
			},
			Server: dto.ServerHealth{Host: cfg.Host, Port: cfg.Port},
			Motion: dto.MotionHealth{Enabled: manager.MotionEnabled()},
		})
	}
}
