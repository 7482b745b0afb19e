package handler

import (
	"net/http"
	"strconv"

	"camserver/internal/service"
)

// WebcamHandler serves the most recent frame as image/jpeg.
func WebcamHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, _, ok := manager.GetFrameStore().Latest()
		if !ok {
			writeText(w, http.StatusServiceUnavailable, "Camera initializing, please wait")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(frame)
	}
}
