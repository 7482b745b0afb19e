package handler

import (
	"net/http"
	"strconv"

	"camserver/internal/dto"
	"camserver/internal/logger"
	"camserver/internal/model"
	"camserver/internal/service"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// MotionStatusHandler returns the detector status, or 404 when motion
// detection is disabled.
func MotionStatusHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detector := manager.GetDetector()
		if detector == nil {
			writeText(w, http.StatusNotFound, "Motion detection disabled")
			return
		}

		status := detector.Status()
		resp := dto.MotionStatus{
			State:                status.State.String(),
			MotionActive:         detector.IsMotionActive(),
			EventCount:           status.MotionEventCount,
			LastChangePercentage: status.LastChangePercentage,
			Threshold:            status.Threshold,
			CooldownSeconds:      status.Cooldown.Seconds(),
		}
		if !status.LastMotionTime.IsZero() {
			t := status.LastMotionTime
			resp.LastMotionTime = &t
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// MotionEventsHandler lists recorded motion events, newest first.
func MotionEventsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repo := manager.GetEventRepository()
		if repo == nil || !manager.MotionEnabled() {
			writeText(w, http.StatusNotFound, "Motion event log disabled")
			return
		}

		limit := atoiDefault(r.URL.Query().Get("limit"), defaultEventLimit)
		if limit > maxEventLimit {
			limit = maxEventLimit
		}

		events, err := repo.List(limit)
		if err != nil {
			logger.Error("Error querying motion events: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		total, err := repo.Count()
		if err != nil {
			logger.Error("Error counting motion events: %v", err)
			total = len(events)
		}
		if events == nil {
			events = []model.MotionEvent{}
		}

		writeJSON(w, http.StatusOK, dto.MotionEvents{Events: events, Total: total})
	}
}

// atoiDefault parses a positive int or returns def.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
