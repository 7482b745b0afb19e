package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"camserver/internal/dto"
	"camserver/internal/service"
	"camserver/internal/snapshot"
)

// SnapshotsHandler lists the in-memory motion snapshots, newest first.
func SnapshotsHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history := manager.GetHistory()
		if history == nil {
			writeText(w, http.StatusNotFound, "Motion detection disabled")
			return
		}

		entries := history.All()
		infos := make([]dto.SnapshotInfo, 0, len(entries))
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			infos = append(infos, dto.SnapshotInfo{
				ID:               e.ID,
				Timestamp:        e.Timestamp,
				ChangePercentage: e.ChangePercentage,
				Size:             len(e.Frame),
			})
		}
		writeJSON(w, http.StatusOK, dto.SnapshotList{Snapshots: infos, Limit: history.Limit()})
	}
}

// LatestSnapshotHandler serves the newest snapshot JPEG.
func LatestSnapshotHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history := manager.GetHistory()
		if history == nil {
			writeText(w, http.StatusNotFound, "Motion detection disabled")
			return
		}
		entry, ok := history.Latest()
		if !ok {
			writeText(w, http.StatusNotFound, "No snapshots yet")
			return
		}
		writeSnapshot(w, entry)
	}
}

// SnapshotHandler serves the snapshot JPEG named by the id route variable.
func SnapshotHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history := manager.GetHistory()
		if history == nil {
			writeText(w, http.StatusNotFound, "Motion detection disabled")
			return
		}
		entry, ok := history.Get(mux.Vars(r)["id"])
		if !ok {
			writeText(w, http.StatusNotFound, "Snapshot not found")
			return
		}
		writeSnapshot(w, entry)
	}
}

func writeSnapshot(w http.ResponseWriter, entry snapshot.Entry) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(entry.Frame)))
	w.Header().Set("X-Snapshot-Id", entry.ID)
	w.Header().Set("X-Snapshot-Timestamp", entry.Timestamp.UTC().Format(time.RFC3339Nano))
	w.Header().Set("X-Change-Percentage", strconv.FormatFloat(entry.ChangePercentage, 'f', 2, 64))
	w.Write(entry.Frame)
}
