// Package service runs the capture loop and ties the camera to motion
// detection, snapshot history, archiving and live viewers.
package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"camserver/internal/camera"
	"camserver/internal/logger"
	"camserver/internal/metrics"
	"camserver/internal/model"
	"camserver/internal/motion"
	"camserver/internal/repository"
	"camserver/internal/service/storage"
	"camserver/internal/service/websocket"
	"camserver/internal/snapshot"
)

const defaultRetryDelay = time.Second

// Options wire the manager. Detector and History are nil when motion
// detection is disabled; Archive, Events, Hub and Metrics are optional.
type Options struct {
	Source    camera.Source
	Frames    *camera.FrameStore
	Detector  *motion.Detector
	History   *snapshot.History
	Archive   *storage.ArchiveService
	Events    repository.EventRepository
	Hub       *websocket.HubService
	Metrics   *metrics.Metrics
	Framerate int

	// RetryDelay is the pause after a failed capture, one second by default.
	RetryDelay time.Duration
	Now        func() time.Time
}

type Manager struct {
	source     camera.Source
	frames     *camera.FrameStore
	detector   *motion.Detector
	history    *snapshot.History
	archive    *storage.ArchiveService
	events     repository.EventRepository
	hub        *websocket.HubService
	metrics    *metrics.Metrics
	logger     *logger.Logger
	interval   time.Duration
	retryDelay time.Duration
	now        func() time.Time

	// edgeMu serialises rising/falling edge handling.
	edgeMu       sync.Mutex
	motionActive bool
	eventID      int64
}

type frameMessage struct {
	Type  string `json:"type"`
	Image string `json:"image"`
}

type motionMessage struct {
	Type             string    `json:"type"`
	Active           bool      `json:"active"`
	ChangePercentage float64   `json:"change_percentage"`
	EventCount       int       `json:"event_count"`
	SnapshotID       string    `json:"snapshot_id,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewManager(opts Options, logger *logger.Logger) *Manager {
	framerate := opts.Framerate
	if framerate < 1 {
		framerate = 1
	}
	retry := opts.RetryDelay
	if retry <= 0 {
		retry = defaultRetryDelay
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	frames := opts.Frames
	if frames == nil {
		frames = camera.NewFrameStore()
	}

	return &Manager{
		source:     opts.Source,
		frames:     frames,
		detector:   opts.Detector,
		history:    opts.History,
		archive:    opts.Archive,
		events:     opts.Events,
		hub:        opts.Hub,
		metrics:    opts.Metrics,
		logger:     logger,
		interval:   time.Second / time.Duration(framerate),
		retryDelay: retry,
		now:        now,
	}
}

// Run captures frames at the configured framerate until ctx is done. Capture
// errors are logged and retried; they never stop the loop.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Capture loop started (%v per frame)", m.interval)
	defer m.logger.Info("Capture loop stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := m.source.Capture()
		if err != nil {
			m.logger.Warning("Error capturing frame: %v", err)
			m.metrics.CaptureError()
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.retryDelay):
			}
			continue
		}

		m.HandleFrame(frame)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// HandleFrame publishes a captured frame and feeds it to the detector.
func (m *Manager) HandleFrame(frame []byte) {
	at := m.now()
	m.metrics.FrameCaptured()
	m.frames.Set(frame, at)
	m.SendToViewers(frame)

	if m.detector == nil {
		return
	}

	active, change := m.detector.CheckMotion(frame)
	m.metrics.MotionObserved(active, change)

	m.edgeMu.Lock()
	defer m.edgeMu.Unlock()

	switch {
	case active && !m.motionActive:
		m.motionStarted(frame, change, at)
	case !active && m.motionActive:
		m.motionEnded(change, at)
	}
	m.motionActive = active
}

func (m *Manager) motionStarted(frame []byte, change float64, at time.Time) {
	status := m.detector.Status()
	m.metrics.MotionEvent()
	m.logger.Debug("Archiving rising edge of event #%d (%.2f%% changed)", status.MotionEventCount, change)

	var snapshotID string
	if m.history != nil {
		entry := m.history.Add(frame, at, change)
		snapshotID = entry.ID
		if m.archive != nil {
			m.archive.Add(entry)
		}
	}

	if m.events != nil {
		id, err := m.events.Insert(&model.MotionEvent{
			EventNumber:      status.MotionEventCount,
			StartedAt:        at,
			ChangePercentage: change,
			SnapshotID:       snapshotID,
		})
		if err != nil {
			m.logger.Error("Error recording motion event: %v", err)
		}
		m.eventID = id
	}

	m.sendMotion(motionMessage{
		Type:             "motion",
		Active:           true,
		ChangePercentage: change,
		EventCount:       status.MotionEventCount,
		SnapshotID:       snapshotID,
		Timestamp:        at,
	})
}

func (m *Manager) motionEnded(change float64, at time.Time) {
	status := m.detector.Status()
	m.logger.Debug("Closing motion event #%d", status.MotionEventCount)

	if m.events != nil && m.eventID != 0 {
		if err := m.events.MarkEnded(m.eventID, at); err != nil {
			m.logger.Error("Error closing motion event %d: %v", m.eventID, err)
		}
	}
	m.eventID = 0

	m.sendMotion(motionMessage{
		Type:             "motion",
		Active:           false,
		ChangePercentage: change,
		EventCount:       status.MotionEventCount,
		Timestamp:        at,
	})
}

// SendToViewers broadcasts a frame to websocket viewers.
func (m *Manager) SendToViewers(frame []byte) {
	if m.hub == nil {
		return
	}
	msg, err := json.Marshal(frameMessage{
		Type:  "frame",
		Image: base64.StdEncoding.EncodeToString(frame),
	})
	if err != nil {
		m.logger.Error("Error encoding frame message: %v", err)
		return
	}
	m.hub.Broadcast(msg)
}

func (m *Manager) sendMotion(msg motionMessage) {
	if m.hub == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("Error encoding motion message: %v", err)
		return
	}
	m.hub.Broadcast(data)
}

// MotionEnabled reports whether a detector is wired.
func (m *Manager) MotionEnabled() bool {
	return m.detector != nil
}

func (m *Manager) GetFrameStore() *camera.FrameStore {
	return m.frames
}

func (m *Manager) GetDetector() *motion.Detector {
	return m.detector
}

func (m *Manager) GetHistory() *snapshot.History {
	return m.history
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.hub
}

func (m *Manager) GetEventRepository() repository.EventRepository {
	return m.events
}
