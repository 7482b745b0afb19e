package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camserver/internal/camera"
	"camserver/internal/logger"
	"camserver/internal/metrics"
	"camserver/internal/motion"
	"camserver/internal/repository/sqlite"
	"camserver/internal/service/storage"
	"camserver/internal/snapshot"
)

// byteComparator reports 0% for identical payloads and 100% otherwise.
type byteComparator struct{}

func (byteComparator) Compare(a, b []byte, _ float64) float64 {
	if len(a) == 0 || len(b) == 0 || bytes.Equal(a, b) {
		return 0
	}
	return 100
}

type fakeSource struct {
	mu     sync.Mutex
	frames [][]byte
	errs   int
	calls  int
}

func (s *fakeSource) Capture() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.errs > 0 {
		s.errs--
		return nil, errors.New("device busy")
	}
	if len(s.frames) == 0 {
		return []byte("still"), nil
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *fakeSource) Close() error { return nil }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	manager *Manager
	history *snapshot.History
	archive *storage.ArchiveService
	events  *sqlite.EventRepository
	clock   *testClock
}

func newFixture(t *testing.T, cooldown time.Duration) *fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	detector, err := motion.NewDetector(motion.Options{Threshold: 5, Cooldown: cooldown, Now: clock.Now}, byteComparator{}, logger.Discard())
	require.NoError(t, err)

	history, err := snapshot.NewHistory(3)
	require.NoError(t, err)

	db, err := sqlite.New(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	events := sqlite.NewEventRepository(db)

	archive := storage.NewArchiveService(t.TempDir(), 10, nil, logger.Discard(), nil)

	m := NewManager(Options{
		Source:    &fakeSource{},
		Detector:  detector,
		History:   history,
		Archive:   archive,
		Events:    events,
		Metrics:   metrics.New(),
		Framerate: 30,
		Now:       clock.Now,
	}, logger.Discard())

	return &fixture{manager: m, history: history, archive: archive, events: events, clock: clock}
}

func TestManager_WithoutDetectorOnlyPublishesFrames(t *testing.T) {
	m := NewManager(Options{Source: &fakeSource{}, Framerate: 10}, logger.Discard())

	m.HandleFrame([]byte("A"))
	m.HandleFrame([]byte("B"))

	frame, _, ok := m.GetFrameStore().Latest()
	require.True(t, ok)
	assert.Equal(t, []byte("B"), frame)
	assert.False(t, m.MotionEnabled())
	assert.Nil(t, m.GetHistory())
}

func TestManager_RisingEdgeArchivesOnce(t *testing.T) {
	f := newFixture(t, time.Second)

	f.manager.HandleFrame([]byte("A"))
	assert.Equal(t, 0, f.history.Len())

	f.manager.HandleFrame([]byte("B"))
	require.Equal(t, 1, f.history.Len())
	assert.Equal(t, 1, f.archive.Pending())

	// Ongoing motion does not add snapshots.
	f.manager.HandleFrame([]byte("C"))
	f.manager.HandleFrame([]byte("D"))
	assert.Equal(t, 1, f.history.Len())

	latest, ok := f.history.Latest()
	require.True(t, ok)
	assert.Equal(t, []byte("B"), latest.Frame)
	assert.Equal(t, 100.0, latest.ChangePercentage)

	events, err := f.events.List(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].EventNumber)
	assert.Equal(t, latest.ID, events[0].SnapshotID)
	assert.Nil(t, events[0].EndedAt)
}

func TestManager_FallingEdgeClosesEvent(t *testing.T) {
	f := newFixture(t, time.Second)

	f.manager.HandleFrame([]byte("A"))
	f.manager.HandleFrame([]byte("B"))
	f.clock.Advance(500 * time.Millisecond)
	f.manager.HandleFrame([]byte("A"))

	events, err := f.events.List(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].EndedAt)
	assert.True(t, f.clock.Now().Equal(*events[0].EndedAt))

	// A second event after the cooldown gets its own row and snapshot.
	f.clock.Advance(2 * time.Second)
	f.manager.HandleFrame([]byte("A"))
	f.manager.HandleFrame([]byte("B"))

	events, err = f.events.List(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 2, events[0].EventNumber)
	assert.Equal(t, 2, f.history.Len())
}

func TestManager_RunRetriesCaptureErrors(t *testing.T) {
	source := &fakeSource{errs: 2, frames: [][]byte{[]byte("first")}}
	m := NewManager(Options{
		Source:     source,
		Framerate:  100,
		RetryDelay: 5 * time.Millisecond,
	}, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return m.GetFrameStore().Ready()
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("capture loop did not stop")
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.GreaterOrEqual(t, source.calls, 3)
}

func TestManager_ReadyAfterFirstFrame(t *testing.T) {
	frames := camera.NewFrameStore()
	m := NewManager(Options{Source: &fakeSource{}, Frames: frames}, logger.Discard())
	assert.False(t, frames.Ready())

	m.HandleFrame([]byte("A"))
	assert.True(t, frames.Ready())
}

func TestManager_RisingEdgeLogsOnceAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo)

	detector, err := motion.NewDetector(motion.Options{Threshold: 5, Cooldown: time.Second}, byteComparator{}, log)
	require.NoError(t, err)
	history, err := snapshot.NewHistory(2)
	require.NoError(t, err)
	m := NewManager(Options{Source: &fakeSource{}, Detector: detector, History: history}, log)

	m.HandleFrame([]byte("A"))
	m.HandleFrame([]byte("B"))

	assert.Equal(t, 1, strings.Count(buf.String(), "Motion detected"))
}
