package camera

import (
	"sync"
	"time"
)

// FrameStore holds the most recently captured frame for HTTP readers.
type FrameStore struct {
	mu         sync.RWMutex
	frame      []byte
	capturedAt time.Time
}

// NewFrameStore creates an empty store.
func NewFrameStore() *FrameStore {
	return &FrameStore{}
}

// Set replaces the current frame. Frames are never mutated after Set.
func (s *FrameStore) Set(frame []byte, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.capturedAt = at
}

// Latest returns the current frame, false until the first capture.
func (s *FrameStore) Latest() ([]byte, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return nil, time.Time{}, false
	}
	return s.frame, s.capturedAt, true
}

// Ready reports whether a frame has been captured.
func (s *FrameStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame != nil
}
