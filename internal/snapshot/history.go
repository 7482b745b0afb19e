// Package snapshot keeps a bounded in-memory history of frames captured when
// motion starts.
package snapshot

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidLimit = errors.New("snapshot history limit must be at least 1")

// Entry is a frame archived at the start of a motion event.
type Entry struct {
	ID               string
	Timestamp        time.Time
	Frame            []byte
	ChangePercentage float64
}

// History holds at most limit entries, evicting the oldest first. It has its
// own lock so archiving never contends with motion state queries.
type History struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int
}

// NewHistory creates an empty history bounded to limit entries.
func NewHistory(limit int) (*History, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	return &History{
		entries: make([]Entry, 0, limit),
		limit:   limit,
	}, nil
}

// Add appends a frame and returns the stored entry.
func (h *History) Add(frame []byte, at time.Time, changePercentage float64) Entry {
	entry := Entry{
		ID:               uuid.NewString(),
		Timestamp:        at,
		Frame:            frame,
		ChangePercentage: changePercentage,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if overflow := len(h.entries) - h.limit; overflow > 0 {
		// Drop references to evicted frames before shifting.
		for i := 0; i < overflow; i++ {
			h.entries[i] = Entry{}
		}
		h.entries = append(h.entries[:0], h.entries[overflow:]...)
	}
	return entry
}

// Latest returns the most recent entry.
func (h *History) Latest() (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 {
		return Entry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// All returns a copy of the entries, oldest first.
func (h *History) All() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Get returns the entry with the given id.
func (h *History) Get(id string) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, e := range h.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Limit returns the configured bound.
func (h *History) Limit() int {
	return h.limit
}
