package motion

import (
	"bytes"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// solidFrame encodes a width x height JPEG filled with a single gray value.
func solidFrame(t *testing.T, width, height int, gray uint8) []byte {
	t.Helper()
	return encodeJPEG(t, imaging.New(width, height, color.Gray{Y: gray}))
}

// boxFrame encodes a gray background with a centered square of boxGray.
func boxFrame(t *testing.T, size int, bgGray, boxGray uint8, boxSize int) []byte {
	t.Helper()
	bg := imaging.New(size, size, color.Gray{Y: bgGray})
	box := imaging.New(boxSize, boxSize, color.Gray{Y: boxGray})
	start := (size - boxSize) / 2
	return encodeJPEG(t, imaging.Paste(bg, box, image.Pt(start, start)))
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)))
	return buf.Bytes()
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// byteComparator treats frames as opaque tokens: equal bytes are 0% changed,
// different bytes are 100% changed. It counts calls.
type byteComparator struct {
	mu    sync.Mutex
	calls int
}

func (c *byteComparator) Compare(a, b []byte, threshold float64) float64 {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if len(a) == 0 || len(b) == 0 || bytes.Equal(a, b) {
		return 0
	}
	return 100
}

func (c *byteComparator) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
