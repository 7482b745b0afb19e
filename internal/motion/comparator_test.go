package motion

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"

	"camserver/internal/logger"
)

func newTestComparator() *FrameComparator {
	return NewFrameComparator(logger.Discard())
}

func TestCompare_IdenticalFrames(t *testing.T) {
	c := newTestComparator()
	frame := solidFrame(t, 100, 100, 128)

	for _, threshold := range []float64{0, 1, 5, 50} {
		assert.Equal(t, 0.0, c.Compare(frame, frame, threshold), "threshold %v", threshold)
	}
}

func TestCompare_MissingFrames(t *testing.T) {
	c := newTestComparator()
	frame := solidFrame(t, 100, 100, 128)

	assert.Equal(t, 0.0, c.Compare(nil, frame, 5))
	assert.Equal(t, 0.0, c.Compare(frame, nil, 5))
	assert.Equal(t, 0.0, c.Compare(nil, nil, 5))
	assert.Equal(t, 0.0, c.Compare([]byte{}, frame, 5))
}

func TestCompare_CompletelyDifferentFrames(t *testing.T) {
	c := newTestComparator()
	black := solidFrame(t, 100, 100, 0)
	white := solidFrame(t, 100, 100, 255)

	assert.Greater(t, c.Compare(black, white, 5.0), 90.0)
}

func TestCompare_SmallBoxChange(t *testing.T) {
	c := newTestComparator()
	plain := solidFrame(t, 100, 100, 128)
	withBox := boxFrame(t, 100, 128, 255, 20)

	// 20x20 box in a 100x100 frame is 4% of the pixels, JPEG ringing adds a little.
	percentage := c.Compare(plain, withBox, 5.0)
	assert.Greater(t, percentage, 2.0)
	assert.Less(t, percentage, 10.0)
}

func TestCompare_ThresholdSensitivity(t *testing.T) {
	c := newTestComparator()
	a := solidFrame(t, 100, 100, 128)
	b := solidFrame(t, 100, 100, 130)

	low := c.Compare(a, b, 1.0)
	high := c.Compare(a, b, 10.0)

	assert.Greater(t, low, high)
	assert.Equal(t, 0.0, high)
}

func TestCompare_InvalidImageData(t *testing.T) {
	c := newTestComparator()
	frame := solidFrame(t, 100, 100, 128)

	assert.Equal(t, 0.0, c.Compare(frame, []byte("not a jpeg image"), 5))
	assert.Equal(t, 0.0, c.Compare([]byte("not a jpeg image"), frame, 5))
}

func TestCompare_DifferentSizesUseOverlap(t *testing.T) {
	c := newTestComparator()

	small := solidFrame(t, 100, 100, 128)
	large := solidFrame(t, 200, 200, 128)
	percentage := c.Compare(small, large, 5)
	assert.GreaterOrEqual(t, percentage, 0.0)
	assert.LessOrEqual(t, percentage, 100.0)
	assert.Equal(t, 0.0, percentage, "same content on the overlap")

	brighter := solidFrame(t, 200, 200, 255)
	assert.Greater(t, c.Compare(small, brighter, 5), 90.0)
}

func TestCompare_DifferentSizesOnlyOverlapCounts(t *testing.T) {
	c := newTestComparator()

	// The larger frame differs only outside the top-left 96x96 overlap.
	small := solidFrame(t, 96, 96, 128)
	bg := imaging.New(192, 192, color.Gray{Y: 128})
	box := imaging.New(48, 48, color.Gray{Y: 255})
	large := encodeJPEG(t, imaging.Paste(bg, box, image.Pt(128, 128)))

	assert.Equal(t, 0.0, c.Compare(small, large, 5))
	assert.Equal(t, 0.0, c.Compare(large, small, 5))
}

func TestCompare_MonotonicInThreshold(t *testing.T) {
	c := newTestComparator()
	plain := solidFrame(t, 100, 100, 100)
	withBox := boxFrame(t, 100, 100, 200, 40)

	previous := 100.0
	for _, threshold := range []float64{0, 5, 20, 60, 120} {
		p := c.Compare(plain, withBox, threshold)
		assert.LessOrEqual(t, p, previous, "threshold %v", threshold)
		previous = p
	}
}
