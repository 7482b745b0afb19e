package motion

import (
	"image"

	"gocv.io/x/gocv"

	"camserver/internal/logger"
)

// Comparator reports the percentage of pixels that differ between two
// encoded frames by more than threshold intensity levels.
type Comparator interface {
	Compare(frameA, frameB []byte, threshold float64) float64
}

// FrameComparator is the gocv backed Comparator. It never fails: frames that
// are missing or cannot be decoded compare as 0% changed.
type FrameComparator struct {
	logger *logger.Logger
}

// NewFrameComparator creates a comparator logging decode problems to logger.
func NewFrameComparator(logger *logger.Logger) *FrameComparator {
	return &FrameComparator{logger: logger}
}

// Compare decodes both frames to grayscale and returns the share of pixels,
// in [0, 100], whose absolute difference is strictly greater than threshold.
//
// Frames of different sizes are compared on their overlapping rectangle
// anchored at the top-left corner; the overlap area is the denominator.
func (c *FrameComparator) Compare(frameA, frameB []byte, threshold float64) float64 {
	if len(frameA) == 0 || len(frameB) == 0 {
		return 0
	}

	grayA, ok := c.decodeGray(frameA)
	if !ok {
		return 0
	}
	defer grayA.Close()

	grayB, ok := c.decodeGray(frameB)
	if !ok {
		return 0
	}
	defer grayB.Close()

	width := min(grayA.Cols(), grayB.Cols())
	height := min(grayA.Rows(), grayB.Rows())
	if width <= 0 || height <= 0 {
		return 0
	}
	if grayA.Cols() != grayB.Cols() || grayA.Rows() != grayB.Rows() {
		c.logger.Debug("Comparing frames of different sizes %dx%d and %dx%d on %dx%d overlap",
			grayA.Cols(), grayA.Rows(), grayB.Cols(), grayB.Rows(), width, height)
	}

	overlap := image.Rect(0, 0, width, height)
	regionA := grayA.Region(overlap)
	defer regionA.Close()
	regionB := grayB.Region(overlap)
	defer regionB.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	if err := gocv.AbsDiff(regionA, regionB, &diff); err != nil {
		c.logger.Warning("Failed to compute absolute difference: %v", err)
		return 0
	}

	// ThresholdBinary keeps pixels with diff > threshold, i.e. a strict comparison.
	changed := gocv.NewMat()
	defer changed.Close()
	gocv.Threshold(diff, &changed, float32(threshold), 255, gocv.ThresholdBinary)

	changedPixels := gocv.CountNonZero(changed)
	percentage := float64(changedPixels) / float64(width*height) * 100

	return clampPercentage(percentage)
}

func (c *FrameComparator) decodeGray(frame []byte) (gocv.Mat, bool) {
	mat, err := gocv.IMDecode(frame, gocv.IMReadGrayScale)
	if err != nil {
		c.logger.Warning("Failed to decode frame (%d bytes): %v", len(frame), err)
		return gocv.Mat{}, false
	}
	if mat.Empty() {
		c.logger.Warning("Failed to decode frame (%d bytes): decoded image is empty", len(frame))
		mat.Close()
		return gocv.Mat{}, false
	}
	return mat, true
}

func clampPercentage(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
