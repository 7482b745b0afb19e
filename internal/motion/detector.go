package motion

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"camserver/internal/logger"
)

var (
	ErrInvalidThreshold = errors.New("motion threshold must be within [0, 100]")
	ErrInvalidCooldown  = errors.New("motion cooldown must not be negative")
)

// State is the detector state machine position.
type State int

const (
	StateIdle State = iota
	StateMotionDetected
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMotionDetected:
		return "motion_detected"
	case StateCooldown:
		return "cooldown"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Status is a point-in-time copy of the detector fields.
type Status struct {
	State                State
	MotionEventCount     int
	LastMotionTime       time.Time // zero until the first motion event
	LastChangePercentage float64
	Threshold            float64
	Cooldown             time.Duration
}

// Options configure a Detector. Now defaults to time.Now.
type Options struct {
	Threshold float64
	Cooldown  time.Duration
	Now       func() time.Time
}

// Detector turns a stream of frames into motion started / ongoing / ended
// transitions. All fields are guarded by mu; comparisons run inside the
// critical section so every CheckMotion call is applied atomically.
type Detector struct {
	threshold  float64
	cooldown   time.Duration
	comparator Comparator
	now        func() time.Time
	logger     *logger.Logger

	mu                   sync.RWMutex
	state                State
	previousFrame        []byte
	baselineFrame        []byte
	motionEventCount     int
	lastMotionTime       time.Time
	lastChangePercentage float64
}

// NewDetector validates opts and returns an idle detector.
func NewDetector(opts Options, comparator Comparator, logger *logger.Logger) (*Detector, error) {
	if !(opts.Threshold >= 0 && opts.Threshold <= 100) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, opts.Threshold)
	}
	if opts.Cooldown < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidCooldown, opts.Cooldown)
	}
	if comparator == nil {
		return nil, errors.New("motion comparator is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Detector{
		threshold:  opts.Threshold,
		cooldown:   opts.Cooldown,
		comparator: comparator,
		now:        now,
		logger:     logger,
		state:      StateIdle,
	}, nil
}

// CheckMotion consumes frame and reports whether motion is active along with
// the most recent change percentage.
func (d *Detector) CheckMotion(frame []byte) (bool, float64) {
	if len(frame) == 0 {
		return false, 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.previousFrame == nil {
		d.previousFrame = frame
		d.baselineFrame = frame
		d.logger.Info("Motion detector primed with first frame")
		return false, 0
	}

	if d.state == StateCooldown {
		if d.now().Sub(d.lastMotionTime) < d.cooldown {
			return false, d.lastChangePercentage
		}
		d.state = StateIdle
		d.baselineFrame = frame
		d.logger.Debug("Cooldown elapsed, detector idle")
	}

	switch d.state {
	case StateIdle:
		atRest := d.previousFrame
		change := d.comparator.Compare(atRest, frame, d.threshold)
		d.previousFrame = frame
		d.lastChangePercentage = change

		if change >= d.threshold {
			// The last quiet frame becomes the reference for "returned to rest".
			d.baselineFrame = atRest
			d.state = StateMotionDetected
			d.motionEventCount++
			d.lastMotionTime = d.now()
			d.logger.Info("Motion detected: %.2f%% of pixels changed (event #%d)", change, d.motionEventCount)
			return true, change
		}
		return false, change

	case StateMotionDetected:
		change := d.comparator.Compare(d.baselineFrame, frame, d.threshold)
		d.previousFrame = frame
		d.lastChangePercentage = change
		d.lastMotionTime = d.now()

		if change < d.threshold {
			d.state = StateCooldown
			d.logger.Info("Motion ended: %.2f%% changed against baseline, cooling down for %v", change, d.cooldown)
			return false, change
		}
		return true, change
	}

	return false, d.lastChangePercentage
}

// Status returns a snapshot of the detector state.
func (d *Detector) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Status{
		State:                d.state,
		MotionEventCount:     d.motionEventCount,
		LastMotionTime:       d.lastMotionTime,
		LastChangePercentage: d.lastChangePercentage,
		Threshold:            d.threshold,
		Cooldown:             d.cooldown,
	}
}

// IsMotionActive reports whether the detector is in the motion state.
func (d *Detector) IsMotionActive() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state == StateMotionDetected
}
