package camera

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Source produces encoded JPEG frames.
type Source interface {
	Capture() ([]byte, error)
	Close() error
}

// DeviceSource captures frames from a local camera through OpenCV.
type DeviceSource struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	img     gocv.Mat
	closed  bool
}

// OpenDevice opens a camera by index ("0") or by path/URL and requests the
// given resolution and framerate.
func OpenDevice(device string, width, height, framerate int) (*DeviceSource, error) {
	var id interface{} = device
	if idx, err := strconv.Atoi(device); err == nil {
		id = idx
	}

	capture, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("error opening video capture device %s: %w", device, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	capture.Set(gocv.VideoCaptureFPS, float64(framerate))

	return &DeviceSource{
		capture: capture,
		img:     gocv.NewMat(),
	}, nil
}

// Capture reads one frame and encodes it as JPEG.
func (s *DeviceSource) Capture() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("camera is closed")
	}
	if ok := s.capture.Read(&s.img); !ok {
		return nil, errors.New("failed to read frame from camera")
	}
	if s.img.Empty() {
		return nil, errors.New("camera returned an empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, s.img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	frame := make([]byte, len(buf.GetBytes()))
	copy(frame, buf.GetBytes())
	return frame, nil
}

// Close releases the camera.
func (s *DeviceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.img.Close()
	return s.capture.Close()
}
