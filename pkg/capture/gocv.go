package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// GoCVSource captures from an OpenCV video device and delivers JPEG frames.
// A plain webcam exposes one camera, which is treated as front-facing.
type GoCVSource struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewGoCVSource creates a webcam source. The device is not opened until Bind.
func NewGoCVSource(cfg Config, logger *slog.Logger) *GoCVSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoCVSource{
		cfg:    cfg,
		logger: logger.With("component", "capture", "backend", BackendGoCV),
	}
}

// Bind opens the device and starts the capture goroutine.
func (s *GoCVSource) Bind(ctx context.Context, facing Facing, deliver Deliver) error {
	if facing != FacingFront {
		return fmt.Errorf("gocv: device %d has no %s camera", s.cfg.DeviceID, facing)
	}

	if err := s.Unbind(); err != nil {
		s.logger.Warn("unbind before bind failed", "error", err)
	}

	vc, err := gocv.OpenVideoCapture(s.cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("gocv: open device %d: %w", s.cfg.DeviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("gocv: device %d not available", s.cfg.DeviceID)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(s.cfg.Framerate))

	stop := make(chan struct{})
	done := make(chan struct{})

	s.mu.Lock()
	s.stop, s.done = stop, done
	s.mu.Unlock()

	go s.captureLoop(ctx, vc, deliver, stop, done)

	s.logger.Info("camera bound",
		"device", s.cfg.DeviceID,
		"width", s.cfg.Width,
		"height", s.cfg.Height,
		"fps", s.cfg.Framerate,
	)
	return nil
}

func (s *GoCVSource) captureLoop(ctx context.Context, vc *gocv.VideoCapture, deliver Deliver, stop, done chan struct{}) {
	defer close(done)
	defer vc.Close()

	img := gocv.NewMat()
	defer img.Close()

	interval := time.Second / time.Duration(max(s.cfg.Framerate, 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	params := []int{int(gocv.IMWriteJpegQuality), s.cfg.Quality}

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if ok := vc.Read(&img); !ok || img.Empty() {
			continue
		}

		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, params)
		if err != nil {
			s.logger.Debug("jpeg encode failed", "error", err)
			continue
		}
		data := append([]byte(nil), buf.GetBytes()...)
		buf.Close()

		deliver(Image{
			Data:      data,
			Width:     img.Cols(),
			Height:    img.Rows(),
			Timestamp: time.Now(),
		})
	}
}

// Unbind stops the capture goroutine and closes the device.
func (s *GoCVSource) Unbind() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	s.logger.Info("camera released", "device", s.cfg.DeviceID)
	return nil
}

// Name returns "gocv".
func (s *GoCVSource) Name() string { return BackendGoCV }

var _ Source = (*GoCVSource)(nil)
