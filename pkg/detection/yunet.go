package detection

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YuNetDetector uses OpenCV's FaceDetectorYN for face detection
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	logger   *slog.Logger
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a new YuNet face detector using GoCV's built-in FaceDetectorYN
func NewYuNet(cfg Config, logger *slog.Logger) (*YuNetDetector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	nms := cfg.NMSThresh
	if nms <= 0 {
		nms = 0.3
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5000
	}

	// Input size is reset per image in Detect.
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		float32(nms),
		topK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
		logger:   logger.With("component", "detection", "backend", BackendYuNet),
	}, nil
}

// Detect finds faces in the JPEG image. Boxes are in pixels of the decoded
// image even when the detector ran on a downscaled copy.
func (d *YuNetDetector) Detect(jpeg []byte) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(jpeg) == 0 {
		return nil, ErrEmptyImage
	}

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, ErrEmptyImage
	}

	input := img
	scale := 1.0
	if d.config.MaxWidth > 0 && img.Cols() > d.config.MaxWidth {
		scale = float64(d.config.MaxWidth) / float64(img.Cols())
		small := gocv.NewMat()
		defer small.Close()
		gocv.Resize(img, &small, image.Point{}, scale, scale, gocv.InterpolationLinear)
		input = small
	}

	d.detector.SetInputSize(image.Pt(input.Cols(), input.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(input, &faces)

	detections := make([]Detection, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		// YuNet output format (15 columns):
		// 0-3: x, y, w, h (bounding box in pixels)
		// 4-13: 5 facial landmarks (x,y pairs)
		// 14: face score
		detections = append(detections, Detection{
			X:          float64(faces.GetFloatAt(r, 0)) / scale,
			Y:          float64(faces.GetFloatAt(r, 1)) / scale,
			W:          float64(faces.GetFloatAt(r, 2)) / scale,
			H:          float64(faces.GetFloatAt(r, 3)) / scale,
			Confidence: float64(faces.GetFloatAt(r, 14)),
		})
	}

	if len(detections) > 0 {
		d.logger.Debug("faces detected", "count", len(detections), "first_height_px", detections[0].H)
	}

	return detections, nil
}

// Close releases the detector resources
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}

var _ Detector = (*YuNetDetector)(nil)
