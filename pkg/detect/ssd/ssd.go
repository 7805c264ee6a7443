// Package ssd provides the production person detector backing
// detect.Detector, using OpenCV's DNN module with a MobileNet-SSD model.
package ssd

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/sightline/go-rover/pkg/detect"
	"gocv.io/x/gocv"
)

// personClassID is the "person" class in the VOC label set MobileNet-SSD
// was trained on.
const personClassID = 15

// Config holds detector configuration.
type Config struct {
	ModelPath        string  // Path to the .caffemodel weights
	ProtoPath        string  // Path to the .prototxt network definition
	ConfidenceThresh float64 // Minimum confidence (default 0.5)
	InputSize        int     // Square network input size (default 300)
}

// DefaultConfig returns production defaults for MobileNet-SSD.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/mobilenet_ssd.caffemodel",
		ProtoPath:        "models/mobilenet_ssd.prototxt",
		ConfidenceThresh: 0.5,
		InputSize:        300,
	}
}

// Detector runs MobileNet-SSD person detection on JPEG frames.
type Detector struct {
	net    gocv.Net
	config Config
	mu     sync.Mutex // Protects inference
}

var _ detect.Detector = (*Detector)(nil)

// New creates a new MobileNet-SSD detector.
func New(cfg Config) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 300
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ProtoPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &Detector{
		net:    net,
		config: cfg,
	}, nil
}

// Detect finds people in the JPEG image, in pixel coordinates.
func (d *Detector) Detect(jpeg []byte) ([]detect.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	blob := gocv.BlobFromImage(img, 1.0/127.5,
		image.Pt(d.config.InputSize, d.config.InputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	out := d.net.Forward("")
	defer out.Close()

	// SSD output is [1,1,N,7]: image id, class id, confidence, x1, y1, x2, y2
	// with coordinates normalized to 0-1.
	results := out.Reshape(1, out.Total()/7)
	defer results.Close()

	var detections []detect.Detection
	for r := 0; r < results.Rows(); r++ {
		classID := int(results.GetFloatAt(r, 1))
		confidence := float64(results.GetFloatAt(r, 2))

		if classID != personClassID || confidence < d.config.ConfidenceThresh {
			continue
		}

		detections = append(detections, detect.Detection{
			X1:         float64(results.GetFloatAt(r, 3)) * imgW,
			Y1:         float64(results.GetFloatAt(r, 4)) * imgH,
			X2:         float64(results.GetFloatAt(r, 5)) * imgW,
			Y2:         float64(results.GetFloatAt(r, 6)) * imgH,
			Confidence: confidence,
		})
	}

	return detections, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
