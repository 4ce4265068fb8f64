package detector

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/example/liveness-check/internal/inference"
)

// Cascade tuning, fixed at the values the service was calibrated with.
// qualityFloor filters low-vote detections the same way a minimum
// neighbor count of 5 does in staged-rejection detectors.
const (
	scaleFactor  = 1.1
	shiftFactor  = 0.1
	minFaceSize  = 30
	clusterIoU   = 0.2
	qualityFloor = 5.0
)

// Cascade wraps a binary cascade classifier loaded once at startup. The
// unpacked cascade is immutable and safe for concurrent Detect calls.
type Cascade struct {
	classifier *pigo.Pigo
}

// NewFromFile reads and unpacks a binary cascade definition. The service
// cannot operate without it, so callers should treat an error as fatal.
func NewFromFile(path string) (*Cascade, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cascade file: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade file: %w", err)
	}
	return &Cascade{classifier: classifier}, nil
}

// Detect runs the cascade over a grayscale copy of img and returns face
// boxes in source-image pixel coordinates. An image with no faces yields
// an empty slice, not an error.
func (c *Cascade) Detect(img image.Image) ([]inference.FaceBox, error) {
	src := pigo.ImgToNRGBA(img)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()

	maxSize := cols
	if rows < cols {
		maxSize = rows
	}

	params := pigo.CascadeParams{
		MinSize:     minFaceSize,
		MaxSize:     maxSize,
		ShiftFactor: shiftFactor,
		ScaleFactor: scaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := c.classifier.RunCascade(params, 0.0)
	dets = c.classifier.ClusterDetections(dets, clusterIoU)

	boxes := make([]inference.FaceBox, 0, len(dets))
	for _, det := range dets {
		if det.Q < qualityFloor {
			continue
		}
		boxes = append(boxes, boxFromDetection(det.Row, det.Col, det.Scale, cols, rows))
	}
	return boxes, nil
}

// boxFromDetection converts a center/scale detection into an axis-aligned
// box clamped to the image bounds.
func boxFromDetection(row, col, scale, cols, rows int) inference.FaceBox {
	half := scale / 2
	x := col - half
	y := row - half
	w := scale
	h := scale
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > cols {
		w = cols - x
	}
	if y+h > rows {
		h = rows - y
	}
	return inference.FaceBox{X: x, Y: y, Width: w, Height: h}
}
