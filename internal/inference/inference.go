package inference

import (
	"encoding/json"
	"image"
)

// Labels emitted by the liveness decision rule. The pairing of the 0.5
// threshold with these labels is a contract with the trained artifact,
// whose classes are ordered alphabetically: live at index 0, spoof at 1.
const (
	LabelFake     = "Fake"
	LabelOriginal = "Original"
)

// FaceBox is a detected face region in source-image pixel coordinates.
// Boxes are returned to the caller exactly as the detector produced them.
type FaceBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// MarshalJSON serializes the box in its wire form, a [x, y, w, h] array.
func (b FaceBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X, b.Y, b.Width, b.Height})
}

// UnmarshalJSON parses the [x, y, w, h] wire form.
func (b *FaceBox) UnmarshalJSON(data []byte) error {
	var arr [4]int
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	b.X, b.Y, b.Width, b.Height = arr[0], arr[1], arr[2], arr[3]
	return nil
}

// Rect returns the box as an image rectangle for cropping.
func (b FaceBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Prediction is the per-face outcome returned to the caller. Confidence
// is always the probability mass assigned to the chosen label.
type Prediction struct {
	Box        FaceBox `json:"box"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// FaceDetector locates faces in a decoded frame. Zero boxes is a valid
// outcome, not an error.
type FaceDetector interface {
	Detect(img image.Image) ([]FaceBox, error)
}

// SpoofClassifier scores one cropped face. The scalar is in [0,1], with
// values near 1 indicating a spoofed (non-live) face.
type SpoofClassifier interface {
	Score(face image.Image) (float32, error)
}
