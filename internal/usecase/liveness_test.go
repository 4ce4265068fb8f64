package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/example/liveness-check/internal/imagecodec"
	"github.com/example/liveness-check/internal/inference"
	"github.com/example/liveness-check/internal/logging"
)

type stubDetector struct {
	boxes []inference.FaceBox
	err   error
	calls int
}

func (s *stubDetector) Detect(img image.Image) ([]inference.FaceBox, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.boxes, nil
}

type stubClassifier struct {
	score float32
	err   error
	crops []image.Rectangle
}

func (s *stubClassifier) Score(face image.Image) (float32, error) {
	s.crops = append(s.crops, face.Bounds())
	if s.err != nil {
		return 0, s.err
	}
	return s.score, nil
}

func testFrameDataURL(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 130, B: 140, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test frame: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestPredictLabelsLiveFaceBelowThreshold(t *testing.T) {
	det := &stubDetector{boxes: []inference.FaceBox{{X: 10, Y: 20, Width: 40, Height: 40}}}
	clf := &stubClassifier{score: 0.2}
	uc := NewLivenessUseCase(det, clf, zap.NewNop())

	predictions, err := uc.Predict(context.Background(), testFrameDataURL(t, 100, 100))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(predictions) != 1 {
		t.Fatalf("expected 1 prediction, got %d", len(predictions))
	}
	if predictions[0].Label != inference.LabelOriginal {
		t.Fatalf("expected label %q, got %q", inference.LabelOriginal, predictions[0].Label)
	}
	if math.Abs(predictions[0].Confidence-0.8) > 1e-6 {
		t.Fatalf("expected confidence 0.8, got %f", predictions[0].Confidence)
	}
}

func TestPredictLabelsSpoofAboveThreshold(t *testing.T) {
	det := &stubDetector{boxes: []inference.FaceBox{{X: 0, Y: 0, Width: 50, Height: 50}}}
	clf := &stubClassifier{score: 0.93}
	uc := NewLivenessUseCase(det, clf, zap.NewNop())

	predictions, err := uc.Predict(context.Background(), testFrameDataURL(t, 100, 100))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if predictions[0].Label != inference.LabelFake {
		t.Fatalf("expected label %q, got %q", inference.LabelFake, predictions[0].Label)
	}
	if math.Abs(predictions[0].Confidence-0.93) > 1e-6 {
		t.Fatalf("expected confidence 0.93, got %f", predictions[0].Confidence)
	}
}

func TestPredictThresholdIsExclusive(t *testing.T) {
	// A score of exactly 0.5 does not exceed the threshold, so it reads
	// as an original face with confidence 0.5.
	det := &stubDetector{boxes: []inference.FaceBox{{X: 0, Y: 0, Width: 30, Height: 30}}}
	clf := &stubClassifier{score: 0.5}
	uc := NewLivenessUseCase(det, clf, zap.NewNop())

	predictions, err := uc.Predict(context.Background(), testFrameDataURL(t, 64, 64))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if predictions[0].Label != inference.LabelOriginal {
		t.Fatalf("expected label %q, got %q", inference.LabelOriginal, predictions[0].Label)
	}
	if math.Abs(predictions[0].Confidence-0.5) > 1e-6 {
		t.Fatalf("expected confidence 0.5, got %f", predictions[0].Confidence)
	}
}

func TestPredictReturnsEmptySliceWhenNoFaces(t *testing.T) {
	uc := NewLivenessUseCase(&stubDetector{}, &stubClassifier{}, zap.NewNop())

	predictions, err := uc.Predict(context.Background(), testFrameDataURL(t, 100, 100))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if predictions == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(predictions) != 0 {
		t.Fatalf("expected no predictions, got %d", len(predictions))
	}
}

func TestPredictPreservesDetectorBoxes(t *testing.T) {
	boxes := []inference.FaceBox{
		{X: 5, Y: 7, Width: 32, Height: 32},
		{X: 50, Y: 40, Width: 44, Height: 44},
	}
	det := &stubDetector{boxes: boxes}
	clf := &stubClassifier{score: 0.1}
	uc := NewLivenessUseCase(det, clf, zap.NewNop())

	predictions, err := uc.Predict(context.Background(), testFrameDataURL(t, 120, 120))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(predictions) != len(boxes) {
		t.Fatalf("expected %d predictions, got %d", len(boxes), len(predictions))
	}
	for i, p := range predictions {
		if p.Box != boxes[i] {
			t.Fatalf("box %d changed: expected %+v, got %+v", i, boxes[i], p.Box)
		}
	}
	if len(clf.crops) != len(boxes) {
		t.Fatalf("expected %d classifier calls, got %d", len(boxes), len(clf.crops))
	}
	for i, crop := range clf.crops {
		if crop.Dx() != boxes[i].Width || crop.Dy() != boxes[i].Height {
			t.Fatalf("crop %d has size %dx%d, expected %dx%d",
				i, crop.Dx(), crop.Dy(), boxes[i].Width, boxes[i].Height)
		}
	}
}

func TestPredictRejectsMalformedPayload(t *testing.T) {
	uc := NewLivenessUseCase(&stubDetector{}, &stubClassifier{}, zap.NewNop())

	_, err := uc.Predict(context.Background(), "no separator here")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, imagecodec.ErrMalformedPayload) {
		t.Fatalf("expected malformed payload error, got %v", err)
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "usecase.decode_image" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
}

func TestPredictAbortsBatchOnClassifierFailure(t *testing.T) {
	det := &stubDetector{boxes: []inference.FaceBox{
		{X: 0, Y: 0, Width: 30, Height: 30},
		{X: 40, Y: 40, Width: 30, Height: 30},
	}}
	clf := &stubClassifier{err: errors.New("inference blew up")}
	uc := NewLivenessUseCase(det, clf, zap.NewNop())

	predictions, err := uc.Predict(context.Background(), testFrameDataURL(t, 100, 100))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if predictions != nil {
		t.Fatalf("expected no partial results, got %d", len(predictions))
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "usecase.classify_face" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
}

func TestPredictIsDeterministic(t *testing.T) {
	det := &stubDetector{boxes: []inference.FaceBox{{X: 12, Y: 8, Width: 36, Height: 36}}}
	clf := &stubClassifier{score: 0.7}
	uc := NewLivenessUseCase(det, clf, zap.NewNop())

	frame := testFrameDataURL(t, 80, 80)
	first, err := uc.Predict(context.Background(), frame)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := uc.Predict(context.Background(), frame)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}
