package usecase

import (
	"context"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/liveness-check/internal/imagecodec"
	"github.com/example/liveness-check/internal/inference"
	"github.com/example/liveness-check/internal/logging"
)

// spoofThreshold separates live from spoof scores. The value and its
// label pairing are fixed by the trained artifact, whose classes are
// ordered alphabetically with live at 0 and spoof at 1; it is not a
// tunable.
const spoofThreshold = 0.5

// LivenessUseCase orchestrates the per-request inference flow: decode,
// detect, crop, score, assemble. The detector and classifier are loaded
// once at startup and injected here as immutable collaborators.
type LivenessUseCase struct {
	detector   inference.FaceDetector
	classifier inference.SpoofClassifier
	logger     *zap.Logger
}

// NewLivenessUseCase constructs a new use case instance.
func NewLivenessUseCase(detector inference.FaceDetector, classifier inference.SpoofClassifier, logger *zap.Logger) *LivenessUseCase {
	return &LivenessUseCase{
		detector:   detector,
		classifier: classifier,
		logger:     logger.Named("liveness_usecase"),
	}
}

// Predict runs the full pipeline over one base64 data-URL frame. The
// returned slice is empty, never nil, when no face is found. Faces are
// classified in detector order; a failure on any face aborts the whole
// batch.
func (uc *LivenessUseCase) Predict(ctx context.Context, imageData string) ([]inference.Prediction, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.predict", requestID)

	frame, err := imagecodec.DecodeDataURL(imageData)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.decode_image", requestID, err)
		opLogger.Warn("image decode failed", zap.Error(wrapped))
		return nil, wrapped
	}

	boxes, err := uc.detector.Detect(frame)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.detect_faces", requestID, err)
		opLogger.Error("face detection failed", zap.Error(wrapped))
		return nil, wrapped
	}

	predictions := make([]inference.Prediction, 0, len(boxes))
	for _, box := range boxes {
		crop := imaging.Crop(frame, box.Rect())
		score, err := uc.classifier.Score(crop)
		if err != nil {
			wrapped := logging.NewOperationError("usecase.classify_face", requestID, err)
			opLogger.Error("liveness classification failed", zap.Error(wrapped))
			return nil, wrapped
		}
		predictions = append(predictions, decide(box, score))
	}

	opLogger.Info("prediction complete",
		zap.Int("faces", len(boxes)),
		zap.Int("frame_width", frame.Bounds().Dx()),
		zap.Int("frame_height", frame.Bounds().Dy()))
	return predictions, nil
}

// decide maps a raw spoof score to the reported label and re-bases the
// confidence onto that label: above the threshold the score itself reads
// as confidence in "Fake", at or below it the complement reads as
// confidence in "Original".
func decide(box inference.FaceBox, score float32) inference.Prediction {
	s := float64(score)
	if s > spoofThreshold {
		return inference.Prediction{Box: box, Label: inference.LabelFake, Confidence: s}
	}
	return inference.Prediction{Box: box, Label: inference.LabelOriginal, Confidence: 1 - s}
}
