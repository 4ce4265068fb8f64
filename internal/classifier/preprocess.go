package classifier

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// PrepareInput resizes a face crop to the model input size with bilinear
// interpolation, rescales intensities from [0,255] to [0,1], and writes
// the channels-last tensor values into dst. The resize kernel must match
// the one used when the model was trained; changing it shifts the score
// distribution.
func PrepareInput(face image.Image, dst []float32) error {
	if want := InputSize * InputSize * 3; len(dst) != want {
		return fmt.Errorf("input buffer holds %d values, want %d", len(dst), want)
	}

	resized := imaging.Resize(face, InputSize, InputSize, imaging.Linear)

	i := 0
	for y := 0; y < InputSize; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < InputSize; x++ {
			px := row[x*4 : x*4+3]
			dst[i] = float32(px[0]) / 255.0
			dst[i+1] = float32(px[1]) / 255.0
			dst[i+2] = float32(px[2]) / 255.0
			i += 3
		}
	}
	return nil
}
