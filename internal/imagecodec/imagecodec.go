// Package imagecodec decodes frames sent with the data-URL convention
// used by browser capture APIs.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

// ErrMalformedPayload marks image payloads the caller should reject as a
// bad request rather than surface as a server fault.
var ErrMalformedPayload = errors.New("malformed image payload")

// DecodeDataURL decodes a "data:<mimetype>;base64,<payload>" string into
// a pixel image. The header before the comma is discarded unvalidated;
// only the encoded bytes matter.
func DecodeDataURL(data string) (image.Image, error) {
	_, encoded, found := strings.Cut(data, ",")
	if !found {
		return nil, fmt.Errorf("%w: missing data-URL separator", ErrMalformedPayload)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedPayload, err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable image bytes: %v", ErrMalformedPayload, err)
	}
	return img, nil
}
