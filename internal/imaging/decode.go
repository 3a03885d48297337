package imaging

import (
	"bytes"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	apperrors "github.com/franckalain/mealdose/internal/errors"
)

// DecodeCapture turns raw camera frame bytes (jpeg, png, gif or webp) into a
// CameraCapture.
func DecodeCapture(data []byte) (*CameraCapture, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidInput, "imaging.decode", "camera frame is empty")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindPayloadCreation, "imaging.decode", "failed to decode camera frame", err)
	}
	return &CameraCapture{Image: img}, nil
}
