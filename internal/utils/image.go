package utils

import (
	"bytes"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DetectImageFormat sniffs the encoded format of raw image bytes
// ("png", "jpeg", "gif", "webp", "bmp", "tiff"). Returns "" when the
// bytes are not a recognized image.
func DetectImageFormat(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return format
}
