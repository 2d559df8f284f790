// Package imaging handles image payloads: data URIs, guarded remote fetch,
// compositing and aspect-ratio crops.
package imaging

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

// MaxImageSize caps decoded and downloaded payloads.
const MaxImageSize = 20 << 20 // 20 MB

var allowedMIME = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// IsDataURI reports whether ref is an inline data URI.
func IsDataURI(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// DecodeDataURI parses a data:<mime>;base64,<data> URI.
func DecodeDataURI(uri string) (models.Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return models.Image{}, fmt.Errorf("%w: not a data URI", apperr.ErrInvalidInput)
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return models.Image{}, fmt.Errorf("%w: data URI missing comma separator", apperr.ErrInvalidInput)
	}
	if !strings.Contains(meta, ";base64") {
		return models.Image{}, fmt.Errorf("%w: only base64 data URIs are supported", apperr.ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return models.Image{}, fmt.Errorf("%w: invalid base64 data: %v", apperr.ErrInvalidInput, err)
		}
	}
	if len(data) > MaxImageSize {
		return models.Image{}, fmt.Errorf("%w: image too large: %d bytes", apperr.ErrInvalidInput, len(data))
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	if mime == "" {
		mime = Sniff(data)
	}
	return models.Image{Data: data, MIMEType: mime}, nil
}

// EncodeDataURI renders img as a base64 data URI.
func EncodeDataURI(img models.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = Sniff(img.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Sniff detects the MIME type of data from its leading bytes.
func Sniff(data []byte) string {
	return strings.Split(http.DetectContentType(data), ";")[0]
}

// Validate checks that data is a supported raster image and that the
// declared MIME type, when set, matches the content.
func Validate(img models.Image) error {
	if img.Empty() {
		return fmt.Errorf("%w: image is empty", apperr.ErrInvalidInput)
	}
	detected := Sniff(img.Data)
	if !allowedMIME[detected] {
		return fmt.Errorf("%w: unsupported image content (detected: %s)", apperr.ErrInvalidInput, detected)
	}
	declared := strings.ToLower(img.MIMEType)
	if declared == "image/jpg" {
		declared = "image/jpeg"
	}
	if declared != "" && declared != detected {
		return fmt.Errorf("%w: content does not match %s (detected: %s)", apperr.ErrInvalidInput, img.MIMEType, detected)
	}
	return nil
}
