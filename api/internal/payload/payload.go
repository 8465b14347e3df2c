// Package payload validates and decodes untrusted image uploads before any
// recognition work is started.
package payload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder

	"paste-ocr/api/internal/ocr"
)

var (
	ErrMissingData       = errors.New("no image data in request")
	ErrMalformedEnvelope = errors.New("image data has no ',' separator")
	ErrInvalidEncoding   = errors.New("image data is not valid base64")
	ErrPayloadTooLarge   = errors.New("image exceeds the size limit")
	ErrUnsupportedFormat = errors.New("image format is not supported")
)

const DefaultMaxBytes = 5 << 20

var mimeByFormat = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

type Validator struct {
	MaxBytes  int
	Languages *ocr.Languages
}

func NewValidator(maxBytes int, langs *ocr.Languages) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{MaxBytes: maxBytes, Languages: langs}
}

// Validate checks a "<prefix>,<base64>" form value and a language hint, in order,
// stopping at the first failure.
func (v *Validator) Validate(data, language string) (ocr.Image, ocr.Language, error) {
	if strings.TrimSpace(data) == "" {
		return ocr.Image{}, "", ErrMissingData
	}
	prefix, encoded, ok := strings.Cut(data, ",")
	if !ok {
		return ocr.Image{}, "", ErrMalformedEnvelope
	}
	raw, err := decodeBase64(encoded)
	if err != nil {
		return ocr.Image{}, "", err
	}
	// An empty segment after the comma is valid base64; it fails as an unsupported image.
	img, lang, err := v.checkDecoded(raw, language)
	if err != nil {
		return ocr.Image{}, "", err
	}
	if img.MIME == "" {
		img.MIME = mimeFromPrefix(prefix)
	}
	return img, lang, nil
}

// ValidateImage checks raw image bytes and a language hint.
func (v *Validator) ValidateImage(raw []byte, language string) (ocr.Image, ocr.Language, error) {
	if len(raw) == 0 {
		return ocr.Image{}, "", ErrMissingData
	}
	return v.checkDecoded(raw, language)
}

// checkDecoded runs the size, format and language checks on decoded bytes.
func (v *Validator) checkDecoded(raw []byte, language string) (ocr.Image, ocr.Language, error) {
	if len(raw) > v.MaxBytes {
		return ocr.Image{}, "", fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(raw), v.MaxBytes)
	}
	img, err := decodeImage(raw)
	if err != nil {
		return ocr.Image{}, "", err
	}
	lang, err := v.Languages.Resolve(language)
	if err != nil {
		return ocr.Image{}, "", err
	}
	return img, lang, nil
}

// decodeBase64 accepts the standard alphabet first, then the URL-safe one, with or
// without padding. Line breaks inside the payload are ignored by every variant.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, firstErr)
}

func decodeImage(raw []byte) (ocr.Image, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return ocr.Image{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	bitmap, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return ocr.Image{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return ocr.Image{
		Data:   raw,
		Bitmap: bitmap,
		Format: format,
		MIME:   mimeByFormat[format],
	}, nil
}

// mimeFromPrefix reads "data:<mime>;base64" envelopes.
func mimeFromPrefix(prefix string) string {
	meta, ok := strings.CutPrefix(strings.TrimSpace(prefix), "data:")
	if !ok {
		return ""
	}
	mime, _, _ := strings.Cut(meta, ";")
	return mime
}
