package ocr

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrUnreadableImage is returned by a recognizer that cannot read the image internals.
	ErrUnreadableImage = errors.New("image is not readable by the recognizer")

	// ErrUnsupportedLanguage is returned for a tag outside the allow-list.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrLanguageUnavailable is returned by a recognizer that cannot read an allow-listed tag.
	ErrLanguageUnavailable = errors.New("language data is not installed")

	// ErrNoText is returned when nothing is left after cleaning the recognized text.
	ErrNoText = errors.New("no text found in the image")
)

// Image is a validated, decoded upload.
type Image struct {
	Data   []byte
	Bitmap image.Image
	Format string // png | jpeg | gif | bmp | tiff | webp
	MIME   string
}

// Recognizer is an external OCR capability. It may block for a long time and may
// ignore ctx cancellation.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, img Image, lang Language) (string, error)
}
