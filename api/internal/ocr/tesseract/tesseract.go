package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"paste-ocr/api/internal/ocr"
)

// leptonica reads these natively; anything else is re-encoded as PNG first.
var nativeFormats = map[string]bool{"png": true, "jpeg": true, "gif": true, "bmp": true, "tiff": true}

// Engine runs Tesseract through gosseract. Each call gets its own client because
// a client is not safe for concurrent use. The call cannot be interrupted once started.
type Engine struct {
	clientFactory func() *gosseract.Client
}

func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, img ocr.Image, lang ocr.Language) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := imageBytes(img)
	if err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(lang.Parts()...); err != nil {
		return "", fmt.Errorf("set languages: %w: %v", ocr.ErrUnsupportedLanguage, err)
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w: %v", ocr.ErrUnreadableImage, err)
	}
	text, err := c.Text()
	if err != nil {
		return "", classify(err)
	}
	return text, nil
}

func imageBytes(img ocr.Image) ([]byte, error) {
	if nativeFormats[img.Format] || img.Bitmap == nil {
		return img.Data, nil
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img.Bitmap, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode %s as png: %w", img.Format, err)
	}
	return buf.Bytes(), nil
}

// classify maps gosseract's error strings onto the recognizer error kinds. Missing
// traineddata for an allow-listed language is an installation fault and stays internal.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "traineddata") || strings.Contains(msg, "initialize"):
		return fmt.Errorf("tesseract is not installed for this language: %v", err)
	case strings.Contains(msg, "pixread") || strings.Contains(msg, "read image"):
		return fmt.Errorf("recognize text: %w: %v", ocr.ErrUnreadableImage, err)
	}
	return fmt.Errorf("recognize text: %w", err)
}
