package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"paste-ocr/api/internal/ocr"
)

const recognizeURL = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"

// Tesseract tags -> ISO 639-1 codes expected by Vision OCR.
var languageCodes = map[string]string{
	"eng": "en",
	"rus": "ru",
	"ukr": "uk",
	"deu": "de",
	"fra": "fr",
	"spa": "es",
	"ita": "it",
}

type Engine struct {
	iamc     *IamClient
	folderID string
	endpoint string
	httpc    *http.Client
}

func New(oauth2Token, folderID string) *Engine {
	return &Engine{
		iamc:     NewIamClient(oauth2Token),
		folderID: folderID,
		endpoint: recognizeURL,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "yandex" }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"`      // "JPEG" | "PNG"
	LanguageCodes []string `json:"languageCodes,omitempty"` // ["ru","en"]
	Model         string   `json:"model,omitempty"`         // "page"
}

type response struct {
	Result *struct {
		TextAnnotation *textAnnotation `json:"textAnnotation,omitempty"`
	} `json:"result,omitempty"`
}

type textAnnotation struct {
	FullText string `json:"fullText,omitempty"`
	Blocks   []struct {
		Lines []struct {
			Text string `json:"text,omitempty"`
		} `json:"lines,omitempty"`
	} `json:"blocks,omitempty"`
}

func (e *Engine) Recognize(ctx context.Context, img ocr.Image, lang ocr.Language) (string, error) {
	codes, err := toLanguageCodes(lang)
	if err != nil {
		return "", err
	}
	data, mime, err := payload(img)
	if err != nil {
		return "", err
	}
	iamToken, err := e.iamc.Token(ctx)
	if err != nil {
		return "", err
	}
	body, _ := json.Marshal(request{
		Content:       base64.StdEncoding.EncodeToString(data),
		MimeType:      mime,
		LanguageCodes: codes,
		Model:         "page",
	})

	resp, err := e.do(ctx, body, iamToken)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// one retry with a fresh token
		e.iamc.Reset()
		if iamToken, err = e.iamc.Token(ctx); err != nil {
			return "", err
		}
		if resp, err = e.do(ctx, body, iamToken); err != nil {
			return "", err
		}
		defer resp.Body.Close()
	}
	if resp.StatusCode == http.StatusBadRequest {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("yandex ocr: %w: %s", ocr.ErrUnreadableImage, string(x))
	}
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("yandex ocr %d: %s", resp.StatusCode, string(x))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.text(), nil
}

func (e *Engine) do(ctx context.Context, body []byte, iamToken string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+iamToken)
	req.Header.Set("x-folder-id", e.folderID)
	return e.httpc.Do(req)
}

func (r *response) text() string {
	if r == nil || r.Result == nil || r.Result.TextAnnotation == nil {
		return ""
	}
	ta := r.Result.TextAnnotation
	if strings.TrimSpace(ta.FullText) != "" {
		return ta.FullText
	}
	// fallback: lines
	var lines []string
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			lines = append(lines, l.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func toLanguageCodes(lang ocr.Language) ([]string, error) {
	parts := lang.Parts()
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		c, ok := languageCodes[p]
		if !ok {
			return nil, fmt.Errorf("yandex: %w: %s", ocr.ErrLanguageUnavailable, p)
		}
		codes = append(codes, c)
	}
	return codes, nil
}

// payload returns bytes in a format the API accepts, re-encoding other formats as PNG.
func payload(img ocr.Image) ([]byte, string, error) {
	switch img.Format {
	case "jpeg":
		return img.Data, "JPEG", nil
	case "png":
		return img.Data, "PNG", nil
	}
	if img.Bitmap == nil {
		return nil, "", fmt.Errorf("yandex: %w: no bitmap for %s", ocr.ErrUnreadableImage, img.Format)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img.Bitmap, imaging.PNG); err != nil {
		return nil, "", fmt.Errorf("encode %s as png: %w", img.Format, err)
	}
	return buf.Bytes(), "PNG", nil
}
