package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"paste-ocr/api/internal/ocr"
)

// languageNames turns Tesseract-style tags into words the model follows reliably.
var languageNames = map[string]string{
	"eng": "English",
	"rus": "Russian",
	"ukr": "Ukrainian",
	"deu": "German",
	"fra": "French",
	"spa": "Spanish",
	"ita": "Italian",
}

const systemPrompt = `You are an OCR engine. Transcribe every piece of text visible in the image verbatim.
Keep the original line breaks and reading order. Do not translate, summarize, correct spelling or add commentary.
If the image contains no text, return an empty response.`

type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string { return "gemini" }

func (e *Engine) Recognize(ctx context.Context, img ocr.Image, lang ocr.Language) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "text/plain",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	parts := []genai.Part{
		genai.Text("Expected languages: " + describe(lang) + "."),
		&genai.Blob{MIMEType: img.MIME, Data: img.Data},
	}

	// retries on transient 5xx
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if isInvalidArgument(err) {
				return "", fmt.Errorf("gemini: %w: %v", ocr.ErrUnreadableImage, err)
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		return stripCodeFences(firstText(resp)), nil
	}
	return "", fmt.Errorf("gemini recognize: %w", lastErr)
}

func describe(lang ocr.Language) string {
	var names []string
	for _, p := range lang.Parts() {
		if n, ok := languageNames[p]; ok {
			names = append(names, n)
		} else {
			names = append(names, p)
		}
	}
	return strings.Join(names, ", ")
}

func isInvalidArgument(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "invalid argument") || strings.Contains(s, "unable to process input image")
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func ptrFloat32(v float32) *float32 { return &v }
