package ocr

import (
	"errors"
	"strings"
)

type Engines struct {
	Tesseract Recognizer
	Gemini    Recognizer
	Yandex    Recognizer
}

func (e *Engines) GetEngine(name string) (Recognizer, error) {
	var r Recognizer
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tesseract":
		r = e.Tesseract
	case "gemini":
		r = e.Gemini
	case "yandex":
		r = e.Yandex
	default:
		return nil, errors.New("unknown engine; use 'tesseract', 'gemini' or 'yandex'")
	}
	if r == nil {
		return nil, errors.New("engine " + name + " is not configured")
	}
	return r, nil
}
