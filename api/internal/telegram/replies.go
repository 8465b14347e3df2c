package telegram

import (
	"errors"
	"fmt"

	"paste-ocr/api/internal/ocr"
	"paste-ocr/api/internal/payload"
	"paste-ocr/api/internal/ratelimit"
)

var replies = []struct {
	err  error
	text string
}{
	{payload.ErrMissingData, "Пустой файл. Пришли картинку ещё раз."},
	{payload.ErrUnsupportedFormat, "Этот формат изображения не поддерживается."},
	{ocr.ErrUnreadableImage, "Этот формат изображения не поддерживается."},
	{ocr.ErrUnsupportedLanguage, "Язык не поддерживается. Выбери другой: /lang"},
	{ocr.ErrLanguageUnavailable, "Этот движок не знает выбранный язык. Выбери другой: /lang или /engine"},
	{ocr.ErrNoText, "Не нашёл на картинке текста."},
	{ocr.ErrTimedOut, "Распознавание заняло слишком много времени. Попробуй картинку поменьше."},
	{ocr.ErrCanceled, "Распознавание прервано. Попробуй ещё раз."},
	{errNoEngine, "Движок недоступен. Выбери другой: /engine"},
}

func replyFor(err error, maxBytes int) string {
	var le *ratelimit.LimitError
	if errors.As(err, &le) {
		return fmt.Sprintf("⏳ Слишком много запросов (лимит %s). Попробуй позже.", le.Decision.Rule)
	}
	if errors.Is(err, payload.ErrPayloadTooLarge) {
		if maxBytes <= 0 {
			maxBytes = payload.DefaultMaxBytes
		}
		return fmt.Sprintf("Картинка слишком большая (максимум %d МБ).", maxBytes>>20)
	}
	for _, r := range replies {
		if errors.Is(err, r.err) {
			return r.text
		}
	}
	return "Ошибка OCR. Попробуй ещё раз позже."
}
