package telegram

import (
	"sync"

	"paste-ocr/api/internal/ocr"
)

// chatState keeps per-chat settings in memory; they reset on restart.
type chatState struct {
	languages sync.Map // chatID -> ocr.Language
	engines   sync.Map // chatID -> string
}

func (s *chatState) setLanguage(chatID int64, lang ocr.Language) { s.languages.Store(chatID, lang) }
func (s *chatState) setEngine(chatID int64, name string)         { s.engines.Store(chatID, name) }

func (s *chatState) language(chatID int64) (ocr.Language, bool) {
	v, ok := s.languages.Load(chatID)
	if !ok {
		return "", false
	}
	l, _ := v.(ocr.Language)
	return l, l != ""
}

func (s *chatState) engine(chatID int64) (string, bool) {
	v, ok := s.engines.Load(chatID)
	if !ok {
		return "", false
	}
	n, _ := v.(string)
	return n, n != ""
}

func (r *Router) chatLanguage(chatID int64) ocr.Language {
	if l, ok := r.state.language(chatID); ok {
		return l
	}
	return r.Languages.Default()
}

func (r *Router) chatEngine(chatID int64) string {
	if n, ok := r.state.engine(chatID); ok {
		return n
	}
	return r.DefaultEngine
}
