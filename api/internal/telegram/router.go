package telegram

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"paste-ocr/api/internal/handle"
	"paste-ocr/api/internal/ocr"
	"paste-ocr/api/internal/ratelimit"
)

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// ImageValidator checks raw image bytes and a language tag.
type ImageValidator interface {
	ValidateImage(raw []byte, language string) (ocr.Image, ocr.Language, error)
}

// Admission decides whether a chat may start another recognition.
type Admission interface {
	Check(ctx context.Context, identity, route string) (ratelimit.Decision, error)
}

type Router struct {
	Bot       Bot
	Validator ImageValidator
	// Engines maps engine names to executors; DefaultEngine must be one of them.
	Engines       map[string]handle.Runner
	DefaultEngine string
	Limiter       Admission
	Languages     *ocr.Languages
	MaxBytes      int
	// StoreName is reported by /health.
	StoreName string
	// Debounce is how long a chat's photos are collected before recognition.
	Debounce   time.Duration
	HTTPClient *http.Client
	Log        *zap.SugaredLogger

	state   chatState
	batches sync.Map // key -> *photoBatch
}

const (
	defaultDebounce = 1200 * time.Millisecond
	maxReplyLen     = 3900
)

func (r *Router) log() *zap.SugaredLogger {
	if r.Log == nil {
		return zap.NewNop().Sugar()
	}
	return r.Log
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}
	switch {
	case msg.IsCommand():
		r.HandleCommand(msg)
	case len(msg.Photo) > 0:
		ph := msg.Photo[len(msg.Photo)-1] // largest size
		r.acceptImage(ctx, msg, ph.FileID, ph.FileSize)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		r.acceptImage(ctx, msg, msg.Document.FileID, msg.Document.FileSize)
	default:
		r.send(msg.Chat.ID, "Пришли фото или картинку файлом — верну распознанный текст. /help")
	}
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log().Warnw("telegram send failed", "chat_id", chatID, "err", err)
	}
}

func (r *Router) SendResult(chatID int64, text string) {
	if len([]rune(text)) > maxReplyLen {
		text = string([]rune(text)[:maxReplyLen]) + "…"
	}
	r.send(chatID, "📝 Распознанный текст:\n\n"+text)
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, replyFor(err, r.MaxBytes))
}
