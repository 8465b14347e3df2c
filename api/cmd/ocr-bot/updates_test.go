package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryDelayFromError(t *testing.T) {
	tests := []struct {
		err  error
		want time.Duration
	}{
		{nil, 0},
		{errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{errors.New("too many requests"), 3 * time.Second},
		{timeoutErr{}, 2 * time.Second},
		{errors.New("bad gateway"), time.Second},
	}
	for _, tt := range tests {
		if got := retryDelayFromError(tt.err); got != tt.want {
			t.Fatalf("retryDelayFromError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestShortHash(t *testing.T) {
	a := shortHash("123:token")
	if len(a) != 16 || strings.Trim(a, "0123456789abcdef") != "" {
		t.Fatalf("shortHash = %q", a)
	}
	if a != shortHash("123:token") {
		t.Fatalf("shortHash is not stable")
	}
	// FNV-1a of the empty string is the 64-bit offset basis.
	if got := shortHash(""); got != "cbf29ce484222325" {
		t.Fatalf("shortHash(\"\") = %q", got)
	}
	if a == shortHash("123:other") {
		t.Fatalf("different tokens share a hash")
	}
}

func TestWebhookHandler(t *testing.T) {
	updates := make(chan tgbotapi.Update, 1)
	h := webhookHandler(&tgbotapi.BotAPI{}, updates, zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/webhook/x", strings.NewReader(`{"update_id":42,"message":{"text":"hi"}}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if upd := <-updates; upd.UpdateID != 42 || upd.Message.Text != "hi" {
		t.Fatalf("update = %+v", upd)
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/webhook/x", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

type scriptedGetter struct {
	calls  atomic.Int32
	cancel context.CancelFunc
}

func (g *scriptedGetter) GetUpdates(u tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	switch g.calls.Add(1) {
	case 1:
		return []tgbotapi.Update{{UpdateID: 5}, {UpdateID: 6}}, nil
	case 2:
		if u.Offset != 7 {
			return nil, errors.New("unexpected offset")
		}
		return []tgbotapi.Update{{UpdateID: 7}}, nil
	default:
		g.cancel()
		return nil, nil
	}
}

func TestRunPollingAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := &scriptedGetter{cancel: cancel}

	var seen []int
	done := make(chan struct{})
	go func() {
		runPolling(ctx, g, func(u tgbotapi.Update) { seen = append(seen, u.UpdateID) }, zap.NewNop().Sugar())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("runPolling did not stop")
	}
	if len(seen) != 3 || seen[2] != 7 {
		t.Fatalf("seen = %v", seen)
	}
}
