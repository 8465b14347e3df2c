package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"paste-ocr/api/internal/ocr"
	"paste-ocr/api/internal/payload"
)

const (
	maxPixels = 18_000_000
	route     = "results"
)

var errNoEngine = errors.New("engine is not configured")

type photoBatch struct {
	ChatID int64
	Key    string // "grp:<mediaGroupID>" | "chat:<chatID>"

	mu     sync.Mutex
	images [][]byte
	timer  *time.Timer
	err    error // admission refused the batch
	closed bool  // taken by processBatch; later photos open a new batch
}

func (b *photoBatch) rejected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err != nil
}

// add reports false when the batch was already taken for processing.
func (b *photoBatch) add(data []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.images = append(b.images, data)
	return true
}

func (r *Router) acceptImage(ctx context.Context, msg *tgbotapi.Message, fileID string, size int) {
	cid := msg.Chat.ID
	if r.MaxBytes > 0 && size > r.MaxBytes {
		r.SendError(cid, fmt.Errorf("%w: %d bytes", payload.ErrPayloadTooLarge, size))
		return
	}
	key := "chat:" + strconv.FormatInt(cid, 10)
	if msg.MediaGroupID != "" {
		key = "grp:" + msg.MediaGroupID
	}

	b := r.openBatch(ctx, key, cid)
	if b.rejected() {
		r.schedule(ctx, b)
		return
	}
	data, err := r.fetch(ctx, cid, fileID)
	if err != nil {
		r.SendError(cid, err)
		r.schedule(ctx, b)
		return
	}
	for !b.add(data) {
		if b = r.openBatch(ctx, key, cid); b.rejected() {
			break
		}
	}
	r.schedule(ctx, b)
}

// openBatch returns the open batch for key or starts a new one. A new batch passes
// admission control once, before anything is downloaded or decoded.
func (r *Router) openBatch(ctx context.Context, key string, chatID int64) *photoBatch {
	for {
		nb := &photoBatch{ChatID: chatID, Key: key}
		nb.mu.Lock()
		bi, loaded := r.batches.LoadOrStore(key, nb)
		if !loaded {
			nb.err = r.admit(ctx, chatID)
			nb.mu.Unlock()
			if nb.err == nil {
				r.send(chatID, "Фото принято, распознаю…")
			}
			return nb
		}
		nb.mu.Unlock()

		b := bi.(*photoBatch)
		b.mu.Lock()
		closed := b.closed
		b.mu.Unlock()
		if !closed {
			return b
		}
		r.batches.CompareAndDelete(key, b)
	}
}

func (r *Router) admit(ctx context.Context, chatID int64) error {
	if r.Limiter == nil {
		return nil
	}
	d, err := r.Limiter.Check(ctx, "tg:"+strconv.FormatInt(chatID, 10), route)
	if err != nil {
		return err
	}
	return d.Err()
}

// schedule restarts the batch's debounce timer.
func (r *Router) schedule(ctx context.Context, b *photoBatch) {
	debounce := r.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	bctx := context.WithoutCancel(ctx)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(debounce, func() { r.processBatch(bctx, b) })
}

func (r *Router) fetch(ctx context.Context, chatID int64, fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.log().Warnw("telegram get file failed", "chat_id", chatID, "err", err)
		return nil, err
	}
	data, err := r.download(ctx, url)
	if err != nil {
		r.log().Warnw("telegram download failed", "chat_id", chatID, "err", err)
		return nil, err
	}
	return data, nil
}

func (r *Router) processBatch(ctx context.Context, b *photoBatch) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	images, rejected := b.images, b.err
	b.mu.Unlock()
	r.batches.CompareAndDelete(b.Key, b)

	if rejected != nil {
		r.SendError(b.ChatID, rejected)
		return
	}
	if len(images) == 0 {
		return
	}

	raw := images[0]
	if len(images) > 1 {
		merged, err := combineAsOne(images)
		if err != nil {
			r.SendError(b.ChatID, fmt.Errorf("%w: %v", payload.ErrUnsupportedFormat, err))
			return
		}
		raw = merged
	}

	text, err := r.recognize(ctx, b.ChatID, raw)
	if err != nil {
		r.SendError(b.ChatID, err)
		return
	}
	r.SendResult(b.ChatID, text)
}

// recognize runs one admitted image through validation and the chat's engine.
func (r *Router) recognize(ctx context.Context, chatID int64, raw []byte) (string, error) {
	log := r.log().With("chat_id", chatID)
	img, lang, err := r.Validator.ValidateImage(raw, r.chatLanguage(chatID).String())
	if err != nil {
		return "", err
	}

	name := r.chatEngine(chatID)
	runner, ok := r.Engines[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", errNoEngine, name)
	}
	out := runner.Execute(ctx, img, lang)
	if err := out.AsError(); err != nil {
		log.Warnw("recognition did not succeed", "engine", name, "outcome", out.Kind.String(), "failure", out.Failure.String(), "err", out.Err)
		return "", err
	}
	text, err := ocr.CleanText(out.Text)
	if err != nil {
		return "", err
	}
	log.Infow("recognized", "engine", name, "language", lang, "format", img.Format, "chars", len(text), "elapsed", out.Elapsed)
	return text, nil
}

// combineAsOne stacks pages top to bottom on a white canvas, centered, scaled down
// to maxPixels, encoded as JPEG.
func combineAsOne(images [][]byte) ([]byte, error) {
	decoded := make([]image.Image, 0, len(images))
	maxW, sumH := 0, 0
	for _, b := range images {
		img, err := imaging.Decode(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, img)
		maxW = max(maxW, img.Bounds().Dx())
		sumH += img.Bounds().Dy()
	}
	if maxW == 0 || sumH == 0 {
		return nil, errors.New("empty images")
	}

	dst := imaging.New(maxW, sumH, color.White)
	y := 0
	for _, img := range decoded {
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		dst = imaging.Paste(dst, img, image.Pt((maxW-w)/2, y))
		y += h
	}

	final := image.Image(dst)
	if total := maxW * sumH; total > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(total))
		final = imaging.Resize(dst, max(int(float64(maxW)*scale), 1), 0, imaging.Lanczos)
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, final, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// download reads at most MaxBytes; a longer file is reported as too large.
func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, fmt.Errorf("download status %d: %s", resp.StatusCode, string(b))
	}
	limit := int64(r.MaxBytes)
	if limit <= 0 {
		limit = payload.DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", payload.ErrPayloadTooLarge, limit)
	}
	return data, nil
}

func (r *Router) httpClient() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}
