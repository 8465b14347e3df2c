package ocr

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"paste-ocr/api/internal/metrics"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
	OutcomeTimedOut
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimedOut:
		return "timeout"
	}
	return "unknown"
}

type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureUnsupportedImage
	FailureUnsupportedLanguage
	FailureCanceled
	FailureInternal
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureUnsupportedImage:
		return "unsupported_image"
	case FailureUnsupportedLanguage:
		return "unsupported_language"
	case FailureCanceled:
		return "canceled"
	case FailureInternal:
		return "internal"
	}
	return "unknown"
}

// Outcome is the result of one bounded recognition call.
type Outcome struct {
	Kind    OutcomeKind
	Text    string
	Failure FailureKind
	// Err carries the recognizer's own error for logs. It is never shown to clients.
	Err     error
	Elapsed time.Duration
}

var (
	// ErrTimedOut and ErrCanceled describe outcomes that never produced a recognizer result.
	ErrTimedOut = errors.New("recognition deadline exceeded")
	ErrCanceled = errors.New("recognition canceled by caller")

	errRecognizerPanic = errors.New("recognizer panicked")
)

// AsError is nil for a success. Failures map onto the package's sentinel errors;
// internal failures are flattened so nothing they wrap matches a sentinel.
func (o Outcome) AsError() error {
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeTimedOut:
		return fmt.Errorf("%w after %s", ErrTimedOut, o.Elapsed.Round(time.Millisecond))
	}
	switch o.Failure {
	case FailureUnsupportedImage:
		return fmt.Errorf("%w: %v", ErrUnreadableImage, o.Err)
	case FailureUnsupportedLanguage:
		return fmt.Errorf("%w: %v", ErrLanguageUnavailable, o.Err)
	case FailureCanceled:
		return fmt.Errorf("%w: %v", ErrCanceled, o.Err)
	}
	return fmt.Errorf("recognition failed: %v", o.Err)
}

// Executor runs a Recognizer in its own goroutine under a hard deadline.
type Executor struct {
	rec     Recognizer
	timeout time.Duration
	sem     *semaphore.Weighted
	log     *zap.SugaredLogger
	m       *metrics.Metrics
}

type ExecutorOptions struct {
	Timeout time.Duration
	// MaxConcurrent bounds running recognitions, abandoned ones included. 0 means unbounded.
	MaxConcurrent int
	Logger        *zap.SugaredLogger
	Metrics       *metrics.Metrics
}

func NewExecutor(rec Recognizer, opts ExecutorOptions) *Executor {
	e := &Executor{
		rec:     rec,
		timeout: opts.Timeout,
		log:     opts.Logger,
		m:       opts.Metrics,
	}
	if e.timeout <= 0 {
		e.timeout = 30 * time.Second
	}
	if opts.MaxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	if e.log == nil {
		e.log = zap.NewNop().Sugar()
	}
	return e
}

func (e *Executor) Timeout() time.Duration { return e.timeout }

type recognition struct {
	text string
	err  error
}

const (
	unitRunning int32 = iota
	unitFinished
	unitAbandoned
)

// Execute never blocks past the deadline. A recognition still running at the deadline
// is abandoned: its context is cancelled and its result discarded.
func (e *Executor) Execute(ctx context.Context, img Image, lang Language) Outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return e.finish(e.expired(ctx, err), start)
		}
	}

	var state atomic.Int32
	done := make(chan recognition, 1)
	go func() {
		var res recognition
		defer func() {
			if p := recover(); p != nil {
				res = recognition{err: fmt.Errorf("%w: %v", errRecognizerPanic, p)}
			}
			if e.sem != nil {
				e.sem.Release(1)
			}
			// Publish before the state switch so a caller losing the race finds it buffered.
			done <- res
			if !state.CompareAndSwap(unitRunning, unitFinished) {
				e.log.Infow("abandoned recognition finished", "engine", e.rec.Name(), "after", time.Since(start))
				if e.m != nil {
					e.m.Abandoned.Dec()
				}
			}
		}()
		res.text, res.err = e.rec.Recognize(ctx, img, lang)
	}()

	select {
	case res := <-done:
		return e.finish(e.classify(res), start)
	case <-ctx.Done():
		if !state.CompareAndSwap(unitRunning, unitAbandoned) {
			// The unit finished in the same instant; its result is already buffered.
			return e.finish(e.classify(<-done), start)
		}
		if e.m != nil {
			e.m.Abandoned.Inc()
		}
		return e.finish(e.expired(ctx, ctx.Err()), start)
	}
}

func (e *Executor) expired(ctx context.Context, err error) Outcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Outcome{Kind: OutcomeTimedOut, Err: err}
	}
	return Outcome{Kind: OutcomeFailure, Failure: FailureCanceled, Err: err}
}

func (e *Executor) classify(res recognition) Outcome {
	if res.err == nil {
		return Outcome{Kind: OutcomeSuccess, Text: res.text}
	}
	if errors.Is(res.err, context.DeadlineExceeded) {
		return Outcome{Kind: OutcomeTimedOut, Err: res.err}
	}
	out := Outcome{Kind: OutcomeFailure, Err: res.err}
	switch {
	case errors.Is(res.err, ErrUnreadableImage):
		out.Failure = FailureUnsupportedImage
	case errors.Is(res.err, ErrUnsupportedLanguage), errors.Is(res.err, ErrLanguageUnavailable):
		out.Failure = FailureUnsupportedLanguage
	case errors.Is(res.err, context.Canceled):
		out.Failure = FailureCanceled
	default:
		out.Failure = FailureInternal
	}
	return out
}

func (e *Executor) finish(out Outcome, start time.Time) Outcome {
	out.Elapsed = time.Since(start)
	if e.m != nil {
		e.m.RecognitionTime.Observe(out.Elapsed.Seconds())
		label := out.Kind.String()
		if out.Kind == OutcomeFailure {
			label = out.Failure.String()
		}
		e.m.Outcomes.WithLabelValues(label).Inc()
	}
	return out
}
