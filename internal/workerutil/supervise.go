package workerutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultMaxRetries     = 10
)

// ErrPanicked marks a worker run that ended in a recovered panic.
var ErrPanicked = errors.New("worker panicked")

// RecoveryOptions configures Supervise. Zero-value numeric fields take the
// defaults (100ms, 5s, 10 attempts); nil callbacks are no-ops.
type RecoveryOptions struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxRetries bounds the number of runs. 1 means run once and never restart.
	MaxRetries int

	// OnFailure is called after each failed run, before the backoff wait.
	// attempt is 1-based; err wraps ErrPanicked for panics.
	OnFailure func(worker string, attempt int, err error)

	// OnFatal is called when MaxRetries runs have all failed.
	OnFatal func(worker string, lastErr error)
}

func (opts RecoveryOptions) applyDefaults() RecoveryOptions {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		slog.Warn("[DEBUG-WORKER] MaxBackoff < InitialBackoff, using InitialBackoff as MaxBackoff",
			"initialBackoff", opts.InitialBackoff,
			"maxBackoff", opts.MaxBackoff,
		)
		opts.MaxBackoff = opts.InitialBackoff
	}
	return opts
}

// Supervise runs fn on a goroutine tracked by wg. A run that panics or
// returns a non-nil error is restarted with exponential backoff; a run that
// returns nil, or any run after ctx is cancelled, ends supervision.
func Supervise(
	ctx context.Context,
	name string,
	wg *sync.WaitGroup,
	fn func(ctx context.Context) error,
	opts RecoveryOptions,
) {
	opts = opts.applyDefaults()
	wg.Go(func() {
		superviseLoop(ctx, name, fn, opts)
	})
}

func superviseLoop(ctx context.Context, name string, fn func(ctx context.Context) error, opts RecoveryOptions) {
	delay := opts.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		lastErr = runOnce(ctx, name, fn)
		if lastErr == nil || ctx.Err() != nil {
			return
		}

		slog.Warn("[DEBUG-WORKER] worker failed",
			"worker", name,
			"attempt", attempt,
			"restartDelay", delay,
			"error", lastErr,
		)
		if opts.OnFailure != nil {
			opts.OnFailure(name, attempt, lastErr)
		}
		if attempt == opts.MaxRetries {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = nextBackoff(delay, opts.MaxBackoff)
	}

	slog.Error("[DEBUG-WORKER] worker exceeded max retries, giving up",
		"worker", name,
		"maxRetries", opts.MaxRetries,
		"error", lastErr,
	)
	if opts.OnFatal != nil {
		opts.OnFatal(name, lastErr)
	}
}

func runOnce(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] worker recovered from panic",
				"worker", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return fn(ctx)
}

// nextBackoff doubles current, capped at maxBackoff and guarded against overflow.
func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	if current <= 0 {
		return defaultInitialBackoff
	}
	if current >= maxBackoff {
		return maxBackoff
	}
	next := current * 2
	if next > maxBackoff || next < current {
		return maxBackoff
	}
	return next
}
