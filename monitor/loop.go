package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRetriesExhausted is the fatal outcome of a loop that failed to
// render the configured number of consecutive times.
var ErrRetriesExhausted = errors.New("maximum render retries reached")

// How long the final display blank may take once the loop is already
// shutting down.
const blankTimeout = 3 * time.Second

// Renderer pushes a status screen to the display, raising on any
// transfer failure.
type Renderer interface {
	Render(ctx context.Context, ip, status string) error
	Blank(ctx context.Context) error
}

// pollState is the per-run loop state. consecutiveErrors resets to
// zero on any successful render.
type pollState struct {
	lastIP            string
	lastStatus        string
	rendered          bool
	consecutiveErrors int
}

// Loop samples the IP and stream status providers, renders to the
// display only when the values changed, and tolerates transient render
// failures up to a bound. Whatever the exit path, the display is
// blanked exactly once on the way out.
type Loop struct {
	renderer   Renderer
	ip         Provider
	status     Provider
	interval   time.Duration
	retryDelay time.Duration
	maxRetries int
	log        *slog.Logger
}

func NewLoop(cfg Config, renderer Renderer, ip, status Provider) *Loop {
	return &Loop{
		renderer:   renderer,
		ip:         ip,
		status:     status,
		interval:   time.Duration(cfg.Interval),
		retryDelay: time.Duration(cfg.RetryDelay),
		maxRetries: cfg.MaxRetries,
		log:        slog.Default().With("component", "monitor"),
	}
}

// Run drives the loop until ctx is cancelled (clean exit, nil) or the
// retry bound is exhausted (fatal, ErrRetriesExhausted). Cancellation
// is observed at the poll-interval and retry-delay suspension points,
// never later than one sleep quantum after it arrives.
func (l *Loop) Run(ctx context.Context) error {
	defer l.blankOnce()

	var state pollState
	for {
		if ctx.Err() != nil {
			return nil
		}

		ip := l.sample(ctx, l.ip, SentinelNoIP)
		status := l.sample(ctx, l.status, SentinelUnknown)

		if state.rendered && ip == state.lastIP && status == state.lastStatus {
			if !sleepCtx(ctx, l.interval) {
				return nil
			}
			continue
		}

		err := l.renderer.Render(ctx, ip, status)
		if err != nil {
			state.consecutiveErrors++
			l.log.Error("display update failed",
				"attempt", state.consecutiveErrors,
				"max", l.maxRetries,
				"error", err)
			if state.consecutiveErrors >= l.maxRetries {
				return fmt.Errorf("%w (%d attempts): %w", ErrRetriesExhausted, state.consecutiveErrors, err)
			}
			// values are re-sampled after the delay, not reused
			if !sleepCtx(ctx, l.retryDelay) {
				return nil
			}
			continue
		}

		state.lastIP = ip
		state.lastStatus = status
		state.rendered = true
		state.consecutiveErrors = 0
		l.log.Debug("display updated", "ip", ip, "status", status)

		if !sleepCtx(ctx, l.interval) {
			return nil
		}
	}
}

func (l *Loop) sample(ctx context.Context, p Provider, sentinel string) string {
	value, err := p(ctx)
	if err != nil {
		l.log.Warn("provider degraded", "sentinel", sentinel, "error", err)
		return sentinel
	}
	return value
}

// blankOnce clears the display on the way out, with a fresh context
// since the loop's own context is usually already cancelled. A failed
// blank is logged and otherwise ignored; it must not change the exit
// outcome.
func (l *Loop) blankOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), blankTimeout)
	defer cancel()
	if err := l.renderer.Blank(ctx); err != nil {
		l.log.Error("could not blank display on exit", "error", err)
	}
}

// sleepCtx pauses for d or until ctx is cancelled; it reports whether
// the full pause elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
