// Package poller drives a backend task to a terminal state by fetching its
// status in a loop.
//
// Fetches never overlap: the next one is scheduled only after the previous
// returned. Transport errors do not stop the loop; it retries on the error
// interval, without limit unless Options.MaxErrors is set. Each Start bumps a
// monotonic generation and cancels the previous loop, and every handler call
// carries the generation it belongs to so consumers can drop stale updates.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"spacesweep/internal/logging"
)

type Status int

const (
	Pending Status = iota
	Completed
	Failed
)

type Generation uint64

type FetchFunc[T any] func(ctx context.Context) (T, error)

type ClassifyFunc[T any] func(T) Status

// Handlers are invoked from the polling goroutine. Nil handlers are skipped.
// Exactly one of OnCompleted, OnFailed or OnGiveUp ends a loop that is not
// stopped first.
type Handlers[T any] struct {
	OnProgress  func(Generation, T)
	OnCompleted func(Generation, T)
	OnFailed    func(Generation, T)
	OnError     func(Generation, error)
	OnGiveUp    func(Generation, error)
}

type Options struct {
	Name          string
	Interval      time.Duration
	ErrorInterval time.Duration
	// MaxErrors caps consecutive transport errors. Zero retries forever.
	MaxErrors int
	Logger    *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		Interval:      time.Second,
		ErrorInterval: 2 * time.Second,
	}
}

type Poller[T any] struct {
	opts       Options
	logger     *slog.Logger
	mu         sync.Mutex
	generation Generation
	cancel     context.CancelFunc
	done       chan struct{}
}

func New[T any](opts Options) *Poller[T] {
	defaults := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.ErrorInterval <= 0 {
		opts.ErrorInterval = defaults.ErrorInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Name != "" {
		logger = logger.With(slog.String("poller", opts.Name))
	}
	return &Poller[T]{opts: opts, logger: logger}
}

// Start cancels any running loop and begins a new one under a fresh
// generation.
func (poller *Poller[T]) Start(ctx context.Context, fetch FetchFunc[T], classify ClassifyFunc[T], handlers Handlers[T]) Generation {
	poller.mu.Lock()
	if poller.cancel != nil {
		poller.cancel()
	}
	poller.generation++
	generation := poller.generation
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	poller.cancel = cancel
	poller.done = done
	poller.mu.Unlock()

	poller.logger.Debug("poll loop started", slog.Uint64("generation", uint64(generation)))
	go func() {
		defer close(done)
		defer cancel()
		poller.run(loopCtx, generation, fetch, classify, handlers)
	}()
	return generation
}

// Stop cancels the running loop, if any. Handlers that have not started yet
// will not run.
func (poller *Poller[T]) Stop() {
	poller.mu.Lock()
	defer poller.mu.Unlock()
	if poller.cancel != nil {
		poller.cancel()
		poller.cancel = nil
	}
}

// Wait blocks until the most recently started loop has exited.
func (poller *Poller[T]) Wait() {
	poller.mu.Lock()
	done := poller.done
	poller.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (poller *Poller[T]) Generation() Generation {
	poller.mu.Lock()
	defer poller.mu.Unlock()
	return poller.generation
}

func (poller *Poller[T]) Current(generation Generation) bool {
	return poller.Generation() == generation
}

func (poller *Poller[T]) Running() bool {
	poller.mu.Lock()
	done := poller.done
	poller.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (poller *Poller[T]) run(ctx context.Context, generation Generation, fetch FetchFunc[T], classify ClassifyFunc[T], handlers Handlers[T]) {
	errorBackOff := poller.errorBackOff(ctx)
	for {
		if ctx.Err() != nil {
			return
		}
		value, err := fetch(ctx)
		if !poller.live(ctx, generation) {
			return
		}
		if err != nil {
			poller.logger.Warn("poll failed", slog.Uint64("generation", uint64(generation)), slog.Any("err", err))
			if handlers.OnError != nil {
				handlers.OnError(generation, err)
			}
			wait := errorBackOff.NextBackOff()
			if wait == backoff.Stop {
				if ctx.Err() == nil && handlers.OnGiveUp != nil {
					handlers.OnGiveUp(generation, err)
				}
				return
			}
			if !sleep(ctx, wait) {
				return
			}
			continue
		}
		errorBackOff.Reset()

		status := classify(value)
		if handlers.OnProgress != nil {
			handlers.OnProgress(generation, value)
		}
		switch status {
		case Completed:
			poller.logger.Debug("poll loop completed", slog.Uint64("generation", uint64(generation)))
			if handlers.OnCompleted != nil && poller.live(ctx, generation) {
				handlers.OnCompleted(generation, value)
			}
			return
		case Failed:
			poller.logger.Debug("poll loop saw failed task", slog.Uint64("generation", uint64(generation)))
			if handlers.OnFailed != nil && poller.live(ctx, generation) {
				handlers.OnFailed(generation, value)
			}
			return
		}
		if !sleep(ctx, poller.opts.Interval) {
			return
		}
	}
}

func (poller *Poller[T]) errorBackOff(ctx context.Context) backoff.BackOff {
	var policy backoff.BackOff = backoff.NewConstantBackOff(poller.opts.ErrorInterval)
	if poller.opts.MaxErrors > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(poller.opts.MaxErrors))
	}
	return backoff.WithContext(policy, ctx)
}

func (poller *Poller[T]) live(ctx context.Context, generation Generation) bool {
	return ctx.Err() == nil && poller.Current(generation)
}

func sleep(ctx context.Context, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
