package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by TrySubmit when the buffer has no room.
var ErrQueueFull = errors.New("queue is full")

// ErrNotRunning is returned when submitting to a queue that is not started or already stopped.
var ErrNotRunning = errors.New("queue is not running")

// Handler processes one item.
type Handler[T any] func(context.Context, T) error

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryMin   time.Duration
	RetryMax   time.Duration
	Logger     *zap.Logger
}

// Queue is an in-memory worker pool. Failed items are retried in place with exponential backoff;
// Stop drains whatever is still buffered before returning.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config
	logger  *zap.Logger

	items   chan T
	wg      sync.WaitGroup
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// New builds a queue that dispatches to handler.
func New[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryMin <= 0 {
		cfg.RetryMin = 100 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		items:   make(chan T, cfg.BufferSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.running = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Running reports whether the queue accepts items.
func (q *Queue[T]) Running() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.running
}

// Stop stops accepting items, processes what is buffered and waits for the workers. If ctx
// expires first, in-flight retries are abandoned.
func (q *Queue[T]) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	close(q.items)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		q.logger.Info("queue stopped")
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return fmt.Errorf("stop queue %s: %w", q.name, ctx.Err())
	}
}

// TrySubmit enqueues item without blocking.
func (q *Queue[T]) TrySubmit(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return ErrNotRunning
	}
	select {
	case q.items <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for item := range q.items {
		q.process(item)
	}
}

func (q *Queue[T]) process(item T) {
	boff := &backoff.Backoff{Min: q.cfg.RetryMin, Max: q.cfg.RetryMax, Factor: 2, Jitter: true}
	for attempt := 0; ; attempt++ {
		err := q.handler(q.ctx, item)
		if err == nil {
			return
		}
		if attempt >= q.cfg.MaxRetries {
			q.logger.Error("job dropped after retries", zap.Int("attempts", attempt+1), zap.Error(err))
			return
		}
		wait := boff.Duration()
		q.logger.Warn("job failed, retrying", zap.Int("attempt", attempt+1), zap.Duration("retry_in", wait), zap.Error(err))
		timer := time.NewTimer(wait)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
