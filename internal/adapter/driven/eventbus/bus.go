package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
)

var (
	ErrClosed            = errors.New("event bus is closed")
	ErrUnknownSubscriber = errors.New("unknown subscriber")
	ErrDuplicateName     = errors.New("subscriber already registered")
	ErrNotResettable     = errors.New("subscriber cannot be reset")
)

// Defaults applied to zero-valued Config fields
const (
	DefaultBufferSize   = 1024
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 100 * time.Millisecond
)

// Config tunes per-subscriber queues and delivery retries
type Config struct {
	BufferSize   int
	MaxAttempts  int
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	return c
}

type resetResult struct {
	replayed int64
	err      error
}

type delivery struct {
	event domain.Event
	ctx   context.Context
	reset chan resetResult
}

type subscription struct {
	subscriber port.EventSubscriber
	queue      chan delivery
}

// Bus fans published events out to subscribers. Each subscriber has its own
// ordered queue drained by one goroutine, so a slow subscriber never blocks
// the others beyond its queue capacity.
type Bus struct {
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool
	wg     sync.WaitGroup
}

// New creates an event bus. logger and metrics may be nil.
func New(cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		cfg:     cfg.withDefaults(),
		logger:  logger.With(slog.String("component", "eventbus")),
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[string]*subscription),
	}
}

// Subscribe registers s and starts its delivery goroutine
func (b *Bus) Subscribe(s port.EventSubscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if _, ok := b.subs[s.Name()]; ok {
		return errors.Wrap(ErrDuplicateName, s.Name())
	}

	sub := &subscription{subscriber: s, queue: make(chan delivery, b.cfg.BufferSize)}
	b.subs[s.Name()] = sub
	b.wg.Add(1)
	go b.consume(sub)

	b.logger.Info("subscriber registered", slog.String("subscriber", s.Name()))
	return nil
}

// Publish implements port.EventPublisher. It blocks only while a
// subscriber queue is full.
func (b *Bus) Publish(ctx context.Context, events ...domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for _, sub := range b.subs {
		for _, e := range events {
			select {
			case sub.queue <- delivery{event: e}:
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "publish to %s", sub.subscriber.Name())
			}
		}
	}
	return nil
}

// Reset implements port.SubscriptionResetter. The rebuild runs on the
// subscriber's own goroutine, after every event queued before it and
// before every event queued after it.
func (b *Bus) Reset(ctx context.Context, name string) (int64, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return 0, ErrClosed
	}
	sub, ok := b.subs[name]
	if !ok {
		b.mu.RUnlock()
		return 0, errors.Wrap(ErrUnknownSubscriber, name)
	}
	if _, ok := sub.subscriber.(port.ResettableSubscriber); !ok {
		b.mu.RUnlock()
		return 0, errors.Wrap(ErrNotResettable, name)
	}

	result := make(chan resetResult, 1)
	select {
	case sub.queue <- delivery{ctx: context.WithoutCancel(ctx), reset: result}:
		b.mu.RUnlock()
	case <-ctx.Done():
		b.mu.RUnlock()
		return 0, ctx.Err()
	}

	select {
	case r := <-result:
		return r.replayed, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close stops intake and waits until every queued event was delivered or
// ctx ends.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for _, sub := range b.subs {
			close(sub.queue)
		}
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		return ctx.Err()
	}
}

func (b *Bus) consume(sub *subscription) {
	defer b.wg.Done()
	for d := range sub.queue {
		if d.reset != nil {
			replayed, err := sub.subscriber.(port.ResettableSubscriber).Rebuild(d.ctx)
			d.reset <- resetResult{replayed: replayed, err: err}
			continue
		}
		b.deliver(sub.subscriber, d.event)
	}
}

func (b *Bus) deliver(s port.EventSubscriber, e domain.Event) {
	var err error
	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		if err = s.Handle(b.ctx, e); err == nil {
			return
		}
		if errors.Is(err, domain.ErrProjectorStopped) || b.ctx.Err() != nil {
			break
		}
		if attempt < b.cfg.MaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * b.cfg.RetryBackoff):
			case <-b.ctx.Done():
			}
		}
	}

	if b.metrics != nil {
		b.metrics.DeliveryFailuresTotal.WithLabelValues(s.Name()).Inc()
	}
	b.logger.Error("event delivery failed",
		slog.String("subscriber", s.Name()),
		slog.String("alert_id", e.AlertID.String()),
		slog.String("type", string(e.Type)),
		slog.Int64("sequence", e.Sequence),
		slog.String("error", err.Error()),
	)
}
