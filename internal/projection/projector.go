package projection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
)

// Name identifies the alert projector on the event bus
const Name = "alert-projection"

// Defaults applied to zero-valued Config fields
const (
	DefaultBatchSize       = 100
	DefaultBatchTimeout    = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxPending      = 10000
	DefaultQueueSize       = 1024
	DefaultReplayPageSize  = 500

	maxTickInterval = 5 * time.Second
)

// FailurePolicy decides what happens to a batch whose bulk write failed
type FailurePolicy string

const (
	PolicyDrop    FailurePolicy = "drop"
	PolicyRequeue FailurePolicy = "requeue"
)

// Flush triggers, used as metric labels
const (
	triggerSize     = "size"
	triggerTimer    = "timer"
	triggerManual   = "manual"
	triggerShutdown = "shutdown"
)

// Config tunes batching and shutdown
type Config struct {
	BatchSize       int
	BatchTimeout    time.Duration
	ShutdownTimeout time.Duration
	FailurePolicy   FailurePolicy
	// MaxPending caps the batch when failed updates are requeued
	MaxPending     int
	QueueSize      int
	ReplayPageSize int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.FailurePolicy == "" {
		c.FailurePolicy = PolicyDrop
	}
	if c.MaxPending <= 0 {
		c.MaxPending = DefaultMaxPending
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.ReplayPageSize <= 0 {
		c.ReplayPageSize = DefaultReplayPageSize
	}
	return c
}

// TickInterval is how often the loop checks the batch age
func (c Config) TickInterval() time.Duration {
	tick := c.BatchTimeout / 2
	if tick > maxTickInterval {
		tick = maxTickInterval
	}
	if tick <= 0 {
		tick = time.Millisecond
	}
	return tick
}

type opKind int

const (
	opEvent opKind = iota
	opFlush
	opDiscard
)

type op struct {
	kind  opKind
	event domain.Event
	done  chan error
}

// Projector maintains alert documents in the read store. Creation events are
// written immediately; every other event becomes a partial update that is
// batched and written in bulk when the batch is full or old enough.
//
// All batch state is owned by a single goroutine fed through a channel.
type Projector struct {
	cfg     Config
	store   port.ReadStore
	events  port.EventStore
	logger  *slog.Logger
	metrics *observability.Metrics

	ops    chan op
	done   chan struct{}
	cancel context.CancelFunc

	mu      sync.RWMutex
	started bool
	stopped bool

	// replayed is the highest sequence projected by the last rebuild
	replayed atomic.Int64
	pending  atomic.Int64

	// owned by run
	batch     []domain.DocumentUpdate
	notes     map[string][]domain.AlertNote
	lastFlush time.Time
}

// Option configures a Projector
type Option func(*Projector)

// WithLogger sets the projector's logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics the projector records to
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Projector) { p.metrics = m }
}

// NewProjector creates a projector writing to store. events is read during
// rebuilds.
func NewProjector(store port.ReadStore, events port.EventStore, cfg Config, opts ...Option) *Projector {
	cfg = cfg.withDefaults()
	p := &Projector{
		cfg:    cfg,
		store:  store,
		events: events,
		logger: slog.Default(),
		ops:    make(chan op, cfg.QueueSize),
		done:   make(chan struct{}),
		notes:  make(map[string][]domain.AlertNote),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", Name))
	return p
}

// Name implements port.EventSubscriber
func (p *Projector) Name() string {
	return Name
}

// Start launches the consumer loop. The loop outlives ctx cancellation and
// ends only through Stop.
func (p *Projector) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.lastFlush = time.Now()
	go p.run(loopCtx)

	p.logger.Info("projector started",
		slog.Int("batch_size", p.cfg.BatchSize),
		slog.Duration("batch_timeout", p.cfg.BatchTimeout),
		slog.Duration("tick", p.cfg.TickInterval()),
		slog.String("failure_policy", string(p.cfg.FailurePolicy)),
	)
}

// Stop stops intake, drains queued events and performs a final flush. It
// waits at most the configured shutdown timeout.
func (p *Projector) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.stopped = true
		p.mu.Unlock()
		return nil
	}
	if !p.stopped {
		p.stopped = true
		close(p.ops)
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		p.logger.Info("projector stopped")
		return nil
	case <-timer.C:
		p.cancel()
		return errors.Errorf("projector did not stop within %s", p.cfg.ShutdownTimeout)
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

// Handle implements port.EventSubscriber. Events already covered by the
// last rebuild are skipped.
func (p *Projector) Handle(ctx context.Context, e domain.Event) error {
	if e.Sequence > 0 && e.Sequence <= p.replayed.Load() {
		return nil
	}
	return p.project(ctx, e)
}

// Flush writes the current batch and waits for the write to finish
func (p *Projector) Flush(ctx context.Context) error {
	return p.call(ctx, opFlush)
}

// Pending returns the number of updates waiting for the next flush
func (p *Projector) Pending() int {
	return int(p.pending.Load())
}

// Rebuild implements port.ResettableSubscriber: it discards pending updates,
// resets the read store and replays the full history.
func (p *Projector) Rebuild(ctx context.Context) (int64, error) {
	start := time.Now()
	if err := p.BeginRebuild(ctx); err != nil {
		return 0, err
	}
	total, err := p.finish(ctx)
	if err != nil {
		return total, err
	}
	p.logger.Info("projection rebuilt",
		slog.Int64("events", total),
		slog.Int64("last_sequence", p.replayed.Load()),
		slog.Duration("duration", time.Since(start)),
	)
	return total, nil
}

// BeginRebuild implements port.ProjectionReplayer
func (p *Projector) BeginRebuild(ctx context.Context) error {
	if err := p.call(ctx, opDiscard); err != nil {
		return err
	}
	p.replayed.Store(0)
	if err := p.store.Reset(ctx); err != nil {
		return errors.Wrap(err, "reset read store")
	}
	p.logger.Info("projection reset")
	return nil
}

// ReplayPage implements port.ProjectionReplayer
func (p *Projector) ReplayPage(ctx context.Context, afterSequence int64, limit int) (int64, int, error) {
	if limit <= 0 {
		limit = p.cfg.ReplayPageSize
	}
	events, err := p.events.LoadAfter(ctx, afterSequence, limit)
	if err != nil {
		return afterSequence, 0, errors.Wrap(err, "load events")
	}

	last := afterSequence
	for i, e := range events {
		if err := p.project(ctx, e); err != nil {
			return last, i, errors.Wrapf(err, "replay sequence %d", e.Sequence)
		}
		last = e.Sequence
		p.replayed.Store(last)
	}
	return last, len(events), nil
}

// FinishRebuild implements port.ProjectionReplayer. Events appended since
// the last replayed page are replayed before the final flush.
func (p *Projector) FinishRebuild(ctx context.Context) error {
	_, err := p.finish(ctx)
	return err
}

func (p *Projector) finish(ctx context.Context) (int64, error) {
	var total int64
	after := p.replayed.Load()
	for {
		last, n, err := p.ReplayPage(ctx, after, p.cfg.ReplayPageSize)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		after = last
	}
	return total, p.Flush(ctx)
}

func (p *Projector) project(ctx context.Context, e domain.Event) error {
	if e.Type == domain.EventAlertCreated {
		return p.upsert(ctx, e)
	}
	return p.submit(ctx, op{kind: opEvent, event: e})
}

func (p *Projector) upsert(ctx context.Context, e domain.Event) error {
	p.mu.RLock()
	stopped := p.stopped
	p.mu.RUnlock()
	if stopped {
		return domain.ErrProjectorStopped
	}

	if err := p.store.Upsert(ctx, CreatedDocument(e)); err != nil {
		werr := &domain.ProjectionWriteError{Op: "upsert", Count: 1, Err: err}
		p.logger.LogAttrs(ctx, slog.LevelError, "failed to write alert document",
			slog.String("alert_id", e.AlertID.String()),
			slog.String("error", werr.Error()),
		)
		return werr
	}
	p.countProjected(e)
	return nil
}

func (p *Projector) submit(ctx context.Context, o op) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.started || p.stopped {
		return domain.ErrProjectorStopped
	}
	select {
	case p.ops <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Projector) call(ctx context.Context, kind opKind) error {
	done := make(chan error, 1)
	if err := p.submit(ctx, op{kind: kind, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Projector) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case o, ok := <-p.ops:
			if !ok {
				_ = p.flush(ctx, triggerShutdown)
				return
			}
			p.dispatch(ctx, o)
		case <-ticker.C:
			if len(p.batch) > 0 && time.Since(p.lastFlush) >= p.cfg.BatchTimeout {
				_ = p.flush(ctx, triggerTimer)
			}
		}
	}
}

func (p *Projector) dispatch(ctx context.Context, o op) {
	switch o.kind {
	case opEvent:
		p.enqueue(ctx, o.event)
	case opFlush:
		o.done <- p.flush(ctx, triggerManual)
	case opDiscard:
		if n := len(p.batch); n > 0 {
			p.logger.Info("discarding pending updates", slog.Int("count", n))
		}
		p.batch = nil
		p.notes = make(map[string][]domain.AlertNote)
		p.setPending()
		o.done <- nil
	}
}

func (p *Projector) enqueue(ctx context.Context, e domain.Event) {
	var (
		update domain.DocumentUpdate
		ok     bool
	)
	if n, isNote := e.Payload.(domain.NoteAdded); isNote {
		notes, err := p.currentNotes(ctx, e.AlertID.String())
		if err != nil {
			p.logger.LogAttrs(ctx, slog.LevelError, "failed to load alert notes",
				slog.String("alert_id", e.AlertID.String()),
				slog.String("error", err.Error()),
			)
			p.countDropped(1)
			return
		}
		update, ok = NoteUpdate(e, n.Note, notes)
	} else {
		update, ok = FieldUpdate(e)
	}
	if !ok {
		p.logger.LogAttrs(ctx, slog.LevelDebug, "event has no document update",
			slog.String("alert_id", e.AlertID.String()),
			slog.String("type", string(e.Type)),
			slog.Int64("sequence", e.Sequence),
		)
		return
	}

	p.add(update)
	p.countProjected(e)

	if len(p.batch) >= p.cfg.BatchSize {
		_ = p.flush(ctx, triggerSize)
	}
}

// currentNotes prefers the pending batch over the stored document
func (p *Projector) currentNotes(ctx context.Context, alertID string) ([]domain.AlertNote, error) {
	if notes, ok := p.notes[alertID]; ok {
		return notes, nil
	}
	doc, err := p.store.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}
	return doc.Notes, nil
}

func (p *Projector) add(updates ...domain.DocumentUpdate) {
	for _, u := range updates {
		p.batch = append(p.batch, u)
		if notes, ok := u.Fields[fieldNotes].([]domain.AlertNote); ok {
			p.notes[u.AlertID] = notes
		}
	}
	p.setPending()
}

func (p *Projector) flush(ctx context.Context, trigger string) error {
	if len(p.batch) == 0 {
		return nil
	}

	batch := p.batch
	p.batch = nil
	p.notes = make(map[string][]domain.AlertNote)
	p.lastFlush = time.Now()
	p.setPending()

	start := time.Now()
	err := p.store.BulkUpdate(ctx, batch)
	if err == nil {
		p.countFlush(trigger, "ok", len(batch))
		p.logger.LogAttrs(ctx, slog.LevelDebug, "projection batch flushed",
			slog.String("trigger", trigger),
			slog.Int("count", len(batch)),
			slog.Duration("duration", time.Since(start)),
		)
		return nil
	}

	werr := &domain.ProjectionWriteError{Op: "bulk_update", Count: len(batch), Err: err}
	p.countFlush(trigger, "failed", len(batch))
	p.logger.LogAttrs(ctx, slog.LevelError, "projection batch failed",
		slog.String("trigger", trigger),
		slog.Int("count", len(batch)),
		slog.String("policy", string(p.cfg.FailurePolicy)),
		slog.String("error", werr.Error()),
	)
	p.recoverBatch(batch, trigger)
	return werr
}

// recoverBatch applies the failure policy to a batch whose write failed.
// Requeued updates go ahead of newer ones; the oldest are dropped once the
// batch would exceed MaxPending.
func (p *Projector) recoverBatch(failed []domain.DocumentUpdate, trigger string) {
	if p.cfg.FailurePolicy != PolicyRequeue || trigger == triggerShutdown {
		p.countDropped(len(failed))
		return
	}

	room := p.cfg.MaxPending - len(p.batch)
	if room < 0 {
		room = 0
	}
	if len(failed) > room {
		p.countDropped(len(failed) - room)
		failed = failed[len(failed)-room:]
	}

	current := p.batch
	p.batch = nil
	p.notes = make(map[string][]domain.AlertNote)
	p.add(failed...)
	p.add(current...)
}

func (p *Projector) setPending() {
	p.pending.Store(int64(len(p.batch)))
	if p.metrics != nil {
		p.metrics.ProjectionPending.Set(float64(len(p.batch)))
	}
}

func (p *Projector) countProjected(e domain.Event) {
	if p.metrics != nil {
		p.metrics.ProjectedEventsTotal.WithLabelValues(string(e.Type)).Inc()
	}
}

func (p *Projector) countFlush(trigger, result string, size int) {
	if p.metrics != nil {
		p.metrics.ProjectionFlushes.WithLabelValues(trigger, result).Inc()
		p.metrics.ProjectionBatchSize.Observe(float64(size))
	}
}

func (p *Projector) countDropped(n int) {
	if n > 0 && p.metrics != nil {
		p.metrics.ProjectionDropped.Add(float64(n))
	}
	if n > 0 {
		p.logger.Warn("dropped projection updates", slog.Int("count", n))
	}
}
