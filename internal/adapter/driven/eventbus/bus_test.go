package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name     string
	mu       sync.Mutex
	seen     []int64
	failures int
	rebuilds int
	calls    int
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Handle(ctx context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failures > 0 {
		r.failures--
		return errors.New("temporary failure")
	}
	r.seen = append(r.seen, e.Sequence)
	return nil
}

func (r *recorder) Rebuild(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuilds++
	r.seen = append(r.seen, -1)
	return int64(len(r.seen) - 1), nil
}

func (r *recorder) sequences() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.seen...)
}

type plain struct{ name string }

func (p plain) Name() string { return p.name }
func (p plain) Handle(ctx context.Context, e domain.Event) error { return nil }

func events(from, to int64) []domain.Event {
	id := uuid.New()
	var out []domain.Event
	for seq := from; seq <= to; seq++ {
		out = append(out, domain.Event{AlertID: id, Sequence: seq, Version: seq, Type: domain.EventAlertAssigned})
	}
	return out
}

func testConfig() Config {
	return Config{BufferSize: 16, MaxAttempts: 3, RetryBackoff: time.Millisecond}
}

func TestBus_DeliversInOrderToEverySubscriber(t *testing.T) {
	ctx := context.Background()
	bus := New(testConfig(), nil, nil)
	a, b := &recorder{name: "a"}, &recorder{name: "b"}
	require.NoError(t, bus.Subscribe(a))
	require.NoError(t, bus.Subscribe(b))

	require.NoError(t, bus.Publish(ctx, events(1, 5)...))
	require.NoError(t, bus.Close(ctx))

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, a.sequences())
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, b.sequences())
}

func TestBus_DuplicateSubscriber(t *testing.T) {
	bus := New(testConfig(), nil, nil)
	require.NoError(t, bus.Subscribe(&recorder{name: "a"}))

	err := bus.Subscribe(&recorder{name: "a"})

	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestBus_RetriesFailedDelivery(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds within attempts", func(t *testing.T) {
		bus := New(testConfig(), nil, nil)
		r := &recorder{name: "flaky", failures: 2}
		require.NoError(t, bus.Subscribe(r))

		require.NoError(t, bus.Publish(ctx, events(1, 1)...))
		require.NoError(t, bus.Close(ctx))

		assert.Equal(t, []int64{1}, r.sequences())
		assert.Equal(t, 3, r.calls)
	})

	t.Run("gives up and continues with next event", func(t *testing.T) {
		m := observability.NewMetrics(prometheus.NewRegistry(), "test")
		bus := New(testConfig(), nil, m)
		r := &recorder{name: "broken", failures: 3}
		require.NoError(t, bus.Subscribe(r))

		require.NoError(t, bus.Publish(ctx, events(1, 2)...))
		require.NoError(t, bus.Close(ctx))

		assert.Equal(t, []int64{2}, r.sequences())
		assert.Equal(t, float64(1), testutil.ToFloat64(m.DeliveryFailuresTotal.WithLabelValues("broken")))
	})
}

func TestBus_Reset(t *testing.T) {
	ctx := context.Background()

	t.Run("serialized with deliveries", func(t *testing.T) {
		bus := New(testConfig(), nil, nil)
		r := &recorder{name: "projection"}
		require.NoError(t, bus.Subscribe(r))

		require.NoError(t, bus.Publish(ctx, events(1, 3)...))
		replayed, err := bus.Reset(ctx, "projection")
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, events(4, 4)...))
		require.NoError(t, bus.Close(ctx))

		assert.Equal(t, int64(3), replayed)
		assert.Equal(t, []int64{1, 2, 3, -1, 4}, r.sequences())
	})

	t.Run("unknown subscriber", func(t *testing.T) {
		bus := New(testConfig(), nil, nil)

		_, err := bus.Reset(ctx, "missing")

		assert.ErrorIs(t, err, ErrUnknownSubscriber)
	})

	t.Run("not resettable", func(t *testing.T) {
		bus := New(testConfig(), nil, nil)
		require.NoError(t, bus.Subscribe(plain{name: "audit"}))

		_, err := bus.Reset(ctx, "audit")

		assert.ErrorIs(t, err, ErrNotResettable)
	})
}

func TestBus_Closed(t *testing.T) {
	ctx := context.Background()
	bus := New(testConfig(), nil, nil)
	require.NoError(t, bus.Close(ctx))

	assert.ErrorIs(t, bus.Publish(ctx, events(1, 1)...), ErrClosed)
	assert.ErrorIs(t, bus.Subscribe(&recorder{name: "late"}), ErrClosed)
	_, err := bus.Reset(ctx, "late")
	assert.ErrorIs(t, err, ErrClosed)
}
