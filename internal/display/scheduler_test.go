package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDelay = 2 * time.Second

type harness struct {
	clock     *fakeClock
	messenger *fakeMessenger
	store     *fakeStore
	registry  *Registry
	metrics   *Metrics
	scheduler *Scheduler

	mu      sync.Mutex
	spawned []func()
}

// newHarness builds a scheduler. With manual set, drains are captured
// instead of started so tests can run them synchronously.
func newHarness(t *testing.T, manual bool) *harness {
	t.Helper()

	h := &harness{
		clock:     newFakeClock(),
		messenger: newFakeMessenger(),
		store:     newFakeStore(),
		metrics:   NewMetrics(prometheus.NewRegistry()),
	}
	h.registry = NewRegistry(h.store, h.clock, zap.NewNop())
	h.scheduler = NewScheduler(SchedulerParams{
		Registry:       h.registry,
		Reader:         h.store,
		Messenger:      h.messenger,
		Renderer:       NewRenderer(testOptions()),
		Clock:          h.clock,
		Metrics:        h.metrics,
		Logger:         zap.NewNop(),
		OperationDelay: testDelay,
	})

	if manual {
		h.scheduler.spawn = func(fn func()) {
			h.mu.Lock()
			h.spawned = append(h.spawned, fn)
			h.mu.Unlock()
		}
	}

	return h
}

func (h *harness) register(t *testing.T, guildID snowflake.ID, kind Kind) Handle {
	t.Helper()

	handle := Handle{
		GuildID:   guildID,
		Kind:      kind,
		ChannelID: guildID*100 + snowflake.ID(kind),
		MessageID: guildID*1000 + snowflake.ID(kind),
	}
	h.registry.Register(t.Context(), handle)
	return handle
}

// runDrain runs the single captured drain to completion.
func (h *harness) runDrain(t *testing.T) {
	t.Helper()

	h.mu.Lock()
	spawned := h.spawned
	h.spawned = nil
	h.mu.Unlock()

	require.Len(t, spawned, 1, "expected exactly one drain to be started")
	spawned[0]()
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return !h.scheduler.Draining() }, 5*time.Second, time.Millisecond)
}

func TestSchedulerBackToBackDuplicatesCoalesce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	handle := h.register(t, 1, KindStock)

	assert.True(t, h.scheduler.Enqueue(1, KindStock))
	assert.True(t, h.scheduler.Enqueue(1, KindStock))
	assert.Equal(t, 1, h.scheduler.Pending())

	h.runDrain(t)

	edits := h.messenger.Edits()
	require.Len(t, edits, 1)
	assert.Equal(t, handle.ChannelID, edits[0].ChannelID)
	assert.Equal(t, handle.MessageID, edits[0].MessageID)
	assert.False(t, h.scheduler.Draining())
}

func TestSchedulerCoalescesWhileDraining(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	a := h.register(t, 1, KindStock)
	b := h.register(t, 2, KindStock)

	entered, release := h.messenger.blockNextEdit()

	h.scheduler.Enqueue(1, KindStock)
	<-entered

	// The first refresh is in flight; everything below queues behind it.
	for range 3 {
		h.scheduler.Enqueue(2, KindStock)
	}
	h.scheduler.Enqueue(1, KindStock)
	assert.Equal(t, 2, h.scheduler.Pending())

	release()
	h.waitIdle(t)

	edits := h.messenger.Edits()
	require.Len(t, edits, 3)
	assert.Equal(t, a.MessageID, edits[0].MessageID)
	assert.Equal(t, b.MessageID, edits[1].MessageID)
	assert.Equal(t, a.MessageID, edits[2].MessageID)
}

func TestSchedulerSingleDrainAtATime(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.register(t, 1, KindStock)
	h.register(t, 1, KindLeaderboard)

	h.scheduler.Enqueue(1, KindStock)
	h.scheduler.Enqueue(1, KindLeaderboard)
	h.scheduler.Enqueue(1, KindStock)

	h.runDrain(t)
	assert.Len(t, h.messenger.Edits(), 2)

	// A later request starts a fresh drain.
	h.scheduler.Enqueue(1, KindLeaderboard)
	h.runDrain(t)
	assert.Len(t, h.messenger.Edits(), 3)
}

func TestSchedulerOperationDelay(t *testing.T) {
	t.Parallel()

	const n = 4

	h := newHarness(t, true)
	for i := 1; i <= n; i++ {
		h.register(t, snowflake.ID(i), KindStock)
		h.scheduler.Enqueue(snowflake.ID(i), KindStock)
	}

	start := h.clock.Now()
	h.runDrain(t)

	edits := h.messenger.Edits()
	require.Len(t, edits, n)

	first := edits[0].Artifact.Timestamp
	last := edits[n-1].Artifact.Timestamp
	assert.GreaterOrEqual(t, last.Sub(first), (n-1)*testDelay)
	assert.GreaterOrEqual(t, h.clock.Now().Sub(start), (n-1)*testDelay)

	for _, d := range h.clock.Slept() {
		assert.Equal(t, testDelay, d)
	}
}

func TestSchedulerTargetGone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(h *harness, handle Handle)
	}{
		{
			name: "channel deleted",
			setup: func(h *harness, handle Handle) {
				h.messenger.goneChannels[handle.ChannelID] = true
			},
		},
		{
			name: "message deleted",
			setup: func(h *harness, handle Handle) {
				h.messenger.goneMessages[handle.MessageID] = true
			},
		},
		{
			name: "message deleted during edit",
			setup: func(h *harness, _ Handle) {
				h.messenger.editErr = ErrTargetGone
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, true)
			handle := h.register(t, 1, KindStock)
			tt.setup(h, handle)

			h.scheduler.Enqueue(1, KindStock)
			h.runDrain(t)

			_, ok := h.registry.Lookup(1, KindStock)
			assert.False(t, ok)

			_, ok = h.store.setting(1, "display:stock")
			assert.False(t, ok)

			assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Refreshes.WithLabelValues("stock", OutcomeGone)), 0)

			// Later requests for the display are silent no-ops.
			calls := h.messenger.Calls()
			h.scheduler.Enqueue(1, KindStock)
			h.runDrain(t)
			assert.Equal(t, calls, h.messenger.Calls())
			assert.Empty(t, h.messenger.Edits())
		})
	}
}

func TestSchedulerTargetGoneKeepsReplacedHandle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.register(t, 1, KindStock)
	h.messenger.editErr = ErrTargetGone

	entered, release := h.messenger.blockNextEdit()
	h.scheduler.Enqueue(1, KindStock)
	<-entered

	// The display is set up again while the old message is being edited.
	fresh := Handle{GuildID: 1, Kind: KindStock, ChannelID: 555, MessageID: 777}
	h.registry.Register(t.Context(), fresh)

	release()
	h.waitIdle(t)

	handle, ok := h.registry.Lookup(1, KindStock)
	require.True(t, ok)
	assert.Equal(t, fresh, handle)

	mirrored, ok := h.store.setting(1, "display:stock")
	require.True(t, ok)
	assert.Contains(t, mirrored, `"messageId":"777"`)

	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Refreshes.WithLabelValues("stock", OutcomeSkipped)), 0)
	assert.Zero(t, testutil.ToFloat64(h.metrics.Refreshes.WithLabelValues("stock", OutcomeGone)))
}

func TestSchedulerTransientFailureKeepsHandle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	handle := h.register(t, 1, KindStock)
	h.messenger.editErr = errTransient

	h.scheduler.Enqueue(1, KindStock)
	h.runDrain(t)

	kept, ok := h.registry.Lookup(1, KindStock)
	require.True(t, ok)
	assert.Equal(t, handle, kept)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Refreshes.WithLabelValues("stock", OutcomeFailed)), 0)

	// Recovers on the next attempt.
	h.messenger.editErr = nil
	h.scheduler.Enqueue(1, KindStock)
	h.runDrain(t)
	assert.Len(t, h.messenger.Edits(), 1)
}

func TestSchedulerNoHandleIsNoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)

	h.scheduler.Enqueue(1, KindLeaderboard)
	h.runDrain(t)

	assert.Zero(t, h.messenger.Calls())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Refreshes.WithLabelValues("leaderboard", OutcomeSkipped)), 0)
}

func TestSchedulerRecoversPanics(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.register(t, 1, KindStock)
	h.register(t, 2, KindStock)
	h.messenger.panicOnEdit = true

	h.scheduler.Enqueue(1, KindStock)
	h.scheduler.Enqueue(2, KindStock)
	h.runDrain(t)

	edits := h.messenger.Edits()
	require.Len(t, edits, 1)
	assert.Equal(t, snowflake.ID(2*1000), edits[0].MessageID)

	_, ok := h.registry.Lookup(1, KindStock)
	assert.True(t, ok)
}

func TestSchedulerRefreshUpdatesLastRefresh(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.store.addProduct(1, "A", "Alpha", 1000, 2)
	handle := h.register(t, 1, KindStock)

	h.clock.Advance(10 * time.Minute)
	h.scheduler.Enqueue(1, KindStock)
	h.runDrain(t)

	last, ok := h.registry.LastRefresh(handle.Key())
	require.True(t, ok)
	edits := h.messenger.Edits()
	require.Len(t, edits, 1)
	assert.Equal(t, edits[0].Artifact.Timestamp, last)
	assert.Contains(t, edits[0].Artifact.Body, "Rp 1.000")
	assert.Equal(t, "Updated 0 seconds ago", edits[0].Artifact.Footer)
}

func TestSchedulerStop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.register(t, 1, KindStock)

	h.scheduler.Enqueue(1, KindStock)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.scheduler.Stop(ctx))

	assert.Len(t, h.messenger.Edits(), 1)
	assert.False(t, h.scheduler.Enqueue(1, KindStock))
	assert.ErrorIs(t, h.scheduler.Stop(ctx), ErrSchedulerStopped)
}

func TestSchedulerStopCancelsDrain(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.register(t, 1, KindStock)
	h.register(t, 2, KindStock)

	entered, release := h.messenger.blockNextEdit()
	h.scheduler.Enqueue(1, KindStock)
	<-entered
	h.scheduler.Enqueue(2, KindStock)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- h.scheduler.Stop(ctx) }()

	<-h.scheduler.ctx.Done()
	release()
	require.ErrorIs(t, <-errCh, context.Canceled)

	// The in-flight refresh completes, the queued one is dropped.
	assert.Len(t, h.messenger.Edits(), 1)
}

func TestSchedulerPendingMetric(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	h.register(t, 1, KindStock)
	h.register(t, 2, KindStock)

	h.scheduler.Enqueue(1, KindStock)
	h.scheduler.Enqueue(2, KindStock)
	assert.InDelta(t, 2, testutil.ToFloat64(h.metrics.Pending), 0)

	h.runDrain(t)
	assert.InDelta(t, 0, testutil.ToFloat64(h.metrics.Pending), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(h.metrics.Refreshes.WithLabelValues("stock", OutcomePublished)), 0)
}
