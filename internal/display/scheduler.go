package display

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// DefaultOperationDelay is the pause after each refresh.
const DefaultOperationDelay = 2 * time.Second

// ErrSchedulerStopped is returned by Stop when called twice.
var ErrSchedulerStopped = errors.New("scheduler already stopped")

// Scheduler refreshes displays in the background. Requests for the same
// display coalesce while pending, only one refresh runs at a time and every
// refresh is followed by a fixed delay to stay under chat platform limits.
type Scheduler struct {
	registry  *Registry
	reader    TenantReader
	messenger Messenger
	renderer  *Renderer
	clock     Clock
	metrics   *Metrics
	logger    *zap.Logger
	delay     time.Duration

	// spawn starts the drain loop.
	spawn func(func())

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pending  map[Key]struct{}
	order    []Key
	draining bool
	stopped  bool
	done     chan struct{}
}

// SchedulerParams groups the scheduler dependencies.
type SchedulerParams struct {
	Registry       *Registry
	Reader         TenantReader
	Messenger      Messenger
	Renderer       *Renderer
	Clock          Clock
	Metrics        *Metrics
	Logger         *zap.Logger
	OperationDelay time.Duration
}

// NewScheduler creates an idle Scheduler.
func NewScheduler(p SchedulerParams) *Scheduler {
	if p.Clock == nil {
		p.Clock = SystemClock{}
	}
	if p.OperationDelay <= 0 {
		p.OperationDelay = DefaultOperationDelay
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		registry:  p.Registry,
		reader:    p.Reader,
		messenger: p.Messenger,
		renderer:  p.Renderer,
		clock:     p.Clock,
		metrics:   p.Metrics,
		logger:    p.Logger.Named("display_scheduler"),
		delay:     p.OperationDelay,
		spawn:     func(fn func()) { go fn() },
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[Key]struct{}),
	}
}

// Enqueue requests a refresh of a guild display. It never blocks. A request
// for a display that is already pending is merged into the pending one.
// Returns false once the scheduler is stopped.
func (s *Scheduler) Enqueue(guildID snowflake.ID, kind Kind) bool {
	key := Key{GuildID: guildID, Kind: kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	if _, ok := s.pending[key]; !ok {
		s.pending[key] = struct{}{}
		s.order = append(s.order, key)
		s.metrics.setPending(len(s.order))
	}

	if !s.draining {
		s.draining = true
		s.done = make(chan struct{})
		done := s.done
		s.spawn(func() { s.drain(done) })
	}

	return true
}

// Pending returns the number of queued refreshes.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.order)
}

// Draining reports whether the drain loop is running.
func (s *Scheduler) Draining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.draining
}

// Stop rejects further requests and waits for the running drain to finish.
// If ctx expires first, the drain is cancelled and ctx.Err() is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	s.stopped = true
	done := s.done
	s.mu.Unlock()

	if done == nil {
		s.cancel()
		return nil
	}

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// next pops the oldest pending key. When nothing is left the scheduler
// returns to idle and ok is false.
func (s *Scheduler) next() (Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 || s.ctx.Err() != nil {
		s.draining = false
		s.done = nil
		return Key{}, false
	}

	key := s.order[0]
	s.order[0] = Key{}
	s.order = s.order[1:]
	delete(s.pending, key)
	s.metrics.setPending(len(s.order))

	return key, true
}

// drain refreshes pending displays one at a time until the queue is empty.
func (s *Scheduler) drain(done chan struct{}) {
	defer close(done)

	start := s.clock.Now()
	processed := 0

	for {
		key, ok := s.next()
		if !ok {
			break
		}

		outcome := s.refresh(s.ctx, key)
		s.metrics.observeRefresh(key.Kind, outcome)
		processed++

		if err := s.clock.Sleep(s.ctx, s.delay); err != nil {
			s.logger.Debug("Drain interrupted", zap.Error(err))
		}
	}

	elapsed := s.clock.Now().Sub(start)
	s.metrics.observeDrain(elapsed)
	s.logger.Debug("Drain finished",
		zap.Int("processed", processed),
		zap.Duration("elapsed", elapsed))
}

// refresh re-renders one display and edits its message in place.
func (s *Scheduler) refresh(ctx context.Context, key Key) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Display refresh panicked",
				zap.Uint64("guildID", uint64(key.GuildID)),
				zap.String("kind", key.Kind.String()),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			outcome = OutcomeFailed
		}
	}()

	handle, ok := s.registry.Lookup(key.GuildID, key.Kind)
	if !ok {
		return OutcomeSkipped
	}

	if err := s.messenger.ResolveChannel(ctx, handle.ChannelID); err != nil {
		return s.fail(ctx, handle, "resolve channel", err)
	}

	if err := s.messenger.FetchMessage(ctx, handle.ChannelID, handle.MessageID); err != nil {
		return s.fail(ctx, handle, "fetch message", err)
	}

	now := s.clock.Now()
	s.registry.Touch(key, now)

	state, err := s.renderer.LoadState(ctx, s.reader, key, now, s.clock.Now())
	if err != nil {
		return s.fail(ctx, handle, "load state", err)
	}

	artifact := s.renderer.Render(key.Kind, state)
	if err := s.messenger.EditMessage(ctx, handle.ChannelID, handle.MessageID, artifact); err != nil {
		return s.fail(ctx, handle, "edit message", err)
	}

	return OutcomePublished
}

// fail unregisters displays whose target is gone and keeps the rest.
func (s *Scheduler) fail(ctx context.Context, handle Handle, step string, err error) string {
	fields := []zap.Field{
		zap.Uint64("guildID", uint64(handle.GuildID)),
		zap.String("kind", handle.Kind.String()),
		zap.Uint64("channelID", uint64(handle.ChannelID)),
		zap.Uint64("messageID", uint64(handle.MessageID)),
		zap.String("step", step),
		zap.Error(err),
	}

	if errors.Is(err, ErrTargetGone) {
		if !s.registry.UnregisterIf(ctx, handle) {
			s.logger.Info("Display target is gone but was replaced meanwhile", fields...)
			return OutcomeSkipped
		}
		s.logger.Info("Display target is gone, unregistered", fields...)
		return OutcomeGone
	}

	s.logger.Warn("Failed to refresh display", fields...)
	return OutcomeFailed
}

// Preview renders a display without publishing it.
func (s *Scheduler) Preview(ctx context.Context, guildID snowflake.ID, kind Kind) (*Artifact, error) {
	key := Key{GuildID: guildID, Kind: kind}

	last, ok := s.registry.LastRefresh(key)
	now := s.clock.Now()
	if !ok {
		last = now
	}

	state, err := s.renderer.LoadState(ctx, s.reader, key, last, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s state: %w", kind, err)
	}

	return s.renderer.Render(kind, state), nil
}
