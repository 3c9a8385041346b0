package display

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// Sweep defaults.
const (
	DefaultRefreshInterval = 60 * time.Second
	DefaultSweepStagger    = 5 * time.Second
)

// Enqueuer accepts refresh requests.
type Enqueuer interface {
	Enqueue(guildID snowflake.ID, kind Kind) bool
}

// Ticker runs periodic work after each display sweep.
type Ticker interface {
	Tick(ctx context.Context)
}

// Sweeper periodically requests a refresh of every registered display so
// that age captions and missed updates catch up.
type Sweeper struct {
	registry *Registry
	queue    Enqueuer
	clock    Clock
	logger   *zap.Logger
	interval time.Duration
	stagger  time.Duration
	tickers  []Ticker
}

// NewSweeper creates a Sweeper. Non-positive durations use the defaults.
func NewSweeper(
	registry *Registry, queue Enqueuer, clock Clock, interval, stagger time.Duration, logger *zap.Logger,
) *Sweeper {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if stagger <= 0 {
		stagger = DefaultSweepStagger
	}

	return &Sweeper{
		registry: registry,
		queue:    queue,
		clock:    clock,
		logger:   logger.Named("display_sweeper"),
		interval: interval,
		stagger:  stagger,
	}
}

// AddTicker runs t after every sweep. It must be called before Run.
func (w *Sweeper) AddTicker(t Ticker) {
	w.tickers = append(w.tickers, t)
}

// Run sweeps every interval until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	w.logger.Info("Display sweeper started",
		zap.Duration("interval", w.interval),
		zap.Duration("stagger", w.stagger))

	for {
		if err := w.clock.Sleep(ctx, w.interval); err != nil {
			w.logger.Info("Display sweeper stopped")
			return
		}

		if err := w.SweepOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info("Display sweeper stopped")
				return
			}
			w.logger.Error("Display sweep failed", zap.Error(err))
		}
	}
}

// SweepOnce enqueues every stock board, waits the stagger, enqueues every
// leaderboard, then runs the tickers.
func (w *Sweeper) SweepOnce(ctx context.Context) error {
	stock := w.enqueueAll(KindStock)

	if err := w.clock.Sleep(ctx, w.stagger); err != nil {
		return err
	}

	leaderboard := w.enqueueAll(KindLeaderboard)

	w.logger.Debug("Display sweep enqueued",
		zap.Int("stock", stock),
		zap.Int("leaderboard", leaderboard))

	for _, t := range w.tickers {
		t.Tick(ctx)
	}

	return ctx.Err()
}

func (w *Sweeper) enqueueAll(kind Kind) int {
	count := 0
	for _, guildID := range w.registry.Guilds(kind) {
		if w.queue.Enqueue(guildID, kind) {
			count++
		}
	}
	return count
}
