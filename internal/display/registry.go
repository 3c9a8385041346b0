package display

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// recoverConcurrency bounds parallel guild reads during Recover.
const recoverConcurrency = 8

// Registry maps guild displays to their published messages and tracks when
// each was last refreshed.
type Registry struct {
	settings SettingStore
	clock    Clock
	logger   *zap.Logger

	// persistMu orders memory changes with their settings writes so a
	// delete never lands after a newer registration's mirror.
	persistMu sync.Mutex

	mu          sync.RWMutex
	handles     map[Key]Handle
	lastRefresh map[Key]time.Time
}

// NewRegistry creates an empty Registry mirrored to settings.
func NewRegistry(settings SettingStore, clock Clock, logger *zap.Logger) *Registry {
	return &Registry{
		settings:    settings,
		clock:       clock,
		logger:      logger.Named("display_registry"),
		handles:     make(map[Key]Handle),
		lastRefresh: make(map[Key]time.Time),
	}
}

// Register stores the handle, replacing any previous one for the same key,
// and resets its refresh time to now. Mirror failures are logged only.
func (r *Registry) Register(ctx context.Context, handle Handle) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.put(handle)
	r.mirror(ctx, handle)
}

// put stores the handle in memory only.
func (r *Registry) put(handle Handle) {
	key := handle.Key()

	r.mu.Lock()
	r.handles[key] = handle
	r.lastRefresh[key] = r.clock.Now()
	r.mu.Unlock()
}

func (r *Registry) mirror(ctx context.Context, handle Handle) {
	data, err := sonic.MarshalString(handle)
	if err != nil {
		r.logger.Error("Failed to encode display handle", zap.Error(err))
		return
	}

	if err := r.settings.SetSetting(ctx, handle.GuildID, handle.Kind.SettingKey(), data); err != nil {
		r.logger.Error("Failed to persist display handle",
			zap.Uint64("guildID", uint64(handle.GuildID)),
			zap.String("kind", handle.Kind.String()),
			zap.Error(err))
	}
}

// Lookup returns the handle of a guild display.
func (r *Registry) Lookup(guildID snowflake.ID, kind Kind) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handle, ok := r.handles[Key{GuildID: guildID, Kind: kind}]
	return handle, ok
}

// Unregister forgets a guild display and its persisted handle, whether or
// not it was loaded. Unregistering an unknown display is a no-op.
func (r *Registry) Unregister(ctx context.Context, guildID snowflake.ID, kind Kind) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	key := Key{GuildID: guildID, Kind: kind}

	r.mu.Lock()
	delete(r.handles, key)
	delete(r.lastRefresh, key)
	r.mu.Unlock()

	r.deleteSetting(ctx, key)
}

// UnregisterIf forgets the display only while handle is still the
// registered one. Returns false when the display was replaced or removed.
func (r *Registry) UnregisterIf(ctx context.Context, handle Handle) bool {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	key := handle.Key()

	r.mu.Lock()
	current, ok := r.handles[key]
	if !ok || current != handle {
		r.mu.Unlock()
		return false
	}
	delete(r.handles, key)
	delete(r.lastRefresh, key)
	r.mu.Unlock()

	r.deleteSetting(ctx, key)
	return true
}

func (r *Registry) deleteSetting(ctx context.Context, key Key) {
	if err := r.settings.DeleteSetting(ctx, key.GuildID, key.Kind.SettingKey()); err != nil {
		r.logger.Error("Failed to delete persisted display handle",
			zap.Uint64("guildID", uint64(key.GuildID)),
			zap.String("kind", key.Kind.String()),
			zap.Error(err))
	}
}

// Guilds returns the guilds that have a display of the given kind, sorted by ID.
func (r *Registry) Guilds(kind Kind) []snowflake.ID {
	r.mu.RLock()
	guilds := make([]snowflake.ID, 0, len(r.handles))
	for key := range r.handles {
		if key.Kind == kind {
			guilds = append(guilds, key.GuildID)
		}
	}
	r.mu.RUnlock()

	slices.Sort(guilds)
	return guilds
}

// LastRefresh returns when the display was last refreshed.
func (r *Registry) LastRefresh(key Key) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.lastRefresh[key]
	return t, ok
}

// Touch records a refresh of a registered display.
func (r *Registry) Touch(key Key, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[key]; ok {
		r.lastRefresh[key] = at
	}
}

// Recover rebuilds the registry from persisted settings. Missing or
// malformed entries are skipped and never fail startup. Returns the number
// of recovered handles.
func (r *Registry) Recover(ctx context.Context) int {
	recovered := 0
	var countMu sync.Mutex

	for _, kind := range Kinds {
		guilds, err := r.settings.GuildsWithSetting(ctx, kind.SettingKey())
		if err != nil {
			r.logger.Warn("Failed to list persisted displays",
				zap.String("kind", kind.String()),
				zap.Error(err))
			continue
		}

		p := pool.New().WithMaxGoroutines(recoverConcurrency)
		for _, guildID := range guilds {
			p.Go(func() {
				if r.recoverOne(ctx, guildID, kind) {
					countMu.Lock()
					recovered++
					countMu.Unlock()
				}
			})
		}
		p.Wait()
	}

	r.logger.Info("Recovered display handles", zap.Int("count", recovered))

	return recovered
}

func (r *Registry) recoverOne(ctx context.Context, guildID snowflake.ID, kind Kind) bool {
	value, found, err := r.settings.GetSetting(ctx, guildID, kind.SettingKey())
	if err != nil {
		r.logger.Warn("Failed to read persisted display",
			zap.Uint64("guildID", uint64(guildID)),
			zap.String("kind", kind.String()),
			zap.Error(err))
		return false
	}
	if !found || value == "" {
		return false
	}

	var handle Handle
	if err := sonic.UnmarshalString(value, &handle); err != nil {
		r.logger.Warn("Ignoring malformed display handle",
			zap.Uint64("guildID", uint64(guildID)),
			zap.String("kind", kind.String()),
			zap.Error(err))
		return false
	}

	if handle.ChannelID == 0 || handle.MessageID == 0 {
		r.logger.Warn("Ignoring incomplete display handle",
			zap.Uint64("guildID", uint64(guildID)),
			zap.String("kind", kind.String()))
		return false
	}

	// The stored key is authoritative over the payload.
	handle.GuildID = guildID
	handle.Kind = kind
	r.put(handle)

	return true
}
