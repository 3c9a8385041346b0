package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
)

// Limiter enforces a per-user command cooldown shared across bot instances.
type Limiter struct {
	client rueidis.Client
	window time.Duration
}

// New creates a cooldown limiter. A non-positive window disables it.
func New(client rueidis.Client, window time.Duration) *Limiter {
	return &Limiter{client: client, window: window}
}

// Allow starts a cooldown for the user and command. When one is already
// running it returns false and the time left.
func (l *Limiter) Allow(ctx context.Context, userID snowflake.ID, command string) (bool, time.Duration, error) {
	if l.window <= 0 {
		return true, 0, nil
	}

	key := fmt.Sprintf("cooldown:%s:%d", command, userID)

	err := l.client.Do(ctx, l.client.B().Set().
		Key(key).
		Value("1").
		Nx().
		Px(l.window).
		Build()).Error()
	if err == nil {
		return true, 0, nil
	}
	if !rueidis.IsRedisNil(err) {
		return false, 0, fmt.Errorf("failed to set cooldown: %w", err)
	}

	ttl, err := l.client.Do(ctx, l.client.B().Pttl().Key(key).Build()).AsInt64()
	if err != nil {
		return false, 0, fmt.Errorf("failed to read cooldown: %w", err)
	}

	return false, time.Duration(max(ttl, 0)) * time.Millisecond, nil
}
