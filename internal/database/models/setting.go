package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/dbretry"
	"github.com/robalyx/storefront/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// SettingModel handles database operations for guild settings.
type SettingModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewSetting creates a SettingModel with database access.
func NewSetting(db *bun.DB, logger *zap.Logger) *SettingModel {
	return &SettingModel{
		db:     db,
		logger: logger.Named("db_setting"),
	}
}

// Get retrieves a setting value. The boolean is false when the key is unset.
func (r *SettingModel) Get(ctx context.Context, guildID snowflake.ID, key string) (string, bool, error) {
	type result struct {
		value string
		found bool
	}

	res, err := dbretry.Operation(ctx, func(ctx context.Context) (result, error) {
		setting := &types.GuildSetting{GuildID: guildID, Key: key}
		err := r.db.NewSelect().Model(setting).
			WherePK().
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return result{}, nil
			}
			return result{}, fmt.Errorf("failed to get setting: %w (guildID=%d, key=%s)", err, guildID, key)
		}
		return result{value: setting.Value, found: true}, nil
	})

	return res.value, res.found, err
}

// Set creates or replaces a setting value.
func (r *SettingModel) Set(ctx context.Context, guildID snowflake.ID, key, value string) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		setting := &types.GuildSetting{GuildID: guildID, Key: key, Value: value}
		_, err := r.db.NewInsert().Model(setting).
			On("CONFLICT (guild_id, key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save setting: %w (guildID=%d, key=%s)", err, guildID, key)
		}
		return nil
	})
}

// Delete removes a setting. Deleting a missing key is not an error.
func (r *SettingModel) Delete(ctx context.Context, guildID snowflake.ID, key string) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewDelete().Model((*types.GuildSetting)(nil)).
			Where("guild_id = ?", guildID).
			Where("key = ?", key).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete setting: %w (guildID=%d, key=%s)", err, guildID, key)
		}
		return nil
	})
}

// GuildsWithKey returns every guild that has the given key set.
func (r *SettingModel) GuildsWithKey(ctx context.Context, key string) ([]snowflake.ID, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]snowflake.ID, error) {
		var ids []uint64
		err := r.db.NewSelect().Model((*types.GuildSetting)(nil)).
			Column("guild_id").
			Where("key = ?", key).
			Order("guild_id ASC").
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("failed to list guilds with setting: %w (key=%s)", err, key)
		}

		guilds := make([]snowflake.ID, len(ids))
		for i, id := range ids {
			guilds[i] = snowflake.ID(id)
		}
		return guilds, nil
	})
}
