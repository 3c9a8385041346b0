package models

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/dbretry"
	"github.com/robalyx/storefront/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// TestimonialModel handles database operations for buyer testimonials.
type TestimonialModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewTestimonial creates a TestimonialModel with database access.
func NewTestimonial(db *bun.DB, logger *zap.Logger) *TestimonialModel {
	return &TestimonialModel{
		db:     db,
		logger: logger.Named("db_testimonial"),
	}
}

// Create inserts a testimonial and returns its ID.
func (r *TestimonialModel) Create(ctx context.Context, testimonial *types.Testimonial) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		_, err := r.db.NewInsert().Model(testimonial).
			Returning("id, created_at").
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to create testimonial: %w (guildID=%d)", err, testimonial.GuildID)
		}
		return testimonial.ID, nil
	})
}

// List returns the newest testimonials of a guild.
func (r *TestimonialModel) List(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.Testimonial, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Testimonial, error) {
		var testimonials []*types.Testimonial
		err := r.db.NewSelect().Model(&testimonials).
			Where("guild_id = ?", guildID).
			Order("created_at DESC", "id DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list testimonials: %w (guildID=%d)", err, guildID)
		}
		return testimonials, nil
	})
}
