package database

import (
	"github.com/robalyx/storefront/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	product     *models.ProductModel
	code        *models.CodeModel
	order       *models.OrderModel
	purchase    *models.PurchaseModel
	testimonial *models.TestimonialModel
	setting     *models.SettingModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		product:     models.NewProduct(db, logger),
		code:        models.NewCode(db, logger),
		order:       models.NewOrder(db, logger),
		purchase:    models.NewPurchase(db, logger),
		testimonial: models.NewTestimonial(db, logger),
		setting:     models.NewSetting(db, logger),
	}
}

// Product returns the product model repository.
func (r *Repository) Product() *models.ProductModel {
	return r.product
}

// Code returns the code model repository.
func (r *Repository) Code() *models.CodeModel {
	return r.code
}

// Order returns the order model repository.
func (r *Repository) Order() *models.OrderModel {
	return r.order
}

// Purchase returns the purchase model repository.
func (r *Repository) Purchase() *models.PurchaseModel {
	return r.purchase
}

// Testimonial returns the testimonial model repository.
func (r *Repository) Testimonial() *models.TestimonialModel {
	return r.testimonial
}

// Setting returns the setting model repository.
func (r *Repository) Setting() *models.SettingModel {
	return r.setting
}
