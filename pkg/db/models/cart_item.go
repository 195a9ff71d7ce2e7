package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/commercecore/storefront-backend/pkg/types"
)

// CartItem is a line in a cart carrying a price snapshot taken when the
// item was added. Items are soft-deleted so removed lines stay auditable.
type CartItem struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CartID          uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID       *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	Quantity        int             `gorm:"column:quantity;not null"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Total           decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	Notes           *string         `gorm:"column:notes;type:text"`
	SelectedOptions types.JSONMap   `gorm:"column:selected_options;type:jsonb;serializer:json"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt       gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}
