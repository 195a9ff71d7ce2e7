package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductVariant is a sellable variation of a Product carrying its own
// price override and inventory count.
type ProductVariant struct {
	ID        uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index"`
	Name      string           `gorm:"column:name;type:text;not null"`
	SKU       string           `gorm:"column:sku;type:text;not null;uniqueIndex"`
	Price     *decimal.Decimal `gorm:"column:price;type:numeric(12,2)"`
	Inventory int              `gorm:"column:inventory;not null;default:0"`
	IsActive  bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
