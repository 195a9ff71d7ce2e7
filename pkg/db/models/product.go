package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry whose price and descriptive fields are
// snapshotted onto cart and order items at the moment of purchase.
type Product struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string           `gorm:"column:name;type:text;not null"`
	Description *string          `gorm:"column:description;type:text"`
	SKU         string           `gorm:"column:sku;type:text;not null;uniqueIndex"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Weight      *decimal.Decimal `gorm:"column:weight;type:numeric(10,3)"`
	Dimensions  *string          `gorm:"column:dimensions;type:text"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
