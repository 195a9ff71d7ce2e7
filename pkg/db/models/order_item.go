package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem freezes a cart line at order-creation time: price, product
// name, description, and physicals are all copied at that instant.
type OrderItem struct {
	ID                 uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID          uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	VariantID          *uuid.UUID       `gorm:"column:variant_id;type:uuid"`
	ProductName        string           `gorm:"column:product_name;type:text;not null"`
	ProductDescription *string          `gorm:"column:product_description;type:text"`
	SKU                *string          `gorm:"column:sku;type:text"`
	Quantity           int              `gorm:"column:quantity;not null"`
	Price              decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Total              decimal.Decimal  `gorm:"column:total;type:numeric(12,2);not null"`
	Weight             *decimal.Decimal `gorm:"column:weight;type:numeric(10,3)"`
	Dimensions         *string          `gorm:"column:dimensions;type:text"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
}
