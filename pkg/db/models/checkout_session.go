package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/commercecore/storefront-backend/pkg/enums"
	"github.com/commercecore/storefront-backend/pkg/types"
)

// CheckoutSession holds the buyer's checkout selections for a cart. At most
// one active session exists per cart; it flips to completed exactly once,
// when an order is created from it.
type CheckoutSession struct {
	ID              uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CartID          uuid.UUID                   `gorm:"column:cart_id;type:uuid;not null;index"`
	Status          enums.CheckoutSessionStatus `gorm:"column:status;type:checkout_session_status;not null;default:'active'"`
	ShippingAddress *types.Address              `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  *types.Address              `gorm:"column:billing_address;type:jsonb;serializer:json"`
	PaymentMethod   enums.PaymentMethod         `gorm:"column:payment_method;type:payment_method;not null"`
	ShippingMethod  string                      `gorm:"column:shipping_method;type:text;not null"`
	CompletedAt     *time.Time                  `gorm:"column:completed_at"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
