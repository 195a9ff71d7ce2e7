package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commercecore/storefront-backend/pkg/enums"
	"github.com/commercecore/storefront-backend/pkg/types"
)

// Order is the immutable snapshot of a completed purchase. Addresses and
// prices are copied, not referenced; only the status fields change after
// creation.
type Order struct {
	ID                uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;type:text;not null;uniqueIndex"`
	UserID            *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	CartID            uuid.UUID           `gorm:"column:cart_id;type:uuid;not null;index"`
	CheckoutSessionID uuid.UUID           `gorm:"column:checkout_session_id;type:uuid;not null"`
	Status            enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Subtotal          decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax               decimal.Decimal     `gorm:"column:tax;type:numeric(12,2);not null;default:0"`
	Shipping          decimal.Decimal     `gorm:"column:shipping;type:numeric(12,2);not null;default:0"`
	Discount          decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Total             decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Currency          enums.Currency      `gorm:"column:currency;not null;default:'USD'"`
	ShippingAddress   *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress    *types.Address      `gorm:"column:billing_address;type:jsonb;serializer:json"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	OrderSource       enums.OrderSource   `gorm:"column:order_source;type:order_source;not null;default:'web'"`
	IsGift            bool                `gorm:"column:is_gift;not null;default:false"`
	GiftMessage       *string             `gorm:"column:gift_message;type:text"`
	CustomerNotes     *string             `gorm:"column:customer_notes;type:text"`
	ReferralCode      *string             `gorm:"column:referral_code;type:text"`
	Metadata          types.JSONMap       `gorm:"column:metadata;type:jsonb;serializer:json"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
