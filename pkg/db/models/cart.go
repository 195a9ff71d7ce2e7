package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commercecore/storefront-backend/pkg/enums"
)

// Cart is the single mutable basket bound to either a guest session or a
// registered user, never both. A converted cart keeps its session id for
// audit but is no longer mutable.
type Cart struct {
	ID        uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID *string          `gorm:"column:session_id;type:text;index"`
	UserID    *uuid.UUID       `gorm:"column:user_id;type:uuid;index"`
	Status    enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	Subtotal  decimal.Decimal  `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	Tax       decimal.Decimal  `gorm:"column:tax;type:numeric(12,2);not null;default:0"`
	Shipping  decimal.Decimal  `gorm:"column:shipping;type:numeric(12,2);not null;default:0"`
	Total     decimal.Decimal  `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	Currency  enums.Currency   `gorm:"column:currency;not null;default:'USD'"`
	ExpiresAt time.Time        `gorm:"column:expires_at;not null;index"`
	Items     []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
