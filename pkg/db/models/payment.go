package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commercecore/storefront-backend/pkg/enums"
)

// Payment belongs to exactly one order. UserID stays null for guest
// checkouts. At most one payment per order may be non-terminal at a time
// in the manual flow.
type Payment struct {
	ID            uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	UserID        *uuid.UUID           `gorm:"column:user_id;type:uuid"`
	PaymentMethod enums.PaymentMethod  `gorm:"column:payment_method;type:payment_method;not null"`
	Amount        decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      enums.Currency       `gorm:"column:currency;not null;default:'USD'"`
	PaymentType   enums.PaymentType    `gorm:"column:payment_type;type:payment_type;not null"`
	Status        enums.PaymentStatus  `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	PaymentNotes  *string              `gorm:"column:payment_notes;type:text"`
	Confirmation  *PaymentConfirmation `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
