package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/commercecore/storefront-backend/pkg/enums"
	"github.com/commercecore/storefront-backend/pkg/types"
)

// PaymentConfirmation pairs 1:1 with a Payment and records how the payment
// was settled. Its status must agree with the parent payment's status on
// pending versus terminal at all times.
type PaymentConfirmation struct {
	ID                   uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID            uuid.UUID                   `gorm:"column:payment_id;type:uuid;not null;uniqueIndex"`
	ConfirmationType     string                      `gorm:"column:confirmation_type;type:text;not null"`
	ConfirmationMethod   enums.ConfirmationMethod    `gorm:"column:confirmation_method;type:confirmation_method;not null"`
	ConfirmationStatus   enums.ConfirmationStatus    `gorm:"column:confirmation_status;type:confirmation_status;not null;default:'pending'"`
	ConfirmedBy          *string                     `gorm:"column:confirmed_by;type:text"`
	ConfirmationNotes    *string                     `gorm:"column:confirmation_notes;type:text"`
	ConfirmationEvidence *types.ConfirmationEvidence `gorm:"column:confirmation_evidence;type:jsonb;serializer:json"`
	Attachments          pq.StringArray              `gorm:"column:attachments;type:text[]"`
	ConfirmedAt          *time.Time                  `gorm:"column:confirmed_at"`
	CreatedAt            time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
