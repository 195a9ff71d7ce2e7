package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/commercecore/storefront-backend/pkg/enums"
	"github.com/commercecore/storefront-backend/pkg/types"
)

// Guest is an anonymous identity bound to a session and optionally a cart.
// A converted guest keeps its row, pointing at the user it became.
type Guest struct {
	ID                uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID         string            `gorm:"column:session_id;type:text;not null;uniqueIndex"`
	Email             *string           `gorm:"column:email;type:text"`
	CartID            *uuid.UUID        `gorm:"column:cart_id;type:uuid"`
	Status            enums.GuestStatus `gorm:"column:status;type:guest_status;not null;default:'active'"`
	ConvertedToUserID *uuid.UUID        `gorm:"column:converted_to_user_id;type:uuid"`
	ConvertedAt       *time.Time        `gorm:"column:converted_at"`
	Metadata          types.JSONMap     `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
