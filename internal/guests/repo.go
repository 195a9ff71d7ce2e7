package guests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
)

// GuestRepository is the persistence surface for anonymous identities.
type GuestRepository interface {
	WithTx(tx *gorm.DB) GuestRepository
	Create(ctx context.Context, guest *models.Guest) (*models.Guest, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Guest, error)
	MarkConverted(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error)
}

// Repository exposes persistence operations for guests.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a guest repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) GuestRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new guest.
func (r *Repository) Create(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	if guest.Status == "" {
		guest.Status = enums.GuestStatusActive
	}
	if err := r.db.WithContext(ctx).Create(guest).Error; err != nil {
		return nil, err
	}
	return guest, nil
}

// FindBySessionID loads a guest by its session binding.
func (r *Repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Guest, error) {
	var guest models.Guest
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&guest).Error
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

// MarkConverted flips the guest to converted only while still active.
func (r *Repository) MarkConverted(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Guest{}).
		Where("id = ? AND status = ?", id, enums.GuestStatusActive).
		Updates(map[string]any{
			"status":               enums.GuestStatusConverted,
			"converted_to_user_id": userID,
			"converted_at":         at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
