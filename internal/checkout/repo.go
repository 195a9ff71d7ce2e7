package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
)

// SessionRepository is the persistence surface for checkout sessions.
type SessionRepository interface {
	WithTx(tx *gorm.DB) SessionRepository
	Create(ctx context.Context, session *models.CheckoutSession) (*models.CheckoutSession, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error)
	FindActiveByCartID(ctx context.Context, cartID uuid.UUID) (*models.CheckoutSession, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.CheckoutSessionStatus, completedAt *time.Time) (bool, error)
	FindStaleActive(ctx context.Context, cutoff time.Time) ([]models.CheckoutSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository exposes persistence operations for checkout sessions.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a checkout session repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) SessionRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new checkout session.
func (r *Repository) Create(ctx context.Context, session *models.CheckoutSession) (*models.CheckoutSession, error) {
	if session.Status == "" {
		session.Status = enums.CheckoutSessionStatusActive
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// FindByID loads a checkout session.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindActiveByCartID loads the single active session for a cart.
func (r *Repository) FindActiveByCartID(ctx context.Context, cartID uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND status = ?", cartID, enums.CheckoutSessionStatusActive).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateStatus flips the session status only when the current status matches.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.CheckoutSessionStatus, completedAt *time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindStaleActive returns active sessions created before cutoff.
func (r *Repository) FindStaleActive(ctx context.Context, cutoff time.Time) ([]models.CheckoutSession, error) {
	var rows []models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.CheckoutSessionStatusActive, cutoff).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// Delete removes a checkout session row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.CheckoutSession{}).Error
}
