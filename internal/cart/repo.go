package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
)

// CartRepository is the persistence surface consumed by the cart service
// and the cleanup job.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, record *models.Cart) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindActiveBySessionID(ctx context.Context, sessionID string, now time.Time) (*models.Cart, error)
	FindActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Cart, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.CartStatus) (bool, error)
	UpdateTotals(ctx context.Context, id uuid.UUID, subtotal, tax, shipping, total decimal.Decimal) error
	RenewExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	FindItem(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	UpdateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	SoftDeleteItem(ctx context.Context, itemID uuid.UUID) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	FindExpiredActive(ctx context.Context, cutoff time.Time) ([]models.Cart, error)
	HardDeleteCartWithItems(ctx context.Context, cartID uuid.UUID, expiredBefore *time.Time) (bool, error)
}

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new cart.
func (r *Repository) Create(ctx context.Context, record *models.Cart) (*models.Cart, error) {
	if record.Status == "" {
		record.Status = enums.CartStatusActive
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindByID loads a cart with its live items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindActiveBySessionID loads the single active, non-expired cart for a guest session.
func (r *Repository) FindActiveBySessionID(ctx context.Context, sessionID string, now time.Time) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("session_id = ? AND status = ? AND expires_at > ?", sessionID, enums.CartStatusActive, now).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindActiveByUserID loads the single active, non-expired cart for a user.
func (r *Repository) FindActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, enums.CartStatusActive, now).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateStatus flips a cart's status only when the current status matches.
// The conditional write is the concurrency guard against two flows claiming
// the same cart.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.CartStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateTotals persists recomputed cart money fields.
func (r *Repository) UpdateTotals(ctx context.Context, id uuid.UUID, subtotal, tax, shipping, total decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"subtotal": subtotal,
			"tax":      tax,
			"shipping": shipping,
			"total":    total,
		}).Error
}

// RenewExpiry pushes the cart's expiration forward.
func (r *Repository) RenewExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Update("expires_at", expiresAt).Error
}

// FindItem loads the live item for a (product, variant) pair in a cart.
func (r *Repository) FindItem(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID) (*models.CartItem, error) {
	query := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID)
	if variantID == nil {
		query = query.Where("variant_id IS NULL")
	} else {
		query = query.Where("variant_id = ?", *variantID)
	}
	var item models.CartItem
	if err := query.First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a cart item.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem saves the provided item.
func (r *Repository) UpdateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// SoftDeleteItem marks the item deleted, keeping the row for audit.
func (r *Repository) SoftDeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", itemID).
		Delete(&models.CartItem{}).Error
}

// ListItems returns the live items of a cart.
func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindExpiredActive returns active carts whose expiry passed before cutoff.
// The status filter is applied at read time so a cart converted mid-sweep
// will fail the conditional delete rather than vanish.
func (r *Repository) FindExpiredActive(ctx context.Context, cutoff time.Time) ([]models.Cart, error) {
	var rows []models.Cart
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", enums.CartStatusActive, cutoff).
		Order("expires_at ASC").
		Find(&rows).Error
	return rows, err
}

// HardDeleteCartWithItems removes a cart and all of its items, including
// soft-deleted ones. The cart row goes first, guarded on status (and on
// expiry when expiredBefore is set); items are only removed when that
// guard held, so a cart claimed by a concurrent conversion or renewed
// mid-sweep keeps its lines. Reports whether the cart was removed.
func (r *Repository) HardDeleteCartWithItems(ctx context.Context, cartID uuid.UUID, expiredBefore *time.Time) (bool, error) {
	tx := r.db.WithContext(ctx)
	query := tx.Where("id = ? AND status = ?", cartID, enums.CartStatusActive)
	if expiredBefore != nil {
		query = query.Where("expires_at < ?", *expiredBefore)
	}
	res := query.Delete(&models.Cart{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	err := tx.Unscoped().
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}
