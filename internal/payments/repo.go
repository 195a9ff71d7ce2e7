package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
)

// PaymentRepository is the persistence surface for payments and their
// paired confirmations.
type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	CreateConfirmation(ctx context.Context, confirmation *models.PaymentConfirmation) (*models.PaymentConfirmation, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus) (bool, error)
	UpdateConfirmation(ctx context.Context, confirmation *models.PaymentConfirmation) error
}

// Repository exposes persistence operations for payments.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a payment repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new payment.
func (r *Repository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

// CreateConfirmation inserts the payment's paired confirmation.
func (r *Repository) CreateConfirmation(ctx context.Context, confirmation *models.PaymentConfirmation) (*models.PaymentConfirmation, error) {
	if err := r.db.WithContext(ctx).Create(confirmation).Error; err != nil {
		return nil, err
	}
	return confirmation, nil
}

// FindByID loads a payment with its confirmation.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Confirmation").
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindPendingByOrder loads the order's non-terminal payment if one exists.
func (r *Repository) FindPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Confirmation").
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusPending).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatus flips the payment status only when the current status matches.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateConfirmation saves the provided confirmation.
func (r *Repository) UpdateConfirmation(ctx context.Context, confirmation *models.PaymentConfirmation) error {
	return r.db.WithContext(ctx).Save(confirmation).Error
}
