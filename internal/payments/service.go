package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/commercecore/storefront-backend/internal/orders"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/outbox"
	"github.com/commercecore/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreatePaymentInput carries the payload to open a payment attempt for an order.
type CreatePaymentInput struct {
	OrderID       uuid.UUID
	UserID        *uuid.UUID
	IsGuest       bool
	PaymentMethod enums.PaymentMethod
	PaymentType   enums.PaymentType
	Amount        *decimal.Decimal
	PaymentNotes  *string
}

// ConfirmPaymentInput carries an operator's settlement decision.
type ConfirmPaymentInput struct {
	Decision    enums.ConfirmationStatus
	ConfirmedBy string
	Notes       *string
	Evidence    *types.ConfirmationEvidence
	Attachments []string
}

// CancelPaymentInput carries an operator's withdrawal of a pending payment.
type CancelPaymentInput struct {
	CancelledBy string
	Notes       *string
}

// Service governs the payment + confirmation state machine.
type Service interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*models.Payment, error)
	ConfirmManualPayment(ctx context.Context, paymentID uuid.UUID, input ConfirmPaymentInput) (*models.Payment, error)
	CancelPayment(ctx context.Context, paymentID uuid.UUID, input CancelPaymentInput) (*models.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

type service struct {
	repo   PaymentRepository
	orders orders.OrderRepository
	tx     txRunner
	outbox *outbox.Service
	logg   *logger.Logger
	now    func() time.Time
}

// ServiceParams bundles the dependencies required to build a payment service.
type ServiceParams struct {
	Repo   PaymentRepository
	Orders orders.OrderRepository
	Tx     txRunner
	Outbox *outbox.Service
	Logger *logger.Logger
}

// NewService builds a payment service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   params.Repo,
		orders: params.Orders,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

// CreatePayment opens a payment attempt and its paired pending confirmation
// in one transaction: a payment row never exists without a confirmation.
// Guest payments carry no user reference at all.
func (s *service) CreatePayment(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if !input.PaymentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment type")
	}
	if !input.IsGuest && (input.UserID == nil || *input.UserID == uuid.Nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required for non-guest payments")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}

	if _, err := s.repo.FindPendingByOrder(ctx, input.OrderID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a pending payment")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check pending payment")
	}

	amount := order.Total
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
		}
		amount = *input.Amount
	}

	var userID *uuid.UUID
	if !input.IsGuest {
		userID = input.UserID
	}

	var paymentID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.Create(ctx, &models.Payment{
			OrderID:       input.OrderID,
			UserID:        userID,
			PaymentMethod: input.PaymentMethod,
			Amount:        amount,
			Currency:      order.Currency,
			PaymentType:   input.PaymentType,
			Status:        enums.PaymentStatusPending,
			PaymentNotes:  input.PaymentNotes,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment")
		}
		paymentID = payment.ID

		_, err = repo.CreateConfirmation(ctx, &models.PaymentConfirmation{
			PaymentID:          payment.ID,
			ConfirmationType:   string(input.PaymentType),
			ConfirmationMethod: enums.ConfirmationMethodForPaymentType(input.PaymentType),
			ConfirmationStatus: enums.ConfirmationStatusPending,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment confirmation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, paymentID)
}

// ConfirmManualPayment moves a pending payment/confirmation pair to a
// terminal state. Both records must independently be pending; the double
// check guards against the two drifting apart.
func (s *service) ConfirmManualPayment(ctx context.Context, paymentID uuid.UUID, input ConfirmPaymentInput) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if input.Decision != enums.ConfirmationStatusConfirmed && input.Decision != enums.ConfirmationStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be confirmed or rejected")
	}
	if strings.TrimSpace(input.ConfirmedBy) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "confirmed by is required")
	}

	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if payment.Confirmation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment confirmation not found")
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending")
	}
	if payment.Confirmation.ConfirmationStatus != enums.ConfirmationStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment confirmation is not pending")
	}

	paymentStatus := enums.PaymentStatusConfirmed
	eventType := enums.EventPaymentConfirmed
	if input.Decision == enums.ConfirmationStatusRejected {
		paymentStatus = enums.PaymentStatusRejected
		eventType = enums.EventPaymentRejected
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"payment_id": payment.ID.String(),
		"order_id":   payment.OrderID.String(),
	})

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		confirmedAt := s.now().UTC()
		confirmation := payment.Confirmation
		confirmation.ConfirmationStatus = input.Decision
		confirmation.ConfirmedBy = &input.ConfirmedBy
		confirmation.ConfirmationNotes = input.Notes
		confirmation.ConfirmationEvidence = input.Evidence
		confirmation.Attachments = pq.StringArray(input.Attachments)
		confirmation.ConfirmedAt = &confirmedAt
		if err := repo.UpdateConfirmation(ctx, confirmation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update confirmation")
		}

		// Mirror the decision onto the parent so the pair never disagrees.
		flipped, err := repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusPending, paymentStatus)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment status")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment left pending state concurrently")
		}

		ordersRepo := s.orders.WithTx(tx)
		if err := ordersRepo.UpdatePaymentStatus(ctx, payment.OrderID, paymentStatus); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mirror payment status onto order")
		}
		if paymentStatus == enums.PaymentStatusConfirmed {
			if err := ordersRepo.UpdateStatus(ctx, payment.OrderID, enums.OrderStatusConfirmed); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: map[string]any{
				"payment_id": payment.ID,
				"order_id":   payment.OrderID,
				"decision":   input.Decision,
				"amount":     payment.Amount,
				"currency":   payment.Currency,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, "manual payment settled")
	return s.repo.FindByID(ctx, payment.ID)
}

// CancelPayment withdraws a pending payment attempt. The confirmation is
// closed as rejected in the same commit so the pair still agrees on
// pending versus terminal.
func (s *service) CancelPayment(ctx context.Context, paymentID uuid.UUID, input CancelPaymentInput) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if strings.TrimSpace(input.CancelledBy) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancelled by is required")
	}

	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if payment.Confirmation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment confirmation not found")
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending")
	}
	if payment.Confirmation.ConfirmationStatus != enums.ConfirmationStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment confirmation is not pending")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"payment_id": payment.ID.String(),
		"order_id":   payment.OrderID.String(),
	})

	notes := "payment cancelled"
	if input.Notes != nil && strings.TrimSpace(*input.Notes) != "" {
		notes = *input.Notes
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cancelledAt := s.now().UTC()
		confirmation := payment.Confirmation
		confirmation.ConfirmationStatus = enums.ConfirmationStatusRejected
		confirmation.ConfirmedBy = &input.CancelledBy
		confirmation.ConfirmationNotes = &notes
		confirmation.ConfirmedAt = &cancelledAt
		if err := repo.UpdateConfirmation(ctx, confirmation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update confirmation")
		}

		flipped, err := repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusPending, enums.PaymentStatusCancelled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment status")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment left pending state concurrently")
		}

		ordersRepo := s.orders.WithTx(tx)
		if err := ordersRepo.UpdatePaymentStatus(ctx, payment.OrderID, enums.PaymentStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mirror payment status onto order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCancelled,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: map[string]any{
				"payment_id": payment.ID,
				"order_id":   payment.OrderID,
				"amount":     payment.Amount,
				"currency":   payment.Currency,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, "payment cancelled")
	return s.repo.FindByID(ctx, payment.ID)
}

func (s *service) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	return payment, nil
}
