package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commercecore/storefront-backend/api/middleware"
	"github.com/commercecore/storefront-backend/api/responses"
	"github.com/commercecore/storefront-backend/api/validators"
	paymentsvc "github.com/commercecore/storefront-backend/internal/payments"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/types"
)

// PaymentCreate opens a payment attempt for an order. Guests pay without a
// user reference; registered callers are bound to the payment.
func PaymentCreate(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload createPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		paymentType, err := enums.ParsePaymentType(payload.PaymentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment type"))
			return
		}

		input := paymentsvc.CreatePaymentInput{
			OrderID:       payload.OrderID,
			PaymentMethod: method,
			PaymentType:   paymentType,
			Amount:        payload.Amount,
			PaymentNotes:  payload.PaymentNotes,
		}

		if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
			userID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, parseErr, "malformed user id"))
				return
			}
			input.UserID = &userID
		} else {
			input.IsGuest = true
		}

		payment, err := svc.CreatePayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(payment))
	}
}

// PaymentDetail returns a payment with its confirmation.
func PaymentDetail(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.GetPayment(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if payment.UserID != nil && !middleware.IsAdminFromContext(r.Context()) {
			if raw := middleware.UserIDFromContext(r.Context()); raw != payment.UserID.String() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another user"))
				return
			}
		}

		responses.WriteSuccess(w, newPaymentResponse(payment))
	}
}

type createPaymentRequest struct {
	OrderID       uuid.UUID        `json:"order_id" validate:"required,uuid4"`
	PaymentMethod string           `json:"payment_method" validate:"required"`
	PaymentType   string           `json:"payment_type" validate:"required"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	PaymentNotes  *string          `json:"payment_notes,omitempty"`
}

type paymentResponse struct {
	PaymentID     uuid.UUID             `json:"payment_id"`
	OrderID       uuid.UUID             `json:"order_id"`
	PaymentMethod string                `json:"payment_method"`
	PaymentType   string                `json:"payment_type"`
	Status        string                `json:"status"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	PaymentNotes  *string               `json:"payment_notes,omitempty"`
	Confirmation  *confirmationResponse `json:"confirmation,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

type confirmationResponse struct {
	ConfirmationID     uuid.UUID                   `json:"confirmation_id"`
	ConfirmationType   string                      `json:"confirmation_type"`
	ConfirmationMethod string                      `json:"confirmation_method"`
	Status             string                      `json:"status"`
	ConfirmedBy        *string                     `json:"confirmed_by,omitempty"`
	Notes              *string                     `json:"notes,omitempty"`
	Evidence           *types.ConfirmationEvidence `json:"evidence,omitempty"`
	Attachments        []string                    `json:"attachments,omitempty"`
	ConfirmedAt        *time.Time                  `json:"confirmed_at,omitempty"`
}

func newPaymentResponse(payment *models.Payment) *paymentResponse {
	if payment == nil {
		return nil
	}
	resp := &paymentResponse{
		PaymentID:     payment.ID,
		OrderID:       payment.OrderID,
		PaymentMethod: string(payment.PaymentMethod),
		PaymentType:   string(payment.PaymentType),
		Status:        string(payment.Status),
		Amount:        payment.Amount,
		Currency:      string(payment.Currency),
		PaymentNotes:  payment.PaymentNotes,
		CreatedAt:     payment.CreatedAt,
	}
	if payment.Confirmation != nil {
		resp.Confirmation = &confirmationResponse{
			ConfirmationID:     payment.Confirmation.ID,
			ConfirmationType:   payment.Confirmation.ConfirmationType,
			ConfirmationMethod: string(payment.Confirmation.ConfirmationMethod),
			Status:             string(payment.Confirmation.ConfirmationStatus),
			ConfirmedBy:        payment.Confirmation.ConfirmedBy,
			Notes:              payment.Confirmation.ConfirmationNotes,
			Evidence:           payment.Confirmation.ConfirmationEvidence,
			Attachments:        payment.Confirmation.Attachments,
			ConfirmedAt:        payment.Confirmation.ConfirmedAt,
		}
	}
	return resp
}
