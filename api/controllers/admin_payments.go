package controllers

import (
	"net/http"

	"github.com/commercecore/storefront-backend/api/responses"
	"github.com/commercecore/storefront-backend/api/validators"
	paymentsvc "github.com/commercecore/storefront-backend/internal/payments"
	"github.com/commercecore/storefront-backend/pkg/enums"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/types"
)

// AdminConfirmPayment records an operator's settlement decision on a
// pending manual payment.
func AdminConfirmPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision, err := enums.ParseConfirmationStatus(payload.Decision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision"))
			return
		}

		payment, err := svc.ConfirmManualPayment(r.Context(), paymentID, paymentsvc.ConfirmPaymentInput{
			Decision:    decision,
			ConfirmedBy: payload.ConfirmedBy,
			Notes:       payload.Notes,
			Evidence:    payload.Evidence,
			Attachments: payload.Attachments,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResponse(payment))
	}
}

// AdminCancelPayment withdraws a pending payment attempt before settlement.
func AdminCancelPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload cancelPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.CancelPayment(r.Context(), paymentID, paymentsvc.CancelPaymentInput{
			CancelledBy: payload.CancelledBy,
			Notes:       payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResponse(payment))
	}
}

type confirmPaymentRequest struct {
	Decision    string                      `json:"decision" validate:"required,oneof=confirmed rejected"`
	ConfirmedBy string                      `json:"confirmed_by" validate:"required"`
	Notes       *string                     `json:"notes,omitempty"`
	Evidence    *types.ConfirmationEvidence `json:"evidence,omitempty"`
	Attachments []string                    `json:"attachments,omitempty"`
}

type cancelPaymentRequest struct {
	CancelledBy string  `json:"cancelled_by" validate:"required"`
	Notes       *string `json:"notes,omitempty"`
}
