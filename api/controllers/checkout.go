package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/commercecore/storefront-backend/api/middleware"
	"github.com/commercecore/storefront-backend/api/responses"
	"github.com/commercecore/storefront-backend/api/validators"
	checkoutsvc "github.com/commercecore/storefront-backend/internal/checkout"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/types"
)

// CheckoutBegin opens a checkout session for the caller's cart.
func CheckoutBegin(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload beginCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		session, err := svc.BeginCheckout(r.Context(), checkoutsvc.BeginCheckoutInput{
			CartID:          payload.CartID,
			ShippingAddress: payload.ShippingAddress,
			BillingAddress:  payload.BillingAddress,
			PaymentMethod:   method,
			ShippingMethod:  payload.ShippingMethod,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newSessionResponse(session))
	}
}

// CheckoutCreateOrder converts the cart/session pair into an order.
func CheckoutCreateOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		sessionID, err := validators.ParseUUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		source := enums.OrderSourceWeb
		if payload.OrderSource != "" {
			source, err = enums.ParseOrderSource(payload.OrderSource)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order source"))
				return
			}
		}

		var userID *uuid.UUID
		if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
			parsed, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, parseErr, "malformed user id"))
				return
			}
			userID = &parsed
		}

		result, err := svc.CreateOrderFromCart(r.Context(), checkoutsvc.CreateOrderInput{
			CartID:            payload.CartID,
			CheckoutSessionID: sessionID,
			UserID:            userID,
			OrderSource:       source,
			IsGift:            payload.IsGift,
			GiftMessage:       payload.GiftMessage,
			CustomerNotes:     payload.CustomerNotes,
			ReferralCode:      payload.ReferralCode,
			Metadata:          payload.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createOrderResponse{
			Order:    newOrderResponse(result.Order),
			Warnings: result.Warnings,
		})
	}
}

type beginCheckoutRequest struct {
	CartID          uuid.UUID      `json:"cart_id" validate:"required,uuid4"`
	ShippingAddress *types.Address `json:"shipping_address" validate:"required"`
	BillingAddress  *types.Address `json:"billing_address,omitempty"`
	PaymentMethod   string         `json:"payment_method" validate:"required"`
	ShippingMethod  string         `json:"shipping_method" validate:"required"`
}

type createOrderRequest struct {
	CartID        uuid.UUID     `json:"cart_id" validate:"required,uuid4"`
	OrderSource   string        `json:"order_source,omitempty"`
	IsGift        bool          `json:"is_gift,omitempty"`
	GiftMessage   *string       `json:"gift_message,omitempty"`
	CustomerNotes *string       `json:"customer_notes,omitempty"`
	ReferralCode  *string       `json:"referral_code,omitempty"`
	Metadata      types.JSONMap `json:"metadata,omitempty"`
}

type sessionResponse struct {
	SessionID       uuid.UUID      `json:"session_id"`
	CartID          uuid.UUID      `json:"cart_id"`
	Status          string         `json:"status"`
	ShippingAddress *types.Address `json:"shipping_address,omitempty"`
	BillingAddress  *types.Address `json:"billing_address,omitempty"`
	PaymentMethod   string         `json:"payment_method"`
	ShippingMethod  string         `json:"shipping_method"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

type createOrderResponse struct {
	Order    *orderResponse                  `json:"order"`
	Warnings []checkoutsvc.PriceDriftWarning `json:"warnings,omitempty"`
}

func newSessionResponse(session *models.CheckoutSession) *sessionResponse {
	if session == nil {
		return nil
	}
	return &sessionResponse{
		SessionID:       session.ID,
		CartID:          session.CartID,
		Status:          string(session.Status),
		ShippingAddress: session.ShippingAddress,
		BillingAddress:  session.BillingAddress,
		PaymentMethod:   string(session.PaymentMethod),
		ShippingMethod:  session.ShippingMethod,
		CompletedAt:     session.CompletedAt,
		CreatedAt:       session.CreatedAt,
	}
}
