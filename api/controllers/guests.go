package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/commercecore/storefront-backend/api/middleware"
	"github.com/commercecore/storefront-backend/api/responses"
	"github.com/commercecore/storefront-backend/api/validators"
	guestsvc "github.com/commercecore/storefront-backend/internal/guests"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/types"
)

// GuestCreate registers the caller's anonymous session. A session can only
// be registered once; repeats conflict.
func GuestCreate(svc guestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guest service unavailable"))
			return
		}

		var payload createGuestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		guest, err := svc.CreateGuest(r.Context(), guestsvc.CreateGuestInput{
			SessionID: payload.SessionID,
			Email:     payload.Email,
			CartID:    payload.CartID,
			Metadata:  payload.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newGuestResponse(guest))
	}
}

// GuestProfile returns the guest bound to the caller's session header.
func GuestProfile(svc guestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guest service unavailable"))
			return
		}

		sessionID := middleware.SessionIDFromContext(r.Context())
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session id required"))
			return
		}

		guest, err := svc.GetBySession(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGuestResponse(guest))
	}
}

// GuestConvert upgrades the caller's guest session into a registered
// account, carrying the guest cart along.
func GuestConvert(svc guestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guest service unavailable"))
			return
		}

		sessionID := middleware.SessionIDFromContext(r.Context())
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session id required"))
			return
		}

		var payload guestsvc.ConvertGuestInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConvertToUser(r.Context(), sessionID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, conversionResponse{
			User:  newUserResponse(result.User),
			Guest: newGuestResponse(result.Guest),
			Cart:  newCartResponse(result.Cart),
		})
	}
}

type createGuestRequest struct {
	SessionID string        `json:"session_id" validate:"required"`
	Email     *string       `json:"email,omitempty" validate:"omitempty,email"`
	CartID    *uuid.UUID    `json:"cart_id,omitempty" validate:"omitempty,uuid4"`
	Metadata  types.JSONMap `json:"metadata,omitempty"`
}

type guestResponse struct {
	GuestID           uuid.UUID  `json:"guest_id"`
	SessionID         string     `json:"session_id"`
	Email             *string    `json:"email,omitempty"`
	CartID            *uuid.UUID `json:"cart_id,omitempty"`
	Status            string     `json:"status"`
	ConvertedToUserID *uuid.UUID `json:"converted_to_user_id,omitempty"`
	ConvertedAt       *time.Time `json:"converted_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type conversionResponse struct {
	User  *userResponse  `json:"user"`
	Guest *guestResponse `json:"guest"`
	Cart  *cartResponse  `json:"cart,omitempty"`
}

func newGuestResponse(guest *models.Guest) *guestResponse {
	if guest == nil {
		return nil
	}
	return &guestResponse{
		GuestID:           guest.ID,
		SessionID:         guest.SessionID,
		Email:             guest.Email,
		CartID:            guest.CartID,
		Status:            string(guest.Status),
		ConvertedToUserID: guest.ConvertedToUserID,
		ConvertedAt:       guest.ConvertedAt,
		CreatedAt:         guest.CreatedAt,
	}
}
