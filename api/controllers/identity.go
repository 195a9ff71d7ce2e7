package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/commercecore/storefront-backend/api/middleware"
	"github.com/commercecore/storefront-backend/internal/cart"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
)

// ownerFromRequest maps the request identity onto a cart owner: a bearer
// token yields a user owner, a session header a guest owner.
func ownerFromRequest(r *http.Request) (cart.Owner, error) {
	ctx := r.Context()
	if raw := middleware.UserIDFromContext(ctx); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return cart.Owner{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "malformed user id")
		}
		return cart.Owner{UserID: &userID}, nil
	}
	if sessionID := middleware.SessionIDFromContext(ctx); sessionID != "" {
		return cart.Owner{SessionID: &sessionID}, nil
	}
	return cart.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials or session id")
}

// userIDFromRequest returns the authenticated user id or an error when the
// caller is not a registered user.
func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "malformed user id")
	}
	return userID, nil
}
