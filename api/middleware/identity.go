package middleware

import (
	"net/http"
	"strings"

	"github.com/commercecore/storefront-backend/api/responses"
	"github.com/commercecore/storefront-backend/pkg/config"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
)

const sessionIDHeader = "X-Session-Id"

// Identity resolves the caller as either a registered user (bearer token)
// or a guest (session header). Storefront routes accept both; a request
// carrying neither is rejected. A bearer token, when present, always wins
// over the session header.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("Authorization")) != "" {
				claims, err := claimsFromRequest(cfg, r)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
				ctx := WithUserID(r.Context(), claims.UserID.String())
				ctx = WithIsAdmin(ctx, claims.IsAdmin)
				if logg != nil {
					ctx = logg.WithUserID(ctx, claims.UserID.String())
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			sessionID := strings.TrimSpace(r.Header.Get(sessionIDHeader))
			if sessionID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials or session id"))
				return
			}

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
