package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/commercecore/storefront-backend/api/responses"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
)

const (
	defaultRateLimitWindow = time.Minute
	defaultRateLimit       = 120
)

type fixedWindowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit applies a fixed-window cap per caller identity. Registered users
// are keyed by user id, guests by session id, everyone else by client IP.
func RateLimit(store fixedWindowStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			allowed, count, err := store.FixedWindowAllow(ctx, callerScope(r), defaultRateLimit, defaultRateLimitWindow)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"attempts": count,
						"limit":    defaultRateLimit,
					})
					logg.Warn(logCtx, "rate_limit.blocked")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func callerScope(r *http.Request) string {
	ctx := r.Context()
	if userID := UserIDFromContext(ctx); userID != "" {
		return "user:" + userID
	}
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		return "session:" + sessionID
	}
	return "ip:" + strings.ReplaceAll(clientIP(r), ":", "_")
}
