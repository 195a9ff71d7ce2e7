package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/commercecore/storefront-backend/api/controllers"
	"github.com/commercecore/storefront-backend/api/middleware"
	cartsvc "github.com/commercecore/storefront-backend/internal/cart"
	checkoutsvc "github.com/commercecore/storefront-backend/internal/checkout"
	guestsvc "github.com/commercecore/storefront-backend/internal/guests"
	"github.com/commercecore/storefront-backend/internal/orders"
	paymentsvc "github.com/commercecore/storefront-backend/internal/payments"
	usersvc "github.com/commercecore/storefront-backend/internal/users"
	"github.com/commercecore/storefront-backend/pkg/config"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/redis"
)

// Deps bundles everything the router needs.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         controllers.Pinger
	Redis      *redis.Client
	Broker     controllers.Pinger
	Users      usersvc.Service
	Guests     guestsvc.Service
	Carts      cartsvc.Service
	Checkout   checkoutsvc.Service
	Payments   paymentsvc.Service
	OrdersRepo orders.OrderRepository
}

// NewRouter wires the HTTP surface: storefront routes accept either a
// bearer token or a guest session header; admin routes require an admin
// token.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	convertPolicy := middleware.NewAuthRateLimitPolicy(
		"convert",
		cfg.AuthRateLimit.ConvertWindow,
		cfg.AuthRateLimit.ConvertIPLimit,
		cfg.AuthRateLimit.ConvertEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(deps)))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Users, logg))
		r.With(middleware.Auth(cfg.JWT, logg)).Get("/me", controllers.AuthProfile(deps.Users, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))
		r.Use(middleware.RateLimit(deps.Redis, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/guests", func(r chi.Router) {
			r.Post("/", controllers.GuestCreate(deps.Guests, logg))
			r.Get("/me", controllers.GuestProfile(deps.Guests, logg))
			r.With(middleware.AuthRateLimit(convertPolicy, deps.Redis, logg)).
				Post("/convert", controllers.GuestConvert(deps.Guests, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Post("/", controllers.CartCreate(deps.Carts, logg))
			r.Get("/", controllers.CartFetch(deps.Carts, logg))
			r.Delete("/", controllers.CartDelete(deps.Carts, logg))
			r.Post("/items", controllers.CartAddItem(deps.Carts, logg))
			r.Put("/items/{itemId}", controllers.CartUpdateItem(deps.Carts, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Carts, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutBegin(deps.Checkout, logg))
			r.Post("/{sessionId}/order", controllers.CheckoutCreateOrder(deps.Checkout, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(deps.OrdersRepo, logg))
			r.Get("/lookup", controllers.OrderByNumber(deps.OrdersRepo, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.OrdersRepo, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.PaymentCreate(deps.Payments, logg))
			r.Get("/{paymentId}", controllers.PaymentDetail(deps.Payments, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Post("/payments/{paymentId}/confirm", controllers.AdminConfirmPayment(deps.Payments, logg))
		r.Post("/payments/{paymentId}/cancel", controllers.AdminCancelPayment(deps.Payments, logg))
	})

	return r
}

func readinessDeps(deps Deps) map[string]controllers.Pinger {
	out := map[string]controllers.Pinger{}
	if deps.DB != nil {
		out["db"] = deps.DB
	}
	if deps.Redis != nil {
		out["redis"] = deps.Redis
	}
	if deps.Broker != nil {
		out["pubsub"] = deps.Broker
	}
	return out
}
