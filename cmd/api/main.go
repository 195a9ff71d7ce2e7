package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/commercecore/storefront-backend/api/controllers"
	"github.com/commercecore/storefront-backend/api/routes"
	"github.com/commercecore/storefront-backend/internal/cart"
	"github.com/commercecore/storefront-backend/internal/checkout"
	"github.com/commercecore/storefront-backend/internal/guests"
	"github.com/commercecore/storefront-backend/internal/orders"
	"github.com/commercecore/storefront-backend/internal/payments"
	"github.com/commercecore/storefront-backend/internal/products"
	"github.com/commercecore/storefront-backend/internal/users"
	"github.com/commercecore/storefront-backend/pkg/config"
	"github.com/commercecore/storefront-backend/pkg/db"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/migrate"
	"github.com/commercecore/storefront-backend/pkg/outbox"
	"github.com/commercecore/storefront-backend/pkg/pubsub"
	"github.com/commercecore/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	// Pub/Sub is optional for the api process: domain events are queued in
	// the outbox table and published by the outbox-publisher binary. The
	// client is only opened here to surface broker health on /health/ready.
	var broker controllers.Pinger
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
		broker = pubsubClient
	}

	usersRepo := users.NewRepository(dbClient.DB())
	guestsRepo := guests.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())
	cartsRepo := cart.NewRepository(dbClient.DB())
	sessionsRepo := checkout.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	userService, err := users.NewService(usersRepo, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:    cartsRepo,
		Tx:      dbClient,
		Catalog: productsRepo,
		CartCfg: cfg.Cart,
		OnExpire: func(ctx context.Context, tx *gorm.DB, record models.Cart) error {
			return outboxService.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCartExpired,
				AggregateType: enums.AggregateCart,
				AggregateID:   record.ID,
				Data: map[string]any{
					"cart_id":    record.ID,
					"session_id": record.SessionID,
					"user_id":    record.UserID,
					"expired_at": record.ExpiresAt,
				},
				Version: 1,
			})
		},
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Carts:    cartsRepo,
		Sessions: sessionsRepo,
		Orders:   ordersRepo,
		Catalog:  productsRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
		Config:   cfg.Checkout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:   paymentsRepo,
		Orders: ordersRepo,
		Tx:     dbClient,
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	guestService, err := guests.NewService(guests.ServiceParams{
		Repo:     guestsRepo,
		Users:    usersRepo,
		Carts:    cartService,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
		Password: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create guest service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Broker:     broker,
			Users:      userService,
			Guests:     guestService,
			Carts:      cartService,
			Checkout:   checkoutService,
			Payments:   paymentService,
			OrdersRepo: ordersRepo,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
