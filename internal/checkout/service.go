package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/commercecore/storefront-backend/internal/cart"
	"github.com/commercecore/storefront-backend/internal/orders"
	"github.com/commercecore/storefront-backend/internal/products"
	"github.com/commercecore/storefront-backend/pkg/config"
	dbpkg "github.com/commercecore/storefront-backend/pkg/db"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/outbox"
	"github.com/commercecore/storefront-backend/pkg/types"
)

const defaultOrderNumberRetries = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// BeginCheckoutInput carries the buyer's checkout selections.
type BeginCheckoutInput struct {
	CartID          uuid.UUID
	ShippingAddress *types.Address
	BillingAddress  *types.Address
	PaymentMethod   enums.PaymentMethod
	ShippingMethod  string
}

// CreateOrderInput identifies the cart/session pair to convert plus the
// order-level extras copied onto the snapshot.
type CreateOrderInput struct {
	CartID            uuid.UUID
	CheckoutSessionID uuid.UUID
	UserID            *uuid.UUID
	OrderSource       enums.OrderSource
	IsGift            bool
	GiftMessage       *string
	CustomerNotes     *string
	ReferralCode      *string
	Metadata          types.JSONMap
}

// PriceDriftWarning reports a cart line whose catalog price moved beyond
// the tolerance since it was snapshotted. Drift never blocks the order.
type PriceDriftWarning struct {
	ItemID        uuid.UUID       `json:"item_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	SnapshotPrice decimal.Decimal `json:"snapshot_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	DriftRatio    decimal.Decimal `json:"drift_ratio"`
}

// CreateOrderResult bundles the created order with any non-fatal warnings.
type CreateOrderResult struct {
	Order    *models.Order       `json:"order"`
	Warnings []PriceDriftWarning `json:"warnings,omitempty"`
}

// Service drives checkout sessions and the cart-to-order conversion.
type Service interface {
	BeginCheckout(ctx context.Context, input BeginCheckoutInput) (*models.CheckoutSession, error)
	CreateOrderFromCart(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	CleanupStaleSessions(ctx context.Context, olderThan time.Duration) (int, error)
}

type service struct {
	carts    cart.CartRepository
	sessions SessionRepository
	orders   orders.OrderRepository
	catalog  products.ProductRepository
	tx       txRunner
	outbox   *outbox.Service
	logg     *logger.Logger
	cfg      config.CheckoutConfig
	now      func() time.Time
}

// ServiceParams bundles the dependencies required to build a checkout service.
type ServiceParams struct {
	Carts    cart.CartRepository
	Sessions SessionRepository
	Orders   orders.OrderRepository
	Catalog  products.ProductRepository
	Tx       txRunner
	Outbox   *outbox.Service
	Logger   *logger.Logger
	Config   config.CheckoutConfig
}

// NewService builds a checkout service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product repository required")
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
		carts:    params.Carts,
		sessions: params.Sessions,
		orders:   params.Orders,
		catalog:  params.Catalog,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
		cfg:      params.Config,
		now:      time.Now,
	}, nil
}

// BeginCheckout opens a checkout session for an active cart. A cart can
// hold at most one active session at a time.
func (s *service) BeginCheckout(ctx context.Context, input BeginCheckoutInput) (*models.CheckoutSession, error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if strings.TrimSpace(input.ShippingMethod) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping method is required")
	}
	if input.ShippingAddress == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	if input.BillingAddress != nil {
		if err := input.BillingAddress.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid billing address")
		}
	}

	record, err := s.carts.FindByID(ctx, input.CartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if record.Status != enums.CartStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is not active")
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has no items")
	}

	if _, err := s.sessions.FindActiveByCartID(ctx, input.CartID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an active checkout session already exists for this cart")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing session")
	}

	billing := input.BillingAddress
	if billing == nil {
		billing = input.ShippingAddress
	}

	session, err := s.sessions.Create(ctx, &models.CheckoutSession{
		CartID:          input.CartID,
		Status:          enums.CheckoutSessionStatusActive,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   input.PaymentMethod,
		ShippingMethod:  strings.TrimSpace(input.ShippingMethod),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create checkout session")
	}
	return session, nil
}

// CreateOrderFromCart converts a validated cart/session pair into an
// immutable order. Validation performs no writes; once the order row
// exists, any later failure triggers compensating rollback rather than a
// store-level transaction abort.
func (s *service) CreateOrderFromCart(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	if input.CheckoutSessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id is required")
	}
	if input.OrderSource == "" {
		input.OrderSource = enums.OrderSourceWeb
	}
	if !input.OrderSource.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order source")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"cart_id":    input.CartID.String(),
		"session_id": input.CheckoutSessionID.String(),
	})

	gate, err := s.validateConversion(ctx, input)
	if err != nil {
		return nil, err
	}

	order, err := s.insertOrderWithNumber(ctx, input, gate)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "order_id", order.ID.String())

	if err := s.completeConversion(ctx, order, gate); err != nil {
		s.rollback(ctx, order, gate)
		return nil, err
	}

	created, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}

	s.logg.Info(ctx, "order created from cart")
	return &CreateOrderResult{Order: created, Warnings: gate.warnings}, nil
}

// conversionGate holds everything the validation pass loaded, so the
// mutation pass never re-reads state it already checked.
type conversionGate struct {
	cart      *models.Cart
	session   *models.CheckoutSession
	items     []models.CartItem
	productBy map[uuid.UUID]*models.Product
	variantBy map[uuid.UUID]*models.ProductVariant
	warnings  []PriceDriftWarning

	// rollback bookkeeping, populated during mutation
	decremented   []inventoryClaim
	itemsInserted bool
	cartClaimed   bool
	sessionClosed bool
}

type inventoryClaim struct {
	variantID uuid.UUID
	qty       int
}

func (s *service) validateConversion(ctx context.Context, input CreateOrderInput) (*conversionGate, error) {
	record, err := s.carts.FindByID(ctx, input.CartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if record.Status != enums.CartStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is not active")
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has no items")
	}
	if !record.Total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart total must be positive")
	}

	session, err := s.sessions.FindByID(ctx, input.CheckoutSessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout session")
	}
	if session.CartID != record.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session does not belong to cart")
	}
	if session.Status != enums.CheckoutSessionStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session is not active")
	}

	gate := &conversionGate{
		cart:      record,
		session:   session,
		items:     record.Items,
		productBy: map[uuid.UUID]*models.Product{},
		variantBy: map[uuid.UUID]*models.ProductVariant{},
	}

	tolerance := decimal.NewFromFloat(s.cfg.PriceDriftTolerance)
	if !tolerance.IsPositive() {
		tolerance = decimal.NewFromFloat(0.05)
	}

	for _, item := range gate.items {
		product, ok := gate.productBy[item.ProductID]
		if !ok {
			product, err = s.catalog.FindByID(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product no longer exists").
						WithDetails(map[string]any{"product_id": item.ProductID})
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			gate.productBy[item.ProductID] = product
		}

		currentPrice := product.Price
		if item.VariantID != nil {
			variant, ok := gate.variantBy[*item.VariantID]
			if !ok {
				variant, err = s.catalog.FindVariantByID(ctx, *item.VariantID)
				if err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant no longer exists").
							WithDetails(map[string]any{"variant_id": *item.VariantID})
					}
					return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
				}
				gate.variantBy[*item.VariantID] = variant
			}
			// Variant-less items carry no inventory and skip this check.
			if variant.Inventory < item.Quantity {
				return nil, pkgerrors.New(pkgerrors.CodeInventory, "insufficient inventory").
					WithDetails(map[string]any{
						"variant_id": variant.ID,
						"requested":  item.Quantity,
						"available":  variant.Inventory,
					})
			}
			if variant.Price != nil {
				currentPrice = *variant.Price
			}
		}

		if warning := driftWarning(item, currentPrice, tolerance); warning != nil {
			gate.warnings = append(gate.warnings, *warning)
		}
	}

	return gate, nil
}

// driftWarning returns a warning when the catalog price moved beyond
// tolerance relative to the snapshot. A zero snapshot price cannot be
// compared and is treated as maximal drift.
func driftWarning(item models.CartItem, currentPrice, tolerance decimal.Decimal) *PriceDriftWarning {
	if item.Price.IsZero() {
		if currentPrice.IsZero() {
			return nil
		}
		return &PriceDriftWarning{
			ItemID:        item.ID,
			ProductID:     item.ProductID,
			SnapshotPrice: item.Price,
			CurrentPrice:  currentPrice,
			DriftRatio:    decimal.NewFromInt(1),
		}
	}
	ratio := currentPrice.Sub(item.Price).Abs().Div(item.Price)
	if ratio.LessThanOrEqual(tolerance) {
		return nil
	}
	return &PriceDriftWarning{
		ItemID:        item.ID,
		ProductID:     item.ProductID,
		SnapshotPrice: item.Price,
		CurrentPrice:  currentPrice,
		DriftRatio:    ratio,
	}
}

// insertOrderWithNumber creates the order row, regenerating the order
// number on a uniqueness collision instead of failing.
func (s *service) insertOrderWithNumber(ctx context.Context, input CreateOrderInput, gate *conversionGate) (*models.Order, error) {
	retries := s.cfg.OrderNumberMaxRetries
	if retries <= 0 {
		retries = defaultOrderNumberRetries
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		number, err := GenerateOrderNumber(s.now())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}

		order := &models.Order{
			OrderNumber:       number,
			UserID:            input.UserID,
			CartID:            gate.cart.ID,
			CheckoutSessionID: gate.session.ID,
			Status:            enums.OrderStatusPending,
			Subtotal:          gate.cart.Subtotal,
			Tax:               gate.cart.Tax,
			Shipping:          gate.cart.Shipping,
			Discount:          decimal.Zero,
			Total:             gate.cart.Total,
			Currency:          gate.cart.Currency,
			ShippingAddress:   gate.session.ShippingAddress,
			BillingAddress:    gate.session.BillingAddress,
			PaymentStatus:     enums.PaymentStatusPending,
			PaymentMethod:     gate.session.PaymentMethod,
			OrderSource:       input.OrderSource,
			IsGift:            input.IsGift,
			GiftMessage:       input.GiftMessage,
			CustomerNotes:     input.CustomerNotes,
			ReferralCode:      input.ReferralCode,
			Metadata:          input.Metadata,
		}

		created, err := s.orders.Create(ctx, order)
		if err == nil {
			return created, nil
		}
		if dbpkg.IsUniqueViolation(err, "ux_orders_order_number") {
			lastErr = err
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "order number collisions exhausted retries")
}

// completeConversion performs the remaining mutation steps after the order
// row exists. Each step failing leaves earlier steps for rollback to undo.
func (s *service) completeConversion(ctx context.Context, order *models.Order, gate *conversionGate) error {
	items := make([]models.OrderItem, 0, len(gate.items))
	for _, cartItem := range gate.items {
		product := gate.productBy[cartItem.ProductID]
		sku := product.SKU
		if cartItem.VariantID != nil {
			if variant, ok := gate.variantBy[*cartItem.VariantID]; ok {
				sku = variant.SKU
			}
		}
		items = append(items, models.OrderItem{
			OrderID:            order.ID,
			ProductID:          cartItem.ProductID,
			VariantID:          cartItem.VariantID,
			ProductName:        product.Name,
			ProductDescription: product.Description,
			SKU:                &sku,
			Quantity:           cartItem.Quantity,
			Price:              cartItem.Price,
			Total:              cartItem.Total,
			Weight:             product.Weight,
			Dimensions:         product.Dimensions,
		})
	}
	if err := s.orders.CreateItems(ctx, items); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order items")
	}
	gate.itemsInserted = true

	for _, cartItem := range gate.items {
		if cartItem.VariantID == nil {
			continue
		}
		ok, err := s.catalog.DecrementInventory(ctx, *cartItem.VariantID, cartItem.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve inventory")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInventory, "insufficient inventory").
				WithDetails(map[string]any{"variant_id": *cartItem.VariantID})
		}
		gate.decremented = append(gate.decremented, inventoryClaim{
			variantID: *cartItem.VariantID,
			qty:       cartItem.Quantity,
		})
	}

	claimed, err := s.carts.UpdateStatus(ctx, gate.cart.ID, enums.CartStatusActive, enums.CartStatusConverted)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert cart")
	}
	if !claimed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart was claimed by another conversion")
	}
	gate.cartClaimed = true

	completedAt := s.now().UTC()
	closed, err := s.sessions.UpdateStatus(ctx, gate.session.ID, enums.CheckoutSessionStatusActive, enums.CheckoutSessionStatusCompleted, &completedAt)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete checkout session")
	}
	if !closed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session already completed")
	}
	gate.sessionClosed = true

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: map[string]any{
				"order_id":     order.ID,
				"order_number": order.OrderNumber,
				"cart_id":      gate.cart.ID,
				"total":        order.Total,
				"currency":     order.Currency,
			},
			Version: 1,
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order created event")
	}

	return nil
}

// rollback undoes the conversion after a post-creation failure: order
// items and the order are deleted, inventory is restored, and the cart and
// session return to active. Failures here are logged and skipped so every
// compensation step gets attempted.
func (s *service) rollback(ctx context.Context, order *models.Order, gate *conversionGate) {
	s.logg.Warn(ctx, "rolling back order conversion")

	if gate.sessionClosed {
		if _, err := s.sessions.UpdateStatus(ctx, gate.session.ID, enums.CheckoutSessionStatusCompleted, enums.CheckoutSessionStatusActive, nil); err != nil {
			s.logg.Error(ctx, "rollback: restore checkout session", err)
		}
	}
	if gate.cartClaimed {
		if _, err := s.carts.UpdateStatus(ctx, gate.cart.ID, enums.CartStatusConverted, enums.CartStatusActive); err != nil {
			s.logg.Error(ctx, "rollback: restore cart", err)
		}
	}
	for _, claim := range gate.decremented {
		if err := s.catalog.RestoreInventory(ctx, claim.variantID, claim.qty); err != nil {
			s.logg.Error(ctx, "rollback: restore inventory", err)
		}
	}
	if gate.itemsInserted {
		if err := s.orders.DeleteItemsByOrder(ctx, order.ID); err != nil {
			s.logg.Error(ctx, "rollback: delete order items", err)
		}
	}
	if err := s.orders.Delete(ctx, order.ID); err != nil {
		s.logg.Error(ctx, "rollback: delete order", err)
	}
}

// CleanupStaleSessions removes active checkout sessions older than the
// provided age. One session failing does not abort the sweep.
func (s *service) CleanupStaleSessions(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "cleanup age must be positive")
	}
	cutoff := s.now().UTC().Add(-olderThan)
	stale, err := s.sessions.FindStaleActive(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stale sessions")
	}

	deleted := 0
	var errs []error
	for _, session := range stale {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", session.ID, err))
			continue
		}
		deleted++
	}
	return deleted, combineErrors(errs)
}
