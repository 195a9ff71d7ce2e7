package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/commercecore/storefront-backend/internal/cart"
	"github.com/commercecore/storefront-backend/internal/orders"
	"github.com/commercecore/storefront-backend/internal/products"
	"github.com/commercecore/storefront-backend/pkg/config"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/outbox"
	"github.com/commercecore/storefront-backend/pkg/types"
)

var testAddress = types.Address{
	Line1:      "1 Main St",
	City:       "Springfield",
	State:      "IL",
	PostalCode: "62704",
	Country:    "US",
}

type checkoutFixture struct {
	svc      Service
	carts    *fakeCartsRepo
	sessions *fakeSessionsRepo
	orders   *fakeOrdersRepo
	catalog  *fakeCatalogRepo
	db       *gorm.DB
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	if err := db.Exec(schema).Error; err != nil {
		t.Fatalf("create outbox table: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test"})
	fixture := &checkoutFixture{
		carts:    newFakeCartsRepo(),
		sessions: newFakeSessionsRepo(),
		orders:   newFakeOrdersRepo(),
		catalog:  newFakeCatalogRepo(),
		db:       db,
	}

	svc, err := NewService(ServiceParams{
		Carts:    fixture.carts,
		Sessions: fixture.sessions,
		Orders:   fixture.orders,
		Catalog:  fixture.catalog,
		Tx:       gormTxRunner{db: db},
		Outbox:   outbox.NewService(outbox.NewRepository(db), logg),
		Logger:   logg,
		Config:   config.CheckoutConfig{PriceDriftTolerance: 0.05},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

// seedCart installs an active cart with a single variant-backed line and
// matching catalog entries.
func (f *checkoutFixture) seedCart(price decimal.Decimal, quantity, inventory int) *models.Cart {
	product := f.catalog.addProduct(price, true)
	variant := f.catalog.addVariant(product.ID, nil, inventory)

	lineTotal := price.Mul(decimal.NewFromInt(int64(quantity)))
	record := &models.Cart{
		ID:        uuid.New(),
		Status:    enums.CartStatusActive,
		Subtotal:  lineTotal,
		Tax:       decimal.Zero,
		Shipping:  decimal.Zero,
		Total:     lineTotal,
		Currency:  enums.CurrencyUSD,
		ExpiresAt: time.Now().Add(time.Hour),
		Items: []models.CartItem{{
			ID:        uuid.New(),
			ProductID: product.ID,
			VariantID: &variant.ID,
			Quantity:  quantity,
			Price:     price,
			Total:     lineTotal,
		}},
	}
	record.Items[0].CartID = record.ID
	f.carts.carts[record.ID] = record
	return record
}

func (f *checkoutFixture) seedSession(cartID uuid.UUID) *models.CheckoutSession {
	session := &models.CheckoutSession{
		ID:              uuid.New(),
		CartID:          cartID,
		Status:          enums.CheckoutSessionStatusActive,
		ShippingAddress: &testAddress,
		BillingAddress:  &testAddress,
		PaymentMethod:   enums.PaymentMethodBankTransfer,
		ShippingMethod:  "standard",
	}
	f.sessions.sessions[session.ID] = session
	return session
}

func TestBeginCheckoutValidation(t *testing.T) {
	t.Parallel()
	f := newCheckoutFixture(t)

	cases := []struct {
		name  string
		input BeginCheckoutInput
	}{
		{"missing cart id", BeginCheckoutInput{PaymentMethod: enums.PaymentMethodCard, ShippingMethod: "standard", ShippingAddress: &testAddress}},
		{"invalid payment method", BeginCheckoutInput{CartID: uuid.New(), PaymentMethod: "barter", ShippingMethod: "standard", ShippingAddress: &testAddress}},
		{"missing shipping method", BeginCheckoutInput{CartID: uuid.New(), PaymentMethod: enums.PaymentMethodCard, ShippingAddress: &testAddress}},
		{"missing shipping address", BeginCheckoutInput{CartID: uuid.New(), PaymentMethod: enums.PaymentMethodCard, ShippingMethod: "standard"}},
		{"incomplete shipping address", BeginCheckoutInput{CartID: uuid.New(), PaymentMethod: enums.PaymentMethodCard, ShippingMethod: "standard", ShippingAddress: &types.Address{Line1: "1 Main St"}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := f.svc.BeginCheckout(context.Background(), tc.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("unexpected error code: %v", err)
			}
		})
	}
}

func TestBeginCheckoutRejectsEmptyCart(t *testing.T) {
	t.Parallel()
	f := newCheckoutFixture(t)

	record := &models.Cart{
		ID:       uuid.New(),
		Status:   enums.CartStatusActive,
		Currency: enums.CurrencyUSD,
	}
	f.carts.carts[record.ID] = record

	_, err := f.svc.BeginCheckout(context.Background(), BeginCheckoutInput{
		CartID:          record.ID,
		PaymentMethod:   enums.PaymentMethodCard,
		ShippingMethod:  "standard",
		ShippingAddress: &testAddress,
	})
	if err == nil {
		t.Fatal("expected error for empty cart")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestBeginCheckoutConflictsOnSecondSession(t *testing.T) {
	t.Parallel()
	f := newCheckoutFixture(t)
	record := f.seedCart(decimal.NewFromFloat(10.00), 1, 5)

	input := BeginCheckoutInput{
		CartID:          record.ID,
		PaymentMethod:   enums.PaymentMethodBankTransfer,
		ShippingMethod:  "standard",
		ShippingAddress: &testAddress,
	}
	if _, err := f.svc.BeginCheckout(context.Background(), input); err != nil {
		t.Fatalf("first session failed: %v", err)
	}

	_, err := f.svc.BeginCheckout(context.Background(), input)
	if err == nil {
		t.Fatal("expected conflict for second active session")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestBeginCheckoutDefaultsBillingToShipping(t *testing.T) {
	t.Parallel()
	f := newCheckoutFixture(t)
	record := f.seedCart(decimal.NewFromFloat(10.00), 1, 5)

	session, err := f.svc.BeginCheckout(context.Background(), BeginCheckoutInput{
		CartID:          record.ID,
		PaymentMethod:   enums.PaymentMethodCard,
		ShippingMethod:  "express",
		ShippingAddress: &testAddress,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.BillingAddress == nil || session.BillingAddress.Line1 != testAddress.Line1 {
		t.Fatalf("billing should default to shipping, got %+v", session.BillingAddress)
	}
}

func TestCreateOrderFromCartSuccess(t *testing.T) {
	t.Parallel()
	f := newCheckoutFixture(t)
	record := f.seedCart(decimal.NewFromFloat(25.00), 2, 10)
	session := f.seedSession(record.ID)

	result, err := f.svc.CreateOrderFromCart(context.Background(), CreateOrderInput{
		CartID:            record.ID,
		CheckoutSessionID: session.ID,
		OrderSource:       enums.OrderSourceWeb,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := result.Order
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment status, got %s", order.PaymentStatus)
	}
	if !order.Total.Equal(decimal.NewFromFloat(50.00)) {
		t.Fatalf("unexpected order total: %s", order.Total)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
		t.Fatalf("unexpected order items: %+v", order.Items)
	}
	if order.Items[0].ProductName == "" {
		t.Fatal("order item should snapshot the product name")
	}
	wantSKU := f.catalog.variants[*record.Items[0].VariantID].SKU
	if order.Items[0].SKU == nil || *order.Items[0].SKU != wantSKU {
		t.Fatalf("order item should snapshot the variant sku %q, got %+v", wantSKU, order.Items[0].SKU)
	}

	// Cart converted, session completed, inventory decremented.
	if f.carts.carts[record.ID].Status != enums.CartStatusConverted {
		t.Fatalf("cart should be converted, got %s", f.carts.carts[record.ID].Status)
	}
	stored := f.sessions.sessions[session.ID]
	if stored.Status != enums.CheckoutSessionStatusCompleted || stored.CompletedAt == nil {
		t.Fatalf("session should be completed, got %+v", stored)
	}
	variant := f.catalog.variants[*record.Items[0].VariantID]
	if variant.Inventory != 8 {
		t.Fatalf("inventory should drop to 8, got %d", variant.Inventory)
	}

	// The order_created event is queued in the outbox.
	var count int64
	if err := f.db.Table("outbox_events").Where("event_type = ?", enums.EventOrderCreated).Count(&count).Error; err != nil {
		t.Fatalf("count outbox rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one outbox event, got %d", count)
	}
}

func TestCreateOrderFromCartCopiesProductSKUWithoutVariant(t *testing.T) {
	t.Parallel()
	f := newCheckoutFixture(t)

	product := f.catalog.addProduct(decimal.NewFromFloat(10.00), true)
	record := &models.Cart{
		ID:        uuid.New(),
		Status:    enums.CartStatusActive,
		Subtotal:  decimal.NewFromFloat(10.00),
		Total:     decimal.NewFromFloat(10.00),
		Currency:  enums.CurrencyUSD,
		ExpiresAt: time.Now().Add(time.Hour),
		Items: []models.CartItem{{
			ID:        uuid.New(),
			ProductID: product.ID,
			Quantity:  1,
			Price:     decimal.NewFromFloat(10.00),
			Total:     decimal.NewFromFloat(10.00),
		}},
	}
	record.Items[0].CartID = record.ID
	f.carts.carts[record.ID] = record
	session := f.seedSession(record.ID)

	result, err := f.svc.CreateOrderFromCart(context.Background(), CreateOrderInput{
		CartID:            record.ID,
		CheckoutSessionID: session.ID,
		OrderSource:       enums.OrderSourceWeb,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items := result.Order.Items
	if len(items) != 1 {
		t.Fatalf("expected one order item, got %d", len(items))
	}
	if items[0].SKU == nil || *items[0].SKU != product.SKU {
		t.Fatalf("order item should fall back to the product sku %q, got %+v", product.SKU, items[0].SKU)
	}
}

func TestCreateOrderFromCartRejectsZeroTotal(t *testing.T) {
	t.Parallel()
	f := newCheckoutFixture(t)
	record := f.seedCart(decimal.Zero, 1, 5)
	session := f.seedSession(record.ID)

	_, err := f.svc.CreateOrderFromCart(context.Background(), CreateOrderInput{
		CartID:            record.ID,
		CheckoutSessionID: session.ID,
	})
	if err == nil {
		t.Fatal("expected error for zero cart total")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestCreateOrderFromCartRejectsForeignSession(t *testing.T) {
	t.Parallel()
	f := newCheckoutFixture(t)
	record := f.seedCart(decimal.NewFromFloat(5.00), 1, 5)
	other := f.seedCart(decimal.NewFromFloat(5.00), 1, 5)
	session := f.seedSession(other.ID)

	_, err := f.svc.CreateOrderFromCart(context.Background(), CreateOrderInput{
		CartID:            record.ID,
		CheckoutSessionID: session.ID,
	})
	if err == nil {
		t.Fatal("expected error for session bound to another cart")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestCreateOrderFromCartInsufficientInventory(t *testing.T) {
	t.Parallel()
	f := newCheckoutFixture(t)
	record := f.seedCart(decimal.NewFromFloat(5.00), 3, 2)
	session := f.seedSession(record.ID)

	_, err := f.svc.CreateOrderFromCart(context.Background(), CreateOrderInput{
		CartID:            record.ID,
		CheckoutSessionID: session.ID,
	})
	if err == nil {
		t.Fatal("expected inventory error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInventory {
		t.Fatalf("unexpected error code: %v", err)
	}
	if len(f.orders.orders) != 0 {
		t.Fatal("no order should exist after inventory rejection")
	}
}

func TestCreateOrderFromCartPriceDriftWarnings(t *testing.T) {
	t.Parallel()

	t.Run("within tolerance", func(t *testing.T) {
		t.Parallel()
		f := newCheckoutFixture(t)
		record := f.seedCart(decimal.NewFromFloat(100.00), 1, 5)
		session := f.seedSession(record.ID)

		// 4.99% drift stays quiet.
		f.catalog.products[record.Items[0].ProductID].Price = decimal.NewFromFloat(104.99)

		result, err := f.svc.CreateOrderFromCart(context.Background(), CreateOrderInput{
			CartID:            record.ID,
			CheckoutSessionID: session.ID,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Warnings) != 0 {
			t.Fatalf("expected no warnings, got %+v", result.Warnings)
		}
	})

	t.Run("beyond tolerance", func(t *testing.T) {
		t.Parallel()
		f := newCheckoutFixture(t)
		record := f.seedCart(decimal.NewFromFloat(100.00), 1, 5)
		session := f.seedSession(record.ID)

		// 6% drift warns but never blocks.
		f.catalog.products[record.Items[0].ProductID].Price = decimal.NewFromFloat(106.00)

		result, err := f.svc.CreateOrderFromCart(context.Background(), CreateOrderInput{
			CartID:            record.ID,
			CheckoutSessionID: session.ID,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Warnings) != 1 {
			t.Fatalf("expected one warning, got %+v", result.Warnings)
		}
		warning := result.Warnings[0]
		if !warning.CurrentPrice.Equal(decimal.NewFromFloat(106.00)) || !warning.SnapshotPrice.Equal(decimal.NewFromFloat(100.00)) {
			t.Fatalf("unexpected warning payload: %+v", warning)
		}
	})
}

func TestCreateOrderFromCartRollsBackOnSessionConflict(t *testing.T) {
	t.Parallel()
	f := newCheckoutFixture(t)
	record := f.seedCart(decimal.NewFromFloat(12.00), 1, 5)
	session := f.seedSession(record.ID)

	// Another conversion wins the session between validation and completion.
	f.sessions.failNextClose = true

	_, err := f.svc.CreateOrderFromCart(context.Background(), CreateOrderInput{
		CartID:            record.ID,
		CheckoutSessionID: session.ID,
	})
	if err == nil {
		t.Fatal("expected state conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error code: %v", err)
	}

	// Compensation: no order survives, cart back to active, inventory restored.
	if len(f.orders.orders) != 0 {
		t.Fatalf("order should be rolled back, found %d", len(f.orders.orders))
	}
	if len(f.orders.items) != 0 {
		t.Fatalf("order items should be rolled back, found %d", len(f.orders.items))
	}
	if f.carts.carts[record.ID].Status != enums.CartStatusActive {
		t.Fatalf("cart should be restored to active, got %s", f.carts.carts[record.ID].Status)
	}
	variant := f.catalog.variants[*record.Items[0].VariantID]
	if variant.Inventory != 5 {
		t.Fatalf("inventory should be restored to 5, got %d", variant.Inventory)
	}
}

func TestCleanupStaleSessions(t *testing.T) {
	t.Parallel()
	f := newCheckoutFixture(t)

	stale := f.seedSession(uuid.New())
	stale.CreatedAt = time.Now().Add(-48 * time.Hour)
	fresh := f.seedSession(uuid.New())
	fresh.CreatedAt = time.Now()

	deleted, err := f.svc.CleanupStaleSessions(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected one deleted session, got %d", deleted)
	}
	if _, ok := f.sessions.sessions[stale.ID]; ok {
		t.Fatal("stale session should be gone")
	}
	if _, ok := f.sessions.sessions[fresh.ID]; !ok {
		t.Fatal("fresh session should survive")
	}

	if _, err := f.svc.CleanupStaleSessions(context.Background(), 0); err == nil {
		t.Fatal("expected validation error for non-positive age")
	}
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeCartsRepo struct {
	carts map[uuid.UUID]*models.Cart
}

func newFakeCartsRepo() *fakeCartsRepo {
	return &fakeCartsRepo{carts: map[uuid.UUID]*models.Cart{}}
}

func (f *fakeCartsRepo) WithTx(tx *gorm.DB) cart.CartRepository { return f }

func (f *fakeCartsRepo) Create(ctx context.Context, record *models.Cart) (*models.Cart, error) {
	clone := *record
	clone.ID = uuid.New()
	f.carts[clone.ID] = &clone
	return &clone, nil
}

func (f *fakeCartsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	record, ok := f.carts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (f *fakeCartsRepo) FindActiveBySessionID(ctx context.Context, sessionID string, now time.Time) (*models.Cart, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCartsRepo) FindActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Cart, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCartsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.CartStatus) (bool, error) {
	record, ok := f.carts[id]
	if !ok || record.Status != from {
		return false, nil
	}
	record.Status = to
	return true, nil
}

func (f *fakeCartsRepo) UpdateTotals(ctx context.Context, id uuid.UUID, subtotal, tax, shipping, total decimal.Decimal) error {
	return nil
}

func (f *fakeCartsRepo) RenewExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	return nil
}

func (f *fakeCartsRepo) FindItem(ctx context.Context, cartID, productID uuid.UUID, variantID *uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCartsRepo) CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	return item, nil
}

func (f *fakeCartsRepo) UpdateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	return item, nil
}

func (f *fakeCartsRepo) SoftDeleteItem(ctx context.Context, itemID uuid.UUID) error { return nil }

func (f *fakeCartsRepo) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	record, ok := f.carts[cartID]
	if !ok {
		return nil, nil
	}
	return record.Items, nil
}

func (f *fakeCartsRepo) FindExpiredActive(ctx context.Context, cutoff time.Time) ([]models.Cart, error) {
	return nil, nil
}

func (f *fakeCartsRepo) HardDeleteCartWithItems(ctx context.Context, cartID uuid.UUID, expiredBefore *time.Time) (bool, error) {
	record, ok := f.carts[cartID]
	if !ok || record.Status != enums.CartStatusActive {
		return false, nil
	}
	delete(f.carts, cartID)
	return true, nil
}

type fakeSessionsRepo struct {
	sessions      map[uuid.UUID]*models.CheckoutSession
	failNextClose bool
}

func newFakeSessionsRepo() *fakeSessionsRepo {
	return &fakeSessionsRepo{sessions: map[uuid.UUID]*models.CheckoutSession{}}
}

func (f *fakeSessionsRepo) WithTx(tx *gorm.DB) SessionRepository { return f }

func (f *fakeSessionsRepo) Create(ctx context.Context, session *models.CheckoutSession) (*models.CheckoutSession, error) {
	clone := *session
	clone.ID = uuid.New()
	if clone.Status == "" {
		clone.Status = enums.CheckoutSessionStatusActive
	}
	clone.CreatedAt = time.Now()
	f.sessions[clone.ID] = &clone
	return &clone, nil
}

func (f *fakeSessionsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *session
	return &clone, nil
}

func (f *fakeSessionsRepo) FindActiveByCartID(ctx context.Context, cartID uuid.UUID) (*models.CheckoutSession, error) {
	for _, session := range f.sessions {
		if session.CartID == cartID && session.Status == enums.CheckoutSessionStatusActive {
			clone := *session
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSessionsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.CheckoutSessionStatus, completedAt *time.Time) (bool, error) {
	if f.failNextClose && to == enums.CheckoutSessionStatusCompleted {
		f.failNextClose = false
		return false, nil
	}
	session, ok := f.sessions[id]
	if !ok || session.Status != from {
		return false, nil
	}
	session.Status = to
	session.CompletedAt = completedAt
	return true, nil
}

func (f *fakeSessionsRepo) FindStaleActive(ctx context.Context, cutoff time.Time) ([]models.CheckoutSession, error) {
	var out []models.CheckoutSession
	for _, session := range f.sessions {
		if session.Status == enums.CheckoutSessionStatusActive && session.CreatedAt.Before(cutoff) {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (f *fakeSessionsRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.sessions, id)
	return nil
}

type fakeOrdersRepo struct {
	orders map[uuid.UUID]*models.Order
	items  map[uuid.UUID][]models.OrderItem
}

func newFakeOrdersRepo() *fakeOrdersRepo {
	return &fakeOrdersRepo{
		orders: map[uuid.UUID]*models.Order{},
		items:  map[uuid.UUID][]models.OrderItem{},
	}
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) orders.OrderRepository { return f }

func (f *fakeOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	clone := *order
	clone.ID = uuid.New()
	clone.CreatedAt = time.Now()
	f.orders[clone.ID] = &clone
	return &clone, nil
}

func (f *fakeOrdersRepo) CreateItems(ctx context.Context, items []models.OrderItem) error {
	for _, item := range items {
		item.ID = uuid.New()
		f.items[item.OrderID] = append(f.items[item.OrderID], item)
	}
	return nil
}

func (f *fakeOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *order
	clone.Items = f.items[id]
	return &clone, nil
}

func (f *fakeOrdersRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	for _, order := range f.orders {
		if order.OrderNumber == orderNumber {
			return f.FindByID(ctx, order.ID)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int, before *time.Time) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error {
	if order, ok := f.orders[id]; ok {
		order.PaymentStatus = status
	}
	return nil
}

func (f *fakeOrdersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	if order, ok := f.orders[id]; ok {
		order.Status = status
	}
	return nil
}

func (f *fakeOrdersRepo) DeleteItemsByOrder(ctx context.Context, orderID uuid.UUID) error {
	delete(f.items, orderID)
	return nil
}

func (f *fakeOrdersRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.orders, id)
	return nil
}

type fakeCatalogRepo struct {
	products map[uuid.UUID]*models.Product
	variants map[uuid.UUID]*models.ProductVariant
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		products: map[uuid.UUID]*models.Product{},
		variants: map[uuid.UUID]*models.ProductVariant{},
	}
}

func (f *fakeCatalogRepo) addProduct(price decimal.Decimal, active bool) *models.Product {
	product := &models.Product{ID: uuid.New(), Name: "widget", SKU: uuid.NewString(), Price: price, IsActive: active}
	f.products[product.ID] = product
	return product
}

func (f *fakeCatalogRepo) addVariant(productID uuid.UUID, price *decimal.Decimal, inventory int) *models.ProductVariant {
	variant := &models.ProductVariant{ID: uuid.New(), ProductID: productID, Name: "variant", SKU: uuid.NewString(), Price: price, Inventory: inventory, IsActive: true}
	f.variants[variant.ID] = variant
	return variant
}

func (f *fakeCatalogRepo) WithTx(tx *gorm.DB) products.ProductRepository { return f }

func (f *fakeCatalogRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *product
	return &clone, nil
}

func (f *fakeCatalogRepo) FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	variant, ok := f.variants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *variant
	return &clone, nil
}

func (f *fakeCatalogRepo) DecrementInventory(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	variant, ok := f.variants[variantID]
	if !ok || variant.Inventory < qty {
		return false, nil
	}
	variant.Inventory -= qty
	return true, nil
}

func (f *fakeCatalogRepo) RestoreInventory(ctx context.Context, variantID uuid.UUID, qty int) error {
	if variant, ok := f.variants[variantID]; ok {
		variant.Inventory += qty
	}
	return nil
}
