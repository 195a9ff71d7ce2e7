package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/commercecore/storefront-backend/internal/products"
	"github.com/commercecore/storefront-backend/pkg/config"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Owner identifies which identity a cart operation acts for. Exactly one
// of SessionID/UserID must be set.
type Owner struct {
	SessionID *string
	UserID    *uuid.UUID
}

func (o Owner) validate() error {
	hasSession := o.SessionID != nil && strings.TrimSpace(*o.SessionID) != ""
	hasUser := o.UserID != nil && *o.UserID != uuid.Nil
	if hasSession == hasUser {
		return pkgerrors.New(pkgerrors.CodeValidation, "exactly one of session id or user id is required")
	}
	return nil
}

// AddItemInput carries the payload for adding a line to a cart. Notes and
// selected options are stored on the line as given; merges into an existing
// line keep that line's values.
type AddItemInput struct {
	ProductID       uuid.UUID
	VariantID       *uuid.UUID
	Quantity        int
	Notes           *string
	SelectedOptions types.JSONMap
}

// Service exposes the cart lifecycle operations.
type Service interface {
	CreateCart(ctx context.Context, owner Owner) (*models.Cart, error)
	GetCart(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error)
	MigrateGuestToUserCart(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Cart, error)
	CleanupExpiredCarts(ctx context.Context) (int, error)
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
}

type service struct {
	repo     CartRepository
	tx       txRunner
	catalog  products.ProductRepository
	cartCfg  config.CartConfig
	now      func() time.Time
	onExpire func(ctx context.Context, tx *gorm.DB, cart models.Cart) error
}

// ServiceParams bundles the dependencies required to build a cart service.
type ServiceParams struct {
	Repo    CartRepository
	Tx      txRunner
	Catalog products.ProductRepository
	CartCfg config.CartConfig
	// OnExpire runs inside the per-cart sweep transaction, after the cart
	// is deleted. Used to queue the expiration event.
	OnExpire func(ctx context.Context, tx *gorm.DB, cart models.Cart) error
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		catalog:  params.Catalog,
		cartCfg:  params.CartCfg,
		now:      time.Now,
		onExpire: params.OnExpire,
	}, nil
}

func (s *service) ttl() time.Duration {
	if s.cartCfg.TTL > 0 {
		return s.cartCfg.TTL
	}
	return 30 * 24 * time.Hour
}

// CreateCart creates an active cart with zeroed totals for the owner.
// It fails with a conflict when an active cart already exists.
func (s *service) CreateCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if existing, err := s.findActive(ctx, s.repo, owner, now); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an active cart already exists for this identity")
	}

	record := &models.Cart{
		SessionID: owner.SessionID,
		UserID:    owner.UserID,
		Status:    enums.CartStatusActive,
		Subtotal:  decimal.Zero,
		Tax:       decimal.Zero,
		Shipping:  decimal.Zero,
		Total:     decimal.Zero,
		Currency:  enums.CurrencyUSD,
		ExpiresAt: now.Add(s.ttl()),
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	return created, nil
}

// GetCart returns the owner's active, non-expired cart, or nil when none exists.
func (s *service) GetCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	return s.findActive(ctx, s.repo, owner, s.now().UTC())
}

func (s *service) findActive(ctx context.Context, repo CartRepository, owner Owner, now time.Time) (*models.Cart, error) {
	var (
		record *models.Cart
		err    error
	)
	if owner.SessionID != nil {
		record, err = repo.FindActiveBySessionID(ctx, *owner.SessionID, now)
	} else {
		record, err = repo.FindActiveByUserID(ctx, *owner.UserID, now)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return record, nil
}

// AddItem appends a line to the owner's cart, creating the cart when absent.
// Lines for the same (product, variant) pair merge by summing quantities at
// the existing snapshot price.
func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	record, err := s.GetCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record, err = s.CreateCart(ctx, owner)
		if err != nil {
			return nil, err
		}
	}

	price, err := s.snapshotPrice(ctx, input.ProductID, input.VariantID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindItem(ctx, record.ID, input.ProductID, input.VariantID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}

		if existing != nil {
			existing.Quantity += input.Quantity
			existing.Total = existing.Price.Mul(decimal.NewFromInt(int64(existing.Quantity)))
			if _, err := repo.UpdateItem(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
			}
		} else {
			item := &models.CartItem{
				CartID:          record.ID,
				ProductID:       input.ProductID,
				VariantID:       input.VariantID,
				Quantity:        input.Quantity,
				Price:           price,
				Total:           price.Mul(decimal.NewFromInt(int64(input.Quantity))),
				Notes:           input.Notes,
				SelectedOptions: input.SelectedOptions,
			}
			if _, err := repo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart item")
			}
		}

		return s.refreshCart(ctx, repo, record)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, record.ID)
}

// UpdateItemQuantity sets the quantity of a line and recomputes its total
// at the snapshot price.
func (s *service) UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	record, err := s.requireActiveCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	item := findItemByID(record.Items, itemID)
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item.Quantity = quantity
		item.Total = item.Price.Mul(decimal.NewFromInt(int64(quantity)))
		if _, err := repo.UpdateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}
		return s.refreshCart(ctx, repo, record)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, record.ID)
}

// RemoveItem soft-deletes a line and recomputes the cart totals.
func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}

	record, err := s.requireActiveCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	if findItemByID(record.Items, itemID) == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SoftDeleteItem(ctx, itemID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
		}
		return s.refreshCart(ctx, repo, record)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, record.ID)
}

// MigrateGuestToUserCart merges a guest cart into the user's cart. The call
// is an idempotent no-op when no guest cart exists: it returns (nil, nil).
// Merged lines keep the user cart's snapshot price and sum the quantities.
func (s *service) MigrateGuestToUserCart(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Cart, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	now := s.now().UTC()

	guestCart, err := s.findActive(ctx, s.repo, Owner{SessionID: &sessionID}, now)
	if err != nil {
		return nil, err
	}
	if guestCart == nil {
		return nil, nil
	}

	var userCartID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		userCart, err := s.findActive(ctx, repo, Owner{UserID: &userID}, now)
		if err != nil {
			return err
		}
		if userCart == nil {
			userCart, err = repo.Create(ctx, &models.Cart{
				UserID:    &userID,
				Status:    enums.CartStatusActive,
				Subtotal:  decimal.Zero,
				Tax:       decimal.Zero,
				Shipping:  decimal.Zero,
				Total:     decimal.Zero,
				Currency:  guestCart.Currency,
				ExpiresAt: now.Add(s.ttl()),
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user cart")
			}
		}
		userCartID = userCart.ID

		guestItems, err := repo.ListItems(ctx, guestCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list guest items")
		}

		for _, guestItem := range guestItems {
			existing, err := repo.FindItem(ctx, userCart.ID, guestItem.ProductID, guestItem.VariantID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user item")
			}
			if existing != nil {
				// Destination price wins: re-total at the user cart's snapshot.
				existing.Quantity += guestItem.Quantity
				existing.Total = existing.Price.Mul(decimal.NewFromInt(int64(existing.Quantity)))
				if _, err := repo.UpdateItem(ctx, existing); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge user item")
				}
				continue
			}
			copied := &models.CartItem{
				CartID:          userCart.ID,
				ProductID:       guestItem.ProductID,
				VariantID:       guestItem.VariantID,
				Quantity:        guestItem.Quantity,
				Price:           guestItem.Price,
				Total:           guestItem.Total,
				Notes:           guestItem.Notes,
				SelectedOptions: guestItem.SelectedOptions,
			}
			if _, err := repo.CreateItem(ctx, copied); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "copy guest item")
			}
		}

		if _, err := repo.UpdateStatus(ctx, guestCart.ID, enums.CartStatusActive, enums.CartStatusConverted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert guest cart")
		}

		return s.refreshCart(ctx, repo, userCart)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, userCartID)
}

// CleanupExpiredCarts deletes expired active carts and their items. One cart
// failing does not abort the sweep; the count of removed carts is returned
// alongside any aggregated error.
func (s *service) CleanupExpiredCarts(ctx context.Context) (int, error) {
	now := s.now().UTC()
	expired, err := s.repo.FindExpiredActive(ctx, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired carts")
	}

	deleted := 0
	var errs []error
	for _, record := range expired {
		record := record
		removed := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			var err error
			// Re-checked at delete time: a cart converted or renewed since
			// the snapshot read is left alone.
			removed, err = repo.HardDeleteCartWithItems(ctx, record.ID, &now)
			if err != nil || !removed {
				return err
			}
			if s.onExpire != nil {
				return s.onExpire(ctx, tx, record)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("cart %s: %w", record.ID, err))
			continue
		}
		if removed {
			deleted++
		}
	}

	return deleted, combineErrors(errs)
}

// DeleteCart tears a cart down explicitly. The delete only applies while
// the cart is still active; a cart claimed by checkout in the meantime is
// left intact and the caller gets a state conflict.
func (s *service) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	if cartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	var removed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		removed, err = s.repo.WithTx(tx).HardDeleteCartWithItems(ctx, cartID, nil)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is not active")
	}
	return nil
}

func (s *service) requireActiveCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	record, err := s.GetCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart for this identity")
	}
	return record, nil
}

// refreshCart recomputes totals from live items and renews the expiry window.
func (s *service) refreshCart(ctx context.Context, repo CartRepository, record *models.Cart) error {
	items, err := repo.ListItems(ctx, record.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart items")
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Total)
	}
	total := subtotal.Add(record.Tax).Add(record.Shipping)

	if err := repo.UpdateTotals(ctx, record.ID, subtotal, record.Tax, record.Shipping, total); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart totals")
	}
	if err := repo.RenewExpiry(ctx, record.ID, s.now().UTC().Add(s.ttl())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "renew cart expiry")
	}
	return nil
}

// snapshotPrice resolves the price to freeze on the line: the variant's
// override when present, the product price otherwise.
func (s *service) snapshotPrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (decimal.Decimal, error) {
	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	if variantID == nil {
		return product.Price, nil
	}

	variant, err := s.catalog.FindVariantByID(ctx, *variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if variant.ProductID != productID {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product")
	}
	if variant.Price != nil {
		return *variant.Price, nil
	}
	return product.Price, nil
}

func findItemByID(items []models.CartItem, itemID uuid.UUID) *models.CartItem {
	for i := range items {
		if items[i].ID == itemID {
			return &items[i]
		}
	}
	return nil
}
