package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/commercecore/storefront-backend/api/middleware"
	"github.com/commercecore/storefront-backend/api/responses"
	"github.com/commercecore/storefront-backend/api/validators"
	ordersrepo "github.com/commercecore/storefront-backend/internal/orders"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/pagination"
	"github.com/commercecore/storefront-backend/pkg/types"
)

// OrderList returns the authenticated user's orders, newest first, with
// cursor pagination.
func OrderList(repo ordersrepo.OrderRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order repository unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var before *time.Time
		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}
		if cursor != nil {
			before = &cursor.CreatedAt
		}

		records, err := repo.ListByUser(r.Context(), userID, pagination.LimitWithBuffer(limit), before)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders"))
			return
		}

		nextCursor := ""
		if len(records) > limit {
			last := records[limit-1]
			nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			records = records[:limit]
		}

		items := make([]*orderResponse, 0, len(records))
		for i := range records {
			items = append(items, newOrderResponse(&records[i]))
		}

		responses.WriteSuccess(w, orderListResponse{Orders: items, NextCursor: nextCursor})
	}
}

// OrderDetail returns a single order. Users see only their own orders;
// guests look orders up by order number instead.
func OrderDetail(repo ordersrepo.OrderRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order repository unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := repo.FindByID(r.Context(), orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order"))
			return
		}

		if err := authorizeOrderAccess(r, record); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(record))
	}
}

// OrderByNumber resolves an order by its public order number. Guests use
// this to track orders placed without an account.
func OrderByNumber(repo ordersrepo.OrderRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order repository unavailable"))
			return
		}

		orderNumber := strings.TrimSpace(strings.ToUpper(r.URL.Query().Get("order_number")))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order_number query parameter required"))
			return
		}

		record, err := repo.FindByOrderNumber(r.Context(), orderNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order"))
			return
		}

		if err := authorizeOrderAccess(r, record); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(record))
	}
}

// authorizeOrderAccess lets admins and owners through. Guest orders carry
// no user id, so any session-bearing caller holding the order id or number
// may read them.
func authorizeOrderAccess(r *http.Request, record *models.Order) error {
	ctx := r.Context()
	if middleware.IsAdminFromContext(ctx) {
		return nil
	}
	if record.UserID == nil {
		return nil
	}
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" || raw != record.UserID.String() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return nil
}

type orderListResponse struct {
	Orders     []*orderResponse `json:"orders"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type orderResponse struct {
	OrderID         uuid.UUID           `json:"order_id"`
	OrderNumber     string              `json:"order_number"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"payment_status"`
	PaymentMethod   string              `json:"payment_method"`
	OrderSource     string              `json:"order_source"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Tax             decimal.Decimal     `json:"tax"`
	Shipping        decimal.Decimal     `json:"shipping"`
	Discount        decimal.Decimal     `json:"discount"`
	Total           decimal.Decimal     `json:"total"`
	Currency        string              `json:"currency"`
	ShippingAddress *types.Address      `json:"shipping_address,omitempty"`
	BillingAddress  *types.Address      `json:"billing_address,omitempty"`
	IsGift          bool                `json:"is_gift"`
	GiftMessage     *string             `json:"gift_message,omitempty"`
	CustomerNotes   *string             `json:"customer_notes,omitempty"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ItemID      uuid.UUID       `json:"item_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   *uuid.UUID      `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	SKU         *string         `json:"sku,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

func newOrderResponse(record *models.Order) *orderResponse {
	if record == nil {
		return nil
	}
	items := make([]orderItemResponse, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, orderItemResponse{
			ItemID:      item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Total:       item.Total,
		})
	}
	return &orderResponse{
		OrderID:         record.ID,
		OrderNumber:     record.OrderNumber,
		Status:          string(record.Status),
		PaymentStatus:   string(record.PaymentStatus),
		PaymentMethod:   string(record.PaymentMethod),
		OrderSource:     string(record.OrderSource),
		Subtotal:        record.Subtotal,
		Tax:             record.Tax,
		Shipping:        record.Shipping,
		Discount:        record.Discount,
		Total:           record.Total,
		Currency:        string(record.Currency),
		ShippingAddress: record.ShippingAddress,
		BillingAddress:  record.BillingAddress,
		IsGift:          record.IsGift,
		GiftMessage:     record.GiftMessage,
		CustomerNotes:   record.CustomerNotes,
		Items:           items,
		CreatedAt:       record.CreatedAt,
	}
}
