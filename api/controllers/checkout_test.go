package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commercecore/storefront-backend/api/middleware"
	checkoutsvc "github.com/commercecore/storefront-backend/internal/checkout"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
)

type stubCheckoutService struct {
	session        *models.CheckoutSession
	result         *checkoutsvc.CreateOrderResult
	err            error
	lastBeginInput checkoutsvc.BeginCheckoutInput
	lastOrderInput checkoutsvc.CreateOrderInput
}

func (s *stubCheckoutService) BeginCheckout(ctx context.Context, input checkoutsvc.BeginCheckoutInput) (*models.CheckoutSession, error) {
	s.lastBeginInput = input
	return s.session, s.err
}

func (s *stubCheckoutService) CreateOrderFromCart(ctx context.Context, input checkoutsvc.CreateOrderInput) (*checkoutsvc.CreateOrderResult, error) {
	s.lastOrderInput = input
	return s.result, s.err
}

func (s *stubCheckoutService) CleanupStaleSessions(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, s.err
}

func beginCheckoutBody(cartID uuid.UUID) string {
	return fmt.Sprintf(`{
		"cart_id": "%s",
		"shipping_address": {
			"first_name": "Ada",
			"last_name": "Lovelace",
			"line1": "1 Main St",
			"city": "Springfield",
			"state": "IL",
			"postal_code": "62701",
			"country": "US"
		},
		"payment_method": "bank_transfer",
		"shipping_method": "standard"
	}`, cartID)
}

func TestCheckoutBeginSuccess(t *testing.T) {
	cartID := uuid.New()
	session := &models.CheckoutSession{
		ID:             uuid.New(),
		CartID:         cartID,
		Status:         enums.CheckoutSessionStatusActive,
		PaymentMethod:  enums.PaymentMethodBankTransfer,
		ShippingMethod: "standard",
	}
	service := &stubCheckoutService{session: session}
	handler := CheckoutBegin(service, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(beginCheckoutBody(cartID)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	var envelope struct {
		Data sessionResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.SessionID != session.ID {
		t.Fatalf("unexpected session id %s", envelope.Data.SessionID)
	}
	if service.lastBeginInput.CartID != cartID {
		t.Fatalf("expected cart id %s, got %s", cartID, service.lastBeginInput.CartID)
	}
	if service.lastBeginInput.PaymentMethod != enums.PaymentMethodBankTransfer {
		t.Fatalf("unexpected payment method %s", service.lastBeginInput.PaymentMethod)
	}
}

func TestCheckoutBeginRejectsUnknownPaymentMethod(t *testing.T) {
	handler := CheckoutBegin(&stubCheckoutService{}, nil)

	body := strings.Replace(beginCheckoutBody(uuid.New()), "bank_transfer", "barter", 1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutBeginSurfacesConflict(t *testing.T) {
	service := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeConflict, "cart already has an active checkout session")}
	handler := CheckoutBegin(service, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(beginCheckoutBody(uuid.New())))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCheckoutCreateOrderSuccess(t *testing.T) {
	cartID := uuid.New()
	sessionID := uuid.New()
	userID := uuid.New()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD000000010001",
		CartID:      cartID,
		Status:      enums.OrderStatusPending,
		Total:       decimal.NewFromInt(50),
	}
	service := &stubCheckoutService{result: &checkoutsvc.CreateOrderResult{Order: order}}
	handler := CheckoutCreateOrder(service, nil)

	body := fmt.Sprintf(`{"cart_id": "%s"}`, cartID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/"+sessionID.String()+"/order", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	req = withRouteParam(req, "sessionId", sessionID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if service.lastOrderInput.CheckoutSessionID != sessionID {
		t.Fatalf("expected session id %s, got %s", sessionID, service.lastOrderInput.CheckoutSessionID)
	}
	if service.lastOrderInput.UserID == nil || *service.lastOrderInput.UserID != userID {
		t.Fatalf("expected user id %s, got %v", userID, service.lastOrderInput.UserID)
	}
	if service.lastOrderInput.OrderSource != enums.OrderSourceWeb {
		t.Fatalf("expected default web source, got %s", service.lastOrderInput.OrderSource)
	}

	var envelope struct {
		Data createOrderResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Order == nil || envelope.Data.Order.OrderNumber != order.OrderNumber {
		t.Fatalf("unexpected order payload %+v", envelope.Data.Order)
	}
}

func TestCheckoutCreateOrderGuestOmitsUser(t *testing.T) {
	cartID := uuid.New()
	sessionID := uuid.New()
	order := &models.Order{ID: uuid.New(), OrderNumber: "ORD000000020001", CartID: cartID}
	service := &stubCheckoutService{result: &checkoutsvc.CreateOrderResult{Order: order}}
	handler := CheckoutCreateOrder(service, nil)

	body := fmt.Sprintf(`{"cart_id": "%s"}`, cartID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/"+sessionID.String()+"/order", strings.NewReader(body))
	req = req.WithContext(middleware.WithSessionID(req.Context(), "sess-1"))
	req = withRouteParam(req, "sessionId", sessionID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if service.lastOrderInput.UserID != nil {
		t.Fatalf("guest conversion must not carry a user id, got %v", service.lastOrderInput.UserID)
	}
}

func TestCheckoutCreateOrderSurfacesInventoryConflict(t *testing.T) {
	sessionID := uuid.New()
	service := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeInventory, "insufficient inventory")}
	handler := CheckoutCreateOrder(service, nil)

	body := fmt.Sprintf(`{"cart_id": "%s"}`, uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/"+sessionID.String()+"/order", strings.NewReader(body))
	req = req.WithContext(middleware.WithSessionID(req.Context(), "sess-1"))
	req = withRouteParam(req, "sessionId", sessionID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}
