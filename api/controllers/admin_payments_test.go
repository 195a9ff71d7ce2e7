package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	paymentsvc "github.com/commercecore/storefront-backend/internal/payments"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
)

type stubPaymentService struct {
	payment          *models.Payment
	err              error
	lastPaymentID    uuid.UUID
	lastConfirmInput paymentsvc.ConfirmPaymentInput
	lastCancelInput  paymentsvc.CancelPaymentInput
	confirmCalls     int
	cancelCalls      int
}

func (s *stubPaymentService) CreatePayment(ctx context.Context, input paymentsvc.CreatePaymentInput) (*models.Payment, error) {
	return s.payment, s.err
}

func (s *stubPaymentService) ConfirmManualPayment(ctx context.Context, paymentID uuid.UUID, input paymentsvc.ConfirmPaymentInput) (*models.Payment, error) {
	s.confirmCalls++
	s.lastPaymentID = paymentID
	s.lastConfirmInput = input
	return s.payment, s.err
}

func (s *stubPaymentService) CancelPayment(ctx context.Context, paymentID uuid.UUID, input paymentsvc.CancelPaymentInput) (*models.Payment, error) {
	s.cancelCalls++
	s.lastPaymentID = paymentID
	s.lastCancelInput = input
	return s.payment, s.err
}

func (s *stubPaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	s.lastPaymentID = paymentID
	return s.payment, s.err
}

func settledPaymentRecord(status enums.PaymentStatus) *models.Payment {
	return &models.Payment{
		ID:            uuid.New(),
		OrderID:       uuid.New(),
		PaymentMethod: enums.PaymentMethodBankTransfer,
		PaymentType:   enums.PaymentTypeManual,
		Status:        status,
		Amount:        decimal.NewFromInt(42),
		Currency:      enums.CurrencyUSD,
	}
}

func TestAdminConfirmPaymentSuccess(t *testing.T) {
	record := settledPaymentRecord(enums.PaymentStatusConfirmed)
	service := &stubPaymentService{payment: record}
	handler := AdminConfirmPayment(service, nil)

	body := `{"decision": "confirmed", "confirmed_by": "ops@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/payments/"+record.ID.String()+"/confirm", strings.NewReader(body))
	req = withRouteParam(req, "paymentId", record.ID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if service.lastPaymentID != record.ID {
		t.Fatalf("expected payment id %s, got %s", record.ID, service.lastPaymentID)
	}
	if service.lastConfirmInput.Decision != enums.ConfirmationStatusConfirmed {
		t.Fatalf("expected confirmed decision, got %s", service.lastConfirmInput.Decision)
	}
	if service.lastConfirmInput.ConfirmedBy != "ops@example.com" {
		t.Fatalf("unexpected confirmed by: %s", service.lastConfirmInput.ConfirmedBy)
	}

	var envelope struct {
		Data paymentResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != string(enums.PaymentStatusConfirmed) {
		t.Fatalf("unexpected payment status: %s", envelope.Data.Status)
	}
}

func TestAdminConfirmPaymentRejectsUnknownDecision(t *testing.T) {
	service := &stubPaymentService{}
	handler := AdminConfirmPayment(service, nil)

	paymentID := uuid.New()
	body := `{"decision": "maybe", "confirmed_by": "ops"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/payments/"+paymentID.String()+"/confirm", strings.NewReader(body))
	req = withRouteParam(req, "paymentId", paymentID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if service.confirmCalls != 0 {
		t.Fatal("service must not be called for an unknown decision")
	}
}

func TestAdminCancelPaymentSuccess(t *testing.T) {
	record := settledPaymentRecord(enums.PaymentStatusCancelled)
	service := &stubPaymentService{payment: record}
	handler := AdminCancelPayment(service, nil)

	body := `{"cancelled_by": "ops@example.com", "notes": "duplicate attempt"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/payments/"+record.ID.String()+"/cancel", strings.NewReader(body))
	req = withRouteParam(req, "paymentId", record.ID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if service.lastPaymentID != record.ID {
		t.Fatalf("expected payment id %s, got %s", record.ID, service.lastPaymentID)
	}
	if service.lastCancelInput.CancelledBy != "ops@example.com" {
		t.Fatalf("unexpected cancelled by: %s", service.lastCancelInput.CancelledBy)
	}
	if service.lastCancelInput.Notes == nil || *service.lastCancelInput.Notes != "duplicate attempt" {
		t.Fatalf("notes should pass through, got %+v", service.lastCancelInput.Notes)
	}
}

func TestAdminCancelPaymentRequiresCancelledBy(t *testing.T) {
	service := &stubPaymentService{}
	handler := AdminCancelPayment(service, nil)

	paymentID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/payments/"+paymentID.String()+"/cancel", strings.NewReader(`{}`))
	req = withRouteParam(req, "paymentId", paymentID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if service.cancelCalls != 0 {
		t.Fatal("service must not be called for an invalid body")
	}
}

func TestAdminCancelPaymentSurfacesStateConflict(t *testing.T) {
	service := &stubPaymentService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending")}
	handler := AdminCancelPayment(service, nil)

	paymentID := uuid.New()
	body := `{"cancelled_by": "ops"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/payments/"+paymentID.String()+"/cancel", strings.NewReader(body))
	req = withRouteParam(req, "paymentId", paymentID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}
