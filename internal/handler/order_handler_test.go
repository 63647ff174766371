package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/loyalty-engine/internal/model"
	"github.com/threadline/loyalty-engine/internal/service"
	"github.com/threadline/loyalty-engine/internal/validator"
)

// mockOrderService is a mock implementation of OrderServiceInterface.
type mockOrderService struct {
	createCODFn     func(ctx context.Context, userID uuid.UUID, req *model.CreateOrderRequest) (*model.OrderResponse, error)
	verifyPaymentFn func(ctx context.Context, userID, orderID uuid.UUID) (*model.OrderResponse, error)
	adminMarkPaidFn func(ctx context.Context, orderID uuid.UUID) (*model.OrderResponse, error)
}

func (m *mockOrderService) CreateCOD(ctx context.Context, userID uuid.UUID, req *model.CreateOrderRequest) (*model.OrderResponse, error) {
	if m.createCODFn != nil {
		return m.createCODFn(ctx, userID, req)
	}
	return &model.OrderResponse{}, nil
}

func (m *mockOrderService) VerifyPayment(ctx context.Context, userID, orderID uuid.UUID) (*model.OrderResponse, error) {
	if m.verifyPaymentFn != nil {
		return m.verifyPaymentFn(ctx, userID, orderID)
	}
	return &model.OrderResponse{}, nil
}

func (m *mockOrderService) AdminMarkPaid(ctx context.Context, orderID uuid.UUID) (*model.OrderResponse, error) {
	if m.adminMarkPaidFn != nil {
		return m.adminMarkPaidFn(ctx, orderID)
	}
	return &model.OrderResponse{}, nil
}

func setupOrderApp(mockSvc *mockOrderService) *fiber.App {
	app := fiber.New()
	h := NewOrderHandler(mockSvc, validator.New())
	orders := app.Group("/api/orders", RequireUser)
	orders.Post("/cod", h.CreateCOD)
	orders.Post("/:id/verify-payment", h.VerifyPayment)
	app.Put("/api/admin/orders/:id/mark-paid", h.AdminMarkPaid)
	return app
}

func TestCreateCOD_HandlerSuccess(t *testing.T) {
	userID := uuid.New()
	mockSvc := &mockOrderService{
		createCODFn: func(ctx context.Context, id uuid.UUID, req *model.CreateOrderRequest) (*model.OrderResponse, error) {
			assert.Equal(t, userID, id)
			assert.Equal(t, "THRD-CHECKOUT", req.CouponCode)
			return &model.OrderResponse{
				Order: model.Order{
					ID:     uuid.New(),
					UserID: id,
					Status: model.OrderStatusPlaced,
					Total:  decimal.NewFromInt(600),
				},
				Discount:     decimal.NewFromInt(150),
				CouponMarked: true,
			}, nil
		},
	}
	app := setupOrderApp(mockSvc)

	body := []byte(`{"total": 750, "total_quantity": 3, "coupon_code": "THRD-CHECKOUT"}`)
	resp, err := app.Test(authedRequest(http.MethodPost, "/api/orders/cod", body, userID))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var result model.OrderResponse
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPlaced, result.Order.Status)
	assert.True(t, result.CouponMarked)
}

func TestCreateCOD_ZeroQuantity(t *testing.T) {
	app := setupOrderApp(&mockOrderService{})

	body := []byte(`{"total": 750, "total_quantity": 0}`)
	resp, err := app.Test(authedRequest(http.MethodPost, "/api/orders/cod", body, uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateCOD_CouponFailureBubblesUp(t *testing.T) {
	mockSvc := &mockOrderService{
		createCODFn: func(ctx context.Context, id uuid.UUID, req *model.CreateOrderRequest) (*model.OrderResponse, error) {
			return nil, service.ErrCouponUsed
		},
	}
	app := setupOrderApp(mockSvc)

	body := []byte(`{"total": 750, "total_quantity": 1, "coupon_code": "THRD-USEDONE1"}`)
	resp, err := app.Test(authedRequest(http.MethodPost, "/api/orders/cod", body, uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var result map[string]string
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Equal(t, "coupon already used", result["error"])
}

func TestVerifyPayment_HandlerSuccess(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	mockSvc := &mockOrderService{
		verifyPaymentFn: func(ctx context.Context, uid, oid uuid.UUID) (*model.OrderResponse, error) {
			assert.Equal(t, userID, uid)
			assert.Equal(t, orderID, oid)
			return &model.OrderResponse{
				Order:        model.Order{ID: oid, UserID: uid, Status: model.OrderStatusPaid},
				CouponMarked: true,
			}, nil
		},
	}
	app := setupOrderApp(mockSvc)

	resp, err := app.Test(authedRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/verify-payment", nil, userID))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result model.OrderResponse
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, result.Order.Status)
}

func TestVerifyPayment_BadOrderID(t *testing.T) {
	app := setupOrderApp(&mockOrderService{})

	resp, err := app.Test(authedRequest(http.MethodPost, "/api/orders/not-a-uuid/verify-payment", nil, uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	err = json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)
	assert.Equal(t, "invalid order id", result["error"])
}

func TestVerifyPayment_OrderNotFound(t *testing.T) {
	mockSvc := &mockOrderService{
		verifyPaymentFn: func(ctx context.Context, uid, oid uuid.UUID) (*model.OrderResponse, error) {
			return nil, service.ErrOrderNotFound
		},
	}
	app := setupOrderApp(mockSvc)

	resp, err := app.Test(authedRequest(http.MethodPost, "/api/orders/"+uuid.NewString()+"/verify-payment", nil, uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAdminMarkPaid_HandlerSuccess(t *testing.T) {
	orderID := uuid.New()
	mockSvc := &mockOrderService{
		adminMarkPaidFn: func(ctx context.Context, oid uuid.UUID) (*model.OrderResponse, error) {
			assert.Equal(t, orderID, oid)
			return &model.OrderResponse{
				Order: model.Order{ID: oid, Status: model.OrderStatusPaid},
			}, nil
		},
	}
	app := setupOrderApp(mockSvc)

	// The admin surface sits outside RequireUser; no identity header needed.
	req := httptest.NewRequest(http.MethodPut, "/api/admin/orders/"+orderID.String()+"/mark-paid", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminMarkPaid_InternalServerError(t *testing.T) {
	mockSvc := &mockOrderService{
		adminMarkPaidFn: func(ctx context.Context, oid uuid.UUID) (*model.OrderResponse, error) {
			return nil, errors.New("database connection failed")
		},
	}
	app := setupOrderApp(mockSvc)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/orders/"+uuid.NewString()+"/mark-paid", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
