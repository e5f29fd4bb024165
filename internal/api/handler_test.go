package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"paystack-fulfillment/internal/models"
	"paystack-fulfillment/internal/service"
	"paystack-fulfillment/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	body      []byte
	signature string
	result    *service.WebhookResult
	err       error
}

func (s *stubProcessor) ProcessWebhook(_ context.Context, rawBody []byte, signature string) (*service.WebhookResult, error) {
	s.body = rawBody
	s.signature = signature
	return s.result, s.err
}

type stubOrders struct{}

func (stubOrders) GetOrder(_ context.Context, id string) (*service.OrderDetails, error) {
	if id == "o-1" {
		return &service.OrderDetails{Order: &models.Order{ID: "o-1", Status: models.OrderStatusCompleted}}, nil
	}
	if id == "boom" {
		return nil, errors.New("db down")
	}
	return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
}

func (stubOrders) GetOrderByReference(_ context.Context, ref string) (*service.OrderDetails, error) {
	if ref == "T-1" {
		return &service.OrderDetails{Order: &models.Order{ID: "o-1", PaystackReference: ref}}, nil
	}
	return nil, store.ErrNotFound
}

type stubStock map[string]int

func (s stubStock) GetAvailableStock(_ context.Context, productID string) (int, error) {
	qty, ok := s[productID]
	if !ok {
		return 0, store.ErrNotFound
	}
	return qty, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(proc WebhookProcessor, db Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(proc, stubOrders{}, stubStock{"p1": 4}, db, Options{MaxBodyBytes: 1024}).SetupRoutes(router)
	return router
}

func postWebhook(router *gin.Engine, body, signature string) (*httptest.ResponseRecorder, webhookResponse) {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/paystack", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Paystack-Signature", signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp webhookResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestWebhookPassesRawBodyAndSignature(t *testing.T) {
	proc := &stubProcessor{result: &service.WebhookResult{Outcome: service.OutcomeProcessed, Message: "Order processed successfully"}}
	router := newTestRouter(proc, stubPinger{})

	body := `{"event":"charge.success",  "data":{}}`
	rec, resp := postWebhook(router, body, "abc123")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Order processed successfully", resp.Message)
	assert.Equal(t, body, string(proc.body))
	assert.Equal(t, "abc123", proc.signature)
}

func TestWebhookErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{service.ErrMissingSignature, http.StatusBadRequest, "Missing signature"},
		{service.ErrInvalidSignature, http.StatusBadRequest, "Invalid signature"},
		{service.ErrEmptyCart, http.StatusBadRequest, "No cart items found"},
		{fmt.Errorf("%w: bad json", service.ErrInvalidPayload), http.StatusBadRequest, "Invalid payload"},
		{service.ErrSecretNotConfigured, http.StatusInternalServerError, "Webhook not configured"},
		{errors.New("failed to create order: boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			router := newTestRouter(&stubProcessor{err: tc.err}, stubPinger{})
			rec, resp := postWebhook(router, `{}`, "sig")

			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tc.msg, resp.Error)
		})
	}
}

func TestWebhookBodyTooLarge(t *testing.T) {
	proc := &stubProcessor{}
	router := newTestRouter(proc, stubPinger{})

	rec, resp := postWebhook(router, string(bytes.Repeat([]byte("a"), 2048)), "sig")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Nil(t, proc.body)
}

func TestWebhookEndToEndWithSignature(t *testing.T) {
	secret := "sk_test_api"
	svc := service.NewFulfillmentService(nil, nil, nil, service.FulfillmentConfig{SecretKey: secret})
	router := newTestRouter(svc, stubPinger{})

	body := `{"event":"subscription.create","data":{"reference":"T-9"}}`
	rec, resp := postWebhook(router, body, service.SignPayload(secret, []byte(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Event ignored", resp.Message)

	refund := `{"event":"refund.processed","data":{"amount":"10000","reference":"r1"}}`
	rec, resp = postWebhook(router, refund, service.SignPayload(secret, []byte(refund)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Event ignored", resp.Message)

	rec, resp = postWebhook(router, body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing signature", resp.Error)
}

func TestOrderAndStockLookups(t *testing.T) {
	router := newTestRouter(&stubProcessor{}, stubPinger{})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/api/v1/orders/o-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)

	assert.Equal(t, http.StatusNotFound, get("/api/v1/orders/missing").Code)
	assert.Equal(t, http.StatusInternalServerError, get("/api/v1/orders/boom").Code)
	assert.Equal(t, http.StatusOK, get("/api/v1/references/T-1/order").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/v1/references/T-2/order").Code)

	rec = get("/api/v1/products/p1/stock")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"product_id":"p1","stock_quantity":4}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, get("/api/v1/products/p9/stock").Code)
}

func TestReadiness(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&stubProcessor{}, stubPinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newTestRouter(&stubProcessor{}, stubPinger{err: errors.New("down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
