package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"paystack-fulfillment/internal/service"
	"paystack-fulfillment/internal/store"
	"paystack-fulfillment/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const signatureHeader = "x-paystack-signature"

// WebhookProcessor handles a raw gateway notification
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*service.WebhookResult, error)
}

// OrderFinder serves order lookups
type OrderFinder interface {
	GetOrder(ctx context.Context, orderID string) (*service.OrderDetails, error)
	GetOrderByReference(ctx context.Context, reference string) (*service.OrderDetails, error)
}

// StockReader serves stock lookups
type StockReader interface {
	GetAvailableStock(ctx context.Context, productID string) (int, error)
}

// Pinger reports database readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune request handling
type Options struct {
	MaxBodyBytes   int64
	WebhookTimeout time.Duration
}

// Handler contains HTTP handlers
type Handler struct {
	webhooks  WebhookProcessor
	orders    OrderFinder
	inventory StockReader
	db        Pinger
	opts      Options
}

// webhookResponse is the envelope returned to the gateway
type webhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewHandler creates a new HTTP handler
func NewHandler(webhooks WebhookProcessor, orders OrderFinder, inventory StockReader, db Pinger, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.WebhookTimeout <= 0 {
		opts.WebhookTimeout = 15 * time.Second
	}
	return &Handler{
		webhooks:  webhooks,
		orders:    orders,
		inventory: inventory,
		db:        db,
		opts:      opts,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/api/webhooks/paystack", h.paystackWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/references/:reference/order", h.getOrderByReference)
		v1.GET("/products/:id/stock", h.getProductStock)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// paystackWebhook reads the raw body untouched so the signature can be
// checked before anything is parsed
func (h *Handler) paystackWebhook(c *gin.Context) {
	logger := util.LoggerFromContext(c.Request.Context())

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxBodyBytes))
	if err != nil {
		logger.Warn("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, webhookResponse{Error: "Failed to read request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.WebhookTimeout)
	defer cancel()

	result, err := h.webhooks.ProcessWebhook(ctx, body, c.GetHeader(signatureHeader))
	if err != nil {
		status, message := webhookError(err)
		if status == http.StatusInternalServerError {
			logger.Error("Webhook processing failed", zap.Error(err))
		}
		c.JSON(status, webhookResponse{Error: message})
		return
	}

	c.JSON(http.StatusOK, webhookResponse{Success: true, Message: result.Message})
}

func webhookError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMissingSignature):
		return http.StatusBadRequest, "Missing signature"
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusBadRequest, "Invalid signature"
	case errors.Is(err, service.ErrEmptyCart):
		return http.StatusBadRequest, "No cart items found"
	case errors.Is(err, service.ErrInvalidPayload):
		return http.StatusBadRequest, "Invalid payload"
	case errors.Is(err, service.ErrSecretNotConfigured):
		return http.StatusInternalServerError, "Webhook not configured"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	details, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookupError(c, "Order not found", err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// getOrderByReference handles get order by gateway reference
func (h *Handler) getOrderByReference(c *gin.Context) {
	details, err := h.orders.GetOrderByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondLookupError(c, "Order not found", err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// getProductStock handles stock lookups
func (h *Handler) getProductStock(c *gin.Context) {
	productID := c.Param("id")
	qty, err := h.inventory.GetAvailableStock(c.Request.Context(), productID)
	if err != nil {
		respondLookupError(c, "Product not found", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id":     productID,
		"stock_quantity": qty,
	})
}

func respondLookupError(c *gin.Context, notFound string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	util.LoggerFromContext(c.Request.Context()).Error("Lookup failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
