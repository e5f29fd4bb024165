package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Paystack event names
const (
	PaystackEventChargeSuccess = "charge.success"
)

// PaystackEvent is the webhook notification envelope sent by the gateway.
// Data is decoded by event type since its shape differs between events.
type PaystackEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Charge decodes Data as a charge payload
func (e *PaystackEvent) Charge() (*PaystackChargeData, error) {
	var data PaystackChargeData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// PaystackChargeData carries the charge details. Amount is in minor units (kobo).
type PaystackChargeData struct {
	Reference       string           `json:"reference"`
	Amount          int64            `json:"amount"`
	Customer        PaystackCustomer `json:"customer"`
	Channel         string           `json:"channel"`
	GatewayResponse string           `json:"gateway_response"`
	Metadata        PaystackMetadata `json:"metadata"`
}

// PaystackCustomer identifies the payer
type PaystackCustomer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins first and last name, falling back to the email
func (c PaystackCustomer) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
	if name == "" {
		return c.Email
	}
	return name
}

// PaystackMetadata carries checkout data attached to the charge
type PaystackMetadata struct {
	CartItems []CartItem `json:"cart_items"`
}

// CartItem is one cart line as submitted at checkout
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// MajorAmount converts the minor-unit amount to major units
func (d PaystackChargeData) MajorAmount() decimal.Decimal {
	return decimal.New(d.Amount, -2)
}

// Event types
const (
	EventTypeOrderFulfilled     = "ORDER_FULFILLED"
	EventTypeStockAdjusted      = "STOCK_ADJUSTED"
	EventTypeFulfillmentAnomaly = "FULFILLMENT_ANOMALY"
)

// Anomaly kinds reported on FulfillmentAnomalyEvent
const (
	AnomalyProductMissing      = "product_missing"
	AnomalyProductLookupFailed = "product_lookup_failed"
	AnomalyInvalidCartItem     = "invalid_cart_item"
	AnomalyItemInsertFailed    = "item_insert_failed"
	AnomalyStockUpdateFailed   = "stock_update_failed"
	AnomalyStockFloorClamped   = "stock_floor_clamped"
	AnomalyInventoryLogFailed  = "inventory_log_failed"
	AnomalyRevenueLogFailed    = "revenue_log_failed"
	AnomalyOrderFinalizeFailed = "order_finalize_failed"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderFulfilledEvent published when a paid order reaches completed
type OrderFulfilledEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	Reference   string          `json:"reference"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CostAmount  decimal.Decimal `json:"cost_amount"`
	ItemCount   int             `json:"item_count"`
	Skipped     int             `json:"skipped"`
}

// StockAdjustedEvent published after every stock decrement
type StockAdjustedEvent struct {
	BaseEvent
	ProductID     string `json:"product_id"`
	OrderID       string `json:"order_id"`
	PreviousStock int    `json:"previous_stock"`
	NewStock      int    `json:"new_stock"`
	UnitsSold     int    `json:"units_sold"`
}

// FulfillmentAnomalyEvent reports a swallowed failure for manual reconciliation
type FulfillmentAnomalyEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	Reference string `json:"reference"`
	ProductID string `json:"product_id,omitempty"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
}
