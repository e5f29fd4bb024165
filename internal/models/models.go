package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Product represents a catalog entry. Price, cost and stock are all
// denominated in the unit the product is sold in (packs for pack products).
type Product struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Price         decimal.Decimal `db:"price" json:"price"`
	CostPrice     decimal.Decimal `db:"cost_price" json:"cost_price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	IsPack        bool            `db:"is_pack" json:"is_pack"`
	PackSize      int             `db:"pack_size" json:"pack_size"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ActualUnits returns the number of individual items represented by quantity.
func (p *Product) ActualUnits(quantity int) int {
	if !p.IsPack {
		return quantity
	}
	size := p.PackSize
	if size < 1 {
		size = 1
	}
	return quantity * size
}

// Order represents a customer order created from a gateway payment
type Order struct {
	ID                string          `db:"id" json:"id"`
	CustomerEmail     string          `db:"customer_email" json:"customer_email"`
	CustomerName      string          `db:"customer_name" json:"customer_name"`
	TotalAmount       decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status            string          `db:"status" json:"status"`
	PaymentStatus     string          `db:"payment_status" json:"payment_status"`
	PaymentReference  string          `db:"payment_reference" json:"payment_reference"`
	PaystackReference string          `db:"paystack_reference" json:"paystack_reference"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem represents one cart line of an order
type OrderItem struct {
	ID          string          `db:"id" json:"id"`
	OrderID     string          `db:"order_id" json:"order_id"`
	ProductID   string          `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"total_price"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// StockSnapshot is the payload of the inventory log value columns
type StockSnapshot struct {
	StockQuantity int `json:"stock_quantity"`
	UnitsSold     int `json:"units_sold,omitempty"`
}

// InventoryLog is an append-only audit entry for a stock change.
// PerformedBy is nil for system-originated changes.
type InventoryLog struct {
	ID             string         `db:"id" json:"id"`
	ProductID      string         `db:"product_id" json:"product_id"`
	Action         string         `db:"action" json:"action"`
	PreviousValues types.JSONText `db:"previous_values" json:"previous_values"`
	NewValues      types.JSONText `db:"new_values" json:"new_values"`
	PerformedBy    *string        `db:"performed_by" json:"performed_by"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// NewStockAdjustmentLog builds a system-originated stock adjustment entry
func NewStockAdjustmentLog(productID string, previous, next StockSnapshot) (*InventoryLog, error) {
	prev, err := json.Marshal(previous)
	if err != nil {
		return nil, err
	}
	nxt, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	return &InventoryLog{
		ProductID:      productID,
		Action:         InventoryActionStockAdjustment,
		PreviousValues: types.JSONText(prev),
		NewValues:      types.JSONText(nxt),
	}, nil
}

// Snapshots decodes the before/after values of the entry
func (l *InventoryLog) Snapshots() (previous, next StockSnapshot, err error) {
	if err = l.PreviousValues.Unmarshal(&previous); err != nil {
		return
	}
	err = l.NewValues.Unmarshal(&next)
	return
}

// RevenueLog is the ledger entry for a completed order. Profit is derived
// by the database as amount - cost_amount.
type RevenueLog struct {
	ID               string          `db:"id" json:"id"`
	OrderID          string          `db:"order_id" json:"order_id"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	CostAmount       decimal.Decimal `db:"cost_amount" json:"cost_amount"`
	Profit           decimal.Decimal `db:"profit" json:"profit"`
	PaymentMethod    string          `db:"payment_method" json:"payment_method"`
	PaymentReference string          `db:"payment_reference" json:"payment_reference"`
	Notes            string          `db:"notes" json:"notes"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// Payment statuses
const (
	PaymentStatusSuccessful = "successful"
)

// Inventory log actions
const (
	InventoryActionStockAdjustment = "stock_adjustment"
)
