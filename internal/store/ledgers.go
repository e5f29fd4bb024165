package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"paystack-fulfillment/internal/models"
)

// CreateInventoryLog appends a stock audit entry
func (s *Store) CreateInventoryLog(ctx context.Context, entry *models.InventoryLog) error {
	query := `
		INSERT INTO inventory_logs (product_id, action, previous_values, new_values, performed_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		entry.ProductID, entry.Action, entry.PreviousValues, entry.NewValues, entry.PerformedBy,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// GetInventoryLogsByProductID lists the audit trail of a product, newest first
func (s *Store) GetInventoryLogsByProductID(ctx context.Context, productID string, limit int) ([]models.InventoryLog, error) {
	var entries []models.InventoryLog
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM inventory_logs WHERE product_id = $1 ORDER BY created_at DESC LIMIT $2",
		productID, limit)
	return entries, err
}

// CreateRevenueLog records the ledger entry for an order
func (s *Store) CreateRevenueLog(ctx context.Context, entry *models.RevenueLog) error {
	query := `
		INSERT INTO revenue_logs (order_id, amount, cost_amount, payment_method, payment_reference, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, profit, created_at`

	return s.db.QueryRowxContext(ctx, query,
		entry.OrderID, entry.Amount, entry.CostAmount, entry.PaymentMethod, entry.PaymentReference, entry.Notes,
	).Scan(&entry.ID, &entry.Profit, &entry.CreatedAt)
}

// GetRevenueLogByOrderID retrieves the ledger entry of an order
func (s *Store) GetRevenueLogByOrderID(ctx context.Context, orderID string) (*models.RevenueLog, error) {
	var entry models.RevenueLog
	err := s.db.GetContext(ctx, &entry,
		"SELECT * FROM revenue_logs WHERE order_id = $1 ORDER BY created_at LIMIT 1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("revenue log for order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
