package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"paystack-fulfillment/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

var (
	// ErrNotFound is returned when a looked-up row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicateReference is returned when an order with the same gateway reference already exists
	ErrDuplicateReference = errors.New("duplicate paystack reference")
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

type Store struct {
	db *sqlx.DB
}

// StockChange is the outcome of an atomic stock decrement
type StockChange struct {
	PreviousStock int `db:"previous_stock"`
	NewStock      int `db:"new_stock"`
}

// Clamped reports whether the zero floor absorbed part of the requested quantity
func (c StockChange) Clamped(requested int) bool {
	return c.PreviousStock-requested < 0
}

// NewStore creates a new database store
func NewStore(databaseURL string, maxOpenConns, maxIdleConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY name")
	return products, err
}

// DecrementStock subtracts quantity from a product's stock in one statement,
// flooring at zero. The row lock taken by the CTE serialises concurrent
// decrements of the same product.
func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) (StockChange, error) {
	query := `
		WITH locked AS (
			SELECT id, stock_quantity FROM products WHERE id = $1 FOR UPDATE
		)
		UPDATE products p
		SET stock_quantity = GREATEST(0, locked.stock_quantity - $2), updated_at = NOW()
		FROM locked
		WHERE p.id = locked.id
		RETURNING locked.stock_quantity AS previous_stock, p.stock_quantity AS new_stock`

	var change StockChange
	err := s.db.GetContext(ctx, &change, query, productID, quantity)
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return StockChange{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return StockChange{}, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return change, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// isInvalidID reports a malformed uuid literal, which can only match no row
func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}
