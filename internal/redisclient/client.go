package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when a cached value is absent
var ErrCacheMiss = errors.New("cache miss")

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func claimKey(reference string) string     { return fmt.Sprintf("paystack:claim:%s", reference) }
func processedKey(reference string) string { return fmt.Sprintf("paystack:processed:%s", reference) }
func stockKey(productID string) string     { return fmt.Sprintf("inventory:%s", productID) }

// ClaimReference marks a reference as in flight. Returns false when another
// delivery already holds the claim.
func (c *Client) ClaimReference(ctx context.Context, reference string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, claimKey(reference), time.Now().Unix(), ttl).Result()
}

// ReleaseReference drops an in-flight claim
func (c *Client) ReleaseReference(ctx context.Context, reference string) error {
	return c.rdb.Del(ctx, claimKey(reference)).Err()
}

// MarkReferenceProcessed remembers that an order exists for reference
func (c *Client) MarkReferenceProcessed(ctx context.Context, reference, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, processedKey(reference), orderID, ttl).Err()
}

// IsReferenceProcessed checks the processed marker
func (c *Client) IsReferenceProcessed(ctx context.Context, reference string) (bool, error) {
	n, err := c.rdb.Exists(ctx, processedKey(reference)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetStock caches the current stock of a product
func (c *Client) SetStock(ctx context.Context, productID string, quantity int) error {
	return c.rdb.HSet(ctx, stockKey(productID),
		"available", quantity,
		"updated_at", time.Now().Unix(),
	).Err()
}

// GetStock reads the cached stock of a product
func (c *Client) GetStock(ctx context.Context, productID string) (int, error) {
	val, err := c.rdb.HGet(ctx, stockKey(productID), "available").Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCacheMiss
	}
	if err != nil {
		return 0, err
	}

	qty, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt stock entry for %s: %w", productID, err)
	}
	return qty, nil
}
