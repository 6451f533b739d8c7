package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/redis/go-redis/v9"
)

// CartRepository keeps a guest cart for the lifetime of its session
type CartRepository interface {
	Load(ctx context.Context, sessionID string) (domain.Cart, error)
	Save(ctx context.Context, sessionID string, cart domain.Cart) error
	Clear(ctx context.Context, sessionID string) error
}

type redisCartRepository struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCartRepository stores carts as JSON under "cart:<session>" with a sliding TTL
func NewCartRepository(client *redis.Client, ttl time.Duration) CartRepository {
	return &redisCartRepository{client: client, ttl: ttl, prefix: "cart"}
}

func (r *redisCartRepository) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, sessionID)
}

// Load returns an empty cart for unknown or expired sessions
func (r *redisCartRepository) Load(ctx context.Context, sessionID string) (domain.Cart, error) {
	raw, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Cart{}, nil
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	cart := domain.Cart{}
	if err := json.Unmarshal(raw, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}

	return cart, nil
}

// Save overwrites the session cart; an empty cart deletes the key
func (r *redisCartRepository) Save(ctx context.Context, sessionID string, cart domain.Cart) error {
	if cart.IsEmpty() {
		return r.Clear(ctx, sessionID)
	}

	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	if err := r.client.Set(ctx, r.key(sessionID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	return nil
}

func (r *redisCartRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
