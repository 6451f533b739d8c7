package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCartRepository(t *testing.T, ttl time.Duration) (CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCartRepository(client, ttl), mr
}

func TestCartRepository_RoundTrip(t *testing.T) {
	repo, mr := newTestCartRepository(t, time.Hour)
	ctx := context.Background()

	cart := domain.Cart{
		"KB-001": {SKU: "KB-001", Name: "Keyboard", Unit: "pcs", Price: decimal.RequireFromString("1999.00"), Qty: 3},
	}
	require.NoError(t, repo.Save(ctx, "sess-1", cart))
	assert.True(t, mr.Exists("cart:sess-1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:sess-1"))

	loaded, err := repo.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Contains(t, loaded, "KB-001")
	assert.Equal(t, 3, loaded["KB-001"].Qty)
	assert.True(t, loaded["KB-001"].Price.Equal(decimal.RequireFromString("1999")))
}

func TestCartRepository_UnknownSessionIsEmpty(t *testing.T) {
	repo, _ := newTestCartRepository(t, time.Hour)

	cart, err := repo.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartRepository_ExpiresWithSession(t *testing.T) {
	repo, mr := newTestCartRepository(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "sess-2", domain.Cart{"MS-010": {SKU: "MS-010", Qty: 1}}))
	mr.FastForward(2 * time.Minute)

	cart, err := repo.Load(ctx, "sess-2")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartRepository_SavingEmptyCartClears(t *testing.T) {
	repo, mr := newTestCartRepository(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "sess-3", domain.Cart{"MS-010": {SKU: "MS-010", Qty: 1}}))
	require.NoError(t, repo.Save(ctx, "sess-3", domain.Cart{}))
	assert.False(t, mr.Exists("cart:sess-3"))
}

func TestCartRepository_BackendDown(t *testing.T) {
	repo, mr := newTestCartRepository(t, time.Hour)
	mr.Close()

	_, err := repo.Load(context.Background(), "sess-4")
	assert.Error(t, err)
}
