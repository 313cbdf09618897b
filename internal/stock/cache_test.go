package stock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	levels    []StockLevel
	listCalls int
}

func (r *countingRepo) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, int, error) {
	return nil, 0, nil
}

func (r *countingRepo) ListLevels(ctx context.Context, filter LevelFilter) ([]StockLevel, int, error) {
	r.listCalls++
	return r.levels, len(r.levels), nil
}

func TestLevelsReadThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	repo := &countingRepo{levels: []StockLevel{{ProductID: 1, LocationID: 2, OnHandQuantity: 10}}}
	svc := NewService(repo, cache)
	ctx := context.Background()

	levels, total, err := svc.Levels(ctx, LevelFilter{ProductID: 1})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.InDelta(t, 10.0, levels[0].OnHandQuantity, 0.0001)
	require.Equal(t, 1, repo.listCalls)

	_, _, err = svc.Levels(ctx, LevelFilter{ProductID: 1})
	require.NoError(t, err)
	require.Equal(t, 1, repo.listCalls)

	// A different filter misses the cache.
	_, _, err = svc.Levels(ctx, LevelFilter{ProductID: 1, WarehouseID: 3})
	require.NoError(t, err)
	require.Equal(t, 2, repo.listCalls)
}

func TestBumpInvalidatesCachedListings(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	repo := &countingRepo{levels: []StockLevel{{ProductID: 1, LocationID: 2, OnHandQuantity: 10}}}
	svc := NewService(repo, cache)
	ctx := context.Background()

	_, _, err := svc.Levels(ctx, LevelFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.listCalls)

	repo.levels[0].OnHandQuantity = 4
	require.NoError(t, cache.Bump(ctx))

	levels, _, err := svc.Levels(ctx, LevelFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, repo.listCalls)
	require.InDelta(t, 4.0, levels[0].OnHandQuantity, 0.0001)
}

func TestNilCacheFallsThrough(t *testing.T) {
	repo := &countingRepo{levels: []StockLevel{{ProductID: 1, LocationID: 2, OnHandQuantity: 1}}}
	svc := NewService(repo, nil)

	_, total, err := svc.Levels(context.Background(), LevelFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}
