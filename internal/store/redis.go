package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/notmarket/launch-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateLaunch(ctx context.Context, l *model.Launch) error {
	if err := s.primary.CreateLaunch(ctx, l); err != nil {
		return err
	}
	s.cacheLaunch(ctx, l)
	return nil
}

func (s *CachedStore) UpdateLaunchState(ctx context.Context, id string, state LaunchState) error {
	if err := s.primary.UpdateLaunchState(ctx, id, state); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, launchKey(id))
	return nil
}

func (s *CachedStore) InsertTrade(ctx context.Context, trade *model.TradeRecord) error {
	if err := s.primary.InsertTrade(ctx, trade); err != nil {
		return err
	}
	// Invalidate position cache for this trader.
	s.rdb.Del(ctx, positionsKey(trade.Trader))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetLaunch(ctx context.Context, id string) (*model.Launch, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, launchKey(id)).Bytes()
	if err == nil {
		var l model.Launch
		if json.Unmarshal(data, &l) == nil {
			return &l, nil
		}
	}

	// Cache miss: read from primary.
	l, err := s.primary.GetLaunch(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheLaunch(ctx, l)
	return l, nil
}

func (s *CachedStore) GetLaunchBySymbol(ctx context.Context, symbol string) (*model.Launch, error) {
	// Try cache via symbol→launchID mapping.
	launchID, err := s.rdb.Get(ctx, symbolKey(symbol)).Result()
	if err == nil {
		return s.GetLaunch(ctx, launchID)
	}

	// Cache miss.
	l, err := s.primary.GetLaunchBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// Cache both the launch and the symbol→ID mapping.
	s.cacheLaunch(ctx, l)
	s.rdb.Set(ctx, symbolKey(symbol), l.ID, s.ttl)
	return l, nil
}

func (s *CachedStore) GetTraderPositions(ctx context.Context, trader string) ([]model.PositionView, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, positionsKey(trader)).Bytes()
	if err == nil {
		var positions []model.PositionView
		if json.Unmarshal(data, &positions) == nil {
			return positions, nil
		}
	}

	// Cache miss.
	positions, err := s.primary.GetTraderPositions(ctx, trader)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(positions); err == nil {
		s.rdb.Set(ctx, positionsKey(trader), data, s.ttl)
	}
	return positions, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListLaunches(ctx context.Context) ([]model.Launch, error) {
	return s.primary.ListLaunches(ctx)
}

func (s *CachedStore) GetTradesByLaunch(ctx context.Context, launchID string) ([]model.TradeRecord, error) {
	return s.primary.GetTradesByLaunch(ctx, launchID)
}

func (s *CachedStore) GetTradesByTrader(ctx context.Context, trader string) ([]model.TradeRecord, error) {
	return s.primary.GetTradesByTrader(ctx, trader)
}

// --- Cache helpers ---

func (s *CachedStore) cacheLaunch(ctx context.Context, l *model.Launch) {
	if data, err := json.Marshal(l); err == nil {
		s.rdb.Set(ctx, launchKey(l.ID), data, s.ttl)
	}
}

func launchKey(id string) string        { return fmt.Sprintf("launch:%s", id) }
func symbolKey(symbol string) string    { return fmt.Sprintf("symbol:%s", symbol) }
func positionsKey(trader string) string { return fmt.Sprintf("positions:%s", trader) }
