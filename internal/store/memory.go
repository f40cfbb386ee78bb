package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/notmarket/launch-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	launches map[string]*model.Launch
	trades   []model.TradeRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		launches: make(map[string]*model.Launch),
	}
}

func (s *MemoryStore) CreateLaunch(_ context.Context, l *model.Launch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.launches {
		if existing.Symbol == l.Symbol {
			return fmt.Errorf("launch with symbol %s already exists", l.Symbol)
		}
	}

	// Store a copy to avoid external mutation.
	copy := *l
	s.launches[l.ID] = &copy
	return nil
}

func (s *MemoryStore) GetLaunch(_ context.Context, id string) (*model.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.launches[id]
	if !ok {
		return nil, fmt.Errorf("%w: launch %s", ErrNotFound, id)
	}
	copy := *l
	return &copy, nil
}

func (s *MemoryStore) GetLaunchBySymbol(_ context.Context, symbol string) (*model.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.launches {
		if l.Symbol == symbol {
			copy := *l
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("%w: launch with symbol %s", ErrNotFound, symbol)
}

func (s *MemoryStore) ListLaunches(_ context.Context) ([]model.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	launches := make([]model.Launch, 0, len(s.launches))
	for _, l := range s.launches {
		launches = append(launches, *l)
	}
	sort.Slice(launches, func(i, j int) bool {
		return launches[i].CreatedAt.After(launches[j].CreatedAt)
	})
	return launches, nil
}

func (s *MemoryStore) UpdateLaunchState(_ context.Context, id string, state LaunchState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.launches[id]
	if !ok {
		return fmt.Errorf("%w: launch %s", ErrNotFound, id)
	}
	l.UnitsSold = state.UnitsSold
	l.NativeReserve = state.NativeReserve
	l.TotalVolume = state.TotalVolume
	l.TradeCount = state.TradeCount
	l.Status = state.Status
	return nil
}

func (s *MemoryStore) InsertTrade(_ context.Context, trade *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, *trade)
	return nil
}

func (s *MemoryStore) GetTradesByLaunch(_ context.Context, launchID string) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeRecord
	for _, t := range s.trades {
		if t.LaunchID == launchID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetTradesByTrader(_ context.Context, trader string) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeRecord
	for _, t := range s.trades {
		if t.Trader == trader {
			result = append(result, t)
		}
	}
	return result, nil
}

// GetTraderPositions aggregates the trade log into holdings per launch.
// Buy gross is the trader's full outlay (fee included); sell proceeds are
// net of fee.
func (s *MemoryStore) GetTraderPositions(_ context.Context, trader string) ([]model.PositionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := make(map[string]*model.PositionView)
	var order []string

	for _, t := range s.trades {
		if t.Trader != trader {
			continue
		}
		p, ok := agg[t.LaunchID]
		if !ok {
			p = &model.PositionView{Trader: trader, LaunchID: t.LaunchID}
			agg[t.LaunchID] = p
			order = append(order, t.LaunchID)
		}
		switch t.Side {
		case model.SideBuy:
			p.UnitsHeld += t.Units
			p.NativeInvested += t.GrossNative
			p.BuyCount++
		case model.SideSell:
			p.UnitsHeld -= t.Units
			p.NativeReceived += t.GrossNative - t.FeeNative
			p.SellCount++
		}
	}

	positions := make([]model.PositionView, 0, len(agg))
	for _, id := range order {
		positions = append(positions, *agg[id])
	}
	return positions, nil
}
