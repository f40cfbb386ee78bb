// Package store defines the persistence interface for the launch engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/notmarket/launch-engine/internal/model"
)

// ErrNotFound is returned when a launch or record does not exist.
var ErrNotFound = errors.New("store: not found")

// LaunchState is the mutable bookkeeping slice of a launch row, written
// back after every settled trade.
type LaunchState struct {
	UnitsSold     uint64
	NativeReserve uint64
	TotalVolume   uint64
	TradeCount    uint64
	Status        string
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Launch operations ---

	// CreateLaunch persists a new launch.
	CreateLaunch(ctx context.Context, launch *model.Launch) error

	// GetLaunch retrieves a launch by its ID.
	GetLaunch(ctx context.Context, id string) (*model.Launch, error)

	// GetLaunchBySymbol retrieves a launch by its token symbol.
	GetLaunchBySymbol(ctx context.Context, symbol string) (*model.Launch, error)

	// ListLaunches returns all launches, newest first.
	ListLaunches(ctx context.Context) ([]model.Launch, error)

	// UpdateLaunchState writes back the bookkeeping fields after a trade
	// or graduation.
	UpdateLaunchState(ctx context.Context, id string, state LaunchState) error

	// --- Immutable trade log ---

	// InsertTrade appends an immutable trade record.
	InsertTrade(ctx context.Context, trade *model.TradeRecord) error

	// GetTradesByLaunch returns all trades for a launch in execution order.
	GetTradesByLaunch(ctx context.Context, launchID string) ([]model.TradeRecord, error)

	// GetTradesByTrader returns all trades for a trader in execution order.
	GetTradesByTrader(ctx context.Context, trader string) ([]model.TradeRecord, error)

	// --- Position queries ---

	// GetTraderPositions aggregates the trade log into per-launch holdings
	// for one trader. USD valuation fields are left for the caller, which
	// owns the pricing.
	GetTraderPositions(ctx context.Context, trader string) ([]model.PositionView, error)
}
