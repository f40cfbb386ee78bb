// Package model defines the core domain types shared across the launch
// engine. Token and native amounts are integer base units end to end;
// USD values surfaced to clients use shopspring/decimal — never float64
// for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Launch statuses.
const (
	StatusActive    = "active"
	StatusGraduated = "graduated"
)

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Launch is one token launch with its immutable curve parameters and the
// mutable bookkeeping snapshot persisted after every trade.
type Launch struct {
	ID          string `json:"id" db:"id"`
	Creator     string `json:"creator" db:"creator"`
	Name        string `json:"name" db:"name"`
	Symbol      string `json:"symbol" db:"symbol"`
	MetadataURI string `json:"metadata_uri" db:"metadata_uri"`

	StartPriceUSD uint64 `json:"start_price_usd" db:"start_price_usd"` // scaled 1e8
	EndPriceUSD   uint64 `json:"end_price_usd" db:"end_price_usd"`     // scaled 1e8
	CurveSupply   uint64 `json:"curve_supply" db:"curve_supply"`
	LPReserve     uint64 `json:"lp_reserve" db:"lp_reserve"`

	UnitsSold     uint64 `json:"units_sold" db:"units_sold"`
	NativeReserve uint64 `json:"native_reserve" db:"native_reserve"`
	TotalVolume   uint64 `json:"total_volume" db:"total_volume"`
	TradeCount    uint64 `json:"trade_count" db:"trade_count"`

	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TradeRecord is an immutable record of a settled trade. Once created,
// these are never modified or deleted.
type TradeRecord struct {
	ID           string    `json:"id" db:"id"`
	LaunchID     string    `json:"launch_id" db:"launch_id"`
	Trader       string    `json:"trader" db:"trader"`
	Side         string    `json:"side" db:"side"` // "buy" or "sell"
	Units        uint64    `json:"units" db:"units"`
	GrossNative  uint64    `json:"gross_native" db:"gross_native"`
	FeeNative    uint64    `json:"fee_native" db:"fee_native"`
	RateUSD      uint64    `json:"rate_usd" db:"rate_usd"` // native/USD rate at execution, scaled 1e8
	UnitsSoldEnd uint64    `json:"units_sold_end" db:"units_sold_end"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// PositionView is a trader's holdings in one launch, decorated with
// mark-to-market USD values for client display.
type PositionView struct {
	Trader         string          `json:"trader"`
	LaunchID       string          `json:"launch_id"`
	UnitsHeld      uint64          `json:"units_held"`
	NativeInvested uint64          `json:"native_invested"`
	NativeReceived uint64          `json:"native_received"`
	BuyCount       uint64          `json:"buy_count"`
	SellCount      uint64          `json:"sell_count"`
	ValueUSD       decimal.Decimal `json:"value_usd"`      // holdings at current spot
	InvestedUSD    decimal.Decimal `json:"invested_usd"`   // cumulative buy spend
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"` // valueUSD - (invested - received)
}

// CurveView is the client-facing pricing snapshot of one launch.
type CurveView struct {
	LaunchID       string          `json:"launch_id"`
	Status         string          `json:"status"`
	UnitsSold      uint64          `json:"units_sold"`
	UnitsRemaining uint64          `json:"units_remaining"`
	NativeReserve  uint64          `json:"native_reserve"`
	SpotPriceUSD   decimal.Decimal `json:"spot_price_usd"`
	RaisedUSD      decimal.Decimal `json:"raised_usd"`
	ProgressBps    uint64          `json:"progress_bps"` // unitsSold / curveSupply in bps
}
