// Package limits implements per-trade and per-trader position limits.
//
// A launch with no limits lets a single wallet sweep the whole curve in
// one trade. This package bounds individual trade sizes and caps how
// large a share of the curve supply one trader may accumulate.
package limits

import (
	"errors"

	"github.com/notmarket/launch-engine/internal/fixedpoint"
)

var (
	// ErrTradeTooSmall is returned when a trade is below the minimum size.
	ErrTradeTooSmall = errors.New("limits: trade below minimum size")

	// ErrTradeTooLarge is returned when a trade exceeds the per-trade
	// maximum.
	ErrTradeTooLarge = errors.New("limits: trade above maximum size")

	// ErrConcentrationExceeded is returned when a buy would push one
	// trader's holdings beyond the allowed share of curve supply.
	ErrConcentrationExceeded = errors.New("limits: holdings concentration limit exceeded")
)

// TradeLimiter bounds trade sizes and per-trader concentration for one
// launch. A zero field disables that particular check, so the zero value
// is a no-op limiter.
type TradeLimiter struct {
	// MinTradeUnits is the smallest accepted trade, in token base units.
	MinTradeUnits uint64

	// MaxTradeUnits is the largest accepted single trade, in token base
	// units.
	MaxTradeUnits uint64

	// MaxHoldingsBps caps a trader's holdings as a share of curve supply,
	// in basis points. 10_000 allows holding the entire curve.
	MaxHoldingsBps uint16
}

// NewTradeLimiter creates a limiter with the given bounds.
func NewTradeLimiter(minUnits, maxUnits uint64, maxHoldingsBps uint16) *TradeLimiter {
	return &TradeLimiter{
		MinTradeUnits:  minUnits,
		MaxTradeUnits:  maxUnits,
		MaxHoldingsBps: maxHoldingsBps,
	}
}

// CheckBuy validates a prospective buy against the size bounds and the
// concentration cap, given the trader's current holdings and the launch's
// curve supply.
func (l *TradeLimiter) CheckBuy(units, currentHeld, curveSupply uint64) error {
	if err := l.checkSize(units); err != nil {
		return err
	}
	if l.MaxHoldingsBps == 0 || curveSupply == 0 {
		return nil
	}

	// curveSupply·bps overflows uint64 at realistic supplies, so the cap
	// is computed in widened arithmetic.
	maxHeld, err := fixedpoint.MulDiv(curveSupply, uint64(l.MaxHoldingsBps), 10_000)
	if err != nil {
		return err
	}
	after := currentHeld + units
	if after < currentHeld || after > maxHeld {
		return ErrConcentrationExceeded
	}
	return nil
}

// CheckSell validates a prospective sell against the size bounds. Selling
// only reduces concentration, so no cap applies.
func (l *TradeLimiter) CheckSell(units uint64) error {
	return l.checkSize(units)
}

func (l *TradeLimiter) checkSize(units uint64) error {
	if l.MinTradeUnits > 0 && units < l.MinTradeUnits {
		return ErrTradeTooSmall
	}
	if l.MaxTradeUnits > 0 && units > l.MaxTradeUnits {
		return ErrTradeTooLarge
	}
	return nil
}
