// Package curve implements exponential bonding-curve pricing for token
// launches: spot price as a function of cumulative units sold, and the
// closed-form integral giving the exact cost of any supply range.
//
//	price(s) = startPrice · e^(k·s)
//	cost(a,b) = (startPrice / k) · (e^(k·b) − e^(k·a))
//
// where k = ln(endPrice/startPrice) / curveSupply, derived once per launch
// so that price(curveSupply) = endPrice. The package is pure and
// stateless — ledger state is passed in as arguments, never stored.
//
// Units convention: supply quantities are token base units (TokenBase per
// whole token), prices are USD per whole token scaled by USDScale, native
// amounts are native base units (NativeBase per whole coin). Currency
// conversions floor in every direction the venue collects, never the
// direction it pays — rounding drift can only favor the reserve.
package curve

import (
	"errors"

	"github.com/notmarket/launch-engine/internal/fixedpoint"
)

const (
	// USDScale is the scale factor for USD-denominated amounts (8 decimals).
	USDScale uint64 = 100_000_000

	// TokenBase is the number of token base units per whole token (9 decimals).
	TokenBase uint64 = 1_000_000_000

	// NativeBase is the number of native base units per whole native coin.
	NativeBase uint64 = 1_000_000_000

	// FeeDenominator converts basis points to a fraction.
	FeeDenominator uint64 = 10_000
)

var (
	// ErrInvalidParams is returned when curve parameters cannot define a
	// strictly increasing price function.
	ErrInvalidParams = errors.New("curve: invalid curve parameters")

	// ErrInvalidRange is returned when an integral is requested over a
	// malformed or out-of-inventory supply range. The trade engine rejects
	// such requests before pricing; seeing this error means a caller bug.
	ErrInvalidRange = errors.New("curve: invalid supply range")

	// ErrInvalidRate is returned for a zero exchange rate.
	ErrInvalidRate = errors.New("curve: invalid exchange rate")
)

// Params holds the immutable pricing parameters of one launch. The growth
// constant k is derived at construction and never recomputed.
type Params struct {
	StartPriceUSD uint64 // USD per whole token, USDScale-scaled
	EndPriceUSD   uint64 // USD per whole token, USDScale-scaled
	CurveSupply   uint64 // base units tradeable on the curve
	LPReserve     uint64 // base units held back for post-graduation liquidity

	k uint64 // growth constant: Ln(end/start)·Scale/CurveSupply
}

// NewParams validates the price range and derives k. Requires
// 0 < startPrice < endPrice and a positive curve supply; the price ratio
// must stay within the exponential's documented domain.
func NewParams(startPriceUSD, endPriceUSD, curveSupply, lpReserve uint64) (Params, error) {
	if startPriceUSD == 0 || endPriceUSD <= startPriceUSD || curveSupply == 0 {
		return Params{}, ErrInvalidParams
	}

	ratio, err := fixedpoint.MulDiv(endPriceUSD, fixedpoint.Scale, startPriceUSD)
	if err != nil {
		return Params{}, ErrInvalidParams
	}
	lnRatio, err := fixedpoint.Ln(ratio)
	if err != nil || lnRatio > fixedpoint.MaxExpInput {
		return Params{}, ErrInvalidParams
	}

	k, err := fixedpoint.MulDiv(lnRatio, fixedpoint.Scale, curveSupply)
	if err != nil || k == 0 {
		return Params{}, ErrInvalidParams
	}

	return Params{
		StartPriceUSD: startPriceUSD,
		EndPriceUSD:   endPriceUSD,
		CurveSupply:   curveSupply,
		LPReserve:     lpReserve,
		k:             k,
	}, nil
}

// K returns the derived growth constant (fixedpoint.Scale-scaled per base
// unit). Exposed for diagnostics only.
func (p Params) K() uint64 { return p.k }

// TotalSupply returns curve supply plus the LP holdback.
func (p Params) TotalSupply() uint64 { return p.CurveSupply + p.LPReserve }

// expAt returns e^(k·units) scaled by fixedpoint.Scale.
func (p Params) expAt(units uint64) (uint64, error) {
	exponent, err := fixedpoint.MulDiv(p.k, units, fixedpoint.Scale)
	if err != nil {
		return 0, err
	}
	return fixedpoint.Exp(exponent)
}

// SpotPriceUSD returns the instantaneous price at the given supply level,
// in USDScale-scaled USD per whole token. Strictly increasing in unitsSold
// for any valid parameter set, at token-scale granularity.
func (p Params) SpotPriceUSD(unitsSold uint64) (uint64, error) {
	expV, err := p.expAt(unitsSold)
	if err != nil {
		return 0, err
	}
	return fixedpoint.MulDiv(p.StartPriceUSD, expV, fixedpoint.Scale)
}

// CostUSD returns the exact cost of the supply range [fromUnits, toUnits)
// in USDScale-scaled USD, via the closed-form integral
//
//	(startPrice / k) · (e^(k·to) − e^(k·from)) / TokenBase
//
// The TokenBase divisor converts the per-whole-token price density to the
// base-unit integration variable; without it the result overstates cost by
// a factor of TokenBase. Floor rounding.
func (p Params) CostUSD(fromUnits, toUnits uint64) (uint64, error) {
	if toUnits < fromUnits || toUnits > p.CurveSupply {
		return 0, ErrInvalidRange
	}
	if toUnits == fromUnits {
		return 0, nil
	}

	expFrom, err := p.expAt(fromUnits)
	if err != nil {
		return 0, err
	}
	expTo, err := p.expAt(toUnits)
	if err != nil {
		return 0, err
	}
	if expTo < expFrom {
		// Exp is non-decreasing; a reversal here means corrupted state.
		return 0, fixedpoint.ErrOverflow
	}

	return fixedpoint.MulDiv3(
		p.StartPriceUSD, expTo-expFrom, fixedpoint.Scale,
		p.k, TokenBase,
	)
}

// ToNative converts a USDScale-scaled USD amount to native base units at
// the given exchange rate (USD per whole native coin, USDScale-scaled).
// Rounds down: buyers are never under-charged and the reserve never
// over-pays sellers.
func ToNative(usdAmount, rateUSD uint64) (uint64, error) {
	if rateUSD == 0 {
		return 0, ErrInvalidRate
	}
	return fixedpoint.MulDiv(usdAmount, NativeBase, rateUSD)
}

// USDRaised converts a native reserve balance back to USDScale-scaled USD
// at the given rate. Used by the graduation check.
func USDRaised(nativeReserve, rateUSD uint64) (uint64, error) {
	return fixedpoint.MulDiv(nativeReserve, rateUSD, NativeBase)
}

// BuyCostNative returns the gross native cost of buying `units` starting
// from `unitsSold`, converting the integral cost at the supplied rate.
func (p Params) BuyCostNative(unitsSold, units, rateUSD uint64) (uint64, error) {
	usd, err := p.CostUSD(unitsSold, unitsSold+units)
	if err != nil {
		return 0, err
	}
	return ToNative(usd, rateUSD)
}

// SellProceedsNative returns the gross native proceeds of selling `units`
// back to the curve at supply level `unitsSold`. By symmetry this is the
// buy cost of the same range priced from unitsSold − units.
func (p Params) SellProceedsNative(unitsSold, units, rateUSD uint64) (uint64, error) {
	if units > unitsSold {
		return 0, ErrInvalidRange
	}
	return p.BuyCostNative(unitsSold-units, units, rateUSD)
}

// SpotPriceNative returns the spot price in native base units per whole
// token at the supplied rate.
func (p Params) SpotPriceNative(unitsSold, rateUSD uint64) (uint64, error) {
	usd, err := p.SpotPriceUSD(unitsSold)
	if err != nil {
		return 0, err
	}
	return ToNative(usd, rateUSD)
}

// SlippageBps returns the price impact of a buy in basis points: how far
// the average fill price per whole token sits above the current spot.
func (p Params) SlippageBps(unitsSold, units, rateUSD uint64) (uint64, error) {
	if units == 0 {
		return 0, nil
	}
	spot, err := p.SpotPriceNative(unitsSold, rateUSD)
	if err != nil {
		return 0, err
	}
	if spot == 0 {
		return 0, nil
	}
	cost, err := p.BuyCostNative(unitsSold, units, rateUSD)
	if err != nil {
		return 0, err
	}
	avg, err := fixedpoint.MulDiv(cost, TokenBase, units)
	if err != nil {
		return 0, err
	}
	if avg <= spot {
		return 0, nil
	}
	return fixedpoint.MulDiv(avg-spot, FeeDenominator, spot)
}

// Fee returns the platform fee carved out of a gross amount at the given
// basis-point rate, floor rounded. Gross always equals net plus fee.
func Fee(gross uint64, feeBps uint16) uint64 {
	// gross·bps cannot overflow: bps ≤ 10000 and gross is a native amount.
	f, _ := fixedpoint.MulDiv(gross, uint64(feeBps), FeeDenominator)
	return f
}
