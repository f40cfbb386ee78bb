// Package token handles launch metadata validation and derivation of
// curve parameters from human-readable USD prices.
package token

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/notmarket/launch-engine/internal/curve"
)

// Fixed tokenomics. Every launch mints the same supply split: 1B tokens
// at 9 decimals, 800M tradeable on the curve, 200M held back for the
// post-graduation liquidity pool.
const (
	Decimals = 9

	TotalSupply = 1_000_000_000 * curve.TokenBase
	CurveSupply = 800_000_000 * curve.TokenBase
	LPSupply    = 200_000_000 * curve.TokenBase

	// Default curve endpoints: $0.00000420 to $0.00006900 per token.
	DefaultStartPriceUSD = 420
	DefaultEndPriceUSD   = 6_900

	// DefaultGraduationUSD is the raise threshold, USDScale-scaled.
	DefaultGraduationUSD = 12_000 * curve.USDScale

	MaxNameLen   = 32
	MaxSymbolLen = 10
	MaxURILen    = 200

	// MaxFeeBps caps the platform fee at 10%.
	MaxFeeBps = 1_000
)

// symbolRegex admits the usual ticker alphabet.
var symbolRegex = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

var (
	ErrInvalidName   = errors.New("token: invalid name")
	ErrInvalidSymbol = errors.New("token: invalid symbol")
	ErrInvalidURI    = errors.New("token: invalid metadata uri")
	ErrInvalidFee    = errors.New("token: fee exceeds maximum")
	ErrInvalidPrice  = errors.New("token: invalid usd price")
)

// Metadata is the creator-supplied identity of a launch.
type Metadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	MetadataURI string `json:"metadata_uri"`
}

// Validate enforces the metadata length and alphabet limits.
func (m Metadata) Validate() error {
	if m.Name == "" || len(m.Name) > MaxNameLen {
		return fmt.Errorf("%w: name must be 1-%d bytes", ErrInvalidName, MaxNameLen)
	}
	if !symbolRegex.MatchString(m.Symbol) {
		return fmt.Errorf("%w: symbol must match %s", ErrInvalidSymbol, symbolRegex)
	}
	if len(m.MetadataURI) > MaxURILen {
		return fmt.Errorf("%w: uri must be at most %d bytes", ErrInvalidURI, MaxURILen)
	}
	return nil
}

// ValidateFeeBps bounds the platform fee rate.
func ValidateFeeBps(bps uint16) error {
	if bps > MaxFeeBps {
		return fmt.Errorf("%w: %d bps > %d bps", ErrInvalidFee, bps, MaxFeeBps)
	}
	return nil
}

// DefaultParams derives curve parameters for the standard tokenomics.
func DefaultParams() (curve.Params, error) {
	return curve.NewParams(DefaultStartPriceUSD, DefaultEndPriceUSD, CurveSupply, LPSupply)
}

// ParamsFromUSD derives curve parameters from decimal USD prices, e.g.
// 0.00000420 and 0.00006900. Prices finer than USDScale resolution are
// rejected rather than silently rounded.
func ParamsFromUSD(startUSD, endUSD decimal.Decimal) (curve.Params, error) {
	start, err := scaleUSD(startUSD)
	if err != nil {
		return curve.Params{}, err
	}
	end, err := scaleUSD(endUSD)
	if err != nil {
		return curve.Params{}, err
	}
	return curve.NewParams(start, end, CurveSupply, LPSupply)
}

func scaleUSD(usd decimal.Decimal) (uint64, error) {
	scaled := usd.Shift(8) // USDScale is 1e8
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %s is finer than 1e-8 USD", ErrInvalidPrice, usd)
	}
	if scaled.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidPrice, usd)
	}
	v := scaled.BigInt()
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s out of range", ErrInvalidPrice, usd)
	}
	return v.Uint64(), nil
}
