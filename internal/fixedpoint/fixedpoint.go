// Package fixedpoint provides deterministic scaled-integer arithmetic for
// the bonding curve: a Taylor-series exponential, a natural logarithm for
// deriving the curve growth constant, and widened multiply-divide helpers.
//
// All values are fixed-point integers scaled by Scale (1e12). Floating
// point is never used — two nodes evaluating the same trade must price it
// identically down to the last base unit. Intermediates that can exceed
// 64 bits run through 256-bit arithmetic (holiman/uint256); any result
// that cannot be narrowed back to uint64 fails with ErrOverflow rather
// than wrapping silently.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// Scale is the fixed-point scale factor: all scaled values carry 12
// fractional decimal digits.
const Scale uint64 = 1_000_000_000_000

// expTerms is the Taylor-series term count for Exp. For inputs up to
// MaxExpInput the truncation error of 20 terms stays below 1e-4 relative;
// for the domain actually reached by the curve (k·supply ≤
// ln(endPrice/startPrice), ≈ 2.8 for the default parameter set) it is
// below 1e-11 relative.
const expTerms = 20

// MaxExpInput bounds the Exp domain (8.0 scaled). Beyond this the series
// truncation error is no longer negligible and e^x·Scale approaches the
// uint64 ceiling, so larger inputs trip the guard.
const MaxExpInput = 8 * Scale

// ln2 scaled by Scale. Used for range reduction in Ln.
const ln2 uint64 = 693_147_180_560

// ErrOverflow is returned when a widened computation cannot be narrowed
// back to 64 bits, or when an input leaves the documented domain. Callers
// treat it as a fatal internal-consistency signal, not a retryable error.
var ErrOverflow = errors.New("fixedpoint: arithmetic overflow")

// Exp returns e^x scaled by Scale, for x scaled by Scale.
//
// Taylor expansion: e^x = Σ x^n / n!, evaluated with expTerms terms and an
// early exit once a term floors to zero. Each term is computed from the
// previous by term = term·x / (n·Scale) with floor division, which keeps
// the whole series non-decreasing in x: a larger input can never produce a
// smaller result.
func Exp(x uint64) (uint64, error) {
	if x > MaxExpInput {
		return 0, ErrOverflow
	}

	scale := uint256.NewInt(Scale)
	xw := uint256.NewInt(x)
	result := new(uint256.Int).Set(scale) // term 0: 1.0
	term := new(uint256.Int).Set(scale)

	for i := uint64(1); i <= expTerms; i++ {
		term.Mul(term, xw)
		term.Div(term, uint256.NewInt(i))
		term.Div(term, scale)
		if term.IsZero() {
			break
		}
		result.Add(result, term)
	}

	if !result.IsUint64() {
		return 0, ErrOverflow
	}
	return result.Uint64(), nil
}

// Ln returns ln(y) scaled by Scale, for y scaled by Scale with y ≥ 1.0.
// The curve only ever takes logarithms of price ratios endPrice/startPrice,
// which are strictly greater than one.
//
// y is reduced to m ∈ [1, 2) by halving, then ln(m) is computed via the
// atanh series ln(m) = 2·(z + z³/3 + z⁵/5 + …) with z = (m−1)/(m+1) ≤ 1/3,
// and the halvings are restored as multiples of ln 2.
func Ln(y uint64) (uint64, error) {
	if y < Scale {
		return 0, ErrOverflow
	}

	var halvings uint64
	m := y
	for m >= 2*Scale {
		m /= 2
		halvings++
	}

	// z = (m - 1) / (m + 1), scaled.
	z, err := MulDiv(m-Scale, Scale, m+Scale)
	if err != nil {
		return 0, err
	}

	zsq, err := MulDiv(z, z, Scale)
	if err != nil {
		return 0, err
	}

	sum := z
	term := z
	for i := uint64(3); i <= 29; i += 2 {
		term, err = MulDiv(term, zsq, Scale)
		if err != nil {
			return 0, err
		}
		if term == 0 {
			break
		}
		sum += term / i
	}

	return halvings*ln2 + 2*sum, nil
}

// MulDiv returns a·b/den with floor rounding, using a 256-bit intermediate
// product so a·b cannot overflow before the division.
func MulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrOverflow
	}
	p := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	p.Div(p, uint256.NewInt(den))
	if !p.IsUint64() {
		return 0, ErrOverflow
	}
	return p.Uint64(), nil
}

// MulDiv3 returns a·b·c/(d·e) with floor rounding, entirely in 256-bit
// space. Used for the closed-form integral cost, where the three-factor
// numerator exceeds 128 bits for realistic supply and price extremes.
func MulDiv3(a, b, c, d, e uint64) (uint64, error) {
	den := new(uint256.Int).Mul(uint256.NewInt(d), uint256.NewInt(e))
	if den.IsZero() {
		return 0, ErrOverflow
	}
	num := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	num.Mul(num, uint256.NewInt(c))
	num.Div(num, den)
	if !num.IsUint64() {
		return 0, ErrOverflow
	}
	return num.Uint64(), nil
}
