// Package oracle supplies the native-coin/USD exchange rate used to
// price curve trades. Rates are integers scaled by 1e8 to match the USD
// arithmetic in the curve package; $150.00 is 15_000_000_000.
//
// The trade path never fetches a rate itself. A Source hands out the
// latest quote together with its publish time, and callers reject quotes
// older than their staleness budget before trading on them.
package oracle

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxStaleness bounds how old a quote may be before trades built
// on it are refused.
const DefaultMaxStaleness = 60 * time.Second

var (
	ErrInvalidRate = errors.New("oracle: invalid rate")
	ErrStaleRate   = errors.New("oracle: rate too stale")
)

// RateQuote is one observation of the native/USD price.
type RateQuote struct {
	PriceUSD    uint64    `json:"price_usd"` // scaled 1e8
	PublishedAt time.Time `json:"published_at"`
}

// Validate checks the quote against a staleness budget at the given
// instant. Quotes from the future are rejected the same as stale ones.
func (q RateQuote) Validate(now time.Time, maxStaleness time.Duration) error {
	if q.PriceUSD == 0 {
		return ErrInvalidRate
	}
	age := now.Sub(q.PublishedAt)
	if age < 0 || age > maxStaleness {
		return fmt.Errorf("%w: published %s ago (max %s)", ErrStaleRate, age, maxStaleness)
	}
	return nil
}

// Source hands out the most recent rate quote.
type Source interface {
	Rate() (RateQuote, error)
}

// Static is a fixed-rate source, always fresh. Used for tests and for
// deployments that pin the native price in configuration.
type Static struct {
	PriceUSD uint64
	now      func() time.Time
}

func NewStatic(priceUSD uint64) *Static {
	return &Static{PriceUSD: priceUSD, now: time.Now}
}

func (s *Static) Rate() (RateQuote, error) {
	if s.PriceUSD == 0 {
		return RateQuote{}, ErrInvalidRate
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return RateQuote{PriceUSD: s.PriceUSD, PublishedAt: now()}, nil
}

// Settable is a source fed by an external publisher (a feed poller or an
// ops endpoint). Safe for concurrent use.
type Settable struct {
	mu    sync.RWMutex
	quote RateQuote
	set   bool
}

func NewSettable() *Settable { return &Settable{} }

// Set publishes a new quote. Zero prices are rejected so a broken feed
// cannot wipe out the last good observation.
func (s *Settable) Set(q RateQuote) error {
	if q.PriceUSD == 0 {
		return ErrInvalidRate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quote = q
	s.set = true
	return nil
}

func (s *Settable) Rate() (RateQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return RateQuote{}, fmt.Errorf("%w: no quote published yet", ErrInvalidRate)
	}
	return s.quote, nil
}

// ScalePrice normalizes a feed observation of the form price·10^exponent
// into the 1e8-scaled integer representation. Feeds commonly publish
// negative exponents; price=10050 with exponent -2 is $100.50 and scales
// to 10_050_000_000.
func ScalePrice(price int64, exponent int32) (uint64, error) {
	if price <= 0 {
		return 0, ErrInvalidRate
	}
	v := uint64(price)

	switch {
	case exponent >= -8:
		// Multiply up by 10^(8+exponent); zero iterations at exactly -8.
		for i := int32(0); i < exponent+8; i++ {
			next := v * 10
			if next/10 != v {
				return 0, fmt.Errorf("%w: exponent %d overflows", ErrInvalidRate, exponent)
			}
			v = next
		}
	default:
		for i := exponent; i < -8; i++ {
			v /= 10
		}
	}

	if v == 0 {
		return 0, ErrInvalidRate
	}
	return v, nil
}
