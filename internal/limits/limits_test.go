package limits

import (
	"errors"
	"testing"
)

const testCurveSupply = 800_000_000_000_000_000 // 800M tokens, 9 decimals

func TestCheckBuy_SizeBounds(t *testing.T) {
	l := NewTradeLimiter(1_000, 1_000_000_000_000, 0)

	if err := l.CheckBuy(999, 0, testCurveSupply); !errors.Is(err, ErrTradeTooSmall) {
		t.Errorf("below minimum: got %v, want ErrTradeTooSmall", err)
	}
	if err := l.CheckBuy(1_000, 0, testCurveSupply); err != nil {
		t.Errorf("exact minimum rejected: %v", err)
	}
	if err := l.CheckBuy(1_000_000_000_001, 0, testCurveSupply); !errors.Is(err, ErrTradeTooLarge) {
		t.Errorf("above maximum: got %v, want ErrTradeTooLarge", err)
	}
	if err := l.CheckBuy(1_000_000_000_000, 0, testCurveSupply); err != nil {
		t.Errorf("exact maximum rejected: %v", err)
	}
}

func TestCheckBuy_ConcentrationCap(t *testing.T) {
	// 500 bps = 5% of curve supply = 40M tokens.
	l := NewTradeLimiter(0, 0, 500)
	maxHeld := uint64(40_000_000_000_000_000)

	if err := l.CheckBuy(maxHeld, 0, testCurveSupply); err != nil {
		t.Errorf("buy up to the cap rejected: %v", err)
	}
	if err := l.CheckBuy(maxHeld+1, 0, testCurveSupply); !errors.Is(err, ErrConcentrationExceeded) {
		t.Errorf("one over the cap: got %v, want ErrConcentrationExceeded", err)
	}
	if err := l.CheckBuy(1, maxHeld, testCurveSupply); !errors.Is(err, ErrConcentrationExceeded) {
		t.Errorf("existing holdings at cap: got %v, want ErrConcentrationExceeded", err)
	}
	if err := l.CheckBuy(maxHeld/2, maxHeld/2, testCurveSupply); err != nil {
		t.Errorf("combined holdings at cap rejected: %v", err)
	}
}

func TestCheckBuy_FullCurveAllowedAtTenThousandBps(t *testing.T) {
	l := NewTradeLimiter(0, 0, 10_000)
	if err := l.CheckBuy(testCurveSupply, 0, testCurveSupply); err != nil {
		t.Errorf("full-curve buy at 10000 bps rejected: %v", err)
	}
}

func TestCheckSell_OnlySizeBounds(t *testing.T) {
	l := NewTradeLimiter(1_000, 0, 500)

	if err := l.CheckSell(999); !errors.Is(err, ErrTradeTooSmall) {
		t.Errorf("below minimum: got %v, want ErrTradeTooSmall", err)
	}
	// Concentration never blocks sells.
	if err := l.CheckSell(testCurveSupply); err != nil {
		t.Errorf("large sell rejected: %v", err)
	}
}

func TestZeroValueLimiterIsNoOp(t *testing.T) {
	var l TradeLimiter
	if err := l.CheckBuy(testCurveSupply, 0, testCurveSupply); err != nil {
		t.Errorf("zero-value limiter should allow anything: %v", err)
	}
	if err := l.CheckSell(1); err != nil {
		t.Errorf("zero-value limiter should allow anything: %v", err)
	}
}
