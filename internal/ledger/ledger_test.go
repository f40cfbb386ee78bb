package ledger

import "testing"

const testSupply = uint64(800_000_000_000_000_000)

func TestNew_StartsAtZero(t *testing.T) {
	s := New(testSupply)
	if s.UnitsSold() != 0 || s.UnitsRemaining() != testSupply {
		t.Errorf("fresh ledger should hold full inventory: sold=%d remaining=%d",
			s.UnitsSold(), s.UnitsRemaining())
	}
	if s.NativeReserve() != 0 || s.TradeCount() != 0 {
		t.Error("fresh ledger should have zero reserve and trade count")
	}
	if s.IsGraduated() {
		t.Error("fresh ledger should not be graduated")
	}
	if err := s.CheckInvariant(); err != nil {
		t.Errorf("fresh ledger invariant: %v", err)
	}
}

func TestApplyBuy_MutatesAllFields(t *testing.T) {
	s := New(testSupply)

	if err := s.ApplyBuy(1000, 500, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.UnitsSold() != 1000 {
		t.Errorf("expected 1000 sold, got %d", s.UnitsSold())
	}
	if s.UnitsRemaining() != testSupply-1000 {
		t.Errorf("expected remaining %d, got %d", testSupply-1000, s.UnitsRemaining())
	}
	if s.NativeReserve() != 495 {
		t.Errorf("reserve should hold gross minus fee (495), got %d", s.NativeReserve())
	}
	if s.TotalVolume() != 500 {
		t.Errorf("volume should count gross (500), got %d", s.TotalVolume())
	}
	if s.TradeCount() != 1 {
		t.Errorf("expected trade count 1, got %d", s.TradeCount())
	}
	if err := s.CheckInvariant(); err != nil {
		t.Errorf("invariant after buy: %v", err)
	}
}

func TestApplySell_MirrorsBuy(t *testing.T) {
	s := New(testSupply)
	if err := s.ApplyBuy(1000, 500, 5); err != nil {
		t.Fatalf("buy: %v", err)
	}

	if err := s.ApplySell(1000, 495, 4); err != nil {
		t.Fatalf("sell: %v", err)
	}

	if s.UnitsSold() != 0 || s.UnitsRemaining() != testSupply {
		t.Errorf("units should return to pre-buy values: sold=%d", s.UnitsSold())
	}
	if s.NativeReserve() != 0 {
		t.Errorf("reserve should drain by gross proceeds, got %d", s.NativeReserve())
	}
	if s.TotalVolume() != 995 {
		t.Errorf("volume should accumulate both legs (995), got %d", s.TotalVolume())
	}
	if s.TradeCount() != 2 {
		t.Errorf("expected trade count 2, got %d", s.TradeCount())
	}
	if err := s.CheckInvariant(); err != nil {
		t.Errorf("invariant after round trip: %v", err)
	}
}

// --- Precondition rejections: no partial mutation ---

func assertUnchanged(t *testing.T, s *State, want Snapshot) {
	t.Helper()
	if got := s.Snapshot(); got != want {
		t.Errorf("rejected operation mutated state: got %+v want %+v", got, want)
	}
}

func TestApplyBuy_ZeroUnits(t *testing.T) {
	s := New(testSupply)
	before := s.Snapshot()
	if err := s.ApplyBuy(0, 100, 1); err != ErrInvalidAmount {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	assertUnchanged(t, s, before)
}

func TestApplyBuy_SupplyExceeded(t *testing.T) {
	s := New(testSupply)
	before := s.Snapshot()
	if err := s.ApplyBuy(testSupply+1, 100, 1); err != ErrSupplyExceeded {
		t.Errorf("expected ErrSupplyExceeded, got %v", err)
	}
	assertUnchanged(t, s, before)
}

func TestApplyBuy_ExactRemainingSucceeds(t *testing.T) {
	s := New(testSupply)
	if err := s.ApplyBuy(testSupply, 100, 1); err != nil {
		t.Fatalf("buying exact remaining inventory should succeed: %v", err)
	}
	if s.UnitsRemaining() != 0 {
		t.Errorf("expected zero remaining, got %d", s.UnitsRemaining())
	}
}

func TestApplyBuy_FeeExceedsGross(t *testing.T) {
	s := New(testSupply)
	before := s.Snapshot()
	if err := s.ApplyBuy(10, 100, 101); err != ErrFeeExceedsGross {
		t.Errorf("expected ErrFeeExceedsGross, got %v", err)
	}
	assertUnchanged(t, s, before)
}

func TestApplySell_MoreThanSold(t *testing.T) {
	s := New(testSupply)
	s.ApplyBuy(100, 50, 0)
	before := s.Snapshot()
	if err := s.ApplySell(101, 10, 0); err != ErrInsufficientSold {
		t.Errorf("expected ErrInsufficientSold, got %v", err)
	}
	assertUnchanged(t, s, before)
}

func TestApplySell_DrainsReserve(t *testing.T) {
	s := New(testSupply)
	s.ApplyBuy(100, 50, 0)
	before := s.Snapshot()
	if err := s.ApplySell(100, 51, 0); err != ErrInsufficientReserve {
		t.Errorf("expected ErrInsufficientReserve, got %v", err)
	}
	assertUnchanged(t, s, before)
}

func TestGraduate_LocksTrading(t *testing.T) {
	s := New(testSupply)
	s.ApplyBuy(100, 50, 0)
	s.Graduate()

	if !s.IsGraduated() {
		t.Fatal("expected graduated state")
	}

	before := s.Snapshot()
	if err := s.ApplyBuy(1, 1, 0); err != ErrAlreadyGraduated {
		t.Errorf("expected ErrAlreadyGraduated on buy, got %v", err)
	}
	if err := s.ApplySell(1, 1, 0); err != ErrAlreadyGraduated {
		t.Errorf("expected ErrAlreadyGraduated on sell, got %v", err)
	}
	assertUnchanged(t, s, before)
}

func TestConservation_ManyTrades(t *testing.T) {
	s := New(testSupply)

	for i := 0; i < 500; i++ {
		if err := s.ApplyBuy(1_000_000, 3_000, 30); err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
		if i%3 == 0 {
			if err := s.ApplySell(400_000, 1_000, 10); err != nil {
				t.Fatalf("sell %d: %v", i, err)
			}
		}
		if err := s.CheckInvariant(); err != nil {
			t.Fatalf("invariant broken after trade %d: %v", i, err)
		}
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	s := New(testSupply)
	s.ApplyBuy(1000, 500, 5)
	snap := s.Snapshot()

	restored, err := Restore(testSupply, snap)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Snapshot() != snap {
		t.Errorf("restored snapshot mismatch: %+v vs %+v", restored.Snapshot(), snap)
	}
}

func TestRestore_RejectsCorruptSnapshot(t *testing.T) {
	snap := Snapshot{UnitsSold: 10, UnitsRemaining: 10}
	if _, err := Restore(testSupply, snap); err != ErrInvariantViolated {
		t.Errorf("expected ErrInvariantViolated, got %v", err)
	}
}
