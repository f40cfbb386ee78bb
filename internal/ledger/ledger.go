// Package ledger holds the mutable bookkeeping state of one launch: units
// sold, native reserve, remaining curve inventory, and volume counters.
//
// ApplyBuy and ApplySell are the only mutation paths. Every precondition
// is checked before the first field is touched, so a rejected operation
// leaves the state byte-for-byte unchanged — no compensating rollback
// exists anywhere because none is ever needed. Fields are unexported and
// read through accessors; code outside this package cannot bypass the
// single-writer discipline.
package ledger

import "errors"

var (
	// ErrInvalidAmount rejects zero-unit trades.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")

	// ErrSupplyExceeded rejects buys larger than the remaining curve
	// inventory. Requests are rejected whole, never partially filled.
	ErrSupplyExceeded = errors.New("ledger: insufficient curve supply")

	// ErrInsufficientSold rejects sells of more units than the curve has
	// sold in aggregate.
	ErrInsufficientSold = errors.New("ledger: sell exceeds units sold")

	// ErrInsufficientReserve signals a sell whose proceeds exceed the
	// native reserve. Unreachable while the conservation invariants hold;
	// if it fires, the state is corrupt and the operation fails closed.
	ErrInsufficientReserve = errors.New("ledger: proceeds exceed native reserve")

	// ErrAlreadyGraduated rejects any trade after the terminal transition.
	ErrAlreadyGraduated = errors.New("ledger: curve has graduated")

	// ErrFeeExceedsGross signals a fee larger than the gross amount it is
	// carved from. Like ErrInsufficientReserve, reaching it means caller
	// arithmetic is broken.
	ErrFeeExceedsGross = errors.New("ledger: fee exceeds gross amount")

	// ErrInvariantViolated reports a broken conservation invariant.
	ErrInvariantViolated = errors.New("ledger: conservation invariant violated")
)

// State is the per-launch mutable ledger. One instance exists per launch,
// created at zero alongside the immutable curve parameters.
type State struct {
	curveSupply    uint64
	unitsSold      uint64
	unitsRemaining uint64
	nativeReserve  uint64
	totalVolume    uint64
	tradeCount     uint64
	graduated      bool
}

// Snapshot is a read-only copy of the ledger fields, used for persistence
// and API responses.
type Snapshot struct {
	UnitsSold      uint64 `json:"units_sold"`
	UnitsRemaining uint64 `json:"units_remaining"`
	NativeReserve  uint64 `json:"native_reserve"`
	TotalVolume    uint64 `json:"total_volume"`
	TradeCount     uint64 `json:"trade_count"`
	Graduated      bool   `json:"graduated"`
}

// New creates a zeroed ledger for a curve with the given tradeable supply.
func New(curveSupply uint64) *State {
	return &State{
		curveSupply:    curveSupply,
		unitsRemaining: curveSupply,
	}
}

// Restore rebuilds a ledger from a persisted snapshot.
func Restore(curveSupply uint64, snap Snapshot) (*State, error) {
	s := &State{
		curveSupply:    curveSupply,
		unitsSold:      snap.UnitsSold,
		unitsRemaining: snap.UnitsRemaining,
		nativeReserve:  snap.NativeReserve,
		totalVolume:    snap.TotalVolume,
		tradeCount:     snap.TradeCount,
		graduated:      snap.Graduated,
	}
	if err := s.CheckInvariant(); err != nil {
		return nil, err
	}
	return s, nil
}

// ApplyBuy records a settled buy: units leave the curve inventory and the
// gross cost net of the platform fee enters the reserve. The fee itself is
// routed to the fee recipient by the caller and never sits in the reserve.
func (s *State) ApplyBuy(units, grossNative, feeNative uint64) error {
	switch {
	case s.graduated:
		return ErrAlreadyGraduated
	case units == 0:
		return ErrInvalidAmount
	case units > s.unitsRemaining:
		return ErrSupplyExceeded
	case feeNative > grossNative:
		return ErrFeeExceedsGross
	}

	s.unitsSold += units
	s.unitsRemaining -= units
	s.nativeReserve += grossNative - feeNative
	s.totalVolume += grossNative
	s.tradeCount++
	return nil
}

// ApplySell records a settled sell: units return to the curve inventory
// and the gross proceeds leave the reserve. The fee is carved out of the
// gross on its way out — net goes to the seller, fee to the recipient —
// so the reserve decreases by exactly the gross amount.
func (s *State) ApplySell(units, grossNative, feeNative uint64) error {
	switch {
	case s.graduated:
		return ErrAlreadyGraduated
	case units == 0:
		return ErrInvalidAmount
	case units > s.unitsSold:
		return ErrInsufficientSold
	case grossNative > s.nativeReserve:
		return ErrInsufficientReserve
	case feeNative > grossNative:
		return ErrFeeExceedsGross
	}

	s.unitsSold -= units
	s.unitsRemaining += units
	s.nativeReserve -= grossNative
	s.totalVolume += grossNative
	s.tradeCount++
	return nil
}

// Graduate marks the terminal state. One-directional: there is no way to
// clear the flag.
func (s *State) Graduate() {
	s.graduated = true
}

// CheckInvariant verifies unit conservation. Called by tests after every
// mutation sequence and by Restore on load.
func (s *State) CheckInvariant() error {
	if s.unitsSold+s.unitsRemaining != s.curveSupply {
		return ErrInvariantViolated
	}
	return nil
}

func (s *State) UnitsSold() uint64      { return s.unitsSold }
func (s *State) UnitsRemaining() uint64 { return s.unitsRemaining }
func (s *State) NativeReserve() uint64  { return s.nativeReserve }
func (s *State) TotalVolume() uint64    { return s.totalVolume }
func (s *State) TradeCount() uint64     { return s.tradeCount }
func (s *State) IsGraduated() bool      { return s.graduated }

// Snapshot returns a copy of the current field values.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		UnitsSold:      s.unitsSold,
		UnitsRemaining: s.unitsRemaining,
		NativeReserve:  s.nativeReserve,
		TotalVolume:    s.totalVolume,
		TradeCount:     s.tradeCount,
		Graduated:      s.graduated,
	}
}
