// Package engine executes buys and sells against one launch's bonding
// curve: it validates requests, prices them, settles value through the
// hosting transfer layer, mutates the reserve ledger, tracks per-trader
// positions, and drives the one-shot graduation transition.
//
// The engine is synchronous and performs no I/O beyond the ValueMover
// calls. It is not safe for concurrent use; the host serializes access
// per launch (different launches are fully independent).
//
// Ordering discipline on every trade: validate → compute → move value →
// mutate ledger. The ledger mutation is the last, non-reversible step, so
// a failed transfer leaves no bookkeeping to unwind.
package engine

import (
	"errors"
	"fmt"

	"github.com/notmarket/launch-engine/internal/curve"
	"github.com/notmarket/launch-engine/internal/fixedpoint"
	"github.com/notmarket/launch-engine/internal/ledger"
)

var (
	// ErrSlippageExceeded rejects a trade whose computed cost or proceeds
	// violate the caller-supplied bound. The bound is per-call, never
	// persisted — it is the trader's only defense against a moving curve.
	ErrSlippageExceeded = errors.New("engine: slippage bound exceeded")

	// ErrInsufficientHoldings rejects a sell larger than the trader's
	// recorded position.
	ErrInsufficientHoldings = errors.New("engine: insufficient holdings")

	// ErrNotGraduated rejects withdrawable-balance reads before the
	// terminal transition.
	ErrNotGraduated = errors.New("engine: curve has not graduated")
)

// State is the trading state machine: Active accepts buys and sells,
// Graduated is terminal and rejects both. The transition is
// one-directional and fires only from inside a successful buy.
type State int

const (
	StateActive State = iota
	StateGraduated
)

func (s State) String() string {
	if s == StateGraduated {
		return "graduated"
	}
	return "active"
}

// Config carries the platform-wide trade settings. Immutable; passed in
// at construction rather than read from ambient globals so the engine is
// testable without a simulated host.
type Config struct {
	FeeBps        uint16 // platform fee in basis points, carved out of gross
	FeeRecipient  string // external fee destination, used by the ValueMover
	GraduationUSD uint64 // USDScale-scaled raise threshold for graduation
}

// ValueMover is the hosting collaborator that actually moves currency.
// The engine computes amounts; the mover transfers them. A mover error
// aborts the trade before any ledger mutation.
type ValueMover interface {
	// CollectBuy takes reserveIn + fee from the buyer: reserveIn into the
	// launch vault and fee to the fee recipient.
	CollectBuy(trader string, reserveIn, fee uint64) error

	// PayoutSell pays net proceeds to the seller and the fee to the fee
	// recipient, both drawn from the launch vault.
	PayoutSell(trader string, net, fee uint64) error
}

// NopMover is a ValueMover for hosts that settle currency out of band.
type NopMover struct{}

func (NopMover) CollectBuy(string, uint64, uint64) error { return nil }
func (NopMover) PayoutSell(string, uint64, uint64) error { return nil }

// BuyResult reports a settled buy. The caller is responsible for
// delivering UnitsReceived to the trader; the engine moves no tokens.
// The buy fee is charged on top of the curve cost, so the buyer's total
// outlay is TotalCharged = CurveCost + Fee and the reserve receives the
// full CurveCost. Sells are the other way around: the fee is carved out
// of what leaves the reserve.
type BuyResult struct {
	UnitsReceived uint64
	CurveCost     uint64 // native, integral cost that entered the reserve
	Fee           uint64 // native, routed to the fee recipient
	TotalCharged  uint64 // native, the buyer's full outlay
	SpotAfter     uint64 // native per whole token after the trade
	Graduated     bool   // true when this buy flipped the terminal state
}

// SellResult reports a settled sell.
type SellResult struct {
	GrossProceeds uint64 // native, what left the reserve
	NetProceeds   uint64 // native, what the seller received
	Fee           uint64
}

// Quote is a read-only pricing preview. Calling it never mutates state,
// so two back-to-back quotes with no intervening trade are identical.
type Quote struct {
	Units       uint64 `json:"units"`
	CostNative  uint64 `json:"cost_native"`
	FeeNative   uint64 `json:"fee_native"`
	TotalNative uint64 `json:"total_native"`
	SpotAfter   uint64 `json:"spot_after_native"`
	SlippageBps uint64 `json:"slippage_bps"`
}

// Engine is the trade executor for one launch.
type Engine struct {
	params    curve.Params
	cfg       Config
	mover     ValueMover
	ledger    *ledger.State
	positions *Book
	state     State
}

// New creates an engine at zero state for a freshly created launch.
func New(params curve.Params, cfg Config, mover ValueMover) *Engine {
	return &Engine{
		params:    params,
		cfg:       cfg,
		mover:     mover,
		ledger:    ledger.New(params.CurveSupply),
		positions: NewBook(),
	}
}

// Restore rebuilds an engine from persisted ledger state.
func Restore(params curve.Params, cfg Config, mover ValueMover, snap ledger.Snapshot, book *Book) (*Engine, error) {
	led, err := ledger.Restore(params.CurveSupply, snap)
	if err != nil {
		return nil, err
	}
	state := StateActive
	if snap.Graduated {
		state = StateGraduated
	}
	if book == nil {
		book = NewBook()
	}
	return &Engine{
		params:    params,
		cfg:       cfg,
		mover:     mover,
		ledger:    led,
		positions: book,
		state:     state,
	}, nil
}

// Params returns the immutable curve parameters.
func (e *Engine) Params() curve.Params { return e.params }

// State returns the current trading state.
func (e *Engine) State() State { return e.state }

// Ledger returns a read-only snapshot of the bookkeeping state.
func (e *Engine) Ledger() ledger.Snapshot { return e.ledger.Snapshot() }

// Positions returns the per-trader position book.
func (e *Engine) Positions() *Book { return e.positions }

// Buy purchases units from the curve. maxNativeCost is the caller's
// slippage ceiling on the total outlay, fee included; rateUSD is the
// current native/USD
// exchange rate (USDScale-scaled), supplied — never computed — by the
// caller. Requests exceeding the remaining inventory are rejected whole.
func (e *Engine) Buy(trader string, units, maxNativeCost, rateUSD uint64) (BuyResult, error) {
	if e.state != StateActive {
		return BuyResult{}, ledger.ErrAlreadyGraduated
	}
	if units == 0 {
		return BuyResult{}, ledger.ErrInvalidAmount
	}
	if units > e.ledger.UnitsRemaining() {
		return BuyResult{}, ledger.ErrSupplyExceeded
	}

	cost, err := e.params.BuyCostNative(e.ledger.UnitsSold(), units, rateUSD)
	if err != nil {
		return BuyResult{}, err
	}
	fee := curve.Fee(cost, e.cfg.FeeBps)
	total := cost + fee
	if total < cost {
		return BuyResult{}, fixedpoint.ErrOverflow
	}

	if total > maxNativeCost {
		return BuyResult{}, ErrSlippageExceeded
	}

	// External value movement happens before the ledger mutation; if the
	// transfer fails nothing has changed and nothing needs unwinding.
	if err := e.mover.CollectBuy(trader, cost, fee); err != nil {
		return BuyResult{}, fmt.Errorf("engine: collect buy funds: %w", err)
	}

	if err := e.ledger.ApplyBuy(units, total, fee); err != nil {
		return BuyResult{}, err
	}
	e.positions.recordBuy(trader, units, total)

	graduated := e.maybeGraduate(rateUSD)

	spotAfter, err := e.params.SpotPriceNative(e.ledger.UnitsSold(), rateUSD)
	if err != nil {
		spotAfter = 0 // pricing the view is best-effort; the trade is settled
	}

	return BuyResult{
		UnitsReceived: units,
		CurveCost:     cost,
		Fee:           fee,
		TotalCharged:  total,
		SpotAfter:     spotAfter,
		Graduated:     graduated,
	}, nil
}

// Sell returns units to the curve. minNativeProceeds is the caller's
// slippage floor on the net proceeds (after fee). Sells can never trigger
// graduation — they move both thresholds away from it.
func (e *Engine) Sell(trader string, units, minNativeProceeds, rateUSD uint64) (SellResult, error) {
	if e.state != StateActive {
		return SellResult{}, ledger.ErrAlreadyGraduated
	}
	if units == 0 {
		return SellResult{}, ledger.ErrInvalidAmount
	}
	pos, ok := e.positions.Get(trader)
	if !ok || pos.UnitsHeld < units {
		return SellResult{}, ErrInsufficientHoldings
	}

	gross, err := e.params.SellProceedsNative(e.ledger.UnitsSold(), units, rateUSD)
	if err != nil {
		return SellResult{}, err
	}
	fee := curve.Fee(gross, e.cfg.FeeBps)
	net := gross - fee

	if net < minNativeProceeds {
		return SellResult{}, ErrSlippageExceeded
	}
	if gross > e.ledger.NativeReserve() {
		// Unreachable while conservation holds; fail closed without
		// touching the mover.
		return SellResult{}, ledger.ErrInsufficientReserve
	}

	if err := e.mover.PayoutSell(trader, net, fee); err != nil {
		return SellResult{}, fmt.Errorf("engine: pay out sell proceeds: %w", err)
	}

	if err := e.ledger.ApplySell(units, gross, fee); err != nil {
		return SellResult{}, err
	}
	e.positions.recordSell(trader, units, net)

	return SellResult{
		GrossProceeds: gross,
		NetProceeds:   net,
		Fee:           fee,
	}, nil
}

// QuoteBuy prices a prospective buy without mutating anything.
func (e *Engine) QuoteBuy(units, rateUSD uint64) (Quote, error) {
	if units == 0 {
		return Quote{}, ledger.ErrInvalidAmount
	}
	if units > e.ledger.UnitsRemaining() {
		return Quote{}, ledger.ErrSupplyExceeded
	}

	sold := e.ledger.UnitsSold()
	cost, err := e.params.BuyCostNative(sold, units, rateUSD)
	if err != nil {
		return Quote{}, err
	}
	spotAfter, err := e.params.SpotPriceNative(sold+units, rateUSD)
	if err != nil {
		return Quote{}, err
	}
	slippage, err := e.params.SlippageBps(sold, units, rateUSD)
	if err != nil {
		return Quote{}, err
	}

	fee := curve.Fee(cost, e.cfg.FeeBps)
	return Quote{
		Units:       units,
		CostNative:  cost,
		FeeNative:   fee,
		TotalNative: cost + fee,
		SpotAfter:   spotAfter,
		SlippageBps: slippage,
	}, nil
}

// WithdrawableBalances reports what the liquidity-withdrawal collaborator
// may drain: the accumulated native reserve and the unsold curve
// inventory (plus the LP holdback, which it already owns). Valid only
// after graduation.
func (e *Engine) WithdrawableBalances() (nativeReserve, unitsRemaining uint64, err error) {
	if e.state != StateGraduated {
		return 0, 0, ErrNotGraduated
	}
	return e.ledger.NativeReserve(), e.ledger.UnitsRemaining(), nil
}

// maybeGraduate evaluates the dual threshold after a successful buy and
// flips the terminal state exactly once. Both conditions are required:
// the full curve supply sold AND the configured USD raise reached at the
// supplied rate. Reaching only one must not graduate.
func (e *Engine) maybeGraduate(rateUSD uint64) bool {
	if e.state != StateActive {
		return false
	}
	if e.ledger.UnitsSold() < e.params.CurveSupply {
		return false
	}
	raised, err := curve.USDRaised(e.ledger.NativeReserve(), rateUSD)
	if err != nil || raised < e.cfg.GraduationUSD {
		return false
	}
	e.ledger.Graduate()
	e.state = StateGraduated
	return true
}
