package engine

import (
	"sort"
	"time"
)

// Position is one trader's running tally against a single launch. It is
// created lazily on the trader's first buy; traders who never traded have
// no entry at all.
type Position struct {
	Trader         string    `json:"trader"`
	UnitsHeld      uint64    `json:"units_held"`
	NativeInvested uint64    `json:"native_invested"` // cumulative gross buy cost
	NativeReceived uint64    `json:"native_received"` // cumulative net sell proceeds
	BuyCount       uint64    `json:"buy_count"`
	SellCount      uint64    `json:"sell_count"`
	LastTradeAt    time.Time `json:"last_trade_at"`
}

// Book holds the per-trader positions of one launch. Like the engine it
// assumes single-writer access; the host serializes per launch.
type Book struct {
	byTrader map[string]*Position
	now      func() time.Time
}

func NewBook() *Book {
	return &Book{byTrader: make(map[string]*Position), now: time.Now}
}

// RestoreBook rebuilds a book from persisted positions.
func RestoreBook(positions []Position) *Book {
	b := NewBook()
	for i := range positions {
		p := positions[i]
		b.byTrader[p.Trader] = &p
	}
	return b
}

// Get returns a copy of the trader's position. ok is false when the
// trader has never traded this launch.
func (b *Book) Get(trader string) (Position, bool) {
	p, ok := b.byTrader[trader]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// All returns copies of every position, ordered by trader for stable
// output.
func (b *Book) All() []Position {
	out := make([]Position, 0, len(b.byTrader))
	for _, p := range b.byTrader {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Trader < out[j].Trader })
	return out
}

// Len reports how many traders hold or have held a position.
func (b *Book) Len() int { return len(b.byTrader) }

func (b *Book) recordBuy(trader string, units, grossCost uint64) {
	p, ok := b.byTrader[trader]
	if !ok {
		p = &Position{Trader: trader}
		b.byTrader[trader] = p
	}
	p.UnitsHeld += units
	p.NativeInvested += grossCost
	p.BuyCount++
	p.LastTradeAt = b.now()
}

func (b *Book) recordSell(trader string, units, netProceeds uint64) {
	p, ok := b.byTrader[trader]
	if !ok {
		return // Sell validates holdings first; nothing to record
	}
	p.UnitsHeld -= units
	p.NativeReceived += netProceeds
	p.SellCount++
	p.LastTradeAt = b.now()
}
