// Package launch provides the HTTP handlers and business logic for
// creating token launches, trading on their bonding curves, and querying
// trades and positions.
//
// Token and native amounts cross the wire as integer base units; USD
// values use shopspring/decimal — never float64 for money.
package launch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/notmarket/launch-engine/internal/curve"
	"github.com/notmarket/launch-engine/internal/engine"
	"github.com/notmarket/launch-engine/internal/fixedpoint"
	"github.com/notmarket/launch-engine/internal/ledger"
	"github.com/notmarket/launch-engine/internal/limits"
	"github.com/notmarket/launch-engine/internal/metrics"
	"github.com/notmarket/launch-engine/internal/model"
	"github.com/notmarket/launch-engine/internal/oracle"
	"github.com/notmarket/launch-engine/internal/store"
	"github.com/notmarket/launch-engine/internal/token"
)

// Service handles launch operations. Each launch's engine is guarded by
// its own mutex, so trades on one launch serialize while different
// launches execute concurrently.
type Service struct {
	store        store.Store
	engineCfg    engine.Config
	limiter      *limits.TradeLimiter
	rates        oracle.Source
	maxStaleness time.Duration
	mover        engine.ValueMover
	wsHub        *WSHub // optional WebSocket hub for real-time broadcasts

	mu      sync.Mutex
	engines map[string]*launchState
}

type launchState struct {
	mu  sync.Mutex
	eng *engine.Engine
}

// NewService creates a new launch service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, engineCfg engine.Config, limiter *limits.TradeLimiter,
	rates oracle.Source, maxStaleness time.Duration, mover engine.ValueMover, hub *WSHub) *Service {
	if limiter == nil {
		limiter = &limits.TradeLimiter{}
	}
	if mover == nil {
		mover = engine.NopMover{}
	}
	return &Service{
		store:        st,
		engineCfg:    engineCfg,
		limiter:      limiter,
		rates:        rates,
		maxStaleness: maxStaleness,
		mover:        mover,
		wsHub:        hub,
		engines:      make(map[string]*launchState),
	}
}

// --- Request/Response types ---

// CreateLaunchRequest is the JSON body for launch creation. Prices are
// decimal USD strings; empty prices select the default curve endpoints.
type CreateLaunchRequest struct {
	Creator       string          `json:"creator"`
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	MetadataURI   string          `json:"metadata_uri"`
	StartPriceUSD decimal.Decimal `json:"start_price_usd"`
	EndPriceUSD   decimal.Decimal `json:"end_price_usd"`
}

// TradeRequest is the JSON body for POST /api/v1/trade.
type TradeRequest struct {
	Trader   string `json:"trader"`
	LaunchID string `json:"launch_id"`
	Side     string `json:"side"`  // "buy" or "sell"
	Units    uint64 `json:"units"` // token base units

	// MaxNativeCost bounds a buy's total outlay; MinNativeProceeds floors
	// a sell's net proceeds. Zero means unbounded.
	MaxNativeCost     uint64 `json:"max_native_cost"`
	MinNativeProceeds uint64 `json:"min_native_proceeds"`
}

// TradeResponse is the JSON body returned from POST /api/v1/trade.
type TradeResponse struct {
	TradeID     string `json:"trade_id"`
	LaunchID    string `json:"launch_id"`
	Trader      string `json:"trader"`
	Side        string `json:"side"`
	Units       uint64 `json:"units"`
	GrossNative uint64 `json:"gross_native"`
	FeeNative   uint64 `json:"fee_native"`
	NetNative   uint64 `json:"net_native"` // buy: total charged; sell: proceeds paid
	SpotAfter   uint64 `json:"spot_after_native"`
	Graduated   bool   `json:"graduated"`
	Position    PositionSummary `json:"position"`
}

// PositionSummary is the position snapshot included in trade responses.
type PositionSummary struct {
	UnitsHeld      uint64 `json:"units_held"`
	NativeInvested uint64 `json:"native_invested"`
	NativeReceived uint64 `json:"native_received"`
}

// WithdrawResponse reports the balances claimable after graduation.
type WithdrawResponse struct {
	LaunchID       string `json:"launch_id"`
	NativeReserve  uint64 `json:"native_reserve"`
	UnitsRemaining uint64 `json:"units_remaining"`
	LPReserve      uint64 `json:"lp_reserve"`
}

// --- HTTP Handlers ---

// CreateLaunch handles POST /api/v1/launches.
func (s *Service) CreateLaunch(w http.ResponseWriter, r *http.Request) {
	var req CreateLaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Creator == "" {
		writeError(w, "creator is required", http.StatusBadRequest)
		return
	}

	meta := token.Metadata{Name: req.Name, Symbol: req.Symbol, MetadataURI: req.MetadataURI}
	if err := meta.Validate(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params curve.Params
	var err error
	if req.StartPriceUSD.IsZero() && req.EndPriceUSD.IsZero() {
		params, err = token.DefaultParams()
	} else {
		params, err = token.ParamsFromUSD(req.StartPriceUSD, req.EndPriceUSD)
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	l := &model.Launch{
		ID:            uuid.New().String(),
		Creator:       req.Creator,
		Name:          meta.Name,
		Symbol:        meta.Symbol,
		MetadataURI:   meta.MetadataURI,
		StartPriceUSD: params.StartPriceUSD,
		EndPriceUSD:   params.EndPriceUSD,
		CurveSupply:   params.CurveSupply,
		LPReserve:     params.LPReserve,
		Status:        model.StatusActive,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.CreateLaunch(r.Context(), l); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	s.mu.Lock()
	s.engines[l.ID] = &launchState{eng: engine.New(params, s.engineCfg, s.mover)}
	s.mu.Unlock()

	metrics.ActiveLaunches.Inc()
	slog.Info("launch created",
		"id", l.ID,
		"symbol", l.Symbol,
		"creator", l.Creator,
		"start_price_usd", l.StartPriceUSD,
		"end_price_usd", l.EndPriceUSD,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(l)
}

// GetLaunch handles GET /api/v1/launches/{launchID}.
func (s *Service) GetLaunch(w http.ResponseWriter, r *http.Request) {
	launchID := chi.URLParam(r, "launchID")

	l, err := s.store.GetLaunch(r.Context(), launchID)
	if err != nil {
		writeError(w, "launch not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(l)
}

// ListLaunches handles GET /api/v1/launches.
// Optionally filtered by ?status=active|graduated.
func (s *Service) ListLaunches(w http.ResponseWriter, r *http.Request) {
	launches, err := s.store.ListLaunches(r.Context())
	if err != nil {
		writeError(w, "failed to list launches", http.StatusInternalServerError)
		return
	}
	if launches == nil {
		launches = []model.Launch{}
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := []model.Launch{}
		for _, l := range launches {
			if l.Status == status {
				filtered = append(filtered, l)
			}
		}
		launches = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(launches)
}

// GetCurve handles GET /api/v1/launches/{launchID}/curve.
// Returns the pricing snapshot: spot price, raise progress, reserve.
func (s *Service) GetCurve(w http.ResponseWriter, r *http.Request) {
	launchID := chi.URLParam(r, "launchID")

	ls, err := s.launch(r.Context(), launchID)
	if err != nil {
		writeError(w, "launch not found", http.StatusNotFound)
		return
	}

	rate, err := s.freshRate()
	if err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ls.mu.Lock()
	view, err := curveView(launchID, ls.eng, rate)
	ls.mu.Unlock()
	if err != nil {
		writeError(w, "failed to price curve", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

// QuoteBuy handles GET /api/v1/launches/{launchID}/quote?units=N.
// Read-only; quoting never mutates state.
func (s *Service) QuoteBuy(w http.ResponseWriter, r *http.Request) {
	launchID := chi.URLParam(r, "launchID")

	units, err := strconv.ParseUint(r.URL.Query().Get("units"), 10, 64)
	if err != nil {
		writeError(w, "units must be a positive integer", http.StatusBadRequest)
		return
	}

	ls, err := s.launch(r.Context(), launchID)
	if err != nil {
		writeError(w, "launch not found", http.StatusNotFound)
		return
	}

	rate, err := s.freshRate()
	if err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ls.mu.Lock()
	quote, err := ls.eng.QuoteBuy(units, rate)
	ls.mu.Unlock()
	if err != nil {
		writeError(w, err.Error(), errorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quote)
}

// ExecuteTrade handles POST /api/v1/trade.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Trader == "" {
		writeError(w, "trader is required", http.StatusBadRequest)
		return
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		writeError(w, "side must be buy or sell", http.StatusBadRequest)
		return
	}
	if req.Units == 0 {
		writeError(w, "units must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ls, err := s.launch(ctx, req.LaunchID)
	if err != nil {
		writeError(w, "launch not found: "+req.LaunchID, http.StatusNotFound)
		return
	}

	rate, err := s.freshRate()
	if err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	start := time.Now()

	ls.mu.Lock()
	resp, graduated, err := s.executeLocked(ls.eng, &req, rate)
	if err != nil {
		ls.mu.Unlock()
		metrics.TradeRejections.WithLabelValues(rejectionReason(err)).Inc()
		writeError(w, err.Error(), errorStatus(err))
		return
	}
	snap := ls.eng.Ledger()
	pos, _ := ls.eng.Positions().Get(req.Trader)

	// Persist the post-trade snapshot and the immutable trade record
	// while still holding the launch lock: a later trade must not reach
	// the store before an earlier one, or the absolute-value UPDATE
	// would roll the row backwards. The in-memory engine stays
	// authoritative; persistence failures are surfaced but the settled
	// trade is not unwound.
	status := model.StatusActive
	if snap.Graduated {
		status = model.StatusGraduated
	}
	if err := s.store.UpdateLaunchState(ctx, req.LaunchID, store.LaunchState{
		UnitsSold:     snap.UnitsSold,
		NativeReserve: snap.NativeReserve,
		TotalVolume:   snap.TotalVolume,
		TradeCount:    snap.TradeCount,
		Status:        status,
	}); err != nil {
		ls.mu.Unlock()
		writeError(w, "failed to persist launch state", http.StatusInternalServerError)
		return
	}

	record := &model.TradeRecord{
		ID:           uuid.New().String(),
		LaunchID:     req.LaunchID,
		Trader:       req.Trader,
		Side:         req.Side,
		Units:        req.Units,
		GrossNative:  resp.GrossNative,
		FeeNative:    resp.FeeNative,
		RateUSD:      rate,
		UnitsSoldEnd: snap.UnitsSold,
		Timestamp:    time.Now().UTC(),
	}
	if err := s.store.InsertTrade(ctx, record); err != nil {
		ls.mu.Unlock()
		writeError(w, "failed to record trade", http.StatusInternalServerError)
		return
	}
	ls.mu.Unlock()

	metrics.TradesTotal.WithLabelValues(req.Side).Inc()
	metrics.TradeLatency.WithLabelValues(req.Side).Observe(time.Since(start).Seconds())
	metrics.NativeReserve.WithLabelValues(req.LaunchID).Set(float64(snap.NativeReserve))
	metrics.LaunchVolume.WithLabelValues(req.LaunchID, req.Side).Add(float64(resp.GrossNative))

	resp.TradeID = record.ID
	resp.Position = PositionSummary{
		UnitsHeld:      pos.UnitsHeld,
		NativeInvested: pos.NativeInvested,
		NativeReceived: pos.NativeReceived,
	}

	slog.Info("trade executed",
		"trade_id", record.ID,
		"launch", req.LaunchID,
		"trader", req.Trader,
		"side", req.Side,
		"units", req.Units,
		"gross_native", resp.GrossNative,
		"fee_native", resp.FeeNative,
		"units_sold", snap.UnitsSold,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "trade_executed",
			LaunchID:  req.LaunchID,
			Side:      req.Side,
			Units:     req.Units,
			Gross:     resp.GrossNative,
			SpotAfter: resp.SpotAfter,
			UnitsSold: snap.UnitsSold,
		})
		if graduated {
			s.wsHub.Broadcast(WSMessage{
				Type:      "curve_graduated",
				LaunchID:  req.LaunchID,
				UnitsSold: snap.UnitsSold,
				Reserve:   snap.NativeReserve,
			})
		}
	}
	if graduated {
		metrics.GraduationsTotal.Inc()
		metrics.ActiveLaunches.Dec()
		slog.Info("curve graduated",
			"launch", req.LaunchID,
			"reserve_native", snap.NativeReserve,
			"trade_count", snap.TradeCount,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// executeLocked runs the trade against the engine. Caller holds the
// launch mutex.
func (s *Service) executeLocked(eng *engine.Engine, req *TradeRequest, rate uint64) (*TradeResponse, bool, error) {
	resp := &TradeResponse{
		LaunchID: req.LaunchID,
		Trader:   req.Trader,
		Side:     req.Side,
		Units:    req.Units,
	}

	switch req.Side {
	case model.SideBuy:
		held := uint64(0)
		if pos, ok := eng.Positions().Get(req.Trader); ok {
			held = pos.UnitsHeld
		}
		if err := s.limiter.CheckBuy(req.Units, held, eng.Params().CurveSupply); err != nil {
			return nil, false, err
		}

		maxCost := req.MaxNativeCost
		if maxCost == 0 {
			maxCost = ^uint64(0)
		}
		res, err := eng.Buy(req.Trader, req.Units, maxCost, rate)
		if err != nil {
			return nil, false, err
		}
		resp.GrossNative = res.TotalCharged
		resp.FeeNative = res.Fee
		resp.NetNative = res.TotalCharged
		resp.SpotAfter = res.SpotAfter
		resp.Graduated = res.Graduated
		return resp, res.Graduated, nil

	default:
		if err := s.limiter.CheckSell(req.Units); err != nil {
			return nil, false, err
		}
		res, err := eng.Sell(req.Trader, req.Units, req.MinNativeProceeds, rate)
		if err != nil {
			return nil, false, err
		}
		resp.GrossNative = res.GrossProceeds
		resp.FeeNative = res.Fee
		resp.NetNative = res.NetProceeds
		return resp, false, nil
	}
}

// GetTrades handles GET /api/v1/launches/{launchID}/trades.
func (s *Service) GetTrades(w http.ResponseWriter, r *http.Request) {
	launchID := chi.URLParam(r, "launchID")

	trades, err := s.store.GetTradesByLaunch(r.Context(), launchID)
	if err != nil {
		writeError(w, "failed to get trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.TradeRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// GetPositions handles GET /api/v1/positions/{trader}.
// Returns holdings per launch, marked to the current spot price.
func (s *Service) GetPositions(w http.ResponseWriter, r *http.Request) {
	trader := chi.URLParam(r, "trader")
	ctx := r.Context()

	positions, err := s.store.GetTraderPositions(ctx, trader)
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []model.PositionView{}
	}

	rate, err := s.freshRate()
	if err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	for i := range positions {
		if err := s.decoratePosition(ctx, &positions[i], rate); err != nil {
			slog.Warn("position valuation failed",
				"trader", trader,
				"launch", positions[i].LaunchID,
				"err", err,
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions)
}

// Withdraw handles POST /api/v1/launches/{launchID}/withdraw.
// Valid only after graduation; reports the balances the liquidity
// migration may claim. Only the launch creator may call it.
func (s *Service) Withdraw(w http.ResponseWriter, r *http.Request) {
	launchID := chi.URLParam(r, "launchID")
	ctx := r.Context()

	l, err := s.store.GetLaunch(ctx, launchID)
	if err != nil {
		writeError(w, "launch not found", http.StatusNotFound)
		return
	}

	var req struct {
		Creator string `json:"creator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Creator == "" {
		writeError(w, "creator is required", http.StatusBadRequest)
		return
	}
	if req.Creator != l.Creator {
		writeError(w, "only the launch creator may withdraw", http.StatusForbidden)
		return
	}

	ls, err := s.launch(ctx, launchID)
	if err != nil {
		writeError(w, "launch not found", http.StatusNotFound)
		return
	}

	ls.mu.Lock()
	reserve, remaining, err := ls.eng.WithdrawableBalances()
	ls.mu.Unlock()
	if err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	slog.Info("withdrawal balances reported",
		"launch", launchID,
		"native_reserve", reserve,
		"units_remaining", remaining,
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WithdrawResponse{
		LaunchID:       launchID,
		NativeReserve:  reserve,
		UnitsRemaining: remaining,
		LPReserve:      l.LPReserve,
	})
}

// --- Engine registry ---

// launch returns the launch's engine wrapper, rebuilding it from the
// store on first access after a restart.
func (s *Service) launch(ctx context.Context, id string) (*launchState, error) {
	s.mu.Lock()
	if ls, ok := s.engines[id]; ok {
		s.mu.Unlock()
		return ls, nil
	}
	s.mu.Unlock()

	// Rebuild outside the registry lock; store reads can be slow.
	row, err := s.store.GetLaunch(ctx, id)
	if err != nil {
		return nil, err
	}
	trades, err := s.store.GetTradesByLaunch(ctx, id)
	if err != nil {
		return nil, err
	}
	eng, err := rebuildEngine(row, trades, s.engineCfg, s.mover)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok := s.engines[id]; ok {
		return ls, nil // lost the rebuild race; keep the first engine
	}
	ls := &launchState{eng: eng}
	s.engines[id] = ls
	return ls, nil
}

// rebuildEngine reconstructs a launch's engine from its persisted row and
// trade log.
func rebuildEngine(row *model.Launch, trades []model.TradeRecord, cfg engine.Config, mover engine.ValueMover) (*engine.Engine, error) {
	params, err := curve.NewParams(row.StartPriceUSD, row.EndPriceUSD, row.CurveSupply, row.LPReserve)
	if err != nil {
		return nil, err
	}
	if row.UnitsSold > row.CurveSupply {
		// A wrapped UnitsRemaining would pass the ledger's mod-2^64
		// conservation check, so the row is rejected here.
		return nil, fmt.Errorf("launch %s: units sold %d exceeds curve supply %d",
			row.ID, row.UnitsSold, row.CurveSupply)
	}

	snap := ledger.Snapshot{
		UnitsSold:      row.UnitsSold,
		UnitsRemaining: row.CurveSupply - row.UnitsSold,
		NativeReserve:  row.NativeReserve,
		TotalVolume:    row.TotalVolume,
		TradeCount:     row.TradeCount,
		Graduated:      row.Status == model.StatusGraduated,
	}

	return engine.Restore(params, cfg, mover, snap, bookFromTrades(trades))
}

// bookFromTrades replays the trade log into per-trader positions.
func bookFromTrades(trades []model.TradeRecord) *engine.Book {
	agg := make(map[string]*engine.Position)
	var order []string

	for _, t := range trades {
		p, ok := agg[t.Trader]
		if !ok {
			p = &engine.Position{Trader: t.Trader}
			agg[t.Trader] = p
			order = append(order, t.Trader)
		}
		switch t.Side {
		case model.SideBuy:
			p.UnitsHeld += t.Units
			p.NativeInvested += t.GrossNative
			p.BuyCount++
		case model.SideSell:
			p.UnitsHeld -= t.Units
			p.NativeReceived += t.GrossNative - t.FeeNative
			p.SellCount++
		}
		p.LastTradeAt = t.Timestamp
	}

	positions := make([]engine.Position, 0, len(agg))
	for _, trader := range order {
		positions = append(positions, *agg[trader])
	}
	return engine.RestoreBook(positions)
}

// --- Pricing helpers ---

// freshRate fetches the current native/USD rate and rejects stale quotes.
func (s *Service) freshRate() (uint64, error) {
	quote, err := s.rates.Rate()
	if err != nil {
		return 0, err
	}
	if err := quote.Validate(time.Now(), s.maxStaleness); err != nil {
		return 0, err
	}
	return quote.PriceUSD, nil
}

func curveView(launchID string, eng *engine.Engine, rate uint64) (*model.CurveView, error) {
	snap := eng.Ledger()
	params := eng.Params()

	spot, err := params.SpotPriceUSD(snap.UnitsSold)
	if err != nil {
		return nil, err
	}
	raised, err := curve.USDRaised(snap.NativeReserve, rate)
	if err != nil {
		return nil, err
	}
	progress, err := fixedpoint.MulDiv(snap.UnitsSold, 10_000, params.CurveSupply)
	if err != nil {
		return nil, err
	}

	status := model.StatusActive
	if snap.Graduated {
		status = model.StatusGraduated
	}
	return &model.CurveView{
		LaunchID:       launchID,
		Status:         status,
		UnitsSold:      snap.UnitsSold,
		UnitsRemaining: snap.UnitsRemaining,
		NativeReserve:  snap.NativeReserve,
		SpotPriceUSD:   usdDecimal(spot),
		RaisedUSD:      usdDecimal(raised),
		ProgressBps:    progress,
	}, nil
}

// decoratePosition fills the USD valuation fields from the launch's
// current spot price.
func (s *Service) decoratePosition(ctx context.Context, p *model.PositionView, rate uint64) error {
	ls, err := s.launch(ctx, p.LaunchID)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	snap := ls.eng.Ledger()
	params := ls.eng.Params()
	ls.mu.Unlock()

	spot, err := params.SpotPriceUSD(snap.UnitsSold)
	if err != nil {
		return err
	}

	tokenBase := decimal.NewFromUint64(curve.TokenBase)
	p.ValueUSD = usdDecimal(spot).
		Mul(decimal.NewFromUint64(p.UnitsHeld)).
		Div(tokenBase).
		Round(8)
	p.InvestedUSD = nativeToUSD(p.NativeInvested, rate)
	receivedUSD := nativeToUSD(p.NativeReceived, rate)
	p.UnrealizedPnL = p.ValueUSD.Sub(p.InvestedUSD).Add(receivedUSD)
	return nil
}

// usdDecimal renders a 1e8-scaled USD integer as a decimal.
func usdDecimal(scaled uint64) decimal.Decimal {
	return decimal.NewFromUint64(scaled).Shift(-8)
}

// nativeToUSD converts native base units to USD at the given 1e8-scaled
// rate.
func nativeToUSD(native, rate uint64) decimal.Decimal {
	return decimal.NewFromUint64(native).
		Mul(decimal.NewFromUint64(rate)).
		Div(decimal.NewFromUint64(curve.NativeBase)).
		Shift(-8).
		Round(8)
}

// --- Error mapping ---

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrSupplyExceeded),
		errors.Is(err, ledger.ErrAlreadyGraduated),
		errors.Is(err, engine.ErrInsufficientHoldings),
		errors.Is(err, engine.ErrSlippageExceeded),
		errors.Is(err, engine.ErrNotGraduated),
		errors.Is(err, limits.ErrTradeTooSmall),
		errors.Is(err, limits.ErrTradeTooLarge),
		errors.Is(err, limits.ErrConcentrationExceeded):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrStaleRate), errors.Is(err, oracle.ErrInvalidRate):
		return http.StatusServiceUnavailable
	default:
		// ErrInsufficientReserve and ErrOverflow signal broken invariants;
		// fail closed and surface loudly.
		return http.StatusInternalServerError
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ledger.ErrSupplyExceeded):
		return "supply_exceeded"
	case errors.Is(err, ledger.ErrAlreadyGraduated):
		return "already_graduated"
	case errors.Is(err, ledger.ErrInsufficientReserve):
		return "insufficient_reserve"
	case errors.Is(err, engine.ErrInsufficientHoldings):
		return "insufficient_holdings"
	case errors.Is(err, engine.ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, limits.ErrTradeTooSmall), errors.Is(err, limits.ErrTradeTooLarge):
		return "trade_size"
	case errors.Is(err, limits.ErrConcentrationExceeded):
		return "concentration"
	case errors.Is(err, fixedpoint.ErrOverflow):
		return "overflow"
	default:
		return "other"
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
