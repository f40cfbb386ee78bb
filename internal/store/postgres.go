package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notmarket/launch-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Token and native amounts are stored as BIGINT base units; the largest
// legal supply (1e18) fits comfortably.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const launchColumns = `id, creator, name, symbol, metadata_uri,
	start_price_usd, end_price_usd, curve_supply, lp_reserve,
	units_sold, native_reserve, total_volume, trade_count,
	status, created_at`

func (s *PostgresStore) CreateLaunch(ctx context.Context, l *model.Launch) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO launches (`+launchColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		l.ID, l.Creator, l.Name, l.Symbol, l.MetadataURI,
		l.StartPriceUSD, l.EndPriceUSD, l.CurveSupply, l.LPReserve,
		l.UnitsSold, l.NativeReserve, l.TotalVolume, l.TradeCount,
		l.Status, l.CreatedAt,
	)
	return err
}

func scanLaunch(row pgx.Row) (*model.Launch, error) {
	var l model.Launch
	err := row.Scan(&l.ID, &l.Creator, &l.Name, &l.Symbol, &l.MetadataURI,
		&l.StartPriceUSD, &l.EndPriceUSD, &l.CurveSupply, &l.LPReserve,
		&l.UnitsSold, &l.NativeReserve, &l.TotalVolume, &l.TradeCount,
		&l.Status, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) GetLaunch(ctx context.Context, id string) (*model.Launch, error) {
	l, err := scanLaunch(s.pool.QueryRow(ctx,
		`SELECT `+launchColumns+` FROM launches WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get launch %s: %w", id, err)
	}
	return l, nil
}

func (s *PostgresStore) GetLaunchBySymbol(ctx context.Context, symbol string) (*model.Launch, error) {
	l, err := scanLaunch(s.pool.QueryRow(ctx,
		`SELECT `+launchColumns+` FROM launches WHERE symbol = $1`, symbol))
	if err != nil {
		return nil, fmt.Errorf("get launch by symbol %s: %w", symbol, err)
	}
	return l, nil
}

func (s *PostgresStore) ListLaunches(ctx context.Context) ([]model.Launch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+launchColumns+` FROM launches ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var launches []model.Launch
	for rows.Next() {
		l, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		launches = append(launches, *l)
	}
	return launches, rows.Err()
}

func (s *PostgresStore) UpdateLaunchState(ctx context.Context, id string, state LaunchState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE launches
		 SET units_sold = $2, native_reserve = $3,
		     total_volume = $4, trade_count = $5, status = $6
		 WHERE id = $1`,
		id, state.UnitsSold, state.NativeReserve,
		state.TotalVolume, state.TradeCount, state.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: launch %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) InsertTrade(ctx context.Context, t *model.TradeRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, launch_id, trader, side, units,
		        gross_native, fee_native, rate_usd, units_sold_end, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.LaunchID, t.Trader, t.Side, t.Units,
		t.GrossNative, t.FeeNative, t.RateUSD, t.UnitsSoldEnd, t.Timestamp,
	)
	return err
}

const tradeColumns = `id, launch_id, trader, side, units,
	gross_native, fee_native, rate_usd, units_sold_end, timestamp`

func (s *PostgresStore) GetTradesByLaunch(ctx context.Context, launchID string) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE launch_id = $1 ORDER BY timestamp`, launchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) GetTradesByTrader(ctx context.Context, trader string) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE trader = $1 ORDER BY timestamp`, trader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) GetTraderPositions(ctx context.Context, trader string) ([]model.PositionView, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT
			launch_id,
			COALESCE(SUM(CASE WHEN side = 'buy'  THEN units ELSE -units END), 0) AS units_held,
			COALESCE(SUM(CASE WHEN side = 'buy'  THEN gross_native ELSE 0 END), 0) AS invested,
			COALESCE(SUM(CASE WHEN side = 'sell' THEN gross_native - fee_native ELSE 0 END), 0) AS received,
			COALESCE(SUM(CASE WHEN side = 'buy'  THEN 1 ELSE 0 END), 0) AS buy_count,
			COALESCE(SUM(CASE WHEN side = 'sell' THEN 1 ELSE 0 END), 0) AS sell_count
		 FROM trades
		 WHERE trader = $1
		 GROUP BY launch_id
		 ORDER BY launch_id`, trader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.PositionView
	for rows.Next() {
		p := model.PositionView{Trader: trader}
		if err := rows.Scan(&p.LaunchID, &p.UnitsHeld, &p.NativeInvested,
			&p.NativeReceived, &p.BuyCount, &p.SellCount); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func scanTrades(rows pgx.Rows) ([]model.TradeRecord, error) {
	var trades []model.TradeRecord
	for rows.Next() {
		var t model.TradeRecord
		if err := rows.Scan(&t.ID, &t.LaunchID, &t.Trader, &t.Side, &t.Units,
			&t.GrossNative, &t.FeeNative, &t.RateUSD, &t.UnitsSoldEnd, &t.Timestamp); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
