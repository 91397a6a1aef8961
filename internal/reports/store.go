package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/multibroker/oms/internal/model"
)

const _schema = `
CREATE TABLE IF NOT EXISTS position_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	taken_at    TIMESTAMPTZ NOT NULL,
	client_id   TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	exchange    TEXT NOT NULL,
	product     TEXT NOT NULL,
	quantity    INTEGER NOT NULL,
	net_amount  DOUBLE PRECISION NOT NULL,
	ltp         DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS pending_snapshots (
	id            BIGSERIAL PRIMARY KEY,
	taken_at      TIMESTAMPTZ NOT NULL,
	client_id     TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	side          TEXT NOT NULL,
	order_type    TEXT NOT NULL,
	status        TEXT NOT NULL,
	quantity      INTEGER NOT NULL,
	price         DOUBLE PRECISION NOT NULL,
	trigger_price DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS mtm_snapshots (
	id        BIGSERIAL PRIMARY KEY,
	taken_at  TIMESTAMPTZ NOT NULL,
	client_id TEXT NOT NULL,
	mtm       DOUBLE PRECISION NOT NULL,
	max_mtm   DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS report_rows (
	id          BIGSERIAL PRIMARY KEY,
	taken_at    TIMESTAMPTZ NOT NULL,
	symbol      TEXT NOT NULL,
	quantity    INTEGER NOT NULL,
	bep         DOUBLE PRECISION NOT NULL,
	ltp         DOUBLE PRECISION NOT NULL,
	limit_price DOUBLE PRECISION NOT NULL,
	stop_price  DOUBLE PRECISION NOT NULL
);`

const (
	_insertPosition = `INSERT INTO position_snapshots
		(taken_at, client_id, symbol, exchange, product, quantity, net_amount, ltp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_insertPending = `INSERT INTO pending_snapshots
		(taken_at, client_id, symbol, side, order_type, status, quantity, price, trigger_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_insertMTM = `INSERT INTO mtm_snapshots (taken_at, client_id, mtm, max_mtm)
		VALUES ($1, $2, $3, $4)`
	_insertReportRow = `INSERT INTO report_rows
		(taken_at, symbol, quantity, bep, ltp, limit_price, stop_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// Store persists per-cycle snapshots of positions, pending orders and
// mark-to-market, plus the per-symbol summary built from them.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, _schema); err != nil {
		return fmt.Errorf("%w: can't create report tables", err)
	}
	return nil
}

func (s *Store) SavePositions(ctx context.Context, takenAt time.Time, clientID string, positions []model.Position) error {
	for _, p := range positions {
		if _, err := s.db.ExecContext(ctx, _insertPosition,
			takenAt, clientID, p.Symbol, p.Exchange, p.Product, p.Quantity, p.NetAmount, p.LTP); err != nil {
			return fmt.Errorf("%w: can't save position snapshot", err)
		}
	}
	return nil
}

func (s *Store) SavePending(ctx context.Context, takenAt time.Time, clientID string, orders []model.PendingOrder) error {
	for _, o := range orders {
		if _, err := s.db.ExecContext(ctx, _insertPending,
			takenAt, clientID, o.Symbol, o.Side, o.OrderType, o.Status, o.Quantity, o.Price, o.TriggerPrice); err != nil {
			return fmt.Errorf("%w: can't save pending snapshot", err)
		}
	}
	return nil
}

func (s *Store) SaveMTM(ctx context.Context, takenAt time.Time, entries []model.MTMEntry) error {
	for _, e := range entries {
		if _, err := s.db.ExecContext(ctx, _insertMTM, takenAt, e.ClientID, e.MTM, e.MaxMTM); err != nil {
			return fmt.Errorf("%w: can't save mtm snapshot", err)
		}
	}
	return nil
}

func (s *Store) SaveReport(ctx context.Context, takenAt time.Time, rows []ReportRow) error {
	for _, r := range rows {
		if _, err := s.db.ExecContext(ctx, _insertReportRow,
			takenAt, r.Symbol, r.Quantity, r.BEP, r.LTP, r.LimitPrice, r.StopPrice); err != nil {
			return fmt.Errorf("%w: can't save report row", err)
		}
	}
	return nil
}
