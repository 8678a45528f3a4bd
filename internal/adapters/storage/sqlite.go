package storage

// sqlite.go — snapshot del estado en SQLite.
//
// Estrategia:
//   - `wallet`: una sola fila (id = 1) con el balance.
//   - `positions` / `closed_positions`: una fila por posición, en orden de inserción (seq).
//   - `event_locks`: contador por evento.
//   - Save reescribe todo dentro de una transacción: no hay estado intermedio visible.
//   - Los importes se guardan como TEXT decimal para no perder precisión.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS wallet (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    balance    TEXT     NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    seq         INTEGER PRIMARY KEY,
    id          TEXT    NOT NULL UNIQUE,
    event_id    TEXT    NOT NULL,
    market_id   TEXT    NOT NULL,
    slug        TEXT    NOT NULL,
    side        TEXT    NOT NULL,
    entry_prob  REAL    NOT NULL,
    entry_price TEXT    NOT NULL,
    size        TEXT    NOT NULL,
    cost        TEXT    NOT NULL,
    token_id    TEXT    NOT NULL,
    opened_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS closed_positions (
    seq         INTEGER PRIMARY KEY,
    id          TEXT    NOT NULL UNIQUE,
    event_id    TEXT    NOT NULL,
    market_id   TEXT    NOT NULL,
    slug        TEXT    NOT NULL,
    side        TEXT    NOT NULL,
    entry_prob  REAL    NOT NULL,
    entry_price TEXT    NOT NULL,
    size        TEXT    NOT NULL,
    cost        TEXT    NOT NULL,
    token_id    TEXT    NOT NULL,
    opened_at   DATETIME NOT NULL,
    resolution  TEXT    NOT NULL,
    payout      TEXT    NOT NULL,
    pnl         TEXT    NOT NULL,
    closed_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS event_locks (
    event_id TEXT PRIMARY KEY,
    count    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_closed_at ON closed_positions(closed_at DESC);
`

const positionCols = `id, event_id, market_id, slug, side, entry_prob, entry_price, size, cost, token_id, opened_at`

// SQLiteStore implementa ports.StateStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load restaura el snapshot. Sin fila en wallet devuelve domain.ErrNoState.
func (s *SQLiteStore) Load(ctx context.Context) (*domain.State, error) {
	var balanceStr string
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM wallet WHERE id = 1`).Scan(&balanceStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("storage.Load: wallet: %w", err)
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("storage.Load: wallet balance %q: %w", balanceStr, err)
	}
	state := domain.NewState(balance)

	if state.Positions, err = s.loadPositions(ctx); err != nil {
		return nil, err
	}
	if state.Closed, err = s.loadClosed(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT event_id, count FROM event_locks`)
	if err != nil {
		return nil, fmt.Errorf("storage.Load: event locks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("storage.Load: scan lock: %w", err)
		}
		state.Locks[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.Load: event locks: %w", err)
	}

	state.Normalize()
	return state, nil
}

// Save reescribe el snapshot completo en una transacción.
func (s *SQLiteStore) Save(ctx context.Context, state *domain.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.Save: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"positions", "closed_positions", "event_locks"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("storage.Save: clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallet (id, balance, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at
	`, state.Balance.String(), time.Now().UTC()); err != nil {
		return fmt.Errorf("storage.Save: wallet: %w", err)
	}

	openStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO positions (`+positionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.Save: prepare positions: %w", err)
	}
	defer openStmt.Close()
	for _, p := range state.Positions {
		if _, err := openStmt.ExecContext(ctx, positionArgs(p)...); err != nil {
			return fmt.Errorf("storage.Save: insert position %s: %w", p.ID, err)
		}
	}

	closedStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO closed_positions (`+positionCols+`, resolution, payout, pnl, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.Save: prepare closed: %w", err)
	}
	defer closedStmt.Close()
	for _, c := range state.Closed {
		args := append(positionArgs(c.Position),
			string(c.Resolution), c.Payout.String(), c.PnL.String(), c.ClosedAt.UTC())
		if _, err := closedStmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("storage.Save: insert closed %s: %w", c.ID, err)
		}
	}

	for id, n := range state.Locks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_locks (event_id, count) VALUES (?, ?)`, id, n); err != nil {
			return fmt.Errorf("storage.Save: insert lock %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.Save: commit: %w", err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func positionArgs(p domain.Position) []any {
	return []any{
		p.ID, p.EventID, p.MarketID, p.Slug, string(p.Side), p.EntryProb,
		p.EntryPrice.String(), p.Size.String(), p.Cost.String(), p.TokenID, p.OpenedAt.UTC(),
	}
}

// rowScanner es lo común entre *sql.Row y *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPosition lee las columnas de positionCols seguidas de extra.
func scanPosition(r rowScanner, extra ...any) (domain.Position, error) {
	var p domain.Position
	var side, entry, size, cost string
	dest := append([]any{
		&p.ID, &p.EventID, &p.MarketID, &p.Slug, &side, &p.EntryProb,
		&entry, &size, &cost, &p.TokenID, &p.OpenedAt,
	}, extra...)
	if err := r.Scan(dest...); err != nil {
		return p, err
	}
	p.Side = domain.Side(side)

	var err error
	if p.EntryPrice, err = decimal.NewFromString(entry); err != nil {
		return p, fmt.Errorf("entry_price %q: %w", entry, err)
	}
	if p.Size, err = decimal.NewFromString(size); err != nil {
		return p, fmt.Errorf("size %q: %w", size, err)
	}
	if p.Cost, err = decimal.NewFromString(cost); err != nil {
		return p, fmt.Errorf("cost %q: %w", cost, err)
	}
	return p, nil
}

func (s *SQLiteStore) loadPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+positionCols+` FROM positions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("storage.Load: positions: %w", err)
	}
	defer rows.Close()

	positions := []domain.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.Load: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) loadClosed(ctx context.Context) ([]domain.ClosedPosition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+positionCols+`, resolution, payout, pnl, closed_at FROM closed_positions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("storage.Load: closed positions: %w", err)
	}
	defer rows.Close()

	closed := []domain.ClosedPosition{}
	for rows.Next() {
		var res, payout, pnl string
		var closedAt time.Time
		p, err := scanPosition(rows, &res, &payout, &pnl, &closedAt)
		if err != nil {
			return nil, fmt.Errorf("storage.Load: scan closed position: %w", err)
		}
		c := domain.ClosedPosition{Position: p, Resolution: domain.Resolution(res), ClosedAt: closedAt}
		if c.Payout, err = decimal.NewFromString(payout); err != nil {
			return nil, fmt.Errorf("storage.Load: payout %q: %w", payout, err)
		}
		if c.PnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("storage.Load: pnl %q: %w", pnl, err)
		}
		closed = append(closed, c)
	}
	return closed, rows.Err()
}
