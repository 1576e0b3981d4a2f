package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tathienbao/pair-trader/internal/trading"
	"github.com/tathienbao/pair-trader/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens the database at path and migrates it.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}

	if err := repo.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return repo, nil
}

// Migrate runs database migrations.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS trading_sessions (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			venue_name TEXT NOT NULL DEFAULT '',
			time_opened DATETIME NOT NULL,
			time_closed DATETIME,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_time_closed ON trading_sessions(time_closed)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES trading_sessions(id),
			symbol TEXT NOT NULL,
			side INTEGER NOT NULL,
			type INTEGER NOT NULL,
			price TEXT,
			quantity TEXT NOT NULL,
			quantity_filled TEXT,
			status INTEGER NOT NULL,
			venue_order_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			time_placed DATETIME,
			time_closed DATETIME,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_session_id ON orders(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,

		`CREATE TABLE IF NOT EXISTS buy_sell_pairs (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES trading_sessions(id),
			opening_order_id TEXT NOT NULL UNIQUE REFERENCES orders(id),
			closing_order_id TEXT UNIQUE REFERENCES orders(id),
			created_at DATETIME NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pairs_session_id ON buy_sell_pairs(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// CreateSession inserts a new session.
func (r *SQLiteRepository) CreateSession(ctx context.Context, s *trading.Session) error {
	query := `INSERT INTO trading_sessions (id, symbol, venue_name, time_opened, time_closed)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, s.ID, s.Symbol, s.VenueName, s.TimeOpened, nullTime(s.TimeClosed))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSession writes the venue binding and close time. Closed sessions and
// venue rebinding are refused.
func (r *SQLiteRepository) UpdateSession(ctx context.Context, s *trading.Session) error {
	query := `UPDATE trading_sessions SET venue_name = ?, time_closed = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND time_closed IS NULL AND (venue_name = '' OR venue_name = ?)`

	res, err := r.db.ExecContext(ctx, query, s.VenueName, nullTime(s.TimeClosed), s.ID, s.VenueName)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	stored, err := r.GetSession(ctx, s.ID)
	if err != nil {
		return err
	}
	if !stored.IsOpen() {
		return types.ErrSessionClosed
	}
	return types.ErrVenueAlreadyBound
}

// GetSession returns the session with id. The venue handle is not restored.
func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*trading.Session, error) {
	query := `SELECT id, symbol, venue_name, time_opened, time_closed FROM trading_sessions WHERE id = ?`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return s, nil
}

// ListSessions returns sessions, newest first.
func (r *SQLiteRepository) ListSessions(ctx context.Context, openOnly bool) ([]*trading.Session, error) {
	query := `SELECT id, symbol, venue_name, time_opened, time_closed FROM trading_sessions`
	if openOnly {
		query += ` WHERE time_closed IS NULL`
	}
	query += ` ORDER BY time_opened DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*trading.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CreateOrder inserts a new order.
func (r *SQLiteRepository) CreateOrder(ctx context.Context, o *trading.Order) error {
	query := `INSERT INTO orders
		(id, session_id, symbol, side, type, price, quantity, quantity_filled, status, venue_order_id, created_at, time_placed, time_closed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		o.ID,
		o.SessionID,
		o.Symbol,
		o.Side,
		o.Type,
		o.Price,
		o.Quantity.String(),
		o.QuantityFilled,
		o.Status,
		o.VenueOrderID,
		o.CreatedAt,
		nullTime(o.TimePlaced),
		nullTime(o.TimeClosed),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// UpdateOrder writes the mutable order fields. An order already closed in
// storage is refused with types.ErrOrderClosed.
func (r *SQLiteRepository) UpdateOrder(ctx context.Context, o *trading.Order) error {
	query := `UPDATE orders SET price = ?, quantity = ?, quantity_filled = ?, status = ?, venue_order_id = ?,
		time_placed = ?, time_closed = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status NOT IN (?, ?, ?)`

	args := []any{
		o.Price,
		o.Quantity.String(),
		o.QuantityFilled,
		o.Status,
		o.VenueOrderID,
		nullTime(o.TimePlaced),
		nullTime(o.TimeClosed),
		o.ID,
	}
	for _, s := range types.TerminalStates() {
		args = append(args, s)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	if _, err := r.GetOrder(ctx, o.ID); err != nil {
		return err
	}
	return types.ErrOrderClosed
}

const orderColumns = `id, session_id, symbol, side, type, price, quantity, quantity_filled, status,
	venue_order_id, created_at, time_placed, time_closed`

// GetOrder returns the order with id.
func (r *SQLiteRepository) GetOrder(ctx context.Context, id string) (*trading.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

// ListOrders returns a session's orders in creation order.
func (r *SQLiteRepository) ListOrders(ctx context.Context, sessionID string) ([]*trading.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE session_id = ? ORDER BY created_at, rowid`
	return r.queryOrders(ctx, query, sessionID)
}

// ListOpenOrders returns every order not yet in a terminal state, across sessions.
func (r *SQLiteRepository) ListOpenOrders(ctx context.Context) ([]*trading.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status NOT IN (?, ?, ?) ORDER BY created_at, rowid`

	var args []any
	for _, s := range types.TerminalStates() {
		args = append(args, s)
	}
	return r.queryOrders(ctx, query, args...)
}

func (r *SQLiteRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*trading.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []*trading.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CreatePair inserts a new pair.
func (r *SQLiteRepository) CreatePair(ctx context.Context, p *trading.Pair) error {
	query := `INSERT INTO buy_sell_pairs (id, session_id, opening_order_id, closing_order_id, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, p.ID, p.SessionID, p.Opening.ID, closingID(p), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pair: %w", err)
	}
	return nil
}

// UpdatePair writes the closing order. A closing order, once stored, cannot be replaced.
func (r *SQLiteRepository) UpdatePair(ctx context.Context, p *trading.Pair) error {
	query := `UPDATE buy_sell_pairs SET closing_order_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND (closing_order_id IS NULL OR closing_order_id = ?)`

	closing := closingID(p)
	res, err := r.db.ExecContext(ctx, query, closing, p.ID, closing)
	if err != nil {
		return fmt.Errorf("update pair: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	var id string
	err = r.db.QueryRowContext(ctx, `SELECT id FROM buy_sell_pairs WHERE id = ?`, p.ID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("pair %s: %w", p.ID, types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query pair: %w", err)
	}
	return types.ErrCloserAlreadySet
}

// ListPairs returns a session's pairs with their orders loaded.
func (r *SQLiteRepository) ListPairs(ctx context.Context, sessionID string) ([]*trading.Pair, error) {
	orders, err := r.ListOrders(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*trading.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	query := `SELECT id, session_id, opening_order_id, closing_order_id, created_at
		FROM buy_sell_pairs WHERE session_id = ? ORDER BY created_at, rowid`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pairs []*trading.Pair
	for rows.Next() {
		var p trading.Pair
		var openingID string
		var closing sql.NullString

		if err := rows.Scan(&p.ID, &p.SessionID, &openingID, &closing, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		p.Opening = byID[openingID]
		if p.Opening == nil {
			return nil, fmt.Errorf("pair %s opening order %s: %w", p.ID, openingID, types.ErrNotFound)
		}
		if closing.Valid {
			p.Closing = byID[closing.String]
			if p.Closing == nil {
				return nil, fmt.Errorf("pair %s closing order %s: %w", p.ID, closing.String, types.ErrNotFound)
			}
		}
		pairs = append(pairs, &p)
	}
	return pairs, rows.Err()
}

// GetSessionStats counts a session's orders and pair outcomes.
func (r *SQLiteRepository) GetSessionStats(ctx context.Context, sessionID string) (SessionStats, error) {
	var stats SessionStats

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE session_id = ?`, sessionID).Scan(&stats.Orders)
	if err != nil {
		return stats, fmt.Errorf("count orders: %w", err)
	}

	pairs, err := r.ListPairs(ctx, sessionID)
	if err != nil {
		return stats, err
	}
	stats.Pairs = len(pairs)
	for _, p := range pairs {
		if !p.IsClosed() {
			continue
		}
		stats.ClosedPairs++
		profit, err := p.Profit()
		if err != nil {
			continue
		}
		switch {
		case profit.IsPositive():
			stats.Wins++
		case profit.IsNegative():
			stats.Losses++
		}
	}
	return stats, nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*trading.Session, error) {
	var s trading.Session
	var closed sql.NullTime

	if err := row.Scan(&s.ID, &s.Symbol, &s.VenueName, &s.TimeOpened, &closed); err != nil {
		return nil, err
	}
	s.TimeClosed = timePtr(closed)
	return &s, nil
}

func scanOrder(row scanner) (*trading.Order, error) {
	var o trading.Order
	var placed, closed sql.NullTime

	err := row.Scan(
		&o.ID,
		&o.SessionID,
		&o.Symbol,
		&o.Side,
		&o.Type,
		&o.Price,
		&o.Quantity,
		&o.QuantityFilled,
		&o.Status,
		&o.VenueOrderID,
		&o.CreatedAt,
		&placed,
		&closed,
	)
	if err != nil {
		return nil, err
	}
	o.TimePlaced = timePtr(placed)
	o.TimeClosed = timePtr(closed)
	return &o, nil
}

func closingID(p *trading.Pair) any {
	if p.Closing == nil {
		return nil
	}
	return p.Closing.ID
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
