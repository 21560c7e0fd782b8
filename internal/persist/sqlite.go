// Package persist stores engine snapshots in SQLite.
package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
)

// Store saves and loads whole simulation snapshots.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serialises
	// writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	for _, q := range schema {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS clock (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		now_unix_nanos INTEGER NOT NULL,
		step_nanos INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		seq INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		account_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		initial_units INTEGER NOT NULL,
		initial_nano INTEGER NOT NULL,
		status TEXT NOT NULL,
		opened_unix_nanos INTEGER NOT NULL,
		closed_unix_nanos INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS cash_balances (
		account_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		total_units INTEGER NOT NULL,
		total_nano INTEGER NOT NULL,
		blocked_units INTEGER NOT NULL,
		blocked_nano INTEGER NOT NULL,
		PRIMARY KEY (account_id, currency)
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		account_id TEXT NOT NULL,
		instrument_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		blocked INTEGER NOT NULL,
		avg_units INTEGER NOT NULL,
		avg_nano INTEGER NOT NULL,
		currency TEXT NOT NULL,
		PRIMARY KEY (account_id, instrument_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		account_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		instrument_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		kind TEXT NOT NULL,
		quantity_lots INTEGER NOT NULL,
		lot_size INTEGER NOT NULL,
		currency TEXT NOT NULL,
		state TEXT NOT NULL,
		created_unix_nanos INTEGER NOT NULL,
		limit_units INTEGER, limit_nano INTEGER,
		reference_units INTEGER NOT NULL, reference_nano INTEGER NOT NULL,
		initial_price_units INTEGER NOT NULL, initial_price_nano INTEGER NOT NULL,
		initial_commission_units INTEGER NOT NULL, initial_commission_nano INTEGER NOT NULL,
		total_units INTEGER NOT NULL, total_nano INTEGER NOT NULL,
		reserved_cash_units INTEGER NOT NULL, reserved_cash_nano INTEGER NOT NULL,
		reserved_quantity INTEGER NOT NULL,
		executed_unix_nanos INTEGER,
		execution_units INTEGER, execution_nano INTEGER,
		executed_commission_units INTEGER, executed_commission_nano INTEGER,
		cancelled_unix_nanos INTEGER,
		PRIMARY KEY (account_id, order_id)
	)`,
	`CREATE TABLE IF NOT EXISTS operations (
		position INTEGER PRIMARY KEY,
		operation_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		instrument_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		direction TEXT NOT NULL,
		state TEXT NOT NULL,
		payment_units INTEGER NOT NULL,
		payment_nano INTEGER NOT NULL,
		price_units INTEGER NOT NULL,
		price_nano INTEGER NOT NULL,
		currency TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		date_unix_nanos INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS instruments (
		instrument_id TEXT PRIMARY KEY,
		uid TEXT NOT NULL,
		ticker TEXT NOT NULL,
		class_code TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		lot_size INTEGER NOT NULL,
		currency TEXT NOT NULL,
		buy_available INTEGER NOT NULL,
		sell_available INTEGER NOT NULL,
		price_units INTEGER NOT NULL,
		price_nano INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS last_candles (
		instrument_id TEXT PRIMARY KEY,
		time_unix_nanos INTEGER NOT NULL,
		currency TEXT NOT NULL,
		open_units INTEGER NOT NULL, open_nano INTEGER NOT NULL,
		high_units INTEGER NOT NULL, high_nano INTEGER NOT NULL,
		low_units INTEGER NOT NULL, low_nano INTEGER NOT NULL,
		close_units INTEGER NOT NULL, close_nano INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feed_cursors (
		instrument_id TEXT PRIMARY KEY,
		consumed INTEGER NOT NULL
	)`,
}

var tables = []string{"clock", "accounts", "cash_balances", "positions", "orders", "operations", "instruments", "last_candles", "feed_cursors"}

// Save replaces the stored snapshot with snap in one transaction.
func (s *Store) Save(ctx context.Context, snap *engine.Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, t := range tables {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO clock (id, now_unix_nanos, step_nanos, ticks, seq) VALUES (1, ?, ?, ?, ?)`,
		snap.Clock.Now.UnixNano(), int64(snap.Clock.Step), snap.Clock.Ticks, int64(snap.Seq),
	); err != nil {
		return fmt.Errorf("save clock: %w", err)
	}

	for _, a := range snap.Accounts {
		if err = saveAccount(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, o := range snap.Orders {
		if err = saveOrder(ctx, tx, o); err != nil {
			return err
		}
	}
	for i, op := range snap.Operations {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO operations (position, operation_id, account_id, instrument_id, order_id, kind, direction, state,
				payment_units, payment_nano, price_units, price_nano, currency, quantity, date_unix_nanos)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i, op.OperationID, op.AccountID, op.InstrumentID, op.OrderID, string(op.Kind), string(op.Direction), string(op.State),
			op.Payment.Units, op.Payment.Nano, op.Price.Units, op.Price.Nano, op.Payment.Currency, op.Quantity, op.Date.UnixNano(),
		); err != nil {
			return fmt.Errorf("save operation %s: %w", op.OperationID, err)
		}
	}
	for _, inst := range snap.Instruments {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO instruments (instrument_id, uid, ticker, class_code, name, type, lot_size, currency,
				buy_available, sell_available, price_units, price_nano)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inst.InstrumentID, inst.UID, inst.Ticker, inst.ClassCode, inst.Name, string(inst.Type), inst.LotSize, inst.Currency,
			inst.BuyAvailable, inst.SellAvailable, inst.CurrentPrice.Units, inst.CurrentPrice.Nano,
		); err != nil {
			return fmt.Errorf("save instrument %s: %w", inst.InstrumentID, err)
		}
	}
	for _, c := range snap.LastCandles {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO last_candles (instrument_id, time_unix_nanos, currency, open_units, open_nano,
				high_units, high_nano, low_units, low_nano, close_units, close_nano)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.InstrumentID, c.Time.UnixNano(), c.Close.Currency, c.Open.Units, c.Open.Nano,
			c.High.Units, c.High.Nano, c.Low.Units, c.Low.Nano, c.Close.Units, c.Close.Nano,
		); err != nil {
			return fmt.Errorf("save candle %s: %w", c.InstrumentID, err)
		}
	}
	for id, n := range snap.FeedCursors {
		if _, err = tx.ExecContext(ctx, `INSERT INTO feed_cursors (instrument_id, consumed) VALUES (?, ?)`, id, n); err != nil {
			return fmt.Errorf("save cursor %s: %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func saveAccount(ctx context.Context, tx *sql.Tx, a *domain.Account) error {
	var closed sql.NullInt64
	if a.ClosedAt != nil {
		closed = sql.NullInt64{Int64: a.ClosedAt.UnixNano(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (account_id, name, currency, initial_units, initial_nano, status, opened_unix_nanos, closed_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AccountID, a.Name, a.Currency, a.InitialCapital.Units, a.InitialCapital.Nano, string(a.Status), a.OpenedAt.UnixNano(), closed,
	); err != nil {
		return fmt.Errorf("save account %s: %w", a.AccountID, err)
	}
	for _, cb := range a.Cash {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cash_balances (account_id, currency, total_units, total_nano, blocked_units, blocked_nano)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.AccountID, cb.Currency, cb.Total.Units, cb.Total.Nano, cb.Blocked.Units, cb.Blocked.Nano,
		); err != nil {
			return fmt.Errorf("save cash %s/%s: %w", a.AccountID, cb.Currency, err)
		}
	}
	for _, p := range a.Positions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO positions (account_id, instrument_id, quantity, blocked, avg_units, avg_nano, currency)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.AccountID, p.InstrumentID, p.Quantity, p.Blocked, p.AverageCost.Units, p.AverageCost.Nano, p.AverageCost.Currency,
		); err != nil {
			return fmt.Errorf("save position %s/%s: %w", a.AccountID, p.InstrumentID, err)
		}
	}
	return nil
}

func saveOrder(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	limitUnits, limitNano := nullMoney(o.LimitPrice)
	execUnits, execNano := nullMoney(o.ExecutionPrice)
	commUnits, commNano := nullMoney(o.ExecutedCommission)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orders (account_id, order_id, seq, instrument_id, direction, kind, quantity_lots, lot_size, currency, state,
			created_unix_nanos, limit_units, limit_nano, reference_units, reference_nano,
			initial_price_units, initial_price_nano, initial_commission_units, initial_commission_nano,
			total_units, total_nano, reserved_cash_units, reserved_cash_nano, reserved_quantity,
			executed_unix_nanos, execution_units, execution_nano, executed_commission_units, executed_commission_nano,
			cancelled_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.AccountID, o.OrderID, int64(o.Seq), o.InstrumentID, string(o.Direction), string(o.Kind), o.QuantityLots, o.LotSize, o.Currency, string(o.State),
		o.CreatedAt.UnixNano(), limitUnits, limitNano, o.ReferencePrice.Units, o.ReferencePrice.Nano,
		o.InitialOrderPrice.Units, o.InitialOrderPrice.Nano, o.InitialCommission.Units, o.InitialCommission.Nano,
		o.TotalOrderAmount.Units, o.TotalOrderAmount.Nano, o.ReservedCash.Units, o.ReservedCash.Nano, o.ReservedQuantity,
		nullTime(o.ExecutedAt), execUnits, execNano, commUnits, commNano,
		nullTime(o.CancelledAt),
	); err != nil {
		return fmt.Errorf("save order %s/%s: %w", o.AccountID, o.OrderID, err)
	}
	return nil
}

// Load returns the stored snapshot. ok is false when nothing was saved.
func (s *Store) Load(ctx context.Context) (snap *engine.Snapshot, ok bool, err error) {
	snap = &engine.Snapshot{FeedCursors: make(map[string]int)}

	var now, step, ticks, seq int64
	err = s.db.QueryRowContext(ctx, `SELECT now_unix_nanos, step_nanos, ticks, seq FROM clock WHERE id = 1`).
		Scan(&now, &step, &ticks, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load clock: %w", err)
	}
	snap.Clock = engine.Clock{Now: fromNanos(now), Step: time.Duration(step), Ticks: ticks}
	snap.Seq = uint64(seq)

	byID, err := s.loadAccounts(ctx, snap)
	if err != nil {
		return nil, false, err
	}
	if err := s.loadBalances(ctx, byID); err != nil {
		return nil, false, err
	}
	if err := s.loadOrders(ctx, snap); err != nil {
		return nil, false, err
	}
	if err := s.loadOperations(ctx, snap); err != nil {
		return nil, false, err
	}
	if err := s.loadMarket(ctx, snap); err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

func (s *Store) loadAccounts(ctx context.Context, snap *engine.Snapshot) (map[string]*domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, name, currency, initial_units, initial_nano, status, opened_unix_nanos, closed_unix_nanos
		FROM accounts ORDER BY opened_unix_nanos, account_id`)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*domain.Account)
	for rows.Next() {
		var (
			a             domain.Account
			units, opened int64
			nano          int32
			status        string
			closed        sql.NullInt64
		)
		if err := rows.Scan(&a.AccountID, &a.Name, &a.Currency, &units, &nano, &status, &opened, &closed); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.InitialCapital = domain.NewMoney(units, int64(nano), a.Currency)
		a.Status = domain.AccountStatus(status)
		a.OpenedAt = fromNanos(opened)
		if closed.Valid {
			t := fromNanos(closed.Int64)
			a.ClosedAt = &t
		}
		a.Cash = make(map[string]*domain.CashBalance)
		a.Positions = make(map[string]*domain.Position)
		snap.Accounts = append(snap.Accounts, &a)
		byID[a.AccountID] = &a
	}
	return byID, rows.Err()
}

func (s *Store) loadBalances(ctx context.Context, byID map[string]*domain.Account) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, currency, total_units, total_nano, blocked_units, blocked_nano FROM cash_balances`)
	if err != nil {
		return fmt.Errorf("load cash balances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			accountID, cur   string
			totalU, blockedU int64
			totalN, blockedN int32
		)
		if err := rows.Scan(&accountID, &cur, &totalU, &totalN, &blockedU, &blockedN); err != nil {
			return fmt.Errorf("scan cash balance: %w", err)
		}
		a, ok := byID[accountID]
		if !ok {
			return fmt.Errorf("cash balance for unknown account %s", accountID)
		}
		a.Cash[cur] = &domain.CashBalance{
			AccountID: accountID,
			Currency:  cur,
			Total:     domain.NewMoney(totalU, int64(totalN), cur),
			Blocked:   domain.NewMoney(blockedU, int64(blockedN), cur),
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT account_id, instrument_id, quantity, blocked, avg_units, avg_nano, currency FROM positions`)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p        domain.Position
			avgUnits int64
			avgNano  int32
			cur      string
		)
		if err := rows.Scan(&p.AccountID, &p.InstrumentID, &p.Quantity, &p.Blocked, &avgUnits, &avgNano, &cur); err != nil {
			return fmt.Errorf("scan position: %w", err)
		}
		a, ok := byID[p.AccountID]
		if !ok {
			return fmt.Errorf("position for unknown account %s", p.AccountID)
		}
		p.AverageCost = domain.NewMoney(avgUnits, int64(avgNano), cur)
		a.Positions[p.InstrumentID] = &p
	}
	return rows.Err()
}

func (s *Store) loadOrders(ctx context.Context, snap *engine.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, order_id, seq, instrument_id, direction, kind, quantity_lots, lot_size, currency, state,
			created_unix_nanos, limit_units, limit_nano, reference_units, reference_nano,
			initial_price_units, initial_price_nano, initial_commission_units, initial_commission_nano,
			total_units, total_nano, reserved_cash_units, reserved_cash_nano, reserved_quantity,
			executed_unix_nanos, execution_units, execution_nano, executed_commission_units, executed_commission_nano,
			cancelled_unix_nanos
		FROM orders ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o                                  domain.Order
			seq, created                       int64
			direction, kind, state             string
			limitU, limitN                     sql.NullInt64
			refU, initU, commU, totalU, resU   int64
			refN, initN, commN, totalN, resN   int32
			executed, cancelled                sql.NullInt64
			execU, execN, execCommU, execCommN sql.NullInt64
		)
		if err := rows.Scan(&o.AccountID, &o.OrderID, &seq, &o.InstrumentID, &direction, &kind, &o.QuantityLots, &o.LotSize, &o.Currency, &state,
			&created, &limitU, &limitN, &refU, &refN,
			&initU, &initN, &commU, &commN,
			&totalU, &totalN, &resU, &resN, &o.ReservedQuantity,
			&executed, &execU, &execN, &execCommU, &execCommN,
			&cancelled,
		); err != nil {
			return fmt.Errorf("scan order: %w", err)
		}
		cur := o.Currency
		o.Seq = uint64(seq)
		o.Direction = domain.Direction(direction)
		o.Kind = domain.OrderKind(kind)
		o.State = domain.OrderState(state)
		o.CreatedAt = fromNanos(created)
		o.LimitPrice = moneyPtr(limitU, limitN, cur)
		o.ReferencePrice = domain.NewMoney(refU, int64(refN), cur)
		o.InitialOrderPrice = domain.NewMoney(initU, int64(initN), cur)
		o.InitialCommission = domain.NewMoney(commU, int64(commN), cur)
		o.TotalOrderAmount = domain.NewMoney(totalU, int64(totalN), cur)
		o.ReservedCash = domain.NewMoney(resU, int64(resN), cur)
		o.ExecutedAt = timePtr(executed)
		o.ExecutionPrice = moneyPtr(execU, execN, cur)
		o.ExecutedCommission = moneyPtr(execCommU, execCommN, cur)
		o.CancelledAt = timePtr(cancelled)
		snap.Orders = append(snap.Orders, &o)
	}
	return rows.Err()
}

func (s *Store) loadOperations(ctx context.Context, snap *engine.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT operation_id, account_id, instrument_id, order_id, kind, direction, state,
			payment_units, payment_nano, price_units, price_nano, currency, quantity, date_unix_nanos
		FROM operations ORDER BY position`)
	if err != nil {
		return fmt.Errorf("load operations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			op                     domain.Operation
			kind, direction, state string
			payU, priceU, date     int64
			payN, priceN           int32
			cur                    string
		)
		if err := rows.Scan(&op.OperationID, &op.AccountID, &op.InstrumentID, &op.OrderID, &kind, &direction, &state,
			&payU, &payN, &priceU, &priceN, &cur, &op.Quantity, &date); err != nil {
			return fmt.Errorf("scan operation: %w", err)
		}
		op.Kind = domain.OperationKind(kind)
		op.Direction = domain.Direction(direction)
		op.State = domain.OperationState(state)
		op.Payment = domain.NewMoney(payU, int64(payN), cur)
		op.Price = domain.NewMoney(priceU, int64(priceN), cur)
		op.Date = fromNanos(date)
		snap.Operations = append(snap.Operations, &op)
	}
	return rows.Err()
}

func (s *Store) loadMarket(ctx context.Context, snap *engine.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT instrument_id, uid, ticker, class_code, name, type, lot_size, currency,
			buy_available, sell_available, price_units, price_nano
		FROM instruments ORDER BY instrument_id`)
	if err != nil {
		return fmt.Errorf("load instruments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			inst   domain.Instrument
			typ    string
			priceU int64
			priceN int32
		)
		if err := rows.Scan(&inst.InstrumentID, &inst.UID, &inst.Ticker, &inst.ClassCode, &inst.Name, &typ, &inst.LotSize, &inst.Currency,
			&inst.BuyAvailable, &inst.SellAvailable, &priceU, &priceN); err != nil {
			return fmt.Errorf("scan instrument: %w", err)
		}
		inst.Type = domain.InstrumentType(typ)
		inst.CurrentPrice = domain.NewMoney(priceU, int64(priceN), inst.Currency)
		snap.Instruments = append(snap.Instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT instrument_id, time_unix_nanos, currency, open_units, open_nano, high_units, high_nano,
			low_units, low_nano, close_units, close_nano
		FROM last_candles ORDER BY instrument_id`)
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c                          domain.Candle
			at                         int64
			cur                        string
			openU, highU, lowU, closeU int64
			openN, highN, lowN, closeN int32
		)
		if err := rows.Scan(&c.InstrumentID, &at, &cur, &openU, &openN, &highU, &highN, &lowU, &lowN, &closeU, &closeN); err != nil {
			return fmt.Errorf("scan candle: %w", err)
		}
		c.Time = fromNanos(at)
		c.Open = domain.NewMoney(openU, int64(openN), cur)
		c.High = domain.NewMoney(highU, int64(highN), cur)
		c.Low = domain.NewMoney(lowU, int64(lowN), cur)
		c.Close = domain.NewMoney(closeU, int64(closeN), cur)
		snap.LastCandles = append(snap.LastCandles, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT instrument_id, consumed FROM feed_cursors`)
	if err != nil {
		return fmt.Errorf("load cursors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return fmt.Errorf("scan cursor: %w", err)
		}
		snap.FeedCursors[id] = n
	}
	return rows.Err()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullMoney(m *domain.Money) (sql.NullInt64, sql.NullInt64) {
	if m == nil {
		return sql.NullInt64{}, sql.NullInt64{}
	}
	return sql.NullInt64{Int64: m.Units, Valid: true}, sql.NullInt64{Int64: int64(m.Nano), Valid: true}
}

func moneyPtr(units, nano sql.NullInt64, currency string) *domain.Money {
	if !units.Valid {
		return nil
	}
	m := domain.NewMoney(units.Int64, nano.Int64, currency)
	return &m
}
