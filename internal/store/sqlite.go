package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/efreitasn/commandledger/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS commands (
	command_id        TEXT PRIMARY KEY,
	name_product      TEXT    NOT NULL,
	is_sell           INTEGER NOT NULL,
	amount_product    TEXT    NOT NULL,
	price_per_product TEXT    NOT NULL,
	quality           TEXT,
	owner_id          TEXT    NOT NULL,
	status            TEXT    NOT NULL,
	deposit           TEXT    NOT NULL,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_commands_owner ON commands (owner_id, command_id);
CREATE TABLE IF NOT EXISTS ledger_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const commandColumns = `command_id, name_product, is_sell, amount_product, price_per_product,
	quality, owner_id, status, deposit, created_at, updated_at`

// qualityRow is the JSON column encoding of domain.Quality.
type qualityRow struct {
	Certificate []domain.AccountID `json:"certificate"`
	Stage       []domain.AccountID `json:"stage"`
}

// SQLiteCommandStore is a command repository backed by SQLite. It
// keeps the same semantics as CommandStore: ids are never reused and
// the quality column distinguishes NULL from an empty quality.
type SQLiteCommandStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteCommandStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteCommandStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteCommandStore) Close() error {
	return s.db.Close()
}

// Create inserts c. It returns domain.ErrDuplicateID if the id exists.
func (s *SQLiteCommandStore) Create(ctx context.Context, c *domain.Command) error {
	quality, err := encodeQuality(c.Quality)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO commands (`+commandColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (command_id) DO NOTHING`,
		c.CommandID, c.NameProduct, boolToInt(c.IsSell),
		c.AmountProduct.String(), c.PricePerProduct.String(),
		quality, string(c.OwnerID), string(c.Status), c.Deposit.String(),
		c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	if n == 0 {
		return domain.ErrDuplicateID
	}
	return nil
}

// Get returns the command with the given ID, or domain.ErrNotFound.
func (s *SQLiteCommandStore) Get(ctx context.Context, id string) (*domain.Command, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+commandColumns+` FROM commands WHERE command_id = ?`, id)
	c, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Update rewrites the mutable columns of an existing command.
func (s *SQLiteCommandStore) Update(ctx context.Context, c *domain.Command) error {
	quality, err := encodeQuality(c.Quality)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE commands SET quality = ?, status = ?, deposit = ?, updated_at = ?
		 WHERE command_id = ?`,
		quality, string(c.Status), c.Deposit.String(), c.UpdatedAt.UnixNano(), c.CommandID,
	)
	if err != nil {
		return fmt.Errorf("update command: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update command: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns the page of commands matching f ordered by command_id,
// and the total count of matches before pagination.
func (s *SQLiteCommandStore) List(ctx context.Context, f ListFilter) ([]*domain.Command, int, error) {
	side := -1
	switch f.Side {
	case domain.SideBuy:
		side = 0
	case domain.SideSell:
		side = 1
	}
	where := `WHERE (? = '' OR owner_id = ?) AND (? = -1 OR is_sell = ?)`
	args := []any{string(f.OwnerID), string(f.OwnerID), side, side}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commands `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count commands: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+commandColumns+` FROM commands `+where+` ORDER BY command_id LIMIT ? OFFSET ?`,
		append(args, f.Limit, (f.Page-1)*f.Limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	page := make([]*domain.Command, 0)
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, 0, err
		}
		page = append(page, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list commands: %w", err)
	}
	return page, total, nil
}

// Owner returns the ledger owner and whether it has been set.
func (s *SQLiteCommandStore) Owner(ctx context.Context) (domain.AccountID, bool, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = 'owner_id'`).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load owner: %w", err)
	}
	return domain.AccountID(owner), true, nil
}

// SetOwner records the ledger owner once.
func (s *SQLiteCommandStore) SetOwner(ctx context.Context, owner domain.AccountID) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_meta (key, value) VALUES ('owner_id', ?) ON CONFLICT (key) DO NOTHING`,
		string(owner))
	if err != nil {
		return fmt.Errorf("save owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save owner: %w", err)
	}
	if n == 0 {
		return domain.ErrAlreadyInitialized
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(r rowScanner) (*domain.Command, error) {
	var (
		c                      domain.Command
		isSell                 int
		amount, price, deposit string
		quality                sql.NullString
		owner, status          string
		createdAt, updatedAt   int64
	)
	if err := r.Scan(&c.CommandID, &c.NameProduct, &isSell, &amount, &price,
		&quality, &owner, &status, &deposit, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if c.AmountProduct, err = domain.ParseU128(amount); err != nil {
		return nil, fmt.Errorf("decode amount_product of %s: %w", c.CommandID, err)
	}
	if c.PricePerProduct, err = domain.ParseU128(price); err != nil {
		return nil, fmt.Errorf("decode price_per_product of %s: %w", c.CommandID, err)
	}
	if c.Deposit, err = domain.ParseU128(deposit); err != nil {
		return nil, fmt.Errorf("decode deposit of %s: %w", c.CommandID, err)
	}
	if quality.Valid {
		var q qualityRow
		if err := json.Unmarshal([]byte(quality.String), &q); err != nil {
			return nil, fmt.Errorf("decode quality of %s: %w", c.CommandID, err)
		}
		c.Quality = (&domain.Quality{Certificate: q.Certificate, Stage: q.Stage}).Clone()
	}

	c.IsSell = isSell != 0
	c.OwnerID = domain.AccountID(owner)
	c.Status = domain.CommandStatus(status)
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	c.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &c, nil
}

func encodeQuality(q *domain.Quality) (sql.NullString, error) {
	if q == nil {
		return sql.NullString{}, nil
	}
	cp := q.Clone()
	b, err := json.Marshal(qualityRow{Certificate: cp.Certificate, Stage: cp.Stage})
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode quality: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
