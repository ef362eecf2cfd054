// File path: internal/sqlite/store.go
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS requests (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    number           TEXT NOT NULL DEFAULT '',
    capability       TEXT NOT NULL DEFAULT '',
    company          TEXT NOT NULL DEFAULT '',
    description      TEXT NOT NULL DEFAULT '',
    initiative_title TEXT NOT NULL DEFAULT '',
    primary_category TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// RequestRecord is one persisted user-request row. Free-text requests
// captured at query time carry only a description; the remaining fields
// stay empty.
type RequestRecord struct {
	ID              int64     `db:"id"`
	Number          string    `db:"number"`
	Capability      string    `db:"capability"`
	Company         string    `db:"company"`
	Description     string    `db:"description"`
	InitiativeTitle string    `db:"initiative_title"`
	PrimaryCategory string    `db:"primary_category"`
	CreatedAt       time.Time `db:"created_at"`
}

// Store wraps a pooled sqlx.DB connection to the request log database.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store backed by the SQLite database at the provided
// path. The schema is migrated on first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
// Zero-valued tuning fields fall back to the standard defaults.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path required")
	}
	cfg.applyDefaults()
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CountRequests returns the number of stored requests.
func (s *Store) CountRequests(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM requests`); err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return count, nil
}

// AllRequests returns every stored request in insertion order. Insertion
// order is the corpus order: row i of the request index was produced from
// record i of this scan.
func (s *Store) AllRequests(ctx context.Context) ([]RequestRecord, error) {
	var records []RequestRecord
	query := `SELECT id, number, capability, company, description, initiative_title, primary_category, created_at
	          FROM requests ORDER BY id`
	if err := s.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("scan requests: %w", err)
	}
	return records, nil
}

// InsertRequest appends one request and returns its assigned id.
func (s *Store) InsertRequest(ctx context.Context, rec RequestRecord) (int64, error) {
	query := `INSERT INTO requests (number, capability, company, description, initiative_title, primary_category)
	          VALUES (:number, :capability, :company, :description, :initiative_title, :primary_category)`
	res, err := s.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		return 0, fmt.Errorf("insert request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert request id: %w", err)
	}
	return id, nil
}

// ImportRequests bulk-inserts seed records inside one transaction. Used to
// migrate a CSV request log into the store on first run.
func (s *Store) ImportRequests(ctx context.Context, records []RequestRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	query := `INSERT INTO requests (number, capability, company, description, initiative_title, primary_category)
	          VALUES (:number, :capability, :company, :description, :initiative_title, :primary_category)`
	for _, rec := range records {
		if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
			tx.Rollback()
			return fmt.Errorf("import request: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}
