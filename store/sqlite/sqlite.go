/*
Package sqlite provides the SQLite-backed app-side store.

PURPOSE:
  The entitlement ledger itself lives in the host platform's metadata -
  this store only holds what the app owns:

  app_config        operator configuration (minQty, discountPercent,
                    windowDays), one row per key
  processed_events  event IDs already handled, for at-least-once
                    deduplication
  warnings          engine warnings persisted for operator visibility

INTERFACES IMPLEMENTED:
  processor.ConfigStore:  AppConfig
  processor.EventLog:     MarkProcessed
  processor.WarningSink:  RecordWarnings

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time, better crash
  recovery.

USAGE:
  store, err := sqlite.New("./data/bulk.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/entitlement-engine/engine"
)

// Store implements the app-side persistence interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Operator configuration, one row per key
	CREATE TABLE IF NOT EXISTS app_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Event IDs already handled (at-least-once deduplication)
	CREATE TABLE IF NOT EXISTS processed_events (
		event_id TEXT PRIMARY KEY,
		processed_at TEXT NOT NULL
	);

	-- Engine warnings, persisted for operator visibility
	CREATE TABLE IF NOT EXISTS warnings (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		line_id TEXT,
		product_id TEXT,
		code TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_warnings_order
		ON warnings(order_id);
	CREATE INDEX IF NOT EXISTS idx_warnings_created
		ON warnings(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// APP CONFIG
// =============================================================================

const (
	configKeyMinQty          = "minQty"
	configKeyDiscountPercent = "discountPercent"
	configKeyWindowDays      = "windowDays"
)

// AppConfig loads the operator configuration, falling back to defaults
// for keys the operator has not saved yet.
func (s *Store) AppConfig(ctx context.Context) (engine.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := engine.DefaultConfig()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_config`)
	if err != nil {
		return cfg, fmt.Errorf("load app config: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return cfg, fmt.Errorf("scan app config: %w", err)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue // unparseable stored value, keep the default
		}
		switch key {
		case configKeyMinQty:
			cfg.MinQty = n
		case configKeyDiscountPercent:
			cfg.DiscountPercent = n
		case configKeyWindowDays:
			cfg.WindowDays = n
		}
	}
	return cfg, rows.Err()
}

// SetAppConfig persists the operator configuration.
func (s *Store) SetAppConfig(ctx context.Context, cfg engine.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin config update: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	upsert := `
		INSERT INTO app_config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	for key, value := range map[string]int{
		configKeyMinQty:          cfg.MinQty,
		configKeyDiscountPercent: cfg.DiscountPercent,
		configKeyWindowDays:      cfg.WindowDays,
	} {
		if _, err := tx.ExecContext(ctx, upsert, key, strconv.Itoa(value), now); err != nil {
			return fmt.Errorf("save config key %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// PROCESSED EVENTS
// =============================================================================

// MarkProcessed records an event ID. Returns false when the ID was
// already recorded, i.e. this delivery is a replay.
func (s *Store) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_events (event_id, processed_at) VALUES (?, ?)`,
		eventID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	return affected == 1, nil
}

// =============================================================================
// WARNING LOG
// =============================================================================

// WarningRecord is one persisted engine warning.
type WarningRecord struct {
	ID        string
	OrderID   string
	LineID    string
	ProductID string
	Code      string
	Message   string
	CreatedAt time.Time
}

// RecordWarnings appends engine warnings for an order.
func (s *Store) RecordWarnings(ctx context.Context, orderID string, warnings []engine.Warning) error {
	if len(warnings) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin warning insert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, w := range warnings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO warnings (id, order_id, line_id, product_id, code, message, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), orderID, string(w.LineID), string(w.ProductID), string(w.Code), w.Message, now)
		if err != nil {
			return fmt.Errorf("insert warning: %w", err)
		}
	}

	return tx.Commit()
}

// ListWarnings returns the most recent warnings, newest first.
func (s *Store) ListWarnings(ctx context.Context, limit int) ([]WarningRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, line_id, product_id, code, message, created_at
		 FROM warnings ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	defer rows.Close()

	var records []WarningRecord
	for rows.Next() {
		var r WarningRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.OrderID, &r.LineID, &r.ProductID, &r.Code, &r.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}
