// Package history persists remediation reports in SQLite so operators can
// review what the engine did across restarts.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// DefaultLimit is used by Recent when the caller passes a non-positive limit.
const DefaultLimit = 100

// Entry is one stored remediation report.
type Entry struct {
	ID        int64                   `json:"id"`
	PassID    string                  `json:"passId"`
	Report    types.RemediationReport `json:"report"`
	Succeeded int                     `json:"succeeded"`
	Simulated int                     `json:"simulated"`
	Failed    int                     `json:"failed"`
	CreatedAt time.Time               `json:"createdAt"`
}

// Store is a SQLite-backed report history. It implements the orchestrator's
// ReportRecorder.
type Store struct {
	db         *sql.DB
	path       string
	maxRecords int
	mu         sync.RWMutex
	now        func() time.Time
}

// NewStore creates a store for the database at path. Use ":memory:" for an
// ephemeral database. maxRecords caps the number of reports kept; zero keeps
// everything.
func NewStore(path string, maxRecords int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path cannot be empty")
	}
	if maxRecords < 0 {
		return nil, fmt.Errorf("maxRecords must not be negative, got %d", maxRecords)
	}
	return &Store{path: path, maxRecords: maxRecords, now: time.Now}, nil
}

// Open creates and initializes a store in one step.
func Open(ctx context.Context, config types.HistoryConfig) (*Store, error) {
	s, err := NewStore(config.Path, config.MaxRecords)
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Initialize opens the database and creates the schema.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dsn := s.path
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
		dsn = "file:" + s.path + "?_pragma=busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}

	// single writer; an in-memory database also lives only as long as its one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping history database: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run history migrations: %w", err)
	}
	s.db = db

	log.Printf("[INFO] Remediation history initialized at %s (maxRecords=%d)", s.path, s.maxRecords)
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS remediation_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pass_id TEXT NOT NULL,
			system_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			fallback INTEGER NOT NULL DEFAULT 0,
			succeeded INTEGER NOT NULL DEFAULT 0,
			simulated INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			triggered_at DATETIME NOT NULL,
			report_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_remediation_reports_system ON remediation_reports(system_id)`,
		`CREATE INDEX IF NOT EXISTS idx_remediation_reports_pass ON remediation_reports(pass_id)`,
	}
	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Save stores report under passID and prunes the oldest rows beyond
// maxRecords.
func (s *Store) Save(ctx context.Context, passID string, report *types.RemediationReport) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("history store is not initialized")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO remediation_reports
			(pass_id, system_id, platform, fallback, succeeded, simulated, failed, triggered_at, report_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		passID, report.SystemID, report.Platform, report.Fallback,
		report.Count(types.StatusSucceeded), report.Count(types.StatusSimulated), report.Count(types.StatusFailed),
		report.TriggeredAt.UTC(), string(reportJSON), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save remediation report: %w", err)
	}

	if s.maxRecords > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM remediation_reports
			WHERE id NOT IN (
				SELECT id FROM remediation_reports ORDER BY id DESC LIMIT ?
			)`, s.maxRecords)
		if err != nil {
			return fmt.Errorf("failed to prune remediation history: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit reports, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, pass_id, succeeded, simulated, failed, report_json, created_at
		FROM remediation_reports
		ORDER BY id DESC
		LIMIT ?`, normalizeLimit(limit))
}

// ForSystem returns up to limit reports for systemID, newest first.
func (s *Store) ForSystem(ctx context.Context, systemID string, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, pass_id, succeeded, simulated, failed, report_json, created_at
		FROM remediation_reports
		WHERE system_id = ?
		ORDER BY id DESC
		LIMIT ?`, systemID, normalizeLimit(limit))
}

// Count returns the number of stored reports.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return 0, fmt.Errorf("history store is not initialized")
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM remediation_reports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count remediation reports: %w", err)
	}
	return count, nil
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, fmt.Errorf("history store is not initialized")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query remediation history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e          Entry
			reportJSON string
			createdAt  int64
		)
		if err := rows.Scan(&e.ID, &e.PassID, &e.Succeeded, &e.Simulated, &e.Failed, &reportJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan remediation report: %w", err)
		}
		if err := json.Unmarshal([]byte(reportJSON), &e.Report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal remediation report %d: %w", e.ID, err)
		}
		e.CreatedAt = time.Unix(0, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
