package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agenti/agenti-web/internal/domain"
	"github.com/agenti/agenti-web/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Catalog using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the catalog database at dbPath, creating the schema and
// seeding agents and categories on first use.
func NewSQLite(ctx context.Context, dbPath string, agents []domain.AgentSummary, categories []string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := store.seedWithRetry(ctx, agents, categories); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		users INTEGER NOT NULL DEFAULT 0,
		rating REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_agents_category ON agents(category);

	CREATE TABLE IF NOT EXISTS categories (
		name TEXT PRIMARY KEY,
		position INTEGER NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// seedWithRetry seeds with exponential backoff to ride out SQLITE_BUSY when
// several processes start against the same file.
func (s *SQLiteStore) seedWithRetry(ctx context.Context, agents []domain.AgentSummary, categories []string) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.seed(ctx, agents, categories)
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i) // exponential backoff: 50ms, 100ms
		slog.Debug("Catalog seed hit a locked database, retrying", "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *SQLiteStore) seed(ctx context.Context, agents []domain.AgentSummary, categories []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range agents {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO agents (id, name, description, category, author, users, rating)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Name, a.Description, a.Category, a.Author, a.Users, a.Rating,
		)
		if err != nil {
			return fmt.Errorf("seed agent %d: %w", a.ID, err)
		}
	}
	for i, c := range categories {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name, position) VALUES (?, ?)`, c, i); err != nil {
			return fmt.Errorf("seed category %q: %w", c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListAgents implements Catalog.
func (s *SQLiteStore) ListAgents(ctx context.Context, filter domain.AgentFilter) ([]domain.AgentSummary, error) {
	query := `SELECT id, name, description, category, author, users, rating FROM agents WHERE 1 = 1`
	var args []interface{}

	if filter.Category != "" && filter.Category != domain.CategoryAll {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		query += ` AND (instr(lower(name), ?) > 0 OR instr(lower(description), ?) > 0)`
		args = append(args, q, q)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close agent rows", "error", closeErr)
		}
	}()

	agents := []domain.AgentSummary{}
	for rows.Next() {
		var a domain.AgentSummary
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Category, &a.Author, &a.Users, &a.Rating); err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}

	return agents, nil
}

// GetAgent implements Catalog.
func (s *SQLiteStore) GetAgent(ctx context.Context, id int64) (*domain.AgentSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, author, users, rating
		FROM agents WHERE id = ?`, id)

	var a domain.AgentSummary
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Category, &a.Author, &a.Users, &a.Rating)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get agent %d: %w", id, ErrAgentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent row: %w", err)
	}
	return &a, nil
}

// Categories implements Catalog.
func (s *SQLiteStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close category rows", "error", closeErr)
		}
	}()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
