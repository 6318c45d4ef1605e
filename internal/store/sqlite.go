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

	_ "modernc.org/sqlite"

	"github.com/ashureev/botfactory/internal/domain"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements Repository.
var _ Repository = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Every pooled connection gets WAL mode and a busy timeout.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS creations (
		id TEXT PRIMARY KEY,
		chat_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		username TEXT NOT NULL,
		token_hint TEXT NOT NULL,
		description_set INTEGER NOT NULL DEFAULT 0,
		avatar_status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_creations_created ON creations(created_at);
	CREATE INDEX IF NOT EXISTS idx_creations_user ON creations(user_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordCreation inserts or updates a creation record.
func (s *SQLiteStore) RecordCreation(ctx context.Context, rec *domain.CreationRecord) error {
	query := `
	INSERT INTO creations (id, chat_id, user_id, name, username, token_hint,
		description_set, avatar_status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		username = excluded.username,
		token_hint = excluded.token_hint,
		description_set = excluded.description_set,
		avatar_status = excluded.avatar_status,
		updated_at = excluded.updated_at`

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Avatar == "" {
		rec.Avatar = domain.AvatarPending
	}

	return withBusyRetry(ctx, "record creation", func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.ID, rec.ChatID, rec.UserID, rec.Name, rec.Username, rec.TokenHint,
			rec.DescriptionSet, string(rec.Avatar),
			rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("upsert creation: %w", err)
		}
		return nil
	})
}

// UpdateAvatarStatus sets the avatar outcome of a record.
func (s *SQLiteStore) UpdateAvatarStatus(ctx context.Context, id string, status domain.AvatarStatus) error {
	query := `UPDATE creations SET avatar_status = ?, updated_at = ? WHERE id = ?`

	return withBusyRetry(ctx, "update avatar status", func() error {
		result, err := s.db.ExecContext(ctx, query, string(status), time.Now().UTC().UnixMilli(), id)
		if err != nil {
			return fmt.Errorf("update avatar status: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			slog.Warn("UpdateAvatarStatus affected 0 rows", "record_id", id)
			return ErrNotFound
		}
		return nil
	})
}

const selectCreation = `
	SELECT id, chat_id, user_id, name, username, token_hint,
	       description_set, avatar_status, created_at, updated_at
	FROM creations`

// GetCreation retrieves a record by id.
func (s *SQLiteStore) GetCreation(ctx context.Context, id string) (*domain.CreationRecord, error) {
	row := s.db.QueryRowContext(ctx, selectCreation+` WHERE id = ?`, id)
	rec, err := scanCreation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan creation row: %w", err)
	}
	return rec, nil
}

// ListCreations returns the newest records first.
func (s *SQLiteStore) ListCreations(ctx context.Context, limit int) ([]*domain.CreationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectCreation+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query creations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close creations rows", "error", closeErr)
		}
	}()

	var records []*domain.CreationRecord
	for rows.Next() {
		rec, err := scanCreation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan creation row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate creations: %w", err)
	}
	return records, nil
}

// CountCreations returns the number of recorded creations.
func (s *SQLiteStore) CountCreations(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM creations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count creations: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCreation(row scanner) (*domain.CreationRecord, error) {
	var rec domain.CreationRecord
	var avatar string
	var createdAt, updatedAt int64

	err := row.Scan(
		&rec.ID, &rec.ChatID, &rec.UserID, &rec.Name, &rec.Username, &rec.TokenHint,
		&rec.DescriptionSet, &avatar, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Avatar = domain.AvatarStatus(avatar)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &rec, nil
}

// withBusyRetry retries op with exponential backoff while SQLite reports
// SQLITE_BUSY or "database is locked".
func withBusyRetry(ctx context.Context, name string, op func() error) error {
	const maxRetries = 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = op(); err == nil || !isConflictError(err) {
			return err
		}
		if i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("SQLite busy, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", name, maxRetries, err)
}

// isConflictError reports SQLite concurrency errors that warrant a retry.
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
