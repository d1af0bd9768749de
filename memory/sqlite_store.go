package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "sessions_and_turns",
		SQL: `
		CREATE TABLE sessions (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL DEFAULT '',
			created_at       INTEGER NOT NULL,
			total_queries    INTEGER NOT NULL DEFAULT 0,
			last_activity_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE turns (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			seq        INTEGER NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
	},
}

// SQLiteStore keeps sessions in a local SQLite file. Use ":memory:" for tests.
type SQLiteStore struct {
	db *sql.DB
	// appends read the current max seq and insert after it; the lock keeps
	// that read-then-write sequence from interleaving.
	appendMu sync.Mutex
	now      func() time.Time
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("Session database opened", zap.String("path", path))
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		logger.Info("Applying migration", zap.Int("version", m.Version), zap.String("name", m.Name))

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, userID string) (string, error) {
	id := newSessionID()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, created_at) VALUES (?, ?, ?)",
		id, userID, s.now().UTC().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) LoadHistory(ctx context.Context, sessionID string) ([]Turn, error) {
	turns, err := s.turns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return turns, nil
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, sessionID, userText, assistantText string) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, total_queries, last_activity_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_queries = total_queries + 1,
			last_activity_at = excluded.last_activity_at`,
		sessionID, now, now); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM turns WHERE session_id = ?", sessionID).Scan(&seq); err != nil {
		return fmt.Errorf("read sequence: %w", err)
	}

	for _, t := range exchange(userText, assistantText) {
		seq++
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO turns (session_id, seq, role, content) VALUES (?, ?, ?, ?)",
			sessionID, seq, t.Role, t.Content); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var (
		session              Session
		createdAt, lastActed int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, created_at, total_queries, last_activity_at FROM sessions WHERE id = ?", sessionID).
		Scan(&session.ID, &session.UserID, &createdAt, &session.Metadata.TotalQueries, &lastActed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	session.CreatedAt = fromMillis(createdAt)
	session.Metadata.LastActivityAt = fromMillis(lastActed)

	if session.Turns, err = s.turns(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("get session turns: %w", err)
	}
	return &session, nil
}

func (s *SQLiteStore) turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content FROM turns WHERE session_id = ? ORDER BY seq", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
