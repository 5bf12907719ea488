package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/irwin/internal/domain/model"
)

const (
	memoryPath = ":memory:"
	// busyTimeoutMillis bounds how long a writer waits for the database lock.
	busyTimeoutMillis = 5000
)

// dsn builds the connection string. Pragmas go in the DSN so the driver
// applies them to every pooled connection, not only the first one.
// Transactions begin IMMEDIATE so concurrent writers queue on busy_timeout
// instead of failing on a lock upgrade.
func dsn(path string) string {
	if path == memoryPath {
		return path
	}
	return "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(" + strconv.Itoa(busyTimeoutMillis) + ")" +
		"&_pragma=journal_mode(WAL)" +
		"&_txlock=immediate"
}

// SQLiteStore persists games and analyses in one SQLite database. Records
// are stored as JSON documents next to the columns used for lookup.
// All methods are safe for concurrent use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// OpenSQLite opens or creates the database at path and its tables.
// File databases use WAL mode and wait for locks held by
// another connection.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A second connection to ":memory:" would see a different database.
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_games_user ON games(user_id);

	CREATE TABLE IF NOT EXISTS analyses (
		game_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		analysed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_user ON analyses(user_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database. Later calls fail with ErrClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Games returns the game repository backed by this store.
func (s *SQLiteStore) Games() GameRepository { return sqliteGames{s} }

// Analyses returns the analysis repository backed by this store.
func (s *SQLiteStore) Analyses() AnalysisRepository { return sqliteAnalyses{s} }

// upsert writes rows in one transaction.
func (s *SQLiteStore) upsert(ctx context.Context, query string, rows [][]any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, args := range rows {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// payloads returns the JSON documents for userID from table, ordered by key.
func (s *SQLiteStore) payloads(ctx context.Context, query, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

type sqliteGames struct{ s *SQLiteStore }

func (r sqliteGames) ByUser(ctx context.Context, userID string) ([]model.Game, error) {
	payloads, err := r.s.payloads(ctx, `SELECT payload FROM games WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	games := make([]model.Game, 0, len(payloads))
	for _, p := range payloads {
		var g model.Game
		if err := json.Unmarshal([]byte(p), &g); err != nil {
			return nil, fmt.Errorf("%w: game: %w", ErrDecode, err)
		}
		games = append(games, g)
	}
	return games, nil
}

func (r sqliteGames) Save(ctx context.Context, games []model.Game) error {
	now := r.s.now().UTC()
	rows := make([][]any, 0, len(games))
	for _, g := range games {
		if g.ID == "" {
			return ErrMissing
		}
		payload, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("%w: game %s: %w", ErrEncode, g.ID, err)
		}
		rows = append(rows, []any{g.ID, g.UserID, string(payload), now})
	}

	return r.s.upsert(ctx, `
		INSERT INTO games (id, user_id, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, rows)
}

type sqliteAnalyses struct{ s *SQLiteStore }

func (r sqliteAnalyses) ByUser(ctx context.Context, userID string) ([]model.Analysis, error) {
	payloads, err := r.s.payloads(ctx, `SELECT payload FROM analyses WHERE user_id = ? ORDER BY game_id`, userID)
	if err != nil {
		return nil, err
	}
	analyses := make([]model.Analysis, 0, len(payloads))
	for _, p := range payloads {
		var a model.Analysis
		if err := json.Unmarshal([]byte(p), &a); err != nil {
			return nil, fmt.Errorf("%w: analysis: %w", ErrDecode, err)
		}
		analyses = append(analyses, a)
	}
	return analyses, nil
}

func (r sqliteAnalyses) Save(ctx context.Context, analyses []model.Analysis) error {
	rows := make([][]any, 0, len(analyses))
	for _, a := range analyses {
		if a.GameID == "" {
			return ErrMissing
		}
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("%w: analysis %s: %w", ErrEncode, a.GameID, err)
		}
		analysedAt := a.AnalysedAt
		if analysedAt.IsZero() {
			analysedAt = r.s.now()
		}
		rows = append(rows, []any{a.GameID, a.UserID, string(payload), analysedAt.UTC()})
	}

	return r.s.upsert(ctx, `
		INSERT INTO analyses (game_id, user_id, payload, analysed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			user_id = excluded.user_id,
			payload = excluded.payload,
			analysed_at = excluded.analysed_at
	`, rows)
}
