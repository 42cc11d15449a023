package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// EnvDataDir overrides where the sqlite store keeps its database.
const EnvDataDir = "CLAUDE_MCP_DATA_DIR"

// Config holds the settings for the sqlite-backed store.
type Config struct {
	// DataDir is where sessions.db lives.
	DataDir string
}

// DefaultConfig stores under ~/.claude-mcp (CLAUDE_MCP_DATA_DIR overrides).
func DefaultConfig() Config {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return Config{DataDir: dir}
	}
	home, _ := os.UserHomeDir()
	return Config{DataDir: filepath.Join(home, ".claude-mcp")}
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	created_at       TEXT NOT NULL,
	last_accessed_at TEXT NOT NULL,
	native_id        TEXT NOT NULL DEFAULT '',
	position         INTEGER
);
CREATE TABLE IF NOT EXISTS turns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	prompt     TEXT NOT NULL,
	response   TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);
`

// SQLiteStore persists sessions and turns in a local sqlite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (creating if needed) the database under cfg.DataDir.
func NewSQLite(cfg Config) (*SQLiteStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}

	path := filepath.Join(cfg.DataDir, "sessions.db")
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// modernc sqlite is not safe for concurrent writers on one connection pool
	// beyond what busy_timeout covers; a single connection keeps writes ordered.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteStore) Create() (string, error) {
	id := uuid.NewString()
	if err := s.Ensure(id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) Ensure(id string) error {
	now := s.stamp()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, created_at, last_accessed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_accessed_at = excluded.last_accessed_at`,
		id, now, now)
	if err != nil {
		return fmt.Errorf("ensure session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Get(id string) (*Session, error) {
	var sess Session
	var created, accessed string
	err := s.db.QueryRow(
		`SELECT id, created_at, last_accessed_at, native_id FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &created, &accessed, &sess.NativeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	sess.LastAccessedAt, _ = time.Parse(time.RFC3339Nano, accessed)

	rows, err := s.db.Query(
		`SELECT prompt, response, created_at FROM turns WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("get turns for %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var t ConversationTurn
		var ts string
		if err := rows.Scan(&t.Prompt, &t.Response, &ts); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		sess.Turns = append(sess.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	if _, err := s.db.Exec(
		`UPDATE sessions SET last_accessed_at = ? WHERE id = ?`, s.stamp(), id); err != nil {
		return nil, fmt.Errorf("touch session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *SQLiteStore) Reset(id string) error {
	if _, err := s.db.Exec(`DELETE FROM turns WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("reset turns for %s: %w", id, err)
	}
	_, err := s.db.Exec(
		`UPDATE sessions SET native_id = '', last_accessed_at = ? WHERE id = ?`, s.stamp(), id)
	if err != nil {
		return fmt.Errorf("reset session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) AddTurn(id string, turn ConversationTurn) error {
	if err := s.Ensure(id); err != nil {
		return err
	}
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	_, err := s.db.Exec(
		`INSERT INTO turns (session_id, prompt, response, created_at) VALUES (?, ?, ?, ?)`,
		id, turn.Prompt, turn.Response, ts.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("add turn to %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SetNativeID(id, handle string) error {
	if err := s.Ensure(id); err != nil {
		return err
	}
	_, err := s.db.Exec(`UPDATE sessions SET native_id = ? WHERE id = ?`, handle, id)
	if err != nil {
		return fmt.Errorf("set native id for %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) NativeID(id string) (string, error) {
	var handle string
	err := s.db.QueryRow(`SELECT native_id FROM sessions WHERE id = ?`, id).Scan(&handle)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("native id for %s: %w", id, err)
	}
	return handle, nil
}

func (s *SQLiteStore) List() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.created_at, s.last_accessed_at, COUNT(t.id)
		FROM sessions s LEFT JOIN turns t ON t.session_id = s.id
		GROUP BY s.id ORDER BY s.rowid`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		var created, accessed string
		if err := rows.Scan(&sm.ID, &created, &accessed, &sm.TurnCount); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sm.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		sm.LastAccessedAt, _ = time.Parse(time.RFC3339Nano, accessed)
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
