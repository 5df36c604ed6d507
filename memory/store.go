// Package memory is the per-project persistence layer: a small SQLite
// database holding the conversation-turn ring, the append-only work log,
// issues, the file index, and a key-value state table. Memory lives in the
// database, not in the model.
package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DefaultMaxTurns bounds the conversation ring when no per-project setting
// overrides it.
const DefaultMaxTurns = 50

// Turn is one conversation turn. Only the most recent turns survive; the
// ring bound is enforced synchronously on every append.
type Turn struct {
	ID          int64
	Timestamp   string
	Role        string // user, assistant
	Content     string
	ContextUsed string
}

// WorkLog is one append-only audit record.
type WorkLog struct {
	ID          int64
	Timestamp   string
	Action      string // CREATE, UPDATE, DELETE, TEST, TOOL, CHAT
	Target      string
	Description string
	Result      string // SUCCESS, FAIL, PENDING
	Details     string // JSON
}

// Issue is a tracked problem. Status transitions OPEN to RESOLVED or
// WONTFIX exactly once and is terminal thereafter.
type Issue struct {
	ID          int64
	CreatedAt   string
	Status      string // OPEN, RESOLVED, WONTFIX
	Severity    string // LOW, MEDIUM, HIGH, CRITICAL
	Title       string
	Description string
	ResolvedAt  string
	Resolution  string
}

// FileEntry records a hashed snapshot of a file the assistant wrote.
type FileEntry struct {
	Path         string
	LastModified string
	Size         int64
	ContentHash  string
}

// Store is the project memory database. A single connection serializes
// writers; the mutex guards the multi-statement append path.
type Store struct {
	db       *sql.DB
	maxTurns int
	log      *zap.Logger
	mu       sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithMaxTurns overrides the conversation ring bound.
func WithMaxTurns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open opens (creating if needed) the memory database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("memory: create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("memory: %s: %w", pragma, err)
		}
	}

	s := &Store{
		db:       db,
		maxTurns: DefaultMaxTurns,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	s.log.Debug("memory store opened",
		zap.String("path", path),
		zap.Int("max_turns", s.maxTurns))
	return s, nil
}

func (s *Store) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS work_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			action TEXT NOT NULL,
			target TEXT,
			description TEXT,
			result TEXT CHECK(result IN ('SUCCESS', 'FAIL', 'PENDING')),
			details TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS issues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			status TEXT DEFAULT 'OPEN' CHECK(status IN ('OPEN', 'RESOLVED', 'WONTFIX')),
			severity TEXT DEFAULT 'MEDIUM' CHECK(severity IN ('LOW', 'MEDIUM', 'HIGH', 'CRITICAL')),
			title TEXT NOT NULL,
			description TEXT,
			resolved_at TEXT,
			resolution TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS file_index (
			path TEXT PRIMARY KEY,
			last_modified TEXT,
			size INTEGER,
			content_hash TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('user', 'assistant')),
			content TEXT NOT NULL,
			context_used TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TEXT
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("memory: init schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetMaxTurns changes the conversation ring bound for subsequent appends.
func (s *Store) SetMaxTurns(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.maxTurns = n
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// AppendTurn records a conversation turn and evicts the oldest turns beyond
// the ring bound in the same transaction.
func (s *Store) AppendTurn(role, content string) error {
	s.mu.Lock()
	maxTurns := s.maxTurns
	s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("memory: append turn: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO conversation_turns (timestamp, role, content, context_used) VALUES (?, ?, ?, '')`,
		now(), role, content,
	); err != nil {
		return fmt.Errorf("memory: append turn: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM conversation_turns WHERE id NOT IN (
			SELECT id FROM conversation_turns ORDER BY timestamp DESC, id DESC LIMIT ?
		)`, maxTurns,
	); err != nil {
		return fmt.Errorf("memory: evict turns: %w", err)
	}

	return tx.Commit()
}

// RecentTurns returns up to limit most recent turns, ordered oldest first.
func (s *Store) RecentTurns(limit int) ([]Turn, error) {
	rows, err := s.db.Query(
		`SELECT id, timestamp, role, content, context_used
		 FROM conversation_turns ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: recent turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var ctx sql.NullString
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Role, &t.Content, &ctx); err != nil {
			return nil, fmt.Errorf("memory: scan turn: %w", err)
		}
		t.ContextUsed = ctx.String
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// TurnCount returns the number of retained conversation turns.
func (s *Store) TurnCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM conversation_turns`).Scan(&n)
	return n, err
}

// ClearConversation deletes all conversation turns. Work logs and issues
// are untouched.
func (s *Store) ClearConversation() error {
	_, err := s.db.Exec(`DELETE FROM conversation_turns`)
	return err
}

// LogWork appends an audit record. Records are never mutated.
func (s *Store) LogWork(action, target, description, result string, details map[string]any) (int64, error) {
	detailJSON := "{}"
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailJSON = string(b)
		}
	}
	res, err := s.db.Exec(
		`INSERT INTO work_logs (timestamp, action, target, description, result, details)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		now(), action, target, description, result, detailJSON)
	if err != nil {
		return 0, fmt.Errorf("memory: log work: %w", err)
	}
	return res.LastInsertId()
}

// RecentLogs returns up to limit most recent work log entries, newest first.
func (s *Store) RecentLogs(limit int) ([]WorkLog, error) {
	rows, err := s.db.Query(
		`SELECT id, timestamp, action, target, description, result, details
		 FROM work_logs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: recent logs: %w", err)
	}
	defer rows.Close()

	var logs []WorkLog
	for rows.Next() {
		var l WorkLog
		var target, desc, result, details sql.NullString
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Action, &target, &desc, &result, &details); err != nil {
			return nil, fmt.Errorf("memory: scan log: %w", err)
		}
		l.Target = target.String
		l.Description = desc.String
		l.Result = result.String
		l.Details = details.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// AddIssue creates an OPEN issue and returns its id.
func (s *Store) AddIssue(title, description, severity string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO issues (created_at, status, severity, title, description)
		 VALUES (?, 'OPEN', ?, ?, ?)`,
		now(), severity, title, description)
	if err != nil {
		return 0, fmt.Errorf("memory: add issue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	_, _ = s.LogWork("CREATE", fmt.Sprintf("issue:%d", id), "Issue created: "+title, "SUCCESS", nil)
	return id, nil
}

// ResolveIssue closes an OPEN issue as RESOLVED. Closing is terminal; a
// second transition is a no-op error.
func (s *Store) ResolveIssue(id int64, resolution string) error {
	return s.closeIssue(id, "RESOLVED", resolution)
}

// WontFixIssue closes an OPEN issue as WONTFIX.
func (s *Store) WontFixIssue(id int64, reason string) error {
	return s.closeIssue(id, "WONTFIX", reason)
}

func (s *Store) closeIssue(id int64, status, resolution string) error {
	res, err := s.db.Exec(
		`UPDATE issues SET status = ?, resolved_at = ?, resolution = ? WHERE id = ? AND status = 'OPEN'`,
		status, now(), resolution, id)
	if err != nil {
		return fmt.Errorf("memory: close issue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("memory: issue %d is not open", id)
	}
	_, _ = s.LogWork("UPDATE", fmt.Sprintf("issue:%d", id), "Issue closed: "+resolution, "SUCCESS", nil)
	return nil
}

// OpenIssues returns all OPEN issues, highest severity first.
func (s *Store) OpenIssues() ([]Issue, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, status, severity, title, description,
		        COALESCE(resolved_at, ''), COALESCE(resolution, '')
		 FROM issues WHERE status = 'OPEN'
		 ORDER BY CASE severity
			WHEN 'CRITICAL' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3
		 END, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("memory: open issues: %w", err)
	}
	defer rows.Close()

	var issues []Issue
	for rows.Next() {
		var i Issue
		var desc sql.NullString
		if err := rows.Scan(&i.ID, &i.CreatedAt, &i.Status, &i.Severity, &i.Title, &desc, &i.ResolvedAt, &i.Resolution); err != nil {
			return nil, fmt.Errorf("memory: scan issue: %w", err)
		}
		i.Description = desc.String
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

// IndexFile upserts the hash snapshot for a written file.
func (s *Store) IndexFile(path string, size int64, contentHash string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO file_index (path, last_modified, size, content_hash)
		 VALUES (?, ?, ?, ?)`,
		path, now(), size, contentHash)
	if err != nil {
		return fmt.Errorf("memory: index file: %w", err)
	}
	return nil
}

// FileEntry returns the index entry for path, or nil if not indexed.
func (s *Store) FileEntry(path string) (*FileEntry, error) {
	var e FileEntry
	err := s.db.QueryRow(
		`SELECT path, last_modified, size, content_hash FROM file_index WHERE path = ?`, path,
	).Scan(&e.Path, &e.LastModified, &e.Size, &e.ContentHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: file entry: %w", err)
	}
	return &e, nil
}

// SetState stores a JSON-encoded value under key.
func (s *Store) SetState(key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory: encode state %s: %w", key, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO state (key, value, updated_at) VALUES (?, ?, ?)`,
		key, string(b), now())
	return err
}

// GetState decodes the value under key into out. Returns false when the key
// is absent.
func (s *Store) GetState(key string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM state WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("memory: get state %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("memory: decode state %s: %w", key, err)
	}
	return true, nil
}

// Counts reports table sizes for diagnostics.
func (s *Store) Counts() (turns, logs, openIssues int, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM conversation_turns`).Scan(&turns); err != nil {
		return
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM work_logs`).Scan(&logs); err != nil {
		return
	}
	err = s.db.QueryRow(`SELECT COUNT(*) FROM issues WHERE status = 'OPEN'`).Scan(&openIssues)
	return
}
