// Package store provides optional durable persistence for terminal task
// records, backed by SQLite. The coordinator works fully without it; when
// configured, terminal snapshots survive process restarts.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/phytolab/sage/pkg/models"
)

// ErrNotFound indicates no task record exists for the given id.
var ErrNotFound = errors.New("task not found")

// TaskStore persists terminal task snapshots keyed by id.
type TaskStore interface {
	// SaveTask stores a terminal task snapshot.
	SaveTask(task *models.CoordinatedTask) error
	// GetTask loads a stored snapshot, or ErrNotFound.
	GetTask(id string) (*models.CoordinatedTask, error)
	// Close releases the underlying resources.
	Close() error
}

// SQLiteStore is a TaskStore backed by an SQLite database file.
type SQLiteStore struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens the SQLite task store at path, creating parent directories
// and the schema as needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	category     TEXT NOT NULL,
	priority     TEXT NOT NULL,
	status       TEXT NOT NULL,
	submitted_at TEXT NOT NULL,
	completed_at TEXT,
	error        TEXT,
	snapshot     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{conn: conn, path: path}, nil
}

// SaveTask stores a task snapshot, replacing any previous record.
func (s *SQLiteStore) SaveTask(task *models.CoordinatedTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}

	var completedAt any
	if task.CompletedAt != nil {
		completedAt = task.CompletedAt.Format(time.RFC3339Nano)
	}

	_, err = s.conn.Exec(`
INSERT OR REPLACE INTO tasks (id, category, priority, status, submitted_at, completed_at, error, snapshot)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, string(task.Category), string(task.Priority), string(task.Status),
		task.SubmittedAt.Format(time.RFC3339Nano), completedAt, task.Error, string(snapshot))
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask loads a task snapshot by id.
func (s *SQLiteStore) GetTask(id string) (*models.CoordinatedTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snapshot string
	err := s.conn.QueryRow("SELECT snapshot FROM tasks WHERE id = ?", id).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}

	var task models.CoordinatedTask
	if err := json.Unmarshal([]byte(snapshot), &task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
