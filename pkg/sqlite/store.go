// Package sqlite stores the ledger in an embedded SQLite database, as an
// alternative to the spreadsheet backend.
//
// Rows are keyed by their ledger position; a save deletes every row and
// inserts the ledger again inside one transaction, after checking that the
// stored rows still match the version the caller loaded.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/harrisonrobin/tasksheet/pkg/model"
	"github.com/harrisonrobin/tasksheet/pkg/repo"
	"github.com/harrisonrobin/tasksheet/pkg/util"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	position INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	requester TEXT NOT NULL DEFAULT '',
	assignee1 TEXT NOT NULL DEFAULT '',
	assignee2 TEXT NOT NULL DEFAULT '',
	assignee3 TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT 'Medium',
	status TEXT NOT NULL DEFAULT 'Unstarted',
	due_date TEXT NOT NULL DEFAULT '',
	completion_date TEXT NOT NULL DEFAULT '',
	remarks TEXT NOT NULL DEFAULT ''
);`

const columns = `title, details, requester, assignee1, assignee2, assignee3, priority, status, due_date, completion_date, remarks`

// Store is a Repository backed by a SQLite file.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the database at path and ensures the schema exists.
// The caller must Close the store.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to run %s: %w", pragma, err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{conn: conn, path: path}, nil
}

func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// Ping checks the database is reachable and returns its path.
func (s *Store) Ping(ctx context.Context) (string, error) {
	if err := s.conn.PingContext(ctx); err != nil {
		return "", fmt.Errorf("failed to ping database: %w", err)
	}
	return s.path, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readTasks(ctx context.Context, q querier) ([]model.Task, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+columns+` FROM tasks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		cells := make([]string, len(model.Columns))
		dest := make([]any, len(cells))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, util.TaskFromRow(cells))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// Load reads the ledger. On failure it returns an empty ledger with the error.
func (s *Store) Load(ctx context.Context) (repo.Snapshot, error) {
	tasks, err := readTasks(ctx, s.conn)
	if err != nil {
		return repo.Snapshot{Tasks: []model.Task{}}, err
	}
	return repo.Snapshot{Tasks: tasks, Version: repo.Fingerprint(tasks)}, nil
}

// ReplaceAll rewrites every row if the table is still at expected.
func (s *Store) ReplaceAll(ctx context.Context, tasks []model.Task, expected string) (string, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := readTasks(ctx, tx)
	if err != nil {
		return "", err
	}
	if err := repo.CheckVersion(current, expected); err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return "", fmt.Errorf("failed to clear tasks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tasks (position, `+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for pos, t := range tasks {
		row := util.TaskToRow(t)
		args := make([]any, 0, len(row)+1)
		args = append(args, pos)
		for _, cell := range row {
			args = append(args, cell)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return "", fmt.Errorf("failed to insert task %d: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return repo.Fingerprint(tasks), nil
}

var _ repo.Repository = (*Store)(nil)
