// Package sqlite mirrors the task map into a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tutorial-service/internal/entity"
	"tutorial-service/internal/registry"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id      TEXT PRIMARY KEY,
	task_type    TEXT NOT NULL,
	status       TEXT NOT NULL,
	progress     REAL NOT NULL DEFAULT 0,
	message      TEXT NOT NULL DEFAULT '',
	params       TEXT NOT NULL DEFAULT '{}',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	completed_at TEXT,
	result       TEXT,
	error        TEXT
);
`

type TaskStore struct {
	db *sql.DB
}

func Open(path string) (*TaskStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL", path))
	if err != nil {
		return nil, err
	}
	// one writer is all sqlite can take anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &TaskStore{db: db}, nil
}

func (s *TaskStore) Close() error { return s.db.Close() }

func (s *TaskStore) Load(ctx context.Context) (map[string]entity.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT task_id, task_type, status, progress, message, params,
       created_at, updated_at, completed_at, result, error
FROM tasks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := map[string]entity.Task{}
	for rows.Next() {
		var (
			t                    entity.Task
			status, params       string
			createdAt, updatedAt string
			completedAt, result  sql.NullString
			errText              sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Type, &status, &t.Progress, &t.Message, &params,
			&createdAt, &updatedAt, &completedAt, &result, &errText); err != nil {
			return nil, err
		}

		if t.Status, err = entity.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		t.Params = json.RawMessage(params)
		if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("task %s created_at: %w", t.ID, err)
		}
		if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("task %s updated_at: %w", t.ID, err)
		}
		if completedAt.Valid {
			at, err := time.Parse(time.RFC3339Nano, completedAt.String)
			if err != nil {
				return nil, fmt.Errorf("task %s completed_at: %w", t.ID, err)
			}
			t.CompletedAt = &at
		}
		if result.Valid {
			t.Result = json.RawMessage(result.String)
		}
		if errText.Valid {
			e := errText.String
			t.Error = &e
		}
		tasks[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, registry.ErrNoSnapshot
	}
	return tasks, nil
}

func (s *TaskStore) Save(ctx context.Context, tasks map[string]entity.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO tasks (task_id, task_type, status, progress, message, params,
                   created_at, updated_at, completed_at, result, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range tasks {
		var completedAt, result, errText sql.NullString
		if t.CompletedAt != nil {
			completedAt = sql.NullString{String: t.CompletedAt.UTC().Format(time.RFC3339Nano), Valid: true}
		}
		if t.Result != nil {
			result = sql.NullString{String: string(t.Result), Valid: true}
		}
		if t.Error != nil {
			errText = sql.NullString{String: *t.Error, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.Type, string(t.Status), t.Progress, t.Message, string(t.Params),
			t.CreatedAt.UTC().Format(time.RFC3339Nano), t.UpdatedAt.UTC().Format(time.RFC3339Nano),
			completedAt, result, errText,
		); err != nil {
			return fmt.Errorf("insert %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}
