package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutorial-service/internal/entity"
	"tutorial-service/internal/registry"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id      TEXT PRIMARY KEY,
	task_type    TEXT NOT NULL,
	status       TEXT NOT NULL,
	progress     DOUBLE PRECISION NOT NULL DEFAULT 0,
	message      TEXT NOT NULL DEFAULT '',
	params       JSON NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	result       JSON,
	error        TEXT
);
`

var columns = []string{
	"task_id", "task_type", "status", "progress", "message", "params",
	"created_at", "updated_at", "completed_at", "result", "error",
}

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// TaskRepository mirrors the registry into the tasks table. Every Save
// replaces the table contents inside one transaction.
type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

func (r *TaskRepository) Load(ctx context.Context) (map[string]entity.Task, error) {
	const q = `
SELECT task_id, task_type, status, progress, message, params,
       created_at, updated_at, completed_at, result, error
FROM tasks;
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := map[string]entity.Task{}
	for rows.Next() {
		var (
			t           entity.Task
			statusText  string
			paramsBytes []byte
			resultBytes []byte
			completedAt *time.Time
			errText     *string
		)
		if err := rows.Scan(
			&t.ID,
			&t.Type,
			&statusText,
			&t.Progress,
			&t.Message,
			&paramsBytes,
			&t.CreatedAt,
			&t.UpdatedAt,
			&completedAt, // NULL => nil
			&resultBytes, // NULL => nil
			&errText,     // NULL => nil
		); err != nil {
			return nil, err
		}

		st, err := entity.ParseStatus(statusText)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		t.Status = st
		t.Params = json.RawMessage(paramsBytes)
		if resultBytes != nil {
			t.Result = json.RawMessage(resultBytes)
		}
		t.CreatedAt = t.CreatedAt.UTC()
		t.UpdatedAt = t.UpdatedAt.UTC()
		if completedAt != nil {
			at := completedAt.UTC()
			t.CompletedAt = &at
		}
		t.Error = errText
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

func (r *TaskRepository) Save(ctx context.Context, tasks map[string]entity.Task) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM tasks;`); err != nil {
		return err
	}

	rows := make([][]any, 0, len(tasks))
	for _, t := range tasks {
		var result []byte
		if t.Result != nil {
			result = t.Result
		}
		rows = append(rows, []any{
			t.ID, t.Type, string(t.Status), t.Progress, t.Message, []byte(t.Params),
			t.CreatedAt, t.UpdatedAt, t.CompletedAt, result, t.Error,
		})
	}

	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"tasks"}, columns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy tasks: %w", err)
		}
	}
	return tx.Commit(ctx)
}
