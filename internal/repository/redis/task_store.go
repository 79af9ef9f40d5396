// Package redis keeps the task document under a single Redis key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"tutorial-service/internal/entity"
	"tutorial-service/internal/registry"
)

const DefaultKey = "tutorial:tasks"

type TaskStore struct {
	rdb goredis.Cmdable
	key string
}

func NewTaskStore(rdb goredis.Cmdable, key string) *TaskStore {
	if key == "" {
		key = DefaultKey
	}
	return &TaskStore{rdb: rdb, key: key}
}

func (s *TaskStore) Load(ctx context.Context) (map[string]entity.Task, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, registry.ErrNoSnapshot
		}
		return nil, err
	}

	tasks := map[string]entity.Task{}
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return tasks, nil
}

func (s *TaskStore) Save(ctx context.Context, tasks map[string]entity.Task) error {
	if tasks == nil {
		tasks = map[string]entity.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	return s.rdb.Set(ctx, s.key, data, 0).Err()
}
