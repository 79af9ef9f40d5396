package registry

import (
	"context"
	"errors"

	"tutorial-service/internal/entity"
)

// ErrNoSnapshot is returned by Store.Load when nothing was ever saved.
var ErrNoSnapshot = errors.New("no snapshot")

// Store mirrors the whole task map somewhere durable. Save always receives
// the full set; implementations replace what they hold.
type Store interface {
	Load(ctx context.Context) (map[string]entity.Task, error)
	Save(ctx context.Context, tasks map[string]entity.Task) error
}

// MemoryStore keeps the last snapshot in memory.
type MemoryStore struct {
	tasks map[string]entity.Task
	saves int
	err   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (map[string]entity.Task, error) {
	if m.tasks == nil {
		return nil, ErrNoSnapshot
	}
	return cloneMap(m.tasks), nil
}

func (m *MemoryStore) Save(ctx context.Context, tasks map[string]entity.Task) error {
	if m.err != nil {
		return m.err
	}
	m.tasks = cloneMap(tasks)
	m.saves++
	return nil
}

// FailWith makes subsequent saves return err.
func (m *MemoryStore) FailWith(err error) { m.err = err }

// Saves reports how many snapshots were written.
func (m *MemoryStore) Saves() int { return m.saves }

func cloneMap(in map[string]entity.Task) map[string]entity.Task {
	out := make(map[string]entity.Task, len(in))
	for id, t := range in {
		out[id] = t.Clone()
	}
	return out
}
