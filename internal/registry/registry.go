// Package registry keeps the authoritative map of tasks and mirrors it to a
// Store after every mutation.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tutorial-service/internal/entity"
)

var (
	ErrNotFound      = errors.New("task not found")
	ErrAlreadyExists = errors.New("task already exists")
	ErrInvalidID     = errors.New("task id is required")
	ErrInvalidStatus = errors.New("invalid task status")
	// ErrTerminal is returned when an update tries to move a finished task
	// to another status.
	ErrTerminal = errors.New("task already finished")
)

// Observer is told about every status a task enters. prev is empty on create.
type Observer func(prev entity.Status, t entity.Task)

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Registry) { r.log = log }
}

func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observers = append(r.observers, o) }
}

func WithPersistTimeout(d time.Duration) Option {
	return func(r *Registry) { r.persistTimeout = d }
}

type Registry struct {
	mu      sync.Mutex
	tasks   map[string]*entity.Task
	version uint64

	saveMu       sync.Mutex
	savedVersion uint64

	store          Store
	now            func() time.Time
	log            logrus.FieldLogger
	observers      []Observer
	persistTimeout time.Duration
}

// defaultClock keeps microsecond precision so timestamps survive every
// store backend unchanged.
func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// New builds a registry backed by store and loads whatever it holds.
// A missing or unreadable snapshot starts the registry empty.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		tasks:          make(map[string]*entity.Task),
		store:          store,
		now:            defaultClock,
		log:            logrus.StandardLogger(),
		persistTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.load()
	return r
}

func (r *Registry) load() {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
	defer cancel()

	tasks, err := r.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			r.log.Info("no task snapshot found, starting empty")
			return
		}
		r.log.WithError(err).Error("load tasks failed, starting empty")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range tasks {
		t := t.Clone()
		t.Normalize()
		if t.ID == "" {
			t.ID = id
		}
		r.tasks[id] = &t
	}
	r.log.WithField("count", len(r.tasks)).Info("tasks loaded")
}

// Create registers a new pending task. Ids must be unique for the lifetime
// of the registry; reusing one returns ErrAlreadyExists.
func (r *Registry) Create(id, kind string, params json.RawMessage) (entity.Task, error) {
	if strings.TrimSpace(id) == "" {
		return entity.Task{}, ErrInvalidID
	}

	r.mu.Lock()
	if _, ok := r.tasks[id]; ok {
		r.mu.Unlock()
		return entity.Task{}, ErrAlreadyExists
	}
	t := entity.NewTask(id, kind, params, r.now())
	r.tasks[id] = &t
	out := t.Clone()
	snap, v := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap, v)
	r.notify("", out)
	return out, nil
}

func (r *Registry) Get(id string) (entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return entity.Task{}, ErrNotFound
	}
	return t.Clone(), nil
}

// Update applies the supplied fields of p. Entering a terminal status stamps
// completed_at once; a finished task cannot move to a different status.
func (r *Registry) Update(id string, p entity.Patch) (entity.Task, error) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		r.log.WithField("task_id", id).Warn("update of unknown task")
		return entity.Task{}, ErrNotFound
	}
	prev := t.Status
	if err := r.applyLocked(t, p); err != nil {
		r.mu.Unlock()
		return entity.Task{}, err
	}
	out := t.Clone()
	snap, v := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap, v)
	if out.Status != prev {
		r.notify(prev, out)
	}
	return out, nil
}

func (r *Registry) applyLocked(t *entity.Task, p entity.Patch) error {
	now := r.now()

	if p.Status != nil {
		next := *p.Status
		if !next.Valid() {
			return ErrInvalidStatus
		}
		if t.Status.IsTerminal() && next != t.Status {
			return ErrTerminal
		}
		t.Status = next
		if next.IsTerminal() && t.CompletedAt == nil {
			at := now
			t.CompletedAt = &at
		}
	}
	if p.Progress != nil {
		t.Progress = entity.ClampProgress(*p.Progress)
	}
	if p.Message != nil {
		t.Message = *p.Message
	}
	if p.Result != nil {
		t.Result = append(json.RawMessage(nil), p.Result...)
	}
	if p.Error != nil {
		e := *p.Error
		t.Error = &e
	}

	if now.Before(t.UpdatedAt) {
		now = t.UpdatedAt
	}
	t.UpdatedAt = now
	return nil
}

// Remove deletes the task if present. Whether a task may be removed is the
// caller's decision.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	if _, ok := r.tasks[id]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.tasks, id)
	snap, v := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap, v)
	return true
}

// List returns a copy of every task keyed by id.
func (r *Registry) List() map[string]entity.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]entity.Task, len(r.tasks))
	for id, t := range r.tasks {
		out[id] = t.Clone()
	}
	return out
}

// IDs returns the known task ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// CountByStatus is used by the metrics collector on every scrape.
func (r *Registry) CountByStatus() map[entity.Status]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[entity.Status]int)
	for _, t := range r.tasks {
		out[t.Status]++
	}
	return out
}

func (r *Registry) Clear() {
	r.mu.Lock()
	r.tasks = make(map[string]*entity.Task)
	snap, v := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap, v)
}

func (r *Registry) snapshotLocked() (map[string]entity.Task, uint64) {
	r.version++
	snap := make(map[string]entity.Task, len(r.tasks))
	for id, t := range r.tasks {
		snap[id] = t.Clone()
	}
	return snap, r.version
}

// persist writes snap unless a newer snapshot already reached the store.
// Failures are logged; memory stays authoritative.
func (r *Registry) persist(snap map[string]entity.Task, version uint64) {
	if r.store == nil {
		return
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	if version <= r.savedVersion {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
	defer cancel()

	if err := r.store.Save(ctx, snap); err != nil {
		r.log.WithError(err).WithField("tasks", len(snap)).Error("save tasks failed")
		return
	}
	r.savedVersion = version
}

func (r *Registry) notify(prev entity.Status, t entity.Task) {
	for _, o := range r.observers {
		o(prev, t)
	}
}
