package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorial-service/internal/entity"
	"tutorial-service/internal/logging"
	"tutorial-service/internal/registry"
)

// stepClock advances one second per call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newRegistry(t *testing.T, store registry.Store, opts ...registry.Option) *registry.Registry {
	t.Helper()
	opts = append([]registry.Option{registry.WithLogger(logging.Discard())}, opts...)
	return registry.New(store, opts...)
}

func TestRegistry_GetUnknown_NotFound(t *testing.T) {
	r := newRegistry(t, registry.NewMemoryStore())

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestRegistry_Create_Pending(t *testing.T) {
	store := registry.NewMemoryStore()
	r := newRegistry(t, store)

	params := json.RawMessage(`{"topic":"Fractions"}`)
	created, err := r.Create("job1", "tutorial", params)
	require.NoError(t, err)

	got, err := r.Get("job1")
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, entity.StatusPending, got.Status)
	assert.Equal(t, float64(0), got.Progress)
	assert.Equal(t, entity.InitialMessage, got.Message)
	assert.JSONEq(t, `{"topic":"Fractions"}`, string(got.Params))
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.Error)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
	assert.Equal(t, 1, store.Saves())
}

func TestRegistry_Create_DuplicateRejected(t *testing.T) {
	r := newRegistry(t, registry.NewMemoryStore())

	_, err := r.Create("job1", "tutorial", nil)
	require.NoError(t, err)
	_, err = r.Update("job1", entity.Patch{Progress: entity.Float(30)})
	require.NoError(t, err)

	_, err = r.Create("job1", "scene", nil)
	assert.ErrorIs(t, err, registry.ErrAlreadyExists)

	got, err := r.Get("job1")
	require.NoError(t, err)
	assert.Equal(t, "tutorial", got.Type)
	assert.Equal(t, float64(30), got.Progress)
}

func TestRegistry_Create_EmptyID(t *testing.T) {
	r := newRegistry(t, registry.NewMemoryStore())

	_, err := r.Create("  ", "tutorial", nil)
	assert.ErrorIs(t, err, registry.ErrInvalidID)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Update_Missing_NoOp(t *testing.T) {
	store := registry.NewMemoryStore()
	r := newRegistry(t, store)

	_, err := r.Update("ghost", entity.Patch{Progress: entity.Float(10)})
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, store.Saves())
}

func TestRegistry_Update_OnlySuppliedFields(t *testing.T) {
	r := newRegistry(t, registry.NewMemoryStore())
	_, err := r.Create("job1", "tutorial", nil)
	require.NoError(t, err)

	_, err = r.Update("job1", entity.Patch{
		Status:   entity.StatusPtr(entity.StatusRunning),
		Progress: entity.Float(50),
		Message:  entity.String("Rendering..."),
	})
	require.NoError(t, err)

	got, err := r.Update("job1", entity.Patch{Progress: entity.Float(60)})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusRunning, got.Status)
	assert.Equal(t, float64(60), got.Progress)
	assert.Equal(t, "Rendering...", got.Message)
	assert.Nil(t, got.CompletedAt)
}

func TestRegistry_Update_ProgressClamped(t *testing.T) {
	r := newRegistry(t, registry.NewMemoryStore())
	_, err := r.Create("job1", "tutorial", nil)
	require.NoError(t, err)

	got, err := r.Update("job1", entity.Patch{Progress: entity.Float(140)})
	require.NoError(t, err)
	assert.Equal(t, float64(100), got.Progress)

	got, err = r.Update("job1", entity.Patch{Progress: entity.Float(-3)})
	require.NoError(t, err)
	assert.Equal(t, float64(0), got.Progress)
}

func TestRegistry_Update_UpdatedAtNonDecreasing(t *testing.T) {
	clock := newStepClock()
	r := newRegistry(t, registry.NewMemoryStore(), registry.WithClock(clock.Now))

	created, err := r.Create("job1", "tutorial", nil)
	require.NoError(t, err)

	prev := created.UpdatedAt
	for i := 1; i <= 5; i++ {
		got, err := r.Update("job1", entity.Patch{Progress: entity.Float(float64(i * 10))})
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.After(prev), "update %d: %v not after %v", i, got.UpdatedAt, prev)
		assert.Equal(t, created.CreatedAt, got.CreatedAt)
		prev = got.UpdatedAt
	}
}

func TestRegistry_Update_ClockGoingBackwards(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Minute)}
	i := 0
	clock := func() time.Time {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}
	r := newRegistry(t, registry.NewMemoryStore(), registry.WithClock(clock))

	_, err := r.Create("job1", "tutorial", nil)
	require.NoError(t, err)

	got, err := r.Update("job1", entity.Patch{Message: entity.String("tick")})
	require.NoError(t, err)
	assert.Equal(t, base, got.UpdatedAt)
}

func TestRegistry_Update_TerminalStampsCompletedAtOnce(t *testing.T) {
	clock := newStepClock()
	r := newRegistry(t, registry.NewMemoryStore(), registry.WithClock(clock.Now))
	_, err := r.Create("job1", "tutorial", nil)
	require.NoError(t, err)

	done, err := r.Update("job1", entity.Patch{
		Status:   entity.StatusPtr(entity.StatusCompleted),
		Progress: entity.Float(100),
		Result:   entity.RawString("tutorial.mp4"),
	})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	stamped := *done.CompletedAt

	for i := 0; i < 3; i++ {
		got, err := r.Get("job1")
		require.NoError(t, err)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, stamped, *got.CompletedAt)
	}

	// re-asserting the same terminal status keeps the original stamp
	again, err := r.Update("job1", entity.Patch{
		Status:  entity.StatusPtr(entity.StatusCompleted),
		Message: entity.String("done"),
	})
	require.NoError(t, err)
	assert.Equal(t, stamped, *again.CompletedAt)
	assert.Equal(t, "tutorial.mp4", again.ResultString())
}

func TestRegistry_Update_NoTransitionOutOfTerminal(t *testing.T) {
	r := newRegistry(t, registry.NewMemoryStore())
	_, err := r.Create("job1", "scene", nil)
	require.NoError(t, err)
	_, err = r.Update("job1", entity.Patch{
		Status: entity.StatusPtr(entity.StatusFailed),
		Error:  entity.String("boom"),
	})
	require.NoError(t, err)

	_, err = r.Update("job1", entity.Patch{
		Status:   entity.StatusPtr(entity.StatusRunning),
		Progress: entity.Float(10),
	})
	assert.ErrorIs(t, err, registry.ErrTerminal)

	got, err := r.Get("job1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, got.Status)
	assert.Equal(t, float64(0), got.Progress)
	require.NotNil(t, got.Error)
	assert.Equal(t, "boom", *got.Error)
}

func TestRegistry_Update_InvalidStatus(t *testing.T) {
	r := newRegistry(t, registry.NewMemoryStore())
	_, err := r.Create("job1", "scene", nil)
	require.NoError(t, err)

	_, err = r.Update("job1", entity.Patch{Status: entity.StatusPtr(entity.Status("paused"))})
	assert.ErrorIs(t, err, registry.ErrInvalidStatus)
}

func TestRegistry_Remove(t *testing.T) {
	store := registry.NewMemoryStore()
	r := newRegistry(t, store)
	_, err := r.Create("job1", "tutorial", nil)
	require.NoError(t, err)

	assert.True(t, r.Remove("job1"))
	assert.False(t, r.Remove("job1"))

	_, err = r.Get("job1")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.Equal(t, 2, store.Saves())
}

func TestRegistry_List_IsSnapshot(t *testing.T) {
	r := newRegistry(t, registry.NewMemoryStore())
	_, err := r.Create("a", "script", json.RawMessage(`{"topic":"x"}`))
	require.NoError(t, err)
	_, err = r.Create("b", "scene", nil)
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 2)

	a := list["a"]
	a.Params[2] = 'X'
	a.Message = "tampered"
	list["a"] = a
	delete(list, "b")

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, entity.InitialMessage, got.Message)
	assert.JSONEq(t, `{"topic":"x"}`, string(got.Params))
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"a", "b"}, r.IDs())
}

func TestRegistry_Clear(t *testing.T) {
	store := registry.NewMemoryStore()
	r := newRegistry(t, store)
	for i := 0; i < 3; i++ {
		_, err := r.Create(fmt.Sprintf("job%d", i), "scene", nil)
		require.NoError(t, err)
	}

	r.Clear()
	assert.Equal(t, 0, r.Len())

	reloaded := newRegistry(t, store)
	assert.Equal(t, 0, reloaded.Len())
}

func TestRegistry_PersistFailure_KeepsMemory(t *testing.T) {
	store := registry.NewMemoryStore()
	store.FailWith(errors.New("disk full"))
	r := newRegistry(t, store)

	_, err := r.Create("job1", "tutorial", nil)
	require.NoError(t, err)

	got, err := r.Update("job1", entity.Patch{Progress: entity.Float(20)})
	require.NoError(t, err)
	assert.Equal(t, float64(20), got.Progress)
	assert.Equal(t, 0, store.Saves())
}

func TestRegistry_ReloadEqualsBefore(t *testing.T) {
	store := registry.NewMemoryStore()
	r := newRegistry(t, store)

	_, err := r.Create("a", "tutorial", json.RawMessage(`{"topic":"Fractions","duration":3}`))
	require.NoError(t, err)
	_, err = r.Create("b", "scene", nil)
	require.NoError(t, err)
	_, err = r.Update("a", entity.Patch{
		Status:   entity.StatusPtr(entity.StatusCompleted),
		Progress: entity.Float(100),
		Result:   entity.RawString("tutorial.mp4"),
	})
	require.NoError(t, err)
	_, err = r.Update("b", entity.Patch{
		Status:  entity.StatusPtr(entity.StatusError),
		Message: entity.String("Error: boom"),
		Error:   entity.String("boom"),
	})
	require.NoError(t, err)

	before := r.List()
	reloaded := newRegistry(t, store)
	assert.Equal(t, before, reloaded.List())
}

func TestRegistry_LoadError_StartsEmpty(t *testing.T) {
	r := newRegistry(t, failingStore{})
	assert.Equal(t, 0, r.Len())

	_, err := r.Create("job1", "tutorial", nil)
	assert.NoError(t, err)
}

func TestRegistry_ObserverSeesTransitions(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	obs := func(prev entity.Status, task entity.Task) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(prev)+">"+string(task.Status))
	}
	r := newRegistry(t, registry.NewMemoryStore(), registry.WithObserver(obs))

	_, err := r.Create("job1", "tutorial", nil)
	require.NoError(t, err)
	_, err = r.Update("job1", entity.Patch{Status: entity.StatusPtr(entity.StatusRunning)})
	require.NoError(t, err)
	_, err = r.Update("job1", entity.Patch{Progress: entity.Float(40)})
	require.NoError(t, err)
	_, err = r.Update("job1", entity.Patch{Status: entity.StatusPtr(entity.StatusCompleted)})
	require.NoError(t, err)

	assert.Equal(t, []string{">pending", "pending>running", "running>completed"}, seen)
}

func TestRegistry_ConcurrentUpdates_DistinctTasks(t *testing.T) {
	const (
		workers = 8
		updates = 50
	)
	store := registry.NewMemoryStore()
	r := newRegistry(t, store)
	for w := 0; w < workers; w++ {
		_, err := r.Create(fmt.Sprintf("job%d", w), "scene", nil)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("job%d", w)
			for m := 1; m <= updates; m++ {
				_, err := r.Update(id, entity.Patch{
					Progress: entity.Float(float64(m * 2)),
					Message:  entity.String(fmt.Sprintf("%s step %d", id, m)),
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		id := fmt.Sprintf("job%d", w)
		got, err := r.Get(id)
		require.NoError(t, err)
		assert.Equal(t, float64(updates*2), got.Progress, id)
		assert.Equal(t, fmt.Sprintf("%s step %d", id, updates), got.Message)
	}

	// the newest snapshot is what the store holds
	reloaded := newRegistry(t, store)
	assert.Equal(t, r.List(), reloaded.List())
}

func TestRegistry_ExampleScenario(t *testing.T) {
	r := newRegistry(t, registry.NewMemoryStore())

	_, err := r.Create("job1", "tutorial", json.RawMessage(`{"topic":"Fractions"}`))
	require.NoError(t, err)
	got, _ := r.Get("job1")
	assert.Equal(t, entity.StatusPending, got.Status)

	_, err = r.Update("job1", entity.Patch{
		Status:   entity.StatusPtr(entity.StatusRunning),
		Progress: entity.Float(50),
		Message:  entity.String("Rendering..."),
	})
	require.NoError(t, err)
	got, _ = r.Get("job1")
	assert.Equal(t, float64(50), got.Progress)
	assert.Equal(t, "Rendering...", got.Message)

	_, err = r.Update("job1", entity.Patch{
		Status:   entity.StatusPtr(entity.StatusCompleted),
		Progress: entity.Float(100),
		Result:   entity.RawString("tutorial.mp4"),
	})
	require.NoError(t, err)
	got, _ = r.Get("job1")
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, "tutorial.mp4", got.ResultString())

	assert.True(t, r.Remove("job1"))
	_, err = r.Get("job1")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context) (map[string]entity.Task, error) {
	return nil, errors.New("corrupt")
}

func (failingStore) Save(ctx context.Context, tasks map[string]entity.Task) error {
	return nil
}

func TestRegistry_Load_CompletedAtFollowsStatus(t *testing.T) {
	updated := time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC)
	stray := updated.Add(-time.Minute)

	store := registry.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), map[string]entity.Task{
		"done": {
			ID: "done", Type: "scene", Status: entity.StatusCompleted,
			CreatedAt: updated.Add(-time.Hour), UpdatedAt: updated,
		},
		"busy": {
			ID: "busy", Type: "scene", Status: entity.StatusRunning,
			CreatedAt: updated.Add(-time.Hour), UpdatedAt: updated, CompletedAt: &stray,
		},
	}))

	r := newRegistry(t, store)

	done, err := r.Get("done")
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, updated, *done.CompletedAt)

	busy, err := r.Get("busy")
	require.NoError(t, err)
	assert.Nil(t, busy.CompletedAt)
}
