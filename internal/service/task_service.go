package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tutorial-service/internal/entity"
	"tutorial-service/internal/registry"
	"tutorial-service/internal/script"
	"tutorial-service/internal/tutorial"
	"tutorial-service/internal/worker"
)

const (
	KindTutorial = "tutorial"
	KindScript   = "script"
	KindScene    = "scene"

	MinDuration = 1
	MaxDuration = 10

	sceneParamLimit = 100
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotTerminal    = errors.New("task is still in progress")
)

// RequestError is a validation failure whose message is safe to show to
// callers. It matches ErrInvalidRequest.
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string { return e.Msg }

func (e *RequestError) Is(target error) bool { return target == ErrInvalidRequest }

func invalid(format string, args ...any) error {
	return &RequestError{Msg: fmt.Sprintf(format, args...)}
}

// TaskRegistry is implemented by registry.Registry.
type TaskRegistry interface {
	Create(id, kind string, params json.RawMessage) (entity.Task, error)
	Get(id string) (entity.Task, error)
	Update(id string, p entity.Patch) (entity.Task, error)
	Remove(id string) bool
	List() map[string]entity.Task
	IDs() []string
	Clear()
}

type JobQueue interface {
	Submit(job worker.Job) error
}

type Pipeline interface {
	CreateTutorial(ctx context.Context, id string, p tutorial.Params, rep tutorial.Reporter) (string, error)
	GenerateScript(ctx context.Context, req script.Request, rep tutorial.Reporter) (map[string]string, error)
	GenerateScene(ctx context.Context, description string, dryRun bool, rep tutorial.Reporter) (string, error)
}

type TaskService struct {
	tasks      TaskRegistry
	queue      JobQueue
	pipeline   Pipeline
	jobTimeout time.Duration
	log        logrus.FieldLogger
}

func NewTaskService(tasks TaskRegistry, queue JobQueue, pipeline Pipeline, jobTimeout time.Duration, log logrus.FieldLogger) *TaskService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TaskService{tasks: tasks, queue: queue, pipeline: pipeline, jobTimeout: jobTimeout, log: log}
}

type TutorialRequest struct {
	Topic    string
	Level    string
	Duration int
	DryRun   bool
}

type ScriptRequest struct {
	Topic    string
	Level    string
	Style    string
	Duration int
}

type SceneRequest struct {
	SceneText string
	DryRun    bool
}

func validateTopic(topic string, duration int) error {
	if strings.TrimSpace(topic) == "" {
		return invalid("Topic cannot be empty")
	}
	if duration < MinDuration || duration > MaxDuration {
		return invalid("Duration must be between %d and %d minutes", MinDuration, MaxDuration)
	}
	return nil
}

func parseLevel(s string) (script.Level, error) {
	level, err := script.ParseLevel(s)
	if err != nil {
		return 0, invalid("Unknown level %q (use beginner, intermediate or advanced)", s)
	}
	return level, nil
}

// SubmitTutorial registers a tutorial task and queues the full pipeline.
func (s *TaskService) SubmitTutorial(ctx context.Context, req TutorialRequest) (string, error) {
	if err := validateTopic(req.Topic, req.Duration); err != nil {
		return "", err
	}
	level, err := parseLevel(req.Level)
	if err != nil {
		return "", err
	}

	params := entity.RawJSON(map[string]any{
		"topic":    req.Topic,
		"level":    req.Level,
		"duration": req.Duration,
		"dry_run":  req.DryRun,
	})
	pp := tutorial.Params{Topic: req.Topic, Level: level, Duration: req.Duration, DryRun: req.DryRun}

	return s.submit(KindTutorial, params,
		fmt.Sprintf("Initializing tutorial generation for '%s'...", req.Topic),
		fmt.Sprintf("Tutorial generation completed for '%s'", req.Topic),
		func(id string) worker.RunFunc {
			return func(ctx context.Context, rep worker.Reporter) (json.RawMessage, error) {
				path, err := s.pipeline.CreateTutorial(ctx, id, pp, rep)
				if err != nil {
					return nil, err
				}
				return entity.RawString(path), nil
			}
		})
}

// SubmitScript queues script generation only.
func (s *TaskService) SubmitScript(ctx context.Context, req ScriptRequest) (string, error) {
	if err := validateTopic(req.Topic, req.Duration); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Style) == "" {
		return "", invalid("Style cannot be empty")
	}
	level, err := parseLevel(req.Level)
	if err != nil {
		return "", err
	}

	params := entity.RawJSON(map[string]any{
		"topic":    req.Topic,
		"level":    req.Level,
		"style":    req.Style,
		"duration": req.Duration,
	})
	sr := script.Request{Topic: req.Topic, Level: level, Duration: req.Duration, Style: req.Style}

	return s.submit(KindScript, params,
		fmt.Sprintf("Queued script generation for %s", req.Topic),
		"Script generation completed",
		func(id string) worker.RunFunc {
			return func(ctx context.Context, rep worker.Reporter) (json.RawMessage, error) {
				out, err := s.pipeline.GenerateScript(ctx, sr, rep)
				if err != nil {
					return nil, err
				}
				return entity.RawJSON(out), nil
			}
		})
}

// SubmitScene queues rendering of a single scene description.
func (s *TaskService) SubmitScene(ctx context.Context, req SceneRequest) (string, error) {
	if strings.TrimSpace(req.SceneText) == "" {
		return "", invalid("scene_text cannot be empty")
	}

	params := entity.RawJSON(map[string]any{"scene_text": truncate(req.SceneText, sceneParamLimit)})
	text, dry := req.SceneText, req.DryRun

	return s.submit(KindScene, params,
		"Initializing scene generation...",
		"Scene rendered",
		func(id string) worker.RunFunc {
			return func(ctx context.Context, rep worker.Reporter) (json.RawMessage, error) {
				path, err := s.pipeline.GenerateScene(ctx, text, dry, rep)
				if err != nil {
					return nil, err
				}
				return entity.RawString(path), nil
			}
		})
}

func (s *TaskService) submit(kind string, params json.RawMessage, initial, done string, run func(id string) worker.RunFunc) (string, error) {
	id := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{"task_id": id, "kind": kind})

	if _, err := s.tasks.Create(id, kind, params); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	if _, err := s.tasks.Update(id, entity.Patch{Message: entity.String(initial)}); err != nil {
		log.WithError(err).Warn("set initial message")
	}

	err := s.queue.Submit(worker.Job{
		TaskID:  id,
		Kind:    kind,
		Timeout: s.jobTimeout,
		Done:    done,
		Run:     run(id),
	})
	if err != nil {
		// never leave a task pending that no worker will pick up
		msg := err.Error()
		_, _ = s.tasks.Update(id, entity.Patch{
			Status:   entity.StatusPtr(entity.StatusError),
			Progress: entity.Float(100),
			Message:  entity.String("Error: " + msg),
			Error:    entity.String(msg),
		})
		log.WithError(err).Warn("submit rejected")
		return "", err
	}

	log.Info("task queued")
	return id, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (entity.Task, error) {
	return s.tasks.Get(id)
}

// TaskIDs lists every known id; used in not-found responses.
func (s *TaskService) TaskIDs() []string {
	return s.tasks.IDs()
}

// ListTasks returns every task, newest first.
func (s *TaskService) ListTasks(ctx context.Context) []entity.Task {
	all := s.tasks.List()
	out := make([]entity.Task, 0, len(all))
	for _, t := range all {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DeleteTask removes a finished task. Pending or running tasks are kept.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	t, err := s.tasks.Get(id)
	if err != nil {
		return err
	}
	if !t.IsTerminal() {
		return ErrNotTerminal
	}
	if !s.tasks.Remove(id) {
		return registry.ErrNotFound
	}
	s.log.WithField("task_id", id).Info("task cleared")
	return nil
}

// InterruptedMessage is stored on tasks a previous process left unfinished.
const InterruptedMessage = "interrupted by service restart"

// FailInterrupted marks every pending or running task as error. It is meant
// to run once at startup, before the worker pool accepts jobs: whatever a
// previous process left unfinished has no worker anymore.
func (s *TaskService) FailInterrupted(ctx context.Context) int {
	n := 0
	for id, t := range s.tasks.List() {
		if t.IsTerminal() {
			continue
		}
		_, err := s.tasks.Update(id, entity.Patch{
			Status:   entity.StatusPtr(entity.StatusError),
			Progress: entity.Float(100),
			Message:  entity.String("Error: " + InterruptedMessage),
			Error:    entity.String(InterruptedMessage),
		})
		if err != nil {
			s.log.WithError(err).WithField("task_id", id).Warn("mark interrupted")
			continue
		}
		n++
	}
	if n > 0 {
		s.log.WithField("count", n).Warn("marked interrupted tasks as error")
	}
	return n
}

// ClearTasks removes finished tasks, or every task when all is set, and
// reports how many were removed.
func (s *TaskService) ClearTasks(ctx context.Context, all bool) int {
	if all {
		n := len(s.tasks.IDs())
		s.tasks.Clear()
		return n
	}
	n := 0
	for id, t := range s.tasks.List() {
		if t.IsTerminal() && s.tasks.Remove(id) {
			n++
		}
	}
	return n
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
