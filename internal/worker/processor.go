package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"tutorial-service/internal/entity"
)

// TaskUpdater is the slice of the registry the processor writes to.
type TaskUpdater interface {
	Update(id string, p entity.Patch) (entity.Task, error)
}

// Reporter lets a running job publish progress.
type Reporter interface {
	Progress(pct float64, msg string)
}

type RunFunc func(ctx context.Context, r Reporter) (json.RawMessage, error)

type Job struct {
	TaskID string
	Kind   string
	// Timeout bounds Run; zero means no limit beyond the pool context.
	Timeout time.Duration
	// Done is the message stored on success.
	Done string
	Run  RunFunc
}

const defaultDoneMessage = "Task completed"

// FinishFunc is called once per processed job with its final status.
type FinishFunc func(kind string, status entity.Status, d time.Duration)

type Processor struct {
	tasks    TaskUpdater
	log      logrus.FieldLogger
	onFinish FinishFunc
}

func NewProcessor(tasks TaskUpdater, log logrus.FieldLogger) *Processor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Processor{tasks: tasks, log: log}
}

// OnFinish registers f to be told about every finished job.
func (p *Processor) OnFinish(f FinishFunc) { p.onFinish = f }

// Process runs job and records the outcome. Once the task is marked running
// it always ends in a terminal status.
func (p *Processor) Process(ctx context.Context, job Job) error {
	start := time.Now()
	log := p.log.WithFields(logrus.Fields{"task_id": job.TaskID, "kind": job.Kind})

	if _, err := p.tasks.Update(job.TaskID, entity.Patch{Status: entity.StatusPtr(entity.StatusRunning)}); err != nil {
		log.WithError(err).Error("mark running")
		return err
	}
	log.Info("task running")

	out, panicked, runErr := p.run(ctx, job)

	var (
		patch  entity.Patch
		status entity.Status
	)
	switch {
	case panicked:
		status = entity.StatusFailed
		msg := runErr.Error()
		patch = entity.Patch{
			Status:  entity.StatusPtr(status),
			Message: entity.String("Error: " + msg),
			Error:   entity.String(msg),
		}
	case runErr != nil:
		status = entity.StatusError
		msg := runErr.Error()
		if errors.Is(runErr, context.DeadlineExceeded) && job.Timeout > 0 {
			msg = fmt.Sprintf("timed out after %s", job.Timeout)
		}
		patch = entity.Patch{
			Status:   entity.StatusPtr(status),
			Progress: entity.Float(100),
			Message:  entity.String("Error: " + msg),
			Error:    entity.String(msg),
		}
	default:
		status = entity.StatusCompleted
		done := job.Done
		if done == "" {
			done = defaultDoneMessage
		}
		if out == nil {
			out = json.RawMessage(`null`)
		}
		patch = entity.Patch{
			Status:   entity.StatusPtr(status),
			Progress: entity.Float(100),
			Message:  entity.String(done),
			Result:   out,
		}
	}

	elapsed := time.Since(start)
	if _, err := p.tasks.Update(job.TaskID, patch); err != nil {
		log.WithError(err).Error("record outcome")
		return err
	}
	if p.onFinish != nil {
		p.onFinish(job.Kind, status, elapsed)
	}

	fields := logrus.Fields{"status": status, "duration_ms": elapsed.Milliseconds()}
	if runErr != nil {
		log.WithFields(fields).WithError(runErr).Warn("task finished")
		return runErr
	}
	log.WithFields(fields).Info("task finished")
	return nil
}

func (p *Processor) run(ctx context.Context, job Job) (out json.RawMessage, panicked bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("not started: %w", err)
	}
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			p.log.WithField("task_id", job.TaskID).Errorf("panic: %v\n%s", rec, debug.Stack())
			out, panicked, err = nil, true, fmt.Errorf("panic: %v", rec)
		}
	}()
	if job.Run == nil {
		return nil, false, errors.New("job has nothing to run")
	}
	out, err = job.Run(ctx, &reporter{tasks: p.tasks, id: job.TaskID, log: p.log})
	return out, false, err
}

type reporter struct {
	tasks TaskUpdater
	id    string
	log   logrus.FieldLogger
}

func (r *reporter) Progress(pct float64, msg string) {
	patch := entity.Patch{Progress: entity.Float(pct)}
	if msg != "" {
		patch.Message = entity.String(msg)
	}
	if _, err := r.tasks.Update(r.id, patch); err != nil {
		r.log.WithError(err).WithField("task_id", r.id).Debug("progress dropped")
	}
}
