package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tutorial-service/internal/registry"
	"tutorial-service/internal/service"
	"tutorial-service/internal/worker"
)

// inlineQueue runs each job as soon as it is submitted.
type inlineQueue struct {
	ctx       context.Context
	processor *worker.Processor
}

func (q inlineQueue) Submit(job worker.Job) error {
	// the outcome is recorded on the task
	_ = q.processor.Process(q.ctx, job)
	return nil
}

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run a generation task in the foreground and record it in the task store",
	}
	cmd.AddCommand(newGenerateTutorialCmd(a), newGenerateScriptCmd(a), newGenerateSceneCmd(a))
	return cmd
}

// runInline submits through a service whose queue runs jobs synchronously,
// then prints the finished task.
func (a *app) runInline(cmd *cobra.Command, submit func(ctx context.Context, svc *service.TaskService) (string, error)) error {
	ctx := cmd.Context()
	if err := a.cfg.EnsureDirs(); err != nil {
		return err
	}
	store, closeStore, err := openStore(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := registry.New(store, registry.WithLogger(a.log.WithField("component", "registry")))
	processor := worker.NewProcessor(reg, a.log.WithField("component", "worker"))
	svc := service.NewTaskService(reg, inlineQueue{ctx: ctx, processor: processor},
		buildPipeline(a.cfg, a.log), a.cfg.JobTimeout, a.log.WithField("component", "service"))

	id, err := submit(ctx, svc)
	if err != nil {
		return err
	}
	t, err := svc.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), t); err != nil {
		return err
	}
	if !t.IsTerminal() || t.Error != nil {
		return fmt.Errorf("task %s ended %s", id, t.Status)
	}
	return nil
}

func newGenerateTutorialCmd(a *app) *cobra.Command {
	var req service.TutorialRequest
	cmd := &cobra.Command{
		Use:   "tutorial",
		Short: "Generate a full tutorial video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInline(cmd, func(ctx context.Context, svc *service.TaskService) (string, error) {
				return svc.SubmitTutorial(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Topic, "topic", "", "tutorial topic")
	cmd.Flags().StringVar(&req.Level, "level", "beginner", "beginner|intermediate|advanced or 1-3")
	cmd.Flags().IntVar(&req.Duration, "duration", 3, "target length in minutes")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "skip external services and use placeholders")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func newGenerateScriptCmd(a *app) *cobra.Command {
	var req service.ScriptRequest
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Generate a narration script only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInline(cmd, func(ctx context.Context, svc *service.TaskService) (string, error) {
				return svc.SubmitScript(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Topic, "topic", "", "script topic")
	cmd.Flags().StringVar(&req.Level, "level", "beginner", "beginner|intermediate|advanced or 1-3")
	cmd.Flags().StringVar(&req.Style, "style", "enthusiastic", "narration style")
	cmd.Flags().IntVar(&req.Duration, "duration", 3, "target length in minutes")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func newGenerateSceneCmd(a *app) *cobra.Command {
	var req service.SceneRequest
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Render a single animated scene from a description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInline(cmd, func(ctx context.Context, svc *service.TaskService) (string, error) {
				return svc.SubmitScene(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.SceneText, "text", "", "scene description")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "use the fallback scene instead of calling the model")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}
