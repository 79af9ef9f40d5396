package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tutorial-service/internal/entity"
	"tutorial-service/internal/registry"
	"tutorial-service/internal/service"
)

// The tasks commands read and write the store directly; run them while the
// server is stopped or against a backend the server is not using.
func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and prune stored tasks",
	}
	cmd.AddCommand(newTasksListCmd(a), newTasksGetCmd(a), newTasksStatsCmd(a), newTasksClearCmd(a))
	return cmd
}

// withService opens the store and hands a registry-backed service to fn.
func (a *app) withService(cmd *cobra.Command, fn func(reg *registry.Registry, svc *service.TaskService) error) error {
	store, closeStore, err := openStore(cmd.Context(), a.cfg, a.log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := registry.New(store, registry.WithLogger(a.log.WithField("component", "registry")))
	svc := service.NewTaskService(reg, nil, nil, 0, a.log)
	return fn(reg, svc)
}

func newTasksListCmd(a *app) *cobra.Command {
	var (
		status string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter entity.Status
			if status != "" {
				st, err := entity.ParseStatus(status)
				if err != nil {
					return err
				}
				filter = st
			}
			return a.withService(cmd, func(_ *registry.Registry, svc *service.TaskService) error {
				tasks := svc.ListTasks(cmd.Context())
				if filter != "" {
					kept := tasks[:0]
					for _, t := range tasks {
						if t.Status == filter {
							kept = append(kept, t)
						}
					}
					tasks = kept
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), tasks)
				}
				for _, t := range tasks {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %-8s  %5.1f%%  %s\n",
						t.ID, t.Status, t.Type, t.Progress, t.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|running|completed|failed|error)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

func newTasksGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Print one task as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(_ *registry.Registry, svc *service.TaskService) error {
				t, err := svc.GetTask(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				return printJSON(cmd.OutOrStdout(), t)
			})
		},
	}
}

func newTasksStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print counts of tasks by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(reg *registry.Registry, _ *service.TaskService) error {
				c := reg.CountByStatus()
				fmt.Fprintf(cmd.OutOrStdout(), "pending=%d running=%d completed=%d failed=%d error=%d\n",
					c[entity.StatusPending], c[entity.StatusRunning], c[entity.StatusCompleted],
					c[entity.StatusFailed], c[entity.StatusError])
				return nil
			})
		},
	}
}

func newTasksClearCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear [task-id]",
		Short: "Remove one finished task, every finished task, or with --all everything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(_ *registry.Registry, svc *service.TaskService) error {
				if len(args) == 1 {
					if err := svc.DeleteTask(cmd.Context(), args[0]); err != nil {
						return fmt.Errorf("%s: %w", args[0], err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
					return nil
				}
				n := svc.ClearTasks(cmd.Context(), all)
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %d task(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also remove pending and running tasks")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
