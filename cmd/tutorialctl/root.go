package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tutorial-service/internal/config"
	"tutorial-service/internal/logging"
)

type app struct {
	cfg *config.Config
	log *logrus.Logger

	storeOverride string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "tutorialctl",
		Short:         "Generate educational videos and manage their tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg != nil {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if a.storeOverride != "" {
				cfg.StoreBackend = a.storeOverride
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			a.cfg = cfg
			a.log = logging.New(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&a.storeOverride, "store", "",
		"task store backend: file|postgres|redis|sqlite (default $TUTORIAL_STORE_BACKEND)")

	cmd.AddCommand(newServeCmd(a), newTasksCmd(a), newGenerateCmd(a))
	return cmd
}
