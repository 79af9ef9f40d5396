package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tutorial-service/internal/metrics"
	"tutorial-service/internal/registry"
	"tutorial-service/internal/service"
	httptransport "tutorial-service/internal/transport/http"
	"tutorial-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API together with the worker pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cfg, log := a.cfg, a.log
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	reg := registry.New(store,
		registry.WithLogger(log.WithField("component", "registry")),
		registry.WithObserver(m.ObserveTransition),
	)
	m.TrackTasks(reg)

	processor := worker.NewProcessor(reg, log.WithField("component", "worker"))
	processor.OnFinish(m.ObserveJob)
	pool := worker.NewPool(processor, cfg.Workers, cfg.QueueSize, log.WithField("component", "pool"))

	svc := service.NewTaskService(reg, pool, buildPipeline(cfg, log), cfg.JobTimeout, log.WithField("component", "service"))
	svc.FailInterrupted(ctx)

	h := httptransport.NewHandler(svc, cfg.Dirs().Videos, log.WithField("component", "http"))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httptransport.Routes(h, m, log.WithField("component", "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	poolDone := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(poolDone)
	}()

	srvErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	log.WithFields(logrus.Fields{
		"workers":    cfg.Workers,
		"queue_size": cfg.QueueSize,
		"store":      cfg.StoreBackend,
		"base_dir":   cfg.BaseDir,
	}).Info("service started")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-srvErr:
		log.WithError(runErr).Error("http server failed")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}

	cancel()
	<-poolDone
	log.Info("service stopped")
	return runErr
}
