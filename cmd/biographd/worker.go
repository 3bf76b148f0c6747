package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"biograph/internal/adapters/dispatch"
	"biograph/internal/adapters/experiments"
)

func newWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background task worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer a.Close()

			worker := dispatch.NewWorker(a.queue, a.logger)
			worker.SettleDelay = a.cfg.Worker.SettleDelay

			metrics := experiments.NewMetrics(prometheus.DefaultRegisterer)
			runner := experiments.NewRunner(a.service, nil, nil, metrics, a.logger)
			runner.Register(worker)

			a.logger.Info("worker started", "settle_delay", a.cfg.Worker.SettleDelay)
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
