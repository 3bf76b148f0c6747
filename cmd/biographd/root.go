package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"biograph/internal/adapters/dispatch"
	"biograph/internal/blob"
	"biograph/internal/config"
	"biograph/internal/core"
	"biograph/internal/infra/persistence/memory"
	"biograph/internal/infra/persistence/postgres"
	"biograph/internal/infra/persistence/sqlite"
	"biograph/internal/logging"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "biographd",
		Short:         "biograph network and query service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newWorkerCmd(&configPath),
		newLoadNetworksCmd(&configPath),
		newDropCmd(&configPath),
	)
	return root
}

// app bundles the wired components a command needs.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	service *core.Service
	queue   dispatch.Queue

	closers []io.Closer
}

// buildApp wires the store, blob backend, queue, and service from config.
// withQueue selects a real queue; commands that never dispatch use a no-op.
func buildApp(ctx context.Context, configPath string, withQueue bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.ParseLevel(cfg.LogLevel))
	a := &app{cfg: cfg, logger: logger}

	engine := core.NewDefaultRulesEngine()
	var store core.PersistentStore
	switch cfg.Storage.Driver {
	case "memory":
		store = memory.NewStore(engine)
	case "sqlite":
		s, err := sqlite.NewStore(cfg.Storage.SQLitePath, engine)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		store = s
		a.closers = append(a.closers, s)
	case "postgres":
		s, err := postgres.NewStore(cfg.Storage.PostgresDSN, engine)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		store = s
		a.closers = append(a.closers, s)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	var blobs blob.Store
	switch cfg.Blob.Driver {
	case "memory":
		blobs = blob.NewMemory()
	case "fs":
		blobs, err = blob.NewFilesystem(cfg.Blob.FSRoot)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
	case "s3":
		blobs, err = blob.OpenS3FromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("open s3 blob store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Blob.Driver)
	}

	var tasks core.TaskDispatcher
	if withQueue {
		if cfg.Redis.Address != "" {
			var opts []dispatch.RedisOption
			if cfg.Redis.QueueKey != "" {
				opts = append(opts, dispatch.WithQueueKey(cfg.Redis.QueueKey))
			}
			q := dispatch.NewRedisQueue(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, opts...)
			a.queue = q
			a.closers = append(a.closers, q)
		} else {
			q := dispatch.NewMemoryQueue(0)
			a.queue = q
			a.closers = append(a.closers, q)
		}
		tasks = dispatch.NewDispatcher(a.queue)
	}

	a.service = core.NewService(store, blobs, nil, tasks, logger)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close component", "err", err)
		}
	}
}
