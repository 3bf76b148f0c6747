package experiments

import (
	"context"
	"log/slog"

	"biograph/pkg/domain"
)

// Notifier receives experiment outcomes. Delivery is fire-and-forget: a
// notifier error never affects the recorded result.
type Notifier interface {
	ExperimentCompleted(ctx context.Context, experiment domain.Experiment) error
	ExperimentFailed(ctx context.Context, experiment domain.Experiment) error
}

// LogNotifier reports outcomes to the log. It stands in for the original
// system's mail delivery.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n LogNotifier) ExperimentCompleted(_ context.Context, e domain.Experiment) error {
	n.logger().Info("experiment completed", "experiment", e.ID, "result", e.ResultKey, "elapsed_seconds", e.ElapsedSec)
	return nil
}

func (n LogNotifier) ExperimentFailed(_ context.Context, e domain.Experiment) error {
	n.logger().Info("experiment failed", "experiment", e.ID, "reason", e.FailureReason)
	return nil
}
