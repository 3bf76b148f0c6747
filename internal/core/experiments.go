package core

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"biograph/internal/blob"
	"biograph/pkg/analysis"
	"biograph/pkg/domain"
)

// CreateOmic validates and stores an uploaded differential-expression table.
// A table that fails to parse persists nothing.
func (s *Service) CreateOmic(ctx context.Context, omic domain.Omic, contents []byte) (domain.Omic, Result, error) {
	if _, err := analysis.ParseOmicTable(bytes.NewReader(contents), omic.GeneColumn, omic.DataColumn, omic.Separator); err != nil {
		return domain.Omic{}, Result{}, err
	}
	key := "omics/" + uuid.NewString()
	if _, err := s.blobs.Put(ctx, key, bytes.NewReader(contents), blob.PutOptions{ContentType: "text/plain"}); err != nil {
		return domain.Omic{}, Result{}, domain.ErrTransient{Op: "store omic payload", Err: err}
	}
	omic.BlobKey = key

	var created domain.Omic
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateOmic(omic)
		return err
	})
	if err != nil {
		if _, delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned omic payload", "key", key, "err", delErr)
		}
		return domain.Omic{}, res, err
	}
	return created, res, nil
}

// canReadOmic mirrors query visibility.
func (s *Service) canReadOmic(o domain.Omic, actorID *int64) bool {
	if o.Public {
		return true
	}
	if actorID == nil {
		return false
	}
	if o.UserID != nil && *o.UserID == *actorID {
		return true
	}
	return s.isAdmin(actorID)
}

// GetOmic returns the omic if the actor may see it.
func (s *Service) GetOmic(_ context.Context, id int64, actorID *int64) (domain.Omic, error) {
	o, ok := s.store.GetOmic(id)
	if !ok {
		return domain.Omic{}, domain.ErrNotFound{Entity: domain.EntityOmic, ID: id}
	}
	if !s.canReadOmic(o, actorID) {
		return domain.Omic{}, domain.ErrNotFound{Entity: domain.EntityOmic, ID: id}
	}
	return o, nil
}

// ListOmics returns the omics visible to the actor.
func (s *Service) ListOmics(_ context.Context, actorID *int64) []domain.Omic {
	var out []domain.Omic
	for _, o := range s.store.ListOmics() {
		if s.canReadOmic(o, actorID) {
			out = append(out, o)
		}
	}
	return out
}

// OmicTable loads and parses the stored table into its gene to value mapping.
func (s *Service) OmicTable(ctx context.Context, id int64) (map[string]float64, error) {
	o, ok := s.store.GetOmic(id)
	if !ok {
		return nil, domain.ErrNotFound{Entity: domain.EntityOmic, ID: id}
	}
	_, rc, err := s.blobs.Get(ctx, o.BlobKey)
	if err != nil {
		return nil, domain.ErrTransient{Op: "load omic payload", Err: err}
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.ErrTransient{Op: "read omic payload", Err: err}
	}
	return analysis.ParseOmicTable(bytes.NewReader(data), o.GeneColumn, o.DataColumn, o.Separator)
}

// DropOmic removes an omic together with its experiments and all associated
// blob payloads.
func (s *Service) DropOmic(ctx context.Context, id int64) (Result, error) {
	o, ok := s.store.GetOmic(id)
	if !ok {
		return Result{}, domain.ErrNotFound{Entity: domain.EntityOmic, ID: id}
	}
	orphanedKeys := []string{o.BlobKey}
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		for _, e := range tx.Snapshot().ListExperiments() {
			if e.OmicID != id {
				continue
			}
			if err := tx.DeleteExperiment(e.ID); err != nil {
				return err
			}
			if e.ResultKey != "" {
				orphanedKeys = append(orphanedKeys, e.ResultKey)
			}
		}
		return tx.DeleteOmic(id)
	})
	if err != nil {
		return res, err
	}
	for _, key := range orphanedKeys {
		if _, delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned omic artifact", "key", key, "err", delErr)
		}
	}
	return res, nil
}

// CreateExperiment records a pending experiment and enqueues its execution.
func (s *Service) CreateExperiment(ctx context.Context, experiment domain.Experiment) (domain.Experiment, Result, error) {
	experiment.Status = domain.ExperimentPending
	experiment.FailureReason = ""
	experiment.ResultKey = ""

	var created domain.Experiment
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateExperiment(experiment)
		return err
	})
	if err != nil {
		return domain.Experiment{}, res, err
	}
	taskID, err := s.tasks.Enqueue(ctx, TaskRunExperiment, map[string]any{"experiment_id": created.ID})
	if err != nil {
		s.logger.Error("enqueue experiment", "experiment", created.ID, "err", err)
		return created, res, domain.ErrTransient{Op: "enqueue experiment", Err: err}
	}
	if taskID != "" {
		s.logger.Info("experiment queued", "experiment", created.ID, "task", taskID)
	}
	return created, res, nil
}

// GetExperiment returns the experiment with the given ID.
func (s *Service) GetExperiment(_ context.Context, id int64) (domain.Experiment, error) {
	e, ok := s.store.GetExperiment(id)
	if !ok {
		return domain.Experiment{}, domain.ErrNotFound{Entity: domain.EntityExperiment, ID: id}
	}
	return e, nil
}

// ListExperiments returns all experiments.
func (s *Service) ListExperiments(context.Context) []domain.Experiment {
	return s.store.ListExperiments()
}

// StartExperiment transitions a pending experiment to running.
func (s *Service) StartExperiment(ctx context.Context, id int64) (domain.Experiment, Result, error) {
	var updated domain.Experiment
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateExperiment(id, func(e *domain.Experiment) error {
			if e.Status != domain.ExperimentPending {
				return domain.ErrConflict{Entity: domain.EntityExperiment, Detail: "experiment is not pending"}
			}
			e.Status = domain.ExperimentRunning
			return nil
		})
		return err
	})
	return updated, res, err
}

// CompleteExperiment records the result exactly once: the experiment moves to
// completed with its result key and elapsed wall-clock time. A second
// completion attempt fails with a conflict and the stored result is untouched.
func (s *Service) CompleteExperiment(ctx context.Context, id int64, resultKey string, elapsed time.Duration) (domain.Experiment, Result, error) {
	var updated domain.Experiment
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateExperiment(id, func(e *domain.Experiment) error {
			if e.Status == domain.ExperimentCompleted || e.Status == domain.ExperimentFailed {
				return domain.ErrConflict{Entity: domain.EntityExperiment, Detail: "experiment already finished"}
			}
			e.Status = domain.ExperimentCompleted
			e.ResultKey = resultKey
			e.ElapsedSec = elapsed.Seconds()
			e.FailureReason = ""
			return nil
		})
		return err
	})
	return updated, res, err
}

// FailExperiment marks the experiment failed with an explicit reason.
func (s *Service) FailExperiment(ctx context.Context, id int64, reason string) (domain.Experiment, Result, error) {
	var updated domain.Experiment
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateExperiment(id, func(e *domain.Experiment) error {
			if e.Status == domain.ExperimentCompleted || e.Status == domain.ExperimentFailed {
				return domain.ErrConflict{Entity: domain.EntityExperiment, Detail: "experiment already finished"}
			}
			e.Status = domain.ExperimentFailed
			e.FailureReason = reason
			return nil
		})
		return err
	})
	return updated, res, err
}

// ListStalledExperiments returns experiments that have been incomplete longer
// than the staleness threshold.
func (s *Service) ListStalledExperiments(_ context.Context, now time.Time) []domain.Experiment {
	var out []domain.Experiment
	for _, e := range s.store.ListExperiments() {
		if e.Stalled(now) {
			out = append(out, e)
		}
	}
	return out
}

// DropExperiment removes an experiment and its result payload.
func (s *Service) DropExperiment(ctx context.Context, id int64) (Result, error) {
	e, ok := s.store.GetExperiment(id)
	if !ok {
		return Result{}, domain.ErrNotFound{Entity: domain.EntityExperiment, ID: id}
	}
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteExperiment(id)
	})
	if err != nil {
		return res, err
	}
	if e.ResultKey != "" {
		if _, delErr := s.blobs.Delete(ctx, e.ResultKey); delErr != nil {
			s.logger.Warn("orphaned experiment result", "key", e.ResultKey, "err", delErr)
		}
	}
	return res, nil
}
