// Package experiments executes queued analysis jobs: experiment runs scoring
// a query's graph against an omics table, and report compilations turning an
// uploaded document into a stored network.
package experiments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"biograph/internal/adapters/dispatch"
	"biograph/internal/blob"
	"biograph/internal/core"
	"biograph/pkg/analysis"
	"biograph/pkg/bel"
	"biograph/pkg/domain"
)

// Runner handles the background task types the core service enqueues.
type Runner struct {
	service  *core.Service
	scorer   analysis.Scorer
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
	nowFn    func() time.Time
}

// NewRunner wires a runner over the service. A nil scorer defaults to the
// permutation scorer, a nil notifier to the log notifier, a nil metrics set
// to unregistered counters.
func NewRunner(service *core.Service, scorer analysis.Scorer, notifier Notifier, metrics *Metrics, logger *slog.Logger) *Runner {
	if scorer == nil {
		scorer = analysis.PermutationScorer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Runner{
		service:  service,
		scorer:   scorer,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		nowFn:    time.Now,
	}
}

// Register binds the runner's handlers to their task names.
func (r *Runner) Register(w *dispatch.Worker) {
	w.Register(core.TaskRunExperiment, r.HandleRunExperiment)
	w.Register(core.TaskCompileReport, r.HandleCompileReport)
}

// HandleRunExperiment executes one experiment: replay the query, load the
// omics mapping, score, store the encoded result, and complete the record. Any
// error marks the experiment failed; the stored state never ends up half-done.
func (r *Runner) HandleRunExperiment(ctx context.Context, task dispatch.Task) error {
	id, err := task.Int64Arg("experiment_id")
	if err != nil {
		return err
	}
	if _, _, err := r.service.StartExperiment(ctx, id); err != nil {
		return fmt.Errorf("start experiment %d: %w", id, err)
	}
	started := r.nowFn()

	experiment, err := r.service.GetExperiment(ctx, id)
	if err != nil {
		return err
	}
	key, runErr := r.runExperiment(ctx, experiment)
	if runErr != nil {
		failed, _, failErr := r.service.FailExperiment(ctx, id, runErr.Error())
		if failErr != nil {
			r.logger.Error("record experiment failure", "experiment", id, "err", failErr)
		} else {
			r.metrics.ExperimentsFailed.Inc()
			if err := r.notifier.ExperimentFailed(ctx, failed); err != nil {
				r.logger.Warn("notify experiment failure", "experiment", id, "err", err)
			}
		}
		return fmt.Errorf("run experiment %d: %w", id, runErr)
	}

	elapsed := r.nowFn().Sub(started)
	completed, _, err := r.service.CompleteExperiment(ctx, id, key, elapsed)
	if err != nil {
		return fmt.Errorf("complete experiment %d: %w", id, err)
	}
	r.metrics.ExperimentsCompleted.Inc()
	r.metrics.RunSeconds.Observe(elapsed.Seconds())
	if err := r.notifier.ExperimentCompleted(ctx, completed); err != nil {
		r.logger.Warn("notify experiment completion", "experiment", id, "err", err)
	}
	return nil
}

// runExperiment produces and stores the result payload, returning its blob
// key. The experiment's own ID seeds the scorer so reruns reproduce scores.
func (r *Runner) runExperiment(ctx context.Context, experiment domain.Experiment) (string, error) {
	graph, err := r.service.RunStoredQuery(ctx, experiment.QueryID)
	if err != nil {
		return "", fmt.Errorf("replay query %d: %w", experiment.QueryID, err)
	}
	values, err := r.service.OmicTable(ctx, experiment.OmicID)
	if err != nil {
		return "", fmt.Errorf("load omic %d: %w", experiment.OmicID, err)
	}
	omic, ok := r.service.Store().GetOmic(experiment.OmicID)
	if !ok {
		return "", domain.ErrNotFound{Entity: domain.EntityOmic, ID: experiment.OmicID}
	}

	scores := r.scorer(graph, values, experiment.Permutations, experiment.ID)
	payload, err := analysis.EncodeResult(analysis.Result{
		ExperimentID: experiment.ID,
		SourceName:   omic.SourceName,
		Permutations: experiment.Permutations,
		Scores:       scores,
	})
	if err != nil {
		return "", err
	}

	key := "results/" + uuid.NewString()
	if _, err := r.service.Blobs().Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "application/octet-stream"}); err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return key, nil
}

// HandleCompileReport ingests a report's uploaded document: decode the graph,
// insert it as a network, and close the report with the resulting counts.
func (r *Runner) HandleCompileReport(ctx context.Context, task dispatch.Task) error {
	id, err := task.Int64Arg("report_id")
	if err != nil {
		return err
	}
	if _, _, err := r.service.StartReport(ctx, id); err != nil {
		return fmt.Errorf("start report %d: %w", id, err)
	}
	started := r.nowFn()

	report, err := r.service.GetReport(ctx, id)
	if err != nil {
		return err
	}
	networkID, compileErr := r.compileReport(ctx, report)
	if compileErr != nil {
		if _, _, failErr := r.service.FailReport(ctx, id, compileErr.Error()); failErr != nil {
			r.logger.Error("record report failure", "report", id, "err", failErr)
		} else {
			r.metrics.ReportsFailed.Inc()
		}
		return fmt.Errorf("compile report %d: %w", id, compileErr)
	}

	elapsed := r.nowFn().Sub(started)
	if _, _, err := r.service.CompleteReport(ctx, id, networkID, 0, elapsed); err != nil {
		return fmt.Errorf("complete report %d: %w", id, err)
	}
	r.metrics.ReportsCompleted.Inc()
	r.metrics.RunSeconds.Observe(elapsed.Seconds())
	return nil
}

// compileReport decodes the uploaded document and inserts the network it
// describes.
func (r *Runner) compileReport(ctx context.Context, report domain.Report) (int64, error) {
	_, rc, err := r.service.Blobs().Get(ctx, report.BlobKey)
	if err != nil {
		return 0, fmt.Errorf("load report source: %w", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return 0, fmt.Errorf("read report source: %w", err)
	}
	graph, err := bel.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("parse report source: %w", err)
	}
	if graph.Name == "" {
		graph.Name = report.SourceName
	}
	network, _, err := r.service.InsertNetwork(ctx, graph, report.UserID, report.Public)
	if err != nil {
		return 0, err
	}
	return network.ID, nil
}
