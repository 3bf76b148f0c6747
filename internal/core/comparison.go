package core

import (
	"context"
	"io"

	"biograph/pkg/analysis"
	"biograph/pkg/domain"
)

// ComparisonOptions control post-processing of a comparison table.
type ComparisonOptions struct {
	// Normalize rescales each column to [0, 1] via min-max.
	Normalize bool
	// Clusters, when positive, groups rows via seeded k-means.
	Clusters int
	// Seed drives the clustering initialization.
	Seed int64
}

// BuildComparison loads the stored results of the given experiments and builds
// a comparison table over the union of their scored nodes. Experiments without
// a stored result are rejected with a conflict.
func (s *Service) BuildComparison(ctx context.Context, experimentIDs []int64, opts ComparisonOptions) (*analysis.Table, error) {
	results := make([]analysis.Result, 0, len(experimentIDs))
	for _, id := range experimentIDs {
		e, ok := s.store.GetExperiment(id)
		if !ok {
			return nil, domain.ErrNotFound{Entity: domain.EntityExperiment, ID: id}
		}
		if e.Status != domain.ExperimentCompleted || e.ResultKey == "" {
			return nil, domain.ErrConflict{Entity: domain.EntityExperiment, Detail: "experiment has no stored result"}
		}
		_, rc, err := s.blobs.Get(ctx, e.ResultKey)
		if err != nil {
			return nil, domain.ErrTransient{Op: "load experiment result", Err: err}
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, domain.ErrTransient{Op: "read experiment result", Err: err}
		}
		result, err := analysis.DecodeResult(data)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	table := analysis.NewComparison(results)
	if opts.Normalize {
		table.Normalize()
	}
	if opts.Clusters > 0 {
		if err := table.Cluster(opts.Clusters, opts.Seed); err != nil {
			return nil, err
		}
	}
	return table, nil
}
