package core

import (
	"context"
	"sort"

	"biograph/pkg/bel"
	"biograph/pkg/domain"
	"biograph/pkg/query"
)

// CreateAssembly records an immutable named set of networks.
func (s *Service) CreateAssembly(ctx context.Context, assembly domain.Assembly) (domain.Assembly, Result, error) {
	var created domain.Assembly
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateAssembly(assembly)
		return err
	})
	return created, res, err
}

// GetAssembly returns the assembly with the given ID.
func (s *Service) GetAssembly(_ context.Context, id int64) (domain.Assembly, error) {
	a, ok := s.store.GetAssembly(id)
	if !ok {
		return domain.Assembly{}, domain.ErrNotFound{Entity: domain.EntityAssembly, ID: id}
	}
	return a, nil
}

// CreateQueryFromNetworks builds a fresh assembly over the given networks and
// records a root query with the provided seeding and pipeline.
func (s *Service) CreateQueryFromNetworks(ctx context.Context, networkIDs []int64, actorID *int64, public bool, seeding query.Seeding, pipeline query.Pipeline) (domain.Query, Result, error) {
	seedText, err := seeding.MarshalText()
	if err != nil {
		return domain.Query{}, Result{}, err
	}
	pipeText, err := pipeline.MarshalText()
	if err != nil {
		return domain.Query{}, Result{}, err
	}
	var created domain.Query
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		assembly, err := tx.CreateAssembly(domain.Assembly{UserID: actorID, NetworkIDs: networkIDs})
		if err != nil {
			return err
		}
		created, err = tx.CreateQuery(domain.Query{
			UserID:     actorID,
			Public:     public,
			AssemblyID: assembly.ID,
			Seeding:    seedText,
			Pipeline:   pipeText,
		})
		return err
	})
	return created, res, err
}

// CreateQueryFromProject records a root query over every network in the
// project.
func (s *Service) CreateQueryFromProject(ctx context.Context, projectID int64, actorID *int64, public bool) (domain.Query, Result, error) {
	project, ok := s.store.GetProject(projectID)
	if !ok {
		return domain.Query{}, Result{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: projectID}
	}
	return s.CreateQueryFromNetworks(ctx, project.NetworkIDs, actorID, public, query.Seeding{}, query.Pipeline{})
}

// CreateQueryFromSpec records a root query from a parsed specification.
func (s *Service) CreateQueryFromSpec(ctx context.Context, spec query.Spec, actorID *int64, public bool) (domain.Query, Result, error) {
	return s.CreateQueryFromNetworks(ctx, spec.NetworkIDs, actorID, public, spec.Seeding, spec.Pipeline)
}

// canReadQuery mirrors network visibility: public queries are open, owners
// and admins see their own.
func (s *Service) canReadQuery(q domain.Query, actorID *int64) bool {
	if q.Public {
		return true
	}
	if actorID == nil {
		return false
	}
	if q.UserID != nil && *q.UserID == *actorID {
		return true
	}
	return s.isAdmin(actorID)
}

// GetQuery returns the query if the actor may see it.
func (s *Service) GetQuery(_ context.Context, id int64, actorID *int64) (domain.Query, error) {
	q, ok := s.store.GetQuery(id)
	if !ok {
		return domain.Query{}, domain.ErrNotFound{Entity: domain.EntityQuery, ID: id}
	}
	if !s.canReadQuery(q, actorID) {
		return domain.Query{}, domain.ErrNotFound{Entity: domain.EntityQuery, ID: id}
	}
	return q, nil
}

// ListQueries returns the queries visible to the actor, newest first.
func (s *Service) ListQueries(_ context.Context, actorID *int64) []domain.Query {
	var out []domain.Query
	for _, q := range s.store.ListQueries() {
		if s.canReadQuery(q, actorID) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// QuerySpec reconstructs the runnable specification for a stored query.
func (s *Service) QuerySpec(_ context.Context, q domain.Query) (query.Spec, error) {
	assembly, ok := s.store.GetAssembly(q.AssemblyID)
	if !ok {
		return query.Spec{}, domain.ErrNotFound{Entity: domain.EntityAssembly, ID: q.AssemblyID}
	}
	seeding, err := query.ParseSeeding(q.Seeding)
	if err != nil {
		return query.Spec{}, err
	}
	pipeline, err := query.ParsePipeline(q.Pipeline)
	if err != nil {
		return query.Spec{}, err
	}
	return query.NewSpec(assembly.NetworkIDs, seeding, pipeline), nil
}

// RunQuery executes the stored query: merge the assembly networks, apply the
// seeding, then the pipeline. Deterministic for fixed inputs.
func (s *Service) RunQuery(ctx context.Context, id int64, actorID *int64) (*bel.Graph, error) {
	q, err := s.GetQuery(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	spec, err := s.QuerySpec(ctx, q)
	if err != nil {
		return nil, err
	}
	return spec.Run(ctx, s, s.registry)
}

// RunStoredQuery executes a query without a visibility check. Background
// workers run on behalf of the system, not an actor.
func (s *Service) RunStoredQuery(ctx context.Context, id int64) (*bel.Graph, error) {
	q, ok := s.store.GetQuery(id)
	if !ok {
		return nil, domain.ErrNotFound{Entity: domain.EntityQuery, ID: id}
	}
	spec, err := s.QuerySpec(ctx, q)
	if err != nil {
		return nil, err
	}
	return spec.Run(ctx, s, s.registry)
}

// ForkQueryWithStep creates a child query sharing the parent's assembly and
// seeding, with one more pipeline step appended. The parent is unchanged.
func (s *Service) ForkQueryWithStep(ctx context.Context, parentID int64, actorID *int64, name string, args []any, kwargs map[string]any) (domain.Query, Result, error) {
	parent, err := s.GetQuery(ctx, parentID, actorID)
	if err != nil {
		return domain.Query{}, Result{}, err
	}
	pipeline, err := query.ParsePipeline(parent.Pipeline)
	if err != nil {
		return domain.Query{}, Result{}, err
	}
	// Unknown names are tolerated here and rejected at run time.
	if !s.registry.HasTransform(name) {
		s.logger.Warn("appending unregistered transform", "query", parentID, "transform", name)
	}
	pipeText, err := pipeline.Append(name, args, kwargs).MarshalText()
	if err != nil {
		return domain.Query{}, Result{}, err
	}
	return s.forkQuery(ctx, parent, actorID, parent.Seeding, pipeText)
}

// ForkQuerySeedNeighbors creates a child query with a neighborhood seed
// operation appended to the parent's seeding. The parent is unchanged.
func (s *Service) ForkQuerySeedNeighbors(ctx context.Context, parentID int64, actorID *int64, nodes []bel.Node) (domain.Query, Result, error) {
	parent, err := s.GetQuery(ctx, parentID, actorID)
	if err != nil {
		return domain.Query{}, Result{}, err
	}
	seeding, err := query.ParseSeeding(parent.Seeding)
	if err != nil {
		return domain.Query{}, Result{}, err
	}
	seedText, err := seeding.WithNeighbors(nodes).MarshalText()
	if err != nil {
		return domain.Query{}, Result{}, err
	}
	return s.forkQuery(ctx, parent, actorID, seedText, parent.Pipeline)
}

func (s *Service) forkQuery(ctx context.Context, parent domain.Query, actorID *int64, seeding, pipeline string) (domain.Query, Result, error) {
	var created domain.Query
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		parentID := parent.ID
		var err error
		created, err = tx.CreateQuery(domain.Query{
			UserID:     actorID,
			Public:     parent.Public,
			AssemblyID: parent.AssemblyID,
			Seeding:    seeding,
			Pipeline:   pipeline,
			ParentID:   &parentID,
		})
		return err
	})
	return created, res, err
}

// DeleteQuery removes the query and its entire descendant subtree, including
// every experiment attached to any query in the subtree. Result payloads of
// deleted experiments are removed from the blob store afterwards.
func (s *Service) DeleteQuery(ctx context.Context, id int64) (Result, error) {
	if _, ok := s.store.GetQuery(id); !ok {
		return Result{}, domain.ErrNotFound{Entity: domain.EntityQuery, ID: id}
	}

	var orphanedKeys []string
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()

		children := make(map[int64][]int64)
		for _, q := range view.ListQueries() {
			if q.ParentID != nil {
				children[*q.ParentID] = append(children[*q.ParentID], q.ID)
			}
		}
		experimentsByQuery := make(map[int64][]domain.Experiment)
		for _, e := range view.ListExperiments() {
			experimentsByQuery[e.QueryID] = append(experimentsByQuery[e.QueryID], e)
		}

		// Post-order walk so children go before parents.
		var subtree []int64
		var walk func(int64)
		walk = func(queryID int64) {
			for _, child := range children[queryID] {
				walk(child)
			}
			subtree = append(subtree, queryID)
		}
		walk(id)

		for _, queryID := range subtree {
			for _, e := range experimentsByQuery[queryID] {
				if err := tx.DeleteExperiment(e.ID); err != nil {
					return err
				}
				if e.ResultKey != "" {
					orphanedKeys = append(orphanedKeys, e.ResultKey)
				}
			}
			if err := tx.DeleteQuery(queryID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	for _, key := range orphanedKeys {
		if _, delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned experiment result", "key", key, "err", delErr)
		}
	}
	return res, nil
}
