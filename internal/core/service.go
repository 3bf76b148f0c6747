// Package core exposes the transactional domain service: network catalog,
// assemblies, stored queries with copy-on-write forks, edge curation, omics
// uploads, and the asynchronous experiment lifecycle.
package core

import (
	"context"
	"log/slog"
	"time"

	"biograph/internal/blob"
	"biograph/pkg/domain"
	"biograph/pkg/query"
)

// Task names understood by the background worker.
const (
	TaskRunExperiment = "run_experiment"
	TaskCompileReport = "compile_report"
)

// TaskDispatcher enqueues named background tasks. Implementations live in the
// dispatch adapter; the zero dependency here keeps core testable without a
// queue.
type TaskDispatcher interface {
	Enqueue(ctx context.Context, name string, args map[string]any) (string, error)
}

type noopDispatcher struct{}

func (noopDispatcher) Enqueue(context.Context, string, map[string]any) (string, error) {
	return "", nil
}

// Service exposes higher-level transactional operations for the core schema.
type Service struct {
	store    PersistentStore
	blobs    blob.Store
	registry *query.Registry
	tasks    TaskDispatcher
	logger   *slog.Logger
	nowFn    func() time.Time
}

// NewService constructs a service backed by the supplied store and blob
// backend. Registry, dispatcher, and logger may be nil; sensible defaults are
// substituted.
func NewService(store PersistentStore, blobs blob.Store, registry *query.Registry, tasks TaskDispatcher, logger *slog.Logger) *Service {
	if registry == nil {
		registry = query.DefaultRegistry()
	}
	if tasks == nil {
		tasks = noopDispatcher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		blobs:    blobs,
		registry: registry,
		tasks:    tasks,
		logger:   logger,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Blobs returns the configured blob backend.
func (s *Service) Blobs() blob.Store { return s.blobs }

// Registry returns the transform and seed registry used for query execution.
func (s *Service) Registry() *query.Registry { return s.registry }

// SetNowFunc overrides the time provider. Intended for tests.
func (s *Service) SetNowFunc(fn func() time.Time) { s.nowFn = fn }

// CreateUser persists a new user.
func (s *Service) CreateUser(ctx context.Context, user domain.User) (domain.User, Result, error) {
	var created domain.User
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateUser(user)
		return err
	})
	return created, res, err
}

// GetUser returns the user with the given ID.
func (s *Service) GetUser(_ context.Context, id int64) (domain.User, error) {
	u, ok := s.store.GetUser(id)
	if !ok {
		return domain.User{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: id}
	}
	return u, nil
}

// ListUsers returns all users.
func (s *Service) ListUsers(context.Context) []domain.User { return s.store.ListUsers() }

// CreateProject persists a new project.
func (s *Service) CreateProject(ctx context.Context, project domain.Project) (domain.Project, Result, error) {
	var created domain.Project
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateProject(project)
		return err
	})
	return created, res, err
}

// UpdateProject mutates a project using the provided mutator.
func (s *Service) UpdateProject(ctx context.Context, id int64, mutator func(*domain.Project) error) (domain.Project, Result, error) {
	var updated domain.Project
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateProject(id, mutator)
		return err
	})
	return updated, res, err
}

// DeleteProject removes a project record.
func (s *Service) DeleteProject(ctx context.Context, id int64) (Result, error) {
	return s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteProject(id)
	})
}

// GetProject returns the project with the given ID.
func (s *Service) GetProject(_ context.Context, id int64) (domain.Project, error) {
	p, ok := s.store.GetProject(id)
	if !ok {
		return domain.Project{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: id}
	}
	return p, nil
}

// ListProjects returns all projects.
func (s *Service) ListProjects(context.Context) []domain.Project { return s.store.ListProjects() }

// isAdmin reports whether the actor exists and carries the admin flag.
func (s *Service) isAdmin(actorID *int64) bool {
	if actorID == nil {
		return false
	}
	u, ok := s.store.GetUser(*actorID)
	return ok && u.Admin
}

// canReadNetwork reports whether the actor may see the network: public
// networks are open, owners and admins always see their own, and project
// members see project networks.
func (s *Service) canReadNetwork(n domain.Network, actorID *int64) bool {
	if n.Public {
		return true
	}
	if actorID == nil {
		return false
	}
	if n.UserID != nil && *n.UserID == *actorID {
		return true
	}
	if s.isAdmin(actorID) {
		return true
	}
	for _, project := range s.store.ListProjects() {
		if !project.HasUser(*actorID) {
			continue
		}
		for _, networkID := range project.NetworkIDs {
			if networkID == n.ID {
				return true
			}
		}
	}
	return false
}
