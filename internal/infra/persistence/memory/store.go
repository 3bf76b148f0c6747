// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"biograph/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// User aliases domain.User for in-memory persistence operations.
	User = domain.User
	// Project aliases domain.Project.
	Project = domain.Project
	// Network aliases domain.Network.
	Network = domain.Network
	// Edge aliases domain.Edge.
	Edge = domain.Edge
	// EdgeVote aliases domain.EdgeVote.
	EdgeVote = domain.EdgeVote
	// EdgeComment aliases domain.EdgeComment.
	EdgeComment = domain.EdgeComment
	// Assembly aliases domain.Assembly.
	Assembly = domain.Assembly
	// Query aliases domain.Query.
	Query = domain.Query
	// Omic aliases domain.Omic.
	Omic = domain.Omic
	// Experiment aliases domain.Experiment.
	Experiment = domain.Experiment
	// Report aliases domain.Report.
	Report = domain.Report
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	seq          int64
	users        map[int64]User
	projects     map[int64]Project
	networks     map[int64]Network
	edges        map[int64]Edge
	edgeVotes    map[int64]EdgeVote
	edgeComments map[int64]EdgeComment
	assemblies   map[int64]Assembly
	queries      map[int64]Query
	omics        map[int64]Omic
	experiments  map[int64]Experiment
	reports      map[int64]Report
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Seq          int64                 `json:"seq"`
	Users        map[int64]User        `json:"users"`
	Projects     map[int64]Project     `json:"projects"`
	Networks     map[int64]Network     `json:"networks"`
	Edges        map[int64]Edge        `json:"edges"`
	EdgeVotes    map[int64]EdgeVote    `json:"edge_votes"`
	EdgeComments map[int64]EdgeComment `json:"edge_comments"`
	Assemblies   map[int64]Assembly    `json:"assemblies"`
	Queries      map[int64]Query       `json:"queries"`
	Omics        map[int64]Omic        `json:"omics"`
	Experiments  map[int64]Experiment  `json:"experiments"`
	Reports      map[int64]Report      `json:"reports"`
}

func newMemoryState() memoryState {
	return memoryState{
		users:        make(map[int64]User),
		projects:     make(map[int64]Project),
		networks:     make(map[int64]Network),
		edges:        make(map[int64]Edge),
		edgeVotes:    make(map[int64]EdgeVote),
		edgeComments: make(map[int64]EdgeComment),
		assemblies:   make(map[int64]Assembly),
		queries:      make(map[int64]Query),
		omics:        make(map[int64]Omic),
		experiments:  make(map[int64]Experiment),
		reports:      make(map[int64]Report),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Seq:          state.seq,
		Users:        make(map[int64]User, len(state.users)),
		Projects:     make(map[int64]Project, len(state.projects)),
		Networks:     make(map[int64]Network, len(state.networks)),
		Edges:        make(map[int64]Edge, len(state.edges)),
		EdgeVotes:    make(map[int64]EdgeVote, len(state.edgeVotes)),
		EdgeComments: make(map[int64]EdgeComment, len(state.edgeComments)),
		Assemblies:   make(map[int64]Assembly, len(state.assemblies)),
		Queries:      make(map[int64]Query, len(state.queries)),
		Omics:        make(map[int64]Omic, len(state.omics)),
		Experiments:  make(map[int64]Experiment, len(state.experiments)),
		Reports:      make(map[int64]Report, len(state.reports)),
	}
	for k, v := range state.users {
		s.Users[k] = cloneUser(v)
	}
	for k, v := range state.projects {
		s.Projects[k] = cloneProject(v)
	}
	for k, v := range state.networks {
		s.Networks[k] = cloneNetwork(v)
	}
	for k, v := range state.edges {
		s.Edges[k] = cloneEdge(v)
	}
	for k, v := range state.edgeVotes {
		s.EdgeVotes[k] = cloneEdgeVote(v)
	}
	for k, v := range state.edgeComments {
		s.EdgeComments[k] = cloneEdgeComment(v)
	}
	for k, v := range state.assemblies {
		s.Assemblies[k] = cloneAssembly(v)
	}
	for k, v := range state.queries {
		s.Queries[k] = cloneQuery(v)
	}
	for k, v := range state.omics {
		s.Omics[k] = cloneOmic(v)
	}
	for k, v := range state.experiments {
		s.Experiments[k] = cloneExperiment(v)
	}
	for k, v := range state.reports {
		s.Reports[k] = cloneReport(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	state.seq = s.Seq
	for k, v := range s.Users {
		state.users[k] = cloneUser(v)
	}
	for k, v := range s.Projects {
		state.projects[k] = cloneProject(v)
	}
	for k, v := range s.Networks {
		state.networks[k] = cloneNetwork(v)
	}
	for k, v := range s.Edges {
		state.edges[k] = cloneEdge(v)
	}
	for k, v := range s.EdgeVotes {
		state.edgeVotes[k] = cloneEdgeVote(v)
	}
	for k, v := range s.EdgeComments {
		state.edgeComments[k] = cloneEdgeComment(v)
	}
	for k, v := range s.Assemblies {
		state.assemblies[k] = cloneAssembly(v)
	}
	for k, v := range s.Queries {
		state.queries[k] = cloneQuery(v)
	}
	for k, v := range s.Omics {
		state.omics[k] = cloneOmic(v)
	}
	for k, v := range s.Experiments {
		state.experiments[k] = cloneExperiment(v)
	}
	for k, v := range s.Reports {
		state.reports[k] = cloneReport(v)
	}
	return state
}

// migrateSnapshot normalizes snapshots loaded from durable mirrors: nil maps
// become empty, orphaned dependents are dropped, dangling parent links are
// cleared, and the sequence counter is advanced past every present ID.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Users == nil {
		snapshot.Users = map[int64]User{}
	}
	if snapshot.Projects == nil {
		snapshot.Projects = map[int64]Project{}
	}
	if snapshot.Networks == nil {
		snapshot.Networks = map[int64]Network{}
	}
	if snapshot.Edges == nil {
		snapshot.Edges = map[int64]Edge{}
	}
	if snapshot.EdgeVotes == nil {
		snapshot.EdgeVotes = map[int64]EdgeVote{}
	}
	if snapshot.EdgeComments == nil {
		snapshot.EdgeComments = map[int64]EdgeComment{}
	}
	if snapshot.Assemblies == nil {
		snapshot.Assemblies = map[int64]Assembly{}
	}
	if snapshot.Queries == nil {
		snapshot.Queries = map[int64]Query{}
	}
	if snapshot.Omics == nil {
		snapshot.Omics = map[int64]Omic{}
	}
	if snapshot.Experiments == nil {
		snapshot.Experiments = map[int64]Experiment{}
	}
	if snapshot.Reports == nil {
		snapshot.Reports = map[int64]Report{}
	}

	networkExists := func(id int64) bool {
		_, ok := snapshot.Networks[id]
		return ok
	}
	userExists := func(id int64) bool {
		_, ok := snapshot.Users[id]
		return ok
	}

	for id, edge := range snapshot.Edges {
		if !networkExists(edge.NetworkID) {
			delete(snapshot.Edges, id)
		}
	}
	edgeExists := func(id int64) bool {
		_, ok := snapshot.Edges[id]
		return ok
	}
	for id, vote := range snapshot.EdgeVotes {
		if !edgeExists(vote.EdgeID) || !userExists(vote.UserID) {
			delete(snapshot.EdgeVotes, id)
		}
	}
	for id, comment := range snapshot.EdgeComments {
		if !edgeExists(comment.EdgeID) || !userExists(comment.UserID) {
			delete(snapshot.EdgeComments, id)
		}
	}

	for id, assembly := range snapshot.Assemblies {
		if filtered, changed := filterIDs(assembly.NetworkIDs, networkExists); changed {
			assembly.NetworkIDs = filtered
			snapshot.Assemblies[id] = assembly
		}
	}
	assemblyExists := func(id int64) bool {
		_, ok := snapshot.Assemblies[id]
		return ok
	}
	for id, q := range snapshot.Queries {
		if !assemblyExists(q.AssemblyID) {
			delete(snapshot.Queries, id)
		}
	}
	queryExists := func(id int64) bool {
		_, ok := snapshot.Queries[id]
		return ok
	}
	for id, q := range snapshot.Queries {
		if q.ParentID != nil && !queryExists(*q.ParentID) {
			q.ParentID = nil
			snapshot.Queries[id] = q
		}
	}
	omicExists := func(id int64) bool {
		_, ok := snapshot.Omics[id]
		return ok
	}
	for id, experiment := range snapshot.Experiments {
		if !queryExists(experiment.QueryID) || !omicExists(experiment.OmicID) {
			delete(snapshot.Experiments, id)
		}
	}

	for id, project := range snapshot.Projects {
		updated := false
		if filtered, changed := filterIDs(project.UserIDs, userExists); changed {
			project.UserIDs = filtered
			updated = true
		}
		if filtered, changed := filterIDs(project.NetworkIDs, networkExists); changed {
			project.NetworkIDs = filtered
			updated = true
		}
		if updated {
			snapshot.Projects[id] = project
		}
	}

	maxID := snapshot.Seq
	bump := func(id int64) {
		if id > maxID {
			maxID = id
		}
	}
	for id := range snapshot.Users {
		bump(id)
	}
	for id := range snapshot.Projects {
		bump(id)
	}
	for id := range snapshot.Networks {
		bump(id)
	}
	for id := range snapshot.Edges {
		bump(id)
	}
	for id := range snapshot.EdgeVotes {
		bump(id)
	}
	for id := range snapshot.EdgeComments {
		bump(id)
	}
	for id := range snapshot.Assemblies {
		bump(id)
	}
	for id := range snapshot.Queries {
		bump(id)
	}
	for id := range snapshot.Omics {
		bump(id)
	}
	for id := range snapshot.Experiments {
		bump(id)
	}
	for id := range snapshot.Reports {
		bump(id)
	}
	snapshot.Seq = maxID

	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	cloned.seq = s.seq
	for k, v := range s.users {
		cloned.users[k] = cloneUser(v)
	}
	for k, v := range s.projects {
		cloned.projects[k] = cloneProject(v)
	}
	for k, v := range s.networks {
		cloned.networks[k] = cloneNetwork(v)
	}
	for k, v := range s.edges {
		cloned.edges[k] = cloneEdge(v)
	}
	for k, v := range s.edgeVotes {
		cloned.edgeVotes[k] = cloneEdgeVote(v)
	}
	for k, v := range s.edgeComments {
		cloned.edgeComments[k] = cloneEdgeComment(v)
	}
	for k, v := range s.assemblies {
		cloned.assemblies[k] = cloneAssembly(v)
	}
	for k, v := range s.queries {
		cloned.queries[k] = cloneQuery(v)
	}
	for k, v := range s.omics {
		cloned.omics[k] = cloneOmic(v)
	}
	for k, v := range s.experiments {
		cloned.experiments[k] = cloneExperiment(v)
	}
	for k, v := range s.reports {
		cloned.reports[k] = cloneReport(v)
	}
	return cloned
}

func cloneInt64Ptr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	t := *p
	return &t
}

func cloneUser(u User) User { return u }

func cloneProject(p Project) Project {
	cp := p
	cp.UserIDs = append([]int64(nil), p.UserIDs...)
	cp.NetworkIDs = append([]int64(nil), p.NetworkIDs...)
	return cp
}

func cloneNetwork(n Network) Network {
	cp := n
	cp.UserID = cloneInt64Ptr(n.UserID)
	return cp
}

func cloneEdge(e Edge) Edge { return e }

func cloneEdgeVote(v EdgeVote) EdgeVote {
	cp := v
	cp.Changed = cloneTimePtr(v.Changed)
	return cp
}

func cloneEdgeComment(c EdgeComment) EdgeComment { return c }

func cloneAssembly(a Assembly) Assembly {
	cp := a
	cp.UserID = cloneInt64Ptr(a.UserID)
	cp.NetworkIDs = append([]int64(nil), a.NetworkIDs...)
	return cp
}

func cloneQuery(q Query) Query {
	cp := q
	cp.UserID = cloneInt64Ptr(q.UserID)
	cp.ParentID = cloneInt64Ptr(q.ParentID)
	return cp
}

func cloneOmic(o Omic) Omic {
	cp := o
	cp.UserID = cloneInt64Ptr(o.UserID)
	return cp
}

func cloneExperiment(e Experiment) Experiment {
	cp := e
	cp.UserID = cloneInt64Ptr(e.UserID)
	return cp
}

func cloneReport(r Report) Report {
	cp := r
	cp.UserID = cloneInt64Ptr(r.UserID)
	cp.NetworkID = cloneInt64Ptr(r.NetworkID)
	return cp
}

func containsID(values []int64, id int64) bool {
	for _, existing := range values {
		if existing == id {
			return true
		}
	}
	return false
}

func filterIDs(values []int64, exists func(int64) bool) ([]int64, bool) {
	if len(values) == 0 {
		return nil, false
	}
	out := make([]int64, 0, len(values))
	seen := make(map[int64]struct{}, len(values))
	changed := false
	for _, v := range values {
		if _, ok := seen[v]; ok {
			changed = true
			continue
		}
		seen[v] = struct{}{}
		if !exists(v) {
			changed = true
			continue
		}
		out = append(out, v)
	}
	if !changed && len(out) == len(values) {
		return values, false
	}
	return out, true
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetUser returns the user with the given ID.
func (s *Store) GetUser(id int64) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.users[id]
	if !ok {
		return User{}, false
	}
	return cloneUser(u), true
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.state.users))
	for _, u := range s.state.users {
		out = append(out, cloneUser(u))
	}
	sortByID(out, func(u User) int64 { return u.ID })
	return out
}

// GetProject returns the project with the given ID.
func (s *Store) GetProject(id int64) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// ListProjects returns all projects ordered by ID.
func (s *Store) ListProjects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.state.projects))
	for _, p := range s.state.projects {
		out = append(out, cloneProject(p))
	}
	sortByID(out, func(p Project) int64 { return p.ID })
	return out
}

// GetNetwork returns the network with the given ID.
func (s *Store) GetNetwork(id int64) (Network, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.state.networks[id]
	if !ok {
		return Network{}, false
	}
	return cloneNetwork(n), true
}

// ListNetworks returns all networks ordered by ID.
func (s *Store) ListNetworks() []Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Network, 0, len(s.state.networks))
	for _, n := range s.state.networks {
		out = append(out, cloneNetwork(n))
	}
	sortByID(out, func(n Network) int64 { return n.ID })
	return out
}

// ListEdges returns all edges ordered by ID.
func (s *Store) ListEdges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Edge, 0, len(s.state.edges))
	for _, e := range s.state.edges {
		out = append(out, cloneEdge(e))
	}
	sortByID(out, func(e Edge) int64 { return e.ID })
	return out
}

// ListEdgeVotes returns all edge votes ordered by ID.
func (s *Store) ListEdgeVotes() []EdgeVote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EdgeVote, 0, len(s.state.edgeVotes))
	for _, v := range s.state.edgeVotes {
		out = append(out, cloneEdgeVote(v))
	}
	sortByID(out, func(v EdgeVote) int64 { return v.ID })
	return out
}

// ListEdgeComments returns all edge comments ordered by ID.
func (s *Store) ListEdgeComments() []EdgeComment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EdgeComment, 0, len(s.state.edgeComments))
	for _, c := range s.state.edgeComments {
		out = append(out, cloneEdgeComment(c))
	}
	sortByID(out, func(c EdgeComment) int64 { return c.ID })
	return out
}

// GetAssembly returns the assembly with the given ID.
func (s *Store) GetAssembly(id int64) (Assembly, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.assemblies[id]
	if !ok {
		return Assembly{}, false
	}
	return cloneAssembly(a), true
}

// ListAssemblies returns all assemblies ordered by ID.
func (s *Store) ListAssemblies() []Assembly {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Assembly, 0, len(s.state.assemblies))
	for _, a := range s.state.assemblies {
		out = append(out, cloneAssembly(a))
	}
	sortByID(out, func(a Assembly) int64 { return a.ID })
	return out
}

// GetQuery returns the query with the given ID.
func (s *Store) GetQuery(id int64) (Query, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.state.queries[id]
	if !ok {
		return Query{}, false
	}
	return cloneQuery(q), true
}

// ListQueries returns all queries ordered by ID.
func (s *Store) ListQueries() []Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Query, 0, len(s.state.queries))
	for _, q := range s.state.queries {
		out = append(out, cloneQuery(q))
	}
	sortByID(out, func(q Query) int64 { return q.ID })
	return out
}

// GetOmic returns the omic with the given ID.
func (s *Store) GetOmic(id int64) (Omic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.omics[id]
	if !ok {
		return Omic{}, false
	}
	return cloneOmic(o), true
}

// ListOmics returns all omics ordered by ID.
func (s *Store) ListOmics() []Omic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Omic, 0, len(s.state.omics))
	for _, o := range s.state.omics {
		out = append(out, cloneOmic(o))
	}
	sortByID(out, func(o Omic) int64 { return o.ID })
	return out
}

// GetExperiment returns the experiment with the given ID.
func (s *Store) GetExperiment(id int64) (Experiment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.experiments[id]
	if !ok {
		return Experiment{}, false
	}
	return cloneExperiment(e), true
}

// ListExperiments returns all experiments ordered by ID.
func (s *Store) ListExperiments() []Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Experiment, 0, len(s.state.experiments))
	for _, e := range s.state.experiments {
		out = append(out, cloneExperiment(e))
	}
	sortByID(out, func(e Experiment) int64 { return e.ID })
	return out
}

// GetReport returns the report with the given ID.
func (s *Store) GetReport(id int64) (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.reports[id]
	if !ok {
		return Report{}, false
	}
	return cloneReport(r), true
}

// ListReports returns all reports ordered by ID.
func (s *Store) ListReports() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Report, 0, len(s.state.reports))
	for _, r := range s.state.reports {
		out = append(out, cloneReport(r))
	}
	sortByID(out, func(r Report) int64 { return r.ID })
	return out
}

func sortByID[T any](items []T, id func(T) int64) {
	sort.Slice(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}
