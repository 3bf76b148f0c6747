package memory

import (
	"fmt"
	"time"

	"biograph/pkg/domain"
)

// transaction represents a mutation set applied to the store state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListUsers returns all users within the transaction snapshot.
func (v transactionView) ListUsers() []User {
	out := make([]User, 0, len(v.state.users))
	for _, u := range v.state.users {
		out = append(out, cloneUser(u))
	}
	sortByID(out, func(u User) int64 { return u.ID })
	return out
}

// ListProjects returns all projects in the snapshot.
func (v transactionView) ListProjects() []Project {
	out := make([]Project, 0, len(v.state.projects))
	for _, p := range v.state.projects {
		out = append(out, cloneProject(p))
	}
	sortByID(out, func(p Project) int64 { return p.ID })
	return out
}

// ListNetworks returns all networks in the snapshot.
func (v transactionView) ListNetworks() []Network {
	out := make([]Network, 0, len(v.state.networks))
	for _, n := range v.state.networks {
		out = append(out, cloneNetwork(n))
	}
	sortByID(out, func(n Network) int64 { return n.ID })
	return out
}

// ListEdges returns all edges in the snapshot.
func (v transactionView) ListEdges() []Edge {
	out := make([]Edge, 0, len(v.state.edges))
	for _, e := range v.state.edges {
		out = append(out, cloneEdge(e))
	}
	sortByID(out, func(e Edge) int64 { return e.ID })
	return out
}

// ListEdgeVotes returns all edge votes in the snapshot.
func (v transactionView) ListEdgeVotes() []EdgeVote {
	out := make([]EdgeVote, 0, len(v.state.edgeVotes))
	for _, vote := range v.state.edgeVotes {
		out = append(out, cloneEdgeVote(vote))
	}
	sortByID(out, func(vote EdgeVote) int64 { return vote.ID })
	return out
}

// ListEdgeComments returns all edge comments in the snapshot.
func (v transactionView) ListEdgeComments() []EdgeComment {
	out := make([]EdgeComment, 0, len(v.state.edgeComments))
	for _, c := range v.state.edgeComments {
		out = append(out, cloneEdgeComment(c))
	}
	sortByID(out, func(c EdgeComment) int64 { return c.ID })
	return out
}

// ListAssemblies returns all assemblies in the snapshot.
func (v transactionView) ListAssemblies() []Assembly {
	out := make([]Assembly, 0, len(v.state.assemblies))
	for _, a := range v.state.assemblies {
		out = append(out, cloneAssembly(a))
	}
	sortByID(out, func(a Assembly) int64 { return a.ID })
	return out
}

// ListQueries returns all queries in the snapshot.
func (v transactionView) ListQueries() []Query {
	out := make([]Query, 0, len(v.state.queries))
	for _, q := range v.state.queries {
		out = append(out, cloneQuery(q))
	}
	sortByID(out, func(q Query) int64 { return q.ID })
	return out
}

// ListOmics returns all omics in the snapshot.
func (v transactionView) ListOmics() []Omic {
	out := make([]Omic, 0, len(v.state.omics))
	for _, o := range v.state.omics {
		out = append(out, cloneOmic(o))
	}
	sortByID(out, func(o Omic) int64 { return o.ID })
	return out
}

// ListExperiments returns all experiments in the snapshot.
func (v transactionView) ListExperiments() []Experiment {
	out := make([]Experiment, 0, len(v.state.experiments))
	for _, e := range v.state.experiments {
		out = append(out, cloneExperiment(e))
	}
	sortByID(out, func(e Experiment) int64 { return e.ID })
	return out
}

// ListReports returns all reports in the snapshot.
func (v transactionView) ListReports() []Report {
	out := make([]Report, 0, len(v.state.reports))
	for _, r := range v.state.reports {
		out = append(out, cloneReport(r))
	}
	sortByID(out, func(r Report) int64 { return r.ID })
	return out
}

// FindUser retrieves a user by ID from the snapshot.
func (v transactionView) FindUser(id int64) (User, bool) {
	u, ok := v.state.users[id]
	if !ok {
		return User{}, false
	}
	return cloneUser(u), true
}

// FindProject retrieves a project by ID from the snapshot.
func (v transactionView) FindProject(id int64) (Project, bool) {
	p, ok := v.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// FindNetwork retrieves a network by ID from the snapshot.
func (v transactionView) FindNetwork(id int64) (Network, bool) {
	n, ok := v.state.networks[id]
	if !ok {
		return Network{}, false
	}
	return cloneNetwork(n), true
}

// FindEdge retrieves an edge by ID from the snapshot.
func (v transactionView) FindEdge(id int64) (Edge, bool) {
	e, ok := v.state.edges[id]
	if !ok {
		return Edge{}, false
	}
	return cloneEdge(e), true
}

// FindAssembly retrieves an assembly by ID from the snapshot.
func (v transactionView) FindAssembly(id int64) (Assembly, bool) {
	a, ok := v.state.assemblies[id]
	if !ok {
		return Assembly{}, false
	}
	return cloneAssembly(a), true
}

// FindQuery retrieves a query by ID from the snapshot.
func (v transactionView) FindQuery(id int64) (Query, bool) {
	q, ok := v.state.queries[id]
	if !ok {
		return Query{}, false
	}
	return cloneQuery(q), true
}

// FindOmic retrieves an omic by ID from the snapshot.
func (v transactionView) FindOmic(id int64) (Omic, bool) {
	o, ok := v.state.omics[id]
	if !ok {
		return Omic{}, false
	}
	return cloneOmic(o), true
}

// FindExperiment retrieves an experiment by ID from the snapshot.
func (v transactionView) FindExperiment(id int64) (Experiment, bool) {
	e, ok := v.state.experiments[id]
	if !ok {
		return Experiment{}, false
	}
	return cloneExperiment(e), true
}

// FindReport retrieves a report by ID from the snapshot.
func (v transactionView) FindReport(id int64) (Report, bool) {
	r, ok := v.state.reports[id]
	if !ok {
		return Report{}, false
	}
	return cloneReport(r), true
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) newID() int64 {
	tx.state.seq++
	return tx.state.seq
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindNetwork exposes network lookup within the transaction scope.
func (tx *transaction) FindNetwork(id int64) (Network, bool) {
	n, ok := tx.state.networks[id]
	if !ok {
		return Network{}, false
	}
	return cloneNetwork(n), true
}

// FindQuery exposes query lookup within the transaction scope.
func (tx *transaction) FindQuery(id int64) (Query, bool) {
	q, ok := tx.state.queries[id]
	if !ok {
		return Query{}, false
	}
	return cloneQuery(q), true
}

// FindAssembly exposes assembly lookup within the transaction scope.
func (tx *transaction) FindAssembly(id int64) (Assembly, bool) {
	a, ok := tx.state.assemblies[id]
	if !ok {
		return Assembly{}, false
	}
	return cloneAssembly(a), true
}

// CreateUser stores a new user within the transaction.
func (tx *transaction) CreateUser(u User) (User, error) {
	if u.ID == 0 {
		u.ID = tx.newID()
	}
	if _, exists := tx.state.users[u.ID]; exists {
		return User{}, domain.ErrConflict{Entity: domain.EntityUser, Detail: fmt.Sprintf("id %d already exists", u.ID)}
	}
	for _, existing := range tx.state.users {
		if existing.Email == u.Email {
			return User{}, domain.ErrConflict{Entity: domain.EntityUser, Detail: fmt.Sprintf("email %q already registered", u.Email)}
		}
	}
	u.CreatedAt = tx.now
	tx.state.users[u.ID] = cloneUser(u)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: cloneUser(u)})
	return cloneUser(u), nil
}

// UpdateUser mutates a user using the provided mutator function.
func (tx *transaction) UpdateUser(id int64, mutator func(*User) error) (User, error) {
	current, ok := tx.state.users[id]
	if !ok {
		return User{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: id}
	}
	before := cloneUser(current)
	if err := mutator(&current); err != nil {
		return User{}, err
	}
	current.ID = id
	tx.state.users[id] = cloneUser(current)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: before, After: cloneUser(current)})
	return cloneUser(current), nil
}

// DeleteUser removes a user. Votes, comments, and project memberships must be
// cleared first.
func (tx *transaction) DeleteUser(id int64) error {
	current, ok := tx.state.users[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityUser, ID: id}
	}
	for _, vote := range tx.state.edgeVotes {
		if vote.UserID == id {
			return domain.ErrConflict{Entity: domain.EntityUser, Detail: fmt.Sprintf("user %d still referenced by vote %d", id, vote.ID)}
		}
	}
	for _, comment := range tx.state.edgeComments {
		if comment.UserID == id {
			return domain.ErrConflict{Entity: domain.EntityUser, Detail: fmt.Sprintf("user %d still referenced by comment %d", id, comment.ID)}
		}
	}
	for _, project := range tx.state.projects {
		if containsID(project.UserIDs, id) {
			return domain.ErrConflict{Entity: domain.EntityUser, Detail: fmt.Sprintf("user %d still member of project %d", id, project.ID)}
		}
	}
	delete(tx.state.users, id)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionDelete, Before: cloneUser(current)})
	return nil
}

// CreateProject stores a new project.
func (tx *transaction) CreateProject(p Project) (Project, error) {
	if p.ID == 0 {
		p.ID = tx.newID()
	}
	if _, exists := tx.state.projects[p.ID]; exists {
		return Project{}, domain.ErrConflict{Entity: domain.EntityProject, Detail: fmt.Sprintf("id %d already exists", p.ID)}
	}
	for _, userID := range p.UserIDs {
		if _, ok := tx.state.users[userID]; !ok {
			return Project{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: userID}
		}
	}
	for _, networkID := range p.NetworkIDs {
		if _, ok := tx.state.networks[networkID]; !ok {
			return Project{}, domain.ErrNotFound{Entity: domain.EntityNetwork, ID: networkID}
		}
	}
	p.CreatedAt = tx.now
	tx.state.projects[p.ID] = cloneProject(p)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionCreate, After: cloneProject(p)})
	return cloneProject(p), nil
}

// UpdateProject mutates an existing project.
func (tx *transaction) UpdateProject(id int64, mutator func(*Project) error) (Project, error) {
	current, ok := tx.state.projects[id]
	if !ok {
		return Project{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: id}
	}
	before := cloneProject(current)
	if err := mutator(&current); err != nil {
		return Project{}, err
	}
	for _, userID := range current.UserIDs {
		if _, ok := tx.state.users[userID]; !ok {
			return Project{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: userID}
		}
	}
	for _, networkID := range current.NetworkIDs {
		if _, ok := tx.state.networks[networkID]; !ok {
			return Project{}, domain.ErrNotFound{Entity: domain.EntityNetwork, ID: networkID}
		}
	}
	current.ID = id
	tx.state.projects[id] = cloneProject(current)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Before: before, After: cloneProject(current)})
	return cloneProject(current), nil
}

// DeleteProject removes a project from state.
func (tx *transaction) DeleteProject(id int64) error {
	current, ok := tx.state.projects[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityProject, ID: id}
	}
	delete(tx.state.projects, id)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionDelete, Before: cloneProject(current)})
	return nil
}

// CreateNetwork stores new network metadata. The (name, version) pair is
// unique across the store.
func (tx *transaction) CreateNetwork(n Network) (Network, error) {
	if n.ID == 0 {
		n.ID = tx.newID()
	}
	if _, exists := tx.state.networks[n.ID]; exists {
		return Network{}, domain.ErrConflict{Entity: domain.EntityNetwork, Detail: fmt.Sprintf("id %d already exists", n.ID)}
	}
	for _, existing := range tx.state.networks {
		if existing.Name == n.Name && existing.Version == n.Version {
			return Network{}, domain.ErrConflict{Entity: domain.EntityNetwork, Detail: fmt.Sprintf("%s:%s already stored as network %d", n.Name, n.Version, existing.ID)}
		}
	}
	if n.UserID != nil {
		if _, ok := tx.state.users[*n.UserID]; !ok {
			return Network{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: *n.UserID}
		}
	}
	n.CreatedAt = tx.now
	tx.state.networks[n.ID] = cloneNetwork(n)
	tx.recordChange(Change{Entity: domain.EntityNetwork, Action: domain.ActionCreate, After: cloneNetwork(n)})
	return cloneNetwork(n), nil
}

// UpdateNetwork mutates an existing network.
func (tx *transaction) UpdateNetwork(id int64, mutator func(*Network) error) (Network, error) {
	current, ok := tx.state.networks[id]
	if !ok {
		return Network{}, domain.ErrNotFound{Entity: domain.EntityNetwork, ID: id}
	}
	before := cloneNetwork(current)
	if err := mutator(&current); err != nil {
		return Network{}, err
	}
	for otherID, existing := range tx.state.networks {
		if otherID != id && existing.Name == current.Name && existing.Version == current.Version {
			return Network{}, domain.ErrConflict{Entity: domain.EntityNetwork, Detail: fmt.Sprintf("%s:%s already stored as network %d", current.Name, current.Version, otherID)}
		}
	}
	current.ID = id
	tx.state.networks[id] = cloneNetwork(current)
	tx.recordChange(Change{Entity: domain.EntityNetwork, Action: domain.ActionUpdate, Before: before, After: cloneNetwork(current)})
	return cloneNetwork(current), nil
}

// DeleteNetwork removes a network and cascades to its edges (and their votes
// and comments). Networks referenced by an assembly or project cannot be
// deleted.
func (tx *transaction) DeleteNetwork(id int64) error {
	current, ok := tx.state.networks[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityNetwork, ID: id}
	}
	for _, assembly := range tx.state.assemblies {
		if containsID(assembly.NetworkIDs, id) {
			return domain.ErrConflict{Entity: domain.EntityNetwork, Detail: fmt.Sprintf("network %d still referenced by assembly %d", id, assembly.ID)}
		}
	}
	for _, project := range tx.state.projects {
		if containsID(project.NetworkIDs, id) {
			return domain.ErrConflict{Entity: domain.EntityNetwork, Detail: fmt.Sprintf("network %d still referenced by project %d", id, project.ID)}
		}
	}
	for edgeID, edge := range tx.state.edges {
		if edge.NetworkID != id {
			continue
		}
		if err := tx.DeleteEdge(edgeID); err != nil {
			return err
		}
	}
	delete(tx.state.networks, id)
	tx.recordChange(Change{Entity: domain.EntityNetwork, Action: domain.ActionDelete, Before: cloneNetwork(current)})
	return nil
}

// CreateEdge stores an edge materialized from a network.
func (tx *transaction) CreateEdge(e Edge) (Edge, error) {
	if e.ID == 0 {
		e.ID = tx.newID()
	}
	if _, exists := tx.state.edges[e.ID]; exists {
		return Edge{}, domain.ErrConflict{Entity: domain.EntityEdge, Detail: fmt.Sprintf("id %d already exists", e.ID)}
	}
	if _, ok := tx.state.networks[e.NetworkID]; !ok {
		return Edge{}, domain.ErrNotFound{Entity: domain.EntityNetwork, ID: e.NetworkID}
	}
	e.CreatedAt = tx.now
	tx.state.edges[e.ID] = cloneEdge(e)
	tx.recordChange(Change{Entity: domain.EntityEdge, Action: domain.ActionCreate, After: cloneEdge(e)})
	return cloneEdge(e), nil
}

// DeleteEdge removes an edge and cascades to its votes and comments.
func (tx *transaction) DeleteEdge(id int64) error {
	current, ok := tx.state.edges[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityEdge, ID: id}
	}
	for voteID, vote := range tx.state.edgeVotes {
		if vote.EdgeID != id {
			continue
		}
		delete(tx.state.edgeVotes, voteID)
		tx.recordChange(Change{Entity: domain.EntityEdgeVote, Action: domain.ActionDelete, Before: cloneEdgeVote(vote)})
	}
	for commentID, comment := range tx.state.edgeComments {
		if comment.EdgeID != id {
			continue
		}
		delete(tx.state.edgeComments, commentID)
		tx.recordChange(Change{Entity: domain.EntityEdgeComment, Action: domain.ActionDelete, Before: cloneEdgeComment(comment)})
	}
	delete(tx.state.edges, id)
	tx.recordChange(Change{Entity: domain.EntityEdge, Action: domain.ActionDelete, Before: cloneEdge(current)})
	return nil
}

// CreateEdgeVote stores a vote. At most one vote exists per (edge, user).
func (tx *transaction) CreateEdgeVote(v EdgeVote) (EdgeVote, error) {
	if v.ID == 0 {
		v.ID = tx.newID()
	}
	if _, exists := tx.state.edgeVotes[v.ID]; exists {
		return EdgeVote{}, domain.ErrConflict{Entity: domain.EntityEdgeVote, Detail: fmt.Sprintf("id %d already exists", v.ID)}
	}
	if _, ok := tx.state.edges[v.EdgeID]; !ok {
		return EdgeVote{}, domain.ErrNotFound{Entity: domain.EntityEdge, ID: v.EdgeID}
	}
	if _, ok := tx.state.users[v.UserID]; !ok {
		return EdgeVote{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: v.UserID}
	}
	for _, existing := range tx.state.edgeVotes {
		if existing.EdgeID == v.EdgeID && existing.UserID == v.UserID {
			return EdgeVote{}, domain.ErrConflict{Entity: domain.EntityEdgeVote, Detail: fmt.Sprintf("user %d already voted on edge %d", v.UserID, v.EdgeID)}
		}
	}
	v.CreatedAt = tx.now
	v.Changed = nil
	tx.state.edgeVotes[v.ID] = cloneEdgeVote(v)
	tx.recordChange(Change{Entity: domain.EntityEdgeVote, Action: domain.ActionCreate, After: cloneEdgeVote(v)})
	return cloneEdgeVote(v), nil
}

// UpdateEdgeVote mutates an existing vote.
func (tx *transaction) UpdateEdgeVote(id int64, mutator func(*EdgeVote) error) (EdgeVote, error) {
	current, ok := tx.state.edgeVotes[id]
	if !ok {
		return EdgeVote{}, domain.ErrNotFound{Entity: domain.EntityEdgeVote, ID: id}
	}
	before := cloneEdgeVote(current)
	if err := mutator(&current); err != nil {
		return EdgeVote{}, err
	}
	current.ID = id
	current.EdgeID = before.EdgeID
	current.UserID = before.UserID
	tx.state.edgeVotes[id] = cloneEdgeVote(current)
	tx.recordChange(Change{Entity: domain.EntityEdgeVote, Action: domain.ActionUpdate, Before: before, After: cloneEdgeVote(current)})
	return cloneEdgeVote(current), nil
}

// DeleteEdgeVote removes a vote from state.
func (tx *transaction) DeleteEdgeVote(id int64) error {
	current, ok := tx.state.edgeVotes[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityEdgeVote, ID: id}
	}
	delete(tx.state.edgeVotes, id)
	tx.recordChange(Change{Entity: domain.EntityEdgeVote, Action: domain.ActionDelete, Before: cloneEdgeVote(current)})
	return nil
}

// CreateEdgeComment stores a comment attached to an edge.
func (tx *transaction) CreateEdgeComment(c EdgeComment) (EdgeComment, error) {
	if c.ID == 0 {
		c.ID = tx.newID()
	}
	if _, exists := tx.state.edgeComments[c.ID]; exists {
		return EdgeComment{}, domain.ErrConflict{Entity: domain.EntityEdgeComment, Detail: fmt.Sprintf("id %d already exists", c.ID)}
	}
	if _, ok := tx.state.edges[c.EdgeID]; !ok {
		return EdgeComment{}, domain.ErrNotFound{Entity: domain.EntityEdge, ID: c.EdgeID}
	}
	if _, ok := tx.state.users[c.UserID]; !ok {
		return EdgeComment{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: c.UserID}
	}
	c.CreatedAt = tx.now
	tx.state.edgeComments[c.ID] = cloneEdgeComment(c)
	tx.recordChange(Change{Entity: domain.EntityEdgeComment, Action: domain.ActionCreate, After: cloneEdgeComment(c)})
	return cloneEdgeComment(c), nil
}

// DeleteEdgeComment removes a comment from state.
func (tx *transaction) DeleteEdgeComment(id int64) error {
	current, ok := tx.state.edgeComments[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityEdgeComment, ID: id}
	}
	delete(tx.state.edgeComments, id)
	tx.recordChange(Change{Entity: domain.EntityEdgeComment, Action: domain.ActionDelete, Before: cloneEdgeComment(current)})
	return nil
}

// CreateAssembly stores a new assembly. Every referenced network must exist;
// membership is immutable afterwards.
func (tx *transaction) CreateAssembly(a Assembly) (Assembly, error) {
	if a.ID == 0 {
		a.ID = tx.newID()
	}
	if _, exists := tx.state.assemblies[a.ID]; exists {
		return Assembly{}, domain.ErrConflict{Entity: domain.EntityAssembly, Detail: fmt.Sprintf("id %d already exists", a.ID)}
	}
	if len(a.NetworkIDs) == 0 {
		return Assembly{}, domain.ErrConflict{Entity: domain.EntityAssembly, Detail: "assembly requires at least one network"}
	}
	for _, networkID := range a.NetworkIDs {
		if _, ok := tx.state.networks[networkID]; !ok {
			return Assembly{}, domain.ErrNotFound{Entity: domain.EntityNetwork, ID: networkID}
		}
	}
	a.CreatedAt = tx.now
	tx.state.assemblies[a.ID] = cloneAssembly(a)
	tx.recordChange(Change{Entity: domain.EntityAssembly, Action: domain.ActionCreate, After: cloneAssembly(a)})
	return cloneAssembly(a), nil
}

// DeleteAssembly removes an assembly. Queries must be deleted first.
func (tx *transaction) DeleteAssembly(id int64) error {
	current, ok := tx.state.assemblies[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityAssembly, ID: id}
	}
	for _, q := range tx.state.queries {
		if q.AssemblyID == id {
			return domain.ErrConflict{Entity: domain.EntityAssembly, Detail: fmt.Sprintf("assembly %d still referenced by query %d", id, q.ID)}
		}
	}
	delete(tx.state.assemblies, id)
	tx.recordChange(Change{Entity: domain.EntityAssembly, Action: domain.ActionDelete, Before: cloneAssembly(current)})
	return nil
}

// CreateQuery stores a new query referencing an existing assembly and,
// optionally, an existing parent query.
func (tx *transaction) CreateQuery(q Query) (Query, error) {
	if q.ID == 0 {
		q.ID = tx.newID()
	}
	if _, exists := tx.state.queries[q.ID]; exists {
		return Query{}, domain.ErrConflict{Entity: domain.EntityQuery, Detail: fmt.Sprintf("id %d already exists", q.ID)}
	}
	if _, ok := tx.state.assemblies[q.AssemblyID]; !ok {
		return Query{}, domain.ErrNotFound{Entity: domain.EntityAssembly, ID: q.AssemblyID}
	}
	if q.ParentID != nil {
		if _, ok := tx.state.queries[*q.ParentID]; !ok {
			return Query{}, domain.ErrNotFound{Entity: domain.EntityQuery, ID: *q.ParentID}
		}
	}
	q.CreatedAt = tx.now
	tx.state.queries[q.ID] = cloneQuery(q)
	tx.recordChange(Change{Entity: domain.EntityQuery, Action: domain.ActionCreate, After: cloneQuery(q)})
	return cloneQuery(q), nil
}

// UpdateQuery mutates an existing query. Assembly and parent links are fixed
// at creation.
func (tx *transaction) UpdateQuery(id int64, mutator func(*Query) error) (Query, error) {
	current, ok := tx.state.queries[id]
	if !ok {
		return Query{}, domain.ErrNotFound{Entity: domain.EntityQuery, ID: id}
	}
	before := cloneQuery(current)
	if err := mutator(&current); err != nil {
		return Query{}, err
	}
	current.ID = id
	current.AssemblyID = before.AssemblyID
	current.ParentID = before.ParentID
	tx.state.queries[id] = cloneQuery(current)
	tx.recordChange(Change{Entity: domain.EntityQuery, Action: domain.ActionUpdate, Before: before, After: cloneQuery(current)})
	return cloneQuery(current), nil
}

// DeleteQuery removes a single query. Child queries and experiments must be
// removed first; subtree removal is orchestrated by the service layer.
func (tx *transaction) DeleteQuery(id int64) error {
	current, ok := tx.state.queries[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityQuery, ID: id}
	}
	for _, q := range tx.state.queries {
		if q.ParentID != nil && *q.ParentID == id {
			return domain.ErrConflict{Entity: domain.EntityQuery, Detail: fmt.Sprintf("query %d still referenced by child query %d", id, q.ID)}
		}
	}
	for _, e := range tx.state.experiments {
		if e.QueryID == id {
			return domain.ErrConflict{Entity: domain.EntityQuery, Detail: fmt.Sprintf("query %d still referenced by experiment %d", id, e.ID)}
		}
	}
	delete(tx.state.queries, id)
	tx.recordChange(Change{Entity: domain.EntityQuery, Action: domain.ActionDelete, Before: cloneQuery(current)})
	return nil
}

// CreateOmic stores a new omics data set record.
func (tx *transaction) CreateOmic(o Omic) (Omic, error) {
	if o.ID == 0 {
		o.ID = tx.newID()
	}
	if _, exists := tx.state.omics[o.ID]; exists {
		return Omic{}, domain.ErrConflict{Entity: domain.EntityOmic, Detail: fmt.Sprintf("id %d already exists", o.ID)}
	}
	if o.UserID != nil {
		if _, ok := tx.state.users[*o.UserID]; !ok {
			return Omic{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: *o.UserID}
		}
	}
	o.CreatedAt = tx.now
	tx.state.omics[o.ID] = cloneOmic(o)
	tx.recordChange(Change{Entity: domain.EntityOmic, Action: domain.ActionCreate, After: cloneOmic(o)})
	return cloneOmic(o), nil
}

// UpdateOmic mutates an existing omic.
func (tx *transaction) UpdateOmic(id int64, mutator func(*Omic) error) (Omic, error) {
	current, ok := tx.state.omics[id]
	if !ok {
		return Omic{}, domain.ErrNotFound{Entity: domain.EntityOmic, ID: id}
	}
	before := cloneOmic(current)
	if err := mutator(&current); err != nil {
		return Omic{}, err
	}
	current.ID = id
	tx.state.omics[id] = cloneOmic(current)
	tx.recordChange(Change{Entity: domain.EntityOmic, Action: domain.ActionUpdate, Before: before, After: cloneOmic(current)})
	return cloneOmic(current), nil
}

// DeleteOmic removes an omic. Experiments must be deleted first.
func (tx *transaction) DeleteOmic(id int64) error {
	current, ok := tx.state.omics[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityOmic, ID: id}
	}
	for _, e := range tx.state.experiments {
		if e.OmicID == id {
			return domain.ErrConflict{Entity: domain.EntityOmic, Detail: fmt.Sprintf("omic %d still referenced by experiment %d", id, e.ID)}
		}
	}
	delete(tx.state.omics, id)
	tx.recordChange(Change{Entity: domain.EntityOmic, Action: domain.ActionDelete, Before: cloneOmic(current)})
	return nil
}

// CreateExperiment stores a new experiment in the pending state.
func (tx *transaction) CreateExperiment(e Experiment) (Experiment, error) {
	if e.ID == 0 {
		e.ID = tx.newID()
	}
	if _, exists := tx.state.experiments[e.ID]; exists {
		return Experiment{}, domain.ErrConflict{Entity: domain.EntityExperiment, Detail: fmt.Sprintf("id %d already exists", e.ID)}
	}
	if _, ok := tx.state.queries[e.QueryID]; !ok {
		return Experiment{}, domain.ErrNotFound{Entity: domain.EntityQuery, ID: e.QueryID}
	}
	if _, ok := tx.state.omics[e.OmicID]; !ok {
		return Experiment{}, domain.ErrNotFound{Entity: domain.EntityOmic, ID: e.OmicID}
	}
	if e.Status == "" {
		e.Status = domain.ExperimentPending
	}
	e.CreatedAt = tx.now
	tx.state.experiments[e.ID] = cloneExperiment(e)
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionCreate, After: cloneExperiment(e)})
	return cloneExperiment(e), nil
}

// UpdateExperiment mutates an existing experiment. Terminal states are
// immutable: once completed or failed, neither the status nor the recorded
// outcome may change.
func (tx *transaction) UpdateExperiment(id int64, mutator func(*Experiment) error) (Experiment, error) {
	current, ok := tx.state.experiments[id]
	if !ok {
		return Experiment{}, domain.ErrNotFound{Entity: domain.EntityExperiment, ID: id}
	}
	before := cloneExperiment(current)
	if err := mutator(&current); err != nil {
		return Experiment{}, err
	}
	terminal := before.Status == domain.ExperimentCompleted || before.Status == domain.ExperimentFailed
	outcomeChanged := current.Status != before.Status ||
		current.ResultKey != before.ResultKey ||
		current.FailureReason != before.FailureReason ||
		current.ElapsedSec != before.ElapsedSec
	if terminal && outcomeChanged {
		return Experiment{}, domain.ErrConflict{Entity: domain.EntityExperiment, Detail: fmt.Sprintf("experiment %d already %s", id, before.Status)}
	}
	current.ID = id
	current.QueryID = before.QueryID
	current.OmicID = before.OmicID
	tx.state.experiments[id] = cloneExperiment(current)
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionUpdate, Before: before, After: cloneExperiment(current)})
	return cloneExperiment(current), nil
}

// DeleteExperiment removes an experiment from state.
func (tx *transaction) DeleteExperiment(id int64) error {
	current, ok := tx.state.experiments[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityExperiment, ID: id}
	}
	delete(tx.state.experiments, id)
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionDelete, Before: cloneExperiment(current)})
	return nil
}

// CreateReport stores a new ingestion report.
func (tx *transaction) CreateReport(r Report) (Report, error) {
	if r.ID == 0 {
		r.ID = tx.newID()
	}
	if _, exists := tx.state.reports[r.ID]; exists {
		return Report{}, domain.ErrConflict{Entity: domain.EntityReport, Detail: fmt.Sprintf("id %d already exists", r.ID)}
	}
	if r.Status == "" {
		r.Status = domain.ReportPending
	}
	r.CreatedAt = tx.now
	tx.state.reports[r.ID] = cloneReport(r)
	tx.recordChange(Change{Entity: domain.EntityReport, Action: domain.ActionCreate, After: cloneReport(r)})
	return cloneReport(r), nil
}

// UpdateReport mutates an existing report.
func (tx *transaction) UpdateReport(id int64, mutator func(*Report) error) (Report, error) {
	current, ok := tx.state.reports[id]
	if !ok {
		return Report{}, domain.ErrNotFound{Entity: domain.EntityReport, ID: id}
	}
	before := cloneReport(current)
	if err := mutator(&current); err != nil {
		return Report{}, err
	}
	terminal := before.Status == domain.ReportCompleted || before.Status == domain.ReportFailed
	outcomeChanged := current.Status != before.Status ||
		current.Message != before.Message ||
		!int64PtrEqual(current.NetworkID, before.NetworkID)
	if terminal && outcomeChanged {
		return Report{}, domain.ErrConflict{Entity: domain.EntityReport, Detail: fmt.Sprintf("report %d already %s", id, before.Status)}
	}
	current.ID = id
	tx.state.reports[id] = cloneReport(current)
	tx.recordChange(Change{Entity: domain.EntityReport, Action: domain.ActionUpdate, Before: before, After: cloneReport(current)})
	return cloneReport(current), nil
}

// DeleteReport removes a report from state.
func (tx *transaction) DeleteReport(id int64) error {
	current, ok := tx.state.reports[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityReport, ID: id}
	}
	delete(tx.state.reports, id)
	tx.recordChange(Change{Entity: domain.EntityReport, Action: domain.ActionDelete, Before: cloneReport(current)})
	return nil
}
