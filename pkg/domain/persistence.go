package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateUser(User) (User, error)
	UpdateUser(id int64, mutator func(*User) error) (User, error)
	DeleteUser(id int64) error
	CreateProject(Project) (Project, error)
	UpdateProject(id int64, mutator func(*Project) error) (Project, error)
	DeleteProject(id int64) error
	CreateNetwork(Network) (Network, error)
	UpdateNetwork(id int64, mutator func(*Network) error) (Network, error)
	DeleteNetwork(id int64) error
	CreateEdge(Edge) (Edge, error)
	DeleteEdge(id int64) error
	CreateEdgeVote(EdgeVote) (EdgeVote, error)
	UpdateEdgeVote(id int64, mutator func(*EdgeVote) error) (EdgeVote, error)
	DeleteEdgeVote(id int64) error
	CreateEdgeComment(EdgeComment) (EdgeComment, error)
	DeleteEdgeComment(id int64) error
	CreateAssembly(Assembly) (Assembly, error)
	DeleteAssembly(id int64) error
	CreateQuery(Query) (Query, error)
	UpdateQuery(id int64, mutator func(*Query) error) (Query, error)
	DeleteQuery(id int64) error
	CreateOmic(Omic) (Omic, error)
	UpdateOmic(id int64, mutator func(*Omic) error) (Omic, error)
	DeleteOmic(id int64) error
	CreateExperiment(Experiment) (Experiment, error)
	UpdateExperiment(id int64, mutator func(*Experiment) error) (Experiment, error)
	DeleteExperiment(id int64) error
	CreateReport(Report) (Report, error)
	UpdateReport(id int64, mutator func(*Report) error) (Report, error)
	DeleteReport(id int64) error
	FindNetwork(id int64) (Network, bool)
	FindQuery(id int64) (Query, bool)
	FindAssembly(id int64) (Assembly, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	RuleView
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetUser(id int64) (User, bool)
	ListUsers() []User
	GetProject(id int64) (Project, bool)
	ListProjects() []Project
	GetNetwork(id int64) (Network, bool)
	ListNetworks() []Network
	ListEdges() []Edge
	ListEdgeVotes() []EdgeVote
	ListEdgeComments() []EdgeComment
	GetAssembly(id int64) (Assembly, bool)
	ListAssemblies() []Assembly
	GetQuery(id int64) (Query, bool)
	ListQueries() []Query
	GetOmic(id int64) (Omic, bool)
	ListOmics() []Omic
	GetExperiment(id int64) (Experiment, bool)
	ListExperiments() []Experiment
	GetReport(id int64) (Report, bool)
	ListReports() []Report
}
