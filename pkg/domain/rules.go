package domain

import "context"

// RuleView provides read-only access to domain entities for rule evaluation.
type RuleView interface {
	ListUsers() []User
	ListProjects() []Project
	ListNetworks() []Network
	ListEdges() []Edge
	ListEdgeVotes() []EdgeVote
	ListEdgeComments() []EdgeComment
	ListAssemblies() []Assembly
	ListQueries() []Query
	ListOmics() []Omic
	ListExperiments() []Experiment
	ListReports() []Report
	FindUser(id int64) (User, bool)
	FindProject(id int64) (Project, bool)
	FindNetwork(id int64) (Network, bool)
	FindEdge(id int64) (Edge, bool)
	FindAssembly(id int64) (Assembly, bool)
	FindQuery(id int64) (Query, bool)
	FindOmic(id int64) (Omic, bool)
	FindExperiment(id int64) (Experiment, bool)
	FindReport(id int64) (Report, bool)
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
