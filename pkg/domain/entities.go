// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by biograph.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityUser identifies a user record.
	EntityUser EntityType = "user"
	// EntityProject identifies a project record.
	EntityProject EntityType = "project"
	// EntityNetwork identifies a stored network record.
	EntityNetwork EntityType = "network"
	// EntityEdge identifies an edge record materialized from a network.
	EntityEdge EntityType = "edge"
	// EntityEdgeVote identifies a user's vote on an edge.
	EntityEdgeVote EntityType = "edge_vote"
	// EntityEdgeComment identifies a user's comment on an edge.
	EntityEdgeComment EntityType = "edge_comment"
	// EntityAssembly identifies a network assembly record.
	EntityAssembly EntityType = "assembly"
	// EntityQuery identifies a stored query record.
	EntityQuery EntityType = "query"
	// EntityOmic identifies an uploaded omics data set.
	EntityOmic EntityType = "omic"
	// EntityExperiment identifies a scheduled analysis run.
	EntityExperiment EntityType = "experiment"
	// EntityReport identifies a document ingestion report.
	EntityReport EntityType = "report"
)

// ExperimentStatus enumerates the experiment execution lifecycle.
type ExperimentStatus string

// Experiment lifecycle states. Completion is terminal and happens exactly
// once; failure carries an explicit reason rather than being inferred from
// elapsed time.
const (
	ExperimentPending   ExperimentStatus = "pending"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentFailed    ExperimentStatus = "failed"
)

// ReportStatus enumerates document ingestion states.
type ReportStatus string

// Report lifecycle states.
const (
	ReportPending   ReportStatus = "pending"
	ReportRunning   ReportStatus = "running"
	ReportCompleted ReportStatus = "completed"
	ReportFailed    ReportStatus = "failed"
)

// StaleAfter is the wall-clock threshold after which an incomplete
// experiment or report is surfaced to operators as stalled.
const StaleAfter = 3 * time.Hour

// Base contains common fields for all domain records.
type Base struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// User captures the minimal identity needed for ownership and visibility
// decisions. Account management itself lives outside this system.
type User struct {
	Base
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Admin bool   `json:"admin"`
}

// Project groups networks shared between collaborating users.
type Project struct {
	Base
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	UserIDs     []int64 `json:"user_ids"`
	NetworkIDs  []int64 `json:"network_ids"`
}

// HasUser reports whether the user belongs to the project.
func (p Project) HasUser(userID int64) bool {
	for _, id := range p.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Network is the metadata row for an immutable, versioned graph artifact.
// The graph payload itself lives in the blob store under BlobKey.
type Network struct {
	Base
	Name      string `json:"name"`
	Version   string `json:"version"`
	Public    bool   `json:"public"`
	UserID    *int64 `json:"user_id"`
	BlobKey   string `json:"blob_key"`
	SHA512    string `json:"sha512"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

// Edge is a single relation materialized from a stored network so that votes
// and comments can reference it.
type Edge struct {
	Base
	NetworkID int64  `json:"network_id"`
	BEL       string `json:"bel"`
	Relation  string `json:"relation"`
}

// EdgeVote records a user's agreement or disagreement with an edge. At most
// one vote exists per (edge, user) pair; re-voting updates Agreed and stamps
// Changed.
type EdgeVote struct {
	Base
	EdgeID  int64      `json:"edge_id"`
	UserID  int64      `json:"user_id"`
	Agreed  bool       `json:"agreed"`
	Changed *time.Time `json:"changed,omitempty"`
}

// EdgeComment is free-form user commentary attached to an edge.
type EdgeComment struct {
	Base
	EdgeID  int64  `json:"edge_id"`
	UserID  int64  `json:"user_id"`
	Comment string `json:"comment"`
}

// Assembly is an immutable named set of source networks a query draws from.
// Membership is fixed at construction.
type Assembly struct {
	Base
	Name       string  `json:"name,omitempty"`
	UserID     *int64  `json:"user_id"`
	NetworkIDs []int64 `json:"network_ids"`
}

// Query is the persisted, forkable specification of one graph query. The
// seeding and pipeline fields hold the textual encodings from pkg/query;
// ParentID links copy-on-write forks into a forest.
type Query struct {
	Base
	UserID     *int64 `json:"user_id"`
	Public     bool   `json:"public"`
	AssemblyID int64  `json:"assembly_id"`
	Seeding    string `json:"seeding,omitempty"`
	Pipeline   string `json:"pipeline,omitempty"`
	ParentID   *int64 `json:"parent_id"`
}

// Omic is an uploaded differential-expression table. The raw delimited file
// lives in the blob store; the gene→value mapping is derived on demand.
type Omic struct {
	Base
	SourceName  string `json:"source_name"`
	Description string `json:"description,omitempty"`
	BlobKey     string `json:"blob_key"`
	GeneColumn  string `json:"gene_column"`
	DataColumn  string `json:"data_column"`
	Separator   string `json:"separator"`
	Public      bool   `json:"public"`
	UserID      *int64 `json:"user_id"`
}

// Experiment binds a query to an omics data set and a scoring configuration,
// and tracks the asynchronous execution lifecycle.
type Experiment struct {
	Base
	QueryID       int64            `json:"query_id"`
	OmicID        int64            `json:"omic_id"`
	UserID        *int64           `json:"user_id"`
	Permutations  int              `json:"permutations"`
	Public        bool             `json:"public"`
	Status        ExperimentStatus `json:"status"`
	FailureReason string           `json:"failure_reason,omitempty"`
	ResultKey     string           `json:"result_key,omitempty"`
	ElapsedSec    float64          `json:"elapsed_seconds,omitempty"`
}

// Stalled reports whether the experiment has been incomplete for longer than
// the staleness threshold.
func (e Experiment) Stalled(now time.Time) bool {
	if e.Status == ExperimentCompleted || e.Status == ExperimentFailed {
		return false
	}
	return now.Sub(e.CreatedAt) > StaleAfter
}

// Report tracks one document ingestion job: the uploaded source, its task
// handle, and the outcome.
type Report struct {
	Base
	TaskUUID   string       `json:"task_uuid,omitempty"`
	UserID     *int64       `json:"user_id"`
	SourceName string       `json:"source_name"`
	BlobKey    string       `json:"blob_key"`
	SHA512     string       `json:"sha512"`
	Encoding   string       `json:"encoding,omitempty"`
	Public     bool         `json:"public"`
	Status     ReportStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	NetworkID  *int64       `json:"network_id"`
	NodeCount  int          `json:"node_count,omitempty"`
	EdgeCount  int          `json:"edge_count,omitempty"`
	Warnings   int          `json:"warnings,omitempty"`
	ElapsedSec float64      `json:"elapsed_seconds,omitempty"`
}

// Stalled reports whether the report job exceeded the staleness threshold
// without reaching a terminal state.
func (r Report) Stalled(now time.Time) bool {
	if r.Status == ReportCompleted || r.Status == ReportFailed {
		return false
	}
	return now.Sub(r.CreatedAt) > StaleAfter
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
