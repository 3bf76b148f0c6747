package core

import (
	"context"
	"fmt"

	"biograph/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(queryLineageRule{})
	engine.Register(duplicateNetworkContentRule{})
	return engine
}

// queryLineageRule blocks commits that would turn the query parent links into
// anything other than a forest: every parent must exist and following parent
// links must terminate at a root.
type queryLineageRule struct{}

func (queryLineageRule) Name() string { return "query_lineage" }

func (queryLineageRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	parents := make(map[int64]*int64)
	for _, q := range view.ListQueries() {
		parents[q.ID] = q.ParentID
	}

	res := domain.Result{}
	for id := range parents {
		// A chain longer than the query count can only mean a cycle.
		current := id
		for steps := 0; ; steps++ {
			parent, ok := parents[current]
			if !ok {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "query_lineage",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("query %d links to missing parent %d", id, current),
					Entity:   domain.EntityQuery,
					EntityID: id,
				})
				break
			}
			if parent == nil {
				break
			}
			if steps >= len(parents) {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "query_lineage",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("query %d participates in a parent cycle", id),
					Entity:   domain.EntityQuery,
					EntityID: id,
				})
				break
			}
			current = *parent
		}
	}
	return res, nil
}

// duplicateNetworkContentRule surfaces a warning when two stored networks
// carry identical payload digests. Re-uploads of the same document under a
// new version are legal but worth flagging.
type duplicateNetworkContentRule struct{}

func (duplicateNetworkContentRule) Name() string { return "duplicate_network_content" }

func (duplicateNetworkContentRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	created := make(map[int64]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityNetwork || change.Action != domain.ActionCreate {
			continue
		}
		if n, ok := change.After.(domain.Network); ok {
			created[n.ID] = struct{}{}
		}
	}
	if len(created) == 0 {
		return domain.Result{}, nil
	}

	bySHA := make(map[string][]domain.Network)
	for _, n := range view.ListNetworks() {
		if n.SHA512 == "" {
			continue
		}
		bySHA[n.SHA512] = append(bySHA[n.SHA512], n)
	}

	res := domain.Result{}
	for _, group := range bySHA {
		if len(group) < 2 {
			continue
		}
		for _, n := range group {
			if _, isNew := created[n.ID]; !isNew {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "duplicate_network_content",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("network %d (%s:%s) duplicates the payload of %d other network(s)", n.ID, n.Name, n.Version, len(group)-1),
				Entity:   domain.EntityNetwork,
				EntityID: n.ID,
			})
		}
	}
	return res, nil
}
