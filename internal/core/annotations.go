package core

import (
	"context"

	"biograph/pkg/domain"
)

// GetOrCreateVote records the actor's position on an edge. A first vote
// creates the row; re-voting with a different position updates it and stamps
// Changed; re-voting with the same position is a no-op returning the stored
// row.
func (s *Service) GetOrCreateVote(ctx context.Context, edgeID, userID int64, agreed bool) (domain.EdgeVote, Result, error) {
	var existing *domain.EdgeVote
	for _, v := range s.store.ListEdgeVotes() {
		if v.EdgeID == edgeID && v.UserID == userID {
			vote := v
			existing = &vote
			break
		}
	}
	if existing != nil && existing.Agreed == agreed {
		return *existing, Result{}, nil
	}

	var out domain.EdgeVote
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		if existing != nil {
			out, err = tx.UpdateEdgeVote(existing.ID, func(v *domain.EdgeVote) error {
				v.Agreed = agreed
				now := s.nowFn()
				v.Changed = &now
				return nil
			})
			return err
		}
		out, err = tx.CreateEdgeVote(domain.EdgeVote{EdgeID: edgeID, UserID: userID, Agreed: agreed})
		return err
	})
	return out, res, err
}

// ListEdgeVotes returns the votes recorded for an edge.
func (s *Service) ListEdgeVotes(_ context.Context, edgeID int64) []domain.EdgeVote {
	var out []domain.EdgeVote
	for _, v := range s.store.ListEdgeVotes() {
		if v.EdgeID == edgeID {
			out = append(out, v)
		}
	}
	return out
}

// AddEdgeComment attaches free-form commentary to an edge.
func (s *Service) AddEdgeComment(ctx context.Context, edgeID, userID int64, text string) (domain.EdgeComment, Result, error) {
	var created domain.EdgeComment
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateEdgeComment(domain.EdgeComment{EdgeID: edgeID, UserID: userID, Comment: text})
		return err
	})
	return created, res, err
}

// ListEdgeComments returns the comments recorded for an edge.
func (s *Service) ListEdgeComments(_ context.Context, edgeID int64) []domain.EdgeComment {
	var out []domain.EdgeComment
	for _, c := range s.store.ListEdgeComments() {
		if c.EdgeID == edgeID {
			out = append(out, c)
		}
	}
	return out
}
