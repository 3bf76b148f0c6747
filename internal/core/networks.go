package core

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/uuid"

	"biograph/internal/blob"
	"biograph/pkg/bel"
	"biograph/pkg/domain"
)

// InsertNetwork encodes the graph, stores the payload in the blob backend,
// and records the network row plus one edge row per relation. The (name,
// version) pair must be unused.
func (s *Service) InsertNetwork(ctx context.Context, g *bel.Graph, ownerID *int64, public bool) (domain.Network, Result, error) {
	data, err := bel.Marshal(g)
	if err != nil {
		return domain.Network{}, Result{}, fmt.Errorf("encode network: %w", err)
	}
	digest := sha512.Sum512(data)
	key := "networks/" + uuid.NewString() + ".json"
	if _, err := s.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: "application/json"}); err != nil {
		return domain.Network{}, Result{}, domain.ErrTransient{Op: "store network payload", Err: err}
	}

	var created domain.Network
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateNetwork(domain.Network{
			Name:      g.Name,
			Version:   g.Version,
			Public:    public,
			UserID:    ownerID,
			BlobKey:   key,
			SHA512:    hex.EncodeToString(digest[:]),
			NodeCount: g.NodeCount(),
			EdgeCount: g.EdgeCount(),
		})
		if err != nil {
			return err
		}
		for _, e := range g.Edges() {
			if _, err := tx.CreateEdge(domain.Edge{
				NetworkID: created.ID,
				BEL:       fmt.Sprintf("%s %s %s", e.Source, e.Relation, e.Target),
				Relation:  e.Relation,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if _, delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned network payload", "key", key, "err", delErr)
		}
		return domain.Network{}, res, err
	}
	return created, res, nil
}

// GetNetwork returns the network if the actor may see it.
func (s *Service) GetNetwork(_ context.Context, id int64, actorID *int64) (domain.Network, error) {
	n, ok := s.store.GetNetwork(id)
	if !ok {
		return domain.Network{}, domain.ErrNotFound{Entity: domain.EntityNetwork, ID: id}
	}
	if !s.canReadNetwork(n, actorID) {
		return domain.Network{}, domain.ErrNotFound{Entity: domain.EntityNetwork, ID: id}
	}
	return n, nil
}

// ListNetworks returns the networks visible to the actor.
func (s *Service) ListNetworks(_ context.Context, actorID *int64) []domain.Network {
	var out []domain.Network
	for _, n := range s.store.ListNetworks() {
		if s.canReadNetwork(n, actorID) {
			out = append(out, n)
		}
	}
	return out
}

// ListLatestNetworks returns, per network name, the most recently created
// version visible to the actor.
func (s *Service) ListLatestNetworks(ctx context.Context, actorID *int64) []domain.Network {
	latest := make(map[string]domain.Network)
	var order []string
	for _, n := range s.ListNetworks(ctx, actorID) {
		current, seen := latest[n.Name]
		if !seen {
			order = append(order, n.Name)
			latest[n.Name] = n
			continue
		}
		if n.CreatedAt.After(current.CreatedAt) {
			latest[n.Name] = n
		}
	}
	out := make([]domain.Network, 0, len(order))
	for _, name := range order {
		out = append(out, latest[name])
	}
	return out
}

// ListNetworkEdges returns the edges materialized from the given network.
func (s *Service) ListNetworkEdges(_ context.Context, networkID int64) []domain.Edge {
	var out []domain.Edge
	for _, e := range s.store.ListEdges() {
		if e.NetworkID == networkID {
			out = append(out, e)
		}
	}
	return out
}

// DropNetwork removes a network, its edges (with their votes and comments),
// and its stored payload.
func (s *Service) DropNetwork(ctx context.Context, id int64) (Result, error) {
	n, ok := s.store.GetNetwork(id)
	if !ok {
		return Result{}, domain.ErrNotFound{Entity: domain.EntityNetwork, ID: id}
	}
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteNetwork(id)
	})
	if err != nil {
		return res, err
	}
	if _, delErr := s.blobs.Delete(ctx, n.BlobKey); delErr != nil {
		s.logger.Warn("orphaned network payload", "key", n.BlobKey, "err", delErr)
	}
	return res, nil
}

// GraphByID materializes the stored graph for a network. It implements
// query.GraphProvider.
func (s *Service) GraphByID(ctx context.Context, networkID int64) (*bel.Graph, error) {
	n, ok := s.store.GetNetwork(networkID)
	if !ok {
		return nil, domain.ErrNotFound{Entity: domain.EntityNetwork, ID: networkID}
	}
	_, rc, err := s.blobs.Get(ctx, n.BlobKey)
	if err != nil {
		return nil, domain.ErrTransient{Op: "load network payload", Err: err}
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.ErrTransient{Op: "read network payload", Err: err}
	}
	return bel.Unmarshal(data)
}
