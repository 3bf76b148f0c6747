package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"biograph/pkg/domain"
)

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "biograph.db")
	ctx := context.Background()

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	var network domain.Network
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		network, err = tx.CreateNetwork(domain.Network{Name: "net", Version: "1.0", Public: true})
		if err != nil {
			return err
		}
		_, err = tx.CreateUser(domain.User{Email: "owner@example.org"})
		return err
	}); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, ok := reopened.GetNetwork(network.ID)
	if !ok {
		t.Fatal("network lost across reopen")
	}
	if got.Name != "net" || got.Version != "1.0" || !got.Public {
		t.Fatalf("network = %+v", got)
	}
	if users := reopened.ListUsers(); len(users) != 1 || users[0].Email != "owner@example.org" {
		t.Fatalf("users = %+v", users)
	}

	// The ID sequence continues where it left off.
	var user domain.User
	if _, err := reopened.RunInTransaction(ctx, func(tx domain.Transaction) error {
		user, err = tx.CreateUser(domain.User{Email: "second@example.org"})
		return err
	}); err != nil {
		t.Fatalf("post-reopen transaction: %v", err)
	}
	if user.ID <= network.ID {
		t.Fatalf("sequence regressed: new id %d", user.ID)
	}
}

func TestFailedTransactionNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "biograph.db")
	ctx := context.Background()

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateNetwork(domain.Network{Name: "net", Version: "1.0"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateNetwork(domain.Network{Name: "net", Version: "1.0"})
		return err
	}); err == nil {
		t.Fatal("expected duplicate conflict")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if got := len(reopened.ListNetworks()); got != 1 {
		t.Fatalf("networks = %d, want 1", got)
	}
}
