package memory

import (
	"context"
	"testing"
	"time"

	"biograph/pkg/domain"
)

func run(t *testing.T, s *Store, fn func(tx Transaction) error) Result {
	t.Helper()
	res, err := s.RunInTransaction(context.Background(), fn)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	return res
}

func runErr(t *testing.T, s *Store, fn func(tx Transaction) error) error {
	t.Helper()
	_, err := s.RunInTransaction(context.Background(), fn)
	if err == nil {
		t.Fatal("expected transaction error")
	}
	return err
}

func seedNetwork(t *testing.T, s *Store, name string) Network {
	t.Helper()
	var n Network
	run(t, s, func(tx Transaction) error {
		var err error
		n, err = tx.CreateNetwork(Network{Name: name, Version: "1.0", Public: true})
		return err
	})
	return n
}

func seedUser(t *testing.T, s *Store, email string) User {
	t.Helper()
	var u User
	run(t, s, func(tx Transaction) error {
		var err error
		u, err = tx.CreateUser(User{Email: email})
		return err
	})
	return u
}

func TestSequentialIDs(t *testing.T) {
	s := NewStore(nil)
	first := seedUser(t, s, "a@example.org")
	second := seedUser(t, s, "b@example.org")
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", first.ID, second.ID)
	}
}

func TestCreateUserUniqueEmail(t *testing.T) {
	s := NewStore(nil)
	seedUser(t, s, "dup@example.org")
	err := runErr(t, s, func(tx Transaction) error {
		_, err := tx.CreateUser(User{Email: "dup@example.org"})
		return err
	})
	if !domain.IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
}

func TestCreateNetworkUniqueNameVersion(t *testing.T) {
	s := NewStore(nil)
	seedNetwork(t, s, "net")
	err := runErr(t, s, func(tx Transaction) error {
		_, err := tx.CreateNetwork(Network{Name: "net", Version: "1.0"})
		return err
	})
	if !domain.IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
	// A different version of the same name is fine.
	run(t, s, func(tx Transaction) error {
		_, err := tx.CreateNetwork(Network{Name: "net", Version: "2.0"})
		return err
	})
}

func TestFailedTransactionRollsBack(t *testing.T) {
	s := NewStore(nil)
	seedNetwork(t, s, "net")
	runErr(t, s, func(tx Transaction) error {
		if _, err := tx.CreateNetwork(Network{Name: "second", Version: "1.0"}); err != nil {
			return err
		}
		_, err := tx.CreateNetwork(Network{Name: "net", Version: "1.0"})
		return err
	})
	if got := len(s.ListNetworks()); got != 1 {
		t.Fatalf("networks after rollback = %d, want 1", got)
	}
}

func TestDeleteNetworkCascadesEdgesVotesComments(t *testing.T) {
	s := NewStore(nil)
	network := seedNetwork(t, s, "net")
	u1 := seedUser(t, s, "one@example.org")
	u2 := seedUser(t, s, "two@example.org")

	var e1, e2 Edge
	run(t, s, func(tx Transaction) error {
		var err error
		if e1, err = tx.CreateEdge(Edge{NetworkID: network.ID, BEL: "a increases b", Relation: "increases"}); err != nil {
			return err
		}
		if e2, err = tx.CreateEdge(Edge{NetworkID: network.ID, BEL: "b decreases c", Relation: "decreases"}); err != nil {
			return err
		}
		if _, err = tx.CreateEdgeVote(EdgeVote{EdgeID: e1.ID, UserID: u1.ID, Agreed: true}); err != nil {
			return err
		}
		if _, err = tx.CreateEdgeVote(EdgeVote{EdgeID: e1.ID, UserID: u2.ID, Agreed: false}); err != nil {
			return err
		}
		if _, err = tx.CreateEdgeVote(EdgeVote{EdgeID: e2.ID, UserID: u1.ID, Agreed: true}); err != nil {
			return err
		}
		_, err = tx.CreateEdgeComment(EdgeComment{EdgeID: e2.ID, UserID: u2.ID, Comment: "dubious"})
		return err
	})

	run(t, s, func(tx Transaction) error {
		return tx.DeleteNetwork(network.ID)
	})

	if got := len(s.ListEdges()); got != 0 {
		t.Fatalf("edges = %d, want 0", got)
	}
	if got := len(s.ListEdgeVotes()); got != 0 {
		t.Fatalf("votes = %d, want 0", got)
	}
	if got := len(s.ListEdgeComments()); got != 0 {
		t.Fatalf("comments = %d, want 0", got)
	}
	// The voting users survive.
	if got := len(s.ListUsers()); got != 2 {
		t.Fatalf("users = %d, want 2", got)
	}
}

func TestDeleteNetworkRefusedWhileReferenced(t *testing.T) {
	s := NewStore(nil)
	network := seedNetwork(t, s, "net")
	run(t, s, func(tx Transaction) error {
		_, err := tx.CreateAssembly(Assembly{NetworkIDs: []int64{network.ID}})
		return err
	})
	err := runErr(t, s, func(tx Transaction) error {
		return tx.DeleteNetwork(network.ID)
	})
	if !domain.IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
}

func TestEdgeVoteUniquePerUser(t *testing.T) {
	s := NewStore(nil)
	network := seedNetwork(t, s, "net")
	user := seedUser(t, s, "voter@example.org")
	var edge Edge
	run(t, s, func(tx Transaction) error {
		var err error
		if edge, err = tx.CreateEdge(Edge{NetworkID: network.ID}); err != nil {
			return err
		}
		_, err = tx.CreateEdgeVote(EdgeVote{EdgeID: edge.ID, UserID: user.ID, Agreed: true})
		return err
	})
	err := runErr(t, s, func(tx Transaction) error {
		_, err := tx.CreateEdgeVote(EdgeVote{EdgeID: edge.ID, UserID: user.ID, Agreed: false})
		return err
	})
	if !domain.IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
}

func TestUpdateEdgeVotePinsIdentity(t *testing.T) {
	s := NewStore(nil)
	network := seedNetwork(t, s, "net")
	user := seedUser(t, s, "voter@example.org")
	var vote EdgeVote
	run(t, s, func(tx Transaction) error {
		edge, err := tx.CreateEdge(Edge{NetworkID: network.ID})
		if err != nil {
			return err
		}
		vote, err = tx.CreateEdgeVote(EdgeVote{EdgeID: edge.ID, UserID: user.ID, Agreed: true})
		return err
	})

	changed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	run(t, s, func(tx Transaction) error {
		_, err := tx.UpdateEdgeVote(vote.ID, func(v *EdgeVote) error {
			v.Agreed = false
			v.Changed = &changed
			v.EdgeID = 999 // ignored
			return nil
		})
		return err
	})

	votes := s.ListEdgeVotes()
	if len(votes) != 1 {
		t.Fatalf("votes = %d", len(votes))
	}
	got := votes[0]
	if got.EdgeID == 999 {
		t.Fatal("update changed the edge reference")
	}
	if got.Agreed || got.Changed == nil || !got.Changed.Equal(changed) {
		t.Fatalf("vote = %+v", got)
	}
}

func TestDeleteQueryRefusedWithChildrenOrExperiments(t *testing.T) {
	s := NewStore(nil)
	network := seedNetwork(t, s, "net")

	var parent, child Query
	var omic Omic
	run(t, s, func(tx Transaction) error {
		assembly, err := tx.CreateAssembly(Assembly{NetworkIDs: []int64{network.ID}})
		if err != nil {
			return err
		}
		if parent, err = tx.CreateQuery(Query{AssemblyID: assembly.ID}); err != nil {
			return err
		}
		if child, err = tx.CreateQuery(Query{AssemblyID: assembly.ID, ParentID: &parent.ID}); err != nil {
			return err
		}
		omic, err = tx.CreateOmic(Omic{SourceName: "expr.csv"})
		return err
	})

	// Parent has a child: refused.
	err := runErr(t, s, func(tx Transaction) error {
		return tx.DeleteQuery(parent.ID)
	})
	if !domain.IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}

	// Child gains an experiment: refused too.
	run(t, s, func(tx Transaction) error {
		_, err := tx.CreateExperiment(Experiment{QueryID: child.ID, OmicID: omic.ID})
		return err
	})
	err = runErr(t, s, func(tx Transaction) error {
		return tx.DeleteQuery(child.ID)
	})
	if !domain.IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
}

func TestExperimentTerminalStateImmutable(t *testing.T) {
	s := NewStore(nil)
	network := seedNetwork(t, s, "net")

	var experiment Experiment
	run(t, s, func(tx Transaction) error {
		assembly, err := tx.CreateAssembly(Assembly{NetworkIDs: []int64{network.ID}})
		if err != nil {
			return err
		}
		q, err := tx.CreateQuery(Query{AssemblyID: assembly.ID})
		if err != nil {
			return err
		}
		omic, err := tx.CreateOmic(Omic{SourceName: "expr.csv"})
		if err != nil {
			return err
		}
		experiment, err = tx.CreateExperiment(Experiment{QueryID: q.ID, OmicID: omic.ID})
		return err
	})
	if experiment.Status != domain.ExperimentPending {
		t.Fatalf("initial status = %q, want pending", experiment.Status)
	}

	run(t, s, func(tx Transaction) error {
		_, err := tx.UpdateExperiment(experiment.ID, func(e *Experiment) error {
			e.Status = domain.ExperimentCompleted
			e.ResultKey = "results/first"
			return nil
		})
		return err
	})

	err := runErr(t, s, func(tx Transaction) error {
		_, err := tx.UpdateExperiment(experiment.ID, func(e *Experiment) error {
			e.Status = domain.ExperimentCompleted
			e.ResultKey = "results/second"
			return nil
		})
		return err
	})
	if !domain.IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
	got, _ := s.GetExperiment(experiment.ID)
	if got.ResultKey != "results/first" {
		t.Fatalf("result key = %q, want the first result kept", got.ResultKey)
	}

	// Rewriting the outcome without touching the status is just as immutable.
	err = runErr(t, s, func(tx Transaction) error {
		_, err := tx.UpdateExperiment(experiment.ID, func(e *Experiment) error {
			e.FailureReason = "revisionist history"
			return nil
		})
		return err
	})
	if !domain.IsConflict(err) {
		t.Fatalf("outcome rewrite error = %v, want conflict", err)
	}
}

func TestReportTerminalStateImmutable(t *testing.T) {
	s := NewStore(nil)

	var report Report
	run(t, s, func(tx Transaction) error {
		var err error
		report, err = tx.CreateReport(Report{SourceName: "upload.bel", BlobKey: "reports/x"})
		return err
	})
	run(t, s, func(tx Transaction) error {
		_, err := tx.UpdateReport(report.ID, func(r *Report) error {
			r.Status = domain.ReportFailed
			r.Message = "bad document"
			return nil
		})
		return err
	})

	err := runErr(t, s, func(tx Transaction) error {
		_, err := tx.UpdateReport(report.ID, func(r *Report) error {
			r.Message = "actually fine"
			return nil
		})
		return err
	})
	if !domain.IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
	got, _ := s.GetReport(report.ID)
	if got.Message != "bad document" {
		t.Fatalf("message = %q, want the recorded failure kept", got.Message)
	}
}

func TestExportImportStateRoundTrip(t *testing.T) {
	s := NewStore(nil)
	network := seedNetwork(t, s, "net")
	seedUser(t, s, "keep@example.org")

	snapshot := s.ExportState()
	restored := NewStore(nil)
	restored.ImportState(snapshot)

	if got := len(restored.ListNetworks()); got != 1 {
		t.Fatalf("networks = %d, want 1", got)
	}
	if got := len(restored.ListUsers()); got != 1 {
		t.Fatalf("users = %d, want 1", got)
	}
	// The ID sequence continues past the imported entities.
	next := seedUser(t, restored, "next@example.org")
	if next.ID <= network.ID {
		t.Fatalf("sequence did not advance: got id %d", next.ID)
	}
}

func TestMigrateSnapshotDropsDanglingRows(t *testing.T) {
	s := NewStore(nil)
	network := seedNetwork(t, s, "net")
	user := seedUser(t, s, "voter@example.org")
	var edge Edge
	run(t, s, func(tx Transaction) error {
		var err error
		if edge, err = tx.CreateEdge(Edge{NetworkID: network.ID}); err != nil {
			return err
		}
		_, err = tx.CreateEdgeVote(EdgeVote{EdgeID: edge.ID, UserID: user.ID, Agreed: true})
		return err
	})

	snapshot := s.ExportState()
	// Corrupt the snapshot: point the edge at a missing network.
	for id, e := range snapshot.Edges {
		e.NetworkID = 12345
		snapshot.Edges[id] = e
	}

	restored := NewStore(nil)
	restored.ImportState(snapshot)
	if got := len(restored.ListEdges()); got != 0 {
		t.Fatalf("dangling edges kept: %d", got)
	}
	if got := len(restored.ListEdgeVotes()); got != 0 {
		t.Fatalf("votes for dropped edges kept: %d", got)
	}
}
