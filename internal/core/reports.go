package core

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"biograph/internal/blob"
	"biograph/pkg/domain"
)

// CreateReport stores an uploaded source document and records a pending
// ingestion report, then enqueues compilation.
func (s *Service) CreateReport(ctx context.Context, report domain.Report, contents []byte) (domain.Report, Result, error) {
	key := "reports/" + uuid.NewString()
	if _, err := s.blobs.Put(ctx, key, bytes.NewReader(contents), blob.PutOptions{ContentType: "text/plain"}); err != nil {
		return domain.Report{}, Result{}, domain.ErrTransient{Op: "store report source", Err: err}
	}
	digest := sha512.Sum512(contents)
	report.BlobKey = key
	report.SHA512 = hex.EncodeToString(digest[:])
	report.Status = domain.ReportPending
	report.TaskUUID = uuid.NewString()

	var created domain.Report
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateReport(report)
		return err
	})
	if err != nil {
		if _, delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned report source", "key", key, "err", delErr)
		}
		return domain.Report{}, res, err
	}
	if _, err := s.tasks.Enqueue(ctx, TaskCompileReport, map[string]any{"report_id": created.ID}); err != nil {
		s.logger.Error("enqueue report", "report", created.ID, "err", err)
		return created, res, domain.ErrTransient{Op: "enqueue report", Err: err}
	}
	return created, res, nil
}

// GetReport returns the report with the given ID.
func (s *Service) GetReport(_ context.Context, id int64) (domain.Report, error) {
	r, ok := s.store.GetReport(id)
	if !ok {
		return domain.Report{}, domain.ErrNotFound{Entity: domain.EntityReport, ID: id}
	}
	return r, nil
}

// ListReports returns all reports.
func (s *Service) ListReports(context.Context) []domain.Report { return s.store.ListReports() }

// StartReport transitions a pending report to running.
func (s *Service) StartReport(ctx context.Context, id int64) (domain.Report, Result, error) {
	var updated domain.Report
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateReport(id, func(r *domain.Report) error {
			if r.Status != domain.ReportPending {
				return domain.ErrConflict{Entity: domain.EntityReport, Detail: "report is not pending"}
			}
			r.Status = domain.ReportRunning
			return nil
		})
		return err
	})
	return updated, res, err
}

// CompleteReport marks ingestion finished and links the produced network.
func (s *Service) CompleteReport(ctx context.Context, id, networkID int64, warnings int, elapsed time.Duration) (domain.Report, Result, error) {
	var updated domain.Report
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		network, ok := tx.FindNetwork(networkID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityNetwork, ID: networkID}
		}
		var err error
		updated, err = tx.UpdateReport(id, func(r *domain.Report) error {
			if r.Status == domain.ReportCompleted || r.Status == domain.ReportFailed {
				return domain.ErrConflict{Entity: domain.EntityReport, Detail: "report already finished"}
			}
			r.Status = domain.ReportCompleted
			r.NetworkID = &networkID
			r.NodeCount = network.NodeCount
			r.EdgeCount = network.EdgeCount
			r.Warnings = warnings
			r.ElapsedSec = elapsed.Seconds()
			r.Message = ""
			return nil
		})
		return err
	})
	return updated, res, err
}

// FailReport marks ingestion failed with a diagnostic message.
func (s *Service) FailReport(ctx context.Context, id int64, message string) (domain.Report, Result, error) {
	var updated domain.Report
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateReport(id, func(r *domain.Report) error {
			if r.Status == domain.ReportCompleted || r.Status == domain.ReportFailed {
				return domain.ErrConflict{Entity: domain.EntityReport, Detail: "report already finished"}
			}
			r.Status = domain.ReportFailed
			r.Message = message
			return nil
		})
		return err
	})
	return updated, res, err
}

// ListStalledReports returns reports that exceeded the staleness threshold
// without reaching a terminal state.
func (s *Service) ListStalledReports(_ context.Context, now time.Time) []domain.Report {
	var out []domain.Report
	for _, r := range s.store.ListReports() {
		if r.Stalled(now) {
			out = append(out, r)
		}
	}
	return out
}
