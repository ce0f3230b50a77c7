package exports

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/quotedoc/jobs"
)

// Enqueuer submits export tasks.
type Enqueuer interface {
	EnqueueDocumentExport(ctx context.Context, payload jobs.DocumentExportPayload) (*asynq.TaskInfo, error)
}

// Service creates export records and queues their rendering.
type Service struct {
	store    *Store
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(store *Store, enqueuer Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, enqueuer: enqueuer, logger: logger}
}

// Request stores a pending export and enqueues it. A record that cannot be
// queued is marked failed before the error is returned.
func (s *Service) Request(ctx context.Context, req Request) (Record, error) {
	rec, err := s.store.Create(ctx, req)
	if err != nil {
		return Record{}, err
	}
	if _, err := s.enqueuer.EnqueueDocumentExport(ctx, jobs.DocumentExportPayload{ExportID: rec.ID}); err != nil {
		if _, markErr := s.store.MarkFailed(ctx, rec.ID, "enqueue failed"); markErr != nil {
			s.logger.Warn("mark export failed", slog.String("export_id", rec.ID), slog.Any("error", markErr))
		}
		return Record{}, fmt.Errorf("exports: enqueue %s: %w", rec.ID, err)
	}
	s.logger.Info("export queued",
		slog.String("export_id", rec.ID),
		slog.String("quotation_id", req.QuotationID),
		slog.String("format", req.Format),
	)
	return rec, nil
}

// Get loads an export record.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.store.Get(ctx, id)
}

// File returns the stored file of a ready export.
func (s *Service) File(ctx context.Context, id string) (Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Status != StatusReady || rec.Path == "" {
		return Record{}, fmt.Errorf("%w: status %s", ErrNotReady, rec.Status)
	}
	return rec, nil
}
