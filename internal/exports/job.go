package exports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/quotedoc/internal/docgen"
	"github.com/odyssey-erp/quotedoc/internal/quotation"
	"github.com/odyssey-erp/quotedoc/jobs"
)

// Generator renders quotation documents.
type Generator interface {
	Generate(ctx context.Context, req docgen.Request) (docgen.Document, error)
}

// JobConfig wires dependencies required by the worker job.
type JobConfig struct {
	Store      *Store
	Source     quotation.Source
	Generator  Generator
	StorageDir string
	Logger     *slog.Logger
}

// Job processes document export requests coming from the queue.
type Job struct {
	store      *Store
	source     quotation.Source
	generator  Generator
	storageDir string
	logger     *slog.Logger
}

// NewJob constructs a Job handler.
func NewJob(cfg JobConfig) *Job {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{store: cfg.Store, source: cfg.Source, generator: cfg.Generator, storageDir: cfg.StorageDir, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.store == nil || j.source == nil || j.generator == nil {
		return fmt.Errorf("export job not configured")
	}
	var payload jobs.DocumentExportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ExportID == "" {
		return fmt.Errorf("empty export id: %w", asynq.SkipRetry)
	}
	rec, err := j.store.Get(ctx, payload.ExportID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("export %s expired: %w", payload.ExportID, asynq.SkipRetry)
		}
		return err
	}
	if rec.Status == StatusReady {
		return nil
	}
	if _, err := j.store.MarkProcessing(ctx, rec.ID); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			current, loadErr := j.store.Get(ctx, rec.ID)
			if loadErr == nil && current.Status == StatusReady {
				return nil
			}
		}
		return fmt.Errorf("claim export %s: %w", rec.ID, err)
	}

	doc, err := j.render(ctx, rec.Request)
	if err != nil {
		if ctx.Err() != nil {
			// Left in processing so the redelivered task reclaims it after the lease.
			return err
		}
		j.fail(ctx, rec.ID, err)
		if permanent(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	delivery := docgen.DirDelivery{Dir: filepath.Join(j.storageDir, rec.ID)}
	if err := delivery.Deliver(ctx, doc); err != nil {
		j.fail(ctx, rec.ID, err)
		return err
	}
	if _, err := j.store.MarkReady(ctx, rec.ID, doc.Filename, delivery.Path(doc)); err != nil {
		return err
	}
	j.logger.Info("export ready",
		slog.String("export_id", rec.ID),
		slog.String("filename", doc.Filename),
	)
	return nil
}

func (j *Job) render(ctx context.Context, req Request) (docgen.Document, error) {
	q, err := j.source.Get(ctx, req.QuotationID)
	if err != nil {
		return docgen.Document{}, err
	}
	return j.generator.Generate(ctx, docgen.Request{
		Quotation:     q,
		OfferID:       req.OfferID,
		SelectedNotes: req.SelectedNotes,
		Format:        docgen.Format(req.Format),
	})
}

func (j *Job) fail(ctx context.Context, id string, cause error) {
	if _, err := j.store.MarkFailed(ctx, id, cause.Error()); err != nil {
		j.logger.Warn("mark export failed", slog.String("export_id", id), slog.Any("error", err))
	}
}

// permanent reports failures a retry cannot fix.
func permanent(err error) bool {
	var noOffer *docgen.NoOfferError
	var renderErr *docgen.RenderError
	return errors.Is(err, quotation.ErrNotFound) ||
		errors.Is(err, quotation.ErrInvalidStatus) ||
		errors.As(err, &noOffer) ||
		errors.As(err, &renderErr)
}
