package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for maintenance jobs.
	QueueDefault = "default"
	// QueueDocuments holds document rendering jobs.
	QueueDocuments = "documents"

	// TaskQuotationDocumentGenerate renders a quotation document for an export record.
	TaskQuotationDocumentGenerate = "quotation:document_generate"
	// TaskExportsPurge removes stored export files past their retention.
	TaskExportsPurge = "exports:purge"
)

// DocumentExportPayload identifies the export record to fulfil.
type DocumentExportPayload struct {
	ExportID string `json:"export_id"`
}

// DocumentExportTimeout bounds a single export attempt.
const DocumentExportTimeout = 5 * time.Minute

// NewDocumentExportTask constructs an Asynq task for a document export.
func NewDocumentExportTask(payload DocumentExportPayload) (*asynq.Task, error) {
	if payload.ExportID == "" {
		return nil, errors.New("jobs: export id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationDocumentGenerate, data,
		asynq.Queue(QueueDocuments),
		asynq.MaxRetry(3),
		asynq.Timeout(DocumentExportTimeout),
	), nil
}

// ExportsPurgePayload configures a purge run.
type ExportsPurgePayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewExportsPurgeTask constructs the periodic purge task.
func NewExportsPurgeTask(olderThan time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(ExportsPurgePayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExportsPurge, data, asynq.Queue(QueueDefault)), nil
}
