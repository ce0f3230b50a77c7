package exports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/quotedoc/jobs"
)

// PurgeJob deletes stored export directories older than the retention.
type PurgeJob struct {
	storageDir string
	retention  time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewPurgeJob constructs a PurgeJob. retention is used when the task does
// not carry its own.
func NewPurgeJob(storageDir string, retention time.Duration, logger *slog.Logger) *PurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurgeJob{storageDir: storageDir, retention: retention, logger: logger, now: time.Now}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (p *PurgeJob) Handle(ctx context.Context, task *asynq.Task) error {
	retention := p.retention
	if len(task.Payload()) > 0 {
		var payload jobs.ExportsPurgePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
		if payload.OlderThan > 0 {
			retention = payload.OlderThan
		}
	}
	removed, err := p.Purge(ctx, retention)
	if err != nil {
		return err
	}
	p.logger.Info("exports purged", slog.Int("removed", removed))
	return nil
}

// Purge removes export directories last modified before now-retention.
func (p *PurgeJob) Purge(ctx context.Context, retention time.Duration) (int, error) {
	entries, err := os.ReadDir(p.storageDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read storage dir: %w", err)
	}
	cutoff := p.now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(p.storageDir, entry.Name())); err != nil {
			p.logger.Warn("purge export", slog.String("dir", entry.Name()), slog.Any("error", err))
			continue
		}
		removed++
	}
	return removed, nil
}
