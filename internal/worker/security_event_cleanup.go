package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/risk-api/internal/repository"
	"github.com/jwalitptl/risk-api/pkg/logger"
)

const DefaultCleanupInterval = 24 * time.Hour

// SecurityEventCleanupWorker prunes the security event log past its retention period.
type SecurityEventCleanupWorker struct {
	repo            repository.SecurityEventRepository
	retentionDays   int
	cleanupInterval time.Duration
	logger          *logger.Logger
	now             func() time.Time
}

func NewSecurityEventCleanupWorker(repo repository.SecurityEventRepository, retentionDays int, cleanupInterval time.Duration, log *logger.Logger) *SecurityEventCleanupWorker {
	if log == nil {
		log = logger.Nop()
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &SecurityEventCleanupWorker{
		repo:            repo,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		logger:          log.With("security_event_cleanup"),
		now:             time.Now,
	}
}

// Start runs one cleanup immediately and then on every tick until ctx is done.
func (w *SecurityEventCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SecurityEventCleanupWorker) runOnce(ctx context.Context) {
	// Log error but continue
	if _, err := w.cleanup(ctx); err != nil {
		w.logger.Error(err, "security event cleanup failed")
	}
}

func (w *SecurityEventCleanupWorker) cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup security events: %w", err)
	}

	w.logger.Info("cleaned up security events", "rows", rows, "cutoff", cutoff)
	return rows, nil
}
