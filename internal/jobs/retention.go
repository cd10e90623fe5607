package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kinesica-health/kinesica/internal/domain"
)

// RetentionRepository prunes old conversation turns.
type RetentionRepository interface {
	DeleteOlderThan(ctx context.Context, assistantType domain.AssistantType, cutoff time.Time) (int64, error)
}

// RetentionJob removes conversation turns older than the retention window
// from every assistant's history table.
type RetentionJob struct {
	conversations RetentionRepository
	retentionDays int
	now           func() time.Time
}

// NewRetentionJob creates a new RetentionJob instance.
func NewRetentionJob(conversations RetentionRepository, retentionDays int) *RetentionJob {
	return &RetentionJob{
		conversations: conversations,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

func (j *RetentionJob) Name() string {
	return "conversation-retention"
}

// Run prunes every assistant table. A failure on one table does not stop the
// others; the first error is reported after the sweep.
func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays)

	var firstErr error
	for _, at := range domain.AssistantTypes() {
		removed, err := j.conversations.DeleteOlderThan(ctx, at, cutoff)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("retention sweep for %s: %w", at, err)
			}
			continue
		}
		if removed > 0 {
			log.Printf("retention: removed %d turns from %s history", removed, at)
		}
	}
	return firstErr
}
