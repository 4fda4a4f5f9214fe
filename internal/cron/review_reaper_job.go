package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
)

const defaultReviewStaleAfter = 10 * time.Minute

type staleReviewReaper interface {
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type ReviewReaperJobParams struct {
	Logger     *logger.Logger
	Reviews    staleReviewReaper
	StaleAfter time.Duration
}

// NewReviewReaperJob fails review jobs left pending or running past the
// ceiling, for example after an API replica died mid-review.
func NewReviewReaperJob(params ReviewReaperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reviews == nil {
		return nil, fmt.Errorf("review service required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultReviewStaleAfter
	}
	return &reviewReaperJob{logg: params.Logger, reviews: params.Reviews, staleAfter: staleAfter}, nil
}

type reviewReaperJob struct {
	logg       *logger.Logger
	reviews    staleReviewReaper
	staleAfter time.Duration
}

func (j *reviewReaperJob) Name() string { return "review-reaper" }

func (j *reviewReaperJob) Run(ctx context.Context) error {
	n, err := j.reviews.ReapStale(ctx, j.staleAfter)
	if err != nil {
		return fmt.Errorf("reap stale reviews: %w", err)
	}
	if n > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "reaped", n), "stale review jobs marked failed")
	}
	return nil
}
