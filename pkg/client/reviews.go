package client

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/quotedesk-backend/pkg/poll"
)

// StartReview queues an AI review of the quote. created is false when an
// open job for the quote already existed and was returned instead. Pass the
// same idempotencyKey when retrying a call; an empty key is generated.
func (c *Client) StartReview(ctx context.Context, quoteID uuid.UUID, idempotencyKey string) (*ReviewJob, bool, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	var job ReviewJob
	resp, err := c.doJSON(ctx, request{
		method:  http.MethodPost,
		path:    quotePath(quoteID) + "/reviews",
		headers: map[string]string{"Idempotency-Key": idempotencyKey},
	}, &job)
	if err != nil {
		return nil, false, err
	}
	return &job, resp.StatusCode == http.StatusAccepted, nil
}

func (c *Client) GetReview(ctx context.Context, jobID uuid.UUID) (*ReviewJob, error) {
	var job ReviewJob
	if _, err := c.doJSON(ctx, request{method: http.MethodGet, path: "/api/v1/reviews/" + jobID.String()}, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForReview blocks until the job completes or fails. It listens for the
// analysis events when the stream can be opened and polls per policy either
// way, so a missed event only costs one interval. When the policy runs out
// first the last seen job is returned with ErrStillProcessing.
func (c *Client) WaitForReview(ctx context.Context, jobID uuid.UUID, policy poll.Policy) (*ReviewJob, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		last *ReviewJob
	)
	check := func(ctx context.Context) (bool, error) {
		job, err := c.GetReview(ctx, jobID)
		if err != nil {
			return false, err
		}
		mu.Lock()
		last = job
		mu.Unlock()
		return job.Status.Terminal(), nil
	}

	var events <-chan Event
	if stream, err := c.Subscribe(ctx, EventAnalysisCompleted, EventAnalysisFailed); err == nil {
		defer stream.Close()
		events = stream.C
	}

	task := poll.Start(ctx, policy, check)
	defer task.Cancel()

	for {
		select {
		case <-task.Done():
			err := task.Err()
			mu.Lock()
			job := last
			mu.Unlock()
			switch {
			case err == nil:
				return job, nil
			case errors.Is(err, poll.ErrTimeout):
				return job, ErrStillProcessing
			default:
				return job, err
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Payload["job_id"] != jobID.String() {
				continue
			}
			done, err := check(ctx)
			if err != nil {
				return nil, err
			}
			if done {
				mu.Lock()
				job := last
				mu.Unlock()
				return job, nil
			}
		}
	}
}
