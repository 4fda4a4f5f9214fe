package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/quotedesk-backend/internal/events"
	"github.com/angelmondragon/quotedesk-backend/internal/lineitems"
	"github.com/angelmondragon/quotedesk-backend/pkg/config"
	"github.com/angelmondragon/quotedesk-backend/pkg/db"
	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/quotedesk-backend/pkg/errors"
	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
	"github.com/angelmondragon/quotedesk-backend/pkg/outbox"
	"github.com/angelmondragon/quotedesk-backend/pkg/outbox/payloads"
)

const (
	reapBatch     = 200
	finishTimeout = 5 * time.Second
	openJobIndex  = "review_jobs_one_open_idx"
)

type quoteReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// rateLimiter is satisfied by pkg/redis.Client.
type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Service starts quote reviews and reports on them. Run must be running for
// queued jobs to be processed.
type Service interface {
	Start(ctx context.Context, actor *outbox.ActorRef, quoteID uuid.UUID) (*JobDTO, bool, error)
	Get(ctx context.Context, jobID uuid.UUID) (*JobDTO, error)
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)
	Run(ctx context.Context) error
}

type Deps struct {
	Repo    Repository
	Quotes  quoteReader
	Items   lineitems.Repository
	Tx      txRunner
	Outbox  outbox.Emitter
	Bus     events.Publisher
	Limiter rateLimiter
	Logger  *logger.Logger
	Config  config.ReviewsConfig
}

type service struct {
	repo    Repository
	quotes  quoteReader
	items   lineitems.Repository
	tx      txRunner
	outbox  outbox.Emitter
	bus     events.Publisher
	limiter rateLimiter
	logg    *logger.Logger
	cfg     config.ReviewsConfig
	pool    *pool
	now     func() time.Time
}

func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, errors.New("review repository required")
	case deps.Quotes == nil:
		return nil, errors.New("quote reader required")
	case deps.Items == nil:
		return nil, errors.New("line item repository required")
	case deps.Tx == nil:
		return nil, errors.New("transaction runner required")
	case deps.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case deps.Bus == nil:
		return nil, errors.New("event publisher required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Config.Timeout <= 0 {
		deps.Config.Timeout = 60 * time.Second
	}
	return &service{
		repo:    deps.Repo,
		quotes:  deps.Quotes,
		items:   deps.Items,
		tx:      deps.Tx,
		outbox:  deps.Outbox,
		bus:     deps.Bus,
		limiter: deps.Limiter,
		logg:    deps.Logger,
		cfg:     deps.Config,
		pool:    newPool(deps.Config.Workers, deps.Config.QueueSize),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start queues a review of the quote. When a review of it is already open
// that job is returned and created is false.
func (s *service) Start(ctx context.Context, actor *outbox.ActorRef, quoteID uuid.UUID) (*JobDTO, bool, error) {
	quote, err := s.quotes.FindByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}

	if err := s.checkRate(ctx, quoteID); err != nil {
		return nil, false, err
	}

	open, err := s.repo.FindOpenForQuote(ctx, quoteID)
	switch {
	case err == nil:
		return FromModel(open), false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open review")
	}

	job := &models.ReviewJob{
		QuoteID:    quote.ID,
		CustomerID: quote.CustomerID,
		Status:     enums.ReviewStatusPending,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		if !db.IsUniqueViolation(err, openJobIndex) {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review job")
		}
		// a concurrent start won the one-open-job index
		open, err := s.repo.FindOpenForQuote(ctx, quoteID)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open review")
		}
		return FromModel(open), false, nil
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"quote_id": quote.ID.String(), "job_id": job.ID.String()})
	if actor != nil {
		ctx = s.logg.WithUserID(ctx, actor.UserID.String())
	}
	s.bus.Publish(ctx, events.New(events.AnalysisStarted, map[string]string{
		"quote_id":    quote.ID.String(),
		"job_id":      job.ID.String(),
		"customer_id": quote.CustomerID.String(),
	}))

	if !s.pool.submit(job.ID) {
		s.fail(ctx, job, "review queue is full")
		return nil, false, pkgerrors.New(pkgerrors.CodeDependency, "review queue is full, try again shortly")
	}
	s.logg.Info(ctx, "review.queued")
	return FromModel(job), true, nil
}

func (s *service) Get(ctx context.Context, jobID uuid.UUID) (*JobDTO, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review job not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review job")
	}
	return FromModel(job), nil
}

// ReapStale fails open jobs created before now-olderThan and returns how many
// it closed.
func (s *service) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	jobs, err := s.repo.ListOpenBefore(ctx, s.now().Add(-olderThan), reapBatch)
	if err != nil {
		return 0, err
	}
	reaped := 0
	reason := fmt.Sprintf("review did not finish within %s", olderThan)
	for i := range jobs {
		if s.fail(ctx, &jobs[i], reason) {
			reaped++
		}
	}
	return reaped, nil
}

func (s *service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithField(ctx, "workers", s.pool.workers), "review workers started")
	s.pool.run(ctx, s.process)
	return ctx.Err()
}

func (s *service) checkRate(ctx context.Context, quoteID uuid.UUID) error {
	if s.limiter == nil || s.cfg.RateLimit <= 0 {
		return nil
	}
	window := s.cfg.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "reviews:"+quoteID.String(), s.cfg.RateLimit, window)
	if err != nil {
		// fail open: reviews are advisory
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "review rate limit check failed")
		return nil
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many reviews requested for this quote")
	}
	return nil
}

func (s *service) process(ctx context.Context, jobID uuid.UUID) {
	ctx = s.logg.WithField(ctx, "job_id", jobID.String())
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		s.logg.Error(ctx, "review.load_failed", err)
		return
	}
	ok, err := s.repo.MarkRunning(ctx, job.ID, s.now())
	if err != nil {
		s.logg.Error(ctx, "review.mark_running_failed", err)
		return
	}
	if !ok {
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	result, err := s.review(jobCtx, job)
	if err == nil && jobCtx.Err() != nil {
		err = jobCtx.Err()
	}
	if err != nil {
		reason := "review failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "review timed out"
		}
		s.logg.Error(ctx, "review.failed", err)
		s.fail(ctx, job, reason)
		return
	}
	s.complete(ctx, job, result)
}

func (s *service) review(ctx context.Context, job *models.ReviewJob) (Result, error) {
	rows, err := s.items.ListForOwner(ctx, enums.LineItemOwnerQuote, job.QuoteID)
	if err != nil {
		return Result{}, fmt.Errorf("load quote items: %w", err)
	}
	return Analyze(lineitems.ToLedger(rows)), nil
}

func (s *service) complete(ctx context.Context, job *models.ReviewJob, result Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	encoded, err := json.Marshal(result.Suggestions)
	if err != nil {
		s.fail(ctx, job, "review produced unreadable suggestions")
		return
	}
	marked := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		marked, err = s.repo.WithTx(tx).MarkCompleted(ctx, job.ID, result.HealthScore, encoded, s.now())
		if err != nil || !marked {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewCompleted,
			AggregateType: enums.AggregateReviewJob,
			AggregateID:   job.ID,
			Data: payloads.ReviewCompletedEvent{
				JobID:           job.ID,
				QuoteID:         job.QuoteID,
				CustomerID:      job.CustomerID,
				HealthScore:     result.HealthScore,
				SuggestionCount: len(result.Suggestions),
			},
		})
	})
	if err != nil {
		s.logg.Error(ctx, "review.complete_failed", err)
		return
	}
	if !marked {
		return
	}

	s.bus.Publish(ctx, events.New(events.AnalysisCompleted, map[string]string{
		"quote_id":         job.QuoteID.String(),
		"job_id":           job.ID.String(),
		"health_score":     strconv.Itoa(result.HealthScore),
		"suggestion_count": strconv.Itoa(len(result.Suggestions)),
	}))
	s.bus.Publish(ctx, events.New(events.ActivitySuggestionsUpdated, map[string]string{
		"customer_id": job.CustomerID.String(),
		"quote_id":    job.QuoteID.String(),
	}))
	s.logg.Info(s.logg.WithField(ctx, "health_score", result.HealthScore), "review.completed")
}

// fail closes an open job and reports it. It returns false when the job was
// already finished.
func (s *service) fail(ctx context.Context, job *models.ReviewJob, reason string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	marked := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		marked, err = s.repo.WithTx(tx).MarkFailed(ctx, job.ID, reason, s.now())
		if err != nil || !marked {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewFailed,
			AggregateType: enums.AggregateReviewJob,
			AggregateID:   job.ID,
			Data: payloads.ReviewFailedEvent{
				JobID:      job.ID,
				QuoteID:    job.QuoteID,
				CustomerID: job.CustomerID,
				Reason:     reason,
			},
		})
	})
	if err != nil {
		s.logg.Error(ctx, "review.fail_failed", err)
		return false
	}
	if !marked {
		return false
	}
	s.bus.Publish(ctx, events.New(events.AnalysisFailed, map[string]string{
		"quote_id": job.QuoteID.String(),
		"job_id":   job.ID.String(),
		"reason":   reason,
	}))
	s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "review.marked_failed")
	return true
}
