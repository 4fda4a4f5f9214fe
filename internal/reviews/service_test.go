package reviews

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/quotedesk-backend/internal/events"
	"github.com/angelmondragon/quotedesk-backend/internal/lineitems"
	"github.com/angelmondragon/quotedesk-backend/internal/quotes"
	"github.com/angelmondragon/quotedesk-backend/pkg/config"
	"github.com/angelmondragon/quotedesk-backend/pkg/db"
	"github.com/angelmondragon/quotedesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/quotedesk-backend/pkg/errors"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
	"github.com/angelmondragon/quotedesk-backend/pkg/outbox"
)

type bus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *bus) Publish(_ context.Context, ev events.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *bus) has(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ev := range b.events {
		if ev.Name == name {
			return true
		}
	}
	return false
}

type denyLimiter struct{ err error }

func (d denyLimiter) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return false, 99, d.err
}

type harness struct {
	conn  *gorm.DB
	svc   Service
	bus   *bus
	items lineitems.Repository
}

func newHarness(t *testing.T, cfg config.ReviewsConfig, limiter rateLimiter) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	b := &bus{}
	items := lineitems.NewRepository(conn)
	deps := Deps{
		Repo:   NewRepository(conn),
		Quotes: quotes.NewRepository(conn),
		Items:  items,
		Tx:     db.Wrap(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
		Bus:    b,
		Config: cfg,
	}
	if limiter != nil {
		deps.Limiter = limiter
	}
	svc, err := NewService(deps)
	require.NoError(t, err)
	return &harness{conn: conn, svc: svc, bus: b, items: items}
}

func (h *harness) quote(t *testing.T, items ...ledger.LineItem) *models.Quote {
	t.Helper()
	q := &models.Quote{CustomerID: uuid.New(), Title: "q", Status: enums.QuoteStatusDraft, Currency: enums.CurrencyUSD}
	require.NoError(t, quotes.NewRepository(h.conn).Create(context.Background(), q))
	if len(items) > 0 {
		_, err := h.items.ReplaceForOwner(context.Background(), enums.LineItemOwnerQuote, q.ID, items)
		require.NoError(t, err)
	}
	return q
}

func (h *harness) waitFor(t *testing.T, jobID uuid.UUID, status enums.ReviewStatus) *JobDTO {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.svc.Get(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status == status {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, status)
	return nil
}

func TestStartRunsReviewToCompletion(t *testing.T) {
	h := newHarness(t, config.ReviewsConfig{Workers: 1, QueueSize: 4, Timeout: time.Second}, nil)
	q := h.quote(t, line("Boiler", "1", "0"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.svc.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	job, created, err := h.svc.Start(context.Background(), nil, q.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, enums.ReviewStatusPending, job.Status)

	finished := h.waitFor(t, job.ID, enums.ReviewStatusCompleted)
	require.NotNil(t, finished.HealthScore)
	assert.Equal(t, 90, *finished.HealthScore)
	require.Len(t, finished.Suggestions, 1)
	assert.Equal(t, KindZeroPrice, finished.Suggestions[0].Kind)
	assert.NotNil(t, finished.FinishedAt)

	assert.True(t, h.bus.has(events.AnalysisStarted))
	require.Eventually(t, func() bool {
		return h.bus.has(events.AnalysisCompleted) && h.bus.has(events.ActivitySuggestionsUpdated)
	}, time.Second, 10*time.Millisecond)

	var rows []models.OutboxEvent
	require.NoError(t, h.conn.Where("event_type = ?", enums.EventReviewCompleted).Find(&rows).Error)
	assert.Len(t, rows, 1)
}

func TestStartReturnsOpenJob(t *testing.T) {
	h := newHarness(t, config.ReviewsConfig{Workers: 1, QueueSize: 4}, nil)
	q := h.quote(t)

	first, created, err := h.svc.Start(context.Background(), nil, q.ID)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := h.svc.Start(context.Background(), nil, q.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestStartFailsWhenQueueIsFull(t *testing.T) {
	h := newHarness(t, config.ReviewsConfig{Workers: 1, QueueSize: 1}, nil)

	_, _, err := h.svc.Start(context.Background(), nil, h.quote(t).ID)
	require.NoError(t, err)

	q := h.quote(t)
	_, _, err = h.svc.Start(context.Background(), nil, q.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.True(t, h.bus.has(events.AnalysisFailed))

	var job models.ReviewJob
	require.NoError(t, h.conn.Where("quote_id = ?", q.ID).First(&job).Error)
	assert.Equal(t, enums.ReviewStatusFailed, job.Status)
}

func TestStartUnknownQuote(t *testing.T) {
	h := newHarness(t, config.ReviewsConfig{}, nil)
	_, _, err := h.svc.Start(context.Background(), nil, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestStartRateLimited(t *testing.T) {
	h := newHarness(t, config.ReviewsConfig{RateLimit: 1, RateWindow: time.Minute}, denyLimiter{})
	_, _, err := h.svc.Start(context.Background(), nil, h.quote(t).ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRateLimit))
}

func TestStartRateLimiterOutageFailsOpen(t *testing.T) {
	h := newHarness(t, config.ReviewsConfig{RateLimit: 1, QueueSize: 2}, denyLimiter{err: errors.New("redis down")})
	_, created, err := h.svc.Start(context.Background(), nil, h.quote(t).ID)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestReapStaleFailsOpenJobs(t *testing.T) {
	h := newHarness(t, config.ReviewsConfig{Workers: 1, QueueSize: 4}, nil)
	job, _, err := h.svc.Start(context.Background(), nil, h.quote(t).ID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	n, err := h.svc.ReapStale(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReviewStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "did not finish")

	n, err = h.svc.ReapStale(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = h.svc.ReapStale(context.Background(), 0)
	assert.Error(t, err)
}

func TestGetUnknownJob(t *testing.T) {
	h := newHarness(t, config.ReviewsConfig{}, nil)
	_, err := h.svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPoolSubmitNeverBlocks(t *testing.T) {
	p := newPool(1, 1)
	assert.True(t, p.submit(uuid.New()))
	assert.False(t, p.submit(uuid.New()))
}

func TestCompletedJobReadsBack(t *testing.T) {
	h := newHarness(t, config.ReviewsConfig{Workers: 1, QueueSize: 4}, nil)
	job, _, err := h.svc.Start(context.Background(), nil, h.quote(t).ID)
	require.NoError(t, err)

	repo := NewRepository(h.conn)
	ok, err := repo.MarkCompleted(context.Background(), job.ID, 75, []byte(`[{"kind":"zero_price","message":"free"}]`), time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	got, err := h.svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReviewStatusCompleted, got.Status)
	require.NotNil(t, got.HealthScore)
	assert.Equal(t, 75, *got.HealthScore)
	require.Len(t, got.Suggestions, 1)
	assert.Equal(t, "free", got.Suggestions[0].Message)

	ok, err = repo.MarkCompleted(context.Background(), job.ID, 10, []byte(`[]`), time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok, "finished jobs stay finished")
}

func TestOneOpenJobPerQuote(t *testing.T) {
	h := newHarness(t, config.ReviewsConfig{Workers: 1, QueueSize: 4}, nil)
	q := h.quote(t)
	repo := NewRepository(h.conn)

	require.NoError(t, repo.Create(context.Background(), &models.ReviewJob{QuoteID: q.ID, CustomerID: q.CustomerID, Status: enums.ReviewStatusPending}))
	err := repo.Create(context.Background(), &models.ReviewJob{QuoteID: q.ID, CustomerID: q.CustomerID, Status: enums.ReviewStatusRunning})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, openJobIndex))

	// finished jobs do not count against the index
	require.NoError(t, repo.Create(context.Background(), &models.ReviewJob{QuoteID: q.ID, CustomerID: q.CustomerID, Status: enums.ReviewStatusFailed}))
}

// blindRepo misses open jobs on the first lookup, the way a concurrent Start
// sees the table just before the other request commits.
type blindRepo struct {
	Repository
	lookups *int
}

func (b blindRepo) FindOpenForQuote(ctx context.Context, quoteID uuid.UUID) (*models.ReviewJob, error) {
	*b.lookups++
	if *b.lookups == 1 {
		return nil, gorm.ErrRecordNotFound
	}
	return b.Repository.FindOpenForQuote(ctx, quoteID)
}

func (b blindRepo) WithTx(tx *gorm.DB) Repository {
	return blindRepo{Repository: b.Repository.WithTx(tx), lookups: b.lookups}
}

func TestStartLosingCreateRaceReturnsOpenJob(t *testing.T) {
	h := newHarness(t, config.ReviewsConfig{Workers: 1, QueueSize: 4}, nil)
	q := h.quote(t)
	first, created, err := h.svc.Start(context.Background(), nil, q.ID)
	require.NoError(t, err)
	require.True(t, created)

	lookups := 0
	racing, err := NewService(Deps{
		Repo:   blindRepo{Repository: NewRepository(h.conn), lookups: &lookups},
		Quotes: quotes.NewRepository(h.conn),
		Items:  h.items,
		Tx:     db.Wrap(h.conn),
		Outbox: outbox.NewService(outbox.NewRepository(h.conn), nil),
		Bus:    h.bus,
		Config: config.ReviewsConfig{Workers: 1, QueueSize: 4},
	})
	require.NoError(t, err)

	second, created, err := racing.Start(context.Background(), nil, q.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, lookups)

	var open []models.ReviewJob
	require.NoError(t, h.conn.Where("quote_id = ? AND status IN ?", q.ID, openStatuses).Find(&open).Error)
	assert.Len(t, open, 1)
}
