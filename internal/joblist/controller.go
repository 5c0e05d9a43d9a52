// Package joblist keeps the client-side view of the marketplace listing in step
// with the ledger and drives job postings.
package joblist

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"freelance-marketplace/internal/deadline"
	"freelance-marketplace/internal/gateway"
	"freelance-marketplace/internal/models"
	"freelance-marketplace/internal/telemetry"
)

// ErrNotConnected is returned when posting without a connected wallet.
var ErrNotConnected = errors.New("no wallet connected")

// Marketplace is the ledger surface the controller needs.
type Marketplace interface {
	ListAllJobs(ctx context.Context) ([]models.JobRecord, error)
	ListJobsByClient(ctx context.Context, address string) ([]models.JobRecord, error)
	SubmitJobPosting(ctx context.Context, sender string, jobID uint64, description string, paymentAmount uint64, deadlineEpochSeconds int64) (gateway.Submission, error)
}

// Recorder persists submission attempts. Failures to record are logged only.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt models.SubmissionAttempt) error
}

// Controller owns the listing state. Writes go through the transition functions
// in state.go under mu.
type Controller struct {
	market   Marketplace
	logger   *log.Logger
	now      func() time.Time
	ids      IDStrategy
	recorder Recorder

	mu    sync.Mutex
	state State
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDStrategy overrides the default sequential ids.
func WithIDStrategy(s IDStrategy) Option {
	return func(c *Controller) { c.ids = s }
}

// WithRecorder stores every submission attempt.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// New creates a Controller with an empty listing and no actor.
func New(market Marketplace, opts ...Option) *Controller {
	c := &Controller{
		market: market,
		logger: log.New(io.Discard, "", 0),
		now:    time.Now,
		ids:    SequentialIDs{Offset: 1000},
		state:  initialState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SetIdentity records a wallet connect, disconnect ("") or switch and refreshes
// both listings concurrently. Each listing is committed as soon as its query
// returns; SetIdentity returns once both have settled.
func (c *Controller) SetIdentity(ctx context.Context, actor string) {
	c.mu.Lock()
	c.state = applyIdentity(c.state, actor)
	c.mu.Unlock()
	c.logger.Printf("identity changed to %q", actor)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.RefreshAll(ctx)
	}()
	go func() {
		defer wg.Done()
		c.RefreshByActor(ctx)
	}()
	wg.Wait()
}

// RefreshAll re-queries the global listing. A failed query leaves an empty listing.
// It reports whether the result was committed.
func (c *Controller) RefreshAll(ctx context.Context) bool {
	c.mu.Lock()
	var gen uint64
	c.state, gen = beginAllRefresh(c.state)
	c.mu.Unlock()

	jobs, err := c.market.ListAllJobs(ctx)
	if err != nil {
		c.logger.Printf("refresh all jobs: %v", err)
		jobs = []models.JobRecord{}
	}

	c.mu.Lock()
	next, ok := applyAllJobs(c.state, gen, jobs)
	c.state = next
	c.mu.Unlock()

	if !ok {
		telemetry.StaleDiscards.WithLabelValues("all").Inc()
		return false
	}
	telemetry.RefreshCommits.WithLabelValues("all").Inc()
	telemetry.ListedJobsGauge.Set(float64(len(jobs)))
	return true
}

// RefreshByActor re-queries the jobs posted by the current actor. With no actor the
// listing is cleared without a query.
func (c *Controller) RefreshByActor(ctx context.Context) bool {
	c.mu.Lock()
	var gen uint64
	c.state, gen = beginActorRefresh(c.state)
	actor := c.state.Actor
	c.mu.Unlock()

	jobs := []models.JobRecord{}
	if actor != "" {
		var err error
		jobs, err = c.market.ListJobsByClient(ctx, actor)
		if err != nil {
			c.logger.Printf("refresh jobs by %s: %v", actor, err)
			jobs = []models.JobRecord{}
		}
	}

	c.mu.Lock()
	next, ok := applyJobsByActor(c.state, gen, actor, jobs)
	c.state = next
	c.mu.Unlock()

	if !ok {
		telemetry.StaleDiscards.WithLabelValues("by_actor").Inc()
		return false
	}
	telemetry.RefreshCommits.WithLabelValues("by_actor").Inc()
	return true
}

// CreateJob validates in, posts it as the current actor, waits for confirmation and
// refreshes the global listing. Input errors are *models.ValidationError and never
// reach the ledger.
func (c *Controller) CreateJob(ctx context.Context, in models.JobInput) (models.JobRecord, gateway.Submission, error) {
	if err := in.Validate(c.now()); err != nil {
		return models.JobRecord{}, gateway.Submission{}, err
	}

	snap := c.Snapshot()
	if snap.Actor == "" {
		return models.JobRecord{}, gateway.Submission{}, &models.ValidationError{Field: "actor", Err: ErrNotConnected}
	}
	jobID, err := c.ids.NextID(snap)
	if err != nil {
		return models.JobRecord{}, gateway.Submission{}, err
	}

	job := models.JobRecord{
		JobID:         jobID,
		Client:        snap.Actor,
		Description:   in.Description,
		PaymentAmount: in.PaymentAmount,
		JobDeadline:   deadline.EpochSeconds(in.Deadline),
	}

	sub, err := c.market.SubmitJobPosting(ctx, job.Client, job.JobID, job.Description, job.PaymentAmount, job.JobDeadline)
	c.record(ctx, job, sub, err)
	if err != nil {
		return models.JobRecord{}, gateway.Submission{}, err
	}

	c.mu.Lock()
	c.state = recordSubmitted(c.state, job)
	c.mu.Unlock()

	c.RefreshAll(ctx)
	return job, sub, nil
}

func (c *Controller) record(ctx context.Context, job models.JobRecord, sub gateway.Submission, err error) {
	if c.recorder == nil {
		return
	}
	attempt := models.SubmissionAttempt{
		ID:            uuid.New().String(),
		JobID:         job.JobID,
		Actor:         job.Client,
		Description:   job.Description,
		PaymentAmount: job.PaymentAmount,
		JobDeadline:   job.JobDeadline,
		TxHash:        sub.Hash,
		TxVersion:     sub.Version,
		Outcome:       gateway.KindOf(err).String(),
		Recorded:      c.now().UTC(),
	}
	var failed *gateway.TransactionFailedError
	if errors.As(err, &failed) {
		attempt.TxHash = failed.Hash
	}
	if err != nil {
		msg := err.Error()
		attempt.Error = &msg
	}
	if rerr := c.recorder.RecordAttempt(context.WithoutCancel(ctx), attempt); rerr != nil {
		c.logger.Printf("record submission for job %d: %v", job.JobID, rerr)
	}
}
