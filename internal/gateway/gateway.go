// Package gateway is the boundary to the marketplace module: it submits job
// postings through the wallet and runs the listing view functions.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"strconv"
	"time"

	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/models"
	"freelance-marketplace/internal/telemetry"
)

// Move function names exposed by the marketplace module.
const (
	FnPostJob          = "post_job"
	FnViewAllJobs      = "view_all_jobs"
	FnViewJobsByClient = "view_jobs_by_client"
)

// Node is the read/confirm half of the ledger client.
type Node interface {
	View(ctx context.Context, req ledger.ViewRequest) ([]json.RawMessage, error)
	WaitForTransaction(ctx context.Context, hash string) (ledger.Transaction, error)
}

// Config addresses the module and bounds confirmation.
type Config struct {
	ModuleAddress string
	ModuleName    string
	// ConfirmTimeout of zero waits as long as the node and context allow.
	ConfirmTimeout time.Duration
}

// Gateway wraps submission and view calls with outcome classification.
type Gateway struct {
	node   Node
	wallet ledger.Wallet
	cfg    Config
	logger *log.Logger
	now    func() time.Time
}

// New builds a Gateway. A nil logger discards output.
func New(node Node, wallet ledger.Wallet, cfg Config, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.ModuleName == "" {
		cfg.ModuleName = "FreelanceMarketplace"
	}
	return &Gateway{node: node, wallet: wallet, cfg: cfg, logger: logger, now: time.Now}
}

// Submission is a confirmed, successful job posting.
type Submission struct {
	JobID   uint64 `json:"job_id"`
	Hash    string `json:"hash"`
	Version string `json:"version"`
}

// Function returns the fully-qualified name of a module function.
func (g *Gateway) Function(fn string) string {
	return ledger.FunctionID(g.cfg.ModuleAddress, g.cfg.ModuleName, fn)
}

// PostJobPayload builds the post_job entry call. u64 arguments are sent as decimal
// strings, the encoding the node expects for 64-bit integers.
func (g *Gateway) PostJobPayload(jobID uint64, description string, paymentAmount uint64, deadlineEpochSeconds int64) ledger.EntryFunctionPayload {
	return ledger.NewEntryFunction(g.Function(FnPostJob),
		strconv.FormatUint(jobID, 10),
		description,
		strconv.FormatUint(paymentAmount, 10),
		strconv.FormatInt(deadlineEpochSeconds, 10),
	)
}

// SubmitJobPosting signs and submits post_job as sender, then blocks until the node
// confirms it. Errors are *UserRejectedError or *TransactionFailedError.
func (g *Gateway) SubmitJobPosting(ctx context.Context, sender string, jobID uint64, description string, paymentAmount uint64, deadlineEpochSeconds int64) (Submission, error) {
	payload := g.PostJobPayload(jobID, description, paymentAmount, deadlineEpochSeconds)

	pending, err := g.wallet.SignAndSubmitTransaction(ctx, sender, payload)
	if err != nil {
		return Submission{}, g.recordFailure(jobID, ClassifySubmission(err, ""))
	}

	waitCtx, cancel := g.confirmContext(ctx)
	defer cancel()
	started := g.now()
	tx, err := g.node.WaitForTransaction(waitCtx, pending.Hash)
	telemetry.ConfirmDuration.Observe(g.now().Sub(started).Seconds())
	if err != nil {
		return Submission{}, g.recordFailure(jobID, ClassifySubmission(err, pending.Hash))
	}
	if !tx.Success {
		status := tx.VMStatus
		if status == "" {
			status = unknownError
		}
		return Submission{}, g.recordFailure(jobID, &TransactionFailedError{Hash: pending.Hash, Message: status})
	}

	telemetry.SubmissionOutcomes.WithLabelValues(KindNone.String()).Inc()
	g.logger.Printf("job %d posted in tx %s (version %s)", jobID, pending.Hash, tx.Version)
	return Submission{JobID: jobID, Hash: pending.Hash, Version: tx.Version}, nil
}

func (g *Gateway) confirmContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.ConfirmTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.cfg.ConfirmTimeout)
}

func (g *Gateway) recordFailure(jobID uint64, err error) error {
	kind := KindOf(err)
	telemetry.SubmissionOutcomes.WithLabelValues(kind.String()).Inc()
	if kind == KindUserRejected {
		g.logger.Printf("job %d: transaction rejected by user", jobID)
		return err
	}
	g.logger.Printf("job %d: %v", jobID, err)
	return err
}

// QueryAllJobs runs view_all_jobs and returns the raw return values.
func (g *Gateway) QueryAllJobs(ctx context.Context) ([]json.RawMessage, error) {
	return g.view(ctx, FnViewAllJobs)
}

// QueryJobsByClient runs view_jobs_by_client(address).
func (g *Gateway) QueryJobsByClient(ctx context.Context, address string) ([]json.RawMessage, error) {
	return g.view(ctx, FnViewJobsByClient, ledger.Address(address))
}

// ListAllJobs returns the decoded global listing.
func (g *Gateway) ListAllJobs(ctx context.Context) ([]models.JobRecord, error) {
	raw, err := g.QueryAllJobs(ctx)
	if err != nil {
		return []models.JobRecord{}, err
	}
	return g.decode(FnViewAllJobs, raw)
}

// ListJobsByClient returns the decoded listing for one client.
func (g *Gateway) ListJobsByClient(ctx context.Context, address string) ([]models.JobRecord, error) {
	raw, err := g.QueryJobsByClient(ctx, address)
	if err != nil {
		return []models.JobRecord{}, err
	}
	return g.decode(FnViewJobsByClient, raw)
}

func (g *Gateway) view(ctx context.Context, fn string, args ...any) ([]json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	out, err := g.node.View(ctx, ledger.ViewRequest{Function: g.Function(fn), Arguments: args})
	if err != nil {
		telemetry.QueryFailures.WithLabelValues(fn).Inc()
		qerr := &QueryFailedError{Function: fn, Err: err}
		g.logger.Printf("%v", qerr)
		return nil, qerr
	}
	return out, nil
}

func (g *Gateway) decode(fn string, raw []json.RawMessage) ([]models.JobRecord, error) {
	jobs, err := models.MapJobList(raw)
	if err != nil {
		telemetry.QueryFailures.WithLabelValues(fn).Inc()
		qerr := &QueryFailedError{Function: fn, Err: err}
		g.logger.Printf("%v", qerr)
		return []models.JobRecord{}, qerr
	}
	return jobs, nil
}
