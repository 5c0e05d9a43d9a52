package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"freelance-marketplace/internal/deadline"
	"freelance-marketplace/internal/gateway"
	"freelance-marketplace/internal/joblist"
	"freelance-marketplace/internal/models"
	"freelance-marketplace/internal/ratelimit"
	"freelance-marketplace/internal/telemetry"
)

// Listing is the controller surface the handlers drive.
type Listing interface {
	Snapshot() joblist.State
	SetIdentity(ctx context.Context, actor string)
	RefreshAll(ctx context.Context) bool
	RefreshByActor(ctx context.Context) bool
	CreateJob(ctx context.Context, in models.JobInput) (models.JobRecord, gateway.Submission, error)
}

// Limiter gates job postings per actor.
type Limiter interface {
	Allow(ctx context.Context, actor string) (ratelimit.Decision, error)
}

// Attempts reads the submission audit log.
type Attempts interface {
	ListAttempts(ctx context.Context, actor string, limit int) ([]models.SubmissionAttempt, error)
	CountByOutcome(ctx context.Context, since time.Time) (map[string]int64, error)
}

// Server wires HTTP handlers for the marketplace API.
type Server struct {
	listing  Listing
	limiter  Limiter
	attempts Attempts
	now      func() time.Time
}

// Option configures optional collaborators.
type Option func(*Server)

// WithLimiter enables per-actor rate limiting of POST /jobs.
func WithLimiter(l Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithAttempts enables GET /submissions.
func WithAttempts(a Attempts) Option {
	return func(s *Server) { s.attempts = a }
}

// WithClock overrides time.Now for deadline constraints.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New constructs the API server.
func New(listing Listing, opts ...Option) *Server {
	s := &Server{listing: listing, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Get("/state", s.handleState)
	r.Get("/jobs", s.handleAllJobs)
	r.Get("/jobs/mine", s.handleMyJobs)
	r.Post("/jobs", s.handleCreateJob)
	r.Post("/identity", s.handleIdentity)
	r.Post("/refresh", s.handleRefresh)
	r.Get("/deadline/constraints", s.handleConstraints)
	r.Get("/submissions", s.handleSubmissions)
	r.Get("/submissions/summary", s.handleSubmissionSummary)
	return r
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.listing.Snapshot())
}

func (s *Server) handleAllJobs(w http.ResponseWriter, _ *http.Request) {
	snap := s.listing.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"jobs": snap.AllJobs, "count": len(snap.AllJobs)})
}

func (s *Server) handleMyJobs(w http.ResponseWriter, _ *http.Request) {
	snap := s.listing.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"actor": snap.Actor, "jobs": snap.JobsByActor, "count": len(snap.JobsByActor)})
}

type identityRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.listing.SetIdentity(r.Context(), strings.TrimSpace(req.Address))
	writeJSON(w, http.StatusOK, s.listing.Snapshot())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	all := s.listing.RefreshAll(r.Context())
	mine := s.listing.RefreshByActor(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"all_committed": all, "by_actor_committed": mine, "state": s.listing.Snapshot()})
}

func (s *Server) handleConstraints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, deadline.ConstraintsAt(s.now()))
}

type createJobRequest struct {
	Description   string      `json:"description"`
	PaymentAmount json.Number `json:"payment_amount"`
	JobDeadline   string      `json:"job_deadline"`
}

type createJobResponse struct {
	Job        models.JobRecord   `json:"job"`
	Submission gateway.Submission `json:"submission"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	in, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}
	// Invalid input is rejected before it can spend a token.
	if err := in.Validate(s.now()); err != nil {
		writeError(w, err)
		return
	}

	if s.limiter != nil {
		if actor := s.listing.Snapshot().Actor; actor != "" {
			d, err := s.limiter.Allow(r.Context(), actor)
			if err != nil {
				http.Error(w, "rate limit error", http.StatusInternalServerError)
				return
			}
			if !d.Allowed {
				telemetry.RateLimitRejects.Inc()
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "too many job postings, try again later"})
				return
			}
		}
	}

	job, sub, err := s.listing.CreateJob(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createJobResponse{Job: job, Submission: sub})
}

// toInput parses the wire fields. Parse failures are reported as validation errors on
// the offending field.
func (req createJobRequest) toInput() (models.JobInput, error) {
	in := models.JobInput{Description: req.Description}
	if s := req.PaymentAmount.String(); s != "" {
		amount, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return in, &models.ValidationError{Field: "payment_amount", Err: errors.New("must be a whole number")}
		}
		in.PaymentAmount = amount
	}
	if strings.TrimSpace(req.JobDeadline) != "" {
		t, err := deadline.Parse(req.JobDeadline)
		if err != nil {
			return in, &models.ValidationError{Field: "job_deadline", Err: err}
		}
		in.Deadline = t
	}
	return in, nil
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	if s.attempts == nil {
		http.Error(w, "submission audit not configured", http.StatusNotFound)
		return
	}
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		actor = s.listing.Snapshot().Actor
	}
	if actor == "" {
		http.Error(w, "actor is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.attempts.ListAttempts(r.Context(), actor, limit)
	if err != nil {
		http.Error(w, "failed to read submissions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleSubmissionSummary counts outcomes over ?window= (a Go duration, default 24h).
func (s *Server) handleSubmissionSummary(w http.ResponseWriter, r *http.Request) {
	if s.attempts == nil {
		http.Error(w, "submission audit not configured", http.StatusNotFound)
		return
	}
	window := 24 * time.Hour
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			http.Error(w, "invalid window", http.StatusBadRequest)
			return
		}
		window = d
	}
	since := s.now().Add(-window)
	counts, err := s.attempts.CountByOutcome(r.Context(), since)
	if err != nil {
		http.Error(w, "failed to count submissions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"since": since, "outcomes": counts})
}

type errorBody struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := gateway.KindOf(err)
	body := errorBody{Error: kind.String(), Message: err.Error()}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	writeJSON(w, statusFor(kind), body)
}

func statusFor(kind gateway.Kind) int {
	switch kind {
	case gateway.KindValidation:
		return http.StatusBadRequest
	case gateway.KindUserRejected:
		return http.StatusConflict
	case gateway.KindQueryFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
