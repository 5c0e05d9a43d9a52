package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"freelance-marketplace/internal/deadline"
)

// JobRecord mirrors one job as the marketplace module stores it.
type JobRecord struct {
	JobID                uint64 `json:"job_id"`
	Client               string `json:"client"`
	Freelancer           string `json:"freelancer"`
	Description          string `json:"description"`
	PaymentAmount        uint64 `json:"payment_amount"`
	JobDeadline          int64  `json:"job_deadline"`
	IsFreelancerAssigned bool   `json:"is_freelancer_assigned"`
	IsAccepted           bool   `json:"is_accepted"`
	IsCompleted          bool   `json:"is_completed"`
}

// Deadline decodes JobDeadline.
func (j JobRecord) Deadline() time.Time {
	return deadline.FromEpochSeconds(j.JobDeadline)
}

// JobInput is what a client fills in to post a job.
type JobInput struct {
	Description   string    `json:"description"`
	PaymentAmount uint64    `json:"payment_amount"`
	Deadline      time.Time `json:"job_deadline"`
}

var (
	// ErrValidation matches any *ValidationError through errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrRequired marks a missing mandatory field.
	ErrRequired = errors.New("required")
)

// ValidationError reports input rejected before any network call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validate checks the input against now. The first failing field is reported.
func (in JobInput) Validate(now time.Time) error {
	if strings.TrimSpace(in.Description) == "" {
		return &ValidationError{Field: "description", Err: ErrRequired}
	}
	if in.PaymentAmount == 0 {
		return &ValidationError{Field: "payment_amount", Err: errors.New("must be positive")}
	}
	if err := deadline.Validate(in.Deadline, now); err != nil {
		return &ValidationError{Field: "job_deadline", Err: err}
	}
	return nil
}
