package models

import "time"

// SubmissionAttempt is one post_job attempt that reached the ledger gateway.
type SubmissionAttempt struct {
	ID            string    `json:"id"`
	JobID         uint64    `json:"job_id"`
	Actor         string    `json:"actor"`
	Description   string    `json:"description"`
	PaymentAmount uint64    `json:"payment_amount"`
	JobDeadline   int64     `json:"job_deadline"`
	TxHash        string    `json:"tx_hash,omitempty"`
	TxVersion     string    `json:"tx_version,omitempty"`
	Outcome       string    `json:"outcome"`
	Error         *string   `json:"error,omitempty"`
	Recorded      time.Time `json:"recorded_at"`
}
