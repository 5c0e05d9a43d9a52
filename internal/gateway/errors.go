package gateway

import (
	"errors"
	"fmt"
	"strings"

	"freelance-marketplace/internal/models"
)

// Outcome sentinels, matched with errors.Is.
var (
	ErrUserRejected      = errors.New("gateway: user rejected the transaction")
	ErrTransactionFailed = errors.New("gateway: transaction failed")
	ErrQueryFailed       = errors.New("gateway: query failed")
)

const unknownError = "unknown error"

// UserRejectedError means the account holder declined to sign.
type UserRejectedError struct {
	Code    int
	Message string
}

func (e *UserRejectedError) Error() string {
	return fmt.Sprintf("transaction rejected by user (code %d)", e.Code)
}

func (e *UserRejectedError) Is(target error) bool {
	return target == ErrUserRejected
}

// TransactionFailedError covers every submission or confirmation failure other than
// a user rejection. Hash is set once the wallet handed one back.
type TransactionFailedError struct {
	Hash    string
	Message string
	Err     error
}

func (e *TransactionFailedError) Error() string {
	if e.Hash != "" {
		return fmt.Sprintf("transaction %s failed: %s", e.Hash, e.Message)
	}
	return fmt.Sprintf("transaction failed: %s", e.Message)
}

func (e *TransactionFailedError) Unwrap() error {
	return e.Err
}

func (e *TransactionFailedError) Is(target error) bool {
	return target == ErrTransactionFailed
}

// QueryFailedError is a failed read-only call.
type QueryFailedError struct {
	Function string
	Err      error
}

func (e *QueryFailedError) Error() string {
	return fmt.Sprintf("query %s failed: %v", e.Function, e.Err)
}

func (e *QueryFailedError) Unwrap() error {
	return e.Err
}

func (e *QueryFailedError) Is(target error) bool {
	return target == ErrQueryFailed
}

// coder is satisfied by wallet errors that carry a numeric rejection code.
type coder interface {
	ErrorCode() int
}

// Wallet-standard rejection code, plus the phrases wallets use when they omit it.
const codeUserRejected = 4001

var rejectionPhrases = []string{
	"user rejected",
	"rejected by user",
	"user has rejected",
	"user declined",
}

// ClassifySubmission turns a raw submission error into UserRejected or
// TransactionFailed. Already-classified errors pass through.
func ClassifySubmission(err error, hash string) error {
	if err == nil {
		return nil
	}
	var rejected *UserRejectedError
	var failed *TransactionFailedError
	if errors.As(err, &rejected) || errors.As(err, &failed) {
		return err
	}

	var c coder
	if errors.As(err, &c) && c.ErrorCode() == codeUserRejected {
		return &UserRejectedError{Code: c.ErrorCode(), Message: err.Error()}
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range rejectionPhrases {
		if strings.Contains(msg, phrase) {
			return &UserRejectedError{Code: codeUserRejected, Message: err.Error()}
		}
	}

	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = unknownError
	}
	return &TransactionFailedError{Hash: hash, Message: message, Err: err}
}

// Kind names an outcome so callers can switch on it.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindUserRejected
	KindTransactionFailed
	KindQueryFailed
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindValidation:
		return "validation_error"
	case KindUserRejected:
		return "user_rejected"
	case KindTransactionFailed:
		return "transaction_failed"
	case KindQueryFailed:
		return "query_failed"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Unrecognised errors count as TransactionFailed.
func KindOf(err error) Kind {
	var verr *models.ValidationError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &verr):
		return KindValidation
	case errors.Is(err, ErrUserRejected):
		return KindUserRejected
	case errors.Is(err, ErrQueryFailed):
		return KindQueryFailed
	default:
		return KindTransactionFailed
	}
}
