// Package ledgertest provides an in-memory marketplace module that satisfies the
// node and wallet interfaces, for tests that need a ledger without a network.
package ledgertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/models"
)

// Chain is a fake fullnode plus wallet holding job records in memory.
type Chain struct {
	mu      sync.Mutex
	jobs    []models.JobRecord
	txs     map[string]ledger.Transaction
	nextTx  int
	account string

	// ViewErr, when set, fails every view call.
	ViewErr error
	// ViewHook runs before each view call with the request; it may block.
	ViewHook func(ctx context.Context, req ledger.ViewRequest)
	// SignErr, when set, is returned by the next SignAndSubmitTransaction.
	SignErr error
	// AbortNext makes the next submitted transaction commit with success=false.
	AbortNext string
	// WaitErr, when set, fails WaitForTransaction.
	WaitErr error

	Submitted []ledger.EntryFunctionPayload
	Views     []ledger.ViewRequest
}

// NewChain returns a chain whose wallet is connected as account.
func NewChain(account string, jobs ...models.JobRecord) *Chain {
	return &Chain{
		jobs:    append([]models.JobRecord(nil), jobs...),
		txs:     map[string]ledger.Transaction{},
		account: account,
	}
}

// Connect switches the wallet's account.
func (c *Chain) Connect(account string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = account
}

// Jobs returns a copy of the stored records.
func (c *Chain) Jobs() []models.JobRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.JobRecord(nil), c.jobs...)
}

// Update applies fn to the stored job with id, simulating ledger operations outside
// the posting flow.
func (c *Chain) Update(id uint64, fn func(*models.JobRecord)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.jobs {
		if c.jobs[i].JobID == id {
			fn(&c.jobs[i])
		}
	}
}

// View implements the node view call.
func (c *Chain) View(ctx context.Context, req ledger.ViewRequest) ([]json.RawMessage, error) {
	c.mu.Lock()
	hook := c.ViewHook
	c.Views = append(c.Views, req)
	c.mu.Unlock()
	if hook != nil {
		hook(ctx, req)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ViewErr != nil {
		return nil, c.ViewErr
	}

	var selected []models.JobRecord
	switch {
	case strings.HasSuffix(req.Function, "::view_all_jobs"):
		selected = c.jobs
	case strings.HasSuffix(req.Function, "::view_jobs_by_client"):
		if len(req.Arguments) != 1 {
			return nil, &ledger.NodeError{StatusCode: 400, Message: "expected 1 argument"}
		}
		addr, ok := req.Arguments[0].(ledger.Address)
		if !ok {
			return nil, &ledger.NodeError{StatusCode: 400, Message: "expected an address argument", ErrorCode: "invalid_input"}
		}
		for _, j := range c.jobs {
			if ledger.SameAddress(j.Client, string(addr)) {
				selected = append(selected, j)
			}
		}
	default:
		return nil, &ledger.NodeError{StatusCode: 400, Message: "function not found", ErrorCode: "invalid_input"}
	}

	encoded := make([]map[string]any, 0, len(selected))
	for _, j := range selected {
		encoded = append(encoded, Encode(j))
	}
	payload, err := json.Marshal(encoded)
	if err != nil {
		return nil, err
	}
	return []json.RawMessage{payload}, nil
}

// Encode renders a record the way the node does: u64 as strings, freelancer as an
// Option.
func Encode(j models.JobRecord) map[string]any {
	freelancer := map[string]any{"vec": []string{}}
	if j.Freelancer != "" {
		freelancer = map[string]any{"vec": []string{j.Freelancer}}
	}
	return map[string]any{
		"job_id":                 strconv.FormatUint(j.JobID, 10),
		"client":                 j.Client,
		"freelancer":             freelancer,
		"description":            j.Description,
		"payment_amount":         strconv.FormatUint(j.PaymentAmount, 10),
		"job_deadline":           strconv.FormatInt(j.JobDeadline, 10),
		"is_freelancer_assigned": j.IsFreelancerAssigned,
		"is_accepted":            j.IsAccepted,
		"is_completed":           j.IsCompleted,
	}
}

// Address implements ledger.Wallet.
func (c *Chain) Address(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account, nil
}

// SignAndSubmitTransaction implements ledger.Wallet. A post_job call is applied
// immediately unless AbortNext is set.
func (c *Chain) SignAndSubmitTransaction(_ context.Context, sender string, payload ledger.EntryFunctionPayload) (ledger.PendingTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SignErr != nil {
		err := c.SignErr
		c.SignErr = nil
		return ledger.PendingTransaction{}, err
	}
	c.Submitted = append(c.Submitted, payload)
	c.nextTx++
	hash := fmt.Sprintf("0x%064x", c.nextTx)

	if c.AbortNext != "" {
		c.txs[hash] = ledger.Transaction{Type: "user_transaction", Hash: hash, Version: strconv.Itoa(c.nextTx), VMStatus: c.AbortNext}
		c.AbortNext = ""
		return ledger.PendingTransaction{Hash: hash}, nil
	}

	if strings.HasSuffix(payload.Function, "::post_job") {
		job, err := decodePostJob(sender, payload.Arguments)
		if err != nil {
			return ledger.PendingTransaction{}, err
		}
		for _, existing := range c.jobs {
			if existing.JobID == job.JobID {
				c.txs[hash] = ledger.Transaction{Type: "user_transaction", Hash: hash, Version: strconv.Itoa(c.nextTx), VMStatus: "Move abort: EJOB_EXISTS"}
				return ledger.PendingTransaction{Hash: hash}, nil
			}
		}
		c.jobs = append(c.jobs, job)
	}
	c.txs[hash] = ledger.Transaction{Type: "user_transaction", Hash: hash, Version: strconv.Itoa(c.nextTx), Success: true, VMStatus: "Executed successfully"}
	return ledger.PendingTransaction{Hash: hash}, nil
}

// WaitForTransaction implements the node confirmation call.
func (c *Chain) WaitForTransaction(ctx context.Context, hash string) (ledger.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WaitErr != nil {
		return ledger.Transaction{}, c.WaitErr
	}
	if err := ctx.Err(); err != nil {
		return ledger.Transaction{}, err
	}
	tx, ok := c.txs[hash]
	if !ok {
		return ledger.Transaction{}, &ledger.NodeError{StatusCode: 404, Message: "transaction not found"}
	}
	return tx, nil
}

func decodePostJob(sender string, args []any) (models.JobRecord, error) {
	if len(args) != 4 {
		return models.JobRecord{}, errors.New("post_job expects 4 arguments")
	}
	str := func(i int) string {
		s, _ := args[i].(string)
		return s
	}
	id, err := strconv.ParseUint(str(0), 10, 64)
	if err != nil {
		return models.JobRecord{}, fmt.Errorf("job_id: %w", err)
	}
	amount, err := strconv.ParseUint(str(2), 10, 64)
	if err != nil {
		return models.JobRecord{}, fmt.Errorf("payment_amount: %w", err)
	}
	deadline, err := strconv.ParseInt(str(3), 10, 64)
	if err != nil {
		return models.JobRecord{}, fmt.Errorf("job_deadline: %w", err)
	}
	return models.JobRecord{
		JobID:         id,
		Client:        sender,
		Description:   str(1),
		PaymentAmount: amount,
		JobDeadline:   deadline,
	}, nil
}
