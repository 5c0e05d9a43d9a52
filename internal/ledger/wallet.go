package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Wallet is the external signing capability. Keys never enter this process.
type Wallet interface {
	// Address returns the currently connected account, or "" when disconnected.
	Address(ctx context.Context) (string, error)
	// SignAndSubmitTransaction asks the account holder to sign payload and submits it.
	SignAndSubmitTransaction(ctx context.Context, sender string, payload EntryFunctionPayload) (PendingTransaction, error)
}

// RemoteSigner is a Wallet backed by an HTTP signing service.
type RemoteSigner struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewRemoteSigner builds a signer client. The submission call can wait on a human,
// so no client-side timeout is set; bound it with the context.
func NewRemoteSigner(baseURL, token string) *RemoteSigner {
	return &RemoteSigner{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

type signRequest struct {
	Sender  string               `json:"sender"`
	Payload EntryFunctionPayload `json:"payload"`
}

type accountResponse struct {
	Address string `json:"address"`
}

// Address implements Wallet.
func (s *RemoteSigner) Address(ctx context.Context) (string, error) {
	var out accountResponse
	if err := s.call(ctx, http.MethodGet, "/v1/account", nil, &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

// SignAndSubmitTransaction implements Wallet.
func (s *RemoteSigner) SignAndSubmitTransaction(ctx context.Context, sender string, payload EntryFunctionPayload) (PendingTransaction, error) {
	body, err := json.Marshal(signRequest{Sender: sender, Payload: payload})
	if err != nil {
		return PendingTransaction{}, fmt.Errorf("marshal sign request: %w", err)
	}
	var out PendingTransaction
	if err := s.call(ctx, http.MethodPost, "/v1/sign_and_submit", bytes.NewReader(body), &out); err != nil {
		return PendingTransaction{}, err
	}
	if out.Hash == "" {
		return PendingTransaction{}, &WalletError{Message: "signer returned no transaction hash"}
	}
	return out, nil
}

func (s *RemoteSigner) call(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build signer request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("signer request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read signer response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		werr := &WalletError{}
		if err := json.Unmarshal(data, werr); err != nil || (werr.Code == 0 && werr.Message == "") {
			werr.Message = fmt.Sprintf("signer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return werr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode signer response: %w", err)
	}
	return nil
}

// StaticWallet reports a fixed address and refuses to sign. It serves read-only
// deployments where no signer is configured.
type StaticWallet struct {
	Account string
}

// Address implements Wallet.
func (w StaticWallet) Address(context.Context) (string, error) {
	return w.Account, nil
}

// SignAndSubmitTransaction implements Wallet.
func (w StaticWallet) SignAndSubmitTransaction(context.Context, string, EntryFunctionPayload) (PendingTransaction, error) {
	return PendingTransaction{}, &WalletError{Message: "no signer configured"}
}

var _ Wallet = (*RemoteSigner)(nil)
var _ Wallet = StaticWallet{}

