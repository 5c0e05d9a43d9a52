package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	aptos "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/api"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
)

// Client talks to an Aptos fullnode through the Aptos Go SDK.
type Client struct {
	node        *aptos.Client
	network     aptos.NetworkConfig
	httpClient  *http.Client
	pollInitial time.Duration
	pollMax     time.Duration
}

// Option tweaks a Client.
type Option func(*Client)

// WithHTTPClient replaces the SDK's default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPolling sets the confirmation poll interval bounds.
func WithPolling(initial, max time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.pollInitial = initial
		}
		if max >= c.pollInitial {
			c.pollMax = max
		}
	}
}

// Network resolves a named network (mainnet, testnet, devnet, localnet) to its SDK
// config. Unknown names fall back to testnet. A non-empty nodeURL replaces the
// preset fullnode endpoint.
func Network(name, nodeURL string) aptos.NetworkConfig {
	var cfg aptos.NetworkConfig
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mainnet":
		cfg = aptos.MainnetConfig
	case "devnet":
		cfg = aptos.DevnetConfig
	case "local", "localnet":
		cfg = aptos.LocalnetConfig
	default:
		cfg = aptos.TestnetConfig
	}
	if nodeURL != "" {
		cfg.NodeUrl = versionedURL(nodeURL)
	}
	return cfg
}

// versionedURL ensures the REST base ends in /v1, which the SDK expects.
func versionedURL(u string) string {
	u = strings.TrimRight(u, "/")
	if strings.HasSuffix(u, "/v1") {
		return u
	}
	return u + "/v1"
}

// NewClient creates a client for network.
func NewClient(network aptos.NetworkConfig, opts ...Option) (*Client, error) {
	c := &Client{
		network:     network,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		pollInitial: 250 * time.Millisecond,
		pollMax:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	network.NodeUrl = versionedURL(network.NodeUrl)
	node, err := aptos.NewClient(network, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("aptos client: %w", err)
	}
	c.node = node
	c.network = network
	return c, nil
}

// NodeURL is the fullnode REST base the client talks to.
func (c *Client) NodeURL() string {
	return c.network.NodeUrl
}

// View runs a read-only Move function and returns its return values, one raw JSON
// value per Move return.
func (c *Client) View(ctx context.Context, req ViewRequest) ([]json.RawMessage, error) {
	payload, err := viewPayload(req)
	if err != nil {
		return nil, fmt.Errorf("view %s: %w", req.Function, err)
	}

	values, err := callNode(ctx, func() ([]any, error) { return c.node.View(payload) })
	if err != nil {
		return nil, fmt.Errorf("view %s: %w", req.Function, nodeError(err))
	}
	out := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("view %s: encode result: %w", req.Function, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// TransactionByHash fetches a transaction by hash. A hash the node has not seen yet
// yields a *NodeError with status 404.
func (c *Client) TransactionByHash(ctx context.Context, hash string) (Transaction, error) {
	tx, err := callNode(ctx, func() (*api.Transaction, error) { return c.node.TransactionByHash(hash) })
	if err != nil {
		return Transaction{}, nodeError(err)
	}
	return fromAPITransaction(tx), nil
}

// WaitForTransaction blocks until the node commits hash or ctx ends. It does not
// judge success; callers inspect Transaction.Success.
func (c *Client) WaitForTransaction(ctx context.Context, hash string) (Transaction, error) {
	for attempt := 1; ; attempt++ {
		tx, err := c.TransactionByHash(ctx, hash)
		switch {
		case err == nil && !tx.Pending():
			return tx, nil
		case err != nil && !isNotFound(err):
			return Transaction{}, fmt.Errorf("wait for %s: %w", hash, err)
		}

		select {
		case <-ctx.Done():
			return Transaction{}, fmt.Errorf("wait for %s: %w", hash, ctx.Err())
		case <-time.After(pollDelay(c.pollInitial, c.pollMax, attempt)):
		}
	}
}

// callNode runs a blocking SDK call and gives up when ctx ends. The SDK call itself
// is bounded by the http.Client timeout.
func callNode[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func viewPayload(req ViewRequest) (*aptos.ViewPayload, error) {
	parts := strings.Split(req.Function, "::")
	if len(parts) != 3 {
		return nil, fmt.Errorf("function %q is not address::module::name", req.Function)
	}
	var moduleAddr aptos.AccountAddress
	if err := moduleAddr.ParseStringRelaxed(parts[0]); err != nil {
		return nil, fmt.Errorf("module address: %w", err)
	}

	args := make([][]byte, 0, len(req.Arguments))
	for i, a := range req.Arguments {
		b, err := encodeArg(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, b)
	}
	return &aptos.ViewPayload{
		Module:   aptos.ModuleId{Address: moduleAddr, Name: parts[1]},
		Function: parts[2],
		ArgTypes: []aptos.TypeTag{},
		Args:     args,
	}, nil
}

// encodeArg BCS-encodes one view argument.
func encodeArg(v any) ([]byte, error) {
	switch a := v.(type) {
	case Address:
		var addr aptos.AccountAddress
		if err := addr.ParseStringRelaxed(strings.ToLower(strings.TrimSpace(string(a)))); err != nil {
			return nil, fmt.Errorf("address %q: %w", string(a), err)
		}
		return bcs.Serialize(&addr)
	case string:
		ser := &bcs.Serializer{}
		ser.WriteString(a)
		return ser.ToBytes(), ser.Error()
	case uint64:
		ser := &bcs.Serializer{}
		ser.U64(a)
		return ser.ToBytes(), ser.Error()
	case bool:
		ser := &bcs.Serializer{}
		ser.Bool(a)
		return ser.ToBytes(), ser.Error()
	default:
		return nil, fmt.Errorf("unsupported argument type %T", v)
	}
}

func fromAPITransaction(tx *api.Transaction) Transaction {
	if tx == nil {
		return Transaction{}
	}
	out := Transaction{Type: string(tx.Type), Hash: tx.Hash()}
	if v := tx.Version(); v != nil {
		out.Version = fmt.Sprintf("%d", *v)
	}
	if ok := tx.Success(); ok != nil {
		out.Success = *ok
	}
	if user, ok := tx.Inner.(*api.UserTransaction); ok {
		out.VMStatus = user.VmStatus
	}
	return out
}

// nodeError turns an SDK HTTP failure into a *NodeError so callers can branch on
// status without importing the SDK.
func nodeError(err error) error {
	var he *aptos.HttpError
	if errors.As(err, &he) {
		return decodeNodeError(he.StatusCode, he.Body)
	}
	return err
}

// pollDelay grows exponentially from base, capped at max, with jitter in [wait/2, wait).
func pollDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max || exp > float64(math.MaxInt64) {
		wait = max
	}
	if wait < 2 {
		return wait
	}
	jitter := time.Duration(rand.Int63n(int64(wait / 2)))
	return wait/2 + jitter
}
