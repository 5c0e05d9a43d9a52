package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	aptos "github.com/aptos-labs/aptos-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sender = "0x00000000000000000000000000000000000000000000000000000000000a11ce"

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(aptos.NetworkConfig{Name: "test", NodeUrl: srv.URL}, opts...)
	require.NoError(t, err)
	return c
}

func txJSON(kind, version string) string {
	sig := `{"type":"ed25519_signature","public_key":"0x` + strings.Repeat("00", 32) + `","signature":"0x` + strings.Repeat("00", 64) + `"}`
	payload := `{"type":"entry_function_payload","function":"0x1::FreelanceMarketplace::post_job","type_arguments":[],"arguments":["1003","Logo","100","1801627506"]}`
	common := fmt.Sprintf(`"hash":"0xabc","sender":%q,"sequence_number":"3","max_gas_amount":"2000","gas_unit_price":"100","expiration_timestamp_secs":"1801627506","payload":%s,"signature":%s`, sender, payload, sig)
	if kind == "pending_transaction" {
		return `{"type":"pending_transaction",` + common + `}`
	}
	return fmt.Sprintf(`{"type":"user_transaction","version":%q,"state_change_hash":"0x1","event_root_hash":"0x1","state_checkpoint_hash":null,"gas_used":"10","success":true,"vm_status":"Executed successfully","accumulator_root_hash":"0x1","changes":[],"events":[],"timestamp":"1760434200000000",%s}`, version, common)
}

func TestClientView(t *testing.T) {
	var body []byte
	var contentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/view", r.URL.Path)
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`[[{"job_id":"1000"}]]`))
	})

	out, err := c.View(context.Background(), ViewRequest{Function: "0x1::FreelanceMarketplace::view_jobs_by_client", Arguments: []any{Address("0xa")}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.JSONEq(t, `[{"job_id":"1000"}]`, string(out[0]))

	assert.Contains(t, contentType, "bcs")
	var addr aptos.AccountAddress
	require.NoError(t, addr.ParseStringRelaxed("0xa"))
	assert.True(t, bytes.Contains(body, addr[:]), "address argument not BCS-encoded")
	assert.True(t, bytes.Contains(body, []byte("FreelanceMarketplace")))
	assert.True(t, bytes.Contains(body, []byte("view_jobs_by_client")))
}

func TestClientViewRejectsBadRequests(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.View(context.Background(), ViewRequest{Function: "view_all_jobs"})
	assert.Error(t, err)
	_, err = c.View(context.Background(), ViewRequest{Function: "0x1::m::f", Arguments: []any{3.5}})
	assert.Error(t, err)
	_, err = c.View(context.Background(), ViewRequest{Function: "0x1::m::f", Arguments: []any{Address("not-hex")}})
	assert.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestClientViewNodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"function not found","error_code":"invalid_input","vm_error_code":null}`))
	})

	_, err := c.View(context.Background(), ViewRequest{Function: "0x1::m::f"})
	var ne *NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, http.StatusBadRequest, ne.StatusCode)
	assert.Equal(t, "invalid_input", ne.ErrorCode)
	assert.Equal(t, "function not found", ne.Message)
}

func TestClientNonJSONError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.View(context.Background(), ViewRequest{Function: "0x1::m::f"})
	var ne *NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "bad gateway", ne.Message)
}

func TestWaitForTransaction(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transactions/by_hash/0xabc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found","error_code":"transaction_not_found"}`))
		case 2:
			_, _ = w.Write([]byte(txJSON("pending_transaction", "")))
		default:
			_, _ = w.Write([]byte(txJSON("user_transaction", "77")))
		}
	}, WithPolling(time.Millisecond, 2*time.Millisecond))

	tx, err := c.WaitForTransaction(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, tx.Success)
	assert.Equal(t, "77", tx.Version)
	assert.Equal(t, "Executed successfully", tx.VMStatus)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWaitForTransactionStopsOnContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(txJSON("pending_transaction", "")))
	}, WithPolling(time.Millisecond, 5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.WaitForTransaction(ctx, "0xabc")
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestWaitForTransactionServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"storage error"}`))
	})

	_, err := c.WaitForTransaction(context.Background(), "0xabc")
	var ne *NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "storage error", ne.Message)
}

func TestNetwork(t *testing.T) {
	assert.Equal(t, aptos.MainnetConfig.NodeUrl, Network("Mainnet", "").NodeUrl)
	assert.Equal(t, aptos.DevnetConfig.NodeUrl, Network("devnet", "").NodeUrl)
	assert.Equal(t, aptos.TestnetConfig.NodeUrl, Network("unknown", "").NodeUrl)
	assert.Equal(t, aptos.TestnetConfig.ChainId, Network("", "").ChainId)

	custom := Network("testnet", "http://node.local:8080/")
	assert.Equal(t, "http://node.local:8080/v1", custom.NodeUrl)
	assert.Equal(t, "http://node.local:8080/v1", Network("local", "http://node.local:8080/v1").NodeUrl)
}

func TestPollDelay(t *testing.T) {
	rand.Seed(1)
	base := 100 * time.Millisecond
	max := time.Second

	d1 := pollDelay(base, max, 1)
	assert.GreaterOrEqual(t, d1, base/2)
	assert.Less(t, d1, base)

	d10 := pollDelay(base, max, 10)
	assert.GreaterOrEqual(t, d10, max/2)
	assert.Less(t, d10, max)

	assert.GreaterOrEqual(t, pollDelay(base, max, 200), max/2)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0x1", NormalizeAddress("0x0000000000000000000000000000000000000000000000000000000000000001"))
	assert.Equal(t, "0xabc", NormalizeAddress(" 0XABC "))
	assert.Equal(t, "0xabc", NormalizeAddress("abc"))
	assert.Equal(t, "0x0", NormalizeAddress("0x000"))
	assert.Equal(t, "0xa11ce", NormalizeAddress(sender))
	assert.Equal(t, "0xnothex", NormalizeAddress("0xNotHex"))
	assert.Equal(t, "", NormalizeAddress(""))

	assert.True(t, SameAddress("0x0a", "0xA"))
	assert.True(t, SameAddress(sender, "0xa11ce"))
	assert.False(t, SameAddress("", ""))
	assert.False(t, SameAddress("0x1", "0x2"))
}

func TestFunctionID(t *testing.T) {
	assert.Equal(t, "0xbeef::FreelanceMarketplace::post_job", FunctionID("0xbeef", "FreelanceMarketplace", "post_job"))
}
