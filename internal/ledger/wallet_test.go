package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteSignerSubmit(t *testing.T) {
	var got signRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sign_and_submit", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"hash":"0xfeed"}`))
	}))
	defer srv.Close()

	signer := NewRemoteSigner(srv.URL+"/", "secret")
	payload := NewEntryFunction("0x1::FreelanceMarketplace::post_job", "1003", "desc", "10", "1801627506")
	pending, err := signer.SignAndSubmitTransaction(context.Background(), "0xa11ce", payload)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", pending.Hash)
	assert.Equal(t, "0xa11ce", got.Sender)
	assert.Equal(t, "entry_function_payload", got.Payload.Type)
	assert.Equal(t, []any{"1003", "desc", "10", "1801627506"}, got.Payload.Arguments)
}

func TestRemoteSignerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":4001,"message":"User rejected the request."}`))
	}))
	defer srv.Close()

	_, err := NewRemoteSigner(srv.URL, "").SignAndSubmitTransaction(context.Background(), "0xa", NewEntryFunction("0x1::m::f"))
	var werr *WalletError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, CodeUserRejected, werr.ErrorCode())
	assert.Equal(t, "User rejected the request.", werr.Message)
}

func TestRemoteSignerPlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "signer offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRemoteSigner(srv.URL, "").SignAndSubmitTransaction(context.Background(), "0xa", NewEntryFunction("0x1::m::f"))
	var werr *WalletError
	require.ErrorAs(t, err, &werr)
	assert.Zero(t, werr.Code)
	assert.Contains(t, werr.Message, "signer offline")
}

func TestRemoteSignerAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/account", r.URL.Path)
		_, _ = w.Write([]byte(`{"address":"0xa11ce"}`))
	}))
	defer srv.Close()

	addr, err := NewRemoteSigner(srv.URL, "").Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xa11ce", addr)
}

func TestStaticWallet(t *testing.T) {
	w := StaticWallet{Account: "0xb0b"}
	addr, err := w.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xb0b", addr)

	_, err = w.SignAndSubmitTransaction(context.Background(), "0xb0b", NewEntryFunction("0x1::m::f"))
	assert.Error(t, err)
}
