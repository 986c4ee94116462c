package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpd "solpay_gateway/internal/delivery/http"
)

func fakeServer(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/pay", func(w http.ResponseWriter, r *http.Request) {
		if secret != "" && r.Header.Get("X-Signature") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "missing signature headers"})
			return
		}
		var req httpd.CreatePaymentReq
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(httpd.CreatePaymentResp{
			URL:       "solana:" + req.Recipient + "?amount=" + string(req.Amount),
			Reference: "ref-123",
			Amount:    string(req.Amount),
			Currency:  "SOL",
		})
	})
	mux.HandleFunc("/api/v1/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("reference") == "ref-123" {
			json.NewEncoder(w).Encode(map[string]string{"status": "verified", "signature": "5abc"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"status": "not_found"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HMAC_SECRET", "")
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRequestCommand(t *testing.T) {
	srv := fakeServer(t, "")

	out, err := run(t, "request", "--server", srv.URL,
		"--recipient", "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		"--amount", "0.0001", "--label", "Shop", "--message", "Thanks", "--memo", "order-1", "--wait")
	require.NoError(t, err)
	assert.Contains(t, out, "reference: ref-123")
	assert.Contains(t, out, "verified: 5abc")
}

func TestRequestCommand_Signed(t *testing.T) {
	srv := fakeServer(t, "s3cret")

	_, err := run(t, "request", "--server", srv.URL, "--recipient", "x", "--amount", "1")
	assert.ErrorContains(t, err, "missing signature headers")

	out, err := run(t, "request", "--server", srv.URL, "--secret", "s3cret", "--recipient", "x", "--amount", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "ref-123")
}

func TestVerifyCommand_NotFound(t *testing.T) {
	srv := fakeServer(t, "")

	_, err := run(t, "verify", "unknown", "--server", srv.URL, "--attempts", "2", "--backoff", "1ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Transaction not found yet")
}
