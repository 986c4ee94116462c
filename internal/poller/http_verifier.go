package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// HTTPVerifier calls GET {BaseURL}/api/v1/verify?reference=...
type HTTPVerifier struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPVerifier(baseURL string, client *http.Client) *HTTPVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPVerifier{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

type verifyResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RPCError  string `json:"rpcError"`
	Signature string `json:"signature"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, reference string) (*Outcome, error) {
	u := v.BaseURL + "/api/v1/verify?reference=" + url.QueryEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := v.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	// Proxies in front of the server answer errors with HTML, so the body
	// is optional and the status code decides the kind.
	var body verifyResponse
	decodeErr := json.NewDecoder(res.Body).Decode(&body)

	if res.StatusCode == http.StatusOK && decodeErr == nil && body.Status == "verified" {
		return &Outcome{Reference: reference, Signature: body.Signature}, nil
	}

	se := &StatusError{StatusCode: res.StatusCode, Message: body.Message}
	switch {
	case res.StatusCode == http.StatusNotFound || body.Status == "not_found":
		se.Kind = KindNotFound
		if se.Message == "" {
			se.Message = "not found"
		}
	case res.StatusCode == http.StatusBadGateway:
		se.Kind = KindUpstream
		if body.RPCError != "" {
			se.Message = strings.TrimSpace(se.Message + ": " + body.RPCError)
		}
	case res.StatusCode == http.StatusGatewayTimeout:
		se.Kind = KindTimeout
	case decodeErr != nil:
		se.Kind = KindGeneric
		se.Message = fmt.Sprintf("decode verify response: %v", decodeErr)
	default:
		se.Kind = KindGeneric
		if se.Message == "" && res.StatusCode == http.StatusOK {
			se.Message = "Verification failed"
		}
	}
	return nil, se
}
