package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mbd888/trapdetect/pkg/x402"
)

// Config holds the configuration for connecting to the Trap Detector API.
type Config struct {
	APIURL       string // Base URL, e.g. "http://localhost:8080"
	PaymentProof string // Optional x402 proof forwarded as X-Payment-Proof
	DefaultLang  string // Report language when the caller does not pick one
}

// TrapDetectClient is a pure HTTP client for the Trap Detector API.
type TrapDetectClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewTrapDetectClient creates a new client for the Trap Detector API.
func NewTrapDetectClient(cfg Config) *TrapDetectClient {
	return &TrapDetectClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *TrapDetectClient) doRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.cfg.PaymentProof != "" {
		req.Header.Set("X-Payment-Proof", c.cfg.PaymentProof)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		var challenge x402.PaymentRequirement
		if err := json.Unmarshal(respBody, &challenge); err != nil {
			return nil, fmt.Errorf("payment required, unreadable challenge: %s", string(respBody))
		}
		return nil, fmt.Errorf(
			"payment required: send %s %s to %s on %s (nonce %s), "+
				"then set TRAPDETECT_PAYMENT_PROOF and retry",
			challenge.Price, challenge.Currency, challenge.Recipient,
			challenge.Chain, challenge.Nonce)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			msg := apiErr.Error
			if apiErr.Details != "" {
				msg = apiErr.Details
			}
			return nil, fmt.Errorf("API error (%d, %s): %s", resp.StatusCode, apiErr.Code, msg)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// Analyze submits one transaction analysis request.
func (c *TrapDetectClient) Analyze(ctx context.Context, mode string, data map[string]any, lang string) (json.RawMessage, error) {
	body := map[string]any{
		"mode": mode,
		"data": data,
	}
	if lang != "" {
		body["lang"] = lang
	}
	return c.doRequest(ctx, http.MethodPost, "/api/v1/analyze", body)
}

// ListSignals returns the catalog of risk signal definitions.
func (c *TrapDetectClient) ListSignals(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/v1/signals", nil)
}
