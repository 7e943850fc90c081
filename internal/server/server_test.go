package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/trapdetect/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubChain is a ChainService double. Contracts lists addresses that resolve
// as deployed code; everything else is an EOA.
type stubChain struct {
	contracts map[string]bool
	healthy   bool
	verified  bool
}

func (s *stubChain) Address() string { return "0x1234567890123456789012345678901234567890" }

func (s *stubChain) VerifyPayment(context.Context, string, string, string) (bool, error) {
	return s.verified, nil
}

func (s *stubChain) IsContract(_ context.Context, address string) bool {
	return s.contracts[address]
}

func (s *stubChain) Healthy(context.Context) bool { return s.healthy }

func (s *stubChain) BlockNumber(context.Context) (uint64, error) { return 12345, nil }

func (s *stubChain) Close() {}

func testConfig() *config.Config {
	return &config.Config{
		Port:         "8080",
		Env:          "development",
		LogLevel:     "error",
		RPCURL:       config.DefaultRPCURL,
		ChainID:      config.DefaultChainID,
		PaymentToken: config.DefaultPaymentToken,
		Price:        "0.05",
		DefaultLang:  "ja",
		RateLimitRPM: 10000,
		AdminSecret:  "test-secret",
	}
}

func newTestServer(t *testing.T, cfg *config.Config, stub *stubChain) *Server {
	t.Helper()
	if stub == nil {
		stub = &stubChain{healthy: true}
	}
	s, err := New(cfg, WithChainService(stub))
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestInfoEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	w := doRequest(s, "GET", "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Trap Detector")
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	w := doRequest(s, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = doRequest(s, "GET", "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Not ready until Run() marks it.
	w = doRequest(s, "GET", "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthDegradedWhenRPCDown(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: false})

	w := doRequest(s, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestPricingEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	w := doRequest(s, "GET", "/api/v1/pricing", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paywallEnabled":false`)
	assert.Contains(t, w.Body.String(), `"price":"0.05"`)
}

func TestSignalsEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	w := doRequest(s, "GET", "/api/v1/signals", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":8`)
	assert.Contains(t, w.Body.String(), "UNLIMITED_APPROVAL")
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	w := doRequest(s, "GET", "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"blockNumber":12345`)
}

func TestAdminMetricsRequiresSecret(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	w := doRequest(s, "GET", "/api/v1/admin/metrics", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest("GET", "/api/v1/admin/metrics", nil)
	req.Header.Set("X-Admin-Secret", "test-secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalRequests"`)
}

func TestAdminMetricsDisabledWithoutSecret(t *testing.T) {
	cfg := testConfig()
	cfg.AdminSecret = ""
	s := newTestServer(t, cfg, nil)

	req := httptest.NewRequest("GET", "/api/v1/admin/metrics", nil)
	req.Header.Set("X-Admin-Secret", "anything")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAnalyzeBehindPaywall(t *testing.T) {
	cfg := testConfig()
	cfg.PayTo = "0x4444444444444444444444444444444444444444"
	s := newTestServer(t, cfg, &stubChain{healthy: true})

	body := `{"mode":"approval","data":{"token":"0x1","spender":"0x2","amount":"1"}}`
	w := doRequest(s, "POST", "/api/v1/analyze", body)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Payment-Required"))
}
