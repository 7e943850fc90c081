package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/mbd888/trapdetect/internal/decoder"
	"github.com/mbd888/trapdetect/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contractSpender = "0x5555555555555555555555555555555555555555"
	eoaSpender      = "0x6666666666666666666666666666666666666666"
	someToken       = "0x7777777777777777777777777777777777777777"
)

func analyzeJSON(t *testing.T, s *Server, body string) (*report.AnalyzeResponse, int) {
	t.Helper()
	w := doRequest(s, "POST", "/api/v1/analyze", body)
	if w.Code != http.StatusOK {
		return nil, w.Code
	}
	var resp report.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp, w.Code
}

func signalIDs(resp *report.AnalyzeResponse) []string {
	ids := make([]string, 0, len(resp.RiskSignals))
	for _, sig := range resp.RiskSignals {
		ids = append(ids, string(sig.ID))
	}
	return ids
}

// approveCalldata builds approve(spender, amount) call bytes as a hex string.
func approveCalldata(t *testing.T, spender, amount string) string {
	t.Helper()
	// selector + 32-byte address + 32-byte amount, hand-assembled
	pad := func(hexVal string, width int) string {
		hexVal = strings.TrimPrefix(hexVal, "0x")
		return strings.Repeat("0", width-len(hexVal)) + hexVal
	}
	return decoder.SelectorApprove + pad(spender, 64) + pad(amount, 64)
}

func TestAnalyzeApprovalUnlimitedToEOA(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	body := fmt.Sprintf(`{"mode":"approval","data":{"token":%q,"spender":%q,"amount":"unlimited"}}`,
		someToken, eoaSpender)
	resp, code := analyzeJSON(t, s, body)
	require.Equal(t, http.StatusOK, code)

	ids := signalIDs(resp)
	assert.Equal(t, []string{"UNLIMITED_APPROVAL", "EOA_SPENDER"}, ids)
	assert.True(t, strings.HasPrefix(resp.Summary, "🚨"), "summary = %q", resp.Summary)
	assert.GreaterOrEqual(t, len(resp.RecommendedChecks), 2)
	assert.NotEmpty(t, resp.SafeAlternatives)
	assert.Contains(t, resp.ShareDrafts.Twitter, "#TrapDetector")

	// Decoded fallback record carries the sentinel amount.
	decoded := resp.DecodedDetails.(map[string]any)
	assert.Equal(t, "approve", decoded["functionName"])
	assert.Equal(t, decoder.SelectorApprove, decoded["functionSelector"])
	args := decoded["args"].(map[string]any)
	assert.Equal(t, decoder.MaxUint256String, args["amount"])
}

func TestAnalyzeApprovalContractSpenderSmallAmount(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{
		healthy:   true,
		contracts: map[string]bool{contractSpender: true},
	})

	body := fmt.Sprintf(`{"mode":"approval","data":{"token":%q,"spender":%q,"amount":"1000"}}`,
		someToken, contractSpender)
	resp, code := analyzeJSON(t, s, body)
	require.Equal(t, http.StatusOK, code)

	assert.Empty(t, resp.RiskSignals)
	assert.True(t, strings.HasPrefix(resp.Summary, "✅"), "summary = %q", resp.Summary)
}

func TestAnalyzeApprovalUnparseableAmount(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	body := fmt.Sprintf(`{"mode":"approval","data":{"token":%q,"spender":%q,"amount":"not-a-number"}}`,
		someToken, eoaSpender)
	resp, code := analyzeJSON(t, s, body)
	require.Equal(t, http.StatusOK, code)

	// Garbage amount is ignored; only the EOA check fires.
	assert.Equal(t, []string{"EOA_SPENDER"}, signalIDs(resp))
}

func TestAnalyzeCalldataUnlimitedApprove(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	calldata := approveCalldata(t, eoaSpender, strings.Repeat("f", 64))
	body := fmt.Sprintf(`{"mode":"calldata","data":{"calldata":%q,"to":%q},"lang":"en"}`,
		calldata, someToken)
	resp, code := analyzeJSON(t, s, body)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, []string{"UNLIMITED_APPROVAL", "EOA_SPENDER"}, signalIDs(resp))
	assert.Equal(t, "Unlimited Approval", resp.RiskSignals[0].Title)
}

func TestAnalyzeCalldataUnknownSelector(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	body := `{"mode":"calldata","data":{"calldata":"0xdeadbeef0000"}}`
	resp, code := analyzeJSON(t, s, body)
	require.Equal(t, http.StatusOK, code)

	// Unknown selector degrades to a clean report with no decoded details.
	assert.Nil(t, resp.DecodedDetails)
	assert.Empty(t, resp.RiskSignals)
}

func TestAnalyzeCalldataTruncatedKnownSelector(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	// approve selector with truncated arguments fails to decode. The report
	// must degrade to clean, not evaluate the approve rules on empty args.
	body := `{"mode":"calldata","data":{"calldata":"0x095ea7b30000"},"lang":"en"}`
	resp, code := analyzeJSON(t, s, body)
	require.Equal(t, http.StatusOK, code)

	assert.Nil(t, resp.DecodedDetails)
	assert.Empty(t, resp.RiskSignals)
	assert.True(t, strings.HasPrefix(resp.Summary, "✅"), "summary = %q", resp.Summary)
}

func TestAnalyzeTypedDataPermit(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	td := fmt.Sprintf(`{
		"types": {
			"EIP712Domain": [
				{"name": "name", "type": "string"},
				{"name": "chainId", "type": "uint256"},
				{"name": "verifyingContract", "type": "address"}
			],
			"Permit": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"},
				{"name": "value", "type": "uint256"},
				{"name": "nonce", "type": "uint256"},
				{"name": "deadline", "type": "uint256"}
			]
		},
		"primaryType": "Permit",
		"domain": {"name": "Token", "chainId": 8453, "verifyingContract": %q},
		"message": {
			"owner": "0x1111111111111111111111111111111111111111",
			"spender": %q,
			"value": "115792089237316195423570985008687907853269984665640564039457584007913129639935",
			"nonce": "0",
			"deadline": "1700000000"
		}
	}`, someToken, eoaSpender)

	body := fmt.Sprintf(`{"mode":"typedData","data":{"typedData":%s},"lang":"en"}`, td)
	resp, code := analyzeJSON(t, s, body)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, []string{"UNLIMITED_APPROVAL", "PERMIT_TO_UNKNOWN"}, signalIDs(resp))
}

func TestAnalyzeTypedDataMissingDomainFields(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	td := `{
		"types": {"Order": [{"name": "maker", "type": "address"}]},
		"primaryType": "Order",
		"domain": {"name": "Exchange"},
		"message": {"maker": "0x1111111111111111111111111111111111111111"}
	}`

	body := fmt.Sprintf(`{"mode":"typedData","data":{"typedData":%s}}`, td)
	resp, code := analyzeJSON(t, s, body)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, []string{"TYPEDDATA_DOMAIN_MISMATCH", "UNCLEAR_INTENT"}, signalIDs(resp))
}

func TestAnalyzeValidationErrors(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing mode", `{"data":{"calldata":"0x"}}`, "INVALID_REQUEST"},
		{"missing data", `{"mode":"calldata"}`, "INVALID_REQUEST"},
		{"bad mode", `{"mode":"bytecode","data":{"x":1}}`, "INVALID_MODE"},
		{"bad lang", `{"mode":"calldata","data":{"calldata":"0x00"},"lang":"fr"}`, "INVALID_REQUEST"},
		{"missing calldata", `{"mode":"calldata","data":{"to":"0x1"}}`, "INVALID_REQUEST"},
		{"missing typedData", `{"mode":"typedData","data":{}}`, "INVALID_REQUEST"},
		{"missing approval fields", `{"mode":"approval","data":{"token":"0x1"}}`, "INVALID_REQUEST"},
		{"not json", `{{{`, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, "POST", "/api/v1/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp["code"])
		})
	}
}

func TestAnalyzeDefaultsToJapanese(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	body := fmt.Sprintf(`{"mode":"approval","data":{"token":%q,"spender":%q,"amount":"unlimited"}}`,
		someToken, eoaSpender)
	resp, code := analyzeJSON(t, s, body)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, "無制限の承認", resp.RiskSignals[0].Title)
}

func TestAnalyzeRecordsUsage(t *testing.T) {
	s := newTestServer(t, testConfig(), &stubChain{healthy: true})

	body := fmt.Sprintf(`{"mode":"approval","data":{"token":%q,"spender":%q,"amount":"unlimited"}}`,
		someToken, eoaSpender)
	_, code := analyzeJSON(t, s, body)
	require.Equal(t, http.StatusOK, code)

	stats, err := s.usage.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.ByMode["approval"])
	assert.Equal(t, int64(1), stats.BySignal["UNLIMITED_APPROVAL"])
}
