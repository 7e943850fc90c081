package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/gin-gonic/gin"
	"github.com/mbd888/trapdetect/internal/decoder"
	"github.com/mbd888/trapdetect/internal/health"
	"github.com/mbd888/trapdetect/internal/logging"
	"github.com/mbd888/trapdetect/internal/metrics"
	"github.com/mbd888/trapdetect/internal/paywall"
	"github.com/mbd888/trapdetect/internal/report"
	"github.com/mbd888/trapdetect/internal/risk"
	"github.com/mbd888/trapdetect/internal/traces"
	"github.com/mbd888/trapdetect/internal/validation"
)

// -----------------------------------------------------------------------------
// Analyze
// -----------------------------------------------------------------------------

// analyzeRequest is the wire shape of POST /api/v1/analyze.
type analyzeRequest struct {
	Mode string          `json:"mode"`
	Data json.RawMessage `json:"data"`
	Lang string          `json:"lang"`
}

type calldataInput struct {
	Calldata string `json:"calldata"`
	To       string `json:"to"`
}

type typedDataInput struct {
	TypedData *apitypes.TypedData `json:"typedData"`
}

type approvalInput struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func badRequest(c *gin.Context, code, details string) {
	msg := "Invalid request"
	if code == "INVALID_MODE" {
		msg = "Invalid mode"
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   msg,
		"code":    code,
		"details": details,
	})
}

func (s *Server) analyzeHandler(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", "request body must be valid JSON")
		return
	}
	if req.Mode == "" || len(req.Data) == 0 {
		badRequest(c, "INVALID_REQUEST", "mode and data are required")
		return
	}

	lang := risk.Lang(req.Lang)
	if req.Lang == "" {
		lang = risk.Lang(s.cfg.DefaultLang)
	}
	if !risk.ValidLang(lang) {
		badRequest(c, "INVALID_REQUEST", "lang must be ja or en")
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "analyze",
		traces.Mode(req.Mode), traces.Lang(string(lang)))
	defer span.End()

	var resp *report.AnalyzeResponse

	switch req.Mode {
	case "calldata":
		var data calldataInput
		if err := json.Unmarshal(req.Data, &data); err != nil {
			badRequest(c, "INVALID_REQUEST", "data must be a calldata object")
			return
		}
		if data.Calldata == "" {
			badRequest(c, "INVALID_REQUEST", "calldata is required")
			return
		}
		resp = s.handleCalldataMode(ctx, data, lang)

	case "typedData":
		var data typedDataInput
		if err := json.Unmarshal(req.Data, &data); err != nil {
			badRequest(c, "INVALID_REQUEST", "data must be a typedData object")
			return
		}
		if data.TypedData == nil {
			badRequest(c, "INVALID_REQUEST", "typedData is required")
			return
		}
		resp = s.handleTypedDataMode(ctx, data, lang)

	case "approval":
		var data approvalInput
		if err := json.Unmarshal(req.Data, &data); err != nil {
			badRequest(c, "INVALID_REQUEST", "data must be an approval object")
			return
		}
		if data.Token == "" || data.Spender == "" || data.Amount == "" {
			badRequest(c, "INVALID_REQUEST", "token, spender, and amount are required")
			return
		}
		resp = s.handleApprovalMode(ctx, data, lang)

	default:
		badRequest(c, "INVALID_MODE", "mode must be calldata, typedData, or approval")
		return
	}

	span.SetAttributes(traces.SignalCount(len(resp.RiskSignals)))
	s.recordAnalyze(ctx, c, req.Mode, lang, resp.RiskSignals)

	c.JSON(http.StatusOK, resp)
}

// handleCalldataMode decodes raw call bytes. A failed decode degrades to a
// synthetic unknown intent with no decoded details; risk evaluation continues.
func (s *Server) handleCalldataMode(ctx context.Context, data calldataInput, lang risk.Lang) *report.AnalyzeResponse {
	decoded, err := decoder.DecodeCalldata(parseHexInput(data.Calldata), data.To)
	if err != nil {
		synthetic := &decoder.DecodedCalldata{
			FunctionName:     "unknown",
			FunctionSelector: selectorFromInput(data.Calldata),
			Args:             map[string]any{},
		}
		traces.SetAttributes(ctx, traces.Selector(synthetic.FunctionSelector))
		signals := s.engine.AnalyzeCalldata(ctx, synthetic, lang)
		return report.Build(nil, signals, lang, nil)
	}

	traces.SetAttributes(ctx, traces.Selector(decoded.FunctionSelector))
	signals := s.engine.AnalyzeCalldata(ctx, decoded, lang)
	return report.Build(decoded, signals, lang, nil)
}

func (s *Server) handleTypedDataMode(ctx context.Context, data typedDataInput, lang risk.Lang) *report.AnalyzeResponse {
	result, err := decoder.DecodeTypedData(data.TypedData)
	if err != nil {
		return report.Build(nil, []risk.Signal{}, lang, nil)
	}

	if result.IsPermit && result.Permit != nil {
		signals := s.engine.AnalyzePermit(ctx, result.Permit, lang)
		return report.Build(result.Decoded, signals, lang, result.Permit)
	}

	signals := s.engine.AnalyzeTypedData(ctx, result.Decoded, lang)
	return report.Build(result.Decoded, signals, lang, nil)
}

func (s *Server) handleApprovalMode(ctx context.Context, data approvalInput, lang risk.Lang) *report.AnalyzeResponse {
	token := validation.SanitizeAddress(data.Token)
	spender := validation.SanitizeAddress(data.Spender)

	amount := data.Amount
	if amount == "unlimited" {
		amount = decoder.MaxUint256String
	}

	signals := s.engine.AnalyzeApproval(ctx, token, spender, amount, lang)

	decoded := &decoder.DecodedCalldata{
		FunctionName:     "approve",
		FunctionSelector: decoder.SelectorApprove,
		Args: map[string]any{
			"spender":       spender,
			"amount":        amount,
			"tokenContract": token,
		},
	}

	return report.Build(decoded, signals, lang, nil)
}

// parseHexInput decodes a 0x-prefixed hex string, returning nil on garbage so
// the decoder fails with its own error code.
func parseHexInput(s string) []byte {
	if !validation.IsValidHex(s) {
		return nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil
	}
	return b
}

// selectorFromInput takes the selector portion of the raw input string, even
// when the rest of it is not decodable.
func selectorFromInput(calldata string) string {
	if len(calldata) >= 10 && strings.HasPrefix(calldata, "0x") {
		return calldata[:10]
	}
	return "0x00000000"
}

// recordAnalyze updates metrics and the usage log. Best effort; never affects
// the response.
func (s *Server) recordAnalyze(ctx context.Context, c *gin.Context, mode string, lang risk.Lang, signals []risk.Signal) {
	metrics.AnalyzeRequestsTotal.WithLabelValues(mode, string(lang)).Inc()

	ids := make([]string, 0, len(signals))
	for _, sig := range signals {
		metrics.RiskSignalsTotal.WithLabelValues(string(sig.ID)).Inc()
		ids = append(ids, string(sig.ID))
	}

	paid := paywall.GetPaymentProof(c) != nil
	if err := s.usage.Record(ctx, mode, string(lang), ids, paid); err != nil {
		logging.L(ctx).Warn("failed to record usage", "error", err)
	}
}

// -----------------------------------------------------------------------------
// Info & pricing
// -----------------------------------------------------------------------------

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Trap Detector",
		"description": "Transaction inspection API: decodes approvals, permits, and typed data, and flags wallet-draining patterns",
		"version":     "0.1.0",
		"chain":       "base",
		"chainId":     s.cfg.ChainID,
		"endpoints": gin.H{
			"analyze": "POST /api/v1/analyze",
			"pricing": "GET /api/v1/pricing",
			"signals": "GET /api/v1/signals",
			"status":  "GET /api/v1/status",
		},
	})
}

func (s *Server) pricingHandler(c *gin.Context) {
	resp := gin.H{
		"paywallEnabled": s.cfg.PaywallEnabled(),
		"price":          s.cfg.Price,
		"currency":       "USDC",
		"chain":          "base",
		"chainId":        s.cfg.ChainID,
		"contract":       s.cfg.PaymentToken,
	}
	if s.cfg.PaywallEnabled() {
		resp["recipient"] = s.cfg.PayTo
		resp["instructions"] = "POST /api/v1/analyze without payment returns 402 with a nonce. Pay the quoted USDC amount to the recipient, then retry with the X-Payment-Proof header."
	}
	c.JSON(http.StatusOK, resp)
}

// signalDescriptor is the public view of one risk signal definition.
type signalDescriptor struct {
	ID          risk.ID              `json:"id"`
	Severity    risk.Severity        `json:"severity"`
	Title       map[risk.Lang]string `json:"title"`
	Description map[risk.Lang]string `json:"description"`
}

func (s *Server) signalsHandler(c *gin.Context) {
	defs := risk.AllDefinitions()
	out := make([]signalDescriptor, 0, len(defs))
	for id, def := range defs {
		out = append(out, signalDescriptor{
			ID:          id,
			Severity:    def.Severity,
			Title:       def.Title,
			Description: def.Description,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"signals": out,
		"count":   len(out),
	})
}

func (s *Server) statusHandler(c *gin.Context) {
	ctx := c.Request.Context()

	resp := gin.H{
		"version":        "0.1.0",
		"chainId":        s.cfg.ChainID,
		"paywallEnabled": s.cfg.PaywallEnabled(),
	}

	if block, err := s.chain.BlockNumber(ctx); err == nil {
		resp["rpc"] = "healthy"
		resp["blockNumber"] = block
	} else {
		resp["rpc"] = "unhealthy"
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) adminMetricsHandler(c *gin.Context) {
	stats, err := s.usage.Snapshot(c.Request.Context())
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to snapshot usage", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  "INTERNAL_ERROR",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
