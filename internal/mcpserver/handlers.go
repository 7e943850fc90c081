package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// checkAddressToken is the placeholder token used by check_address. Only the
// spender side of the probe influences which signals fire.
const checkAddressToken = "0x0000000000000000000000000000000000000000"

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client      *TrapDetectClient
	defaultLang string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *TrapDetectClient, defaultLang string) *Handlers {
	return &Handlers{client: client, defaultLang: defaultLang}
}

func (h *Handlers) lang(req mcp.CallToolRequest) string {
	if l := req.GetString("lang", ""); l != "" {
		return l
	}
	return h.defaultLang
}

// HandleAnalyzeTransaction runs one analysis in the requested mode.
func (h *Handlers) HandleAnalyzeTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode := req.GetString("mode", "")
	if mode == "" {
		return mcp.NewToolResultError("mode is required"), nil
	}

	var data map[string]any
	switch mode {
	case "calldata":
		calldata := req.GetString("calldata", "")
		if calldata == "" {
			return mcp.NewToolResultError("calldata is required for calldata mode"), nil
		}
		data = map[string]any{"calldata": calldata}
		if to := req.GetString("to", ""); to != "" {
			data["to"] = to
		}

	case "typedData":
		raw := req.GetArguments()["typed_data"]
		td, ok := raw.(map[string]any)
		if !ok || len(td) == 0 {
			return mcp.NewToolResultError("typed_data is required for typedData mode"), nil
		}
		data = map[string]any{"typedData": td}

	case "approval":
		token := req.GetString("token", "")
		spender := req.GetString("spender", "")
		amount := req.GetString("amount", "")
		if token == "" || spender == "" || amount == "" {
			return mcp.NewToolResultError("token, spender, and amount are required for approval mode"), nil
		}
		data = map[string]any{"token": token, "spender": spender, "amount": amount}

	default:
		return mcp.NewToolResultError("mode must be calldata, typedData, or approval"), nil
	}

	raw, err := h.client.Analyze(ctx, mode, data, h.lang(req))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}

	text, err := formatAnalyzeReport(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse report: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleCheckAddress probes an address by running a nominal approval analysis
// against it and reading which spender signals fire.
func (h *Handlers) HandleCheckAddress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address := req.GetString("address", "")
	if address == "" {
		return mcp.NewToolResultError("address is required"), nil
	}

	data := map[string]any{
		"token":   checkAddressToken,
		"spender": address,
		"amount":  "1",
	}
	raw, err := h.client.Analyze(ctx, "approval", data, h.lang(req))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Address check failed: %v", err)), nil
	}

	text, err := formatAddressCheck(address, raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse report: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListRiskSignals returns the signal catalog.
func (h *Handlers) HandleListRiskSignals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListSignals(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list signals: %v", err)), nil
	}

	text, err := formatSignalCatalog(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse signals: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

type reportSignal struct {
	ID          string `json:"id"`
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type analyzeReport struct {
	Summary           string         `json:"summary"`
	DecodedDetails    map[string]any `json:"decodedDetails"`
	RiskSignals       []reportSignal `json:"riskSignals"`
	RecommendedChecks []string       `json:"recommendedChecks"`
	SafeAlternatives  []string       `json:"safeAlternatives"`
}

func formatAnalyzeReport(raw json.RawMessage) (string, error) {
	var rep analyzeReport
	if err := json.Unmarshal(raw, &rep); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(rep.Summary)
	sb.WriteString("\n")

	if rep.DecodedDetails != nil {
		name := getString(rep.DecodedDetails, "functionName")
		selector := getString(rep.DecodedDetails, "functionSelector", "primaryType")
		sb.WriteString("\nDecoded intent: ")
		sb.WriteString(name)
		if selector != "" {
			fmt.Fprintf(&sb, " (%s)", selector)
		}
		sb.WriteString("\n")
		if args, ok := rep.DecodedDetails["args"].(map[string]any); ok && len(args) > 0 {
			sb.WriteString(formatJSONValue(args))
		}
	}

	if len(rep.RiskSignals) > 0 {
		fmt.Fprintf(&sb, "\nRisk signals (%d):\n", len(rep.RiskSignals))
		for _, sig := range rep.RiskSignals {
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", strings.ToUpper(sig.Severity), sig.Title, sig.Description)
		}
	} else {
		sb.WriteString("\nNo risk signals raised.\n")
	}

	if len(rep.RecommendedChecks) > 0 {
		sb.WriteString("\nRecommended checks:\n")
		for _, c := range rep.RecommendedChecks {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}

	if len(rep.SafeAlternatives) > 0 {
		sb.WriteString("\nSafer alternatives:\n")
		for _, a := range rep.SafeAlternatives {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
	}

	return sb.String(), nil
}

func formatAddressCheck(address string, raw json.RawMessage) (string, error) {
	var rep analyzeReport
	if err := json.Unmarshal(raw, &rep); err != nil {
		return "", err
	}

	fired := make(map[string]reportSignal, len(rep.RiskSignals))
	for _, sig := range rep.RiskSignals {
		fired[sig.ID] = sig
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Address: %s\n", address)

	if fired["EOA_SPENDER"].ID != "" {
		sb.WriteString("Kind: externally owned account (no contract code)\n")
		sb.WriteString("Verdict: DO NOT approve tokens to this address. Legitimate protocols use contracts as spenders; an EOA spender can move your tokens at will.\n")
	} else {
		sb.WriteString("Kind: deployed contract\n")
		sb.WriteString("Verdict: has contract code, which is necessary but not sufficient. Verify the contract on a block explorer and approve only the exact amount you need.\n")
	}

	return sb.String(), nil
}

func formatSignalCatalog(raw json.RawMessage) (string, error) {
	var resp struct {
		Signals []struct {
			ID          string            `json:"id"`
			Severity    string            `json:"severity"`
			Title       map[string]string `json:"title"`
			Description map[string]string `json:"description"`
		} `json:"signals"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Signals) == 0 {
		return "No signal definitions returned.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d risk signals:\n\n", resp.Count)
	for _, s := range resp.Signals {
		fmt.Fprintf(&sb, "%s [%s]\n", s.ID, strings.ToUpper(s.Severity))
		if en := s.Title["en"]; en != "" {
			fmt.Fprintf(&sb, "  en: %s: %s\n", en, s.Description["en"])
		}
		if ja := s.Title["ja"]; ja != "" {
			fmt.Fprintf(&sb, "  ja: %s: %s\n", ja, s.Description["ja"])
		}
	}
	return sb.String(), nil
}

func formatJSONValue(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data) + "\n"
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
