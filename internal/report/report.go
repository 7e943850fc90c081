// Package report assembles the final analysis payload: summary, decoded
// intent, risk signals, localized guidance, and a shareable draft. Pure
// formatting over its inputs, no I/O.
package report

import (
	"fmt"
	"strings"

	"github.com/mbd888/trapdetect/internal/decoder"
	"github.com/mbd888/trapdetect/internal/risk"
)

// AnalyzeResponse is the wire shape returned to API callers. Built fresh
// per request; nothing in it is shared or mutated afterwards.
type AnalyzeResponse struct {
	Summary           string        `json:"summary"`
	DecodedDetails    any           `json:"decodedDetails"`
	RiskSignals       []risk.Signal `json:"riskSignals"`
	RecommendedChecks []string      `json:"recommendedChecks"`
	SafeAlternatives  []string      `json:"safeAlternatives"`
	ShareDrafts       ShareDrafts   `json:"shareDrafts"`
}

// ShareDrafts holds pre-written share text per platform.
type ShareDrafts struct {
	Twitter string `json:"twitter"`
}

// Build assembles the full response. decoded may be nil when nothing could
// be decoded; permit carries EIP-2612 details when the request was a Permit.
func Build(decoded any, signals []risk.Signal, lang risk.Lang, permit *decoder.PermitDetails) *AnalyzeResponse {
	return &AnalyzeResponse{
		Summary:           summary(signals, lang),
		DecodedDetails:    decoded,
		RiskSignals:       signals,
		RecommendedChecks: collectAdvice(recommendedChecks[lang], signals),
		SafeAlternatives:  collectAdvice(safeAlternatives[lang], signals),
		ShareDrafts:       ShareDrafts{Twitter: twitterDraft(signals, lang)},
	}
}

// severe reports whether a signal warrants the alarm treatment.
func severe(s risk.Signal) bool {
	return s.Severity == risk.SeverityCritical || s.Severity == risk.SeverityHigh
}

func countSevere(signals []risk.Signal) int {
	n := 0
	for _, s := range signals {
		if severe(s) {
			n++
		}
	}
	return n
}

func summary(signals []risk.Signal, lang risk.Lang) string {
	high := countSevere(signals)

	if lang == risk.LangJA {
		switch {
		case high > 0:
			return fmt.Sprintf("🚨 重大なリスクが%d件見つかりました。内容を確認するまで署名しないでください。", high)
		case len(signals) > 0:
			return fmt.Sprintf("⚠️ 注意点が%d件あります。署名する前に詳細を確認してください。", len(signals))
		default:
			return "✅ 問題は見つかりませんでしたが、署名前の確認は忘れずに。"
		}
	}

	switch {
	case high > 0:
		return fmt.Sprintf("🚨 %d critical %s found. Do not sign without reviewing.", high, plural(high, "risk", "risks"))
	case len(signals) > 0:
		return fmt.Sprintf("⚠️ %d %s detected. Check the details before signing.", len(signals), plural(len(signals), "flag", "flags"))
	default:
		return "✅ Looks clean, but always verify before you sign."
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// collectAdvice gathers per-signal advice strings in signal order, deduped
// by content, always ending with the table's default entry.
func collectAdvice(table map[risk.ID]string, signals []risk.Signal) []string {
	out := []string{}
	seen := map[string]bool{}

	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, sig := range signals {
		add(table[sig.ID])
	}
	add(table[defaultAdvice])

	return out
}

func twitterDraft(signals []risk.Signal, lang risk.Lang) string {
	var highs []risk.Signal
	for _, s := range signals {
		if severe(s) {
			highs = append(highs, s)
		}
	}

	if len(highs) == 0 {
		if lang == risk.LangJA {
			return "✅ Trap Detectorでクリーンなトランザクションを確認\n\n詐欺師の出る幕なし\n#TrapDetector #Base"
		}
		return "✅ Clean tx verified by Trap Detector\n\nNot today, scammers\n#TrapDetector #Base"
	}

	var bullets []string
	for _, s := range highs {
		bullets = append(bullets, "• "+s.Title)
	}

	if lang == risk.LangJA {
		return fmt.Sprintf("🚨 Trap Detectorがウォレットを守ってくれた\n\n重大なリスクを%d件検出:\n%s\n\n署名する前にトランザクションを確認しよう\n#TrapDetector #Base",
			len(highs), strings.Join(bullets, "\n"))
	}
	return fmt.Sprintf("🚨 Trap Detector just saved my wallet\n\nFound %d critical %s:\n%s\n\nCheck your txs before you wreck your txs\n#TrapDetector #Base",
		len(highs), plural(len(highs), "risk", "risks"), strings.Join(bullets, "\n"))
}

// FormatDecodedCalldata renders a decoded call for plain-text display.
func FormatDecodedCalldata(decoded *decoder.DecodedCalldata) string {
	switch decoded.FunctionName {
	case "approve":
		amount, _ := decoded.Args["amount"].(string)
		display := decoder.FormatAmount(amount, 18)
		if decoder.IsUnlimitedAmount(amount) {
			display = "UNLIMITED ⚠️"
		}
		return fmt.Sprintf("Function: approve\nSpender: %v\nAmount: %s", decoded.Args["spender"], display)
	case "setApprovalForAll":
		approved := "NO"
		if v, _ := decoded.Args["approved"].(bool); v {
			approved = "YES"
		}
		return fmt.Sprintf("Function: setApprovalForAll\nOperator: %v\nApproved: %s", decoded.Args["operator"], approved)
	default:
		return fmt.Sprintf("Function: %s\nArgs: %v", decoded.FunctionName, decoded.Args)
	}
}

// FormatPermitDetails renders EIP-2612 permit details for display.
func FormatPermitDetails(details *decoder.PermitDetails) string {
	value := decoder.FormatAmount(details.Value, 18)
	if details.IsUnlimited {
		value = "UNLIMITED ⚠️"
	}
	token := details.TokenName
	if token == "" {
		token = "Unknown"
	}
	return fmt.Sprintf("Type: EIP-2612 Permit\nToken: %s\nOwner: %s\nSpender: %s\nValue: %s\nDeadline: %s",
		token, details.Owner, details.Spender, value, decoder.FormatDeadline(details.Deadline))
}
