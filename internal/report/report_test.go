package report

import (
	"strings"
	"testing"

	"github.com/mbd888/trapdetect/internal/decoder"
	"github.com/mbd888/trapdetect/internal/risk"
)

func signal(id risk.ID, severity risk.Severity, title string) risk.Signal {
	return risk.Signal{ID: id, Severity: severity, Title: title, Description: "d"}
}

func TestSummaryAlarmOnSevere(t *testing.T) {
	signals := []risk.Signal{
		signal(risk.UnlimitedApproval, risk.SeverityCritical, "Unlimited Approval"),
		signal(risk.EOASpender, risk.SeverityMedium, "Approval to EOA"),
	}
	resp := Build(nil, signals, risk.LangEN, nil)

	if !strings.HasPrefix(resp.Summary, "🚨") {
		t.Errorf("summary = %q, want alarm prefix", resp.Summary)
	}
	if !strings.Contains(resp.Summary, "1 critical risk") {
		t.Errorf("summary = %q, want severe count of 1", resp.Summary)
	}
}

func TestSummaryCautionAndClean(t *testing.T) {
	caution := Build(nil, []risk.Signal{signal(risk.EOASpender, risk.SeverityMedium, "t")}, risk.LangEN, nil)
	if !strings.HasPrefix(caution.Summary, "⚠️") {
		t.Errorf("summary = %q, want caution prefix", caution.Summary)
	}

	clean := Build(nil, nil, risk.LangEN, nil)
	if !strings.HasPrefix(clean.Summary, "✅") {
		t.Errorf("summary = %q, want clean prefix", clean.Summary)
	}

	cleanJA := Build(nil, nil, risk.LangJA, nil)
	if !strings.HasPrefix(cleanJA.Summary, "✅") || cleanJA.Summary == clean.Summary {
		t.Errorf("ja summary = %q", cleanJA.Summary)
	}
}

func TestAdviceDedupAndDefault(t *testing.T) {
	// The same signal twice must not duplicate its advice entry.
	signals := []risk.Signal{
		signal(risk.UnlimitedApproval, risk.SeverityCritical, "t"),
		signal(risk.UnlimitedApproval, risk.SeverityCritical, "t"),
	}
	resp := Build(nil, signals, risk.LangEN, nil)

	if len(resp.RecommendedChecks) != 2 {
		t.Errorf("recommendedChecks = %v, want signal advice + default", resp.RecommendedChecks)
	}
	if resp.RecommendedChecks[0] != recommendedChecks[risk.LangEN][risk.UnlimitedApproval] {
		t.Errorf("first check = %q", resp.RecommendedChecks[0])
	}
	last := resp.RecommendedChecks[len(resp.RecommendedChecks)-1]
	if last != recommendedChecks[risk.LangEN][defaultAdvice] {
		t.Errorf("last check = %q, want default entry", last)
	}
}

func TestAdviceDefaultAlwaysPresent(t *testing.T) {
	// No signals at all: only the defaults remain.
	resp := Build(nil, nil, risk.LangEN, nil)
	if len(resp.RecommendedChecks) != 1 || len(resp.SafeAlternatives) != 1 {
		t.Errorf("checks = %v, alternatives = %v", resp.RecommendedChecks, resp.SafeAlternatives)
	}

	// EOA_SPENDER has a check entry but no dedicated alternative.
	resp = Build(nil, []risk.Signal{signal(risk.EOASpender, risk.SeverityMedium, "t")}, risk.LangEN, nil)
	if len(resp.RecommendedChecks) != 2 {
		t.Errorf("checks = %v", resp.RecommendedChecks)
	}
	if len(resp.SafeAlternatives) != 1 {
		t.Errorf("alternatives = %v, want only default", resp.SafeAlternatives)
	}
}

func TestTwitterDraft(t *testing.T) {
	signals := []risk.Signal{
		signal(risk.UnlimitedApproval, risk.SeverityCritical, "Unlimited Approval"),
		signal(risk.PermitToUnknown, risk.SeverityHigh, "Permit to Unknown"),
		signal(risk.EOASpender, risk.SeverityMedium, "Approval to EOA"),
	}
	resp := Build(nil, signals, risk.LangEN, nil)

	draft := resp.ShareDrafts.Twitter
	if !strings.Contains(draft, "• Unlimited Approval") || !strings.Contains(draft, "• Permit to Unknown") {
		t.Errorf("draft missing severe bullets:\n%s", draft)
	}
	if strings.Contains(draft, "Approval to EOA") {
		t.Errorf("draft should only list critical/high signals:\n%s", draft)
	}
	if !strings.Contains(draft, "2 critical risks") {
		t.Errorf("draft = %q", draft)
	}

	clean := Build(nil, nil, risk.LangEN, nil)
	if !strings.HasPrefix(clean.ShareDrafts.Twitter, "✅") {
		t.Errorf("clean draft = %q", clean.ShareDrafts.Twitter)
	}
}

func TestFormatDecodedCalldata(t *testing.T) {
	decoded := &decoder.DecodedCalldata{
		FunctionName:     "approve",
		FunctionSelector: decoder.SelectorApprove,
		Args:             map[string]any{"spender": "0xSPENDER", "amount": decoder.MaxUint256String},
	}
	got := FormatDecodedCalldata(decoded)
	if !strings.Contains(got, "UNLIMITED ⚠️") || !strings.Contains(got, "0xSPENDER") {
		t.Errorf("formatted = %q", got)
	}

	decoded.Args["amount"] = "1500000000000000000"
	if got := FormatDecodedCalldata(decoded); !strings.Contains(got, "Amount: 1.5") {
		t.Errorf("formatted = %q", got)
	}
}

func TestFormatPermitDetails(t *testing.T) {
	details := &decoder.PermitDetails{
		Owner:       "0xOWNER",
		Spender:     "0xSPENDER",
		Value:       decoder.MaxUint256String,
		Deadline:    decoder.MaxUint256String,
		IsUnlimited: true,
	}
	got := FormatPermitDetails(details)
	if !strings.Contains(got, "Token: Unknown") {
		t.Errorf("formatted = %q", got)
	}
	if !strings.Contains(got, "Value: UNLIMITED ⚠️") {
		t.Errorf("formatted = %q", got)
	}
	if !strings.Contains(got, "Deadline: Never (infinite deadline)") {
		t.Errorf("formatted = %q", got)
	}
}
