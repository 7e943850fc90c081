// Package risk evaluates decoded transaction intents against a fixed rule
// set and emits ordered, severity-ranked risk signals.
//
// The engine is stateless: each analyze call is pure over its inputs plus
// one external fact, whether an address has deployed contract code. That
// fact comes through the injected Classifier and resolves to "not a
// contract" on any failure, so lookup problems bias toward flagging.
package risk

// Severity ranks how dangerous a signal is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ID names one of the eight known risk signals. The set is closed: no
// other identifiers are ever emitted.
type ID string

const (
	UnlimitedApproval       ID = "UNLIMITED_APPROVAL"
	ApprovalForAllTrue      ID = "APPROVAL_FOR_ALL_TRUE"
	UnknownSpenderContract  ID = "UNKNOWN_SPENDER_CONTRACT"
	TypedDataDomainMismatch ID = "TYPEDDATA_DOMAIN_MISMATCH"
	UnclearIntent           ID = "UNCLEAR_INTENT"
	PermitToUnknown         ID = "PERMIT_TO_UNKNOWN"
	HighValueApproval       ID = "HIGH_VALUE_APPROVAL"
	EOASpender              ID = "EOA_SPENDER"
)

// Lang selects the locale for signal titles and descriptions.
type Lang string

const (
	LangJA Lang = "ja"
	LangEN Lang = "en"
)

// ValidLang reports whether lang is a supported locale tag.
func ValidLang(lang Lang) bool {
	return lang == LangJA || lang == LangEN
}

// Signal is one severity-ranked finding about a request. Request-scoped,
// never persisted.
type Signal struct {
	ID          ID       `json:"id"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// Definition is the static, locale-keyed content behind a signal ID.
type Definition struct {
	Severity    Severity
	Title       map[Lang]string
	Description map[Lang]string
}

// definitions is the closed table of the eight signal IDs. Severity is
// fixed per ID; only presence and ordering vary per request.
var definitions = map[ID]Definition{
	UnlimitedApproval: {
		Severity: SeverityCritical,
		Title: map[Lang]string{
			LangJA: "無制限の承認",
			LangEN: "Unlimited Approval",
		},
		Description: map[Lang]string{
			LangJA: "トークンへの無制限アクセスが要求されています。悪意ある相手ならウォレットの残高をすべて抜き取れます。",
			LangEN: "Unlimited token access requested. Bad actor could drain your entire wallet.",
		},
	},
	ApprovalForAllTrue: {
		Severity: SeverityCritical,
		Title: map[Lang]string{
			LangJA: "コレクション全体の承認",
			LangEN: "Approval for All NFTs",
		},
		Description: map[Lang]string{
			LangJA: "このコレクションのすべてのNFTへのアクセスを許可します。全部持ち出されても止められません。",
			LangEN: "Grants access to EVERY NFT in this collection. They can yeet all of them.",
		},
	},
	UnknownSpenderContract: {
		Severity: SeverityHigh,
		Title: map[Lang]string{
			LangJA: "未検証のコントラクト",
			LangEN: "Unknown Contract",
		},
		Description: map[Lang]string{
			LangJA: "承認先は未検証のコントラクトです。ハニーポットやドレイナーの可能性があります。",
			LangEN: "Spender is an unverified contract. Could be a honeypot or drainer.",
		},
	},
	TypedDataDomainMismatch: {
		Severity: SeverityHigh,
		Title: map[Lang]string{
			LangJA: "ドメインの不一致",
			LangEN: "Domain Mismatch",
		},
		Description: map[Lang]string{
			LangJA: "署名ドメインが怪しいです。典型的なフィッシングの兆候です。",
			LangEN: "Signature domain looks sus. Classic phishing red flag.",
		},
	},
	UnclearIntent: {
		Severity: SeverityMedium,
		Title: map[Lang]string{
			LangJA: "意図が不明",
			LangEN: "Unclear Intent",
		},
		Description: map[Lang]string{
			LangJA: "トランザクションの目的がはっきりしません。署名する前に確認してください。",
			LangEN: "Transaction purpose is murky. Get clarity before you sign.",
		},
	},
	PermitToUnknown: {
		Severity: SeverityHigh,
		Title: map[Lang]string{
			LangJA: "不明な宛先へのPermit",
			LangEN: "Permit to Unknown",
		},
		Description: map[Lang]string{
			LangJA: "Permitの宛先が不明なアドレスです。フィッシングの可能性が高いです。",
			LangEN: "Permit going to unknown address. Smells like a phishing attempt.",
		},
	},
	HighValueApproval: {
		Severity: SeverityMedium,
		Title: map[Lang]string{
			LangJA: "高額の承認",
			LangEN: "High Value Approval",
		},
		Description: map[Lang]string{
			LangJA: "かなり大きな金額の承認です。本当にこの額が必要か確認してください。",
			LangEN: "Big bag approval. Make sure this amount is actually needed.",
		},
	},
	EOASpender: {
		Severity: SeverityMedium,
		Title: map[Lang]string{
			LangJA: "EOAへの承認",
			LangEN: "Approval to EOA",
		},
		Description: map[Lang]string{
			LangJA: "承認先がコントラクトではなくウォレットです。まともなdAppはコントラクトを使います。",
			LangEN: "Spender is a wallet, not a contract. Legit dApps use contracts.",
		},
	},
}

// newSignal materializes a signal from the definitions table.
func newSignal(id ID, lang Lang) Signal {
	def := definitions[id]
	return Signal{
		ID:          id,
		Severity:    def.Severity,
		Title:       def.Title[lang],
		Description: def.Description[lang],
	}
}

// AllDefinitions returns the full definitions table for documentation
// endpoints. The returned map is shared; treat as read-only.
func AllDefinitions() map[ID]Definition {
	return definitions
}
