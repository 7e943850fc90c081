package report

import "github.com/mbd888/trapdetect/internal/risk"

// defaultAdvice keys the entry appended to every response regardless of
// which signals fired.
const defaultAdvice risk.ID = "DEFAULT"

// Static per-locale advice tables. Constructed once at init, read-only
// afterwards.
var recommendedChecks = map[risk.Lang]map[risk.ID]string{
	risk.LangJA: {
		risk.UnlimitedApproval:       "承認額は必要な分だけに設定しましょう。無制限=無制限のリスクです。",
		risk.ApprovalForAllTrue:      "本当にコレクション全体を承認する必要がありますか?",
		risk.UnknownSpenderContract:  "承認する前にBasescanでこのコントラクトを確認しましょう。",
		risk.TypedDataDomainMismatch: "URLをよく確認してください。フィッシングは似せたドメインを使います。",
		risk.UnclearIntent:           "このトランザクションの目的を送信者に確認しましょう。",
		risk.PermitToUnknown:         "このPermitの宛先を確認しましょう。",
		risk.HighValueApproval:       "この金額が本当に必要か確認しましょう。",
		risk.EOASpender:              "なぜコントラクトではなくウォレット宛てなのか確認しましょう。",
		defaultAdvice:                "細かい部分まで読みましょう。どんなトランザクションも二度見する価値があります。",
	},
	risk.LangEN: {
		risk.UnlimitedApproval:       "Set approval to only what you need. Unlimited = unlimited risk.",
		risk.ApprovalForAllTrue:      "Do you really need to approve the entire collection?",
		risk.UnknownSpenderContract:  "Verify this contract on Basescan before you approve.",
		risk.TypedDataDomainMismatch: "Double-check the URL. Phishers love lookalike domains.",
		risk.UnclearIntent:           "Ask the sender what this tx is actually for.",
		risk.PermitToUnknown:         "Verify where this permit is going.",
		risk.HighValueApproval:       "Confirm this amount is actually necessary.",
		risk.EOASpender:              "Why is this going to a wallet instead of a contract?",
		defaultAdvice:                "Read the fine print. Every tx deserves a second look.",
	},
}

var safeAlternatives = map[risk.Lang]map[risk.ID]string{
	risk.LangJA: {
		risk.UnlimitedApproval:       "必要な分だけ承認しましょう。スワップ額の1.1倍もあれば十分です。",
		risk.ApprovalForAllTrue:      "コレクション全体ではなく個別のNFTを承認しましょう。",
		risk.UnknownSpenderContract:  "公式サイトにアクセスして、そこから接続しましょう。",
		risk.TypedDataDomainMismatch: "URLは手で入力しましょう。本物はブックマークしておきましょう。",
		risk.PermitToUnknown:         "よく分からないPermitに署名せず、dAppを直接使いましょう。",
		defaultAdvice:                "revoke.cashで古い承認を定期的に整理しましょう。",
	},
	risk.LangEN: {
		risk.UnlimitedApproval:       "Approve only what you need. 1.1x the swap amount is plenty.",
		risk.ApprovalForAllTrue:      "Approve individual NFTs instead of the whole collection.",
		risk.UnknownSpenderContract:  "Go to the official site and connect from there.",
		risk.TypedDataDomainMismatch: "Type the URL manually. Bookmark the real ones.",
		risk.PermitToUnknown:         "Use the dApp directly instead of signing random permits.",
		defaultAdvice:                "Use revoke.cash to clean up old approvals regularly.",
	},
}
