package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Trap Detector MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAnalyzeTransaction = mcp.NewTool("analyze_transaction",
	mcp.WithDescription(
		"Inspect an Ethereum transaction request BEFORE signing it. "+
			"Decodes the intent and flags wallet-draining patterns: unlimited approvals, "+
			"setApprovalForAll, permits to unknown spenders, typed-data domain gaps. "+
			"Pick one mode: 'calldata' (raw call bytes), 'typedData' (EIP-712 signing payload), "+
			"or 'approval' (token/spender/amount you are about to approve)."),
	mcp.WithString("mode",
		mcp.Required(),
		mcp.Description("Input kind: 'calldata', 'typedData', or 'approval'"),
		mcp.Enum("calldata", "typedData", "approval")),
	mcp.WithString("calldata",
		mcp.Description("Raw 0x-prefixed call bytes (calldata mode)")),
	mcp.WithString("to",
		mcp.Description("Target contract address of the call (calldata mode, optional)")),
	mcp.WithObject("typed_data",
		mcp.Description("Full EIP-712 payload: types, primaryType, domain, message (typedData mode)")),
	mcp.WithString("token",
		mcp.Description("Token contract being approved (approval mode)")),
	mcp.WithString("spender",
		mcp.Description("Address that would receive the allowance (approval mode)")),
	mcp.WithString("amount",
		mcp.Description("Approval amount in base units, or the word 'unlimited' (approval mode)")),
	mcp.WithString("lang",
		mcp.Description("Report language: 'ja' (default) or 'en'"),
		mcp.Enum("ja", "en")),
)

var ToolCheckAddress = mcp.NewTool("check_address",
	mcp.WithDescription(
		"Check whether an address is safe to grant a token allowance to. "+
			"Reports whether the address is a deployed contract or an externally "+
			"owned account. Approving an EOA spender is a common drain setup."),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("The address to check (e.g. '0x1234...')")),
	mcp.WithString("lang",
		mcp.Description("Report language: 'ja' (default) or 'en'"),
		mcp.Enum("ja", "en")),
)

var ToolListRiskSignals = mcp.NewTool("list_risk_signals",
	mcp.WithDescription(
		"List every risk signal the analyzer can raise, with severity and a "+
			"bilingual description. Useful for explaining a report to a user."),
)
