package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Trap Detector tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("trapdetect", "0.1.0")
	client := NewTrapDetectClient(cfg)
	h := NewHandlers(client, cfg.DefaultLang)

	s.AddTool(ToolAnalyzeTransaction, h.HandleAnalyzeTransaction)
	s.AddTool(ToolCheckAddress, h.HandleCheckAddress)
	s.AddTool(ToolListRiskSignals, h.HandleListRiskSignals)

	return s
}
