// Trap Detector MCP Server - Exposes transaction inspection as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/trapdetect/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:       envOrDefault("TRAPDETECT_API_URL", "http://localhost:8080"),
		PaymentProof: os.Getenv("TRAPDETECT_PAYMENT_PROOF"),
		DefaultLang:  envOrDefault("TRAPDETECT_LANG", "ja"),
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
