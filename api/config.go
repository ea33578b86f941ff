// Package api provides the HTTP API server for drug recommendations.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8001")
	ListenAddr string

	// DisableMCP skips mounting the MCP handler at /mcp.
	DisableMCP bool
}
