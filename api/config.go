// Package api provides the HTTP API server for teaching, querying and
// inspecting aurion's fact memory.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// DisableMCP serves the /mcp endpoint without any tools.
	DisableMCP bool
}
