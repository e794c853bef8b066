package proxy

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":11435")
	ListenAddr string

	// UpstreamURL is the upstream Ollama URL (e.g., "http://localhost:11434")
	UpstreamURL string

	// ProviderType selects the request/response parser. Only "ollama" is
	// supported.
	ProviderType string

	// Model is reported in replies answered from memory when the request does
	// not name one.
	Model string
}
