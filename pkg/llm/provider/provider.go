// Package provider parses upstream LLM wire formats into the llm package's
// provider-agnostic types.
package provider

import (
	"github.com/papercomputeco/aurion/pkg/llm"
)

// Provider defines the interface for LLM API parsing. Each provider
// implementation knows how to parse its specific API format into the internal
// representation.
type Provider interface {
	// Name returns the canonical provider name (e.g., "ollama")
	Name() string

	// DefaultStreaming reports whether requests stream when they do not say.
	DefaultStreaming() bool

	// ParseRequest converts a provider-specific request into the internal format.
	// Returns an error if the payload cannot be parsed.
	ParseRequest(payload []byte) (*llm.ChatRequest, error)

	// ParseResponse converts a provider-specific response into the internal format.
	// Returns an error if the payload cannot be parsed.
	ParseResponse(payload []byte) (*llm.ChatResponse, error)

	// ParseStreamChunk converts a single streaming chunk into the internal format.
	// Returns (nil, nil) if the chunk should be skipped (e.g., blank keep-alive lines).
	ParseStreamChunk(payload []byte) (*llm.StreamChunk, error)
}
