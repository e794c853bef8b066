package llm

import "time"

// StreamChunk is one parsed line of a streamed upstream reply. The proxy
// reads chunks only to log what passed through; the bytes forwarded to the
// client are the upstream's own.
type StreamChunk struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at,omitzero"`

	// Message holds the partial assistant text carried by this chunk.
	Message Message `json:"message"`

	// Done marks the final chunk, the only one carrying StopReason and Usage.
	Done       bool   `json:"done"`
	StopReason string `json:"stop_reason,omitempty"`
	Usage      *Usage `json:"usage,omitempty"`
}
