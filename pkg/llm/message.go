package llm

import "strings"

// Message roles understood by the memory layer. Other roles ("tool", ...)
// pass through untouched.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block types.
const (
	BlockText  = "text"
	BlockImage = "image"
)

// Message is one turn of a conversation. Content is a list of blocks so that
// image attachments survive parsing alongside the text a fact lookup needs.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a single piece of message content. Type selects which of
// the remaining fields is set.
type ContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	// ImageBase64 is set for BlockImage.
	ImageBase64 string `json:"image_base64,omitempty"`
}

// NewTextMessage returns a message holding a single text block.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: []ContentBlock{{Type: BlockText, Text: text}},
	}
}

// GetText concatenates the message's text blocks, ignoring images.
func (m *Message) GetText() string {
	var b strings.Builder
	for _, block := range m.Content {
		if block.Type == BlockText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// HasImages reports whether the message carries any image block.
func (m *Message) HasImages() bool {
	for _, block := range m.Content {
		if block.Type == BlockImage {
			return true
		}
	}
	return false
}
