package proxy

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	chatPath     = "/api/chat"
	generatePath = "/api/generate"
)

// replyMessage and reply mirror the Ollama response shapes so clients cannot
// tell a memory answer from a model answer.
type replyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type reply struct {
	Model      string        `json:"model"`
	CreatedAt  time.Time     `json:"created_at"`
	Message    *replyMessage `json:"message,omitempty"`
	Response   *string       `json:"response,omitempty"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason,omitempty"`
}

func isMemoryPath(path string) bool {
	return path == chatPath || path == generatePath
}

// newReply builds one response object for path: chat responses carry a
// message, generate responses carry a response string.
func newReply(path, model, text string, done bool, now time.Time) reply {
	r := reply{
		Model:     model,
		CreatedAt: now.UTC(),
		Done:      done,
	}
	if done {
		r.DoneReason = "stop"
	}

	if path == generatePath {
		r.Response = &text
	} else {
		r.Message = &replyMessage{Role: "assistant", Content: text}
	}

	return r
}

// sendReply writes text to the client in the Ollama shape for path. Streaming
// replies are two NDJSON lines: the content, then an empty final chunk.
func sendReply(c *fiber.Ctx, path, model, text string, streaming bool) error {
	now := time.Now()

	if !streaming {
		return c.Status(fiber.StatusOK).JSON(newReply(path, model, text, true, now))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(newReply(path, model, text, false, now)); err != nil {
		return err
	}
	if err := enc.Encode(newReply(path, model, "", true, now)); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}
