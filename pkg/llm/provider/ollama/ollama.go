package ollama

import (
	"bytes"
	"encoding/json"

	"github.com/papercomputeco/aurion/pkg/llm"
)

// provider implements the Provider interface for Ollama's API.
type provider struct{}

func New() *provider { return &provider{} }

func (o *provider) Name() string {
	return "ollama"
}

// DefaultStreaming is true: Ollama streams unless "stream": false is sent.
func (o *provider) DefaultStreaming() bool {
	return true
}

func (o *provider) ParseRequest(payload []byte) (*llm.ChatRequest, error) {
	var req ollamaRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	for _, msg := range req.Messages {
		messages = append(messages, convertMessage(msg.Role, msg.Content, msg.Images))
	}

	// /api/generate sends a single prompt instead of a conversation.
	if req.Prompt != "" {
		messages = append(messages, convertMessage(llm.RoleUser, req.Prompt, req.Images))
	}

	result := &llm.ChatRequest{
		Model:      req.Model,
		Messages:   messages,
		Stream:     req.Stream,
		System:     req.System,
		RawRequest: payload,
	}

	// Map options to common fields
	if req.Options != nil {
		result.Temperature = req.Options.Temperature
		result.TopP = req.Options.TopP
		result.TopK = req.Options.TopK
		result.Seed = req.Options.Seed
		result.MaxTokens = req.Options.NumPredict
		result.Stop = req.Options.Stop

		if req.Options.NumCtx != nil {
			setExtra(&result.Extra, "num_ctx", *req.Options.NumCtx)
		}
		if req.Options.RepeatPenalty != nil {
			setExtra(&result.Extra, "repeat_penalty", *req.Options.RepeatPenalty)
		}
		if req.Options.RepeatLastN != nil {
			setExtra(&result.Extra, "repeat_last_n", *req.Options.RepeatLastN)
		}
	}

	if req.Format != "" {
		setExtra(&result.Extra, "format", req.Format)
	}
	if req.KeepAlive != "" {
		setExtra(&result.Extra, "keep_alive", req.KeepAlive)
	}

	return result, nil
}

func (o *provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp ollamaResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	result := &llm.ChatResponse{
		Model:       resp.Model,
		CreatedAt:   resp.CreatedAt,
		Message:     responseMessage(&resp),
		Done:        resp.Done,
		StopReason:  stopReason(&resp),
		Usage:       usage(&resp),
		RawResponse: payload,
	}

	// Preserve Ollama-specific fields
	if resp.Context != nil {
		result.Extra = map[string]any{
			"context":       resp.Context,
			"load_duration": resp.LoadDuration,
			"eval_duration": resp.EvalDuration,
		}
	}

	return result, nil
}

func (o *provider) ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, nil
	}

	var resp ollamaResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	return &llm.StreamChunk{
		Model:      resp.Model,
		CreatedAt:  resp.CreatedAt,
		Message:    responseMessage(&resp),
		Done:       resp.Done,
		StopReason: stopReason(&resp),
		Usage:      usage(&resp),
	}, nil
}

func convertMessage(role, text string, images []string) llm.Message {
	converted := llm.Message{
		Role:    role,
		Content: []llm.ContentBlock{{Type: llm.BlockText, Text: text}},
	}
	for _, img := range images {
		converted.Content = append(converted.Content, llm.ContentBlock{
			Type:        llm.BlockImage,
			ImageBase64: img,
		})
	}
	return converted
}

func responseMessage(resp *ollamaResponse) llm.Message {
	if resp.Message.Role == "" && resp.Message.Content == "" && resp.Response != "" {
		return llm.NewTextMessage(llm.RoleAssistant, resp.Response)
	}
	return convertMessage(resp.Message.Role, resp.Message.Content, resp.Message.Images)
}

func stopReason(resp *ollamaResponse) string {
	if resp.DoneReason != "" {
		return resp.DoneReason
	}
	if resp.Done {
		return "stop"
	}
	return ""
}

// usage maps Ollama metrics to the common Usage format.
func usage(resp *ollamaResponse) *llm.Usage {
	if resp.PromptEvalCount == 0 && resp.EvalCount == 0 && resp.TotalDuration == 0 {
		return nil
	}
	return &llm.Usage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		TotalDurationNs:  resp.TotalDuration,
		PromptDurationNs: resp.PromptEvalDuration,
	}
}

func setExtra(extra *map[string]any, key string, value any) {
	if *extra == nil {
		*extra = make(map[string]any)
	}
	(*extra)[key] = value
}
