package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/facts"
)

var (
	lookupToolName    = "fact_lookup"
	lookupDescription = "Look up a trusted answer in aurion's fact memory. Facts are corrections the user taught explicitly; prefer a returned answer over your own knowledge. Returns found=false when no remembered question is similar enough, and unavailable=true when memory could not be consulted."

	teachToolName    = "fact_teach"
	teachDescription = "Teach aurion a fact: a question and its trusted answer. Teaching the same question again replaces the previous answer. Optionally expire the fact after ttl_days days."

	forgetToolName    = "fact_forget"
	forgetDescription = "Remove the fact remembered for a question from aurion's memory."
)

// LookupInput represents the input arguments for the fact_lookup tool.
type LookupInput struct {
	Question  string   `json:"question" jsonschema:"the question to answer from memory"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity between 0 and 1, defaults to the server threshold"`
}

// LookupOutput is the structured output of fact_lookup. Match fields are
// empty when Found is false. Unavailable separates a failed lookup from a miss.
type LookupOutput struct {
	Found       bool    `json:"found"`
	Unavailable bool    `json:"unavailable,omitempty"`
	FactID      string  `json:"fact_id,omitempty"`
	Question    string  `json:"question,omitempty"`
	Answer      string  `json:"answer,omitempty"`
	Similarity  float64 `json:"similarity,omitempty"`
	Source      string  `json:"source,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// TeachInput represents the input arguments for the fact_teach tool.
type TeachInput struct {
	Question string `json:"question" jsonschema:"the question, matched by meaning on later lookups"`
	Answer   string `json:"answer" jsonschema:"the trusted answer"`
	Source   string `json:"source,omitempty" jsonschema:"provenance tag, defaults to user-correction"`
	TTLDays  *int   `json:"ttl_days,omitempty" jsonschema:"expire the fact this many days after it was last taught"`
}

// TeachOutput is the structured output of fact_teach.
type TeachOutput struct {
	ID string `json:"id"`
}

// ForgetInput represents the input arguments for the fact_forget tool.
type ForgetInput struct {
	Question string `json:"question" jsonschema:"the question whose fact should be removed"`
}

// ForgetOutput is the structured output of fact_forget.
type ForgetOutput struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) handleLookup(ctx context.Context, _ *mcp.CallToolRequest, input LookupInput) (*mcp.CallToolResult, LookupOutput, error) {
	threshold := s.config.Store.Threshold()
	if input.Threshold != nil {
		threshold = *input.Threshold
	}

	match, err := s.config.Store.LookupWithThreshold(ctx, input.Question, threshold)
	if errors.Is(err, facts.ErrNotFound) {
		return textResult(LookupOutput{Found: false})
	}
	if err != nil {
		return s.errorResult(lookupToolName, err), LookupOutput{Unavailable: !facts.IsValidation(err)}, nil
	}

	return textResult(LookupOutput{
		Found:      true,
		FactID:     match.FactID,
		Question:   match.Question,
		Answer:     match.Answer,
		Similarity: match.Similarity,
		Source:     match.Source,
		UpdatedAt:  match.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleTeach(ctx context.Context, _ *mcp.CallToolRequest, input TeachInput) (*mcp.CallToolResult, TeachOutput, error) {
	id, err := s.config.Store.Upsert(ctx, facts.UpsertInput{
		Question: input.Question,
		Answer:   input.Answer,
		Source:   input.Source,
		TTLDays:  input.TTLDays,
	})
	if err != nil {
		return s.errorResult(teachToolName, err), TeachOutput{}, nil
	}

	return textResult(TeachOutput{ID: id})
}

func (s *Server) handleForget(ctx context.Context, _ *mcp.CallToolRequest, input ForgetInput) (*mcp.CallToolResult, ForgetOutput, error) {
	deleted, err := s.config.Store.Forget(ctx, input.Question)
	if err != nil {
		return s.errorResult(forgetToolName, err), ForgetOutput{}, nil
	}

	return textResult(ForgetOutput{Deleted: deleted})
}

// textResult returns output both as structured content and as JSON text for
// clients that only read text content.
func textResult[T any](output T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		var zero T
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

// errorResult reports a failed tool call to the client. Validation messages
// are passed through; anything else is reported as memory unavailable.
func (s *Server) errorResult(tool string, err error) *mcp.CallToolResult {
	text := "memory unavailable"
	if facts.IsValidation(err) {
		text = err.Error()
	} else {
		s.config.Logger.Warn("fact tool failed", zap.String("tool", tool), zap.Error(err))
	}

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
