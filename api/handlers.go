package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/llm"
)

// FactResponse is a stored fact as returned by the API. Vectors are never
// exposed.
type FactResponse struct {
	ID        string     `json:"id"`
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Source    string     `json:"source"`
	TTLDays   *int       `json:"ttl_days,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ListFactsResponse is the body of GET /v1/facts.
type ListFactsResponse struct {
	Facts []FactResponse `json:"facts"`
}

// UpsertFactRequest is the body of POST /v1/facts.
type UpsertFactRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source,omitempty"`
	TTLDays  *int   `json:"ttl_days,omitempty"`
}

// UpsertFactResponse is returned after a fact is taught.
type UpsertFactResponse struct {
	ID string `json:"id"`
}

// LookupRequest is the body of POST /v1/facts/lookup.
type LookupRequest struct {
	Question  string   `json:"question"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// ForgetRequest is the body of DELETE /v1/facts.
type ForgetRequest struct {
	Question string `json:"question"`
}

// ForgetResponse reports whether a fact was removed.
type ForgetResponse struct {
	Deleted bool `json:"deleted"`
}

// SweepResponse reports how many expired facts were removed.
type SweepResponse struct {
	Expired int `json:"expired"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListFacts returns every live fact, oldest first.
func (s *Server) handleListFacts(c *fiber.Ctx) error {
	live, err := s.store.Live(c.UserContext())
	if err != nil {
		return s.writeError(c, err)
	}

	out := ListFactsResponse{Facts: make([]FactResponse, 0, len(live))}
	for i := range live {
		out.Facts = append(out.Facts, factResponse(&live[i]))
	}

	return c.JSON(out)
}

// handleUpsertFact teaches a fact.
func (s *Server) handleUpsertFact(c *fiber.Ctx) error {
	var req UpsertFactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	id, err := s.store.Upsert(c.UserContext(), facts.UpsertInput{
		Question: req.Question,
		Answer:   req.Answer,
		Source:   req.Source,
		TTLDays:  req.TTLDays,
	})
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(UpsertFactResponse{ID: id})
}

// handleLookupFact answers a question from memory.
func (s *Server) handleLookupFact(c *fiber.Ctx) error {
	var req LookupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	threshold := s.store.Threshold()
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	match, err := s.store.LookupWithThreshold(c.UserContext(), req.Question, threshold)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(match)
}

// handleForgetFact removes the fact for a question.
func (s *Server) handleForgetFact(c *fiber.Ctx) error {
	var req ForgetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	deleted, err := s.store.Forget(c.UserContext(), req.Question)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(ForgetResponse{Deleted: deleted})
}

// handleSweep removes expired facts.
func (s *Server) handleSweep(c *fiber.Ctx) error {
	n, err := s.store.Sweep(c.UserContext())
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(SweepResponse{Expired: n})
}

// writeError maps fact memory errors to HTTP statuses.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	switch {
	case facts.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})

	case errors.Is(err, facts.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "no matching memory"})

	case facts.IsUnavailable(err):
		s.logger.Warn("memory unavailable",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "memory unavailable"})

	default:
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}
}

func factResponse(f *facts.Fact) FactResponse {
	out := FactResponse{
		ID:        f.ID,
		Question:  f.QuestionNorm,
		Answer:    f.Answer,
		Source:    f.Source,
		TTLDays:   f.TTLDays,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
	if expiresAt, ok := f.ExpiresAt(); ok {
		out.ExpiresAt = &expiresAt
	}
	return out
}
