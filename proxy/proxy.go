// Package proxy provides an Ollama proxy that answers from fact memory before
// the model is called.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/llm"
	"github.com/papercomputeco/aurion/pkg/llm/provider"
	"github.com/papercomputeco/aurion/proxy/header"
)

// Proxy is a transparent Ollama proxy. Chat and generate requests are first
// offered to fact memory; a hit is answered directly, anything else is
// forwarded to the upstream unchanged.
type Proxy struct {
	config        Config
	memory        Memory
	logger        *zap.Logger
	httpClient    *http.Client
	server        *fiber.App
	prov          provider.Provider
	headerHandler *header.Handler
}

// New creates a new Proxy. A nil memory disables the short-circuit and every
// request is forwarded.
// Returns an error if the configured provider type is not recognized.
func New(config Config, memory Memory, logger *zap.Logger) (*Proxy, error) {
	if config.ProviderType == "" {
		return nil, errors.New("provider type is required")
	}
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}

	prov, err := provider.New(config.ProviderType)
	if err != nil {
		return nil, fmt.Errorf("could not create new provider: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	config.UpstreamURL = strings.TrimSuffix(config.UpstreamURL, "/")

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	// Add compression middleware to handle responses
	app.Use(compress.New())

	p := &Proxy{
		config:        config,
		memory:        memory,
		logger:        logger,
		server:        app,
		prov:          prov,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			// Local models can be slow to load and answer
			Timeout: 5 * time.Minute,
		},
	}

	// Register transparent proxy route - forwards any path to upstream
	app.All("/*", p.handleProxy)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		zap.String("listen", p.config.ListenAddr),
		zap.String("upstream", p.config.UpstreamURL),
		zap.Bool("memory", p.memory != nil),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", p.config.UpstreamURL),
		zap.Bool("memory", p.memory != nil),
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy.
func (p *Proxy) Close() error {
	return p.server.Shutdown()
}

// handleProxy answers chat and generate requests from memory when it can and
// forwards everything else to the upstream.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	startTime := time.Now()

	path := c.Path()
	method := c.Method()

	// Only POST requests with a body can carry a prompt
	body := c.Body()
	isChatRequest := method == fiber.MethodPost && len(body) > 0

	var parsedReq *llm.ChatRequest
	if isChatRequest {
		var err error
		parsedReq, err = p.prov.ParseRequest(body)
		if err != nil {
			p.logger.Warn("failed to parse request",
				zap.Error(err),
				zap.String("provider", p.prov.Name()),
				zap.String("path", path),
			)
		} else {
			p.logger.Debug("parsed request",
				zap.String("provider", p.prov.Name()),
				zap.String("path", path),
				zap.String("model", parsedReq.Model),
				zap.Int("message_count", len(parsedReq.Messages)),
			)
		}
	}

	// Ollama streams unless "stream": false is sent explicitly.
	streaming := false
	if parsedReq != nil && parsedReq.Stream != nil {
		streaming = *parsedReq.Stream
	} else if isChatRequest {
		var streamCheck struct {
			Stream *bool `json:"stream"`
		}
		if err := json.Unmarshal(body, &streamCheck); err == nil && streamCheck.Stream != nil {
			streaming = *streamCheck.Stream
		} else {
			streaming = p.prov.DefaultStreaming()
		}
	}

	if parsedReq != nil && isMemoryPath(path) && p.memory != nil && !header.MemoryBypassed(c) {
		handled, err := p.answerFromMemory(c, path, parsedReq, streaming)
		if handled {
			return err
		}
	}

	if streaming && isChatRequest {
		return p.handleStreamingProxy(c, path, body, startTime)
	}

	return p.handleNonStreamingProxy(c, path, method, body, parsedReq != nil, startTime)
}

// answerFromMemory runs memory commands and lookups for a chat or generate
// request. It reports whether the response was written; when it was not the
// caller forwards the request.
func (p *Proxy) answerFromMemory(c *fiber.Ctx, path string, req *llm.ChatRequest, streaming bool) (bool, error) {
	last, _ := req.LastUserMessage()
	text := last.GetText()
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	if cmd, ok := parseCommand(text); ok {
		return true, p.runCommand(c, path, model, cmd, streaming)
	}

	// A stored answer cannot account for an attached image.
	if strings.TrimSpace(text) == "" || last.HasImages() {
		return false, nil
	}

	match, err := p.memory.Lookup(c.UserContext(), text)
	switch {
	case err == nil:
		p.logger.Info("answered from memory",
			zap.String("fact_id", match.FactID),
			zap.Float64("similarity", match.Similarity),
			zap.String("path", path),
		)
		c.Set(header.MemoryHeader, header.MemoryHit)
		c.Set(header.SimilarityHeader, strconv.FormatFloat(match.Similarity, 'f', 4, 64))
		c.Set(header.FactIDHeader, match.FactID)
		return true, sendReply(c, path, model, match.Answer, streaming)

	case errors.Is(err, facts.ErrNotFound), facts.IsValidation(err):
		c.Set(header.MemoryHeader, header.MemoryMiss)
		return false, nil

	default:
		p.logger.Warn("memory unavailable, forwarding to upstream",
			zap.Error(err),
			zap.String("path", path),
		)
		c.Set(header.MemoryHeader, header.MemoryUnavailable)
		return false, nil
	}
}

// runCommand applies a remember or forget command and confirms it in the
// Ollama response shape.
func (p *Proxy) runCommand(c *fiber.Ctx, path, model string, cmd command, streaming bool) error {
	ctx := c.UserContext()

	var text string
	switch cmd.kind {
	case commandRemember:
		id, err := p.memory.Upsert(ctx, facts.UpsertInput{
			Question: cmd.question,
			Answer:   cmd.answer,
		})
		if err != nil {
			return p.commandError(c, err)
		}

		p.logger.Info("fact taught through proxy", zap.String("fact_id", id))
		c.Set(header.FactIDHeader, id)
		text = fmt.Sprintf("Noted. %s => %s", cmd.question, cmd.answer)

	case commandForget:
		deleted, err := p.memory.Forget(ctx, cmd.question)
		if err != nil {
			return p.commandError(c, err)
		}

		if deleted {
			text = fmt.Sprintf("Forgotten: %s", cmd.question)
		} else {
			text = fmt.Sprintf("Nothing remembered for: %s", cmd.question)
		}
	}

	return sendReply(c, path, model, text, streaming)
}

func (p *Proxy) commandError(c *fiber.Ctx, err error) error {
	if facts.IsValidation(err) {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	p.logger.Warn("memory command failed", zap.Error(err))
	return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "memory unavailable"})
}

// handleNonStreamingProxy handles non-streaming requests.
func (p *Proxy) handleNonStreamingProxy(c *fiber.Ctx, path, method string, body []byte, parsed bool, startTime time.Time) error {
	upstreamURL := p.upstreamURL(c, path)

	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(c.Context(), method, upstreamURL, reqBody)
	if err != nil {
		p.logger.Error("failed to create upstream request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding request to upstream",
		zap.String("method", method),
		zap.String("url", upstreamURL),
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream request failed"})
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.Error("failed to read upstream response", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "failed to read upstream response"})
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)

	if parsed && isMemoryPath(path) && httpResp.StatusCode == http.StatusOK {
		if parsedResp, err := p.prov.ParseResponse(respBody); err != nil {
			p.logger.Warn("failed to parse response",
				zap.Error(err),
				zap.String("provider", p.prov.Name()),
			)
		} else {
			fields := []zap.Field{
				zap.String("model", parsedResp.Model),
				zap.String("provider", p.prov.Name()),
				zap.Duration("duration", time.Since(startTime)),
			}
			if parsedResp.Usage != nil {
				fields = append(fields, zap.Int("total_tokens", parsedResp.Usage.TotalTokens))
			}
			p.logger.Debug("received response from upstream", fields...)
		}
	}

	return c.Status(httpResp.StatusCode).Send(respBody)
}

// handleStreamingProxy handles streaming requests.
func (p *Proxy) handleStreamingProxy(c *fiber.Ctx, path string, body []byte, startTime time.Time) error {
	upstreamURL := p.upstreamURL(c, path)

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the streaming relay runs in
	// a separate goroutine and needs the upstream connection to remain open.
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, upstreamURL, bytes.NewReader(body))
	if err != nil {
		p.logger.Error("failed to create upstream request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding streaming request to upstream",
		zap.String("url", upstreamURL),
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream request failed"})
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		p.logger.Error("upstream returned error",
			zap.Int("status", httpResp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return c.Status(httpResp.StatusCode).Send(respBody)
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)

	// io.Pipe gives per-chunk backpressure: pw.Write blocks until fasthttp's
	// chunked body writer has consumed and flushed the previous line.
	pr, pw := io.Pipe()
	go p.relayNDJSON(httpResp, pw, startTime)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// relayNDJSON copies a newline-delimited JSON upstream response to the pipe
// line by line while parsing each chunk for the completion log.
func (p *Proxy) relayNDJSON(httpResp *http.Response, pw *io.PipeWriter, startTime time.Time) {
	defer httpResp.Body.Close()

	var (
		chunkCount  int
		contentLen  int
		streamUsage *llm.Usage
		relayErr    error
	)

	scanner := bufio.NewScanner(httpResp.Body)
	// Increase buffer size for large chunks
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if chunk, err := p.prov.ParseStreamChunk(line); err == nil && chunk != nil {
			chunkCount++
			contentLen += len(chunk.Message.GetText())
			if chunk.Done && chunk.Usage != nil {
				streamUsage = chunk.Usage
			}
		}

		if _, err := pw.Write(line); err != nil {
			relayErr = fmt.Errorf("writing chunk to pipe: %w", err)
			break
		}
		if _, err := pw.Write([]byte("\n")); err != nil {
			relayErr = fmt.Errorf("writing newline to pipe: %w", err)
			break
		}
	}

	if relayErr == nil {
		relayErr = scanner.Err()
	}
	if relayErr != nil {
		p.logger.Error("error relaying NDJSON stream", zap.Error(relayErr))
		pw.CloseWithError(relayErr)
		return
	}
	pw.Close()

	fields := []zap.Field{
		zap.Int("chunk_count", chunkCount),
		zap.Int("content_length", contentLen),
		zap.Duration("duration", time.Since(startTime)),
	}
	if streamUsage != nil {
		fields = append(fields, zap.Int("total_tokens", streamUsage.TotalTokens))
	}
	p.logger.Debug("streaming complete", fields...)
}

func (p *Proxy) upstreamURL(c *fiber.Ctx, path string) string {
	u := p.config.UpstreamURL + path
	if q := c.Context().QueryArgs().QueryString(); len(q) > 0 {
		u += "?" + string(q)
	}
	return u
}
