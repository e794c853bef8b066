// Package client calls a running aurion API server on behalf of the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/papercomputeco/aurion/api"
	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/llm"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the API server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aurion API returned HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is the API's "no matching memory" response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the API server at a base URL such as http://localhost:8081.
type Client struct {
	target string
	http   *http.Client
}

func New(target string) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL %q: scheme and host are required", target)
	}

	return &Client{
		target: target,
		http:   &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Teach stores a fact and returns its id.
func (c *Client) Teach(ctx context.Context, req api.UpsertFactRequest) (string, error) {
	var out api.UpsertFactResponse
	if err := c.do(ctx, http.MethodPost, "/v1/facts", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Ask looks a question up. A miss is an *APIError for which IsNotFound is true.
func (c *Client) Ask(ctx context.Context, req api.LookupRequest) (*facts.Match, error) {
	var out facts.Match
	if err := c.do(ctx, http.MethodPost, "/v1/facts/lookup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Forget removes the fact for question, reporting whether one existed.
func (c *Client) Forget(ctx context.Context, question string) (bool, error) {
	var out api.ForgetResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/facts", api.ForgetRequest{Question: question}, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

// List returns the live facts.
func (c *Client) List(ctx context.Context) ([]api.FactResponse, error) {
	var out api.ListFactsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/facts", nil, &out); err != nil {
		return nil, err
	}
	return out.Facts, nil
}

// Sweep asks the server to delete expired facts.
func (c *Client) Sweep(ctx context.Context) (int, error) {
	var out api.SweepResponse
	if err := c.do(ctx, http.MethodPost, "/v1/facts/sweep", nil, &out); err != nil {
		return 0, err
	}
	return out.Expired, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	endpoint, err := url.JoinPath(c.target, path)
	if err != nil {
		return fmt.Errorf("building request URL: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to aurion API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp llm.ErrorResponse
		msg := string(data)
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
