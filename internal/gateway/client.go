// Package gateway implements the HTTP client for the remote docs assistant
// service. The service answers a query with generated text plus citations,
// or reports failure with a machine code and a message.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/docschat/internal/domain"
)

// Answer is a successful response from the assistant service.
type Answer struct {
	Response string          `json:"response"`
	Sources  []domain.Source `json:"sources"`
}

// queryRequest is the wire format of a chat query.
type queryRequest struct {
	Query string `json:"query"`
}

// errorBody is the wire format of an explicit service failure.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NetworkError is a transport-level failure: unreachable service, timeout,
// or a response the client could not parse. Message is a short user-safe
// string; the underlying cause is kept for logs only.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string { return e.Message }

// Unwrap exposes the underlying transport error.
func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError means the service explicitly reported failure. The message
// is surfaced to the user; the code is logged but never shown.
type BackendError struct {
	Code    string
	Message string
}

func (e *BackendError) Error() string { return e.Message }

// Client talks to the remote assistant service over HTTP.
type Client struct {
	baseURL       string
	httpc         *http.Client
	timeout       time.Duration
	healthTimeout time.Duration
	logger        *slog.Logger
}

// ClientConfig holds configuration for the assistant service client.
type ClientConfig struct {
	// BaseURL is the root of the assistant API, e.g. "http://localhost:8000".
	BaseURL string
	// RequestTimeout bounds a single query. Zero disables the bound and the
	// client waits indefinitely.
	RequestTimeout time.Duration
	// HealthTimeout bounds the health probe.
	HealthTimeout time.Duration
}

// DefaultClientConfig returns default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        "http://localhost:8000",
		RequestTimeout: 30 * time.Second,
		HealthTimeout:  5 * time.Second,
	}
}

// NewClient creates a new assistant service client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultClientConfig().BaseURL
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultClientConfig().HealthTimeout
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpc:         &http.Client{},
		timeout:       cfg.RequestTimeout,
		healthTimeout: cfg.HealthTimeout,
		logger:        logger,
	}
}

// Query sends a user query to the assistant service and returns its answer.
// Failures are reported as *NetworkError or *BackendError.
func (c *Client) Query(ctx context.Context, text string) (*Answer, error) {
	body, err := json.Marshal(queryRequest{Query: text})
	if err != nil {
		return nil, &NetworkError{Message: "failed to encode request", Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		msg := "assistant service is unreachable"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "assistant service timed out"
		}
		c.logger.Warn("chat query transport failure", "error", err)
		return nil, &NetworkError{Message: msg, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error == "" {
			return nil, &BackendError{
				Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
				Message: "assistant service error",
			}
		}
		c.logger.Warn("chat query rejected by assistant service",
			"code", eb.Code,
			"status", resp.StatusCode,
		)
		return nil, &BackendError{Code: eb.Code, Message: eb.Error}
	}

	var answer Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, &NetworkError{Message: "invalid response from assistant service", Err: err}
	}
	if answer.Sources == nil {
		answer.Sources = []domain.Source{}
	}

	return &answer, nil
}

// Health probes the assistant service health endpoint. It returns nil when
// the service answered at all, regardless of reported degradation.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("assistant health probe: %w", err)
	}
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Debug("failed to close health response body", "error", closeErr)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("assistant health probe: status %d", resp.StatusCode)
	}
	return nil
}
