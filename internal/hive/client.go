// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hive provides the client for self-hosted hive inference servers.
package hive

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Configuration constants for the hive API.
const (
	// DefaultHiveURL is the base URL of a locally running hive server.
	DefaultHiveURL = "http://localhost:8090/v1"

	// DefaultTimeout is the default timeout for non-streaming requests.
	// Self-hosted models can be slow to fill large prompts.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	// Shared HTTP client with connection pooling for all hive requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for streaming requests (no timeout, context-controlled).
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		// No timeout for streaming - controlled via context
	}
)

// Error variables for common hive errors.
var (
	// ErrNotConfigured indicates no server URL is set.
	ErrNotConfigured = errors.New("hive server URL not configured")

	// ErrAuthFailed indicates authentication failed (invalid or missing API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model is not loaded on the server.
	ErrModelNotFound = errors.New("model not found")

	// ErrServerOverloaded indicates the server refused the request under load.
	ErrServerOverloaded = errors.New("server overloaded")
)

// APIError represents an error response from the hive API.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("hive error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("hive error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage represents a single message in the wire format.
type ChatMessage struct {
	Role    string `json:"role"`    // "user", "assistant", "system", or "tool"
	Content string `json:"content"` // The message content
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// Tool describes a callable function in the OpenAI function format.
type Tool struct {
	Type     string       `json:"type"` // always "function"
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function portion of a Tool definition.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatRequest represents a request to the chat completions endpoint.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []Tool        `json:"tools,omitempty"`
}

// Usage holds token accounting reported by the server.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse represents a response from the chat completions endpoint.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role             string `json:"role"`
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// GetContent returns the content of the first choice, or empty string if none.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// GetReasoning returns the reasoning channel of the first choice, if the
// server reported one on a non-streaming response.
func (r *ChatResponse) GetReasoning() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.ReasoningContent
	}
	return ""
}

// ModelEntry is one model listed by the server.
type ModelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// modelsResponse is the internal response structure for listing models.
type modelsResponse struct {
	Data []ModelEntry `json:"data"`
}

// apiErrorResponse represents an error response from the API.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a client for communicating with a hive server.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	timeout    time.Duration

	// limiter throttles outgoing requests so a busy TUI cannot hammer a
	// single-GPU server. Nil means unlimited.
	limiter *rate.Limiter
}

// NewClient creates a new hive client for the given base URL.
//
// The URL should include the /v1 suffix ("http://host:8090/v1"). The API key
// is optional; most self-hosted deployments run without authentication.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		maxRetries: DefaultMaxRetries,
		timeout:    DefaultTimeout,
	}
}

// WithModel sets the default model used when a request leaves Model empty.
func (c *Client) WithModel(model string) *Client {
	c.model = model
	return c
}

// WithTimeout sets the request timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// WithMaxRetries sets the maximum number of retry attempts.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	c.maxRetries = maxRetries
	return c
}

// WithRateLimit throttles the client to rps requests per second with the
// given burst. A non-positive rps disables limiting.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// SetModel sets the default model to use for chat requests.
func (c *Client) SetModel(model string) {
	c.model = model
}

// GetModel returns the current default model.
func (c *Client) GetModel() string {
	return c.model
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsConfigured returns true if the client has a server URL configured.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// wait blocks until the rate limiter permits another request.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// setHeaders sets the required headers for hive API requests.
// Every request carries a generated X-Request-ID so server logs can be
// correlated with client-side stream state.
func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "golem/0.3.0")
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// =============================================================================
// CHAT COMPLETIONS
// =============================================================================

// Chat performs a non-streaming chat completion request.
//
// It automatically handles retries with exponential backoff for transient
// errors such as rate limiting and server errors. If the server reports a
// reasoning channel on the response message, it is folded into the returned
// content as a <think> span so callers see the same shape a stream produces.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	if req.Model == "" {
		req.Model = c.model
	}
	req.Stream = false

	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		// Apply backoff delay after first attempt
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		response, err := c.doRequest(ctx, req)
		if err != nil {
			if c.isRetryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}

		foldReasoning(response)
		return response, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return nil, errors.New("max retries exceeded")
}

// Generate performs a simple text generation with a single user prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (*ChatResponse, error) {
	return c.Chat(ctx, ChatRequest{
		Messages: []ChatMessage{NewUserMessage(prompt)},
	})
}

// foldReasoning rewrites a response message that carries a separate
// reasoning_content field into the inline <think> form.
func foldReasoning(resp *ChatResponse) {
	if resp == nil || len(resp.Choices) == 0 {
		return
	}
	choice := &resp.Choices[0]
	if choice.Message.ReasoningContent == "" {
		return
	}
	choice.Message.Content = "<think>" + choice.Message.ReasoningContent + "</think>\n" + choice.Message.Content
	choice.Message.ReasoningContent = ""
}

// doRequest performs a single HTTP request to the chat completions endpoint.
func (c *Client) doRequest(ctx context.Context, reqBody ChatRequest) (*ChatResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)

	// PERFORMANCE: Use shared HTTP client with connection pooling
	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// SECURITY: Read response with size limit to prevent memory exhaustion
	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp.StatusCode, resp.Header, body)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &chatResp, nil
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Check if we hit the limit (response was truncated)
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}

	return body, nil
}

// handleErrorResponse converts HTTP error responses to appropriate Go errors.
func (c *Client) handleErrorResponse(statusCode int, header http.Header, body []byte) error {
	// Rate limit responses carry retry timing worth preserving
	if statusCode == http.StatusTooManyRequests {
		return parseRateLimit(header)
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		hiveErr := &APIError{
			Code:    apiErr.Error.Code,
			Message: apiErr.Error.Message,
			Status:  statusCode,
		}

		switch statusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailed, hiveErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrModelNotFound, hiveErr.Message)
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %s", ErrServerOverloaded, hiveErr.Message)
		default:
			return hiveErr
		}
	}

	// Fallback for unparseable error responses
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusServiceUnavailable:
		return ErrServerOverloaded
	default:
		return &APIError{
			Message: strings.TrimSpace(string(body)),
			Status:  statusCode,
		}
	}
}

// isRetryable determines if an error should trigger a retry.
func (c *Client) isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Rate limiting and overload can be retried after backoff
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerOverloaded) {
		return true
	}

	// Don't retry on client errors (4xx); retry on 5xx
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}

	// Network errors are retryable
	return true
}

// calculateBackoff returns the delay to wait before the next retry.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	// Exponential backoff: 500ms, 1000ms, 2000ms, etc.
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// =============================================================================
// MODELS AND HEALTH
// =============================================================================

// ListModels retrieves the models currently loaded on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelEntry, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp.StatusCode, resp.Header, body)
	}

	var models modelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	return models.Data, nil
}

// Ping checks whether the server is reachable. It tries the /health
// endpoint first and falls back to listing models for servers without one.
func (c *Client) Ping(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	healthURL := strings.TrimSuffix(c.baseURL, "/v1") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := sharedHTTPClient.Do(req)
	if err == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
	}

	_, err = c.ListModels(ctx)
	return err
}

// =============================================================================
// WEB SEARCH
// =============================================================================

// SearchResult is one entry from the hive's web search endpoint.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type webSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type webSearchResponse struct {
	Results []SearchResult `json:"results"`
}

// WebSearch runs a query through the hive's search endpoint. Like
// /health it lives at the server root, not under /v1; servers without
// the endpoint return a plain APIError the caller can surface.
func (c *Client) WebSearch(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty search query")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(webSearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	searchURL := strings.TrimSuffix(c.baseURL, "/v1") + "/web/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp.StatusCode, resp.Header, body)
	}

	var search webSearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return search.Results, nil
}
