// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// STREAMING: Robust SSE parsing with error handling

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// MaxChunkSize is the maximum allowed size for a single SSE event (64KB).
// A healthy delta is a few dozen bytes; anything near this limit is a
// misbehaving server.
const MaxChunkSize = 64 * 1024

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk represents a single chunk from the hive streaming response.
//
// Reasoning models populate Delta.ReasoningContent while deliberating and
// Delta.Content once the answer starts; the two never carry the same text.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Role             string `json:"role,omitempty"`
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
	Error error  `json:"-"` // Error field for channel-based streaming
}

// GetContent returns the content from the first choice's delta.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// GetReasoning returns the reasoning channel from the first choice's delta.
func (c *StreamChunk) GetReasoning() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.ReasoningContent
	}
	return ""
}

// GetRole returns the role from the first choice's delta.
func (c *StreamChunk) GetRole() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Role
	}
	return ""
}

// IsDone returns true if the stream has finished.
func (c *StreamChunk) IsDone() bool {
	if len(c.Choices) > 0 {
		return c.Choices[0].FinishReason != ""
	}
	return false
}

// GetFinishReason returns the finish reason if streaming is complete.
func (c *StreamChunk) GetFinishReason() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].FinishReason
	}
	return ""
}

// HasError returns true if the chunk contains an error.
func (c *StreamChunk) HasError() bool {
	return c.Error != nil
}

// StreamCallback is the function type called for each received chunk.
type StreamCallback func(chunk StreamChunk)

// StreamError represents an error that occurred during streaming,
// preserving any partial content received before the error.
type StreamError struct {
	Partial string // Content received before error
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// RateLimitError represents a rate limit error with retry information.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
	}
	return "rate limited"
}

// Is allows RateLimitError to be compared with ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// parseRateLimit builds a rate limit error from response headers,
// honoring Retry-After in both seconds and HTTP-date form.
func parseRateLimit(header http.Header) error {
	retryAfter := header.Get("Retry-After")
	if retryAfter == "" {
		return ErrRateLimited
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return &RateLimitError{RetryAfter: time.Duration(seconds) * time.Second}
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		return &RateLimitError{RetryAfter: time.Until(t)}
	}

	return ErrRateLimited
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event from the stream.
// Returns the event type, data, and any error. The event type is typically
// empty for chat completion streams. Returns io.EOF when the stream ends.
// Events larger than MaxChunkSize abort the read.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	total := 0

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// If we have data, return it before EOF
				if len(dataLines) > 0 {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		total += len(line)
		if total > MaxChunkSize {
			return "", nil, fmt.Errorf("SSE event too large: %d bytes", total)
		}

		// Trim trailing newline and carriage return
		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		// Parse field
		if bytes.HasPrefix(line, []byte("event:")) {
			eventType = string(bytes.TrimSpace(line[6:]))
		} else if bytes.HasPrefix(line, []byte("data:")) {
			data := bytes.TrimSpace(line[5:])
			dataLines = append(dataLines, data)
		}
		// Ignore other fields (id:, retry:, comments starting with :)
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream performs a streaming chat completion request.
// The callback is called for each chunk received.
// Supports context cancellation.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, callback StreamCallback) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if err := c.wait(ctx); err != nil {
		return err
	}

	resp, err := c.sendStreamRequest(ctx, &req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.processStream(ctx, resp.Body, callback)
}

// sendStreamRequest sends the streaming HTTP request and returns the response.
func (c *Client) sendStreamRequest(ctx context.Context, req *ChatRequest) (*http.Response, error) {
	req.Stream = true
	if req.Model == "" {
		req.Model = c.model
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Connection", "keep-alive")

	// PERFORMANCE: Use shared streaming client with connection pooling
	// (timeout handled via context)
	resp, err := sharedStreamingClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		resp.Body.Close()
		return nil, c.handleErrorResponse(resp.StatusCode, resp.Header, body)
	}

	return resp, nil
}

// processStream reads and processes the SSE stream.
func (c *Client) processStream(ctx context.Context, body io.Reader, callback StreamCallback) error {
	reader := NewSSEReader(body)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		// Check for [DONE] signal
		if bytes.Equal(data, []byte("[DONE]")) {
			return nil
		}

		// Parse the chunk
		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed chunks
			continue
		}

		callback(chunk)

		// Check if finished
		if chunk.IsDone() {
			return nil
		}
	}
}

// =============================================================================
// STREAMING WITH RETRY
// =============================================================================

// ChatStreamWithRetry performs a streaming chat with retry logic.
// Retries on connection errors but not on 4xx errors. If the stream dies
// after partial content arrived, the returned error is a StreamError
// carrying that content.
func (c *Client) ChatStreamWithRetry(ctx context.Context, req ChatRequest, callback StreamCallback) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	var lastErr error
	var accumulated strings.Builder

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		// Apply backoff delay after first attempt
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.wait(ctx); err != nil {
			return err
		}

		reqCopy := req
		resp, err := c.sendStreamRequest(ctx, &reqCopy)
		if err != nil {
			// Don't retry client errors
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
				return err
			}
			if errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrModelNotFound) {
				return err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			lastErr = err
			continue
		}

		// Wrap callback to accumulate content for partial preservation
		wrappedCallback := func(chunk StreamChunk) {
			accumulated.WriteString(chunk.GetContent())
			callback(chunk)
		}

		err = c.processStream(ctx, resp.Body, wrappedCallback)
		resp.Body.Close()

		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				lastErr = &StreamError{
					Partial: accumulated.String(),
					Err:     err,
				}
				continue
			}
			return err
		}

		return nil
	}

	// All retries exhausted
	if lastErr != nil {
		if accumulated.Len() > 0 {
			return &StreamError{
				Partial: accumulated.String(),
				Err:     fmt.Errorf("max retries exceeded: %w", lastErr),
			}
		}
		return fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return errors.New("max retries exceeded")
}

// =============================================================================
// CHANNEL-BASED STREAMING
// =============================================================================

// ChatStreamChan performs a streaming chat and returns a channel of chunks.
// The channel is closed when streaming is complete or an error occurs.
// Errors are available via the returned error channel.
func (c *Client) ChatStreamChan(ctx context.Context, req ChatRequest) (<-chan StreamChunk, <-chan error) {
	chunkChan := make(chan StreamChunk, 64)
	errChan := make(chan error, 1)

	go func() {
		defer close(chunkChan)
		defer close(errChan)

		err := c.ChatStream(ctx, req, func(chunk StreamChunk) {
			select {
			case chunkChan <- chunk:
			case <-ctx.Done():
			}
		})

		if err != nil {
			select {
			case errChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	return chunkChan, errChan
}

// =============================================================================
// ACCUMULATED RESPONSE
// =============================================================================

// ChatStreamAccumulate performs a streaming chat but returns the fully
// assembled response at the end, reasoning folded into <think> markup.
// This is useful for one-shot callers that still want stream-tolerant
// transport.
func (c *Client) ChatStreamAccumulate(ctx context.Context, req ChatRequest) (string, error) {
	asm := NewAssembler()

	err := c.ChatStream(ctx, req, func(chunk StreamChunk) {
		asm.Feed(chunk)
	})
	asm.Finish()

	if err != nil {
		// Surface partial content from stream errors
		var streamErr *StreamError
		if errors.As(err, &streamErr) && streamErr.Partial != "" && asm.Len() == 0 {
			return streamErr.Partial, err
		}
		return asm.String(), err
	}

	return asm.String(), nil
}
