// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/golem-tui/internal/config"
	"github.com/jeranaias/golem-tui/internal/hive"
	"github.com/jeranaias/golem-tui/internal/telemetry"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8091"

	// MaxMessageChars is the maximum length of one message to prevent abuse.
	MaxMessageChars = 100000

	// MaxMessageCount is the maximum number of messages in a request.
	MaxMessageCount = 200

	// MaxRequestBodySize is the maximum request body size (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxTokensLimit is the maximum accepted max_tokens value.
	MaxTokensLimit = 128000

	// MinTemperature and MaxTemperature bound the temperature parameter.
	MinTemperature = 0.0
	MaxTemperature = 2.0

	// Version is the relay version reported by /health.
	Version = "0.4.0"
)

// validRoles is the set of acceptable message roles; anything else is
// rejected before the request reaches the hive.
var validRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
	"tool":      true,
}

// validateMessages checks every message against the role whitelist.
func validateMessages(messages []hive.ChatMessage) error {
	for i, msg := range messages {
		if !validRoles[msg.Role] {
			return fmt.Errorf("invalid role '%s' at message %d: must be one of user, assistant, system, tool", msg.Role, i)
		}
	}
	return nil
}

// =============================================================================
// RELAY STATS
// =============================================================================

// Stats tracks relay usage counters.
type Stats struct {
	TotalRequests    int64     `json:"total_requests"`
	StreamedRequests int64     `json:"streamed_requests"`
	FailedRequests   int64     `json:"failed_requests"`
	TotalTokens      int64     `json:"total_tokens"`
	StartTime        time.Time `json:"start_time"`
}

// NewStats creates a zeroed Stats anchored at now.
func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

// Record tallies one completed request.
func (s *Stats) Record(streamed bool, tokens int64, failed bool) {
	atomic.AddInt64(&s.TotalRequests, 1)
	atomic.AddInt64(&s.TotalTokens, tokens)
	if streamed {
		atomic.AddInt64(&s.StreamedRequests, 1)
	}
	if failed {
		atomic.AddInt64(&s.FailedRequests, 1)
	}
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Stats {
	return Stats{
		TotalRequests:    atomic.LoadInt64(&s.TotalRequests),
		StreamedRequests: atomic.LoadInt64(&s.StreamedRequests),
		FailedRequests:   atomic.LoadInt64(&s.FailedRequests),
		TotalTokens:      atomic.LoadInt64(&s.TotalTokens),
		StartTime:        s.StartTime,
	}
}

// Uptime returns how long the relay has been running.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// =============================================================================
// SERVER
// =============================================================================

// Server is a local OpenAI-compatible relay in front of the configured
// hive. Other apps on the machine point at golem's listen address and
// inherit its upstream config, auth, and rate limiting without each
// needing hive credentials.
type Server struct {
	addr   string
	router *http.ServeMux
	server *http.Server

	hive   *hive.Client
	usage  *telemetry.Tracker
	stats  *Stats
	auth   *AuthConfig
	cors   *CORSConfig
	logger *log.Logger

	mu sync.RWMutex
}

// New creates a relay server from the server section of the config,
// fronting the given hive client.
func New(cfg config.ServerConfig, client *hive.Client) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{
		addr:   addr,
		router: http.NewServeMux(),
		hive:   client,
		stats:  NewStats(),
		auth:   authFromConfig(cfg),
		cors:   corsFromConfig(cfg),
		logger: log.Default(),
	}

	s.setupRoutes()
	return s
}

// authFromConfig builds the auth settings: a configured token enables
// bearer authentication, no token leaves the relay open (it binds to
// loopback by default).
func authFromConfig(cfg config.ServerConfig) *AuthConfig {
	return &AuthConfig{
		Enabled:     cfg.AuthToken != "",
		BearerToken: cfg.AuthToken,
	}
}

func corsFromConfig(cfg config.ServerConfig) *CORSConfig {
	cors := DefaultCORSConfig()
	if len(cfg.AllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.AllowedOrigins
	}
	return cors
}

// WithUsageTracker records relayed token usage into the shared tracker.
func (s *Server) WithUsageTracker(tracker *telemetry.Tracker) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = tracker
	return s
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(logger *log.Logger) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
	return s
}

// WithAuth overrides the authentication configuration.
func (s *Server) WithAuth(auth *AuthConfig) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = auth
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	s.router.HandleFunc("GET /v1/models", s.handleModels)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /stats", s.handleStats)
}

// =============================================================================
// OPENAI-COMPATIBLE TYPES
// =============================================================================

// ChatCompletionRequest is the OpenAI-compatible chat completion request.
type ChatCompletionRequest struct {
	Model       string             `json:"model"`
	Messages    []hive.ChatMessage `json:"messages"`
	Stream      bool               `json:"stream"`
	Temperature float64            `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
}

// ChatChoice is a single choice in a non-streaming response.
type ChatChoice struct {
	Index        int          `json:"index"`
	Message      ChoiceOutput `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

// ChoiceOutput is the assistant message in a choice, including the
// reasoning channel when the hive reported one.
type ChoiceOutput struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// ChatCompletionResponse is the OpenAI-compatible completion response.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   hive.Usage   `json:"usage"`
}

// StreamDelta is the incremental payload inside a streaming chunk.
type StreamDelta struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// StreamChoice is a single choice in a streaming chunk.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// StreamChunk is one SSE event in a streaming response.
type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

// =============================================================================
// CHAT COMPLETIONS HANDLER
// =============================================================================

// handleChatCompletions handles POST /v1/chat/completions.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return
		}
		// Full details stay in the log; the client gets a generic message.
		s.logger.Printf("BAD_REQUEST | error=%v", err)
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "Request must contain at least one message")
		return
	}
	if len(req.Messages) > MaxMessageCount {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Too many messages: maximum is %d", MaxMessageCount))
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		s.logger.Printf("VALIDATION_FAILED | error=%v", err)
		s.writeError(w, http.StatusBadRequest, "Invalid message format. Messages must have valid roles (user, assistant, system, tool)")
		return
	}
	for i, msg := range req.Messages {
		if len(msg.Content) > MaxMessageChars {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Message %d exceeds maximum length of %d", i, MaxMessageChars))
			return
		}
	}
	if req.MaxTokens < 0 || req.MaxTokens > MaxTokensLimit {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("max_tokens must be between 0 and %d", MaxTokensLimit))
		return
	}
	if req.Temperature < MinTemperature || req.Temperature > MaxTemperature {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("temperature must be between %.1f and %.1f", MinTemperature, MaxTemperature))
		return
	}

	s.mu.RLock()
	client := s.hive
	s.mu.RUnlock()

	if client == nil || !client.IsConfigured() {
		s.writeError(w, http.StatusServiceUnavailable, "Upstream not configured")
		return
	}

	upstream := hive.ChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if upstream.Model == "" {
		upstream.Model = client.GetModel()
	}

	if req.Stream {
		s.relayStream(w, r, client, upstream)
	} else {
		s.relayOnce(w, r, client, upstream)
	}
}

// relayOnce forwards a non-streaming completion to the hive.
func (s *Server) relayOnce(w http.ResponseWriter, r *http.Request, client *hive.Client, req hive.ChatRequest) {
	start := time.Now()

	resp, err := client.Chat(r.Context(), req)
	if err != nil {
		s.stats.Record(false, 0, true)
		s.logger.Printf("UPSTREAM_ERROR | model=%s error=%v", req.Model, err)
		s.writeError(w, http.StatusBadGateway, "Upstream request failed")
		return
	}

	s.recordUsage(req, resp.Usage, time.Since(start))
	s.stats.Record(false, int64(resp.Usage.TotalTokens), false)

	finishReason := "stop"
	if len(resp.Choices) > 0 && resp.Choices[0].FinishReason != "" {
		finishReason = resp.Choices[0].FinishReason
	}

	s.writeJSON(w, http.StatusOK, ChatCompletionResponse{
		ID:      generateResponseID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []ChatChoice{
			{
				Index: 0,
				Message: ChoiceOutput{
					Role:             "assistant",
					Content:          resp.GetContent(),
					ReasoningContent: resp.GetReasoning(),
				},
				FinishReason: finishReason,
			},
		},
		Usage: resp.Usage,
	})
}

// relayStream forwards a streaming completion, passing content and
// reasoning deltas through as they arrive.
func (s *Server) relayStream(w http.ResponseWriter, r *http.Request, client *hive.Client, req hive.ChatRequest) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	start := time.Now()
	responseID := generateResponseID()
	created := time.Now().Unix()
	req.Stream = true

	// Initial role chunk, as upstream implementations send.
	s.sendChunk(w, flusher, StreamChunk{
		ID:      responseID,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   req.Model,
		Choices: []StreamChoice{{Delta: StreamDelta{Role: "assistant"}}},
	})

	var totalTokens int
	var usage hive.Usage

	err := client.ChatStream(r.Context(), req, func(chunk hive.StreamChunk) {
		delta := StreamDelta{
			Content:          chunk.GetContent(),
			ReasoningContent: chunk.GetReasoning(),
		}
		if delta.Content != "" || delta.ReasoningContent != "" {
			s.sendChunk(w, flusher, StreamChunk{
				ID:      responseID,
				Object:  "chat.completion.chunk",
				Created: created,
				Model:   req.Model,
				Choices: []StreamChoice{{Delta: delta}},
			})
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
			totalTokens = usage.TotalTokens
		}
	})
	if err != nil {
		// Headers are gone; the best we can do is log and close the stream.
		s.logger.Printf("STREAM_ERROR | model=%s error=%v", req.Model, err)
	}

	finishReason := "stop"
	s.sendChunk(w, flusher, StreamChunk{
		ID:      responseID,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   req.Model,
		Choices: []StreamChoice{{FinishReason: &finishReason}},
	})

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()

	s.recordUsage(req, usage, time.Since(start))
	s.stats.Record(true, int64(totalTokens), err != nil)
}

// sendChunk marshals and flushes one SSE event.
func (s *Server) sendChunk(w http.ResponseWriter, flusher http.Flusher, chunk StreamChunk) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// recordUsage feeds relayed token counts into the shared usage tracker.
func (s *Server) recordUsage(req hive.ChatRequest, usage hive.Usage, duration time.Duration) {
	s.mu.RLock()
	tracker := s.usage
	s.mu.RUnlock()

	if tracker == nil || usage.TotalTokens == 0 {
		return
	}

	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}
	tracker.Record(req.Model, usage.PromptTokens, usage.CompletionTokens, duration, prompt)
}

// =============================================================================
// MODELS HANDLER
// =============================================================================

// ModelsResponse is the OpenAI-compatible models list response.
type ModelsResponse struct {
	Object string            `json:"object"`
	Data   []hive.ModelEntry `json:"data"`
}

// handleModels handles GET /v1/models by relaying the hive's list.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	client := s.hive
	s.mu.RUnlock()

	if client == nil {
		s.writeJSON(w, http.StatusOK, ModelsResponse{Object: "list"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, err := client.ListModels(ctx)
	if err != nil {
		s.logger.Printf("MODELS_ERROR | error=%v", err)
		s.writeError(w, http.StatusBadGateway, "Upstream request failed")
		return
	}

	s.writeJSON(w, http.StatusOK, ModelsResponse{Object: "list", Data: entries})
}

// =============================================================================
// HEALTH AND STATS HANDLERS
// =============================================================================

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	HiveStatus string `json:"hive_status"`
	HiveURL    string `json:"hive_url,omitempty"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:  "ok",
		Version: Version,
	}

	s.mu.RLock()
	client := s.hive
	s.mu.RUnlock()

	if client != nil {
		health.HiveURL = client.BaseURL()

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := client.Ping(ctx); err == nil {
			health.HiveStatus = "ok"
		} else {
			health.HiveStatus = "unavailable"
			health.Status = "degraded"
		}
	} else {
		health.HiveStatus = "not_configured"
		health.Status = "degraded"
	}

	s.writeJSON(w, http.StatusOK, health)
}

// StatsResponse is the /stats payload.
type StatsResponse struct {
	TotalRequests    int64 `json:"total_requests"`
	StreamedRequests int64 `json:"streamed_requests"`
	FailedRequests   int64 `json:"failed_requests"`
	TotalTokens      int64 `json:"total_tokens"`
	UptimeSeconds    int64 `json:"uptime_seconds"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.Snapshot()

	s.writeJSON(w, http.StatusOK, StatsResponse{
		TotalRequests:    stats.TotalRequests,
		StreamedRequests: stats.StreamedRequests,
		FailedRequests:   stats.FailedRequests,
		TotalTokens:      stats.TotalTokens,
		UptimeSeconds:    int64(s.stats.Uptime().Seconds()),
	})
}

// =============================================================================
// SERVER LIFECYCLE
// =============================================================================

// Handler returns the fully wired handler (middleware included), mainly
// for tests.
func (s *Server) Handler(limiter *RateLimiter) http.Handler {
	handler := Chain(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.cors),
		RateLimitMiddleware(limiter, s.logger),
	)(s.router)

	if s.auth != nil && s.auth.Enabled {
		handler = AuthMiddleware(s.auth, s.logger)(handler)
	}
	return handler
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start(cfg config.ServerConfig) error {
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(limiter),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Streams can run long
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Printf("SERVER_START | addr=%s version=%s auth=%v", s.addr, Version, s.auth != nil && s.auth.Enabled)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Printf("SERVER_SHUTDOWN | draining connections")
	return s.server.Shutdown(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an OpenAI-style JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "invalid_request_error",
			"code":    status,
		},
	})
}

// generateResponseID generates a unique response ID.
func generateResponseID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return "chatcmpl-" + hex.EncodeToString(bytes)
}
