// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/golem-tui/internal/config"
	"github.com/jeranaias/golem-tui/internal/hive"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

// newStubHive starts a fake upstream serving the OpenAI-compatible
// endpoints the relay forwards to.
func newStubHive(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req hive.ChatRequest
		json.Unmarshal(body, &req)

		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			chunks := []string{
				`{"choices":[{"delta":{"reasoning_content":"thinking"}}]}`,
				`{"choices":[{"delta":{"content":"Hello"}}]}`,
				`{"choices":[{"delta":{"content":" world"}}]}`,
				`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
			}
			for _, c := range chunks {
				fmt.Fprintf(w, "data: %s\n\n", c)
				flusher.Flush()
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "upstream-1",
			"model": "test-model",
			"choices": [{"message": {"role": "assistant", "content": "Hello world", "reasoning_content": "thinking"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`)
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"test-model","object":"model","owned_by":"hive"}]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestServer wires a relay in front of the stub hive and returns the
// fully middlewared handler.
func newTestServer(t *testing.T, cfg config.ServerConfig) (*Server, http.Handler) {
	t.Helper()

	upstream := newStubHive(t)
	client := hive.NewClient(upstream.URL+"/v1", "").WithModel("test-model").WithMaxRetries(0)

	s := New(cfg, client).WithLogger(log.New(io.Discard, "", 0))
	return s, s.Handler(DefaultRateLimiter())
}

func postJSON(t *testing.T, handler http.Handler, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// =============================================================================
// STATS TESTS
// =============================================================================

func TestNewStats(t *testing.T) {
	stats := NewStats()

	if stats == nil {
		t.Fatal("NewStats() returned nil")
	}
	if stats.TotalRequests != 0 {
		t.Errorf("TotalRequests = %d, want 0", stats.TotalRequests)
	}
	if stats.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
}

func TestStatsRecord(t *testing.T) {
	stats := NewStats()

	stats.Record(false, 100, false)
	stats.Record(true, 50, false)
	stats.Record(false, 0, true)

	snap := stats.Snapshot()
	if snap.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", snap.TotalRequests)
	}
	if snap.StreamedRequests != 1 {
		t.Errorf("StreamedRequests = %d, want 1", snap.StreamedRequests)
	}
	if snap.FailedRequests != 1 {
		t.Errorf("FailedRequests = %d, want 1", snap.FailedRequests)
	}
	if snap.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want 150", snap.TotalTokens)
	}
}

func TestStatsUptime(t *testing.T) {
	stats := NewStats()
	stats.StartTime = time.Now().Add(-time.Minute)

	if up := stats.Uptime(); up < time.Minute {
		t.Errorf("Uptime = %v, want >= 1m", up)
	}
}

// =============================================================================
// REQUEST VALIDATION TESTS
// =============================================================================

func TestValidateMessages(t *testing.T) {
	tests := []struct {
		name    string
		roles   []string
		wantErr bool
	}{
		{"valid roles", []string{"system", "user", "assistant", "tool"}, false},
		{"empty role", []string{""}, true},
		{"unknown role", []string{"hacker"}, true},
		{"mixed", []string{"user", "robot"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := make([]hive.ChatMessage, len(tt.roles))
			for i, role := range tt.roles {
				msgs[i] = hive.ChatMessage{Role: role, Content: "x"}
			}
			err := validateMessages(msgs)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateMessages() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatCompletionsRejectsEmptyMessages(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{})

	w := postJSON(t, handler, "/v1/chat/completions", `{"messages":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestChatCompletionsRejectsBadRole(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{})

	w := postJSON(t, handler, "/v1/chat/completions",
		`{"messages":[{"role":"villain","content":"hi"}]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestChatCompletionsRejectsBadTemperature(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{})

	w := postJSON(t, handler, "/v1/chat/completions",
		`{"messages":[{"role":"user","content":"hi"}],"temperature":5.0}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestChatCompletionsRejectsBadMaxTokens(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{})

	w := postJSON(t, handler, "/v1/chat/completions",
		`{"messages":[{"role":"user","content":"hi"}],"max_tokens":999999}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestChatCompletionsRejectsMalformedJSON(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{})

	w := postJSON(t, handler, "/v1/chat/completions", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestChatCompletionsRejectsOversizedBody(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{})

	big := strings.Repeat("x", MaxRequestBodySize+1024)
	w := postJSON(t, handler, "/v1/chat/completions",
		`{"messages":[{"role":"user","content":"`+big+`"}]}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

// =============================================================================
// RELAY TESTS
// =============================================================================

func TestChatCompletionsRelay(t *testing.T) {
	s, handler := newTestServer(t, config.ServerConfig{})

	w := postJSON(t, handler, "/v1/chat/completions",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !strings.HasPrefix(resp.ID, "chatcmpl-") {
		t.Errorf("ID = %q, want chatcmpl- prefix", resp.ID)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("choices = %d, want 1", len(resp.Choices))
	}
	if resp.Choices[0].Message.Content != "Hello world" {
		t.Errorf("content = %q", resp.Choices[0].Message.Content)
	}
	if resp.Choices[0].Message.ReasoningContent != "thinking" {
		t.Errorf("reasoning = %q", resp.Choices[0].Message.ReasoningContent)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("total tokens = %d, want 7", resp.Usage.TotalTokens)
	}

	snap := s.stats.Snapshot()
	if snap.TotalRequests != 1 || snap.TotalTokens != 7 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestChatCompletionsStreamRelay(t *testing.T) {
	s, handler := newTestServer(t, config.ServerConfig{})

	w := postJSON(t, handler, "/v1/chat/completions",
		`{"messages":[{"role":"user","content":"hi"}],"stream":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, "data: [DONE]") {
		t.Error("stream missing [DONE] terminator")
	}

	// Reassemble the content and reasoning channels from the deltas.
	var content, reasoning strings.Builder
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") || strings.Contains(line, "[DONE]") {
			continue
		}
		var chunk StreamChunk
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
			t.Fatalf("bad chunk %q: %v", line, err)
		}
		for _, choice := range chunk.Choices {
			content.WriteString(choice.Delta.Content)
			reasoning.WriteString(choice.Delta.ReasoningContent)
		}
	}

	if content.String() != "Hello world" {
		t.Errorf("streamed content = %q", content.String())
	}
	if reasoning.String() != "thinking" {
		t.Errorf("streamed reasoning = %q", reasoning.String())
	}

	snap := s.stats.Snapshot()
	if snap.StreamedRequests != 1 {
		t.Errorf("StreamedRequests = %d, want 1", snap.StreamedRequests)
	}
	if snap.TotalTokens != 7 {
		t.Errorf("TotalTokens = %d, want 7", snap.TotalTokens)
	}
}

func TestModelsRelay(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "test-model" {
		t.Errorf("models = %+v", resp.Data)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var health HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if health.Version != Version {
		t.Errorf("version = %q, want %q", health.Version, Version)
	}
	if health.HiveStatus != "ok" {
		t.Errorf("hive_status = %q, want ok", health.HiveStatus)
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{})

	postJSON(t, handler, "/v1/chat/completions",
		`{"messages":[{"role":"user","content":"hi"}]}`)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var stats StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", stats.TotalRequests)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

// =============================================================================
// AUTH TESTS
// =============================================================================

func TestAuthRequired(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{AuthToken: "secret-token"})

	// No token
	w := postJSON(t, handler, "/v1/chat/completions",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	// Wrong token
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}

	// Correct token
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("correct token: status = %d, want 200", rec.Code)
	}
}

func TestValidateBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
		want     bool
	}{
		{"match", "abc123", "abc123", true},
		{"mismatch", "abc123", "xyz789", false},
		{"empty token", "", "abc123", false},
		{"empty expected", "abc123", "", false},
		{"both empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateBearerToken(tt.token, tt.expected); got != tt.want {
				t.Errorf("ValidateBearerToken() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestSecurityHeaders(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestCORSPreflightAllowedOrigin(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{
		AllowedOrigins: []string{"http://example.test"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/models", nil)
	req.Header.Set("Origin", "http://example.test")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.test" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORSDisallowedOriginGetsNoHeaders(t *testing.T) {
	_, handler := newTestServer(t, config.ServerConfig{
		AllowedOrigins: []string{"http://example.test"},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin = %q", got)
	}
}

func TestCORSWildcardSubdomain(t *testing.T) {
	cors := &CORSConfig{AllowedOrigins: []string{"*.example.test"}}

	if !cors.isOriginAllowed("https://app.example.test") {
		t.Error("subdomain should match wildcard")
	}
	if cors.isOriginAllowed("https://evil.test") {
		t.Error("unrelated origin matched wildcard")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	upstream := newStubHive(t)
	client := hive.NewClient(upstream.URL+"/v1", "").WithModel("test-model")
	s := New(config.ServerConfig{}, client).WithLogger(log.New(io.Discard, "", 0))

	// Tiny budget so the third request trips the limiter.
	handler := s.Handler(NewRateLimiter(1, 2))

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		last = w.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)

	if !rl.Allow("10.0.0.1") {
		t.Error("first request from IP should pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("second immediate request should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("different IP has its own bucket")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mk("first"), mk("second"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "final")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"first", "second", "final"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

// =============================================================================
// CLIENT IP TESTS
// =============================================================================

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"untrusted peer ignores xff", "203.0.113.7:1234", "198.51.100.1", "203.0.113.7"},
		{"trusted proxy honors xff", "127.0.0.1:1234", "198.51.100.1", "198.51.100.1"},
		{"trusted proxy garbage xff", "127.0.0.1:1234", "not-an-ip", "127.0.0.1"},
		{"xff first hop wins", "127.0.0.1:1234", "198.51.100.1, 10.0.0.1", "198.51.100.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthConfigIPAllowlist(t *testing.T) {
	cfg := &AuthConfig{AllowedIPs: []string{"10.0.0.0/8", "192.168.1.5"}}

	if !cfg.isIPAllowed("10.1.2.3") {
		t.Error("CIDR member should be allowed")
	}
	if !cfg.isIPAllowed("192.168.1.5") {
		t.Error("exact IP should be allowed")
	}
	if cfg.isIPAllowed("203.0.113.7") {
		t.Error("outside allowlist should be denied")
	}

	open := &AuthConfig{}
	if !open.isIPAllowed("203.0.113.7") {
		t.Error("empty allowlist admits everyone")
	}
}
