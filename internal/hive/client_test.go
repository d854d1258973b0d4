// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const chatOKBody = `{
	"id": "chatcmpl-1",
	"model": "qwen3:14b",
	"choices": [{
		"message": {"role": "assistant", "content": "Hello from the hive."},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 9, "completion_tokens": 5, "total_tokens": 14}
}`

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(DefaultHiveURL, "")

	if client.BaseURL() != DefaultHiveURL {
		t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), DefaultHiveURL)
	}
	if !client.IsConfigured() {
		t.Error("client with URL should be configured")
	}

	empty := NewClient("", "")
	if empty.IsConfigured() {
		t.Error("client without URL should not be configured")
	}
}

func TestClient_BuilderMethods(t *testing.T) {
	client := NewClient("http://example:8090/v1", "key").
		WithModel("deepseek-r1:32b").
		WithTimeout(30 * time.Second).
		WithMaxRetries(5).
		WithRateLimit(2, 4)

	if client.GetModel() != "deepseek-r1:32b" {
		t.Errorf("GetModel() = %q, want deepseek-r1:32b", client.GetModel())
	}
	if client.maxRetries != 5 {
		t.Errorf("maxRetries = %d, want 5", client.maxRetries)
	}
	if client.limiter == nil {
		t.Error("WithRateLimit should install a limiter")
	}

	client.WithRateLimit(0, 0)
	if client.limiter != nil {
		t.Error("WithRateLimit(0, 0) should remove the limiter")
	}
}

func TestChat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}
		if got := r.Header.Get("User-Agent"); got != "golem/0.3.0" {
			t.Errorf("User-Agent = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header missing")
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("non-streaming chat should send stream=false")
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatOKBody)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	resp, err := client.Chat(context.Background(), ChatRequest{
		Model:    "qwen3:14b",
		Messages: []ChatMessage{NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if got := resp.GetContent(); got != "Hello from the hive." {
		t.Errorf("content = %q", got)
	}
	if resp.Usage.TotalTokens != 14 {
		t.Errorf("total tokens = %d, want 14", resp.Usage.TotalTokens)
	}
}

func TestChat_NoAuthHeaderWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("keyless client must not send Authorization")
		}
		fmt.Fprint(w, chatOKBody)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if _, err := client.Chat(context.Background(), ChatRequest{Model: "m"}); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
}

func TestChat_FoldsReasoningIntoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "chatcmpl-2",
			"model": "deepseek-r1:32b",
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "The answer is 42.",
					"reasoning_content": "checking my math"
				},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	resp, err := client.Chat(context.Background(), ChatRequest{Model: "deepseek-r1:32b"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	want := "<think>checking my math</think>\nThe answer is 42."
	if got := resp.GetContent(); got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if resp.GetReasoning() != "" {
		t.Error("reasoning field should be cleared after folding")
	}
}

func TestChat_AppliesDefaultModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3.1:8b" {
			t.Errorf("model = %q, want llama3.1:8b", req.Model)
		}
		fmt.Fprint(w, chatOKBody)
	}))
	defer server.Close()

	client := NewClient(server.URL, "").WithModel("llama3.1:8b")
	if _, err := client.Chat(context.Background(), ChatRequest{}); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
}

func TestChat_RetriesOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"worker crashed","code":"internal"}}`)
			return
		}
		fmt.Fprint(w, chatOKBody)
	}))
	defer server.Close()

	client := NewClient(server.URL, "").WithMaxRetries(2)
	resp, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
	if resp.GetContent() == "" {
		t.Error("retry should surface the successful response")
	}
}

func TestChat_NoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"temperature out of range","code":"invalid_request"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "").WithMaxRetries(3)
	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.Status)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestChat_NotConfigured(t *testing.T) {
	client := NewClient("", "")
	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"x","model":"m","choices":[],"usage":{}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	resp, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.GetContent() != "" {
		t.Errorf("content = %q, want empty", resp.GetContent())
	}
	if resp.GetReasoning() != "" {
		t.Errorf("reasoning = %q, want empty", resp.GetReasoning())
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v, want single user message", req.Messages)
		}
		fmt.Fprint(w, chatOKBody)
	}))
	defer server.Close()

	client := NewClient(server.URL, "").WithModel("m")
	resp, err := client.Generate(context.Background(), "one-shot prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.GetContent() == "" {
		t.Error("expected content from generation")
	}
}

// =============================================================================
// MODELS AND HEALTH TESTS
// =============================================================================

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %s, want /models", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[
			{"id":"deepseek-r1:32b","object":"model","owned_by":"hive"},
			{"id":"qwen3:14b","object":"model","owned_by":"hive"}
		]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[0].ID != "deepseek-r1:32b" {
		t.Errorf("models[0].ID = %q", models[0].ID)
	}
}

func TestPing_HealthEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	// Base URL carries the /v1 suffix; Ping must strip it for /health.
	client := NewClient(server.URL+"/v1", "")
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestPing_FallsBackToModels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL+"/v1", "")
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() should fall back to /models, got %v", err)
	}
}

// =============================================================================
// BACKOFF TESTS
// =============================================================================

func TestCalculateBackoff(t *testing.T) {
	client := NewClient(DefaultHiveURL, "")

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{10, retryMaxDelay},
	}

	for _, tt := range tests {
		if got := client.calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

// Regression test: a single client is shared by the TUI, slash commands, and
// background title generation. Concurrent use must be safe.
func TestClient_ConcurrentRequests(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, chatOKBody)
	}))
	defer server.Close()

	client := NewClient(server.URL, "").WithModel("m")

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Chat(context.Background(), ChatRequest{Model: "m"}); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Chat() error = %v", err)
	}
	if got := requests.Load(); got != workers {
		t.Errorf("server saw %d requests, want %d", got, workers)
	}
}

// =============================================================================
// WEB SEARCH
// =============================================================================

func TestWebSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/web/search" {
			t.Errorf("path = %q, want /web/search", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		var req struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "go generics" || req.Limit != 5 {
			t.Errorf("request = %+v", req)
		}
		fmt.Fprint(w, `{"results":[
			{"title":"Result 1","url":"https://example.com/1","snippet":"First"},
			{"title":"Result 2","url":"https://example.com/2","snippet":"Second"}
		]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/v1", "")
	results, err := client.WebSearch(context.Background(), "go generics", 5)
	if err != nil {
		t.Fatalf("WebSearch() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Title != "Result 1" || results[1].URL != "https://example.com/2" {
		t.Errorf("results = %+v", results)
	}
}

func TestWebSearch_EmptyQuery(t *testing.T) {
	client := NewClient("http://example:8090/v1", "")
	if _, err := client.WebSearch(context.Background(), "  ", 0); err == nil {
		t.Error("blank query should error without a request")
	}
}

func TestWebSearch_ServerWithoutEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"message":"no search backend"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/v1", "")
	_, err := client.WebSearch(context.Background(), "anything", 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", apiErr.Status)
	}
}
