package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/thesisai/internal/config"
)

type getDataArgs struct {
	CompanyName   string `json:"company_name" jsonschema:"required" jsonschema_description:"The name of the company"`
	CompanyTicker string `json:"company_ticker" jsonschema:"required" jsonschema_description:"The ticker of the stock of the company"`
	Period        string `json:"period,omitempty" jsonschema_description:"The period of analysis"`
}

func getDataTool(t *testing.T) Tool {
	t.Helper()
	schema, err := SchemaFor(getDataArgs{})
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	return Tool{Name: "get_data", Description: "Get financial data on a specific company for investment purposes", Parameters: schema}
}

// ════════════════════════════════════════════════════════════════════
// provider.go: Types & Helpers
// ════════════════════════════════════════════════════════════════════

func TestMessageConstructors(t *testing.T) {
	sys := SystemMessage("You are helpful.")
	if sys.Role != RoleSystem || sys.Content != "You are helpful." {
		t.Fatalf("SystemMessage: got %+v", sys)
	}

	tool := ToolResultMessage("call_1", "get_data", "done")
	if tool.Role != RoleTool || tool.ToolCallID != "call_1" || tool.Name != "get_data" {
		t.Fatalf("ToolResultMessage: got %+v", tool)
	}

	tc := AssistantToolCallMessage([]ToolCall{{ID: "c1", Name: "fn"}})
	if tc.Role != RoleAssistant || len(tc.ToolCalls) != 1 {
		t.Fatalf("AssistantToolCallMessage: got %+v", tc)
	}
}

func TestResponseToolCallLookup(t *testing.T) {
	r := &Response{ToolCalls: []ToolCall{{ID: "1", Name: "other"}, {ID: "2", Name: "get_data"}}}
	tc, ok := r.ToolCall("get_data")
	if !ok || tc.ID != "2" {
		t.Fatalf("ToolCall(get_data): got %+v, %v", tc, ok)
	}
	if _, ok := r.ToolCall("missing"); ok {
		t.Fatal("unexpected match")
	}
}

func TestResponseString(t *testing.T) {
	r := &Response{Provider: "openai", Model: "gpt-4o", Content: strings.Repeat("x", 150), Latency: 1500 * time.Millisecond}
	s := r.String()
	if !strings.Contains(s, "[openai/gpt-4o]") || !strings.Contains(s, "...") {
		t.Fatalf("String: got %s", s)
	}
}

func TestChatOptionsCloneNil(t *testing.T) {
	var o *ChatOptions
	c := o.clone()
	if c == nil {
		t.Fatal("clone of nil should be non-nil")
	}
	orig := &ChatOptions{Model: "a"}
	c = orig.clone()
	c.Model = "b"
	if orig.Model != "a" {
		t.Fatal("clone must not alias")
	}
}

// ════════════════════════════════════════════════════════════════════
// tools.go: schema reflection
// ════════════════════════════════════════════════════════════════════

func TestSchemaFor(t *testing.T) {
	s, err := SchemaFor(getDataArgs{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Type != "object" {
		t.Errorf("Type: got %q, want object", s.Type)
	}
	for _, name := range []string{"company_name", "company_ticker", "period"} {
		if _, ok := s.Properties[name]; !ok {
			t.Errorf("missing property %s", name)
		}
	}
	if got := s.Properties["company_ticker"].Description; got != "The ticker of the stock of the company" {
		t.Errorf("description: got %q", got)
	}
	if len(s.Required) != 2 {
		t.Errorf("Required: got %v, want company_name and company_ticker", s.Required)
	}
	for _, r := range s.Required {
		if r == "period" {
			t.Error("period must be optional")
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// openai.go
// ════════════════════════════════════════════════════════════════════

func TestOpenAIProviderNew(t *testing.T) {
	if _, err := NewOpenAIProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
	if _, err := NewOpenAIProvider("", WithOpenAIBaseURL("http://localhost:8000/v1")); err != nil {
		t.Fatalf("custom base URL should not require a key: %v", err)
	}
}

func TestOpenAIForcedToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization: got %q", got)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		choice, _ := req["tool_choice"].(map[string]any)
		fn, _ := choice["function"].(map[string]any)
		if fn["name"] != "get_data" {
			t.Errorf("tool_choice: got %v", req["tool_choice"])
		}
		if req["model"] != "gpt-4o-mini" {
			t.Errorf("model: got %v", req["model"])
		}
		io.WriteString(w, `{
			"id": "chatcmpl-1", "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant", "content": null,
				"tool_calls": [{"id": "call_abc", "type": "function",
					"function": {"name": "get_data", "arguments": "{\"company_name\":\"Microsoft\",\"company_ticker\":\"MSFT\"}"}}]
			}}],
			"usage": {"prompt_tokens": 50, "completion_tokens": 12, "total_tokens": 62}
		}`)
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	resp, err := p.Chat(context.Background(), []Message{UserMessage("Analyze Microsoft")},
		[]Tool{getDataTool(t)}, &ChatOptions{Model: "gpt-4o-mini", ToolChoice: "get_data"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.FinishReason != FinishToolCalls {
		t.Errorf("FinishReason: got %q", resp.FinishReason)
	}
	tc, ok := resp.ToolCall("get_data")
	if !ok || tc.ID != "call_abc" {
		t.Fatalf("tool call: got %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 62 {
		t.Errorf("TotalTokens: got %d", resp.Usage.TotalTokens)
	}
}

func TestOpenAIAssistantToolCallHasNullContent(t *testing.T) {
	msgs := convertToOpenAIMessages([]Message{
		AssistantToolCallMessage([]ToolCall{{ID: "c1", Name: "get_data", Arguments: json.RawMessage(`{}`)}}),
		ToolResultMessage("c1", "get_data", "done"),
	})
	raw, _ := json.Marshal(msgs[0])
	if !strings.Contains(string(raw), `"content":null`) {
		t.Errorf("assistant tool-call turn: got %s", raw)
	}
	if msgs[1].ToolCallID != "c1" || msgs[1].Content == nil || *msgs[1].Content != "done" {
		t.Errorf("tool turn: got %+v", msgs[1])
	}
}

func TestOpenAIToolChoiceNone(t *testing.T) {
	p, _ := NewOpenAIProvider("sk-test")
	r := p.buildRequest([]Message{UserMessage("hi")}, []Tool{getDataTool(t)}, "gpt-4o", &ChatOptions{ToolChoice: ToolChoiceNone})
	raw, _ := json.Marshal(r)
	if !strings.Contains(string(raw), `"tool_choice":"none"`) || !strings.Contains(string(raw), `"tools":[`) {
		t.Errorf("request: got %s", raw)
	}
}

func TestOpenAIErrorHandling(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", 401, `{"error":{"message":"Invalid API key","code":"invalid_api_key"}}`, ErrNoAPIKey},
		{"rate limit", 429, `{"error":{"message":"Rate limit reached","code":"rate_limit"}}`, ErrRateLimit},
		{"context length", 400, `{"error":{"message":"too long","code":"context_length_exceeded"}}`, ErrContextLength},
		{"server error", 503, `{"error":{"message":"overloaded"}}`, ErrProviderDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
			_, err := p.Chat(context.Background(), []Message{UserMessage("hi")}, nil, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOllamaProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		io.WriteString(w, `{"model":"llama3.1:8b","choices":[{"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "llama3.1:8b")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != ProviderOllama {
		t.Errorf("Name: got %q", p.Name())
	}
	resp, err := p.Chat(context.Background(), []Message{UserMessage("hi")}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello" || resp.Provider != ProviderOllama || resp.FinishReason != FinishStop {
		t.Errorf("resp: got %+v", resp)
	}
}

// ════════════════════════════════════════════════════════════════════
// anthropic.go
// ════════════════════════════════════════════════════════════════════

func TestAnthropicProviderNew(t *testing.T) {
	if _, err := NewAnthropicProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestAnthropicForcedToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path: got %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		choice, _ := req["tool_choice"].(map[string]any)
		if choice["type"] != "tool" || choice["name"] != "get_data" {
			t.Errorf("tool_choice: got %v", req["tool_choice"])
		}
		if sys, _ := req["system"].([]any); len(sys) != 1 {
			t.Errorf("system: got %v", req["system"])
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
			"content": [{"type": "tool_use", "id": "toolu_1", "name": "get_data",
				"input": {"company_name": "Microsoft", "company_ticker": "MSFT"}}],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 40, "output_tokens": 15}
		}`)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("sk-ant-test", WithAnthropicBaseURL(server.URL))
	resp, err := p.Chat(context.Background(),
		[]Message{SystemMessage("be precise"), UserMessage("Analyze Microsoft")},
		[]Tool{getDataTool(t)}, &ChatOptions{ToolChoice: "get_data"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	tc, ok := resp.ToolCall("get_data")
	if !ok {
		t.Fatalf("no tool call: %+v", resp)
	}
	var args getDataArgs
	if err := json.Unmarshal(tc.Arguments, &args); err != nil || args.CompanyTicker != "MSFT" {
		t.Errorf("arguments: got %s (%v)", tc.Arguments, err)
	}
	if resp.FinishReason != FinishToolCalls || resp.Usage.TotalTokens != 55 {
		t.Errorf("resp: got %+v", resp)
	}
}

func TestAnthropicRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("sk-ant-test", WithAnthropicBaseURL(server.URL))
	_, err := p.Chat(context.Background(), []Message{UserMessage("hi")}, nil, nil)
	if !errors.Is(err, ErrRateLimit) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}
}

func TestAnthropicReplayedToolUseDeclaresTools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		raw, _ := json.Marshal(req["messages"])
		if strings.Contains(string(raw), `"tool_use"`) {
			tools, _ := req["tools"].([]any)
			if len(tools) != 1 {
				t.Errorf("tool_use history without tools: got %v", req["tools"])
			}
		}
		choice, _ := req["tool_choice"].(map[string]any)
		if choice["type"] != "none" {
			t.Errorf("tool_choice: got %v", req["tool_choice"])
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "<h1>Microsoft</h1>"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 400, "output_tokens": 90}
		}`)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("sk-ant-test", WithAnthropicBaseURL(server.URL))
	resp, err := p.Chat(context.Background(), []Message{
		UserMessage("Analyze Microsoft"),
		AssistantToolCallMessage([]ToolCall{{ID: "call_get_data", Name: "get_data", Arguments: json.RawMessage(`{"company_ticker":"MSFT"}`)}}),
		ToolResultMessage("call_get_data", "get_data", "done"),
		SystemMessage("write a thesis"),
		UserMessage("context here"),
	}, []Tool{getDataTool(t)}, &ChatOptions{ToolChoice: ToolChoiceNone})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "<h1>Microsoft</h1>" || len(resp.ToolCalls) != 0 {
		t.Errorf("resp: got %+v", resp)
	}
}

func TestConvertToAnthropicMessagesMergesTurns(t *testing.T) {
	system, msgs := convertToAnthropicMessages([]Message{
		UserMessage("Analyze Microsoft"),
		AssistantToolCallMessage([]ToolCall{{ID: "c1", Name: "get_data", Arguments: json.RawMessage(`{"company_ticker":"MSFT"}`)}}),
		ToolResultMessage("c1", "get_data", "done"),
		SystemMessage("write a thesis"),
		UserMessage("context here"),
	})
	if system != "write a thesis" {
		t.Errorf("system: got %q", system)
	}
	// user, assistant(tool_use), user(tool_result + text)
	if len(msgs) != 3 {
		t.Fatalf("turns: got %d, want 3", len(msgs))
	}
	if len(msgs[2].Content) != 2 {
		t.Errorf("merged user turn: got %d blocks, want 2", len(msgs[2].Content))
	}
}

// ════════════════════════════════════════════════════════════════════
// gemini.go
// ════════════════════════════════════════════════════════════════════

func TestGeminiForcedFunctionCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Errorf("path: got %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"ANY"`) || !strings.Contains(string(body), `"get_data"`) {
			t.Errorf("request should force get_data: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"candidates": [{"content": {"role": "model", "parts": [
				{"functionCall": {"name": "get_data", "args": {"company_name": "Microsoft", "company_ticker": "MSFT", "period": "6mo"}}}
			]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 30, "candidatesTokenCount": 10, "totalTokenCount": 40}
		}`)
	}))
	defer server.Close()

	p, err := NewGeminiProvider(context.Background(), "gm-test", WithGeminiBaseURL(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Chat(context.Background(), []Message{UserMessage("Analyze Microsoft over 6 months")},
		[]Tool{getDataTool(t)}, &ChatOptions{ToolChoice: "get_data"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	tc, ok := resp.ToolCall("get_data")
	if !ok {
		t.Fatalf("no tool call: %+v", resp)
	}
	var args getDataArgs
	json.Unmarshal(tc.Arguments, &args)
	if args.CompanyTicker != "MSFT" || args.Period != "6mo" {
		t.Errorf("args: got %+v", args)
	}
	if resp.Usage.TotalTokens != 40 {
		t.Errorf("TotalTokens: got %d", resp.Usage.TotalTokens)
	}
}

func TestGeminiToolChoiceNone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"NONE"`) || !strings.Contains(string(body), `"functionDeclarations"`) {
			t.Errorf("request should declare tools with mode NONE: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "thesis"}]}, "finishReason": "STOP"}]}`)
	}))
	defer server.Close()

	p, err := NewGeminiProvider(context.Background(), "gm-test", WithGeminiBaseURL(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Chat(context.Background(), []Message{UserMessage("write it")},
		[]Tool{getDataTool(t)}, &ChatOptions{ToolChoice: ToolChoiceNone})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "thesis" {
		t.Errorf("Content: got %q", resp.Content)
	}
}

func TestToGeminiSchema(t *testing.T) {
	s := toGeminiSchema(getDataTool(t).Parameters)
	if s.Type != "OBJECT" {
		t.Errorf("Type: got %q", s.Type)
	}
	if s.Properties["company_ticker"].Type != "STRING" {
		t.Errorf("property type: got %q", s.Properties["company_ticker"].Type)
	}
}

// ════════════════════════════════════════════════════════════════════
// router.go
// ════════════════════════════════════════════════════════════════════

// mockProvider implements LLMProvider for testing the router.
type mockProvider struct {
	name     string
	chatFunc func(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error)
	pingErr  error
	calls    atomic.Int32
}

func (m *mockProvider) Name() string                   { return m.name }
func (m *mockProvider) Models() []string               { return []string{m.name + "-model"} }
func (m *mockProvider) Ping(ctx context.Context) error { return m.pingErr }
func (m *mockProvider) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	m.calls.Add(1)
	if m.chatFunc != nil {
		return m.chatFunc(ctx, messages, tools, opts)
	}
	return &Response{Content: "mock response", Provider: m.name}, nil
}

func TestRouterFallbackClearsModel(t *testing.T) {
	primary := &mockProvider{name: "primary", chatFunc: func(ctx context.Context, _ []Message, _ []Tool, _ *ChatOptions) (*Response, error) {
		return nil, ErrProviderDown
	}}
	var fallbackModel string
	fallback := &mockProvider{name: "fallback", chatFunc: func(ctx context.Context, _ []Message, _ []Tool, opts *ChatOptions) (*Response, error) {
		fallbackModel = opts.Model
		return &Response{Content: "from fallback", Provider: "fallback"}, nil
	}}

	r := NewRouter("primary", WithFallbacks("fallback"), WithMaxRetries(1), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)
	r.RegisterProvider(fallback)

	resp, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil, &ChatOptions{Model: "gpt-4o"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "fallback" {
		t.Errorf("Provider: got %q", resp.Provider)
	}
	if fallbackModel != "" {
		t.Errorf("fallback should use its own model, got %q", fallbackModel)
	}
	if primary.calls.Load() != 2 {
		t.Errorf("primary calls: got %d, want 2 (one retry)", primary.calls.Load())
	}
}

func TestRouterNonRetryableNotRetried(t *testing.T) {
	primary := &mockProvider{name: "primary", chatFunc: func(ctx context.Context, _ []Message, _ []Tool, _ *ChatOptions) (*Response, error) {
		return nil, ErrNoAPIKey
	}}
	r := NewRouter("primary", WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)

	_, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil, nil)
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
	if primary.calls.Load() != 1 {
		t.Errorf("calls: got %d, want 1", primary.calls.Load())
	}
}

func TestRouterRateLimitRetried(t *testing.T) {
	var n atomic.Int32
	primary := &mockProvider{name: "primary", chatFunc: func(ctx context.Context, _ []Message, _ []Tool, _ *ChatOptions) (*Response, error) {
		if n.Add(1) == 1 {
			return nil, ErrRateLimit
		}
		return &Response{Content: "ok"}, nil
	}}
	r := NewRouter("primary", WithMaxRetries(2), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)

	resp, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil, nil)
	if err != nil || resp.Content != "ok" {
		t.Fatalf("got %v, %v", resp, err)
	}
}

func TestRouterNoPrimary(t *testing.T) {
	r := NewRouter("missing")
	_, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil, nil)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestRouterHealthCheck(t *testing.T) {
	r := NewRouter("a")
	r.RegisterProvider(&mockProvider{name: "a"})
	r.RegisterProvider(&mockProvider{name: "b", pingErr: ErrProviderDown})

	res := r.HealthCheck(context.Background())
	if res["a"] != nil || !errors.Is(res["b"], ErrProviderDown) {
		t.Errorf("HealthCheck: got %v", res)
	}
	if names := r.ProviderNames(); len(names) != 2 || names[0] != "a" {
		t.Errorf("ProviderNames: got %v", names)
	}
}

func TestNewRouterFromConfig(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{
		Primary: "openai", OpenAIKey: "sk-test", AnthropicKey: "sk-ant",
		Model: "gpt-4o", Fallbacks: true, TimeoutSec: 30, MaxRetries: 1,
	}}
	r, err := NewRouterFromConfig(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.providerChain(); len(got) != 2 || got[0] != "openai" || got[1] != "anthropic" {
		t.Errorf("chain: got %v", got)
	}

	cfg.LLM.Primary = "gemini"
	if _, err := NewRouterFromConfig(context.Background(), cfg, nil); !errors.Is(err, ErrNoProviders) {
		t.Errorf("primary without credentials: got %v", err)
	}
}

func TestModelFor(t *testing.T) {
	lc := config.LLMConfig{Primary: "openai", Model: "gpt-4o"}
	if got := modelFor(ProviderAnthropic, lc); !strings.HasPrefix(got, "claude") {
		t.Errorf("anthropic fallback model: got %q", got)
	}
	if got := modelFor(ProviderOpenAI, lc); got != "gpt-4o" {
		t.Errorf("primary model: got %q", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// extract.go
// ════════════════════════════════════════════════════════════════════

func TestExtractRepairsArguments(t *testing.T) {
	p := &mockProvider{name: "m", chatFunc: func(ctx context.Context, _ []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
		if opts.ToolChoice != "get_data" || len(tools) != 1 {
			t.Errorf("tool not forced: %+v", opts)
		}
		return &Response{ToolCalls: []ToolCall{{
			ID: "c1", Name: "get_data",
			Arguments: json.RawMessage(`{"company_name": "Microsoft", "company_ticker": "MSFT",}`),
		}}}, nil
	}}

	var args getDataArgs
	ext, err := Extract(context.Background(), p, []Message{UserMessage("Analyze Microsoft")}, getDataTool(t), nil, &args)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if args.CompanyName != "Microsoft" || args.CompanyTicker != "MSFT" {
		t.Errorf("args: got %+v", args)
	}
	if !json.Valid(ext.Call.Arguments) {
		t.Errorf("call arguments should be repaired JSON: %s", ext.Call.Arguments)
	}
}

func TestExtractFromTextReply(t *testing.T) {
	p := &mockProvider{name: "m", chatFunc: func(context.Context, []Message, []Tool, *ChatOptions) (*Response, error) {
		return &Response{Content: "```json\n{\"company_name\":\"Apple\",\"company_ticker\":\"AAPL\"}\n```"}, nil
	}}
	var args getDataArgs
	if _, err := Extract(context.Background(), p, nil, getDataTool(t), nil, &args); err != nil {
		t.Fatal(err)
	}
	if args.CompanyTicker != "AAPL" {
		t.Errorf("ticker: got %q", args.CompanyTicker)
	}
}

func TestExtractNoToolCall(t *testing.T) {
	p := &mockProvider{name: "m", chatFunc: func(context.Context, []Message, []Tool, *ChatOptions) (*Response, error) {
		return &Response{Content: "I cannot help with that."}, nil
	}}
	var args getDataArgs
	_, err := Extract(context.Background(), p, nil, getDataTool(t), nil, &args)
	if !errors.Is(err, ErrNoToolCall) {
		t.Fatalf("expected ErrNoToolCall, got %v", err)
	}
}
