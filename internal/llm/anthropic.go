package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicModels lists commonly available Anthropic models.
var anthropicModels = []string{
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
}

// AnthropicProvider implements LLMProvider on the Anthropic Messages API.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	reqOpts   []option.RequestOption
}

// AnthropicOption configures the Anthropic provider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicModel sets the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithAnthropicBaseURL sets a custom base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.reqOpts = append(p.reqOpts, option.WithBaseURL(strings.TrimRight(url, "/")+"/"))
	}
}

// WithAnthropicHTTPClient sets a custom HTTP client.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.reqOpts = append(p.reqOpts, option.WithHTTPClient(client))
	}
}

// NewAnthropicProvider creates an Anthropic provider. Retries are left to
// the Router so the SDK's own retry loop is disabled.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &AnthropicProvider{
		model:     "claude-sonnet-4-20250514",
		maxTokens: 4096,
		reqOpts: []option.RequestOption{
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(120 * time.Second),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	client := anthropic.NewClient(p.reqOpts...)
	p.client = &client
	return p, nil
}

func (p *AnthropicProvider) Name() string     { return ProviderAnthropic }
func (p *AnthropicProvider) Models() []string { return anthropicModels }

// Ping verifies the API key by listing models.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return mapAnthropicError(ctx, err)
	}
	return nil
}

// Chat sends a messages request.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	o := opts.clone()
	model := p.model
	if o.Model != "" {
		model = o.Model
	}
	maxTokens := p.maxTokens
	if o.MaxTokens > 0 {
		maxTokens = o.MaxTokens
	}

	system, msgs := convertToAnthropicMessages(messages)
	if len(msgs) == 0 {
		return nil, errors.New("anthropic: conversation has no user turn")
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if o.Temperature > 0 {
		params.Temperature = anthropic.Float(o.Temperature)
	}
	if o.TopP > 0 {
		params.TopP = anthropic.Float(o.TopP)
	}
	if len(o.Stop) > 0 {
		params.StopSequences = o.Stop
	}
	if len(tools) > 0 {
		params.Tools = convertToAnthropicTools(tools)
		switch o.ToolChoice {
		case "":
		case ToolChoiceNone:
			none := anthropic.NewToolChoiceNoneParam()
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &none}
		default:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{
				OfTool: &anthropic.ToolChoiceToolParam{Name: o.ToolChoice},
			}
		}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(ctx, err)
	}

	r := &Response{
		Model:        string(msg.Model),
		Provider:     ProviderAnthropic,
		Latency:      time.Since(start),
		FinishReason: mapFinishReason(string(msg.StopReason)),
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	var text strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			r.ToolCalls = append(r.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: json.RawMessage(block.Input),
			})
		}
	}
	r.Content = text.String()
	return r, nil
}

// convertToAnthropicMessages lifts system messages into the system prompt
// and merges adjacent turns of the same role, since the API requires
// user and assistant turns to alternate. Tool results travel as user turns.
func convertToAnthropicMessages(messages []Message) (string, []anthropic.MessageParam) {
	type turn struct {
		role   Role
		blocks []anthropic.ContentBlockParamUnion
	}
	var (
		system []string
		turns  []turn
	)
	add := func(role Role, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].blocks = append(turns[n-1].blocks, blocks...)
			return
		}
		turns = append(turns, turn{role: role, blocks: blocks})
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args := tc.Arguments
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			add(RoleAssistant, blocks...)
		case RoleTool:
			add(RoleUser, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		default:
			add(RoleUser, anthropic.NewTextBlock(m.Content))
		}
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		if t.role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(t.blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(t.blocks...))
		}
	}
	return strings.Join(system, "\n\n"), out
}

func convertToAnthropicTools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if t.Parameters != nil {
			schema.Properties = t.Parameters.Properties
			schema.Required = t.Parameters.Required
		}
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

func mapAnthropicError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrNoAPIKey, err)
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == 529:
			return fmt.Errorf("%w: %v", ErrRateLimit, err)
		case apiErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrInvalidModel, err)
		case apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrProviderDown, err)
		}
		return fmt.Errorf("anthropic: %w", err)
	}
	return fmt.Errorf("%w: %v", ErrProviderDown, err)
}
