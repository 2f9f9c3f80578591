package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// ErrNoToolCall is returned when the model answered without calling the
// tool it was forced to call and no JSON object could be recovered.
var ErrNoToolCall = errors.New("llm: model did not call the requested tool")

// ErrBadArguments is returned when tool arguments cannot be decoded even
// after repair.
var ErrBadArguments = errors.New("llm: malformed tool arguments")

// Extraction is the outcome of a forced tool call.
type Extraction struct {
	Call     ToolCall
	Response *Response
}

// Extract forces the model to call tool and decodes the call's arguments
// into out. Slightly malformed JSON (trailing commas, unquoted keys, code
// fences) is repaired before decoding. If the provider ignores the forced
// choice and replies with text, a JSON object in that text is accepted.
func Extract(ctx context.Context, p LLMProvider, messages []Message, tool Tool, opts *ChatOptions, out any) (*Extraction, error) {
	o := opts.clone()
	o.ToolChoice = tool.Name

	resp, err := p.Chat(ctx, messages, []Tool{tool}, o)
	if err != nil {
		return nil, err
	}

	call, ok := resp.ToolCall(tool.Name)
	if !ok {
		obj := jsonObject(resp.Content)
		if obj == "" {
			return nil, ErrNoToolCall
		}
		call = ToolCall{ID: "call_text", Name: tool.Name, Arguments: json.RawMessage(obj)}
	}

	args, err := DecodeArguments(call.Arguments, out)
	if err != nil {
		return nil, err
	}
	call.Arguments = args
	return &Extraction{Call: call, Response: resp}, nil
}

// DecodeArguments unmarshals raw into out, repairing it first if needed.
// It returns the JSON that was actually decoded.
func DecodeArguments(raw json.RawMessage, out any) (json.RawMessage, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, out); err == nil {
		return raw, nil
	}
	repaired, err := jsonrepair.RepairJSON(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: repair: %v", ErrBadArguments, err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrBadArguments, err)
	}
	return json.RawMessage(repaired), nil
}

// jsonObject returns the outermost {...} span of s, or "".
func jsonObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
