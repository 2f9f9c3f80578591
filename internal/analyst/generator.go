package analyst

import (
	"context"
	"encoding/json"
	"time"

	"github.com/phuslu/log"

	"github.com/seenimoa/thesisai/internal/analyst/prompts"
	"github.com/seenimoa/thesisai/internal/llm"
	"github.com/seenimoa/thesisai/internal/report"
	"github.com/seenimoa/thesisai/pkg/models"
)

// Generator writes the investment thesis from the aggregated context.
type Generator struct {
	provider llm.LLMProvider
	opts     *llm.ChatOptions
	format   models.DocumentFormat
	logger   *log.Logger
}

// NewGenerator creates a generator producing documents in format.
// opts may be nil; an empty format means HTML.
func NewGenerator(provider llm.LLMProvider, opts *llm.ChatOptions, format models.DocumentFormat, logger *log.Logger) *Generator {
	if format == "" {
		format = models.FormatHTML
	}
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &Generator{provider: provider, opts: opts, format: format, logger: logger}
}

// Format returns the document format the generator produces.
func (g *Generator) Format() models.DocumentFormat { return g.format }

// Messages builds the generation conversation: the original request, the
// replayed get_data call and its acknowledgement, the thesis instruction,
// and finally the aggregated data as the grounding turn.
func (g *Generator) Messages(request string, call llm.ToolCall, actx AggregatedContext) []llm.Message {
	system := prompts.ThesisSystemPrompt
	if g.format == models.FormatMarkdown {
		system = prompts.ThesisSystemPromptMarkdown
	}
	return []llm.Message{
		llm.UserMessage(request),
		llm.AssistantToolCallMessage([]llm.ToolCall{call}),
		llm.ToolResultMessage(call.ID, call.Name, prompts.ToolAck),
		llm.SystemMessage(system),
		llm.UserMessage(prompts.GroundingPreamble + actx.Text),
	}
}

// Generate asks the model for the thesis. The price series is returned
// unchanged in the result for charting.
func (g *Generator) Generate(ctx context.Context, request string, e models.ResolvedEntities,
	actx AggregatedContext, prices models.PriceSeries) (models.NarrativeResult, error) {
	return g.generate(ctx, request, callFor(e), e, actx, prices)
}

func (g *Generator) generate(ctx context.Context, request string, call llm.ToolCall, e models.ResolvedEntities,
	actx AggregatedContext, prices models.PriceSeries) (models.NarrativeResult, error) {
	start := time.Now()
	messages := g.Messages(request, call, actx)

	// The replayed get_data turn needs the tool declared; it must not be
	// called again.
	resp, err := g.provider.Chat(ctx, messages, []llm.Tool{getDataTool}, g.chatOptions())
	if err != nil {
		return models.NarrativeResult{}, &GenerationError{Model: g.model(nil), Err: err}
	}

	doc := report.Unfence(resp.Content)
	if report.PlainText(doc) == "" {
		return models.NarrativeResult{}, &GenerationError{Model: g.model(resp), Err: ErrEmptyDocument}
	}
	if g.format == models.FormatHTML && !report.IsHTML(doc) {
		html, err := report.MarkdownToHTML(doc)
		if err != nil {
			return models.NarrativeResult{}, &GenerationError{Model: g.model(resp), Err: err}
		}
		g.logger.Debug().Msg("model answered in markdown, converted to html")
		doc = html
	}

	g.logger.Info().
		Str("ticker", e.CompanyTicker).
		Str("model", g.model(resp)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("latency", time.Since(start)).
		Msg("thesis generated")

	return models.NarrativeResult{
		Request:     request,
		Entities:    e,
		Document:    doc,
		RawDocument: resp.Content,
		Format:      g.format,
		PriceSeries: prices,
		Truncated:   actx.Truncated,
		Model:       g.model(resp),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (g *Generator) chatOptions() *llm.ChatOptions {
	var o llm.ChatOptions
	if g.opts != nil {
		o = *g.opts
	}
	o.ToolChoice = llm.ToolChoiceNone
	return &o
}

func (g *Generator) model(resp *llm.Response) string {
	if resp != nil && resp.Model != "" {
		return resp.Model
	}
	if g.opts != nil && g.opts.Model != "" {
		return g.opts.Model
	}
	return g.provider.Name()
}

// callFor rebuilds the get_data call for entities resolved elsewhere.
func callFor(e models.ResolvedEntities) llm.ToolCall {
	args, _ := json.Marshal(e)
	return llm.ToolCall{ID: "call_" + prompts.GetDataTool, Name: prompts.GetDataTool, Arguments: args}
}
