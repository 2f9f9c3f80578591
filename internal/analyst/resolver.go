package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"

	"github.com/seenimoa/thesisai/internal/analyst/prompts"
	"github.com/seenimoa/thesisai/internal/llm"
	"github.com/seenimoa/thesisai/pkg/models"
	"github.com/seenimoa/thesisai/pkg/utils"
)

// getDataTool is the extraction contract; its schema is reflected from
// ResolvedEntities so the struct tags are the single source of truth.
var getDataTool = llm.Tool{
	Name:        prompts.GetDataTool,
	Description: prompts.GetDataDescription,
	Parameters:  llm.MustSchemaFor(&models.ResolvedEntities{}),
}

var entityValidator = validator.New(validator.WithRequiredStructEnabled())

// Resolution is the detailed outcome of entity extraction.
type Resolution struct {
	Entities models.ResolvedEntities
	Call     llm.ToolCall // the tool call as replayed to the generator
	Warnings []string
	Model    string
}

// Resolver turns a free-text request into ResolvedEntities with one
// forced tool call.
type Resolver struct {
	provider      llm.LLMProvider
	opts          *llm.ChatOptions
	defaultPeriod string
	logger        *log.Logger
}

// NewResolver creates a resolver. opts may be nil.
func NewResolver(provider llm.LLMProvider, opts *llm.ChatOptions, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &Resolver{
		provider:      provider,
		opts:          opts,
		defaultPeriod: models.DefaultPeriod,
		logger:        logger,
	}
}

// WithDefaultPeriod sets the period used when the request names none.
func (r *Resolver) WithDefaultPeriod(p string) *Resolver {
	if parsed, err := utils.ParsePeriod(p); err == nil {
		r.defaultPeriod = string(parsed)
	}
	return r
}

// Tool returns the extraction tool definition.
func (r *Resolver) Tool() llm.Tool { return getDataTool }

// Resolve extracts the company name, ticker and period from request.
func (r *Resolver) Resolve(ctx context.Context, request string) (models.ResolvedEntities, error) {
	res, err := r.ResolveDetailed(ctx, request)
	if err != nil {
		return models.ResolvedEntities{}, err
	}
	return res.Entities, nil
}

// ResolveDetailed is Resolve plus the tool call and any warnings.
func (r *Resolver) ResolveDetailed(ctx context.Context, request string) (*Resolution, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, &ResolutionError{Request: request, Reason: "empty request"}
	}

	messages := []llm.Message{llm.UserMessage(prompts.ResolveRequest(request))}

	var e models.ResolvedEntities
	ext, err := llm.Extract(ctx, r.provider, messages, getDataTool, r.opts, &e)
	if err != nil {
		reason := "model call failed"
		switch {
		case errors.Is(err, llm.ErrNoToolCall):
			reason = "model did not call " + prompts.GetDataTool
		case errors.Is(err, llm.ErrBadArguments):
			reason = "unparsable tool arguments"
		}
		return nil, &ResolutionError{Request: request, Reason: reason, Err: err}
	}

	e.CompanyName = strings.TrimSpace(e.CompanyName)
	e.CompanyTicker = utils.NormalizeTicker(e.CompanyTicker)
	e.Destination = strings.TrimSpace(e.Destination)
	if err := entityValidator.Struct(e); err != nil {
		return nil, &ResolutionError{Request: request, Reason: "missing required fields", Err: err}
	}
	if !utils.IsValidTicker(e.CompanyTicker) {
		return nil, &ResolutionError{Request: request, Reason: "invalid ticker " + e.CompanyTicker}
	}

	res := &Resolution{Model: ext.Response.Model}
	if e.Period == "" {
		e.Period = r.defaultPeriod
	} else if p, err := utils.ParsePeriod(e.Period); err != nil {
		res.Warnings = append(res.Warnings, "unrecognized period "+e.Period+", using "+r.defaultPeriod)
		r.logger.Warn().Str("period", e.Period).Msg("unrecognized period from model")
		e.Period = r.defaultPeriod
	} else {
		e.Period = string(p)
	}
	res.Entities = e

	// Replay the normalized entities, not the raw arguments.
	args, _ := json.Marshal(e)
	res.Call = llm.ToolCall{ID: ext.Call.ID, Name: prompts.GetDataTool, Arguments: args}
	if res.Call.ID == "" {
		res.Call.ID = "call_" + prompts.GetDataTool
	}

	r.logger.Info().
		Str("company", e.CompanyName).
		Str("ticker", e.CompanyTicker).
		Str("period", e.Period).
		Msg("entities resolved")
	return res, nil
}
