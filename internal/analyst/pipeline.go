package analyst

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/seenimoa/thesisai/internal/analysis/sentiment"
	"github.com/seenimoa/thesisai/internal/config"
	"github.com/seenimoa/thesisai/internal/datasource"
	"github.com/seenimoa/thesisai/internal/infra"
	"github.com/seenimoa/thesisai/internal/llm"
	"github.com/seenimoa/thesisai/pkg/models"
	"github.com/seenimoa/thesisai/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Stages
// ════════════════════════════════════════════════════════════════════

// Stage is a state of a pipeline run.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageResolving   Stage = "resolving"
	StageFetching    Stage = "fetching"
	StageAggregating Stage = "aggregating"
	StageGenerating  Stage = "generating"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

var transitions = map[Stage][]Stage{
	StageIdle:        {StageResolving},
	StageResolving:   {StageFetching, StageFailed},
	StageFetching:    {StageAggregating, StageFailed},
	StageAggregating: {StageGenerating, StageFailed},
	StageGenerating:  {StageDone, StageFailed},
}

// CanTransition reports whether a run may move from s to next.
func (s Stage) CanTransition(next Stage) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a run.
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// StageEvent is emitted on every transition of a run.
type StageEvent struct {
	RequestID   string    `json:"request_id"`
	Stage       Stage     `json:"stage"`
	Previous    Stage     `json:"previous"`
	FailedStage Stage     `json:"failed_stage,omitempty"` // set when Stage is failed
	Detail      string    `json:"detail,omitempty"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// Observer receives stage events. It is called synchronously and must
// not block.
type Observer func(StageEvent)

// ════════════════════════════════════════════════════════════════════
// Options
// ════════════════════════════════════════════════════════════════════

// Options tune a Pipeline.
type Options struct {
	ContextCap       int           // rune cap on the aggregated context
	FetchTimeout     time.Duration // bound on one fetch round; 0 disables
	LLMTimeout       time.Duration // bound on each model call; 0 disables
	PartialResults   bool          // continue without financials when they fail
	MaxFetchRetries  int           // extra fetch rounds after a transient failure
	IncludeSentiment bool          // attach a news sentiment summary to the result
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		ContextCap:       DefaultContextCap,
		FetchTimeout:     45 * time.Second,
		LLMTimeout:       120 * time.Second,
		IncludeSentiment: true,
	}
}

// OptionsFromConfig maps the analysis and llm sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ContextCap:       cfg.Analysis.ContextCap,
		FetchTimeout:     cfg.FetchTimeout(),
		LLMTimeout:       cfg.LLMTimeout(),
		PartialResults:   cfg.Analysis.PartialResults,
		MaxFetchRetries:  cfg.Analysis.MaxFetchRetries,
		IncludeSentiment: cfg.Analysis.IncludeSentiment,
	}
}

// ════════════════════════════════════════════════════════════════════
// Pipeline
// ════════════════════════════════════════════════════════════════════

// Pipeline runs Resolving → Fetching → Aggregating → Generating for one
// request at a time per call; a Pipeline may serve concurrent runs.
type Pipeline struct {
	resolver  *Resolver
	fetcher   *datasource.Aggregator
	generator *Generator
	opts      Options
	logger    *log.Logger
	closers   []func() error
	now       func() time.Time
}

// New assembles a pipeline from its stages.
func New(resolver *Resolver, fetcher *datasource.Aggregator, generator *Generator, opts Options, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	if opts.ContextCap <= 0 {
		opts.ContextCap = DefaultContextCap
	}
	return &Pipeline{
		resolver:  resolver,
		fetcher:   fetcher,
		generator: generator,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// NewFromConfig wires the LLM router, the fetch cache and the data
// providers described by cfg.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	router, err := llm.NewRouterFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	store, err := infra.NewStore(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	sources, err := datasource.NewSources(cfg, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("data sources: %w", err)
	}

	fetchOpts := []datasource.AggregatorOption{
		datasource.WithNewsLimit(cfg.News.Limit),
		datasource.WithAggregatorLogger(logger),
	}
	if cfg.Analysis.IncludeSentiment {
		fetchOpts = append(fetchOpts, datasource.WithAnnotator(sentiment.Annotate))
	}

	resolver := NewResolver(router, &llm.ChatOptions{
		Model:     cfg.LLM.ExtractionModel,
		MaxTokens: 512,
	}, logger).WithDefaultPeriod(cfg.Analysis.DefaultPeriod)

	generator := NewGenerator(router, &llm.ChatOptions{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, models.DocumentFormat(cfg.Analysis.OutputFormat), logger)

	p := New(resolver, datasource.NewAggregator(sources, fetchOpts...), generator, OptionsFromConfig(cfg), logger)
	p.closers = append(p.closers, store.Close)

	logger.Info().
		Str("llm", router.Name()).
		Strs("llm_chain", router.ProviderNames()).
		Str("news", sources.News.Name()).
		Str("market", sources.Market.Name()).
		Str("cache", cfg.Cache.Backend).
		Msg("pipeline ready")
	return p, nil
}

// Options returns the pipeline options.
func (p *Pipeline) Options() Options { return p.opts }

// Close releases the resources opened by NewFromConfig.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Run executes one request end to end. On failure the error is a
// *StageError naming the stage that failed; no later stage runs.
func (p *Pipeline) Run(ctx context.Context, request string, observers ...Observer) (*models.NarrativeResult, error) {
	r := &run{id: uuid.NewString(), stage: StageIdle, observers: observers, logger: p.logger, now: p.now}
	start := p.now()

	// Resolving
	r.to(StageResolving, "")
	rctx, cancel := withTimeout(ctx, p.opts.LLMTimeout)
	res, err := p.resolver.ResolveDetailed(rctx, request)
	cancel()
	if err != nil {
		return nil, r.fail(err)
	}
	e := res.Entities
	warnings := append([]string(nil), res.Warnings...)

	// Fetching
	r.to(StageFetching, e.CompanyTicker)
	bundle, fetchWarnings, err := p.fetch(ctx, r, e)
	if err != nil {
		return nil, r.fail(err)
	}
	warnings = append(warnings, fetchWarnings...)

	// Aggregating
	r.to(StageAggregating, "")
	actx := Aggregate(bundle.News, bundle.Prices, bundle.Financials, p.opts.ContextCap)
	if actx.Truncated {
		warnings = append(warnings, fmt.Sprintf("context truncated from %d to %d characters", actx.FullLength, actx.Cap))
		p.logger.Warn().Str("request_id", r.id).Int("full", actx.FullLength).Int("cap", actx.Cap).Msg("context truncated")
	}

	// Generating
	r.to(StageGenerating, "")
	gctx, cancel := withTimeout(ctx, p.opts.LLMTimeout)
	result, err := p.generator.generate(gctx, request, res.Call, e, actx, bundle.Prices)
	cancel()
	if err != nil {
		return nil, r.fail(err)
	}

	result.RequestID = r.id
	result.News = bundle.News
	result.Financials = bundle.Financials
	result.Warnings = warnings
	if p.opts.IncludeSentiment && len(bundle.News) > 0 {
		mood := sentiment.Summarize(bundle.News, p.now())
		if mood.Articles > 0 {
			result.NewsMood = &mood
		}
	}
	result.Duration = p.now().Sub(start)

	r.to(StageDone, "")
	p.logger.Info().
		Str("request_id", r.id).
		Str("ticker", e.CompanyTicker).
		Int("news", len(bundle.News)).
		Int("bars", bundle.Prices.Len()).
		Int("warnings", len(warnings)).
		Dur("duration", result.Duration).
		Msg("thesis complete")
	return &result, nil
}

// fetch runs fetch rounds until one succeeds, a failure is permanent, or
// the retry budget is spent.
func (p *Pipeline) fetch(ctx context.Context, r *run, e models.ResolvedEntities) (*datasource.Bundle, []string, error) {
	var lastErr error
	for attempt := 0; attempt <= p.opts.MaxFetchRetries; attempt++ {
		if attempt > 0 {
			r.to(StageFetching, fmt.Sprintf("retry %d", attempt))
		}
		fctx, cancel := withTimeout(ctx, p.opts.FetchTimeout)
		b := p.fetcher.FetchAll(fctx, e)
		cancel()

		warnings, err := p.check(b)
		if err == nil {
			return b, warnings, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
		p.logger.Warn().Err(err).Str("request_id", r.id).Int("attempt", attempt+1).Msg("fetch failed")
	}
	return nil, nil, lastErr
}

// check applies the failure policy to a fetch round. News failures are
// always recoverable; missing prices never are.
func (p *Pipeline) check(b *datasource.Bundle) ([]string, error) {
	var warnings []string
	src := p.fetcher.Sources()

	if b.NewsErr != nil {
		warnings = append(warnings, "news unavailable: "+b.NewsErr.Error())
		b.News = []models.NewsItem{}
	}

	if b.PricesErr != nil {
		return nil, b.PricesErr
	}
	if b.Prices.IsEmpty() {
		name := "market"
		if src.Market != nil {
			name = src.Market.Name()
		}
		return nil, &datasource.ProviderError{Provider: name, Op: "history", Err: ErrNoPriceData}
	}
	warnings = append(warnings, coverageWarnings(b.Prices)...)

	switch {
	case b.FinancialsErr != nil && !p.opts.PartialResults:
		return nil, b.FinancialsErr
	case b.FinancialsErr != nil:
		warnings = append(warnings, "financials unavailable: "+b.FinancialsErr.Error())
		b.Financials = models.FinancialStatements{Ticker: b.Prices.Ticker}
	default:
		for _, name := range b.Financials.Missing() {
			warnings = append(warnings, "financials: "+name+" not reported")
		}
	}
	return warnings, nil
}

// maxPriceGap is the longest run of missing weekday sessions a history may
// have before it is flagged.
const maxPriceGap = 5

// coverageWarnings flags price histories with missing sessions and ones
// starting in the second half of their window, as for recent listings.
func coverageWarnings(s models.PriceSeries) []string {
	var warnings []string
	dates := make([]time.Time, len(s.Bars))
	for i, bar := range s.Bars {
		dates[i] = bar.Date
	}
	if gap := utils.LongestGap(dates); gap > maxPriceGap {
		warnings = append(warnings, fmt.Sprintf("price history is missing %d consecutive sessions", gap))
	}

	if s.Len() < 2 || s.Period == "" {
		return warnings
	}
	period, err := utils.ParsePeriod(s.Period)
	if err != nil {
		return warnings
	}
	first, _ := s.First()
	last, _ := s.Last()
	start := period.Start(last.Date)
	if start.IsZero() {
		return warnings
	}
	if mid := start.Add(last.Date.Sub(start) / 2); first.Date.After(mid) {
		warnings = append(warnings, fmt.Sprintf("price history starts %s, inside the %s window beginning %s",
			utils.FormatDate(first.Date), period, utils.FormatDate(start)))
	}
	return warnings
}

// retryable reports whether another fetch round could succeed.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, datasource.ErrUnknownSymbol) &&
		!errors.Is(err, ErrNoPriceData) &&
		!errors.Is(err, datasource.ErrUnauthorized) &&
		!errors.Is(err, datasource.ErrNotConfigured)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// ════════════════════════════════════════════════════════════════════
// Run state
// ════════════════════════════════════════════════════════════════════

type run struct {
	id        string
	mu        sync.Mutex
	stage     Stage
	observers []Observer
	logger    *log.Logger
	now       func() time.Time
}

// to moves the run to next and notifies observers. Re-entering the
// current stage announces a retry.
func (r *run) to(next Stage, detail string) {
	r.mu.Lock()
	prev := r.stage
	if prev != next && !prev.CanTransition(next) {
		r.mu.Unlock()
		panic(fmt.Sprintf("analyst: illegal transition %s → %s", prev, next))
	}
	r.stage = next
	r.mu.Unlock()

	r.logger.Debug().Str("request_id", r.id).Str("from", string(prev)).Str("to", string(next)).Str("detail", detail).Msg("stage")
	r.emit(StageEvent{RequestID: r.id, Stage: next, Previous: prev, Detail: detail, At: r.now().UTC()})
}

// fail moves the run to Failed and returns the terminal StageError.
func (r *run) fail(cause error) error {
	r.mu.Lock()
	failed := r.stage
	r.stage = StageFailed
	r.mu.Unlock()

	err := &StageError{Stage: failed, Cause: cause}
	r.logger.Error().Err(cause).Str("request_id", r.id).Str("stage", string(failed)).Msg("pipeline failed")
	r.emit(StageEvent{
		RequestID:   r.id,
		Stage:       StageFailed,
		Previous:    failed,
		FailedStage: failed,
		Error:       cause.Error(),
		At:          r.now().UTC(),
	})
	return err
}

func (r *run) emit(ev StageEvent) {
	for _, o := range r.observers {
		if o != nil {
			o(ev)
		}
	}
}
