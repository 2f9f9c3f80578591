package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/seenimoa/thesisai/internal/config"
)

// Router sends requests to the primary provider, retrying transient
// failures and then falling back through the configured chain.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]LLMProvider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
	logger     *log.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of retry attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithLogger sets the router's logger.
func WithLogger(l *log.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter creates a new LLM router with the given primary provider.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]LLMProvider),
		primary:    primary,
		maxRetries: 2,
		retryDelay: 1 * time.Second,
		logger:     &log.DefaultLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (LLMProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Primary returns the primary provider.
func (r *Router) Primary() (LLMProvider, error) {
	p, ok := r.GetProvider(r.primary)
	if !ok {
		return nil, fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return p, nil
}

// Chat routes a chat request through the provider chain with fallback.
// A model named in opts applies to the primary only; fallbacks use their
// own default model since model names are vendor specific.
func (r *Router) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	chain := r.providerChain()
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for i, providerName := range chain {
		provider, ok := r.GetProvider(providerName)
		if !ok {
			continue
		}
		o := opts.clone()
		if i > 0 {
			o.Model = ""
		}

		resp, err := r.chatWithRetry(ctx, provider, messages, tools, o)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn().Err(err).Str("provider", providerName).Msg("llm provider failed, trying next")
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// HealthCheck pings all registered providers and returns their status.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]LLMProvider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, provider := range providers {
		wg.Add(1)
		go func(n string, p LLMProvider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := p.Ping(pingCtx)
			mu.Lock()
			results[n] = err
			mu.Unlock()
		}(name, provider)
	}

	wg.Wait()
	return results
}

// Name returns the name of the primary provider (satisfies LLMProvider).
func (r *Router) Name() string {
	return "router/" + r.primary
}

// Models returns the union of models from all registered providers (satisfies LLMProvider).
func (r *Router) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []string
	seen := make(map[string]bool)
	for _, name := range r.sortedNames() {
		for _, m := range r.providers[name].Models() {
			if !seen[m] {
				seen[m] = true
				all = append(all, m)
			}
		}
	}
	return all
}

// Ping checks the primary provider's health (satisfies LLMProvider).
func (r *Router) Ping(ctx context.Context) error {
	p, err := r.Primary()
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

// ProviderNames returns the names of all registered providers, sorted.
func (r *Router) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

// ── Internal Helpers ──

// sortedNames must be called with mu held.
func (r *Router) sortedNames() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) chatWithRetry(ctx context.Context, provider LLMProvider,
	messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := provider.Chat(ctx, messages, tools, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if isNonRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		r.logger.Debug().Err(err).Str("provider", provider.Name()).Int("attempt", attempt+1).Msg("llm call failed")
	}
	return nil, lastErr
}

// isNonRetryable reports errors that repeating the same request cannot fix.
func isNonRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, ErrRateLimit), errors.Is(err, ErrProviderDown):
		return false
	case errors.Is(err, ErrNoAPIKey), errors.Is(err, ErrInvalidModel), errors.Is(err, ErrContextLength):
		return true
	}
	// Unclassified API errors are usually malformed requests.
	return true
}

// IsRateLimited reports whether err came from provider throttling.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

// NewRouterFromConfig creates a Router from the application config,
// registering every provider whose credentials are present.
func NewRouterFromConfig(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Router, error) {
	lc := cfg.LLM
	router := NewRouter(lc.Primary,
		WithMaxRetries(lc.MaxRetries),
		WithRetryDelay(time.Second),
		WithLogger(logger),
	)
	timeout := cfg.LLMTimeout()
	var order []string

	if lc.OpenAIKey != "" || (lc.Primary == ProviderOpenAI && lc.OpenAIBaseURL != "") {
		p, err := NewOpenAIProvider(lc.OpenAIKey,
			WithOpenAIBaseURL(lc.OpenAIBaseURL),
			WithOpenAIModel(modelFor(ProviderOpenAI, lc)),
			WithOpenAIHTTPClient(newHTTPClient(timeout)),
		)
		if err == nil {
			router.RegisterProvider(p)
			order = append(order, ProviderOpenAI)
		}
	}

	if lc.OllamaURL != "" {
		p, err := NewOllamaProvider(lc.OllamaURL, modelFor(ProviderOllama, lc),
			WithOpenAIHTTPClient(newHTTPClient(timeout)))
		if err == nil {
			router.RegisterProvider(p)
			order = append(order, ProviderOllama)
		}
	}

	if lc.GeminiKey != "" {
		p, err := NewGeminiProvider(ctx, lc.GeminiKey,
			WithGeminiModel(modelFor(ProviderGemini, lc)),
			WithGeminiHTTPClient(newHTTPClient(timeout)),
		)
		if err != nil {
			router.logger.Warn().Err(err).Msg("gemini provider unavailable")
		} else {
			router.RegisterProvider(p)
			order = append(order, ProviderGemini)
		}
	}

	if lc.AnthropicKey != "" {
		p, err := NewAnthropicProvider(lc.AnthropicKey,
			WithAnthropicModel(modelFor(ProviderAnthropic, lc)),
		)
		if err == nil {
			router.RegisterProvider(p)
			order = append(order, ProviderAnthropic)
		}
	}

	if len(order) == 0 {
		return nil, ErrNoProviders
	}
	if _, ok := router.GetProvider(lc.Primary); !ok {
		return nil, fmt.Errorf("%w: primary provider %q has no credentials", ErrNoProviders, lc.Primary)
	}

	if lc.Fallbacks {
		for _, name := range order {
			if name != lc.Primary {
				router.fallbacks = append(router.fallbacks, name)
			}
		}
	}
	return router, nil
}

// modelFor returns the configured model when it belongs to the provider's
// family, otherwise that provider's default.
func modelFor(provider string, lc config.LLMConfig) string {
	if provider == lc.Primary {
		return lc.Model
	}
	switch provider {
	case ProviderGemini:
		if strings.HasPrefix(lc.Model, "gemini") {
			return lc.Model
		}
		return "gemini-2.0-flash"
	case ProviderAnthropic:
		if strings.HasPrefix(lc.Model, "claude") {
			return lc.Model
		}
		return "claude-sonnet-4-20250514"
	case ProviderOpenAI:
		if strings.HasPrefix(lc.Model, "gpt") {
			return lc.Model
		}
		return "gpt-4o"
	default:
		return "llama3.1:8b"
	}
}
