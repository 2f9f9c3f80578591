package datasource

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"

	"github.com/seenimoa/thesisai/internal/infra"
	"github.com/seenimoa/thesisai/pkg/models"
	"github.com/seenimoa/thesisai/pkg/utils"
)

// finnhubLookback is how far back company news is requested.
const finnhubLookback = 30 * 24 * time.Hour

// Finnhub returns company news from finnhub.io.
type Finnhub struct {
	client  *finnhub.DefaultApiService
	limiter *infra.RateLimiter
	cache   cacheOpts
	now     func() time.Time
}

// FinnhubOption configures the Finnhub provider.
type FinnhubOption func(*finnhubSettings)

type finnhubSettings struct {
	baseURL    string
	httpClient *http.Client
	cache      cacheOpts
}

// WithFinnhubBaseURL points the client at another server (tests, proxies).
func WithFinnhubBaseURL(u string) FinnhubOption {
	return func(s *finnhubSettings) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithFinnhubHTTPClient sets the HTTP client used by the SDK.
func WithFinnhubHTTPClient(c *http.Client) FinnhubOption {
	return func(s *finnhubSettings) { s.httpClient = c }
}

// WithFinnhubCache caches results in store.
func WithFinnhubCache(store infra.Store, ttl time.Duration) FinnhubOption {
	return func(s *finnhubSettings) { s.cache = cacheOpts{store: store, ttl: ttl} }
}

// NewFinnhub creates a Finnhub news provider.
func NewFinnhub(apiKey string, opts ...FinnhubOption) (*Finnhub, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("finnhub: %w: api key", ErrNotConfigured)
	}
	var s finnhubSettings
	for _, opt := range opts {
		opt(&s)
	}

	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	cfg.UserAgent = infra.DefaultUserAgent
	if s.baseURL != "" {
		cfg.Servers = finnhub.ServerConfigurations{{URL: s.baseURL}}
	}
	cfg.HTTPClient = s.httpClient
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = infra.HTTPClient
	}

	return &Finnhub{
		client: finnhub.NewAPIClient(cfg).DefaultApi,
		// free tier allows 60 calls/minute
		limiter: infra.NewRateLimiter(30, 30*time.Second),
		cache:   s.cache,
		now:     time.Now,
	}, nil
}

// Name returns the provider name.
func (f *Finnhub) Name() string { return "finnhub" }

// Search returns company news for the ticker over the last 30 days,
// newest first.
func (f *Finnhub) Search(ctx context.Context, q NewsQuery) ([]models.NewsItem, error) {
	symbol := strings.ToUpper(strings.TrimSpace(q.Ticker))
	if symbol == "" {
		return nil, providerErr(f.Name(), "news", fmt.Errorf("%w: company news needs a ticker", ErrNotConfigured))
	}

	to := f.now().UTC()
	from := to.Add(-finnhubLookback)
	cacheKey := fmt.Sprintf("news:finnhub:%s:%s:%d", symbol, utils.FormatDate(to), q.Limit)
	if f.cache.enabled() {
		if items, ok := infra.GetJSON[[]models.NewsItem](ctx, f.cache.store, cacheKey); ok {
			return items, nil
		}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, providerErr(f.Name(), "news", err)
	}

	res, httpResp, err := f.client.CompanyNews(ctx).
		Symbol(symbol).
		From(utils.FormatDate(from)).
		To(utils.FormatDate(to)).
		Execute()
	if err != nil {
		if httpResp != nil && httpResp.StatusCode >= 400 {
			err = &infra.HTTPError{StatusCode: httpResp.StatusCode, Status: httpResp.Status, Body: err.Error()}
		}
		return nil, providerErr(f.Name(), "news", err)
	}

	items := make([]models.NewsItem, 0, len(res))
	for _, n := range res {
		item := models.NewsItem{}
		if n.Headline != nil {
			item.Title = *n.Headline
		}
		if n.Url != nil {
			item.Link = *n.Url
		}
		if n.Summary != nil {
			item.Snippet = *n.Summary
		}
		if n.Source != nil {
			item.Source = *n.Source
		}
		if n.Datetime != nil && *n.Datetime > 0 {
			item.PublishedAt = time.Unix(*n.Datetime, 0).UTC()
		}
		if item.Title == "" {
			continue
		}
		items = append(items, item)
	}
	sortNewsNewestFirst(items)
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}

	if f.cache.enabled() {
		infra.SetJSON(ctx, f.cache.store, cacheKey, items, f.cache.ttl)
	}
	return items, nil
}
