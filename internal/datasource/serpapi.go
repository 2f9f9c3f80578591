package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/thesisai/internal/infra"
	"github.com/seenimoa/thesisai/pkg/models"
)

const serpAPIBaseURL = "https://serpapi.com"

// SerpAPI searches Google News through serpapi.com.
type SerpAPI struct {
	apiKey   string
	baseURL  string
	language string
	country  string
	client   *http.Client
	limiter  *infra.RateLimiter
	cache    cacheOpts
}

// SerpAPIOption configures the SerpAPI provider.
type SerpAPIOption func(*SerpAPI)

// WithSerpAPIBaseURL points the provider at another host (tests, proxies).
func WithSerpAPIBaseURL(u string) SerpAPIOption {
	return func(s *SerpAPI) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithSerpAPILocale sets the hl/gl search parameters.
func WithSerpAPILocale(language, country string) SerpAPIOption {
	return func(s *SerpAPI) {
		if language != "" {
			s.language = language
		}
		if country != "" {
			s.country = country
		}
	}
}

// WithSerpAPICache caches search results in store.
func WithSerpAPICache(store infra.Store, ttl time.Duration) SerpAPIOption {
	return func(s *SerpAPI) { s.cache = cacheOpts{store: store, ttl: ttl} }
}

// NewSerpAPI creates a SerpAPI news provider.
func NewSerpAPI(apiKey string, opts ...SerpAPIOption) (*SerpAPI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("serpapi: %w: api key", ErrNotConfigured)
	}
	s := &SerpAPI{
		apiKey:   apiKey,
		baseURL:  serpAPIBaseURL,
		language: "en",
		country:  "us",
		client:   infra.HTTPClient,
		limiter:  infra.NewRateLimiter(2, time.Second),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns the provider name.
func (s *SerpAPI) Name() string { return "serpapi" }

type serpNewsResponse struct {
	NewsResults []serpNewsResult `json:"news_results"`
	Error       string           `json:"error"`
}

type serpNewsResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Source   string `json:"source"`
	Date     string `json:"date"`
	Snippet  string `json:"snippet"`
}

// Search queries Google News for the company name.
func (s *SerpAPI) Search(ctx context.Context, q NewsQuery) ([]models.NewsItem, error) {
	query := strings.TrimSpace(q.Company)
	if query == "" {
		query = q.Ticker
	}
	cacheKey := fmt.Sprintf("news:serpapi:%s:%d", strings.ToLower(query), q.Limit)
	if s.cache.enabled() {
		if items, ok := infra.GetJSON[[]models.NewsItem](ctx, s.cache.store, cacheKey); ok {
			return items, nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, providerErr(s.Name(), "news", err)
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("tbm", "nws")
	params.Set("q", query)
	params.Set("hl", s.language)
	params.Set("gl", strings.ToLower(s.country))
	params.Set("api_key", s.apiKey)
	if q.Limit > 0 {
		params.Set("num", strconv.Itoa(q.Limit))
	}

	body, err := infra.DoGet(ctx, s.client, s.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, providerErr(s.Name(), "news", err)
	}
	defer body.Close()

	var resp serpNewsResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, providerErr(s.Name(), "news", fmt.Errorf("decode: %w", err))
	}
	if resp.Error != "" {
		// An empty result set is reported as an error string.
		if strings.Contains(resp.Error, "hasn't returned any results") {
			return []models.NewsItem{}, nil
		}
		return nil, providerErr(s.Name(), "news", fmt.Errorf("api: %s", resp.Error))
	}

	items := make([]models.NewsItem, 0, len(resp.NewsResults))
	for _, r := range resp.NewsResults {
		if r.Title == "" && r.Link == "" {
			continue
		}
		items = append(items, models.NewsItem{
			Title:   r.Title,
			Link:    r.Link,
			Date:    r.Date,
			Snippet: r.Snippet,
			Source:  r.Source,
		})
	}
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}

	if s.cache.enabled() {
		infra.SetJSON(ctx, s.cache.store, cacheKey, items, s.cache.ttl)
	}
	return items, nil
}
