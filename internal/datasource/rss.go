package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/thesisai/internal/infra"
	"github.com/seenimoa/thesisai/pkg/models"
)

const googleNewsRSSURL = "https://news.google.com/rss/search"

// GoogleNewsRSS searches the public Google News RSS feed. It needs no
// credentials and is the last resort of the auto provider selection.
type GoogleNewsRSS struct {
	feedURL  string
	language string
	country  string
	parser   *gofeed.Parser
	limiter  *infra.RateLimiter
	cache    cacheOpts
}

// RSSOption configures the RSS provider.
type RSSOption func(*GoogleNewsRSS)

// WithRSSFeedURL overrides the search feed URL (tests).
func WithRSSFeedURL(u string) RSSOption {
	return func(g *GoogleNewsRSS) { g.feedURL = u }
}

// WithRSSLocale sets the hl/gl/ceid feed parameters.
func WithRSSLocale(language, country string) RSSOption {
	return func(g *GoogleNewsRSS) {
		if language != "" {
			g.language = language
		}
		if country != "" {
			g.country = strings.ToUpper(country)
		}
	}
}

// WithRSSCache caches parsed feeds in store.
func WithRSSCache(store infra.Store, ttl time.Duration) RSSOption {
	return func(g *GoogleNewsRSS) { g.cache = cacheOpts{store: store, ttl: ttl} }
}

// NewGoogleNewsRSS creates the keyless news provider.
func NewGoogleNewsRSS(opts ...RSSOption) *GoogleNewsRSS {
	parser := gofeed.NewParser()
	parser.UserAgent = infra.DefaultUserAgent
	parser.Client = &http.Client{Timeout: infra.HTTPClient.Timeout}
	g := &GoogleNewsRSS{
		feedURL:  googleNewsRSSURL,
		language: "en",
		country:  "US",
		parser:   parser,
		limiter:  infra.NewRateLimiter(2, time.Second), // conservative: 2 req/s
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the provider name.
func (g *GoogleNewsRSS) Name() string { return "google-news-rss" }

// Search fetches the feed for the company name, newest first.
func (g *GoogleNewsRSS) Search(ctx context.Context, q NewsQuery) ([]models.NewsItem, error) {
	query := strings.TrimSpace(q.Company)
	if query == "" {
		query = q.Ticker
	}
	cacheKey := fmt.Sprintf("news:rss:%s:%d", strings.ToLower(query), q.Limit)
	if g.cache.enabled() {
		if items, ok := infra.GetJSON[[]models.NewsItem](ctx, g.cache.store, cacheKey); ok {
			return items, nil
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, providerErr(g.Name(), "news", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", g.language+"-"+g.country)
	params.Set("gl", g.country)
	params.Set("ceid", g.country+":"+g.language)

	feed, err := g.parser.ParseURLWithContext(g.feedURL+"?"+params.Encode(), ctx)
	if err != nil {
		var he gofeed.HTTPError
		if errors.As(err, &he) {
			err = &infra.HTTPError{StatusCode: he.StatusCode, Status: he.Status}
		}
		return nil, providerErr(g.Name(), "news", err)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		item := models.NewsItem{
			Title:   it.Title,
			Link:    it.Link,
			Snippet: cleanHTML(it.Description),
		}
		if it.PublishedParsed != nil {
			item.PublishedAt = it.PublishedParsed.UTC()
		}
		// Google News titles end in " - Publisher".
		if i := strings.LastIndex(it.Title, " - "); i > 0 {
			item.Source = it.Title[i+3:]
		}
		items = append(items, item)
	}
	sortNewsNewestFirst(items)
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}

	if g.cache.enabled() {
		infra.SetJSON(ctx, g.cache.store, cacheKey, items, g.cache.ttl)
	}
	return items, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// sortNewsNewestFirst orders items by publication time, newest first.
// Items without a timestamp keep their relative order at the end.
func sortNewsNewestFirst(items []models.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedAt, items[j].PublishedAt
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})
}
