package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/thesisai/internal/config"
	"github.com/seenimoa/thesisai/internal/infra"
)

// ════════════════════════════════════════════════════════════════════
// SerpAPI
// ════════════════════════════════════════════════════════════════════

func TestSerpAPISearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/search.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if q.Get("engine") != "google" || q.Get("tbm") != "nws" {
			t.Errorf("engine/tbm = %s/%s", q.Get("engine"), q.Get("tbm"))
		}
		if q.Get("q") != "Microsoft" || q.Get("api_key") != "serp-key" {
			t.Errorf("q/api_key = %s/%s", q.Get("q"), q.Get("api_key"))
		}
		w.Write([]byte(`{"news_results":[
			{"position":1,"title":"Microsoft beats estimates","link":"https://n.example/1","source":"Reuters","date":"2 days ago","snippet":"Cloud revenue grew."},
			{"position":2,"title":"Azure outage","link":"https://n.example/2","source":"Verge","date":"3 days ago","snippet":"Services down."},
			{"position":3,"title":"Copilot pricing","link":"https://n.example/3","source":"WSJ","date":"4 days ago","snippet":""}
		]}`))
	}))
	defer ts.Close()

	s, err := NewSerpAPI("serp-key", WithSerpAPIBaseURL(ts.URL))
	if err != nil {
		t.Fatal(err)
	}
	items, err := s.Search(context.Background(), NewsQuery{Company: "Microsoft", Ticker: "MSFT", Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected limit of 2 items, got %d", len(items))
	}
	if items[0].Title != "Microsoft beats estimates" || items[0].Date != "2 days ago" || items[0].Source != "Reuters" {
		t.Errorf("first item = %+v", items[0])
	}
}

func TestSerpAPINoResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Google hasn't returned any results for this query."}`))
	}))
	defer ts.Close()

	s, _ := NewSerpAPI("serp-key", WithSerpAPIBaseURL(ts.URL))
	items, err := s.Search(context.Background(), NewsQuery{Company: "Obscure Holdings"})
	if err != nil {
		t.Fatalf("zero results must not be an error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", items)
	}
}

func TestSerpAPIUnauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid API key."}`))
	}))
	defer ts.Close()

	s, _ := NewSerpAPI("bad", WithSerpAPIBaseURL(ts.URL))
	_, err := s.Search(context.Background(), NewsQuery{Company: "Microsoft"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if strings.Contains(err.Error(), "api_key=bad") {
		t.Errorf("error leaks the API key: %v", err)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Provider != "serpapi" || pe.Op != "news" {
		t.Errorf("expected serpapi ProviderError, got %#v", err)
	}
}

func TestSerpAPIRateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	s, _ := NewSerpAPI("k", WithSerpAPIBaseURL(ts.URL))
	_, err := s.Search(context.Background(), NewsQuery{Company: "Microsoft"})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestNewSerpAPIRequiresKey(t *testing.T) {
	if _, err := NewSerpAPI(""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Finnhub
// ════════════════════════════════════════════════════════════════════

func TestFinnhubSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/company-news" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Finnhub-Token") != "fh-key" {
			t.Errorf("token header = %q", r.Header.Get("X-Finnhub-Token"))
		}
		q := r.URL.Query()
		if q.Get("symbol") != "MSFT" || q.Get("from") != "2024-05-02" || q.Get("to") != "2024-06-01" {
			t.Errorf("query = %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"category":"company","datetime":1717000000,"headline":"Older headline","id":1,"related":"MSFT","source":"Reuters","summary":"a","url":"https://n.example/a"},
			{"category":"company","datetime":1717200000,"headline":"Newer headline","id":2,"related":"MSFT","source":"CNBC","summary":"b","url":"https://n.example/b"},
			{"category":"company","datetime":1717100000,"headline":"","id":3,"related":"MSFT","source":"X","summary":"","url":""}
		]`))
	}))
	defer ts.Close()

	f, err := NewFinnhub("fh-key", WithFinnhubBaseURL(ts.URL))
	if err != nil {
		t.Fatal(err)
	}
	f.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	items, err := f.Search(context.Background(), NewsQuery{Company: "Microsoft", Ticker: "msft", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items (untitled dropped), got %d", len(items))
	}
	if items[0].Title != "Newer headline" || items[0].Source != "CNBC" {
		t.Errorf("expected newest first, got %+v", items[0])
	}
	if items[1].PublishedAt.Unix() != 1717000000 {
		t.Errorf("published_at = %v", items[1].PublishedAt)
	}
}

func TestFinnhubErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"API limit reached."}`))
	}))
	defer ts.Close()

	f, _ := NewFinnhub("fh-key", WithFinnhubBaseURL(ts.URL))
	_, err := f.Search(context.Background(), NewsQuery{Ticker: "MSFT"})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}

	if _, err := f.Search(context.Background(), NewsQuery{Company: "Microsoft"}); err == nil {
		t.Error("expected error without a ticker")
	}
	if _, err := NewFinnhub(""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Google News RSS
// ════════════════════════════════════════════════════════════════════

const googleNewsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>"Microsoft" - Google News</title>
<link>https://news.google.com</link>
<description>Google News</description>
<item>
  <title>Microsoft beats earnings estimates - Reuters</title>
  <link>https://news.example/1</link>
  <pubDate>Tue, 02 Jan 2024 15:00:00 GMT</pubDate>
  <description>&lt;a href="https://news.example/1"&gt;Microsoft beats&lt;/a&gt;&amp;nbsp;&amp;nbsp;&lt;font color="#6f6f6f"&gt;Reuters&lt;/font&gt;</description>
</item>
<item>
  <title>Older Microsoft story - The Verge</title>
  <link>https://news.example/2</link>
  <pubDate>Mon, 01 Jan 2024 09:00:00 GMT</pubDate>
  <description>Older</description>
</item>
<item>
  <title>Newest Microsoft story - CNBC</title>
  <link>https://news.example/3</link>
  <pubDate>Wed, 03 Jan 2024 09:00:00 GMT</pubDate>
  <description>Newest</description>
</item>
</channel></rss>`

func TestGoogleNewsRSSSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "Microsoft" || q.Get("ceid") != "US:en" || q.Get("hl") != "en-US" {
			t.Errorf("query = %v", q)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(googleNewsFeed))
	}))
	defer ts.Close()

	g := NewGoogleNewsRSS(WithRSSFeedURL(ts.URL + "/rss/search"))
	items, err := g.Search(context.Background(), NewsQuery{Company: "Microsoft", Ticker: "MSFT", Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Source != "CNBC" || items[1].Source != "Reuters" {
		t.Errorf("expected newest first: %q, %q", items[0].Source, items[1].Source)
	}
	if items[1].Snippet != "Microsoft beats Reuters" {
		t.Errorf("snippet not cleaned: %q", items[1].Snippet)
	}
}

func TestGoogleNewsRSSHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	g := NewGoogleNewsRSS(WithRSSFeedURL(ts.URL))
	_, err := g.Search(context.Background(), NewsQuery{Company: "Microsoft"})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestCleanHTML(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"plain text", "plain text"},
		{"<b>bold</b> and <i>italic</i>", "bold and italic"},
		{"<p>line one</p>\n<p>line two</p>", "line one line two"},
	}
	for _, tt := range tests {
		if got := cleanHTML(tt.in); got != tt.want {
			t.Errorf("cleanHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Provider selection
// ════════════════════════════════════════════════════════════════════

func TestNewNewsProvider(t *testing.T) {
	tests := []struct {
		name string
		news config.NewsConfig
		want string
	}{
		{"auto prefers serpapi", config.NewsConfig{Provider: "auto", SerpAPIKey: "s", FinnhubKey: "f"}, "serpapi"},
		{"auto falls to finnhub", config.NewsConfig{Provider: "auto", FinnhubKey: "f"}, "finnhub"},
		{"auto ends at rss", config.NewsConfig{Provider: "auto"}, "google-news-rss"},
		{"explicit rss", config.NewsConfig{Provider: "rss", SerpAPIKey: "s"}, "google-news-rss"},
		{"explicit finnhub", config.NewsConfig{Provider: "finnhub", FinnhubKey: "f"}, "finnhub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{News: tt.news}
			p, err := NewNewsProvider(cfg, infra.NopStore{})
			if err != nil {
				t.Fatalf("NewNewsProvider: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("provider = %s, want %s", p.Name(), tt.want)
			}
		})
	}

	if _, err := NewNewsProvider(&config.Config{News: config.NewsConfig{Provider: "serpapi"}}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("serpapi without key: expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewNewsProvider(&config.Config{News: config.NewsConfig{Provider: "bing"}}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}
