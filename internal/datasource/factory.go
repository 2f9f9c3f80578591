package datasource

import (
	"fmt"

	"github.com/seenimoa/thesisai/internal/config"
	"github.com/seenimoa/thesisai/internal/infra"
)

// NewNewsProvider builds the news provider selected by cfg.News.Provider.
// "auto" picks the first provider whose credentials are present:
// serpapi, then finnhub, then the keyless RSS feed.
func NewNewsProvider(cfg *config.Config, store infra.Store) (NewsProvider, error) {
	nc := cfg.News
	ttl := cfg.CacheTTL()

	newSerp := func() (NewsProvider, error) {
		return NewSerpAPI(nc.SerpAPIKey,
			WithSerpAPILocale(nc.Language, nc.Country),
			WithSerpAPICache(store, ttl))
	}
	newFinnhub := func() (NewsProvider, error) {
		return NewFinnhub(nc.FinnhubKey, WithFinnhubCache(store, ttl))
	}
	newRSS := func() NewsProvider {
		return NewGoogleNewsRSS(WithRSSLocale(nc.Language, nc.Country), WithRSSCache(store, ttl))
	}

	switch nc.Provider {
	case "serpapi":
		return newSerp()
	case "finnhub":
		return newFinnhub()
	case "rss":
		return newRSS(), nil
	case "", "auto":
		if nc.SerpAPIKey != "" {
			return newSerp()
		}
		if nc.FinnhubKey != "" {
			return newFinnhub()
		}
		return newRSS(), nil
	default:
		return nil, fmt.Errorf("unknown news provider %q", nc.Provider)
	}
}

// NewSources wires the configured news provider and Yahoo Finance for
// prices and statements.
func NewSources(cfg *config.Config, store infra.Store) (Sources, error) {
	news, err := NewNewsProvider(cfg, store)
	if err != nil {
		return Sources{}, err
	}
	yf, err := NewYFinance(WithYahooCache(store, cfg.CacheTTL()))
	if err != nil {
		return Sources{}, err
	}
	return Sources{News: news, Market: yf, Fundamentals: yf}, nil
}
