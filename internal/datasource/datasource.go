// Package datasource fetches the raw material of a thesis: company news,
// daily price history and financial statements. Every provider is
// read-only and safe to call concurrently.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/seenimoa/thesisai/internal/infra"
	"github.com/seenimoa/thesisai/pkg/models"
	"github.com/seenimoa/thesisai/pkg/utils"
)

// NewsQuery identifies the company to search news for.
type NewsQuery struct {
	Company string
	Ticker  string
	Limit   int
}

// NewsProvider searches recent news about a company.
// Zero results is an empty slice with a nil error.
type NewsProvider interface {
	Name() string
	Search(ctx context.Context, q NewsQuery) ([]models.NewsItem, error)
}

// MarketDataProvider returns daily price history.
// An unknown symbol fails with ErrUnknownSymbol; a known symbol with no
// rows in range yields an empty series and a nil error.
type MarketDataProvider interface {
	Name() string
	History(ctx context.Context, ticker string, period utils.Period) (models.PriceSeries, error)
}

// FundamentalsProvider returns financial statements. Missing statements
// are empty tables.
type FundamentalsProvider interface {
	Name() string
	Statements(ctx context.Context, ticker string) (models.FinancialStatements, error)
}

// --- Errors ---

var (
	// ErrUnknownSymbol is returned when the provider does not know the ticker.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrRateLimited is returned when a provider throttles the request.
	ErrRateLimited = errors.New("rate limited by data source")

	// ErrUnauthorized is returned when a provider rejects the credentials.
	ErrUnauthorized = errors.New("provider rejected credentials")

	// ErrNotConfigured is returned when a provider lacks required settings.
	ErrNotConfigured = errors.New("provider not configured")
)

// ProviderError reports a failed call to an external data provider.
type ProviderError struct {
	Provider string // e.g. "yahoo", "serpapi"
	Op       string // e.g. "history", "statements", "news"
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// providerErr wraps err, mapping throttling and auth HTTP statuses to the
// sentinel errors so callers can tell them apart with errors.Is.
func providerErr(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	var he *infra.HTTPError
	if errors.As(err, &he) {
		switch he.StatusCode {
		case http.StatusTooManyRequests:
			err = fmt.Errorf("%w: %v", ErrRateLimited, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			err = fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// IsUnknownSymbol reports whether err means the ticker does not exist.
func IsUnknownSymbol(err error) bool { return errors.Is(err, ErrUnknownSymbol) }

// --- Caching ---

// cacheOpts is embedded by providers that cache responses.
type cacheOpts struct {
	store infra.Store
	ttl   time.Duration
}

func (c cacheOpts) enabled() bool { return c.store != nil && c.ttl > 0 }
