package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/thesisai/pkg/models"
	"github.com/seenimoa/thesisai/pkg/utils"
)

// Sources are the three providers a thesis is built from.
type Sources struct {
	News         NewsProvider
	Market       MarketDataProvider
	Fundamentals FundamentalsProvider
}

// Bundle holds the outcome of one fetch round. Each slot carries its own
// error; deciding which failures are fatal is up to the caller.
type Bundle struct {
	News          []models.NewsItem
	NewsErr       error
	Prices        models.PriceSeries
	PricesErr     error
	Financials    models.FinancialStatements
	FinancialsErr error
	Elapsed       time.Duration
}

// Aggregator fetches news, prices and financials concurrently.
type Aggregator struct {
	sources   Sources
	newsLimit int
	annotate  func([]models.NewsItem) []models.NewsItem
	logger    *log.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithNewsLimit caps the number of news items requested.
func WithNewsLimit(n int) AggregatorOption {
	return func(a *Aggregator) { a.newsLimit = n }
}

// WithAnnotator runs fn over the news as soon as it arrives, while the
// other fetches may still be in flight.
func WithAnnotator(fn func([]models.NewsItem) []models.NewsItem) AggregatorOption {
	return func(a *Aggregator) { a.annotate = fn }
}

// WithAggregatorLogger sets the logger.
func WithAggregatorLogger(l *log.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

// NewAggregator creates an aggregator over the given sources.
func NewAggregator(sources Sources, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		sources:   sources,
		newsLimit: 10,
		logger:    &log.DefaultLogger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sources returns the configured providers.
func (a *Aggregator) Sources() Sources { return a.sources }

// FetchAll runs the three fetches for the resolved entities concurrently.
// It never fails as a whole: every error lands in its slot of the bundle.
func (a *Aggregator) FetchAll(ctx context.Context, e models.ResolvedEntities) *Bundle {
	start := time.Now()
	symbol := utils.NormalizeTicker(e.CompanyTicker)
	period, err := utils.ParsePeriod(e.Period)
	if err != nil {
		period = utils.Period1y
	}

	b := &Bundle{News: []models.NewsItem{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	// 1. News, annotated on arrival.
	g.Go(func() error {
		if a.sources.News == nil {
			mu.Lock()
			b.NewsErr = fmt.Errorf("news: %w", ErrNotConfigured)
			mu.Unlock()
			return nil
		}
		items, err := a.sources.News.Search(gctx, NewsQuery{Company: e.CompanyName, Ticker: symbol, Limit: a.newsLimit})
		if err == nil && a.annotate != nil {
			items = a.annotate(items)
		}
		if items == nil {
			items = []models.NewsItem{}
		}
		mu.Lock()
		b.News, b.NewsErr = items, err
		mu.Unlock()
		a.logSlot("news", a.sources.News.Name(), err, len(items))
		return nil // non-fatal
	})

	// 2. Price history.
	g.Go(func() error {
		if a.sources.Market == nil {
			mu.Lock()
			b.PricesErr = fmt.Errorf("market data: %w", ErrNotConfigured)
			mu.Unlock()
			return nil
		}
		series, err := a.sources.Market.History(gctx, symbol, period)
		mu.Lock()
		b.Prices, b.PricesErr = series, err
		mu.Unlock()
		a.logSlot("prices", a.sources.Market.Name(), err, series.Len())
		return nil
	})

	// 3. Financial statements.
	g.Go(func() error {
		if a.sources.Fundamentals == nil {
			mu.Lock()
			b.FinancialsErr = fmt.Errorf("fundamentals: %w", ErrNotConfigured)
			mu.Unlock()
			return nil
		}
		fs, err := a.sources.Fundamentals.Statements(gctx, symbol)
		mu.Lock()
		b.Financials, b.FinancialsErr = fs, err
		mu.Unlock()
		a.logSlot("financials", a.sources.Fundamentals.Name(), err, len(fs.IncomeStatement.Periods))
		return nil
	})

	_ = g.Wait()
	b.Elapsed = time.Since(start)
	return b
}

func (a *Aggregator) logSlot(slot, provider string, err error, n int) {
	if err != nil {
		a.logger.Warn().Err(err).Str("slot", slot).Str("provider", provider).Msg("fetch failed")
		return
	}
	a.logger.Debug().Str("slot", slot).Str("provider", provider).Int("count", n).Msg("fetch done")
}
