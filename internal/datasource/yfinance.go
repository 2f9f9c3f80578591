package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/thesisai/internal/infra"
	"github.com/seenimoa/thesisai/pkg/models"
	"github.com/seenimoa/thesisai/pkg/utils"
)

const (
	yahooBaseURL   = "https://query1.finance.yahoo.com"
	yahooCookieURL = "https://fc.yahoo.com"
)

// YFinance serves price history and financial statements from Yahoo Finance.
type YFinance struct {
	baseURL string
	client  *http.Client
	session *yahooSession
	limiter *infra.RateLimiter
	cache   cacheOpts
}

// YFinanceOption configures the Yahoo Finance provider.
type YFinanceOption func(*yfSettings)

type yfSettings struct {
	baseURL    string
	cookieURL  string
	httpClient *http.Client
	cache      cacheOpts
}

// WithYahooEndpoints overrides the API host and the host that issues the
// session cookie (tests, proxies).
func WithYahooEndpoints(baseURL, cookieURL string) YFinanceOption {
	return func(s *yfSettings) {
		s.baseURL = strings.TrimRight(baseURL, "/")
		s.cookieURL = cookieURL
	}
}

// WithYahooHTTPClient sets the underlying HTTP client.
func WithYahooHTTPClient(c *http.Client) YFinanceOption {
	return func(s *yfSettings) { s.httpClient = c }
}

// WithYahooCache caches history and statements in store.
func WithYahooCache(store infra.Store, ttl time.Duration) YFinanceOption {
	return func(s *yfSettings) { s.cache = cacheOpts{store: store, ttl: ttl} }
}

// NewYFinance creates a new Yahoo Finance data source.
func NewYFinance(opts ...YFinanceOption) (*YFinance, error) {
	s := yfSettings{baseURL: yahooBaseURL, cookieURL: yahooCookieURL}
	for _, opt := range opts {
		opt(&s)
	}
	session, err := newYahooSession(s.httpClient, s.baseURL, s.cookieURL)
	if err != nil {
		return nil, err
	}
	return &YFinance{
		baseURL: s.baseURL,
		client:  session.client,
		session: session,
		limiter: infra.NewRateLimiter(5, time.Second), // 5 req/s
		cache:   s.cache,
	}, nil
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "yahoo" }

// --- Yahoo Finance API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol    string `json:"symbol"`
	Currency  string `json:"currency"`
	GMTOffset int64  `json:"gmtoffset"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfSummaryResponse struct {
	QuoteSummary struct {
		Result []yfSummaryResult `json:"result"`
		Error  *yfError          `json:"error"`
	} `json:"quoteSummary"`
}

type yfSummaryResult struct {
	BalanceSheetHistory struct {
		Statements []map[string]json.RawMessage `json:"balanceSheetStatements"`
	} `json:"balanceSheetHistory"`
	CashflowStatementHistory struct {
		Statements []map[string]json.RawMessage `json:"cashflowStatements"`
	} `json:"cashflowStatementHistory"`
	IncomeStatementHistory struct {
		Statements []map[string]json.RawMessage `json:"incomeStatementHistory"`
	} `json:"incomeStatementHistory"`
	DefaultKeyStatistics map[string]json.RawMessage `json:"defaultKeyStatistics"`
	SummaryDetail        map[string]json.RawMessage `json:"summaryDetail"`
	FinancialData        map[string]json.RawMessage `json:"financialData"`
}

// yfFinVal is Yahoo's {raw, fmt} number wrapper. Missing values arrive as {}.
type yfFinVal struct {
	Raw *json.Number `json:"raw"`
	Fmt string       `json:"fmt"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Price history ---

// History returns daily bars for ticker over period, oldest first.
func (y *YFinance) History(ctx context.Context, ticker string, period utils.Period) (models.PriceSeries, error) {
	symbol := utils.NormalizeTicker(ticker)
	if period == "" {
		period = utils.Period1y
	}

	cacheKey := fmt.Sprintf("yf:hist:%s:%s", symbol, period)
	if y.cache.enabled() {
		if s, ok := infra.GetJSON[models.PriceSeries](ctx, y.cache.store, cacheKey); ok {
			return s, nil
		}
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return models.PriceSeries{}, providerErr(y.Name(), "history", err)
	}

	params := url.Values{}
	params.Set("range", string(period))
	params.Set("interval", "1d")
	params.Set("includeAdjustedClose", "true")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(symbol), params.Encode())

	var resp yfChartResponse
	if err := y.getJSON(ctx, u, &resp); err != nil {
		return models.PriceSeries{}, providerErr(y.Name(), "history", unknownSymbol(err, symbol))
	}
	if e := resp.Chart.Error; e != nil {
		return models.PriceSeries{}, providerErr(y.Name(), "history", yfAPIError(e, symbol))
	}
	if len(resp.Chart.Result) == 0 {
		return models.PriceSeries{}, providerErr(y.Name(), "history", fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol))
	}

	result := resp.Chart.Result[0]
	series := models.PriceSeries{
		Ticker:   symbol,
		Currency: result.Meta.Currency,
		Period:   string(period),
		Bars:     models.NormalizeBars(parseYFCandles(result)),
	}

	if y.cache.enabled() {
		infra.SetJSON(ctx, y.cache.store, cacheKey, series, y.cache.ttl)
	}
	return series, nil
}

// parseYFCandles converts the column-oriented chart payload into bars dated
// by the exchange's calendar day.
func parseYFCandles(result yfChartResult) []models.PriceBar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]models.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		b := models.PriceBar{
			Date: models.DayKey(time.Unix(ts+result.Meta.GMTOffset, 0).UTC()),
		}
		if i < len(q.Open) && q.Open[i] != nil {
			b.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			b.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			b.Low = *q.Low[i]
		}
		if i < len(q.Close) && q.Close[i] != nil {
			b.Close = *q.Close[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			b.Volume = *q.Volume[i]
		}
		if i < len(adjCloses) && adjCloses[i] != nil {
			b.AdjClose = *adjCloses[i]
		}
		bars = append(bars, b)
	}
	return bars
}

// --- Financial statements ---

const yfSummaryModules = "balanceSheetHistory,cashflowStatementHistory,incomeStatementHistory," +
	"defaultKeyStatistics,summaryDetail,financialData"

// Statements returns the annual balance sheet, cash flow and income
// statements plus current valuation measures.
func (y *YFinance) Statements(ctx context.Context, ticker string) (models.FinancialStatements, error) {
	symbol := utils.NormalizeTicker(ticker)

	cacheKey := "yf:fin:" + symbol
	if y.cache.enabled() {
		if fs, ok := infra.GetJSON[models.FinancialStatements](ctx, y.cache.store, cacheKey); ok {
			return fs, nil
		}
	}

	resp, err := y.quoteSummary(ctx, symbol)
	if err != nil {
		return models.FinancialStatements{}, providerErr(y.Name(), "statements", err)
	}

	r := resp.QuoteSummary.Result[0]
	fs := models.FinancialStatements{
		Ticker:            symbol,
		BalanceSheet:      statementTable(r.BalanceSheetHistory.Statements),
		CashFlow:          statementTable(r.CashflowStatementHistory.Statements),
		IncomeStatement:   statementTable(r.IncomeStatementHistory.Statements),
		ValuationMeasures: valuationTable(r),
	}

	if y.cache.enabled() {
		infra.SetJSON(ctx, y.cache.store, cacheKey, fs, y.cache.ttl)
	}
	return fs, nil
}

// quoteSummary fetches the summary modules, renegotiating the crumb once
// when Yahoo rejects it.
func (y *YFinance) quoteSummary(ctx context.Context, symbol string) (*yfSummaryResponse, error) {
	for attempt := 0; ; attempt++ {
		crumb, err := y.session.Crumb(ctx)
		if err != nil {
			return nil, err
		}
		if err := y.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		params := url.Values{}
		params.Set("modules", yfSummaryModules)
		params.Set("crumb", crumb)
		u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", y.baseURL, url.PathEscape(symbol), params.Encode())

		var resp yfSummaryResponse
		err = y.getJSON(ctx, u, &resp)
		var he *infra.HTTPError
		if errors.As(err, &he) && he.StatusCode == http.StatusUnauthorized && attempt == 0 {
			y.session.Reset()
			continue
		}
		if err != nil {
			return nil, unknownSymbol(err, symbol)
		}
		if e := resp.QuoteSummary.Error; e != nil {
			return nil, yfAPIError(e, symbol)
		}
		if len(resp.QuoteSummary.Result) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
		}
		return &resp, nil
	}
}

// statementTable turns Yahoo's per-period maps (newest first) into a table
// with periods oldest first and rows sorted by label.
func statementTable(statements []map[string]json.RawMessage) models.StatementTable {
	table := models.StatementTable{Periods: []string{}, Rows: []models.StatementRow{}}
	if len(statements) == 0 {
		return table
	}

	rows := make(map[string]map[string]decimal.Decimal)
	for i := len(statements) - 1; i >= 0; i-- {
		stmt := statements[i]
		end, ok := finVal(stmt["endDate"])
		if !ok || end.Fmt == "" {
			continue
		}
		period := end.Fmt
		table.Periods = append(table.Periods, period)

		for key, raw := range stmt {
			if key == "maxAge" || key == "endDate" {
				continue
			}
			v, ok := finVal(raw)
			if !ok || v.Raw == nil {
				continue
			}
			d, err := decimal.NewFromString(v.Raw.String())
			if err != nil {
				continue
			}
			label := humanizeKey(key)
			if rows[label] == nil {
				rows[label] = make(map[string]decimal.Decimal)
			}
			rows[label][period] = d
		}
	}

	labels := make([]string, 0, len(rows))
	for l := range rows {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		table.Rows = append(table.Rows, models.StatementRow{Label: l, Values: rows[l]})
	}
	return table
}

// valuationField names where a valuation measure lives in the summary.
type valuationField struct {
	key   string
	label string
	from  func(r yfSummaryResult) map[string]json.RawMessage
}

func fromSummaryDetail(r yfSummaryResult) map[string]json.RawMessage { return r.SummaryDetail }
func fromKeyStatistics(r yfSummaryResult) map[string]json.RawMessage { return r.DefaultKeyStatistics }

var valuationFields = []valuationField{
	{"marketCap", "Market Cap", fromSummaryDetail},
	{"enterpriseValue", "Enterprise Value", fromKeyStatistics},
	{"trailingPE", "Trailing P/E", fromSummaryDetail},
	{"forwardPE", "Forward P/E", fromKeyStatistics},
	{"pegRatio", "PEG Ratio (5yr expected)", fromKeyStatistics},
	{"priceToSalesTrailing12Months", "Price/Sales (ttm)", fromSummaryDetail},
	{"priceToBook", "Price/Book (mrq)", fromKeyStatistics},
	{"enterpriseToRevenue", "Enterprise Value/Revenue", fromKeyStatistics},
	{"enterpriseToEbitda", "Enterprise Value/EBITDA", fromKeyStatistics},
	{"beta", "Beta (5Y Monthly)", fromSummaryDetail},
}

// ValuationPeriod is the single column of the valuation measures table.
const ValuationPeriod = "current"

func valuationTable(r yfSummaryResult) models.StatementTable {
	table := models.StatementTable{Periods: []string{}, Rows: []models.StatementRow{}}
	for _, f := range valuationFields {
		raw, ok := f.from(r)[f.key]
		if !ok {
			// beta is reported in either module depending on the listing
			raw, ok = r.DefaultKeyStatistics[f.key]
		}
		if !ok {
			continue
		}
		v, ok := finVal(raw)
		if !ok || v.Raw == nil {
			continue
		}
		d, err := decimal.NewFromString(v.Raw.String())
		if err != nil {
			continue
		}
		table.Rows = append(table.Rows, models.StatementRow{
			Label:  f.label,
			Values: map[string]decimal.Decimal{ValuationPeriod: d},
		})
	}
	if len(table.Rows) > 0 {
		table.Periods = []string{ValuationPeriod}
	}
	return table
}

func finVal(raw json.RawMessage) (yfFinVal, bool) {
	var v yfFinVal
	if len(raw) == 0 || raw[0] != '{' {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// humanizeKey turns "totalStockholderEquity" into "Total Stockholder Equity".
func humanizeKey(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// --- Helpers ---

func (y *YFinance) getJSON(ctx context.Context, u string, out any) error {
	body, err := infra.DoGet(ctx, y.client, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// unknownSymbol maps Yahoo's 404 to ErrUnknownSymbol.
func unknownSymbol(err error, symbol string) error {
	var he *infra.HTTPError
	if errors.As(err, &he) && he.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return err
}

func yfAPIError(e *yfError, symbol string) error {
	if strings.EqualFold(e.Code, "Not Found") {
		return fmt.Errorf("%w: %s: %s", ErrUnknownSymbol, symbol, e.Description)
	}
	return fmt.Errorf("yahoo API error %s: %s", e.Code, e.Description)
}
