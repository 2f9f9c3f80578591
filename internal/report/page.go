package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/seenimoa/thesisai/internal/analysis/fundamental"
	"github.com/seenimoa/thesisai/internal/analysis/technical"
	"github.com/seenimoa/thesisai/pkg/models"
	"github.com/seenimoa/thesisai/pkg/utils"
)

// PageData is the model passed to the thesis page template.
type PageData struct {
	Title       string
	Company     string
	Ticker      string
	Period      string
	RequestID   string
	GeneratedAt string
	Model       string

	LastClose string
	ChangePct string
	Change    float64
	RangeLow  string
	RangeHigh string

	Trend      string
	RSI        string
	Volatility string
	Drawdown   string

	Mood         *models.SentimentSummary
	Fundamentals []fundamental.Metric
	Warnings     []string
	Truncated    bool

	Chart    template.HTML
	Document template.HTML
}

var pageTmpl = template.Must(template.New("thesis").Parse(pageTemplate))

// RenderPage wraps a thesis in a standalone HTML page with a header, the
// price chart and any warnings raised while it was built.
func RenderPage(res models.NarrativeResult) (string, error) {
	doc, err := Convert(res.Document, models.FormatHTML)
	if err != nil {
		return "", err
	}
	data := buildPageData(res)
	data.Document = template.HTML(doc) // model output is rendered as-is
	data.Chart = template.HTML(PriceChart(res.PriceSeries, ChartConfig{}))

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}

func buildPageData(res models.NarrativeResult) PageData {
	e := res.Entities
	d := PageData{
		Title:       fmt.Sprintf("%s (%s) Investment Thesis", e.CompanyName, e.CompanyTicker),
		Company:     e.CompanyName,
		Ticker:      e.CompanyTicker,
		Period:      e.Period,
		RequestID:   res.RequestID,
		GeneratedAt: res.GeneratedAt.UTC().Format(time.RFC1123),
		Model:       res.Model,
		Mood:        res.NewsMood,
		Warnings:    res.Warnings,
		Truncated:   res.Truncated,
	}
	d.Fundamentals = fundamental.Highlights(res.Financials)
	if last, ok := res.PriceSeries.Last(); ok {
		d.LastClose = fmt.Sprintf("%.2f %s", last.Close, res.PriceSeries.Currency)
		d.Change = res.PriceSeries.ChangePct()
		d.ChangePct = utils.FormatPct(d.Change)
		lo, hi := res.PriceSeries.Range()
		d.RangeLow = fmt.Sprintf("%.2f", lo)
		d.RangeHigh = fmt.Sprintf("%.2f", hi)

		ind := technical.Compute(res.PriceSeries)
		d.Trend = ind.Trend(last.Close)
		if ind.RSI14 != nil {
			d.RSI = fmt.Sprintf("%.1f", *ind.RSI14)
		}
		d.Volatility = fmt.Sprintf("%.1f%%", ind.Volatility)
		d.Drawdown = fmt.Sprintf("%.1f%%", ind.MaxDrawdown)
	}
	return d
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root { --text: #1a1a2e; --muted: #6b7280; --border: #e5e7eb; --accent: #2563eb; --green: #16a34a; --red: #dc2626; --section-bg: #f8fafc; }
  * { box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: var(--text); line-height: 1.6; max-width: 900px; margin: 0 auto; padding: 20px; }
  h1 { font-size: 1.5rem; color: var(--accent); margin: 0 0 4px; }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  table { border-collapse: collapse; width: 100%; margin: 8px 0; font-size: 0.9rem; }
  th, td { border: 1px solid var(--border); padding: 4px 8px; text-align: left; }
  .muted { color: var(--muted); font-size: 0.85rem; }
  .header { border-bottom: 3px solid var(--accent); padding-bottom: 12px; margin-bottom: 16px; }
  .ticker-badge { display: inline-block; background: var(--accent); color: white; padding: 2px 12px; border-radius: 4px; font-weight: 700; margin-right: 8px; }
  .stats { display: flex; flex-wrap: wrap; gap: 24px; margin: 12px 0; }
  .stats div { background: var(--section-bg); padding: 8px 12px; border-radius: 4px; }
  .up { color: var(--green); } .down { color: var(--red); }
  .warnings { background: #fff7ed; border-left: 4px solid #ea580c; padding: 8px 12px; margin: 12px 0; }
  .chart { margin: 16px 0; overflow-x: auto; }
</style>
</head>
<body>
<div class="header">
  <h1>{{.Title}}</h1>
  <span class="ticker-badge">{{.Ticker}}</span><span class="muted">{{.Company}} · period {{.Period}}</span>
  <p class="muted">Generated {{.GeneratedAt}}{{if .Model}} by {{.Model}}{{end}}{{if .RequestID}} · request {{.RequestID}}{{end}}</p>
</div>
{{if .LastClose}}
<div class="stats">
  <div>Last close<br><strong>{{.LastClose}}</strong></div>
  <div>Change<br><strong class="{{if ge .Change 0.0}}up{{else}}down{{end}}">{{.ChangePct}}</strong></div>
  <div>Range<br><strong>{{.RangeLow}} to {{.RangeHigh}}</strong></div>
  <div>Trend<br><strong>{{.Trend}}</strong>{{if .RSI}} <span class="muted">RSI {{.RSI}}</span>{{end}}</div>
  <div>Volatility<br><strong>{{.Volatility}}</strong> <span class="muted">max drawdown {{.Drawdown}}</span></div>
  {{with .Mood}}<div>News sentiment<br><strong>{{.Label}}</strong> <span class="muted">({{.Positive}}+ / {{.Negative}}- of {{.Articles}})</span></div>{{end}}
</div>
{{end}}
{{with .Fundamentals}}
<table class="fundamentals">
  <tr>{{range .}}<th>{{.Name}}</th>{{end}}</tr>
  <tr>{{range .}}<td>{{.Value}}</td>{{end}}</tr>
</table>
{{end}}
{{if or .Warnings .Truncated}}
<div class="warnings">
  {{range .Warnings}}<p>{{.}}</p>{{end}}
  {{if .Truncated}}<p>The source data was truncated before generation.</p>{{end}}
</div>
{{end}}
<div class="chart">{{.Chart}}</div>
<article>
{{.Document}}
</article>
<p class="muted">This document was generated automatically from public data and is not financial advice.</p>
</body>
</html>
`
