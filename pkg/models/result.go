package models

import "time"

// DocumentFormat is the markup of a generated thesis.
type DocumentFormat string

const (
	FormatHTML     DocumentFormat = "html"
	FormatMarkdown DocumentFormat = "markdown"
)

// NarrativeResult is the output of one pipeline run: the thesis document
// plus the price series it was grounded on, for charting.
type NarrativeResult struct {
	RequestID   string              `json:"request_id"`
	Request     string              `json:"request"`
	Entities    ResolvedEntities    `json:"entities"`
	Document    string              `json:"document"`
	RawDocument string              `json:"raw_document,omitempty"` // model output before unfencing
	Format      DocumentFormat      `json:"format"`
	PriceSeries PriceSeries         `json:"price_series"`
	News        []NewsItem          `json:"news,omitempty"`
	Financials  FinancialStatements `json:"financials"`
	NewsMood    *SentimentSummary   `json:"news_sentiment,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
	Truncated   bool                `json:"context_truncated"`
	Model       string              `json:"model,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
	Duration    time.Duration       `json:"duration"`
}
