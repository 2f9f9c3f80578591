package models

import "time"

// NewsItem represents a single news search result about a company.
type NewsItem struct {
	Title       string           `json:"title"`
	Link        string           `json:"link"`
	Date        string           `json:"date,omitempty"` // provider-reported date text, e.g. "2 days ago"
	PublishedAt time.Time        `json:"published_at,omitempty"`
	Snippet     string           `json:"snippet,omitempty"`
	Source      string           `json:"source,omitempty"`
	Sentiment   *SentimentScores `json:"sentiment,omitempty"`
}

// SentimentScores holds lexicon polarity scores for a piece of text.
// Positive, Neutral and Negative are proportions summing to 1.
type SentimentScores struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
	Compound float64 `json:"compound"` // -1 (most negative) .. +1 (most positive)
}

// Label returns a coarse reading of the compound score.
func (s SentimentScores) Label() string {
	switch {
	case s.Compound >= 0.05:
		return "positive"
	case s.Compound <= -0.05:
		return "negative"
	default:
		return "neutral"
	}
}

// DisplayDate returns the best available date text for the item.
func (n NewsItem) DisplayDate() string {
	if n.Date != "" {
		return n.Date
	}
	if !n.PublishedAt.IsZero() {
		return n.PublishedAt.UTC().Format("2006-01-02")
	}
	return ""
}

// SentimentSummary is the recency-weighted sentiment across a set of news items.
type SentimentSummary struct {
	Articles     int     `json:"articles"`
	Positive     int     `json:"positive"`
	Negative     int     `json:"negative"`
	Neutral      int     `json:"neutral"`
	MeanCompound float64 `json:"mean_compound"`
	Label        string  `json:"label"`
}
