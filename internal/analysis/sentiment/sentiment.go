// Package sentiment scores news text with the VADER lexicon and rule based
// polarity model. Scoring is pure and deterministic.
package sentiment

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jonreiter/govader"

	"github.com/seenimoa/thesisai/pkg/models"
)

// Annotate returns a copy of items with Sentiment set from title and snippet.
// The input slice and its elements are not modified.
func Annotate(items []models.NewsItem) []models.NewsItem {
	out := make([]models.NewsItem, len(items))
	for i, it := range items {
		scores := PolarityScores(strings.TrimSpace(it.Title + " " + it.Snippet))
		it.Sentiment = &scores
		out[i] = it
	}
	return out
}

// analyzer loads the VADER lexicon and emoji table once. Scoring only
// reads them, so one analyzer serves concurrent callers.
var analyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// PolarityScores returns the positive, neutral and negative proportions of
// text and its normalized compound score, each rounded to 4 decimals.
// Text with nothing to score is fully neutral.
func PolarityScores(text string) models.SentimentScores {
	s := analyzer().PolarityScores(text)
	if s.Positive+s.Neutral+s.Negative == 0 {
		return models.SentimentScores{Neutral: 1}
	}
	return models.SentimentScores{
		Positive: round4(s.Positive),
		Neutral:  round4(s.Neutral),
		Negative: round4(s.Negative),
		Compound: round4(s.Compound),
	}
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}

// Summarize computes a recency-weighted mean compound across scored items.
// Weight halves every 24 hours of age; undated items get full weight.
func Summarize(items []models.NewsItem, now time.Time) models.SentimentSummary {
	s := models.SentimentSummary{Label: "neutral"}
	var weighted, total float64
	for _, it := range items {
		if it.Sentiment == nil {
			continue
		}
		s.Articles++
		switch it.Sentiment.Label() {
		case "positive":
			s.Positive++
		case "negative":
			s.Negative++
		default:
			s.Neutral++
		}

		w := 1.0
		if !it.PublishedAt.IsZero() {
			age := now.Sub(it.PublishedAt).Hours()
			if age < 0 {
				age = 0
			}
			w = math.Exp(-math.Ln2 * age / 24)
		}
		weighted += it.Sentiment.Compound * w
		total += w
	}
	if total > 0 {
		s.MeanCompound = round4(weighted / total)
	}
	s.Label = models.SentimentScores{Compound: s.MeanCompound}.Label()
	return s
}
