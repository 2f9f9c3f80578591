package sentiment

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/seenimoa/thesisai/pkg/models"
)

func TestPolarityScoresKnownValues(t *testing.T) {
	tests := []struct {
		text     string
		compound float64
	}{
		{"good", 0.4404},
		{"not good", -0.3412},
		{"very good", 0.4927},
	}
	for _, tt := range tests {
		got := PolarityScores(tt.text)
		if got.Compound != tt.compound {
			t.Errorf("PolarityScores(%q).Compound = %v, want %v", tt.text, got.Compound, tt.compound)
		}
	}

	s := PolarityScores("not good")
	if s.Negative != 0.7064 || s.Neutral != 0.2936 || s.Positive != 0 {
		t.Errorf("not good proportions = %+v", s)
	}
}

func TestPolarityScoresBullishBearish(t *testing.T) {
	bull := PolarityScores("Microsoft shares rally on strong cloud growth and record profits")
	if bull.Compound <= 0.05 {
		t.Errorf("expected positive compound for bullish headline, got %.4f", bull.Compound)
	}
	bear := PolarityScores("Stocks plunge amid fraud investigation and recession fears")
	if bear.Compound >= -0.05 {
		t.Errorf("expected negative compound for bearish headline, got %.4f", bear.Compound)
	}
	flat := PolarityScores("Company announces new office location in Seattle")
	if flat.Compound != 0 || flat.Neutral != 1 {
		t.Errorf("expected neutral scores, got %+v", flat)
	}
}

func TestPolarityScoresFullLexicon(t *testing.T) {
	tests := []struct {
		text     string
		negative bool
	}{
		{"Microsoft shares slide after disappointing cloud guidance", true},
		{"Retailer files lawsuit as accounting scandal deepens", true},
		{"Supplier nearly bankrupt after recession hits orders", true},
		{"Investors delighted with the new product line", false},
	}
	for _, tt := range tests {
		c := PolarityScores(tt.text).Compound
		if tt.negative && c >= -0.05 {
			t.Errorf("%q: compound %.4f, want negative", tt.text, c)
		}
		if !tt.negative && c <= 0.05 {
			t.Errorf("%q: compound %.4f, want positive", tt.text, c)
		}
	}
}

func TestPolarityScoresProportionsSumToOne(t *testing.T) {
	texts := []string{
		"good",
		"The outlook is good but the risks are severe",
		"Terrible quarter!!! Losses widen, layoffs announced",
		"Shares were flat",
		"NOT a great start, but a solid recovery",
	}
	for _, text := range texts {
		s := PolarityScores(text)
		sum := s.Positive + s.Neutral + s.Negative
		if math.Abs(sum-1) > 0.0005 {
			t.Errorf("%q: proportions sum to %v (%+v)", text, sum, s)
		}
		if s.Compound < -1 || s.Compound > 1 {
			t.Errorf("%q: compound %v out of range", text, s.Compound)
		}
	}
}

func TestPolarityScoresEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "-"} {
		got := PolarityScores(text)
		want := models.SentimentScores{Neutral: 1}
		if got != want {
			t.Errorf("PolarityScores(%q) = %+v, want %+v", text, got, want)
		}
	}
}

func TestPolarityScoresRules(t *testing.T) {
	base := PolarityScores("The quarter was good").Compound

	if c := PolarityScores("The quarter was extremely good").Compound; c <= base {
		t.Errorf("booster should amplify: %v <= %v", c, base)
	}
	if c := PolarityScores("The quarter was slightly good").Compound; c >= base {
		t.Errorf("dampener should reduce: %v >= %v", c, base)
	}
	if c := PolarityScores("The quarter was GOOD").Compound; c <= base {
		t.Errorf("caps emphasis should amplify: %v <= %v", c, base)
	}
	if c := PolarityScores("The quarter was good!!").Compound; c <= base {
		t.Errorf("exclamation should amplify: %v <= %v", c, base)
	}
	if c := PolarityScores("The quarter was not good").Compound; c >= 0 {
		t.Errorf("negation should flip sign: %v", c)
	}
	if c := PolarityScores("The quarter was never so good").Compound; c <= base {
		t.Errorf("never so should intensify: %v <= %v", c, base)
	}
	// After "but" the second clause dominates.
	if c := PolarityScores("Revenue was good but margins were terrible").Compound; c >= 0 {
		t.Errorf("but-clause should dominate: %v", c)
	}
	if c := PolarityScores("At least the quarter was good").Compound; c <= 0 {
		t.Errorf("at least should not negate: %v", c)
	}
}

func TestPolarityScoresDeterministic(t *testing.T) {
	text := "Microsoft beats estimates, but Azure growth slows sharply amid concerns!"
	first := PolarityScores(text)
	for i := 0; i < 100; i++ {
		if got := PolarityScores(text); got != first {
			t.Fatalf("iteration %d: %+v != %+v", i, got, first)
		}
	}
}

func TestAnnotateIsPure(t *testing.T) {
	in := []models.NewsItem{
		{Title: "Microsoft stock surges", Snippet: "Strong results"},
		{Title: "Azure outage hurts customers"},
		{Title: ""},
	}
	snapshot := make([]models.NewsItem, len(in))
	copy(snapshot, in)

	out := Annotate(in)
	if !reflect.DeepEqual(in, snapshot) {
		t.Fatal("Annotate modified its input")
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d items, got %d", len(in), len(out))
	}
	for i, it := range out {
		if it.Sentiment == nil {
			t.Fatalf("item %d not annotated", i)
		}
		if it.Title != in[i].Title {
			t.Errorf("item %d title changed", i)
		}
	}
	if out[0].Sentiment.Label() != "positive" || out[1].Sentiment.Label() != "negative" {
		t.Errorf("labels = %s, %s", out[0].Sentiment.Label(), out[1].Sentiment.Label())
	}
	if *out[2].Sentiment != (models.SentimentScores{Neutral: 1}) {
		t.Errorf("empty item = %+v", *out[2].Sentiment)
	}

	again := Annotate(in)
	for i := range out {
		if *again[i].Sentiment != *out[i].Sentiment {
			t.Errorf("item %d not reproducible", i)
		}
	}
	if len(Annotate(nil)) != 0 {
		t.Error("Annotate(nil) should be empty")
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	items := []models.NewsItem{
		{Sentiment: &models.SentimentScores{Compound: 0.8}, PublishedAt: now},
		{Sentiment: &models.SentimentScores{Compound: -0.8}, PublishedAt: now.Add(-48 * time.Hour)},
		{Sentiment: &models.SentimentScores{Compound: 0}},
		{Title: "unscored"},
	}
	s := Summarize(items, now)
	if s.Articles != 3 || s.Positive != 1 || s.Negative != 1 || s.Neutral != 1 {
		t.Errorf("counts = %+v", s)
	}
	// weights 1, 0.25, 1 -> (0.8 - 0.2 + 0) / 2.25
	if s.MeanCompound != 0.2667 {
		t.Errorf("MeanCompound = %v, want 0.2667", s.MeanCompound)
	}
	if s.Label != "positive" {
		t.Errorf("Label = %q", s.Label)
	}

	empty := Summarize(nil, now)
	if empty.Articles != 0 || empty.Label != "neutral" {
		t.Errorf("empty summary = %+v", empty)
	}
}
