package analyst

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/thesisai/internal/llm"
)

func TestResolveExtractsEntities(t *testing.T) {
	tests := []struct {
		request, name, ticker, period string
	}{
		{"Write an investment thesis for Microsoft", "Microsoft", "MSFT", "1mo"},
		{"Should I buy Apple stock?", "Apple Inc.", "AAPL", "1y"},
	}
	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			r := NewResolver(newFakeLLM(), nil, nil)
			e, err := r.Resolve(context.Background(), tt.request)
			require.NoError(t, err)
			assert.Equal(t, tt.name, e.CompanyName)
			assert.Equal(t, tt.ticker, e.CompanyTicker)
			assert.Equal(t, tt.period, e.Period)
		})
	}
}

func TestResolveDetailedReplaysNormalizedCall(t *testing.T) {
	r := NewResolver(newFakeLLM(), nil, nil)
	res, err := r.ResolveDetailed(context.Background(), "Apple")
	require.NoError(t, err)

	assert.Equal(t, "call_1", res.Call.ID)
	assert.Equal(t, "get_data", res.Call.Name)
	var args map[string]string
	require.NoError(t, json.Unmarshal(res.Call.Arguments, &args))
	assert.Equal(t, "AAPL", args["company_ticker"], "the replayed call carries the normalized ticker")
	assert.Equal(t, "fake-1", res.Model)
}

func TestResolveDefaultPeriodAndWarnings(t *testing.T) {
	f := newFakeLLM()
	f.entities["Tesla"] = `{"company_name":"Tesla","company_ticker":"NASDAQ:TSLA","period":"fortnight"}`

	r := NewResolver(f, nil, nil).WithDefaultPeriod("6mo")
	res, err := r.ResolveDetailed(context.Background(), "Tesla outlook")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", res.Entities.CompanyTicker)
	assert.Equal(t, "6mo", res.Entities.Period)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "fortnight")
}

func TestResolveErrors(t *testing.T) {
	f := newFakeLLM()
	f.entities["Nameless"] = `{"company_ticker":"XYZ"}`
	f.entities["BadTicker"] = `{"company_name":"Bad","company_ticker":"not a ticker!"}`
	f.entities["Broken"] = `{"company_name": "Broken", "company_ticker": [}`
	r := NewResolver(f, nil, nil)

	tests := []struct {
		request string
		reason  string
		is      error
	}{
		{"   ", "empty request", nil},
		{"Which stock is best?", "model did not call get_data", llm.ErrNoToolCall},
		{"Nameless co", "missing required fields", nil},
		{"BadTicker inc", "invalid ticker", nil},
		{"Broken corp", "unparsable tool arguments", llm.ErrBadArguments},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.request)
			var re *ResolutionError
			require.ErrorAs(t, err, &re)
			assert.Contains(t, re.Reason, tt.reason)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestResolveModelFailure(t *testing.T) {
	r := NewResolver(failingLLM{err: llm.ErrProviderDown}, nil, nil)
	_, err := r.Resolve(context.Background(), "Microsoft")
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "model call failed", re.Reason)
	assert.ErrorIs(t, err, llm.ErrProviderDown)
}

func TestResolverToolSchema(t *testing.T) {
	tool := NewResolver(newFakeLLM(), nil, nil).Tool()
	assert.Equal(t, "get_data", tool.Name)
	require.NotNil(t, tool.Parameters)
	assert.ElementsMatch(t, []string{"company_name", "company_ticker"}, tool.Parameters.Required)
	assert.Contains(t, tool.Parameters.Properties, "period")
}

type failingLLM struct{ err error }

func (f failingLLM) Name() string                   { return "failing" }
func (f failingLLM) Models() []string               { return nil }
func (f failingLLM) Ping(ctx context.Context) error { return f.err }
func (f failingLLM) Chat(ctx context.Context, _ []llm.Message, _ []llm.Tool, _ *llm.ChatOptions) (*llm.Response, error) {
	return nil, f.err
}
