// Package models defines the core data structures used throughout ThesisAI.
package models

// DefaultPeriod is the price-history window used when a request names none.
const DefaultPeriod = "1y"

// ResolvedEntities is the structured extraction produced from a free-text request.
// It is created once per request and never mutated afterwards.
type ResolvedEntities struct {
	CompanyName   string `json:"company_name"          validate:"required" jsonschema:"required" jsonschema_description:"The name of the company"`
	CompanyTicker string `json:"company_ticker"        validate:"required" jsonschema:"required" jsonschema_description:"The ticker of the stock of the company"`
	Period        string `json:"period,omitempty"      jsonschema_description:"The period of analysis, e.g. 1mo, 6mo, 1y, 5y, ytd, max"`
	Destination   string `json:"destination,omitempty" jsonschema_description:"Where the analysis should be delivered, e.g. a filename"`
}
