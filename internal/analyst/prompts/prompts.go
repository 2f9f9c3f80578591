// Package prompts holds the fixed prompts and tool names of the thesis pipeline.
package prompts

import "fmt"

// ── Tool ──

const (
	// GetDataTool is the function the extraction call is forced to invoke.
	GetDataTool = "get_data"

	// GetDataDescription describes GetDataTool to the model.
	GetDataDescription = "Get financial data on a specific company for investment purposes"

	// ToolAck is replayed as the result of the get_data call in the
	// generation conversation.
	ToolAck = `{"status":"ok","detail":"financial data gathered"}`
)

// ResolveRequest wraps the user's request for the entity-extraction call.
func ResolveRequest(request string) string {
	return fmt.Sprintf("Given the user request, what is the company name and the company stock ticker?: %s", request)
}

// ── Thesis ──

// ThesisSystemPrompt instructs the model how to write the investment thesis.
const ThesisSystemPrompt = `Write a detailed investment thesis to answer the user request as an HTML document.

## Requirements
1. Provide numbers to justify your assertions, as many as the data allows: price levels and changes, revenue, margins, cash flow, balance sheet strength and valuation multiples
2. Use only the data supplied in the final message; never invent figures
3. Structure the document with headings: Overview, Recent News, Price Performance, Financial Health, Valuation, Risks, Recommendation
4. Give an explicit recommendation to Buy, Hold or Sell the stock given the information available
5. End with a disclaimer that this is not financial advice, that the data may be stale and that the conclusion can change with any new news, and that investing carries risk

Return only the HTML document body, without commentary before or after it.`

// ThesisSystemPromptMarkdown is ThesisSystemPrompt for Markdown output.
const ThesisSystemPromptMarkdown = `Write a detailed investment thesis to answer the user request as a Markdown document.

## Requirements
1. Provide numbers to justify your assertions, as many as the data allows: price levels and changes, revenue, margins, cash flow, balance sheet strength and valuation multiples
2. Use only the data supplied in the final message; never invent figures
3. Structure the document with headings: Overview, Recent News, Price Performance, Financial Health, Valuation, Risks, Recommendation
4. Give an explicit recommendation to Buy, Hold or Sell the stock given the information available
5. End with a disclaimer that this is not financial advice, that the data may be stale and that the conclusion can change with any new news, and that investing carries risk

Return only the Markdown document, without commentary before or after it.`

// GroundingPreamble introduces the aggregated data in the final turn.
const GroundingPreamble = "Financial data gathered for the request:\n\n"
