package prompts

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestResolveRequestEmbedsRequest(t *testing.T) {
	got := ResolveRequest("Analyze Microsoft for long-term investment")
	if !strings.HasSuffix(got, "Analyze Microsoft for long-term investment") {
		t.Errorf("ResolveRequest = %q", got)
	}
	if !strings.Contains(got, "ticker") {
		t.Error("prompt should ask for the ticker")
	}
}

func TestThesisPromptsDemandRecommendationAndDisclaimer(t *testing.T) {
	for name, p := range map[string]string{"html": ThesisSystemPrompt, "markdown": ThesisSystemPromptMarkdown} {
		lower := strings.ToLower(p)
		for _, want := range []string{"buy", "hold", "sell", "disclaimer", "risk", "numbers"} {
			if !strings.Contains(lower, want) {
				t.Errorf("%s prompt should mention %q", name, want)
			}
		}
	}
	if !strings.Contains(ThesisSystemPrompt, "HTML") || !strings.Contains(ThesisSystemPromptMarkdown, "Markdown") {
		t.Error("prompts should name their output format")
	}
}

func TestToolAckIsJSON(t *testing.T) {
	if !json.Valid([]byte(ToolAck)) {
		t.Errorf("ToolAck is not valid JSON: %s", ToolAck)
	}
	if GetDataTool != "get_data" {
		t.Errorf("GetDataTool = %q", GetDataTool)
	}
}
