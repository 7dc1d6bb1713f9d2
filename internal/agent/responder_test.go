package agent

import (
	"strings"
	"testing"

	"Nova-Assistant/internal/plan"
)

func countSentences(text string) int {
	count := 0
	for _, s := range strings.Split(text, ".") {
		if strings.TrimSpace(s) != "" {
			count++
		}
	}
	return count
}

func TestRespondDeniedConfirmation(t *testing.T) {
	state := NewState("send it", nil)
	state.RequiresConfirmation = true
	state.GrantConfirmation(false)
	state.Error = "Execution failed for gmail.send_email: boom"

	got := Respond(state)
	if got != "Understood. I paused that task because it needs your confirmation." {
		t.Fatalf("denied branch must win over error branch, got %q", got)
	}
}

func TestRespondPendingConfirmation(t *testing.T) {
	state := NewState("send it", nil)
	state.RequiresConfirmation = true

	got := Respond(state)
	if got != "This task includes sensitive actions. Please say yes to continue or no to cancel." {
		t.Fatalf("unexpected prompt: %q", got)
	}
}

func TestRespondError(t *testing.T) {
	state := NewState("send it", nil)
	state.Plan = &plan.Plan{Intent: "send_update", RiskLevel: plan.RiskLow, Steps: []plan.Step{{Tool: "sentiment.analyze_text"}}}
	state.Error = "Execution failed for sentiment.analyze_text: connection reset"

	got := Respond(state)
	if !strings.Contains(got, "execution issue") {
		t.Fatalf("error response must mention the issue: %q", got)
	}
	if !strings.Contains(got, "sentiment.analyze_text") {
		t.Fatalf("error response must carry the error text: %q", got)
	}
	if n := countSentences(got); n > maxSentences {
		t.Fatalf("response exceeds %d sentences: %q", maxSentences, got)
	}
	if !strings.HasSuffix(got, ".") {
		t.Fatalf("response must end with a period: %q", got)
	}
}

func TestRespondNoPlan(t *testing.T) {
	state := NewState("???", nil)

	got := Respond(state)
	if got != "I could not build a safe plan for that request." {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestRespondSuccess(t *testing.T) {
	state := NewState("hi", nil)
	state.Plan = &plan.Plan{
		Intent:    "general_assist",
		RiskLevel: plan.RiskLow,
		Steps:     []plan.Step{{Tool: "sentiment.analyze_text"}},
	}
	state.CurrentStep = 1
	state.Results = []plan.StepResult{
		{StepIndex: 0, Tool: "sentiment.analyze_text", Result: map[string]any{"sentiment": "positive"}, ExecutionMS: 3.14},
	}

	got := Respond(state)
	if !strings.Contains(got, "general_assist") {
		t.Fatalf("success response must name the intent: %q", got)
	}
	if !strings.Contains(got, "1 step(s)") {
		t.Fatalf("success response must report step count: %q", got)
	}
	if n := countSentences(got); n > maxSentences {
		t.Fatalf("response exceeds %d sentences: %q", maxSentences, got)
	}
}

func TestJoinSentencesTruncates(t *testing.T) {
	got := joinSentences([]string{"One", "Two", "Three", "Four"})
	if got != "One. Two. Three." {
		t.Fatalf("unexpected join: %q", got)
	}

	if got := joinSentences([]string{"", "  "}); got != "" {
		t.Fatalf("blank fragments must produce empty output, got %q", got)
	}
}
