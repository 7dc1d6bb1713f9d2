package agent

import (
	"testing"

	"Nova-Assistant/internal/plan"
)

func TestNextAfterPlan(t *testing.T) {
	state := NewState("hi", nil)
	if got := NextAfterPlan(state); got != PhaseRespond {
		t.Fatalf("nil plan must respond, got %s", got)
	}

	state.Plan = &plan.Plan{Intent: "noop", RiskLevel: plan.RiskLow, Steps: []plan.Step{}}
	if got := NextAfterPlan(state); got != PhaseRespond {
		t.Fatalf("empty plan must respond, got %s", got)
	}

	state.Plan = &plan.Plan{
		Intent:    "general_assist",
		RiskLevel: plan.RiskLow,
		Steps:     []plan.Step{{Tool: "sentiment.analyze_text"}},
	}
	if got := NextAfterPlan(state); got != PhaseExecute {
		t.Fatalf("safe plan must execute, got %s", got)
	}
	if state.RequiresConfirmation {
		t.Fatalf("safe plan must not set confirmation flag")
	}

	state = NewState("email", nil)
	state.Plan = &plan.Plan{
		Intent:    "send_update",
		RiskLevel: plan.RiskHigh,
		Steps: []plan.Step{
			{Tool: "calendar.create_event"},
			{Tool: "gmail.send_email"},
		},
	}
	if got := NextAfterPlan(state); got != PhaseConfirm {
		t.Fatalf("risky plan must confirm, got %s", got)
	}
	if !state.RequiresConfirmation {
		t.Fatalf("risky plan must set confirmation flag")
	}
}

func TestNextAfterConfirm(t *testing.T) {
	state := NewState("hi", nil)
	if got := NextAfterConfirm(state); got != PhaseExecute {
		t.Fatalf("unconditional plan must execute, got %s", got)
	}

	state.RequiresConfirmation = true
	if got := NextAfterConfirm(state); got != PhaseRespond {
		t.Fatalf("undecided confirmation must respond, got %s", got)
	}

	state.GrantConfirmation(false)
	if got := NextAfterConfirm(state); got != PhaseRespond {
		t.Fatalf("denied confirmation must respond, got %s", got)
	}

	state.GrantConfirmation(true)
	if got := NextAfterConfirm(state); got != PhaseExecute {
		t.Fatalf("granted confirmation must execute, got %s", got)
	}
}

func TestNextAfterExecute(t *testing.T) {
	state := NewState("hi", nil)
	if got := NextAfterExecute(state); got != PhaseRespond {
		t.Fatalf("nil plan must respond, got %s", got)
	}

	state.Plan = &plan.Plan{
		Intent:    "general_assist",
		RiskLevel: plan.RiskLow,
		Steps:     []plan.Step{{Tool: "sentiment.analyze_text"}},
	}
	if got := NextAfterExecute(state); got != PhaseExecute {
		t.Fatalf("pending step must keep executing, got %s", got)
	}

	state.CurrentStep = 1
	if got := NextAfterExecute(state); got != PhaseRespond {
		t.Fatalf("exhausted plan must respond, got %s", got)
	}
}
