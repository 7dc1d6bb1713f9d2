package agent

import (
	"context"
	"errors"
	"testing"

	"Nova-Assistant/internal/plan"
	"Nova-Assistant/internal/tools"
)

type stubInvoker struct {
	calls  int
	invoke func(req tools.Request) (map[string]any, error)
}

func (s *stubInvoker) Invoke(ctx context.Context, req tools.Request) (map[string]any, error) {
	s.calls++
	return s.invoke(req)
}

func singleStepState(tool string) *State {
	state := NewState("test input", nil)
	state.Plan = &plan.Plan{
		Intent:    "test",
		RiskLevel: plan.RiskLow,
		Steps:     []plan.Step{{Tool: tool, Args: map[string]any{}}},
	}
	return state
}

func TestExecuteNextStepNoPlan(t *testing.T) {
	invoker := &stubInvoker{invoke: func(tools.Request) (map[string]any, error) {
		return map[string]any{}, nil
	}}
	executor := NewStepExecutor(invoker)

	state := NewState("no plan yet", nil)
	executor.ExecuteNextStep(context.Background(), state)

	if invoker.calls != 0 {
		t.Fatalf("must not invoke backend without a plan")
	}
	if state.CurrentStep != 0 || len(state.Results) != 0 {
		t.Fatalf("state must be untouched: %+v", state)
	}
}

func TestExecuteNextStepAtEnd(t *testing.T) {
	invoker := &stubInvoker{invoke: func(tools.Request) (map[string]any, error) {
		return map[string]any{}, nil
	}}
	executor := NewStepExecutor(invoker)

	state := singleStepState("sentiment.analyze_text")
	state.CurrentStep = 1
	executor.ExecuteNextStep(context.Background(), state)

	if invoker.calls != 0 {
		t.Fatalf("must be a no-op past the last step")
	}
}

func TestExecuteNextStepSuccess(t *testing.T) {
	invoker := &stubInvoker{invoke: func(req tools.Request) (map[string]any, error) {
		if req.Tool != "sentiment" || req.Action != "analyze_text" {
			t.Errorf("unexpected request: %+v", req)
		}
		return map[string]any{"sentiment": "positive"}, nil
	}}
	executor := NewStepExecutor(invoker)

	state := singleStepState("sentiment.analyze_text")
	executor.ExecuteNextStep(context.Background(), state)

	if invoker.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", invoker.calls)
	}
	if state.CurrentStep != 1 {
		t.Fatalf("cursor must advance, got %d", state.CurrentStep)
	}
	if len(state.Results) != 1 {
		t.Fatalf("expected one result, got %d", len(state.Results))
	}
	r := state.Results[0]
	if r.StepIndex != 0 || r.Tool != "sentiment.analyze_text" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Result["sentiment"] != "positive" || r.Error != "" {
		t.Fatalf("result payload mismatch: %+v", r)
	}
	if r.ExecutionMS < 0 {
		t.Fatalf("execution time must be non-negative: %v", r.ExecutionMS)
	}
}

func TestExecuteNextStepRetriesThreeTimes(t *testing.T) {
	invoker := &stubInvoker{invoke: func(tools.Request) (map[string]any, error) {
		return nil, errors.New("connection reset")
	}}
	executor := NewStepExecutor(invoker)

	state := singleStepState("gmail.send_email")
	executor.ExecuteNextStep(context.Background(), state)

	if invoker.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", invoker.calls)
	}
	if state.CurrentStep != 1 {
		t.Fatalf("cursor must advance even on failure, got %d", state.CurrentStep)
	}
	if state.Error == "" {
		t.Fatalf("state error must name the failure")
	}
	r := state.Results[0]
	if r.Error == "" || r.Result != nil {
		t.Fatalf("failed step must record error only: %+v", r)
	}
	if r.StepIndex != 0 {
		t.Fatalf("step index must equal execution order, got %d", r.StepIndex)
	}
}

func TestExecuteNextStepRecoversOnRetry(t *testing.T) {
	invoker := &stubInvoker{}
	invoker.invoke = func(tools.Request) (map[string]any, error) {
		if invoker.calls < 3 {
			return nil, errors.New("temporary failure")
		}
		return map[string]any{"status": "sent"}, nil
	}
	executor := NewStepExecutor(invoker)

	state := singleStepState("sms.send_sms")
	executor.ExecuteNextStep(context.Background(), state)

	if invoker.calls != 3 {
		t.Fatalf("expected success on the third attempt, got %d calls", invoker.calls)
	}
	if state.Error != "" {
		t.Fatalf("recovered step must not set state error: %q", state.Error)
	}
	if state.Results[0].Result["status"] != "sent" {
		t.Fatalf("unexpected result: %+v", state.Results[0])
	}
}

func TestExecuteContinuesPastFailure(t *testing.T) {
	invoker := &stubInvoker{invoke: func(req tools.Request) (map[string]any, error) {
		if req.Tool == "calendar" {
			return nil, errors.New("backend down")
		}
		return map[string]any{"status": "sent"}, nil
	}}
	executor := NewStepExecutor(invoker)

	state := NewState("schedule and email", nil)
	state.Plan = &plan.Plan{
		Intent:    "schedule_and_email",
		RiskLevel: plan.RiskHigh,
		Steps: []plan.Step{
			{Tool: "calendar.create_event", Args: map[string]any{}},
			{Tool: "gmail.send_email", Args: map[string]any{}},
		},
	}

	executor.ExecuteNextStep(context.Background(), state)
	executor.ExecuteNextStep(context.Background(), state)

	if state.CurrentStep != 2 {
		t.Fatalf("both steps must have been attempted, cursor=%d", state.CurrentStep)
	}
	if len(state.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(state.Results))
	}
	if state.Results[0].Error == "" {
		t.Fatalf("first step must have failed: %+v", state.Results[0])
	}
	if state.Results[1].Error != "" || state.Results[1].Result == nil {
		t.Fatalf("second step must have succeeded: %+v", state.Results[1])
	}
	if state.Results[0].StepIndex != 0 || state.Results[1].StepIndex != 1 {
		t.Fatalf("step indexes must follow execution order: %+v", state.Results)
	}
}
