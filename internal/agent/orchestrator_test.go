package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"Nova-Assistant/internal/tools"
)

type recordedAction struct {
	UserInput string
	Intent    string
	Summary   string
}

type stubRecorder struct {
	actions []recordedAction
}

func (s *stubRecorder) LogAction(ctx context.Context, userInput, intent, summary string) {
	s.actions = append(s.actions, recordedAction{userInput, intent, summary})
}

func newTestOrchestrator(invoke func(req tools.Request) (map[string]any, error)) (*Orchestrator, *stubInvoker, *stubRecorder) {
	invoker := &stubInvoker{invoke: invoke}
	recorder := &stubRecorder{}
	orch := NewOrchestrator(
		NewPlanner(nil),
		NewStepExecutor(invoker),
		WithActionLogger(recorder),
	)
	return orch, invoker, recorder
}

// 场景：高风险兜底计划在确认前不得执行任何步骤。
func TestRunPausesForConfirmation(t *testing.T) {
	orch, invoker, recorder := newTestOrchestrator(func(tools.Request) (map[string]any, error) {
		return map[string]any{}, nil
	})

	state := NewState("schedule a meeting and email the team", nil)
	orch.Run(context.Background(), state)

	if invoker.calls != 0 {
		t.Fatalf("no step may run before confirmation, got %d calls", invoker.calls)
	}
	if !state.RequiresConfirmation {
		t.Fatalf("risky plan must require confirmation")
	}
	if len(state.Results) != 0 {
		t.Fatalf("no results may be recorded before confirmation: %+v", state.Results)
	}
	if !strings.Contains(state.FinalResponse, "sensitive actions") {
		t.Fatalf("final response must be the confirmation prompt: %q", state.FinalResponse)
	}
	if len(recorder.actions) != 1 || recorder.actions[0].Intent != "schedule_and_email" {
		t.Fatalf("action must be logged: %+v", recorder.actions)
	}
}

// 场景：确认通过后恢复执行，两个步骤依序完成。
func TestRunResumeAfterConfirmation(t *testing.T) {
	var seen []string
	orch, invoker, _ := newTestOrchestrator(func(req tools.Request) (map[string]any, error) {
		seen = append(seen, req.Tool+"."+req.Action)
		return map[string]any{"status": "ok"}, nil
	})

	state := NewState("schedule a meeting and email the team", nil)
	orch.Run(context.Background(), state)

	state.GrantConfirmation(true)
	orch.Run(context.Background(), state)

	if invoker.calls != 2 {
		t.Fatalf("expected 2 step calls after confirmation, got %d", invoker.calls)
	}
	if len(seen) != 2 || seen[0] != "calendar.create_event" || seen[1] != "gmail.send_email" {
		t.Fatalf("steps out of order: %v", seen)
	}
	if len(state.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(state.Results))
	}
	if !strings.Contains(state.FinalResponse, "schedule_and_email") ||
		!strings.Contains(state.FinalResponse, "2 step(s)") {
		t.Fatalf("success summary mismatch: %q", state.FinalResponse)
	}
}

// 场景：低风险输入直接执行，不需要确认。
func TestRunLowRiskExecutesImmediately(t *testing.T) {
	orch, invoker, _ := newTestOrchestrator(func(req tools.Request) (map[string]any, error) {
		return map[string]any{"sentiment": "positive"}, nil
	})

	state := NewState("hello there", nil)
	orch.Run(context.Background(), state)

	if state.RequiresConfirmation {
		t.Fatalf("low-risk plan must not require confirmation")
	}
	if invoker.calls != 1 {
		t.Fatalf("expected 1 step call, got %d", invoker.calls)
	}
	if !strings.Contains(state.FinalResponse, "general_assist") {
		t.Fatalf("unexpected response: %q", state.FinalResponse)
	}
}

// 场景：后端持续失败，3 次尝试后记录错误并继续推进。
func TestRunPersistentBackendFailure(t *testing.T) {
	orch, invoker, _ := newTestOrchestrator(func(tools.Request) (map[string]any, error) {
		return nil, errors.New("http 500")
	})

	state := NewState("hello there", nil)
	orch.Run(context.Background(), state)

	if invoker.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", invoker.calls)
	}
	if state.CurrentStep != 1 {
		t.Fatalf("cursor must advance past the failed step, got %d", state.CurrentStep)
	}
	if state.Results[0].Error == "" || state.Results[0].Result != nil {
		t.Fatalf("failed step must record error only: %+v", state.Results[0])
	}
	if !strings.Contains(state.FinalResponse, "execution issue") {
		t.Fatalf("error summary expected: %q", state.FinalResponse)
	}
}

// 场景：确认被拒绝，直接生成暂停应答，不执行任何步骤。
func TestRunDeniedConfirmation(t *testing.T) {
	orch, invoker, _ := newTestOrchestrator(func(tools.Request) (map[string]any, error) {
		return map[string]any{}, nil
	})

	state := NewState("schedule a meeting and email the team", nil)
	orch.Run(context.Background(), state)

	state.GrantConfirmation(false)
	orch.Run(context.Background(), state)

	if invoker.calls != 0 {
		t.Fatalf("denied plan must never execute, got %d calls", invoker.calls)
	}
	if !strings.Contains(state.FinalResponse, "paused that task") {
		t.Fatalf("unexpected response: %q", state.FinalResponse)
	}
}

// 场景：执行阶段 panic 被阶段边界拦截，编排照常收尾。
func TestRunRecoversFromExecutePanic(t *testing.T) {
	orch, _, _ := newTestOrchestrator(func(tools.Request) (map[string]any, error) {
		panic("backend client bug")
	})

	state := NewState("hello there", nil)
	orch.Run(context.Background(), state)

	if state.FinalResponse == "" {
		t.Fatalf("orchestrator must always produce a response")
	}
	if state.CurrentStep != 1 {
		t.Fatalf("panicking step must still advance the cursor, got %d", state.CurrentStep)
	}
	if len(state.Results) != 1 || state.Results[0].Error == "" {
		t.Fatalf("panicking step must record an error result: %+v", state.Results)
	}
}
