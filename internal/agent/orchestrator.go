package agent

import (
	"context"
	"fmt"

	"Nova-Assistant/internal/plan"
	"Nova-Assistant/pkg/logger"
)

// ActionLogger 是动作留痕的旁路接口，由上层注入（通常是日志队列的生产者）。
// 调用必须是尽力而为的：实现内部消化所有失败，不得影响编排结果。
type ActionLogger interface {
	LogAction(ctx context.Context, userInput, intent, summary string)
}

// Orchestrator 同步驱动 plan → confirm → execute → respond 状态机。
// 一次 Run 独占一个 State，从头跑到尾；任何阶段的意外故障都在阶段边界
// 被拦截并转化为应答，顶层调用永远不会收到 panic 或未处理的错误。
type Orchestrator struct {
	planner  *Planner
	executor *StepExecutor
	recorder ActionLogger
}

// OrchestratorOption 配置编排器的可选依赖。
type OrchestratorOption func(*Orchestrator)

// WithActionLogger 注入动作留痕通道。
func WithActionLogger(recorder ActionLogger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

// NewOrchestrator 创建编排器。
func NewOrchestrator(planner *Planner, executor *StepExecutor, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		planner:  planner,
		executor: executor,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run 对单个状态执行一轮完整编排。每次调用（包括确认后的恢复）都从
// plan 重新开始：恢复即重新规划，再凭 confirmation_granted 快进过确认。
func (o *Orchestrator) Run(ctx context.Context, state *State) {
	phase := PhasePlan
	for phase != PhaseRespond {
		switch phase {
		case PhasePlan:
			o.runPlan(ctx, state)
			phase = NextAfterPlan(state)
		case PhaseConfirm:
			phase = NextAfterConfirm(state)
		case PhaseExecute:
			o.runExecute(ctx, state)
			phase = NextAfterExecute(state)
		}
	}
	o.runRespond(state)

	if o.recorder != nil {
		o.recorder.LogAction(ctx, state.UserInput, state.Intent(), state.FinalResponse)
	}
}

// runPlan 执行规划阶段。规划器本身从不失败，这里的 recover 只兜底
// 意外的运行时故障，留下 nil 计划让应答阶段给出安全提示。
func (o *Orchestrator) runPlan(ctx context.Context, state *State) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("规划阶段发生未预期故障", "panic", fmt.Sprint(r))
			state.Plan = nil
		}
	}()
	state.Plan = o.planner.CreatePlan(ctx, state.UserInput, state.MemoryContext)
}

// runExecute 执行单个步骤。阶段内 panic 按该步骤失败处理并推进游标，
// 保证循环不会卡在同一步上。
func (o *Orchestrator) runExecute(ctx context.Context, state *State) {
	stepBefore := state.CurrentStep
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("执行阶段发生未预期故障",
				"step", stepBefore,
				"panic", fmt.Sprint(r))
			if state.Plan != nil && stepBefore < len(state.Plan.Steps) && state.CurrentStep == stepBefore {
				tool := state.Plan.Steps[stepBefore].Tool
				state.Error = fmt.Sprintf("Execution failed for %s: %v", tool, r)
				state.Results = append(state.Results, plan.StepResult{
					StepIndex: stepBefore,
					Tool:      tool,
					Error:     fmt.Sprint(r),
				})
				state.CurrentStep++
			}
		}
	}()
	o.executor.ExecuteNextStep(ctx, state)
}

func (o *Orchestrator) runRespond(state *State) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("应答阶段发生未预期故障", "panic", fmt.Sprint(r))
			state.FinalResponse = "I could not build a safe plan for that request."
		}
	}()
	state.FinalResponse = Respond(state)
}
