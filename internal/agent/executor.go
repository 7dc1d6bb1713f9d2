package agent

import (
	"context"
	"fmt"
	"math"
	"time"

	"Nova-Assistant/internal/observability/metrics"
	"Nova-Assistant/internal/plan"
	"Nova-Assistant/internal/tools"
	"Nova-Assistant/pkg/logger"
)

// maxStepAttempts 是单个步骤的总尝试次数（1 次初始 + 2 次重试），
// 重试之间不做等待。改动这个契约会改变外部可观测的延迟行为。
const maxStepAttempts = 3

// StepExecutor 按顺序执行计划中的步骤。
// 每次调用只推进一步，失败的步骤也会推进游标，后续步骤继续尝试。
type StepExecutor struct {
	invoker tools.Invoker
}

// NewStepExecutor 创建步骤执行器。
func NewStepExecutor(invoker tools.Invoker) *StepExecutor {
	return &StepExecutor{invoker: invoker}
}

// ExecuteNextStep 执行当前游标指向的步骤并把结果追加到状态中。
// 没有计划或游标已越界时为空操作。仅传输层失败触发重试；
// 耗尽尝试次数后记录 error-only 的结果并照常推进游标。
func (e *StepExecutor) ExecuteNextStep(ctx context.Context, state *State) {
	if state == nil || state.Plan == nil || state.CurrentStep >= len(state.Plan.Steps) {
		return
	}

	stepIndex := state.CurrentStep
	step := state.Plan.Steps[stepIndex]

	tool, action, err := plan.SplitTool(step.Tool)
	if err != nil {
		state.Error = fmt.Sprintf("Execution failed for %s: %v", step.Tool, err)
		state.Results = append(state.Results, plan.StepResult{
			StepIndex: stepIndex,
			Tool:      step.Tool,
			Error:     err.Error(),
		})
		state.CurrentStep++
		return
	}

	req := tools.Request{Tool: tool, Action: action, Args: step.Args}

	var lastErr error
	for attempt := 1; attempt <= maxStepAttempts; attempt++ {
		start := time.Now()
		result, err := e.invoker.Invoke(ctx, req)
		if err == nil {
			elapsed := roundMS(time.Since(start))
			state.Results = append(state.Results, plan.StepResult{
				StepIndex:   stepIndex,
				Tool:        step.Tool,
				Result:      result,
				ExecutionMS: elapsed,
			})
			logger.L().Info("步骤执行完成",
				"tool", step.Tool,
				"step", stepIndex,
				"elapsed_ms", elapsed)
			metrics.ObserveStep(step.Tool, "success")
			state.CurrentStep++
			return
		}

		lastErr = err
		logger.L().Warn("步骤执行失败",
			"tool", step.Tool,
			"step", stepIndex,
			"attempt", attempt,
			"error", err)
	}

	metrics.ObserveStep(step.Tool, "error")
	state.Error = fmt.Sprintf("Execution failed for %s: %v", step.Tool, lastErr)
	state.Results = append(state.Results, plan.StepResult{
		StepIndex: stepIndex,
		Tool:      step.Tool,
		Error:     lastErr.Error(),
	})
	state.CurrentStep++
}

// roundMS 把执行耗时换算为保留两位小数的毫秒数。
func roundMS(d time.Duration) float64 {
	ms := float64(d.Nanoseconds()) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
