package agent

import (
	"Nova-Assistant/internal/plan"
)

// State 是一次编排的完整状态。单个编排过程独占该结构，
// 会话存储只在确认挂起期间代为保管，恢复时交还编排器。
type State struct {
	UserInput            string            `json:"user_input"`
	Plan                 *plan.Plan        `json:"plan,omitempty"`
	CurrentStep          int               `json:"current_step"`
	Results              []plan.StepResult `json:"results"`
	MemoryContext        map[string]any    `json:"memory_context,omitempty"`
	RequiresConfirmation bool              `json:"requires_confirmation"`
	ConfirmationGranted  *bool             `json:"confirmation_granted,omitempty"`
	FinalResponse        string            `json:"final_response"`
	Error                string            `json:"error,omitempty"`
}

// NewState 为一次顶层请求创建初始状态。
func NewState(userInput string, memoryContext map[string]any) *State {
	return &State{
		UserInput:     userInput,
		Results:       []plan.StepResult{},
		MemoryContext: memoryContext,
	}
}

// Intent 返回当前计划的意图标签，没有计划时返回 unknown。
func (s *State) Intent() string {
	if s == nil || s.Plan == nil {
		return "unknown"
	}
	return s.Plan.Intent
}

// GrantConfirmation 记录用户的确认决定。
func (s *State) GrantConfirmation(granted bool) {
	s.ConfirmationGranted = &granted
}

// ConfirmationDecided 判断用户是否已经对确认请求做出决定。
func (s *State) ConfirmationDecided() bool {
	return s != nil && s.ConfirmationGranted != nil
}

// Clone 返回状态的深拷贝，供会话存储在保管期间使用。
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Plan != nil {
		planCopy := *s.Plan
		planCopy.Steps = append([]plan.Step(nil), s.Plan.Steps...)
		clone.Plan = &planCopy
	}
	clone.Results = append([]plan.StepResult(nil), s.Results...)
	if s.MemoryContext != nil {
		ctxCopy := make(map[string]any, len(s.MemoryContext))
		for k, v := range s.MemoryContext {
			ctxCopy[k] = v
		}
		clone.MemoryContext = ctxCopy
	}
	if s.ConfirmationGranted != nil {
		granted := *s.ConfirmationGranted
		clone.ConfirmationGranted = &granted
	}
	return &clone
}
