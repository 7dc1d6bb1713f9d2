package agent

// Phase 是编排状态机的节点标识。
type Phase string

const (
	PhasePlan    Phase = "plan"
	PhaseConfirm Phase = "confirm"
	PhaseExecute Phase = "execute"
	PhaseRespond Phase = "respond"
)

// NextAfterPlan 决定规划之后的走向：空计划直接应答；
// 命中敏感工具的计划进入确认并在状态上打标；其余直接执行。
func NextAfterPlan(state *State) Phase {
	if state.Plan == nil || state.Plan.Empty() {
		return PhaseRespond
	}
	if state.Plan.RequiresConfirmation() {
		state.RequiresConfirmation = true
		return PhaseConfirm
	}
	return PhaseExecute
}

// NextAfterConfirm 决定确认之后的走向。确认阶段本身不做任何修改，
// confirmation_granted 由外部调用方在两次编排之间写入；
// 未决和拒绝都走应答分支。
func NextAfterConfirm(state *State) Phase {
	if !state.RequiresConfirmation {
		return PhaseExecute
	}
	if state.ConfirmationGranted != nil && *state.ConfirmationGranted {
		return PhaseExecute
	}
	return PhaseRespond
}

// NextAfterExecute 决定单步执行后的走向：还有剩余步骤就继续执行。
func NextAfterExecute(state *State) Phase {
	if state.Plan == nil {
		return PhaseRespond
	}
	if state.CurrentStep < len(state.Plan.Steps) {
		return PhaseExecute
	}
	return PhaseRespond
}
