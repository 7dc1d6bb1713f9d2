package plan

import (
	"strings"

	xerrors "Nova-Assistant/internal/errors"
)

// RiskLevel 表示计划的风险等级。
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// NormalizeRiskLevel 将任意字符串归一化为合法的风险等级。
// 不在枚举范围内的值一律按 medium 处理。
func NormalizeRiskLevel(raw string) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case RiskLow:
		return RiskLow
	case RiskMedium:
		return RiskMedium
	case RiskHigh:
		return RiskHigh
	default:
		return RiskMedium
	}
}

// Step 描述计划中的单个工具调用，创建后不再修改。
type Step struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// Plan 是一次编排请求生成的执行计划。重新规划时整体替换，不做原地修改。
type Plan struct {
	Intent    string    `json:"intent"`
	RiskLevel RiskLevel `json:"risk_level"`
	Steps     []Step    `json:"steps"`
}

// Empty 判断计划是否没有任何可执行步骤。
func (p *Plan) Empty() bool {
	return p == nil || len(p.Steps) == 0
}

// RequiresConfirmation 判断计划是否需要用户确认。
// 只要任意一步命中敏感工具，整个计划都会被拦截，包括其中的非敏感步骤。
func (p *Plan) RequiresConfirmation() bool {
	if p == nil {
		return false
	}
	for _, step := range p.Steps {
		if IsRisky(step) {
			return true
		}
	}
	return false
}

// StepResult 记录单个步骤的执行结果，Result 与 Error 二者有且仅有一个被填充。
type StepResult struct {
	StepIndex   int            `json:"step_index"`
	Tool        string         `json:"tool"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	ExecutionMS float64        `json:"execution_ms,omitempty"`
}

// SplitTool 将 "<tool>.<action>" 形式的工具标识在第一个分隔符处拆开。
func SplitTool(ref string) (tool, action string, err error) {
	idx := strings.Index(ref, ".")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", xerrors.New(xerrors.CodeInvalidArgument, "工具标识缺少 action 部分: "+ref)
	}
	return ref[:idx], ref[idx+1:], nil
}
