package llm

import "context"

// Request 描述发送给规划服务的上下文。
// ToolDescriptions 为白名单工具补充展示信息，缺省为空。
type Request struct {
	UserInput        string
	MemoryContext    map[string]any
	AllowedTools     []string
	ToolDescriptions map[string]string
}

// StepDraft 是规划服务返回的单个步骤，尚未经过校验。
type StepDraft struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// PlanDraft 是规划服务返回的结构化草案。
// 字段是否合法由调用方负责校验，规划服务本身不保证类型正确。
type PlanDraft struct {
	Intent    string      `json:"intent"`
	RiskLevel string      `json:"risk_level"`
	Steps     []StepDraft `json:"steps"`
}

// Client 定义了调用规划服务的统一接口。
type Client interface {
	GeneratePlan(ctx context.Context, req Request) (*PlanDraft, error)
}
