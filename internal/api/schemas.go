package api

import (
	"Nova-Assistant/internal/plan"
)

// ProcessRequest 是 POST /nova/process 的请求体。
type ProcessRequest struct {
	UserID  string         `json:"user_id"`
	Content string         `json:"content"`
	Context map[string]any `json:"context,omitempty"`
}

// ConfirmRequest 是 POST /nova/confirm 的请求体。
type ConfirmRequest struct {
	UserID  string `json:"user_id"`
	Confirm bool   `json:"confirm"`
}

// ProposedAction 描述等待确认的计划概要。
type ProposedAction struct {
	Intent      string `json:"intent"`
	RiskLevel   string `json:"risk_level"`
	Description string `json:"description"`
}

// ProcessResponse 是处理与确认接口共用的响应信封。
type ProcessResponse struct {
	Status               string            `json:"status"`
	Message              string            `json:"message"`
	ProposedAction       *ProposedAction   `json:"proposed_action,omitempty"`
	RequiresUserApproval bool              `json:"requires_user_approval,omitempty"`
	ActionsTaken         []string          `json:"actions_taken,omitempty"`
	NextSteps            []string          `json:"next_steps,omitempty"`
	Results              []plan.StepResult `json:"results,omitempty"`
}

// HistoryItem 是一条动作历史。
type HistoryItem struct {
	UserInput     string `json:"user_input"`
	Intent        string `json:"intent"`
	ResultSummary string `json:"result_summary"`
	CreatedAt     string `json:"created_at"`
}

// HistoryResponse 是 GET /nova/history 的响应体。
type HistoryResponse struct {
	UserID  string        `json:"user_id"`
	Actions []HistoryItem `json:"actions"`
}

// StatusResponse 是 GET /nova/status 的响应体。
type StatusResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp string            `json:"timestamp"`
}

// ErrorResponse 是错误信封。
type ErrorResponse struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error"`
}
