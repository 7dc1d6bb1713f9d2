package agent

import (
	"context"
	"strings"
	"time"

	xerrors "Nova-Assistant/internal/errors"
	"Nova-Assistant/internal/llm"
	"Nova-Assistant/internal/observability/metrics"
	"Nova-Assistant/internal/plan"
	"Nova-Assistant/pkg/logger"
)

// 规划阶段的错误码。两者都在本地通过兜底计划恢复，永远不会上抛给调用方。
const (
	// CodeOracleUnavailable 表示外部规划模型不可达或未配置。
	CodeOracleUnavailable xerrors.Code = "ORACLE_UNAVAILABLE"
	// CodePlanValidation 表示规划模型输出结构非法或违反工具白名单策略。
	CodePlanValidation xerrors.Code = "PLAN_VALIDATION_FAILED"
)

func init() {
	xerrors.Register(CodeOracleUnavailable, xerrors.Attributes{
		Message:   "planning oracle unavailable",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
	xerrors.Register(CodePlanValidation, xerrors.Attributes{
		Message:   "plan validation failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}

const defaultOracleTimeout = 30 * time.Second

// Planner 负责把用户输入转化为结构化计划。
// 外部模型是可选依赖：调用失败或输出非法时退回确定性的兜底计划，
// CreatePlan 因此永远不会失败。
type Planner struct {
	oracle        llm.Client
	oracleTimeout time.Duration
	catalog       plan.Catalog
}

// PlannerOption 配置 Planner 的可选参数。
type PlannerOption func(*Planner)

// WithOracleTimeout 设置单次规划调用的超时上限。
func WithOracleTimeout(timeout time.Duration) PlannerOption {
	return func(p *Planner) {
		if timeout > 0 {
			p.oracleTimeout = timeout
		}
	}
}

// WithCatalog 注入工具目录，规划请求会附带各工具的描述信息。
func WithCatalog(catalog plan.Catalog) PlannerOption {
	return func(p *Planner) {
		p.catalog = catalog
	}
}

// NewPlanner 创建规划器。oracle 允许为 nil，此时所有请求都走兜底路径。
func NewPlanner(oracle llm.Client, opts ...PlannerOption) *Planner {
	p := &Planner{
		oracle:        oracle,
		oracleTimeout: defaultOracleTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreatePlan 生成计划并保证总是返回合法结果：
// 先尝试外部模型，对其输出做结构与白名单校验，任何失败都整体丢弃并改用兜底计划。
func (p *Planner) CreatePlan(ctx context.Context, userInput string, memoryContext map[string]any) *plan.Plan {
	draft, err := p.consultOracle(ctx, userInput, memoryContext)
	if err != nil {
		logger.L().Warn("规划模型不可用，使用兜底计划",
			"error", err,
			"code", string(xerrors.CodeOf(err)))
		return observedFallback(userInput)
	}

	validated, err := validateDraft(draft)
	if err != nil {
		logger.L().Warn("规划输出校验失败，使用兜底计划",
			"error", err,
			"code", string(xerrors.CodeOf(err)))
		return observedFallback(userInput)
	}
	metrics.ObservePlan(validated.Intent, string(validated.RiskLevel), false)
	return validated
}

func observedFallback(userInput string) *plan.Plan {
	p := fallbackPlan(userInput)
	metrics.ObservePlan(p.Intent, string(p.RiskLevel), true)
	return p
}

func (p *Planner) consultOracle(ctx context.Context, userInput string, memoryContext map[string]any) (*llm.PlanDraft, error) {
	if p.oracle == nil {
		return nil, xerrors.New(CodeOracleUnavailable, "未配置规划模型")
	}

	callCtx, cancel := context.WithTimeout(ctx, p.oracleTimeout)
	defer cancel()

	allowed := plan.AllowedTools()
	descriptions := make(map[string]string, len(allowed))
	for _, tool := range allowed {
		if desc := p.catalog.Describe(tool); desc != "" {
			descriptions[tool] = desc
		}
	}

	draft, err := p.oracle.GeneratePlan(callCtx, llm.Request{
		UserInput:        userInput,
		MemoryContext:    memoryContext,
		AllowedTools:     allowed,
		ToolDescriptions: descriptions,
	})
	if err != nil {
		return nil, xerrors.Wrap(CodeOracleUnavailable, err, "规划模型调用失败")
	}
	if draft == nil {
		return nil, xerrors.New(CodeOracleUnavailable, "规划模型返回空结果")
	}
	return draft, nil
}

// validateDraft 对模型输出做结构校验：intent 非空、steps 存在、
// 每个工具都在白名单内。任何一处违规都整体作废，绝不保留部分步骤。
func validateDraft(draft *llm.PlanDraft) (*plan.Plan, error) {
	if draft.Intent == "" {
		return nil, xerrors.New(CodePlanValidation, "缺少 intent 字段")
	}
	if draft.Steps == nil {
		return nil, xerrors.New(CodePlanValidation, "缺少 steps 字段")
	}

	steps := make([]plan.Step, 0, len(draft.Steps))
	for _, s := range draft.Steps {
		if !plan.IsAllowed(s.Tool) {
			return nil, xerrors.New(CodePlanValidation, "工具不在白名单内: "+s.Tool)
		}
		args := s.Args
		if args == nil {
			args = map[string]any{}
		}
		steps = append(steps, plan.Step{Tool: s.Tool, Args: args})
	}

	return &plan.Plan{
		Intent:    draft.Intent,
		RiskLevel: plan.NormalizeRiskLevel(draft.RiskLevel),
		Steps:     steps,
	}, nil
}

// fallbackPlan 基于关键词生成确定性计划。对任意输入（包括空串）都有定义，
// 且只引用白名单内的工具。
func fallbackPlan(userInput string) *plan.Plan {
	text := strings.ToLower(userInput)
	if strings.Contains(text, "schedule") && strings.Contains(text, "email") {
		return &plan.Plan{
			Intent:    "schedule_and_email",
			RiskLevel: plan.RiskHigh,
			Steps: []plan.Step{
				{
					Tool: "calendar.create_event",
					Args: map[string]any{
						"title":      "Planned meeting",
						"start_time": "2026-01-01T10:00:00",
						"end_time":   "2026-01-01T10:30:00",
					},
				},
				{
					Tool: "gmail.send_email",
					Args: map[string]any{
						"to":      "team@example.com",
						"subject": "Meeting agenda",
						"body":    "Sharing the agenda for our planned meeting.",
					},
				},
			},
		}
	}

	return &plan.Plan{
		Intent:    "general_assist",
		RiskLevel: plan.RiskLow,
		Steps: []plan.Step{
			{Tool: "sentiment.analyze_text", Args: map[string]any{"text": userInput}},
		},
	}
}
