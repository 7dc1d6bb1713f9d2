package memory

import (
	"context"

	"Nova-Assistant/pkg/logger"
)

// ContextBuilder 把仓库中的记忆拼装成规划器使用的 memory_context。
// 任何一类记忆读取失败都只记日志并跳过，永远不会让整轮请求失败。
type ContextBuilder struct {
	repo Repository
}

// NewContextBuilder 创建上下文构建器。
func NewContextBuilder(repo Repository) *ContextBuilder {
	return &ContextBuilder{repo: repo}
}

// BuildContext 汇总常用联系人、语气偏好、饮食偏好与最近动作。
func (b *ContextBuilder) BuildContext(ctx context.Context, userID string) map[string]any {
	result := map[string]any{}
	if b == nil || b.repo == nil {
		return result
	}

	if contacts, err := b.repo.ListCategory(ctx, "contacts", 5); err != nil {
		logger.L().Warn("读取常用联系人失败", "error", err)
	} else if len(contacts) > 0 {
		values := make([]map[string]any, 0, len(contacts))
		for _, record := range contacts {
			values = append(values, record.Value)
		}
		result["frequent_contacts"] = values
	}

	if tone, err := b.repo.GetMemory(ctx, "preferences", "tone_preference"); err != nil {
		logger.L().Warn("读取语气偏好失败", "error", err)
	} else if tone != nil {
		result["tone_preference"] = tone.Value
	}

	if food, err := b.repo.GetMemory(ctx, "preferences", "food_preferences"); err != nil {
		logger.L().Warn("读取饮食偏好失败", "error", err)
	} else if food != nil {
		result["food_preferences"] = food.Value
	}

	if actions, err := b.repo.RecentActions(ctx, userID, 10); err != nil {
		logger.L().Warn("读取动作历史失败", "error", err)
	} else if len(actions) > 0 {
		values := make([]map[string]any, 0, len(actions))
		for _, record := range actions {
			values = append(values, map[string]any{
				"user_input":     record.UserInput,
				"intent":         record.Intent,
				"result_summary": record.ResultSummary,
			})
		}
		result["recent_actions"] = values
	}

	return result
}
