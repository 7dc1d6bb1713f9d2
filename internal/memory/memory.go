// Package memory 维护助手的长期记忆：用户偏好等键值记忆，
// 以及每轮编排留下的动作历史。规划器用它拼装 memory_context。
package memory

import (
	"context"
	"time"
)

// MemoryRecord 是一条按 (category, key) 唯一的键值记忆。
type MemoryRecord struct {
	Category  string         `json:"category"`
	Key       string         `json:"key"`
	Value     map[string]any `json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ActionRecord 是一条动作历史。
type ActionRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	UserInput     string    `json:"user_input"`
	Intent        string    `json:"intent"`
	ResultSummary string    `json:"result_summary"`
	CreatedAt     time.Time `json:"created_at"`
}

// Repository 抽象了记忆与动作历史的持久化接口。
type Repository interface {
	// SaveAction 追加一条动作历史。
	SaveAction(ctx context.Context, record ActionRecord) error
	// RecentActions 按时间倒序返回最近的动作历史。
	RecentActions(ctx context.Context, userID string, limit int) ([]ActionRecord, error)
	// UpsertMemory 写入或覆盖一条键值记忆。
	UpsertMemory(ctx context.Context, record MemoryRecord) error
	// GetMemory 返回指定记忆，不存在时返回 (nil, nil)。
	GetMemory(ctx context.Context, category, key string) (*MemoryRecord, error)
	// ListCategory 按更新时间倒序返回分类下的记忆。
	ListCategory(ctx context.Context, category string, limit int) ([]MemoryRecord, error)
	Close() error
}
