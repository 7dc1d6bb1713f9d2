// Package journal 实现动作留痕的异步管道：编排结束后把动作历史
// 投递到队列，后台处理器再写入记忆仓库。投递是尽力而为的，
// 留痕失败永远不会影响编排结果。
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	xerrors "Nova-Assistant/internal/errors"
)

// Entry 是一条待落库的动作留痕。
type Entry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	UserInput     string    `json:"user_input"`
	Intent        string    `json:"intent"`
	ResultSummary string    `json:"result_summary"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewEntry 创建带 ID 与时间戳的留痕。
func NewEntry(userID, userInput, intent, summary string) Entry {
	return Entry{
		ID:            uuid.NewString(),
		UserID:        userID,
		UserInput:     userInput,
		Intent:        intent,
		ResultSummary: summary,
		CreatedAt:     time.Now(),
	}
}

// Encode 将留痕序列化为队列消息。
func (e Entry) Encode() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化留痕失败")
	}
	return string(raw), nil
}

// DecodeEntry 从队列消息还原留痕。
func DecodeEntry(payload string) (Entry, error) {
	var entry Entry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return Entry{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析留痕失败")
	}
	return entry, nil
}

// Handler 处理来自队列的留痕消息。
type Handler func(ctx context.Context, payload string) error

// Producer 负责向队列投递留痕。
type Producer interface {
	Publish(ctx context.Context, payload string) error
	Close() error
}

// Consumer 负责从队列中消费留痕。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}
