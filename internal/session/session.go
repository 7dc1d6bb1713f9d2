// Package session 管理用户会话：保存编排状态、记录确认挂起标记，
// 并提供按用户互斥的租约，保证同一会话同一时刻只有一个编排过程在写。
package session

import (
	"context"
	"time"

	"Nova-Assistant/internal/agent"
	xerrors "Nova-Assistant/internal/errors"
)

// CodeNoPendingConfirmation 表示恢复请求到达时会话没有挂起的确认。
const CodeNoPendingConfirmation xerrors.Code = "NO_PENDING_CONFIRMATION"

func init() {
	xerrors.Register(CodeNoPendingConfirmation, xerrors.Attributes{
		Message:   "no pending confirmation for this user",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// 预定义错误，供存储实现与接口层共用。
var (
	ErrSessionNotFound       = xerrors.New(xerrors.CodeNotFound, "会话不存在")
	ErrNoPendingConfirmation = xerrors.New(CodeNoPendingConfirmation, "该用户没有待确认的操作")
)

// Session 是单个用户的会话快照。
type Session struct {
	UserID              string       `json:"user_id"`
	State               *agent.State `json:"state,omitempty"`
	ConfirmationPending bool         `json:"confirmation_pending"`
	CreatedAt           time.Time    `json:"created_at"`
	LastUpdated         time.Time    `json:"last_updated"`
}

// Clone 返回会话的深拷贝。
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.State = s.State.Clone()
	return &clone
}

// Store 抽象了会话的持久化接口。实现必须保证读取返回的是拷贝，
// 调用方修改返回值不会影响存储内部状态。
type Store interface {
	// GetOrCreate 返回用户会话，不存在时创建一个空会话。
	GetOrCreate(ctx context.Context, userID string) (*Session, error)
	// Get 只读查询，不存在时返回 ErrSessionNotFound。
	Get(ctx context.Context, userID string) (*Session, error)
	// Save 写入最新的编排状态并刷新更新时间。
	Save(ctx context.Context, userID string, state *agent.State) error
	// MarkPending 设置或清除确认挂起标记。
	MarkPending(ctx context.Context, userID string, pending bool) error
	// Acquire 获取用户会话的独占租约，已被占用时阻塞到释放或 ctx 取消。
	Acquire(ctx context.Context, userID string) error
	// Release 释放租约。未持有时为空操作。
	Release(userID string)
	Close() error
}
