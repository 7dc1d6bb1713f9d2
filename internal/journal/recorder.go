package journal

import (
	"context"
	"time"

	"Nova-Assistant/pkg/logger"
)

// Recorder 是留痕的投递门面。投递失败只记日志，调用方不感知。
type Recorder struct {
	producer Producer
	timeout  time.Duration
}

// NewRecorder 创建投递门面。
func NewRecorder(producer Producer) *Recorder {
	return &Recorder{
		producer: producer,
		timeout:  5 * time.Second,
	}
}

// Record 投递一条留痕。
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.producer == nil {
		return
	}
	payload, err := entry.Encode()
	if err != nil {
		logger.L().Warn("留痕编码失败", "entry_id", entry.ID, "error", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.producer.Publish(publishCtx, payload); err != nil {
		logger.L().Warn("留痕投递失败", "entry_id", entry.ID, "error", err)
	}
}

// ForUser 返回绑定用户的记录器，适配编排器的动作留痕接口。
func (r *Recorder) ForUser(userID string) *UserRecorder {
	return &UserRecorder{recorder: r, userID: userID}
}

// UserRecorder 把编排器的 LogAction 调用转成带用户信息的留痕。
type UserRecorder struct {
	recorder *Recorder
	userID   string
}

// LogAction 实现 agent.ActionLogger。
func (u *UserRecorder) LogAction(ctx context.Context, userInput, intent, summary string) {
	if u == nil || u.recorder == nil {
		return
	}
	u.recorder.Record(ctx, NewEntry(u.userID, userInput, intent, summary))
}
