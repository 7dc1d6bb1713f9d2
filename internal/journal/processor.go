package journal

import (
	"context"
	"time"

	xerrors "Nova-Assistant/internal/errors"
	"Nova-Assistant/internal/memory"
	"Nova-Assistant/internal/observability/alerting"
	"Nova-Assistant/pkg/logger"
)

// Processor 消费留痕队列并写入记忆仓库。写库失败只记日志并告警，
// 消息照常确认，坏消息不会在队列里循环。
type Processor struct {
	queue   Consumer
	repo    memory.Repository
	alerts  alerting.Dispatcher
	workers int
}

// ProcessorOption 配置处理器的可选参数。
type ProcessorOption func(*Processor)

// WithWorkers 设置消费协程数量。
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithAlerts 注入告警分发器。
func WithAlerts(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerts = dispatcher
	}
}

// NewProcessor 创建留痕处理器。
func NewProcessor(queue Consumer, repo memory.Repository, opts ...ProcessorOption) *Processor {
	p := &Processor{
		queue:   queue,
		repo:    repo,
		workers: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run 阻塞消费队列，直到 ctx 取消或队列关闭。
func (p *Processor) Run(ctx context.Context) error {
	return p.queue.Consume(ctx, p.workers, p.handle)
}

func (p *Processor) handle(ctx context.Context, payload string) error {
	entry, err := DecodeEntry(payload)
	if err != nil {
		logger.L().Warn("丢弃无法解析的留痕消息", "error", err)
		return nil
	}

	record := memory.ActionRecord{
		ID:            entry.ID,
		UserID:        entry.UserID,
		UserInput:     entry.UserInput,
		Intent:        entry.Intent,
		ResultSummary: entry.ResultSummary,
		CreatedAt:     entry.CreatedAt,
	}
	if err := p.repo.SaveAction(ctx, record); err != nil {
		logger.L().Error("留痕写入仓库失败",
			"entry_id", entry.ID,
			"user_id", entry.UserID,
			"error", err)
		p.alert(ctx, entry, err)
	}
	return nil
}

func (p *Processor) alert(ctx context.Context, entry Entry, cause error) {
	if p.alerts == nil {
		return
	}
	event := alerting.Event{
		Code:       xerrors.CodeOf(cause),
		Message:    cause.Error(),
		Severity:   xerrors.SeverityOf(cause),
		UserID:     entry.UserID,
		EntryID:    entry.ID,
		OccurredAt: time.Now(),
	}
	if err := p.alerts.Notify(ctx, event); err != nil {
		logger.L().Warn("留痕告警发送失败", "entry_id", entry.ID, "error", err)
	}
}
