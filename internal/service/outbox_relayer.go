package service

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"fanpage-server/internal/model"
	"fanpage-server/internal/pkg"
	"fanpage-server/internal/repository/store"
)

// Sender 投递单条 outbox 记录，返回 error 时记录会被标记失败并重试
type Sender func(ctx context.Context, ob *model.ContentOutbox) error

type OutboxRelayer struct {
	repo      *store.OutboxRepository
	sender    Sender
	interval  time.Duration
	batchSize int
	maxRetry  int
	logger    *slog.Logger
}

func NewOutboxRelayer(db *gorm.DB, sender Sender, interval time.Duration, logger *slog.Logger) *OutboxRelayer {
	return &OutboxRelayer{
		repo:      &store.OutboxRepository{DB: db},
		sender:    sender,
		interval:  interval,
		batchSize: 100,
		maxRetry:  5,
		logger:    pkg.ResolveLogger(logger),
	}
}

// Run outbox启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.drainOnce(ctx)
		}
	}
}

// drainOnce 按 id 顺序投递一批，返回成功条数
func (r *OutboxRelayer) drainOnce(ctx context.Context) int {
	rows, err := r.repo.ListPending(ctx, r.batchSize, r.maxRetry)
	if err != nil {
		r.logger.ErrorContext(ctx, "outbox query failed", "err", err)
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err := r.sender(ctx, &ob); err != nil {
			r.logger.WarnContext(ctx, "outbox send failed", "outbox_id", ob.ID, "event", ob.EventType, "retry", ob.Retry, "err", err)
			_ = r.repo.MarkFailed(ctx, ob.ID)
			continue
		}
		if err := r.repo.MarkSent(ctx, ob.ID); err != nil {
			r.logger.WarnContext(ctx, "outbox mark sent failed", "outbox_id", ob.ID, "err", err)
			continue
		}
		sent++
	}
	return sent
}

// LogSender 没有配置 Kafka 时使用，只打日志
func LogSender(logger *slog.Logger) Sender {
	logger = pkg.ResolveLogger(logger)
	return func(ctx context.Context, ob *model.ContentOutbox) error {
		logger.InfoContext(ctx, "outbox event",
			"event", ob.EventType, "aggregate_id", ob.AggregateID, "actor_id", ob.ActorID, "payload", ob.Payload)
		return nil
	}
}

type publisher interface {
	Publish(ctx context.Context, key, eventType string, value []byte) error
}

// KafkaSender 以聚合 id 作为消息 key
func KafkaSender(producer publisher) Sender {
	return func(ctx context.Context, ob *model.ContentOutbox) error {
		return producer.Publish(ctx, pkg.MakeKeyFromID(ob.AggregateID), ob.EventType, []byte(ob.Payload))
	}
}
