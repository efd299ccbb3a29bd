package store

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"fanpage-server/internal/model"
)

type OutboxRepository struct {
	DB *gorm.DB
}

// insertOutbox 必须传入调用方的事务
func insertOutbox(tx *gorm.DB, event string, aggregateID, actorID uint64, extra map[string]any) error {
	body := map[string]any{
		"event_time": time.Now().UTC().Format(time.RFC3339Nano),
		"id":         aggregateID,
		"actor":      actorID,
	}
	for k, v := range extra {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tx.Create(&model.ContentOutbox{
		EventType:   event,
		AggregateID: aggregateID,
		ActorID:     actorID,
		Payload:     string(payload),
		Status:      model.OutboxPending,
	}).Error
}

// ListPending 失败且重试次数未超过 maxRetry 的记录也会被重新捞起
func (r *OutboxRepository) ListPending(ctx context.Context, batchSize, maxRetry int) ([]model.ContentOutbox, error) {
	var list []model.ContentOutbox
	if err := r.DB.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry < ?)", model.OutboxPending, model.OutboxFailed, maxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.ContentOutbox{}).Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.ContentOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}
