package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"fanpage-server/internal/model"
)

type CommentRepository struct {
	DB *gorm.DB
}

func (r *CommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author").Create(comment).Error; err != nil {
			return err
		}
		return insertOutbox(tx, model.EventCommentCreated, comment.ID, comment.AuthorID, map[string]any{
			"post_id": comment.PostID,
		})
	})
}

func (r *CommentRepository) FindByID(ctx context.Context, id uint64) (*model.Comment, error) {
	var comment model.Comment
	err := r.DB.WithContext(ctx).First(&comment, id).Error
	return &comment, err
}

// ListByPost 按创建时间正序，作者只带用户名
func (r *CommentRepository) ListByPost(ctx context.Context, postID uint64) ([]model.Comment, error) {
	list := []model.Comment{}
	err := r.DB.WithContext(ctx).
		Preload("Author", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "username")
		}).
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *CommentRepository) UpdateContent(ctx context.Context, id, actorID uint64, content string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Comment{}).Where("id = ?", id).Updates(map[string]any{
			"content":    content,
			"updated_at": time.Now(),
		}).Error; err != nil {
			return err
		}
		return insertOutbox(tx, model.EventCommentUpdated, id, actorID, nil)
	})
}

func (r *CommentRepository) Delete(ctx context.Context, id, actorID uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.Comment{}, id).Error; err != nil {
			return err
		}
		return insertOutbox(tx, model.EventCommentDeleted, id, actorID, nil)
	})
}
