package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fanpage-server/internal/model"
)

type PostLikeRepository struct {
	DB *gorm.DB
}

// LikeCountReconcilerRepo 点赞计数对账
type LikeCountReconcilerRepo struct {
	DB *gorm.DB
}

// CountPair 对账用的帖子计数
type CountPair struct {
	ID        uint64
	LikeCount int64
}

const recountExpr = "(SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = ?)"

// Toggle 根据是否已点赞切换状态。整个过程在一个事务里完成：先锁帖子行，
// 再删除或插入点赞记录，最后用点赞行数重算计数，保证 like_count == |likedBy|。
func (r *PostLikeRepository) Toggle(ctx context.Context, userID, postID uint64) (liked bool, likes int64, err error) {
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post model.Post
		// select for update 串行化同一帖子的并发切换，sqlite 会忽略该子句
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&post, postID).Error; err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&model.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		liked = res.RowsAffected == 0
		if liked {
			if err := tx.Create(&model.PostLike{UserID: userID, PostID: postID}).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&model.Post{}).
			Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr(recountExpr, postID)).Error; err != nil {
			return err
		}
		var counts []int64
		if err := tx.Model(&model.Post{}).Where("id = ?", postID).Pluck("like_count", &counts).Error; err != nil {
			return err
		}
		if len(counts) == 1 {
			likes = counts[0]
		}

		event := model.EventPostUnliked
		if liked {
			event = model.EventPostLiked
		}
		return insertOutbox(tx, event, postID, userID, map[string]any{"likes": likes})
	})
	return liked, likes, err
}

func (r *PostLikeRepository) IsLiked(ctx context.Context, userID, postID uint64) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&model.PostLike{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	return count > 0, err
}

func (r *PostLikeRepository) GetLikeCount(ctx context.Context, postID uint64) (int64, error) {
	var p model.Post
	err := r.DB.WithContext(ctx).Select("id", "like_count").First(&p, postID).Error
	if err != nil {
		return 0, err
	}
	return p.Likes, nil
}

// ReconcileList 按 id 游标批量读取帖子计数
func (r *LikeCountReconcilerRepo) ReconcileList(ctx context.Context, batchSize int, lastID uint64) ([]CountPair, uint64, error) {
	var list []CountPair
	if err := r.DB.WithContext(ctx).Model(&model.Post{}).
		Select("id", "like_count").
		Where("id > ?", lastID).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, lastID, err
	}
	if len(list) == 0 {
		return nil, lastID, nil
	}
	return list, list[len(list)-1].ID, nil
}

// RealLikes 点赞表里的真实数量
func (r *LikeCountReconcilerRepo) RealLikes(ctx context.Context, postID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.PostLike{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}

// Recount 用点赞行数覆盖计数
func (r *LikeCountReconcilerRepo) Recount(ctx context.Context, postID uint64) error {
	return r.DB.WithContext(ctx).Model(&model.Post{}).Where("id = ?", postID).
		UpdateColumn("like_count", gorm.Expr(recountExpr, postID)).Error
}
