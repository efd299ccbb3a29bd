package service

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"fanpage-server/internal/pkg"
	"fanpage-server/internal/repository/store"
)

// LikeCountReconciler 定期用点赞表校准 posts.like_count
type LikeCountReconciler struct {
	repo      *store.LikeCountReconcilerRepo
	cache     LikeCache
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewLikeCountReconciler(db *gorm.DB, cache LikeCache, interval time.Duration, logger *slog.Logger) *LikeCountReconciler {
	return &LikeCountReconciler{
		repo:      &store.LikeCountReconcilerRepo{DB: db},
		cache:     cache,
		interval:  interval,
		batchSize: 500,
		logger:    pkg.ResolveLogger(logger),
	}
}

// ReconcilerRun 对账定时任务启动器
func (r *LikeCountReconciler) ReconcilerRun(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.reconcileOnce(ctx)
		}
	}
}

// reconcileOnce 按 id 游标扫完整张表，返回修正的帖子数
func (r *LikeCountReconciler) reconcileOnce(ctx context.Context) int {
	var (
		lastID uint64
		fixed  int
	)
	for {
		list, next, err := r.repo.ReconcileList(ctx, r.batchSize, lastID)
		if err != nil {
			r.logger.ErrorContext(ctx, "reconcile list failed", "last_id", lastID, "err", err)
			return fixed
		}
		if len(list) == 0 {
			return fixed
		}
		for _, p := range list {
			actual, err := r.repo.RealLikes(ctx, p.ID)
			if err != nil {
				continue
			}
			if actual == p.LikeCount {
				continue
			}
			if err := r.repo.Recount(ctx, p.ID); err != nil {
				r.logger.WarnContext(ctx, "recount failed", "post_id", p.ID, "err", err)
				continue
			}
			if r.cache != nil {
				_ = r.cache.DeleteCount(ctx, p.ID)
			}
			r.logger.InfoContext(ctx, "like count repaired", "post_id", p.ID, "stored", p.LikeCount, "actual", actual)
			fixed++
		}
		lastID = next
	}
}
