package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fanpage-server/internal/pkg"
	"fanpage-server/internal/repository/store"
)

// Locker 计数回源锁，token 用来保证只释放自己持有的锁
type Locker interface {
	Acquire(ctx context.Context, postID uint64, token string) (bool, error)
	Release(ctx context.Context, postID uint64, token string) error
}

const (
	lockBackoff      = 50 * time.Millisecond
	cacheDeleteDelay = 200 * time.Millisecond
)

type LikeService struct {
	repo    *store.PostLikeRepository
	auth    *AuthService
	cache   LikeCache
	lock    Locker
	metrics *contentMetrics
	logger  *slog.Logger
}

// NewLikeService cache 和 lock 需要同时提供，任一为 nil 时直接读库
func NewLikeService(db *gorm.DB, auth *AuthService, cache LikeCache, lock Locker, logger *slog.Logger) *LikeService {
	s := &LikeService{
		repo:    &store.PostLikeRepository{DB: db},
		auth:    auth,
		metrics: newContentMetrics(),
		logger:  pkg.ResolveLogger(logger),
	}
	if cache != nil && lock != nil {
		s.cache = cache
		s.lock = lock
	}
	return s
}

type ToggleResult struct {
	Liked bool
	Likes int64
}

// Toggle 非幂等：同一用户连续调用两次等于没有调用
func (s *LikeService) Toggle(ctx context.Context, postID, actorID uint64) (*ToggleResult, error) {
	actor, err := s.auth.ResolveActor(ctx, actorID, "")
	if err != nil {
		return nil, err
	}

	liked, likes, err := s.repo.Toggle(ctx, actor.ID, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Post not found")
	}
	if err != nil {
		return nil, err
	}
	s.metrics.toggle(ctx, liked)
	s.refreshCache(ctx, postID)
	return &ToggleResult{Liked: liked, Likes: likes}, nil
}

// Count 先读缓存，miss 时只有拿到锁的请求回源
func (s *LikeService) Count(ctx context.Context, postID uint64) (int64, error) {
	if s.cache == nil {
		return s.countFromDB(ctx, postID)
	}
	if v, ok, err := s.cache.GetLikeCountCached(ctx, postID); err == nil && ok {
		return v, nil
	}

	token := uuid.NewString()
	got, _ := s.lock.Acquire(ctx, postID, token)
	if got {
		defer func() {
			if err := s.lock.Release(ctx, postID, token); err != nil {
				s.logger.WarnContext(ctx, "release like lock failed", "post_id", postID, "err", err)
			}
		}()
		// double check
		if v, ok, err := s.cache.GetLikeCountCached(ctx, postID); err == nil && ok {
			return v, nil
		}
		v, err := s.countFromDB(ctx, postID)
		if err != nil {
			return 0, err
		}
		_ = s.cache.SetLikeCount(ctx, postID, v)
		return v, nil
	}

	// 没拿到锁，短暂退避后再读一次缓存
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(lockBackoff):
	}
	if v, ok, err := s.cache.GetLikeCountCached(ctx, postID); err == nil && ok {
		return v, nil
	}
	return s.countFromDB(ctx, postID)
}

// refreshCache 持锁后回读库里的计数写入缓存，拿不到锁或失败则删 key 交给读侧回填
func (s *LikeService) refreshCache(ctx context.Context, postID uint64) {
	if s.cache == nil {
		return
	}
	token := uuid.NewString()
	got, _ := s.lock.Acquire(ctx, postID, token)
	if got {
		defer func() { _ = s.lock.Release(ctx, postID, token) }()
		likes, err := s.repo.GetLikeCount(ctx, postID)
		if err == nil && s.cache.SetLikeCount(ctx, postID, likes) == nil {
			return
		}
	}
	if err := s.cache.DeleteCount(ctx, postID, cacheDeleteDelay); err != nil {
		s.logger.WarnContext(ctx, "drop like count cache failed", "post_id", postID, "err", err)
	}
}

func (s *LikeService) countFromDB(ctx context.Context, postID uint64) (int64, error) {
	v, err := s.repo.GetLikeCount(ctx, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, NotFound("Post not found")
	}
	return v, err
}
