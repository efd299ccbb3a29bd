package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"fanpage-server/internal/model"
	"fanpage-server/internal/pkg"
	"fanpage-server/internal/policy"
	"fanpage-server/internal/repository/store"
)

// LikeCache 点赞计数缓存，未配置 Redis 时为 nil
type LikeCache interface {
	GetLikeCountCached(ctx context.Context, postID uint64) (int64, bool, error)
	SetLikeCount(ctx context.Context, postID uint64, cnt int64) error
	DeleteCount(ctx context.Context, postID uint64, delay ...time.Duration) error
}

type PostService struct {
	repo    *store.PostRepository
	auth    *AuthService
	cache   LikeCache
	metrics *contentMetrics
	logger  *slog.Logger
}

func NewPostService(db *gorm.DB, auth *AuthService, cache LikeCache, logger *slog.Logger) *PostService {
	return &PostService{
		repo:    &store.PostRepository{DB: db},
		auth:    auth,
		cache:   cache,
		metrics: newContentMetrics(),
		logger:  pkg.ResolveLogger(logger),
	}
}

type CreatePostInput struct {
	Title    string
	Content  string
	Category *model.Category
	Approved *bool
}

// UpdatePostInput 空字符串和 nil 表示不修改
type UpdatePostInput struct {
	Title    string
	Content  string
	Category *model.Category
	Approved *bool
}

type ListPostsInput struct {
	Category model.Category
	AuthorID uint64
}

func (s *PostService) Create(ctx context.Context, actorID uint64, in CreatePostInput) (*model.Post, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, BadRequest("Title and content are required")
	}
	actor, err := s.auth.ResolveActor(ctx, actorID, "")
	if err != nil {
		return nil, err
	}

	d, err := s.decide(ctx, actor.Role, policy.ModeCreate, in.Category, in.Approved)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		Title:      in.Title,
		Content:    in.Content,
		AuthorID:   actor.ID,
		Category:   d.Category,
		IsApproved: d.Approved,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "post created",
		"post_id", post.ID, "author_id", actor.ID, "category", post.Category, "approved", post.IsApproved)
	return s.repo.FindDetail(ctx, post.ID)
}

// List 默认只返回已审核的帖子，admin/moderator 可以看到全部
func (s *PostService) List(ctx context.Context, in ListPostsInput, viewer Viewer) ([]model.Post, error) {
	list, err := s.repo.List(ctx, store.PostFilter{
		Category:     in.Category,
		AuthorID:     in.AuthorID,
		OnlyApproved: !viewer.Role.Elevated(),
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Post{}
	}
	return list, nil
}

func (s *PostService) Get(ctx context.Context, postID uint64) (*model.Post, error) {
	post, err := s.repo.FindDetail(ctx, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Post not found")
	}
	return post, err
}

func (s *PostService) Update(ctx context.Context, postID, actorID uint64, in UpdatePostInput) (*model.Post, error) {
	post, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	actor, err := s.auth.ResolveActor(ctx, actorID, "")
	if err != nil {
		return nil, err
	}
	if !canModify(actor, post.AuthorID) {
		return nil, Forbidden("Forbidden: You are not authorized to update this post.")
	}

	d, err := s.decide(ctx, actor.Role, policy.ModeUpdate, in.Category, in.Approved)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": time.Now()}
	if in.Title != "" {
		fields["title"] = in.Title
	}
	if in.Content != "" {
		fields["content"] = in.Content
	}
	if d.CategorySet {
		fields["category"] = d.Category
	}
	if d.ApprovedSet {
		fields["is_approved"] = d.Approved
	}
	if err := s.repo.Update(ctx, post.ID, actor.ID, fields); err != nil {
		return nil, err
	}
	return s.repo.FindDetail(ctx, post.ID)
}

// Delete 帖子、评论、点赞在同一个事务里删除
func (s *PostService) Delete(ctx context.Context, postID, actorID uint64) error {
	post, err := s.findPost(ctx, postID)
	if err != nil {
		return err
	}
	actor, err := s.auth.ResolveActor(ctx, actorID, "")
	if err != nil {
		return err
	}
	if !canModify(actor, post.AuthorID) {
		return Forbidden("Forbidden: You are not authorized to delete this post.")
	}

	if err := s.repo.DeleteCascade(ctx, post.ID, actor.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFound("Post not found")
		}
		return err
	}
	if s.cache != nil {
		if err := s.cache.DeleteCount(ctx, post.ID); err != nil {
			s.logger.WarnContext(ctx, "drop like count cache failed", "post_id", post.ID, "err", err)
		}
	}
	s.logger.InfoContext(ctx, "post deleted", "post_id", post.ID, "actor_id", actor.ID)
	return nil
}

// Search 普通用户只能搜到已审核的帖子
func (s *PostService) Search(ctx context.Context, q string, viewer Viewer) ([]model.Post, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, BadRequest("Search query (q) is required.")
	}
	list, err := s.repo.Search(ctx, q, !viewer.Role.Elevated())
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Post{}
	}
	return list, nil
}

// ListPending 审核队列，仅 moderator/admin
func (s *PostService) ListPending(ctx context.Context, actorID uint64) ([]model.Post, error) {
	if _, err := s.auth.ResolveActor(ctx, actorID, model.RoleModerator); err != nil {
		return nil, err
	}
	list, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Post{}
	}
	return list, nil
}

func (s *PostService) findPost(ctx context.Context, postID uint64) (*model.Post, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Post not found")
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) decide(ctx context.Context, role model.Role, mode policy.Mode, category *model.Category, approved *bool) (policy.Decision, error) {
	d, err := policy.Decide(policy.Request{Category: category, Approved: approved, Role: role, Mode: mode})
	s.metrics.decision(ctx, role, mode, d, err)
	switch {
	case err == nil:
		return d, nil
	case policy.IsForbidden(err):
		return d, Forbidden("%s", err.Error())
	case errors.Is(err, policy.ErrInvalidCategory):
		return d, BadRequest("Invalid category")
	default:
		return d, err
	}
}
