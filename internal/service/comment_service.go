package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"fanpage-server/internal/model"
	"fanpage-server/internal/repository/store"
)

type CommentService struct {
	repo  *store.CommentRepository
	posts *store.PostRepository
	auth  *AuthService
}

func NewCommentService(db *gorm.DB, auth *AuthService) *CommentService {
	return &CommentService{
		repo:  &store.CommentRepository{DB: db},
		posts: &store.PostRepository{DB: db},
		auth:  auth,
	}
}

func (s *CommentService) Create(ctx context.Context, postID, actorID uint64, content string) (*model.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, BadRequest("Comment content is required")
	}
	actor, err := s.auth.ResolveActor(ctx, actorID, "")
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.FindByID(ctx, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Post not found")
		}
		return nil, err
	}

	comment := &model.Comment{Content: content, AuthorID: actor.ID, PostID: postID}
	if err := s.repo.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.Author = &model.UserBrief{ID: actor.ID, Username: actor.Username}
	return comment, nil
}

// ListByPost 帖子不存在时返回空列表
func (s *CommentService) ListByPost(ctx context.Context, postID uint64) ([]model.Comment, error) {
	return s.repo.ListByPost(ctx, postID)
}

func (s *CommentService) Update(ctx context.Context, commentID, actorID uint64, content string) (*model.Comment, error) {
	comment, err := s.findComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	actor, err := s.auth.ResolveActor(ctx, actorID, "")
	if err != nil {
		return nil, err
	}
	if !canModify(actor, comment.AuthorID) {
		return nil, Forbidden("Forbidden: You are not authorized to edit this comment.")
	}
	if strings.TrimSpace(content) == "" {
		return nil, BadRequest("Comment content is required")
	}

	if err := s.repo.UpdateContent(ctx, comment.ID, actor.ID, content); err != nil {
		return nil, err
	}
	return s.findComment(ctx, comment.ID)
}

func (s *CommentService) Delete(ctx context.Context, commentID, actorID uint64) error {
	comment, err := s.findComment(ctx, commentID)
	if err != nil {
		return err
	}
	actor, err := s.auth.ResolveActor(ctx, actorID, "")
	if err != nil {
		return err
	}
	if !canModify(actor, comment.AuthorID) {
		return Forbidden("Forbidden: You are not authorized to delete this comment.")
	}
	return s.repo.Delete(ctx, comment.ID, actor.ID)
}

func (s *CommentService) findComment(ctx context.Context, id uint64) (*model.Comment, error) {
	comment, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Comment not found")
	}
	if err != nil {
		return nil, err
	}
	return comment, nil
}
