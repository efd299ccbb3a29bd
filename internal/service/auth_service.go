package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fanpage-server/internal/model"
	"fanpage-server/internal/repository/store"
)

type AuthService struct {
	users *store.UserRepository
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{users: &store.UserRepository{DB: db}}
}

// ResolveActor 只读；requiredRole 为空时只校验用户存在，admin 满足任何角色要求
func (s *AuthService) ResolveActor(ctx context.Context, actorID uint64, requiredRole model.Role) (*model.User, error) {
	if actorID == 0 {
		return nil, Unauthorized("Unauthorized: User ID missing.")
	}
	user, err := s.users.FindByID(ctx, actorID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Unauthorized: User not found.")
	}
	if err != nil {
		return nil, err
	}
	if requiredRole != "" && user.Role != requiredRole && user.Role != model.RoleAdmin {
		return nil, Forbidden("Forbidden: Insufficient role.")
	}
	return user, nil
}

// canModify 作者本人或 admin/moderator
func canModify(actor *model.User, authorID uint64) bool {
	return actor.ID == authorID || actor.Role.Elevated()
}

// Viewer 读接口的调用方，决定未审核内容是否可见
type Viewer struct {
	ID   uint64
	Role model.Role
}

// ResolveViewer 有身份时以库里的角色为准；claimedRole 只在没有身份时使用
func (s *AuthService) ResolveViewer(ctx context.Context, viewerID uint64, claimedRole model.Role) (Viewer, error) {
	if viewerID == 0 {
		if claimedRole.Valid() {
			return Viewer{Role: claimedRole}, nil
		}
		return Viewer{}, nil
	}
	user, err := s.users.FindByID(ctx, viewerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Viewer{}, nil
	}
	if err != nil {
		return Viewer{}, err
	}
	return Viewer{ID: user.ID, Role: user.Role}, nil
}
