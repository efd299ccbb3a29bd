package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"fanpage-server/internal/model"
	"fanpage-server/internal/pkg"
	"fanpage-server/internal/repository/store"
)

// TokenStore 登录态在 Redis 里的存储，未配置 Redis 时为 nil
type TokenStore interface {
	AddUserToken(ctx context.Context, userID uint64, token string) error
	GetUserToken(ctx context.Context, userID uint64) (string, error)
	ExtendUserToken(ctx context.Context, userID uint64) error
	DeleteUserToken(ctx context.Context, userID uint64) error
}

type UserService struct {
	repo      *store.UserRepository
	posts     *store.PostRepository
	issuer    *pkg.TokenIssuer
	tokens    TokenStore
	openRoles bool
	logger    *slog.Logger
}

type UserServiceOptions struct {
	Issuer *pkg.TokenIssuer
	Tokens TokenStore
	// OpenRoleRegistration 为 false 时注册请求里的 role 被忽略
	OpenRoleRegistration bool
	Logger               *slog.Logger
}

func NewUserService(db *gorm.DB, opts UserServiceOptions) *UserService {
	return &UserService{
		repo:      &store.UserRepository{DB: db},
		posts:     &store.PostRepository{DB: db},
		issuer:    opts.Issuer,
		tokens:    opts.Tokens,
		openRoles: opts.OpenRoleRegistration,
		logger:    pkg.ResolveLogger(opts.Logger),
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

type LoginResult struct {
	User   *model.User
	Tokens *pkg.Pair
}

type Profile struct {
	User  *model.User  `json:"user"`
	Posts []model.Post `json:"posts"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if username == "" || email == "" || in.Password == "" {
		return nil, BadRequest("Please enter all fields")
	}

	role := model.RoleUser
	if in.Role != "" && s.openRoles {
		role = model.Role(in.Role)
		if !role.Valid() {
			return nil, BadRequest("Invalid role")
		}
	}

	exists, err := s.repo.ExistsEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, Conflict("User already exists with this email.")
	}
	exists, err = s.repo.ExistsUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, Conflict("Username already taken.")
	}

	hash, err := pkg.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username: username,
		Email:    email,
		Password: hash,
		Role:     role,
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// create 并发注册时前置检查可能都通过，由唯一索引兜底
func (s *UserService) create(ctx context.Context, user *model.User) error {
	err := s.repo.Create(ctx, user)
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	if taken, _ := s.repo.ExistsUsername(ctx, user.Username); taken {
		return Conflict("Username already taken.")
	}
	return Conflict("User already exists with this email.")
}

// Login 邮箱不存在和密码错误返回同一个提示
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, BadRequest("Invalid Credentials")
	}
	if err != nil {
		return nil, err
	}
	if !pkg.CheckPassword(user.Password, password) {
		return nil, BadRequest("Invalid Credentials")
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: pair}, nil
}

// Refresh 重新读取用户，角色变更在下一次刷新时生效
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, Unauthorized("invalid or expired refresh token")
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Unauthorized("invalid or expired refresh token")
	}
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *UserService) Logout(ctx context.Context, userID uint64) error {
	if s.tokens == nil {
		return nil
	}
	return s.tokens.DeleteUserToken(ctx, userID)
}

// GetProfile 未审核的帖子只对本人和 admin/moderator 可见
func (s *UserService) GetProfile(ctx context.Context, userID uint64, viewer Viewer) (*Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("User not found")
	}
	if err != nil {
		return nil, err
	}

	onlyApproved := viewer.ID != user.ID && !viewer.Role.Elevated()
	posts, err := s.posts.List(ctx, store.PostFilter{AuthorID: user.ID, OnlyApproved: onlyApproved})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return &Profile{User: user, Posts: posts}, nil
}

func (s *UserService) issue(ctx context.Context, user *model.User) (*pkg.Pair, error) {
	pair, err := s.issuer.GeneratePair(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	// 单点登录：只认最近一次签发的 access token
	if s.tokens != nil {
		if err := s.tokens.AddUserToken(ctx, user.ID, pair.AccessToken); err != nil {
			return nil, err
		}
	}
	return pair, nil
}
