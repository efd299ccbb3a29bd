package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"fanpage-server/internal/handler"
	"fanpage-server/internal/middleware"
	"fanpage-server/internal/pkg"
	"fanpage-server/internal/service"
)

// Deps 路由需要的服务，由 main 或测试组装
type Deps struct {
	DB                *gorm.DB
	Logger            *slog.Logger
	Issuer            *pkg.TokenIssuer
	Auth              *service.AuthService
	Users             *service.UserService
	Posts             *service.PostService
	Comments          *service.CommentService
	Likes             *service.LikeService
	Tokens            service.TokenStore
	TrustBodyIdentity bool
}

func InitRouter(d Deps) *gin.Engine {
	logger := pkg.ResolveLogger(d.Logger)

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Trace(),
		middleware.Logger(logger),
	)

	id := handler.NewIdentity(d.Auth, d.TrustBodyIdentity, logger)
	user := handler.NewUserHandler(d.Users, id)
	post := handler.NewPostHandler(d.Posts, id)
	comment := handler.NewCommentHandler(d.Comments, id)
	like := handler.NewLikeHandler(d.Likes, id)
	health := handler.NewHealthHandler(d.DB)

	r.GET("/healthz", health.Healthz)

	api := r.Group("/api")
	api.GET("/healthz", health.Healthz)
	api.Use(middleware.AuthMiddleware(d.Issuer, d.Tokens))

	// 用户相关接口
	{
		api.POST("/register", user.Register)
		api.POST("/login", user.Login)
		api.POST("/token/refresh", user.Refresh)
		api.POST("/logout", middleware.RequireAuth(), user.Logout)
		api.GET("/users/:id", user.Profile)
	}

	// 帖子相关接口
	{
		api.POST("/posts", post.CreatePost)
		api.GET("/posts", post.ListPosts)
		api.GET("/posts/:id", post.GetPost)
		api.PUT("/posts/:id", post.UpdatePost)
		api.DELETE("/posts/:id", post.DeletePost)
		api.GET("/search", post.Search)
		api.GET("/moderation/pending", post.PendingPosts)
	}

	// 评论相关接口
	{
		api.POST("/posts/:id/comments", comment.CreateComment)
		api.GET("/posts/:id/comments", comment.ListComments)
		api.PUT("/comments/:id", comment.UpdateComment)
		api.DELETE("/comments/:id", comment.DeleteComment)
	}

	// 点赞相关接口
	{
		api.POST("/posts/:id/like", like.ToggleLike)
		api.GET("/posts/:id/likes/count", like.LikeCount)
	}

	return r
}
