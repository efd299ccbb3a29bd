package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fanpage-server/internal/model"
	"fanpage-server/internal/pkg"
)

const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "role"
)

type tokenStore interface {
	GetUserToken(ctx context.Context, userID uint64) (string, error)
	ExtendUserToken(ctx context.Context, userID uint64) error
}

// AuthMiddleware 没带 Authorization 头时直接放行，由具体接口决定是否需要身份；
// 带了但校验失败则 401。tokens 为 nil 时不做单点登录校验
func AuthMiddleware(issuer *pkg.TokenIssuer, tokens tokenStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid authorization format"})
			return
		}

		tokenStr := parts[1]
		claims, err := issuer.ParseAccess(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid or expired token"})
			return
		}

		if tokens != nil {
			// redis校验是否是正确的token
			origin, err := tokens.GetUserToken(c.Request.Context(), claims.UserID)
			if err != nil || origin != tokenStr {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "Account has been logging elsewhere"})
				return
			}
			// 校验通过后更新过期时间
			if err := tokens.ExtendUserToken(c.Request.Context(), claims.UserID); err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "Server Error"})
				return
			}
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextRoleKey, model.Role(claims.Role))
		c.Next()
	}
}

// RequireAuth 必须携带有效 token
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing authorization header"})
			return
		}
		c.Next()
	}
}

// UserID token 里的用户 id，未登录为 0
func UserID(c *gin.Context) uint64 {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(uint64)
	return id
}
