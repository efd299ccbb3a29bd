package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fanpage-server/internal/middleware"
	"fanpage-server/internal/model"
	"fanpage-server/internal/pkg"
	"fanpage-server/internal/service"
)

// Identity 从请求里解析操作者。优先使用 token；trustBody 打开时，
// 没有 token 的请求可以用 body/query 里的 id 和 requesterRole 表明身份
type Identity struct {
	auth      *service.AuthService
	trustBody bool
	logger    *slog.Logger
}

func NewIdentity(auth *service.AuthService, trustBody bool, logger *slog.Logger) *Identity {
	return &Identity{auth: auth, trustBody: trustBody, logger: pkg.ResolveLogger(logger)}
}

// Actor bodyID 为请求体里的旧字段（authorId/editorId/deleterId/userId）
func (i *Identity) Actor(c *gin.Context, bodyID uint64) uint64 {
	if id := middleware.UserID(c); id != 0 {
		return id
	}
	if i.trustBody {
		return bodyID
	}
	return 0
}

// Viewer 读接口的调用方
func (i *Identity) Viewer(c *gin.Context) (service.Viewer, error) {
	var claimed model.Role
	if i.trustBody {
		claimed = model.Role(c.Query("requesterRole"))
	}
	return i.auth.ResolveViewer(c.Request.Context(), middleware.UserID(c), claimed)
}

// writeError 业务错误按 Kind 映射状态码，其余一律 500 且只记日志
func (i *Identity) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindUnauthenticated:
		status = http.StatusUnauthorized
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindBadRequest, service.KindConflict:
		status = http.StatusBadRequest
	default:
		i.logger.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(middleware.ContextRequestIDKey),
			"err", err,
		)
		c.JSON(status, gin.H{"msg": "Server Error"})
		return
	}
	c.JSON(status, gin.H{"msg": err.Error()})
}

// pathID 非法 id 和不存在的资源一样返回 404
func pathID(c *gin.Context, name, notFoundMsg string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"msg": notFoundMsg})
		return 0, false
	}
	return id, true
}

// bindOptionalJSON 允许空 body，DELETE 请求常见
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
