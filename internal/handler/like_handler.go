package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fanpage-server/internal/service"
)

type LikeHandler struct {
	svc *service.LikeService
	id  *Identity
}

type ToggleLikeReq struct {
	UserID uint64 `json:"userId"`
}

func NewLikeHandler(svc *service.LikeService, id *Identity) *LikeHandler {
	return &LikeHandler{svc: svc, id: id}
}

// ToggleLike 点赞/取消点赞
func (h *LikeHandler) ToggleLike(c *gin.Context) {
	postID, ok := pathID(c, "id", "Post not found")
	if !ok {
		return
	}
	var req ToggleLikeReq
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	res, err := h.svc.Toggle(c.Request.Context(), postID, h.id.Actor(c, req.UserID))
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	msg := "Post unliked"
	if res.Liked {
		msg = "Post liked"
	}
	c.JSON(http.StatusOK, gin.H{"msg": msg, "likes": res.Likes})
}

func (h *LikeHandler) LikeCount(c *gin.Context) {
	postID, ok := pathID(c, "id", "Post not found")
	if !ok {
		return
	}
	n, err := h.svc.Count(c.Request.Context(), postID)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": n})
}
