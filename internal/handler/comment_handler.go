package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fanpage-server/internal/service"
)

type CommentHandler struct {
	svc *service.CommentService
	id  *Identity
}

type CreateCommentReq struct {
	Content  string `json:"content" binding:"required"`
	AuthorID uint64 `json:"authorId"`
}

type UpdateCommentReq struct {
	Content  string `json:"content" binding:"required"`
	EditorID uint64 `json:"editorId"`
}

func NewCommentHandler(svc *service.CommentService, id *Identity) *CommentHandler {
	return &CommentHandler{svc: svc, id: id}
}

func (h *CommentHandler) CreateComment(c *gin.Context) {
	postID, ok := pathID(c, "id", "Post not found")
	if !ok {
		return
	}
	var req CreateCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Comment content is required"})
		return
	}

	comment, err := h.svc.Create(c.Request.Context(), postID, h.id.Actor(c, req.AuthorID), req.Content)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// ListComments 按时间正序
func (h *CommentHandler) ListComments(c *gin.Context) {
	postID, ok := pathID(c, "id", "Post not found")
	if !ok {
		return
	}
	list, err := h.svc.ListByPost(c.Request.Context(), postID)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CommentHandler) UpdateComment(c *gin.Context) {
	commentID, ok := pathID(c, "id", "Comment not found")
	if !ok {
		return
	}
	var req UpdateCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Comment content is required"})
		return
	}

	comment, err := h.svc.Update(c.Request.Context(), commentID, h.id.Actor(c, req.EditorID), req.Content)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	commentID, ok := pathID(c, "id", "Comment not found")
	if !ok {
		return
	}
	var req DeleteReq
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), commentID, h.id.Actor(c, req.DeleterID)); err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Comment removed"})
}
