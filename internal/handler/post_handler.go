package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fanpage-server/internal/model"
	"fanpage-server/internal/service"
)

type PostHandler struct {
	svc *service.PostService
	id  *Identity
}

type CreatePostReq struct {
	Title      string          `json:"title" binding:"required"`
	Content    string          `json:"content" binding:"required"`
	Category   *model.Category `json:"category"`
	IsApproved *bool           `json:"isApproved"`
	AuthorID   uint64          `json:"authorId"`
}

type UpdatePostReq struct {
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Category   *model.Category `json:"category"`
	IsApproved *bool           `json:"isApproved"`
	EditorID   uint64          `json:"editorId"`
}

type DeleteReq struct {
	DeleterID uint64 `json:"deleterId"`
}

func NewPostHandler(svc *service.PostService, id *Identity) *PostHandler {
	return &PostHandler{svc: svc, id: id}
}

// CreatePost 创建帖子，分类和审核状态由审核策略决定
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req CreatePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Title and content are required"})
		return
	}

	post, err := h.svc.Create(c.Request.Context(), h.id.Actor(c, req.AuthorID), service.CreatePostInput{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Approved: req.IsApproved,
	})
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// ListPosts 支持 category、authorId 过滤
func (h *PostHandler) ListPosts(c *gin.Context) {
	in := service.ListPostsInput{Category: model.Category(c.Query("category"))}
	if s := c.Query("authorId"); s != "" {
		authorID, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid authorId"})
			return
		}
		in.AuthorID = authorID
	}

	viewer, err := h.id.Viewer(c)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	list, err := h.svc.List(c.Request.Context(), in, viewer)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *PostHandler) GetPost(c *gin.Context) {
	postID, ok := pathID(c, "id", "Post not found")
	if !ok {
		return
	}
	post, err := h.svc.Get(c.Request.Context(), postID)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// UpdatePost 只修改请求里带了的字段
func (h *PostHandler) UpdatePost(c *gin.Context) {
	postID, ok := pathID(c, "id", "Post not found")
	if !ok {
		return
	}
	var req UpdatePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	post, err := h.svc.Update(c.Request.Context(), postID, h.id.Actor(c, req.EditorID), service.UpdatePostInput{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Approved: req.IsApproved,
	})
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) DeletePost(c *gin.Context) {
	postID, ok := pathID(c, "id", "Post not found")
	if !ok {
		return
	}
	var req DeleteReq
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), postID, h.id.Actor(c, req.DeleterID)); err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Post and associated comments removed"})
}

// Search 全文检索
func (h *PostHandler) Search(c *gin.Context) {
	viewer, err := h.id.Viewer(c)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	list, err := h.svc.Search(c.Request.Context(), c.Query("q"), viewer)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// PendingPosts 审核队列
func (h *PostHandler) PendingPosts(c *gin.Context) {
	var legacyID uint64
	if s := c.Query("userId"); s != "" {
		legacyID, _ = strconv.ParseUint(s, 10, 64)
	}
	list, err := h.svc.ListPending(c.Request.Context(), h.id.Actor(c, legacyID))
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
