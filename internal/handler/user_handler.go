package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fanpage-server/internal/middleware"
	"fanpage-server/internal/service"
)

type UserHandler struct {
	svc *service.UserService
	id  *Identity
}

type RegisterReq struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type LoginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func NewUserHandler(svc *service.UserService, id *Identity) *UserHandler {
	return &UserHandler{svc: svc, id: id}
}

// Register 注册
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Please enter all fields"})
		return
	}

	if _, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}); err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"msg": "User registered successfully!"})
}

// Login 登录，返回用户信息和 token
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Invalid Credentials"})
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"msg": "Logged in successfully!",
		"user": gin.H{
			"id":       res.User.ID,
			"username": res.User.Username,
			"email":    res.User.Email,
			"role":     res.User.Role,
		},
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

func (h *UserHandler) Refresh(c *gin.Context) {
	var req RefreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.UserID(c)); err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Logged out successfully"})
}

// Profile 用户信息和他的帖子
func (h *UserHandler) Profile(c *gin.Context) {
	userID, ok := pathID(c, "id", "User not found")
	if !ok {
		return
	}
	viewer, err := h.id.Viewer(c)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	prof, err := h.svc.GetProfile(c.Request.Context(), userID, viewer)
	if err != nil {
		h.id.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prof)
}
