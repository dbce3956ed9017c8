package api

import (
	"github.com/gin-gonic/gin"

	"github.com/loadpress/loadpress/internal/auth"
)

// AuthHandler handles registration, login and profile requests
type AuthHandler struct {
	auth *auth.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authSvc *auth.Service) *AuthHandler {
	return &AuthHandler{auth: authSvc}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	user, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	CreatedResponse(c, user)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	tokens, user, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, gin.H{
		"token": tokens,
		"user":  user,
	})
}

// GetProfile handles GET /api/v1/user/me
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, err := h.auth.GetProfile(c.Request.Context(), currentUserID(c))
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, user)
}

// ChangePassword handles PUT /api/v1/user/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req auth.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), currentUserID(c), &req); err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, gin.H{"message": "password updated"})
}

// ListUsers handles GET /api/v1/users (admin only)
func (h *AuthHandler) ListUsers(c *gin.Context) {
	pagination := parsePagination(c)

	users, total, err := h.auth.ListUsers(c.Request.Context(), pagination)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponseWithMeta(c, users, paginationMeta(pagination, total))
}
