package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docuchat/internal/access"
	"docuchat/internal/app"
	"docuchat/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=64"`
	Password        string `json:"password" binding:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	Role            string `json:"role" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if req.Password != req.ConfirmPassword {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "password and confirm_password do not match")
		return
	}

	result, err := h.authService.Register(app.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, access.ErrInvalidRole):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidRole, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrUsernameExists):
			response.Error(c, http.StatusBadRequest, response.CodeUsernameExists, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "register failed")
		}
		return
	}

	response.OK(c, gin.H{
		"token": result.Token,
		"user": gin.H{
			"id":         result.User.ID,
			"username":   result.User.Username,
			"role":       result.User.Role,
			"login_id":   result.User.LoginID,
			"created_at": result.User.CreatedAt,
		},
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Login(app.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidCredential):
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		}
		return
	}

	levels, _ := access.AllowedLevels(access.Role(result.User.Role))
	response.OK(c, gin.H{
		"token":          result.Token,
		"username":       result.User.Username,
		"role":           result.User.Role,
		"login_id":       result.User.LoginID,
		"allowed_levels": levels,
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	user, err := h.authService.GetUserByID(id.UserID)
	if err != nil || user == nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found")
		return
	}

	levels, _ := access.AllowedLevels(id.Role)
	response.OK(c, gin.H{
		"username":       user.Username,
		"role":           user.Role,
		"login_id":       user.LoginID,
		"created_at":     user.CreatedAt,
		"allowed_levels": levels,
	})
}

// ListUsers is admin-only (enforced by middleware).
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.authService.ListUsers()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list users failed")
		return
	}
	response.OK(c, gin.H{
		"users":       users,
		"total_count": len(users),
	})
}

// LookupByLoginID resolves a user from an opaque login id (admin-only).
func (h *AuthHandler) LookupByLoginID(c *gin.Context) {
	user, err := h.authService.GetUserByLoginID(c.Param("login_id"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrUserNotFound):
			response.Error(c, http.StatusNotFound, response.CodeUserNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "lookup failed")
		}
		return
	}
	response.OK(c, gin.H{
		"username":   user.Username,
		"role":       user.Role,
		"login_id":   user.LoginID,
		"created_at": user.CreatedAt,
	})
}
