package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dvmnase/onlinecourses-backend/internal/middleware"
	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/response"
	"github.com/dvmnase/onlinecourses-backend/internal/service"
	"github.com/dvmnase/onlinecourses-backend/internal/validator"
)

// AuthHandler handles registration and login endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register godoc
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": user})
}

// Login godoc
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Me godoc
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}
