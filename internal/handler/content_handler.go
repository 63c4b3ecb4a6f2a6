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

// ContentHandler handles course lesson endpoints.
type ContentHandler struct {
	contentService *service.ContentService
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(contentService *service.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

// ListByCourse godoc
// GET /api/v1/courses/:course_id/contents
func (h *ContentHandler) ListByCourse(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	contents, err := h.contentService.ListByCourse(c.Request.Context(), claims.UserID, courseID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"contents": contents})
}

// Create godoc
// POST /api/v1/instructor/courses/:course_id/contents
func (h *ContentHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	var req model.CreateContentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	content, err := h.contentService.Create(c.Request.Context(), claims.UserID, courseID, req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"content": content})
}

// Update godoc
// PUT /api/v1/instructor/contents/:content_id
func (h *ContentHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	contentID, ok := parseUUIDParam(c, "content_id")
	if !ok {
		return
	}

	var req model.UpdateContentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	content, err := h.contentService.Update(c.Request.Context(), claims.UserID, contentID, req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"content": content})
}

// Delete godoc
// DELETE /api/v1/instructor/contents/:content_id
func (h *ContentHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	contentID, ok := parseUUIDParam(c, "content_id")
	if !ok {
		return
	}

	if err := h.contentService.Delete(c.Request.Context(), claims.UserID, contentID); err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
