package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dvmnase/onlinecourses-backend/internal/middleware"
	"github.com/dvmnase/onlinecourses-backend/internal/response"
	"github.com/dvmnase/onlinecourses-backend/internal/service"
)

// EnrollmentHandler handles enrollment endpoints.
type EnrollmentHandler struct {
	enrollmentService *service.EnrollmentService
}

// NewEnrollmentHandler creates a new EnrollmentHandler.
func NewEnrollmentHandler(enrollmentService *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

// Enroll godoc
// POST /api/v1/courses/:course_id/enroll
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	enrollment, err := h.enrollmentService.Enroll(c.Request.Context(), claims.UserID, courseID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"enrollment": enrollment})
}

// ListMine godoc
// GET /api/v1/my/courses
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)

	courses, err := h.enrollmentService.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"courses": courses})
}
