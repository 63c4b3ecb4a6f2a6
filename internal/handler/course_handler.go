package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dvmnase/onlinecourses-backend/internal/middleware"
	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/response"
	"github.com/dvmnase/onlinecourses-backend/internal/service"
	"github.com/dvmnase/onlinecourses-backend/internal/validator"
)

// CourseHandler handles the course catalog endpoints.
type CourseHandler struct {
	courseService *service.CourseService
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(courseService *service.CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

// List godoc
// GET /api/v1/courses
// Public catalog with pagination.
func (h *CourseHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	courses, total, err := h.courseService.List(c.Request.Context(), page, perPage)
	if err != nil {
		failFromService(c, err)
		return
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"courses": courses}, pagination)
}

// Get godoc
// GET /api/v1/courses/:course_id
func (h *CourseHandler) Get(c *gin.Context) {
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	course, err := h.courseService.GetByID(c.Request.Context(), courseID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// ListMine godoc
// GET /api/v1/instructor/courses
// Courses owned by the authenticated instructor.
func (h *CourseHandler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courses, err := h.courseService.ListByAuthor(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"courses": courses})
}

// Create godoc
// POST /api/v1/instructor/courses
func (h *CourseHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	course, err := h.courseService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"course": course})
}

// Update godoc
// PUT /api/v1/instructor/courses/:course_id
func (h *CourseHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	var req model.UpdateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	course, err := h.courseService.Update(c.Request.Context(), claims.UserID, courseID, req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// Delete godoc
// DELETE /api/v1/instructor/courses/:course_id
func (h *CourseHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	if err := h.courseService.Delete(c.Request.Context(), claims.UserID, courseID); err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
