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

// TestHandler handles test authoring and read endpoints.
type TestHandler struct {
	testService *service.TestService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService) *TestHandler {
	return &TestHandler{testService: testService}
}

// ListByCourse godoc
// GET /api/v1/courses/:course_id/tests
func (h *TestHandler) ListByCourse(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	tests, err := h.testService.ListByCourse(c.Request.Context(), claims.UserID, courseID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// Get godoc
// GET /api/v1/tests/:test_id
func (h *TestHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseUUIDParam(c, "test_id")
	if !ok {
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// Create godoc
// POST /api/v1/instructor/courses/:course_id/tests
func (h *TestHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Create(c.Request.Context(), claims.UserID, courseID, req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// Update godoc
// PUT /api/v1/instructor/tests/:test_id
func (h *TestHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseUUIDParam(c, "test_id")
	if !ok {
		return
	}

	var req model.UpdateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Update(c.Request.Context(), claims.UserID, testID, req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// Delete godoc
// DELETE /api/v1/instructor/tests/:test_id
func (h *TestHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseUUIDParam(c, "test_id")
	if !ok {
		return
	}

	if err := h.testService.Delete(c.Request.Context(), claims.UserID, testID); err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
