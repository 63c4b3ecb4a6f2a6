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

// ReviewHandler handles course review endpoints.
type ReviewHandler struct {
	reviewService *service.ReviewService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviewService *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// List godoc
// GET /api/v1/courses/:course_id/reviews
func (h *ReviewHandler) List(c *gin.Context) {
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	reviews, err := h.reviewService.ListByCourse(c.Request.Context(), courseID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reviews": reviews})
}

// Upsert godoc
// PUT /api/v1/courses/:course_id/reviews
// Creates or replaces the caller's review.
func (h *ReviewHandler) Upsert(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	var req model.UpsertReviewRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	review, err := h.reviewService.Upsert(c.Request.Context(), claims.UserID, courseID, req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"review": review})
}

// Delete godoc
// DELETE /api/v1/courses/:course_id/reviews
// Removes the caller's own review.
func (h *ReviewHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	if err := h.reviewService.Delete(c.Request.Context(), claims.UserID, courseID); err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
