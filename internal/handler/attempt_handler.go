package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dvmnase/onlinecourses-backend/internal/middleware"
	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/response"
	"github.com/dvmnase/onlinecourses-backend/internal/service"
	"github.com/dvmnase/onlinecourses-backend/internal/validator"
)

// AttemptHandler handles the attempt lifecycle endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// Start godoc
// POST /api/v1/attempts/tests/:test_id/start
// Begins a new attempt. Conflicts are recoverable: an active attempt comes
// back with its answers for resuming, a completed one with its result.
func (h *AttemptHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseUUIDParam(c, "test_id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.Begin(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		var active *service.AlreadyActiveError
		if errors.As(err, &active) {
			response.FailWithData(c, http.StatusConflict, response.ErrAttemptAlreadyActive, gin.H{
				"attempt": active.Attempt,
				"answers": active.Answers,
			})
			return
		}
		var completed *service.AlreadyCompletedError
		if errors.As(err, &completed) {
			response.FailWithData(c, http.StatusConflict, response.ErrAttemptAlreadyCompleted, gin.H{
				"attempt": completed.Attempt,
			})
			return
		}
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": attempt})
}

// RecordAnswer godoc
// PUT /api/v1/attempts/:attempt_id/answers
// Saves one answer; repeated saves for the same question overwrite.
func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := h.attemptService.RecordAnswer(c.Request.Context(), attemptID, claims.UserID, req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"answer": answer})
}

// Submit godoc
// POST /api/v1/attempts/:attempt_id/submit
// Finishes and grades the attempt. Submitting an already-completed attempt
// returns the existing result unchanged.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), attemptID, model.TriggerExplicit, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// State godoc
// GET /api/v1/attempts/:attempt_id/state
// Resume payload: attempt, recorded answers and remaining seconds.
func (h *AttemptHandler) State(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// LatestCompleted godoc
// GET /api/v1/attempts/tests/:test_id/latest-completed
// The caller's most recent terminal attempt for a test.
func (h *AttemptHandler) LatestCompleted(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseUUIDParam(c, "test_id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetCompletedResult(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}
