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

// QuestionHandler handles question authoring and the learner read model.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// Upsert godoc
// PUT /api/v1/instructor/tests/:test_id/questions
// Creates the question when the payload has no id, updates it otherwise.
func (h *QuestionHandler) Upsert(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseUUIDParam(c, "test_id")
	if !ok {
		return
	}

	var req model.UpsertQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Upsert(c.Request.Context(), claims.UserID, testID, req)
	if err != nil {
		failFromService(c, err)
		return
	}

	status := http.StatusOK
	if req.ID == nil {
		status = http.StatusCreated
	}
	response.Success(c, status, gin.H{"question": question})
}

// Delete godoc
// DELETE /api/v1/instructor/questions/:question_id
func (h *QuestionHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	questionID, ok := parseUUIDParam(c, "question_id")
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), claims.UserID, questionID); err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ListForAuthor godoc
// GET /api/v1/instructor/tests/:test_id/questions
// Full questions including the answer key.
func (h *QuestionHandler) ListForAuthor(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseUUIDParam(c, "test_id")
	if !ok {
		return
	}

	questions, err := h.questionService.ListForAuthor(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// ListForLearner godoc
// GET /api/v1/tests/:test_id/questions
// Questions with the answer key stripped.
func (h *QuestionHandler) ListForLearner(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseUUIDParam(c, "test_id")
	if !ok {
		return
	}

	questions, err := h.questionService.ListForLearner(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}
