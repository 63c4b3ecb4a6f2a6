package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/response"
	"github.com/dvmnase/onlinecourses-backend/internal/service"
)

// failFromService maps service-layer sentinels onto the response envelope.
// Anything unrecognized is a 500.
func failFromService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotCourseAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotCourseAuthor)
	case errors.Is(err, service.ErrEnrollmentRequired):
		response.Fail(c, http.StatusForbidden, response.ErrEnrollmentRequired)
	case errors.Is(err, service.ErrNotOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotOwner)
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, service.ErrAttemptNotMutable):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotMutable)
	case errors.Is(err, service.ErrUnknownQuestion):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrUnknownQuestion)
	case errors.Is(err, service.ErrInvalidQuestionType):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidQuestionType)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	case errors.Is(err, service.ErrNoCompletedAttempt):
		response.Fail(c, http.StatusNotFound, response.ErrNoCompletedAttempt)
	case errors.Is(err, service.ErrInvalidQuestionKey):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrValidation)
	case errors.Is(err, service.ErrEmailTaken):
		response.Fail(c, http.StatusConflict, response.ErrEmailTaken)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// parseUUIDParam reads a UUID path parameter, writing the 400 itself on
// malformed input.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
