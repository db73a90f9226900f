package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bridge4er/examhall/internal/middleware"
	"github.com/bridge4er/examhall/internal/model"
	"github.com/bridge4er/examhall/internal/response"
	"github.com/bridge4er/examhall/internal/service"
	"github.com/bridge4er/examhall/internal/validator"
	"github.com/gin-gonic/gin"
)

// ExamHandler handles the start-attempt and submit-attempt endpoints.
type ExamHandler struct {
	examService    *service.ExamService
	gradingService *service.GradingService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, gradingService *service.GradingService) *ExamHandler {
	return &ExamHandler{
		examService:    examService,
		gradingService: gradingService,
	}
}

// StartSet godoc
// GET /api/v1/sets/:set_id/start
// Returns the exam set metadata and its questions with grading fields
// stripped. 404 unknown set, 403 locked set.
func (h *ExamHandler) StartSet(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	setID, err := strconv.ParseInt(c.Param("set_id"), 10, 64)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	payload, err := h.examService.StartSet(c.Request.Context(), claims.UserID, setID)
	if err != nil {
		failStartSet(c, err)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// SubmitSet godoc
// POST /api/v1/sets/:set_id/submit
// Grades the submitted answers and returns the authoritative result.
// Duplicate submissions return 409 and must not be retried by clients.
func (h *ExamHandler) SubmitSet(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	setID, err := strconv.ParseInt(c.Param("set_id"), 10, 64)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.gradingService.Submit(c.Request.Context(), claims.UserID, claims.FullName, setID, req.Answers)
	if err != nil {
		failSubmitSet(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

func failStartSet(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSetNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrSetInactive):
		response.Fail(c, http.StatusNotFound, response.ErrSetInactive)
	case errors.Is(err, service.ErrSetLocked):
		response.Fail(c, http.StatusForbidden, response.ErrSetLocked)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusNotFound, response.ErrNoQuestions)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func failSubmitSet(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSetNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrSetInactive):
		response.Fail(c, http.StatusNotFound, response.ErrSetInactive)
	case errors.Is(err, service.ErrSetLocked):
		response.Fail(c, http.StatusForbidden, response.ErrSetLocked)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
