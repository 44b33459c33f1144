package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/attestra/attestra-backend/internal/middleware"
	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/response"
	"github.com/attestra/attestra-backend/internal/service"
	"github.com/attestra/attestra-backend/internal/validator"
)

// AttemptHandler handles candidate-facing attempt endpoints.
type AttemptHandler struct {
	attemptService    *service.AttemptService
	answerService     *service.AnswerService
	completionService *service.CompletionService
	proctoringService *service.ProctoringService
	contentService    *service.ContentService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(
	attemptService *service.AttemptService,
	answerService *service.AnswerService,
	completionService *service.CompletionService,
	proctoringService *service.ProctoringService,
	contentService *service.ContentService,
) *AttemptHandler {
	return &AttemptHandler{
		attemptService:    attemptService,
		answerService:     answerService,
		completionService: completionService,
		proctoringService: proctoringService,
		contentService:    contentService,
	}
}

// ListAssessments godoc
// GET /api/v1/assessments
// Returns published assessments for the candidate's organization.
func (h *AttemptHandler) ListAssessments(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessments, err := h.contentService.ListForOrg(c.Request.Context(), claims.OrgID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if assessments == nil {
		assessments = []model.Assessment{}
	}

	response.Success(c, http.StatusOK, gin.H{"assessments": assessments})
}

// StartOrResume godoc
// POST /api/v1/assessments/:assessment_id/attempt
// Idempotent entry point: creates the attempt on first call, resumes it
// on every later call with the authoritative remaining time.
func (h *AttemptHandler) StartOrResume(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attemptService.StartOrResume(c.Request.Context(), claims.UserID, assessmentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAvailable):
			response.Fail(c, http.StatusNotFound, response.ErrAssessmentNotAvailable)
		case errors.Is(err, service.ErrAlreadyStarted):
			response.Fail(c, http.StatusConflict, response.ErrAttemptActive)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, state)
}

// GetState godoc
// GET /api/v1/sessions/:session_id/state
// Covers page reloads: previously answered questions plus remaining time.
func (h *AttemptHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SubmitAnswer godoc
// PUT /api/v1/sessions/:session_id/answers
// Upserts the candidate's choice for one question. Safe to retry.
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err = h.answerService.SubmitAnswer(c.Request.Context(), sessionID, claims.UserID, req.QuestionID, req.SelectedIndex, req.RemainingSeconds)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrSessionClosed):
			response.Fail(c, http.StatusConflict, response.ErrSessionClosed)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// RecordFocusLoss godoc
// POST /api/v1/sessions/:session_id/focus-loss
// Appends one violation event. Observational: never blocks the attempt.
func (h *AttemptHandler) RecordFocusLoss(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	err = h.proctoringService.RecordFocusLoss(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrSessionClosed):
			response.Fail(c, http.StatusConflict, response.ErrSessionClosed)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "recorded"})
}

// Complete godoc
// POST /api/v1/sessions/:session_id/complete
// Finalizes the attempt. Idempotent: repeated calls return the same
// persisted result.
func (h *AttemptHandler) Complete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.CompleteRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.completionService.Complete(c.Request.Context(), sessionID, claims.UserID, req.Reason)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetSummary godoc
// GET /api/v1/sessions/:session_id/summary
// Returns the candidate's view of a finished attempt.
func (h *AttemptHandler) GetSummary(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.attemptService.GetSummary(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}
