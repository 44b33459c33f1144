package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/attestra/attestra-backend/internal/middleware"
	"github.com/attestra/attestra-backend/internal/response"
	"github.com/attestra/attestra-backend/internal/service"
)

// ReportHandler handles manager-facing reporting endpoints: violation
// logs, analytics rollups and administrative attempt resets.
type ReportHandler struct {
	proctoringService *service.ProctoringService
	analyticsService  *service.AnalyticsService
	attemptService    *service.AttemptService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(
	proctoringService *service.ProctoringService,
	analyticsService *service.AnalyticsService,
	attemptService *service.AttemptService,
) *ReportHandler {
	return &ReportHandler{
		proctoringService: proctoringService,
		analyticsService:  analyticsService,
		attemptService:    attemptService,
	}
}

func viewerFromClaims(claims *service.Claims) service.Viewer {
	return service.Viewer{
		UserID: claims.UserID,
		OrgID:  claims.OrgID,
		Role:   claims.Role,
	}
}

// GetViolations godoc
// GET /api/v1/manage/sessions/:session_id/violations
// Returns the focus-loss log for one attempt.
func (h *ReportHandler) GetViolations(c *gin.Context) {
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

	report, err := h.proctoringService.GetViolations(c.Request.Context(), sessionID, viewerFromClaims(claims))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
		case errors.Is(err, service.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, report)
}

// SummarizeAssessment godoc
// GET /api/v1/manage/assessments/:assessment_id/summary
// Returns analytics rollups for one assessment.
func (h *ReportHandler) SummarizeAssessment(c *gin.Context) {
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

	summary, err := h.analyticsService.SummarizeAssessment(c.Request.Context(), assessmentID, viewerFromClaims(claims))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
		case errors.Is(err, service.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, summary)
}

// SummarizeOrg godoc
// GET /api/v1/manage/reports/summary
// Returns organization-wide rollups including the 12-week trend.
func (h *ReportHandler) SummarizeOrg(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	summary, err := h.analyticsService.SummarizeOrg(c.Request.Context(), viewerFromClaims(claims))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, summary)
}

// ResetAttempt godoc
// DELETE /api/v1/manage/sessions/:session_id
// Removes an attempt and its answers so the candidate can start over.
func (h *ReportHandler) ResetAttempt(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attemptService.ResetAttempt(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
