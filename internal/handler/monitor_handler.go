package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/config"
	"github.com/attestra/attestra-backend/internal/middleware"
	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/repository"
	"github.com/attestra/attestra-backend/internal/response"
	"github.com/attestra/attestra-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams live attempt activity to managers over SSE.
// Event-driven updates arrive through Redis Pub/Sub; a periodic refresh
// query covers anything a disconnect or dropped message missed.
type MonitorHandler struct {
	rdb         *redis.Client
	sessionRepo *repository.SessionRepository
	contentSvc  *service.ContentService
	log         zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	rdb *redis.Client,
	sessionRepo *repository.SessionRepository,
	contentSvc *service.ContentService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:         rdb,
		sessionRepo: sessionRepo,
		contentSvc:  contentSvc,
		log:         log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorAssessmentSSE godoc
// GET /api/v1/manage/assessments/:assessment_id/monitor
func (h *MonitorHandler) MonitorAssessmentSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	if !model.HasMinimumRole(claims.Role, model.RoleContentManager) {
		response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	assessments, err := h.contentSvc.ListForOrg(c.Request.Context(), claims.OrgID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	owned := false
	for _, a := range assessments {
		if a.ID == assessmentID {
			owned = true
			break
		}
	}
	if !owned {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, assessmentID)

	channelName := config.CacheKey.AssessmentMonitorChannel(assessmentID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("assessment_id", assessmentID.String()).Msg("Manager attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("assessment_id", assessmentID.String()).Msg("Manager disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly, no deserialization needed.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			h.sendSnapshot(c, reqCtx, assessmentID)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendSnapshot queries the current in-progress attempts and writes one
// snapshot event.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, assessmentID uuid.UUID) {
	// Scoped timeout prevents a slow query from stalling the SSE loop
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	attempts, err := h.sessionRepo.ListLiveByAssessment(ctx, assessmentID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch live attempts for snapshot")
		return
	}
	if attempts == nil {
		attempts = []repository.LiveAttempt{}
	}

	totalViolations := 0
	for _, a := range attempts {
		totalViolations += a.TabSwitchCount
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"assessment_id":    assessmentID.String(),
			"total_live":       len(attempts),
			"total_violations": totalViolations,
			"attempts":         attempts,
		},
	})
	c.Writer.Flush()
}
