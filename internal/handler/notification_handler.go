package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/attestra/attestra-backend/internal/middleware"
	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/repository"
	"github.com/attestra/attestra-backend/internal/response"
)

const defaultNotificationLimit = 20

// NotificationHandler lists in-app notifications for the caller.
type NotificationHandler struct {
	notificationRepo *repository.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationRepo *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepo: notificationRepo}
}

// ListOwn godoc
// GET /api/v1/notifications
// Returns the caller's most recent notifications, newest first.
func (h *NotificationHandler) ListOwn(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	limit := defaultNotificationLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	notifications, err := h.notificationRepo.ListByUser(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}

	response.Success(c, http.StatusOK, gin.H{"notifications": notifications})
}
