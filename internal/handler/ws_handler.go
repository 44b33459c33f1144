package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/middleware"
	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/service"
	ws "github.com/attestra/attestra-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams server-computed countdown ticks for one attempt.
// The tick is the cosmetic driver for the client's timer; expiry is
// enforced here by routing into the completion engine, never by trusting
// the client to report it.
type WSHandler struct {
	attemptService    *service.AttemptService
	completionService *service.CompletionService
	proctoringService *service.ProctoringService
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	attemptService *service.AttemptService,
	completionService *service.CompletionService,
	proctoringService *service.ProctoringService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		attemptService:    attemptService,
		completionService: completionService,
		proctoringService: proctoringService,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Upgrades to WebSocket for countdown ticks and focus-loss reporting.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("session_id", sessionID.String()).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	if state.Session.Status.Terminal() {
		h.writeExpired(conn, state.Session)
		return
	}

	// The deadline is anchored once from the authoritative remaining
	// time; ticks count down locally without a query per second.
	deadline := time.Now().Add(time.Duration(state.RemainingSeconds) * time.Second)

	incoming := make(chan ws.RequestEnvelope)
	go h.readPump(conn, wsLog, incoming)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return

		case msg, ok := <-incoming:
			if !ok {
				wsLog.Debug().Msg("Connection closed")
				return
			}
			switch msg.Action {
			case ws.ActionPing:
				ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			case ws.ActionFocus:
				h.handleFocus(conn, wsLog, sessionID, claims.UserID)
			default:
				wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
				ws.WriteError(conn, "unknown action: "+string(msg.Action))
			}

		case <-ticker.C:
			remaining := int(time.Until(deadline).Seconds())
			if remaining > 0 {
				if err := ws.WriteTyped(conn, ws.TickResponse{Event: ws.EventTick, RemainingSeconds: remaining}); err != nil {
					return
				}
				continue
			}

			h.expire(conn, wsLog, sessionID, claims.UserID)
			return
		}
	}
}

// readPump forwards client messages to the stream loop and closes the
// channel when the connection drops.
func (h *WSHandler) readPump(conn *websocket.Conn, wsLog zerolog.Logger, incoming chan<- ws.RequestEnvelope) {
	defer close(incoming)
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		incoming <- msg
	}
}

func (h *WSHandler) handleFocus(conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, userID int) {
	err := h.proctoringService.RecordFocusLoss(context.Background(), sessionID, userID)
	if err != nil {
		wsLog.Debug().Err(err).Msg("Focus event rejected")
		ws.WriteError(conn, "focus event rejected")
	}
}

// expire finalizes the attempt server-side and reports the persisted
// result before closing the stream.
func (h *WSHandler) expire(conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, userID int) {
	result, err := h.completionService.Complete(context.Background(), sessionID, userID, model.ReasonExpired)
	if err != nil {
		wsLog.Error().Err(err).Msg("Expiry completion failed")
		ws.WriteError(conn, "completion failed")
		return
	}

	wsLog.Info().Int("score", result.Score).Msg("Attempt expired over stream")

	ws.WriteTyped(conn, ws.ExpiredResponse{
		Event:  ws.EventExpired,
		Status: string(result.Status),
		Score:  result.Score,
		Passed: result.Passed,
	})
}

func (h *WSHandler) writeExpired(conn *websocket.Conn, sess *model.Session) {
	resp := ws.ExpiredResponse{Event: ws.EventExpired, Status: string(sess.Status)}
	if sess.Score != nil {
		resp.Score = *sess.Score
	}
	if sess.Passed != nil {
		resp.Passed = *sess.Passed
	}
	ws.WriteTyped(conn, resp)
}
