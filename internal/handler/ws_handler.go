package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dvmnase/onlinecourses-backend/internal/config"
	"github.com/dvmnase/onlinecourses-backend/internal/middleware"
	"github.com/dvmnase/onlinecourses-backend/internal/model"
	"github.com/dvmnase/onlinecourses-backend/internal/service"
	"github.com/dvmnase/onlinecourses-backend/internal/ws"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
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

// WSHandler streams a live attempt: answer saves, countdown ticks and the
// graded event, including the deadline-triggered one fired by the worker.
type WSHandler struct {
	rdb            *redis.Client
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	// Ownership check before the upgrade; after it we can only talk WS.
	state, err := h.attemptService.GetState(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(rawConn)
	defer conn.Close()

	wsLog := h.log.With().
		Str("attempt_id", attemptID.String()).
		Str("learner_id", claims.UserID.String()).
		Logger()
	wsLog.Info().Msg("Learner connected")

	if state.Attempt.Status != model.AttemptStatusInProgress {
		// Already terminal: deliver the result and we are done.
		_ = conn.WriteTyped(ws.GradedResponse{Event: ws.EventGraded, Attempt: state.Attempt})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.forwardGradedEvents(ctx, conn, attemptID, wsLog)
	if state.Attempt.DeadlineAt != nil {
		go h.tickCountdown(ctx, conn, *state.Attempt.DeadlineAt)
	}

	h.readLoop(ctx, conn, claims.UserID, attemptID, wsLog)
}

// readLoop processes client messages until the connection drops.
func (h *WSHandler) readLoop(ctx context.Context, conn *ws.Conn, learnerID, attemptID uuid.UUID, wsLog zerolog.Logger) {
	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(ctx, conn, learnerID, attemptID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(ctx, conn, learnerID, attemptID, wsLog)
		case ws.ActionPing:
			_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// handleAnswer saves a single answer through the same path as the REST
// endpoint, so ownership and shape validation apply identically.
func (h *WSHandler) handleAnswer(ctx context.Context, conn *ws.Conn, learnerID, attemptID uuid.UUID, msg *ws.RequestPayload) {
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		_ = conn.WriteError("invalid question_id format")
		return
	}

	selected := make([]uuid.UUID, 0, len(msg.SelectedOptionIDs))
	for _, raw := range msg.SelectedOptionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = conn.WriteError("invalid option id format")
			return
		}
		selected = append(selected, id)
	}

	_, err = h.attemptService.RecordAnswer(ctx, attemptID, learnerID, model.RecordAnswerRequest{
		QuestionID:        questionID,
		SelectedOptionIDs: selected,
		Text:              msg.Text,
	})
	if err != nil {
		_ = conn.WriteError(err.Error())
		return
	}

	_ = conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, QuestionID: msg.QuestionID})
}

// handleSubmit finishes the attempt and sends the result directly; the
// pubsub forwarder may deliver the same event again, which clients treat
// as a no-op.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, learnerID, attemptID uuid.UUID, wsLog zerolog.Logger) {
	attempt, err := h.attemptService.Submit(ctx, attemptID, model.TriggerExplicit, learnerID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Submit over WebSocket failed")
		_ = conn.WriteError("submit failed")
		return
	}
	_ = conn.WriteTyped(ws.GradedResponse{Event: ws.EventGraded, Attempt: attempt})
}

// forwardGradedEvents relays the Redis graded notification, which is how a
// deadline-triggered submit reaches a connected client.
func (h *WSHandler) forwardGradedEvents(ctx context.Context, conn *ws.Conn, attemptID uuid.UUID, wsLog zerolog.Logger) {
	sub := h.rdb.Subscribe(ctx, config.CacheKey.AttemptEventsChannel(attemptID.String()))
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteTyped(gin.H{"event": ws.EventGraded, "payload": msg.Payload}); err != nil {
				wsLog.Debug().Err(err).Msg("Graded forward failed, client gone")
				return
			}
		}
	}
}

// tickCountdown emits the remaining seconds once per second until the
// deadline passes or the connection context ends.
func (h *WSHandler) tickCountdown(ctx context.Context, conn *ws.Conn, deadline time.Time) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			remaining := int64(time.Until(deadline).Seconds())
			if remaining < 0 {
				remaining = 0
			}
			if err := conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, RemainingSeconds: remaining}); err != nil {
				return
			}
			if remaining == 0 {
				// The worker takes it from here; stop ticking.
				return
			}
		}
	}
}
