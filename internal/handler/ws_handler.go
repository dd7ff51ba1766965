package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/events"
	"github.com/codeassess/sessiond/internal/middleware"
	"github.com/codeassess/sessiond/internal/model"
	"github.com/codeassess/sessiond/internal/service"
	ws "github.com/codeassess/sessiond/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
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

// WSHandler streams the session to the UI shim: snapshot ticks,
// advisories and terminal transitions go out; signals, workspace saves
// and pings come in.
type WSHandler struct {
	manager  *service.SessionManager
	bus      *events.Bus
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(manager *service.SessionManager, bus *events.Bus, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		manager:  manager,
		bus:      bus,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session/stream
// Upgrades to WebSocket for the live session stream.
func (h *WSHandler) SessionStream(c *gin.Context) {
	if middleware.GetClaims(c) == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sess, err := h.manager.Active()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	wsLog := h.log.With().Str("attempt_id", sess.AttemptID.String()).Logger()
	wsLog.Info().Msg("UI connected")

	// One writer goroutine owns the connection's write side; bus pumps
	// and the read loop all feed it through outbound.
	outbound := make(chan interface{}, 32)
	go h.writeLoop(ctx, cancel, conn, outbound)

	if err := h.pumpBus(ctx, outbound, wsLog); err != nil {
		ws.WriteError(conn, "stream unavailable")
		return
	}

	// Greet with the current state so the UI renders without waiting a tick.
	h.send(ctx, outbound, ws.TickResponse{Event: ws.EventTick, Snapshot: sess.Controller.Snapshot()})

	h.readLoop(ctx, conn, sess, outbound, wsLog)
	wsLog.Info().Msg("UI disconnected")
}

func (h *WSHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, outbound <-chan interface{}) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-outbound:
			if !ok {
				return
			}
			if err := ws.WriteTyped(conn, v); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) send(ctx context.Context, outbound chan<- interface{}, v interface{}) {
	select {
	case outbound <- v:
	case <-ctx.Done():
	}
}

// pumpBus forwards snapshots, advisories and lifecycle events to the
// connection for as long as it lives.
func (h *WSHandler) pumpBus(ctx context.Context, outbound chan<- interface{}, wsLog zerolog.Logger) error {
	snaps, err := h.bus.Subscribe(ctx, events.TopicSnapshots)
	if err != nil {
		return err
	}
	advisories, err := h.bus.Subscribe(ctx, events.TopicAdvisories)
	if err != nil {
		return err
	}
	lifecycle, err := h.bus.Subscribe(ctx, events.TopicLifecycle)
	if err != nil {
		return err
	}

	go func() {
		for msg := range snaps {
			var snap model.Snapshot
			if err := events.Decode(msg, &snap); err != nil {
				wsLog.Error().Err(err).Msg("Decode snapshot failed")
				continue
			}
			h.send(ctx, outbound, ws.TickResponse{Event: ws.EventTick, Snapshot: &snap})
		}
	}()

	go func() {
		for msg := range advisories {
			var adv model.Advisory
			if err := events.Decode(msg, &adv); err != nil {
				wsLog.Error().Err(err).Msg("Decode advisory failed")
				continue
			}
			h.send(ctx, outbound, ws.AdvisoryResponse{Event: advisoryEvent(adv.Code), Advisory: adv})
		}
	}()

	go func() {
		for msg := range lifecycle {
			var ev events.LifecycleEvent
			if err := events.Decode(msg, &ev); err != nil {
				wsLog.Error().Err(err).Msg("Decode lifecycle failed")
				continue
			}
			h.send(ctx, outbound, ws.LifecycleResponse{
				Event:      lifecycleEvent(ev.Status),
				Status:     string(ev.Status),
				Reason:     ev.Reason,
				ShowDialog: ev.ShowDialog,
			})
		}
	}()

	return nil
}

// advisoryEvent promotes the advisories the UI treats specially to their
// own event types; everything else streams as a plain advisory.
func advisoryEvent(code string) ws.Event {
	switch code {
	case "question_locked":
		return ws.EventQuestionLocked
	case "section_advanced":
		return ws.EventSectionAdvanced
	}
	return ws.EventAdvisory
}

func lifecycleEvent(status model.AttemptStatus) ws.Event {
	switch status {
	case model.AttemptSubmitted, model.AttemptAutoSubmitted:
		return ws.EventSubmitted
	}
	return ws.EventTerminated
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *service.Session, outbound chan<- interface{}, wsLog zerolog.Logger) {
	for {
		raw, err := ws.ReadRaw(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		action, req, err := ws.ParseRequest(raw)
		if err != nil {
			h.send(ctx, outbound, ws.ErrorResponse{Event: ws.EventError, Error: "malformed frame"})
			continue
		}

		switch action {
		case ws.ActionSignal:
			sig := req.(*ws.SignalRequest).Signal
			out := sess.Controller.HandleSignal(sig)
			h.send(ctx, outbound, ws.SignalAckResponse{
				Event:          ws.EventSignalAck,
				Signal:         string(sig.Type),
				PreventDefault: out.PreventDefault,
			})
		case ws.ActionWorkspace:
			wreq := req.(*ws.WorkspaceRequest)
			questionID, err := uuid.Parse(wreq.QuestionID)
			if err != nil {
				h.send(ctx, outbound, ws.ErrorResponse{Event: ws.EventError, Error: "invalid question_id"})
				continue
			}
			if err := sess.Workspace.Save(ctx, questionID, &wreq.Workspace); err != nil {
				h.send(ctx, outbound, ws.ErrorResponse{Event: ws.EventError, Error: "save failed"})
			}
		case ws.ActionPing:
			h.send(ctx, outbound, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			h.send(ctx, outbound, ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(action)})
		}
	}
}
