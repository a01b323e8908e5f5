package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/voice-coach/internal/identity"
	"github.com/ashureev/voice-coach/internal/store"
	"github.com/ashureev/voice-coach/internal/turn"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// WebSocketHandler streams turn state transitions for one session over a WebSocket.
type WebSocketHandler struct {
	repo           store.Repository
	hub            *Hub
	allowedOrigins []string
	isDev          bool
	logger         *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(repo store.Repository, hub *Hub, allowedOrigins []string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		repo:           repo,
		hub:            hub,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		logger:         logger,
	}
}

// wsMessage is the envelope for both directions.
type wsMessage struct {
	Type      string     `json:"type"`
	SessionID string     `json:"sessionId,omitempty"`
	Turn      int        `json:"turn,omitempty"`
	State     turn.State `json:"state,omitempty"`
	At        *time.Time `json:"at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := identity.ClientIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	h.logger.Info("WebSocket connection request", "client_id", clientID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	if sessionID == "" {
		http.Error(w, `{"error":"Session ID required"}`, http.StatusBadRequest)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if _, err := h.repo.Get(ctx, sessionID); err != nil {
		h.logger.Warn("Turn stream for unknown session", "session_id", sessionID, "error", err)
		_ = h.write(ctx, ws, wsMessage{Type: "error", SessionID: sessionID, Error: "session_not_found"})
		return
	}

	sub := h.hub.Subscribe(sessionID)
	defer h.hub.Unsubscribe(sub)

	if err := h.write(ctx, ws, wsMessage{Type: "subscribed", SessionID: sessionID}); err != nil {
		return
	}

	go func() {
		defer cancel()
		h.inputLoop(ctx, ws, sessionID)
	}()

	h.outputLoop(ctx, ws, sub)
	h.logger.Info("Turn stream ended", "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin)
	return false
}

func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, sessionID string) {
	for {
		var msg wsMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		switch msg.Type {
		case "ping":
			if err := h.write(ctx, ws, wsMessage{Type: "pong"}); err != nil {
				h.logger.Debug("Failed to send pong", "error", err)
				return
			}
		case "close":
			return
		}
	}
}

func (h *WebSocketHandler) outputLoop(ctx context.Context, ws *websocket.Conn, sub *Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			at := ev.At
			msg := wsMessage{Type: "state", SessionID: ev.SessionID, Turn: ev.Turn, State: ev.State, At: &at}
			if err := h.write(ctx, ws, msg); err != nil {
				h.logger.Debug("WebSocket write error", "error", err, "session_id", ev.SessionID)
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, msg wsMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, msg)
}
