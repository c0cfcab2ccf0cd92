package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/dns-log-viewer/backend/internal/models"
)

// WebSocket message types for the view-state push protocol
const (
	// Server -> Client messages
	MsgTypeState = "state"
	MsgTypeError = "error"
	MsgTypePong  = "pong"

	// Client -> Server messages
	MsgTypePing = "ping"
)

// WSMessage is the envelope for every frame on the view socket.
type WSMessage struct {
	Type      string            `json:"type"`
	State     *models.ViewState `json:"state,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// statePollInterval bounds how often a changed snapshot is pushed.
const statePollInterval = 200 * time.Millisecond

// WebSocketHandler pushes view-state changes (loading, atEnd, total,
// lastError) to the table surface so it re-renders when an asynchronous
// fetch merges, instead of polling the rows endpoint.
type WebSocketHandler struct {
	views    ViewManager
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a WebSocket handler on top of the view manager.
func NewWebSocketHandler(views ViewManager) *WebSocketHandler {
	return &WebSocketHandler{
		views: views,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Same-host deployment; the embedded frontend is served
			// from this binary.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleViewSocket upgrades the connection and streams state snapshots
// whenever they change, until the client disconnects or the view closes.
func (h *WebSocketHandler) HandleViewSocket(c echo.Context) error {
	viewID := c.Param("viewId")
	if _, ok := h.views.GetView(viewID); !ok {
		return NewNotFoundError("view", viewID)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}
	defer conn.Close()

	// Reader goroutine: forwards pings and unblocks on close. It never
	// writes to the connection itself; gorilla allows only one concurrent
	// writer, so every outgoing frame is sent from the select loop below.
	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(done)
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == MsgTypePing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(statePollInterval)
	defer ticker.Stop()

	var last *models.ViewState
	for {
		select {
		case <-done:
			return nil
		case <-c.Request().Context().Done():
			return nil
		case <-pings:
			if err := conn.WriteJSON(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()}); err != nil {
				return nil
			}
		case <-ticker.C:
			state, ok := h.views.ViewStateOf(viewID)
			if !ok {
				conn.WriteJSON(WSMessage{
					Type:      MsgTypeError,
					Message:   "view closed",
					Timestamp: time.Now().UnixMilli(),
				})
				return nil
			}

			// Only push when something changed.
			if last != nil && state == *last {
				continue
			}
			snapshot := state
			last = &snapshot

			h.views.TouchView(viewID)
			if err := conn.WriteJSON(WSMessage{
				Type:      MsgTypeState,
				State:     &snapshot,
				Timestamp: time.Now().UnixMilli(),
			}); err != nil {
				return nil
			}
		}
	}
}
