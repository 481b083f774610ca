package handler

import (
	"net/http"
	"time"

	"sms-billing-gateway/internal/adapter/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// StreamHandler upgrades clients to a websocket and relays hub events.
type StreamHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(hub *ws.Hub, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth happens via JWT before the upgrade; origins are not restricted.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Stream handles GET /api/v1/sms/ws. The connection receives every batch
// and delivery event as a JSON frame until the client disconnects or the
// subscriber falls behind and is dropped.
func (h *StreamHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := h.hub.Subscribe()
	if sub == nil {
		_ = conn.Close()
		return
	}

	go h.writePump(conn, sub)
	h.readPump(conn, sub)
}

// writePump forwards hub messages and keeps the connection alive with pings.
func (h *StreamHandler) writePump(conn *websocket.Conn, sub *ws.Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.Messages:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and unsubscribes on disconnect.
func (h *StreamHandler) readPump(conn *websocket.Conn, sub *ws.Subscriber) {
	defer h.hub.Unsubscribe(sub)
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
