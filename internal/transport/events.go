package transport

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-media-analyzer/internal/logger"
	"go-media-analyzer/internal/observer"
)

const (
	eventBuffer = 64
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
)

// events upgrades to a websocket and relays every observer event as JSON
// until the client goes away
func (h *handler) events(c *gin.Context) {
	// subscribe before the handshake completes so no event is missed
	sub := observer.NewStreamObserver("events-"+uuid.NewString(), eventBuffer)
	defer sub.Close()
	h.deps.Events.Subscribe(sub)
	defer h.deps.Events.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Warn("Failed to upgrade events connection")
		return
	}
	defer conn.Close()

	log := logger.ForComponent("events").WithField("subscriber", sub.GetObserverName())
	log.Debug("Events subscriber connected")

	// the read side only handles control frames and notices disconnects
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			log.Debug("Events subscriber disconnected")
			return
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.WithError(err).Debug("Failed to write event")
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
