package channel

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chatline/pkg/logger"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	maxFrame   = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin filtering happens in the shared request middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and runs the connection until it drops.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &conn{ws: ws, done: make(chan struct{})}
	h.register(c)
	logger.Info("ws_connected", "remote", r.RemoteAddr)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		h.pingLoop(c)
	}()
	go func() {
		defer h.wg.Done()
		defer close(c.done)
		h.readLoop(c)
	}()
}

func (h *Hub) readLoop(c *conn) {
	defer func() {
		h.unregister(c)
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(maxFrame)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var ev Event
		if err := c.ws.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws_read_ended", "error", err)
			}
			return
		}
		if ev.Name == "" {
			continue
		}
		h.handleEvent(c, ev)
	}
}

func (h *Hub) pingLoop(c *conn) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			c.mu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
