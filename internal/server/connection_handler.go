package server

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/connection"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type connectionHandler struct {
	conn    *websocket.Conn
	client  *connection.Connection
	handler Handler
}

func (c *connectionHandler) connID() string {
	return c.client.ID
}

// handleMessages reads until the socket fails. Every text frame goes to the
// broker as is.
func (c *connectionHandler) handleMessages() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			handleReadError(c.connID(), err)
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if messageType != websocket.TextMessage {
			logger.WarnF("[%s] Ignoring non-text frame", c.connID())
			continue
		}
		logger.DebugF("[%s] Receive message %s", c.connID(), data)
		c.handler.OnMessage(c.connID(), data)
	}
}

// writePump is the only writer on the socket.
func (c *connectionHandler) writePump(finished chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(finished)
	}()

	for {
		select {
		case <-c.client.Done():
			c.writeClose()
			return
		case data := <-c.client.Outbound():
			// select picks at random when both are ready
			select {
			case <-c.client.Done():
				c.writeClose()
				return
			default:
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.ErrorF("[%s] Fail to send data, details: %v", c.connID(), err)
				// unblocks the reader, which then closes the subscriber
				_ = c.conn.Close()
				return
			}
			logger.DebugF("[%s] Send %d bytes to client", c.connID(), len(data))
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.WarnF("[%s] Fail to send ping, details: %v", c.connID(), err)
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (c *connectionHandler) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *connectionHandler) handleConnection() {
	finished := make(chan struct{})
	go c.writePump(finished)

	defer func() {
		c.handler.OnClose(c.connID())
		<-finished
		logger.DebugF("[%s] Connection closed", c.connID())
		if err := c.conn.Close(); err != nil && !isNetClosedError(err) {
			logger.WarnF("[%s] Error occured while closing connection, details: %v", c.connID(), err)
		}
	}()

	c.handleMessages()
}
