package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/voice-signaling/config"
	"github.com/mossy-p/voice-signaling/internal/session"
	"github.com/mossy-p/voice-signaling/internal/signaling"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client is the gorilla-backed signaling.Transport for one socket.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	return err
}

// HandleSignaling upgrades the request and resolves its identity from the
// session cookie. Sockets without a valid session are kept open but cannot
// originate or receive signaling.
func HandleSignaling(hub *signaling.Hub, validator session.Validator, cookieName string, cfg config.SignalingConfig, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, authErr := authenticate(c.Request, validator, cookieName)

		// Upgrade HTTP connection to WebSocket
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("Failed to upgrade connection", "error", err)
			return
		}

		client := newClient(conn, cfg.SendBuffer)
		rec := hub.Attach(client, identity, authErr)

		// Start goroutines for reading and writing
		go client.writePump()
		go client.readPump(hub, rec, cfg.MaxMessageSize, logger)
	}
}

func authenticate(r *http.Request, validator session.Validator, cookieName string) (string, error) {
	credential := session.CredentialFromRequest(r, cookieName)
	if credential == "" {
		return "", signaling.ErrAuthenticationMissing
	}
	userID, err := validator.Validate(r.Context(), credential)
	if err != nil {
		if errors.Is(err, session.ErrNoCredential) {
			return "", signaling.ErrAuthenticationMissing
		}
		return "", err
	}
	return userID, nil
}

func (c *Client) readPump(hub *signaling.Hub, rec *signaling.Record, maxMessageSize int64, logger *slog.Logger) {
	defer func() {
		hub.Detach(rec.ID)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		hub.Touch(rec.ID)
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket error", "conn_id", rec.ID, "error", err)
			}
			return
		}
		hub.HandleMessage(context.Background(), rec, message)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
