package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/plc-analyzer/backend/internal/models"
)

// WebSocket message types for the parse watch protocol
const (
	// Client -> Server messages
	MsgTypeParse = "parse:start" // id is a file id
	MsgTypeWatch = "parse:watch" // id is a session id
	MsgTypePing  = "ping"

	// Server -> Client messages
	MsgTypeAck      = "ack"
	MsgTypeProgress = "progress"
	MsgTypeComplete = "complete"
	MsgTypeError    = "error"
	MsgTypePong     = "pong"
)

// WSMessage is the envelope of every frame in both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorPayload describes a rejected request or a failed parse.
type WSErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler pushes parse session updates to connected clients. One
// connection may watch several sessions at once.
type WebSocketHandler struct {
	sessionMgr   SessionManager
	upgrader     websocket.Upgrader
	pollInterval time.Duration
	watchTimeout time.Duration
}

// NewWebSocketHandler creates a new parse progress WebSocket handler
func NewWebSocketHandler(sessionMgr SessionManager) *WebSocketHandler {
	return &WebSocketHandler{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Origin policy is enforced by the CORS middleware
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		pollInterval: 100 * time.Millisecond,
		watchTimeout: 5 * time.Minute,
	}
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	done chan struct{}
}

func (c *wsConn) send(msg WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *wsConn) sendPayload(typ, id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.send(WSMessage{Type: typ, ID: id, Payload: data})
}

func (c *wsConn) sendError(id, message, code string) error {
	return c.sendPayload(MsgTypeError, id, WSErrorPayload{Message: message, Code: code})
}

// HandleWebSocket upgrades the connection and serves the watch protocol
// until the client disconnects.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	conn := &wsConn{ws: ws, done: make(chan struct{})}
	logger := slog.Default().With("component", "websocket", "remote", c.RealIP())
	logger.Debug("client connected")

	var watchers sync.WaitGroup
	defer func() {
		close(conn.done)
		ws.Close()
		watchers.Wait()
		logger.Debug("client disconnected")
	}()

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("connection error", "error", err)
			}
			return nil
		}

		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong, ID: msg.ID})
		case MsgTypeParse:
			sess, err := h.sessionMgr.StartParse(msg.ID)
			if err != nil {
				apiErr := FromError(err, "file", msg.ID)
				conn.sendError(msg.ID, apiErr.Message, apiErr.Code)
				continue
			}
			conn.sendPayload(MsgTypeAck, sess.ID, sess)
			watchers.Add(1)
			go func() {
				defer watchers.Done()
				h.watch(conn, sess.ID)
			}()
		case MsgTypeWatch:
			if _, ok := h.sessionMgr.GetSession(msg.ID); !ok {
				conn.sendError(msg.ID, "session not found", "NOT_FOUND")
				continue
			}
			conn.send(WSMessage{Type: MsgTypeAck, ID: msg.ID})
			watchers.Add(1)
			go func() {
				defer watchers.Done()
				h.watch(conn, msg.ID)
			}()
		default:
			conn.sendError(msg.ID, "unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}
}

// watch sends a progress frame whenever the session changes and a final
// complete or error frame when it finishes.
func (h *WebSocketHandler) watch(conn *wsConn, sessionID string) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(h.watchTimeout)
	defer timeout.Stop()

	var last models.ParseSession
	for {
		sess, ok := h.sessionMgr.GetSession(sessionID)
		if !ok {
			conn.sendError(sessionID, "session not found", "NOT_FOUND")
			return
		}
		switch sess.Status {
		case models.SessionStatusComplete:
			conn.sendPayload(MsgTypeComplete, sessionID, sess)
			return
		case models.SessionStatusError:
			conn.sendPayload(MsgTypeError, sessionID, WSErrorPayload{Message: sess.Error, Code: sess.ErrorKind})
			return
		}
		if sess.Status != last.Status || sess.Progress != last.Progress {
			if err := conn.sendPayload(MsgTypeProgress, sessionID, sess); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					slog.Debug("progress write failed", "session", sessionID, "error", err)
				}
				return
			}
			last = *sess
		}

		select {
		case <-ticker.C:
		case <-conn.done:
			return
		case <-timeout.C:
			conn.sendError(sessionID, "watch timeout", "TIMEOUT")
			return
		}
	}
}
