package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/testutil"
)

func dialWatch(t *testing.T, s *testServer) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/parse"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(10*time.Second)))
	return ws
}

// readUntil reads frames until one of the given types arrives.
func readUntil(t *testing.T, ws *websocket.Conn, types ...string) WSMessage {
	t.Helper()
	for {
		var msg WSMessage
		require.NoError(t, ws.ReadJSON(&msg))
		for _, typ := range types {
			if msg.Type == typ {
				return msg
			}
		}
	}
}

func TestWebSocket_ParseAndWatch(t *testing.T) {
	s := newTestServer(t)
	info := s.upload(t, "line1.L5X", testutil.SampleL5X, "p1", "")
	ws := dialWatch(t, s)

	require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypePing, ID: "x"}))
	assert.Equal(t, MsgTypePong, readUntil(t, ws, MsgTypePong).Type)

	require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypeParse, ID: info.ID}))
	ack := readUntil(t, ws, MsgTypeAck, MsgTypeError)
	require.Equal(t, MsgTypeAck, ack.Type, string(ack.Payload))

	done := readUntil(t, ws, MsgTypeComplete, MsgTypeError)
	require.Equal(t, MsgTypeComplete, done.Type, string(done.Payload))
	assert.Equal(t, ack.ID, done.ID)

	var sess models.ParseSession
	require.NoError(t, json.Unmarshal(done.Payload, &sess))
	assert.Equal(t, models.SessionStatusComplete, sess.Status)
	assert.NotEmpty(t, sess.VersionID)
	require.NotNil(t, sess.Counts)
	assert.Equal(t, 8, sess.Counts.Tags)
}

func TestWebSocket_Errors(t *testing.T) {
	s := newTestServer(t)
	bad := s.upload(t, "bad.L5X", "hello world", "p1", "")
	ws := dialWatch(t, s)

	t.Run("unknown file", func(t *testing.T) {
		require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypeParse, ID: "missing"}))
		msg := readUntil(t, ws, MsgTypeError)
		var payload WSErrorPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, "NOT_FOUND", payload.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypeWatch, ID: "nope"}))
		msg := readUntil(t, ws, MsgTypeError)
		assert.Equal(t, "nope", msg.ID)
	})

	t.Run("unknown type", func(t *testing.T) {
		require.NoError(t, ws.WriteJSON(WSMessage{Type: "upload:init"}))
		msg := readUntil(t, ws, MsgTypeError)
		var payload WSErrorPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, "INVALID_TYPE", payload.Code)
	})

	t.Run("failed parse", func(t *testing.T) {
		require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypeParse, ID: bad.ID}))
		ack := readUntil(t, ws, MsgTypeAck)
		msg := readUntil(t, ws, MsgTypeError)
		assert.Equal(t, ack.ID, msg.ID)
		var payload WSErrorPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, "MalformedDocument", payload.Code)
	})
}
