package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/radsadsoap/EchoWave/domain/chat"
	"github.com/radsadsoap/EchoWave/modules/activity"
	"github.com/radsadsoap/EchoWave/modules/broadcast"
	"github.com/radsadsoap/EchoWave/modules/relay"
	"github.com/radsadsoap/EchoWave/modules/store"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

// newTestModule wires the API to an in-process relay backed by SQLite.
func newTestModule(t *testing.T, secret string) (*APIModule, *activity.Tracker) {
	t.Helper()
	backend, err := store.OpenSQLite(t.TempDir() + "/api.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	logger := &mockLogger{}
	hub := broadcast.NewHub(64, logger)
	r := relay.New(store.NewLocalAdapter(backend), hub, relay.NewCredentialGate(4), logger)
	tracker := activity.NewTracker()

	m := NewModule(Options{Addr: "127.0.0.1:0", AllowedOrigins: "*", JWTSecret: secret}, logger)
	m.relay = r.Port()
	m.activity = activity.TrackerPort{Tracker: tracker}
	m.SetHub(hub)
	m.buildApp()
	return m, tracker
}

func doRequest(t *testing.T, m *APIModule, method, path, body, token string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := m.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestModule_Basics(t *testing.T) {
	m := NewModule(Options{}, &mockLogger{})
	assert.Equal(t, "api", m.Name())
	assert.Equal(t, []string{"relay", "activity"}, m.Dependencies())
	assert.Equal(t, ":3001", m.Addr())
	assert.False(t, m.Health(context.Background()).Healthy)
	assert.Error(t, m.Start(context.Background()))
}

func TestREST_RoomLifecycle(t *testing.T) {
	m, _ := newTestModule(t, "")

	status, body := doRequest(t, m, http.MethodPost, "/api/v1/rooms",
		`{"roomId":"r1","name":"Room 1","createdBy":"u1"}`, "")
	require.Equal(t, http.StatusCreated, status, string(body))
	var created CreateRoomResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, CreateRoomResponse{RoomID: "r1", Created: true}, created)

	status, _ = doRequest(t, m, http.MethodPost, "/api/v1/rooms", `{"roomId":"r1","name":"Other"}`, "")
	assert.Equal(t, http.StatusOK, status)

	status, body = doRequest(t, m, http.MethodGet, "/api/v1/rooms", "", "")
	require.Equal(t, http.StatusOK, status)
	var list RoomListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Room 1", list.Rooms[0].Name)

	status, body = doRequest(t, m, http.MethodGet, "/api/v1/rooms/r1", "", "")
	require.Equal(t, http.StatusOK, status)
	var room domain.RoomSummary
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, "u1", room.CreatedBy)

	status, body = doRequest(t, m, http.MethodGet, "/api/v1/rooms/r1/members", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"room_id":"r1","members":[]}`, string(body))

	status, body = doRequest(t, m, http.MethodGet, "/api/v1/rooms/r1/history", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"room_id":"r1","messages":[]}`, string(body))

	status, _ = doRequest(t, m, http.MethodDelete, "/api/v1/rooms/r1", "", "")
	assert.Equal(t, http.StatusOK, status)

	status, body = doRequest(t, m, http.MethodGet, "/api/v1/rooms/r1", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "Room not found")

	status, _ = doRequest(t, m, http.MethodDelete, "/api/v1/rooms/r1", "", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestREST_CreateValidation(t *testing.T) {
	m, _ := newTestModule(t, "")

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "bad json", body: `{`, want: "invalid_request"},
		{name: "missing id", body: `{"name":"x"}`, want: relay.ErrRoomIDEmpty.Error()},
		{name: "long password", body: `{"roomId":"r","isPasswordProtected":true,"password":"` + strings.Repeat("p", 73) + `"}`, want: relay.ErrPasswordTooLong.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, m, http.MethodPost, "/api/v1/rooms", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Contains(t, string(body), tt.want)
		})
	}
}

func TestREST_JWTProtectsMutations(t *testing.T) {
	m, _ := newTestModule(t, testSecret)

	status, _ := doRequest(t, m, http.MethodPost, "/api/v1/rooms", `{"roomId":"r1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	token := signToken(t, testSecret, "owner-1", time.Hour)
	status, body := doRequest(t, m, http.MethodPost, "/api/v1/rooms", `{"roomId":"r1"}`, token)
	require.Equal(t, http.StatusCreated, status, string(body))

	_, body = doRequest(t, m, http.MethodGet, "/api/v1/rooms/r1", "", "")
	var room domain.RoomSummary
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, "owner-1", room.CreatedBy)

	status, _ = doRequest(t, m, http.MethodDelete, "/api/v1/rooms/r1", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = doRequest(t, m, http.MethodDelete, "/api/v1/rooms/r1", "", token)
	assert.Equal(t, http.StatusOK, status)
}

func TestREST_HealthAndStats(t *testing.T) {
	m, tracker := newTestModule(t, "")
	tracker.RoomCreated("r1", false)

	status, body := doRequest(t, m, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"connected_clients":0`)

	status, body = doRequest(t, m, http.MethodGet, "/api/v1/stats", "", "")
	require.Equal(t, http.StatusOK, status)
	var stats activity.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, int64(1), stats.RoomsCreated)
}

func TestREST_WebSocketRouteRequiresUpgrade(t *testing.T) {
	m, _ := newTestModule(t, "")
	status, _ := doRequest(t, m, http.MethodGet, "/ws", "", "")
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, m *APIModule, query string) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+m.Addr()+"/ws"+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(frameType string, payload any) {
	raw, err := json.Marshal(payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(broadcast.Frame{Type: frameType, Payload: raw}))
}

// expect reads frames until one of the given type arrives.
func (c *wsClient) expect(frameType string) broadcast.Frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f broadcast.Frame
		require.NoError(c.t, c.conn.ReadJSON(&f))
		if f.Type == frameType {
			return f
		}
	}
}

func startServer(t *testing.T, secret string) *APIModule {
	t.Helper()
	m, _ := newTestModule(t, secret)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	return m
}

func TestWebSocket_EndToEnd(t *testing.T) {
	m := startServer(t, "")
	alice := dial(t, m, "")
	bob := dial(t, m, "")

	alice.send("create_room", relay.RoomSpec{ID: "r2", IsTemporary: true, IsPasswordProtected: true, Password: "pw"})
	alice.expect("room_created")

	alice.send("join_room", map[string]string{"username": "alice", "room": "r2", "password": "pw"})
	alice.expect(relay.EventJoinRoomSuccess)

	bob.send("join_room", map[string]string{"username": "bob", "room": "r2"})
	f := bob.expect(relay.EventJoinRoomError)
	assert.Equal(t, "Password required", f.Error)

	bob.send("join_room", map[string]string{"username": "bob", "room": "r2", "password": "pw"})
	bob.expect(relay.EventJoinRoomSuccess)
	joined := alice.expect(relay.EventUserJoined)
	assert.JSONEq(t, `"bob"`, string(joined.Payload))

	bob.send("send_message", map[string]string{"room": "r2", "message": "hello", "sender": "bob"})
	for _, c := range []*wsClient{alice, bob} {
		var msg domain.Message
		require.NoError(t, json.Unmarshal(c.expect(relay.EventReceiveMessage).Payload, &msg))
		assert.Equal(t, "hello", msg.Body)
	}

	alice.send("get_chat_history", "r2")
	var history []domain.Message
	require.NoError(t, json.Unmarshal(alice.expect("chat_history").Payload, &history))
	require.Len(t, history, 1)

	require.NoError(t, bob.conn.Close())
	left := alice.expect(relay.EventUserLeft)
	assert.JSONEq(t, `"bob"`, string(left.Payload))
}

func TestWebSocket_TokenRequired(t *testing.T) {
	m := startServer(t, testSecret)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+m.Addr()+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c := dial(t, m, "?token="+signToken(t, testSecret, "user-9", time.Hour))
	c.send("create_room", relay.RoomSpec{ID: "mine"})
	c.expect("room_created")

	status, body := doRequest(t, m, http.MethodGet, "/api/v1/rooms/mine", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"createdBy":"user-9"`)
}
