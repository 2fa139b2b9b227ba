package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/radsadsoap/EchoWave/modules/broadcast"
	"github.com/radsadsoap/EchoWave/modules/relay"
)

const (
	maxFrameBytes  = 64 * 1024
	requestTimeout = 10 * time.Second
)

// Inbound frame types.
const (
	TypeCreateRoom  = "create_room"
	TypeJoinRoom    = "join_room"
	TypeSendMessage = "send_message"
	TypeGetHistory  = "get_chat_history"
	TypeLeaveRoom   = "leave_room"
)

// Reply frame types sent only to the requesting connection.
const (
	TypeRoomCreated = "room_created"
	TypeChatHistory = "chat_history"
	TypeLeftRoom    = "left_room"
)

// IdentityLocal is the Fiber locals key holding the authenticated subject, if any.
const IdentityLocal = "identity"

// JoinPayload is the payload of a join_room frame.
type JoinPayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
	Password string `json:"password,omitempty"`
}

// SendPayload is the payload of a send_message frame.
type SendPayload struct {
	Room    string `json:"room"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// RoomPayload names a room. get_chat_history also accepts a bare string.
type RoomPayload struct {
	Room string `json:"room"`
}

// RoomCreatedPayload acknowledges create_room.
type RoomCreatedPayload struct {
	RoomID  string `json:"roomId"`
	Created bool   `json:"created"`
}

// Handlers runs the WebSocket session protocol on top of the relay.
type Handlers struct {
	port   relay.Port
	hub    *broadcast.Hub
	logger types.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(port relay.Port, hub *broadcast.Hub, logger types.Logger) *Handlers {
	return &Handlers{
		port:   port,
		hub:    hub,
		logger: logger,
	}
}

// HandleWebSocket serves one connection until it closes.
func (h *Handlers) HandleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()
	identity, _ := c.Locals(IdentityLocal).(string)

	client := h.hub.Register(connID, c)
	go client.WritePump()

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := h.port.Disconnect(ctx, connID); err != nil {
			h.logger.Warn("Disconnect failed", "connID", connID, "error", err)
		}
		h.hub.Unregister(connID)
		<-client.Done()
	}()

	c.SetReadLimit(maxFrameBytes)
	h.logger.Info("WebSocket connected", "connID", connID, "identity", identity)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket error", "connID", connID, "error", err)
			}
			break
		}
		h.Dispatch(context.Background(), connID, identity, data)
	}

	h.logger.Info("WebSocket disconnected", "connID", connID)
}

// Dispatch decodes one inbound frame and applies it.
func (h *Handlers) Dispatch(ctx context.Context, connID, identity string, data []byte) {
	var frame broadcast.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.hub.SendError(connID, "Invalid message format")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch frame.Type {
	case TypeCreateRoom:
		h.handleCreateRoom(ctx, connID, identity, frame.Payload)
	case TypeJoinRoom:
		h.handleJoin(ctx, connID, frame.Payload)
	case TypeSendMessage:
		h.handleSend(ctx, connID, frame.Payload)
	case TypeGetHistory:
		h.handleHistory(ctx, connID, frame.Payload)
	case TypeLeaveRoom:
		h.handleLeave(ctx, connID)
	default:
		h.hub.SendError(connID, "Unknown message type: "+frame.Type)
	}
}

func (h *Handlers) handleCreateRoom(ctx context.Context, connID, identity string, payload json.RawMessage) {
	var spec relay.RoomSpec
	if err := json.Unmarshal(payload, &spec); err != nil {
		h.hub.SendError(connID, "Invalid create_room payload")
		return
	}
	if spec.CreatedBy == "" {
		spec.CreatedBy = identity
	}

	created, err := h.port.CreateRoom(ctx, spec)
	if err != nil {
		h.hub.SendError(connID, err.Error())
		return
	}
	h.hub.Send(connID, TypeRoomCreated, RoomCreatedPayload{RoomID: spec.ID, Created: created})
}

func (h *Handlers) handleJoin(ctx context.Context, connID string, payload json.RawMessage) {
	var req JoinPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.hub.SendError(connID, "Invalid join_room payload")
		return
	}

	err := h.port.Join(ctx, connID, req.Username, req.Room, req.Password)
	var rejection relay.Rejection
	if errors.As(err, &rejection) {
		// join_room_error was already delivered by the relay.
		return
	}
	if err != nil {
		h.hub.SendError(connID, err.Error())
	}
}

func (h *Handlers) handleSend(ctx context.Context, connID string, payload json.RawMessage) {
	var req SendPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.hub.SendError(connID, "Invalid send_message payload")
		return
	}

	if _, err := h.port.Send(ctx, req.Room, req.Message, req.Sender); err != nil {
		h.hub.SendError(connID, err.Error())
	}
}

func (h *Handlers) handleHistory(ctx context.Context, connID string, payload json.RawMessage) {
	roomID, ok := decodeRoomID(payload)
	if !ok || roomID == "" {
		h.hub.SendError(connID, "Room id is required")
		return
	}

	messages, err := h.port.History(ctx, roomID)
	if err != nil {
		h.logger.Warn("History request failed", "roomID", roomID, "error", err)
		h.hub.SendError(connID, "Failed to load history")
		return
	}
	h.hub.Send(connID, TypeChatHistory, messages)
}

func (h *Handlers) handleLeave(ctx context.Context, connID string) {
	roomID, left, err := h.port.Leave(ctx, connID)
	if err != nil {
		h.hub.SendError(connID, err.Error())
		return
	}
	if !left {
		h.hub.SendError(connID, "Not in a room")
		return
	}
	h.hub.Send(connID, TypeLeftRoom, RoomPayload{Room: roomID})
}

// decodeRoomID accepts either "roomId" or {"room": "roomId"}.
func decodeRoomID(payload json.RawMessage) (string, bool) {
	var id string
	if err := json.Unmarshal(payload, &id); err == nil {
		return id, true
	}
	var req RoomPayload
	if err := json.Unmarshal(payload, &req); err == nil {
		return req.Room, true
	}
	return "", false
}
