package api

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/radsadsoap/EchoWave/modules/relay"
	"github.com/radsadsoap/EchoWave/modules/wsserver"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	m.app.Use("/ws", UpgradeMiddleware(m.verifier))
	m.app.Get("/ws", websocket.New(m.ws.HandleWebSocket))

	api := m.app.Group("/api/v1")
	auth := AuthMiddleware(m.verifier)

	api.Get("/rooms", m.listRooms)
	api.Post("/rooms", auth, m.createRoom)
	api.Get("/rooms/:id", m.getRoom)
	api.Delete("/rooms/:id", auth, m.deleteRoom)
	api.Get("/rooms/:id/history", m.getHistory)
	api.Get("/rooms/:id/members", m.getMembers)
	api.Get("/stats", m.getStats)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.hub.ClientCount(),
			"dropped_frames":    m.hub.Dropped(),
		},
	})
}

// listRooms handles GET /api/v1/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	rooms, err := m.relay.ListRooms(c.UserContext())
	if err != nil {
		m.logger.Warn("List rooms failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}
	return c.JSON(RoomListResponse{Rooms: rooms, Count: len(rooms)})
}

// createRoom handles POST /api/v1/rooms.
func (m *APIModule) createRoom(c *fiber.Ctx) error {
	var spec relay.RoomSpec
	if err := c.BodyParser(&spec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if spec.CreatedBy == "" {
		spec.CreatedBy, _ = c.Locals(wsserver.IdentityLocal).(string)
	}
	if err := relay.ValidateRoomSpec(spec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	}

	created, err := m.relay.CreateRoom(c.UserContext(), spec)
	if err != nil {
		m.logger.Warn("Create room failed", "roomID", spec.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create room",
		})
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(CreateRoomResponse{RoomID: spec.ID, Created: created})
}

// getRoom handles GET /api/v1/rooms/:id.
func (m *APIModule) getRoom(c *fiber.Ctx) error {
	roomID := c.Params("id")

	room, found, err := m.relay.GetRoom(c.UserContext(), roomID)
	if err != nil {
		m.logger.Warn("Get room failed", "roomID", roomID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "lookup_failed",
			Message: "Failed to load room",
		})
	}
	if !found {
		return roomNotFound(c)
	}
	return c.JSON(room)
}

// deleteRoom handles DELETE /api/v1/rooms/:id.
func (m *APIModule) deleteRoom(c *fiber.Ctx) error {
	roomID := c.Params("id")

	deleted, err := m.relay.DeleteRoom(c.UserContext(), roomID)
	if err != nil {
		m.logger.Warn("Delete room failed", "roomID", roomID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to delete room",
		})
	}
	if !deleted {
		return roomNotFound(c)
	}
	return c.JSON(DeleteRoomResponse{RoomID: roomID, Deleted: true})
}

// getHistory handles GET /api/v1/rooms/:id/history.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	roomID := c.Params("id")

	messages, err := m.relay.History(c.UserContext(), roomID)
	if err != nil {
		m.logger.Warn("History failed", "roomID", roomID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to load history",
		})
	}
	return c.JSON(HistoryResponse{RoomID: roomID, Messages: messages})
}

// getMembers handles GET /api/v1/rooms/:id/members.
func (m *APIModule) getMembers(c *fiber.Ctx) error {
	roomID := c.Params("id")

	members, err := m.relay.Members(c.UserContext(), roomID)
	if err != nil {
		m.logger.Warn("Members failed", "roomID", roomID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "members_failed",
			Message: "Failed to load members",
		})
	}
	if members == nil {
		members = []string{}
	}
	return c.JSON(MembersResponse{RoomID: roomID, Members: members})
}

// getStats handles GET /api/v1/stats.
func (m *APIModule) getStats(c *fiber.Ctx) error {
	stats, err := m.activity.GetStats(c.UserContext())
	if err != nil {
		m.logger.Warn("Stats failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "stats_failed",
			Message: "Failed to load stats",
		})
	}
	return c.JSON(stats)
}

func roomNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		Error:   "not_found",
		Message: "Room not found",
	})
}
