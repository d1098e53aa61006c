package handler

import (
	"ai-meeting-copilot-be/internal/pkg/logger"
	"ai-meeting-copilot-be/internal/pkg/serverutils"
	"ai-meeting-copilot-be/internal/service"
	internalWS "ai-meeting-copilot-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ObservationHandler exposes the per-meeting observation channel at
// /ws/observe/:meetingId.
type ObservationHandler struct {
	service service.IObservationService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewObservationHandler(svc service.IObservationService, hub *internalWS.Hub, log logger.ILogger) *ObservationHandler {
	return &ObservationHandler{
		service: svc,
		hub:     hub,
		logger:  log,
	}
}

func (h *ObservationHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/observe/:meetingId", h.ServeWs)
}

func (h *ObservationHandler) ServeWs(c *fiber.Ctx) error {
	meetingID := c.Params("meetingId")
	if meetingID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing meeting id"})
	}

	// Identity is optional on the realtime channels; a token only attaches
	// a display name to the connection.
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	participantIDStr, participantName := serverutils.ParseParticipantToken(tokenStr)
	participantID, err := uuid.Parse(participantIDStr)
	if err != nil {
		participantID = uuid.New()
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("ObservationHandler", "Observation session started", map[string]interface{}{
			"meeting_id":  meetingID,
			"participant": participantName,
		})

		internalWS.ServeWs(h.hub, conn, meetingID, internalWS.RoleObserver, participantID, participantName,
			func(client *internalWS.Client, data []byte) {
				h.service.HandleMessage(meetingID, client, data)
			},
			func(client *internalWS.Client) {
				h.service.ReleaseMeeting(meetingID, h.hub.CountRole(meetingID, internalWS.RoleObserver))
			},
		)

		h.logger.Info("ObservationHandler", "Observation session ended", map[string]interface{}{
			"meeting_id": meetingID,
		})
	})(c)
}
