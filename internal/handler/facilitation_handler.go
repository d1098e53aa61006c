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

// FacilitationHandler exposes the Scrum-Master channel at
// /ws/facilitate/:meetingId.
type FacilitationHandler struct {
	service service.IFacilitationService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewFacilitationHandler(svc service.IFacilitationService, hub *internalWS.Hub, log logger.ILogger) *FacilitationHandler {
	return &FacilitationHandler{
		service: svc,
		hub:     hub,
		logger:  log,
	}
}

func (h *FacilitationHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/facilitate/:meetingId", h.ServeWs)
}

func (h *FacilitationHandler) ServeWs(c *fiber.Ctx) error {
	meetingID := c.Params("meetingId")
	if meetingID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing meeting id"})
	}

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
		h.logger.Info("FacilitationHandler", "Facilitation session started", map[string]interface{}{
			"meeting_id":  meetingID,
			"participant": participantName,
		})

		internalWS.ServeWs(h.hub, conn, meetingID, internalWS.RoleFacilitator, participantID, participantName,
			func(client *internalWS.Client, data []byte) {
				h.service.HandleMessage(meetingID, client, data)
			},
			nil, // session state outlives connections; stop_session tears it down
		)

		h.logger.Info("FacilitationHandler", "Facilitation session ended", map[string]interface{}{
			"meeting_id": meetingID,
		})
	})(c)
}
