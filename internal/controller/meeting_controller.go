package controller

import (
	"ai-meeting-copilot-be/internal/dto"
	"ai-meeting-copilot-be/internal/pkg/serverutils"
	"ai-meeting-copilot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IMeetingController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
	Summaries(ctx *fiber.Ctx) error
}

type meetingController struct {
	service service.IMeetingService
}

func NewMeetingController(service service.IMeetingService) IMeetingController {
	return &meetingController{service: service}
}

func (c *meetingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/meeting/v1")
	h.Get("", c.GetAll)
	h.Post("", c.Create)
	h.Get(":roomId", c.Show)
	h.Get(":roomId/summaries", c.Summaries)
}

func (c *meetingController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateMeetingRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create meeting", res))
}

func (c *meetingController) Show(ctx *fiber.Ctx) error {
	res, err := c.service.GetByRoomId(ctx.Context(), ctx.Params("roomId"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show meeting", res))
}

func (c *meetingController) GetAll(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 20)
	offset := ctx.QueryInt("offset", 0)

	res, err := c.service.List(ctx.Context(), limit, offset)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all meetings", res))
}

func (c *meetingController) Summaries(ctx *fiber.Ctx) error {
	res, err := c.service.GetSummaries(ctx.Context(), ctx.Params("roomId"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get meeting summaries", res))
}
