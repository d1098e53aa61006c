package serverutils

import (
	"errors"
	"testing"

	"ai-meeting-copilot-be/internal/dto"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestValidateRequestMissingRoomId(t *testing.T) {
	err := ValidateRequest(dto.CreateMeetingRequest{Title: "sprint planning"})
	assert.Error(t, err)

	var ferr *fiber.Error
	assert.True(t, errors.As(err, &ferr))
	assert.Equal(t, fiber.StatusBadRequest, ferr.Code)
	assert.Contains(t, ferr.Message, "RoomId")
}

func TestValidateRequestAcceptsValidBody(t *testing.T) {
	assert.NoError(t, ValidateRequest(dto.CreateMeetingRequest{RoomId: "room-1"}))
	assert.NoError(t, ValidateRequest(dto.CreateMeetingRequest{RoomId: "room-1", Title: "daily standup"}))
}
