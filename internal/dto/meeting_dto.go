package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateMeetingRequest struct {
	RoomId string `json:"room_id" validate:"required"`
	Title  string `json:"title" validate:"omitempty,max=200"`
}

type MeetingResponse struct {
	Id        uuid.UUID `json:"id"`
	RoomId    string    `json:"room_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type MeetingListResponse struct {
	Meetings []MeetingResponse `json:"meetings"`
	Total    int64             `json:"total"`
}

type MeetingSummaryResponse struct {
	Id         uuid.UUID `json:"id"`
	SessionId  uuid.UUID `json:"session_id"`
	Summary    string    `json:"summary"`
	SprintGoal string    `json:"sprint_goal,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
