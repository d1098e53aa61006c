package service

import (
	"context"
	"errors"
	"strings"

	"ai-meeting-copilot-be/internal/dto"
	"ai-meeting-copilot-be/internal/entity"
	"ai-meeting-copilot-be/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IMeetingService interface {
	Create(ctx context.Context, req *dto.CreateMeetingRequest) (*dto.MeetingResponse, error)
	GetByRoomId(ctx context.Context, roomId string) (*dto.MeetingResponse, error)
	List(ctx context.Context, limit, offset int) (*dto.MeetingListResponse, error)
	GetSummaries(ctx context.Context, roomId string) ([]dto.MeetingSummaryResponse, error)
}

type meetingService struct {
	repo repository.MeetingRepository
}

func NewMeetingService(repo repository.MeetingRepository) IMeetingService {
	return &meetingService{repo: repo}
}

func (s *meetingService) Create(ctx context.Context, req *dto.CreateMeetingRequest) (*dto.MeetingResponse, error) {
	roomId := strings.TrimSpace(req.RoomId)
	if roomId == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "room_id is required")
	}

	if existing, err := s.repo.GetByRoomId(ctx, roomId); err == nil && existing != nil {
		return nil, fiber.NewError(fiber.StatusConflict, "meeting already exists")
	}

	meeting := &entity.Meeting{
		Id:     uuid.New(),
		RoomId: roomId,
		Title:  strings.TrimSpace(req.Title),
	}
	if err := s.repo.Create(ctx, meeting); err != nil {
		return nil, err
	}

	return toMeetingResponse(meeting), nil
}

func (s *meetingService) GetByRoomId(ctx context.Context, roomId string) (*dto.MeetingResponse, error) {
	meeting, err := s.repo.GetByRoomId(ctx, roomId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "meeting not found")
		}
		return nil, err
	}
	return toMeetingResponse(meeting), nil
}

func (s *meetingService) List(ctx context.Context, limit, offset int) (*dto.MeetingListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	meetings, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	res := &dto.MeetingListResponse{
		Meetings: make([]dto.MeetingResponse, 0, len(meetings)),
		Total:    total,
	}
	for i := range meetings {
		res.Meetings = append(res.Meetings, *toMeetingResponse(&meetings[i]))
	}
	return res, nil
}

func (s *meetingService) GetSummaries(ctx context.Context, roomId string) ([]dto.MeetingSummaryResponse, error) {
	summaries, err := s.repo.GetSummariesByRoomId(ctx, roomId)
	if err != nil {
		return nil, err
	}

	res := make([]dto.MeetingSummaryResponse, 0, len(summaries))
	for _, sm := range summaries {
		res = append(res, dto.MeetingSummaryResponse{
			Id:         sm.Id,
			SessionId:  sm.SessionId,
			Summary:    sm.Summary,
			SprintGoal: sm.SprintGoal,
			CreatedAt:  sm.CreatedAt,
		})
	}
	return res, nil
}

func toMeetingResponse(m *entity.Meeting) *dto.MeetingResponse {
	return &dto.MeetingResponse{
		Id:        m.Id,
		RoomId:    m.RoomId,
		Title:     m.Title,
		CreatedAt: m.CreatedAt,
	}
}
