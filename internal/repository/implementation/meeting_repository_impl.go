package implementation

import (
	"context"
	"errors"

	"ai-meeting-copilot-be/internal/entity"
	"ai-meeting-copilot-be/internal/repository"

	"gorm.io/gorm"
)

type MeetingRepositoryImpl struct {
	db *gorm.DB
}

func NewMeetingRepository(db *gorm.DB) repository.MeetingRepository {
	return &MeetingRepositoryImpl{db: db}
}

func (r *MeetingRepositoryImpl) Create(ctx context.Context, meeting *entity.Meeting) error {
	return r.db.WithContext(ctx).Create(meeting).Error
}

func (r *MeetingRepositoryImpl) GetByRoomId(ctx context.Context, roomId string) (*entity.Meeting, error) {
	var m entity.Meeting
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *MeetingRepositoryImpl) List(ctx context.Context, limit, offset int) ([]entity.Meeting, int64, error) {
	var meetings []entity.Meeting
	var total int64

	if err := r.db.WithContext(ctx).Model(&entity.Meeting{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&meetings).Error
	if err != nil {
		return nil, 0, err
	}

	return meetings, total, nil
}

func (r *MeetingRepositoryImpl) CreateSummary(ctx context.Context, summary *entity.MeetingSummary) error {
	return r.db.WithContext(ctx).Create(summary).Error
}

func (r *MeetingRepositoryImpl) GetSummariesByRoomId(ctx context.Context, roomId string) ([]entity.MeetingSummary, error) {
	var summaries []entity.MeetingSummary
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomId).
		Order("created_at DESC").
		Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}
