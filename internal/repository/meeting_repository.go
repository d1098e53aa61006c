package repository

import (
	"context"

	"ai-meeting-copilot-be/internal/entity"
)

type MeetingRepository interface {
	Create(ctx context.Context, meeting *entity.Meeting) error
	GetByRoomId(ctx context.Context, roomId string) (*entity.Meeting, error)
	List(ctx context.Context, limit, offset int) ([]entity.Meeting, int64, error)

	CreateSummary(ctx context.Context, summary *entity.MeetingSummary) error
	GetSummariesByRoomId(ctx context.Context, roomId string) ([]entity.MeetingSummary, error)
}

type TranscriptEmbeddingRepository interface {
	Create(ctx context.Context, embedding *entity.TranscriptEmbedding) error
	// SearchSimilar returns up to limit chunks for the room ordered by
	// cosine similarity to the query vector.
	SearchSimilar(ctx context.Context, roomId string, queryVector []float32, limit int) ([]entity.TranscriptEmbedding, error)
	DeleteByRoomId(ctx context.Context, roomId string) error
}
