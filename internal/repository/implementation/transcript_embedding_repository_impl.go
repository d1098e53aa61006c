package implementation

import (
	"context"

	"ai-meeting-copilot-be/internal/entity"
	"ai-meeting-copilot-be/internal/repository"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type TranscriptEmbeddingRepositoryImpl struct {
	db *gorm.DB
}

func NewTranscriptEmbeddingRepository(db *gorm.DB) repository.TranscriptEmbeddingRepository {
	return &TranscriptEmbeddingRepositoryImpl{db: db}
}

func (r *TranscriptEmbeddingRepositoryImpl) Create(ctx context.Context, embedding *entity.TranscriptEmbedding) error {
	return r.db.WithContext(ctx).Create(embedding).Error
}

func (r *TranscriptEmbeddingRepositoryImpl) SearchSimilar(ctx context.Context, roomId string, queryVector []float32, limit int) ([]entity.TranscriptEmbedding, error) {
	var results []entity.TranscriptEmbedding

	// pgvector cosine distance: embedding_value <=> query (0 = identical)
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomId).
		Order(gorm.Expr("embedding_value <=> ?", pgvector.NewVector(queryVector))).
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	return results, nil
}

func (r *TranscriptEmbeddingRepositoryImpl) DeleteByRoomId(ctx context.Context, roomId string) error {
	return r.db.WithContext(ctx).Where("room_id = ?", roomId).Delete(&entity.TranscriptEmbedding{}).Error
}
