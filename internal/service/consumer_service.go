package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-meeting-copilot-be/internal/entity"
	"ai-meeting-copilot-be/internal/repository"
	"ai-meeting-copilot-be/pkg/embedding"
	"ai-meeting-copilot-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

const (
	embedChunkSize    = 1000
	embedChunkOverlap = 100
)

// IConsumerService embeds finalized transcript chunks in the background so
// the realtime path never waits on the embedding provider.
type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	embedRepo         repository.TranscriptEmbeddingRepository
	embeddingProvider embedding.EmbeddingProvider
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	embedRepo repository.TranscriptEmbeddingRepository,
	embeddingProvider embedding.EmbeddingProvider,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		embedRepo:         embedRepo,
		embeddingProvider: embeddingProvider,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload PublishTranscriptMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal transcript message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	chunks := utils.SplitText(payload.Text, embedChunkSize, embedChunkOverlap)
	for i, chunk := range chunks {
		res, err := cs.embeddingProvider.Generate(chunk, "RETRIEVAL_DOCUMENT")
		if err != nil {
			log.Printf("[ERROR] Failed to embed transcript chunk for meeting %s: %v", payload.MeetingID, err)
			// Embedding context is best-effort; drop rather than retry forever.
			msg.Ack()
			return
		}

		emb := &entity.TranscriptEmbedding{
			Id:             uuid.New(),
			RoomId:         payload.MeetingID,
			Speaker:        payload.Speaker,
			Chunk:          chunk,
			EmbeddingValue: pgvector.NewVector(res.Embedding.Values),
			ChunkIndex:     i,
		}

		if err := cs.embedRepo.Create(ctx, emb); err != nil {
			log.Printf("[ERROR] Failed to store transcript embedding for meeting %s: %v", payload.MeetingID, err)
			msg.Ack()
			return
		}
	}

	msg.Ack()
}
