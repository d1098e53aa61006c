package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// PublishTranscriptMessage is the payload placed on the embedding topic for
// every finalized transcript chunk.
type PublishTranscriptMessage struct {
	MeetingID string `json:"meeting_id"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
}

type IPublisherService interface {
	PublishTranscript(ctx context.Context, meetingID, speaker, text string) error
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
	}
}

func (p *publisherService) PublishTranscript(ctx context.Context, meetingID, speaker, text string) error {
	payload, err := json.Marshal(PublishTranscriptMessage{
		MeetingID: meetingID,
		Speaker:   speaker,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transcript message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	return p.pubSub.Publish(p.topicName, msg)
}
