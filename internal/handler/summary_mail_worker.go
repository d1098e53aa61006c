package handler

import (
	"context"

	"ai-meeting-copilot-be/internal/pkg/logger"
	"ai-meeting-copilot-be/internal/pkg/mailer"
	"ai-meeting-copilot-be/pkg/events"
	pkgnats "ai-meeting-copilot-be/pkg/nats"
)

// SummaryMailWorker emails the post-meeting summary once a facilitation
// session ends. Configured with a fixed recipient (team mailbox); when the
// recipient is empty the worker is simply not started.
type SummaryMailWorker struct {
	subscriber *pkgnats.Subscriber
	mailer     mailer.IEmailService
	recipient  string
	logger     logger.ILogger
}

func NewSummaryMailWorker(sub *pkgnats.Subscriber, mail mailer.IEmailService, recipient string, log logger.ILogger) *SummaryMailWorker {
	return &SummaryMailWorker{
		subscriber: sub,
		mailer:     mail,
		recipient:  recipient,
		logger:     log,
	}
}

func (w *SummaryMailWorker) Start() error {
	return w.subscriber.Subscribe("events.MEETING_SESSION_ENDED", "summary-mailer", w.handle)
}

func (w *SummaryMailWorker) handle(ctx context.Context, event events.Event) error {
	payload := event.Payload()

	meetingID, _ := payload["meeting_id"].(string)
	summary, _ := payload["summary"].(string)
	if meetingID == "" || summary == "" {
		// Nothing to mail; ack and move on.
		return nil
	}

	if err := w.mailer.SendMeetingSummary(w.recipient, meetingID, summary); err != nil {
		w.logger.Error("SummaryMailWorker", "Failed to send summary mail", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
		return err
	}

	w.logger.Info("SummaryMailWorker", "Summary mail sent", map[string]interface{}{
		"meeting_id": meetingID,
		"recipient":  w.recipient,
	})
	return nil
}
