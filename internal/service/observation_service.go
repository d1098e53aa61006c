package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-meeting-copilot-be/internal/constant"
	"ai-meeting-copilot-be/internal/model"
	"ai-meeting-copilot-be/internal/pkg/logger"
	"ai-meeting-copilot-be/internal/repository"
	"ai-meeting-copilot-be/pkg/embedding"
	"ai-meeting-copilot-be/pkg/llm"
)

// MeetingDelivery fans a shared-state update out to every connection of one
// meeting channel. Implemented by the WebSocket hub.
type MeetingDelivery interface {
	Broadcast(meetingID string, data []byte)
}

// DirectedConn is the originating connection of an inbound message, used
// for directed (non-broadcast) replies.
type DirectedConn interface {
	Deliver(data []byte) bool
}

// observationSession is the per-meeting observation state. One per meeting,
// lazily created, mutated only through the message protocol.
type observationSession struct {
	mu sync.Mutex

	isObserving      bool
	lastFrameAt      time.Time
	observationCount int

	sopVersion int
	sopContent string
	croVersion int
	croContent string
}

type IObservationService interface {
	// HandleMessage processes one raw inbound frame from a meeting
	// connection. Never returns an error: failures are logged and, where
	// appropriate, reported back to the sender only.
	HandleMessage(meetingID string, conn DirectedConn, raw []byte)

	// ReleaseMeeting drops per-meeting state once the last connection is
	// gone and nothing is observing anymore.
	ReleaseMeeting(meetingID string, remaining int)
}

type observationService struct {
	mu       sync.Mutex
	sessions map[string]*observationSession

	delivery          MeetingDelivery
	llmProvider       llm.LLMProvider
	embeddingProvider embedding.EmbeddingProvider
	embedRepo         repository.TranscriptEmbeddingRepository
	publisher         IPublisherService
	logger            logger.ILogger

	frameInterval   time.Duration
	contextSnippets int
}

func NewObservationService(
	delivery MeetingDelivery,
	llmProvider llm.LLMProvider,
	embeddingProvider embedding.EmbeddingProvider,
	embedRepo repository.TranscriptEmbeddingRepository,
	publisher IPublisherService,
	log logger.ILogger,
	frameInterval time.Duration,
	contextSnippets int,
) IObservationService {
	if frameInterval <= 0 {
		frameInterval = 10 * time.Second
	}
	if contextSnippets <= 0 {
		contextSnippets = 5
	}
	return &observationService{
		sessions:          make(map[string]*observationSession),
		delivery:          delivery,
		llmProvider:       llmProvider,
		embeddingProvider: embeddingProvider,
		embedRepo:         embedRepo,
		publisher:         publisher,
		logger:            log,
		frameInterval:     frameInterval,
		contextSnippets:   contextSnippets,
	}
}

func (s *observationService) session(meetingID string) *observationSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[meetingID]
	if !ok {
		sess = &observationSession{}
		s.sessions[meetingID] = sess
	}
	return sess
}

func (s *observationService) HandleMessage(meetingID string, conn DirectedConn, raw []byte) {
	var inbound model.ObservationInbound
	if err := json.Unmarshal(raw, &inbound); err != nil {
		s.logger.Warn("ObservationService", "Dropping malformed message", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
		s.sendDirected(conn, model.DirectedMessage{Type: model.ObsTypeError, Content: "malformed message"})
		return
	}

	switch inbound.Type {
	case model.ObsTypeControl:
		s.handleControl(meetingID, conn, inbound.Command)
	case model.ObsTypeVideo:
		s.handleVideo(meetingID, conn, inbound)
	case model.ObsTypeText:
		s.handleObservation(meetingID, conn, inbound, "note")
	case model.ObsTypeTranscript:
		s.handleObservation(meetingID, conn, inbound, "utterance")
	default:
		s.logger.Warn("ObservationService", "Unknown message type", map[string]interface{}{
			"meeting_id": meetingID,
			"type":       inbound.Type,
		})
		s.sendDirected(conn, model.DirectedMessage{Type: model.ObsTypeError, Content: "unknown message type: " + inbound.Type})
	}
}

func (s *observationService) handleControl(meetingID string, conn DirectedConn, command string) {
	sess := s.session(meetingID)

	switch command {
	case model.ControlStart:
		sess.mu.Lock()
		sess.isObserving = true
		sess.mu.Unlock()
		s.sendDirected(conn, model.DirectedMessage{Type: model.ObsTypeStatus, Content: "observation started"})
	case model.ControlStop:
		sess.mu.Lock()
		sess.isObserving = false
		sess.mu.Unlock()
		s.sendDirected(conn, model.DirectedMessage{Type: model.ObsTypeStatus, Content: "observation stopped"})
	default:
		s.sendDirected(conn, model.DirectedMessage{Type: model.ObsTypeError, Content: "unknown control command: " + command})
	}
}

// handleVideo gates frames to the configured cadence while observing, then
// forwards the frame like any other observation.
func (s *observationService) handleVideo(meetingID string, conn DirectedConn, inbound model.ObservationInbound) {
	sess := s.session(meetingID)

	sess.mu.Lock()
	if sess.isObserving {
		if elapsed := time.Since(sess.lastFrameAt); elapsed < s.frameInterval {
			sess.mu.Unlock()
			s.logger.Debug("ObservationService", "Video frame dropped by cadence gate", map[string]interface{}{
				"meeting_id": meetingID,
			})
			return
		}
		sess.lastFrameAt = time.Now()
	}
	sess.mu.Unlock()

	s.handleObservation(meetingID, conn, inbound, "video frame")
}

func (s *observationService) handleObservation(meetingID string, conn DirectedConn, inbound model.ObservationInbound, kind string) {
	sess := s.session(meetingID)

	// Transcripts feed the background embedding pipeline.
	if inbound.Type == model.ObsTypeTranscript && s.publisher != nil && strings.TrimSpace(inbound.Data) != "" {
		if err := s.publisher.PublishTranscript(context.Background(), meetingID, inbound.Speaker, inbound.Data); err != nil {
			s.logger.Warn("ObservationService", "Transcript publish failed", map[string]interface{}{
				"meeting_id": meetingID,
				"error":      err.Error(),
			})
		}
	}

	prompt := s.buildPrompt(meetingID, sess, inbound, kind)

	response, err := s.llmProvider.Chat(context.Background(), []llm.Message{
		{Role: "system", Content: constant.ObservationSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		s.logger.Error("ObservationService", "Inference call failed", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
		// Upstream failures are directed at the sender; session state is untouched.
		s.sendDirected(conn, model.DirectedMessage{Type: model.ObsTypeError, Content: "inference backend unavailable"})
		return
	}

	delta := parseObservationDelta(response)
	s.applyDelta(meetingID, sess, conn, inbound, delta)
}

func (s *observationService) buildPrompt(meetingID string, sess *observationSession, inbound model.ObservationInbound, kind string) string {
	sess.mu.Lock()
	sop := sess.sopContent
	cro := sess.croContent
	sess.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Observation (%s)", kind)
	if inbound.Speaker != "" {
		fmt.Fprintf(&b, " from %s", inbound.Speaker)
	}
	b.WriteString(":\n")
	if inbound.Type == model.ObsTypeVideo {
		fmt.Fprintf(&b, "[video frame, %s, base64 omitted]\n", inbound.MimeType)
	} else {
		b.WriteString(inbound.Data)
		b.WriteString("\n")
	}

	if context := s.retrieveContext(meetingID, inbound.Data); context != "" {
		b.WriteString("\nRelevant earlier context:\n")
		b.WriteString(context)
	}

	b.WriteString("\nCurrent SOP:\n")
	if sop == "" {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(sop + "\n")
	}
	b.WriteString("\nCurrent CRO:\n")
	if cro == "" {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(cro + "\n")
	}

	if !inbound.SopEnabled() {
		b.WriteString("\nSOP updates are disabled for this observation.")
	}
	if !inbound.CroEnabled() {
		b.WriteString("\nCRO updates are disabled for this observation.")
	}

	return b.String()
}

// retrieveContext embeds the observation text and pulls the most similar
// earlier transcript chunks. Best-effort: any failure just means no context.
func (s *observationService) retrieveContext(meetingID, text string) string {
	if s.embeddingProvider == nil || s.embedRepo == nil || strings.TrimSpace(text) == "" {
		return ""
	}

	res, err := s.embeddingProvider.Generate(text, "RETRIEVAL_QUERY")
	if err != nil {
		s.logger.Debug("ObservationService", "Context embedding failed", map[string]interface{}{"error": err.Error()})
		return ""
	}

	matches, err := s.embedRepo.SearchSimilar(context.Background(), meetingID, res.Embedding.Values, s.contextSnippets)
	if err != nil {
		s.logger.Debug("ObservationService", "Context search failed", map[string]interface{}{"error": err.Error()})
		return ""
	}

	var b strings.Builder
	for _, m := range matches {
		if m.Speaker != "" {
			fmt.Fprintf(&b, "- %s: %s\n", m.Speaker, m.Chunk)
		} else {
			fmt.Fprintf(&b, "- %s\n", m.Chunk)
		}
	}
	return b.String()
}

// applyDelta commits the model's response: version counters move under the
// session lock, shared-state updates are broadcast to the whole meeting,
// and chat-style replies go back to the sender only.
func (s *observationService) applyDelta(meetingID string, sess *observationSession, conn DirectedConn, inbound model.ObservationInbound, delta observationDelta) {
	sess.mu.Lock()
	sess.observationCount++
	count := sess.observationCount

	var sopUpdate *model.SopUpdate
	var croUpdate *model.CroUpdate

	if delta.Sop != nil && inbound.SopEnabled() {
		sess.sopVersion++
		sess.sopContent = delta.Sop.Content
		sopUpdate = &model.SopUpdate{
			Type:             model.ObsTypeSopUpdate,
			Content:          delta.Sop.Content,
			ObservationCount: count,
			SopVersion:       sess.sopVersion,
			FlowchartCode:    delta.Sop.Flowchart,
		}
	}
	if delta.Cro != nil && inbound.CroEnabled() {
		sess.croVersion++
		sess.croContent = delta.Cro.Content
		croUpdate = &model.CroUpdate{
			Type:       model.ObsTypeCroUpdate,
			CroContent: delta.Cro.Content,
			CroVersion: sess.croVersion,
		}
	}
	sopVersion := sess.sopVersion
	croVersion := sess.croVersion
	sess.mu.Unlock()

	// Document-version-changing payloads are always broadcast, never filtered.
	if sopUpdate != nil {
		s.broadcast(meetingID, sopUpdate)
	}
	if croUpdate != nil {
		s.broadcast(meetingID, croUpdate)
	}

	// Status heartbeat when nothing changed: shared counters only, and
	// nothing on the directed path.
	if sopUpdate == nil && croUpdate == nil {
		s.broadcast(meetingID, model.SopStatus{
			Type:             model.ObsTypeSopStatus,
			ObservationCount: count,
			SopVersion:       sopVersion,
		})
		s.broadcast(meetingID, model.CroStatus{
			Type:       model.ObsTypeCroStatus,
			CroVersion: croVersion,
		})
	}

	if strings.TrimSpace(delta.Reply) != "" {
		s.sendDirected(conn, model.DirectedMessage{Type: model.ObsTypeReply, Content: delta.Reply})
	}
}

func (s *observationService) ReleaseMeeting(meetingID string, remaining int) {
	if remaining > 0 {
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[meetingID]
	if ok {
		sess.mu.Lock()
		observing := sess.isObserving
		sess.mu.Unlock()
		if !observing {
			delete(s.sessions, meetingID)
			s.logger.Info("ObservationService", "Meeting state released", map[string]interface{}{
				"meeting_id": meetingID,
			})
		}
	}
	s.mu.Unlock()
}

func (s *observationService) broadcast(meetingID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("ObservationService", "Broadcast marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s.delivery.Broadcast(meetingID, data)
}

func (s *observationService) sendDirected(conn DirectedConn, payload interface{}) {
	if conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	conn.Deliver(data)
}
