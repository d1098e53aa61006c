package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-meeting-copilot-be/internal/constant"
	"ai-meeting-copilot-be/internal/entity"
	"ai-meeting-copilot-be/internal/model"
	"ai-meeting-copilot-be/internal/pkg/logger"
	"ai-meeting-copilot-be/internal/repository"
	"ai-meeting-copilot-be/internal/repository/memory"
	"ai-meeting-copilot-be/pkg/events"
	"ai-meeting-copilot-be/pkg/llm"
	pkgnats "ai-meeting-copilot-be/pkg/nats"
	"ai-meeting-copilot-be/pkg/store"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// How many trailing chunks the async analysis pass looks at.
const analysisWindow = 12

// Consecutive final chunks by one speaker before a time_box nudge.
const timeboxChunkRun = 6

// Cooldown between time_box nudges for the same speaker.
const timeboxCooldown = 2 * time.Minute

var blockerKeywords = []string{"blocked", "blocker", "stuck", "impediment", "can't proceed", "cannot proceed"}

// softBlockerKeywords only trigger at sensitivity >= 0.5.
var softBlockerKeywords = []string{"waiting on", "waiting for", "depends on", "delayed"}

type IFacilitationService interface {
	HandleMessage(meetingID string, conn DirectedConn, raw []byte)

	StartSession(meetingID string, options map[string]interface{}) (uuid.UUID, bool)
	AppendTranscript(meetingID string, chunk model.TranscriptChunk) []model.Intervention
	SetSprintGoal(meetingID, goal string) bool
	UpdateConfig(meetingID string, options map[string]interface{}) (model.FacilitationConfig, bool)
	GetState(meetingID string) model.FacilitationState
	StopSession(meetingID string) (string, bool)
}

type facilitationService struct {
	sessions    *memory.SessionRepository
	delivery    MeetingDelivery
	llmProvider llm.LLMProvider
	meetingRepo repository.MeetingRepository
	publisher   IPublisherService
	natsPub     *pkgnats.Publisher
	logger      logger.ILogger
}

func NewFacilitationService(
	sessions *memory.SessionRepository,
	delivery MeetingDelivery,
	llmProvider llm.LLMProvider,
	meetingRepo repository.MeetingRepository,
	publisher IPublisherService,
	natsPub *pkgnats.Publisher,
	log logger.ILogger,
) IFacilitationService {
	return &facilitationService{
		sessions:    sessions,
		delivery:    delivery,
		llmProvider: llmProvider,
		meetingRepo: meetingRepo,
		publisher:   publisher,
		natsPub:     natsPub,
		logger:      log,
	}
}

// HandleMessage parses one inbound frame from a facilitation connection and
// dispatches it. Malformed payloads are dropped with a warning; they never
// affect other meetings or crash the channel.
func (s *facilitationService) HandleMessage(meetingID string, conn DirectedConn, raw []byte) {
	var inbound model.FacilitationInbound
	if err := json.Unmarshal(raw, &inbound); err != nil {
		s.logger.Warn("FacilitationService", "Dropping malformed message", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
		s.sendDirected(conn, model.FacilitationError{Type: model.FacTypeError, Content: "malformed message"})
		return
	}

	switch inbound.Type {
	case model.FacTypeStartSession:
		sessionID, _ := s.StartSession(meetingID, inbound.Config)
		s.broadcast(meetingID, model.SessionStarted{Type: model.FacTypeSessionStarted, SessionID: sessionID.String()})

	case model.FacTypeTranscript:
		chunk := model.TranscriptChunk{
			Text:      inbound.Text,
			Speaker:   inbound.Speaker,
			Timestamp: time.UnixMilli(inbound.Timestamp),
			IsFinal:   inbound.IsFinal,
		}
		s.AppendTranscript(meetingID, chunk)

	case model.FacTypeSetSprintGoal:
		if s.SetSprintGoal(meetingID, inbound.Goal) {
			s.broadcast(meetingID, model.SprintGoalSet{Type: model.FacTypeSprintGoalSet, Goal: inbound.Goal})
		} else {
			s.sendDirected(conn, model.FacilitationError{Type: model.FacTypeError, Content: "no active session"})
		}

	case model.FacTypeUpdateConfig:
		if cfg, ok := s.UpdateConfig(meetingID, inbound.Config); ok {
			s.broadcast(meetingID, model.ConfigUpdated{Type: model.FacTypeConfigUpdated, Config: cfg})
		} else {
			s.sendDirected(conn, model.FacilitationError{Type: model.FacTypeError, Content: "no active session"})
		}

	case model.FacTypeGetState:
		state := s.GetState(meetingID)
		data, err := json.Marshal(state)
		if err == nil && conn != nil {
			conn.Deliver(data)
		}

	case model.FacTypeStopSession:
		if summary, ok := s.StopSession(meetingID); ok {
			s.broadcast(meetingID, model.SessionEnded{Type: model.FacTypeSessionEnded, Summary: summary})
		} else {
			s.sendDirected(conn, model.FacilitationError{Type: model.FacTypeError, Content: "no active session"})
		}

	default:
		s.logger.Warn("FacilitationService", "Unknown message type", map[string]interface{}{
			"meeting_id": meetingID,
			"type":       inbound.Type,
		})
		s.sendDirected(conn, model.FacilitationError{Type: model.FacTypeError, Content: "unknown message type: " + inbound.Type})
	}
}

// StartSession creates the per-meeting session. A second start while one is
// active is a no-op reusing the existing session: two concurrent sessions
// for one meeting must never exist. The bool reports whether a session was
// actually created.
func (s *facilitationService) StartSession(meetingID string, options map[string]interface{}) (uuid.UUID, bool) {
	if existing, found := s.sessions.Get(meetingID); found {
		s.logger.Info("FacilitationService", "start_session while active, reusing session", map[string]interface{}{
			"meeting_id": meetingID,
		})
		return existing.ID, false
	}

	cfg := model.DefaultFacilitationConfig()
	cfg.ApplyOptions(options)

	session := &store.FacilitationSession{
		ID:            uuid.New(),
		MeetingID:     meetingID,
		StartedAt:     time.Now(),
		Config:        cfg,
		LastTimeboxAt: make(map[string]time.Time),
	}
	// Add is atomic: when two starts race past the Get, exactly one wins
	// and the loser adopts the winner's session.
	if !s.sessions.Add(meetingID, session) {
		if existing, found := s.sessions.Get(meetingID); found {
			s.logger.Info("FacilitationService", "start_session lost a concurrent race, reusing session", map[string]interface{}{
				"meeting_id": meetingID,
			})
			return existing.ID, false
		}
		// Winner stopped in between; treat as a fresh start.
		s.sessions.Save(meetingID, session)
	}

	s.publishEvent("MEETING_SESSION_STARTED", map[string]interface{}{
		"meeting_id": meetingID,
		"session_id": session.ID.String(),
	})

	s.logger.Info("FacilitationService", "Session started", map[string]interface{}{
		"meeting_id": meetingID,
		"session_id": session.ID.String(),
	})
	return session.ID, true
}

// AppendTranscript buffers a finalized chunk, synchronously derives any
// rule-based interventions (returned and broadcast in emission order) and
// schedules the async analysis pass. Interim chunks are advisory only.
func (s *facilitationService) AppendTranscript(meetingID string, chunk model.TranscriptChunk) []model.Intervention {
	session, found := s.sessions.Get(meetingID)
	if !found {
		return nil
	}
	if !chunk.IsFinal || strings.TrimSpace(chunk.Text) == "" {
		return nil
	}

	session.Mu.Lock()
	session.Transcript = append(session.Transcript, chunk)
	emitted := s.ruleInterventionsLocked(session, chunk)
	session.Mu.Unlock()

	// Feed the shared embedding pipeline alongside the observation channel.
	if s.publisher != nil {
		if err := s.publisher.PublishTranscript(context.Background(), meetingID, chunk.Speaker, chunk.Text); err != nil {
			s.logger.Warn("FacilitationService", "Transcript publish failed", map[string]interface{}{
				"meeting_id": meetingID,
				"error":      err.Error(),
			})
		}
	}

	s.scheduleAnalysis(meetingID, session)

	return emitted
}

// ruleInterventionsLocked runs the synchronous keyword rules. Caller holds
// the session lock; emission (append + broadcast) happens in order here so
// the timeline can never interleave with the async pass mid-chunk.
func (s *facilitationService) ruleInterventionsLocked(session *store.FacilitationSession, chunk model.TranscriptChunk) []model.Intervention {
	var emitted []model.Intervention

	if session.Config.EnableBlockers {
		if keyword := matchBlocker(chunk.Text, session.Config.BlockerSensitivity); keyword != "" {
			message := fmt.Sprintf("Possible blocker from %s: %q, consider parking it for after standup.", speakerOrSomeone(chunk.Speaker), keyword)
			if !s.alreadyEmittedLocked(session, model.InterventionBlocker, message) {
				emitted = append(emitted, s.emitLocked(session, model.InterventionBlocker, message))
			}
		}
	}

	if session.Config.EnableTimebox && chunk.Speaker != "" {
		run := 0
		for i := len(session.Transcript) - 1; i >= 0; i-- {
			if session.Transcript[i].Speaker != chunk.Speaker {
				break
			}
			run++
		}
		last := session.LastTimeboxAt[chunk.Speaker]
		if run >= timeboxChunkRun && time.Since(last) > timeboxCooldown {
			session.LastTimeboxAt[chunk.Speaker] = time.Now()
			message := fmt.Sprintf("%s has been speaking for a while, time to wrap up and hand over.", speakerOrSomeone(chunk.Speaker))
			emitted = append(emitted, s.emitLocked(session, model.InterventionTimebox, message))
		}
	}

	return emitted
}

// scheduleAnalysis enforces the single-flight constraint: at most one
// analysis pass per meeting runs at any time. A transcript event arriving
// during a pass marks the session dirty, and exactly one coalesced
// follow-up pass runs afterwards.
func (s *facilitationService) scheduleAnalysis(meetingID string, session *store.FacilitationSession) {
	session.Mu.Lock()
	if session.AnalysisBusy {
		session.AnalysisDirty = true
		session.Mu.Unlock()
		return
	}
	session.AnalysisBusy = true
	session.Mu.Unlock()

	go func() {
		for {
			s.runAnalysisPass(meetingID, session)

			session.Mu.Lock()
			if session.AnalysisDirty {
				session.AnalysisDirty = false
				session.Mu.Unlock()
				continue
			}
			session.AnalysisBusy = false
			session.Mu.Unlock()
			return
		}
	}()
}

func (s *facilitationService) runAnalysisPass(meetingID string, session *store.FacilitationSession) {
	// The session may have been stopped between scheduling and execution.
	if _, found := s.sessions.Get(meetingID); !found {
		return
	}

	session.Mu.Lock()
	goal := session.SprintGoal
	offTopicEnabled := session.Config.EnableOffTopic
	window := session.Transcript
	if len(window) > analysisWindow {
		window = window[len(window)-analysisWindow:]
	}
	var transcript strings.Builder
	for _, c := range window {
		fmt.Fprintf(&transcript, "%s: %s\n", speakerOrSomeone(c.Speaker), c.Text)
	}
	session.Mu.Unlock()

	if transcript.Len() == 0 {
		return
	}
	if goal == "" {
		goal = "(not set)"
	}

	prompt := fmt.Sprintf(constant.FacilitationAnalysisPrompt, goal, transcript.String())
	response, err := s.llmProvider.Generate(context.Background(), prompt, llm.WithTemperature(0.3))
	if err != nil {
		s.logger.Warn("FacilitationService", "Analysis pass failed", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
		return
	}

	suggestions := parseAnalysisSuggestions(response)

	session.Mu.Lock()
	defer session.Mu.Unlock()
	for _, sug := range suggestions {
		interventionType := sug.Type
		if interventionType == "off_topic" && !offTopicEnabled {
			continue
		}
		if s.alreadyEmittedLocked(session, interventionType, sug.Message) {
			continue
		}
		s.emitLocked(session, interventionType, sug.Message)
	}
}

// emitLocked appends an intervention and broadcasts it. Caller holds the
// session lock, which is what keeps the timeline strictly ordered.
func (s *facilitationService) emitLocked(session *store.FacilitationSession, interventionType, message string) model.Intervention {
	intervention := model.Intervention{
		ID:        uuid.New(),
		MsgType:   "intervention",
		Type:      interventionType,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
	session.Interventions = append(session.Interventions, intervention)

	data, err := json.Marshal(intervention)
	if err == nil {
		s.delivery.Broadcast(session.MeetingID, data)
	}
	return intervention
}

// Dedup happens before emission only; the timeline is never rewritten.
func (s *facilitationService) alreadyEmittedLocked(session *store.FacilitationSession, interventionType, message string) bool {
	for _, iv := range session.Interventions {
		if iv.Type == interventionType && iv.Message == message {
			return true
		}
	}
	return false
}

func (s *facilitationService) SetSprintGoal(meetingID, goal string) bool {
	session, found := s.sessions.Get(meetingID)
	if !found {
		return false
	}
	session.Mu.Lock()
	session.SprintGoal = goal
	session.Mu.Unlock()
	return true
}

func (s *facilitationService) UpdateConfig(meetingID string, options map[string]interface{}) (model.FacilitationConfig, bool) {
	session, found := s.sessions.Get(meetingID)
	if !found {
		return model.FacilitationConfig{}, false
	}
	session.Mu.Lock()
	cfg := session.Config
	cfg.ApplyOptions(options)
	session.Config = cfg
	session.Mu.Unlock()
	return cfg, true
}

func (s *facilitationService) GetState(meetingID string) model.FacilitationState {
	session, found := s.sessions.Get(meetingID)
	if !found {
		return model.FacilitationState{
			Type:   model.FacTypeState,
			Active: false,
			Config: model.DefaultFacilitationConfig(),
		}
	}
	return session.Snapshot()
}

// StopSession generates the post-meeting summary, persists it, tears the
// session down and reports the summary. Summary generation completes (or
// fails over to a deterministic aggregate) before any state is cleared, so
// it never observes a half-cleared buffer.
func (s *facilitationService) StopSession(meetingID string) (string, bool) {
	session, found := s.sessions.Get(meetingID)
	if !found {
		return "", false
	}

	session.Mu.Lock()
	goal := session.SprintGoal
	sessionID := session.ID
	transcript := make([]model.TranscriptChunk, len(session.Transcript))
	copy(transcript, session.Transcript)
	interventions := make([]model.Intervention, len(session.Interventions))
	copy(interventions, session.Interventions)
	session.Mu.Unlock()

	summary := s.generateSummary(meetingID, goal, transcript, interventions)

	// Teardown only after the summary exists.
	s.sessions.Delete(meetingID)

	s.persistSummary(meetingID, sessionID, goal, summary, interventions)

	s.publishEvent("MEETING_SESSION_ENDED", map[string]interface{}{
		"meeting_id": meetingID,
		"session_id": sessionID.String(),
		"summary":    summary,
	})

	s.logger.Info("FacilitationService", "Session ended", map[string]interface{}{
		"meeting_id": meetingID,
		"session_id": sessionID.String(),
	})
	return summary, true
}

func (s *facilitationService) generateSummary(meetingID, goal string, transcript []model.TranscriptChunk, interventions []model.Intervention) string {
	var transcriptText strings.Builder
	for _, c := range transcript {
		fmt.Fprintf(&transcriptText, "%s: %s\n", speakerOrSomeone(c.Speaker), c.Text)
	}
	var interventionText strings.Builder
	for _, iv := range interventions {
		fmt.Fprintf(&interventionText, "- [%s] %s\n", iv.Type, iv.Message)
	}
	if interventionText.Len() == 0 {
		interventionText.WriteString("(none)\n")
	}
	if goal == "" {
		goal = "(not set)"
	}

	prompt := fmt.Sprintf(constant.SummaryPrompt, goal, transcriptText.String(), interventionText.String())
	summary, err := s.llmProvider.Generate(context.Background(), prompt, llm.WithTemperature(0.4))
	if err == nil && strings.TrimSpace(summary) != "" {
		return summary
	}
	if err != nil {
		s.logger.Warn("FacilitationService", "Summary generation failed, using aggregate", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
	}

	// Deterministic fallback: the session_ended broadcast always carries a
	// non-empty summary.
	return fmt.Sprintf(
		"## Standup Summary\n\nSprint goal: %s\n\nTranscript chunks: %d\n\nInterventions:\n%s",
		goal, len(transcript), interventionText.String(),
	)
}

func (s *facilitationService) persistSummary(meetingID string, sessionID uuid.UUID, goal, summary string, interventions []model.Intervention) {
	if s.meetingRepo == nil {
		return
	}
	raw, err := json.Marshal(interventions)
	if err != nil {
		raw = []byte("[]")
	}
	record := &entity.MeetingSummary{
		Id:            uuid.New(),
		RoomId:        meetingID,
		SessionId:     sessionID,
		Summary:       summary,
		SprintGoal:    goal,
		Interventions: datatypes.JSON(raw),
	}
	if err := s.meetingRepo.CreateSummary(context.Background(), record); err != nil {
		s.logger.Error("FacilitationService", "Failed to persist summary", map[string]interface{}{
			"meeting_id": meetingID,
			"error":      err.Error(),
		})
	}
}

func (s *facilitationService) publishEvent(eventType string, payload map[string]interface{}) {
	if s.natsPub == nil {
		return
	}
	event := events.BaseEvent{
		Type:       eventType,
		Data:       payload,
		OccurredAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.natsPub.Publish(ctx, event); err != nil {
		s.logger.Warn("FacilitationService", "Event publish failed", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}

func (s *facilitationService) broadcast(meetingID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("FacilitationService", "Broadcast marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s.delivery.Broadcast(meetingID, data)
}

func (s *facilitationService) sendDirected(conn DirectedConn, payload interface{}) {
	if conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	conn.Deliver(data)
}

func matchBlocker(text string, sensitivity float64) string {
	lower := strings.ToLower(text)
	for _, kw := range blockerKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	if sensitivity >= 0.5 {
		for _, kw := range softBlockerKeywords {
			if strings.Contains(lower, kw) {
				return kw
			}
		}
	}
	return ""
}

func speakerOrSomeone(speaker string) string {
	if speaker == "" {
		return "someone"
	}
	return speaker
}
