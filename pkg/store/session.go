package store

import (
	"sync"
	"time"

	"ai-meeting-copilot-be/internal/model"

	"github.com/google/uuid"
)

// FacilitationSession is the active in-memory session state for one meeting.
// All fields are guarded by Mu; the facilitation service is the only writer.
type FacilitationSession struct {
	Mu sync.Mutex

	ID         uuid.UUID
	MeetingID  string
	StartedAt  time.Time
	SprintGoal string
	Config     model.FacilitationConfig

	// Ordered buffer of finalized transcript chunks.
	Transcript []model.TranscriptChunk

	// Emitted interventions, append-only, in emission order.
	Interventions []model.Intervention

	// Single-flight bookkeeping for the async analysis pass.
	// AnalysisBusy is true while a pass runs; AnalysisDirty marks that
	// transcript arrived during the pass and one follow-up is owed.
	AnalysisBusy  bool
	AnalysisDirty bool

	// Timestamp of the last time_box intervention per speaker, used to
	// avoid re-flagging the same monologue every chunk.
	LastTimeboxAt map[string]time.Time
}

// Snapshot returns a read-only state view without mutating the session.
func (s *FacilitationSession) Snapshot() model.FacilitationState {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	interventions := make([]model.Intervention, len(s.Interventions))
	copy(interventions, s.Interventions)

	return model.FacilitationState{
		Type:            model.FacTypeState,
		Active:          true,
		SessionID:       s.ID.String(),
		SprintGoal:      s.SprintGoal,
		Config:          s.Config,
		TranscriptCount: len(s.Transcript),
		Interventions:   interventions,
		StartedAt:       s.StartedAt.UnixMilli(),
	}
}
