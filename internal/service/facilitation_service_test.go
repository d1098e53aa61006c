package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"ai-meeting-copilot-be/internal/model"
	"ai-meeting-copilot-be/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newFacilitationFixture(provider *fakeLLM) (IFacilitationService, *fakeDelivery, *memory.SessionRepository) {
	delivery := newFakeDelivery()
	sessions := memory.NewSessionRepository()
	svc := NewFacilitationService(sessions, delivery, provider, nil, nil, nil, nopLogger{})
	return svc, delivery, sessions
}

func sendFac(t *testing.T, svc IFacilitationService, meetingID string, conn DirectedConn, msg model.FacilitationInbound) {
	t.Helper()
	raw, err := json.Marshal(msg)
	assert.NoError(t, err)
	svc.HandleMessage(meetingID, conn, raw)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestStartSessionSecondStartReusesSession(t *testing.T) {
	provider := &fakeLLM{response: `[]`}
	svc, delivery, _ := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})
	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})

	started := delivery.byType("room-1", model.FacTypeSessionStarted)
	assert.Len(t, started, 2)

	var first, second model.SessionStarted
	assert.NoError(t, json.Unmarshal(started[0], &first))
	assert.NoError(t, json.Unmarshal(started[1], &second))
	assert.Equal(t, first.SessionID, second.SessionID, "second start must reuse the existing session")
}

func TestConcurrentStartSessionYieldsSingleSession(t *testing.T) {
	provider := &fakeLLM{response: `[]`}
	svc, _, sessions := newFacilitationFixture(provider)

	const workers = 16
	for round := 0; round < 50; round++ {
		meetingID := fmt.Sprintf("room-%d", round)
		barrier := make(chan struct{})
		ids := make([]uuid.UUID, workers)
		created := make([]bool, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-barrier
				ids[i], created[i] = svc.StartSession(meetingID, nil)
			}(i)
		}
		close(barrier)
		wg.Wait()

		session, found := sessions.Get(meetingID)
		assert.True(t, found)
		wins := 0
		for i := 0; i < workers; i++ {
			assert.Equal(t, session.ID, ids[i], "round %d: every start must see the same session", round)
			if created[i] {
				wins++
			}
		}
		assert.Equal(t, 1, wins, "round %d: exactly one start creates", round)
	}
}

func TestTranscriptBlockerKeywordEmitsIntervention(t *testing.T) {
	provider := &fakeLLM{response: `[]`}
	svc, delivery, _ := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})

	emitted := svc.AppendTranscript("room-1", model.TranscriptChunk{
		Text:    "I'm blocked on the payments API",
		Speaker: "dana",
		IsFinal: true,
	})

	assert.Len(t, emitted, 1)
	assert.Equal(t, model.InterventionBlocker, emitted[0].Type)
	assert.Contains(t, emitted[0].Message, "dana")
	assert.Len(t, delivery.byType("room-1", model.InterventionBlocker), 1)
}

func TestTranscriptInterimChunksIgnored(t *testing.T) {
	provider := &fakeLLM{response: `[]`}
	svc, _, sessions := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})

	svc.AppendTranscript("room-1", model.TranscriptChunk{Text: "I am blo", Speaker: "dana", IsFinal: false})

	session, found := sessions.Get("room-1")
	assert.True(t, found)
	session.Mu.Lock()
	defer session.Mu.Unlock()
	assert.Empty(t, session.Transcript)
}

func TestBlockerDedupBeforeEmission(t *testing.T) {
	provider := &fakeLLM{response: `[]`}
	svc, delivery, _ := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})

	chunk := model.TranscriptChunk{Text: "still blocked on reviews", Speaker: "dana", IsFinal: true}
	svc.AppendTranscript("room-1", chunk)
	svc.AppendTranscript("room-1", chunk)

	assert.Len(t, delivery.byType("room-1", model.InterventionBlocker), 1)
}

func TestTimeboxInterventionOnMonologue(t *testing.T) {
	provider := &fakeLLM{response: `[]`}
	svc, delivery, _ := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})

	for i := 0; i < timeboxChunkRun; i++ {
		svc.AppendTranscript("room-1", model.TranscriptChunk{
			Text:    fmt.Sprintf("and then I also did thing %d", i),
			Speaker: "omar",
			IsFinal: true,
		})
	}

	nudges := delivery.byType("room-1", model.InterventionTimebox)
	assert.Len(t, nudges, 1, "cooldown keeps the run at one nudge")
}

func TestAnalysisPassSingleFlightPerMeeting(t *testing.T) {
	provider := &fakeLLM{response: `[]`, delay: 30 * time.Millisecond}
	svc, _, sessions := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})

	for i := 0; i < 10; i++ {
		svc.AppendTranscript("room-1", model.TranscriptChunk{
			Text:    fmt.Sprintf("update number %d from the team", i),
			Speaker: "dana",
			IsFinal: true,
		})
	}

	waitFor(t, 2*time.Second, func() bool {
		session, found := sessions.Get("room-1")
		if !found {
			return false
		}
		session.Mu.Lock()
		defer session.Mu.Unlock()
		return !session.AnalysisBusy
	})

	provider.mu.Lock()
	maxInFlight := provider.maxInFlight
	calls := provider.calls
	provider.mu.Unlock()

	assert.LessOrEqual(t, maxInFlight, 1, "two analysis passes must never run concurrently for one meeting")
	// Coalescing: far fewer passes than transcript events, but at least one
	// follow-up for the work that arrived mid-pass.
	assert.GreaterOrEqual(t, calls, 1)
	assert.Less(t, calls, 10)
}

func TestAnalysisSuggestionsEmittedAsInterventions(t *testing.T) {
	provider := &fakeLLM{response: `[{"type": "off_topic", "message": "steer back to the sprint goal"}]`}
	svc, delivery, sessions := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})
	svc.AppendTranscript("room-1", model.TranscriptChunk{Text: "anyway, about the office party", Speaker: "omar", IsFinal: true})

	waitFor(t, 2*time.Second, func() bool {
		return len(delivery.byType("room-1", model.InterventionOffTopic)) == 1
	})

	session, _ := sessions.Get("room-1")
	session.Mu.Lock()
	defer session.Mu.Unlock()
	assert.Len(t, session.Interventions, 1)
}

func TestUpdateConfigIgnoresUnknownKeys(t *testing.T) {
	provider := &fakeLLM{response: `[]`}
	svc, delivery, _ := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})
	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{
		Type: model.FacTypeUpdateConfig,
		Config: map[string]interface{}{
			"timeboxMinutes": float64(5),
			"favoriteColor":  "purple",
		},
	})

	updated := delivery.byType("room-1", model.FacTypeConfigUpdated)
	assert.Len(t, updated, 1)

	var msg model.ConfigUpdated
	assert.NoError(t, json.Unmarshal(updated[0], &msg))
	assert.Equal(t, 5, msg.Config.TimeboxMinutes)
	assert.Equal(t, "yesterday-today-blockers", msg.Config.StandupFormat)
}

func TestSetSprintGoalBroadcasts(t *testing.T) {
	provider := &fakeLLM{response: `[]`}
	svc, delivery, _ := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})
	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeSetSprintGoal, Goal: "ship checkout v2"})

	set := delivery.byType("room-1", model.FacTypeSprintGoalSet)
	assert.Len(t, set, 1)

	state := svc.GetState("room-1")
	assert.Equal(t, "ship checkout v2", state.SprintGoal)
}

func TestOperationsWithoutSessionAreDirectedErrors(t *testing.T) {
	provider := &fakeLLM{response: `[]`}
	svc, delivery, _ := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeSetSprintGoal, Goal: "x"})
	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStopSession})

	assert.Len(t, conn.byType(model.FacTypeError), 2)
	delivery.mu.Lock()
	broadcasts := len(delivery.messages["room-1"])
	delivery.mu.Unlock()
	assert.Equal(t, 0, broadcasts)
}

func TestGetStateSnapshotWithoutSession(t *testing.T) {
	provider := &fakeLLM{response: `[]`}
	svc, _, _ := newFacilitationFixture(provider)

	state := svc.GetState("room-1")
	assert.False(t, state.Active)
	assert.Equal(t, model.DefaultFacilitationConfig(), state.Config)
}

func TestStopSessionBroadcastsSummaryAndTearsDown(t *testing.T) {
	provider := &fakeLLM{response: "## Standup Summary\n\nAll on track."}
	svc, delivery, sessions := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})
	svc.AppendTranscript("room-1", model.TranscriptChunk{Text: "yesterday I finished the migration", Speaker: "dana", IsFinal: true})

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStopSession})

	ended := delivery.byType("room-1", model.FacTypeSessionEnded)
	assert.Len(t, ended, 1)
	var msg model.SessionEnded
	assert.NoError(t, json.Unmarshal(ended[0], &msg))
	assert.Contains(t, msg.Summary, "Standup Summary")

	_, found := sessions.Get("room-1")
	assert.False(t, found, "session must be gone after stop")
}

func TestStopSessionSummaryFallsBackOnProviderFailure(t *testing.T) {
	provider := &fakeLLM{err: assert.AnError}
	svc, delivery, _ := newFacilitationFixture(provider)
	conn := &fakeConn{}

	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStartSession})
	sendFac(t, svc, "room-1", conn, model.FacilitationInbound{Type: model.FacTypeStopSession})

	ended := delivery.byType("room-1", model.FacTypeSessionEnded)
	assert.Len(t, ended, 1)
	var msg model.SessionEnded
	assert.NoError(t, json.Unmarshal(ended[0], &msg))
	assert.NotEmpty(t, msg.Summary, "session_ended always carries a summary")
}

func TestFacilitationMeetingIsolation(t *testing.T) {
	provider := &fakeLLM{response: `[]`}
	svc, delivery, _ := newFacilitationFixture(provider)

	sendFac(t, svc, "room-1", &fakeConn{}, model.FacilitationInbound{Type: model.FacTypeStartSession})
	sendFac(t, svc, "room-2", &fakeConn{}, model.FacilitationInbound{Type: model.FacTypeStartSession})
	sendFac(t, svc, "room-1", &fakeConn{}, model.FacilitationInbound{Type: model.FacTypeStopSession})

	assert.Len(t, delivery.byType("room-1", model.FacTypeSessionEnded), 1)
	assert.Empty(t, delivery.byType("room-2", model.FacTypeSessionEnded))
	assert.True(t, svc.GetState("room-2").Active)
}
