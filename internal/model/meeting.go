package model

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptChunk is one finalized or interim utterance from a meeting.
// Immutable once created; only final chunks are buffered.
type TranscriptChunk struct {
	Text      string    `json:"text"`
	Speaker   string    `json:"speaker"`
	Timestamp time.Time `json:"timestamp"`
	IsFinal   bool      `json:"isFinal"`
}

// VersionedDocument is a collaboratively-viewed document (SOP or CRO).
// Version increments strictly on every accepted update; consumers must
// discard any update whose version is <= their local version.
type VersionedDocument struct {
	MeetingID        string `json:"meetingId"`
	Version          int    `json:"version"`
	Content          string `json:"content"`
	ObservationCount int    `json:"observationCount"`
}

// Intervention types emitted by the facilitation session.
const (
	InterventionBlocker      = "blocker"
	InterventionOffTopic     = "off_topic"
	InterventionTimebox      = "time_box"
	InterventionAISuggestion = "ai_suggestion"
)

// Intervention is a timed facilitation event. Append-only and strictly
// time-ordered per session; never reordered or deduplicated after emission.
type Intervention struct {
	ID        uuid.UUID `json:"id"`
	MsgType   string    `json:"msgType"` // always "intervention" on the wire
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp int64     `json:"timestamp"` // unix millis
}

// FacilitationConfig holds the recognized session options. Unrecognized
// keys on the wire are ignored, not rejected.
type FacilitationConfig struct {
	StandupCadenceMinutes int     `json:"standupCadenceMinutes"`
	StandupFormat         string  `json:"standupFormat"`
	BlockerSensitivity    float64 `json:"blockerSensitivity"`
	EnableBlockers        bool    `json:"enableBlockers"`
	EnableOffTopic        bool    `json:"enableOffTopic"`
	EnableTimebox         bool    `json:"enableTimebox"`
	TimeboxMinutes        int     `json:"timeboxMinutes"`
}

func DefaultFacilitationConfig() FacilitationConfig {
	return FacilitationConfig{
		StandupCadenceMinutes: 15,
		StandupFormat:         "yesterday-today-blockers",
		BlockerSensitivity:    0.5,
		EnableBlockers:        true,
		EnableOffTopic:        true,
		EnableTimebox:         true,
		TimeboxMinutes:        2,
	}
}

// ApplyOptions merges a free-form options object into the config,
// accepting only recognized keys.
func (c *FacilitationConfig) ApplyOptions(opts map[string]interface{}) {
	for key, raw := range opts {
		switch key {
		case "standupCadenceMinutes":
			if v, ok := asInt(raw); ok {
				c.StandupCadenceMinutes = v
			}
		case "standupFormat":
			if v, ok := raw.(string); ok {
				c.StandupFormat = v
			}
		case "blockerSensitivity":
			if v, ok := raw.(float64); ok {
				c.BlockerSensitivity = v
			}
		case "enableBlockers":
			if v, ok := raw.(bool); ok {
				c.EnableBlockers = v
			}
		case "enableOffTopic":
			if v, ok := raw.(bool); ok {
				c.EnableOffTopic = v
			}
		case "enableTimebox":
			if v, ok := raw.(bool); ok {
				c.EnableTimebox = v
			}
		case "timeboxMinutes":
			if v, ok := asInt(raw); ok {
				c.TimeboxMinutes = v
			}
		}
		// Unknown keys fall through silently.
	}
}

func asInt(raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case float64: // JSON numbers decode as float64
		return int(v), true
	}
	return 0, false
}

// FacilitationState is the read-only snapshot returned for get_state.
type FacilitationState struct {
	Type            string             `json:"type"` // "state"
	Active          bool               `json:"active"`
	SessionID       string             `json:"sessionId,omitempty"`
	SprintGoal      string             `json:"sprintGoal,omitempty"`
	Config          FacilitationConfig `json:"config"`
	TranscriptCount int                `json:"transcriptCount"`
	Interventions   []Intervention     `json:"interventions"`
	StartedAt       int64              `json:"startedAt,omitempty"` // unix millis
}
