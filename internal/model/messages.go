package model

// Wire envelopes for the two per-meeting duplex channels. Observation and
// facilitation run on separate WebSocket paths; both speak JSON.

// --- Observation channel, client -> server ---

const (
	ObsTypeControl    = "control"
	ObsTypeVideo      = "video"
	ObsTypeText       = "text"
	ObsTypeTranscript = "transcript"

	ControlStart = "start"
	ControlStop  = "stop"
)

type ObservationInbound struct {
	Type      string `json:"type"`
	Command   string `json:"command,omitempty"`  // control
	Data      string `json:"data,omitempty"`     // video: base64 JPEG; text/transcript: utterance
	MimeType  string `json:"mimeType,omitempty"` // video
	Speaker   string `json:"speaker,omitempty"`  // transcript
	EnableSop *bool  `json:"enableSop,omitempty"` // nil means enabled
	EnableCro *bool  `json:"enableCro,omitempty"` // nil means enabled
}

// SopEnabled reports whether this observation may update the SOP document.
// Absent flags default to enabled.
func (o ObservationInbound) SopEnabled() bool {
	return o.EnableSop == nil || *o.EnableSop
}

// CroEnabled reports whether this observation may update the CRO document.
func (o ObservationInbound) CroEnabled() bool {
	return o.EnableCro == nil || *o.EnableCro
}

// --- Observation channel, server -> client ---

const (
	ObsTypeStatus    = "status"
	ObsTypeReply     = "text"
	ObsTypeError     = "error"
	ObsTypeAudio     = "audio"
	ObsTypeSopUpdate = "sop_update"
	ObsTypeSopStatus = "sop_status"
	ObsTypeCroUpdate = "cro_update"
	ObsTypeCroStatus = "cro_status"
)

// DirectedMessage is a reply sent only to the originating connection
// (chat-style text, synthesized audio, errors, status heartbeats).
type DirectedMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Data    string `json:"data,omitempty"` // audio: base64 PCM16LE
}

// SopUpdate is a shared-state update, always broadcast to the whole meeting.
type SopUpdate struct {
	Type             string `json:"type"` // "sop_update"
	Content          string `json:"content"`
	ObservationCount int    `json:"observationCount,omitempty"`
	SopVersion       int    `json:"sopVersion,omitempty"`
	FlowchartCode    string `json:"flowchartCode,omitempty"`
}

type SopStatus struct {
	Type             string `json:"type"` // "sop_status"
	ObservationCount int    `json:"observationCount"`
	SopVersion       int    `json:"sopVersion"`
}

type CroUpdate struct {
	Type       string `json:"type"` // "cro_update"
	CroContent string `json:"croContent"`
	CroVersion int    `json:"croVersion,omitempty"`
}

type CroStatus struct {
	Type       string `json:"type"` // "cro_status"
	CroVersion int    `json:"croVersion"`
}

// --- Facilitation channel, client -> server ---

const (
	FacTypeStartSession  = "start_session"
	FacTypeStopSession   = "stop_session"
	FacTypeUpdateConfig  = "update_config"
	FacTypeSetSprintGoal = "set_sprint_goal"
	FacTypeTranscript    = "transcript"
	FacTypeGetState      = "get_state"
)

type FacilitationInbound struct {
	Type      string                 `json:"type"`
	Config    map[string]interface{} `json:"config,omitempty"`
	Goal      string                 `json:"goal,omitempty"`
	Text      string                 `json:"text,omitempty"`
	Speaker   string                 `json:"speaker,omitempty"`
	Timestamp int64                  `json:"timestamp,omitempty"` // unix millis
	IsFinal   bool                   `json:"isFinal,omitempty"`
}

// --- Facilitation channel, server -> client (broadcast) ---

const (
	FacTypeSessionStarted = "session_started"
	FacTypeSessionEnded   = "session_ended"
	FacTypeConfigUpdated  = "config_updated"
	FacTypeSprintGoalSet  = "sprint_goal_set"
	FacTypeState          = "state"
	FacTypeError          = "error"
)

type SessionStarted struct {
	Type      string `json:"type"` // "session_started"
	SessionID string `json:"sessionId"`
}

type SessionEnded struct {
	Type    string `json:"type"` // "session_ended"
	Summary string `json:"summary"`
}

type ConfigUpdated struct {
	Type   string             `json:"type"` // "config_updated"
	Config FacilitationConfig `json:"config"`
}

type SprintGoalSet struct {
	Type string `json:"type"` // "sprint_goal_set"
	Goal string `json:"goal"`
}

type FacilitationError struct {
	Type    string `json:"type"` // "error"
	Content string `json:"content"`
}
