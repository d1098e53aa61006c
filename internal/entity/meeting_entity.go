package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Meeting is the stored record for a room. Realtime state is keyed by the
// string RoomId; the uuid primary key only exists for persistence.
type Meeting struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RoomId    string    `gorm:"type:varchar(100);unique;not null;index" json:"room_id"`
	Title     string    `gorm:"type:varchar(200)" json:"title"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Meeting) TableName() string {
	return "meetings"
}

// MeetingSummary stores the post-meeting summary produced when a
// facilitation session ends, together with its intervention timeline.
type MeetingSummary struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RoomId        string         `gorm:"type:varchar(100);not null;index" json:"room_id"`
	SessionId     uuid.UUID      `gorm:"type:uuid;not null" json:"session_id"`
	Summary       string         `gorm:"type:text;not null" json:"summary"`
	SprintGoal    string         `gorm:"type:text" json:"sprint_goal,omitempty"`
	Interventions datatypes.JSON `gorm:"type:jsonb" json:"interventions,omitempty"`
	CreatedAt     time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MeetingSummary) TableName() string {
	return "meeting_summaries"
}

// TranscriptEmbedding holds one embedded transcript chunk, used to retrieve
// relevant earlier context for inference calls.
type TranscriptEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RoomId         string          `gorm:"type:varchar(100);not null;index"`
	Speaker        string          `gorm:"type:varchar(100)"`
	Chunk          string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"` // text-embedding-004 / nomic dims
	ChunkIndex     int             `gorm:"default:0"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (TranscriptEmbedding) TableName() string {
	return "transcript_embeddings"
}
