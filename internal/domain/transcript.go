package domain

import "time"

// TranscriptRole labels who authored a structured transcript line.
type TranscriptRole string

const (
	TranscriptRoleUser  TranscriptRole = "USER MESSAGE"
	TranscriptRoleStaff TranscriptRole = "STAFF RESPONSE"
)

// TranscriptLine is one message in a structured per-user transcript.
type TranscriptLine struct {
	Timestamp string         `json:"timestamp"`
	Author    string         `json:"author"`
	Role      TranscriptRole `json:"role"`
	Content   string         `json:"content"`
}

// TranscriptEntry is one archived ticket appended to a user's transcript log.
type TranscriptEntry struct {
	Channel    string           `json:"channel"`
	CategoryID string           `json:"category_id"`
	SavedAt    string           `json:"saved_at"`
	Messages   []TranscriptLine `json:"messages"`
}

// ArtifactRef points at a persisted flat transcript artifact.
type ArtifactRef struct {
	ID        string
	ChannelID string
	Path      string
	SavedAt   time.Time
}
