package models

import (
	"time"

	"github.com/google/uuid"
)

// Message types stored in one_to_one_messages.
const (
	MessageTypeText      = "text"
	MessageTypeRecording = "recording"
)

// RecordingMessage is the persisted record of a merged call recording.
type RecordingMessage struct {
	ID         uuid.UUID `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	FilePath   string    `json:"filePath"`
	Timming    string    `json:"timming"`
	Seen       bool      `json:"seen"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}
