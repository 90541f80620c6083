package database

import (
	"time"

	"gorm.io/datatypes"
)

// KVEntry backs the client-side session store: one row per persisted key.
type KVEntry struct {
	Name      string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

const (
	StateChatbot   string = "chatbot"
	StateLiveAgent string = "live_agent"
)

// ChatSession and ChatHistory are the mock service's view of a conversation.
type ChatSession struct {
	ID                string `gorm:"primaryKey;size:64"`
	Account           string `gorm:"index;not null"`
	State             string `gorm:"size:20;not null;default:chatbot"`
	NotificationCount int    `gorm:"not null;default:0"`
	CreationTime      time.Time
}

type ChatHistory struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"index;size:64"`
	Sender    string `gorm:"size:10;not null"` // 'human', 'bot' or 'agent'
	Message   string
	MessageAt time.Time
	Metadata  datatypes.JSON // {"media_url": ..., "media_type": ...}
}
