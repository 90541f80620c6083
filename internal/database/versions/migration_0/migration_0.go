package migration_0

import (
	"time"

	"gorm.io/gorm"
)

type KVEntry struct {
	Name      string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

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
	Sender    string `gorm:"size:10;not null"`
	Message   string
	MessageAt time.Time
}

func Migration(db *gorm.DB) error {
	return db.AutoMigrate(&KVEntry{}, &ChatSession{}, &ChatHistory{})
}
