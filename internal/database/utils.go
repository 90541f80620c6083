package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLite only supports one writer at a time, so we need a lock
// whenever we write to the database
var dbMutex sync.Mutex

// OpenSQLite opens (creating if needed) the database at path and brings the
// schema up to date.
func OpenSQLite(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("error opening database '%s': %w", path, err)
	}

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return db, nil
}

func GetValue(ctx context.Context, db *gorm.DB, key string) (string, bool, error) {
	var entry KVEntry
	err := db.WithContext(ctx).First(&entry, "name = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error reading key '%s': %w", key, err)
	}
	return entry.Value, true, nil
}

// PutValues upserts all pairs in one transaction.
func PutValues(ctx context.Context, db *gorm.DB, values map[string]string) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()

	now := time.Now().UTC()
	entries := make([]KVEntry, 0, len(values))
	for k, v := range values {
		entries = append(entries, KVEntry{Name: k, Value: v, UpdatedAt: now})
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entries).Error
	if err != nil {
		slog.Error("error writing key/value entries", "error", err)
		return err
	}
	return nil
}

func EnsureChatSession(ctx context.Context, db *gorm.DB, sessionID, account string) (ChatSession, error) {
	dbMutex.Lock()
	defer dbMutex.Unlock()

	var session ChatSession
	err := db.WithContext(ctx).
		Where(ChatSession{ID: sessionID}).
		Attrs(ChatSession{Account: account, State: StateChatbot, CreationTime: time.Now().UTC()}).
		FirstOrCreate(&session).Error
	if err != nil {
		slog.Error("error creating chat session", "session_id", sessionID, "error", err)
		return ChatSession{}, err
	}
	return session, nil
}

func GetChatSession(ctx context.Context, db *gorm.DB, sessionID string) (ChatSession, error) {
	var session ChatSession
	err := db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	return session, err
}

func SaveChatMessage(ctx context.Context, db *gorm.DB, message *ChatHistory) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	if message.MessageAt.IsZero() {
		message.MessageAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(message).Error
}

// ListChatHistory returns one page of a session's history, oldest first, and
// whether a further page exists.
func ListChatHistory(ctx context.Context, db *gorm.DB, sessionID string, limit, offset int) ([]ChatHistory, bool, error) {
	var history []ChatHistory
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Limit(limit + 1).
		Offset(offset).
		Find(&history).Error
	if err != nil {
		return nil, false, err
	}

	if len(history) > limit {
		return history[:limit], true, nil
	}
	return history, false, nil
}

func AddNotifications(ctx context.Context, db *gorm.DB, sessionID string, n int) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	return db.WithContext(ctx).
		Model(&ChatSession{ID: sessionID}).
		Update("notification_count", gorm.Expr("notification_count + ?", n)).Error
}

func ClearNotifications(ctx context.Context, db *gorm.DB, sessionID string) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	return db.WithContext(ctx).
		Model(&ChatSession{ID: sessionID}).
		Update("notification_count", 0).Error
}

func UpdateChatState(ctx context.Context, db *gorm.DB, sessionID, state string) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	if err := db.WithContext(ctx).Model(&ChatSession{ID: sessionID}).Update("state", state).Error; err != nil {
		slog.Error("error updating chat state", "session_id", sessionID, "state", state, "error", err)
		return err
	}
	return nil
}
