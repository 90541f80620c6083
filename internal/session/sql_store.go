package session

import (
	"context"
	"fmt"

	"chatflow-tutor/internal/database"

	"gorm.io/gorm"
)

type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenSQLStore opens the SQLite file at path and migrates it.
func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	return database.GetValue(ctx, s.db, key)
}

func (s *SQLStore) PutAll(ctx context.Context, values map[string]string) error {
	return database.PutValues(ctx, s.db, values)
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("error getting sql handle: %w", err)
	}
	return sqlDB.Close()
}
