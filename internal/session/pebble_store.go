package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

type PebbleStore struct {
	db *pebble.DB
}

func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("error opening pebble store at '%s': %w", dir, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error reading key '%s': %w", key, err)
	}
	defer closer.Close()

	return string(value), true, nil
}

func (s *PebbleStore) PutAll(ctx context.Context, values map[string]string) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for k, v := range values {
		if err := batch.Set([]byte(k), []byte(v), nil); err != nil {
			return fmt.Errorf("error staging key '%s': %w", k, err)
		}
	}
	return batch.Commit(pebble.Sync)
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
