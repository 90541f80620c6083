package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	KeySessionID = "chat_session_id"
	KeyCreatedAt = "chat_session_created_at"

	DefaultTTL = time.Hour

	tokenLength = 12
)

var ErrNotInitialized = errors.New("session manager not initialized")

type Session struct {
	ID        string
	CreatedAt time.Time
}

func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) >= ttl
}

func NewToken() (string, error) {
	return gonanoid.New(tokenLength)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns the conversation token for one client. The token is read on
// every backend call and only replaced when it outlives the TTL.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	current  Session
	ready    bool
	onRotate []func(old, fresh Session)
}

func NewManager(store Store, ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{store: store, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnRotate registers fn to run after a new token replaces an expired one.
func (m *Manager) OnRotate(fn func(old, fresh Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRotate = append(m.onRotate, fn)
}

// Init loads the persisted session, minting a new one if none is stored or
// the stored one has expired.
func (m *Manager) Init(ctx context.Context) (Session, error) {
	stored, ok, err := m.load(ctx)
	if err != nil {
		return Session{}, err
	}

	if ok && !stored.Expired(m.now(), m.ttl) {
		m.mu.Lock()
		m.current = stored
		m.ready = true
		m.mu.Unlock()
		slog.Info("resuming chat session", "session_id", stored.ID, "created_at", stored.CreatedAt)
		return stored, nil
	}

	fresh, err := m.mint(ctx)
	if err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	m.current = fresh
	m.ready = true
	m.mu.Unlock()
	slog.Info("started new chat session", "session_id", fresh.ID)
	return fresh, nil
}

func (m *Manager) Current() (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return Session{}, ErrNotInitialized
	}
	return m.current, nil
}

// ID returns the current token, or "" before Init.
func (m *Manager) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.ID
}

// CheckExpiry replaces the session if it has outlived the TTL and reports
// whether it did.
func (m *Manager) CheckExpiry(ctx context.Context) (bool, error) {
	m.mu.RLock()
	current, ready := m.current, m.ready
	m.mu.RUnlock()

	if !ready {
		return false, ErrNotInitialized
	}
	if !current.Expired(m.now(), m.ttl) {
		return false, nil
	}

	if err := m.rotate(ctx, current); err != nil {
		return false, err
	}
	return true, nil
}

// Rotate replaces the session regardless of its age.
func (m *Manager) Rotate(ctx context.Context) (Session, error) {
	current, err := m.Current()
	if err != nil {
		return Session{}, err
	}
	if err := m.rotate(ctx, current); err != nil {
		return Session{}, err
	}
	return m.Current()
}

func (m *Manager) rotate(ctx context.Context, current Session) error {
	fresh, err := m.mint(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.current = fresh
	hooks := append([]func(old, fresh Session){}, m.onRotate...)
	m.mu.Unlock()

	slog.Info("chat session rotated", "old_session_id", current.ID, "session_id", fresh.ID)
	for _, hook := range hooks {
		hook(current, fresh)
	}
	return nil
}

// RunExpiryLoop checks for expiry every interval until ctx is done.
func (m *Manager) RunExpiryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.CheckExpiry(ctx); err != nil {
				slog.Error("error checking session expiry", "error", err)
			}
		}
	}
}

func (m *Manager) load(ctx context.Context) (Session, bool, error) {
	id, ok, err := m.store.Get(ctx, KeySessionID)
	if err != nil {
		return Session{}, false, fmt.Errorf("error reading session id: %w", err)
	}
	if !ok || id == "" {
		return Session{}, false, nil
	}

	// A missing or unreadable timestamp leaves CreatedAt zero, which is
	// always expired.
	var createdAt time.Time
	raw, ok, err := m.store.Get(ctx, KeyCreatedAt)
	if err != nil {
		return Session{}, false, fmt.Errorf("error reading session timestamp: %w", err)
	}
	if ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			createdAt = time.UnixMilli(ms)
		} else {
			slog.Warn("ignoring invalid session timestamp", "value", raw)
		}
	}

	return Session{ID: id, CreatedAt: createdAt}, true, nil
}

func (m *Manager) mint(ctx context.Context) (Session, error) {
	id, err := NewToken()
	if err != nil {
		return Session{}, fmt.Errorf("error generating session id: %w", err)
	}

	fresh := Session{ID: id, CreatedAt: time.UnixMilli(m.now().UnixMilli())}
	err = m.store.PutAll(ctx, map[string]string{
		KeySessionID: fresh.ID,
		KeyCreatedAt: strconv.FormatInt(fresh.CreatedAt.UnixMilli(), 10),
	})
	if err != nil {
		return Session{}, fmt.Errorf("error persisting session: %w", err)
	}
	return fresh, nil
}
