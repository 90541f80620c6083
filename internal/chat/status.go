package chat

import (
	"sync"

	"chatflow-tutor/pkg/api"
)

type BannerPosition string

const (
	BannerBefore BannerPosition = "before"
	BannerAfter  BannerPosition = "after"
)

const (
	liveAgentBanner  = "Please hold on while we connect you to live agent…"
	handedBackBanner = "Chat is handed over to bot"
)

// StatusBanner annotates the transcript at Index with a conversation state
// change. Before means the banner is drawn above the message at Index,
// After means below the last message.
type StatusBanner struct {
	Index    int
	Text     string
	Position BannerPosition
}

// StatusTracker remembers the last conversation state reported by the
// notification endpoint and the banners produced by its transitions.
type StatusTracker struct {
	mu      sync.Mutex
	state   string
	banners []StatusBanner
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{}
}

// Observe records state given the current transcript length. It returns
// the banner added by this transition, if any.
func (s *StatusTracker) Observe(state string, transcriptLen int) (StatusBanner, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	s.state = state
	if prev == state {
		return StatusBanner{}, false
	}

	var banner StatusBanner
	switch {
	case state == api.StateLiveAgent:
		index := transcriptLen - 1
		if index < 0 {
			index = 0
		}
		banner = StatusBanner{Index: index, Text: liveAgentBanner, Position: BannerBefore}
	case prev == api.StateLiveAgent && state == api.StateChatbot:
		banner = StatusBanner{Index: transcriptLen, Text: handedBackBanner, Position: BannerAfter}
	default:
		return StatusBanner{}, false
	}

	s.banners = append(s.banners, banner)
	return banner, true
}

func (s *StatusTracker) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StatusTracker) Banners() []StatusBanner {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StatusBanner, len(s.banners))
	copy(out, s.banners)
	return out
}

// Reset forgets state and banners, used when the session is replaced.
func (s *StatusTracker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = ""
	s.banners = nil
}
