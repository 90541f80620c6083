package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"chatflow-tutor/pkg/api"
)

type staticSession string

func (s staticSession) ID() string {
	return string(s)
}

type mutableSession struct {
	mu sync.Mutex
	id string
}

func (s *mutableSession) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *mutableSession) set(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

type fakeBackend struct {
	mu sync.Mutex

	pages        []api.HistoryPage
	historyErr   error
	historyCalls []api.Page
	onHistory    func(sessionID string)

	status         api.NotificationStatus
	statusErr      error
	statusCalls    int
	resetOnHistory bool

	replies  []json.RawMessage
	chatErr  error
	requests []api.ChatRequest

	upload      api.UploadResult
	uploadErr   error
	uploadNames []string
	uploadBytes [][]byte
}

func (b *fakeBackend) SendMessage(ctx context.Context, req api.ChatRequest) (api.ChatResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if b.chatErr != nil {
		return api.ChatResponse{}, b.chatErr
	}
	if len(b.replies) == 0 {
		return api.ChatResponse{Response: json.RawMessage(`""`)}, nil
	}
	reply := b.replies[0]
	b.replies = b.replies[1:]
	return api.ChatResponse{Response: reply}, nil
}

func (b *fakeBackend) History(ctx context.Context, sessionID string, page api.Page) (api.HistoryPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.historyCalls = append(b.historyCalls, page)
	if b.onHistory != nil {
		b.onHistory(sessionID)
	}
	if b.historyErr != nil {
		return api.HistoryPage{}, b.historyErr
	}
	if b.resetOnHistory {
		b.status.NotificationCount = 0
	}
	i := page.Offset / page.Limit
	if i >= len(b.pages) {
		return api.HistoryPage{}, nil
	}
	return b.pages[i], nil
}

func (b *fakeBackend) Notifications(ctx context.Context, sessionID string) (api.NotificationStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCalls++
	if b.statusErr != nil {
		return api.NotificationStatus{}, b.statusErr
	}
	return b.status, nil
}

func (b *fakeBackend) UploadMedia(ctx context.Context, fileName string, content io.Reader) (api.UploadResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploadNames = append(b.uploadNames, fileName)
	if content != nil {
		data, err := io.ReadAll(content)
		if err != nil {
			return api.UploadResult{}, err
		}
		b.uploadBytes = append(b.uploadBytes, data)
	}
	if b.uploadErr != nil {
		return api.UploadResult{}, b.uploadErr
	}
	return b.upload, nil
}

func (b *fakeBackend) historyCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.historyCalls)
}

func (b *fakeBackend) notificationCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusCalls
}

type recordingNotifier struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *recordingNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

func record(id, sender, message string) api.HistoryRecord {
	return api.HistoryRecord{ID: api.FlexString(id), Sender: sender, Message: message, MessageAt: "2024-05-01 14:05:00"}
}

func ids(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

var errUnreachable = errors.New("connection refused")
