package chat

import (
	"context"
	"io"
	"log/slog"

	"chatflow-tutor/pkg/api"
)

// Backend is the chat-flow service as seen by the synchronizers.
// *chatflow.Client implements it.
type Backend interface {
	SendMessage(ctx context.Context, req api.ChatRequest) (api.ChatResponse, error)
	History(ctx context.Context, sessionID string, page api.Page) (api.HistoryPage, error)
	Notifications(ctx context.Context, sessionID string) (api.NotificationStatus, error)
	UploadMedia(ctx context.Context, fileName string, content io.Reader) (api.UploadResult, error)
}

// SessionSource yields the session token to attach to each backend call.
// *session.Manager implements it.
type SessionSource interface {
	ID() string
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Error(msg string)
	Info(msg string)
}

// LogNotifier reports notifications through slog. It is the default when no
// interactive front-end is attached.
type LogNotifier struct{}

func (LogNotifier) Error(msg string) {
	slog.Warn("chat notification", "level", "error", "message", msg)
}

func (LogNotifier) Info(msg string) {
	slog.Info("chat notification", "message", msg)
}
