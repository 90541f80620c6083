package mockflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatflow-tutor/internal/database"
	"chatflow-tutor/internal/messaging"

	"gorm.io/gorm"
)

// Replier applies deferred replies and state changes queued by the service.
// Each task waits out its own delay so a slow reply does not hold back the
// queue.
type Replier struct {
	db        *gorm.DB
	publisher messaging.Publisher
	reciever  messaging.Reciever

	stop     chan struct{}
	stopOnce sync.Once
	pending  sync.WaitGroup
}

func NewReplier(db *gorm.DB, publisher messaging.Publisher, reciever messaging.Reciever) *Replier {
	return &Replier{
		db:        db,
		publisher: publisher,
		reciever:  reciever,
		stop:      make(chan struct{}),
	}
}

func (rep *Replier) Start() {
	slog.Info("starting replier")

	for task := range rep.reciever.Tasks() {
		rep.ProcessTask(task)
	}
}

// Stop closes the queue and drops tasks still waiting for their delay.
func (rep *Replier) Stop() {
	slog.Info("stopping replier")

	rep.stopOnce.Do(func() {
		close(rep.stop)
		rep.publisher.Close()
		rep.reciever.Close()
	})
	rep.pending.Wait()
}

func (rep *Replier) ProcessTask(task messaging.Task) {
	var (
		delay time.Duration
		apply func(ctx context.Context) error
	)

	switch task.Type() {
	case messaging.ReplyQueue:
		var payload messaging.ReplyTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling reply task", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		delay = payload.Delay
		apply = func(ctx context.Context) error { return rep.processReplyTask(ctx, payload) }

	case messaging.StateQueue:
		var payload messaging.StateTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling state task", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		delay = payload.Delay
		apply = func(ctx context.Context) error { return database.UpdateChatState(ctx, rep.db, payload.SessionID, payload.State) }

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if delay <= 0 {
		rep.finish(task, apply)
		return
	}

	rep.pending.Add(1)
	go func() {
		defer rep.pending.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			rep.finish(task, apply)
		case <-rep.stop:
			if err := task.Nack(); err != nil {
				slog.Error("error reporting processing failure on message from queue", "error", err)
			}
		}
	}()
}

func (rep *Replier) finish(task messaging.Task, apply func(ctx context.Context) error) {
	if err := apply(context.Background()); err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
		return
	}

	slog.Debug("successfully processed task", "queue", task.Type())
	if err := task.Ack(); err != nil {
		slog.Error("error acknowledging message from queue", "error", err)
	}
}

func (rep *Replier) processReplyTask(ctx context.Context, payload messaging.ReplyTaskPayload) error {
	if _, err := database.EnsureChatSession(ctx, rep.db, payload.SessionID, payload.Account); err != nil {
		return fmt.Errorf("error loading session: %w", err)
	}

	message := &database.ChatHistory{
		SessionID: payload.SessionID,
		Sender:    payload.Sender,
		Message:   payload.Message,
	}
	if err := database.SaveChatMessage(ctx, rep.db, message); err != nil {
		return fmt.Errorf("error saving reply: %w", err)
	}

	if err := database.AddNotifications(ctx, rep.db, payload.SessionID, 1); err != nil {
		return fmt.Errorf("error updating notification count: %w", err)
	}
	return nil
}
