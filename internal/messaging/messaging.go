package messaging

import (
	"context"
	"errors"
	"time"
)

const (
	ReplyQueue      = "reply_queue"
	StateQueue      = "state_queue"
	DefaultCapacity = 100
)

var ErrQueueClosed = errors.New("queue is closed")

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// ReplyTaskPayload is a message the flow will add to a session's history
// once Delay has passed.
type ReplyTaskPayload struct {
	Account   string        `json:"account"`
	SessionID string        `json:"session_id"`
	Sender    string        `json:"sender"`
	Message   string        `json:"message"`
	Delay     time.Duration `json:"delay"`
}

// StateTaskPayload moves a session to a new conversation state after Delay.
type StateTaskPayload struct {
	SessionID string        `json:"session_id"`
	State     string        `json:"state"`
	Delay     time.Duration `json:"delay"`
}

type Publisher interface {
	PublishReplyTask(ctx context.Context, payload ReplyTaskPayload) error

	PublishStateTask(ctx context.Context, payload StateTaskPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
