package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chatflow-tutor/internal/metrics"
	"chatflow-tutor/internal/session"
)

type Options struct {
	PollInterval         time.Duration
	SessionCheckInterval time.Duration
	HistoryPageSize      int
	Location             *time.Location
}

const DefaultSessionCheckInterval = time.Second

// Conversation ties one session to its transcript and the three
// synchronizers that write to it.
type Conversation struct {
	sessions   *session.Manager
	transcript *Transcript
	status     *StatusTracker
	history    *HistoryFetcher
	poller     *Poller
	sender     *TurnSender
	notifier   Notifier
	opts       Options

	mu      sync.Mutex
	pending *Attachment
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewConversation(backend Backend, sessions *session.Manager, notifier Notifier, m *metrics.Metrics, opts Options) *Conversation {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if opts.SessionCheckInterval <= 0 {
		opts.SessionCheckInterval = DefaultSessionCheckInterval
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	transcript := NewTranscript()
	status := NewStatusTracker()
	history := NewHistoryFetcher(backend, sessions, transcript,
		WithPageSize(opts.HistoryPageSize),
		WithLocation(opts.Location),
		WithHistoryMetrics(m),
	)
	poller := NewPoller(backend, sessions, history, status, transcript, notifier, m, opts.PollInterval)
	sender := NewTurnSender(backend, sessions, transcript, notifier, m)
	sender.loc = opts.Location
	sender.OnReply(func(ctx context.Context) {
		_ = poller.Check(ctx)
	})

	c := &Conversation{
		sessions:   sessions,
		transcript: transcript,
		status:     status,
		history:    history,
		poller:     poller,
		sender:     sender,
		notifier:   notifier,
		opts:       opts,
	}

	sessions.OnRotate(func(old, fresh session.Session) {
		slog.Info("chat session expired, starting a new one", "old_session_id", old.ID, "session_id", fresh.ID)
		c.transcript.Replace(nil)
		c.status.Reset()
		c.ClearAttachment()
	})
	return c
}

func (c *Conversation) Transcript() *Transcript {
	return c.transcript
}

func (c *Conversation) Status() *StatusTracker {
	return c.status
}

func (c *Conversation) History() *HistoryFetcher {
	return c.history
}

func (c *Conversation) Poller() *Poller {
	return c.poller
}

func (c *Conversation) SessionID() string {
	return c.sessions.ID()
}

// Start initializes the session, loads the existing history and launches
// the notification and session-expiry loops. Call Stop to end them.
func (c *Conversation) Start(ctx context.Context) error {
	if _, err := c.sessions.Init(ctx); err != nil {
		return err
	}

	if err := c.history.Sync(ctx); err != nil {
		slog.Error("error loading chat history", "session_id", c.sessions.ID(), "error", err)
		c.notifier.Error(pollFailedMessage)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.poller.Run(loopCtx)
	}()
	go func() {
		defer c.wg.Done()
		c.sessions.RunExpiryLoop(loopCtx, c.opts.SessionCheckInterval)
	}()

	slog.Info("conversation started", "session_id", c.sessions.ID(), "poll_interval", c.poller.interval)
	return nil
}

// Stop ends the background loops and waits for them. Requests already in
// flight finish on their own contexts.
func (c *Conversation) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// Attach sets the pending attachment for the next Send. An oversized file
// is rejected immediately and the slot is left empty.
func (c *Conversation) Attach(a Attachment) error {
	if err := a.Validate(); err != nil {
		c.ClearAttachment()
		c.notifier.Error(err.Error())
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &a
	return nil
}

func (c *Conversation) PendingAttachment() (Attachment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Attachment{}, false
	}
	return *c.pending, true
}

func (c *Conversation) ClearAttachment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// Send submits the pending attachment if there is one, otherwise text. The
// pending attachment is consumed whether or not the upload succeeds.
func (c *Conversation) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending != nil {
		return c.sender.SendAttachment(ctx, *pending)
	}
	return c.sender.SendText(ctx, text)
}

// Press sends the payload of a reply button as the user's turn.
func (c *Conversation) Press(ctx context.Context, b Button) error {
	payload := b.Payload
	if payload == "" {
		payload = b.Label
	}
	return c.Send(ctx, payload)
}
