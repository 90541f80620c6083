package chat

import (
	"context"
	"log/slog"
	"time"

	"chatflow-tutor/internal/chatflow"
	"chatflow-tutor/internal/metrics"
)

const DefaultPollInterval = 3 * time.Second

const pollFailedMessage = "Unable to check for new messages."

// Poller asks the service whether the session has unseen messages and
// resynchronizes the history when it does.
type Poller struct {
	backend    Backend
	session    SessionSource
	history    *HistoryFetcher
	status     *StatusTracker
	transcript *Transcript
	notifier   Notifier
	metrics    *metrics.Metrics
	interval   time.Duration
}

func NewPoller(backend Backend, session SessionSource, history *HistoryFetcher, status *StatusTracker, transcript *Transcript, notifier Notifier, m *metrics.Metrics, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Poller{
		backend:    backend,
		session:    session,
		history:    history,
		status:     status,
		transcript: transcript,
		notifier:   notifier,
		metrics:    m,
		interval:   interval,
	}
}

// Check runs one poll. Failures are reported to the notifier and returned;
// they do not affect later polls.
func (p *Poller) Check(ctx context.Context) error {
	res, err := p.backend.Notifications(ctx, p.session.ID())
	if err != nil {
		p.metrics.RecordPoll("error")
		p.notifier.Error(chatflow.UserMessage(err, pollFailedMessage))
		return err
	}

	if banner, ok := p.status.Observe(res.CurrentState, p.transcript.Len()); ok {
		slog.Info("conversation state changed", "state", res.CurrentState, "banner", banner.Text)
	}

	if res.NotificationCount < 1 {
		p.metrics.RecordPoll("idle")
		return nil
	}

	p.metrics.RecordPoll("new_messages")
	if err := p.history.Sync(ctx); err != nil {
		p.notifier.Error(chatflow.UserMessage(err, pollFailedMessage))
		return err
	}
	return nil
}

// Run polls on a fixed interval until ctx is cancelled. There is no backoff
// and a failed tick is not retried.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Check(ctx); err != nil && ctx.Err() == nil {
				slog.Error("notification poll failed", "error", err)
			}
		}
	}
}
