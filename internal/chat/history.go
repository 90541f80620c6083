package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatflow-tutor/internal/metrics"
	"chatflow-tutor/pkg/api"
)

const DefaultHistoryPageSize = 5

// maxHistoryPages bounds one synchronization against a service that never
// clears its "next" flag.
const maxHistoryPages = 10000

// HistoryFetcher pulls the complete history of the current session and
// replaces the transcript with it.
type HistoryFetcher struct {
	backend    Backend
	session    SessionSource
	transcript *Transcript
	metrics    *metrics.Metrics
	pageSize   int
	loc        *time.Location

	// held for the whole of Sync
	mu sync.Mutex
}

type HistoryOption func(*HistoryFetcher)

func WithPageSize(size int) HistoryOption {
	return func(f *HistoryFetcher) {
		if size > 0 {
			f.pageSize = size
		}
	}
}

func WithLocation(loc *time.Location) HistoryOption {
	return func(f *HistoryFetcher) {
		f.loc = loc
	}
}

func WithHistoryMetrics(m *metrics.Metrics) HistoryOption {
	return func(f *HistoryFetcher) {
		f.metrics = m
	}
}

func NewHistoryFetcher(backend Backend, session SessionSource, transcript *Transcript, opts ...HistoryOption) *HistoryFetcher {
	f := &HistoryFetcher{
		backend:    backend,
		session:    session,
		transcript: transcript,
		pageSize:   DefaultHistoryPageSize,
		loc:        time.Local,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch pages through the history from offset zero until the service
// reports no more pages, and returns the deduplicated messages in order.
func (f *HistoryFetcher) Fetch(ctx context.Context) ([]Message, error) {
	return f.fetch(ctx, f.session.ID())
}

func (f *HistoryFetcher) fetch(ctx context.Context, sessionID string) ([]Message, error) {
	page := api.Page{Limit: f.pageSize, Offset: 0}

	var all []Message
	for i := 0; i < maxHistoryPages; i++ {
		res, err := f.backend.History(ctx, sessionID, page)
		if err != nil {
			return nil, fmt.Errorf("error fetching history page at offset %d: %w", page.Offset, err)
		}

		var batch []Message
		for _, rec := range res.Results {
			msgs, issues := NormalizeRecord(rec, f.loc)
			for _, issue := range issues {
				f.reportIssue(sessionID, issue)
			}
			batch = append(batch, msgs...)
		}
		all = MergeUnique(all, batch)

		if !res.Next {
			return all, nil
		}
		page.Offset += page.Limit
	}

	slog.Warn("history pagination did not terminate", "session_id", sessionID, "pages", maxHistoryPages)
	return all, nil
}

// Sync fetches the full history and replaces the transcript with it in one
// update. On failure the transcript is left untouched, and a result for a
// session that was rotated away while fetching is dropped.
func (f *HistoryFetcher) Sync(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sessionID := f.session.ID()
	msgs, err := f.fetch(ctx, sessionID)
	if err != nil {
		f.metrics.RecordHistoryFetch("error")
		return err
	}

	if current := f.session.ID(); current != sessionID {
		f.metrics.RecordHistoryFetch("stale")
		slog.Info("discarding history of previous session", "session_id", sessionID, "current_session_id", current)
		return nil
	}

	f.transcript.Replace(msgs)
	f.metrics.RecordHistoryFetch("ok")
	slog.Debug("history synchronized", "session_id", sessionID, "messages", len(msgs))
	return nil
}

func (f *HistoryFetcher) reportIssue(sessionID string, issue RecordIssue) {
	if issue.Reason == ReasonEmptyMessage {
		slog.Debug("skipping empty history record", "session_id", sessionID, "record_id", issue.RecordID)
		return
	}
	slog.Warn("unable to parse history record", "session_id", sessionID, "record_id", issue.RecordID, "reason", issue.Reason, "error", issue.Err)
	f.metrics.RecordSkipped(issue.Reason)
}
