package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatflow-tutor/internal/chatflow"
	"chatflow-tutor/internal/metrics"
	"chatflow-tutor/pkg/api"
)

const (
	sendFailedMessage    = "Unable to send your message. Please try again."
	replyInvalidMessage  = "Received a reply that could not be displayed."
	uploadFailedMessage  = "Failed to upload media."
	uploadRejectedText   = "Upload failed."
	uploadMissingURLText = "Upload succeeded but URL not returned."
)

var (
	ErrUploadRejected   = errors.New("upload rejected by service")
	ErrUploadMissingURL = errors.New("upload response has no url")
)

// TurnSender submits user turns and appends the replies to the transcript.
type TurnSender struct {
	backend    Backend
	session    SessionSource
	transcript *Transcript
	notifier   Notifier
	metrics    *metrics.Metrics
	now        func() time.Time
	loc        *time.Location

	afterReply func(ctx context.Context)
}

func NewTurnSender(backend Backend, session SessionSource, transcript *Transcript, notifier Notifier, m *metrics.Metrics) *TurnSender {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &TurnSender{
		backend:    backend,
		session:    session,
		transcript: transcript,
		notifier:   notifier,
		metrics:    m,
		now:        time.Now,
		loc:        time.Local,
	}
}

// OnReply registers fn to run once after each reply that is not the
// processing sentinel.
func (s *TurnSender) OnReply(fn func(ctx context.Context)) {
	s.afterReply = fn
}

// SendText strips markup from text and submits it. Text that is empty after
// stripping is ignored without any request.
func (s *TurnSender) SendText(ctx context.Context, text string) error {
	content := CleanInput(text)
	if content == "" {
		return nil
	}

	s.transcript.Append(Message{
		ID:     newLocalID(),
		Sender: SenderUser,
		Text:   content,
		Time:   s.timestamp(),
	})
	s.metrics.RecordSent("text")

	return s.deliver(ctx, api.ChatRequest{SessionID: s.session.ID(), Message: content})
}

// SendAttachment uploads a and submits the stored file's URL as the user's
// turn. Nothing is appended unless the upload succeeds.
func (s *TurnSender) SendAttachment(ctx context.Context, a Attachment) error {
	if err := a.Validate(); err != nil {
		s.metrics.RecordUpload("too_large")
		s.notifier.Error(err.Error())
		return err
	}

	res, err := s.backend.UploadMedia(ctx, a.Name, a.Content)
	if err != nil {
		s.metrics.RecordUpload("error")
		s.notifier.Error(chatflow.UploadMessage(err, uploadFailedMessage))
		return err
	}
	if !res.Success {
		s.metrics.RecordUpload("rejected")
		msg := firstNonEmpty(res.Errors.String(), res.Message.String(), uploadRejectedText)
		s.notifier.Error(msg)
		return fmt.Errorf("%w: %s", ErrUploadRejected, msg)
	}
	if res.Data.URL == "" {
		s.metrics.RecordUpload("missing_url")
		s.notifier.Error(uploadMissingURLText)
		return ErrUploadMissingURL
	}
	s.metrics.RecordUpload("ok")

	mediaType := a.MediaType()
	s.transcript.Append(Message{
		ID:        newLocalID(),
		Sender:    SenderUser,
		Text:      a.Name,
		Time:      s.timestamp(),
		MediaURL:  res.Data.URL,
		MediaType: mediaType,
	})
	s.metrics.RecordSent("attachment")

	return s.deliver(ctx, api.ChatRequest{SessionID: s.session.ID(), Message: res.Data.URL, MediaType: mediaType})
}

func (s *TurnSender) deliver(ctx context.Context, req api.ChatRequest) error {
	res, err := s.backend.SendMessage(ctx, req)
	if err != nil {
		s.notifier.Error(chatflow.UserMessage(err, sendFailedMessage))
		return err
	}

	reply, err := DecodeBotResponse(res.Response)
	if err != nil {
		slog.Warn("unable to decode chat reply", "session_id", req.SessionID, "error", err)
		s.metrics.RecordResponse("invalid")
		s.transcript.RemoveLoader()
		s.notifier.Error(replyInvalidMessage)
		return err
	}
	s.metrics.RecordResponse(reply.Kind.String())

	if reply.Kind == ResponseProcessing {
		s.transcript.SetLoader(loaderMessage(s.now(), s.loc))
		return nil
	}

	s.transcript.ReplaceLoader(reply.Messages(s.timestamp())...)

	if s.afterReply != nil {
		s.afterReply(ctx)
	}
	return nil
}

func (s *TurnSender) timestamp() string {
	return formatTime(s.now(), s.loc)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
