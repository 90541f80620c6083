package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"chatflow-tutor/internal/chatflow"
	"chatflow-tutor/internal/metrics"
	"chatflow-tutor/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSender(backend *fakeBackend) (*TurnSender, *Transcript, *recordingNotifier) {
	tr := NewTranscript()
	notifier := &recordingNotifier{}
	return NewTurnSender(backend, staticSession("sess-1"), tr, notifier, metrics.New()), tr, notifier
}

func TestSendEmptyTextIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	sender, tr, notifier := newTestSender(backend)

	for _, text := range []string{"", "   ", "<p> </p>", "<br>"} {
		require.NoError(t, sender.SendText(context.Background(), text))
	}
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, backend.requests)
	assert.Empty(t, notifier.Errors())
}

func TestSendTextAppendsUserThenReply(t *testing.T) {
	backend := &fakeBackend{replies: []json.RawMessage{json.RawMessage(`["Hi", {"message": "Bye", "sender": "agent"}]`)}}
	sender, tr, _ := newTestSender(backend)

	require.NoError(t, sender.SendText(context.Background(), "  <b>hello</b> "))

	require.Len(t, backend.requests, 1)
	assert.Equal(t, api.ChatRequest{SessionID: "sess-1", Message: "hello"}, backend.requests[0])

	msgs := tr.Snapshot()
	require.Len(t, msgs, 3)
	assert.Equal(t, SenderUser, msgs[0].Sender)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, SenderBot, msgs[1].Sender)
	assert.Equal(t, "Hi", msgs[1].Text)
	assert.Equal(t, SenderAgent, msgs[2].Sender)
	assert.Equal(t, "Bye", msgs[2].Text)
}

func TestSendProcessingLeavesOneLoader(t *testing.T) {
	backend := &fakeBackend{replies: []json.RawMessage{
		json.RawMessage(`"Message is being processed..."`),
		json.RawMessage(`["Message is being processed..."]`),
		json.RawMessage(`"Done"`),
	}}
	sender, tr, _ := newTestSender(backend)
	replies := 0
	sender.OnReply(func(context.Context) { replies++ })

	require.NoError(t, sender.SendText(context.Background(), "one"))
	require.NoError(t, sender.SendText(context.Background(), "two"))

	loaders := 0
	for _, m := range tr.Snapshot() {
		if m.IsLoader() {
			loaders++
		}
	}
	assert.Equal(t, 1, loaders)
	assert.Equal(t, LoaderID, tr.Snapshot()[tr.Len()-1].ID)
	assert.Equal(t, 0, replies)

	require.NoError(t, sender.SendText(context.Background(), "three"))
	msgs := tr.Snapshot()
	assert.False(t, tr.HasLoader())
	assert.Equal(t, "Done", msgs[len(msgs)-1].Text)
	assert.Equal(t, 1, replies)
}

func TestSendInvalidReplyClearsLoader(t *testing.T) {
	backend := &fakeBackend{replies: []json.RawMessage{
		json.RawMessage(`"Message is being processed..."`),
		json.RawMessage(`[{"message": "x", "buttons": "oops"}]`),
	}}
	sender, tr, notifier := newTestSender(backend)

	require.NoError(t, sender.SendText(context.Background(), "one"))
	require.True(t, tr.HasLoader())

	require.Error(t, sender.SendText(context.Background(), "two"))

	assert.False(t, tr.HasLoader())
	assert.Equal(t, []string{replyInvalidMessage}, notifier.Errors())
	msgs := tr.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Text)
	assert.Equal(t, "two", msgs[1].Text)
}

func TestSendBackendErrorKeepsOptimisticMessage(t *testing.T) {
	backend := &fakeBackend{chatErr: &chatflow.BackendError{StatusCode: 500, Message: "Flow not published"}}
	sender, tr, notifier := newTestSender(backend)

	err := sender.SendText(context.Background(), "hello")
	require.Error(t, err)

	assert.Equal(t, []string{"Flow not published"}, notifier.Errors())
	require.Equal(t, 1, tr.Len())
	assert.Equal(t, "hello", tr.Snapshot()[0].Text)
}

func TestSendTransportErrorUsesFallback(t *testing.T) {
	backend := &fakeBackend{chatErr: errUnreachable}
	sender, _, notifier := newTestSender(backend)

	require.ErrorIs(t, sender.SendText(context.Background(), "hello"), errUnreachable)
	assert.Equal(t, []string{sendFailedMessage}, notifier.Errors())
}

func TestSendOversizedAttachmentIsRejected(t *testing.T) {
	backend := &fakeBackend{}
	sender, tr, notifier := newTestSender(backend)

	err := sender.SendAttachment(context.Background(), Attachment{Name: "big.mp4", Size: MaxAttachmentBytes + 1})
	require.ErrorIs(t, err, ErrAttachmentTooLarge)

	assert.Empty(t, backend.uploadNames)
	assert.Empty(t, backend.requests)
	assert.Equal(t, 0, tr.Len())
	require.Len(t, notifier.Errors(), 1)
	assert.Contains(t, notifier.Errors()[0], "big.mp4")
}

func TestSendAttachment(t *testing.T) {
	backend := &fakeBackend{
		upload:  api.UploadResult{Success: true, Data: api.UploadData{URL: "http://files/20240501_140500_essay.PDF"}},
		replies: []json.RawMessage{json.RawMessage(`"Got your file"`)},
	}
	sender, tr, _ := newTestSender(backend)

	content := []byte("%PDF-1.4")
	err := sender.SendAttachment(context.Background(), Attachment{Name: "essay.PDF", Size: int64(len(content)), Content: bytes.NewReader(content)})
	require.NoError(t, err)

	assert.Equal(t, []string{"essay.PDF"}, backend.uploadNames)
	assert.Equal(t, [][]byte{content}, backend.uploadBytes)

	require.Len(t, backend.requests, 1)
	assert.Equal(t, "http://files/20240501_140500_essay.PDF", backend.requests[0].Message)
	assert.Equal(t, ".pdf", backend.requests[0].MediaType)

	msgs := tr.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, SenderUser, msgs[0].Sender)
	assert.Equal(t, "essay.PDF", msgs[0].Text)
	assert.Equal(t, ".pdf", msgs[0].MediaType)
	assert.Equal(t, "Got your file", msgs[1].Text)
}

func TestSendAttachmentUploadFailures(t *testing.T) {
	cases := []struct {
		name    string
		upload  api.UploadResult
		err     error
		message string
	}{
		{"errors field", api.UploadResult{Success: false, Errors: "File type not allowed", Message: "Bad request"}, nil, "File type not allowed"},
		{"message field", api.UploadResult{Success: false, Message: "Quota exceeded"}, nil, "Quota exceeded"},
		{"no detail", api.UploadResult{Success: false}, nil, uploadRejectedText},
		{"missing url", api.UploadResult{Success: true}, nil, uploadMissingURLText},
		{"backend error", api.UploadResult{}, &chatflow.BackendError{StatusCode: 413, Errors: "Too big"}, "Too big"},
		{"transport error", api.UploadResult{}, errUnreachable, uploadFailedMessage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{upload: tc.upload, uploadErr: tc.err}
			sender, tr, notifier := newTestSender(backend)

			err := sender.SendAttachment(context.Background(), Attachment{Name: "a.png", Size: 3, Content: strings.NewReader("png")})
			require.Error(t, err)
			assert.Equal(t, []string{tc.message}, notifier.Errors())
			assert.Equal(t, 0, tr.Len())
			assert.Empty(t, backend.requests)
		})
	}
}
