package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chatflow-tutor/internal/chat"
	"chatflow-tutor/internal/render"
	"chatflow-tutor/internal/session"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsButtonCommand(t *testing.T) {
	assert.True(t, isButtonCommand("/1"))
	assert.True(t, isButtonCommand("/12"))
	assert.False(t, isButtonCommand("/0"))
	assert.False(t, isButtonCommand("/quiz"))
	assert.False(t, isButtonCommand("1"))
	assert.False(t, isButtonCommand("/"))
}

func TestLatestButton(t *testing.T) {
	msgs := []chat.Message{
		{ID: "1", Buttons: []chat.Button{{Label: "Old", Payload: "/old"}}},
		{ID: "2", Buttons: []chat.Button{{Label: "Run", Payload: "/answer run"}, {Label: "Table", Payload: "/answer table"}}},
		{ID: "3", Text: "no buttons here"},
	}

	b, ok := latestButton(msgs, 2)
	assert.True(t, ok)
	assert.Equal(t, chat.Button{Label: "Table", Payload: "/answer table"}, b)

	_, ok = latestButton(msgs, 3)
	assert.False(t, ok)

	_, ok = latestButton(nil, 1)
	assert.False(t, ok)
}

func newAttachTest(t *testing.T) (*chat.Conversation, *render.Printer, *bytes.Buffer) {
	color.NoColor = true
	var buf bytes.Buffer
	printer := render.NewPrinter(&buf)
	sessions := session.NewManager(session.NewMemoryStore(), time.Hour)
	conv := chat.NewConversation(nil, sessions, printer, nil, chat.Options{})
	return conv, printer, &buf
}

func TestAttachOversizedReportsOnce(t *testing.T) {
	conv, printer, buf := newAttachTest(t)

	path := filepath.Join(t.TempDir(), "lecture.mp4")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(chat.MaxAttachmentBytes+1))
	require.NoError(t, f.Close())

	file, err := attach(conv, printer, path)
	require.ErrorIs(t, err, chat.ErrAttachmentTooLarge)
	assert.Nil(t, file)

	assert.Equal(t, 1, strings.Count(buf.String(), "! "))
	assert.Contains(t, buf.String(), "lecture.mp4")
	_, pending := conv.PendingAttachment()
	assert.False(t, pending)
}

func TestAttachMissingFileIsReported(t *testing.T) {
	conv, printer, buf := newAttachTest(t)

	_, err := attach(conv, printer, filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(buf.String(), "! "))
	assert.Contains(t, buf.String(), "unable to open")
}

func TestAttachKeepsFileOpen(t *testing.T) {
	conv, printer, buf := newAttachTest(t)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	file, err := attach(conv, printer, path)
	require.NoError(t, err)
	defer file.Close()

	a, pending := conv.PendingAttachment()
	require.True(t, pending)
	assert.Equal(t, "notes.txt", a.Name)
	assert.Equal(t, int64(5), a.Size)
	assert.Empty(t, buf.String())
}
