package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser  Sender = "user"
	SenderBot   Sender = "bot"
	SenderAgent Sender = "agent"
)

// LoaderID marks the placeholder shown while a reply is still being
// produced. At most one loader is in a transcript at a time.
const LoaderID = "loader"

const loaderText = "Loader"

// Local ids are prefixed so they never collide with server-assigned ids.
const localIDPrefix = "local-"

const timeLayout = "03:04 PM"

type Button struct {
	Label   string
	Payload string
}

type Message struct {
	ID           string
	Sender       Sender
	Text         string
	Time         string
	Buttons      []Button
	MediaURL     string
	MediaType    string
	MediaCaption string
}

func (m Message) IsLoader() bool {
	return m.ID == LoaderID
}

func (m Message) HasMedia() bool {
	return m.MediaURL != ""
}

func newLocalID() string {
	return localIDPrefix + uuid.NewString()
}

func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

func formatTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(timeLayout)
}

func loaderMessage(now time.Time, loc *time.Location) Message {
	return Message{
		ID:     LoaderID,
		Sender: SenderBot,
		Text:   loaderText,
		Time:   formatTime(now, loc),
	}
}
