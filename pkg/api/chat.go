package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	SenderHuman = "human"
	SenderUser  = "user"
	SenderBot   = "bot"
	SenderAgent = "agent"
)

const (
	StateChatbot   = "chatbot"
	StateLiveAgent = "live_agent"
)

// ProcessingSentinel is returned instead of a reply while the flow is still
// working on the previous message.
const ProcessingSentinel = "Message is being processed..."

const UploadTypeCustomer = "customer"

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	MediaType string `json:"media_type,omitempty"`
}

type ChatResponse struct {
	Response json.RawMessage `json:"response"`
}

type ReplyButton struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type ReplyEntry struct {
	Message      string        `json:"message"`
	Sender       string        `json:"sender,omitempty"`
	Buttons      []ReplyButton `json:"buttons,omitempty"`
	MediaURL     string        `json:"media_url,omitempty"`
	MediaType    string        `json:"media_type,omitempty"`
	MediaCaption string        `json:"media_caption,omitempty"`
	Caption      string        `json:"caption,omitempty"`
}

type Page struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}

type HistoryRecord struct {
	ID        FlexString `json:"id"`
	Sender    string     `json:"sender"`
	Message   string     `json:"message"`
	MessageAt string     `json:"message_at"`
}

type HistoryPage struct {
	Results []HistoryRecord `json:"results"`
	Next    HasMore         `json:"next"`
}

type NotificationStatus struct {
	CurrentState      string `json:"current_state"`
	NotificationCount int    `json:"notification_count"`
}

type UploadData struct {
	URL string `json:"url"`
}

type UploadResult struct {
	Success bool       `json:"success"`
	Message FlexString `json:"message"`
	Errors  FlexString `json:"errors"`
	Data    UploadData `json:"data"`
}

type ErrorBody struct {
	Message FlexString `json:"message"`
	Errors  FlexString `json:"errors"`
}

// FlexString accepts a JSON string, number, or any other value and keeps its
// textual form. Null decodes to the empty string.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	*s = FlexString(data)
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// HasMore is the pagination flag of a history page. The service sends a
// boolean; paginators that send the next page URL are also understood.
type HasMore bool

func (h *HasMore) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*h = true
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*h = HasMore(strings.TrimSpace(str) != "")
	default:
		*h = false
	}
	return nil
}
