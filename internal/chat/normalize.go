package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chatflow-tutor/pkg/api"

	"github.com/titanous/json5"
)

const (
	attachmentMarker = "media_url"
	entryListMarker  = "[{"
)

// Reasons reported for records that were dropped or only partially
// understood.
const (
	ReasonEmptyMessage      = "empty_message"
	ReasonInvalidAttachment = "invalid_attachment"
	ReasonInvalidEntries    = "invalid_entries"
	ReasonUnknownSender     = "unknown_sender"
	ReasonInvalidTimestamp  = "invalid_timestamp"
)

var (
	ErrNotAnObject = errors.New("payload is not an object")
	ErrNotAnArray  = errors.New("payload is not an array")
	ErrNoEntries   = errors.New("entry list has no entries")
)

// RecordIssue describes one problem found while normalizing a history
// record. The record is either skipped or degraded to a plainer form.
type RecordIssue struct {
	RecordID string
	Reason   string
	Err      error
}

func (i RecordIssue) Error() string {
	if i.Err == nil {
		return fmt.Sprintf("history record %s: %s", i.RecordID, i.Reason)
	}
	return fmt.Sprintf("history record %s: %s: %v", i.RecordID, i.Reason, i.Err)
}

func (i RecordIssue) Unwrap() error {
	return i.Err
}

var messageAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseMessageAt reads a history timestamp. Values without a zone are UTC.
func ParseMessageAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range messageAtLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized message_at '%s'", value)
}

// NormalizeRecord converts one raw history record into zero or more
// messages. Issues are returned alongside whatever could be produced; they
// never abort the record set.
func NormalizeRecord(rec api.HistoryRecord, loc *time.Location) ([]Message, []RecordIssue) {
	id := rec.ID.String()
	var issues []RecordIssue

	display := ""
	if at, err := ParseMessageAt(rec.MessageAt); err != nil {
		issues = append(issues, RecordIssue{RecordID: id, Reason: ReasonInvalidTimestamp, Err: err})
	} else {
		display = formatTime(at, loc)
	}

	raw := strings.TrimSpace(rec.Message)

	switch rec.Sender {
	case api.SenderHuman, api.SenderUser:
		if raw == "" {
			return nil, append(issues, RecordIssue{RecordID: id, Reason: ReasonEmptyMessage})
		}
		if !strings.Contains(raw, attachmentMarker) {
			return []Message{{ID: id, Sender: SenderUser, Text: rec.Message, Time: display}}, issues
		}
		msg, err := parseAttachment(raw)
		if err != nil {
			return nil, append(issues, RecordIssue{RecordID: id, Reason: ReasonInvalidAttachment, Err: err})
		}
		msg.ID, msg.Sender, msg.Time = id, SenderUser, display
		return []Message{msg}, issues

	case api.SenderBot, api.SenderAgent:
		if raw == "" {
			return nil, append(issues, RecordIssue{RecordID: id, Reason: ReasonEmptyMessage})
		}
		sender := SenderBot
		if rec.Sender == api.SenderAgent {
			sender = SenderAgent
		}

		if strings.HasPrefix(raw, entryListMarker) {
			entries, err := parseEntryList(raw)
			if err == nil {
				out := make([]Message, 0, len(entries))
				for i, e := range entries {
					e.ID, e.Sender, e.Time = entryID(id, i), sender, display
					out = append(out, e)
				}
				return out, issues
			}
			issues = append(issues, RecordIssue{RecordID: id, Reason: ReasonInvalidEntries, Err: err})
		} else if strings.Contains(raw, attachmentMarker) {
			msg, err := parseAttachment(raw)
			if err == nil {
				msg.ID, msg.Sender, msg.Time = id, sender, display
				return []Message{msg}, issues
			}
			issues = append(issues, RecordIssue{RecordID: id, Reason: ReasonInvalidAttachment, Err: err})
		}

		return []Message{{ID: id, Sender: sender, Text: raw, Time: display}}, issues

	default:
		return nil, append(issues, RecordIssue{RecordID: id, Reason: ReasonUnknownSender, Err: fmt.Errorf("sender '%s'", rec.Sender)})
	}
}

// entryID keeps the record id for the first entry so that deduplication
// against earlier pages still applies, and suffixes the rest.
func entryID(recordID string, index int) string {
	if index == 0 {
		return recordID
	}
	return recordID + "#" + strconv.Itoa(index)
}

func parseAttachment(raw string) (Message, error) {
	var v any
	if err := json5.Unmarshal([]byte(raw), &v); err != nil {
		return Message{}, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Message{}, ErrNotAnObject
	}
	caption := stringField(obj, "caption")
	if caption == "" {
		caption = stringField(obj, "media_caption")
	}
	return Message{
		Text:         stringField(obj, "message"),
		MediaURL:     stringField(obj, "media_url"),
		MediaType:    stringField(obj, "media_type"),
		MediaCaption: caption,
	}, nil
}

func parseEntryList(raw string) ([]Message, error) {
	var v any
	if err := json5.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, ErrNotAnArray
	}
	if len(list) == 0 {
		return nil, ErrNoEntries
	}

	out := make([]Message, 0, len(list))
	for _, item := range list {
		switch entry := item.(type) {
		case map[string]any:
			caption := stringField(entry, "caption")
			if caption == "" {
				caption = stringField(entry, "media_caption")
			}
			out = append(out, Message{
				Text:         decodeEntities(stringField(entry, "message")),
				Buttons:      buttonsField(entry),
				MediaURL:     stringField(entry, "media_url"),
				MediaType:    stringField(entry, "media_type"),
				MediaCaption: caption,
			})
		case string:
			out = append(out, Message{Text: decodeEntities(entry)})
		default:
			out = append(out, Message{})
		}
	}
	return out, nil
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func buttonsField(obj map[string]any) []Button {
	list, ok := obj["buttons"].([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	buttons := make([]Button, 0, len(list))
	for _, item := range list {
		b, ok := item.(map[string]any)
		if !ok {
			continue
		}
		buttons = append(buttons, Button{Label: stringField(b, "title"), Payload: stringField(b, "payload")})
	}
	return buttons
}
