package chat

import (
	"bytes"
	"encoding/json"
	"fmt"

	"chatflow-tutor/pkg/api"
)

type ResponseKind int

const (
	ResponseEmpty ResponseKind = iota
	ResponseProcessing
	ResponseSingleText
	ResponseEntryList
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseProcessing:
		return "processing"
	case ResponseSingleText:
		return "text"
	case ResponseEntryList:
		return "entries"
	default:
		return "empty"
	}
}

// BotResponse is the decoded "response" field of a chat reply. Text is set
// for ResponseSingleText, Entries for ResponseEntryList.
type BotResponse struct {
	Kind    ResponseKind
	Text    string
	Entries []api.ReplyEntry
}

// DecodeBotResponse classifies a raw "response" value. A missing or null
// value, or one of an unexpected type, decodes as ResponseEmpty.
func DecodeBotResponse(raw json.RawMessage) (BotResponse, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return BotResponse{Kind: ResponseEmpty}, nil
	}

	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return BotResponse{}, fmt.Errorf("error decoding text response: %w", err)
		}
		if text == api.ProcessingSentinel {
			return BotResponse{Kind: ResponseProcessing}, nil
		}
		return BotResponse{Kind: ResponseSingleText, Text: text}, nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return BotResponse{}, fmt.Errorf("error decoding entry list response: %w", err)
		}
		if len(items) > 0 && isSentinel(items[0]) {
			return BotResponse{Kind: ResponseProcessing}, nil
		}
		entries := make([]api.ReplyEntry, 0, len(items))
		for i, item := range items {
			entry, err := decodeReplyEntry(item)
			if err != nil {
				return BotResponse{}, fmt.Errorf("error decoding response entry %d: %w", i, err)
			}
			entries = append(entries, entry)
		}
		return BotResponse{Kind: ResponseEntryList, Entries: entries}, nil

	default:
		return BotResponse{Kind: ResponseEmpty}, nil
	}
}

func isSentinel(item json.RawMessage) bool {
	var text string
	return json.Unmarshal(item, &text) == nil && text == api.ProcessingSentinel
}

type flexButton struct {
	Title   api.FlexString `json:"title"`
	Payload api.FlexString `json:"payload"`
}

// decodeReplyEntry reads a string entry as plain text. An object without a
// message is shown as its own JSON.
func decodeReplyEntry(item json.RawMessage) (api.ReplyEntry, error) {
	item = bytes.TrimSpace(item)
	if len(item) > 0 && item[0] == '"' {
		var text string
		if err := json.Unmarshal(item, &text); err != nil {
			return api.ReplyEntry{}, err
		}
		return api.ReplyEntry{Message: text}, nil
	}

	if len(item) == 0 || item[0] != '{' {
		return api.ReplyEntry{Message: string(item)}, nil
	}

	var fields struct {
		Message      api.FlexString `json:"message"`
		Sender       api.FlexString `json:"sender"`
		Buttons      []flexButton   `json:"buttons"`
		MediaURL     api.FlexString `json:"media_url"`
		MediaType    api.FlexString `json:"media_type"`
		MediaCaption api.FlexString `json:"media_caption"`
		Caption      api.FlexString `json:"caption"`
	}
	if err := json.Unmarshal(item, &fields); err != nil {
		return api.ReplyEntry{}, err
	}

	entry := api.ReplyEntry{
		Message:      fields.Message.String(),
		Sender:       fields.Sender.String(),
		MediaURL:     fields.MediaURL.String(),
		MediaType:    fields.MediaType.String(),
		MediaCaption: fields.MediaCaption.String(),
		Caption:      fields.Caption.String(),
	}
	for _, b := range fields.Buttons {
		entry.Buttons = append(entry.Buttons, api.ReplyButton{Title: b.Title.String(), Payload: b.Payload.String()})
	}
	if entry.Message == "" {
		var compact bytes.Buffer
		if err := json.Compact(&compact, item); err != nil {
			return api.ReplyEntry{}, err
		}
		entry.Message = compact.String()
	}
	return entry, nil
}

// Messages converts a decoded reply into transcript messages with fresh
// local ids. A sender other than exactly "agent" is shown as the bot.
func (r BotResponse) Messages(timestamp string) []Message {
	switch r.Kind {
	case ResponseSingleText:
		return []Message{{ID: newLocalID(), Sender: SenderBot, Text: r.Text, Time: timestamp}}
	case ResponseEntryList:
		out := make([]Message, 0, len(r.Entries))
		for _, e := range r.Entries {
			sender := SenderBot
			if e.Sender == api.SenderAgent {
				sender = SenderAgent
			}
			msg := Message{
				ID:           newLocalID(),
				Sender:       sender,
				Text:         e.Message,
				Time:         timestamp,
				MediaURL:     e.MediaURL,
				MediaType:    e.MediaType,
				MediaCaption: e.MediaCaption,
			}
			for _, b := range e.Buttons {
				msg.Buttons = append(msg.Buttons, Button{Label: b.Title, Payload: b.Payload})
			}
			out = append(out, msg)
		}
		return out
	default:
		return nil
	}
}
