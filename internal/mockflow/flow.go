package mockflow

import (
	"fmt"
	"strings"
	"time"

	"chatflow-tutor/pkg/api"
)

const (
	greetingText  = "Hello! I'm your AI tutor. Type /quiz to practise, /explain <topic> for a longer answer, or /agent to talk to a person."
	connectingMsg = "Please wait while we connect you to a live agent."
	agentHello    = "Hi, this is a tutor from the live team. How can I help?"
	handbackText  = "Thanks for chatting with the team. Your AI tutor is back."
	quizIntro     = "Let's practise!"
	quizQuestion  = "Which of these words is a noun?"
	quizAnswer    = "table"
	uploadThanks  = "Thanks, I have received your file."
)

// Deferred is a reply the flow adds to the history after a delay.
type Deferred struct {
	Sender  string
	Message string
	Delay   time.Duration
}

// Turn is the flow's answer to one user message.
type Turn struct {
	// Response is the value of the "response" field: a string or a list of
	// api.ReplyEntry.
	Response any
	// Stored is the bot history record for this turn; empty when the reply
	// only arrives later.
	Stored string
	// NextState is the conversation state to move to after StateDelay, or
	// "" to stay.
	NextState  string
	StateDelay time.Duration
	Deferred   []Deferred
}

// Flow is a small scripted tutor. It is deterministic so clients can be
// tested against it.
type Flow struct {
	ReplyDelay time.Duration
}

func (f Flow) Respond(state string, req api.ChatRequest) (Turn, error) {
	text := strings.TrimSpace(req.Message)
	command := strings.ToLower(text)

	if state == api.StateLiveAgent {
		if command == "/bot" || command == "bye" {
			return f.text(handbackText, api.StateChatbot), nil
		}
		return Turn{
			Response: api.ProcessingSentinel,
			Deferred: []Deferred{{Sender: api.SenderAgent, Message: fmt.Sprintf("An agent read your message: \"%s\"", text), Delay: f.ReplyDelay}},
		}, nil
	}

	if req.MediaType != "" {
		return f.entries([]api.ReplyEntry{{
			Message:      uploadThanks,
			MediaURL:     text,
			MediaType:    req.MediaType,
			MediaCaption: "Your upload",
		}})
	}

	switch {
	case command == "/agent" || strings.Contains(command, "live agent") || strings.Contains(command, "human"):
		turn := f.text(connectingMsg, api.StateLiveAgent)
		turn.StateDelay = f.ReplyDelay / 2
		turn.Deferred = []Deferred{{Sender: api.SenderAgent, Message: agentHello, Delay: f.ReplyDelay}}
		return turn, nil

	case command == "/quiz" || command == "quiz":
		return f.entries([]api.ReplyEntry{
			{Message: quizIntro},
			{Message: quizQuestion, Buttons: []api.ReplyButton{
				{Title: "Run", Payload: "/answer run"},
				{Title: "Table", Payload: "/answer table"},
				{Title: "Quickly", Payload: "/answer quickly"},
			}},
		})

	case strings.HasPrefix(command, "/answer"):
		answer := strings.TrimSpace(strings.TrimPrefix(command, "/answer"))
		if answer == quizAnswer {
			return f.text("Correct! A table is a thing, so it is a noun.", ""), nil
		}
		return f.text(fmt.Sprintf("Not quite, \"%s\" is not a noun. Try /quiz again.", answer), ""), nil

	case strings.HasPrefix(command, "/explain"):
		topic := strings.TrimSpace(text[len("/explain"):])
		if topic == "" {
			topic = "that"
		}
		return Turn{
			Response: api.ProcessingSentinel,
			Deferred: []Deferred{{
				Sender:  api.SenderBot,
				Message: fmt.Sprintf("Here is a step by step explanation of %s.&lt;br&gt;First, read the question carefully.", topic),
				Delay:   f.ReplyDelay,
			}},
		}, nil

	case command == "hi" || command == "hello" || command == "hey":
		return f.text(greetingText, ""), nil

	default:
		return f.text(fmt.Sprintf("You asked: \"%s\". Type /quiz for a practice question.", text), ""), nil
	}
}

func (f Flow) text(message, nextState string) Turn {
	return Turn{Response: message, Stored: message, NextState: nextState}
}

// entries stores the list the way the service's history keeps bot replies:
// as a JSON array of entry objects.
func (f Flow) entries(list []api.ReplyEntry) (Turn, error) {
	stored, err := marshalEntries(list)
	if err != nil {
		return Turn{}, err
	}
	return Turn{Response: list, Stored: stored}, nil
}
