package mockflow

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"chatflow-tutor/internal/database"
	"chatflow-tutor/internal/messaging"
	"chatflow-tutor/pkg/api"

	"github.com/jaswdr/faker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowEchoesUnknownMessages(t *testing.T) {
	flow := Flow{ReplyDelay: time.Second}
	sentence := faker.New().Lorem().Sentence(6)

	turn, err := flow.Respond(api.StateChatbot, api.ChatRequest{SessionID: "s1", Message: sentence})
	require.NoError(t, err)
	assert.Contains(t, turn.Response, sentence)
	assert.Equal(t, turn.Response, turn.Stored)
	assert.Empty(t, turn.NextState)
	assert.Empty(t, turn.Deferred)
}

func TestFlowQuizAnswers(t *testing.T) {
	flow := Flow{}

	turn, err := flow.Respond(api.StateChatbot, api.ChatRequest{Message: "/answer Table"})
	require.NoError(t, err)
	assert.Contains(t, turn.Response, "Correct")

	turn, err = flow.Respond(api.StateChatbot, api.ChatRequest{Message: "/answer run"})
	require.NoError(t, err)
	assert.Contains(t, turn.Response, "Not quite")
}

func TestFlowExplainIsDeferred(t *testing.T) {
	flow := Flow{ReplyDelay: time.Second}

	turn, err := flow.Respond(api.StateChatbot, api.ChatRequest{Message: "/explain Photosynthesis"})
	require.NoError(t, err)
	assert.Equal(t, api.ProcessingSentinel, turn.Response)
	assert.Empty(t, turn.Stored)
	require.Len(t, turn.Deferred, 1)
	assert.Equal(t, api.SenderBot, turn.Deferred[0].Sender)
	assert.Contains(t, turn.Deferred[0].Message, "Photosynthesis")
	assert.Equal(t, time.Second, turn.Deferred[0].Delay)
}

func TestFlowLiveAgent(t *testing.T) {
	flow := Flow{ReplyDelay: time.Second}

	turn, err := flow.Respond(api.StateChatbot, api.ChatRequest{Message: "I want a human please"})
	require.NoError(t, err)
	assert.Equal(t, api.StateLiveAgent, turn.NextState)
	assert.Equal(t, 500*time.Millisecond, turn.StateDelay)
	require.Len(t, turn.Deferred, 1)
	assert.Equal(t, api.SenderAgent, turn.Deferred[0].Sender)

	turn, err = flow.Respond(api.StateLiveAgent, api.ChatRequest{Message: "/quiz"})
	require.NoError(t, err)
	assert.Equal(t, api.ProcessingSentinel, turn.Response)
	require.Len(t, turn.Deferred, 1)
	assert.Contains(t, turn.Deferred[0].Message, "/quiz")

	turn, err = flow.Respond(api.StateLiveAgent, api.ChatRequest{Message: "Bye"})
	require.NoError(t, err)
	assert.Equal(t, api.StateChatbot, turn.NextState)
	assert.Empty(t, turn.Deferred)
}

func TestFlowMediaEcho(t *testing.T) {
	turn, err := Flow{}.Respond(api.StateChatbot, api.ChatRequest{Message: "http://files/a.png", MediaType: ".png"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(turn.Stored, "[{"))
	var stored []api.ReplyEntry
	require.NoError(t, json.Unmarshal([]byte(turn.Stored), &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "http://files/a.png", stored[0].MediaURL)
	assert.Equal(t, ".png", stored[0].MediaType)
}

type fakeTask struct {
	queue   string
	payload []byte

	mu       sync.Mutex
	acked    bool
	nacked   bool
	rejected bool
}

func newFakeTask(t *testing.T, queue string, payload any) *fakeTask {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &fakeTask{queue: queue, payload: data}
}

func (f *fakeTask) Type() string    { return f.queue }
func (f *fakeTask) Payload() []byte { return f.payload }

func (f *fakeTask) Ack() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = true
	return nil
}

func (f *fakeTask) Nack() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = true
	return nil
}

func (f *fakeTask) Reject() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = true
	return nil
}

func (f *fakeTask) state() (acked, nacked, rejected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acked, f.nacked, f.rejected
}

func newTestReplier(t *testing.T) *Replier {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "mockflow.db"))
	require.NoError(t, err)
	queue := messaging.NewInMemoryQueue()
	return NewReplier(db, queue, queue)
}

func TestReplierAppliesReplyImmediately(t *testing.T) {
	rep := newTestReplier(t)
	ctx := context.Background()

	task := newFakeTask(t, messaging.ReplyQueue, messaging.ReplyTaskPayload{
		Account: "tutor-demo", SessionID: "s1", Sender: api.SenderAgent, Message: "hello from the team",
	})
	rep.ProcessTask(task)

	acked, _, _ := task.state()
	assert.True(t, acked)

	history, more, err := database.ListChatHistory(ctx, rep.db, "s1", 10, 0)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, history, 1)
	assert.Equal(t, "hello from the team", history[0].Message)

	session, err := database.GetChatSession(ctx, rep.db, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, session.NotificationCount)
}

func TestReplierDelaysStateChange(t *testing.T) {
	rep := newTestReplier(t)
	ctx := context.Background()

	_, err := database.EnsureChatSession(ctx, rep.db, "s1", "tutor-demo")
	require.NoError(t, err)

	task := newFakeTask(t, messaging.StateQueue, messaging.StateTaskPayload{SessionID: "s1", State: api.StateLiveAgent, Delay: 20 * time.Millisecond})
	rep.ProcessTask(task)

	session, err := database.GetChatSession(ctx, rep.db, "s1")
	require.NoError(t, err)
	assert.Equal(t, api.StateChatbot, session.State)

	assert.Eventually(t, func() bool {
		acked, _, _ := task.state()
		return acked
	}, time.Second, 5*time.Millisecond)

	session, err = database.GetChatSession(ctx, rep.db, "s1")
	require.NoError(t, err)
	assert.Equal(t, api.StateLiveAgent, session.State)
}

func TestReplierStopDropsPendingTasks(t *testing.T) {
	rep := newTestReplier(t)

	task := newFakeTask(t, messaging.ReplyQueue, messaging.ReplyTaskPayload{SessionID: "s1", Sender: api.SenderBot, Message: "late", Delay: time.Hour})
	rep.ProcessTask(task)
	rep.Stop()

	acked, nacked, _ := task.state()
	assert.False(t, acked)
	assert.True(t, nacked)
}

func TestReplierRejectsUnknownTasks(t *testing.T) {
	rep := newTestReplier(t)

	unknown := &fakeTask{queue: "other_queue", payload: []byte(`{}`)}
	rep.ProcessTask(unknown)
	_, _, rejected := unknown.state()
	assert.True(t, rejected)

	malformed := &fakeTask{queue: messaging.ReplyQueue, payload: []byte(`not json`)}
	rep.ProcessTask(malformed)
	_, _, rejected = malformed.state()
	assert.True(t, rejected)
}
