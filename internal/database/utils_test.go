package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "test.db"))
	require.NoError(t, err)
	return db
}

func TestKeyValues(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, ok, err := GetValue(ctx, db, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, PutValues(ctx, db, map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, PutValues(ctx, db, map[string]string{"a": "3"}))

	v, ok, err := GetValue(ctx, db, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	v, _, err = GetValue(ctx, db, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestChatSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	session, err := EnsureChatSession(ctx, db, "s1", "tutor-demo")
	require.NoError(t, err)
	assert.Equal(t, StateChatbot, session.State)

	require.NoError(t, AddNotifications(ctx, db, "s1", 2))
	require.NoError(t, UpdateChatState(ctx, db, "s1", StateLiveAgent))

	// A second ensure returns the stored row unchanged.
	session, err = EnsureChatSession(ctx, db, "s1", "other")
	require.NoError(t, err)
	assert.Equal(t, "tutor-demo", session.Account)
	assert.Equal(t, StateLiveAgent, session.State)
	assert.Equal(t, 2, session.NotificationCount)

	require.NoError(t, ClearNotifications(ctx, db, "s1"))
	session, err = GetChatSession(ctx, db, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, session.NotificationCount)
}

func TestListChatHistoryPages(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, SaveChatMessage(ctx, db, &ChatHistory{SessionID: "s1", Sender: "human", Message: text}))
	}
	require.NoError(t, SaveChatMessage(ctx, db, &ChatHistory{SessionID: "s2", Sender: "human", Message: "elsewhere"}))

	page, more, err := ListChatHistory(ctx, db, "s1", 2, 0)
	require.NoError(t, err)
	assert.True(t, more)
	require.Len(t, page, 2)
	assert.Equal(t, "one", page[0].Message)
	assert.Equal(t, "two", page[1].Message)
	assert.False(t, page[0].MessageAt.IsZero())

	page, more, err = ListChatHistory(ctx, db, "s1", 2, 2)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, page, 1)
	assert.Equal(t, "three", page[0].Message)
}
