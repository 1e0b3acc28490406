package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agenda.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConversationOwnership(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	conv, err := s.CreateConversation(ctx, "alice", "")
	require.NoError(t, err)
	_, err = uuid.Parse(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, conv.Title)

	got, err := s.GetConversation(ctx, "alice", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = s.GetConversation(ctx, "bob", conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetConversation(ctx, "alice", uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	first, err := s.CreateConversation(ctx, "alice", "first")
	require.NoError(t, err)
	second, err := s.CreateConversation(ctx, "alice", "second")
	require.NoError(t, err)
	_, err = s.CreateConversation(ctx, "bob", "other")
	require.NoError(t, err)

	convs, err := s.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, second.ID, convs[0].ID)
	assert.Equal(t, first.ID, convs[1].ID)
}

func TestHistoryIsChronological(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	conv, err := s.CreateConversation(ctx, "alice", "")
	require.NoError(t, err)

	contents := []string{"hello", "hi there", "what's today?", "nothing planned"}
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		require.NoError(t, s.AddMessage(ctx, &Message{ConversationID: conv.ID, Role: role, Content: c}))
	}

	history, err := s.History(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, len(contents))
	for i, m := range history {
		assert.Equal(t, contents[i], m.Content)
	}
	assert.Equal(t, RoleAssistant, history[1].Role)
}

func TestDeleteConversationCascades(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	conv, err := s.CreateConversation(ctx, "alice", "")
	require.NoError(t, err)
	require.NoError(t, s.AddMessage(ctx, &Message{ConversationID: conv.ID, Role: RoleUser, Content: "x"}))

	assert.ErrorIs(t, s.DeleteConversation(ctx, "bob", conv.ID), ErrNotFound)
	require.NoError(t, s.DeleteConversation(ctx, "alice", conv.ID))
	assert.ErrorIs(t, s.DeleteConversation(ctx, "alice", conv.ID), ErrNotFound)

	history, err := s.History(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestConnectionUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	_, err := s.GetConnection(ctx, "alice", "google")
	assert.ErrorIs(t, err, ErrNotFound)

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, s.SaveConnection(ctx, &OAuthConnection{
		UserID: "alice", Provider: "google", AccessToken: "a1", RefreshToken: "r1", TokenExpiresAt: &expiry,
	}))
	require.NoError(t, s.SaveConnection(ctx, &OAuthConnection{
		UserID: "alice", Provider: "google", AccessToken: "a2", RefreshToken: "r2", TokenExpiresAt: &expiry,
	}))

	conn, err := s.GetConnection(ctx, "alice", "google")
	require.NoError(t, err)
	assert.Equal(t, "a2", conn.AccessToken)
	assert.Equal(t, "r2", conn.RefreshToken)

	later := expiry.Add(time.Hour)
	require.NoError(t, s.UpdateAccessToken(ctx, "alice", "google", "a3", later))
	conn, err = s.GetConnection(ctx, "alice", "google")
	require.NoError(t, err)
	assert.Equal(t, "a3", conn.AccessToken)
	assert.Equal(t, "r2", conn.RefreshToken)
	require.NotNil(t, conn.TokenExpiresAt)
	assert.True(t, later.Equal(*conn.TokenExpiresAt))

	require.NoError(t, s.DeleteConnection(ctx, "alice", "google"))
	require.NoError(t, s.DeleteConnection(ctx, "alice", "google"))
	_, err = s.GetConnection(ctx, "alice", "google")
	assert.ErrorIs(t, err, ErrNotFound)
}
