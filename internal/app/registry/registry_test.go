package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeafDevs/qbot/internal/infra/store"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	r, err := New(st)
	require.NoError(t, err)
	return r
}

func TestChannelRoundTrip(t *testing.T) {
	r := newRegistry(t)

	require.NoError(t, r.SetUserChannel("user-1", "chan-1"))
	got, ok := r.UserChannel("user-1")
	require.True(t, ok)
	assert.Equal(t, "chan-1", got)

	require.NoError(t, r.RemoveUserChannel("user-1"))
	_, ok = r.UserChannel("user-1")
	assert.False(t, ok)
}

func TestSetUserChannel_OverwritesKeepingPosition(t *testing.T) {
	r := newRegistry(t)

	require.NoError(t, r.SetUserChannel("user-1", "chan-1"))
	require.NoError(t, r.SetUserChannel("user-2", "chan-1"))
	require.NoError(t, r.SetUserChannel("user-1", "chan-2"))

	entries := r.AllChannels()
	require.Len(t, entries, 2)
	assert.Equal(t, ChannelEntry{UserID: "user-1", ChannelID: "chan-2"}, entries[0])

	shared, ok := r.SharedChannelID()
	require.True(t, ok)
	assert.Equal(t, "chan-2", shared)
}

func TestRemoveUserChannel_ClearsMessageRef(t *testing.T) {
	r := newRegistry(t)

	require.NoError(t, r.SetUserChannel("user-1", "chan-1"))
	require.NoError(t, r.SetUserMessage("user-1", "msg-1"))

	require.NoError(t, r.RemoveUserChannel("user-1"))
	_, ok := r.UserMessage("user-1")
	assert.False(t, ok)
}

func TestRemoveUser_PreservesSharedChannel(t *testing.T) {
	r := newRegistry(t)

	require.NoError(t, r.SetUserChannel("user-a", "chan-1"))
	require.NoError(t, r.SetUserChannel("user-b", "chan-1"))
	require.NoError(t, r.SetUserMessage("user-a", "msg-a"))

	require.NoError(t, r.RemoveUser("user-a"))

	entries := r.AllChannels()
	require.Len(t, entries, 1)
	assert.Equal(t, "user-b", entries[0].UserID)

	shared, ok := r.SharedChannelID()
	require.True(t, ok)
	assert.Equal(t, "chan-1", shared)

	_, ok = r.UserMessage("user-a")
	assert.False(t, ok)
}

func TestSharedChannelID_OldestEntryWins(t *testing.T) {
	r := newRegistry(t)

	_, ok := r.SharedChannelID()
	assert.False(t, ok)

	require.NoError(t, r.SetUserChannel("user-1", "chan-1"))
	require.NoError(t, r.SetUserChannel("user-2", "chan-2"))

	shared, ok := r.SharedChannelID()
	require.True(t, ok)
	assert.Equal(t, "chan-1", shared)

	// Removing the oldest entry promotes the next one.
	require.NoError(t, r.RemoveUser("user-1"))
	shared, ok = r.SharedChannelID()
	require.True(t, ok)
	assert.Equal(t, "chan-2", shared)
}

func TestMessageRoundTrip(t *testing.T) {
	r := newRegistry(t)

	require.NoError(t, r.SetUserMessage("user-1", "msg-1"))
	got, ok := r.UserMessage("user-1")
	require.True(t, ok)
	assert.Equal(t, "msg-1", got)

	require.NoError(t, r.ClearUserMessage("user-1"))
	_, ok = r.UserMessage("user-1")
	assert.False(t, ok)

	// Clearing an absent ref is a no-op.
	require.NoError(t, r.ClearUserMessage("user-1"))
}

func TestPersistenceAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)

	first, err := New(st)
	require.NoError(t, err)
	require.NoError(t, first.SetUserChannel("user-1", "chan-1"))
	require.NoError(t, first.SetUserChannel("user-2", "chan-1"))
	require.NoError(t, first.SetUserMessage("user-1", "msg-1"))

	second, err := New(st)
	require.NoError(t, err)

	entries := second.AllChannels()
	require.Len(t, entries, 2)
	assert.Equal(t, "user-1", entries[0].UserID)

	msg, ok := second.UserMessage("user-1")
	require.True(t, ok)
	assert.Equal(t, "msg-1", msg)
}
