package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	in := map[string]string{"user-1": "channel-1", "user-2": "channel-1"}
	require.NoError(t, s.Save(DocChannels, in))

	out := make(map[string]string)
	require.NoError(t, s.Load(DocChannels, &out))
	assert.Equal(t, in, out)
}

func TestStore_LoadMissingDocumentLeavesDefault(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	out := map[string]string{"seed": "value"}
	require.NoError(t, s.Load(DocMessages, &out))
	assert.Equal(t, map[string]string{"seed": "value"}, out)
}

func TestStore_SaveOverwrites(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(DocMessages, map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, s.Save(DocMessages, map[string]string{"a": "3"}))

	out := make(map[string]string)
	require.NoError(t, s.Load(DocMessages, &out))
	assert.Equal(t, map[string]string{"a": "3"}, out)
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
