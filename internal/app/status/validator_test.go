package status

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStartup_PrunesDeadChannel(t *testing.T) {
	f := newFixture(t, "user-1")
	require.NoError(t, f.reg.SetUserChannel("user-1", "chan-dead"))
	require.NoError(t, f.reg.SetUserMessage("user-1", "msg-1"))
	f.msgr.deadChannels["chan-dead"] = true

	require.NoError(t, f.engine.ValidateStartup(context.Background()))

	_, ok := f.reg.UserChannel("user-1")
	assert.False(t, ok)
	_, ok = f.reg.UserMessage("user-1")
	assert.False(t, ok, "message ref cascades with the channel config")
}

func TestValidateStartup_ClearsDeadMessageKeepsChannel(t *testing.T) {
	f := newFixture(t, "user-1")
	require.NoError(t, f.reg.SetUserChannel("user-1", "chan-1"))
	require.NoError(t, f.reg.SetUserMessage("user-1", "msg-dead"))
	f.msgr.deadMessages["msg-dead"] = true

	require.NoError(t, f.engine.ValidateStartup(context.Background()))

	channel, ok := f.reg.UserChannel("user-1")
	require.True(t, ok)
	assert.Equal(t, "chan-1", channel)
	_, ok = f.reg.UserMessage("user-1")
	assert.False(t, ok)
}

func TestValidateStartup_SweepsOrphanMessageRefs(t *testing.T) {
	f := newFixture(t, "user-1")
	require.NoError(t, f.reg.SetUserMessage("user-1", "msg-1"))

	require.NoError(t, f.engine.ValidateStartup(context.Background()))

	_, ok := f.reg.UserMessage("user-1")
	assert.False(t, ok)
}

func TestValidateStartup_KeepsHealthyState(t *testing.T) {
	f := newFixture(t, "user-1")
	require.NoError(t, f.reg.SetUserChannel("user-1", "chan-1"))
	require.NoError(t, f.reg.SetUserMessage("user-1", "msg-1"))

	require.NoError(t, f.engine.ValidateStartup(context.Background()))

	channel, ok := f.reg.UserChannel("user-1")
	require.True(t, ok)
	assert.Equal(t, "chan-1", channel)
	ref, ok := f.reg.UserMessage("user-1")
	require.True(t, ok)
	assert.Equal(t, "msg-1", ref)
}
