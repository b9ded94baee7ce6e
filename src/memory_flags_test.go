package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/drivectl/src/params"
)

func TestRetainedFlags_RemoveClearsRetained(t *testing.T) {
	ctx := context.Background()
	out := make(chan MQTTMessage, 1)
	memory := params.NewMemoryStore()
	flags := newRetainedFlags(memory, NewMQTTSender(out))

	require.NoError(t, flags.PutBool(ctx, "UpdateTheme", true))
	assert.Empty(t, out, "writes stay local")

	require.NoError(t, flags.Remove(ctx, "UpdateTheme"))
	_, ok, _ := memory.Get(ctx, "UpdateTheme")
	assert.False(t, ok)

	require.Len(t, out, 1)
	m := <-out
	assert.Equal(t, TopicMemoryPrefix+"UpdateTheme", m.Topic)
	assert.Empty(t, m.Payload)
	assert.True(t, m.Retain)
	assert.Equal(t, byte(1), m.QoS)
}

func TestRetainedFlags_FullQueueStillRemovesLocally(t *testing.T) {
	ctx := context.Background()
	out := make(chan MQTTMessage)
	memory := params.NewMemoryStore()
	flags := newRetainedFlags(memory, NewMQTTSender(out))
	require.NoError(t, memory.PutBool(ctx, "DownloadAllModels", true))

	err := flags.Remove(ctx, "DownloadAllModels")
	assert.ErrorIs(t, err, ErrSenderFull)

	set, _ := memory.GetBool(ctx, "DownloadAllModels")
	assert.False(t, set)
}
