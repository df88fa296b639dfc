package chat

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestOutbox(t *testing.T) {
	_, ok := OutboxFrom(context.Background())
	assert.False(t, ok)

	box := &Outbox{}
	ctx := WithOutbox(context.Background(), box)
	got, ok := OutboxFrom(ctx)
	require.True(t, ok)
	got.Add(Reply{ChatID: "a"})
	got.Add(Reply{ChatID: "b"})

	replies := box.Replies()
	require.Len(t, replies, 2)
	assert.Equal(t, "a", replies[0].ChatID)
	replies[0].ChatID = "x"
	assert.Equal(t, "a", box.Replies()[0].ChatID)
}
