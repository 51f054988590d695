package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	"github.com/Altav1sta/stocks-checker/internal/service/cache"
)

func TestChatRegistryRoundTrip(t *testing.T) {
	r := NewCachedChatRegistry(cache.NewTTLCache())
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, models.Chat{ID: 42, Username: "alice", CreatedAt: time.Now()}))
	require.NoError(t, r.Add(ctx, models.Chat{ID: 7, Username: "bob", CreatedAt: time.Now()}))

	chats, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, int64(7), chats[0].ID)
	assert.Equal(t, int64(42), chats[1].ID)
}

func TestChatRegistryAddOverwrites(t *testing.T) {
	r := NewCachedChatRegistry(cache.NewTTLCache())
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, models.Chat{ID: 42, Username: "alice"}))
	require.NoError(t, r.Add(ctx, models.Chat{ID: 42, Username: "renamed"}))

	chats, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "renamed", chats[0].Username)
}

func TestChatRegistryRemove(t *testing.T) {
	r := NewCachedChatRegistry(cache.NewTTLCache())
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, models.Chat{ID: 42}))
	require.NoError(t, r.Remove(ctx, 42))

	chats, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)

	// removing an unknown chat is a no-op
	assert.NoError(t, r.Remove(ctx, 99))
}

func TestChatRegistryEmptyList(t *testing.T) {
	r := NewCachedChatRegistry(cache.NewTTLCache())
	chats, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, chats)
}
