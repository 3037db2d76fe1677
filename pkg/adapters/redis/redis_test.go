package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

func testClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSessionStoreRoundTrip(t *testing.T) {
	_, client := testClient(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	sc := &domain.ConversationContext{
		History:  []domain.Message{domain.UserMessage("hi"), domain.AssistantMessage("greeter", "hello")},
		Metadata: map[string]any{"destination": "Tokyo"},
	}
	require.NoError(t, store.Save(ctx, "s1", sc))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded.History, 2)
	assert.Equal(t, "hello", loaded.History[1].Content)
	assert.Equal(t, "Tokyo", loaded.Metadata["destination"])

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionStoreMissingSession(t *testing.T) {
	_, client := testClient(t)
	store := NewSessionStore(client)

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(context.Background(), "nope"), domain.ErrSessionNotFound)
}

func TestSessionStoreTTLExpiry(t *testing.T) {
	mr, client := testClient(t)
	store := NewSessionStore(client, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", domain.NewConversationContext()))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// The index prunes lazily on List.
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWorkflowStoreRoundTrip(t *testing.T) {
	_, client := testClient(t)
	store := NewWorkflowStore(client)
	ctx := context.Background()

	def := &domain.WorkflowDefinition{
		ID:    "wf",
		Name:  "itinerary",
		Nodes: []domain.Node{{ID: "bot", Type: domain.NodeAgent, AgentID: "concierge"}},
	}
	require.NoError(t, store.Save(ctx, def))

	loaded, err := store.Get(ctx, "wf")
	require.NoError(t, err)
	assert.Equal(t, "itinerary", loaded.Name)
	require.Len(t, loaded.Nodes, 1)
	assert.False(t, loaded.UpdatedAt.IsZero())

	defs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	require.NoError(t, store.Delete(ctx, "wf"))
	_, err = store.Get(ctx, "wf")
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "wf"), domain.ErrWorkflowNotFound)
}

func TestAgentStoreRoundTrip(t *testing.T) {
	_, client := testClient(t)
	store := NewAgentStore(client)
	ctx := context.Background()

	cfg := &domain.AgentConfig{ID: "concierge", Name: "Concierge", Provider: "openai", Model: "gpt-4o"}
	require.NoError(t, store.Save(ctx, cfg))

	loaded, err := store.Get(ctx, "concierge")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", loaded.Model)

	_, err = store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}

func TestLockerMutualExclusion(t *testing.T) {
	_, client := testClient(t)
	locker := NewLocker(client, "")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "session-1", time.Minute)
	require.NoError(t, err)

	// A second acquisition must not succeed while the first is held.
	blockedCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(blockedCtx, "session-1", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	// Released: acquiring again succeeds promptly.
	unlock2, err := locker.Lock(ctx, "session-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLockerDistinctKeysDoNotBlock(t *testing.T) {
	_, client := testClient(t)
	locker := NewLocker(client, "")
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "a", time.Minute)
	require.NoError(t, err)
	unlockB, err := locker.Lock(ctx, "b", time.Minute)
	require.NoError(t, err)

	require.NoError(t, unlockA(ctx))
	require.NoError(t, unlockB(ctx))
}
