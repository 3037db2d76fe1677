package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjsstech/changi-dr-agent/pkg/adapters/memory"
	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

func TestLoadOrStartInitializesSession(t *testing.T) {
	m := NewManager(memory.NewSessionStore())
	ctx := context.Background()

	sc, err := m.LoadOrStart(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, sc.History)

	// Now persisted: a plain Load succeeds.
	sc, err = m.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, sc)
}

func TestLoadUnknownSession(t *testing.T) {
	m := NewManager(memory.NewSessionStore())
	_, err := m.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRecordTurnAppendsExchange(t *testing.T) {
	m := NewManager(memory.NewSessionStore())
	ctx := context.Background()

	_, err := m.LoadOrStart(ctx, "s1")
	require.NoError(t, err)

	res := &domain.ExecutionResult{
		Response: "hello!",
		Success:  true,
		Messages: []domain.Message{domain.AssistantMessage("greeter", "hello!")},
		Metadata: map[string]any{"destination": "Bali"},
	}
	require.NoError(t, m.RecordTurn(ctx, "s1", "hi", res))

	sc, err := m.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, sc.History, 2)
	assert.Equal(t, domain.RoleUser, sc.History[0].Role)
	assert.Equal(t, "hi", sc.History[0].Content)
	assert.Equal(t, "hello!", sc.History[1].Content)
	assert.Equal(t, "Bali", sc.Metadata["destination"])
}

func TestRecordTurnCreatesSessionOnFirstTurn(t *testing.T) {
	m := NewManager(memory.NewSessionStore())
	ctx := context.Background()

	res := &domain.ExecutionResult{
		Messages: []domain.Message{domain.AssistantMessage("a", "answer")},
	}
	require.NoError(t, m.RecordTurn(ctx, "fresh", "question", res))

	sc, err := m.Load(ctx, "fresh")
	require.NoError(t, err)
	require.Len(t, sc.History, 2)
}

func TestRecordTurnSkipsRepeatedHistory(t *testing.T) {
	m := NewManager(memory.NewSessionStore())
	ctx := context.Background()

	first := &domain.ExecutionResult{
		Messages: []domain.Message{domain.AssistantMessage("a", "first answer")},
	}
	require.NoError(t, m.RecordTurn(ctx, "s", "first question", first))

	// The second run's messages carry the prior history plus one new turn.
	prior, err := m.Load(ctx, "s")
	require.NoError(t, err)
	second := &domain.ExecutionResult{
		Messages: append(append([]domain.Message(nil), prior.History...),
			domain.AssistantMessage("a", "second answer")),
	}
	require.NoError(t, m.RecordTurn(ctx, "s", "second question", second))

	sc, err := m.Load(ctx, "s")
	require.NoError(t, err)
	require.Len(t, sc.History, 4)
	assert.Equal(t, "second answer", sc.History[3].Content)
}

func TestWithLockSerializesSameSession(t *testing.T) {
	m := NewManager(memory.NewSessionStore())
	ctx := context.Background()

	const workers = 16
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithLock(ctx, "same", func(context.Context) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)

	// All lock entries were reference-counted away.
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks)
}

func TestDeleteRemovesSession(t *testing.T) {
	m := NewManager(memory.NewSessionStore())
	ctx := context.Background()

	_, err := m.LoadOrStart(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "s1"))

	_, err = m.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
