package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/schema"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(4, time.Hour)

	id, err := s.Create(ctx)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	history, err := s.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, s.Append(ctx, id,
		schema.Turn{Role: "user", Content: "what is project 225001"},
		schema.Turn{Role: "assistant", Content: "Project 225001 is a house in Karori [1]."},
	))
	history, err = s.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)

	// Returned slices are copies.
	history[0].Content = "changed"
	again, _ := s.History(ctx, id)
	assert.Equal(t, "what is project 225001", again[0].Content)
}

func TestMemoryStoreCapsTurns(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3, time.Hour)
	id, _ := s.Create(ctx)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, id, schema.Turn{Role: "user", Content: fmt.Sprintf("q%d", i)}))
	}
	history, _ := s.History(ctx, id)
	require.Len(t, history, 3)
	assert.Equal(t, "q2", history[0].Content)
	assert.Equal(t, "q4", history[2].Content)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, time.Minute)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	id, _ := s.Create(ctx)
	require.NoError(t, s.Append(ctx, id, schema.Turn{Role: "user", Content: "hello"}))

	now = now.Add(2 * time.Minute)
	history, err := s.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Appending to an expired session starts it afresh.
	require.NoError(t, s.Append(ctx, id, schema.Turn{Role: "user", Content: "again"}))
	history, _ = s.History(ctx, id)
	require.Len(t, history, 1)
	assert.Equal(t, "again", history[0].Content)

	require.NoError(t, s.Delete(ctx, id))
	history, _ = s.History(ctx, id)
	assert.Empty(t, history)
}

func TestNewSelectsStore(t *testing.T) {
	s, err := New(config.SessionConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(config.SessionConfig{Store: "redis"})
	assert.Error(t, err)

	_, err = New(config.SessionConfig{Store: "sqlite"})
	assert.Error(t, err)
}

func TestRedisStoreUnreachable(t *testing.T) {
	s, err := NewRedisStore(config.SessionConfig{Redis: config.RedisConfig{Address: "127.0.0.1:1"}})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = s.Create(ctx)
	assert.Error(t, err)
	assert.Error(t, s.Append(ctx, "x", schema.Turn{Role: "user", Content: "q"}))
}
