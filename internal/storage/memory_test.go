package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryArchiveRecentTurnsNewestFirst(t *testing.T) {
	t.Parallel()

	arch := NewMemoryArchive()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, arch.SaveTurn(ctx, &Turn{
			ChatID:    7,
			Role:      "user",
			Content:   fmt.Sprintf("turn %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	turns, err := arch.RecentTurns(ctx, 7, 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, "turn 4", turns[0].Content)
	require.Equal(t, "turn 2", turns[2].Content)
}

func TestMemoryArchiveAssignsIDs(t *testing.T) {
	t.Parallel()

	arch := NewMemoryArchive()
	turn := &Turn{ChatID: 1, Role: "assistant", Content: "hi"}
	require.NoError(t, arch.SaveTurn(context.Background(), turn))
	require.NotEmpty(t, turn.ID)
	require.False(t, turn.CreatedAt.IsZero())
}

func TestMemoryArchiveIsolatesChats(t *testing.T) {
	t.Parallel()

	arch := NewMemoryArchive()
	ctx := context.Background()
	require.NoError(t, arch.SaveTurn(ctx, &Turn{ChatID: 1, Role: "user", Content: "a"}))
	require.NoError(t, arch.SaveTurn(ctx, &Turn{ChatID: 2, Role: "user", Content: "b"}))

	turns, err := arch.RecentTurns(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, "a", turns[0].Content)
}
