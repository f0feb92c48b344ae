package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryArchive struct {
	mu    sync.RWMutex
	turns map[int64][]*Turn
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		turns: make(map[int64][]*Turn),
	}
}

func (m *MemoryArchive) SaveTurn(_ context.Context, turn *Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	m.turns[turn.ChatID] = append(m.turns[turn.ChatID], turn)
	return nil
}

// RecentTurns returns up to limit turns for a chat, newest first.
func (m *MemoryArchive) RecentTurns(_ context.Context, chatID int64, limit int) ([]*Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.turns[chatID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}

	out := make([]*Turn, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *MemoryArchive) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
