// Package storage archives committed conversation turns for the /history
// command. The live session (messages, conversation state) is memory-only
// and never goes through here.
package storage

import (
	"context"
	"time"
)

// Turn is one archived transcript entry.
type Turn struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Archive interface {
	SaveTurn(ctx context.Context, turn *Turn) error
	RecentTurns(ctx context.Context, chatID int64, limit int) ([]*Turn, error)
	Close() error
}
