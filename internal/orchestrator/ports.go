package orchestrator

import (
	"context"

	"github.com/minusai/assistant-gateway/internal/assistant"
	"github.com/minusai/assistant-gateway/internal/session"
)

// Dispatcher sends one utterance to the assistant backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, r assistant.Request) (*assistant.Reply, error)
}

// Transcriber converts captured audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Synthesizer converts assistant text to spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player starts playback of synthesized audio for a chat. A Playback's
// Done channel closes when playback finishes or is stopped; Stop must be
// safe to call after completion.
type Player interface {
	Play(ctx context.Context, chatID int64, audio []byte) (Playback, error)
}

type Playback interface {
	Done() <-chan struct{}
	Stop()
}

// Navigator moves the user's view to a target (e.g. "/docs").
type Navigator interface {
	Navigate(chatID int64, target string)
}

// Notifier shows a transient notification.
type Notifier interface {
	Notify(chatID int64, text string)
}

// Presenter renders a newly appended transcript message to the user.
type Presenter interface {
	Present(chatID int64, msg session.Message)
}
