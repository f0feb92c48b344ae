package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendPreservesOrderAndUniqueIDs(t *testing.T) {
	t.Parallel()

	s := New(1, "u1", "")
	for i := 0; i < 50; i++ {
		s.Append(NewTextMessage(SenderUser, fmt.Sprintf("msg %d", i)))
	}

	msgs := s.Messages()
	require.Len(t, msgs, 50)

	seen := make(map[string]bool)
	for i, m := range msgs {
		require.Equal(t, fmt.Sprintf("msg %d", i), m.Content.(TextContent).Text)
		require.False(t, seen[m.ID], "duplicate message id %q", m.ID)
		seen[m.ID] = true
	}
}

func TestResetLeavesWelcomeMessageAndEmptyState(t *testing.T) {
	t.Parallel()

	s := New(1, "u1", "Hi, I'm Minus.")
	s.Append(NewTextMessage(SenderUser, "hello"))
	s.ReplaceState(ConversationState{"last_document_id": "doc-1"})
	s.SetError("boom")

	s.Reset()

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, SenderAssistant, msgs[0].Sender)
	require.Equal(t, "Hi, I'm Minus.", msgs[0].Content.(TextContent).Text)
	require.Empty(t, s.State())
	require.Empty(t, s.LastError())
}

func TestHistoryFlattensToolDrafts(t *testing.T) {
	t.Parallel()

	s := New(1, "u1", "")
	s.Append(NewTextMessage(SenderUser, "tighten the intro"))
	s.Append(NewToolDraftMessage("edit_document", map[string]any{"suggested": "new text"}, "I suggest this edit."))

	h := s.History()
	require.Len(t, h, 2)
	require.Equal(t, HistoryEntry{Role: "user", Content: "tighten the intro"}, h[0])
	require.Equal(t, "assistant", h[1].Role)
	require.Equal(t, "[proposed edit_document] I suggest this edit.", h[1].Content)
}

func TestReplaceStateIsWholesale(t *testing.T) {
	t.Parallel()

	s := New(1, "u1", "")
	s.ReplaceState(ConversationState{"last_email_id": "e1", "last_event_id": "ev1"})
	s.ReplaceState(ConversationState{"last_document_id": "d1"})

	st := s.State()
	require.Equal(t, ConversationState{"last_document_id": "d1"}, st)
	require.NotContains(t, st, "last_email_id")
}

func TestDecideDraftIsOneShot(t *testing.T) {
	t.Parallel()

	s := New(1, "u1", "")
	draft := NewToolDraftMessage("edit_document", map[string]any{"k": "v"}, "change this")
	s.Append(draft)

	got, ok := s.DecideDraft(draft.ID)
	require.True(t, ok)
	require.Equal(t, "edit_document", got.ToolName)

	_, ok = s.DecideDraft(draft.ID)
	require.False(t, ok, "second decision for the same draft must be ignored")
	require.True(t, s.DraftDecided(draft.ID))

	// The draft message itself is untouched by the decision.
	msgs := s.Messages()
	require.Equal(t, "change this", msgs[0].Content.(ToolDraftContent).AssistantMessage)
}

func TestDecideDraftRejectsNonDrafts(t *testing.T) {
	t.Parallel()

	s := New(1, "u1", "")
	text := NewTextMessage(SenderAssistant, "plain reply")
	s.Append(text)

	_, ok := s.DecideDraft(text.ID)
	require.False(t, ok)
	_, ok = s.DecideDraft("missing-id")
	require.False(t, ok)
}

func TestOpenDocumentResetsOnIdentityChange(t *testing.T) {
	t.Parallel()

	s := New(1, "u1", "welcome")
	s.OpenDocument("doc-1", "Q3 Notes")
	s.Append(NewTextMessage(SenderUser, "summarize"))

	// Same document again keeps the transcript.
	s.OpenDocument("doc-1", "Q3 Notes")
	require.Len(t, s.Messages(), 2)

	// A different document starts a fresh conversation.
	s.OpenDocument("doc-2", "Roadmap")
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "welcome", msgs[0].Content.(TextContent).Text)
	require.Equal(t, "doc-2", s.UI().DocumentID)
}

func TestManagerReturnsSameSessionPerChat(t *testing.T) {
	t.Parallel()

	m := NewManager("hi")
	a := m.Get(7, "u1")
	b := m.Get(7, "u1")
	require.Same(t, a, b)

	other := m.Get(8, "u2")
	require.NotSame(t, a, other)

	m.Drop(7)
	require.NotSame(t, a, m.Get(7, "u1"))
}
