package session

import "sync"

// ConversationState is the opaque cross-turn context bag returned by the
// backend (last referenced event/email/document ids and the like). It is
// replaced wholesale after each dispatch, never merged field by field, and
// lives only for the in-memory lifetime of the session.
type ConversationState map[string]any

// UIContext describes which screen the conversation is anchored to.
type UIContext struct {
	Page          string `json:"page"`
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
}

// Session is the single source of truth for one chat: the ordered message
// transcript, the conversation state, and the transient loading/error flags.
type Session struct {
	ChatID int64
	UserID string

	mu       sync.Mutex
	messages []Message
	state    ConversationState
	ui       UIContext
	loading  bool
	lastErr  string
	decided  map[string]bool
	welcome  string
}

func New(chatID int64, userID, welcomeText string) *Session {
	s := &Session{
		ChatID:  chatID,
		UserID:  userID,
		welcome: welcomeText,
	}
	s.Reset()
	return s
}

// Append inserts msg at the end of the transcript. No reordering and no
// de-duplication; duplicate content is permitted.
func (s *Session) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Messages returns a copy of the transcript in append order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// History flattens the transcript to {role, content} pairs for the backend.
// Tool drafts and draft reviews are serialized to their string form so the
// assistant keeps them as context.
func (s *Session) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, HistoryEntry{
			Role:    string(m.Sender),
			Content: m.Content.Flatten(),
		})
	}
	return out
}

// ReplaceState swaps the conversation state wholesale.
func (s *Session) ReplaceState(next ConversationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
}

func (s *Session) State() ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset replaces the transcript with a single welcome message and clears
// the conversation state and any pending draft decisions.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.messages = nil
	if s.welcome != "" {
		s.messages = []Message{NewTextMessage(SenderAssistant, s.welcome)}
	}
	s.state = ConversationState{}
	s.decided = make(map[string]bool)
	s.loading = false
	s.lastErr = ""
}

// OpenDocument anchors the session to a document. Changing the document
// identity resets the conversation, matching a fresh chat per document.
func (s *Session) OpenDocument(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.ui.DocumentID != id
	if changed {
		s.resetLocked()
	}
	s.ui = UIContext{Page: "docs", DocumentID: id, DocumentTitle: title}
}

// CloseDocument clears the document anchor without resetting the transcript.
func (s *Session) CloseDocument() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ui.DocumentID = ""
	s.ui.DocumentTitle = ""
}

func (s *Session) UI() UIContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ui
}

func (s *Session) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
}

func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// DecideDraft records the terminal decision for a tool draft. It returns
// the draft content and true on the first decision; any later decision for
// the same draft (or an unknown/non-draft id) returns false and is ignored.
// The draft message itself is never mutated.
func (s *Session) DecideDraft(messageID string) (ToolDraftContent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decided[messageID] {
		return ToolDraftContent{}, false
	}
	for _, m := range s.messages {
		if m.ID != messageID {
			continue
		}
		draft, ok := m.Content.(ToolDraftContent)
		if !ok {
			return ToolDraftContent{}, false
		}
		s.decided[messageID] = true
		return draft, true
	}
	return ToolDraftContent{}, false
}

// DraftDecided reports whether a draft already has a recorded decision.
func (s *Session) DraftDecided(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decided[messageID]
}
