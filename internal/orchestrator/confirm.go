package orchestrator

import (
	"context"

	"github.com/minusai/assistant-gateway/internal/assistant"
	"github.com/minusai/assistant-gateway/internal/session"
)

// The literal tokens the backend expects as the follow-up utterance for a
// tool-draft decision.
const (
	ApproveToken = "approve"
	RejectToken  = "reject"
)

const (
	approveDefaultReply = "Done. The change has been applied."
	rejectDefaultReply  = "Okay, I won't make that change."
	approveNotice       = "Change applied."
	rejectNotice        = "Change dismissed."
)

// Approve records the user's approval of a tool draft and dispatches the
// follow-up request that executes it. A draft that was already decided
// (or an unknown id) is silently ignored.
func (o *Orchestrator) Approve(ctx context.Context, s *session.Session, draftMessageID string) error {
	return o.decide(ctx, s, draftMessageID, ApproveToken, approveDefaultReply, approveNotice)
}

// Reject records the user's rejection of a tool draft.
func (o *Orchestrator) Reject(ctx context.Context, s *session.Session, draftMessageID string) error {
	return o.decide(ctx, s, draftMessageID, RejectToken, rejectDefaultReply, rejectNotice)
}

func (o *Orchestrator) decide(ctx context.Context, s *session.Session, draftMessageID, token, defaultReply, notice string) error {
	if _, ok := s.DecideDraft(draftMessageID); !ok {
		return nil
	}

	// The synthetic user message stays appended even if the follow-up
	// dispatch fails; there is no rollback.
	history := s.History()
	userMsg := session.NewTextMessage(session.SenderUser, token)
	s.Append(userMsg)
	o.presenter.Present(s.ChatID, userMsg)

	s.SetLoading(true)
	defer s.SetLoading(false)

	reply, err := o.dispatcher.Dispatch(ctx, assistant.Request{
		Input:   token,
		History: history,
		UserID:  s.UserID,
		State:   s.State(),
		UI:      s.UI(),
	})
	if err != nil {
		return o.failTurn(s, err)
	}

	if reply.State != nil {
		s.ReplaceState(reply.State)
	}

	text := firstResponseText(reply)
	if text == "" {
		text = defaultReply
	}
	o.appendText(s, text)
	o.notifier.Notify(s.ChatID, notice)
	return nil
}

func firstResponseText(reply *assistant.Reply) string {
	for _, act := range reply.Actions {
		if t, ok := act.(assistant.ActionText); ok && t.Response != "" {
			return t.Response
		}
	}
	return ""
}
