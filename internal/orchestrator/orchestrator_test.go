package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minusai/assistant-gateway/internal/assistant"
	"github.com/minusai/assistant-gateway/internal/session"
	"github.com/minusai/assistant-gateway/internal/voice"
)

// eventLog records the externally visible effects of a turn in order.
type eventLog struct {
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

type fakeDispatcher struct {
	log      *eventLog
	requests []assistant.Request
	replies  []*assistant.Reply
	err      error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, r assistant.Request) (*assistant.Reply, error) {
	d.requests = append(d.requests, r)
	d.log.add("dispatch:%s", r.Input)
	if d.err != nil {
		return nil, d.err
	}
	reply := d.replies[0]
	if len(d.replies) > 1 {
		d.replies = d.replies[1:]
	}
	return reply, nil
}

type fakePresenter struct{ log *eventLog }

func (p *fakePresenter) Present(_ int64, msg session.Message) {
	p.log.add("present:%s", msg.Content.Flatten())
}

type fakeNavigator struct{ log *eventLog }

func (n *fakeNavigator) Navigate(_ int64, target string) { n.log.add("nav:%s", target) }

type fakeNotifier struct{ log *eventLog }

func (n *fakeNotifier) Notify(_ int64, text string) { n.log.add("notify:%s", text) }

type fakeSynth struct{ log *eventLog }

func (s *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	s.log.add("synth:%s", text)
	return []byte(text), nil
}

type fakePlayback struct {
	log  *eventLog
	name string
	done chan struct{}
}

func (p *fakePlayback) Done() <-chan struct{} { return p.done }

func (p *fakePlayback) Stop() {
	p.log.add("stop:%s", p.name)
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

type fakePlayer struct {
	log       *eventLog
	playbacks []*fakePlayback
}

func (p *fakePlayer) Play(_ context.Context, _ int64, audio []byte) (Playback, error) {
	name := string(audio)
	p.log.add("play:%s", name)
	pb := &fakePlayback{log: p.log, name: name, done: make(chan struct{})}
	close(pb.done) // finishes immediately; Stop is still observable
	p.playbacks = append(p.playbacks, pb)
	return pb, nil
}

type fakeTranscriber struct {
	log   *eventLog
	text  string
	err   error
	audio []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	f.audio = audio
	f.log.add("transcribe")
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type harness struct {
	orch       *Orchestrator
	sess       *session.Session
	log        *eventLog
	dispatcher *fakeDispatcher
	player     *fakePlayer
	transcribe *fakeTranscriber
}

func newHarness(t *testing.T, replies ...*assistant.Reply) *harness {
	t.Helper()
	log := &eventLog{}
	d := &fakeDispatcher{log: log, replies: replies}
	player := &fakePlayer{log: log}
	tr := &fakeTranscriber{log: log, text: "transcribed text"}

	orch := New(Deps{
		Dispatcher:  d,
		Transcriber: tr,
		Synthesizer: &fakeSynth{log: log},
		Player:      player,
		Navigator:   &fakeNavigator{log: log},
		Notifier:    &fakeNotifier{log: log},
		Presenter:   &fakePresenter{log: log},
		Pause:       func(context.Context) { log.add("pause") },
		Logger:      zap.NewNop(),
	})

	sess := session.New(42, "user-1", "")
	sess.OpenDocument("doc-1", "Notes")
	return &harness{orch: orch, sess: sess, log: log, dispatcher: d, player: player, transcribe: tr}
}

func textReply(text string) *assistant.Reply {
	return &assistant.Reply{Actions: []assistant.Action{assistant.ActionText{Response: text}}}
}

func TestHandleTextWithNoOpenDocument(t *testing.T) {
	t.Parallel()

	h := newHarness(t, textReply("unused"))
	h.sess.CloseDocument()

	err := h.orch.HandleText(context.Background(), h.sess, "Summarize this doc")
	require.ErrorIs(t, err, ErrNoDocument)
	require.Equal(t, "No document is open.", h.sess.LastError())
	require.Empty(t, h.dispatcher.requests, "no network call may happen")
	require.Empty(t, h.sess.Messages(), "no message may be appended")
}

func TestHandleTextAppendsUserAndAssistantMessages(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &assistant.Reply{
		State:   session.ConversationState{"last_document_id": "doc-1"},
		Actions: []assistant.Action{assistant.ActionText{Response: "Here is the summary."}},
	})

	require.NoError(t, h.orch.HandleText(context.Background(), h.sess, "summarize"))

	msgs := h.sess.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, session.SenderUser, msgs[0].Sender)
	require.Equal(t, "summarize", msgs[0].Content.(session.TextContent).Text)
	require.Equal(t, session.SenderAssistant, msgs[1].Sender)
	require.Equal(t, "Here is the summary.", msgs[1].Content.(session.TextContent).Text)

	require.Equal(t, session.ConversationState{"last_document_id": "doc-1"}, h.sess.State())
	require.False(t, h.sess.Loading(), "loading flag must clear after the turn")
	require.Empty(t, h.sess.LastError())
}

func TestHandleTextSendsPriorHistoryOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, textReply("first"), textReply("second"))

	require.NoError(t, h.orch.HandleText(context.Background(), h.sess, "one"))
	require.NoError(t, h.orch.HandleText(context.Background(), h.sess, "two"))

	require.Len(t, h.dispatcher.requests, 2)
	require.Empty(t, h.dispatcher.requests[0].History)

	second := h.dispatcher.requests[1].History
	require.Len(t, second, 2, "history holds the turns before the new utterance")
	require.Equal(t, "one", second[0].Content)
	require.Equal(t, "first", second[1].Content)
	require.Equal(t, "user-1", h.dispatcher.requests[1].UserID)
	require.Equal(t, "doc-1", h.dispatcher.requests[1].UI.DocumentID)
}

func TestMultiActionRunsSequentially(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &assistant.Reply{Actions: []assistant.Action{
		assistant.ActionText{Response: "First."},
		assistant.ActionNavigation{TargetURL: "/calendar", Response: "Opening your calendar."},
		assistant.ActionText{Response: "Done."},
	}})

	require.NoError(t, h.orch.HandleText(context.Background(), h.sess, "plan my day"))

	// One message per sub-action, in server order, plus the user turn.
	msgs := h.sess.Messages()
	require.Len(t, msgs, 4)
	require.Equal(t, "First.", msgs[1].Content.(session.TextContent).Text)
	require.Equal(t, "Opening your calendar.", msgs[2].Content.(session.TextContent).Text)
	require.Equal(t, "Done.", msgs[3].Content.(session.TextContent).Text)

	require.Equal(t, []string{
		"dispatch:plan my day",
		"present:First.",
		"synth:First.",
		"play:First.",
		"pause",
		"present:Opening your calendar.",
		"nav:/calendar",
		"synth:Opening your calendar.",
		"stop:First.",
		"play:Opening your calendar.",
		"pause",
		"present:Done.",
		"synth:Done.",
		"stop:Opening your calendar.",
		"play:Done.",
	}, h.log.events)
}

func TestNavigationFiresExactlyOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &assistant.Reply{Actions: []assistant.Action{
		assistant.ActionNavigation{TargetURL: "/docs", Response: "Taking you back."},
	}})

	require.NoError(t, h.orch.HandleText(context.Background(), h.sess, "go back"))

	var navs []string
	for _, e := range h.log.events {
		if e == "nav:/docs" {
			navs = append(navs, e)
		}
	}
	require.Len(t, navs, 1)

	msgs := h.sess.Messages()
	require.Equal(t, "Taking you back.", msgs[len(msgs)-1].Content.(session.TextContent).Text)
}

func TestDocumentClosedNavigatesToDocumentList(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &assistant.Reply{Actions: []assistant.Action{
		assistant.ActionDocumentClosed{Response: "That document was deleted."},
	}})

	require.NoError(t, h.orch.HandleText(context.Background(), h.sess, "edit it"))

	require.Contains(t, h.log.events, "nav:/docs")
	require.Contains(t, h.log.events, "notify:The document was closed.")
	require.Empty(t, h.sess.UI().DocumentID, "the document anchor must clear")
}

func TestToolDraftApproveAppendsTwoMessages(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		&assistant.Reply{Actions: []assistant.Action{assistant.ActionToolDraft{
			ToolName:         "edit_document",
			ToolInput:        map[string]any{"suggested": "tighter intro"},
			AssistantMessage: "I'd tighten the intro.",
		}}},
		textReply("Applied the edit."),
	)

	require.NoError(t, h.orch.HandleText(context.Background(), h.sess, "improve the intro"))

	msgs := h.sess.Messages()
	require.Len(t, msgs, 2)
	draftID := msgs[1].ID
	before := len(msgs)

	require.NoError(t, h.orch.Approve(context.Background(), h.sess, draftID))

	msgs = h.sess.Messages()
	require.Len(t, msgs, before+2, "approval appends the synthetic user turn and the confirmation")
	require.Equal(t, session.SenderUser, msgs[before].Sender)
	require.Equal(t, ApproveToken, msgs[before].Content.(session.TextContent).Text)
	require.Equal(t, "Applied the edit.", msgs[before+1].Content.(session.TextContent).Text)

	// The draft message itself is untouched.
	draft := msgs[1].Content.(session.ToolDraftContent)
	require.Equal(t, "I'd tighten the intro.", draft.AssistantMessage)

	require.Equal(t, ApproveToken, h.dispatcher.requests[1].Input)
	require.Contains(t, h.log.events, "notify:Change applied.")
}

func TestToolDraftSecondDecisionIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		&assistant.Reply{Actions: []assistant.Action{assistant.ActionToolDraft{
			ToolName:         "edit_document",
			AssistantMessage: "edit?",
		}}},
		textReply("ok"),
	)

	require.NoError(t, h.orch.HandleText(context.Background(), h.sess, "edit"))
	draftID := h.sess.Messages()[1].ID

	require.NoError(t, h.orch.Approve(context.Background(), h.sess, draftID))
	dispatches := len(h.dispatcher.requests)
	count := len(h.sess.Messages())

	require.NoError(t, h.orch.Reject(context.Background(), h.sess, draftID))
	require.NoError(t, h.orch.Approve(context.Background(), h.sess, draftID))

	require.Len(t, h.dispatcher.requests, dispatches, "a decided draft must not dispatch again")
	require.Len(t, h.sess.Messages(), count)
}

func TestToolDraftRejectFallsBackToDefaultReply(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		&assistant.Reply{Actions: []assistant.Action{assistant.ActionToolDraft{
			ToolName:         "edit_document",
			AssistantMessage: "edit?",
		}}},
		&assistant.Reply{Actions: []assistant.Action{assistant.ActionText{Response: ""}}},
	)

	require.NoError(t, h.orch.HandleText(context.Background(), h.sess, "edit"))
	draftID := h.sess.Messages()[1].ID

	require.NoError(t, h.orch.Reject(context.Background(), h.sess, draftID))

	msgs := h.sess.Messages()
	require.Equal(t, rejectDefaultReply, msgs[len(msgs)-1].Content.(session.TextContent).Text)
	require.Equal(t, RejectToken, h.dispatcher.requests[1].Input)
	require.Contains(t, h.log.events, "notify:Change dismissed.")
}

func TestDispatchErrorSurfacesInlineAndAsNotification(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.dispatcher.err = &assistant.APIError{StatusCode: 422, Detail: "body → input: required"}

	err := h.orch.HandleText(context.Background(), h.sess, "hello")
	require.Error(t, err)
	require.Equal(t, "body → input: required", h.sess.LastError())
	require.Contains(t, h.log.events, "notify:body → input: required")
	require.False(t, h.sess.Loading(), "loading flag must clear on failure too")

	// The user message stays; no assistant message was appended.
	msgs := h.sess.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, session.SenderUser, msgs[0].Sender)
}

func TestPlaybackPreemptsPreviousAudio(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		&assistant.Reply{Actions: []assistant.Action{assistant.ActionText{Response: "first", Verbal: "speak one"}}},
		&assistant.Reply{Actions: []assistant.Action{assistant.ActionText{Response: "second", Verbal: "speak two"}}},
	)

	require.NoError(t, h.orch.HandleText(context.Background(), h.sess, "one"))
	require.NoError(t, h.orch.HandleText(context.Background(), h.sess, "two"))

	idxStop := indexOf(h.log.events, "stop:speak one")
	idxPlay := indexOf(h.log.events, "play:speak two")
	require.GreaterOrEqual(t, idxStop, 0, "previous playback must be stopped")
	require.GreaterOrEqual(t, idxPlay, 0)
	require.Less(t, idxStop, idxPlay, "the previous audio stops before the new one starts")
}

func TestHandleVoiceRunsFullPipeline(t *testing.T) {
	t.Parallel()

	h := newHarness(t, textReply("heard you"))

	payload := []byte("opus bytes")
	require.NoError(t, h.orch.HandleVoice(context.Background(), h.sess, voice.BufferDevice(payload)))

	require.Equal(t, payload, h.transcribe.audio)
	require.Len(t, h.dispatcher.requests, 1)
	require.Equal(t, "transcribed text", h.dispatcher.requests[0].Input)
}

func TestHandleVoiceSkipsDispatchOnEmptyCapture(t *testing.T) {
	t.Parallel()

	h := newHarness(t, textReply("unused"))

	require.NoError(t, h.orch.HandleVoice(context.Background(), h.sess, voice.BufferDevice(nil)))

	require.NotContains(t, h.log.events, "transcribe")
	require.Empty(t, h.dispatcher.requests, "an empty capture must not reach the dispatcher")
}

func TestHandleVoiceSurfacesMediaErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, textReply("unused"))
	dev := voice.DeviceFunc(func(context.Context) (voice.Stream, error) {
		return nil, voice.ErrPermissionDenied
	})

	err := h.orch.HandleVoice(context.Background(), h.sess, dev)
	require.ErrorIs(t, err, voice.ErrPermissionDenied)
	require.Equal(t, "Microphone access was denied.", h.sess.LastError())
	require.Contains(t, h.log.events, "notify:Microphone access was denied.")
	require.Empty(t, h.dispatcher.requests)
}

func TestHandleVoiceTranscriptionFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, textReply("unused"))
	h.transcribe.err = errors.New("speech service unreachable")

	err := h.orch.HandleVoice(context.Background(), h.sess, voice.BufferDevice([]byte("audio")))
	require.Error(t, err)
	require.Equal(t, "speech service unreachable", h.sess.LastError())
	require.Empty(t, h.dispatcher.requests)
}

func indexOf(events []string, want string) int {
	for i, e := range events {
		if e == want {
			return i
		}
	}
	return -1
}
