// Package orchestrator drives one conversational session: it turns typed
// or spoken utterances into backend dispatches, interprets the structured
// reply, sequences speech playback, and runs the tool-draft confirmation
// flow. Every failure degrades to an inline session error plus a transient
// notification; nothing here is fatal.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/minusai/assistant-gateway/internal/assistant"
	"github.com/minusai/assistant-gateway/internal/session"
	"github.com/minusai/assistant-gateway/internal/voice"
)

const (
	noDocumentMsg      = "No document is open."
	documentListTarget = "/docs"
	defaultActionPause = 600 * time.Millisecond
	voiceFilename      = "voice.ogg"
)

// ErrNoDocument is returned when an utterance arrives with no document
// anchored to the session. No network call is made.
var ErrNoDocument = errors.New("no document is open")

type Deps struct {
	Dispatcher  Dispatcher
	Transcriber Transcriber
	Synthesizer Synthesizer
	Player      Player
	Navigator   Navigator
	Notifier    Notifier
	Presenter   Presenter
	Recorder    *voice.Controller

	// Pause runs between multi-action entries. Defaults to a fixed short
	// sleep; tests inject a no-op.
	Pause func(ctx context.Context)

	Logger *zap.Logger
}

type Orchestrator struct {
	dispatcher  Dispatcher
	transcriber Transcriber
	synth       Synthesizer
	player      Player
	nav         Navigator
	notifier    Notifier
	presenter   Presenter
	recorder    *voice.Controller
	pause       func(ctx context.Context)
	logger      *zap.Logger

	slot playbackSlot
}

func New(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pause := d.Pause
	if pause == nil {
		pause = func(ctx context.Context) {
			select {
			case <-time.After(defaultActionPause):
			case <-ctx.Done():
			}
		}
	}
	recorder := d.Recorder
	if recorder == nil {
		recorder = voice.NewController(logger)
	}
	return &Orchestrator{
		dispatcher:  d.Dispatcher,
		transcriber: d.Transcriber,
		synth:       d.Synthesizer,
		player:      d.Player,
		nav:         d.Navigator,
		notifier:    d.Notifier,
		presenter:   d.Presenter,
		recorder:    recorder,
		pause:       pause,
		logger:      logger,
	}
}

// HandleText runs one typed (or already transcribed) utterance through
// the dispatch pipeline.
func (o *Orchestrator) HandleText(ctx context.Context, s *session.Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if s.UI().DocumentID == "" {
		s.SetError(noDocumentMsg)
		return ErrNoDocument
	}

	// History is the transcript prior to this utterance.
	history := s.History()
	s.Append(session.NewTextMessage(session.SenderUser, text))
	s.SetError("")
	s.SetLoading(true)
	defer s.SetLoading(false)

	reply, err := o.dispatcher.Dispatch(ctx, assistant.Request{
		Input:   text,
		History: history,
		UserID:  s.UserID,
		State:   s.State(),
		UI:      s.UI(),
	})
	if err != nil {
		return o.failTurn(s, err)
	}

	o.applyReply(ctx, s, reply)
	return nil
}

// HandleVoice captures audio from the device, transcribes it, and feeds
// the text through HandleText. An empty capture skips dispatch entirely.
func (o *Orchestrator) HandleVoice(ctx context.Context, s *session.Session, dev voice.Device) error {
	if o.transcriber == nil {
		msg := "Voice input is not enabled."
		s.SetError(msg)
		o.notifier.Notify(s.ChatID, msg)
		return errors.New("no transcriber configured")
	}

	_, err := o.recorder.Start(ctx, dev)
	if err != nil {
		msg := mediaErrorMessage(err)
		s.SetError(msg)
		o.notifier.Notify(s.ChatID, msg)
		o.logger.Warn("voice capture failed", zap.Int64("chat_id", s.ChatID), zap.Error(err))
		return err
	}

	audio := o.recorder.Stop(ctx)
	if audio == nil {
		o.logger.Debug("empty capture, skipping transcription", zap.Int64("chat_id", s.ChatID))
		return nil
	}

	text, err := o.transcriber.Transcribe(ctx, audio, voiceFilename)
	if err != nil {
		return o.failTurn(s, err)
	}
	return o.HandleText(ctx, s, text)
}

// CancelVoice discards any in-progress capture. In-flight transcriptions
// or dispatches from earlier captures are unaffected.
func (o *Orchestrator) CancelVoice() {
	o.recorder.Cancel()
}

func (o *Orchestrator) applyReply(ctx context.Context, s *session.Session, reply *assistant.Reply) {
	if reply.State != nil {
		s.ReplaceState(reply.State)
	}
	for i, act := range reply.Actions {
		o.runAction(ctx, s, act)
		if i < len(reply.Actions)-1 {
			o.pause(ctx)
		}
	}
}

// runAction processes one action to completion, speech playback included,
// before the caller moves to the next one.
func (o *Orchestrator) runAction(ctx context.Context, s *session.Session, act assistant.Action) {
	switch a := act.(type) {
	case assistant.ActionText:
		o.sayText(ctx, s, a.Response, assistant.SpokenText(a))

	case assistant.ActionToolDraft:
		msg := session.NewToolDraftMessage(a.ToolName, a.ToolInput, a.AssistantMessage)
		s.Append(msg)
		o.presenter.Present(s.ChatID, msg)
		o.speak(ctx, s.ChatID, a.Verbal)

	case assistant.ActionDocumentClosed:
		o.appendText(s, a.Response)
		s.CloseDocument()
		o.nav.Navigate(s.ChatID, documentListTarget)
		o.notifier.Notify(s.ChatID, "The document was closed.")
		o.speak(ctx, s.ChatID, assistant.SpokenText(a))

	case assistant.ActionNavigation:
		o.appendText(s, a.Response)
		o.nav.Navigate(s.ChatID, a.TargetURL)
		o.speak(ctx, s.ChatID, assistant.SpokenText(a))

	default:
		o.logger.Error("unhandled action variant", zap.Any("action", a))
	}
}

func (o *Orchestrator) sayText(ctx context.Context, s *session.Session, text, spoken string) {
	o.appendText(s, text)
	o.speak(ctx, s.ChatID, spoken)
}

func (o *Orchestrator) appendText(s *session.Session, text string) {
	if text == "" {
		return
	}
	msg := session.NewTextMessage(session.SenderAssistant, text)
	s.Append(msg)
	o.presenter.Present(s.ChatID, msg)
}

// speak synthesizes and plays one utterance, halting any playback still
// running from a previous one. Playback problems are logged and dropped;
// the conversation continues.
func (o *Orchestrator) speak(ctx context.Context, chatID int64, text string) {
	if text == "" || o.synth == nil || o.player == nil {
		return
	}

	audio, err := o.synth.Synthesize(ctx, text)
	if err != nil {
		o.logger.Warn("synthesis failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}

	o.slot.replace(nil)
	pb, err := o.player.Play(ctx, chatID, audio)
	if err != nil {
		o.logger.Warn("playback failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	o.slot.replace(pb)

	select {
	case <-pb.Done():
	case <-ctx.Done():
	}
}

// failTurn converts a dispatch failure into the inline error plus the
// transient notification, clears nothing else, and hands the error back.
func (o *Orchestrator) failTurn(s *session.Session, err error) error {
	msg := assistant.UserMessage(err)
	s.SetError(msg)
	o.notifier.Notify(s.ChatID, msg)
	o.logger.Error("assistant turn failed", zap.Int64("chat_id", s.ChatID), zap.Error(err))
	return err
}

func mediaErrorMessage(err error) string {
	switch {
	case errors.Is(err, voice.ErrPermissionDenied):
		return "Microphone access was denied."
	case errors.Is(err, voice.ErrDeviceUnavailable):
		return "No microphone is available."
	case errors.Is(err, voice.ErrAlreadyRecording):
		return "Still working on the previous recording."
	default:
		return "Could not start recording."
	}
}
