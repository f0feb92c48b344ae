// Package bot is the Telegram surface of the gateway: it feeds typed and
// voice utterances into the orchestrator and renders the session
// transcript back into the chat.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/minusai/assistant-gateway/internal/orchestrator"
	"github.com/minusai/assistant-gateway/internal/session"
	"github.com/minusai/assistant-gateway/internal/storage"
	"github.com/minusai/assistant-gateway/internal/voice"
)

const historyLimit = 10

type Bot struct {
	api      *tgbotapi.BotAPI
	sessions *session.Manager
	archive  storage.Archive
	logger   *zap.Logger
	files    *http.Client

	// orch is set after construction: the orchestrator needs the bot as
	// its presenter/notifier/navigator/player, and the bot needs the
	// orchestrator to handle utterances.
	orch *orchestrator.Orchestrator
}

func New(token string, sessions *session.Manager, archive storage.Archive, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:      api,
		sessions: sessions,
		archive:  archive,
		logger:   logger,
		files:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Bind attaches the orchestrator once both sides exist.
func (b *Bot) Bind(orch *orchestrator.Orchestrator) {
	b.orch = orch
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			go b.handleCallback(update.CallbackQuery)
		case update.Message != nil:
			go b.handleMessage(update.Message)
		}
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()
	sess := b.sessions.Get(message.Chat.ID, fmt.Sprintf("%d", message.From.ID))

	if message.IsCommand() {
		b.handleCommand(ctx, sess, message)
		return
	}

	if message.Voice != nil {
		b.handleVoice(ctx, sess, message)
		return
	}

	text := message.Text
	if text == "" {
		return
	}

	b.archiveTurn(ctx, sess.ChatID, "user", text)
	if err := b.orch.HandleText(ctx, sess, text); err != nil {
		b.logger.Warn("text turn failed",
			zap.Error(err),
			zap.Int64("chat_id", sess.ChatID))
		// Remote failures were already surfaced through Notify; local
		// input errors have no other way into the chat.
		if errors.Is(err, orchestrator.ErrNoDocument) {
			b.sendError(sess.ChatID, sess.LastError())
		}
	}
}

func (b *Bot) handleVoice(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	audio, err := b.downloadVoice(ctx, message.Voice.FileID)
	if err != nil {
		b.logger.Error("failed to download voice note",
			zap.Error(err),
			zap.Int64("chat_id", sess.ChatID))
		b.sendError(sess.ChatID, "Sorry, I couldn't fetch that voice note.")
		return
	}

	if err := b.orch.HandleVoice(ctx, sess, voice.BufferDevice(audio)); err != nil {
		b.logger.Warn("voice turn failed",
			zap.Error(err),
			zap.Int64("chat_id", sess.ChatID))
		if errors.Is(err, orchestrator.ErrNoDocument) {
			b.sendError(sess.ChatID, sess.LastError())
		}
	}
}

func (b *Bot) downloadVoice(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := b.files.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download voice file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download voice file: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (b *Bot) handleCommand(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "open":
		b.handleOpen(sess, message)
	case "close":
		b.handleClose(sess, message)
	case "clear":
		b.handleClear(sess)
	case "history":
		b.handleHistory(ctx, sess, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to Minus! ✨
I'm your productivity assistant for documents, calendar, and email.

Open a document with /open <document-id> [title], then just talk to me —
typed or as a voice note — and I'll relay it to your assistant.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/open <id> [title] - Open a document to chat about
/close - Close the current document
/clear - Reset the conversation
/history - Show your recent turns

You can send:
- Text messages
- Voice notes (I'll transcribe them)

When I propose a change, you'll get Approve/Reject buttons before anything runs.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleOpen(sess *session.Session, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		b.sendMessage(message.Chat.ID, "Usage: /open <document-id> [title]")
		return
	}

	id := args[0]
	title := strings.Join(args[1:], " ")
	if title == "" {
		title = id
	}

	sess.OpenDocument(id, title)
	b.sendMessage(message.Chat.ID, fmt.Sprintf("📄 Now chatting about %q. Ask me anything.", title))
}

func (b *Bot) handleClose(sess *session.Session, message *tgbotapi.Message) {
	sess.CloseDocument()
	b.sendMessage(message.Chat.ID, "Document closed. Use /open to pick another one.")
}

func (b *Bot) handleClear(sess *session.Session) {
	sess.Reset()
	for _, msg := range sess.Messages() {
		b.Present(sess.ChatID, msg)
	}
}

func (b *Bot) handleHistory(ctx context.Context, sess *session.Session, message *tgbotapi.Message) {
	turns, err := b.archive.RecentTurns(ctx, sess.ChatID, historyLimit)
	if err != nil {
		b.logger.Error("failed to get recent turns",
			zap.Error(err),
			zap.Int64("chat_id", sess.ChatID))
		b.sendError(message.Chat.ID, "Sorry, I couldn't retrieve your history.")
		return
	}

	if len(turns) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any turns yet.")
		return
	}

	response := "*Your recent turns:*\n\n"
	for _, turn := range turns {
		response += fmt.Sprintf("*%s*\n", escapeMarkdown(turn.Role))
		response += fmt.Sprintf("_%s_\n\n", escapeMarkdown(turn.Content))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, response)
	msg.ParseMode = "MarkdownV2"
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send history message",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	ctx := context.Background()

	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			b.logger.Warn("failed to answer callback", zap.Error(err))
		}
	}()

	if query.Message == nil {
		return
	}
	sess := b.sessions.Get(query.Message.Chat.ID, fmt.Sprintf("%d", query.From.ID))

	decision, draftID, ok := strings.Cut(query.Data, ":")
	if !ok {
		return
	}

	var err error
	switch decision {
	case orchestrator.ApproveToken:
		err = b.orch.Approve(ctx, sess, draftID)
	case orchestrator.RejectToken:
		err = b.orch.Reject(ctx, sess, draftID)
	default:
		return
	}

	if err != nil {
		b.logger.Warn("draft decision failed",
			zap.Error(err),
			zap.String("decision", decision),
			zap.Int64("chat_id", sess.ChatID))
	}
}

func (b *Bot) archiveTurn(ctx context.Context, chatID int64, role, content string) {
	if b.archive == nil {
		return
	}
	err := b.archive.SaveTurn(ctx, &storage.Turn{
		ChatID:  chatID,
		Role:    role,
		Content: content,
	})
	if err != nil {
		b.logger.Warn("failed to archive turn",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
