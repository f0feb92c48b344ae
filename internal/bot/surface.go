package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/minusai/assistant-gateway/internal/orchestrator"
	"github.com/minusai/assistant-gateway/internal/session"
)

// The bot is the orchestrator's output surface: transcript messages,
// notifications, navigation hints, and spoken replies all land in the chat.

// Present renders one appended transcript message.
func (b *Bot) Present(chatID int64, msg session.Message) {
	switch content := msg.Content.(type) {
	case session.TextContent:
		text := content.Text
		if msg.Sender == session.SenderUser {
			// Synthetic user turns (draft decisions) echo back prefixed.
			text = "🗣 " + text
		}
		b.sendMessage(chatID, text)
		b.archiveTurn(context.Background(), chatID, string(msg.Sender), content.Text)

	case session.ToolDraftContent:
		b.presentToolDraft(chatID, msg.ID, content)

	case session.DraftReviewContent:
		text := fmt.Sprintf("✉️ Draft to %s\nSubject: %s\n\n%s", content.To, content.Subject, content.Body)
		b.sendMessage(chatID, text)

	default:
		b.logger.Warn("unknown message content",
			zap.Int64("chat_id", chatID),
			zap.String("message_id", msg.ID))
	}
}

func (b *Bot) presentToolDraft(chatID int64, messageID string, draft session.ToolDraftContent) {
	text := fmt.Sprintf("🛠 %s\n\n%s", draft.AssistantMessage, formatToolInput(draft))

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", orchestrator.ApproveToken+":"+messageID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", orchestrator.RejectToken+":"+messageID),
		),
	)

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send tool draft",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

// formatToolInput renders the draft payload. An original/suggested pair is
// shown as a diff; anything else as key-value lines.
func formatToolInput(draft session.ToolDraftContent) string {
	original, hasOriginal := draft.ToolInput["original"].(string)
	suggested, hasSuggested := draft.ToolInput["suggested"].(string)
	if hasOriginal && hasSuggested {
		return fmt.Sprintf("Current:\n%s\n\nSuggested:\n%s", original, suggested)
	}

	var sb strings.Builder
	for k, v := range draft.ToolInput {
		fmt.Fprintf(&sb, "%s: %v\n", k, v)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Notify shows a transient notification.
func (b *Bot) Notify(chatID int64, text string) {
	b.sendMessage(chatID, "🔔 "+text)
}

// Navigate renders a navigation target as a chat hint.
func (b *Bot) Navigate(chatID int64, target string) {
	b.sendMessage(chatID, "➡️ "+target)
}

// sentPlayback is the handle for a voice note that was already delivered.
// Telegram gives no control over playback on the user's device, so Done
// closes at send time and Stop is a no-op.
type sentPlayback struct {
	done chan struct{}
}

func (p *sentPlayback) Done() <-chan struct{} { return p.done }
func (p *sentPlayback) Stop()                 {}

// Play delivers synthesized speech as a voice note.
func (b *Bot) Play(_ context.Context, chatID int64, audio []byte) (orchestrator.Playback, error) {
	voiceMsg := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{
		Name:  "reply.ogg",
		Bytes: audio,
	})
	if _, err := b.api.Send(voiceMsg); err != nil {
		return nil, fmt.Errorf("send voice reply: %w", err)
	}

	done := make(chan struct{})
	close(done)
	return &sentPlayback{done: done}, nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendError(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

// escapeMarkdown escapes special characters for MarkdownV2.
func escapeMarkdown(text string) string {
	specialChars := []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}
