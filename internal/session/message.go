package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// Content is the payload of a transcript message. Exactly one concrete
// type is used per message; rendering code switches on the concrete type.
type Content interface {
	// Flatten returns the plain-text form used when the message is sent
	// back to the assistant as chat history.
	Flatten() string
}

type TextContent struct {
	Text string
}

func (c TextContent) Flatten() string { return c.Text }

// ToolDraftContent is a proposed side-effecting operation awaiting an
// explicit approve/reject decision from the user.
type ToolDraftContent struct {
	ToolName         string
	ToolInput        map[string]any
	AssistantMessage string
}

func (c ToolDraftContent) Flatten() string {
	return fmt.Sprintf("[proposed %s] %s", c.ToolName, c.AssistantMessage)
}

// DraftReviewContent is an email draft surfaced for review before sending.
type DraftReviewContent struct {
	DraftID string
	To      string
	Subject string
	Body    string
}

func (c DraftReviewContent) Flatten() string {
	return fmt.Sprintf("[email draft to %s] %s: %s", c.To, c.Subject, c.Body)
}

// Message is one turn in the visible transcript. ID and Sender never
// change after creation; messages are only removed in bulk on Reset.
type Message struct {
	ID        string
	Sender    Sender
	Timestamp time.Time
	Content   Content
}

// NewMessageID combines a timestamp with a random suffix so that ids stay
// unique even for messages created within the same instant.
func NewMessageID() string {
	suffix := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), suffix)
}

func NewTextMessage(sender Sender, text string) Message {
	return Message{
		ID:        NewMessageID(),
		Sender:    sender,
		Timestamp: time.Now(),
		Content:   TextContent{Text: text},
	}
}

func NewToolDraftMessage(toolName string, toolInput map[string]any, assistantMessage string) Message {
	return Message{
		ID:        NewMessageID(),
		Sender:    SenderAssistant,
		Timestamp: time.Now(),
		Content: ToolDraftContent{
			ToolName:         toolName,
			ToolInput:        toolInput,
			AssistantMessage: assistantMessage,
		},
	}
}

// HistoryEntry is the flattened {role, content} pair sent to the backend.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
