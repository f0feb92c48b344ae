// Package assistant is the client for the Minus assistant backend. It
// sends one utterance plus conversation context per request and decodes
// the structured reply into an explicit action union.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minusai/assistant-gateway/internal/session"
)

const chatPath = "/api/v1/assistant/chat"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Request is one dispatch to the backend: the utterance, the prior
// transcript, and the ambient context the reply should be grounded in.
type Request struct {
	Input   string
	History []session.HistoryEntry
	UserID  string
	State   session.ConversationState
	UI      session.UIContext
}

type wireRequest struct {
	Input             string                    `json:"input"`
	ChatHistory       []session.HistoryEntry    `json:"chat_history"`
	UserContext       wireUserContext           `json:"user_context"`
	ConversationState session.ConversationState `json:"conversation_state"`
	UIContext         session.UIContext         `json:"ui_context"`
}

type wireUserContext struct {
	UserID string `json:"user_id"`
}

// Reply is the decoded backend response: the replacement conversation
// state (nil when the backend sent none) and one or more actions. A
// multi_action reply flattens into the Actions slice in server order.
type Reply struct {
	State   session.ConversationState
	Actions []Action
}

// Dispatch posts the utterance and returns the decoded reply. Non-2xx
// statuses come back as *APIError carrying the extracted detail text.
func (c *Client) Dispatch(ctx context.Context, r Request) (*Reply, error) {
	history := r.History
	if history == nil {
		history = []session.HistoryEntry{}
	}
	state := r.State
	if state == nil {
		state = session.ConversationState{}
	}

	payload, err := json.Marshal(wireRequest{
		Input:             r.Input,
		ChatHistory:       history,
		UserContext:       wireUserContext{UserID: r.UserID},
		ConversationState: state,
		UIContext:         r.UI,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, body)
	}

	return decodeReply(body)
}
