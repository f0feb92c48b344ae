package assistant

import (
	"encoding/json"
	"fmt"

	"github.com/minusai/assistant-gateway/internal/session"
)

// Action is the tagged union of things a reply can ask the client to do.
// Adding a reply type means adding a variant here and handling it in every
// switch; the decoder rejects types it does not know.
type Action interface {
	actionType() string
}

// ActionText is a plain assistant reply. Verbal, when set, is the text to
// speak instead of the shown text.
type ActionText struct {
	Response string
	Verbal   string
}

func (ActionText) actionType() string { return "text" }

// ActionToolDraft proposes a side-effecting operation that must be
// approved or rejected by the user before it runs.
type ActionToolDraft struct {
	ToolName         string
	ToolInput        map[string]any
	AssistantMessage string
	Verbal           string
}

func (ActionToolDraft) actionType() string { return "tool_draft" }

// ActionDocumentClosed reports that the open document no longer exists;
// the client navigates back to the document list.
type ActionDocumentClosed struct {
	Response string
	Verbal   string
}

func (ActionDocumentClosed) actionType() string { return "document_closed" }

// ActionNavigation asks the client to move to a server-specified target.
type ActionNavigation struct {
	TargetURL string
	Response  string
	Verbal    string
}

func (ActionNavigation) actionType() string { return "navigation" }

// SpokenText returns the text to synthesize for an action: the explicit
// verbal form when present, the shown text otherwise.
func SpokenText(a Action) string {
	switch act := a.(type) {
	case ActionText:
		if act.Verbal != "" {
			return act.Verbal
		}
		return act.Response
	case ActionToolDraft:
		return act.Verbal
	case ActionDocumentClosed:
		if act.Verbal != "" {
			return act.Verbal
		}
		return act.Response
	case ActionNavigation:
		if act.Verbal != "" {
			return act.Verbal
		}
		return act.Response
	default:
		return ""
	}
}

type wireAction struct {
	Type             string         `json:"type"`
	Response         string         `json:"response"`
	VerbalResponse   string         `json:"verbal_response"`
	AssistantMessage string         `json:"assistant_message"`
	ToolName         string         `json:"tool_name"`
	ToolInput        map[string]any `json:"tool_input"`
	TargetURL        string         `json:"target_url"`
}

type wireReply struct {
	wireAction
	State   session.ConversationState `json:"state"`
	Actions []wireAction              `json:"actions"`
}

func decodeReply(body []byte) (*Reply, error) {
	var wire wireReply
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	reply := &Reply{State: wire.State}

	if wire.Type == "multi_action" {
		for i, wa := range wire.Actions {
			act, err := decodeAction(wa)
			if err != nil {
				return nil, fmt.Errorf("multi_action entry %d: %w", i, err)
			}
			reply.Actions = append(reply.Actions, act)
		}
		return reply, nil
	}

	act, err := decodeAction(wire.wireAction)
	if err != nil {
		return nil, err
	}
	reply.Actions = []Action{act}
	return reply, nil
}

func decodeAction(wa wireAction) (Action, error) {
	switch wa.Type {
	case "", "text":
		return ActionText{Response: wa.Response, Verbal: wa.VerbalResponse}, nil
	case "tool_draft":
		return ActionToolDraft{
			ToolName:         wa.ToolName,
			ToolInput:        wa.ToolInput,
			AssistantMessage: wa.AssistantMessage,
			Verbal:           wa.VerbalResponse,
		}, nil
	case "document_closed":
		return ActionDocumentClosed{Response: wa.Response, Verbal: wa.VerbalResponse}, nil
	case "navigation":
		return ActionNavigation{
			TargetURL: wa.TargetURL,
			Response:  wa.Response,
			Verbal:    wa.VerbalResponse,
		}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", wa.Type)
	}
}
