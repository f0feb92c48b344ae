package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx backend response with its detail text extracted.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistant backend returned %d: %s", e.StatusCode, e.Detail)
}

type validationItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// newAPIError pulls a human-readable detail out of an error body. The
// backend sends either {"detail": "..."} or a validation list
// {"detail": [{"loc": ["body","input"], "msg": "required"}]}; the list
// form renders as "body → input: required".
func newAPIError(status int, body []byte) *APIError {
	detail := extractDetail(body)
	if detail == "" {
		detail = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Detail: detail}
}

func extractDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(envelope.Detail, &asString); err == nil {
		return asString
	}

	var items []validationItem
	if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
		parts := make([]string, 0, len(items))
		for _, it := range items {
			parts = append(parts, formatValidationItem(it))
		}
		return strings.Join(parts, "; ")
	}

	return ""
}

func formatValidationItem(it validationItem) string {
	segs := make([]string, 0, len(it.Loc))
	for _, l := range it.Loc {
		segs = append(segs, fmt.Sprint(l))
	}
	if len(segs) == 0 {
		return it.Msg
	}
	return fmt.Sprintf("%s: %s", strings.Join(segs, " → "), it.Msg)
}

// UserMessage converts any dispatch error into the string shown inline
// and in the transient notification.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return err.Error()
}
