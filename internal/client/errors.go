package client

import (
	"errors"
	"fmt"
	"strings"

	"workflowhr/internal/fieldschema"
)

var (
	ErrSessionExpired     = errors.New("session expired")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrNotFound           = errors.New("not found")
	ErrNetwork            = errors.New("network error")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// APIError 其他非 2xx 响应。
type APIError struct {
	Status     int
	Message    string
	Violations []fieldschema.Violation
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// UserMessage 把错误转换为可直接展示给用户的提示。
func UserMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionExpired):
		return "Your session has expired. Please log in again."
	case errors.Is(err, ErrPermissionDenied):
		return "You do not have permission to perform this action."
	case errors.Is(err, ErrNotFound):
		return "The requested item was not found."
	case errors.Is(err, ErrNetwork):
		return "Could not reach the server. Check your connection and try again."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.As(err, &apiErr):
		if len(apiErr.Violations) > 0 {
			msgs := make([]string, 0, len(apiErr.Violations))
			for _, v := range apiErr.Violations {
				msgs = append(msgs, v.Message)
			}
			return strings.Join(msgs, "\n")
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return "Something went wrong. Please try again."
}
