package core

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable identifier carried by agent_error events.
type ErrorCode string

const (
	ErrorCodeModelDoesNotSupportMultiActions ErrorCode = "model_does_not_support_multi_actions"
	ErrorCodeConversationRender              ErrorCode = "conversation_render_error"
	ErrorCodeBuildSpec                       ErrorCode = "build_spec_error"
	ErrorCodeBuildLegacySpec                 ErrorCode = "build_legacy_spec_error"
	ErrorCodeMissingName                     ErrorCode = "missing_name"
	ErrorCodeActionNotFound                  ErrorCode = "action_not_found"
	ErrorCodeNoActionOrGenerationFound       ErrorCode = "no_action_or_generation_found"
	ErrorCodeMultiActions                    ErrorCode = "multi_actions_error"
	ErrorCodeParametersGeneration            ErrorCode = "parameters_generation_error"
	ErrorCodeUnknownActionKind               ErrorCode = "unknown_action_kind"
)

// AgentError is a terminal failure of a turn. Runner specific codes are
// carried verbatim in Code.
type AgentError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// NewAgentError creates an AgentError with a formatted message.
func NewAgentError(code ErrorCode, format string, args ...any) *AgentError {
	return &AgentError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error [%s]: %s", e.Code, e.Message)
}

// AsAgentError unwraps err into an AgentError. Errors that are not
// AgentErrors are reported under fallback.
func AsAgentError(err error, fallback ErrorCode) *AgentError {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae
	}
	return &AgentError{Code: fallback, Message: err.Error()}
}
