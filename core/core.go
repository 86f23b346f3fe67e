package core

import "github.com/hupe1980/agentloop/logging"

// Logger returns the logger of the turn (never nil).
func (tc *TurnContext) Logger() logging.Logger {
	if tc.logger == nil {
		return logging.NoOpLogger{}
	}
	return tc.logger
}

// LogDebug logs a debug message annotated with the turn identifiers.
func (tc *TurnContext) LogDebug(msg string, args ...any) {
	tc.Logger().Debug(msg, tc.annotate(args)...)
}

// LogInfo logs an info message annotated with the turn identifiers.
func (tc *TurnContext) LogInfo(msg string, args ...any) {
	tc.Logger().Info(msg, tc.annotate(args)...)
}

// LogWarn logs a warning annotated with the turn identifiers.
func (tc *TurnContext) LogWarn(msg string, args ...any) {
	tc.Logger().Warn(msg, tc.annotate(args)...)
}

// LogError logs an error annotated with the turn identifiers.
func (tc *TurnContext) LogError(msg string, args ...any) {
	tc.Logger().Error(msg, tc.annotate(args)...)
}

func (tc *TurnContext) annotate(args []any) []any {
	out := make([]any, 0, len(args)+4)
	out = append(out, "configuration_id", tc.ConfigurationID(), "message_id", tc.MessageID())
	return append(out, args...)
}
