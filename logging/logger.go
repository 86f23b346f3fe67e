package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case insensitive level name. Unknown names map to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface.
// Args are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// ZapAdapter wraps a zap SugaredLogger to implement the Logger interface.
type ZapAdapter struct {
	sugar *zap.SugaredLogger
}

// NewZapAdapter creates a Logger from *zap.Logger.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{sugar: logger.Sugar()}
}

// Debug logs a debug message.
func (z *ZapAdapter) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }

// Info logs an informational message.
func (z *ZapAdapter) Info(msg string, args ...any) { z.sugar.Infow(msg, args...) }

// Warn logs a warning message.
func (z *ZapAdapter) Warn(msg string, args ...any) { z.sugar.Warnw(msg, args...) }

// Error logs an error message.
func (z *ZapAdapter) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

// Sync flushes buffered entries.
func (z *ZapAdapter) Sync() error { return z.sugar.Sync() }

// Config configures New.
type Config struct {
	Level     string    // debug, info, warn, error
	Format    string    // json or text (slog backend)
	Backend   string    // slog (default) or zap
	AddSource bool      // slog only
	Output    io.Writer // slog only, defaults to os.Stderr
}

// New builds a Logger from cfg.
func New(cfg Config) (Logger, error) {
	level := ParseLevel(cfg.Level)
	switch strings.ToLower(cfg.Backend) {
	case "", "slog":
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		opts := &slog.HandlerOptions{Level: slogLevel(level), AddSource: cfg.AddSource}
		var handler slog.Handler
		if cfg.Format == "text" {
			handler = slog.NewTextHandler(out, opts)
		} else {
			handler = slog.NewJSONHandler(out, opts)
		}
		return NewSlogAdapter(slog.New(handler)), nil
	case "zap":
		zc := zap.NewProductionConfig()
		if cfg.Format == "text" {
			zc = zap.NewDevelopmentConfig()
		}
		zc.Level = zap.NewAtomicLevelAt(zapLevel(level))
		zl, err := zc.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize zap logger: %w", err)
		}
		return NewZapAdapter(zl), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zapLevel(l LogLevel) zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// TurnLogger decorates a Logger with turn correlation attributes and domain
// helpers for rounds, model calls and actions. With* methods return copies.
type TurnLogger struct {
	base            Logger
	component       string
	configurationID string
	messageID       string
	attrs           []any
}

// NewTurnLogger wraps base. A nil base discards everything.
func NewTurnLogger(base Logger) *TurnLogger {
	if base == nil {
		base = NoOpLogger{}
	}
	return &TurnLogger{base: base}
}

func (l *TurnLogger) clone() *TurnLogger {
	nl := *l
	nl.attrs = append([]any{}, l.attrs...)
	return &nl
}

// WithComponent sets the logical component (agent, flow, engine, etc.).
func (l *TurnLogger) WithComponent(c string) *TurnLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithTurn attaches configuration and message identifiers.
func (l *TurnLogger) WithTurn(configurationID, messageID string) *TurnLogger {
	nl := l.clone()
	nl.configurationID = configurationID
	nl.messageID = messageID
	return nl
}

// WithContext adds a key/value attribute attached to every entry.
func (l *TurnLogger) WithContext(key string, value any) *TurnLogger {
	nl := l.clone()
	nl.attrs = append(nl.attrs, key, value)
	return nl
}

func (l *TurnLogger) args(extra []any) []any {
	out := make([]any, 0, len(l.attrs)+len(extra)+6)
	if l.component != "" {
		out = append(out, "component", l.component)
	}
	if l.configurationID != "" {
		out = append(out, "configuration_id", l.configurationID)
	}
	if l.messageID != "" {
		out = append(out, "message_id", l.messageID)
	}
	out = append(out, l.attrs...)
	return append(out, extra...)
}

// Debug logs at debug level.
func (l *TurnLogger) Debug(msg string, args ...any) { l.base.Debug(msg, l.args(args)...) }

// Info logs at info level.
func (l *TurnLogger) Info(msg string, args ...any) { l.base.Info(msg, l.args(args)...) }

// Warn logs at warn level.
func (l *TurnLogger) Warn(msg string, args ...any) { l.base.Warn(msg, l.args(args)...) }

// Error logs at error level.
func (l *TurnLogger) Error(msg string, args ...any) { l.base.Error(msg, l.args(args)...) }

// LogModelCall records model call latency and outcome.
func (l *TurnLogger) LogModelCall(provider, model string, specs int, dur time.Duration, err error) {
	args := []any{"provider", provider, "model", model, "specifications", specs, "duration_ms", dur.Milliseconds()}
	if err != nil {
		l.Error("model.call.failed", append(args, "error", err.Error())...)
		return
	}
	l.Info("model.call.completed", args...)
}

// LogActionRun records execution details for an action.
func (l *TurnLogger) LogActionRun(kind, name string, step int, dur time.Duration, errCode string) {
	args := []any{"kind", kind, "action", name, "step", step, "duration_ms", dur.Milliseconds()}
	if errCode != "" {
		l.Error("flow.action.failed", append(args, "error_code", errCode)...)
		return
	}
	l.Info("flow.action.executed", args...)
}

// LogRound records the outcome of one planning round.
func (l *TurnLogger) LogRound(iteration int, outcome string, dur time.Duration) {
	l.Info("agent.round.completed", "iteration", iteration, "outcome", outcome, "duration_ms", dur.Milliseconds())
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *TurnLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Debug("operation.completed", "operation", op, "duration_ms", time.Since(start).Milliseconds()) }
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
