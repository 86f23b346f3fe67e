package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingLogger struct {
	entries []entry
}

type entry struct {
	level string
	msg   string
	args  []any
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.add("debug", msg, args) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.add("info", msg, args) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.add("warn", msg, args) }
func (r *recordingLogger) Error(msg string, args ...any) { r.add("error", msg, args) }
func (r *recordingLogger) add(level, msg string, args []any) {
	r.entries = append(r.entries, entry{level: level, msg: msg, args: args})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("whatever"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestNew_SlogJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Debug("agent.round.start", "iteration", 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "agent.round.start", decoded["msg"])
	assert.Equal(t, float64(1), decoded["iteration"])
}

func TestNew_SlogRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "text", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "logrus"})
	require.Error(t, err)
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapAdapter(zap.New(core))

	logger.Info("flow.action.executed", "kind", "retrieval", "step", 2)
	logger.Error("flow.action.failed", "error_code", "boom")

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, "flow.action.executed", first.Message)
	assert.Equal(t, "retrieval", first.ContextMap()["kind"])
	assert.Equal(t, int64(2), first.ContextMap()["step"])
}

func TestTurnLogger_Attributes(t *testing.T) {
	rec := &recordingLogger{}
	tl := NewTurnLogger(rec).WithComponent("agent").WithTurn("cfg", "msg").WithContext("iteration", 3)

	tl.Info("agent.round.start", "extra", true)

	require.Len(t, rec.entries, 1)
	args := rec.entries[0].args
	assert.Equal(t, []any{"component", "agent", "configuration_id", "cfg", "message_id", "msg", "iteration", 3, "extra", true}, args)
}

func TestTurnLogger_WithIsImmutable(t *testing.T) {
	rec := &recordingLogger{}
	base := NewTurnLogger(rec).WithContext("a", 1)
	_ = base.WithContext("b", 2)

	base.Debug("x")
	assert.Equal(t, []any{"a", 1}, rec.entries[0].args)
}

func TestTurnLogger_DomainHelpers(t *testing.T) {
	rec := &recordingLogger{}
	tl := NewTurnLogger(rec)

	tl.LogModelCall("openai", "gpt-4o", 2, 10*time.Millisecond, nil)
	tl.LogModelCall("openai", "gpt-4o", 2, 10*time.Millisecond, assert.AnError)
	tl.LogActionRun("retrieval", "search", 0, time.Millisecond, "")
	tl.LogActionRun("retrieval", "search", 0, time.Millisecond, "retrieval_error")
	tl.LogRound(1, "actions", time.Millisecond)

	require.Len(t, rec.entries, 5)
	assert.Equal(t, "model.call.completed", rec.entries[0].msg)
	assert.Equal(t, "error", rec.entries[1].level)
	assert.Equal(t, "flow.action.executed", rec.entries[2].msg)
	assert.Equal(t, "flow.action.failed", rec.entries[3].msg)
	assert.True(t, strings.HasPrefix(rec.entries[4].msg, "agent.round"))
}

func TestNilBaseIsNoOp(t *testing.T) {
	tl := NewTurnLogger(nil)
	tl.Error("nothing happens")
	tl.StartTimer("op")()
}
