package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600))
	return path
}

func TestModelsCommand(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t), "models", "--multi-actions")
	require.NoError(t, err)

	assert.Contains(t, out, "model_id: gpt-4o")
	assert.NotContains(t, out, "claude-2.1")
}

func TestCancelCommand_RequiresRedis(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t), "cancel", "msg-1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "redis.addr"))
}

func TestRunCommand_RequiresMessage(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t), "run")
	require.Error(t, err)
}
