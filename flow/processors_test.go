package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/model"
)

func TestInstructionsProcessor(t *testing.T) {
	p := NewInstructionsProcessor()
	p.now = func() time.Time { return time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC) }

	turn := newTurn(t, "openai", "gpt-4o")
	turn.Configuration.Instructions = "You help {{ .FullName }} ({{ .Username }}). Today is {{ .Date }}. {{ .Unknown }}"

	req := &model.Request{}
	require.NoError(t, p.ProcessRequest(turn, req, model.Configuration{}))

	assert.Equal(t, DefaultPreamble+"\n\nYou help Ada Lovelace (ada). Today is 2025-01-01. ", req.Prompt)
}

func TestInstructionsProcessor_NoInstructions(t *testing.T) {
	turn := newTurn(t, "openai", "gpt-4o")
	turn.Configuration.Instructions = "  "

	req := &model.Request{}
	require.NoError(t, NewInstructionsProcessor().ProcessRequest(turn, req, model.Configuration{}))
	assert.Equal(t, DefaultPreamble, req.Prompt)
}

func TestConversationProcessor_ReservesGenerationTokens(t *testing.T) {
	turn := newTurn(t, "openai", "gpt-4o")
	req := &model.Request{Prompt: "prompt"}

	err := NewConversationProcessor(0).ProcessRequest(turn, req, model.Configuration{ContextSize: DefaultReservedGenerationTokens + 5})
	require.Error(t, err, "nothing but the reserve fits")

	require.NoError(t, NewConversationProcessor(0).ProcessRequest(turn, req, model.Configuration{ContextSize: 8192}))
	require.Len(t, req.Conversation, 1)
	assert.Equal(t, model.RoleUser, req.Conversation[0].Role)
}
