package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

func TestBuildMessages_MergesRoles(t *testing.T) {
	msgs := BuildMessages([]model.Message{
		{Role: model.RoleUser, Content: "question"},
		{Role: model.RoleAssistant, FunctionCalls: []model.FunctionCall{
			{ID: "c1", Name: "search", Arguments: `{"query":"x"}`},
			{ID: "c2", Name: "search", Arguments: `{"query":"y"}`},
		}},
		{Role: model.RoleFunction, FunctionCallID: "c1", Content: "r1"},
		{Role: model.RoleFunction, FunctionCallID: "c2", Content: "r2"},
		{Role: model.RoleAssistant, Content: "answer"},
		{Role: model.RoleUser, Content: "follow up"},
	})

	require.Len(t, msgs, 5)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	assert.Len(t, msgs[2].Content, 2, "tool results share one user message")
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[3].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[4].Role)
}

func TestBuildTools(t *testing.T) {
	tools := BuildTools([]core.CapabilitySpecification{{
		Name:        "search",
		Description: "Search documents",
		Inputs:      []core.InputSpecification{{Name: "query", Description: "q"}},
	}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "search", tools[0].OfTool.Name)
	assert.Equal(t, []string{"query"}, tools[0].OfTool.InputSchema.Required)
	assert.Equal(t, "Search documents", tools[0].OfTool.Description.Value)
}
