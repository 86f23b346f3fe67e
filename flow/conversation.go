package flow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// charsPerToken approximates the tokenizer of every supported model.
const charsPerToken = 4

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

func estimateMessage(m model.Message) int {
	n := EstimateTokens(m.Content) + EstimateTokens(m.Name) + 3
	for _, fc := range m.FunctionCalls {
		n += EstimateTokens(fc.Name) + EstimateTokens(fc.Arguments) + 3
	}
	return n
}

// RenderConversation builds the model-ready digest of conversation. It walks
// the visible version of each rank from newest to oldest and stops before the
// first message that would push prompt plus digest above allowedTokens. The
// newest user message must fit. The result is ordered oldest first.
func RenderConversation(conversation *core.Conversation, prompt string, allowedTokens int) ([]model.Message, error) {
	latest := conversation.Latest()

	total := EstimateTokens(prompt)
	foundUser := false
	var reversed [][]model.Message

	for i := len(latest) - 1; i >= 0; i-- {
		rendered := renderMessage(latest[i])
		if len(rendered) == 0 {
			continue
		}
		cost := 0
		for _, m := range rendered {
			cost += estimateMessage(m)
		}
		if total+cost > allowedTokens {
			if !foundUser {
				return nil, core.NewAgentError(core.ErrorCodeConversationRender,
					"the last user message does not fit in the context window (%d tokens available)", allowedTokens)
			}
			break
		}
		total += cost
		reversed = append(reversed, rendered)
		if _, ok := latest[i].(*core.UserMessage); ok {
			foundUser = true
		}
	}

	if !foundUser {
		return nil, core.NewAgentError(core.ErrorCodeConversationRender, "conversation has no user message")
	}

	out := make([]model.Message, 0, len(reversed)*2)
	for i := len(reversed) - 1; i >= 0; i-- {
		out = append(out, reversed[i]...)
	}
	return out, nil
}

func renderMessage(msg core.Message) []model.Message {
	switch m := msg.(type) {
	case *core.UserMessage:
		sender := m.Context.FullName
		if sender == "" {
			sender = m.Context.Username
		}
		return []model.Message{{
			Role:    model.RoleUser,
			Name:    sanitizeName(m.Context.Username),
			Content: fmt.Sprintf("%s: %s", sender, m.Content),
		}}
	case *core.AgentMessage:
		return renderAgentMessage(m.Snapshot())
	case *core.ContentFragment:
		return []model.Message{{
			Role:    model.RoleUser,
			Name:    "inject_" + sanitizeName(m.ContentType),
			Content: fmt.Sprintf("TITLE: %s\nTYPE: %s\nCONTENT:\n%s", m.Title, m.ContentType, m.Content),
		}}
	default:
		return nil
	}
}

// renderAgentMessage emits one assistant message per step carrying the
// function calls of that step, followed by their results, then the content.
func renderAgentMessage(snap core.AgentMessageSnapshot) []model.Message {
	var out []model.Message

	steps := map[int][]core.ActionRecord{}
	var order []int
	for _, rec := range snap.Actions {
		if _, ok := steps[rec.Step]; !ok {
			order = append(order, rec.Step)
		}
		steps[rec.Step] = append(steps[rec.Step], rec)
	}
	sort.Ints(order)

	for _, step := range order {
		recs := steps[step]
		calls := make([]model.FunctionCall, 0, len(recs))
		results := make([]model.Message, 0, len(recs))
		for _, rec := range recs {
			id := rec.ID
			if rec.FunctionCallID != nil && *rec.FunctionCallID != "" {
				id = *rec.FunctionCallID
			}
			args, err := json.Marshal(rec.Params)
			if err != nil {
				args = []byte("{}")
			}
			name := rec.Name
			if name == "" {
				name = string(rec.Kind)
			}
			calls = append(calls, model.FunctionCall{ID: id, Name: name, Arguments: string(args)})
			results = append(results, model.Message{
				Role:           model.RoleFunction,
				Name:           name,
				FunctionCallID: id,
				Content:        renderOutput(rec.Output),
			})
		}
		out = append(out, model.Message{Role: model.RoleAssistant, FunctionCalls: calls})
		out = append(out, results...)
	}

	if snap.Content != "" {
		out = append(out, model.Message{Role: model.RoleAssistant, Content: snap.Content})
	}
	return out
}

func renderOutput(output any) string {
	switch o := output.(type) {
	case nil:
		return "(no output)"
	case string:
		return o
	case core.RetrievalOutput:
		return renderRetrieval(o)
	case *core.RetrievalOutput:
		return renderRetrieval(*o)
	default:
		b, err := json.Marshal(o)
		if err != nil {
			return fmt.Sprintf("%v", o)
		}
		return string(b)
	}
}

func renderRetrieval(o core.RetrievalOutput) string {
	if len(o.Documents) == 0 {
		return "(retrieval returned no results)"
	}
	var b strings.Builder
	for i, d := range o.Documents {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "REFERENCE: %s\n", d.Reference)
		if d.SourceURL != "" {
			fmt.Fprintf(&b, "URL: %s\n", d.SourceURL)
		}
		if !d.Timestamp.IsZero() {
			fmt.Fprintf(&b, "DATE: %s\n", d.Timestamp.UTC().Format("2006-01-02"))
		}
		b.WriteString("CONTENT:\n")
		for _, c := range d.Chunks {
			b.WriteString(c.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// sanitizeName keeps the characters model providers accept in message names.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
