package flow

import (
	"strings"
	"time"
	_ "time/tzdata" // user timezones on hosts without a zoneinfo database

	"github.com/hupe1980/agentloop/core"
	internalutil "github.com/hupe1980/agentloop/internal/util"
	"github.com/hupe1980/agentloop/model"
)

// DefaultPreamble opens every planning prompt.
const DefaultPreamble = "You are a conversational assistant with access to function calling."

// DefaultReservedGenerationTokens is kept free of the context window for the
// model's answer.
const DefaultReservedGenerationTokens = 2048

// InstructionsProcessor renders the agent instructions into the prompt.
//
// Instructions are a text/template evaluated with:
//
//	.Date      current date in the user's timezone (YYYY-MM-DD)
//	.Now       current time in the user's timezone
//	.Username  .FullName  .Timezone  .AgentName
type InstructionsProcessor struct {
	preamble string
	now      func() time.Time
}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor {
	return &InstructionsProcessor{preamble: DefaultPreamble, now: time.Now}
}

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Prompt.
func (p *InstructionsProcessor) ProcessRequest(turn *core.TurnContext, req *model.Request, _ model.Configuration) error {
	state := p.templateState(turn)

	var b strings.Builder
	b.WriteString(p.preamble)

	if cfg := turn.Configuration; cfg != nil && strings.TrimSpace(cfg.Instructions) != "" {
		instructions, err := internalutil.RenderInstructions(cfg.Instructions, state)
		if err != nil {
			return core.NewAgentError(core.ErrorCodeConversationRender, "failed to render instructions: %v", err)
		}
		b.WriteString("\n\n")
		b.WriteString(instructions)
	}

	req.Prompt = b.String()
	turn.LogDebug("flow.prompt.rendered", "length", len(req.Prompt))
	return nil
}

func (p *InstructionsProcessor) templateState(turn *core.TurnContext) map[string]any {
	loc := time.UTC
	state := map[string]any{}
	if u := turn.UserMessage; u != nil {
		state["Username"] = u.Context.Username
		state["FullName"] = u.Context.FullName
		state["Timezone"] = u.Context.Timezone
		if u.Context.Timezone != "" {
			if l, err := time.LoadLocation(u.Context.Timezone); err == nil {
				loc = l
			}
		}
	}
	if cfg := turn.Configuration; cfg != nil {
		state["AgentName"] = cfg.Name
	}
	now := p.now().In(loc)
	state["Now"] = now
	state["Date"] = now.Format("2006-01-02")
	return state
}

// ConversationProcessor renders the conversation digest within the model's
// context window.
type ConversationProcessor struct {
	reserved int
}

// NewConversationProcessor creates a conversation processor keeping reserved
// tokens free for generation.
func NewConversationProcessor(reserved int) *ConversationProcessor {
	if reserved <= 0 {
		reserved = DefaultReservedGenerationTokens
	}
	return &ConversationProcessor{reserved: reserved}
}

// Name returns the processor's identifier.
func (p *ConversationProcessor) Name() string { return "conversation" }

// ProcessRequest sets req.Conversation.
func (p *ConversationProcessor) ProcessRequest(turn *core.TurnContext, req *model.Request, mc model.Configuration) error {
	messages, err := RenderConversation(turn.Conversation, req.Prompt, mc.ContextSize-p.reserved)
	if err != nil {
		return err
	}
	req.Conversation = messages
	turn.LogDebug("flow.conversation.rendered", "messages", len(messages))
	return nil
}

