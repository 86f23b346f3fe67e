package tool

import (
	"context"

	"github.com/hupe1980/agentloop/core"
)

// NewEchoRunner returns a runner that performs no work and echoes the inputs
// as output. Retrieval echo runners report retrieval_params and an empty
// document list. Used for dry runs.
func NewEchoRunner(kind core.ActionKind) *FunctionRunner {
	return NewFunctionRunner(kind, func(_ context.Context, req RunRequest, emit Emitter) (any, error) {
		if kind != core.ActionKindRetrieval {
			return map[string]any{"echo": req.Inputs}, nil
		}
		emit(ParamsEvent{
			Name:    "retrieval_params",
			Action:  req.Record(nil),
			Payload: map[string]any{"refs_offset": req.RefsOffset, "inputs": req.Inputs},
		})
		return core.RetrievalOutput{Documents: []core.RetrievedDocument{}}, nil
	})
}

// EchoRunners returns one echo runner per capability kind.
func EchoRunners() []Runner {
	out := make([]Runner, 0, len(core.ActionKinds))
	for _, k := range core.ActionKinds {
		out = append(out, NewEchoRunner(k))
	}
	return out
}
