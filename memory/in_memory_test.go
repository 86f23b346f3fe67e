package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/tool"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T) *InMemoryStore {
	t.Helper()
	s := NewInMemoryStore()
	docs := []struct {
		ds  string
		doc Document
	}{
		{"handbook", Document{ID: "vacation", Text: "Vacation policy.\n\nEmployees get 25 vacation days per year.", Timestamp: now.AddDate(0, 0, -3)}},
		{"handbook", Document{ID: "expenses", Text: "Expenses are reimbursed monthly.", Timestamp: now.AddDate(0, -2, 0)}},
		{"wiki", Document{ID: "oncall", Text: "The on-call rotation changes every week.\n\nVacation must be planned around on-call.", Timestamp: now.AddDate(0, 0, -1)}},
	}
	for _, d := range docs {
		if err := s.Put(d.ds, d.doc); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	return s
}

func TestInMemoryStore_Search(t *testing.T) {
	s := seed(t)

	res := s.Search("vacation days", SearchOptions{})
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	assert.Equal(t, "vacation", res[0].Document.ID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	require.Len(t, res[0].Chunks, 2)
	assert.Equal(t, 1, res[0].Chunks[1].Offset)
	assert.Equal(t, "oncall", res[1].Document.ID)
	require.Len(t, res[1].Chunks, 1)
	assert.Equal(t, 1, res[1].Chunks[0].Offset)
}

func TestInMemoryStore_SearchOptions(t *testing.T) {
	s := seed(t)

	res := s.Search("vacation", SearchOptions{DataSources: []string{"wiki"}})
	require.Len(t, res, 1)
	assert.Equal(t, "wiki", res[0].DataSourceID)

	res = s.Search("", SearchOptions{Since: now.AddDate(0, 0, -7)})
	require.Len(t, res, 2)
	assert.Equal(t, "oncall", res[0].Document.ID, "empty query ranks newest first")

	res = s.Search("", SearchOptions{Limit: 1})
	assert.Len(t, res, 1)
}

func TestInMemoryStore_PutDelete(t *testing.T) {
	s := seed(t)
	if err := s.Put("", Document{ID: "x"}); err == nil {
		t.Fatalf("expected error for missing data source")
	}
	require.NoError(t, s.Delete("handbook", "vacation"))
	if err := s.Delete("handbook", "vacation"); err == nil {
		t.Fatalf("expected error deleting twice")
	}
	assert.Len(t, s.Search("vacation", SearchOptions{DataSources: []string{"handbook"}}), 0)
}

func TestReference(t *testing.T) {
	assert.Equal(t, "aa", Reference(0))
	assert.Equal(t, "ab", Reference(1))
	assert.Equal(t, "bg", Reference(32))
	assert.Equal(t, Reference(0), Reference(26*26))
}

func runRetrieval(t *testing.T, r tool.Runner, cfg *core.RetrievalConfiguration, inputs map[string]any, offset int) []tool.Event {
	t.Helper()
	spec := tool.NewSpecification(cfg, cfg.Name, cfg.Description)
	var events []tool.Event
	for ev := range r.Run(context.Background(), tool.RunRequest{
		Action:        cfg,
		Specification: spec,
		Inputs:        inputs,
		RefsOffset:    offset,
	}) {
		events = append(events, ev)
	}
	return events
}

func TestRetrievalRunner(t *testing.T) {
	r := NewRetrievalRunner(seed(t), func(o *RetrievalOptions) { o.Now = func() time.Time { return now } })
	cfg := &core.RetrievalConfiguration{
		ActionBase:        core.ActionBase{SID: "r1", Name: "search_handbook", Description: "Search."},
		Query:             core.RetrievalQuery{Mode: "auto"},
		RelativeTimeFrame: &core.TimeFrame{Duration: 1, Unit: "month"},
		DataSources:       []core.DataSourceConfiguration{{DataSourceID: "handbook"}},
	}

	events := runRetrieval(t, r, cfg, map[string]any{"query": "vacation"}, 32)
	require.Len(t, events, 2)

	params, ok := events[0].(tool.ParamsEvent)
	require.True(t, ok)
	assert.Equal(t, "retrieval_params", params.Name)
	assert.Equal(t, DefaultTopK, params.Payload["top_k"])

	success, ok := events[1].(tool.SuccessEvent)
	require.True(t, ok)
	out, ok := success.Action.Output.(core.RetrievalOutput)
	require.True(t, ok)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "vacation", out.Documents[0].DocumentID)
	assert.Equal(t, Reference(32), out.Documents[0].Reference)
	assert.Equal(t, core.ActionKindRetrieval, success.Action.Kind)
}

func TestRetrievalRunner_Errors(t *testing.T) {
	r := NewRetrievalRunner(seed(t))

	tests := []struct {
		name string
		cfg  *core.RetrievalConfiguration
		code string
	}{
		{
			name: "unknown unit",
			cfg: &core.RetrievalConfiguration{
				ActionBase:        core.ActionBase{SID: "r", Name: "s"},
				Query:             core.RetrievalQuery{Mode: "none"},
				RelativeTimeFrame: &core.TimeFrame{Duration: 1, Unit: "decade"},
			},
			code: "retrieval_parameters_error",
		},
		{
			name: "unknown mode",
			cfg: &core.RetrievalConfiguration{
				ActionBase: core.ActionBase{SID: "r", Name: "s"},
				Query:      core.RetrievalQuery{Mode: "magic"},
			},
			code: "retrieval_parameters_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := runRetrieval(t, r, tt.cfg, map[string]any{}, 0)
			require.NotEmpty(t, events)
			failure, ok := events[len(events)-1].(tool.FailureEvent)
			if !ok {
				t.Fatalf("expected failure, got %T", events[len(events)-1])
			}
			assert.Equal(t, tt.code, failure.Err.Code)
		})
	}
}
