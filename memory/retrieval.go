package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/tool"
)

// DefaultTopK applies when a retrieval configuration leaves top_k on auto.
const DefaultTopK = 8

// RetrievalOptions configure NewRetrievalRunner.
type RetrievalOptions struct {
	TopK   int
	Now    func() time.Time
	Logger logging.Logger
}

// NewRetrievalRunner serves retrieval capabilities from store. Documents
// are cited with references starting at the request's RefsOffset.
func NewRetrievalRunner(store *InMemoryStore, optFns ...func(o *RetrievalOptions)) *tool.FunctionRunner {
	opts := RetrievalOptions{
		TopK:   DefaultTopK,
		Now:    time.Now,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewFunctionRunner(core.ActionKindRetrieval, func(ctx context.Context, req tool.RunRequest, emit tool.Emitter) (any, error) {
		cfg, ok := req.Action.(*core.RetrievalConfiguration)
		if !ok {
			return nil, tool.NewRunnerError("retrieval", "retrieval_parameters_error", "not a retrieval configuration")
		}

		query, err := resolveQuery(cfg, req.Inputs)
		if err != nil {
			return nil, err
		}

		topK := cfg.TopK
		if topK <= 0 {
			topK = opts.TopK
		}

		searchOpts := SearchOptions{Limit: topK}
		for _, ds := range cfg.DataSources {
			searchOpts.DataSources = append(searchOpts.DataSources, ds.DataSourceID)
		}
		if cfg.RelativeTimeFrame != nil {
			from, err := since(opts.Now(), *cfg.RelativeTimeFrame)
			if err != nil {
				return nil, tool.NewRunnerError("retrieval", "retrieval_parameters_error", err.Error())
			}
			searchOpts.Since = from
		}

		params := map[string]any{
			"query":        query,
			"top_k":        topK,
			"data_sources": searchOpts.DataSources,
			"refs_offset":  req.RefsOffset,
		}
		if !emit(tool.ParamsEvent{Name: "retrieval_params", Action: req.Record(nil), Payload: params}) {
			return nil, ctx.Err()
		}

		results := store.Search(query, searchOpts)
		opts.Logger.Debug("memory.retrieval.search", "query", query, "top_k", topK, "results", len(results))

		out := core.RetrievalOutput{Documents: make([]core.RetrievedDocument, 0, len(results))}
		for i, r := range results {
			doc := core.RetrievedDocument{
				DocumentID:   r.Document.ID,
				DataSourceID: r.DataSourceID,
				SourceURL:    r.Document.SourceURL,
				Reference:    Reference(req.RefsOffset + i),
				Timestamp:    r.Document.Timestamp,
				Tags:         r.Document.Tags,
				Score:        r.Score,
				Chunks:       make([]core.Chunk, 0, len(r.Chunks)),
			}
			for _, c := range r.Chunks {
				doc.Chunks = append(doc.Chunks, core.Chunk{Text: c.Text, Offset: c.Offset, Score: c.Score})
			}
			out.Documents = append(out.Documents, doc)
		}
		return out, nil
	}, func(o *tool.FunctionRunnerOptions) { o.Logger = opts.Logger })
}

func resolveQuery(cfg *core.RetrievalConfiguration, inputs map[string]any) (string, error) {
	switch cfg.Query.Mode {
	case "", "auto":
		q, ok := inputs["query"].(string)
		if !ok {
			return "", tool.NewRunnerError("retrieval", "retrieval_parameters_error", "query is required")
		}
		return q, nil
	case "none":
		return "", nil
	case "template":
		return cfg.Query.Template, nil
	default:
		return "", tool.NewRunnerError("retrieval", "retrieval_parameters_error",
			fmt.Sprintf("unsupported query mode %q", cfg.Query.Mode))
	}
}

func since(now time.Time, tf core.TimeFrame) (time.Time, error) {
	if tf.Duration <= 0 {
		return time.Time{}, fmt.Errorf("time frame duration must be positive")
	}
	switch tf.Unit {
	case "hour":
		return now.Add(-time.Duration(tf.Duration) * time.Hour), nil
	case "day":
		return now.AddDate(0, 0, -tf.Duration), nil
	case "week":
		return now.AddDate(0, 0, -7*tf.Duration), nil
	case "month":
		return now.AddDate(0, -tf.Duration, 0), nil
	case "year":
		return now.AddDate(-tf.Duration, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown time frame unit %q", tf.Unit)
	}
}

const refAlphabet = "abcdefghijklmnopqrstuvwxyz"

// Reference returns the citation marker of the n-th retrieved document:
// "aa", "ab", ... "zz", then wrapping.
func Reference(n int) string {
	n %= len(refAlphabet) * len(refAlphabet)
	if n < 0 {
		n += len(refAlphabet) * len(refAlphabet)
	}
	return string([]byte{refAlphabet[n/len(refAlphabet)], refAlphabet[n%len(refAlphabet)]})
}
