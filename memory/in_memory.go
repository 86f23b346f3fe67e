package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Document is an indexed document. Text is split into chunks on blank lines.
type Document struct {
	ID        string
	SourceURL string
	Text      string
	Tags      []string
	Timestamp time.Time
}

// SearchResult is a matching document with its scored chunks.
type SearchResult struct {
	DataSourceID string
	Document     Document
	Score        float64
	Chunks       []ScoredChunk
}

// ScoredChunk is a passage of a document and its term overlap score.
type ScoredChunk struct {
	Text   string
	Offset int
	Score  float64
}

// SearchOptions narrows a search.
type SearchOptions struct {
	// DataSources restricts the search; empty searches every data source.
	DataSources []string
	// Since drops documents older than the given time when non-zero.
	Since time.Time
	// Limit caps the number of results. Zero means unlimited.
	Limit int
}

// InMemoryStore is a naive process-local document index. Search scores
// chunks by the fraction of query terms they contain (case insensitive) and
// ranks documents by their best chunk. An empty query matches every document
// with a score of 0, newest first.
//
// Concurrency: protected by RWMutex.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document // data source -> document id -> document
}

// NewInMemoryStore creates an empty index.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string]map[string]Document)}
}

// Put adds or replaces a document of a data source.
func (s *InMemoryStore) Put(dataSourceID string, doc Document) error {
	if dataSourceID == "" || doc.ID == "" {
		return fmt.Errorf("data source and document id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[dataSourceID]; !ok {
		s.docs[dataSourceID] = make(map[string]Document)
	}
	doc.Tags = append([]string(nil), doc.Tags...)
	s.docs[dataSourceID][doc.ID] = doc
	return nil
}

// Delete removes a document.
func (s *InMemoryStore) Delete(dataSourceID, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.docs[dataSourceID]
	if !ok {
		return fmt.Errorf("document not found")
	}
	if _, ok := docs[docID]; !ok {
		return fmt.Errorf("document not found")
	}
	delete(docs, docID)
	return nil
}

// Search returns the documents matching query, best first.
func (s *InMemoryStore) Search(query string, opts SearchOptions) []SearchResult {
	terms := tokenize(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := opts.DataSources
	if len(sources) == 0 {
		for id := range s.docs {
			sources = append(sources, id)
		}
	}

	var results []SearchResult
	for _, dsID := range sources {
		for _, doc := range s.docs[dsID] {
			if !opts.Since.IsZero() && doc.Timestamp.Before(opts.Since) {
				continue
			}
			res, ok := match(dsID, doc, terms)
			if ok {
				results = append(results, res)
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Document.Timestamp.Equal(results[j].Document.Timestamp) {
			return results[i].Document.Timestamp.After(results[j].Document.Timestamp)
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

func match(dsID string, doc Document, terms []string) (SearchResult, bool) {
	res := SearchResult{DataSourceID: dsID, Document: doc}
	offset := 0
	for _, chunk := range chunks(doc.Text) {
		score := 0.0
		if len(terms) > 0 {
			words := make(map[string]struct{})
			for _, w := range tokenize(chunk) {
				words[w] = struct{}{}
			}
			hits := 0
			for _, t := range terms {
				if _, ok := words[t]; ok {
					hits++
				}
			}
			if hits == 0 {
				offset++
				continue
			}
			score = float64(hits) / float64(len(terms))
		}
		res.Chunks = append(res.Chunks, ScoredChunk{Text: chunk, Offset: offset, Score: score})
		if score > res.Score {
			res.Score = score
		}
		offset++
	}
	return res, len(res.Chunks) > 0
}

func chunks(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
