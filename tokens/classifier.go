// Package tokens classifies a raw model token stream into visible content and
// chain-of-thought spans using configured delimiter pairs.
package tokens

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/agentloop/core"
)

var (
	// ErrDuplicateDelimiter is returned when two delimiters share the same literal.
	ErrDuplicateDelimiter = errors.New("duplicate delimiters in the configuration")
	// ErrEmptyDelimiter is returned when a delimiter literal is empty.
	ErrEmptyDelimiter = errors.New("empty delimiter in the configuration")
)

// Delimiter is a pair of literal markers around a span.
type Delimiter struct {
	OpeningPattern   string `json:"opening_pattern" yaml:"opening_pattern"`
	ClosingPattern   string `json:"closing_pattern" yaml:"closing_pattern"`
	IsChainOfThought bool   `json:"is_chain_of_thought" yaml:"is_chain_of_thought"`
}

// DelimitersConfiguration lists the delimiters of a model plus a pattern
// recognizing a delimiter prefix that has not completed yet.
type DelimitersConfiguration struct {
	IncompleteDelimiterRegex string      `json:"incomplete_delimiter_regex,omitempty" yaml:"incomplete_delimiter_regex,omitempty"`
	Delimiters               []Delimiter `json:"delimiters" yaml:"delimiters"`
}

// Token is one classified span.
type Token struct {
	Text           string
	Classification core.TokenClassification
}

type delimiterSpec struct {
	classification   core.TokenClassification
	isChainOfThought bool
}

// Classifier is a stateful buffer turning raw chunks into classified spans.
// It is not safe for concurrent use; one planning round owns one Classifier.
type Classifier struct {
	buffer         string
	content        strings.Builder
	chainOfThought strings.Builder
	opened         int

	pattern         *regexp.Regexp
	incomplete      *regexp.Regexp
	specByDelimiter map[string]delimiterSpec
}

// NewClassifier validates cfg and precompiles its patterns. A nil cfg or one
// without delimiters passes all text through as content.
func NewClassifier(cfg *DelimitersConfiguration) (*Classifier, error) {
	c := &Classifier{specByDelimiter: map[string]delimiterSpec{}}
	if cfg == nil {
		return c, nil
	}

	escaped := make([]string, 0, 2*len(cfg.Delimiters))
	for _, d := range cfg.Delimiters {
		for _, lit := range []struct {
			text string
			cls  core.TokenClassification
		}{
			{d.OpeningPattern, core.ClassificationOpeningDelimiter},
			{d.ClosingPattern, core.ClassificationClosingDelimiter},
		} {
			if lit.text == "" {
				return nil, ErrEmptyDelimiter
			}
			if _, dup := c.specByDelimiter[lit.text]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateDelimiter, lit.text)
			}
			c.specByDelimiter[lit.text] = delimiterSpec{classification: lit.cls, isChainOfThought: d.IsChainOfThought}
			escaped = append(escaped, regexp.QuoteMeta(lit.text))
		}
	}

	if len(escaped) > 0 {
		c.pattern = regexp.MustCompile(strings.Join(escaped, "|"))
	}

	if cfg.IncompleteDelimiterRegex != "" {
		re, err := regexp.Compile(cfg.IncompleteDelimiterRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid incomplete delimiter pattern: %w", err)
		}
		c.incomplete = re
	}

	return c, nil
}

// Emit feeds a raw chunk and returns the spans that became classifiable.
// While the buffer ends with an incomplete delimiter nothing is returned.
func (c *Classifier) Emit(chunk string) []Token {
	c.buffer += chunk
	if c.pattern == nil {
		return c.Flush()
	}

	if c.incomplete != nil && c.incomplete.MatchString(c.buffer) {
		return nil
	}

	var out []Token
	for {
		loc := c.pattern.FindStringIndex(c.buffer)
		if loc == nil {
			break
		}
		del := c.buffer[loc[0]:loc[1]]

		if loc[0] > 0 {
			out = append(out, c.flushUpTo(loc[0])...)
		}

		spec, ok := c.specByDelimiter[del]
		if !ok {
			panic(fmt.Sprintf("tokens: unknown delimiter %q", del))
		}

		if spec.isChainOfThought {
			if spec.classification == core.ClassificationOpeningDelimiter {
				c.opened++
			} else {
				c.opened--
			}
		}

		out = append(out, Token{Text: del, Classification: spec.classification})
		c.buffer = c.buffer[len(del):]
	}

	return append(out, c.Flush()...)
}

// Flush classifies everything still buffered.
func (c *Classifier) Flush() []Token {
	return c.flushUpTo(len(c.buffer))
}

func (c *Classifier) flushUpTo(n int) []Token {
	if n == 0 || len(c.buffer) == 0 {
		return nil
	}

	text := c.buffer[:n]
	cls := core.ClassificationTokens
	if c.opened > 0 {
		cls = core.ClassificationChainOfThought
		c.chainOfThought.WriteString(text)
	} else {
		c.content.WriteString(text)
	}
	c.buffer = c.buffer[n:]

	return []Token{{Text: text, Classification: cls}}
}

// Content returns the visible text classified so far.
func (c *Classifier) Content() string { return c.content.String() }

// ChainOfThought returns the reasoning text classified so far.
func (c *Classifier) ChainOfThought() string { return c.chainOfThought.String() }

// Pending reports whether unclassified text is buffered.
func (c *Classifier) Pending() bool { return len(c.buffer) > 0 }
