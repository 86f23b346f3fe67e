package util

import (
	"bytes"
	"strings"
	"sync"
	"text/template"
	"time"
)

var (
	instructionsFuncs = template.FuncMap{
		"default": func(fallback, v any) any {
			if v == nil || v == "" {
				return fallback
			}
			return v
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
		"date":  func(layout string, t time.Time) string { return t.Format(layout) },
	}

	// parsed agent instructions, keyed by their source text
	instructionsCache sync.Map
)

// RenderInstructions evaluates agent instructions as a text/template over
// vars. Text without actions is returned as is. Unknown variables render
// empty.
func RenderInstructions(text string, vars map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := parseInstructions(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", err
	}
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

func parseInstructions(text string) (*template.Template, error) {
	if cached, ok := instructionsCache.Load(text); ok {
		return cached.(*template.Template), nil
	}
	tmpl, err := template.New("instructions").
		Option("missingkey=zero").
		Funcs(instructionsFuncs).
		Parse(text)
	if err != nil {
		return nil, err
	}
	instructionsCache.Store(text, tmpl)
	return tmpl, nil
}
