// Package util holds helpers shared by the capability runners and the
// planning processors.
package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/hupe1980/agentloop/core"
)

// InputError reports a planned action argument that does not match the
// input it was declared as.
type InputError struct {
	Input  string `json:"input"`
	Value  any    `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %q: %s", e.Input, e.Reason)
}

// CheckInputs verifies that every declared input is present in args and
// holds a value of its declared type. Arguments the capability did not
// declare are ignored and a nil value satisfies any type.
func CheckInputs(args map[string]any, inputs []core.InputSpecification) error {
	if err := RequireInputs(args, inputs); err != nil {
		return err
	}
	for _, in := range inputs {
		v := args[in.Name]
		if v == nil {
			continue
		}
		typ := in.Type
		if typ == "" {
			typ = core.InputTypeString
		}
		if !matches(v, typ) {
			return &InputError{Input: in.Name, Value: v, Reason: fmt.Sprintf("want %s, got %T", typ, v)}
		}
	}
	return nil
}

// RequireInputs verifies that every declared input is present in args,
// whatever its value.
func RequireInputs(args map[string]any, inputs []core.InputSpecification) error {
	for _, in := range inputs {
		if _, ok := args[in.Name]; !ok {
			return &InputError{Input: in.Name, Reason: "missing"}
		}
	}
	return nil
}

func matches(v any, typ core.InputType) bool {
	switch typ {
	case core.InputTypeString:
		_, ok := v.(string)
		return ok
	case core.InputTypeBoolean:
		_, ok := v.(bool)
		return ok
	case core.InputTypeNumber:
		switch v.(type) {
		case float64, float32, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64, json.Number:
			return true
		}
		return false
	}
	return true
}

// StructInputs derives input specifications from the exported fields of a
// struct type in declaration order. Names come from json tags, descriptions
// from description tags. Fields that do not map onto a string, number or
// boolean input are skipped.
func StructInputs(t reflect.Type) []core.InputSpecification {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	inputs := make([]core.InputSpecification, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, skip := fieldName(f)
		if skip {
			continue
		}
		typ, ok := inputType(f.Type)
		if !ok {
			continue
		}
		inputs = append(inputs, core.InputSpecification{
			Name:        name,
			Description: f.Tag.Get("description"),
			Type:        typ,
		})
	}
	return inputs
}

func fieldName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return f.Name, false
}

func inputType(t reflect.Type) (core.InputType, bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return core.InputTypeString, true
	case reflect.Bool:
		return core.InputTypeBoolean, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return core.InputTypeNumber, true
	}
	return "", false
}
