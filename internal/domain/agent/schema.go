// Package agent defines the tool-calling vocabulary shared by the chat loop and the
// model providers: tools with JSON Schema inputs, messages, and the provider contract.
package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/erp/gestao/internal/domain/shared"
)

// Schema is the subset of JSON Schema used to describe tool inputs
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
}

// Object describes an object with the given properties
func Object(props map[string]*Schema, required ...string) *Schema {
	if props == nil {
		props = map[string]*Schema{}
	}
	return &Schema{Type: "object", Properties: props, Required: required}
}

// String describes a string property
func String(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// Enum describes a string restricted to values
func Enum(description string, values ...string) *Schema {
	return &Schema{Type: "string", Description: description, Enum: values}
}

// Integer describes an integer property bounded by [lo, hi]
func Integer(description string, lo, hi float64) *Schema {
	return &Schema{Type: "integer", Description: description, Minimum: &lo, Maximum: &hi}
}

// Number describes a numeric property
func Number(description string) *Schema {
	return &Schema{Type: "number", Description: description}
}

// Boolean describes a boolean property
func Boolean(description string) *Schema {
	return &Schema{Type: "boolean", Description: description}
}

// Array describes a list of items
func Array(description string, items *Schema) *Schema {
	return &Schema{Type: "array", Description: description, Items: items}
}

// FreeObject describes an object with arbitrary keys
func FreeObject(description string) *Schema {
	return &Schema{Type: "object", Description: description}
}

// MarshalJSON keeps "properties" present on objects, which some providers require
func (s Schema) MarshalJSON() ([]byte, error) {
	type plain Schema
	if s.Type != "object" || len(s.Properties) > 0 {
		return json.Marshal(plain(s))
	}
	return json.Marshal(struct {
		plain
		Properties map[string]*Schema `json:"properties"`
	}{plain: plain(s), Properties: map[string]*Schema{}})
}

// Validate checks decoded arguments against the schema
func (s *Schema) Validate(args map[string]any) error {
	verr := &shared.ValidationError{}
	s.validateObject("", args, verr)
	return verr.Err()
}

func (s *Schema) validateObject(prefix string, obj map[string]any, verr *shared.ValidationError) {
	for _, name := range s.Required {
		if v, ok := obj[name]; !ok || v == nil {
			verr.Add(join(prefix, name), "campo obrigatório")
		}
	}
	for name, v := range obj {
		prop, ok := s.Properties[name]
		if !ok {
			if len(s.Properties) > 0 {
				verr.Add(join(prefix, name), "campo desconhecido")
			}
			continue
		}
		if v == nil {
			continue
		}
		prop.validateValue(join(prefix, name), v, verr)
	}
}

func (s *Schema) validateValue(path string, v any, verr *shared.ValidationError) {
	switch s.Type {
	case "string":
		str, ok := v.(string)
		if !ok {
			verr.Add(path, "texto esperado")
			return
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, str) {
			verr.Add(path, fmt.Sprintf("valor deve ser um de %v", s.Enum))
		}
	case "integer", "number":
		n, ok := v.(float64)
		if !ok {
			verr.Add(path, "número esperado")
			return
		}
		if s.Type == "integer" && n != math.Trunc(n) {
			verr.Add(path, "número inteiro esperado")
			return
		}
		if s.Minimum != nil && n < *s.Minimum {
			verr.Add(path, fmt.Sprintf("deve ser maior ou igual a %v", *s.Minimum))
		}
		if s.Maximum != nil && n > *s.Maximum {
			verr.Add(path, fmt.Sprintf("deve ser menor ou igual a %v", *s.Maximum))
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			verr.Add(path, "booleano esperado")
		}
	case "array":
		list, ok := v.([]any)
		if !ok {
			verr.Add(path, "lista esperada")
			return
		}
		if s.Items != nil {
			for i, item := range list {
				s.Items.validateValue(fmt.Sprintf("%s[%d]", path, i), item, verr)
			}
		}
	case "object":
		obj, ok := v.(map[string]any)
		if !ok {
			verr.Add(path, "objeto esperado")
			return
		}
		s.validateObject(path, obj, verr)
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
