// Package parser validates and decodes model completions into extracted items.
//
// Parsing is all-or-nothing: a single malformed item rejects the whole
// completion, and no field is ever defaulted.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/xeipuuv/gojsonschema"
)

// completionSchema is the structure every accepted completion must have.
const completionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["function_calls"],
  "properties": {
    "function_calls": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["tool_name", "parameters"],
        "properties": {
          "tool_name": {"type": "string", "minLength": 1},
          "parameters": {"type": "object"}
        }
      }
    }
  }
}`

// Parser is safe for concurrent use.
type Parser struct {
	schema *gojsonschema.Schema
}

// New compiles the completion schema.
func New() (*Parser, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(completionSchema))
	if err != nil {
		return nil, fmt.Errorf("compile completion schema: %w", err)
	}
	return &Parser{schema: schema}, nil
}

// MustNew is like New but panics on error.
func MustNew() *Parser {
	p, err := New()
	if err != nil {
		panic(err)
	}
	return p
}

type wireCompletion struct {
	Summary       any `json:"summary"`
	FunctionCalls []struct {
		ToolName   string         `json:"tool_name"`
		Parameters map[string]any `json:"parameters"`
	} `json:"function_calls"`
}

// Parse extracts the ordered items from a completion.
// Every failure is a *domain.ParseError.
func (p *Parser) Parse(resp domain.ModelResponse) (*domain.Completion, error) {
	body := unfence(resp.Body)

	if len(body) == 0 {
		return nil, &domain.ParseError{Reason: "empty completion"}
	}
	if !json.Valid(body) {
		return nil, &domain.ParseError{Reason: "completion is not valid JSON"}
	}

	result, err := p.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, &domain.ParseError{Reason: "schema validation", Err: err}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, &domain.ParseError{Reason: strings.Join(msgs, "; ")}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var wire wireCompletion
	if err := dec.Decode(&wire); err != nil {
		return nil, &domain.ParseError{Reason: "decode completion", Err: err}
	}

	out := &domain.Completion{
		Items: make([]domain.ExtractedItem, 0, len(wire.FunctionCalls)),
	}
	if s, ok := wire.Summary.(string); ok {
		out.Summary = s
	}
	for _, fc := range wire.FunctionCalls {
		out.Items = append(out.Items, domain.ExtractedItem{
			ToolName:   fc.ToolName,
			Parameters: fc.Parameters,
		})
	}
	return out, nil
}

// unfence strips surrounding whitespace and a single Markdown code fence.
func unfence(body []byte) []byte {
	s := bytes.TrimSpace(body)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}
	nl := bytes.IndexByte(s, '\n')
	if nl < 0 || !bytes.HasSuffix(s, []byte("```")) || len(s) < nl+4 {
		return s
	}
	return bytes.TrimSpace(s[nl+1 : len(s)-3])
}
