package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ironbank/internal/domain"
)

// payloadSchemas describes the accepted request payload of each RPC method.
// Methods without an entry accept any payload.
var payloadSchemas = map[string]string{
	MethodList:          `{"type": "object"}`,
	MethodTutorialReset: `{"type": "object"}`,
	MethodTutorialGet:   `{"type": "object"}`,
	MethodDirectory:     `{"type": "object"}`,
	MethodDirectoryOpen: `{"type": "object"}`,
	MethodRead: `{
		"type": "object",
		"required": ["path"],
		"properties": {"path": {"type": "string", "minLength": 1}}
	}`,
	MethodDelete: `{
		"type": "object",
		"required": ["path"],
		"properties": {"path": {"type": "string", "minLength": 1}}
	}`,
	MethodSave: `{
		"type": "object",
		"required": ["filename", "content"],
		"properties": {
			"filename": {"type": "string", "minLength": 1},
			"content":  {"type": "string"}
		}
	}`,
}

// schemaSet holds compiled payload schemas keyed by method.
type schemaSet struct {
	schemas map[string]*jsonschema.Schema
}

func compileSchemas(raw map[string]string) (*schemaSet, error) {
	set := &schemaSet{schemas: make(map[string]*jsonschema.Schema, len(raw))}
	for method, src := range raw {
		url := "mem://rpc/" + method + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("add schema resource for %q: %w", method, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %q: %w", method, err)
		}
		set.schemas[method] = compiled
	}
	return set, nil
}

// mustCompileSchemas panics on a broken built-in schema.
func mustCompileSchemas(raw map[string]string) *schemaSet {
	set, err := compileSchemas(raw)
	if err != nil {
		panic(err)
	}
	return set
}

// validate checks payload against the method's schema. An absent or null
// payload is treated as an empty object.
func (s *schemaSet) validate(method string, payload json.RawMessage) error {
	schema, ok := s.schemas[method]
	if !ok {
		return nil
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = []byte("{}")
	}

	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return domain.NewDomainError("Gateway.validate", domain.ErrRPCInvalidPayload,
			fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := schema.Validate(v); err != nil {
		return domain.NewDomainError("Gateway.validate", domain.ErrRPCInvalidPayload,
			fmt.Sprintf("%s: %v", method, err))
	}
	return nil
}
