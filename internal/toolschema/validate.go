// Package toolschema validates an agent tool call's arguments against its
// declared JSON Schema before execution (spec.md §7's tool-argument
// contract), compiling schemas once and caching them by their source text,
// grounded on the teacher's pkg/pluginsdk.ValidateConfig /
// compileSchema (haasonsaas-nexus).
package toolschema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var schemaCache sync.Map // schema source text -> *jsonschema.Schema

// compile returns the compiled schema for the given raw JSON Schema text,
// reusing a previously compiled instance when the source text is identical.
func compile(name string, schema []byte) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(key)); err != nil {
		return nil, fmt.Errorf("toolschema: add resource %s: %w", name, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("toolschema: compile %s: %w", name, err)
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// Validate checks argumentsJSON (a tool call's raw arguments) against
// schema (the tool's declared JSON Schema). A validation failure returns a
// *ContractError carrying one human-readable line per violation, each
// formatted as "<field.path> is required." or "<field.path>: <detail>" per
// spec.md §7.
func Validate(toolName string, schema, argumentsJSON []byte) error {
	if len(schema) == 0 {
		return nil
	}

	compiled, err := compile(toolName+".schema.json", schema)
	if err != nil {
		return err
	}

	var decoded any
	if len(argumentsJSON) == 0 {
		argumentsJSON = []byte("{}")
	}
	if err := json.Unmarshal(argumentsJSON, &decoded); err != nil {
		return &ContractError{Tool: toolName, Messages: []string{fmt.Sprintf("arguments: invalid JSON: %v", err)}}
	}

	if err := compiled.Validate(decoded); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			return &ContractError{Tool: toolName, Messages: formatValidationError(verr)}
		}
		return &ContractError{Tool: toolName, Messages: []string{err.Error()}}
	}
	return nil
}

// ContractError reports one or more tool-argument schema violations.
type ContractError struct {
	Tool     string
	Messages []string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, strings.Join(e.Messages, "; "))
}

// formatValidationError flattens a jsonschema.ValidationError tree into one
// message per leaf cause: "<field.path> is required." for a missing
// property, "<field.path>: <message>" for anything else.
func formatValidationError(verr *jsonschema.ValidationError) []string {
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		out = append(out, formatLeaf(e)...)
	}
	walk(verr)
	if len(out) == 0 {
		out = []string{verr.Error()}
	}
	return out
}

func formatLeaf(e *jsonschema.ValidationError) []string {
	path := instancePath(e)

	if strings.HasSuffix(e.KeywordLocation, "/required") {
		if fields := missingProperties(e.Message); len(fields) > 0 {
			msgs := make([]string, len(fields))
			for i, field := range fields {
				msgs[i] = joinPath(path, field) + " is required."
			}
			return msgs
		}
	}

	return []string{joinPath(path, "") + ": " + e.Message}
}

func instancePath(e *jsonschema.ValidationError) string {
	if e.InstanceLocation == "" {
		return ""
	}
	return strings.Trim(e.InstanceLocation, "/")
}

func joinPath(base, field string) string {
	base = strings.ReplaceAll(base, "/", ".")
	switch {
	case base == "" && field == "":
		return "(root)"
	case base == "":
		return field
	case field == "":
		return base
	default:
		return base + "." + field
	}
}

// missingProperties extracts quoted property names out of this library's
// "missing properties: 'a', 'b'" required-keyword message.
func missingProperties(message string) []string {
	var names []string
	for {
		start := strings.IndexByte(message, '\'')
		if start < 0 {
			break
		}
		end := strings.IndexByte(message[start+1:], '\'')
		if end < 0 {
			break
		}
		names = append(names, message[start+1:start+1+end])
		message = message[start+1+end+1:]
	}
	return names
}
