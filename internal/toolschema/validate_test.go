package toolschema

import (
	"strings"
	"testing"
)

const sampleSchema = `{
  "type": "object",
  "properties": {
    "sessionId": {"type": "string"},
    "dumpId": {"type": "string"}
  },
  "required": ["sessionId", "dumpId"]
}`

func TestValidateAcceptsConformingArguments(t *testing.T) {
	err := Validate("get_thread", []byte(sampleSchema), []byte(`{"sessionId":"s1","dumpId":"d1"}`))
	if err != nil {
		t.Fatalf("expected valid arguments to pass, got %v", err)
	}
}

func TestValidateReportsMissingRequiredField(t *testing.T) {
	err := Validate("get_thread", []byte(sampleSchema), []byte(`{"sessionId":"s1"}`))
	if err == nil {
		t.Fatalf("expected a contract error for missing dumpId")
	}
	ce, ok := err.(*ContractError)
	if !ok {
		t.Fatalf("expected *ContractError, got %T", err)
	}
	found := false
	for _, m := range ce.Messages {
		if strings.Contains(m, "dumpId") && strings.HasSuffix(m, "is required.") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a 'dumpId is required.' message, got %v", ce.Messages)
	}
}

func TestValidateRejectsInvalidJSON(t *testing.T) {
	err := Validate("get_thread", []byte(sampleSchema), []byte(`not json`))
	if err == nil {
		t.Fatalf("expected invalid JSON arguments to fail validation")
	}
}

func TestValidateSkipsWhenNoSchemaDeclared(t *testing.T) {
	if err := Validate("no_schema_tool", nil, []byte(`{"anything":true}`)); err != nil {
		t.Fatalf("expected no schema to mean no validation, got %v", err)
	}
}

func TestCompileCachesBySchemaText(t *testing.T) {
	s1, err := compile("cache_test.schema.json", []byte(sampleSchema))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s2, err := compile("cache_test.schema.json", []byte(sampleSchema))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if s1 != s2 {
		t.Fatalf("expected identical schema text to return the cached compiled schema")
	}
}
