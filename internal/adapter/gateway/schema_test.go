package gateway

import (
	"encoding/json"
	"testing"

	"ironbank/internal/domain"
)

func TestSchemaValidate(t *testing.T) {
	set := mustCompileSchemas(payloadSchemas)

	tests := []struct {
		name    string
		method  string
		payload string
		wantErr bool
	}{
		{"read ok", MethodRead, `{"path":"/x/a.json"}`, false},
		{"read missing path", MethodRead, `{}`, true},
		{"read empty path", MethodRead, `{"path":""}`, true},
		{"read wrong type", MethodRead, `{"path":42}`, true},
		{"delete ok", MethodDelete, `{"path":"a.json"}`, false},
		{"save ok", MethodSave, `{"filename":"a.json","content":""}`, false},
		{"save missing content", MethodSave, `{"filename":"a.json"}`, true},
		{"save empty filename", MethodSave, `{"filename":"","content":"{}"}`, true},
		{"list null payload", MethodList, `null`, false},
		{"list absent payload", MethodList, ``, false},
		{"list array payload", MethodList, `[]`, true},
		{"unknown method passes", "custom.echo", `[1,2]`, false},
		{"malformed json", MethodRead, `{"path":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := set.validate(tt.method, json.RawMessage(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && domain.ErrorCodeOf(err) != domain.CodeRPCInvalidPayload {
				t.Errorf("code = %s", domain.ErrorCodeOf(err))
			}
		})
	}
}

func TestCompileSchemasRejectsBrokenSchema(t *testing.T) {
	_, err := compileSchemas(map[string]string{"bad": `{"type": `})
	if err == nil {
		t.Fatal("expected compile error")
	}
}
