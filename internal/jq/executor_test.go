package jq

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestFilter_Run(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		input      string
		want       []any
		wantErr    bool
	}{
		{
			name:       "identity",
			expression: ".",
			input:      `{"count":1}`,
			want:       []any{map[string]any{"count": float64(1)}},
		},
		{
			name:       "field extraction",
			expression: ".items[0].id",
			input:      `{"items":[{"id":42}]}`,
			want:       []any{float64(42)},
		},
		{
			name:       "multiple outputs",
			expression: ".items[].name",
			input:      `{"items":[{"name":"a"},{"name":"b"}]}`,
			want:       []any{"a", "b"},
		},
		{
			name:       "no output",
			expression: "empty",
			input:      `{}`,
		},
		{
			name:       "runtime error",
			expression: ".foo + 1",
			input:      `{"foo":"bar"}`,
			wantErr:    true,
		},
		{
			name:       "invalid input",
			expression: ".",
			input:      `{`,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(context.Background(), tt.expression, json.RawMessage(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(tt.want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("Apply() = %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	if _, err := Compile(".[", 0, 0); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Compile("undefined_fn(1)", 0, 0); err == nil {
		t.Error("expected compile error")
	}
}

func TestFilter_InputSizeLimit(t *testing.T) {
	f, err := Compile(".", 0, 8)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	_, err = f.Run(context.Background(), json.RawMessage(`{"long":"value"}`))
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("expected size error, got %v", err)
	}
}
