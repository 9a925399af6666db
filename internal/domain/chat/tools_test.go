package chat

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Strob0t/CodeMentor/internal/domain"
)

func TestValidateArgs(t *testing.T) {
	tests := []struct {
		name    string
		kind    ToolKind
		raw     string
		wantErr bool
	}{
		{"technologies ok", ToolListTechnologies, `{"projectType":"web app"}`, false},
		{"technologies missing field", ToolListTechnologies, `{}`, true},
		{"snippets ok", ToolSuggestCodeSnippets, `{"language":"Go","requirement":"http client"}`, false},
		{"snippets partial", ToolSuggestCodeSnippets, `{"language":"Go"}`, true},
		{"structure ok", ToolShowProjectStructure, `{"projectType":"web app","language":"Go"}`, false},
		{"structure blank value", ToolShowProjectStructure, `{"projectType":"  ","language":"Go"}`, true},
		{"debugging ok", ToolAssistWithDebugging, `{"code":"panic()"}`, false},
		{"setup ok", ToolAssistWithSetup, `{"environment":"Docker"}`, false},
		{"documentation ok", ToolProvideDocumentation, `{"topic":"goroutines"}`, false},
		{"malformed json", ToolAssistWithSetup, `{not json`, true},
		{"unknown tool", ToolKind("openFridge"), `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateArgs(tt.kind, json.RawMessage(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrSchemaViolation) {
					t.Fatalf("expected ErrSchemaViolation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateArgsCanonicalizesProps(t *testing.T) {
	props, err := ValidateArgs(ToolShowProjectStructure,
		json.RawMessage(`{"language":"Go","projectType":"web app","extraneous":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var a StructureArgs
	if err := json.Unmarshal(props, &a); err != nil {
		t.Fatalf("props not valid JSON: %v", err)
	}
	if a.ProjectType != "web app" || a.Language != "Go" {
		t.Fatalf("unexpected canonical props: %+v", a)
	}
	// Unknown keys are dropped by the round-trip.
	var m map[string]any
	_ = json.Unmarshal(props, &m)
	if _, ok := m["extraneous"]; ok {
		t.Fatal("expected unknown keys to be dropped")
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		kind  ToolKind
		props string
		want  string
	}{
		{
			ToolShowProjectStructure,
			`{"projectType":"web app","language":"Go"}`,
			"Here is a recommended project structure for a web app in Go.",
		},
		{
			ToolListTechnologies,
			`{"projectType":"mobile app"}`,
			"Here are some recommended technologies for your mobile app project.",
		},
		{
			ToolListTechnologies,
			`{"projectType":"web app","technologies":["Go","Postgres"]}`,
			"Here are some recommended technologies for your web app project: Go, Postgres.",
		},
		{
			ToolAssistWithSetup,
			`{"environment":"Docker"}`,
			"Here is how to set up your Docker environment.",
		},
		{
			ToolProvideDocumentation,
			`{"topic":"channels"}`,
			"Here is documentation on channels.",
		},
	}
	for _, tt := range tests {
		if got := Summary(tt.kind, json.RawMessage(tt.props)); got != tt.want {
			t.Errorf("Summary(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestSchemasCoverAllKinds(t *testing.T) {
	schemas := Schemas()
	if len(schemas) != len(Kinds()) {
		t.Fatalf("expected %d schemas, got %d", len(Kinds()), len(schemas))
	}
	seen := make(map[ToolKind]bool)
	for _, s := range schemas {
		if !s.Name.Valid() {
			t.Errorf("schema for invalid kind %q", s.Name)
		}
		if s.Description == "" || len(s.Required) == 0 {
			t.Errorf("incomplete schema for %q", s.Name)
		}
		seen[s.Name] = true
	}
	if len(seen) != len(Kinds()) {
		t.Fatal("duplicate or missing schema names")
	}
}
