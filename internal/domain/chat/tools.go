package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/CodeMentor/internal/domain"
)

// ToolKind identifies one of the built-in renderable tools. The set is closed:
// the dispatcher and the projector both match exhaustively on it.
type ToolKind string

const (
	ToolListTechnologies     ToolKind = "listTechnologies"
	ToolSuggestCodeSnippets  ToolKind = "suggestCodeSnippets"
	ToolShowProjectStructure ToolKind = "showProjectStructure"
	ToolAssistWithDebugging  ToolKind = "assistWithDebugging"
	ToolAssistWithSetup      ToolKind = "assistWithSetup"
	ToolProvideDocumentation ToolKind = "provideDocumentation"
)

// Kinds lists all built-in tool kinds in declaration order.
func Kinds() []ToolKind {
	return []ToolKind{
		ToolListTechnologies,
		ToolSuggestCodeSnippets,
		ToolShowProjectStructure,
		ToolAssistWithDebugging,
		ToolAssistWithSetup,
		ToolProvideDocumentation,
	}
}

// Valid reports whether k is one of the built-in tool kinds.
func (k ToolKind) Valid() bool {
	switch k {
	case ToolListTechnologies, ToolSuggestCodeSnippets, ToolShowProjectStructure,
		ToolAssistWithDebugging, ToolAssistWithSetup, ToolProvideDocumentation:
		return true
	}
	return false
}

// TechnologiesArgs are the arguments for listTechnologies.
type TechnologiesArgs struct {
	ProjectType  string   `json:"projectType"`
	Technologies []string `json:"technologies,omitempty"`
}

// SnippetsArgs are the arguments for suggestCodeSnippets.
type SnippetsArgs struct {
	Language    string   `json:"language"`
	Requirement string   `json:"requirement"`
	Snippets    []string `json:"snippets,omitempty"`
}

// StructureArgs are the arguments for showProjectStructure.
type StructureArgs struct {
	ProjectType string `json:"projectType"`
	Language    string `json:"language"`
}

// DebuggingArgs are the arguments for assistWithDebugging.
type DebuggingArgs struct {
	Code string `json:"code"`
}

// SetupArgs are the arguments for assistWithSetup.
type SetupArgs struct {
	Environment string `json:"environment"`
}

// DocumentationArgs are the arguments for provideDocumentation.
type DocumentationArgs struct {
	Topic string `json:"topic"`
}

// ToolSchema describes one tool to the model provider.
type ToolSchema struct {
	Name        ToolKind
	Description string
	// Required maps argument name to its description.
	Required map[string]string
}

// Schemas returns the declared schema set for all six built-in tools, in the
// shape the provider adapter turns into function declarations.
func Schemas() []ToolSchema {
	return []ToolSchema{
		{
			Name:        ToolListTechnologies,
			Description: "List recommended technologies for a project.",
			Required:    map[string]string{"projectType": "Type of project (e.g., web app, mobile app)"},
		},
		{
			Name:        ToolSuggestCodeSnippets,
			Description: "Provide code snippets based on the user's query.",
			Required: map[string]string{
				"language":    "Programming language of the snippets",
				"requirement": "Description of the code needed",
			},
		},
		{
			Name:        ToolShowProjectStructure,
			Description: "Show a recommended project structure.",
			Required: map[string]string{
				"projectType": "Type of project",
				"language":    "Primary implementation language",
			},
		},
		{
			Name:        ToolAssistWithDebugging,
			Description: "Assist with debugging a piece of code.",
			Required:    map[string]string{"code": "The code that needs debugging"},
		},
		{
			Name:        ToolAssistWithSetup,
			Description: "Help set up a development environment.",
			Required:    map[string]string{"environment": "Description of the environment (e.g., Docker, Node.js)"},
		},
		{
			Name:        ToolProvideDocumentation,
			Description: "Provide documentation for a given topic.",
			Required:    map[string]string{"topic": "The topic for which documentation is needed"},
		},
	}
}

// ValidateArgs checks raw tool-call arguments against the tool's schema.
// It returns the canonical re-marshaled props on success, or an error wrapping
// domain.ErrSchemaViolation naming the offending field.
func ValidateArgs(kind ToolKind, raw json.RawMessage) (json.RawMessage, error) {
	switch kind {
	case ToolListTechnologies:
		var a TechnologiesArgs
		return requireFields(kind, raw, &a, func() map[string]string {
			return map[string]string{"projectType": a.ProjectType}
		})
	case ToolSuggestCodeSnippets:
		var a SnippetsArgs
		return requireFields(kind, raw, &a, func() map[string]string {
			return map[string]string{"language": a.Language, "requirement": a.Requirement}
		})
	case ToolShowProjectStructure:
		var a StructureArgs
		return requireFields(kind, raw, &a, func() map[string]string {
			return map[string]string{"projectType": a.ProjectType, "language": a.Language}
		})
	case ToolAssistWithDebugging:
		var a DebuggingArgs
		return requireFields(kind, raw, &a, func() map[string]string {
			return map[string]string{"code": a.Code}
		})
	case ToolAssistWithSetup:
		var a SetupArgs
		return requireFields(kind, raw, &a, func() map[string]string {
			return map[string]string{"environment": a.Environment}
		})
	case ToolProvideDocumentation:
		var a DocumentationArgs
		return requireFields(kind, raw, &a, func() map[string]string {
			return map[string]string{"topic": a.Topic}
		})
	default:
		return nil, fmt.Errorf("unknown tool %q: %w", kind, domain.ErrSchemaViolation)
	}
}

// requireFields unmarshals raw into dst, then checks every required field is
// non-empty. fields is evaluated after unmarshaling so it sees the decoded
// values.
func requireFields(kind ToolKind, raw json.RawMessage, dst any, fields func() map[string]string) (json.RawMessage, error) {
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, fmt.Errorf("%s: malformed arguments: %w", kind, domain.ErrSchemaViolation)
	}
	for name, value := range fields() {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%s: missing required argument %q: %w", kind, name, domain.ErrSchemaViolation)
		}
	}
	props, err := json.Marshal(dst)
	if err != nil {
		return nil, fmt.Errorf("%s: re-marshal arguments: %w", kind, domain.ErrSchemaViolation)
	}
	return props, nil
}

// Summary renders the deterministic natural-language description of a tool
// call, stored as the content of the assistant message the dispatcher appends.
// Props must already have passed ValidateArgs for the same kind.
func Summary(kind ToolKind, props json.RawMessage) string {
	switch kind {
	case ToolListTechnologies:
		var a TechnologiesArgs
		_ = json.Unmarshal(props, &a)
		if len(a.Technologies) > 0 {
			return fmt.Sprintf("Here are some recommended technologies for your %s project: %s.",
				a.ProjectType, strings.Join(a.Technologies, ", "))
		}
		return fmt.Sprintf("Here are some recommended technologies for your %s project.", a.ProjectType)
	case ToolSuggestCodeSnippets:
		var a SnippetsArgs
		_ = json.Unmarshal(props, &a)
		return fmt.Sprintf("Here are some %s code snippets for: %s.", a.Language, a.Requirement)
	case ToolShowProjectStructure:
		var a StructureArgs
		_ = json.Unmarshal(props, &a)
		return fmt.Sprintf("Here is a recommended project structure for a %s in %s.", a.ProjectType, a.Language)
	case ToolAssistWithDebugging:
		var a DebuggingArgs
		_ = json.Unmarshal(props, &a)
		return fmt.Sprintf("Let's debug the code you shared:\n\n%s", a.Code)
	case ToolAssistWithSetup:
		var a SetupArgs
		_ = json.Unmarshal(props, &a)
		return fmt.Sprintf("Here is how to set up your %s environment.", a.Environment)
	case ToolProvideDocumentation:
		var a DocumentationArgs
		_ = json.Unmarshal(props, &a)
		return fmt.Sprintf("Here is documentation on %s.", a.Topic)
	default:
		return ""
	}
}
