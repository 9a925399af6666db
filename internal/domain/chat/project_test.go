package chat

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func projectFixture() *Chat {
	return &Chat{
		ID: "c1",
		Messages: []Message{
			{Role: RoleSystem, Content: "internal setup"},
			{Role: RoleUser, Content: "show me a project structure"},
			{Role: RoleAssistant, Content: "Sure, here it is."},
			{
				Role:    RoleAssistant,
				Content: "Here is a recommended project structure for a web app in Go.",
				Display: &Display{
					Kind:  ToolShowProjectStructure,
					Props: json.RawMessage(`{"projectType":"web app","language":"Go"}`),
				},
			},
			{Role: RoleAssistant, Content: ChallengeCompletedNotice},
		},
	}
}

func TestProject(t *testing.T) {
	units := Project(projectFixture())

	if len(units) != 4 {
		t.Fatalf("expected 4 units (system skipped), got %d", len(units))
	}
	if units[0].Kind != UnitUserText || !units[0].ShowAvatar {
		t.Errorf("unexpected user unit: %+v", units[0])
	}
	if units[1].Kind != UnitBotText || units[1].Text != "Sure, here it is." {
		t.Errorf("unexpected bot unit: %+v", units[1])
	}
	if units[2].Kind != UnitToolCard || units[2].Tool != ToolShowProjectStructure {
		t.Errorf("unexpected card unit: %+v", units[2])
	}
	if units[3].Kind != UnitValidated {
		t.Errorf("expected validated unit, got %+v", units[3])
	}
}

func TestProjectUnitIDsAreStable(t *testing.T) {
	c := projectFixture()
	first := Project(c)
	second := Project(c)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("projection must be deterministic for the same input")
	}
	// IDs derive from chat ID and position, not from message IDs.
	if first[0].ID != "c1-1" || first[3].ID != "c1-4" {
		t.Fatalf("unexpected unit IDs: %q, %q", first[0].ID, first[3].ID)
	}
}

func TestProjectUnknownDisplayKindFallsBack(t *testing.T) {
	c := &Chat{
		ID: "c1",
		Messages: []Message{
			{
				Role:    RoleAssistant,
				Content: "fallback text",
				Display: &Display{Kind: "nonexistentTool", Props: json.RawMessage(`{}`)},
			},
		},
	}
	units := Project(c)
	if len(units) != 1 || units[0].Kind != UnitBotText {
		t.Fatalf("unrecognized display must fall back to bot text, got %+v", units)
	}
}

func TestProjectEmptyChat(t *testing.T) {
	if units := Project(&Chat{ID: "c1"}); len(units) != 0 {
		t.Fatalf("expected no units, got %d", len(units))
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{
			name:     "first user message",
			messages: []Message{{Role: RoleUser, Content: "Help me debug"}},
			want:     "Help me debug",
		},
		{
			name: "skips assistant messages",
			messages: []Message{
				{Role: RoleAssistant, Content: "greeting"},
				{Role: RoleUser, Content: "actual question"},
			},
			want: "actual question",
		},
		{
			name:     "no user messages",
			messages: []Message{{Role: RoleAssistant, Content: "hello"}},
			want:     "New Chat",
		},
		{
			name:     "empty",
			messages: nil,
			want:     "New Chat",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.messages); got != tt.want {
				t.Errorf("DeriveTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeriveTitleTruncates(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	title := DeriveTitle([]Message{{Role: RoleUser, Content: string(long)}})
	if len(title) != 100 {
		t.Fatalf("expected 100-char title, got %d", len(title))
	}
}

func TestDeriveTitleTruncatesOnRuneBoundary(t *testing.T) {
	// 99 ASCII bytes followed by multi-byte runes: a byte-boundary cut at
	// 100 would land inside the first é.
	content := strings.Repeat("a", 99) + strings.Repeat("é", 10)
	title := DeriveTitle([]Message{{Role: RoleUser, Content: content}})
	if !utf8.ValidString(title) {
		t.Fatalf("truncated title is not valid UTF-8: %q", title)
	}
	if len(title) > 100 {
		t.Fatalf("expected at most 100 bytes, got %d", len(title))
	}
	if title != strings.Repeat("a", 99) {
		t.Fatalf("expected the cut to back off to the rune boundary, got %q", title)
	}
}
