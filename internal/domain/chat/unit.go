package chat

import "encoding/json"

// UnitKind identifies the renderable shape of a presentation unit.
type UnitKind string

const (
	UnitUserText  UnitKind = "user.text"
	UnitBotText   UnitKind = "bot.text"
	UnitToolCard  UnitKind = "tool.card"
	UnitValidated UnitKind = "challenge.validated"
	UnitSpinner   UnitKind = "spinner"
)

// Unit is one entry of the presentation state: the ephemeral, ordered sequence
// of renderable views derived from canonical history (or published live while
// a turn streams). Units are never persisted; clients rebuild them through
// Project.
type Unit struct {
	ID         string          `json:"id"`
	Kind       UnitKind        `json:"kind"`
	Text       string          `json:"text,omitempty"`
	ShowAvatar bool            `json:"show_avatar,omitempty"`
	Tool       ToolKind        `json:"tool,omitempty"`
	Props      json.RawMessage `json:"props,omitempty"`
}

// ToolUnit builds the card unit for a dispatched tool call.
func ToolUnit(id string, kind ToolKind, props json.RawMessage) Unit {
	return Unit{ID: id, Kind: UnitToolCard, Tool: kind, Props: props}
}

// BotTextUnit builds a plain assistant text unit.
func BotTextUnit(id, text string) Unit {
	return Unit{ID: id, Kind: UnitBotText, Text: text}
}

// UserTextUnit builds a user text unit flagged to show the user's identity.
func UserTextUnit(id, text string) Unit {
	return Unit{ID: id, Kind: UnitUserText, Text: text, ShowAvatar: true}
}
