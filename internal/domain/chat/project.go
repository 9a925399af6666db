package chat

import "fmt"

// ChallengeCompletedNotice is the sentinel assistant content appended when the
// verification challenge completes. The projector matches it exactly to emit
// the validated confirmation unit.
const ChallengeCompletedNotice = "The code has been successfully validated."

// Project reconstructs the presentation state from canonical history alone.
// It is a pure function of its input: the same Chat always yields the same
// unit sequence. This is the only sanctioned rehydration path; the live
// per-turn streams are a best-effort preview, not a source of truth.
//
// Rules, per message in order:
//   - system messages are skipped
//   - assistant messages with a recognized display kind emit a tool card with
//     the stored props verbatim
//   - an assistant message whose content equals ChallengeCompletedNotice emits
//     the validated confirmation unit
//   - any other assistant (or tool) message emits a plain bot text unit
//   - user messages emit a user text unit with the avatar flag set
func Project(c *Chat) []Unit {
	units := make([]Unit, 0, len(c.Messages))
	for i := range c.Messages {
		m := &c.Messages[i]
		if m.Role == RoleSystem {
			continue
		}
		id := fmt.Sprintf("%s-%d", c.ID, i)

		switch {
		case m.Role == RoleAssistant && m.Display != nil && m.Display.Kind.Valid():
			units = append(units, ToolUnit(id, m.Display.Kind, m.Display.Props))
		case m.Role == RoleAssistant && m.Content == ChallengeCompletedNotice:
			units = append(units, Unit{ID: id, Kind: UnitValidated})
		case m.Role == RoleUser:
			units = append(units, UserTextUnit(id, m.Content))
		default:
			units = append(units, BotTextUnit(id, m.Content))
		}
	}
	return units
}
