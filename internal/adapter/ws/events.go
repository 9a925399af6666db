package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/CodeMentor/internal/domain/chat"
)

// Event type constants for WebSocket messages.
const (
	EventTurnStarted     = "chat.turn.started"
	EventTurnText        = "chat.turn.text"
	EventTurnUnit        = "chat.turn.unit"
	EventTurnFinished    = "chat.turn.finished"
	EventChallengeStatus = "chat.challenge.status"
)

// TurnStartedEvent is broadcast when a user turn is admitted and streaming begins.
type TurnStartedEvent struct {
	ChatID string `json:"chat_id"`
	TurnID string `json:"turn_id"`
}

// TurnTextEvent carries the full text accumulator snapshot after a delta.
type TurnTextEvent struct {
	ChatID string `json:"chat_id"`
	TurnID string `json:"turn_id"`
	Text   string `json:"text"`
}

// TurnUnitEvent carries one presentation unit published during streaming.
type TurnUnitEvent struct {
	ChatID string    `json:"chat_id"`
	TurnID string    `json:"turn_id"`
	Unit   chat.Unit `json:"unit"`
}

// TurnFinishedEvent is broadcast when a turn reaches a terminal state.
type TurnFinishedEvent struct {
	ChatID string `json:"chat_id"`
	TurnID string `json:"turn_id"`
	Status string `json:"status"` // "completed" or "failed"
	Error  string `json:"error,omitempty"`
}

// ChallengeStatusEvent is broadcast on challenge sub-flow transitions.
type ChallengeStatusEvent struct {
	ChatID string               `json:"chat_id"`
	Status chat.ChallengeStatus `json:"status"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
