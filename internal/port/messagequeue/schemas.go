package messagequeue

// TurnFinalizedPayload is the schema for chats.turn.finalized and
// chats.turn.failed messages. Downstream consumers (analytics, search
// indexing) treat it as an at-least-once notification keyed by TurnID.
type TurnFinalizedPayload struct {
	ChatID       string  `json:"chat_id"`
	TurnID       string  `json:"turn_id"`
	UserID       string  `json:"user_id"`
	Title        string  `json:"title"`
	MessageCount int     `json:"message_count"`
	ToolCalls    int     `json:"tool_calls"`
	Status       string  `json:"status"` // "completed" or "failed"
	Error        string  `json:"error,omitempty"`
	DurationSecs float64 `json:"duration_secs"`
}
