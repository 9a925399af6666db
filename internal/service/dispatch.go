package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Strob0t/CodeMentor/internal/adapter/otel"
	"github.com/Strob0t/CodeMentor/internal/adapter/ws"
	"github.com/Strob0t/CodeMentor/internal/domain/chat"
	"github.com/Strob0t/CodeMentor/internal/port/modelstream"
)

// dispatch handles one tool call emitted by the model: validates the raw
// arguments against the tool's schema, appends exactly one assistant message
// carrying the display payload to canonical history, and publishes exactly
// one card unit on the presentation channel. A schema violation fails the
// whole turn.
func (s *ChatService) dispatch(ctx context.Context, st *turnState, call *modelstream.ToolCall) error {
	ctx, span := otel.StartToolDispatchSpan(ctx, st.turn.ID, string(call.Name))
	defer span.End()

	props, err := chat.ValidateArgs(call.Name, call.Args)
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", call.Name, err)
	}

	summary := chat.Summary(call.Name, props)

	cc := st.cc
	cc.mu.Lock()
	msg := chat.Message{
		ID:        uuid.NewString(),
		ChatID:    cc.chat.ID,
		Role:      chat.RoleAssistant,
		Content:   summary,
		Display:   &chat.Display{Kind: call.Name, Props: props},
		CreatedAt: s.now().UTC(),
	}
	cc.chat.Messages = append(cc.chat.Messages, msg)
	// Any pending interactions were folded into this turn's user message
	// already; a tool dispatch also clears whatever arrived mid-turn.
	cc.chat.Interactions = nil
	cc.mu.Unlock()

	// A dispatch closes the running text message. Later deltas start a new
	// bubble below the card, holding only the text streamed after it.
	st.runningMsg = -1
	st.runningUnit = -1
	st.runStart = st.accum.Len()
	st.toolCalls++

	unit := chat.ToolUnit(msg.ID, call.Name, props)
	st.units = append(st.units, unit)
	st.turn.Units.Update(append([]chat.Unit(nil), st.units...))
	s.hub.BroadcastEvent(ctx, ws.EventTurnUnit, ws.TurnUnitEvent{
		ChatID: st.turn.ChatID,
		TurnID: st.turn.ID,
		Unit:   unit,
	})

	if s.metrics != nil {
		s.metrics.ToolDispatches.Add(ctx, 1)
	}
	return nil
}
