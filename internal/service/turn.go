package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/CodeMentor/internal/adapter/otel"
	"github.com/Strob0t/CodeMentor/internal/adapter/ws"
	"github.com/Strob0t/CodeMentor/internal/domain"
	"github.com/Strob0t/CodeMentor/internal/domain/chat"
	"github.com/Strob0t/CodeMentor/internal/port/messagequeue"
	"github.com/Strob0t/CodeMentor/internal/port/modelstream"
	"github.com/Strob0t/CodeMentor/internal/stream"
)

// rateLimitedMessage is the single generic user-facing failure text. The
// internal cause is logged, never surfaced.
const rateLimitedMessage = "The AI got rate limited, please try again later."

// Turn is one user-input cycle. Text and Units are the live channels:
// best-effort previews that always reach a terminal state, success or error.
// The canonical history behind them is readable mid-turn via
// ChatService.History and durable only once the turn finalizes.
type Turn struct {
	ID     string
	ChatID string
	Text   *stream.Stream[string]
	Units  *stream.Stream[[]chat.Unit]
}

// failedTurn builds a turn whose channels are already in the error terminal
// state, used when the turn is rejected before any state mutation.
func failedTurn(chatID string, err error) *Turn {
	t := &Turn{
		ID:     uuid.NewString(),
		ChatID: chatID,
		Text:   stream.New[string](),
		Units:  stream.New[[]chat.Unit](),
	}
	t.Text.Fail(err)
	t.Units.Fail(err)
	return t
}

// SubmitTurn processes one user turn. The returned Turn always carries live
// channels that reach a terminal state; admission failures are reported on
// those channels (with no history mutation), not by the error return. A
// non-nil error is returned only when the chat itself cannot be resolved.
func (s *ChatService) SubmitTurn(ctx context.Context, chatID, userID, content string) (*Turn, error) {
	cc, err := s.context(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if err := s.gate.Admit(ctx, userID); err != nil {
		slog.Warn("turn rejected by admission gate", "chat_id", chatID, "user_id", userID, "error", err)
		if s.metrics != nil {
			s.metrics.TurnsRejected.Add(ctx, 1)
		}
		return failedTurn(chatID, fmt.Errorf("%s: %w", rateLimitedMessage, domain.ErrRateLimited)), nil
	}

	// One in-flight turn per conversation. A concurrent turn is a caller
	// error, rejected before any mutation.
	if !cc.turnSem.TryAcquire(1) {
		slog.Warn("concurrent turn rejected", "chat_id", chatID)
		return failedTurn(chatID, fmt.Errorf("chat %s: %w", chatID, domain.ErrConflict)), nil
	}

	turn := &Turn{
		ID:     uuid.NewString(),
		ChatID: chatID,
		Text:   stream.New[string](),
		Units:  stream.New[[]chat.Unit](),
	}

	// Fold pending out-of-band interactions into the user message, then
	// clear them.
	cc.mu.Lock()
	userContent := content
	if len(cc.chat.Interactions) > 0 {
		userContent = strings.Join(cc.chat.Interactions, "\n\n") + "\n\n" + content
		cc.chat.Interactions = nil
	}
	cc.chat.Messages = append(cc.chat.Messages, chat.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      chat.RoleUser,
		Content:   userContent,
		CreatedAt: s.now().UTC(),
	})
	history := historyForModel(cc.chat.Messages)
	cc.mu.Unlock()

	if s.metrics != nil {
		s.metrics.TurnsStarted.Add(ctx, 1)
	}
	s.hub.BroadcastEvent(ctx, ws.EventTurnStarted, ws.TurnStartedEvent{ChatID: chatID, TurnID: turn.ID})

	// The stream is consumed on a task owned by the service, detached from
	// the request's cancellation but keeping its values (request ID).
	go s.runTurn(context.WithoutCancel(ctx), cc, turn, history)

	return turn, nil
}

// historyForModel strips display metadata and system messages down to the
// role/content pairs the model receives.
func historyForModel(messages []chat.Message) []modelstream.ChatMessage {
	result := make([]modelstream.ChatMessage, 0, len(messages))
	for i := range messages {
		if messages[i].Role == chat.RoleSystem {
			continue
		}
		result = append(result, modelstream.ChatMessage{
			Role:    messages[i].Role,
			Content: messages[i].Content,
		})
	}
	return result
}

// turnState tracks the mutable per-turn streaming state shared between the
// event loop and the dispatcher.
type turnState struct {
	turn  *Turn
	cc    *ChatContext
	accum strings.Builder
	units []chat.Unit
	// runningMsg is the index of the assistant message being amended by text
	// deltas, or -1 when the next delta must append a fresh message.
	runningMsg  int
	runningUnit int
	// runStart is the accumulator offset where the current text run begins.
	// The running message holds accum[runStart:]; the turn's Text channel
	// always carries the full accumulator.
	runStart  int
	toolCalls int
}

// runTurn drives one model inference call and fans its output into the text
// accumulator, the presentation channel, and canonical history. It always
// finalizes every channel, success or error.
func (s *ChatService) runTurn(ctx context.Context, cc *ChatContext, turn *Turn, history []modelstream.ChatMessage) {
	defer cc.turnSem.Release(1)

	ctx, span := otel.StartTurnSpan(ctx, turn.ChatID, turn.ID)
	defer span.End()
	started := s.now()

	st := &turnState{turn: turn, cc: cc, runningMsg: -1, runningUnit: -1}

	ms, err := s.llm.StreamChat(ctx, modelstream.ChatRequest{
		System:      s.systemPrompt(),
		Messages:    history,
		Tools:       chat.Schemas(),
		Temperature: s.temp,
	})
	if err != nil {
		s.finalizeError(ctx, st, fmt.Errorf("start stream: %w", err))
		return
	}
	defer func() { _ = ms.Close() }()

	for {
		ev, err := ms.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.finalizeError(ctx, st, fmt.Errorf("consume stream: %w", err))
			return
		}

		switch {
		case ev.ToolCall != nil:
			// Dispatch before consuming further events: the dispatch
			// mutates canonical history that later deltas depend on.
			if err := s.dispatch(ctx, st, ev.ToolCall); err != nil {
				s.finalizeError(ctx, st, err)
				return
			}
		case ev.TextDelta != "":
			s.applyDelta(ctx, st, ev.TextDelta)
		}
	}

	s.finalize(ctx, st, started)
}

// applyDelta appends a text delta to the accumulator, amends the running
// assistant message in canonical history, and publishes fresh snapshots on
// the text and presentation channels.
func (s *ChatService) applyDelta(ctx context.Context, st *turnState, delta string) {
	st.accum.WriteString(delta)
	text := st.accum.String()
	runText := text[st.runStart:]

	cc := st.cc
	cc.mu.Lock()
	if st.runningMsg < 0 {
		cc.chat.Messages = append(cc.chat.Messages, chat.Message{
			ID:        uuid.NewString(),
			ChatID:    cc.chat.ID,
			Role:      chat.RoleAssistant,
			Content:   runText,
			CreatedAt: s.now().UTC(),
		})
		st.runningMsg = len(cc.chat.Messages) - 1
	} else {
		// Amend in place: repeated deltas update the one running assistant
		// message rather than appending a new message per delta.
		cc.chat.Messages[st.runningMsg].Content = runText
	}
	msgID := cc.chat.Messages[st.runningMsg].ID
	cc.mu.Unlock()

	if st.runningUnit < 0 {
		st.units = append(st.units, chat.BotTextUnit(msgID, runText))
		st.runningUnit = len(st.units) - 1
	} else {
		st.units[st.runningUnit].Text = runText
	}

	st.turn.Text.Update(text)
	st.turn.Units.Update(append([]chat.Unit(nil), st.units...))
	s.hub.BroadcastEvent(ctx, ws.EventTurnText, ws.TurnTextEvent{ChatID: st.turn.ChatID, TurnID: st.turn.ID, Text: text})

	if s.metrics != nil {
		s.metrics.StreamedChars.Add(ctx, int64(len(delta)))
	}
}

// finalize commits the turn: both channels are marked done, the persistence
// hook fires, and the finalized event is published.
func (s *ChatService) finalize(ctx context.Context, st *turnState, started time.Time) {
	st.turn.Text.Done(st.accum.String())
	st.turn.Units.Done(append([]chat.Unit(nil), st.units...))

	s.persist(ctx, st.cc)
	snap := st.cc.snapshot()

	duration := s.now().Sub(started)
	if s.metrics != nil {
		s.metrics.TurnsCompleted.Add(ctx, 1)
		s.metrics.TurnDuration.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("status", "completed")))
	}

	s.hub.BroadcastEvent(ctx, ws.EventTurnFinished, ws.TurnFinishedEvent{
		ChatID: st.turn.ChatID,
		TurnID: st.turn.ID,
		Status: "completed",
	})
	s.publishTurnEvent(ctx, messagequeue.SubjectTurnFinalized, messagequeue.TurnFinalizedPayload{
		ChatID:       snap.ID,
		TurnID:       st.turn.ID,
		UserID:       snap.UserID,
		Title:        snap.Title,
		MessageCount: len(snap.Messages),
		ToolCalls:    st.toolCalls,
		Status:       "completed",
		DurationSecs: duration.Seconds(),
	})

	slog.Info("turn finalized",
		"chat_id", st.turn.ChatID,
		"turn_id", st.turn.ID,
		"messages", len(snap.Messages),
		"tool_calls", st.toolCalls,
		"duration", duration,
	)
}

// finalizeError fails both channels with the single generic user-facing
// message. Partial progress already committed to canonical history stays,
// and the persistence hook still fires so it survives a restart.
func (s *ChatService) finalizeError(ctx context.Context, st *turnState, cause error) {
	slog.Error("turn failed", "chat_id", st.turn.ChatID, "turn_id", st.turn.ID, "error", cause)

	userErr := errors.New(rateLimitedMessage)
	st.turn.Text.Fail(userErr)
	st.turn.Units.Fail(userErr)

	s.persist(ctx, st.cc)
	snap := st.cc.snapshot()

	if s.metrics != nil {
		s.metrics.TurnsFailed.Add(ctx, 1)
	}
	s.hub.BroadcastEvent(ctx, ws.EventTurnFinished, ws.TurnFinishedEvent{
		ChatID: st.turn.ChatID,
		TurnID: st.turn.ID,
		Status: "failed",
		Error:  rateLimitedMessage,
	})
	s.publishTurnEvent(ctx, messagequeue.SubjectTurnFailed, messagequeue.TurnFinalizedPayload{
		ChatID:       snap.ID,
		TurnID:       st.turn.ID,
		UserID:       snap.UserID,
		Title:        snap.Title,
		MessageCount: len(snap.Messages),
		ToolCalls:    st.toolCalls,
		Status:       "failed",
		Error:        cause.Error(),
	})
}

func marshalPayload(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return raw, nil
}
