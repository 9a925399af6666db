package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Strob0t/CodeMentor/internal/adapter/ws"
	"github.com/Strob0t/CodeMentor/internal/domain"
	"github.com/Strob0t/CodeMentor/internal/domain/chat"
	"github.com/Strob0t/CodeMentor/internal/stream"
)

// ChallengeResult is the live outcome of a challenge step. Status finalizes
// independently of Display: Status carries the state machine value, Display
// the presentation placeholder that resolves after the simulated delay.
type ChallengeResult struct {
	ID      string
	Status  *stream.Stream[chat.ChallengeStatus]
	Display *stream.Stream[chat.Unit]
}

func newChallengeResult() *ChallengeResult {
	return &ChallengeResult{
		ID:      uuid.NewString(),
		Status:  stream.New[chat.ChallengeStatus](),
		Display: stream.New[chat.Unit](),
	}
}

// IssueChallenge moves the sub-flow from requires_code to in_progress,
// appends the issuance notice to canonical history, and returns a placeholder
// that resolves after the simulated out-of-band delivery delay. No real code
// is delivered; the sub-flow is a state machine stub, not a security control.
func (s *ChatService) IssueChallenge(ctx context.Context, chatID string) (*ChallengeResult, error) {
	cc, err := s.context(ctx, chatID)
	if err != nil {
		return nil, err
	}

	cc.mu.Lock()
	if !cc.challenge.CanTransition(chat.ChallengeInProgress) {
		status := cc.challenge
		cc.mu.Unlock()
		return nil, fmt.Errorf("issue challenge from %q: %w", status, domain.ErrConflict)
	}
	cc.challenge = chat.ChallengeInProgress
	msg := chat.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      chat.RoleAssistant,
		Content:   chat.ChallengeIssuedNotice,
		CreatedAt: s.now().UTC(),
	}
	cc.chat.Messages = append(cc.chat.Messages, msg)
	cc.mu.Unlock()

	s.hub.BroadcastEvent(ctx, ws.EventChallengeStatus, ws.ChallengeStatusEvent{
		ChatID: chatID,
		Status: chat.ChallengeInProgress,
	})
	s.persist(ctx, cc)

	res := newChallengeResult()
	res.Status.Done(chat.ChallengeRequiresCode)

	// Detached from the request's cancellation: the placeholder always
	// resolves once the simulated delivery delay elapses.
	go func(ctx context.Context) {
		s.sleep(ctx, s.cfg.SimulatedDelay)
		res.Display.Done(chat.BotTextUnit(msg.ID, chat.ChallengeIssuedNotice))
	}(context.WithoutCancel(ctx))

	return res, nil
}

// ValidateChallenge completes the sub-flow: after the simulated delay it
// appends the completion notice to canonical history and resolves the
// placeholder to the confirmation view. Calling it before IssueChallenge is
// rejected with ErrConflict rather than left undefined.
func (s *ChatService) ValidateChallenge(ctx context.Context, chatID string) (*ChallengeResult, error) {
	cc, err := s.context(ctx, chatID)
	if err != nil {
		return nil, err
	}

	cc.mu.Lock()
	if !cc.challenge.CanTransition(chat.ChallengeCompleted) {
		status := cc.challenge
		cc.mu.Unlock()
		return nil, fmt.Errorf("validate challenge from %q: %w", status, domain.ErrConflict)
	}
	cc.mu.Unlock()

	res := newChallengeResult()
	res.Status.Update(chat.ChallengeInProgress)

	go func(ctx context.Context) {
		s.sleep(ctx, s.cfg.SimulatedDelay)

		cc.mu.Lock()
		// Re-checked at commit time: a concurrent validation that won the
		// race completes the sub-flow exactly once.
		if !cc.challenge.CanTransition(chat.ChallengeCompleted) {
			status := cc.challenge
			cc.mu.Unlock()
			err := fmt.Errorf("validate challenge from %q: %w", status, domain.ErrConflict)
			res.Status.Fail(err)
			res.Display.Fail(err)
			return
		}
		cc.challenge = chat.ChallengeCompleted
		msg := chat.Message{
			ID:        uuid.NewString(),
			ChatID:    chatID,
			Role:      chat.RoleAssistant,
			Content:   chat.ChallengeCompletedNotice,
			CreatedAt: s.now().UTC(),
		}
		cc.chat.Messages = append(cc.chat.Messages, msg)
		cc.mu.Unlock()

		s.hub.BroadcastEvent(ctx, ws.EventChallengeStatus, ws.ChallengeStatusEvent{
			ChatID: chatID,
			Status: chat.ChallengeCompleted,
		})
		s.persist(ctx, cc)

		unit := chat.Unit{ID: msg.ID, Kind: chat.UnitValidated}
		res.Display.Done(unit)
		res.Status.Done(chat.ChallengeCompleted)
		slog.Info("challenge completed", "chat_id", chatID)
	}(context.WithoutCancel(ctx))

	return res, nil
}

// ChallengeStatus reports the current sub-flow state for a chat.
func (s *ChatService) ChallengeStatus(ctx context.Context, chatID string) (chat.ChallengeStatus, error) {
	cc, err := s.context(ctx, chatID)
	if err != nil {
		return "", err
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.challenge, nil
}
