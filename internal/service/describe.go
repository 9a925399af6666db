package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Strob0t/CodeMentor/internal/domain"
	"github.com/Strob0t/CodeMentor/internal/stream"
)

// cannedBookList is returned for empty image input, which stands in for
// attachment kinds the vision model does not accept yet.
const cannedBookList = `The books in this image are:

1. The Little Prince by Antoine de Saint-Exupéry
2. The Prophet by Kahlil Gibran
3. Man's Search for Meaning by Viktor Frankl
4. The Alchemist by Paulo Coelho
5. The Kite Runner by Khaled Hosseini
6. To Kill a Mockingbird by Harper Lee
7. The Catcher in the Rye by J.D. Salinger
8. The Great Gatsby by F. Scott Fitzgerald
9. 1984 by George Orwell
10. Animal Farm by George Orwell`

// visionPrompt is the fixed instruction sent with every image.
const visionPrompt = "List the books in this image."

// Description is the live result of an image description request. Spinner
// reports busy state; Text carries the description once the model answers.
type Description struct {
	ID      string
	Spinner *stream.Stream[bool]
	Text    *stream.Stream[string]
}

func failedDescription(err error) *Description {
	d := &Description{
		ID:      uuid.NewString(),
		Spinner: stream.New[bool](),
		Text:    stream.New[string](),
	}
	d.Spinner.Fail(err)
	d.Text.Fail(err)
	return d
}

// DescribeImage runs the vision model over a base64 PNG and records the
// description as a pending interaction on the chat, to be folded into the
// next user turn. An empty image yields a canned answer after a simulated
// delay. Canonical history gains no message; only the interaction list and
// the persistence hook are touched.
func (s *ChatService) DescribeImage(ctx context.Context, chatID, userID, imageBase64 string) (*Description, error) {
	cc, err := s.context(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if err := s.gate.Admit(ctx, userID); err != nil {
		slog.Warn("describe rejected by admission gate", "chat_id", chatID, "user_id", userID, "error", err)
		if s.metrics != nil {
			s.metrics.TurnsRejected.Add(ctx, 1)
		}
		return failedDescription(fmt.Errorf("%s: %w", rateLimitedMessage, domain.ErrRateLimited)), nil
	}

	d := &Description{
		ID:      uuid.NewString(),
		Spinner: stream.New[bool](),
		Text:    stream.New[string](),
	}
	d.Spinner.Update(true)

	go s.runDescribe(context.WithoutCancel(ctx), cc, d, imageBase64)

	return d, nil
}

func (s *ChatService) runDescribe(ctx context.Context, cc *ChatContext, d *Description, imageBase64 string) {
	var text string
	if imageBase64 == "" {
		if !s.sleep(ctx, s.cfg.SimulatedDelay) {
			s.failDescribe(d, ctx.Err())
			return
		}
		text = cannedBookList
	} else {
		var err error
		text, err = s.llm.DescribeImage(ctx, visionPrompt, imageBase64)
		if err != nil {
			s.failDescribe(d, fmt.Errorf("describe image: %w", err))
			return
		}
	}

	cc.mu.Lock()
	// Replace, not append: the description supersedes any earlier pending
	// interaction.
	cc.chat.Interactions = []string{text}
	cc.mu.Unlock()

	s.persist(ctx, cc)

	d.Spinner.Done(false)
	d.Text.Done(text)
}

func (s *ChatService) failDescribe(d *Description, cause error) {
	slog.Error("describe image failed", "error", cause)
	userErr := errors.New(rateLimitedMessage)
	d.Spinner.Fail(userErr)
	d.Text.Fail(userErr)
}
