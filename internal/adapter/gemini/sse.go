package gemini

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Strob0t/CodeMentor/internal/domain"
	"github.com/Strob0t/CodeMentor/internal/domain/chat"
	"github.com/Strob0t/CodeMentor/internal/port/modelstream"
)

// sseStream parses the alt=sse response body of streamGenerateContent into
// port events. One data line may carry several parts; parsed events are
// queued so Recv returns them one at a time in arrival order.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	pending []modelstream.Event
}

// maxSSELine bounds a single SSE data line. Code-heavy deltas can be large.
const maxSSELine = 1024 * 1024

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxSSELine)
	return &sseStream{body: body, scanner: scanner}
}

// Recv returns the next model event, or io.EOF when the stream completes.
func (s *sseStream) Recv() (modelstream.Event, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return modelstream.Event{}, fmt.Errorf("read stream: %w: %w", err, domain.ErrProviderFailure)
			}
			return modelstream.Event{}, io.EOF
		}

		line := strings.TrimSpace(s.scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue // comments, event names, blank keep-alive lines
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}

		events, err := parseChunk([]byte(data))
		if err != nil {
			return modelstream.Event{}, err
		}
		s.pending = append(s.pending, events...)
	}
}

// Close releases the underlying response body.
func (s *sseStream) Close() error {
	return s.body.Close()
}

// parseChunk converts one GenerateContentResponse chunk into port events.
func parseChunk(data []byte) ([]modelstream.Event, error) {
	var wr wireResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return nil, fmt.Errorf("unmarshal stream chunk: %w: %w", err, domain.ErrProviderFailure)
	}
	if wr.Error != nil {
		return nil, fmt.Errorf("gemini stream error %d: %s: %w", wr.Error.Code, wr.Error.Message, domain.ErrProviderFailure)
	}

	var events []modelstream.Event
	for _, cand := range wr.Candidates {
		for _, p := range cand.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				events = append(events, modelstream.Event{
					ToolCall: &modelstream.ToolCall{
						Name: chat.ToolKind(p.FunctionCall.Name),
						Args: p.FunctionCall.Args,
					},
				})
			case p.Text != "":
				events = append(events, modelstream.Event{TextDelta: p.Text})
			}
		}
	}
	return events, nil
}
