// Package gemini provides an HTTP client for the Google Generative Language
// API, implementing the modelstream provider port. Streaming uses the
// server-sent events form of streamGenerateContent.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/CodeMentor/internal/config"
	"github.com/Strob0t/CodeMentor/internal/domain"
	"github.com/Strob0t/CodeMentor/internal/domain/chat"
	"github.com/Strob0t/CodeMentor/internal/port/modelstream"
	"github.com/Strob0t/CodeMentor/internal/resilience"
)

// Client talks to the Generative Language API.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	visionModel string
	temperature float64
	httpClient  *http.Client
	breaker     *resilience.Breaker
}

// NewClient creates a Gemini client from config. The HTTP client has no
// overall timeout: a chat stream stays open for the duration of the model's
// response, so only the dial/header phases are bounded.
func NewClient(cfg config.Gemini) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// --- wire types -----------------------------------------------------------

type wirePart struct {
	Text         string            `json:"text,omitempty"`
	InlineData   *wireInlineData   `json:"inline_data,omitempty"`
	FunctionCall *wireFunctionCall `json:"functionCall,omitempty"`
}

type wireInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type wireFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wireFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireRequest struct {
	SystemInstruction *wireContent  `json:"system_instruction,omitempty"`
	Contents          []wireContent `json:"contents"`
	Tools             []wireTools   `json:"tools,omitempty"`
	GenerationConfig  *wireGenCfg   `json:"generationConfig,omitempty"`
}

type wireTools struct {
	FunctionDeclarations []wireFunctionDecl `json:"function_declarations"`
}

type wireGenCfg struct {
	Temperature float64 `json:"temperature"`
}

type wireResponse struct {
	Candidates []struct {
		Content wireContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- request building -----------------------------------------------------

// toWireContents converts port messages to API contents. The API knows only
// the "user" and "model" roles; assistant maps to model, anything else to
// user.
func toWireContents(messages []modelstream.ChatMessage) []wireContent {
	contents := make([]wireContent, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == chat.RoleAssistant {
			role = "model"
		}
		contents = append(contents, wireContent{
			Role:  role,
			Parts: []wirePart{{Text: m.Content}},
		})
	}
	return contents
}

// toWireTools converts the declared tool schemas to function declarations.
func toWireTools(schemas []chat.ToolSchema) []wireTools {
	if len(schemas) == 0 {
		return nil
	}
	decls := make([]wireFunctionDecl, 0, len(schemas))
	for _, s := range schemas {
		props := make(map[string]any, len(s.Required))
		required := make([]string, 0, len(s.Required))
		for name, desc := range s.Required {
			props[name] = map[string]any{"type": "STRING", "description": desc}
			required = append(required, name)
		}
		decls = append(decls, wireFunctionDecl{
			Name:        string(s.Name),
			Description: s.Description,
			Parameters: map[string]any{
				"type":       "OBJECT",
				"properties": props,
				"required":   required,
			},
		})
	}
	return []wireTools{{FunctionDeclarations: decls}}
}

// --- streaming chat -------------------------------------------------------

// StreamChat starts one streaming inference call. The returned stream yields
// text deltas and tool calls in arrival order and io.EOF at normal end.
func (c *Client) StreamChat(ctx context.Context, req modelstream.ChatRequest) (modelstream.Stream, error) {
	wire := wireRequest{
		Contents:         toWireContents(req.Messages),
		Tools:            toWireTools(req.Tools),
		GenerationConfig: &wireGenCfg{Temperature: req.Temperature},
	}
	if req.System != "" {
		wire.SystemInstruction = &wireContent{Parts: []wirePart{{Text: req.System}}}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", c.baseURL, c.model)

	var resp *http.Response
	call := func() error {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if reqErr != nil {
			return fmt.Errorf("create request: %w", reqErr)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		resp, reqErr = c.httpClient.Do(httpReq) //nolint:bodyclose // closed by the stream or below
		if reqErr != nil {
			return fmt.Errorf("http request: %w", reqErr)
		}
		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			return fmt.Errorf("gemini API error %d: %s: %w", resp.StatusCode, string(data), domain.ErrProviderFailure)
		}
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}

	return newSSEStream(resp.Body), nil
}

// --- vision ---------------------------------------------------------------

// DescribeImage runs a single-shot vision call over a base64-encoded PNG.
func (c *Client) DescribeImage(ctx context.Context, prompt, imageBase64 string) (string, error) {
	wire := wireRequest{
		Contents: []wireContent{{
			Role: "user",
			Parts: []wirePart{
				{Text: prompt},
				{InlineData: &wireInlineData{MimeType: "image/png", Data: imageBase64}},
			},
		}},
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("marshal vision request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, c.visionModel)

	var text string
	call := func() error {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if reqErr != nil {
			return fmt.Errorf("create request: %w", reqErr)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		resp, reqErr := c.httpClient.Do(httpReq)
		if reqErr != nil {
			return fmt.Errorf("http request: %w", reqErr)
		}
		defer func() { _ = resp.Body.Close() }()

		data, reqErr := io.ReadAll(resp.Body)
		if reqErr != nil {
			return fmt.Errorf("read response: %w", reqErr)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("gemini API error %d: %s: %w", resp.StatusCode, string(data), domain.ErrProviderFailure)
		}

		var wr wireResponse
		if reqErr := json.Unmarshal(data, &wr); reqErr != nil {
			return fmt.Errorf("unmarshal vision response: %w", reqErr)
		}
		var sb strings.Builder
		for _, cand := range wr.Candidates {
			for _, p := range cand.Content.Parts {
				sb.WriteString(p.Text)
			}
		}
		text = sb.String()
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return "", err
	}
	return text, nil
}
