package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"WebResearcher/internal/config"
	"WebResearcher/internal/ports"
)

// Client implements ports.LanguageModel backed by OpenAI-compatible APIs.
type Client struct {
	api    openai.Client
	model  string
	apiKey string
	logger *slog.Logger
}

var _ ports.LanguageModel = (*Client)(nil)

// NewClient builds a client from configuration. model overrides cfg.Model
// when set, so summaries can use a cheaper model than synthesis.
func NewClient(cfg config.SynthesisConfig, model string, log *slog.Logger, opts ...option.RequestOption) *Client {
	if strings.TrimSpace(model) == "" {
		model = cfg.Model
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &Client{
		api:    openai.NewClient(reqOpts...),
		model:  strings.TrimSpace(model),
		apiKey: strings.TrimSpace(cfg.APIKey),
		logger: log,
	}
}

// Stream starts a streamed chat completion.
func (c *Client) Stream(ctx context.Context, messages []ports.ChatMessage) (ports.TextStream, error) {
	params, err := c.params(messages)
	if err != nil {
		return nil, err
	}
	stream := c.api.Chat.Completions.NewStreaming(ctx, params)
	if stream == nil {
		return nil, errors.New("chat completions streaming not available")
	}
	c.debug("stream started", "model", c.model, "messages", len(messages))
	return &chunkStream{stream: stream}, nil
}

// Complete runs a non-streamed chat completion and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	params, err := c.params(messages)
	if err != nil {
		return "", err
	}
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) params(messages []ports.ChatMessage) (openai.ChatCompletionNewParams, error) {
	if c == nil {
		return openai.ChatCompletionNewParams{}, errors.New("llm client is nil")
	}
	if c.apiKey == "" || c.model == "" {
		return openai.ChatCompletionNewParams{}, errors.New("llm client misconfigured")
	}
	converted := toChatMessages(messages)
	if len(converted) == 0 {
		return openai.ChatCompletionNewParams{}, errors.New("no chat messages for completion")
	}
	return openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: converted,
	}, nil
}

func toChatMessages(messages []ports.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// chunkStream adapts the SSE chunk stream to text increments.
type chunkStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
}

func (s *chunkStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		var sb strings.Builder
		for _, choice := range chunk.Choices {
			sb.WriteString(choice.Delta.Content)
		}
		if sb.Len() == 0 {
			continue
		}
		s.current = sb.String()
		return true
	}
	s.current = ""
	return false
}

func (s *chunkStream) Current() string { return s.current }

func (s *chunkStream) Err() error { return s.stream.Err() }

func (s *chunkStream) Close() error { return s.stream.Close() }

func (c *Client) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
