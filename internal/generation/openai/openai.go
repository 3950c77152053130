package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"profrag/internal/domain"
	"profrag/internal/generation"
	"profrag/internal/relay"
)

const finishReasonContentFilter = "content_filter"

var _ generation.Generator = (*Generator)(nil)

// Generator streams chat completions from an OpenAI-compatible API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature *float64
	maxTokens   int
	timeout     time.Duration
}

// Config configures the chat completion client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Temperature is sent only when non-nil, so an explicit 0 is honoured.
	Temperature *float64
	MaxTokens   int
	// Timeout bounds one whole streamed completion.
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// New creates a Generator using the provided configuration.
func New(cfg Config) (*Generator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		// No client timeout: it would cut long streams. The per-stream
		// context deadline bounds the call instead.
		hc = &http.Client{}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	client := openai.NewClient(opts...)
	return &Generator{
		client:      &client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

// Stream starts a streamed completion for messages. The returned feed yields
// the text delta of the first choice of every chunk.
func (g *Generator) Stream(ctx context.Context, messages []domain.Message) (relay.Feed, error) {
	params, err := g.chatCompletion(messages)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	return &feed{stream: stream, cancel: cancel}, nil
}

func (g *Generator) chatCompletion(messages []domain.Message) (openai.ChatCompletionNewParams, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case domain.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case domain.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("message %d: unsupported role %q", i, m.Role)
		}
	}
	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    g.model,
	}
	if g.temperature != nil {
		params.Temperature = openai.Float(*g.temperature)
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(g.maxTokens))
	}
	return params, nil
}

// feed adapts an SSE completion stream to relay.Feed.
type feed struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	cancel context.CancelFunc
	once   sync.Once
	// filtered is set once a chunk reports a content_filter stop; the error
	// is returned after that chunk's own text has been delivered.
	filtered bool
}

func (f *feed) Next(ctx context.Context) (relay.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.filtered {
		return "", generation.ErrContentFiltered
	}
	if !f.stream.Next() {
		if err := f.stream.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	chunk := f.stream.Current()
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	choice := chunk.Choices[0]
	if choice.FinishReason == finishReasonContentFilter {
		f.filtered = true
		if choice.Delta.Content == "" {
			return "", generation.ErrContentFiltered
		}
	}
	return relay.Fragment(choice.Delta.Content), nil
}

func (f *feed) Close() error {
	var err error
	f.once.Do(func() {
		err = f.stream.Close()
		f.cancel()
	})
	return err
}
