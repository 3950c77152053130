package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"profrag/internal/domain"
	"profrag/internal/relay"
)

var (
	// ErrProtocol marks a malformed conversation. No upstream call is made.
	ErrProtocol = errors.New("invalid request")
	// ErrUpstreamResolution marks an embedding or search failure that
	// happened before generation started.
	ErrUpstreamResolution = errors.New("context resolution failed")
	// ErrGeneration marks a failure to start the completion stream.
	ErrGeneration = errors.New("generation failed")
)

// Options tunes the chat service.
type Options struct {
	SystemPrompt string
	TopK         int
	MaxTurns     int
	Logger       *slog.Logger
}

// RAGServiceImpl answers conversations with retrieval-augmented completions.
type RAGServiceImpl struct {
	embedder     domain.Embedder
	store        domain.VectorStore
	generator    domain.Generator
	systemPrompt string
	topK         int
	maxTurns     int
	logger       *slog.Logger
}

var _ domain.ChatService = (*RAGServiceImpl)(nil)

func NewRAGService(embedder domain.Embedder, store domain.VectorStore, generator domain.Generator, opts Options) *RAGServiceImpl {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &RAGServiceImpl{
		embedder:     embedder,
		store:        store,
		generator:    generator,
		systemPrompt: opts.SystemPrompt,
		topK:         opts.TopK,
		maxTurns:     opts.MaxTurns,
		logger:       opts.Logger,
	}
}

// Answer embeds the last user turn, retrieves the closest reviews, and opens
// a completion stream over the augmented conversation.
func (s *RAGServiceImpl) Answer(ctx context.Context, conversation []domain.Message) (relay.Feed, error) {
	if err := s.Validate(conversation); err != nil {
		return nil, err
	}
	last := conversation[len(conversation)-1]

	vec, err := s.embedder.Embed(ctx, last.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrUpstreamResolution, err)
	}
	matches, err := s.store.Search(ctx, vec, s.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrUpstreamResolution, err)
	}
	s.logger.DebugContext(ctx, "retrieved reviews", "matches", len(matches), "top_k", s.topK)

	messages := make([]domain.Message, 0, len(conversation)+1)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: s.systemPrompt})
	messages = append(messages, conversation[:len(conversation)-1]...)
	messages = append(messages, domain.Message{
		Role:    domain.RoleUser,
		Content: last.Content + BuildContext(matches),
	})

	feed, err := s.generator.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return feed, nil
}

// Validate checks the shape of a client conversation.
func (s *RAGServiceImpl) Validate(conversation []domain.Message) error {
	if len(conversation) == 0 {
		return fmt.Errorf("%w: empty conversation", ErrProtocol)
	}
	if s.maxTurns > 0 && len(conversation) > s.maxTurns {
		return fmt.Errorf("%w: %d turns exceeds limit of %d", ErrProtocol, len(conversation), s.maxTurns)
	}
	for i, m := range conversation {
		switch m.Role {
		case domain.RoleUser, domain.RoleAssistant:
		default:
			return fmt.Errorf("%w: turn %d has unsupported role %q", ErrProtocol, i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("%w: turn %d has empty content", ErrProtocol, i)
		}
	}
	if last := conversation[len(conversation)-1]; last.Role != domain.RoleUser {
		return fmt.Errorf("%w: last turn must come from the user", ErrProtocol)
	}
	return nil
}
