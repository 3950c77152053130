package domain

import (
	"context"

	"profrag/internal/relay"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Match is one professor review returned by similarity search.
type Match struct {
	// Professor is the record identifier, which is the professor's name.
	Professor string
	Subject   string
	Stars     float64
	Review    string
	Score     float64
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore answers top-K similarity queries over professor reviews.
type VectorStore interface {
	Search(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

// Generator opens a streamed chat completion for a conversation.
type Generator interface {
	Stream(ctx context.Context, messages []Message) (relay.Feed, error)
}

// ChatService defines the operations exposed by the application core.
type ChatService interface {
	Answer(ctx context.Context, conversation []Message) (relay.Feed, error)
}
