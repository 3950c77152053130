package embedding

import (
	"errors"

	"profrag/internal/domain"
)

// Embedder converts free text into a numeric vector representation.
type Embedder = domain.Embedder

// ErrEmptyInput is returned when there is no text to embed.
var ErrEmptyInput = errors.New("embedding: empty input")
