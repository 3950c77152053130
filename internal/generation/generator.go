// Package generation defines the chat completion collaborator. The openai
// subpackage implements it on top of the OpenAI streaming API.
package generation

import (
	"errors"

	"profrag/internal/domain"
)

// Generator opens a streamed chat completion for a conversation.
type Generator = domain.Generator

// ErrContentFiltered is returned by a feed when the model stops because of
// its content filter.
var ErrContentFiltered = errors.New("generation: response blocked by content filter")
