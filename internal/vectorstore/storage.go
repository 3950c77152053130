package vectorstore

import (
	"strconv"
	"strings"

	"profrag/internal/domain"
)

// Storage answers top-K similarity queries.
type Storage = domain.VectorStore

// DefaultTopK is used when a caller passes a non-positive topK.
const DefaultTopK = 3

// MatchFromMetadata builds a Match from a record id, its similarity score and
// the review metadata stored alongside the vector. Stars may be stored as a
// number or a numeric string. A "professor" key overrides the record id.
func MatchFromMetadata(id string, score float64, md map[string]any) domain.Match {
	m := domain.Match{Professor: id, Score: score}
	if v, ok := md["professor"].(string); ok && v != "" {
		m.Professor = v
	}
	if v, ok := md["subject"].(string); ok {
		m.Subject = v
	}
	if v, ok := md["review"].(string); ok {
		m.Review = v
	}
	switch v := md["stars"].(type) {
	case float64:
		m.Stars = v
	case int:
		m.Stars = float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			m.Stars = f
		}
	}
	return m
}
