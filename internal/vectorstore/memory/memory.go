package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"profrag/internal/domain"
	"profrag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// Record is a stored review together with its embedding.
type Record struct {
	Professor string    `json:"professor"`
	Subject   string    `json:"subject"`
	Stars     float64   `json:"stars"`
	Review    string    `json:"review"`
	Vector    []float32 `json:"vector"`
}

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []Record
	norms     []float64
}

func NewStorage() *Storage { return &Storage{} }

// LoadFile reads a JSON array of records with pre-computed vectors.
func LoadFile(path string) (*Storage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	s := NewStorage()
	if err := s.Add(recs...); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

// Add appends records. The first record fixes the store's dimension.
func (s *Storage) Add(recs ...Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension
	for i, r := range recs {
		if len(r.Vector) == 0 {
			return fmt.Errorf("record %d: empty vector", i)
		}
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) != dim {
			return fmt.Errorf("record %d: vector dimension %d, want %d", i, len(r.Vector), dim)
		}
	}
	s.dimension = dim
	for _, r := range recs {
		s.records = append(s.records, r)
		s.norms = append(s.norms, norm(r.Vector))
	}
	return nil
}

// Len returns the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, errors.New("vector dimension mismatch")
	}
	qn := norm(vector)
	scores := make([]float64, len(s.records))
	for i := range s.records {
		if qn == 0 || s.norms[i] == 0 {
			continue
		}
		scores[i] = dot(s.records[i].Vector, vector) / (qn * s.norms[i])
	}
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.Match, 0, topK)
	for _, j := range idxs[:topK] {
		r := s.records[j]
		results = append(results, domain.Match{
			Professor: r.Professor,
			Subject:   r.Subject,
			Stars:     r.Stars,
			Review:    r.Review,
			Score:     scores[j],
		})
	}
	return results, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
