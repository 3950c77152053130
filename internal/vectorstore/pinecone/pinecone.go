package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"profrag/internal/domain"
	"profrag/internal/vectorstore"
)

const apiVersion = "2024-07"

var _ vectorstore.Storage = (*Storage)(nil)

// Storage is a minimal client for the Pinecone data-plane query API.
// It only reads; the index is populated out of band.
type Storage struct {
	host      string
	apiKey    string
	namespace string
	client    *http.Client
}

type Config struct {
	// Host is the index host shown in the Pinecone console.
	Host      string
	APIKey    string
	Namespace string
	Timeout   time.Duration
}

func NewStorage(cfg Config) (*Storage, error) {
	host := strings.TrimSuffix(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		return nil, errors.New("pinecone: index host required")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone: api key required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		host:      host,
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

type queryRequest struct {
	Namespace       string    `json:"namespace,omitempty"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
	Namespace string `json:"namespace"`
}

// Search returns the topK nearest reviews to vector, best first.
func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if len(vector) == 0 {
		return nil, errors.New("pinecone: empty query vector")
	}
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	req := queryRequest{
		Namespace:       s.namespace,
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}
	var resp queryResponse
	if err := s.postJSON(ctx, s.host+"/query", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		results = append(results, vectorstore.MatchFromMetadata(m.ID, m.Score, m.Metadata))
	}
	return results, nil
}

func (s *Storage) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("pinecone: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("pinecone: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", s.apiKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone: send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pinecone POST %s failed: %s: %s", url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("pinecone: decode response: %w", err)
		}
	}
	return nil
}
