package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"profrag/internal/config"
	"profrag/internal/embedding"
	embopenai "profrag/internal/embedding/openai"
	"profrag/internal/generation"
	genopenai "profrag/internal/generation/openai"
	"profrag/internal/service"
	"profrag/internal/vectorstore"
	"profrag/internal/vectorstore/memory"
	"profrag/internal/vectorstore/pinecone"
	"profrag/internal/vectorstore/qdrant"
)

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func buildEmbedder(cfg *config.AppConfig) (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case "openai":
		e := cfg.Embedder.OpenAI
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:    e.BaseURL,
			APIKeyEnv:  e.APIKeyEnv,
			Model:      e.Model,
			Dimensions: e.Dimensions,
			Timeout:    secs(e.TimeoutSecs),
			MaxRetries: e.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func buildStore(cfg *config.AppConfig) (vectorstore.Storage, error) {
	switch cfg.VectorStore.Type {
	case "pinecone":
		p := cfg.VectorStore.Pinecone
		st, err := pinecone.NewStorage(pinecone.Config{
			Host:      p.Host,
			APIKey:    os.Getenv(p.APIKeyEnv),
			Namespace: p.Namespace,
			Timeout:   secs(p.TimeoutSecs),
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		var key string
		if q.APIKeyEnv != "" {
			key = os.Getenv(q.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     key,
			Collection: q.Collection,
			Timeout:    secs(q.TimeoutSecs),
		}), nil
	case "memory":
		if m := cfg.VectorStore.Memory; m != nil && m.SeedPath != "" {
			st, err := memory.LoadFile(m.SeedPath)
			if err != nil {
				return nil, err
			}
			return st, nil
		}
		return memory.NewStorage(), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}

func buildGenerator(cfg *config.AppConfig) (generation.Generator, error) {
	switch cfg.Generator.Type {
	case "openai":
		g := cfg.Generator.OpenAI
		gen, err := genopenai.New(genopenai.Config{
			BaseURL:     g.BaseURL,
			APIKeyEnv:   g.APIKeyEnv,
			Model:       g.Model,
			Temperature: g.Temperature,
			MaxTokens:   g.MaxTokens,
			Timeout:     secs(g.TimeoutSecs),
			MaxRetries:  g.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai generator: %w", err)
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Generator.Type)
	}
}

// loadSystemPrompt returns the prompt file contents, or "" to use the
// built-in prompt when no file is configured.
func loadSystemPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("system prompt file %s is empty", path)
	}
	return prompt, nil
}

func buildService(cfg *config.AppConfig, logger *slog.Logger) (*service.RAGServiceImpl, error) {
	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	st, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	gen, err := buildGenerator(cfg)
	if err != nil {
		return nil, err
	}
	prompt, err := loadSystemPrompt(cfg.Generator.SystemPromptFile)
	if err != nil {
		return nil, err
	}
	logger.Info("components assembled",
		"embedder", emb.Name(),
		"vector_store", cfg.VectorStore.Type,
		"generator", cfg.Generator.Type,
		"top_k", cfg.Retrieval.TopK,
	)
	return service.NewRAGService(emb, st, gen, service.Options{
		SystemPrompt: prompt,
		TopK:         cfg.Retrieval.TopK,
		MaxTurns:     cfg.Server.MaxTurns,
		Logger:       logger,
	}), nil
}
