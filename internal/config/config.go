package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener and per-request limits.
type ServerConfig struct {
	Addr                  string `yaml:"addr"`
	ReadHeaderTimeoutSecs int    `yaml:"read_header_timeout_secs"`
	RequestTimeoutSecs    int    `yaml:"request_timeout_secs"`
	ShutdownTimeoutSecs   int    `yaml:"shutdown_timeout_secs"`
	MaxBodyBytes          int64  `yaml:"max_body_bytes"`
	MaxTurns              int    `yaml:"max_turns"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Memory   *MemoryConfig   `yaml:"memory,omitempty"`
}

// PineconeConfig contains connection details for a Pinecone index.
type PineconeConfig struct {
	// Host is the index data-plane host, e.g. https://rag-abc123.svc.us-east-1.pinecone.io
	Host        string `yaml:"host"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Namespace   string `yaml:"namespace"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MemoryConfig configures the in-process store.
type MemoryConfig struct {
	// SeedPath points to a JSON array of reviews with pre-computed vectors.
	SeedPath string `yaml:"seed_path"`
}

// OpenAIGeneratorConfig configures the chat completion model.
type OpenAIGeneratorConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens"`
	TimeoutSecs int      `yaml:"timeout_secs"`
	MaxRetries  int      `yaml:"max_retries"`
}

// GeneratorConfig selects and configures the generation backend.
type GeneratorConfig struct {
	Type             string                 `yaml:"type"`
	SystemPromptFile string                 `yaml:"system_prompt_file"`
	OpenAI           *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
}

// RetrievalConfig controls how search results become model context.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// ClientConfig configures the terminal chat client.
type ClientConfig struct {
	URL         string `yaml:"url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Client      ClientConfig      `yaml:"client"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/profrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/profrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports configuration that cannot be assembled into a server.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Embedder.Type {
	case "openai":
		if c.Embedder.OpenAI == nil {
			errs = append(errs, errors.New("embedder.openai section missing"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedder: %q", c.Embedder.Type))
	}
	switch c.VectorStore.Type {
	case "pinecone":
		if c.VectorStore.Pinecone == nil || strings.TrimSpace(c.VectorStore.Pinecone.Host) == "" {
			errs = append(errs, errors.New("vector_store.pinecone.host is required"))
		}
	case "qdrant":
		q := c.VectorStore.Qdrant
		if q == nil || strings.TrimSpace(q.URL) == "" || strings.TrimSpace(q.Collection) == "" {
			errs = append(errs, errors.New("vector_store.qdrant.url and collection are required"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown vector store: %q", c.VectorStore.Type))
	}
	switch c.Generator.Type {
	case "openai":
		if c.Generator.OpenAI == nil {
			errs = append(errs, errors.New("generator.openai section missing"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown generator: %q", c.Generator.Type))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK))
	}
	return errors.Join(errs...)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "profrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "openai", OpenAI: &OpenAIEmbedderConfig{}},
		VectorStore: VectorStoreConfig{Type: "pinecone", Pinecone: &PineconeConfig{}},
		Generator:   GeneratorConfig{Type: "openai", OpenAI: &OpenAIGeneratorConfig{}},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadHeaderTimeoutSecs == 0 {
		cfg.Server.ReadHeaderTimeoutSecs = 10
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 120
	}
	if cfg.Server.ShutdownTimeoutSecs == 0 {
		cfg.Server.ShutdownTimeoutSecs = 15
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MaxTurns == 0 {
		cfg.Server.MaxTurns = 50
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Client.URL == "" {
		cfg.Client.URL = "http://localhost:8080/api/chat"
	}
	if cfg.Client.TimeoutSecs == 0 {
		cfg.Client.TimeoutSecs = 120
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		e := cfg.Embedder.OpenAI
		if e.APIKeyEnv == "" {
			e.APIKeyEnv = "OPENAI_API_KEY"
		}
		if e.Model == "" {
			e.Model = "text-embedding-3-small"
		}
		if e.TimeoutSecs == 0 {
			e.TimeoutSecs = 30
		}
		if e.MaxRetries == 0 {
			e.MaxRetries = 2
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "pinecone"
	}
	if p := cfg.VectorStore.Pinecone; cfg.VectorStore.Type == "pinecone" && p != nil {
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = "PINECONE_API_KEY"
		}
		if p.Namespace == "" {
			p.Namespace = "ns1"
		}
		if p.TimeoutSecs == 0 {
			p.TimeoutSecs = 15
		}
	}
	if q := cfg.VectorStore.Qdrant; cfg.VectorStore.Type == "qdrant" && q != nil {
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "openai"
	}
	if cfg.Generator.Type == "openai" {
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		g := cfg.Generator.OpenAI
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "OPENAI_API_KEY"
		}
		if g.Model == "" {
			g.Model = "gpt-4o-mini"
		}
		if g.TimeoutSecs == 0 {
			g.TimeoutSecs = 120
		}
		if g.MaxRetries == 0 {
			g.MaxRetries = 2
		}
	}
}
