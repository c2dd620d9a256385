package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roeisharon/MedAI/internal/models"
)

type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	LLM       LLMConfig      `yaml:"llm"`
	Embedding LLMConfig      `yaml:"embedding"`
	RAG       RAGConfig      `yaml:"rag"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LLMConfig struct {
	BaseURL string   `yaml:"base_url"`
	Key     string   `yaml:"key"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
}

// Duration wraps time.Duration so configs can use "30s" syntax; the yaml
// package has no native duration support.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

type RAGConfig struct {
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	SearchResults  int    `yaml:"search_results"`
	ContextChunks  int    `yaml:"context_chunks"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	DataDir        string `yaml:"data_dir"`
}

// LoadConfig reads the yaml config file and fills in defaults and secrets.
// API keys come from the environment, not the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = Duration(30 * time.Second)
	}
	if c.LLM.Key == "" {
		c.LLM.Key = os.Getenv("OPENAI_API_KEY")
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Key == "" {
		c.Embedding.Key = os.Getenv("OPENAI_API_KEY")
	}
	if c.Database.Password == "" {
		c.Database.Password = os.Getenv("MEDAI_DB_PASSWORD")
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = models.ChunkSize
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = models.ChunkOverlap
	}
	if c.RAG.SearchResults == 0 {
		c.RAG.SearchResults = 20
	}
	if c.RAG.ContextChunks == 0 {
		c.RAG.ContextChunks = 10
	}
	if c.RAG.MaxUploadBytes == 0 {
		c.RAG.MaxUploadBytes = 20 << 20
	}
	if c.RAG.DataDir == "" {
		c.RAG.DataDir = "./data"
	}
}
