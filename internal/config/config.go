// Package config loads memctx runtime settings from defaults, a project
// config file, .env and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Yates-Labs/memctx/internal/assembly"
	"github.com/Yates-Labs/memctx/internal/source"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported search backends
const (
	BackendMemsearch = "memsearch"
	BackendSQLite    = "sqlite"
	BackendMilvus    = "milvus"
)

// Config file names, in lookup order
const (
	FileName         = "memctx.yaml"
	OpenCodeFileName = "opencode.json"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete memctx configuration
type Config struct {
	Backend           string `yaml:"backend"`
	TopK              int    `yaml:"topK"`
	MemoryDirectory   string `yaml:"memoryDirectory"`
	ProjectCollection string `yaml:"projectCollection"`
	GlobalCollection  string `yaml:"globalCollection"`
	LogLevel          string `yaml:"logLevel"`

	Assembly  AssemblyConfig  `yaml:"assembly"`
	Tiered    TieredConfig    `yaml:"tiered"`
	Memsearch MemsearchConfig `yaml:"memsearch"`
	Milvus    MilvusConfig    `yaml:"milvus"`

	// Sources are partial overrides merged onto the built-in sources
	Sources []source.Override `yaml:"sources"`

	// GitHubToken authenticates issue ingestion; only read from the environment
	GitHubToken string `yaml:"-"`

	// Path of the file the config was read from; empty for defaults only
	Path string `yaml:"-"`
}

// AssemblyConfig holds context engine tunables
type AssemblyConfig struct {
	OverfetchFactor int           `yaml:"overfetchFactor"`
	Concurrency     int           `yaml:"concurrency"`
	SourceTimeout   time.Duration `yaml:"sourceTimeout"`
	Tag             string        `yaml:"tag"`
}

// TieredConfig holds fallback retriever tunables
type TieredConfig struct {
	FallbackThreshold int     `yaml:"fallbackThreshold"`
	MinScore          float64 `yaml:"minScore"`
}

// MemsearchConfig holds settings for the memsearch CLI backend
type MemsearchConfig struct {
	Binary            string `yaml:"binary"`
	EmbeddingProvider string `yaml:"embeddingProvider"`
	EmbeddingAPIKey   string `yaml:"embeddingApiKey"` // Falls back to OPENAI_API_KEY
	AutoIndex         bool   `yaml:"autoIndex"`       // Index the project when serve starts
	AutoWatch         bool   `yaml:"autoWatch"`       // Watch the project while serve runs
}

// KeylessProviders are embedding providers that need no API key
var KeylessProviders = []string{"local", "ollama", "custom"}

// MilvusConfig holds settings for the Milvus backend and its embedder
type MilvusConfig struct {
	Address        string `yaml:"address"`
	MetricType     string `yaml:"metricType"`
	M              int    `yaml:"m"`
	EfConstruction int    `yaml:"efConstruction"`
	EmbeddingModel string `yaml:"embeddingModel"`
	Dimension      int    `yaml:"dimension"`

	// APIKey is only read from the environment
	APIKey string `yaml:"-"`
}

// Default returns the configuration used when nothing is configured.
func Default(workdir string) *Config {
	asm := assembly.DefaultConfig()
	tiered := assembly.DefaultTieredConfig()

	return &Config{
		Backend:           BackendMemsearch,
		TopK:              10,
		MemoryDirectory:   filepath.Join(workdir, "memsearch_data"),
		ProjectCollection: "memsearch_chunks",
		GlobalCollection:  tiered.GlobalCollection,
		LogLevel:          "warn",
		Assembly: AssemblyConfig{
			OverfetchFactor: asm.OverfetchFactor,
			Concurrency:     asm.Concurrency,
			SourceTimeout:   asm.SourceTimeout,
			Tag:             asm.Tag,
		},
		Tiered: TieredConfig{
			FallbackThreshold: tiered.FallbackThreshold,
			MinScore:          tiered.MinScore,
		},
		Memsearch: MemsearchConfig{
			Binary:            "memsearch",
			EmbeddingProvider: "openai",
			AutoIndex:         true,
			AutoWatch:         true,
		},
		Milvus: MilvusConfig{
			Address:        "localhost:19530",
			MetricType:     "COSINE",
			M:              16,
			EfConstruction: 256,
			EmbeddingModel: "text-embedding-3-small",
			Dimension:      1536,
		},
	}
}

// Load builds the configuration for workdir. Values in <workdir>/.env are
// added to the environment without replacing variables already set.
func Load(workdir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(workdir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default(workdir)
	if err := cfg.loadFile(workdir); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if cfg.MemoryDirectory != "" && !filepath.IsAbs(cfg.MemoryDirectory) {
		cfg.MemoryDirectory = filepath.Join(workdir, cfg.MemoryDirectory)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile decodes the first config file found in workdir over c. Decoding
// into the populated struct leaves absent keys at their defaults.
func (c *Config) loadFile(workdir string) error {
	path := filepath.Join(workdir, FileName)
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		c.Path = path
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	path = filepath.Join(workdir, OpenCodeFileName)
	data, err = os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	// JSON is a subset of YAML
	var doc struct {
		Memsearch yaml.Node `yaml:"memsearch"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc.Memsearch.Kind == 0 {
		return nil
	}
	if err := doc.Memsearch.Decode(c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	c.Path = path
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MEMCTX_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		c.Milvus.Address = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Milvus.APIKey = v
		if c.Memsearch.EmbeddingAPIKey == "" {
			c.Memsearch.EmbeddingAPIKey = v
		}
	}
	if v := os.Getenv("MEMCTX_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHubToken = v
	}
	if v := os.Getenv("MEMSEARCH_BIN"); v != "" {
		c.Memsearch.Binary = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendMemsearch, BackendSQLite, BackendMilvus:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}

	positive := []struct {
		name  string
		value int
	}{
		{"topK", c.TopK},
		{"assembly.overfetchFactor", c.Assembly.OverfetchFactor},
		{"assembly.concurrency", c.Assembly.Concurrency},
		{"tiered.fallbackThreshold", c.Tiered.FallbackThreshold},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}

	if c.Assembly.SourceTimeout < 0 {
		return fmt.Errorf("%w: assembly.sourceTimeout must not be negative", ErrInvalidConfig)
	}
	if c.GlobalCollection == "" {
		return fmt.Errorf("%w: globalCollection cannot be empty", ErrInvalidConfig)
	}
	if c.Backend == BackendMilvus && c.Milvus.Dimension <= 0 {
		return fmt.Errorf("%w: milvus.dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// EffectiveSources merges the configured overrides onto the built-in sources.
func (c *Config) EffectiveSources() []source.Source {
	return source.Merge(source.DefaultSources(c.ProjectCollection, c.GlobalCollection), c.Sources)
}

// EngineConfig returns the context engine settings.
func (c *Config) EngineConfig() assembly.Config {
	cfg := assembly.Config{
		OverfetchFactor: c.Assembly.OverfetchFactor,
		Concurrency:     c.Assembly.Concurrency,
		SourceTimeout:   c.Assembly.SourceTimeout,
		Tag:             c.Assembly.Tag,
	}
	if cfg.Tag == "" {
		cfg.Tag = assembly.DefaultTag
	}
	return cfg
}

// TieredRetrieverConfig returns the fallback retriever settings.
func (c *Config) TieredRetrieverConfig() assembly.TieredConfig {
	cfg := assembly.DefaultTieredConfig()
	cfg.FallbackThreshold = c.Tiered.FallbackThreshold
	cfg.MinScore = c.Tiered.MinScore
	cfg.GlobalCollection = c.GlobalCollection
	cfg.PrimaryCollection = c.ProjectCollection
	return cfg
}

// EmbeddingKeyRequired reports whether the backend needs an embedding API key,
// and whether one is set.
func (c *Config) EmbeddingKeyRequired() (required, set bool) {
	switch c.Backend {
	case BackendMilvus:
		return true, c.Milvus.APIKey != ""
	case BackendMemsearch:
		provider := strings.ToLower(c.Memsearch.EmbeddingProvider)
		for _, p := range KeylessProviders {
			if provider == p {
				return false, false
			}
		}
		return true, c.Memsearch.EmbeddingAPIKey != ""
	}
	return false, false
}
