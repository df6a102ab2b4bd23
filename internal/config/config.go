package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the zoomgraph pipeline and query service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Source     SourceConfig     `yaml:"source"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Labeling   LabelingConfig   `yaml:"labeling"`
	Layout     LayoutConfig     `yaml:"layout"`
	Query      QueryConfig      `yaml:"query"`
	Reload     ReloadConfig     `yaml:"reload"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys means open access.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig holds snapshot store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, badger (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Path             string   `yaml:"path"` // badger data directory
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key layout and retention settings.
type StorageConfig struct {
	KeyPrefix  string `yaml:"key_prefix"`
	RetainRuns int    `yaml:"retain_runs"`
}

// SourceConfig selects where pipeline entities are read from.
type SourceConfig struct {
	Kind  string `yaml:"kind"` // jsonl, parquet, postgres
	Path  string `yaml:"path"`
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
	Limit int    `yaml:"limit"` // 0 = all rows
}

// EmbeddingConfig holds the provider used for entities without vectors.
type EmbeddingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	Instruction string `yaml:"instruction"`
	Concurrency int    `yaml:"concurrency"`
	Cache       bool   `yaml:"cache"`
}

// SimilarityConfig holds kNN graph settings.
type SimilarityConfig struct {
	K               int     `yaml:"k"`
	Floor           float64 `yaml:"floor"`
	HighlySimilar   float64 `yaml:"highly_similar"`
	ExactThreshold  int     `yaml:"exact_threshold"`
	Workers         int     `yaml:"workers"`
	HNSWM           int     `yaml:"hnsw_m"`
	HNSWEFConstruct int     `yaml:"hnsw_ef_construction"`
}

// EnrichmentConfig holds edge enrichment strategies and the per-node cap.
type EnrichmentConfig struct {
	MaxEdgesPerNode int                `yaml:"max_edges_per_node"`
	Metadata        MetadataStrategy   `yaml:"metadata"`
	Temporal        TemporalStrategy   `yaml:"temporal"`
	References      ReferencesStrategy `yaml:"references"`
	Hub             HubStrategy        `yaml:"hub"`
}

// MetadataStrategy configures metadata-equality edges.
type MetadataStrategy struct {
	Enabled  *bool    `yaml:"enabled"`
	Keys     []string `yaml:"keys"`
	Weight   float64  `yaml:"weight"`
	Fanout   int      `yaml:"fanout"`
	MaxGroup int      `yaml:"max_group"`
}

// TemporalStrategy configures temporal-proximity edges.
type TemporalStrategy struct {
	Enabled   *bool   `yaml:"enabled"`
	WindowSec int     `yaml:"window_sec"`
	Weight    float64 `yaml:"weight"`
}

// ReferencesStrategy configures explicit-reference edges.
type ReferencesStrategy struct {
	Enabled *bool `yaml:"enabled"`
}

// HubStrategy configures hub edges. An empty entity id disables it.
type HubStrategy struct {
	EntityID   string   `yaml:"entity_id"`
	Categories []string `yaml:"categories"`
	Weight     float64  `yaml:"weight"`
}

// ClusteringConfig holds community detection settings.
type ClusteringConfig struct {
	L1Resolution  float64 `yaml:"l1_resolution"`
	L2Resolution  float64 `yaml:"l2_resolution"`
	Seed          int64   `yaml:"seed"`
	MaxPasses     int     `yaml:"max_passes"`
	Aggregation   string  `yaml:"aggregation"` // sum, mean
	CentroidFloor float64 `yaml:"centroid_floor"`
}

// LabelingConfig holds cluster labeling settings.
type LabelingConfig struct {
	Provider    string `yaml:"provider"` // statistical, openai
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	SampleSize  int    `yaml:"sample_size"`
	Concurrency int    `yaml:"concurrency"`
	TimeoutSec  int    `yaml:"timeout_sec"`
}

// LayoutConfig holds force-directed layout settings.
type LayoutConfig struct {
	DomainIterations int            `yaml:"domain_iterations"`
	TopicIterations  int            `yaml:"topic_iterations"`
	EntityIterations int            `yaml:"entity_iterations"`
	Epsilon          float64        `yaml:"epsilon"`
	Gravity          float64        `yaml:"gravity"`
	Extent           float64        `yaml:"extent"`
	LargeGraphNodes  int            `yaml:"large_graph_nodes"`
	BarnesHutNodes   int            `yaml:"barnes_hut_nodes"`
	WarmStart        bool           `yaml:"warm_start"`
	Workers          int            `yaml:"workers"`
	Tiers            map[string]int `yaml:"tiers"` // category -> ring index for isolated nodes
}

// QueryConfig holds pagination limits of the query service.
type QueryConfig struct {
	DefaultPageSize    int `yaml:"default_page_size"`
	MaxPageSize        int `yaml:"max_page_size"`
	DefaultSearchLimit int `yaml:"default_search_limit"`
	MaxSearchLimit     int `yaml:"max_search_limit"`
	DefaultNeighbors   int `yaml:"default_neighbors"`
	MaxNeighbors       int `yaml:"max_neighbors"`
}

// ReloadConfig holds the snapshot watcher settings.
type ReloadConfig struct {
	IntervalSec int `yaml:"interval_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in raw YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"*"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "zoomgraph:"
	}
	if c.Storage.RetainRuns <= 0 {
		c.Storage.RetainRuns = 3
	}
	if c.Source.Kind == "" {
		c.Source.Kind = "jsonl"
	}
	if c.Source.Table == "" {
		c.Source.Table = "memories"
	}
	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = 4
	}

	c.Similarity.applyDefaults()
	c.Enrichment.applyDefaults()
	c.Clustering.applyDefaults()
	c.Labeling.applyDefaults()
	c.Layout.applyDefaults()
	c.Query.applyDefaults()

	if c.Reload.IntervalSec <= 0 {
		c.Reload.IntervalSec = 30
	}
}

func (s *SimilarityConfig) applyDefaults() {
	if s.K <= 0 {
		s.K = 15
	}
	if s.Floor == 0 {
		s.Floor = 0.80
	}
	if s.HighlySimilar == 0 {
		s.HighlySimilar = 0.92
	}
	if s.ExactThreshold <= 0 {
		s.ExactThreshold = 5000
	}
	if s.Workers <= 0 {
		s.Workers = runtime.NumCPU()
	}
	if s.HNSWM <= 0 {
		s.HNSWM = 32
	}
	if s.HNSWEFConstruct <= 0 {
		s.HNSWEFConstruct = 400
	}
}

func (e *EnrichmentConfig) applyDefaults() {
	if e.MaxEdgesPerNode <= 0 {
		e.MaxEdgesPerNode = 12
	}
	if len(e.Metadata.Keys) == 0 {
		e.Metadata.Keys = []string{"category", "agent", "source"}
	}
	if e.Metadata.Weight == 0 {
		e.Metadata.Weight = 0.5
	}
	if e.Metadata.Fanout <= 0 {
		e.Metadata.Fanout = 3
	}
	if e.Metadata.MaxGroup <= 0 {
		e.Metadata.MaxGroup = 50
	}
	if e.Temporal.WindowSec <= 0 {
		e.Temporal.WindowSec = 3600
	}
	if e.Temporal.Weight == 0 {
		e.Temporal.Weight = 0.4
	}
	if e.Hub.Weight == 0 {
		e.Hub.Weight = 0.3
	}
}

func (c *ClusteringConfig) applyDefaults() {
	if c.L1Resolution == 0 {
		c.L1Resolution = 1.0
	}
	if c.L2Resolution == 0 {
		c.L2Resolution = 0.5
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = 10
	}
	if c.Aggregation == "" {
		c.Aggregation = "sum"
	}
}

func (l *LabelingConfig) applyDefaults() {
	if l.Provider == "" {
		l.Provider = "statistical"
	}
	if l.SampleSize <= 0 {
		l.SampleSize = 8
	}
	if l.Concurrency <= 0 {
		l.Concurrency = 4
	}
	if l.TimeoutSec <= 0 {
		l.TimeoutSec = 20
	}
}

func (l *LayoutConfig) applyDefaults() {
	if l.DomainIterations <= 0 {
		l.DomainIterations = 500
	}
	if l.TopicIterations <= 0 {
		l.TopicIterations = 300
	}
	if l.EntityIterations <= 0 {
		l.EntityIterations = 200
	}
	if l.Epsilon == 0 {
		l.Epsilon = 1e-3
	}
	if l.Gravity == 0 {
		l.Gravity = 1.0
	}
	if l.Extent == 0 {
		l.Extent = 1000
	}
	if l.LargeGraphNodes <= 0 {
		l.LargeGraphNodes = 2000
	}
	if l.BarnesHutNodes <= 0 {
		l.BarnesHutNodes = 500
	}
	if l.Workers <= 0 {
		l.Workers = runtime.NumCPU()
	}
}

func (q *QueryConfig) applyDefaults() {
	if q.DefaultPageSize <= 0 {
		q.DefaultPageSize = 100
	}
	if q.MaxPageSize <= 0 {
		q.MaxPageSize = 1000
	}
	if q.DefaultSearchLimit <= 0 {
		q.DefaultSearchLimit = 20
	}
	if q.MaxSearchLimit <= 0 {
		q.MaxSearchLimit = 100
	}
	if q.DefaultNeighbors <= 0 {
		q.DefaultNeighbors = 20
	}
	if q.MaxNeighbors <= 0 {
		q.MaxNeighbors = 100
	}
}

// Enabled reports whether an optional strategy switch is on; unset means on.
func Enabled(flag *bool) bool { return flag == nil || *flag }

// Validate checks the configuration for correctness.
//
//nolint:gocyclo // flat list of checks
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case "badger":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver \"badger\"")
		}
	default:
		return fmt.Errorf("database.driver must be valkey, redis or badger, got %q", c.Database.Driver)
	}
	switch c.Source.Kind {
	case "jsonl", "parquet":
		// path checked when the build command opens the source
	case "postgres":
		if c.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required for kind \"postgres\"")
		}
	default:
		return fmt.Errorf("source.kind must be jsonl, parquet or postgres, got %q", c.Source.Kind)
	}
	if c.Embedding.Enabled && c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required when embedding is enabled")
	}
	if c.Similarity.Floor < -1 || c.Similarity.Floor > 1 {
		return fmt.Errorf("similarity.floor must be within [-1, 1], got %v", c.Similarity.Floor)
	}
	for name, w := range map[string]float64{
		"enrichment.metadata.weight": c.Enrichment.Metadata.Weight,
		"enrichment.temporal.weight": c.Enrichment.Temporal.Weight,
		"enrichment.hub.weight":      c.Enrichment.Hub.Weight,
	} {
		if w <= 0 || w > 1 {
			return fmt.Errorf("%s must be within (0, 1], got %v", name, w)
		}
	}
	if c.Clustering.L1Resolution <= 0 || c.Clustering.L2Resolution <= 0 {
		return fmt.Errorf("clustering resolutions must be positive")
	}
	switch c.Clustering.Aggregation {
	case "sum", "mean":
	default:
		return fmt.Errorf("clustering.aggregation must be \"sum\" or \"mean\", got %q", c.Clustering.Aggregation)
	}
	switch c.Labeling.Provider {
	case "statistical":
	case "openai":
		if c.Labeling.Model == "" {
			return fmt.Errorf("labeling.model is required for provider \"openai\"")
		}
	default:
		return fmt.Errorf("labeling.provider must be \"statistical\" or \"openai\", got %q", c.Labeling.Provider)
	}
	if c.Query.DefaultPageSize > c.Query.MaxPageSize {
		return fmt.Errorf("query.default_page_size %d exceeds max_page_size %d",
			c.Query.DefaultPageSize, c.Query.MaxPageSize)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
