package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("Database.Driver = %q, want valkey", cfg.Database.Driver)
	}
	if cfg.Similarity.K != 15 || cfg.Similarity.Floor != 0.80 {
		t.Errorf("Similarity = %+v", cfg.Similarity)
	}
	if cfg.Enrichment.MaxEdgesPerNode != 12 {
		t.Errorf("MaxEdgesPerNode = %d, want 12", cfg.Enrichment.MaxEdgesPerNode)
	}
	if cfg.Enrichment.Metadata.Weight != 0.5 || cfg.Enrichment.Temporal.Weight != 0.4 {
		t.Errorf("strategy weights = %v/%v", cfg.Enrichment.Metadata.Weight, cfg.Enrichment.Temporal.Weight)
	}
	if cfg.Clustering.L1Resolution != 1.0 || cfg.Clustering.L2Resolution != 0.5 {
		t.Errorf("resolutions = %v/%v", cfg.Clustering.L1Resolution, cfg.Clustering.L2Resolution)
	}
	if cfg.Layout.WarmStart {
		t.Error("Layout.WarmStart should default to false")
	}
	if cfg.Query.DefaultPageSize != 100 || cfg.Query.MaxPageSize != 1000 {
		t.Errorf("Query = %+v", cfg.Query)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad driver", func(c *Config) { c.Database.Driver = "mongo" }, "database.driver"},
		{"badger without path", func(c *Config) { c.Database.Driver = "badger" }, "database.path"},
		{"redis without addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"postgres without dsn", func(c *Config) { c.Source.Kind = "postgres" }, "source.dsn"},
		{"bad source", func(c *Config) { c.Source.Kind = "csv" }, "source.kind"},
		{"floor out of range", func(c *Config) { c.Similarity.Floor = 1.5 }, "similarity.floor"},
		{"weight out of range", func(c *Config) { c.Enrichment.Temporal.Weight = 2 }, "enrichment.temporal.weight"},
		{"bad aggregation", func(c *Config) { c.Clustering.Aggregation = "max" }, "clustering.aggregation"},
		{"openai labeler without model", func(c *Config) { c.Labeling.Provider = "openai" }, "labeling.model"},
		{"embedding without model", func(c *Config) { c.Embedding.Enabled = true }, "embedding.model"},
		{"page sizes", func(c *Config) { c.Query.DefaultPageSize = 5000 }, "default_page_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("ZG_TEST_ADDR", "valkey:6379")

	cfg, err := Parse([]byte(`
database:
  addrs: ["${ZG_TEST_ADDR}"]
storage:
  key_prefix: "${ZG_TEST_PREFIX:-zg:}"
layout:
  warm_start: true
  tiers:
    decision: 1
enrichment:
  metadata:
    enabled: false
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Addrs[0] != "valkey:6379" {
		t.Errorf("Addrs = %v", cfg.Database.Addrs)
	}
	if cfg.Storage.KeyPrefix != "zg:" {
		t.Errorf("KeyPrefix = %q", cfg.Storage.KeyPrefix)
	}
	if !cfg.Layout.WarmStart || cfg.Layout.Tiers["decision"] != 1 {
		t.Errorf("Layout = %+v", cfg.Layout)
	}
	if Enabled(cfg.Enrichment.Metadata.Enabled) {
		t.Error("metadata strategy should be disabled")
	}
	if !Enabled(cfg.Enrichment.Temporal.Enabled) {
		t.Error("temporal strategy should default to enabled")
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_ShippedConfigs(t *testing.T) {
	t.Setenv("ZOOMGRAPH_DB_ADDR", "valkey:6379")
	t.Setenv("ZOOMGRAPH_DB_DRIVER", "")
	t.Setenv("ZOOMGRAPH_SOURCE_KIND", "")
	t.Setenv("ZOOMGRAPH_LABELING_PROVIDER", "")

	for _, env := range []string{"local", "docker", "prod"} {
		t.Run(env, func(t *testing.T) {
			cfg, err := Load(env)
			if err != nil {
				t.Fatalf("Load(%s): %v", env, err)
			}
			if cfg.Database.Addrs[0] != "valkey:6379" {
				t.Errorf("Addrs = %v", cfg.Database.Addrs)
			}
			if cfg.Storage.KeyPrefix != "zoomgraph:" {
				t.Errorf("KeyPrefix = %q", cfg.Storage.KeyPrefix)
			}
		})
	}
}
