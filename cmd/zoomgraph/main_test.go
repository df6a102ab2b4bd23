package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/zoomgraph/internal/config"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
	"github.com/kailas-cloud/zoomgraph/internal/usecase/enrichment"
)

func TestStrategies(t *testing.T) {
	off := false
	cfg := config.EnrichmentConfig{
		Metadata: config.MetadataStrategy{Keys: []string{"category"}, Weight: 0.5, Fanout: 3},
		Temporal: config.TemporalStrategy{Enabled: &off},
		Hub:      config.HubStrategy{EntityID: "hub", Weight: 0.3},
	}
	var names []string
	for _, s := range strategies(cfg) {
		names = append(names, s.Name())
	}
	if got := strings.Join(names, ","); got != "references,metadata,hub" {
		t.Errorf("strategies = %s", got)
	}
	if _, ok := strategies(config.EnrichmentConfig{})[0].(enrichment.References); !ok {
		t.Error("references must come first")
	}
}

func TestOpenSource_Validation(t *testing.T) {
	if _, _, err := openSource(config.SourceConfig{Kind: "jsonl"}); err == nil {
		t.Error("jsonl without path should fail")
	}
	if _, _, err := openSource(config.SourceConfig{Kind: "csv", Path: "x"}); err == nil {
		t.Error("unknown kind should fail")
	}
	src, closeFn, err := openSource(config.SourceConfig{Kind: "parquet", Path: "data"})
	if err != nil || src == nil {
		t.Fatalf("parquet source: %v", err)
	}
	closeFn()
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	if _, err := openStore(config.DatabaseConfig{Driver: "mongo"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	if err := printRuns(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no published runs") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	runs := []hierarchy.RunInfo{{
		RunID:      "run-2",
		CreatedAt:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Entities:   10,
		Topics:     3,
		Domains:    1,
		Degenerate: []string{"l2:single-cluster"},
		Current:    true,
	}}
	if err := printRuns(&buf, runs); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"RUN ID", "run-2", "2026-05-01T12:00:00Z", "l2:single-cluster", "*"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunParams(t *testing.T) {
	var cfg config.Config
	cfg.ApplyDefaults()
	p := runParams(cfg)
	if p["similarity.k"] != "15" || p["clustering.l2"] != "0.5" || p["clustering.seed"] != "42" {
		t.Errorf("unexpected params %v", p)
	}
}
