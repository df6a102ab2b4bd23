package jsonl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
)

const sample = `{"id":"a","content":"first","embedding":[1,0],"metadata":{"category":"decision","references":["b"]}}

{"id":"b","content":"second","embeddings":[[0,1],[0,0.5]],"metadata":{"created_at":"2026-01-02T03:04:05Z"}}
{"id":"c","content":"no vector yet"}
`

func TestRead(t *testing.T) {
	recs, err := Read(context.Background(), strings.NewReader(sample), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if got := recs[0].Metadata["references"]; got != "b" {
		t.Errorf("references = %q", got)
	}
	if len(recs[0].Embeddings) != 1 || len(recs[1].Embeddings) != 2 {
		t.Errorf("embeddings = %v / %v", recs[0].Embeddings, recs[1].Embeddings)
	}
	if recs[2].Embeddings != nil {
		t.Errorf("c should have no embeddings, got %v", recs[2].Embeddings)
	}
}

func TestRead_Limit(t *testing.T) {
	recs, err := Read(context.Background(), strings.NewReader(sample), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[1].ID != "b" {
		t.Errorf("records = %+v", recs)
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"malformed json", "{\"id\":\"a\"\n", "line 1"},
		{"missing id", "{\"id\":\"a\"}\n{\"content\":\"x\"}\n", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(context.Background(), strings.NewReader(tt.input), 0)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("error = %v, want ErrInvalidInput", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not name %q", err, tt.want)
			}
		})
	}
}

func TestSource_Records(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.jsonl")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	recs, err := New(path, 0).Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Errorf("got %d records", len(recs))
	}

	if _, err := New(filepath.Join(t.TempDir(), "missing.jsonl"), 0).Records(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}
