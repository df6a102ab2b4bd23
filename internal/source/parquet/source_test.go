package parquet

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

type testRow struct {
	ID        string    `parquet:"id"`
	Content   string    `parquet:"content"`
	Embedding []float32 `parquet:"embedding,list"`
	Metadata  string    `parquet:"metadata"`
}

func writeRows(t *testing.T, path string, rows []testRow) {
	t.Helper()
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
}

func TestRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.parquet")
	writeRows(t, path, []testRow{
		{ID: "a", Content: "first", Embedding: []float32{1, 0, 0.5}, Metadata: `{"category":"decision"}`},
		{ID: "b", Content: "second", Embedding: []float32{0, 1, 0}},
	})

	recs, err := New(path, 0).Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ID != "a" || recs[0].Content != "first" {
		t.Errorf("record = %+v", recs[0])
	}
	if got := recs[0].Embeddings[0]; len(got) != 3 || got[2] != 0.5 {
		t.Errorf("embedding = %v", got)
	}
	if recs[0].Metadata["category"] != "decision" {
		t.Errorf("metadata = %v", recs[0].Metadata)
	}
	if recs[1].Metadata != nil {
		t.Errorf("empty metadata should decode to nil, got %v", recs[1].Metadata)
	}
}

func TestRecords_DirectoryAndLimit(t *testing.T) {
	dir := t.TempDir()
	writeRows(t, filepath.Join(dir, "part-0.parquet"), []testRow{
		{ID: "a", Embedding: []float32{1}}, {ID: "b", Embedding: []float32{1}},
	})
	writeRows(t, filepath.Join(dir, "part-1.parquet"), []testRow{
		{ID: "c", Embedding: []float32{1}},
	})

	recs, err := New(dir, 0).Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[2].ID != "c" {
		t.Errorf("records = %+v", recs)
	}

	recs, err = New(dir, 2).Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("limit: got %d records", len(recs))
	}
}

func TestRecords_Invalid(t *testing.T) {
	dir := t.TempDir()
	missingID := filepath.Join(dir, "missing-id.parquet")
	writeRows(t, missingID, []testRow{{Content: "x", Embedding: []float32{1}}})
	if _, err := New(missingID, 0).Records(context.Background()); err == nil {
		t.Error("expected error for row without id")
	}

	badMeta := filepath.Join(dir, "bad-meta.parquet")
	writeRows(t, badMeta, []testRow{{ID: "a", Embedding: []float32{1}, Metadata: "{"}})
	if _, err := New(badMeta, 0).Records(context.Background()); err == nil {
		t.Error("expected error for malformed metadata")
	}

	if _, err := New(filepath.Join(dir, "none"), 0).Records(context.Background()); err == nil {
		t.Error("expected error for missing path")
	}
}
