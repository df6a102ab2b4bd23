// Package jsonl reads entity records from a JSON Lines file.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/source"
)

const maxLineBytes = 64 << 20

// line is one JSON object per line. "embedding" is accepted for single-vector inputs.
type line struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Embedding  []float32      `json:"embedding"`
	Embeddings [][]float32    `json:"embeddings"`
	Metadata   map[string]any `json:"metadata"`
}

// Source reads records from a JSONL file.
type Source struct {
	path  string
	limit int
}

// New creates a JSONL source. limit 0 reads every line.
func New(path string, limit int) *Source {
	return &Source{path: path, limit: limit}
}

// Records reads and shape-checks every record of the file.
func (s *Source) Records(ctx context.Context) ([]entity.Record, error) {
	f, err := os.Open(filepath.Clean(s.path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()
	return Read(ctx, f, s.limit)
}

// Read decodes records from r. Blank lines are skipped.
func Read(ctx context.Context, r io.Reader, limit int) ([]entity.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), maxLineBytes)

	var out []entity.Record
	n := 0
	for sc.Scan() {
		n++
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("line %d: %w: %w", n, domain.ErrInvalidInput, err)
		}
		rec := entity.Record{
			ID:         l.ID,
			Content:    l.Content,
			Embeddings: l.Embeddings,
			Metadata:   source.Metadata(l.Metadata),
		}
		if len(l.Embedding) > 0 {
			rec.Embeddings = append([][]float32{l.Embedding}, rec.Embeddings...)
		}
		if err := source.Check(&rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}
