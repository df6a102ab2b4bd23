// Package parquet reads entity records from parquet files.
//
// Expected columns: id (string), content (string, optional), embedding
// (list of float or double) and metadata (JSON object as string, optional).
// Unknown columns are ignored.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/source"
)

const readBatch = 1000

// Source reads records from one parquet file or every *.parquet file of a directory.
type Source struct {
	path  string
	limit int
}

// New creates a parquet source. limit 0 reads every row.
func New(path string, limit int) *Source {
	return &Source{path: path, limit: limit}
}

// columns holds leaf column indexes; -1 when absent.
type columns struct {
	id, content, embedding, metadata int
}

func resolveColumns(pf *parquet.File) (columns, error) {
	cols := columns{id: -1, content: -1, embedding: -1, metadata: -1}
	for i, path := range pf.Schema().Columns() {
		if len(path) == 0 {
			continue
		}
		switch path[0] {
		case "id":
			cols.id = i
		case "content":
			cols.content = i
		case "embedding":
			cols.embedding = i
		case "metadata":
			cols.metadata = i
		}
	}
	if cols.id < 0 {
		return cols, fmt.Errorf("%w: id column not found", domain.ErrInvalidInput)
	}
	return cols, nil
}

// Records reads and shape-checks every row, files in name order.
func (s *Source) Records(ctx context.Context) ([]entity.Record, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	var out []entity.Record
	for _, f := range files {
		recs, err := s.readFile(ctx, f, len(out))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(f), err)
		}
		out = append(out, recs...)
		if s.limit > 0 && len(out) >= s.limit {
			break
		}
	}
	return out, nil
}

func (s *Source) files() ([]string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}
	if !info.IsDir() {
		return []string{s.path}, nil
	}
	files, err := filepath.Glob(filepath.Join(s.path, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("glob parquet files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no parquet files found in %s", s.path)
	}
	sort.Strings(files)
	return files, nil
}

func (s *Source) readFile(ctx context.Context, path string, have int) ([]entity.Record, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	cols, err := resolveColumns(pf)
	if err != nil {
		return nil, err
	}

	var out []entity.Record
	buf := make([]parquet.Row, readBatch)
	for _, rg := range pf.RowGroups() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows := parquet.NewRowGroupReader(rg)
		for {
			n, readErr := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				rec, err := toRecord(buf[i], cols)
				if err != nil {
					return nil, err
				}
				out = append(out, rec)
				if s.limit > 0 && have+len(out) == s.limit {
					return out, nil
				}
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return nil, fmt.Errorf("read rows: %w", readErr)
			}
		}
	}
	return out, nil
}

func toRecord(row parquet.Row, cols columns) (entity.Record, error) {
	var rec entity.Record
	var vec []float32
	var rawMeta []byte
	for _, v := range row {
		if v.IsNull() {
			continue
		}
		switch v.Column() {
		case cols.id:
			rec.ID = v.String()
		case cols.content:
			rec.Content = v.String()
		case cols.embedding:
			switch v.Kind() {
			case parquet.Double:
				vec = append(vec, float32(v.Double()))
			default:
				vec = append(vec, v.Float())
			}
		case cols.metadata:
			rawMeta = v.ByteArray()
		}
	}
	if len(vec) > 0 {
		rec.Embeddings = [][]float32{vec}
	}
	md, err := source.DecodeMetadata(rawMeta)
	if err != nil {
		return rec, fmt.Errorf("entity %q: %w", rec.ID, err)
	}
	rec.Metadata = md
	if err := source.Check(&rec); err != nil {
		return rec, err
	}
	return rec, nil
}
