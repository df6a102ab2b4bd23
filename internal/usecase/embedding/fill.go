// Package embedding embeds entity records that arrive without vectors.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
)

// Fill embeds the content of every record that has no embedding and a
// non-blank content, in place. It returns the number of records filled.
// Records without content are left for validation to reject.
func Fill(ctx context.Context, e domain.Embedder, records []entity.Record) (int, error) {
	var idx []int
	var texts []string
	for i := range records {
		if len(records[i].Embeddings) > 0 {
			continue
		}
		if c := strings.TrimSpace(records[i].Content); c != "" {
			idx = append(idx, i)
			texts = append(texts, c)
		}
	}
	if len(texts) == 0 {
		return 0, nil
	}

	res, err := domain.BatchEmbed(ctx, e, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %d records: %w", len(texts), err)
	}
	if len(res.Embeddings) != len(texts) {
		return 0, fmt.Errorf("embedded %d of %d records: %w",
			len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
	}
	for j, i := range idx {
		records[i].Embeddings = [][]float32{res.Embeddings[j]}
	}
	return len(idx), nil
}
