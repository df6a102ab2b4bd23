package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
)

// DefaultMaxAPIBatchSize is the largest batch sent in one provider request.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder wraps an Embedder with chunking, bounded concurrency and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner       domain.Embedder
	model       string
	chunkSize   int
	concurrency int
	logger      *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. concurrency bounds in-flight chunks.
func NewInstrumentedEmbedder(inner domain.Embedder, model string, concurrency int, logger *zap.Logger) *InstrumentedEmbedder {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &InstrumentedEmbedder{
		inner:       inner,
		model:       model,
		chunkSize:   DefaultMaxAPIBatchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Embed delegates to the inner embedder.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("model", p.model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	p.logger.Debug("Embedding request completed",
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed splits texts into chunks and embeds them concurrently, preserving order.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	start := time.Now()

	chunks := (len(texts) + p.chunkSize - 1) / p.chunkSize
	results := make([]domain.BatchEmbeddingResult, chunks)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for c := 0; c < chunks; c++ {
		offset := c * p.chunkSize
		chunk := texts[offset:min(offset+p.chunkSize, len(texts))]
		g.Go(func() error {
			res, err := domain.BatchEmbed(gctx, p.inner, chunk)
			if err != nil {
				p.logger.Error("Batch embedding request failed",
					zap.String("model", p.model),
					zap.Int("chunk_offset", offset),
					zap.Int("chunk_size", len(chunk)),
					zap.Error(err),
				)
				return fmt.Errorf("batch embed chunk %d: %w", offset, err)
			}
			if len(res.Embeddings) != len(chunk) {
				return fmt.Errorf("batch embed chunk %d: got %d vectors for %d texts: %w",
					offset, len(res.Embeddings), len(chunk), domain.ErrEmbeddingProviderError)
			}
			results[c] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for _, r := range results {
		out.Embeddings = append(out.Embeddings, r.Embeddings...)
		out.PromptTokens += r.PromptTokens
		out.TotalTokens += r.TotalTokens
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("chunks", chunks),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}
