package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/metrics"
)

const (
	maxLabelLen   = 60
	maxSampleRune = 300
)

const labelSystemPrompt = "You name clusters of notes in a knowledge graph. " +
	"Reply with a short title of at most five words. No quotes, no punctuation at the end."

// ChatLabeler names clusters with an OpenAI-compatible chat completion.
type ChatLabeler struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewChatLabeler creates a chat-completion labeler.
func NewChatLabeler(cfg *Config) *ChatLabeler {
	return &ChatLabeler{
		client: newClient(cfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// Label implements domain.Labeler.
func (l *ChatLabeler) Label(ctx context.Context, req domain.LabelRequest) (string, error) {
	start := time.Now()
	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       l.model,
		Temperature: 0,
		MaxTokens:   24,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: labelSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: labelPrompt(req)},
		},
	})
	if err != nil {
		metrics.LabelingRequestsTotal.WithLabelValues(l.model, "error").Inc()
		return "", parseAPIError("labeling", err, domain.ErrLabelingFailed)
	}
	metrics.LabelingRequestDuration.WithLabelValues(l.model).Observe(time.Since(start).Seconds())

	if len(resp.Choices) == 0 {
		metrics.LabelingRequestsTotal.WithLabelValues(l.model, "error").Inc()
		return "", fmt.Errorf("empty completion: %w", domain.ErrLabelingFailed)
	}
	label := cleanLabel(resp.Choices[0].Message.Content)
	if label == "" {
		metrics.LabelingRequestsTotal.WithLabelValues(l.model, "error").Inc()
		return "", fmt.Errorf("blank label: %w", domain.ErrLabelingFailed)
	}

	metrics.LabelingRequestsTotal.WithLabelValues(l.model, "success").Inc()
	return label, nil
}

func labelPrompt(req domain.LabelRequest) string {
	var b strings.Builder
	if len(req.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(req.Categories, ", "))
	}
	b.WriteString("Notes:\n")
	for _, s := range req.Samples {
		b.WriteString("- ")
		b.WriteString(truncateRunes(strings.Join(strings.Fields(s), " "), maxSampleRune))
		b.WriteByte('\n')
	}
	return b.String()
}

func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'`*# ")
	s = strings.TrimRight(s, ".")
	return truncateRunes(s, maxLabelLen)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
