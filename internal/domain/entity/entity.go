package entity

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
)

// Well-known metadata keys. The first key of each group wins when several are present.
var (
	categoryKeys  = []string{"category", "type"}
	agentKeys     = []string{"agent", "agent_id"}
	sourceKeys    = []string{"source"}
	timestampKeys = []string{"created_at", "timestamp"}
	referenceKeys = []string{"references", "related_memory"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// MaxIDLength bounds entity identifiers.
const MaxIDLength = 512

// Record is the raw entity shape handed over by the extraction layer.
type Record struct {
	ID         string            `json:"id" validate:"required,max=512"`
	Content    string            `json:"content"`
	Embeddings [][]float32       `json:"embeddings" validate:"dive,min=1"`
	Metadata   map[string]string `json:"metadata"`
}

// Entity is one memory or decision record (immutable value object).
type Entity struct {
	id         string
	content    string
	vector     []float32
	metadata   map[string]string
	category   string
	agent      string
	source     string
	createdAt  time.Time
	references []string
}

// New validates a record and builds an Entity.
// Multiple embeddings are combined into their L2-normalized mean.
func New(rec Record) (Entity, error) {
	if rec.ID == "" {
		return Entity{}, domain.NewInputError("", "id", "is required")
	}
	if len(rec.ID) > MaxIDLength {
		return Entity{}, domain.NewInputError(rec.ID, "id", "too long")
	}
	vec, err := meanVector(rec.ID, rec.Embeddings)
	if err != nil {
		return Entity{}, err
	}

	md := cloneMetadata(rec.Metadata)
	e := Entity{
		id:       rec.ID,
		content:  rec.Content,
		vector:   vec,
		metadata: md,
		category: firstValue(md, categoryKeys),
		agent:    firstValue(md, agentKeys),
		source:   firstValue(md, sourceKeys),
	}

	if raw := firstValue(md, timestampKeys); raw != "" {
		ts, ok := parseTime(raw)
		if !ok {
			return Entity{}, domain.NewInputError(rec.ID, "metadata.created_at", "unparsable timestamp "+raw)
		}
		e.createdAt = ts
	}

	e.references = parseReferences(rec.ID, firstValue(md, referenceKeys))
	return e, nil
}

// Reconstruct creates an Entity without validation (storage hydration).
func Reconstruct(
	id, content string, vector []float32, metadata map[string]string, createdAt time.Time,
) Entity {
	return Entity{
		id:         id,
		content:    content,
		vector:     vector,
		metadata:   metadata,
		category:   firstValue(metadata, categoryKeys),
		agent:      firstValue(metadata, agentKeys),
		source:     firstValue(metadata, sourceKeys),
		createdAt:  createdAt,
		references: parseReferences(id, firstValue(metadata, referenceKeys)),
	}
}

// ID returns the entity identifier.
func (e *Entity) ID() string { return e.id }

// Content returns the raw record text.
func (e *Entity) Content() string { return e.content }

// Vector returns the unit-length representative embedding.
func (e *Entity) Vector() []float32 { return e.vector }

// Metadata returns the free-form metadata mapping.
func (e *Entity) Metadata() map[string]string { return e.metadata }

// Category returns the category metadata value, or "".
func (e *Entity) Category() string { return e.category }

// Agent returns the agent metadata value, or "".
func (e *Entity) Agent() string { return e.agent }

// Source returns the source metadata value, or "".
func (e *Entity) Source() string { return e.source }

// CreatedAt returns the record timestamp; zero when absent.
func (e *Entity) CreatedAt() time.Time { return e.createdAt }

// References returns the ids this entity names explicitly, sorted and unique.
func (e *Entity) References() []string { return e.references }

// MetadataValue returns a metadata value by key, resolving well-known aliases.
func (e *Entity) MetadataValue(key string) string {
	switch key {
	case "category":
		return e.category
	case "agent":
		return e.agent
	case "source":
		return e.source
	}
	return e.metadata[key]
}

// Cosine returns the cosine similarity of two unit vectors.
func Cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Normalize returns a unit-length copy of v, or false for a zero vector.
func Normalize(v []float64) ([]float32, bool) {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return nil, false
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out, true
}

func meanVector(id string, embeddings [][]float32) ([]float32, error) {
	if len(embeddings) == 0 {
		return nil, domain.NewInputError(id, "embeddings", "at least one embedding is required")
	}
	dim := len(embeddings[0])
	if dim == 0 {
		return nil, domain.NewInputError(id, "embeddings", "empty vector")
	}

	sum := make([]float64, dim)
	for _, emb := range embeddings {
		if len(emb) != dim {
			return nil, domain.NewInputError(id, "embeddings", "dimension mismatch between vectors")
		}
		for i, x := range emb {
			f := float64(x)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, domain.NewInputError(id, "embeddings", "non-finite component")
			}
			sum[i] += f
		}
	}

	vec, ok := Normalize(sum)
	if !ok {
		return nil, domain.NewInputError(id, "embeddings", "zero vector")
	}
	return vec, nil
}

func firstValue(md map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(md[k]); v != "" {
			return v
		}
	}
	return ""
}

func parseTime(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseReferences(self, raw string) []string {
	if raw == "" {
		return nil
	}
	raw = strings.Trim(raw, "[]")
	seen := make(map[string]bool)
	var refs []string
	for _, part := range strings.Split(raw, ",") {
		ref := strings.Trim(strings.TrimSpace(part), `"'`)
		if ref == "" || ref == self || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
