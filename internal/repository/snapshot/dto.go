package snapshot

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

// artifactVersion is bumped on incompatible encoding changes.
const artifactVersion = 1

type entityRow struct {
	ID        string            `msgpack:"id"`
	Content   string            `msgpack:"content"`
	Metadata  map[string]string `msgpack:"metadata,omitempty"`
	CreatedAt int64             `msgpack:"created_at,omitempty"` // unix nanos, 0 = unknown
}

type clusterRow struct {
	ID               string         `msgpack:"id"`
	Level            string         `msgpack:"level"`
	Label            string         `msgpack:"label"`
	Color            string         `msgpack:"color"`
	Parent           string         `msgpack:"parent,omitempty"`
	Members          []string       `msgpack:"members"`
	Size             int            `msgpack:"size"`
	Centroid         []float32      `msgpack:"centroid,omitempty"`
	DominantCategory string         `msgpack:"dominant_category,omitempty"`
	Categories       map[string]int `msgpack:"categories,omitempty"`
}

type clusteringRow struct {
	Version     int               `msgpack:"v"`
	RunID       string            `msgpack:"run_id"`
	CreatedAt   int64             `msgpack:"created_at"`
	Params      map[string]string `msgpack:"params,omitempty"`
	Entities    []entityRow       `msgpack:"entities"`
	Topics      []clusterRow      `msgpack:"topics"`
	Domains     []clusterRow      `msgpack:"domains"`
	Edges       []graph.Edge      `msgpack:"edges"`
	TopicEdges  []graph.Edge      `msgpack:"topic_edges,omitempty"`
	DomainEdges []graph.Edge      `msgpack:"domain_edges,omitempty"`
	Degenerate  []string          `msgpack:"degenerate,omitempty"`
}

type layoutRow struct {
	Version  int                   `msgpack:"v"`
	RunID    string                `msgpack:"run_id"`
	Domains  map[string][2]float64 `msgpack:"domains"`
	Topics   map[string][2]float64 `msgpack:"topics"`
	Entities map[string][2]float64 `msgpack:"entities"`
}

func encodeClustering(c *hierarchy.Clustering) ([]byte, error) {
	row := clusteringRow{
		Version:     artifactVersion,
		RunID:       c.RunID,
		CreatedAt:   toNanos(c.CreatedAt),
		Params:      c.Params,
		Entities:    make([]entityRow, len(c.Entities)),
		Topics:      clustersToRows(c.Topics),
		Domains:     clustersToRows(c.Domains),
		Edges:       c.Edges,
		TopicEdges:  c.TopicEdges,
		DomainEdges: c.DomainEdges,
		Degenerate:  c.Degenerate,
	}
	for i := range c.Entities {
		e := &c.Entities[i]
		row.Entities[i] = entityRow{
			ID:        e.ID(),
			Content:   e.Content(),
			Metadata:  e.Metadata(),
			CreatedAt: toNanos(e.CreatedAt()),
		}
	}
	data, err := msgpack.Marshal(&row)
	if err != nil {
		return nil, fmt.Errorf("marshal clustering: %w", err)
	}
	return data, nil
}

func decodeClustering(data []byte) (*hierarchy.Clustering, error) {
	var row clusteringRow
	if err := msgpack.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("unmarshal clustering: %w", err)
	}
	if row.Version != artifactVersion {
		return nil, fmt.Errorf("clustering artifact version %d, want %d", row.Version, artifactVersion)
	}

	c := &hierarchy.Clustering{
		RunID:       row.RunID,
		CreatedAt:   fromNanos(row.CreatedAt),
		Params:      row.Params,
		Entities:    make([]entity.Entity, len(row.Entities)),
		Topics:      rowsToClusters(row.Topics),
		Domains:     rowsToClusters(row.Domains),
		Edges:       row.Edges,
		TopicEdges:  row.TopicEdges,
		DomainEdges: row.DomainEdges,
		Degenerate:  row.Degenerate,
	}
	for i, e := range row.Entities {
		c.Entities[i] = entity.Reconstruct(e.ID, e.Content, nil, e.Metadata, fromNanos(e.CreatedAt))
	}
	return c, nil
}

func encodeLayout(l *hierarchy.Layout) ([]byte, error) {
	row := layoutRow{
		Version:  artifactVersion,
		RunID:    l.RunID,
		Domains:  positionsToRow(l.Domains),
		Topics:   positionsToRow(l.Topics),
		Entities: positionsToRow(l.Entities),
	}
	data, err := msgpack.Marshal(&row)
	if err != nil {
		return nil, fmt.Errorf("marshal layout: %w", err)
	}
	return data, nil
}

func decodeLayout(data []byte) (*hierarchy.Layout, error) {
	var row layoutRow
	if err := msgpack.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}
	if row.Version != artifactVersion {
		return nil, fmt.Errorf("layout artifact version %d, want %d", row.Version, artifactVersion)
	}
	return &hierarchy.Layout{
		RunID:    row.RunID,
		Domains:  rowToPositions(row.Domains),
		Topics:   rowToPositions(row.Topics),
		Entities: rowToPositions(row.Entities),
	}, nil
}

func clustersToRows(cs []hierarchy.Cluster) []clusterRow {
	rows := make([]clusterRow, len(cs))
	for i := range cs {
		c := &cs[i]
		rows[i] = clusterRow{
			ID:               c.ID,
			Level:            string(c.Level),
			Label:            c.Label,
			Color:            c.Color,
			Parent:           c.Parent,
			Members:          c.Members,
			Size:             c.Size,
			Centroid:         c.Centroid,
			DominantCategory: c.DominantCategory,
			Categories:       c.Categories,
		}
	}
	return rows
}

func rowsToClusters(rows []clusterRow) []hierarchy.Cluster {
	cs := make([]hierarchy.Cluster, len(rows))
	for i, r := range rows {
		cs[i] = hierarchy.Cluster{
			ID:               r.ID,
			Level:            hierarchy.Level(r.Level),
			Label:            r.Label,
			Color:            r.Color,
			Parent:           r.Parent,
			Members:          r.Members,
			Size:             r.Size,
			Centroid:         r.Centroid,
			DominantCategory: r.DominantCategory,
			Categories:       r.Categories,
		}
	}
	return cs
}

func positionsToRow(m map[string]hierarchy.Position) map[string][2]float64 {
	out := make(map[string][2]float64, len(m))
	for id, p := range m {
		out[id] = [2]float64{p.X, p.Y}
	}
	return out
}

func rowToPositions(m map[string][2]float64) map[string]hierarchy.Position {
	out := make(map[string]hierarchy.Position, len(m))
	for id, p := range m {
		out[id] = hierarchy.Position{X: p[0], Y: p[1]}
	}
	return out
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
