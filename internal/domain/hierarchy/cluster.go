package hierarchy

import (
	"fmt"
	"math"
)

// Level identifies a tier of the cluster hierarchy.
type Level string

const (
	// LevelTopic is the leaf level: clusters of entities.
	LevelTopic Level = "l1"
	// LevelDomain is the top level: clusters of topics.
	LevelDomain Level = "l2"
)

// ParseLevel validates a raw level name.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelTopic, LevelDomain:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown level %q (want l1 or l2)", s)
}

// Palette assigns display colors to clusters by ordinal.
var Palette = []string{
	"#8b5cf6", "#06b6d4", "#22c55e", "#f59e0b", "#ef4444",
	"#14b8a6", "#eab308", "#3b82f6", "#d946ef", "#f97316",
}

// ColorFor returns the palette color for the n-th cluster of a level.
func ColorFor(n int) string { return Palette[n%len(Palette)] }

// ClusterID formats the id of the n-th cluster of a level.
func ClusterID(level Level, n int) string { return fmt.Sprintf("%s-%d", level, n) }

// Cluster is a group of entities (topic) or of topics (domain).
type Cluster struct {
	ID     string
	Level  Level
	Label  string
	Color  string
	Parent string // domain id for topics, empty for domains
	// Members holds entity ids for topics and topic ids for domains, sorted.
	Members []string
	// Size counts entities under the cluster at any depth.
	Size             int
	Centroid         []float32
	DominantCategory string
	Categories       map[string]int
}

// IsSingleton reports whether the cluster has exactly one member.
func (c *Cluster) IsSingleton() bool { return len(c.Members) == 1 }

// Position is a 2D coordinate within one level's layout.
type Position struct {
	X float64
	Y float64
}

// Finite reports whether both coordinates are real numbers.
func (p Position) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Norm returns the distance from the origin.
func (p Position) Norm() float64 { return math.Hypot(p.X, p.Y) }
