package hierarchy

import "time"

// RunInfo summarizes one published pipeline run.
type RunInfo struct {
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
	Entities   int       `json:"entities"`
	Edges      int       `json:"edges"`
	Topics     int       `json:"topics"`
	Domains    int       `json:"domains"`
	Degenerate []string  `json:"degenerate,omitempty"`
	Current    bool      `json:"current"`
}

// Info summarizes a clustering artifact.
func (c *Clustering) Info() RunInfo {
	return RunInfo{
		RunID:      c.RunID,
		CreatedAt:  c.CreatedAt,
		Entities:   len(c.Entities),
		Edges:      len(c.Edges),
		Topics:     len(c.Topics),
		Domains:    len(c.Domains),
		Degenerate: c.Degenerate,
	}
}
