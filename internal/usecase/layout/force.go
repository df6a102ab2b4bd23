package layout

import (
	"math"
	"math/rand"
	"sort"

	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
	"github.com/kailas-cloud/zoomgraph/internal/domain/hierarchy"
)

const (
	// spacing is the ideal edge length in simulation units.
	spacing       = 1.0
	minIterations = 30
	gravityScale  = 0.05
	// coreShare is the part of the extent used by connected nodes when rings are present.
	coreShare = 0.7
)

// Options controls one force-directed layout.
type Options struct {
	Iterations      int
	Epsilon         float64
	Gravity         float64
	Extent          float64
	BarnesHutNodes  int
	LargeGraphNodes int
	Seed            int64
	// Tiers maps a category to the ring that isolated nodes of that category snap to.
	Tiers map[string]int
	// Category resolves a node's category for tier placement; may be nil.
	Category func(id string) string
	// Initial holds warm-start positions in extent units; may be nil.
	Initial map[string]hierarchy.Position
}

// Place computes a position for every node of g. Connected nodes are laid out
// by the force simulation, centered at the origin and scaled to the extent;
// isolated nodes go to rings around them.
func Place(g *graph.Graph, opt Options) map[string]hierarchy.Position {
	n := g.Len()
	out := make(map[string]hierarchy.Position, n)
	if n == 0 {
		return out
	}
	if n == 1 {
		out[g.ID(0)] = hierarchy.Position{}
		return out
	}

	var core, isolated []int
	for i := 0; i < n; i++ {
		if g.Isolated(i) {
			isolated = append(isolated, i)
		} else {
			core = append(core, i)
		}
	}

	radius := opt.Extent
	if len(isolated) > 0 {
		radius = opt.Extent * coreShare
	}
	if len(core) > 0 {
		xs, ys := simulate(g, core, opt)
		normalize(xs, ys, radius)
		for li, gi := range core {
			out[g.ID(gi)] = hierarchy.Position{X: xs[li], Y: ys[li]}
		}
	}

	if len(isolated) > 0 {
		inner := 0.0
		if len(core) > 0 {
			inner = radius
		}
		ids := make([]string, len(isolated))
		for i, gi := range isolated {
			ids[i] = g.ID(gi)
		}
		for id, p := range rings(ids, inner, opt) {
			out[id] = p
		}
	}
	return out
}

// simulate runs the force loop over the connected nodes and returns their
// raw coordinates in core order.
func simulate(g *graph.Graph, core []int, opt Options) ([]float64, []float64) {
	m := len(core)
	local := make(map[int]int, m)
	for li, gi := range core {
		local[gi] = li
	}

	xs, ys := make([]float64, m), make([]float64, m)
	box := math.Sqrt(float64(m)) * spacing
	rng := rand.New(rand.NewSource(opt.Seed)) //nolint:gosec // seeded for reproducibility
	warm := 0
	for li, gi := range core {
		rx, ry := rng.Float64()*2-1, rng.Float64()*2-1
		if p, ok := opt.Initial[g.ID(gi)]; ok && p.Finite() && opt.Extent > 0 {
			xs[li], ys[li] = p.X/opt.Extent*box, p.Y/opt.Extent*box
			warm++
			continue
		}
		xs[li], ys[li] = rx*box, ry*box
	}

	iters := budget(opt.Iterations, m, opt.LargeGraphNodes)
	t0 := box * 0.1
	if warm*2 >= m {
		t0 *= 0.3
	}
	useTree := opt.BarnesHutNodes > 0 && m > opt.BarnesHutNodes
	k2 := spacing * spacing
	dx, dy := make([]float64, m), make([]float64, m)

	for it := 0; it < iters; it++ {
		clear(dx)
		clear(dy)

		if useTree {
			tree := newQuadTree(xs, ys)
			for i := 0; i < m; i++ {
				dx[i], dy[i] = tree.repulse(i, xs, ys, k2)
			}
		} else {
			for i := 0; i < m; i++ {
				for j := i + 1; j < m; j++ {
					fx, fy := pairForce(i, j, xs, ys, k2)
					dx[i] += fx
					dy[i] += fy
					dx[j] -= fx
					dy[j] -= fy
				}
			}
		}

		for li, gi := range core {
			for _, a := range g.Neighbors(gi) {
				lj, ok := local[a.To]
				if !ok || lj <= li {
					continue
				}
				ddx, ddy := xs[li]-xs[lj], ys[li]-ys[lj]
				d := math.Hypot(ddx, ddy)
				if d == 0 {
					continue
				}
				f := a.Weight * d / spacing
				fx, fy := ddx/d*f, ddy/d*f
				dx[li] -= fx
				dy[li] -= fy
				dx[lj] += fx
				dy[lj] += fy
			}
		}

		for i := 0; i < m; i++ {
			dx[i] -= opt.Gravity * gravityScale * xs[i]
			dy[i] -= opt.Gravity * gravityScale * ys[i]
		}

		temp := t0*(1-float64(it)/float64(iters)) + 1e-4
		var moved float64
		for i := 0; i < m; i++ {
			d := math.Hypot(dx[i], dy[i])
			if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
				continue
			}
			step := math.Min(d, temp)
			xs[i] += dx[i] / d * step
			ys[i] += dy[i] / d * step
			moved += step
		}
		if moved/float64(m) < opt.Epsilon*spacing {
			break
		}
	}
	return xs, ys
}

// budget scales the iteration count down for graphs above the large-graph size.
func budget(iters, n, large int) int {
	if iters <= 0 {
		iters = minIterations
	}
	if large > 0 && n > large {
		iters = max(iters*large/n, minIterations)
	}
	return iters
}

// normalize centers the coordinates at the origin and scales them so the
// farthest node sits at radius.
func normalize(xs, ys []float64, radius float64) {
	m := len(xs)
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(m)
	my /= float64(m)

	var far float64
	for i := range xs {
		xs[i] -= mx
		ys[i] -= my
		far = math.Max(far, math.Hypot(xs[i], ys[i]))
	}
	if far == 0 {
		return
	}
	scale := radius / far
	for i := range xs {
		xs[i] *= scale
		ys[i] *= scale
	}
}

// rings places isolated nodes on concentric rings between inner and the extent:
// one ring per category tier in tier order, then an outer ring for the rest.
// Nodes on a ring are evenly spaced in id order.
func rings(ids []string, inner float64, opt Options) map[string]hierarchy.Position {
	out := make(map[string]hierarchy.Position, len(ids))
	if inner == 0 && len(ids) == 1 {
		out[ids[0]] = hierarchy.Position{}
		return out
	}

	outer := 0
	for _, t := range opt.Tiers {
		outer = max(outer, t+1)
	}
	byRing := make(map[int][]string)
	for _, id := range ids {
		ring := outer
		if opt.Category != nil {
			if t, ok := opt.Tiers[opt.Category(id)]; ok {
				ring = t
			}
		}
		byRing[ring] = append(byRing[ring], id)
	}
	order := make([]int, 0, len(byRing))
	for r := range byRing {
		order = append(order, r)
	}
	sort.Ints(order)

	for j, r := range order {
		members := byRing[r]
		sort.Strings(members)
		rad := inner + (opt.Extent-inner)*float64(j+1)/float64(len(order))
		offset := float64(j) * 0.37
		for i, id := range members {
			a := offset + 2*math.Pi*float64(i)/float64(len(members))
			out[id] = hierarchy.Position{X: rad * math.Cos(a), Y: rad * math.Sin(a)}
		}
	}
	return out
}
