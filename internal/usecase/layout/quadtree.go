package layout

import "math"

const (
	// theta below 1/sqrt(2) keeps a body from approximating its own cell.
	theta        = 0.7
	maxTreeDepth = 32
)

// quad is one Barnes-Hut cell over a square region.
type quad struct {
	cx, cy, half float64
	mass, mx, my float64
	body         int
	children     *[4]*quad
	extra        []int
}

func newQuadTree(xs, ys []float64) *quad {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range xs {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}
	half := math.Max(maxX-minX, maxY-minY)/2 + 1e-9
	root := &quad{cx: (minX + maxX) / 2, cy: (minY + maxY) / 2, half: half, body: -1}
	for i := range xs {
		root.insert(i, xs, ys, 0)
	}
	return root
}

func (q *quad) insert(i int, xs, ys []float64, depth int) {
	q.mass++
	q.mx += xs[i]
	q.my += ys[i]

	if q.children == nil {
		if q.mass == 1 {
			q.body = i
			return
		}
		if depth >= maxTreeDepth {
			q.extra = append(q.extra, i)
			return
		}
		q.children = &[4]*quad{}
		old := q.body
		q.body = -1
		q.child(xs[old], ys[old]).insert(old, xs, ys, depth+1)
	}
	q.child(xs[i], ys[i]).insert(i, xs, ys, depth+1)
}

func (q *quad) child(x, y float64) *quad {
	idx := 0
	ox, oy := -q.half/2, -q.half/2
	if x >= q.cx {
		idx |= 1
		ox = q.half / 2
	}
	if y >= q.cy {
		idx |= 2
		oy = q.half / 2
	}
	if q.children[idx] == nil {
		q.children[idx] = &quad{cx: q.cx + ox, cy: q.cy + oy, half: q.half / 2, body: -1}
	}
	return q.children[idx]
}

// repulse returns the repulsive force of the cell's bodies on body i.
func (q *quad) repulse(i int, xs, ys []float64, k2 float64) (float64, float64) {
	if q.mass == 0 {
		return 0, 0
	}
	if q.children == nil {
		var fx, fy float64
		if q.body >= 0 && q.body != i {
			x, y := pairForce(i, q.body, xs, ys, k2)
			fx, fy = fx+x, fy+y
		}
		for _, j := range q.extra {
			if j != i {
				x, y := pairForce(i, j, xs, ys, k2)
				fx, fy = fx+x, fy+y
			}
		}
		return fx, fy
	}

	ddx, ddy := xs[i]-q.mx/q.mass, ys[i]-q.my/q.mass
	d2 := ddx*ddx + ddy*ddy
	size := 2 * q.half
	if d2 > 0 && size*size < theta*theta*d2 {
		f := k2 * q.mass / d2
		return ddx * f, ddy * f
	}
	var fx, fy float64
	for _, c := range q.children {
		if c != nil {
			x, y := c.repulse(i, xs, ys, k2)
			fx, fy = fx+x, fy+y
		}
	}
	return fx, fy
}

// pairForce is the repulsion of j on i. Coincident bodies are pushed apart
// along a direction fixed by their indices.
func pairForce(i, j int, xs, ys []float64, k2 float64) (float64, float64) {
	ddx, ddy := xs[i]-xs[j], ys[i]-ys[j]
	d2 := ddx*ddx + ddy*ddy
	if d2 < 1e-12 {
		s := 1e-3
		if i < j {
			s = -s
		}
		ddx, ddy = s, s/2
		d2 = ddx*ddx + ddy*ddy
	}
	f := k2 / d2
	return ddx * f, ddy * f
}
