package clustering

import (
	"math/rand"
	"sort"
	"strconv"

	"github.com/kailas-cloud/zoomgraph/internal/domain/graph"
)

const gainEpsilon = 1e-12

// Params controls one community detection run.
type Params struct {
	Resolution float64
	Seed       int64
	MaxPasses  int
}

// Detect partitions the nodes of g with a seeded Leiden search over
// resolution-scaled modularity. The result maps node index to community;
// communities are numbered in order of their lowest node index.
//
// Every node lands in exactly one community. Isolated nodes stay alone.
func Detect(g *graph.Graph, p Params) []int {
	n := g.Len()
	if n == 0 {
		return nil
	}
	m2 := g.TotalStrength()
	if m2 == 0 {
		return identity(n)
	}
	passes := p.MaxPasses
	if passes <= 0 {
		passes = 10
	}
	rng := rand.New(rand.NewSource(p.Seed)) //nolint:gosec // seeded for reproducibility

	nodeOf := identity(n)
	cur := g
	comm := identity(n)
	for pass := 0; pass < passes; pass++ {
		moveNodes(cur, comm, p.Resolution, m2, rng)

		var k int
		comm, k = renumber(comm)
		if k == cur.Len() {
			break
		}

		refined, r := renumber(refine(cur, comm, p.Resolution, m2, rng))
		if r == cur.Len() {
			refined, r = comm, k
		}

		next := make([]int, r)
		for u, rc := range refined {
			next[rc] = comm[u]
		}
		ids := make([]string, r)
		for i := range ids {
			ids[i] = strconv.Itoa(i)
		}
		cur = cur.Aggregate(refined, ids)
		for i := range nodeOf {
			nodeOf[i] = refined[nodeOf[i]]
		}
		comm = next
	}

	out := make([]int, n)
	for i := range out {
		out[i] = comm[nodeOf[i]]
	}
	out, _ = renumber(out)
	return out
}

// moveNodes runs the queue-based local moving phase in place.
// A node moves only on a strict quality gain; ties keep it where it is,
// then prefer the lowest community id.
func moveNodes(g *graph.Graph, comm []int, gamma, m2 float64, rng *rand.Rand) {
	n := g.Len()
	tot := make([]float64, n)
	size := make([]int, n)
	for u, c := range comm {
		tot[c] += g.Strength(u)
		size[c]++
	}
	var empty []int
	for c := n - 1; c >= 0; c-- {
		if size[c] == 0 {
			empty = append(empty, c)
		}
	}

	queue := rng.Perm(n)
	inQueue := make([]bool, n)
	for i := range inQueue {
		inQueue[i] = true
	}
	w := make([]float64, n)
	mark := make([]bool, n)
	var touched []int

	for head := 0; head < len(queue); head++ {
		v := queue[head]
		inQueue[v] = false
		cv, kv := comm[v], g.Strength(v)

		touched = touched[:0]
		for _, a := range g.Neighbors(v) {
			c := comm[a.To]
			if !mark[c] {
				mark[c] = true
				touched = append(touched, c)
			}
			w[c] += a.Weight
		}
		sort.Ints(touched)

		tot[cv] -= kv
		size[cv]--
		best, bestGain := cv, w[cv]-gamma*kv*tot[cv]/m2
		for _, c := range touched {
			if c == cv {
				continue
			}
			if gain := w[c] - gamma*kv*tot[c]/m2; gain > bestGain+gainEpsilon {
				best, bestGain = c, gain
			}
		}
		if bestGain < -gainEpsilon && size[cv] > 0 && best == cv && len(empty) > 0 {
			best = empty[len(empty)-1]
			empty = empty[:len(empty)-1]
		}

		for _, c := range touched {
			w[c] = 0
			mark[c] = false
		}
		if best != cv && size[cv] == 0 {
			empty = append(empty, cv)
		}
		tot[best] += kv
		size[best]++
		comm[v] = best

		if best == cv {
			continue
		}
		for _, a := range g.Neighbors(v) {
			if u := a.To; comm[u] != best && !inQueue[u] {
				inQueue[u] = true
				queue = append(queue, u)
			}
		}
	}
}

// refine splits each community into well-connected subcommunities by greedy
// merges of singletons, never crossing community boundaries.
func refine(g *graph.Graph, comm []int, gamma, m2 float64, rng *rand.Rand) []int {
	n := g.Len()
	ref := identity(n)
	refTot := make([]float64, n)
	refSize := make([]int, n)
	ext := make([]float64, n)
	commTot := make([]float64, n)
	for v := 0; v < n; v++ {
		k := g.Strength(v)
		refTot[v] = k
		refSize[v] = 1
		commTot[comm[v]] += k
		for _, a := range g.Neighbors(v) {
			if comm[a.To] == comm[v] {
				ext[v] += a.Weight
			}
		}
	}

	w := make([]float64, n)
	mark := make([]bool, n)
	var touched []int
	for _, v := range rng.Perm(n) {
		rv := ref[v]
		if refSize[rv] != 1 {
			continue
		}
		c, kv := comm[v], g.Strength(v)
		if ext[rv] < gamma*kv*(commTot[c]-kv)/m2 {
			continue
		}

		touched = touched[:0]
		for _, a := range g.Neighbors(v) {
			if comm[a.To] != c {
				continue
			}
			r := ref[a.To]
			if !mark[r] {
				mark[r] = true
				touched = append(touched, r)
			}
			w[r] += a.Weight
		}
		sort.Ints(touched)

		best, bestGain := -1, 0.0
		for _, r := range touched {
			if r == rv {
				continue
			}
			if ext[r] < gamma*refTot[r]*(commTot[c]-refTot[r])/m2 {
				continue
			}
			if gain := w[r] - gamma*kv*refTot[r]/m2; gain > bestGain+gainEpsilon {
				best, bestGain = r, gain
			}
		}
		if best >= 0 {
			ext[best] += ext[rv] - 2*w[best]
			refTot[best] += kv
			refSize[best]++
			refTot[rv], refSize[rv], ext[rv] = 0, 0, 0
			ref[v] = best
		}

		for _, r := range touched {
			w[r] = 0
			mark[r] = false
		}
	}
	return ref
}

// renumber relabels communities 0..k-1 in order of first appearance.
func renumber(labels []int) ([]int, int) {
	next := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		id, ok := next[l]
		if !ok {
			id = len(next)
			next[l] = id
		}
		out[i] = id
	}
	return out, len(next)
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
