package graph

import (
	"sort"
	"strconv"
)

// IsolateLabel marks nodes that belong to no community (degree zero).
const IsolateLabel = "isolate"

const gainEps = 1e-9

// Communities runs Louvain modularity optimization with a fixed resolution
// and no randomization: nodes are visited in lexicographic ID order, ties
// break toward the lowest community index, and aggregation renumbers
// communities by first appearance. Repeated runs on the same graph always
// produce the same assignment.
//
// The returned map assigns every node a community label; labels are "c1",
// "c2", ... ordered by community size descending (ties by smallest member
// ID), with degree-zero nodes labeled IsolateLabel.
func Communities(g *Graph, resolution float64) map[string]string {
	if resolution <= 0 {
		resolution = 1.0
	}

	ids := g.NodeIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	lg := newLevelGraph(len(ids))
	for _, e := range g.Edges() {
		lg.addEdge(index[e.A], index[e.B], e.Weight)
	}

	// membership[i] is node i's community in the current level's terms.
	membership := make([]int, len(ids))
	for i := range membership {
		membership[i] = i
	}

	for level := 0; level < 16; level++ {
		comm, improved := oneLevel(lg, resolution)
		if !improved && level > 0 {
			break
		}
		renum := renumber(comm)
		for i := range membership {
			membership[i] = renum[comm[membership[i]]]
		}
		if !improved {
			break
		}
		lg = lg.aggregate(comm, renum)
	}

	return labelCommunities(g, ids, membership)
}

type levelGraph struct {
	n   int
	adj []map[int]float64 // undirected; self-loops stored once at adj[i][i]
}

func newLevelGraph(n int) *levelGraph {
	adj := make([]map[int]float64, n)
	for i := range adj {
		adj[i] = map[int]float64{}
	}
	return &levelGraph{n: n, adj: adj}
}

func (lg *levelGraph) addEdge(u, v int, w float64) {
	if u == v {
		lg.adj[u][u] += w
		return
	}
	lg.adj[u][v] += w
	lg.adj[v][u] += w
}

// degrees returns per-node weighted degree (self-loops count twice) and the
// doubled total weight 2m.
func (lg *levelGraph) degrees() ([]float64, float64) {
	k := make([]float64, lg.n)
	var m2 float64
	for i, nbrs := range lg.adj {
		for j, w := range nbrs {
			if i == j {
				k[i] += 2 * w
				m2 += 2 * w
			} else {
				k[i] += w
				m2 += w
			}
		}
	}
	return k, m2
}

// oneLevel performs local moving until no node improves modularity.
func oneLevel(lg *levelGraph, resolution float64) ([]int, bool) {
	k, m2 := lg.degrees()
	comm := make([]int, lg.n)
	commTot := make([]float64, lg.n)
	for i := range comm {
		comm[i] = i
		commTot[i] = k[i]
	}
	if m2 == 0 {
		return comm, false
	}

	improved := false
	for moved := true; moved; {
		moved = false
		for i := 0; i < lg.n; i++ {
			ci := comm[i]

			wTo := map[int]float64{}
			for j, w := range lg.adj[i] {
				if j != i {
					wTo[comm[j]] += w
				}
			}

			commTot[ci] -= k[i]

			best := ci
			bestGain := wTo[ci] - resolution*commTot[ci]*k[i]/m2

			cands := make([]int, 0, len(wTo))
			for c := range wTo {
				cands = append(cands, c)
			}
			sort.Ints(cands)

			for _, c := range cands {
				if c == ci {
					continue
				}
				gain := wTo[c] - resolution*commTot[c]*k[i]/m2
				if gain > bestGain+gainEps || (gain > bestGain-gainEps && c < best) {
					best, bestGain = c, gain
				}
			}

			commTot[best] += k[i]
			if best != ci {
				comm[i] = best
				moved = true
				improved = true
			}
		}
	}
	return comm, improved
}

// renumber maps community labels to dense indices by first appearance in
// node order.
func renumber(comm []int) map[int]int {
	renum := map[int]int{}
	next := 0
	for _, c := range comm {
		if _, ok := renum[c]; !ok {
			renum[c] = next
			next++
		}
	}
	return renum
}

// aggregate collapses each community into a single node; intra-community
// weight becomes a self-loop.
func (lg *levelGraph) aggregate(comm []int, renum map[int]int) *levelGraph {
	out := newLevelGraph(len(renum))
	for i, nbrs := range lg.adj {
		ci := renum[comm[i]]
		for j, w := range nbrs {
			cj := renum[comm[j]]
			switch {
			case i == j:
				out.adj[ci][ci] += w
			case i < j && ci == cj:
				out.adj[ci][ci] += w
			case i < j:
				out.adj[ci][cj] += w
				out.adj[cj][ci] += w
			}
		}
	}
	return out
}

// labelCommunities converts integer memberships to stable string labels.
func labelCommunities(g *Graph, ids []string, membership []int) map[string]string {
	members := map[int][]string{}
	for i, id := range ids {
		if g.Degree(id) == 0 {
			continue
		}
		members[membership[i]] = append(members[membership[i]], id)
	}

	type community struct {
		smallest string
		ids      []string
	}
	list := make([]community, 0, len(members))
	for _, ids := range members {
		sort.Strings(ids)
		list = append(list, community{smallest: ids[0], ids: ids})
	}
	sort.Slice(list, func(i, j int) bool {
		if len(list[i].ids) != len(list[j].ids) {
			return len(list[i].ids) > len(list[j].ids)
		}
		return list[i].smallest < list[j].smallest
	})

	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = IsolateLabel
	}
	for rank, c := range list {
		label := "c" + strconv.Itoa(rank+1)
		for _, id := range c.ids {
			labels[id] = label
		}
	}
	return labels
}
