// Package graph builds a weighted undirected contact graph from
// pre-aggregated edge/node statistics and analyzes it: community detection,
// graph statistics, and deterministic trimming.
package graph

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/cdr-insight/internal/model"
)

// Node is one party in the graph.
type Node struct {
	ID            string
	TotalEvents   int
	TotalDuration int
	FirstSeen     time.Time
	LastSeen      time.Time
}

// Edge is one undirected, merged contact edge. A < B always.
type Edge struct {
	A, B          string
	Weight        float64
	TotalDuration int
	EventCount    int
	FirstSeen     time.Time
	LastSeen      time.Time
}

// Graph is an undirected non-multi graph over phone-number node IDs. Built
// fresh per analytics request, never persisted.
type Graph struct {
	nodes     map[string]*Node
	adj       map[string]map[string]*Edge
	selfLoops int
	merged    int
}

// Build constructs a graph from pre-aggregated lists. Malformed identifiers
// are skipped with a warning; self-loop edges are counted separately and
// never added; an edge seen twice merges defensively.
func Build(nodes []model.NodeAggregate, edges []model.EdgeAggregate) *Graph {
	g := &Graph{
		nodes: make(map[string]*Node, len(nodes)),
		adj:   make(map[string]map[string]*Edge, len(nodes)),
	}

	for _, n := range nodes {
		id := strings.TrimSpace(n.ID)
		if id == "" {
			zap.L().Warn("graph: skipping node with empty id")
			continue
		}
		g.nodes[id] = &Node{
			ID:            id,
			TotalEvents:   n.TotalEvents,
			TotalDuration: n.TotalDuration,
			FirstSeen:     n.FirstSeen,
			LastSeen:      n.LastSeen,
		}
	}

	for _, e := range edges {
		a, b := strings.TrimSpace(e.Source), strings.TrimSpace(e.Target)
		if a == "" || b == "" {
			zap.L().Warn("graph: skipping edge with empty endpoint",
				zap.String("source", e.Source), zap.String("target", e.Target))
			continue
		}
		if a == b {
			g.selfLoops++
			continue
		}
		if b < a {
			a, b = b, a
		}

		// Endpoints missing from the node list should not occur given
		// upstream aggregation; create bare nodes rather than dropping data.
		g.ensureNode(a)
		g.ensureNode(b)

		if existing := g.edge(a, b); existing != nil {
			zap.L().Warn("graph: merging duplicate edge", zap.String("a", a), zap.String("b", b))
			existing.Weight += e.Weight
			existing.TotalDuration += e.TotalDuration
			existing.EventCount += e.EventCount
			if e.FirstSeen.Before(existing.FirstSeen) {
				existing.FirstSeen = e.FirstSeen
			}
			if e.LastSeen.After(existing.LastSeen) {
				existing.LastSeen = e.LastSeen
			}
			g.merged++
			continue
		}

		edge := &Edge{
			A: a, B: b,
			Weight:        e.Weight,
			TotalDuration: e.TotalDuration,
			EventCount:    e.EventCount,
			FirstSeen:     e.FirstSeen,
			LastSeen:      e.LastSeen,
		}
		g.addAdj(a, b, edge)
		g.addAdj(b, a, edge)
	}

	return g
}

func (g *Graph) ensureNode(id string) {
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = &Node{ID: id}
	}
}

func (g *Graph) addAdj(from, to string, e *Edge) {
	if g.adj[from] == nil {
		g.adj[from] = map[string]*Edge{}
	}
	g.adj[from][to] = e
}

func (g *Graph) edge(a, b string) *Edge {
	if m, ok := g.adj[a]; ok {
		return m[b]
	}
	return nil
}

// Order returns the node count; Size the edge count. Neither includes
// skipped self-loops.
func (g *Graph) Order() int { return len(g.nodes) }

func (g *Graph) Size() int {
	total := 0
	for _, m := range g.adj {
		total += len(m)
	}
	return total / 2
}

// SelfLoops reports how many self-loop edges were excluded during build.
func (g *Graph) SelfLoops() int { return g.selfLoops }

// NodeIDs returns all node IDs sorted lexicographically. Every traversal in
// this package iterates in this order for determinism.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Neighbors returns a node's neighbor IDs sorted lexicographically.
func (g *Graph) Neighbors(id string) []string {
	m := g.adj[id]
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Degree is the number of distinct neighbors.
func (g *Graph) Degree(id string) int { return len(g.adj[id]) }

// WeightedDegree is the sum of incident edge weights.
func (g *Graph) WeightedDegree(id string) float64 {
	var sum float64
	for _, e := range g.adj[id] {
		sum += e.Weight
	}
	return sum
}

// Edges returns every edge once, sorted by (A, B).
func (g *Graph) Edges() []*Edge {
	seen := map[*Edge]struct{}{}
	var out []*Edge
	for _, id := range g.NodeIDs() {
		for _, n := range g.Neighbors(id) {
			e := g.adj[id][n]
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}
