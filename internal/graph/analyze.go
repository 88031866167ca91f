package graph

import (
	"sort"

	"github.com/sells-group/cdr-insight/internal/model"
)

// HardNodeCeiling is the absolute node bound: trimming to it always takes
// precedence over a caller-requested limit and carries a distinct truncation
// reason.
const HardNodeCeiling = 20000

// Truncation reasons surfaced in analytics responses.
const (
	TruncationHardCeiling = "node count exceeded hard ceiling; trimmed to top nodes by weighted degree"
	TruncationUserLimit   = "trimmed to requested node limit by weighted degree"
)

// Params controls one analytics request.
type Params struct {
	MinEdgeWeight float64
	NodeLimit     int // caller-requested; 0 = no request
	EdgeLimit     int // caller-requested; 0 = unlimited
	Resolution    float64
	MaxNodes      int // hard ceiling override; 0 = HardNodeCeiling
}

// Analyze builds the graph from pre-aggregated inputs and produces the full
// analytics response: nodes with community assignments, edges, community
// summaries, statistics, and truncation state.
func Analyze(nodes []model.NodeAggregate, edges []model.EdgeAggregate, p Params) *model.GraphResult {
	if p.MaxNodes <= 0 {
		p.MaxNodes = HardNodeCeiling
	}

	if p.MinEdgeWeight > 0 {
		filtered := edges[:0:0]
		for _, e := range edges {
			if e.Weight >= p.MinEdgeWeight {
				filtered = append(filtered, e)
			}
		}
		edges = filtered
	}

	g := Build(nodes, edges)

	result := &model.GraphResult{}
	if g.Order() > p.MaxNodes {
		trim(g, p.MaxNodes)
		result.Truncated = true
		result.TruncationReason = TruncationHardCeiling
	} else if p.NodeLimit > 0 && g.Order() > p.NodeLimit {
		trim(g, p.NodeLimit)
		result.Truncated = true
		result.TruncationReason = TruncationUserLimit
	}

	labels := Communities(g, p.Resolution)
	result.Stats = Stats(g)
	result.Nodes = nodeList(g, labels)
	result.Edges = edgeList(g, p.EdgeLimit)
	result.Communities = summarize(g, labels)

	return result
}

// trim retains the top-n nodes by weighted degree descending, tie-broken by
// node ID ascending — a total order, so trimming is deterministic. Edges
// survive only when both endpoints do.
func trim(g *Graph, n int) {
	ids := g.NodeIDs()
	sort.Slice(ids, func(i, j int) bool {
		wi, wj := g.WeightedDegree(ids[i]), g.WeightedDegree(ids[j])
		if wi != wj {
			return wi > wj
		}
		return ids[i] < ids[j]
	})

	keep := map[string]bool{}
	for _, id := range ids[:n] {
		keep[id] = true
	}

	for _, id := range ids[n:] {
		delete(g.nodes, id)
		delete(g.adj, id)
	}
	for _, nbrs := range g.adj {
		for other := range nbrs {
			if !keep[other] {
				delete(nbrs, other)
			}
		}
	}
}

func nodeList(g *Graph, labels map[string]string) []model.GraphNode {
	out := make([]model.GraphNode, 0, g.Order())
	for _, id := range g.NodeIDs() {
		n := g.nodes[id]
		out = append(out, model.GraphNode{
			ID:             id,
			Degree:         g.Degree(id),
			WeightedDegree: g.WeightedDegree(id),
			TotalEvents:    n.TotalEvents,
			TotalDuration:  n.TotalDuration,
			FirstSeen:      n.FirstSeen,
			LastSeen:       n.LastSeen,
			Community:      labels[id],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeightedDegree != out[j].WeightedDegree {
			return out[i].WeightedDegree > out[j].WeightedDegree
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func edgeList(g *Graph, limit int) []model.GraphEdge {
	edges := g.Edges()
	out := make([]model.GraphEdge, 0, len(edges))
	for _, e := range edges {
		out = append(out, model.GraphEdge{
			Source:        e.A,
			Target:        e.B,
			Weight:        e.Weight,
			TotalDuration: e.TotalDuration,
			EventCount:    e.EventCount,
			FirstSeen:     e.FirstSeen,
			LastSeen:      e.LastSeen,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// summarize builds per-community summaries sorted by size descending:
// member count, top-10 members by weighted degree, and total
// intra-community edge weight.
func summarize(g *Graph, labels map[string]string) []model.CommunitySummary {
	members := map[string][]string{}
	for _, id := range g.NodeIDs() {
		label := labels[id]
		if label == IsolateLabel {
			continue
		}
		members[label] = append(members[label], id)
	}

	out := make([]model.CommunitySummary, 0, len(members))
	for label, ids := range members {
		sort.Slice(ids, func(i, j int) bool {
			wi, wj := g.WeightedDegree(ids[i]), g.WeightedDegree(ids[j])
			if wi != wj {
				return wi > wj
			}
			return ids[i] < ids[j]
		})

		top := ids
		if len(top) > 10 {
			top = top[:10]
		}

		var intra float64
		inCommunity := map[string]bool{}
		for _, id := range ids {
			inCommunity[id] = true
		}
		for _, e := range g.Edges() {
			if inCommunity[e.A] && inCommunity[e.B] {
				intra += e.Weight
			}
		}

		out = append(out, model.CommunitySummary{
			ID:              label,
			Size:            len(ids),
			TopMembers:      append([]string(nil), top...),
			IntraEdgeWeight: intra,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].ID < out[j].ID
	})
	return out
}
