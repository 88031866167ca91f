package graph

import (
	"github.com/sells-group/cdr-insight/internal/model"
)

// Stats computes whole-graph statistics. Components are found by
// breadth-first traversal over the sorted node order; isolates are components
// of size one.
func Stats(g *Graph) model.GraphStats {
	stats := model.GraphStats{
		Nodes:            g.Order(),
		Edges:            g.Size(),
		SelfLoopsSkipped: g.SelfLoops(),
	}
	if stats.Nodes == 0 {
		return stats
	}

	visited := map[string]bool{}
	for _, id := range g.NodeIDs() {
		if visited[id] {
			continue
		}
		stats.Components++
		size := bfs(g, id, visited)
		if size == 1 {
			stats.Isolates++
		}
	}

	n := float64(stats.Nodes)
	if stats.Nodes > 1 {
		stats.Density = float64(stats.Edges) / (n * (n - 1) / 2)
	}

	var degSum, wdegSum float64
	for _, id := range g.NodeIDs() {
		d := g.Degree(id)
		wd := g.WeightedDegree(id)
		if d > stats.MaxDegree {
			stats.MaxDegree = d
		}
		if wd > stats.MaxWeightedDegree {
			stats.MaxWeightedDegree = wd
		}
		degSum += float64(d)
		wdegSum += wd
	}
	stats.AvgDegree = degSum / n
	stats.AvgWeightedDegree = wdegSum / n

	return stats
}

func bfs(g *Graph, start string, visited map[string]bool) int {
	queue := []string{start}
	visited[start] = true
	size := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		size++
		for _, n := range g.Neighbors(id) {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return size
}
