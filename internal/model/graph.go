package model

import "time"

// EdgeAggregate is one pre-aggregated undirected contact edge produced by the
// store's aggregation queries. Self-loops and missing parties are already
// excluded upstream.
type EdgeAggregate struct {
	Source        string    `json:"source"`
	Target        string    `json:"target"`
	Weight        float64   `json:"weight"` // event count
	TotalDuration int       `json:"total_duration"`
	EventCount    int       `json:"event_count"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
}

// NodeAggregate is one pre-aggregated party across both caller and receiver
// positions.
type NodeAggregate struct {
	ID            string    `json:"id"`
	TotalEvents   int       `json:"total_events"`
	TotalDuration int       `json:"total_duration"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
}

// GraphNode is a node in the analytics response.
type GraphNode struct {
	ID             string    `json:"id"`
	Degree         int       `json:"degree"`
	WeightedDegree float64   `json:"weighted_degree"`
	TotalEvents    int       `json:"total_events"`
	TotalDuration  int       `json:"total_duration"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	Community      string    `json:"community"` // community id, or "isolate"
}

// GraphEdge is an edge in the analytics response.
type GraphEdge struct {
	Source        string    `json:"source"`
	Target        string    `json:"target"`
	Weight        float64   `json:"weight"`
	TotalDuration int       `json:"total_duration"`
	EventCount    int       `json:"event_count"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
}

// CommunitySummary describes one detected community, sorted by size descending
// in the response.
type CommunitySummary struct {
	ID              string   `json:"id"`
	Size            int      `json:"size"`
	TopMembers      []string `json:"top_members"` // up to 10, by weighted degree
	IntraEdgeWeight float64  `json:"intra_edge_weight"`
}

// GraphStats holds whole-graph statistics.
type GraphStats struct {
	Nodes             int     `json:"nodes"`
	Edges             int     `json:"edges"`
	Components        int     `json:"components"`
	Isolates          int     `json:"isolates"`
	Density           float64 `json:"density"`
	MaxDegree         int     `json:"max_degree"`
	AvgDegree         float64 `json:"avg_degree"`
	MaxWeightedDegree float64 `json:"max_weighted_degree"`
	AvgWeightedDegree float64 `json:"avg_weighted_degree"`
	SelfLoopsSkipped  int     `json:"self_loops_skipped"`
}

// GraphResult is the full analytics response for one upload.
type GraphResult struct {
	Nodes            []GraphNode        `json:"nodes"`
	Edges            []GraphEdge        `json:"edges"`
	Communities      []CommunitySummary `json:"communities"`
	Stats            GraphStats         `json:"stats"`
	Truncated        bool               `json:"truncated"`
	TruncationReason string             `json:"truncation_reason,omitempty"`
}
