package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// GraphHashInput is the minimal canonical view of a directed graph this
// package needs to build a deterministic cache key; kept independent of
// package graph so this package never imports a services/ internal package.
type GraphHashInput struct {
	NodeIDs []string
	Edges   []GraphHashEdge
}

// GraphHashEdge is one edge's contribution to the canonical graph
// representation.
type GraphHashEdge struct {
	From, To      string
	Latency, Cost float64
}

// GraphHash computes a hash of a graph for use as a cache key component.
func GraphHash(g GraphHashInput) string {
	data := graphToCanonical(g)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// graphToCanonical builds a deterministic byte representation of a graph.
func graphToCanonical(g GraphHashInput) []byte {
	nodeIDs := append([]string(nil), g.NodeIDs...)
	sort.Strings(nodeIDs)

	edges := append([]GraphHashEdge(nil), g.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	var result []byte
	for _, id := range nodeIDs {
		result = append(result, []byte(fmt.Sprintf("n:%s;", id))...)
	}
	for _, e := range edges {
		result = append(result, []byte(fmt.Sprintf("e:%s:%s:%.6f:%.6f;",
			e.From, e.To, e.Latency, e.Cost))...)
	}
	return result
}

// BuildTrackSolveKey builds the cache key for a track's solution: the
// namespace, the optimizer kind used, and the graph hash, so a topology
// reload invalidates every cached solution without an explicit sweep.
func BuildTrackSolveKey(namespace, optimizerKind, graphHash string) string {
	return fmt.Sprintf("track:%s:%s:%s", namespace, optimizerKind, graphHash)
}

// QuickHash is a general-purpose hash for arbitrary data.
func QuickHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortHash is a 16-character hash for arbitrary data.
func ShortHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
