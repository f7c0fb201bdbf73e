package graph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileNode and fileEdge mirror the topology-file format described in §6:
// {nodes: [{name, location:[lat,lon]}], edges: [{node1, node2, attributes:{latency, cost}}]}.
type fileNode struct {
	Name     string     `yaml:"name"`
	Location [2]float64 `yaml:"location"`
}

type fileEdgeAttrs struct {
	Latency float64 `yaml:"latency"`
	Cost    float64 `yaml:"cost"`
}

type fileEdge struct {
	Node1      string        `yaml:"node1"`
	Node2      string        `yaml:"node2"`
	Attributes fileEdgeAttrs `yaml:"attributes"`
}

type fileGraph struct {
	Nodes []fileNode `yaml:"nodes"`
	Edges []fileEdge `yaml:"edges"`
}

// LoadFile parses a topology YAML file (the format consumed at startup via
// TOPOFILE) into a Graph. Edges are one-directional as declared; a
// bidirectional link in the source topology must be listed twice.
func LoadFile(path string) (*Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph: read topofile: %w", err)
	}
	return Load(raw)
}

// Load parses topology YAML bytes into a Graph.
func Load(raw []byte) (*Graph, error) {
	var fg fileGraph
	if err := yaml.Unmarshal(raw, &fg); err != nil {
		return nil, fmt.Errorf("graph: parse topofile: %w", err)
	}

	g := New()
	for _, n := range fg.Nodes {
		g.AddNode(Node{ID: n.Name, Lat: n.Location[0], Lon: n.Location[1]})
	}
	for _, e := range fg.Edges {
		if err := g.AddEdge(Edge{
			From:    e.Node1,
			To:      e.Node2,
			Latency: e.Attributes.Latency,
			Cost:    e.Attributes.Cost,
		}); err != nil {
			return nil, fmt.Errorf("graph: edge %s->%s: %w", e.Node1, e.Node2, err)
		}
	}
	return g, nil
}
