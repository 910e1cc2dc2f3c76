// Package jsonexport snapshots a finished code graph to a JSON file,
// following gts-suite's pkg/index cache: a json.Encoder with indent
// for Save, a json.Decoder for Load, both via a plain os.Create/Open.
package jsonexport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cxref/pkg/cgraph"
)

// Node is the serialized form of one graph node.
type Node struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	TypeSig string `json:"type_sig,omitempty"`
}

// Edge is the serialized form of one graph edge.
type Edge struct {
	Src   string `json:"src"`
	Dst   string `json:"dst"`
	Label string `json:"label"`
}

// Snapshot is the top-level document written to disk: every node and
// edge in a graph, plus the sink nodes the adjuster pruned.
type Snapshot struct {
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
	Removed []Node `json:"removed,omitempty"`
}

// FromGraph builds a Snapshot from a finished graph. removed is the
// Adjuster's pruned-sink-node list; pass nil if unavailable.
func FromGraph(g *cgraph.Graph, removed []cgraph.ID) Snapshot {
	ids := g.Nodes()
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, nodeOf(g, id))
	}

	edges := g.Edges()
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		out = append(out, Edge{Src: e.Src.String(), Dst: e.Dst.String(), Label: string(e.Label)})
	}

	var removedNodes []Node
	for _, id := range removed {
		removedNodes = append(removedNodes, Node{Name: id.Name, Kind: string(id.Kind)})
	}

	return Snapshot{Nodes: nodes, Edges: out, Removed: removedNodes}
}

func nodeOf(g *cgraph.Graph, id cgraph.ID) Node {
	n := Node{Name: id.Name, Kind: string(id.Kind)}
	if info, ok := g.Info(id); ok {
		n.File = info.Pos.File
		n.Line = info.Pos.Line
		n.Column = info.Pos.Column
		n.TypeSig = info.TypeSig
	}
	return n
}

// Save writes a graph snapshot to path as indented JSON, creating
// parent directories as needed.
func Save(path string, g *cgraph.Graph, removed []cgraph.ID) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(FromGraph(g, removed))
}

// Load reads back a snapshot previously written by Save.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	var snap Snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}
	return &snap, nil
}
