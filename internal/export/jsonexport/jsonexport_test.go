package jsonexport

import (
	"path/filepath"
	"testing"

	"cxref/pkg/cgraph"
)

func buildSampleGraph(t *testing.T) *cgraph.Graph {
	t.Helper()
	g := cgraph.New()
	fileID := cgraph.ID{Name: "a.c", Kind: cgraph.File}
	fnID := cgraph.ID{Name: "f", Kind: cgraph.Function}
	g.AddNode(fileID)
	g.AddNode(fnID)
	if err := g.AddEdge(fileID, fnID, cgraph.Has); err != nil {
		t.Fatal(err)
	}
	if err := g.AttachInfo(fnID, cgraph.Info{Pos: cgraph.Pos{File: "a.c", Line: 3, Column: 1}}); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	g := buildSampleGraph(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "snapshot.json")

	if err := Save(path, g, []cgraph.ID{{Name: "unused", Kind: cgraph.DupeKind}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	foundFn := false
	for _, n := range snap.Nodes {
		if n.Name == "f" && n.Kind == string(cgraph.Function) {
			foundFn = true
			if n.File != "a.c" || n.Line != 3 {
				t.Fatalf("expected position info to round-trip, got %+v", n)
			}
		}
	}
	if !foundFn {
		t.Fatalf("expected function node f in snapshot, got %+v", snap.Nodes)
	}

	foundEdge := false
	for _, e := range snap.Edges {
		if e.Label == string(cgraph.Has) {
			foundEdge = true
		}
	}
	if !foundEdge {
		t.Fatalf("expected a Has edge in snapshot, got %+v", snap.Edges)
	}

	if len(snap.Removed) != 1 || snap.Removed[0].Name != "unused" {
		t.Fatalf("expected the removed sink to round-trip, got %+v", snap.Removed)
	}
}
