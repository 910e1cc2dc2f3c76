package adjuster

import (
	"testing"

	"cxref/pkg/cgraph"
)

func TestPropagateDefToDeclAddsCallerEdges(t *testing.T) {
	g := cgraph.New()
	caller := cgraph.ID{Name: "caller", Kind: cgraph.Function}
	proto := cgraph.ID{Name: "f", Kind: cgraph.Prototype}
	def := cgraph.ID{Name: "f", Kind: cgraph.Function}
	g.AddNode(caller)
	g.AddNode(proto)
	g.AddNode(def)
	if err := g.AddEdge(caller, def, cgraph.Use); err != nil {
		t.Fatal(err)
	}

	Run(g, true)

	if got := g.Successors(def, cgraph.Use); len(got) != 1 || got[0] != proto {
		t.Fatalf("expected def -Use-> decl, got %v", got)
	}
	callerSucc := g.Successors(caller, cgraph.Use)
	found := false
	for _, s := range callerSucc {
		if s == proto {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected caller -Use-> decl to be forwarded, got %v", callerSucc)
	}
}

func TestRunWithoutPropagateOnlyPrunes(t *testing.T) {
	g := cgraph.New()
	caller := cgraph.ID{Name: "caller", Kind: cgraph.Function}
	proto := cgraph.ID{Name: "f", Kind: cgraph.Prototype}
	def := cgraph.ID{Name: "f", Kind: cgraph.Function}
	unused := cgraph.ID{Name: "?", Kind: cgraph.NotFoundKind}
	g.AddNode(caller)
	g.AddNode(proto)
	g.AddNode(def)
	g.AddNode(unused)
	if err := g.AddEdge(caller, proto, cgraph.Use); err != nil {
		t.Fatal(err)
	}

	Run(g, false)

	if got := g.Successors(def, cgraph.Use); len(got) != 0 {
		t.Fatalf("expected no propagation when disabled, got %v", got)
	}
	if g.HasNode(unused) {
		t.Fatalf("expected unconnected sink pruned")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	g := cgraph.New()
	caller := cgraph.ID{Name: "caller", Kind: cgraph.Function}
	proto := cgraph.ID{Name: "f", Kind: cgraph.Prototype}
	def := cgraph.ID{Name: "f", Kind: cgraph.Function}
	g.AddNode(caller)
	g.AddNode(proto)
	g.AddNode(def)
	if err := g.AddEdge(caller, proto, cgraph.Use); err != nil {
		t.Fatal(err)
	}

	Run(g, true)
	before := g.Edges()
	Run(g, true)
	after := g.Edges()

	if len(before) != len(after) {
		t.Fatalf("expected idempotent re-run: before=%d after=%d", len(before), len(after))
	}
}
