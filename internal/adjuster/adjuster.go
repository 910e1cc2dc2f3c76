// Package adjuster implements the post-pass that optionally
// propagates users of a definition onto its declaration counterpart,
// then prunes the synthetic sink kinds left without edges.
package adjuster

import "cxref/pkg/cgraph"

// declKinds pairs each declaration-shaped kind with the definition
// kind it should be matched against.
var declKinds = map[cgraph.Kind]cgraph.Kind{
	cgraph.Prototype:    cgraph.Function,
	cgraph.GlobalExtern: cgraph.Global,
}

// Run executes the Adjuster over g. When propagate is false it only
// performs sink pruning. It is idempotent: running it twice produces
// the same graph as running it once, since both AddEdge and
// RemoveEmpty are themselves idempotent.
func Run(g *cgraph.Graph, propagate bool) []cgraph.ID {
	if propagate {
		propagateDefToDecl(g)
	}
	return g.RemoveEmpty(sinkNodes(g))
}

func propagateDefToDecl(g *cgraph.Graph) {
	for _, decl := range g.Nodes() {
		defKind, ok := declKinds[decl.Kind]
		if !ok {
			continue
		}
		def := cgraph.ID{Name: decl.Name, Kind: defKind}
		if !g.HasNode(def) {
			continue
		}
		if def == decl {
			continue
		}

		// Bind the decl into the graph via its definition so a
		// decl with no direct callers is not pruned as an empty sink.
		_ = g.AddEdge(def, decl, cgraph.Use)

		for _, caller := range g.Predecessors(def, cgraph.Use) {
			if caller == decl {
				continue
			}
			_ = g.AddEdge(caller, decl, cgraph.Use)
		}
	}

	typedefDeclPropagation(g)
}

// typedefDeclPropagation pairs a typedef node T__x with the struct
// tag S__x it names, when such a struct exists — the typedef/type
// analog of prototype/extern-global propagation.
func typedefDeclPropagation(g *cgraph.Graph) {
	for _, decl := range g.Nodes() {
		if decl.Kind != cgraph.Type {
			continue
		}
		tag, isTypedef := cgraph.StripPrefix(decl.Name, cgraph.TypedefPrefix)
		if !isTypedef {
			continue
		}
		def := cgraph.ID{Name: cgraph.TypeName(cgraph.StructPrefix, tag), Kind: cgraph.Type}
		if !g.HasNode(def) {
			continue
		}
		_ = g.AddEdge(def, decl, cgraph.Use)
		for _, caller := range g.Predecessors(def, cgraph.Use) {
			if caller == decl {
				continue
			}
			_ = g.AddEdge(caller, decl, cgraph.Use)
		}
	}
}

func sinkNodes(g *cgraph.Graph) []cgraph.ID {
	var sinks []cgraph.ID
	for _, n := range g.Nodes() {
		for _, sinkKind := range cgraph.Sinks {
			if n.Kind == sinkKind {
				sinks = append(sinks, n)
				break
			}
		}
	}
	return sinks
}
