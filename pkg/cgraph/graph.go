// Package cgraph defines the code graph: a labelled directed multigraph
// of source entities (files, functions, types, ...) connected by
// containment ("Has") and use ("Use") edges.
//
// The shape follows the structural index types in odvcencio-gts-suite's
// pkg/model (Symbol/Reference/FileSummary/Index) and the resolved-graph
// bookkeeping in its internal/xref package (defByID, outgoingByDef,
// incomingByDef), generalized from Go-specific symbols to the C entity
// kinds named in the specification.
package cgraph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the syntactic category of a node.
type Kind string

const (
	Root          Kind = "Root"
	Dir           Kind = "Dir"
	File          Kind = "File"
	Function      Kind = "Function"
	Prototype     Kind = "Prototype"
	Global        Kind = "Global"
	GlobalExtern  Kind = "GlobalExtern"
	Type          Kind = "Type"
	Field         Kind = "Field"
	Constructor   Kind = "Constructor"
	Constant      Kind = "Constant"
	Macro         Kind = "Macro"
	NotFoundKind  Kind = "NotFound"
	DupeKind      Kind = "Dupe"
	PbKind        Kind = "Pb"
)

// Sinks lists the synthetic node kinds that are pruned from the final
// graph when they carry no edges.
var Sinks = []Kind{NotFoundKind, DupeKind, PbKind}

// Label distinguishes containment from use edges.
type Label string

const (
	Has Label = "Has"
	Use Label = "Use"
)

// Pos is a source position: file path plus 1-based line and column.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Info is the optional metadata attached to a real node: its source
// position, a serialized type signature, and property flags.
type Info struct {
	Pos       Pos
	TypeSig   string
	Flags     map[string]bool
}

// ID identifies a node by its (name, kind) pair, per spec §3.
type ID struct {
	Name string
	Kind Kind
}

func (id ID) String() string {
	return string(id.Kind) + ":" + id.Name
}

// TypePrefix returns the C tag-space prefix for struct/union/enum/typedef
// names flattened into the single Type kind (spec §3).
type TypePrefix string

const (
	StructPrefix  TypePrefix = "S__"
	UnionPrefix   TypePrefix = "U__"
	EnumPrefix    TypePrefix = "E__"
	TypedefPrefix TypePrefix = "T__"
)

// TypeName builds the flattened Type-kind node name for a tag.
func TypeName(prefix TypePrefix, tag string) string {
	return string(prefix) + tag
}

// FieldName builds the node name for a struct/union field.
func FieldName(owner, field string) string {
	return owner + "." + field
}

// StripPrefix reports whether name carries the given Type prefix and,
// if so, returns the bare tag beneath it.
func StripPrefix(name string, prefix TypePrefix) (tag string, ok bool) {
	p := string(prefix)
	if !strings.HasPrefix(name, p) {
		return "", false
	}
	return strings.TrimPrefix(name, p), true
}

type edge struct {
	Src, Dst ID
	Label    Label
}

// Graph is the mutable-during-build, frozen-for-consumers store
// described in spec.md §4.1. It is not safe for concurrent mutation;
// per spec.md §5 a build is single-threaded within one pass.
type Graph struct {
	order []ID
	nodes map[ID]bool
	info  map[ID]Info

	out map[ID]map[Label][]ID
	in  map[ID]map[Label][]ID

	edgeSeen map[edge]bool

	gensym int
}

// New returns an empty graph containing only the synthetic Root node.
func New() *Graph {
	g := &Graph{
		nodes:    make(map[ID]bool),
		info:     make(map[ID]Info),
		out:      make(map[ID]map[Label][]ID),
		in:       make(map[ID]map[Label][]ID),
		edgeSeen: make(map[edge]bool),
	}
	g.AddNode(RootID())
	return g
}

// RootID is the identity of the single Root node every file/dir
// ultimately hangs off of.
func RootID() ID { return ID{Name: "/", Kind: Root} }

// AddNode adds n to the graph. Idempotent: a second add of an existing
// node is a no-op, returning false.
func (g *Graph) AddNode(n ID) bool {
	if g.nodes[n] {
		return false
	}
	g.nodes[n] = true
	g.order = append(g.order, n)
	return true
}

// HasNode reports whether n is present in the graph.
func (g *Graph) HasNode(n ID) bool {
	return g.nodes[n]
}

// AddEdge adds a Has/Use edge between two existing nodes. It returns an
// error if either endpoint is missing — per spec.md §7 this is a
// programmer error ("missing source endpoint"), not a recoverable one.
func (g *Graph) AddEdge(src, dst ID, label Label) error {
	if !g.nodes[src] {
		return fmt.Errorf("add_edge: source node %s not present in graph", src)
	}
	if !g.nodes[dst] {
		return fmt.Errorf("add_edge: destination node %s not present in graph", dst)
	}
	e := edge{Src: src, Dst: dst, Label: label}
	if g.edgeSeen[e] {
		return nil
	}
	g.edgeSeen[e] = true

	if g.out[src] == nil {
		g.out[src] = make(map[Label][]ID)
	}
	g.out[src][label] = append(g.out[src][label], dst)

	if g.in[dst] == nil {
		g.in[dst] = make(map[Label][]ID)
	}
	g.in[dst][label] = append(g.in[dst][label], src)
	return nil
}

// AttachInfo records node metadata. Spec.md §4.1 describes this as
// one-shot per node; a second call overwrites the earlier info
// silently.
func (g *Graph) AttachInfo(n ID, info Info) error {
	if !g.nodes[n] {
		return fmt.Errorf("attach_info: node %s not present in graph", n)
	}
	g.info[n] = info
	return nil
}

// Info returns the attached metadata for n, if any.
func (g *Graph) Info(n ID) (Info, bool) {
	info, ok := g.info[n]
	return info, ok
}

// Predecessors enumerates the nodes with an edge labelled label into n.
func (g *Graph) Predecessors(n ID, label Label) []ID {
	edges := g.in[n][label]
	if len(edges) == 0 {
		return nil
	}
	out := make([]ID, len(edges))
	copy(out, edges)
	return out
}

// Successors enumerates the nodes with an edge labelled label out of n.
func (g *Graph) Successors(n ID, label Label) []ID {
	edges := g.out[n][label]
	if len(edges) == 0 {
		return nil
	}
	out := make([]ID, len(edges))
	copy(out, edges)
	return out
}

// HasAnyEdge reports whether n participates, as either endpoint, in any
// edge of any label. Used by RemoveEmpty.
func (g *Graph) HasAnyEdge(n ID) bool {
	for _, byLabel := range g.out[n] {
		if len(byLabel) > 0 {
			return true
		}
	}
	for _, byLabel := range g.in[n] {
		if len(byLabel) > 0 {
			return true
		}
	}
	return false
}

// RemoveEmpty deletes each listed sink node that has zero incident
// edges of any label, per spec.md §4.1 and §4.6. It is idempotent:
// calling it again after removal is a no-op for already-removed nodes.
func (g *Graph) RemoveEmpty(sinks []ID) []ID {
	var removed []ID
	for _, n := range sinks {
		if !g.nodes[n] {
			continue
		}
		if g.HasAnyEdge(n) {
			continue
		}
		delete(g.nodes, n)
		delete(g.info, n)
		delete(g.out, n)
		delete(g.in, n)
		removed = append(removed, n)
	}
	if len(removed) > 0 {
		filtered := g.order[:0:0]
		removedSet := make(map[ID]bool, len(removed))
		for _, n := range removed {
			removedSet[n] = true
		}
		for _, n := range g.order {
			if !removedSet[n] {
				filtered = append(filtered, n)
			}
		}
		g.order = filtered
	}
	return removed
}

// CreateIntermediateDirs ensures a Dir node exists for every ancestor
// directory of a repository-relative path and chains them with Has
// edges back to Root, per spec.md §4.1. It returns the ID of the
// deepest Dir node, the direct parent of the eventual File node.
func (g *Graph) CreateIntermediateDirs(relPath string) (ID, error) {
	relPath = strings.TrimPrefix(relPath, "/")
	parts := strings.Split(relPath, "/")
	if len(parts) <= 1 {
		return RootID(), nil
	}
	dirParts := parts[:len(parts)-1]

	parent := RootID()
	cursor := ""
	for _, part := range dirParts {
		if cursor == "" {
			cursor = part
		} else {
			cursor = cursor + "/" + part
		}
		dirID := ID{Name: cursor, Kind: Dir}
		if g.AddNode(dirID) {
			if err := g.AddEdge(parent, dirID, Has); err != nil {
				return ID{}, err
			}
		}
		parent = dirID
	}
	return parent, nil
}

// Gensym returns s with a unique suffix drawn from this Graph's
// monotonically increasing counter, per spec.md §4.1. Collisions are
// impossible because the counter only ever increases within one
// Graph's lifetime; resetting it (ResetGensym) between independent
// builds keeps test output deterministic, per spec.md §9.
func (g *Graph) Gensym(s string) string {
	g.gensym++
	return s + "__" + strconv.Itoa(g.gensym)
}

// ResetGensym sets the gensym counter back to zero. Callers should
// invoke this between independent builds sharing a process, per
// spec.md §9's "Open questions" note on determinism.
func (g *Graph) ResetGensym() {
	g.gensym = 0
}

// Nodes returns every node currently in the graph, in insertion order.
func (g *Graph) Nodes() []ID {
	out := make([]ID, len(g.order))
	copy(out, g.order)
	return out
}

// NodeCount returns the number of nodes currently in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Edges returns every edge currently in the graph, sorted for
// deterministic iteration (used by exporters and tests).
func (g *Graph) Edges() []struct {
	Src, Dst ID
	Label    Label
} {
	out := make([]struct {
		Src, Dst ID
		Label    Label
	}, 0, len(g.edgeSeen))
	for e := range g.edgeSeen {
		out = append(out, struct {
			Src, Dst ID
			Label    Label
		}{e.Src, e.Dst, e.Label})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src.String() != out[j].Src.String() {
			return out[i].Src.String() < out[j].Src.String()
		}
		if out[i].Dst.String() != out[j].Dst.String() {
			return out[i].Dst.String() < out[j].Dst.String()
		}
		return out[i].Label < out[j].Label
	})
	return out
}
