// Package resolver implements name resolution for the Use walker: the
// add_use_edge operation, its rekind fallback, local-variable
// shadowing, and the single pluggable use-edge hook. It is grounded in
// odvcencio-gts-suite's internal/xref tiered resolution (file scope,
// then package/global scope, reporting ambiguity rather than guessing)
// generalized to the rekind strategy this engine needs instead.
package resolver

import (
	"fmt"
	"log/slog"
	"strings"

	"cxref/internal/symtab"
	"cxref/pkg/cgraph"
)

// Context describes why the walker is emitting a use edge. The zero
// value, NoContext, is the default; the Use walker passes CallArg for
// uses inside a call's arguments and AssignRHS for uses on the
// right-hand side of an assignment.
type Context int

const (
	NoContext Context = iota
	CallArg
	AssignRHS
)

// Hook observes every successfully resolved use edge. The default is
// a no-op; builders register one explicitly rather than relying on a
// process-global, per the hook-surface design note.
type Hook func(ctx Context, inAssign bool, src, dst cgraph.ID, g *cgraph.Graph)

func noopHook(Context, bool, cgraph.ID, cgraph.ID, *cgraph.Graph) {}

// falsePositiveTokens are vendor-specific tagging macros that must
// never produce a use edge even though they look like identifiers.
var falsePositiveTokens = map[string]bool{
	"USED": true,
	"SET":  true,
}

// rekind lists, for a starting kind, the single adjacent kind worth
// retrying when the first lookup misses.
var rekind = map[cgraph.Kind]cgraph.Kind{
	cgraph.Function: cgraph.Prototype,
	cgraph.Global:   cgraph.GlobalExtern,
}

// Resolver carries the shared graph, tables, and locals state for one
// Use-walker traversal. A fresh Resolver is created per build.
type Resolver struct {
	Graph  *cgraph.Graph
	Tables *symtab.Tables
	Hook   Hook
	Log    *slog.Logger

	locals []string
}

// New returns a Resolver over g and tabs. A nil hook installs the
// default no-op; a nil logger installs slog's default logger.
func New(g *cgraph.Graph, tabs *symtab.Tables, hook Hook, logger *slog.Logger) *Resolver {
	if hook == nil {
		hook = noopHook
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{Graph: g, Tables: tabs, Hook: hook, Log: logger}
}

// PushLocal adds a name to the in-scope locals list (a function
// parameter or a non-extern block-local variable). The list is
// ordered only because §4.3 describes it as a list; lookup is by
// membership, not position.
func (r *Resolver) PushLocal(name string) {
	r.locals = append(r.locals, name)
}

// ResetLocals clears the locals list; the Use walker calls this when
// entering a new function body.
func (r *Resolver) ResetLocals() {
	r.locals = r.locals[:0]
}

// IsLocal reports whether name is currently an in-scope local,
// suppressing it from becoming a use edge.
func (r *Resolver) IsLocal(name string) bool {
	for _, l := range r.locals {
		if l == name {
			return true
		}
	}
	return false
}

// AddUseEdge implements add_use_edge(target_name, kind) from current,
// per §4.3. file is the current file's repository-relative path, used
// only to detect the EXTERNAL stub marker. It returns an error only
// for the fatal "missing source endpoint" case; every other failure
// mode is logged and absorbed.
func (r *Resolver) AddUseEdge(current cgraph.ID, targetName string, kind cgraph.Kind, ctx Context, inAssign bool, file string) error {
	if !r.Graph.HasNode(current) {
		return fmt.Errorf("add_use_edge: current node %s missing from graph", current)
	}
	if r.Tables.IsDupe(current) {
		r.Log.Debug("use edge dropped, current node is dupe", "src", current.String())
		return nil
	}
	if falsePositiveTokens[targetName] {
		return nil
	}

	target := cgraph.ID{Name: targetName, Kind: kind}
	if r.Tables.IsDupe(target) {
		r.Log.Debug("use edge redirected to dupe sink", "dst", target.String())
		return r.redirect(current, targetName, cgraph.DupeKind)
	}

	if r.Graph.HasNode(target) {
		return r.emit(current, target, ctx, inAssign)
	}

	if next, ok := rekind[kind]; ok {
		rekindTarget := cgraph.ID{Name: targetName, Kind: next}
		if r.Graph.HasNode(rekindTarget) && !r.Tables.IsDupe(rekindTarget) {
			return r.emit(current, rekindTarget, ctx, inAssign)
		}
	}

	if strings.Contains(file, "EXTERNAL") {
		return nil
	}

	r.Log.Warn("lookup failure", "name", targetName, "kind", string(kind), "from", current.String())
	return r.redirect(current, targetName, cgraph.NotFoundKind)
}

func (r *Resolver) emit(src, dst cgraph.ID, ctx Context, inAssign bool) error {
	if err := r.Graph.AddEdge(src, dst, cgraph.Use); err != nil {
		return err
	}
	r.Hook(ctx, inAssign, src, dst, r.Graph)
	return nil
}

// redirect targets a synthetic sink node for a use edge that could not
// resolve to a real node, per §3's "redirected to a sink" endpoint
// rule. The sink is keyed by targetName so distinct unresolved or
// duplicate names each get their own accumulating node rather than
// sharing a single bucket; a sink nothing ever redirects to remains
// absent from the graph and is never created just to be pruned.
func (r *Resolver) redirect(current cgraph.ID, targetName string, sinkKind cgraph.Kind) error {
	sink := cgraph.ID{Name: targetName, Kind: sinkKind}
	r.Graph.AddNode(sink)
	return r.Graph.AddEdge(current, sink, cgraph.Use)
}
