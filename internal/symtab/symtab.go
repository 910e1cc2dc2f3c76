// Package symtab holds the per-build side tables that Pass 1 writes
// and Pass 2 reads read-only: the per-file static-scope rename map,
// the global typedef map, the struct/union field-order map, and the
// duplicate registry. Grouping them here (rather than as Builder
// fields directly) keeps the walkers' dependency on shared state
// explicit and lets tests construct a table set without a full
// builder.
package symtab

import (
	"log/slog"

	"cxref/pkg/cast"
	"cxref/pkg/cgraph"
)

// Tables bundles the shared, process-wide-for-one-build side tables
// described in spec terms as the symbol table component.
type Tables struct {
	// rename maps file path -> original name -> renamed graph name,
	// for statically-scoped entities (static functions/globals, main,
	// enum constructors declared in a .c file).
	rename map[string]map[string]string

	// typedefs maps a typedef name to the AST type it was bound to.
	// Written only in Pass 1.
	typedefs map[string]cast.Type

	// fields maps a prefixed tag name (e.g. "S__point") to its
	// field names, in declaration order.
	fields map[string][]string

	// selfRef is the set of typedef names bound to an anonymous
	// struct/union/enum body (no tag of its own in source). A use
	// of such a typedef targets the typedef node directly instead
	// of expanding to the synthesized tag.
	selfRef map[string]bool

	// dupes is the set of node IDs marked as duplicate definitions.
	dupes map[cgraph.ID]bool

	log *slog.Logger
}

// New returns an empty table set logging conflicts to logger.
func New(logger *slog.Logger) *Tables {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tables{
		rename:   make(map[string]map[string]string),
		typedefs: make(map[string]cast.Type),
		fields:   make(map[string][]string),
		selfRef:  make(map[string]bool),
		dupes:    make(map[cgraph.ID]bool),
		log:      logger,
	}
}

// Rename records that, within file, originalName is graph-visible as
// renamedName. Pass 2 looks this up via Lookup before falling back to
// the identifier's literal spelling.
func (t *Tables) Rename(file, originalName, renamedName string) {
	m := t.rename[file]
	if m == nil {
		m = make(map[string]string)
		t.rename[file] = m
	}
	m[originalName] = renamedName
}

// Lookup returns the renamed graph name for originalName within file,
// if one was recorded, else ("", false).
func (t *Tables) Lookup(file, originalName string) (string, bool) {
	m := t.rename[file]
	if m == nil {
		return "", false
	}
	renamed, ok := m[originalName]
	return renamed, ok
}

// BindTypedef records name -> target the first time it is seen. A
// later call with a structurally different target logs a conflict
// and keeps the original binding, per the deterministic
// first-binding-wins rule.
func (t *Tables) BindTypedef(name string, target cast.Type) {
	existing, ok := t.typedefs[name]
	if !ok {
		t.typedefs[name] = target
		return
	}
	if !sameType(existing, target) {
		t.log.Warn("typedef conflict, keeping first binding",
			"name", name)
	}
}

// Typedef returns the type bound to name, if any.
func (t *Tables) Typedef(name string) (cast.Type, bool) {
	target, ok := t.typedefs[name]
	return target, ok
}

// MarkSelfReferential records that name was bound to an anonymous
// struct/union/enum body, per the typedef-collapse rule's
// self-referential exception.
func (t *Tables) MarkSelfReferential(name string) {
	t.selfRef[name] = true
}

// IsSelfReferential reports whether name was bound to an anonymous
// struct/union/enum body.
func (t *Tables) IsSelfReferential(name string) bool {
	return t.selfRef[name]
}

// SetFields records the ordered field names of a prefixed tag name.
func (t *Tables) SetFields(prefixedTag string, names []string) {
	t.fields[prefixedTag] = names
}

// Fields returns the ordered field names of a prefixed tag name.
func (t *Tables) Fields(prefixedTag string) []string {
	return t.fields[prefixedTag]
}

// MarkDupe records id (and, transitively, its children at creation
// time — callers are responsible for propagating dupe status down
// through Has edges as nodes are created) as a duplicate.
func (t *Tables) MarkDupe(id cgraph.ID) {
	t.dupes[id] = true
}

// IsDupe reports whether id has been marked a duplicate.
func (t *Tables) IsDupe(id cgraph.ID) bool {
	return t.dupes[id]
}

// sameType is a shallow structural comparison of two type ASTs, used
// only to decide whether a repeated typedef binding is a genuine
// conflict or a harmless re-declaration with identical spelling.
func sameType(a, b cast.Type) bool {
	switch av := a.(type) {
	case *cast.NamedType:
		bv, ok := b.(*cast.NamedType)
		return ok && av.Name == bv.Name
	case *cast.TagRef:
		bv, ok := b.(*cast.TagRef)
		return ok && av.Prefix == bv.Prefix && av.Tag == bv.Tag
	case *cast.TypedefRef:
		bv, ok := b.(*cast.TypedefRef)
		return ok && av.Name == bv.Name
	case *cast.PointerType:
		bv, ok := b.(*cast.PointerType)
		return ok && sameType(av.Elem, bv.Elem)
	case *cast.ArrayType:
		bv, ok := b.(*cast.ArrayType)
		return ok && sameType(av.Elem, bv.Elem)
	case *cast.FuncType:
		bv, ok := b.(*cast.FuncType)
		if !ok || len(av.Params) != len(bv.Params) {
			return false
		}
		for i := range av.Params {
			if !sameType(av.Params[i], bv.Params[i]) {
				return false
			}
		}
		return sameType(av.Return, bv.Return)
	default:
		return false
	}
}
