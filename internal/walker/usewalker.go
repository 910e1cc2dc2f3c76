package walker

import (
	"log/slog"

	"cxref/internal/resolver"
	"cxref/internal/symtab"
	"cxref/pkg/cast"
	"cxref/pkg/cgraph"
)

// UseWalker is Pass 2: it re-traverses the same files, now recursing
// into bodies, initializers, and type references, reading the shared
// tables Pass 1 populated without mutating them (beyond the dupe set,
// which the resolver consults but never writes).
type UseWalker struct {
	Graph    *cgraph.Graph
	Tables   *symtab.Tables
	Resolver *resolver.Resolver
	Config   Config
	Log      *slog.Logger
}

// NewUseWalker returns a Pass 2 walker sharing res's resolver state.
func NewUseWalker(g *cgraph.Graph, tabs *symtab.Tables, res *resolver.Resolver, cfg Config, logger *slog.Logger) *UseWalker {
	if logger == nil {
		logger = slog.Default()
	}
	return &UseWalker{Graph: g, Tables: tabs, Resolver: res, Config: cfg, Log: logger}
}

// WalkFile re-traverses f's toplevel forms emitting use edges.
func (w *UseWalker) WalkFile(f *cast.File) error {
	fileID := cgraph.ID{Name: f.Path, Kind: cgraph.File}
	for _, decl := range f.Decls {
		if err := w.walkTopLevel(f, fileID, decl); err != nil {
			return err
		}
	}
	return nil
}

func (w *UseWalker) resolvedName(file, name string) string {
	if renamed, ok := w.Tables.Lookup(file, name); ok {
		return renamed
	}
	return name
}

func (w *UseWalker) walkTopLevel(f *cast.File, fileID cgraph.ID, decl cast.TopLevel) error {
	switch d := decl.(type) {
	case *cast.Include, *cast.ConstDef:
		return nil

	case *cast.MacroDef:
		id := cgraph.ID{Name: d.Name, Kind: cgraph.Macro}
		w.Resolver.ResetLocals()
		for _, p := range d.Params {
			w.Resolver.PushLocal(p)
		}
		if d.Body != nil {
			return w.walkExpr(f, id, d.Body, resolver.NoContext, false)
		}
		return nil

	case *cast.FuncDef:
		name := w.resolvedName(f.Path, d.Name)
		id := cgraph.ID{Name: name, Kind: cgraph.Function}
		w.Resolver.ResetLocals()
		for _, p := range d.Params {
			if err := w.walkType(f, id, p.Type); err != nil {
				return err
			}
			w.Resolver.PushLocal(p.Name)
		}
		if err := w.walkType(f, id, d.Return); err != nil {
			return err
		}
		for _, stmt := range d.Body {
			if err := w.walkStmt(f, id, stmt); err != nil {
				return err
			}
		}
		return nil

	case *cast.FuncProto:
		if d.Storage == cast.Static && f.Kind == cast.Source {
			return nil
		}
		id := cgraph.ID{Name: d.Name, Kind: cgraph.Prototype}
		for _, p := range d.Params {
			if err := w.walkType(f, id, p.Type); err != nil {
				return err
			}
		}
		return w.walkType(f, id, d.Return)

	case *cast.GlobalVar:
		return w.walkGlobalVarUse(f, d)

	case *cast.StructDef:
		return w.walkStructDefUse(f, d)

	case *cast.EnumDef:
		return w.walkEnumDefUse(f, d)

	case *cast.TypedefDecl:
		tagName := cgraph.TypeName(cgraph.TypedefPrefix, d.Name)
		id := cgraph.ID{Name: tagName, Kind: cgraph.Type}
		return w.walkType(f, id, d.Target)
	}
	return nil
}

func (w *UseWalker) walkGlobalVarUse(f *cast.File, d *cast.GlobalVar) error {
	kind := globalKind(f, d)
	name := d.Name
	if kind == cgraph.Global && d.Storage == cast.Static {
		name = w.resolvedName(f.Path, d.Name)
	}
	id := cgraph.ID{Name: name, Kind: kind}
	w.Resolver.ResetLocals()
	if err := w.walkType(f, id, d.Type); err != nil {
		return err
	}
	if d.Init != nil {
		return w.walkExpr(f, id, d.Init, resolver.NoContext, false)
	}
	return nil
}

func (w *UseWalker) walkStructDefUse(f *cast.File, d *cast.StructDef) error {
	prefix := cgraph.StructPrefix
	if d.Union {
		prefix = cgraph.UnionPrefix
	}
	tagName := cgraph.TypeName(prefix, d.Tag)
	structID := cgraph.ID{Name: tagName, Kind: cgraph.Type}
	for _, fd := range d.Fields {
		if fd.Name == "" {
			if err := w.walkType(f, structID, fd.Type); err != nil {
				return err
			}
			continue
		}
		if !w.Config.FieldsDependencies {
			continue
		}
		fieldID := cgraph.ID{Name: cgraph.FieldName(tagName, fd.Name), Kind: cgraph.Field}
		if err := w.walkType(f, fieldID, fd.Type); err != nil {
			return err
		}
	}
	return nil
}

func (w *UseWalker) walkEnumDefUse(f *cast.File, d *cast.EnumDef) error {
	tagName := cgraph.TypeName(cgraph.EnumPrefix, d.Tag)
	w.Resolver.ResetLocals()
	for _, ctor := range d.Constructors {
		if ctor.Value == nil {
			continue
		}
		name := ctor.Name
		if f.Kind == cast.Source {
			name = w.resolvedName(f.Path, ctor.Name)
		}
		ctorID := cgraph.ID{Name: name, Kind: cgraph.Constructor}
		_ = tagName
		if err := w.walkExpr(f, ctorID, ctor.Value, resolver.NoContext, false); err != nil {
			return err
		}
	}
	return nil
}

// walkType emits a use edge for a named/tag/typedef type reference,
// per §4.5's "type references" rule. Builtins (NamedType) never
// produce an edge.
func (w *UseWalker) walkType(f *cast.File, current cgraph.ID, t cast.Type) error {
	if t == nil || !w.Config.TypesDependencies {
		return nil
	}
	switch tv := t.(type) {
	case *cast.NamedType:
		return nil
	case *cast.TagRef:
		tagName := cgraph.TypeName(tagPrefixFor(tv.Prefix), tv.Tag)
		return w.Resolver.AddUseEdge(current, tagName, cgraph.Type, resolver.NoContext, false, f.Path)
	case *cast.TypedefRef:
		return w.walkTypedefRef(f, current, tv)
	case *cast.PointerType:
		return w.walkType(f, current, tv.Elem)
	case *cast.ArrayType:
		return w.walkType(f, current, tv.Elem)
	case *cast.FuncType:
		for _, p := range tv.Params {
			if err := w.walkType(f, current, p); err != nil {
				return err
			}
		}
		return w.walkType(f, current, tv.Return)
	}
	return nil
}

func tagPrefixFor(prefix string) cgraph.TypePrefix {
	switch prefix {
	case "union":
		return cgraph.UnionPrefix
	case "enum":
		return cgraph.EnumPrefix
	default:
		return cgraph.StructPrefix
	}
}

// walkTypedefRef implements the typedefs_dependencies collapse rule:
// when disabled (the default) the edge targets the typedef's
// expansion tag instead of the T__ node, unless the typedef is
// self-referential (e.g. its own chain loops back on itself or
// resolves to an anonymous, untagged type), in which case the
// typedef node itself is the target.
func (w *UseWalker) walkTypedefRef(f *cast.File, current cgraph.ID, ref *cast.TypedefRef) error {
	typedefTagName := cgraph.TypeName(cgraph.TypedefPrefix, ref.Name)
	if w.Config.TypedefsDependencies {
		return w.Resolver.AddUseEdge(current, typedefTagName, cgraph.Type, resolver.NoContext, false, f.Path)
	}
	if tag, ok := w.expandTypedefTag(ref.Name); ok {
		return w.Resolver.AddUseEdge(current, tag, cgraph.Type, resolver.NoContext, false, f.Path)
	}
	return w.Resolver.AddUseEdge(current, typedefTagName, cgraph.Type, resolver.NoContext, false, f.Path)
}

// expandTypedefTag follows the typedef chain starting at name until
// it reaches a struct/union/enum tag, or gives up (cycle, or the
// chain bottoms out on a builtin / unresolvable type).
func (w *UseWalker) expandTypedefTag(name string) (tagName string, ok bool) {
	visited := map[string]bool{}
	for {
		if visited[name] {
			return "", false
		}
		visited[name] = true
		if w.Tables.IsSelfReferential(name) {
			return cgraph.TypeName(cgraph.TypedefPrefix, name), true
		}
		target, has := w.Tables.Typedef(name)
		if !has {
			return "", false
		}
		switch tv := target.(type) {
		case *cast.TagRef:
			return cgraph.TypeName(tagPrefixFor(tv.Prefix), tv.Tag), true
		case *cast.TypedefRef:
			name = tv.Name
			continue
		default:
			return "", false
		}
	}
}

func (w *UseWalker) walkStmt(f *cast.File, current cgraph.ID, s cast.Stmt) error {
	switch sv := s.(type) {
	case *cast.VarDecl:
		if err := w.walkType(f, current, sv.Type); err != nil {
			return err
		}
		if sv.Init != nil {
			if err := w.walkExpr(f, current, sv.Init, resolver.NoContext, false); err != nil {
				return err
			}
		}
		if sv.Storage != cast.Extern {
			w.Resolver.PushLocal(sv.Name)
		}
		return nil
	case *cast.ExprStmt:
		return w.walkExpr(f, current, sv.X, resolver.NoContext, false)
	case *cast.Block:
		for _, inner := range sv.Stmts {
			if err := w.walkStmt(f, current, inner); err != nil {
				return err
			}
		}
		return nil
	case *cast.If:
		if err := w.walkExpr(f, current, sv.Cond, resolver.NoContext, false); err != nil {
			return err
		}
		if err := w.walkStmt(f, current, sv.Then); err != nil {
			return err
		}
		if sv.Else != nil {
			return w.walkStmt(f, current, sv.Else)
		}
		return nil
	case *cast.While:
		if err := w.walkExpr(f, current, sv.Cond, resolver.NoContext, false); err != nil {
			return err
		}
		return w.walkStmt(f, current, sv.Body)
	case *cast.For:
		if sv.Init != nil {
			if err := w.walkStmt(f, current, sv.Init); err != nil {
				return err
			}
		}
		if sv.Cond != nil {
			if err := w.walkExpr(f, current, sv.Cond, resolver.NoContext, false); err != nil {
				return err
			}
		}
		if sv.Post != nil {
			if err := w.walkExpr(f, current, sv.Post, resolver.NoContext, false); err != nil {
				return err
			}
		}
		return w.walkStmt(f, current, sv.Body)
	case *cast.Return:
		if sv.Value != nil {
			return w.walkExpr(f, current, sv.Value, resolver.NoContext, false)
		}
		return nil
	}
	return nil
}

func (w *UseWalker) walkExpr(f *cast.File, current cgraph.ID, e cast.Expr, ctx resolver.Context, inAssign bool) error {
	switch ev := e.(type) {
	case *cast.Literal:
		return nil
	case *cast.Ident:
		if w.Resolver.IsLocal(ev.Name) {
			return nil
		}
		name := w.resolvedName(f.Path, ev.Name)
		kind := cgraph.Global
		if looksLikeMacro(ev.Name) {
			kind = cgraph.Constant
		}
		return w.Resolver.AddUseEdge(current, name, kind, ctx, inAssign, f.Path)
	case *cast.Call:
		if err := w.walkCallee(f, current, ev.Callee, inAssign); err != nil {
			return err
		}
		for _, arg := range ev.Args {
			if err := w.walkExpr(f, current, arg, resolver.CallArg, inAssign); err != nil {
				return err
			}
		}
		return nil
	case *cast.BinaryExpr:
		if err := w.walkExpr(f, current, ev.X, ctx, inAssign); err != nil {
			return err
		}
		return w.walkExpr(f, current, ev.Y, ctx, inAssign)
	case *cast.UnaryExpr:
		return w.walkExpr(f, current, ev.X, ctx, inAssign)
	case *cast.Assign:
		if err := w.walkExpr(f, current, ev.Lhs, ctx, true); err != nil {
			return err
		}
		return w.walkExpr(f, current, ev.Rhs, resolver.AssignRHS, true)
	case *cast.FieldAccess:
		// The qualifier is walked; the field selector currently
		// produces no edge (record-access resolution is unimplemented).
		return w.walkExpr(f, current, ev.X, ctx, inAssign)
	}
	return nil
}

func (w *UseWalker) walkCallee(f *cast.File, current cgraph.ID, callee cast.Expr, inAssign bool) error {
	ident, ok := callee.(*cast.Ident)
	if !ok {
		return w.walkExpr(f, current, callee, resolver.NoContext, inAssign)
	}
	if w.Resolver.IsLocal(ident.Name) {
		return nil
	}
	name := w.resolvedName(f.Path, ident.Name)
	kind := cgraph.Function
	if looksLikeMacro(ident.Name) {
		kind = cgraph.Macro
	}
	return w.Resolver.AddUseEdge(current, name, kind, resolver.NoContext, inAssign, f.Path)
}

// looksLikeMacro is the "all-caps with underscores/digits" heuristic
// used to classify a bare identifier as a macro-shaped name.
func looksLikeMacro(name string) bool {
	hasLetter := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r == '_' || (r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return hasLetter
}
