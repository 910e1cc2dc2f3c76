// Package walker implements the two traversals the builder runs over
// every parsed file: the Definition walker (Pass 1, this file) which
// creates nodes and containment edges and populates the shared
// tables, and the Use walker (usewalker.go) which re-traverses the
// same files emitting use edges only. Both are grounded in the
// family-of-mutually-recursive-operations shape described for a
// sum-type AST: a type switch per syntactic category stands in for
// exhaustive pattern matching.
package walker

import (
	"log/slog"
	"strings"

	"cxref/internal/symtab"
	"cxref/pkg/cast"
	"cxref/pkg/cgraph"
)

// Config carries the builder flags that affect how the walkers treat
// type and typedef references. propagate_deps_def_to_decl lives with
// the Adjuster instead, since only it consumes it.
type Config struct {
	TypesDependencies    bool
	FieldsDependencies   bool
	TypedefsDependencies bool
}

// DefaultConfig mirrors the defaults named in the external-interface
// contract: type references on, field references on, typedef
// references collapsed to their expansion target by default.
func DefaultConfig() Config {
	return Config{
		TypesDependencies:    true,
		FieldsDependencies:   true,
		TypedefsDependencies: false,
	}
}

// DefWalker is Pass 1: it owns node creation, containment edges, and
// every side-table write.
type DefWalker struct {
	Graph  *cgraph.Graph
	Tables *symtab.Tables
	Config Config
	Log    *slog.Logger
}

// NewDefWalker returns a Pass 1 walker over g and tabs.
func NewDefWalker(g *cgraph.Graph, tabs *symtab.Tables, cfg Config, logger *slog.Logger) *DefWalker {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefWalker{Graph: g, Tables: tabs, Config: cfg, Log: logger}
}

// WalkFile creates the File node (and any intermediate Dir nodes) for
// f, then walks its toplevel forms.
func (w *DefWalker) WalkFile(f *cast.File) error {
	parentDir, err := w.Graph.CreateIntermediateDirs(f.Path)
	if err != nil {
		return err
	}
	fileID := cgraph.ID{Name: f.Path, Kind: cgraph.File}
	w.Graph.AddNode(fileID)
	if err := w.Graph.AddEdge(parentDir, fileID, cgraph.Has); err != nil {
		return err
	}

	for _, decl := range f.Decls {
		if err := w.walkTopLevel(f, fileID, false, decl); err != nil {
			return err
		}
	}
	return nil
}

func (w *DefWalker) walkTopLevel(f *cast.File, current cgraph.ID, parentDupe bool, decl cast.TopLevel) error {
	switch d := decl.(type) {
	case *cast.Include:
		return nil

	case *cast.ConstDef:
		id := cgraph.ID{Name: d.Name, Kind: cgraph.Constant}
		_, isNew := w.declare(id, cgraph.Constant, parentDupe, f.Path)
		if isNew {
			if err := w.addHas(current, id); err != nil {
				return err
			}
			w.attachPos(id, f.Path, d.Pos)
		}
		return nil

	case *cast.MacroDef:
		id := cgraph.ID{Name: d.Name, Kind: cgraph.Macro}
		_, isNew := w.declare(id, cgraph.Macro, parentDupe, f.Path)
		if isNew {
			if err := w.addHas(current, id); err != nil {
				return err
			}
			w.attachPos(id, f.Path, d.Pos)
		}
		return nil

	case *cast.FuncDef:
		name := d.Name
		if w.renamesFunc(f, d) {
			renamed := w.Graph.Gensym(name)
			w.Tables.Rename(f.Path, name, renamed)
			name = renamed
		}
		id := cgraph.ID{Name: name, Kind: cgraph.Function}
		_, isNew := w.declare(id, cgraph.Function, parentDupe, f.Path)
		if isNew {
			if err := w.addHas(current, id); err != nil {
				return err
			}
			w.attachPos(id, f.Path, d.Pos)
		}
		return nil

	case *cast.FuncProto:
		if d.Storage == cast.Static && f.Kind == cast.Source {
			// The matching definition's rename would disagree with
			// this name, so emitting the prototype would create a
			// phantom node no definition ever points at.
			return nil
		}
		id := cgraph.ID{Name: d.Name, Kind: cgraph.Prototype}
		_, isNew := w.declare(id, cgraph.Prototype, parentDupe, f.Path)
		if isNew {
			if err := w.addHas(current, id); err != nil {
				return err
			}
			w.attachPos(id, f.Path, d.Pos)
		}
		return nil

	case *cast.GlobalVar:
		return w.walkGlobalVar(f, current, parentDupe, d)

	case *cast.StructDef:
		return w.walkStructDef(f, current, parentDupe, d)

	case *cast.EnumDef:
		return w.walkEnumDef(f, current, parentDupe, d)

	case *cast.TypedefDecl:
		return w.walkTypedefDecl(f, current, parentDupe, d)
	}
	return nil
}

func (w *DefWalker) walkGlobalVar(f *cast.File, current cgraph.ID, parentDupe bool, d *cast.GlobalVar) error {
	kind := globalKind(f, d)
	name := d.Name
	if kind == cgraph.Global && d.Storage == cast.Static && f.Kind == cast.Source {
		renamed := w.Graph.Gensym(name)
		w.Tables.Rename(f.Path, name, renamed)
		name = renamed
	}
	id := cgraph.ID{Name: name, Kind: kind}
	_, isNew := w.declare(id, kind, parentDupe, f.Path)
	if isNew {
		if err := w.addHas(current, id); err != nil {
			return err
		}
		w.attachPos(id, f.Path, d.Pos)
	}
	if f.Kind == cast.Header && d.Storage == cast.Default && d.Init != nil {
		w.Log.Info("initialized global defined in a header, consider moving it to a source file",
			"name", d.Name, "file", f.Path)
	}
	return nil
}

// globalKind applies the storage/file-kind table from the Definition
// walker's rules for global variables.
func globalKind(f *cast.File, d *cast.GlobalVar) cgraph.Kind {
	if d.Storage == cast.Extern {
		return cgraph.GlobalExtern
	}
	if f.Kind == cast.Header && d.Storage == cast.Default {
		if d.Init != nil {
			return cgraph.Global
		}
		return cgraph.GlobalExtern
	}
	return cgraph.Global
}

func (w *DefWalker) walkStructDef(f *cast.File, current cgraph.ID, parentDupe bool, d *cast.StructDef) error {
	prefix := cgraph.StructPrefix
	if d.Union {
		prefix = cgraph.UnionPrefix
	}
	tagName := cgraph.TypeName(prefix, d.Tag)
	id := cgraph.ID{Name: tagName, Kind: cgraph.Type}
	dupe, isNew := w.declare(id, cgraph.Type, parentDupe, f.Path)
	if isNew {
		if err := w.addHas(current, id); err != nil {
			return err
		}
		w.attachPos(id, f.Path, d.Pos)
	}

	var fieldNames []string
	for _, fd := range d.Fields {
		if fd.Name == "" {
			// Anonymous-substruct hoisting is deferred; only the
			// field's type would be descended into, and type
			// descent happens in Pass 2.
			continue
		}
		fieldName := cgraph.FieldName(tagName, fd.Name)
		fieldID := cgraph.ID{Name: fieldName, Kind: cgraph.Field}
		_, fieldIsNew := w.declare(fieldID, cgraph.Field, dupe, f.Path)
		if fieldIsNew {
			if err := w.addHas(id, fieldID); err != nil {
				return err
			}
			w.attachPos(fieldID, f.Path, fd.Pos)
		}
		fieldNames = append(fieldNames, fd.Name)
	}
	if isNew {
		w.Tables.SetFields(tagName, fieldNames)
	}
	return nil
}

func (w *DefWalker) walkEnumDef(f *cast.File, current cgraph.ID, parentDupe bool, d *cast.EnumDef) error {
	tagName := cgraph.TypeName(cgraph.EnumPrefix, d.Tag)
	id := cgraph.ID{Name: tagName, Kind: cgraph.Type}
	dupe, isNew := w.declare(id, cgraph.Type, parentDupe, f.Path)
	if isNew {
		if err := w.addHas(current, id); err != nil {
			return err
		}
		w.attachPos(id, f.Path, d.Pos)
	}

	for _, ctor := range d.Constructors {
		name := ctor.Name
		if f.Kind == cast.Source {
			renamed := w.Graph.Gensym(name)
			w.Tables.Rename(f.Path, name, renamed)
			name = renamed
		}
		ctorID := cgraph.ID{Name: name, Kind: cgraph.Constructor}
		_, ctorIsNew := w.declare(ctorID, cgraph.Constructor, dupe, f.Path)
		if ctorIsNew {
			if err := w.addHas(id, ctorID); err != nil {
				return err
			}
			w.attachPos(ctorID, f.Path, ctor.Pos)
		}
	}
	return nil
}

func (w *DefWalker) walkTypedefDecl(f *cast.File, current cgraph.ID, parentDupe bool, d *cast.TypedefDecl) error {
	tagName := cgraph.TypeName(cgraph.TypedefPrefix, d.Name)
	id := cgraph.ID{Name: tagName, Kind: cgraph.Type}
	isNew := w.Graph.AddNode(id)

	// Typedef duplicates are governed entirely by the typedef table's
	// own first-binding-wins rule, not by the generic dupe bucket: a
	// repeated typedef with an identical body is expected and silent.
	w.Tables.BindTypedef(d.Name, d.Target)
	if d.AnonymousTarget {
		w.Tables.MarkSelfReferential(d.Name)
	}

	if isNew {
		if parentDupe {
			w.Tables.MarkDupe(id)
		}
		if err := w.addHas(current, id); err != nil {
			return err
		}
		w.attachPos(id, f.Path, d.Pos)
	}
	return nil
}

func (w *DefWalker) renamesFunc(f *cast.File, d *cast.FuncDef) bool {
	if f.Kind != cast.Source {
		return false
	}
	return d.Storage == cast.Static || d.Name == "main"
}

func (w *DefWalker) attachPos(id cgraph.ID, file string, pos cast.Pos) {
	_ = w.Graph.AttachInfo(id, cgraph.Info{
		Pos: cgraph.Pos{File: file, Line: pos.Line, Column: pos.Column},
	})
}

func (w *DefWalker) addHas(parent, child cgraph.ID) error {
	return w.Graph.AddEdge(parent, child, cgraph.Has)
}

// declare adds id to the graph if absent. If it was already present,
// it applies the duplicate-handling rule for kind and reports
// dupe=true, isNew=false. If it is genuinely new but its parent is
// already dupe, the new node inherits dupe status silently.
func (w *DefWalker) declare(id cgraph.ID, kind cgraph.Kind, parentDupe bool, file string) (dupe, isNew bool) {
	isNew = w.Graph.AddNode(id)
	if !isNew {
		w.handleDuplicate(id, kind, file)
		return true, false
	}
	if parentDupe {
		w.Tables.MarkDupe(id)
		return true, true
	}
	return false, true
}

func (w *DefWalker) handleDuplicate(id cgraph.ID, kind cgraph.Kind, file string) {
	switch kind {
	case cgraph.Prototype, cgraph.GlobalExtern:
		w.Tables.MarkDupe(id)
	case cgraph.Function, cgraph.Global, cgraph.Constructor, cgraph.Type, cgraph.Field, cgraph.Constant, cgraph.Macro:
		if strings.Contains(file, "EXTERNAL") {
			w.Tables.MarkDupe(id)
			return
		}
		w.Log.Warn("duplicate definition", "entity", id.String(), "file", file)
		w.Tables.MarkDupe(id)
	default:
		w.Log.Error("duplicate definition reached for an unexpected node kind", "entity", id.String())
		w.Tables.MarkDupe(id)
	}
}
