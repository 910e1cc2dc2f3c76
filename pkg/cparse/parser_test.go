package cparse

import (
	"testing"

	"cxref/pkg/cast"
)

func TestParseFunctionDefWithCall(t *testing.T) {
	src := `
int add(int a, int b) {
	return a + b;
}

int main(void) {
	return add(1, 2);
}
`
	f, err := Parse("t.c", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(f.Decls) != 2 {
		t.Fatalf("expected 2 toplevel decls, got %d", len(f.Decls))
	}
	add, ok := f.Decls[0].(*cast.FuncDef)
	if !ok {
		t.Fatalf("expected *cast.FuncDef, got %T", f.Decls[0])
	}
	if add.Name != "add" || len(add.Params) != 2 {
		t.Fatalf("unexpected add signature: %+v", add)
	}
	if len(add.Body) != 1 {
		t.Fatalf("expected 1 statement in add's body, got %d", len(add.Body))
	}
	ret, ok := add.Body[0].(*cast.Return)
	if !ok {
		t.Fatalf("expected *cast.Return, got %T", add.Body[0])
	}
	bin, ok := ret.Value.(*cast.BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected a + expression, got %#v", ret.Value)
	}

	main, ok := f.Decls[1].(*cast.FuncDef)
	if !ok {
		t.Fatalf("expected *cast.FuncDef for main, got %T", f.Decls[1])
	}
	mainRet, ok := main.Body[0].(*cast.Return)
	if !ok {
		t.Fatalf("expected *cast.Return, got %T", main.Body[0])
	}
	call, ok := mainRet.Value.(*cast.Call)
	if !ok {
		t.Fatalf("expected *cast.Call, got %#v", mainRet.Value)
	}
	callee, ok := call.Callee.(*cast.Ident)
	if !ok || callee.Name != "add" {
		t.Fatalf("expected callee ident add, got %#v", call.Callee)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 call args, got %d", len(call.Args))
	}
}

func TestParseStaticFunctionAndPrototype(t *testing.T) {
	src := `
static int helper(int x);

static int helper(int x) {
	return x;
}
`
	f, err := Parse("t.c", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(f.Decls) != 2 {
		t.Fatalf("expected 2 decls, got %d", len(f.Decls))
	}
	proto, ok := f.Decls[0].(*cast.FuncProto)
	if !ok || proto.Storage != cast.Static {
		t.Fatalf("expected static prototype, got %#v", f.Decls[0])
	}
	def, ok := f.Decls[1].(*cast.FuncDef)
	if !ok || def.Storage != cast.Static {
		t.Fatalf("expected static def, got %#v", f.Decls[1])
	}
}

func TestParseGlobalVarsCommaSeparated(t *testing.T) {
	src := `int a = 1, b, c = 3;`
	f, err := Parse("t.c", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(f.Decls) != 3 {
		t.Fatalf("expected 3 global vars, got %d", len(f.Decls))
	}
	names := []string{"a", "b", "c"}
	for i, want := range names {
		g, ok := f.Decls[i].(*cast.GlobalVar)
		if !ok || g.Name != want {
			t.Fatalf("decl %d: expected GlobalVar %q, got %#v", i, want, f.Decls[i])
		}
	}
}

func TestParseExternGlobalHasExternStorage(t *testing.T) {
	src := `extern int counter;`
	f, err := Parse("t.h", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	g, ok := f.Decls[0].(*cast.GlobalVar)
	if !ok || g.Storage != cast.Extern {
		t.Fatalf("expected extern global, got %#v", f.Decls[0])
	}
	if f.Kind != cast.Header {
		t.Fatalf("expected t.h to classify as Header, got %v", f.Kind)
	}
}

func TestParseStructDefWithFields(t *testing.T) {
	src := `
struct Point {
	int x;
	int y;
};
`
	f, err := Parse("t.h", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	s, ok := f.Decls[0].(*cast.StructDef)
	if !ok {
		t.Fatalf("expected *cast.StructDef, got %T", f.Decls[0])
	}
	if s.Tag != "Point" || s.Union {
		t.Fatalf("unexpected struct header: %+v", s)
	}
	if len(s.Fields) != 2 || s.Fields[0].Name != "x" || s.Fields[1].Name != "y" {
		t.Fatalf("unexpected fields: %+v", s.Fields)
	}
}

func TestParseEnumDefWithExplicitValue(t *testing.T) {
	src := `
enum Color {
	RED,
	GREEN = 5,
	BLUE
};
`
	f, err := Parse("t.h", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	e, ok := f.Decls[0].(*cast.EnumDef)
	if !ok {
		t.Fatalf("expected *cast.EnumDef, got %T", f.Decls[0])
	}
	if len(e.Constructors) != 3 {
		t.Fatalf("expected 3 constructors, got %d", len(e.Constructors))
	}
	if e.Constructors[1].Name != "GREEN" {
		t.Fatalf("unexpected second constructor: %+v", e.Constructors[1])
	}
	lit, ok := e.Constructors[1].Value.(*cast.Literal)
	if !ok || lit.Value != "5" {
		t.Fatalf("expected literal 5, got %#v", e.Constructors[1].Value)
	}
}

func TestParseTypedefStructPointer(t *testing.T) {
	src := `typedef struct Node *NodePtr;`
	f, err := Parse("t.h", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	td, ok := f.Decls[0].(*cast.TypedefDecl)
	if !ok || td.Name != "NodePtr" {
		t.Fatalf("expected typedef NodePtr, got %#v", f.Decls[0])
	}
	ptr, ok := td.Target.(*cast.PointerType)
	if !ok {
		t.Fatalf("expected pointer target, got %#v", td.Target)
	}
	tag, ok := ptr.Elem.(*cast.TagRef)
	if !ok || tag.Tag != "Node" || tag.Prefix != "struct" {
		t.Fatalf("expected TagRef struct Node, got %#v", ptr.Elem)
	}
}

func TestParseTypedefAnonymousStructSynthesizesTag(t *testing.T) {
	src := `typedef struct { int x; } Point;`
	f, err := Parse("t.h", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(f.Decls) != 2 {
		t.Fatalf("expected 2 toplevel decls (struct def + typedef), got %d", len(f.Decls))
	}
	sd, ok := f.Decls[0].(*cast.StructDef)
	if !ok || sd.Tag != "Point" {
		t.Fatalf("expected anonymous struct body tagged with the typedef's own name, got %#v", f.Decls[0])
	}
	td, ok := f.Decls[1].(*cast.TypedefDecl)
	if !ok || td.Name != "Point" || !td.AnonymousTarget {
		t.Fatalf("expected AnonymousTarget typedef Point, got %#v", f.Decls[1])
	}
	tag, ok := td.Target.(*cast.TagRef)
	if !ok || tag.Tag != "Point" || tag.Prefix != "struct" {
		t.Fatalf("expected typedef target TagRef{struct, Point}, got %#v", td.Target)
	}
}

func TestParseTypedefNamedStructNotAnonymousTarget(t *testing.T) {
	src := `typedef struct Point { int x; } Point;`
	f, err := Parse("t.h", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	td, ok := f.Decls[1].(*cast.TypedefDecl)
	if !ok || td.AnonymousTarget {
		t.Fatalf("expected a named tag typedef to not be marked AnonymousTarget, got %#v", f.Decls[1])
	}
}

func TestParseFieldAccessArrowAndDot(t *testing.T) {
	src := `
int read(struct Node *n) {
	return n->value + n->child.value;
}
`
	f, err := Parse("t.c", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	fn := f.Decls[0].(*cast.FuncDef)
	ret := fn.Body[0].(*cast.Return)
	bin, ok := ret.Value.(*cast.BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected top-level +, got %#v", ret.Value)
	}
	lhs, ok := bin.X.(*cast.FieldAccess)
	if !ok || !lhs.Arrow || lhs.Field != "value" {
		t.Fatalf("expected n->value, got %#v", bin.X)
	}
	rhs, ok := bin.Y.(*cast.FieldAccess)
	if !ok || rhs.Arrow || rhs.Field != "value" {
		t.Fatalf("expected .value on the outer access, got %#v", bin.Y)
	}
	inner, ok := rhs.X.(*cast.FieldAccess)
	if !ok || !inner.Arrow || inner.Field != "child" {
		t.Fatalf("expected n->child as the inner access, got %#v", rhs.X)
	}
}

func TestParseObjectAndFunctionLikeMacros(t *testing.T) {
	src := `
#define MAX_SIZE 128
#define SQUARE(x) ((x) * (x))
`
	f, err := Parse("t.h", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(f.Decls) != 2 {
		t.Fatalf("expected 2 decls, got %d", len(f.Decls))
	}
	c, ok := f.Decls[0].(*cast.ConstDef)
	if !ok || c.Name != "MAX_SIZE" {
		t.Fatalf("expected ConstDef MAX_SIZE, got %#v", f.Decls[0])
	}
	m, ok := f.Decls[1].(*cast.MacroDef)
	if !ok || m.Name != "SQUARE" || len(m.Params) != 1 || m.Params[0] != "x" {
		t.Fatalf("expected MacroDef SQUARE(x), got %#v", f.Decls[1])
	}
	if m.Body == nil {
		t.Fatalf("expected a parsed macro body expression")
	}
}

func TestParseIncludeDirectives(t *testing.T) {
	src := `
#include <stdio.h>
#include "local.h"
`
	f, err := Parse("t.c", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(f.Decls) != 2 {
		t.Fatalf("expected 2 includes, got %d", len(f.Decls))
	}
	sys, ok := f.Decls[0].(*cast.Include)
	if !ok || !sys.System || sys.Path != "stdio.h" {
		t.Fatalf("expected system include stdio.h, got %#v", f.Decls[0])
	}
	local, ok := f.Decls[1].(*cast.Include)
	if !ok || local.System || local.Path != "local.h" {
		t.Fatalf("expected local include local.h, got %#v", f.Decls[1])
	}
}

func TestParseForLoopWithDeclInit(t *testing.T) {
	src := `
int sum(void) {
	int total = 0;
	for (int i = 0; i < 10; i++) {
		total += i;
	}
	return total;
}
`
	f, err := Parse("t.c", []byte(src), true)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	fn := f.Decls[0].(*cast.FuncDef)
	if len(fn.Body) != 3 {
		t.Fatalf("expected 3 statements (decl, for, return), got %d", len(fn.Body))
	}
	forStmt, ok := fn.Body[1].(*cast.For)
	if !ok {
		t.Fatalf("expected *cast.For, got %T", fn.Body[1])
	}
	if _, ok := forStmt.Init.(*cast.VarDecl); !ok {
		t.Fatalf("expected a VarDecl for-init, got %#v", forStmt.Init)
	}
	if _, ok := forStmt.Cond.(*cast.BinaryExpr); !ok {
		t.Fatalf("expected a binary condition, got %#v", forStmt.Cond)
	}
}

func TestParseRecoversFromSyntaxError(t *testing.T) {
	src := `
int & & broken;

int valid(void) {
	return 1;
}
`
	f, err := Parse("t.c", []byte(src), true)
	if err == nil {
		t.Fatalf("expected a reported syntax error")
	}
	found := false
	for _, d := range f.Decls {
		if fn, ok := d.(*cast.FuncDef); ok && fn.Name == "valid" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected parser to recover and still parse valid(), decls=%#v", f.Decls)
	}
}
