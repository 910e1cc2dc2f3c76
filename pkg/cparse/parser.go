// Package cparse is a hand-rolled scanner and recursive-descent
// reader for the "modest subset" of C this module's walkers need: no
// macro expansion, no conditional compilation, no full declarator
// grammar — just enough to recover toplevel forms, struct/enum
// bodies, function bodies, and the expressions inside them. It plays
// the role of the external parser collaborator; nothing downstream
// depends on its internals, only on the cast.File it returns.
package cparse

import (
	"fmt"
	"strings"

	"cxref/pkg/cast"
)

// ParseError is one recoverable syntax problem. Parse never aborts
// on one; it resynchronizes at the next statement or brace boundary
// and keeps going, consistent with this engine treating ambiguity
// and malformed input as best-effort rather than fatal.
type ParseError struct {
	Pos cast.Pos
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// Parse lexes and parses src as one translation unit rooted at path.
// When showErrors is true, any recoverable syntax errors encountered
// are joined and returned alongside the best-effort AST; the AST is
// always populated with whatever did parse.
func Parse(path string, src []byte, showErrors bool) (*cast.File, error) {
	p := &parser{
		toks:       tokenize(src),
		path:       path,
		kind:       cast.KindOfExt(extOf(path)),
		showErrors: showErrors,
	}
	file := &cast.File{Path: path, Kind: p.kind}
	for !p.atEOF() {
		before := p.pos
		decls := p.parseTopLevel()
		file.Decls = append(file.Decls, decls...)
		if p.pos == before {
			p.advance()
		}
	}
	if showErrors && len(p.errors) > 0 {
		return file, joinErrors(p.errors)
	}
	return file, nil
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx:]
}

func joinErrors(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

type parser struct {
	toks       []token
	pos        int
	path       string
	kind       cast.FileKind
	errors     []error
	showErrors bool
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) peekAhead(n int) token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[idx]
}

func (p *parser) at(k tokKind) bool        { return p.cur().kind == k }
func (p *parser) atPunct(s string) bool    { return p.cur().kind == tPunct && p.cur().text == s }
func (p *parser) atIdent(s string) bool    { return p.cur().kind == tIdent && p.cur().text == s }
func (p *parser) atEOF() bool              { return p.cur().kind == tEOF }
func (p *parser) consumeOptional(s string) { if p.atPunct(s) { p.advance() } }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) posHere() cast.Pos {
	t := p.cur()
	return cast.Pos{Line: t.line, Column: t.col}
}

func (p *parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, &ParseError{Pos: p.posHere(), Msg: fmt.Sprintf(format, args...)})
}

// recover resynchronizes after a malformed declaration by skipping to
// the next statement- or brace-level boundary.
func (p *parser) recover() {
	depth := 0
	for !p.atEOF() {
		if p.atPunct("{") {
			depth++
		}
		if p.atPunct("}") {
			if depth == 0 {
				p.advance()
				return
			}
			depth--
		}
		if p.atPunct(";") && depth == 0 {
			p.advance()
			return
		}
		p.advance()
	}
}

func (p *parser) parseTopLevel() []cast.TopLevel {
	if p.at(tPPHash) {
		d := p.parsePreprocessor()
		if d == nil {
			return nil
		}
		return []cast.TopLevel{d}
	}
	return p.parseDeclOrDef()
}

// --- preprocessor ---

func (p *parser) parsePreprocessor() cast.TopLevel {
	pos := p.posHere()
	p.advance() // '#'
	if p.at(tPPEol) {
		p.advance()
		return nil
	}
	if !p.at(tIdent) {
		p.skipToPPEol()
		return nil
	}
	directive := p.cur().text
	p.advance()
	switch directive {
	case "include":
		path, system := "", false
		switch {
		case p.at(tString):
			path = p.cur().text
			p.advance()
		case p.atPunct("<"):
			system = true
			p.advance()
			var sb strings.Builder
			for !p.atPunct(">") && !p.at(tPPEol) && !p.atEOF() {
				sb.WriteString(p.cur().text)
				p.advance()
			}
			p.consumeOptional(">")
			path = sb.String()
		}
		p.skipToPPEol()
		return &cast.Include{Path: path, System: system}
	case "define":
		return p.parseDefine(pos)
	default:
		p.skipToPPEol()
		return nil
	}
}

func (p *parser) skipToPPEol() {
	for !p.at(tPPEol) && !p.atEOF() {
		p.advance()
	}
	if p.at(tPPEol) {
		p.advance()
	}
}

func (p *parser) parseDefine(pos cast.Pos) cast.TopLevel {
	if !p.at(tIdent) {
		p.skipToPPEol()
		return nil
	}
	name := p.cur().text
	p.advance()

	if p.atPunct("(") {
		p.advance()
		var params []string
		for !p.atPunct(")") && !p.at(tPPEol) && !p.atEOF() {
			if p.at(tIdent) {
				params = append(params, p.cur().text)
				p.advance()
			} else {
				p.advance()
			}
			p.consumeOptional(",")
		}
		p.consumeOptional(")")
		body := parseExprTokens(p.collectUntilPPEol())
		return &cast.MacroDef{Name: name, Pos: pos, Params: params, Body: body}
	}

	value := spellTokens(p.collectUntilPPEol())
	return &cast.ConstDef{Name: name, Pos: pos, Value: value}
}

func (p *parser) collectUntilPPEol() []token {
	var out []token
	for !p.at(tPPEol) && !p.atEOF() {
		out = append(out, p.cur())
		p.advance()
	}
	if p.at(tPPEol) {
		p.advance()
	}
	out = append(out, token{kind: tEOF})
	return out
}

func spellTokens(toks []token) string {
	var parts []string
	for _, t := range toks {
		if t.kind == tEOF {
			break
		}
		parts = append(parts, t.text)
	}
	return strings.Join(parts, " ")
}

func parseExprTokens(toks []token) cast.Expr {
	sub := &parser{toks: toks}
	if sub.atEOF() {
		return nil
	}
	return sub.parseExpr()
}

// --- declarations ---

var builtinTypeWords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"bool": true, "_Bool": true,
}

var declStartKeywords = map[string]bool{
	"static": true, "extern": true, "const": true, "volatile": true,
	"register": true, "auto": true, "struct": true, "union": true, "enum": true,
}

func init() {
	for w := range builtinTypeWords {
		declStartKeywords[w] = true
	}
}

func (p *parser) parseStorageClass() (cast.Storage, bool) {
	storage := cast.Default
	isTypedef := false
loop:
	for {
		switch {
		case p.atIdent("static"):
			storage = cast.Static
			p.advance()
		case p.atIdent("extern"):
			storage = cast.Extern
			p.advance()
		case p.atIdent("typedef"):
			isTypedef = true
			p.advance()
		case p.atIdent("const"), p.atIdent("volatile"), p.atIdent("inline"), p.atIdent("register"):
			p.advance()
		default:
			break loop
		}
	}
	return storage, isTypedef
}

func (p *parser) parseBaseType() (cast.Type, bool) {
	if p.atIdent("struct") || p.atIdent("union") {
		isUnion := p.atIdent("union")
		p.advance()
		if !p.at(tIdent) {
			return nil, false
		}
		tag := p.cur().text
		p.advance()
		prefix := "struct"
		if isUnion {
			prefix = "union"
		}
		return &cast.TagRef{Prefix: prefix, Tag: tag}, true
	}
	if p.atIdent("enum") {
		p.advance()
		if !p.at(tIdent) {
			return nil, false
		}
		tag := p.cur().text
		p.advance()
		return &cast.TagRef{Prefix: "enum", Tag: tag}, true
	}
	if p.at(tIdent) && builtinTypeWords[p.cur().text] {
		var words []string
		for p.at(tIdent) {
			w := p.cur().text
			if w == "const" || w == "volatile" {
				p.advance()
				continue
			}
			if !builtinTypeWords[w] {
				break
			}
			words = append(words, w)
			p.advance()
		}
		return &cast.NamedType{Name: strings.Join(words, " ")}, true
	}
	if p.at(tIdent) {
		name := p.cur().text
		p.advance()
		return &cast.TypedefRef{Name: name}, true
	}
	return nil, false
}

func (p *parser) parseDeclaratorType(base cast.Type) cast.Type {
	t := base
	for p.atPunct("*") {
		p.advance()
		for p.atIdent("const") || p.atIdent("volatile") {
			p.advance()
		}
		t = &cast.PointerType{Elem: t}
	}
	return t
}

func (p *parser) parseTrailingArrays(t cast.Type) cast.Type {
	for p.atPunct("[") {
		p.advance()
		for !p.atPunct("]") && !p.atEOF() {
			p.advance()
		}
		p.consumeOptional("]")
		t = &cast.ArrayType{Elem: t}
	}
	return t
}

func (p *parser) isDeclStart() bool {
	return p.at(tIdent) && declStartKeywords[p.cur().text]
}

func (p *parser) parseDeclOrDef() []cast.TopLevel {
	startPos := p.posHere()
	storage, isTypedef := p.parseStorageClass()

	if !isTypedef && (p.atIdent("struct") || p.atIdent("union")) {
		isUnion := p.atIdent("union")
		p.advance()
		tag, hasBody, fields := p.parseStructBody()
		p.consumeOptional(";")
		if !hasBody {
			return nil
		}
		return []cast.TopLevel{&cast.StructDef{Tag: tag, Pos: startPos, Union: isUnion, Fields: fields}}
	}

	if !isTypedef && p.atIdent("enum") {
		p.advance()
		tag, hasBody, ctors := p.parseEnumBody()
		p.consumeOptional(";")
		if !hasBody {
			return nil
		}
		return []cast.TopLevel{&cast.EnumDef{Tag: tag, Pos: startPos, Constructors: ctors}}
	}

	// A typedef's base type may itself be a struct/union/enum that
	// defines its tag inline (typedef struct Point { ... } Point;) —
	// that inline body is its own toplevel node, collected alongside
	// the typedef declarator(s) that follow it. When the inline body
	// carries no tag of its own (the anonymous-struct idiom), a bare
	// "S__"/"U__"/"E__" node would collide with every other anonymous
	// body in the build, so it is given a synthetic tag derived from
	// the typedef's own name instead; that target is marked
	// anonymous so the walkers know to target the typedef node
	// directly rather than treat the synthetic tag as a real one.
	var inlineTagDef cast.TopLevel
	var baseType cast.Type
	var anonTag bool
	var ok bool
	switch {
	case isTypedef && (p.atIdent("struct") || p.atIdent("union")):
		isUnion := p.atIdent("union")
		p.advance()
		tag, hasBody, fields := p.parseStructBody()
		anonTag = hasBody && tag == ""
		if hasBody {
			inlineTagDef = &cast.StructDef{Tag: tag, Pos: startPos, Union: isUnion, Fields: fields}
		}
		prefix := "struct"
		if isUnion {
			prefix = "union"
		}
		baseType, ok = &cast.TagRef{Prefix: prefix, Tag: tag}, true
	case isTypedef && p.atIdent("enum"):
		p.advance()
		tag, hasBody, ctors := p.parseEnumBody()
		anonTag = hasBody && tag == ""
		if hasBody {
			inlineTagDef = &cast.EnumDef{Tag: tag, Pos: startPos, Constructors: ctors}
		}
		baseType, ok = &cast.TagRef{Prefix: "enum", Tag: tag}, true
	default:
		baseType, ok = p.parseBaseType()
	}
	if !ok {
		p.errorf("expected a type at toplevel")
		p.recover()
		return nil
	}

	if isTypedef {
		var out []cast.TopLevel
		first := true
		for {
			t := p.parseDeclaratorType(baseType)
			if !p.at(tIdent) {
				break
			}
			name := p.cur().text
			p.advance()
			if anonTag && first {
				synthesizeAnonTag(inlineTagDef, baseType, name)
			}
			t = p.parseTrailingArrays(t)
			out = append(out, &cast.TypedefDecl{Name: name, Pos: startPos, Target: t, AnonymousTarget: anonTag})
			first = false
			if p.atPunct(",") {
				p.advance()
				continue
			}
			break
		}
		if inlineTagDef != nil {
			out = append([]cast.TopLevel{inlineTagDef}, out...)
		}
		p.consumeOptional(";")
		return out
	}

	t := p.parseDeclaratorType(baseType)
	if !p.at(tIdent) {
		p.errorf("expected a declarator name")
		p.recover()
		return nil
	}
	name := p.cur().text
	p.advance()

	if p.atPunct("(") {
		return []cast.TopLevel{p.parseFunctionRest(storage, t, name, startPos)}
	}

	var out []cast.TopLevel
	t = p.parseTrailingArrays(t)
	var init cast.Expr
	if p.atPunct("=") {
		p.advance()
		init = p.parseAssignExpr()
	}
	out = append(out, &cast.GlobalVar{Name: name, Pos: startPos, Storage: storage, Type: t, Init: init})

	for p.atPunct(",") {
		p.advance()
		dt := p.parseDeclaratorType(baseType)
		if !p.at(tIdent) {
			break
		}
		n2 := p.cur().text
		p.advance()
		dt = p.parseTrailingArrays(dt)
		var i2 cast.Expr
		if p.atPunct("=") {
			p.advance()
			i2 = p.parseAssignExpr()
		}
		out = append(out, &cast.GlobalVar{Name: n2, Pos: startPos, Storage: storage, Type: dt, Init: i2})
	}
	p.consumeOptional(";")
	return out
}

// synthesizeAnonTag gives an anonymous inline struct/union/enum body
// the typedef's own declarator name as its tag, so it gets a node
// distinct from every other anonymous body in the build instead of
// collapsing onto the shared "S__"/"U__"/"E__" node. def and base
// alias the same underlying values the rest of the declarator list
// was already built from, so mutating them here reaches every
// reference already taken.
func synthesizeAnonTag(def cast.TopLevel, base cast.Type, name string) {
	switch d := def.(type) {
	case *cast.StructDef:
		d.Tag = name
	case *cast.EnumDef:
		d.Tag = name
	}
	if ref, ok := base.(*cast.TagRef); ok {
		ref.Tag = name
	}
}

func (p *parser) parseStructBody() (tag string, hasBody bool, fields []cast.FieldDecl) {
	if p.at(tIdent) {
		tag = p.cur().text
		p.advance()
	}
	if !p.atPunct("{") {
		return tag, false, nil
	}
	p.advance()
	for !p.atPunct("}") && !p.atEOF() {
		fpos := p.posHere()
		ft, ok := p.parseBaseType()
		if !ok {
			p.advance()
			continue
		}
		for {
			dt := p.parseDeclaratorType(ft)
			name := ""
			if p.at(tIdent) {
				name = p.cur().text
				p.advance()
			}
			dt = p.parseTrailingArrays(dt)
			if p.atPunct(":") {
				p.advance()
				for p.at(tNumber) {
					p.advance()
				}
			}
			fields = append(fields, cast.FieldDecl{Name: name, Pos: fpos, Type: dt})
			if p.atPunct(",") {
				p.advance()
				continue
			}
			break
		}
		p.consumeOptional(";")
	}
	p.consumeOptional("}")
	return tag, true, fields
}

func (p *parser) parseEnumBody() (tag string, hasBody bool, ctors []cast.Enumerator) {
	if p.at(tIdent) {
		tag = p.cur().text
		p.advance()
	}
	if !p.atPunct("{") {
		return tag, false, nil
	}
	p.advance()
	for !p.atPunct("}") && !p.atEOF() {
		if !p.at(tIdent) {
			p.advance()
			continue
		}
		cpos := p.posHere()
		name := p.cur().text
		p.advance()
		var val cast.Expr
		if p.atPunct("=") {
			p.advance()
			val = p.parseAssignExpr()
		}
		ctors = append(ctors, cast.Enumerator{Name: name, Pos: cpos, Value: val})
		p.consumeOptional(",")
	}
	p.consumeOptional("}")
	return tag, true, ctors
}

func (p *parser) parseParamList() []cast.Param {
	var params []cast.Param
	if !p.atPunct("(") {
		return params
	}
	p.advance()
	for !p.atPunct(")") && !p.atEOF() {
		if p.atIdent("void") && p.peekAhead(1).kind == tPunct && p.peekAhead(1).text == ")" {
			p.advance()
			break
		}
		pt, ok := p.parseBaseType()
		if !ok {
			p.advance()
			continue
		}
		pt = p.parseDeclaratorType(pt)
		name := ""
		if p.at(tIdent) {
			name = p.cur().text
			p.advance()
		}
		pt = p.parseTrailingArrays(pt)
		params = append(params, cast.Param{Name: name, Type: pt})
		p.consumeOptional(",")
	}
	p.consumeOptional(")")
	return params
}

func (p *parser) parseFunctionRest(storage cast.Storage, retType cast.Type, name string, pos cast.Pos) cast.TopLevel {
	params := p.parseParamList()
	switch {
	case p.atPunct(";"):
		p.advance()
		return &cast.FuncProto{Name: name, Pos: pos, Storage: storage, Params: params, Return: retType}
	case p.atPunct("{"):
		body := p.parseBlockStmts()
		return &cast.FuncDef{Name: name, Pos: pos, Storage: storage, Params: params, Return: retType, Body: body}
	default:
		p.recover()
		return &cast.FuncProto{Name: name, Pos: pos, Storage: storage, Params: params, Return: retType}
	}
}

// --- statements ---

func (p *parser) parseBlockStmts() []cast.Stmt {
	p.advance() // '{'
	var stmts []cast.Stmt
	for !p.atPunct("}") && !p.atEOF() {
		before := p.pos
		s := p.parseStmt()
		if s != nil {
			stmts = append(stmts, s)
		}
		if p.pos == before {
			p.advance()
		}
	}
	p.consumeOptional("}")
	return stmts
}

func (p *parser) parseStmt() cast.Stmt {
	switch {
	case p.atPunct("{"):
		return &cast.Block{Stmts: p.parseBlockStmts()}
	case p.atPunct(";"):
		p.advance()
		return nil
	case p.atIdent("if"):
		p.advance()
		p.consumeOptional("(")
		cond := p.parseExpr()
		p.consumeOptional(")")
		then := p.parseStmt()
		var els cast.Stmt
		if p.atIdent("else") {
			p.advance()
			els = p.parseStmt()
		}
		return &cast.If{Cond: cond, Then: then, Else: els}
	case p.atIdent("while"):
		p.advance()
		p.consumeOptional("(")
		cond := p.parseExpr()
		p.consumeOptional(")")
		body := p.parseStmt()
		return &cast.While{Cond: cond, Body: body}
	case p.atIdent("do"):
		p.advance()
		body := p.parseStmt()
		if p.atIdent("while") {
			p.advance()
		}
		p.consumeOptional("(")
		cond := p.parseExpr()
		p.consumeOptional(")")
		p.consumeOptional(";")
		return &cast.While{Cond: cond, Body: body, Do: true}
	case p.atIdent("for"):
		return p.parseForStmt()
	case p.atIdent("return"):
		p.advance()
		var val cast.Expr
		if !p.atPunct(";") {
			val = p.parseExpr()
		}
		p.consumeOptional(";")
		return &cast.Return{Value: val}
	case p.atIdent("break"), p.atIdent("continue"), p.atIdent("goto"):
		p.advance()
		for !p.atPunct(";") && !p.atEOF() {
			p.advance()
		}
		p.consumeOptional(";")
		return nil
	case p.isDeclStart():
		return p.parseLocalDecl()
	default:
		e := p.parseExpr()
		p.consumeOptional(";")
		if e == nil {
			return nil
		}
		return &cast.ExprStmt{X: e}
	}
}

func (p *parser) parseForStmt() cast.Stmt {
	p.advance()
	p.consumeOptional("(")
	var init cast.Stmt
	if !p.atPunct(";") {
		if p.isDeclStart() {
			init = p.parseLocalDecl()
		} else {
			e := p.parseExpr()
			init = &cast.ExprStmt{X: e}
			p.consumeOptional(";")
		}
	} else {
		p.advance()
	}
	var cond cast.Expr
	if !p.atPunct(";") {
		cond = p.parseExpr()
	}
	p.consumeOptional(";")
	var post cast.Expr
	if !p.atPunct(")") {
		post = p.parseExpr()
	}
	p.consumeOptional(")")
	body := p.parseStmt()
	return &cast.For{Init: init, Cond: cond, Post: post, Body: body}
}

func (p *parser) parseLocalDecl() cast.Stmt {
	pos := p.posHere()
	storage := cast.Default
loop:
	for {
		switch {
		case p.atIdent("static"):
			storage = cast.Static
			p.advance()
		case p.atIdent("extern"):
			storage = cast.Extern
			p.advance()
		case p.atIdent("const"), p.atIdent("volatile"), p.atIdent("register"), p.atIdent("auto"):
			p.advance()
		default:
			break loop
		}
	}
	baseType, ok := p.parseBaseType()
	if !ok {
		p.recover()
		return nil
	}
	t := p.parseDeclaratorType(baseType)
	if !p.at(tIdent) {
		p.recover()
		return nil
	}
	name := p.cur().text
	p.advance()
	t = p.parseTrailingArrays(t)
	var init cast.Expr
	if p.atPunct("=") {
		p.advance()
		init = p.parseAssignExpr()
	}

	var extra []cast.Stmt
	for p.atPunct(",") {
		p.advance()
		dt := p.parseDeclaratorType(baseType)
		if !p.at(tIdent) {
			break
		}
		n2 := p.cur().text
		p.advance()
		dt = p.parseTrailingArrays(dt)
		var i2 cast.Expr
		if p.atPunct("=") {
			p.advance()
			i2 = p.parseAssignExpr()
		}
		extra = append(extra, &cast.VarDecl{Name: n2, Pos: pos, Storage: storage, Type: dt, Init: i2})
	}
	p.consumeOptional(";")

	first := &cast.VarDecl{Name: name, Pos: pos, Storage: storage, Type: t, Init: init}
	if len(extra) == 0 {
		return first
	}
	return &cast.Block{Stmts: append([]cast.Stmt{first}, extra...)}
}

// --- expressions ---

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
}

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *parser) parseExpr() cast.Expr {
	return p.parseAssignExpr()
}

func (p *parser) parseAssignExpr() cast.Expr {
	lhs := p.parseBinaryExpr(0)
	if p.at(tPunct) && assignOps[p.cur().text] {
		op := p.cur().text
		p.advance()
		rhs := p.parseAssignExpr()
		return &cast.Assign{Op: op, Lhs: lhs, Rhs: rhs}
	}
	return lhs
}

func (p *parser) parseBinaryExpr(minPrec int) cast.Expr {
	lhs := p.parseUnaryExpr()
	for p.at(tPunct) {
		op := p.cur().text
		prec, ok := binaryPrec[op]
		if !ok || prec < minPrec {
			break
		}
		p.advance()
		rhs := p.parseBinaryExpr(prec + 1)
		lhs = &cast.BinaryExpr{Op: op, X: lhs, Y: rhs}
	}
	return lhs
}

var unaryOps = map[string]bool{
	"!": true, "~": true, "-": true, "+": true, "*": true, "&": true,
	"++": true, "--": true,
}

func (p *parser) parseUnaryExpr() cast.Expr {
	if p.at(tPunct) && unaryOps[p.cur().text] {
		op := p.cur().text
		p.advance()
		x := p.parseUnaryExpr()
		return &cast.UnaryExpr{Op: op, X: x}
	}
	if p.atIdent("sizeof") {
		p.advance()
		paren := p.atPunct("(")
		if paren {
			p.advance()
			depth := 0
			for !p.atEOF() {
				if p.atPunct("(") {
					depth++
				}
				if p.atPunct(")") {
					if depth == 0 {
						break
					}
					depth--
				}
				p.advance()
			}
			p.consumeOptional(")")
		} else {
			p.parseUnaryExpr()
		}
		return &cast.Literal{Value: "sizeof"}
	}
	return p.parsePostfixExpr()
}

func (p *parser) parsePostfixExpr() cast.Expr {
	e := p.parsePrimaryExpr()
	for {
		switch {
		case p.atPunct("("):
			pos := p.posHere()
			p.advance()
			var args []cast.Expr
			for !p.atPunct(")") && !p.atEOF() {
				args = append(args, p.parseAssignExpr())
				p.consumeOptional(",")
			}
			p.consumeOptional(")")
			e = &cast.Call{Callee: e, Args: args, Pos: pos}
		case p.atPunct("."):
			pos := p.posHere()
			p.advance()
			field := ""
			if p.at(tIdent) {
				field = p.cur().text
				p.advance()
			}
			e = &cast.FieldAccess{X: e, Field: field, Arrow: false, Pos: pos}
		case p.atPunct("->"):
			pos := p.posHere()
			p.advance()
			field := ""
			if p.at(tIdent) {
				field = p.cur().text
				p.advance()
			}
			e = &cast.FieldAccess{X: e, Field: field, Arrow: true, Pos: pos}
		case p.atPunct("["):
			p.advance()
			idx := p.parseExpr()
			p.consumeOptional("]")
			e = &cast.BinaryExpr{Op: "[]", X: e, Y: idx}
		case p.atPunct("++"), p.atPunct("--"):
			op := p.cur().text
			p.advance()
			e = &cast.UnaryExpr{Op: "post" + op, X: e}
		default:
			return e
		}
	}
}

func (p *parser) isCastAhead() bool {
	if !p.at(tIdent) {
		return false
	}
	w := p.cur().text
	return builtinTypeWords[w] || w == "struct" || w == "union" || w == "enum" || w == "const"
}

func (p *parser) skipCastType() {
	depth := 0
	for !p.atEOF() {
		if p.atPunct("(") {
			depth++
		}
		if p.atPunct(")") {
			if depth == 0 {
				p.advance()
				return
			}
			depth--
		}
		p.advance()
	}
}

func (p *parser) parsePrimaryExpr() cast.Expr {
	switch {
	case p.at(tIdent):
		name := p.cur().text
		pos := p.posHere()
		p.advance()
		return &cast.Ident{Name: name, Pos: pos}
	case p.at(tNumber), p.at(tString), p.at(tChar):
		v := p.cur().text
		p.advance()
		return &cast.Literal{Value: v}
	case p.atPunct("("):
		p.advance()
		if p.isCastAhead() {
			p.skipCastType()
			return p.parseUnaryExpr()
		}
		e := p.parseExpr()
		p.consumeOptional(")")
		return e
	default:
		p.advance()
		return &cast.Literal{Value: ""}
	}
}
