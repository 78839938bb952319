package parser

import (
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/lexer"
)

// parseIndentOrInlineBlock parses a `:`-introduced block body — either the
// significant-indent form (`:` then a newline, closed by a dedent) or the
// same-line form (`:` then content, closed at line end) — spec.md §4.2
// describes both as one block-stack mode, so both are driven by the same
// IsBlockEnd loop; the lexer layer is what tells them apart via the latched
// indent column.
func (p *Parser) parseIndentOrInlineBlock() ir.Nodes {
	// Push before consuming the `:` — the parser keeps one token of
	// lookahead, so the first body token is pulled from the stream by this
	// advance, and that pull is what latches the block's declared indent.
	p.ts.PushIndentBlock()
	p.expect(lexer.Colon, "`:`")
	var body ir.Nodes
	for !p.ts.IsBlockEnd() && !p.at(lexer.EOF) {
		if s := p.parseStmt(); s != nil {
			body.Append(s)
		} else {
			p.advance()
		}
	}
	p.ts.PopBlock()
	return body
}

// parseStmtList parses statements until the enclosing block's end (a `}`
// for a brace block, left for the caller to consume).
func (p *Parser) parseStmtList() ir.Nodes {
	var body ir.Nodes
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		if s := p.parseStmt(); s != nil {
			body.Append(s)
		} else {
			p.advance()
		}
	}
	return body
}

// parseBlockBody parses either brace form `{ ... }` or `:`-introduced form,
// the two shapes every control-flow body accepts (spec.md §4.2).
func (p *Parser) parseBlockBody() ir.Nodes {
	if p.at(lexer.LBrace) {
		p.advance()
		p.ts.PushBraceBlock()
		body := p.parseStmtList()
		p.expect(lexer.RBrace, "`}` closing block")
		p.ts.PopBlock()
		return body
	}
	return p.parseIndentOrInlineBlock()
}

func (p *Parser) parseStmt() *ir.Node {
	switch p.cur.Kind {
	case lexer.Semi:
		p.advance()
		return nil
	case lexer.KwReturn:
		return p.parseReturn()
	case lexer.KwBreak:
		loc := p.loc()
		p.advance()
		return p.b.New(ir.Break, loc)
	case lexer.KwContinue:
		loc := p.loc()
		p.advance()
		return p.b.New(ir.Continue, loc)
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwWhile:
		return p.parseWhile()
	case lexer.KwEach:
		return p.parseEachStmt()
	case lexer.KwLoop:
		return p.parseLoop()
	case lexer.KwDo:
		return p.parseDo()
	case lexer.KwWith:
		return p.parseWith()
	case lexer.KwMatch:
		return p.parseMatch()
	case lexer.KwFn:
		return p.parseFnDcl(nil)
	case lexer.KwConst:
		return p.parseConstDcl(nil)
	case lexer.KwTypedef:
		return p.parseTypedef(nil)
	case lexer.LBrace:
		return p.parseBraceBlockExpr()
	case lexer.KwMut, lexer.KwImm, lexer.KwUni, lexer.KwRo, lexer.KwOpaq:
		return p.parseVarDcl()
	case lexer.Name:
		if p.looksLikeVarDcl() {
			return p.parseVarDcl()
		}
		return p.parseExprStmt()
	default:
		return p.parseExprStmt()
	}
}

// parseExprStmt parses a bare expression used as a statement — or, when a
// `<=>` follows, the swap statement exchanging two lvals without a
// temporary (spec.md §3's Swap tag).
func (p *Parser) parseExprStmt() *ir.Node {
	e := p.parseExpr()
	if p.at(lexer.SwapOp) {
		loc := p.loc()
		p.advance()
		n := p.b.New(ir.Swap, loc)
		n.Left = e
		n.Right = p.parseExpr()
		e = n
	}
	if p.at(lexer.Semi) {
		p.advance()
	}
	return e
}

// looksLikeVarDcl distinguishes `name vtype = value` (a declaration) from
// a bare expression statement starting with a name: a declaration's second
// token is itself the start of a type (another Name, `&`, `*`, or `[`)
// rather than an operator or call suffix.
func (p *Parser) looksLikeVarDcl() bool {
	next := p.ts.PeekNext()
	switch next.Kind {
	case lexer.Name, lexer.Amp, lexer.Star, lexer.LBracket:
		return true
	}
	return false
}

// parseVarDcl parses `perm? name vtype (= value)?`, spec.md's ordinary
// local declaration (one VarDcl per spec.md §4.1: "every VarDcl encountered
// hooks itself on the stack").
func (p *Parser) parseVarDcl() *ir.Node {
	loc := p.loc()
	var defPerm *ir.Node
	if p.at(lexer.Name) && p.cur.Text == "let" {
		// `let` introduces an immutable binding; not a reserved word, so it
		// arrives as a plain identifier.
		p.advance()
		defPerm = p.lib.Perms["imm"]
	}
	perm := p.parsePerm(defPerm)
	nameTok, ok := p.expect(lexer.Name, "variable name")
	if !ok {
		return nil
	}
	n := p.b.NewNamed(ir.VarDcl, loc, nameTok.Text)
	n.Perm = perm
	n.Vtype = p.parseVtype()
	if p.at(lexer.Assign) {
		p.advance()
		n.Value = p.parseExpr()
	}
	if p.at(lexer.Semi) {
		p.advance()
	}
	return n
}

func (p *Parser) parseReturn() *ir.Node {
	loc := p.loc()
	p.advance() // return
	n := p.b.New(ir.Return, loc)
	if !p.at(lexer.Semi) && !p.at(lexer.RBrace) && !p.at(lexer.EOF) && p.cur.Loc.Line == loc.Line {
		n.Left = p.parseExpr()
	}
	if p.at(lexer.Semi) {
		p.advance()
	}
	return n
}

// parseIf parses `if COND block (elif COND block)* (else block)?`, with the
// `if perm T NAME = EXPR` guard-and-injected-declaration sugar (spec.md
// §4.3) handled by parseCondGuard.
func (p *Parser) parseIf() *ir.Node {
	loc := p.loc()
	p.advance() // if
	return p.parseIfArm(loc)
}

func (p *Parser) parseIfArm(loc ir.Loc) *ir.Node {
	cond, guardDecl := p.parseCondGuard()
	body := p.parseBlockBody()
	if guardDecl != nil {
		wrapped := ir.Nodes{}
		wrapped.Append(guardDecl)
		wrapped.Append(body.Slice()...)
		body = wrapped
	}
	n := p.b.New(ir.If, loc)
	n.List.Append(cond)
	n.Nbody = body
	switch {
	case p.at(lexer.KwElif):
		elifLoc := p.loc()
		p.advance()
		n.Right = p.parseIfArm(elifLoc)
	case p.at(lexer.KwElse):
		p.advance()
		n.Right = p.b.New(ir.Block, p.loc())
		n.Right.Nbody = p.parseBlockBody()
		n.Flag |= ir.FlagExhaustive
	}
	return n
}

// parseCondGuard parses either a plain boolean expression or the
// `perm T NAME = EXPR` pattern-guard sugar: an `EXPR is T` condition plus an
// injected `VarDcl NAME = EXPR as T` at the top of the body (spec.md §4.3).
// The scrutinee subtree is shared between the guard and the injected cast
// (no anonymous temporary): harmless here since this pass builds IR only,
// never re-evaluates it, and data-flow (out of this file's scope) walks
// each occurrence independently.
func (p *Parser) parseCondGuard() (cond, guardDecl *ir.Node) {
	if perm, vtype, nameTok, ok := p.tryParsePatternHead(); ok {
		loc := p.loc()
		p.expect(lexer.Assign, "`=`")
		scrutinee := p.withNoBraceLit(p.parseExpr)
		isNode := p.b.New(ir.Is, loc)
		isNode.Left = scrutinee
		isNode.Right = vtype
		decl := p.b.NewNamed(ir.VarDcl, loc, nameTok)
		decl.Perm = perm
		decl.Vtype = vtype
		cast := p.b.New(ir.Cast, loc)
		cast.Left = scrutinee
		cast.Vtype = vtype
		decl.Value = cast
		return isNode, decl
	}
	return p.withNoBraceLit(p.parseExpr), nil
}

// tryParsePatternHead recognizes the `perm T NAME` pattern-guard head
// (perm name, type name, binding name) without committing to it unless all
// three tokens line up; anything else is left untouched for parseExpr.
func (p *Parser) tryParsePatternHead() (perm *ir.Node, vtype *ir.Node, bindName string, ok bool) {
	text, isPermTok := p.permTokenText()
	if !isPermTok {
		return nil, nil, "", false
	}
	permNode, isPerm := p.lib.Perms[text]
	if !isPerm {
		return nil, nil, "", false
	}
	save := p.cur
	p.advance()
	if !p.at(lexer.Name) {
		p.pushBack(save) // not a pattern head; caller treats as plain expr start
		return nil, nil, "", false
	}
	vt := p.parseTypeName()
	if !p.at(lexer.Name) {
		return nil, nil, "", false
	}
	nameTok := p.cur
	p.advance()
	return permNode, vt, nameTok.Text, true
}

func (p *Parser) parseWhile() *ir.Node {
	loc := p.loc()
	p.advance() // while
	cond := p.withNoBraceLit(p.parseExpr)
	n := p.b.New(ir.LoopBlock, loc)
	n.Left = cond
	n.Nbody = p.parseBlockBody()
	return n
}

// parseEachStmt parses `each NAME in START..END [by STEP] block`, desugared
// per spec.md §4.3 into `{ mut NAME = START; while NAME < END { BODY; NAME
// += STEP } }` (STEP defaults to 1, i.e. `++`).
func (p *Parser) parseEachStmt() *ir.Node {
	loc := p.loc()
	p.advance() // each
	nameTok, _ := p.expect(lexer.Name, "loop variable name")
	p.expect(lexer.KwIn, "`in`")
	iter := p.withNoBraceLit(p.parseTuple)
	var step *ir.Node
	if p.at(lexer.KwBy) {
		p.advance()
		step = p.withNoBraceLit(p.parseTuple)
	}
	body := p.parseBlockBody()
	bodyBlk := p.b.New(ir.Block, loc)
	bodyBlk.Nbody = body
	return p.desugarEachStmt(loc, nameTok.Text, iter, step, bodyBlk)
}

func (p *Parser) desugarEachStmt(loc ir.Loc, name string, iter, step, body *ir.Node) *ir.Node {
	blk := p.b.New(ir.Block, loc)
	if !isRangeCall(iter) {
		blk.Nbody.Append(body)
		return blk
	}
	start, end := iter.Left, iter.Rlist.Slice()[0]
	v := p.b.NewNamed(ir.VarDcl, loc, name)
	v.Value = start
	v.Perm = p.lib.Perms["mut"]
	loop := p.b.New(ir.LoopBlock, loc)
	loop.Left = p.binOp(loc, "<", p.b.NewNamed(ir.NameUse, loc, name), end)
	var incr *ir.Node
	if step != nil {
		incr = p.binOp(loc, "+=", p.b.NewNamed(ir.NameUse, loc, name), step)
		incr.Flag |= ir.FlagLvalOp | ir.FlagOpAssgn
	} else {
		incr = p.b.New(ir.FnCall, loc)
		incr.Methfld = p.b.Names.Intern("_++")
		incr.Flag |= ir.FlagLvalOp
		incr.Left = p.b.NewNamed(ir.NameUse, loc, name)
	}
	loop.Nbody.Append(body, incr)
	blk.Nbody.Append(v, loop)
	return blk
}

// isRangeCall reports whether iter is the `START .. END` range FnCall
// maybeRange builds.
func isRangeCall(iter *ir.Node) bool {
	return iter != nil && iter.Tag == ir.FnCall && iter.Left != nil &&
		iter.Methfld != nil && iter.Methfld.Text == ".." && iter.Rlist.Len() == 1
}

// parseLoop parses an unconditional `loop block`, broken out only by
// `break`/`return`.
func (p *Parser) parseLoop() *ir.Node {
	loc := p.loc()
	p.advance() // loop
	n := p.b.New(ir.LoopBlock, loc)
	n.Nbody = p.parseBlockBody()
	return n
}

// parseDo parses Cone's post-tested loop, `do block while COND`.
func (p *Parser) parseDo() *ir.Node {
	loc := p.loc()
	p.advance() // do
	n := p.b.New(ir.LoopBlock, loc)
	n.Nbody = p.parseBlockBody()
	if _, ok := p.expect(lexer.KwWhile, "`while`"); ok {
		n.Left = p.parseExpr()
		n.Flag |= ir.FlagColas // reused: marks a post-tested (do/while) loop; see DESIGN.md
	}
	if p.at(lexer.Semi) {
		p.advance()
	}
	return n
}

// parseWith parses `with EXPR block`, a scoping construct that simply
// evaluates EXPR for its side effects/lifetime before entering block (the
// real Cone `with` additionally scopes a region allocator; region
// selection itself is a code-generator concern, out of scope here).
func (p *Parser) parseWith() *ir.Node {
	loc := p.loc()
	p.advance() // with
	n := p.b.New(ir.Block, loc)
	n.Ninit.Append(p.parseExpr())
	n.Nbody = p.parseBlockBody()
	return n
}

// parseMatch parses `match EXPR { case PATTERN: block ... case else:
// block }` and desugars it into the if-chain spec.md §4.3 describes: the
// scrutinee is bound to an anonymous variable once, and each case becomes
// an `is Type` / `== value` / bare-expression guard in sequence.
func (p *Parser) parseMatch() *ir.Node {
	loc := p.loc()
	p.advance() // match
	scrutinee := p.withNoBraceLit(p.parseExpr)
	anon := p.b.NewNamed(ir.VarDcl, loc, "_matchval")
	anon.Value = scrutinee

	if _, ok := p.expect(lexer.LBrace, "`{` opening match body"); !ok {
		return anon
	}
	p.ts.PushBraceBlock()
	var cases []*ir.Node
	var elseBody ir.Nodes
	for p.at(lexer.KwCase) {
		caseLoc := p.loc()
		p.advance()
		if p.at(lexer.KwElse) {
			p.advance()
			elseBody = p.parseCaseBody()
			continue
		}
		cond, inject := p.parseCasePattern(caseLoc)
		body := p.parseCaseBody()
		if inject != nil {
			wrapped := ir.Nodes{}
			wrapped.Append(inject)
			wrapped.Append(body.Slice()...)
			body = wrapped
		}
		arm := p.b.New(ir.If, caseLoc)
		arm.List.Append(cond)
		arm.Nbody = body
		cases = append(cases, arm)
	}
	p.expect(lexer.RBrace, "`}` closing match body")
	p.ts.PopBlock()

	blk := p.b.New(ir.Block, loc)
	blk.Nbody.Append(anon)
	if len(cases) == 0 {
		blk.Nbody.Append(elseBody.Slice()...)
		return blk
	}
	chain := cases[len(cases)-1]
	if len(elseBody.Slice()) > 0 {
		elseBlk := p.b.New(ir.Block, loc)
		elseBlk.Nbody = elseBody
		chain.Right = elseBlk
		chain.Flag |= ir.FlagExhaustive
	}
	for i := len(cases) - 2; i >= 0; i-- {
		cases[i].Right = chain
		chain = cases[i]
	}
	blk.Nbody.Append(chain)
	return blk
}

// parseCaseBody consumes the `:` introducing a case arm's body, then the
// body itself: a brace block, or indented statements up to the next `case`
// or the match's closing `}`.
func (p *Parser) parseCaseBody() ir.Nodes {
	if p.at(lexer.Colon) && p.ts.PeekNext().Kind == lexer.LBrace {
		p.advance() // :
	}
	if p.at(lexer.LBrace) {
		p.advance()
		p.ts.PushBraceBlock()
		body := p.parseStmtList()
		p.expect(lexer.RBrace, "`}` closing case body")
		p.ts.PopBlock()
		return body
	}
	p.ts.PushIndentBlock()
	p.expect(lexer.Colon, "`:`")
	var body ir.Nodes
	for !p.ts.IsBlockEnd() && !p.at(lexer.KwCase) && !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		if s := p.parseStmt(); s != nil {
			body.Append(s)
		} else {
			break
		}
	}
	p.ts.PopBlock()
	return body
}

// parseCasePattern parses one `case` pattern: `is Type`, `perm T NAME`
// (desugars to an `is` guard plus an injected `VarDcl`, spec.md §4.3), or a
// bare value expression compared with `==`.
func (p *Parser) parseCasePattern(loc ir.Loc) (cond, inject *ir.Node) {
	if p.at(lexer.KwIs) {
		p.advance()
		isNode := p.b.New(ir.Is, loc)
		isNode.Left = p.b.NewNamed(ir.NameUse, loc, "_matchval")
		isNode.Right = p.parseVtype()
		return isNode, nil
	}
	if perm, vtype, nameTok, ok := p.tryParsePatternHead(); ok {
		isNode := p.b.New(ir.Is, loc)
		isNode.Left = p.b.NewNamed(ir.NameUse, loc, "_matchval")
		isNode.Right = vtype
		decl := p.b.NewNamed(ir.VarDcl, loc, nameTok)
		decl.Perm = perm
		decl.Vtype = vtype
		cast := p.b.New(ir.Cast, loc)
		cast.Left = p.b.NewNamed(ir.NameUse, loc, "_matchval")
		cast.Vtype = vtype
		decl.Value = cast
		return isNode, decl
	}
	// A bare type name immediately followed by `:` is the `is Type`
	// shorthand case pattern; anything else falls through to a plain
	// value comparison. Decided by one token of lookahead so a value
	// expression starting with a name never has its first token
	// consumed and discarded.
	if p.at(lexer.Name) && p.ts.PeekNext().Kind == lexer.Colon {
		vt := p.parseTypeName()
		isNode := p.b.New(ir.Is, loc)
		isNode.Left = p.b.NewNamed(ir.NameUse, loc, "_matchval")
		isNode.Right = vt
		return isNode, nil
	}
	val := p.parseAssign()
	return p.binOp(loc, "==", p.b.NewNamed(ir.NameUse, loc, "_matchval"), val), nil
}
