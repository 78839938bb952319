package parser

import (
	"cone-lang.dev/conec/internal/diag"
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/lexer"
)

// parseExpr parses a full expression, top of the precedence table
// (spec.md §4.3): assignment, then the control-flow suffix sugar (`EXPR if
// COND`, `EXPR while COND`, `EXPR each NAME in ITER`), which binds looser
// than everything else since it wraps the whole expression just parsed.
func (p *Parser) parseExpr() *ir.Node {
	e := p.parseAssign()
	for {
		switch p.cur.Kind {
		case lexer.KwIf:
			loc := p.loc()
			p.advance()
			cond := p.parseAssign()
			n := p.b.New(ir.If, loc)
			n.List.Append(cond)
			n.Rlist.Append(e)
			e = n
		case lexer.KwWhile:
			loc := p.loc()
			p.advance()
			cond := p.parseAssign()
			n := p.b.New(ir.LoopBlock, loc)
			n.Left = cond
			n.Nbody.Append(e)
			e = n
		case lexer.KwEach:
			loc := p.loc()
			p.advance()
			nameTok, _ := p.expect(lexer.Name, "loop variable name")
			p.expect(lexer.KwIn, "`in`")
			iter := p.parseAssign()
			e = p.desugarEachStmt(loc, nameTok.Text, iter, nil, e)
		default:
			return e
		}
	}
}

// binOp builds the FnCall node a binary operator desugars to (spec.md
// §4.3/§4.6.3): the left operand is the call's object, the right operand its
// sole argument, matching the shape `.method(args)` parsing already
// produces so later passes resolve every operator uniformly through
// FnCall/Rlist rather than treating Left/Right as a special case.
func (p *Parser) binOp(loc ir.Loc, op string, left, right *ir.Node) *ir.Node {
	n := p.b.New(ir.FnCall, loc)
	n.Methfld = p.b.Names.Intern(op)
	n.Left = left
	n.Rlist.Append(right)
	return n
}

// parseAssign parses assignment and `:=`, the lowest real-precedence level
// (spec.md §4.3). Compound assignment (`+=` etc.) desugars here into an
// `LvalOp`-flagged FnCall of the corresponding operator method.
func (p *Parser) parseAssign() *ir.Node {
	lhs := p.parseTuple()
	loc := p.loc()
	switch p.cur.Kind {
	case lexer.Assign:
		p.advance()
		n := p.b.New(ir.Assign, loc)
		n.Left, n.Right = lhs, p.parseAssign()
		return n
	case lexer.ColonAssign:
		p.advance()
		n := p.b.New(ir.Assign, loc)
		n.Flag |= ir.FlagColas
		n.Left, n.Right = lhs, p.parseAssign()
		return n
	}
	if op, ok := compoundOps[p.cur.Kind]; ok {
		p.advance()
		n := p.binOp(loc, op, lhs, p.parseAssign())
		n.Flag |= ir.FlagLvalOp | ir.FlagOpAssgn
		return n
	}
	return lhs
}

var compoundOps = map[lexer.Kind]string{
	lexer.PlusEq:    "+=",
	lexer.MinusEq:   "-=",
	lexer.StarEq:    "*=",
	lexer.SlashEq:   "/=",
	lexer.PercentEq: "%=",
	lexer.AmpEq:     "&=",
	lexer.PipeEq:    "|=",
	lexer.CaretEq:   "^=",
	lexer.ShlEq:     "<<=",
	lexer.ShrEq:     ">>=",
}

// parseTuple parses comma-separated expressions into a VTuple node, per
// spec.md §4.3's "tuple comma" precedence level (above assignment, below
// logical or).
func (p *Parser) parseTuple() *ir.Node {
	loc := p.loc()
	first := p.parseLogicOr()
	if !p.at(lexer.Comma) {
		return first
	}
	n := p.b.New(ir.VTuple, loc)
	n.List.Append(first)
	for p.at(lexer.Comma) {
		p.advance()
		n.List.Append(p.parseLogicOr())
	}
	return n
}

func (p *Parser) parseLogicOr() *ir.Node {
	e := p.parseLogicAnd()
	for p.at(lexer.KwOr) {
		loc := p.loc()
		p.advance()
		n := p.b.New(ir.LogicOr, loc)
		n.Left, n.Right = e, p.parseLogicAnd()
		e = n
	}
	return e
}

func (p *Parser) parseLogicAnd() *ir.Node {
	e := p.parseLogicNot()
	for p.at(lexer.KwAnd) {
		loc := p.loc()
		p.advance()
		n := p.b.New(ir.LogicAnd, loc)
		n.Left, n.Right = e, p.parseLogicNot()
		e = n
	}
	return e
}

func (p *Parser) parseLogicNot() *ir.Node {
	if p.at(lexer.KwNot) {
		loc := p.loc()
		p.advance()
		n := p.b.New(ir.LogicNot, loc)
		n.Left = p.parseLogicNot()
		return n
	}
	return p.parseComparison()
}

var cmpOps = map[lexer.Kind]string{
	lexer.Eq: "==", lexer.Ne: "!=",
	lexer.Lt: "<", lexer.Le: "<=",
	lexer.Gt: ">", lexer.Ge: ">=",
}

// parseComparison handles the binary comparisons plus `is Type`
// (spec.md §4.6.1's Is node).
func (p *Parser) parseComparison() *ir.Node {
	e := p.parseBitOr()
	for {
		if p.at(lexer.KwIs) {
			loc := p.loc()
			p.advance()
			n := p.b.New(ir.Is, loc)
			n.Left = e
			n.Right = p.parseVtype()
			e = n
			continue
		}
		op, ok := cmpOps[p.cur.Kind]
		if !ok {
			return e
		}
		loc := p.loc()
		p.advance()
		e = p.binOp(loc, op, e, p.parseBitOr())
	}
}

func (p *Parser) parseBitOr() *ir.Node {
	return p.leftAssocOp(p.parseBitXor, map[lexer.Kind]string{lexer.Pipe: "|"})
}
func (p *Parser) parseBitXor() *ir.Node {
	return p.leftAssocOp(p.parseBitAnd, map[lexer.Kind]string{lexer.Caret: "^"})
}
func (p *Parser) parseBitAnd() *ir.Node {
	return p.leftAssocOp(p.parseShift, map[lexer.Kind]string{lexer.Amp: "&"})
}
func (p *Parser) parseShift() *ir.Node {
	return p.leftAssocOp(p.parseAdditive, map[lexer.Kind]string{lexer.Shl: "<<", lexer.Shr: ">>"})
}
func (p *Parser) parseAdditive() *ir.Node {
	return p.leftAssocOp(p.parseMultiplicative, map[lexer.Kind]string{lexer.Plus: "+", lexer.Minus: "-"})
}
func (p *Parser) parseMultiplicative() *ir.Node {
	return p.leftAssocOp(p.parseCast, map[lexer.Kind]string{lexer.Star: "*", lexer.Slash: "/", lexer.Percent: "%"})
}

// leftAssocOp is the common shape for every binary-operator precedence
// level (spec.md §4.3): parse one operand at the next-tighter level, then
// fold in `op operand` pairs left to right, each becoming an operator
// FnCall (desugared to a method call, per §4.6.1/§4.6.3).
func (p *Parser) leftAssocOp(next func() *ir.Node, ops map[lexer.Kind]string) *ir.Node {
	e := next()
	for {
		op, ok := ops[p.cur.Kind]
		if !ok {
			return e
		}
		loc := p.loc()
		p.advance()
		e = p.binOp(loc, op, e, next())
	}
}

// parseCast parses the `as`/`into` suffix (spec.md §4.3, between
// multiplicative and prefix).
func (p *Parser) parseCast() *ir.Node {
	e := p.parsePrefix()
	for p.at(lexer.KwAs) || p.at(lexer.KwInto) {
		loc := p.loc()
		forced := p.at(lexer.KwInto)
		p.advance()
		n := p.b.New(ir.Cast, loc)
		n.Left = e
		n.Vtype = p.parseVtype()
		if forced {
			n.Flag |= ir.FlagInline // reused: marks a forced (`into`) vs checked (`as`) cast; see DESIGN.md
		}
		e = n
	}
	return e
}

// parsePrefix parses the prefix operators `-`, `~`, `++`, `--`, `*`
// (dereference), `&` (borrow), `not` already handled above logic-not.
func (p *Parser) parsePrefix() *ir.Node {
	loc := p.loc()
	switch p.cur.Kind {
	case lexer.Minus:
		p.advance()
		n := p.b.New(ir.FnCall, loc)
		n.Methfld = p.b.Names.Intern("neg")
		n.Left = p.parsePrefix()
		return n
	case lexer.Tilde:
		p.advance()
		n := p.b.New(ir.FnCall, loc)
		n.Methfld = p.b.Names.Intern("~")
		n.Left = p.parsePrefix()
		return n
	case lexer.PlusPlus, lexer.MinusMinus:
		op := "_++"
		if p.cur.Kind == lexer.MinusMinus {
			op = "_--"
		}
		p.advance()
		n := p.b.New(ir.FnCall, loc)
		n.Methfld = p.b.Names.Intern(op)
		n.Flag |= ir.FlagLvalOp
		n.Left = p.parsePrefix()
		return n
	case lexer.Star:
		p.advance()
		n := p.b.New(ir.Deref, loc)
		n.Left = p.parsePrefix()
		return n
	case lexer.Amp:
		// `&rc mut expr` allocates in the named region; a region-less `&`
		// is an ordinary borrow whose permission defaults to imm.
		p.advance()
		region, perm := p.parseAllocPerm()
		operand := p.parsePrefix()
		if region != nil {
			n := p.b.New(ir.Allocate, loc)
			n.Region, n.Perm, n.Left = region, perm, operand
			return n
		}
		n := p.b.New(ir.Borrow, loc)
		n.Perm = perm
		n.Left = operand
		return n
	case lexer.Dot:
		// `.method(args)` at expression head means `this.method(args)`
		// (spec.md §4.3).
		self := p.b.NewNamed(ir.NameUse, loc, "self")
		return p.parsePostfixFrom(self)
	case lexer.Shl, lexer.Shr:
		// `<<`/`>>` at expression head means `this << x` (spec.md §4.3).
		op := "<<"
		if p.cur.Kind == lexer.Shr {
			op = ">>"
		}
		p.advance()
		return p.binOp(loc, op, p.b.NewNamed(ir.NameUse, loc, "self"), p.parseCast())
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary expression followed by any number of
// postfix `++`/`--` and call-suffix chains.
func (p *Parser) parsePostfix() *ir.Node {
	return p.parsePostfixFrom(p.parsePrimary())
}

func (p *Parser) parsePostfixFrom(e *ir.Node) *ir.Node {
	for {
		switch p.cur.Kind {
		case lexer.Dot:
			loc := p.loc()
			p.advance()
			nameTok, ok := p.expect(lexer.Name, "member name")
			if !ok {
				return e
			}
			n := p.b.New(ir.FnCall, loc)
			n.Left = e
			n.Methfld = p.b.Names.Intern(nameTok.Text)
			if p.at(lexer.LParen) {
				p.advance()
				n.Rlist = p.parseArgList()
				p.expect(lexer.RParen, "`)` closing argument list")
			}
			e = n
		case lexer.LParen:
			loc := p.loc()
			p.advance()
			n := p.b.New(ir.FnCall, loc)
			n.Methfld = p.b.Names.Intern("()")
			n.Left = e
			n.Rlist = p.parseArgList()
			p.expect(lexer.RParen, "`)` closing argument list")
			e = n
		case lexer.LBracket:
			loc := p.loc()
			p.advance()
			n := p.b.New(ir.ArrIndex, loc)
			n.Left = e
			n.Right = p.parseExpr()
			p.expect(lexer.RBracket, "`]` closing index")
			e = n
		case lexer.PlusPlus, lexer.MinusMinus:
			loc := p.loc()
			op := "_++"
			if p.cur.Kind == lexer.MinusMinus {
				op = "_--"
			}
			p.advance()
			n := p.b.New(ir.FnCall, loc)
			n.Methfld = p.b.Names.Intern(op)
			n.Flag |= ir.FlagLvalOp
			n.Left = e
			e = n
		case lexer.LBrace:
			if p.noBraceLit || !looksLikeTypeHead(e) {
				return e
			}
			e = p.parseTypeLitBrace(e)
		case lexer.DColon:
			// Qualified reference `a::b::c` (spec.md §4.5): each segment
			// becomes a NameUse whose Left is the qualifier, resolved
			// iteratively by internal/sema/resolve.go.
			loc := p.loc()
			p.advance()
			nameTok, ok := p.expect(lexer.Name, "qualified name")
			if !ok {
				return e
			}
			n := p.b.NewNamed(ir.NameUse, loc, nameTok.Text)
			n.Left = e
			e = n
		default:
			return e
		}
	}
}

// looksLikeTypeHead reports whether e is shaped like a type reference a
// `{...}` literal could follow: a bare name (struct/trait/region name,
// resolved to a type or not by name resolution) or a generic instantiation
// (parsed as an ArrIndex of a name, spec.md §4.6.8 — disambiguated from a
// real index expression at type-check time once the base name's declaration
// kind is known).
func looksLikeTypeHead(e *ir.Node) bool {
	switch e.Tag {
	case ir.NameUse, ir.VarNameUse, ir.TypeNameUse:
		return true
	case ir.ArrIndex:
		return looksLikeTypeHead(e.Left)
	}
	return false
}

// parseTypeLitBrace parses the `{ field: value, ... }` or `{ value, ... }`
// suffix of a type literal (spec.md §3's TypeLit, reached here still tagged
// FnCall per §3's FnCall-overload invariant; internal/sema/typecheck.go
// retags it to TypeLit once the head resolves to a type declaration).
// Caller has already confirmed the next token is `{`.
func (p *Parser) parseTypeLitBrace(head *ir.Node) *ir.Node {
	loc := p.loc()
	p.advance() // {
	p.ts.PushBraceBlock()
	n := p.b.New(ir.FnCall, loc)
	n.Left = head
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		if p.at(lexer.Name) && p.ts.PeekNext().Kind == lexer.Colon {
			fnameTok := p.cur
			p.advance()
			p.advance() // :
			val := p.b.NewNamed(ir.NamedVal, loc, fnameTok.Text)
			val.Left = p.parseAssign()
			n.Rlist.Append(val)
		} else {
			n.Rlist.Append(p.parseAssign())
		}
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(lexer.RBrace, "`}` closing type literal")
	p.ts.PopBlock()
	return n
}

// parseArgList parses a comma-separated, possibly-empty call argument
// list; the caller has already consumed the opening `(`.
func (p *Parser) parseArgList() ir.Nodes {
	var args ir.Nodes
	for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
		args.Append(p.parseAssign())
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	return args
}

// parsePrimary parses literals, names, parenthesized expressions, array
// literals, and the range operator `..` used by `each` (spec.md §4.3
// "range-op").
func (p *Parser) parsePrimary() *ir.Node {
	loc := p.loc()
	switch p.cur.Kind {
	case lexer.IntDec, lexer.IntHex:
		v := p.cur.UIntVal
		p.advance()
		n := p.b.New(ir.UIntLit, loc)
		n.UIntVal = v
		return p.maybeRange(n)
	case lexer.Float:
		v := p.cur.FloatVal
		p.advance()
		n := p.b.New(ir.FloatLit, loc)
		n.FloatVal = v
		return n
	case lexer.String:
		v := p.cur.Text
		p.advance()
		n := p.b.New(ir.StringLit, loc)
		n.StringVal = v
		return n
	case lexer.KwTrue, lexer.KwFalse:
		v := p.cur.Kind == lexer.KwTrue
		p.advance()
		n := p.b.New(ir.UIntLit, loc)
		if v {
			n.UIntVal = 1
		}
		return n
	case lexer.KwNull:
		p.advance()
		return p.b.New(ir.NullLit, loc)
	case lexer.Name:
		text := p.cur.Text
		p.advance()
		n := p.b.NewNamed(ir.NameUse, loc, text)
		return p.maybeRange(n)
	case lexer.DColon:
		// Leading `::` anchors a qualified reference at the root program
		// module rather than the current module (spec.md §4.5).
		p.advance()
		nameTok, ok := p.expect(lexer.Name, "qualified name")
		if !ok {
			return p.b.New(ir.NilLit, loc)
		}
		n := p.b.NewNamed(ir.NameUse, loc, nameTok.Text)
		n.Flag |= ir.FlagPublic // reused: marks root-anchored (`::x`) qualifier; see DESIGN.md
		return p.parsePostfixFrom(n)
	case lexer.LParen:
		p.advance()
		e := p.parseTuple()
		p.expect(lexer.RParen, "`)` closing parenthesized expression")
		return e
	case lexer.LBracket:
		p.advance()
		n := p.b.New(ir.ArrayLit, loc)
		for !p.at(lexer.RBracket) && !p.at(lexer.EOF) {
			n.List.Append(p.parseAssign())
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		p.expect(lexer.RBracket, "`]` closing array literal")
		return n
	case lexer.LBrace:
		return p.parseBraceBlockExpr()
	default:
		p.errorf(diag.Syntactic, "unexpected token %q in expression", p.cur.Text)
		n := p.b.New(ir.NilLit, loc)
		p.advance()
		return n
	}
}

// maybeRange wraps a just-parsed primary in a `..` range FnCall if a range
// operator follows, the shape desugarEachStmt expects (`START .. END`).
func (p *Parser) maybeRange(start *ir.Node) *ir.Node {
	if !p.at(lexer.DotDot) {
		return start
	}
	loc := p.loc()
	p.advance()
	return p.binOp(loc, "..", start, p.parseAdditive())
}

// parseBraceBlockExpr parses a `{ ... }` block used as an expression (an
// if/match arm's body, or a bare nested block).
func (p *Parser) parseBraceBlockExpr() *ir.Node {
	loc := p.loc()
	p.advance() // {
	p.ts.PushBraceBlock()
	n := p.b.New(ir.Block, loc)
	n.Nbody = p.parseStmtList()
	p.expect(lexer.RBrace, "`}` closing block")
	p.ts.PopBlock()
	return n
}
