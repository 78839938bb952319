package parser

import (
	"cone-lang.dev/conec/internal/diag"
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/lexer"
)

// parsePerm recognizes a permission name at the current token (spec.md
// §4.2: "permission names recognized at lex time by looking up the
// identifier against the initialized permission-type bindings") and
// returns it, or def if the current token is not a known permission name.
// Grounded on original_source/src/c-compiler/parser/parsetype.c's
// parsePerm.
func (p *Parser) parsePerm(def *ir.Node) *ir.Node {
	if name, ok := p.permTokenText(); ok {
		if perm, ok := p.lib.Perms[name]; ok {
			p.advance()
			return perm
		}
	}
	return def
}

// permTokenText returns the permission-name spelling of the current token
// and true if it could plausibly be one: the five permission keywords
// (`mut`, `imm`, `uni`, `ro`, `opaq` — reserved words per the lexer's
// keyword table) or a bare identifier (`mut1`, or a user-declared region's
// permission alias, which the lexer has no reason to reserve).
func (p *Parser) permTokenText() (string, bool) {
	switch p.cur.Kind {
	case lexer.KwMut:
		return "mut", true
	case lexer.KwImm:
		return "imm", true
	case lexer.KwUni:
		return "uni", true
	case lexer.KwRo:
		return "ro", true
	case lexer.KwOpaq:
		return "opaq", true
	case lexer.Name:
		return p.cur.Text, true
	}
	return "", false
}

// parseAllocPerm recognizes an optional region name followed by a
// permission, used at the head of a reference type (parseAllocPerm in the
// teacher source): `&rc mut T`, `&so T`, `&T` (no region: borrow). With no
// perm, a borrow defaults to `imm` and a region-qualified reference to `uni`.
func (p *Parser) parseAllocPerm() (region, perm *ir.Node) {
	if p.at(lexer.Name) {
		if r, ok := p.lib.Regions[p.cur.Text]; ok {
			p.advance()
			return r, p.parsePerm(p.lib.Perms["uni"])
		}
	}
	return nil, p.parsePerm(p.lib.Perms["imm"])
}

// parseVtype parses a value-type signature, or returns nil if the current
// token cannot start one (a legal outcome: many declarations have an
// inferred or void type). Grounded on parseVtype/parseRefType/parsePtrType/
// parseArrayType in parsetype.c.
func (p *Parser) parseVtype() *ir.Node {
	switch p.cur.Kind {
	case lexer.Amp:
		return p.parseRefType()
	case lexer.Star:
		return p.parsePtrType()
	case lexer.LBracket:
		p.advance()
		return p.parseArrayType()
	case lexer.Name:
		return p.parseTypeName()
	default:
		return nil
	}
}

// parseTypeName parses a (possibly generic-instantiated) named type use:
// `Foo` or `Option[i32]`.
func (p *Parser) parseTypeName() *ir.Node {
	loc := p.loc()
	nameTok := p.cur
	p.advance()
	n := p.b.NewNamed(ir.TypeNameUse, loc, nameTok.Text)
	for p.at(lexer.DColon) {
		// Qualified type reference `mod::Type` (spec.md §4.5).
		p.advance()
		segTok, ok := p.expect(lexer.Name, "qualified type name")
		if !ok {
			return n
		}
		q := p.b.NewNamed(ir.TypeNameUse, loc, segTok.Text)
		q.Left = n
		n = q
	}
	if p.at(lexer.LBracket) {
		p.advance()
		for !p.at(lexer.RBracket) && !p.at(lexer.EOF) {
			arg := p.parseVtype()
			if arg != nil {
				n.List.Append(arg)
			}
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		p.expect(lexer.RBracket, "`]` closing generic arguments")
	}
	return n
}

func (p *Parser) parseRefType() *ir.Node {
	loc := p.loc()
	p.advance() // &
	nullable := false
	if p.at(lexer.Qstn) {
		nullable = true
		p.advance()
	}
	region, perm := p.parseAllocPerm()

	switch {
	case p.at(lexer.KwFn):
		p.advance()
		sig := p.parseFnSig(nil)
		n := p.b.Ref(loc, region, perm, sig)
		if nullable {
			n.Flag |= ir.FlagNullable
		}
		return n
	case p.at(lexer.LBracket):
		p.advance()
		if p.at(lexer.RBracket) {
			p.advance()
			elem := p.parseVtype()
			n := p.b.ArrayRef(loc, region, perm, elem)
			if nullable {
				n.Flag |= ir.FlagNullable
			}
			return n
		}
		arr := p.parseArrayType()
		n := p.b.Ref(loc, region, perm, arr)
		if nullable {
			n.Flag |= ir.FlagNullable
		}
		return n
	default:
		val := p.parseVtype()
		if val == nil {
			// A bare `&` inside a type body is a reference to the owning
			// type (`fn m(self &) ...`); anywhere else the value type is
			// genuinely missing.
			if p.curOwner != nil {
				val = p.b.NewNamed(ir.TypeNameUse, loc, p.curOwner.NameText())
			} else {
				p.errorf(diag.Syntactic, "missing value type for the reference")
			}
		}
		n := p.b.Ref(loc, region, perm, val)
		if nullable {
			n.Flag |= ir.FlagNullable
		}
		return n
	}
}

func (p *Parser) parsePtrType() *ir.Node {
	loc := p.loc()
	p.advance() // *
	if p.at(lexer.KwFn) {
		p.advance()
		sig := p.parseFnSig(nil)
		return p.b.Ptr(loc, sig)
	}
	val := p.parseVtype()
	if val == nil {
		p.errorf(diag.Syntactic, "missing value type for the pointer")
	}
	return p.b.Ptr(loc, val)
}

// parseArrayType parses `SIZE] ELEMTYPE` — the caller has already consumed
// the opening `[`.
func (p *Parser) parseArrayType() *ir.Node {
	loc := p.loc()
	count := int64(-1)
	if p.at(lexer.IntDec) || p.at(lexer.IntHex) {
		count = int64(p.cur.UIntVal)
		p.advance()
	} else if p.at(lexer.DotDot) {
		p.advance() // `[...]`: size inferred from initializer
		if p.at(lexer.Dot) {
			p.advance() // the lexer splits `...` into `..` and `.`
		}
	} else {
		p.errorf(diag.Syntactic, "expected integer literal for array size")
	}
	p.expect(lexer.RBracket, "`]` closing array size")
	elem := p.parseVtype()
	if elem == nil {
		p.errorf(diag.Syntactic, "missing array element type")
	}
	return p.b.Array(loc, count, elem)
}

// parseFnSig parses a function type signature: `(parms) rettype`. If
// owner is non-nil, a missing first parameter or omitted parameter type is
// inferred as `self owner` (teacher's parseFnSig inferring `self` on a
// type's method, parsetype.c).
func (p *Parser) parseFnSig(owner *ir.Node) *ir.Node {
	loc := p.loc()
	var params []*ir.Node
	if _, ok := p.expect(lexer.LParen, "`(`"); ok {
		if owner != nil && p.at(lexer.RParen) {
			params = append(params, p.selfParam(owner, loc))
		}
		for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
			parm := p.parseParam()
			if owner != nil && len(params) == 0 && parm.NameText() != "self" {
				params = append(params, p.selfParam(owner, loc))
			}
			if owner != nil && parm.Vtype == nil {
				parm.Vtype = p.b.NewNamed(ir.TypeNameUse, loc, owner.NameText())
			}
			params = append(params, parm)
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		p.expect(lexer.RParen, "`)` closing parameter list")
	}
	result := p.parseVtype()
	if result != nil && p.at(lexer.Comma) {
		tuple := []*ir.Node{result}
		for p.at(lexer.Comma) {
			p.advance()
			tuple = append(tuple, p.parseVtype())
		}
		result = p.b.TTuple(loc, tuple...)
	}
	if result == nil {
		result = p.voidType(loc)
	}
	return p.b.FnSigType(loc, params, result)
}

func (p *Parser) voidType(loc ir.Loc) *ir.Node {
	n := p.b.New(ir.Void, loc)
	return n
}

// selfParam builds the implicit `self owner` parameter injected at index 0
// of a method's signature when the source omits it (parseInjectSelf in the
// teacher source).
func (p *Parser) selfParam(owner *ir.Node, loc ir.Loc) *ir.Node {
	self := p.b.NewNamed(ir.VarDcl, loc, "self")
	self.Vtype = p.b.NewNamed(ir.TypeNameUse, loc, owner.NameText())
	self.Perm = p.lib.Perms["imm"]
	return self
}

// parseParam parses one function/method parameter: `perm? name vtype? (=
// default)?`. Vtype may come back nil (inferred from the owning type by
// parseFnSig, for a method's bare `self` parameter).
func (p *Parser) parseParam() *ir.Node {
	loc := p.loc()
	perm := p.parsePerm(p.lib.Perms["imm"])
	nameTok, ok := p.expect(lexer.Name, "parameter name")
	if !ok {
		return p.b.NewNamed(ir.VarDcl, loc, "_")
	}
	parm := p.b.NewNamed(ir.VarDcl, loc, nameTok.Text)
	parm.Perm = perm
	parm.Vtype = p.parseVtype()
	if p.at(lexer.Assign) {
		p.advance()
		parm.Value = p.parseExpr()
	}
	return parm
}
