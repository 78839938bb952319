package parser

import (
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/lexer"
	"cone-lang.dev/conec/internal/names"
)

// parseFnDcl parses `fn name(params) rettype block` or, inside a struct
// body, a method of the same shape with an implicit `self` (parseFnSig's
// owner parameter handles that). A bodyless signature (`fn name(params)
// rettype;`) is an extern/trait-required-method declaration.
func (p *Parser) parseFnDcl(owner *ir.Node) *ir.Node {
	loc := p.loc()
	p.advance() // fn
	nameTok, ok := p.expect(lexer.Name, "function name")
	if !ok {
		return nil
	}
	n := p.b.NewNamed(ir.FnDcl, loc, nameTok.Text)
	n.Owner = owner
	sig := p.parseFnSig(owner)
	n.Params, n.Result = sig.Params, sig.Result
	switch {
	case p.at(lexer.LBrace):
		p.advance()
		p.ts.PushBraceBlock()
		n.Nbody = p.parseStmtList()
		p.expect(lexer.RBrace, "`}` closing function body")
		p.ts.PopBlock()
	case p.at(lexer.Colon):
		n.Nbody = p.parseIndentOrInlineBlock()
	case p.at(lexer.Semi):
		p.advance() // required-method / extern declaration, no body
	default:
		// Bodyless signature ended by a newline or the enclosing `}`: a
		// trait's required method or an extern declaration.
	}
	return n
}

// parseStruct parses `struct Name [with T] { fields/methods }`, where the
// optional `with T` names the basetrait, or the
// `trait` keyword variant (flagged TraitType), per spec.md §4.6.9.
func (p *Parser) parseStruct(mod *ir.Node) *ir.Node {
	loc := p.loc()
	isTrait := p.at(lexer.KwTrait)
	p.advance() // struct | trait
	nameTok, ok := p.expect(lexer.Name, "type name")
	if !ok {
		return nil
	}
	n := p.b.NewNamed(ir.Struct, loc, nameTok.Text)
	n.Namespace = names.NewNamespace()
	if isTrait {
		n.Flag |= ir.FlagTraitType
	}
	if p.at(lexer.KwWith) { // basetrait T, reusing `with` to introduce mixin per this grammar
		p.advance()
		n.Basetrait = p.parseTypeName()
	}
	saveOwner := p.curOwner
	p.curOwner = n
	defer func() { p.curOwner = saveOwner }()
	if _, ok := p.expect(lexer.LBrace, "`{` opening type body"); !ok {
		return n
	}
	p.ts.PushBraceBlock()
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		switch {
		case p.at(lexer.KwFn):
			m := p.parseFnDcl(n)
			if m != nil {
				if prev, ok := n.Namespace.Lookup(m.Name); ok {
					m.Nextnode, _ = prev.(*ir.Node)
				}
				n.Namespace.Define(m.Name, m)
			}
		case p.at(lexer.Semi):
			p.advance()
		default:
			fld := p.parseFieldDcl(n)
			if fld != nil {
				n.Fields = append(n.Fields, fld)
				n.Namespace.Define(fld.Name, fld)
			}
		}
	}
	p.expect(lexer.RBrace, "`}` closing type body")
	p.ts.PopBlock()
	return n
}

// parseFieldDcl parses `perm? name vtype (= default)?` inside a struct
// body (spec.md §4.6.9 field list).
func (p *Parser) parseFieldDcl(owner *ir.Node) *ir.Node {
	loc := p.loc()
	perm := p.parsePerm(nil)
	nameTok, ok := p.expect(lexer.Name, "field name")
	if !ok {
		return nil
	}
	fld := p.b.NewNamed(ir.FieldDcl, loc, nameTok.Text)
	fld.Owner = owner
	fld.Perm = perm
	fld.Vtype = p.parseVtype()
	if p.at(lexer.Assign) {
		p.advance()
		fld.Value = p.parseExpr()
	}
	p.consumeFieldEnd()
	return fld
}

func (p *Parser) consumeFieldEnd() {
	if p.at(lexer.Semi) {
		p.advance()
	}
}

// parseEnum parses a closed-variant declaration: `enum Name { Variant1
// { fields }, Variant2, ... }` — the base trait plus one derived struct per
// variant, mirroring corelib's hand-built Option/Result (spec.md §4.4,
// §4.6.10).
func (p *Parser) parseEnum(mod *ir.Node) *ir.Node {
	loc := p.loc()
	p.advance() // enum
	nameTok, ok := p.expect(lexer.Name, "enum name")
	if !ok {
		return nil
	}
	base := p.b.NewNamed(ir.Struct, loc, nameTok.Text)
	base.Namespace = names.NewNamespace()
	base.Flag |= ir.FlagTraitType | ir.FlagSameSize
	if _, ok := p.expect(lexer.LBrace, "`{` opening enum body"); !ok {
		return base
	}
	p.ts.PushBraceBlock()
	tag := 0
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		vTok, ok := p.expect(lexer.Name, "variant name")
		if !ok {
			p.advance()
			continue
		}
		variant := p.b.NewNamed(ir.Struct, p.loc(), vTok.Text)
		variant.Namespace = names.NewNamespace()
		variant.Basetrait = base
		variant.VariantTag = tag
		tag++
		if p.at(lexer.LBrace) {
			p.advance()
			p.ts.PushBraceBlock()
			for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
				fld := p.parseFieldDcl(variant)
				if fld != nil {
					variant.Fields = append(variant.Fields, fld)
					variant.Namespace.Define(fld.Name, fld)
				}
			}
			p.expect(lexer.RBrace, "`}` closing variant fields")
			p.ts.PopBlock()
		}
		base.Derived = append(base.Derived, variant)
		base.Namespace.Define(variant.Name, variant)
		if p.at(lexer.Comma) {
			p.advance()
		}
	}
	p.expect(lexer.RBrace, "`}` closing enum body")
	p.ts.PopBlock()
	return base
}

// parseTypedef parses `typedef Name = vtype`, a pure alias built as an
// ir.Typedef statement node whose Left is the aliased type.
func (p *Parser) parseTypedef(mod *ir.Node) *ir.Node {
	loc := p.loc()
	p.advance() // typedef
	nameTok, ok := p.expect(lexer.Name, "typedef name")
	if !ok {
		return nil
	}
	n := p.b.NewNamed(ir.Typedef, loc, nameTok.Text)
	if _, ok := p.expect(lexer.Assign, "`=`"); ok {
		n.Left = p.parseVtype()
	}
	p.consumeFieldEnd()
	return n
}

// parseRegion parses a user-declared region: `region Name { fn _alloc(...)
// ... }`, the same shape corelib.addRegions builds for `so`/`rc` (spec.md
// §4.4).
func (p *Parser) parseRegion(mod *ir.Node) *ir.Node {
	loc := p.loc()
	p.advance() // region
	nameTok, ok := p.expect(lexer.Name, "region name")
	if !ok {
		return nil
	}
	n := p.b.NewNamed(ir.Region, loc, nameTok.Text)
	n.Namespace = names.NewNamespace()
	saveOwner := p.curOwner
	p.curOwner = n
	defer func() { p.curOwner = saveOwner }()
	if _, ok := p.expect(lexer.LBrace, "`{` opening region body"); !ok {
		return n
	}
	p.ts.PushBraceBlock()
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		if p.at(lexer.KwFn) {
			m := p.parseFnDcl(n)
			if m != nil {
				n.Namespace.Define(m.Name, m)
			}
			continue
		}
		p.advance()
	}
	p.expect(lexer.RBrace, "`}` closing region body")
	p.ts.PopBlock()
	return n
}

// parseConstDcl parses `const name vtype? = value`.
func (p *Parser) parseConstDcl(mod *ir.Node) *ir.Node {
	loc := p.loc()
	p.advance() // const
	nameTok, ok := p.expect(lexer.Name, "constant name")
	if !ok {
		return nil
	}
	n := p.b.NewNamed(ir.ConstDcl, loc, nameTok.Text)
	n.Vtype = p.parseVtype()
	if _, ok := p.expect(lexer.Assign, "`=`"); ok {
		n.Value = p.parseExpr()
	}
	p.consumeFieldEnd()
	return n
}

// parseMacro parses `macro name(params) block`; macros take untyped
// parameter names (no generic type inference at parse time, spec.md
// §4.6.8: "the same substitution mechanism but do not take type
// parameters").
func (p *Parser) parseMacro(mod *ir.Node) *ir.Node {
	loc := p.loc()
	p.advance() // macro
	nameTok, ok := p.expect(lexer.Name, "macro name")
	if !ok {
		return nil
	}
	n := p.b.NewNamed(ir.Macro, loc, nameTok.Text)
	if _, ok := p.expect(lexer.LParen, "`(`"); ok {
		for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
			pTok, ok := p.expect(lexer.Name, "macro parameter name")
			if !ok {
				break
			}
			n.GenParams = append(n.GenParams, p.b.NewNamed(ir.GenVarDcl, p.loc(), pTok.Text))
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		p.expect(lexer.RParen, "`)` closing macro parameter list")
	}
	switch {
	case p.at(lexer.LBrace):
		p.advance()
		p.ts.PushBraceBlock()
		body := p.b.New(ir.Block, loc)
		body.Nbody = p.parseStmtList()
		p.expect(lexer.RBrace, "`}` closing macro body")
		p.ts.PopBlock()
		n.Body = body
	case p.at(lexer.Colon):
		body := p.b.New(ir.Block, loc)
		body.Nbody = p.parseIndentOrInlineBlock()
		n.Body = body
	}
	return n
}
