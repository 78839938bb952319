package sema

import (
	"strings"

	"cone-lang.dev/conec/internal/corelib"
	"cone-lang.dev/conec/internal/diag"
	"cone-lang.dev/conec/internal/ir"
)

// checkFnCall lowers one FnCall node per spec.md §4.6.3/§4.6.8: a call of a
// function value, a plain function call, an operator/method dispatch, or (a
// nil Methfld) a type-literal construction. Every branch ends by retagging n
// to one of the invariant's allowed post-lowering tags (spec.md §8 (3)):
// FnCall itself (direct/method call, or a residual intrinsic op — the
// invariant's one case where Methfld survives), FldAccess, or TypeLit.
func (c *Checker) checkFnCall(n *ir.Node, expected *ir.Node) *ir.Node {
	if n.Methfld == nil {
		return c.checkTypeLit(n, expected)
	}
	if n.Methfld.Text == "()" {
		return c.checkDirectCall(n)
	}
	return c.checkMethodCall(n, n.Methfld.Text)
}

// argTypesOf type-checks every argument bottom-up (no expected type yet —
// overload resolution needs the raw argument types before a parameter type
// is known) and returns their vtypes, with an optional implicit receiver
// prepended.
func (c *Checker) argTypesOf(args []*ir.Node, implicitSelf *ir.Node) []*ir.Node {
	types := make([]*ir.Node, 0, len(args)+1)
	if implicitSelf != nil {
		types = append(types, c.checkExpr(implicitSelf, nil))
	}
	for _, a := range args {
		v := a
		if v.Tag == ir.NamedVal {
			v = v.Left
		}
		types = append(types, c.checkExpr(v, nil))
	}
	return types
}

// scoreOverload scores one candidate signature against already-typed
// arguments (spec.md §4.6.3: "smallest sum of conversion-match scores"),
// filling missing trailing arguments from parameter defaults. Returns
// ok=false if arity or any individual coercion is impossible.
func (c *Checker) scoreOverload(fn *ir.Node, argTypes []*ir.Node) (int, bool) {
	if len(argTypes) > len(fn.Params) {
		return 0, false
	}
	score := 0
	for i, p := range fn.Params {
		if i >= len(argTypes) {
			if p.Value == nil {
				return 0, false
			}
			continue
		}
		res := c.coerce(nil, argTypes[i], p.Vtype)
		switch res.kind {
		case coerceEqMatch:
		case coerceConvert:
			score++
		case coerceConvSubtype:
			score += 2
		default:
			return 0, false
		}
	}
	return score, true
}

// bestOverload walks fn's nextnode chain for the best-fit signature
// (spec.md §4.6.3 (4)): a perfect match (score 0) returns immediately, else
// the lowest-scoring candidate wins.
func (c *Checker) bestOverload(chain *ir.Node, argTypes []*ir.Node) *ir.Node {
	var best *ir.Node
	bestScore := int(^uint(0) >> 1)
	for m := chain; m != nil; m = m.Nextnode {
		s, ok := c.scoreOverload(m, argTypes)
		if !ok {
			continue
		}
		if s == 0 {
			return m
		}
		if s < bestScore {
			bestScore, best = s, m
		}
	}
	return best
}

// finalizeArgs coerces each already-present argument to its matching
// parameter type and appends cloned default-value expressions for any
// trailing parameters the call omitted (spec.md §4.6.3 (6)).
func (c *Checker) finalizeArgs(n *ir.Node, fn *ir.Node) {
	args := n.Rlist.Slice()
	for i, p := range fn.Params {
		if i < len(args) {
			c.checkExpr(args[i], p.Vtype)
			continue
		}
		if p.Value != nil {
			dv := cloneTree(c.b, p.Value, nil, make(map[*ir.Node]*ir.Node))
			c.checkExpr(dv, p.Vtype)
			n.Rlist.Append(dv)
		}
	}
}

// checkMethodCall implements spec.md §4.6.3: object/field/method lookup for
// a `.name(args)` call (or an operator desugared to the same shape).
// Ref/Ptr/ArrayRef try their intrinsic operator set first (§4.6.3's second
// paragraph) before falling back to dereferencing toward a nominal,
// method-bearing type.
func (c *Checker) checkMethodCall(n *ir.Node, opText string) *ir.Node {
	objType := c.checkExpr(n.Left, nil)
	cur := underlyingType(objType)
	for cur != nil {
		switch cur.Tag {
		case ir.Ref, ir.Ptr, ir.ArrayRef, ir.VirtRef:
			if isRefIntrinOp(opText) {
				return c.checkRefIntrinOp(n, cur, opText)
			}
			cur = underlyingType(cur.Left)
			continue
		}
		break
	}
	if cur == nil {
		c.errs.Error(diag.Typing, n.Loc, "cannot resolve %q on an untyped expression", opText)
		return nil
	}
	if !cur.IsMethodType() || cur.Namespace == nil {
		c.errs.Error(diag.Typing, n.Loc, "type %q has no methods or fields", typeName(cur))
		return nil
	}
	if isPrivateMember(opText) && c.curType != cur {
		c.errs.Error(diag.Typing, n.Loc, "%q is private to %q", opText, typeName(cur))
		return nil
	}
	decl, ok := lookupNamespace(cur, n.Methfld)
	loweredOpAssign := false
	if !ok && n.Flag.Has(ir.FlagOpAssgn) && len(opText) > 1 && strings.HasSuffix(opText, "=") {
		// Compound-assign lowering (spec.md §4.6.4): no `+=` method, so fall
		// back to the underlying `+` and let the generator synthesize the
		// store; FlagLvalOp stays set so data-flow still verifies the left
		// operand is a mutable lval.
		base := c.b.Names.Intern(opText[:len(opText)-1])
		if d2, ok2 := lookupNamespace(cur, base); ok2 {
			decl, ok = d2, true
			n.Methfld = base
			n.Flag &^= ir.FlagOpAssgn
			loweredOpAssign = true
		}
	}
	if !ok {
		c.errs.Error(diag.Typing, n.Loc, "type %q has no member %q", typeName(cur), opText)
		return nil
	}
	switch decl.Tag {
	case ir.FieldDcl:
		if n.Rlist.Len() != 0 {
			c.errs.Error(diag.Typing, n.Loc, "field access %q takes no arguments", opText)
		}
		n.Tag = ir.FldAccess
		n.Dclnode = decl
		n.Methfld = nil
		return decl.Vtype
	case ir.FnDcl:
		argTypes := c.argTypesOf(n.Rlist.Slice(), n.Left)
		best := c.bestOverload(decl, argTypes)
		if best == nil {
			c.errs.Error(diag.Typing, n.Loc, "no overload of %q matches the given arguments", opText)
			return nil
		}
		if loweredOpAssign && underlyingType(best.Result) != cur {
			c.errs.Error(diag.Typing, n.Loc, "cannot lower %q: %q does not return its own operand type", opText, n.Methfld.Text)
			return nil
		}
		objfn := c.b.NewNamed(ir.VarNameUse, n.Loc, best.NameText())
		objfn.Dclnode = best
		objfn.Vtype = c.fnSigType(best)
		var newArgs ir.Nodes
		newArgs.Append(n.Left)
		newArgs.Append(n.Rlist.Slice()...)
		n.Rlist = newArgs
		n.Left = nil
		n.Objfn = objfn
		n.Methfld = nil
		c.finalizeArgs(n, best)
		return best.Result
	default:
		c.errs.Error(diag.Typing, n.Loc, "%q does not name a field or method", opText)
		return nil
	}
}

// isPrivateMember gates `_`-prefixed member access to the declaring type
// (spec.md §4.6.3 (2)). The postfix increment/decrement operators are
// interned as `_++`/`_--` (spec.md §4.1's special names) and are not
// private despite the prefix.
func isPrivateMember(name string) bool {
	return strings.HasPrefix(name, "_") && name != "_++" && name != "_--"
}

func isRefIntrinOp(op string) bool {
	_, ok := refIntrinOpSet[op]
	return ok
}

var refIntrinOpSet = map[string]struct{}{}

func init() {
	for _, o := range corelib.RefIntrinOps {
		refIntrinOpSet[o] = struct{}{}
	}
}

// checkRefIntrinOp resolves the fixed intrinsic operator set every
// Ref/Ptr/ArrayRef type carries structurally rather than through a
// Namespace (spec.md §4.4, and corelib.RefIntrinOps' doc comment: "the
// type-check pass looks these op names up by tag directly"). The node stays
// tagged FnCall with Methfld intact — the invariant's "residual FnCall"
// case, since there is no FnDcl to resolve Objfn to.
func (c *Checker) checkRefIntrinOp(n *ir.Node, reftype *ir.Node, op string) *ir.Node {
	usize := c.lib.Numerics["usize"]
	boolTy := c.lib.Numerics["bool"]
	switch op {
	case "count":
		return usize
	case "diff":
		if n.Rlist.Len() == 1 {
			c.checkExpr(n.Rlist.Slice()[0], reftype)
		}
		return usize // scaled by element size at codegen
	case "==", "!=":
		if n.Rlist.Len() == 1 {
			c.checkExpr(n.Rlist.Slice()[0], reftype)
		}
		return boolTy
	case "_++", "_--":
		return reftype
	case "+", "-", "+=", "-=":
		if n.Rlist.Len() != 1 {
			return reftype
		}
		argT := c.checkExpr(n.Rlist.Slice()[0], nil)
		if op == "-" && argT != nil && argT.Tag == reftype.Tag {
			return usize // pointer difference, scaled by element size at codegen
		}
		c.checkExpr(n.Rlist.Slice()[0], usize)
		return reftype
	}
	return nil
}

// checkDirectCall handles the `()`-operator FnCall shape every call
// expression parses to (spec.md §4.3's binOp-style uniform call shape): a
// direct function-name call, a single-type-argument generic instantiation
// call, or an indirect call through a function-typed value.
func (c *Checker) checkDirectCall(n *ir.Node) *ir.Node {
	callee := n.Left
	if callee.Tag == ir.ArrIndex {
		return c.checkGenericCall(n, callee)
	}
	if callee.Tag == ir.VarNameUse && callee.Dclnode != nil && callee.Dclnode.Tag == ir.FnDcl {
		argTypes := c.argTypesOf(n.Rlist.Slice(), nil)
		best := c.bestOverload(callee.Dclnode, argTypes)
		if best == nil {
			c.errs.Error(diag.Typing, n.Loc, "no overload of %q matches the given arguments", callee.NameText())
			return nil
		}
		objfn := c.b.NewNamed(ir.VarNameUse, n.Loc, best.NameText())
		objfn.Dclnode = best
		objfn.Vtype = c.fnSigType(best)
		n.Objfn = objfn
		n.Methfld = nil
		n.Left = nil
		c.finalizeArgs(n, best)
		return best.Result
	}
	ct := c.checkExpr(callee, nil)
	sig := ct
	if sig != nil && (sig.Tag == ir.Ref || sig.Tag == ir.Ptr) {
		sig = sig.Left
	}
	if sig == nil || sig.Tag != ir.FnSig {
		c.errs.Error(diag.Typing, n.Loc, "expression is not callable")
		return nil
	}
	args := n.Rlist.Slice()
	for i, p := range sig.Params {
		if i < len(args) {
			c.checkExpr(args[i], p.Vtype)
		}
	}
	n.Objfn = callee
	n.Methfld = nil
	n.Left = nil
	return sig.Result
}

// checkGenericCall instantiates a function generic named by a `name[Arg]`
// call head (spec.md §4.6.8 (1)/(2)): explicit type arguments when present
// (the parser only supports one generic argument slot in expression
// position, callee.Right), else inferred from the call's own argument types.
func (c *Checker) checkGenericCall(n *ir.Node, callee *ir.Node) *ir.Node {
	base := callee.Left
	if base == nil || base.Dclnode == nil || base.Dclnode.Tag != ir.Generic {
		c.errs.Error(diag.Typing, n.Loc, "not a generic function")
		return nil
	}
	gen := base.Dclnode
	argTypes := c.argTypesOf(n.Rlist.Slice(), nil)
	var typeArgs []*ir.Node
	if explicit := typeOfTypeExpr(callee.Right); explicit != nil {
		typeArgs = []*ir.Node{explicit}
	} else {
		typeArgs = inferGenericArgs(gen, argTypes)
	}
	inst := c.Instantiate(gen, typeArgs)
	if inst == nil || inst.Tag != ir.FnDcl {
		c.errs.Error(diag.Typing, n.Loc, "generic %q did not instantiate to a function", gen.NameText())
		return nil
	}
	objfn := c.b.NewNamed(ir.VarNameUse, n.Loc, inst.NameText())
	objfn.Dclnode = inst
	objfn.Vtype = c.fnSigType(inst)
	n.Objfn = objfn
	n.Methfld = nil
	n.Left = nil
	c.finalizeArgs(n, inst)
	return inst.Result
}

func typeOfTypeExpr(e *ir.Node) *ir.Node {
	if e == nil {
		return nil
	}
	if e.Tag == ir.TypeNameUse {
		return e.Dclnode
	}
	if e.IsTypeNode() {
		return e
	}
	return nil
}

// checkTypeLit lowers a brace type-literal FnCall (spec.md §3's TypeLit,
// §4.6.8 (3)'s named-field reordering and generic field-type inference) into
// a TypeLit node, instantiating a generic struct head first if needed.
func (c *Checker) checkTypeLit(n *ir.Node, expected *ir.Node) *ir.Node {
	head := n.Left
	var headDecl *ir.Node
	var explicitArgs []*ir.Node
	if head.Tag == ir.ArrIndex {
		if head.Left != nil {
			headDecl = head.Left.Dclnode
		}
		if t := typeOfTypeExpr(head.Right); t != nil {
			explicitArgs = []*ir.Node{t}
		}
	} else {
		headDecl = head.Dclnode
	}
	if headDecl == nil {
		c.errs.Error(diag.Typing, n.Loc, "type literal head does not name a type")
		return nil
	}

	args := n.Rlist.Slice()
	var target *ir.Node
	switch headDecl.Tag {
	case ir.Generic:
		rawTypes := make([]*ir.Node, len(args))
		for i, a := range args {
			v := a
			if v.Tag == ir.NamedVal {
				v = v.Left
			}
			rawTypes[i] = c.checkExpr(v, nil)
		}
		typeArgs := explicitArgs
		if typeArgs == nil {
			typeArgs = inferGenericFieldArgs(headDecl, rawTypes)
		}
		target = c.Instantiate(headDecl, typeArgs)
	case ir.Struct:
		target = headDecl
	default:
		c.errs.Error(diag.Typing, n.Loc, "%q is not a struct or generic type", typeName(headDecl))
		return nil
	}
	if target == nil {
		return nil
	}
	c.checkStruct(target)

	ordered := make([]*ir.Node, len(target.Fields))
	named := false
	for _, a := range args {
		if a.Tag == ir.NamedVal {
			named = true
			idx := fieldIndex(target, a.NameText())
			if idx < 0 {
				c.errs.Error(diag.Typing, a.Loc, "%q has no field named %q", typeName(target), a.NameText())
				continue
			}
			ordered[idx] = a.Left
		}
	}
	if !named {
		for i, a := range args {
			if i < len(ordered) {
				ordered[i] = a
			}
		}
	}
	for i, f := range target.Fields {
		if ordered[i] != nil {
			c.checkExpr(ordered[i], f.Vtype)
		}
	}
	n.Tag = ir.TypeLit
	n.Left = nil
	n.Rlist.Set(ordered)
	n.Vtype = target
	return target
}

func fieldIndex(s *ir.Node, name string) int {
	for i, f := range s.Fields {
		if f.NameText() == name {
			return i
		}
	}
	return -1
}
