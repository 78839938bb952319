package sema

import (
	"github.com/golang/glog"

	"cone-lang.dev/conec/internal/corelib"
	"cone-lang.dev/conec/internal/diag"
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
)

// Checker runs the bidirectional type-check & lowering pass (spec.md §4.6)
// over already name-resolved IR. One Checker is shared by every module in a
// compilation, the same single-pass/shared-state model name resolution uses
// (spec.md §5).
type Checker struct {
	b       *ir.Builder
	lib     *corelib.Lib
	errs    *diag.Bag
	curFn   *ir.Node
	curType *ir.Node
}

// TypeCheck runs type-check & lowering over mods. The driver (cmd/conec)
// only calls this when name resolution produced no errors (spec.md §7).
func TypeCheck(b *ir.Builder, lib *corelib.Lib, errs *diag.Bag, mods []*ir.Node) {
	c := &Checker{b: b, lib: lib, errs: errs}
	for _, m := range mods {
		glog.V(2).Infof("type_check: module %q, %d decl(s)", m.NameText(), len(m.Decls))
		for _, d := range m.Decls {
			c.checkDecl(d)
		}
	}
}

func (c *Checker) checkDecl(d *ir.Node) {
	switch d.Tag {
	case ir.FnDcl:
		c.checkFn(d)
	case ir.VarDcl, ir.ConstDcl:
		c.checkVarDcl(d)
	case ir.Struct:
		c.checkStruct(d)
	case ir.Region:
		c.checkMethodSet(d)
	case ir.Typedef:
		// Left already resolved by name resolution; nothing further to
		// check without a code generator consuming it.
	case ir.Generic, ir.Macro:
		// Checked per instantiation/use (internal/sema/generics.go).
	}
}

func (c *Checker) checkVarDcl(n *ir.Node) {
	if n.Value == nil {
		return
	}
	vt := c.checkExpr(n.Value, n.Vtype)
	if n.Vtype == nil {
		n.Vtype = vt
	}
}

// checkStruct expands any declared basetrait mixin (spec.md §4.6.9) before
// type-checking fields/methods, guarded by FlagTypeChecked/FlagTypeChecking
// so a type reachable from more than one path (a field's own type, a
// method's parameter type, ...) is only ever expanded and checked once
// (spec.md §4.6: "being-checked plus checked flag prevent infinite
// recursion and re-work").
func (c *Checker) checkStruct(s *ir.Node) {
	if s.Flag.Has(ir.FlagTypeChecking) || s.Flag.Has(ir.FlagTypeChecked) {
		return
	}
	s.Flag |= ir.FlagTypeChecking
	c.expandMixin(s)
	prevType := c.curType
	c.curType = s
	for _, f := range s.Fields {
		if f.Value != nil {
			c.checkExpr(f.Value, f.Vtype)
		}
	}
	c.checkMethodSet(s)
	c.curType = prevType
	c.recomputeInfectionFlags(s)
	s.Flag &^= ir.FlagTypeChecking
	s.Flag |= ir.FlagTypeChecked
	for _, v := range s.Derived {
		c.checkStruct(v)
	}
}

// recomputeInfectionFlags implements spec.md §4.6.9's post-expansion step:
// MoveType/ThreadBound propagate from any field that carries them, and a
// struct left with no fields after expansion is OpaqueType.
func (c *Checker) recomputeInfectionFlags(s *ir.Node) {
	if len(s.Fields) == 0 {
		s.Flag |= ir.FlagOpaqueType
		return
	}
	for _, f := range s.Fields {
		if f.Vtype == nil {
			continue
		}
		if f.Vtype.Flag.Has(ir.FlagMoveType) {
			s.Flag |= ir.FlagMoveType
		}
		if f.Vtype.Flag.Has(ir.FlagThreadBound) {
			s.Flag |= ir.FlagThreadBound
		}
	}
}

// expandMixin implements spec.md §4.6.9: a struct's basetrait contributes a
// deep clone of every base field (duplicate names are an error) and a deep
// clone of every base method the struct doesn't already override; a
// required (bodyless) base method left unimplemented is an error.
func (c *Checker) expandMixin(s *ir.Node) {
	base := underlyingType(s.Basetrait)
	if base == nil {
		return
	}
	if base.Tag != ir.Struct || !base.Flag.Has(ir.FlagTraitType) {
		c.errs.Error(diag.Typing, s.Loc, "struct %q: basetrait %q is not a trait", s.NameText(), typeName(base))
		return
	}
	c.checkStruct(base)
	if !derivedContains(base, s) {
		base.Derived = append(base.Derived, s)
		if base.Flag.Has(ir.FlagSameSize) || base.Flag.Has(ir.FlagHasTagField) {
			s.VariantTag = len(base.Derived) - 1
		}
	}

	existing := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		existing[f.NameText()] = true
	}
	seen := make(map[*ir.Node]*ir.Node)
	mixedFields := make([]*ir.Node, 0, len(base.Fields))
	for _, bf := range base.Fields {
		if existing[bf.NameText()] {
			c.errs.Error(diag.Typing, s.Loc, "struct %q: field %q duplicates a basetrait field", s.NameText(), bf.NameText())
			continue
		}
		cf := cloneTree(c.b, bf, nil, seen)
		cf.Owner = s
		mixedFields = append(mixedFields, cf)
		if s.Namespace != nil {
			s.Namespace.Define(cf.Name, cf)
		}
	}
	s.Fields = append(mixedFields, s.Fields...)

	if base.Namespace == nil {
		return
	}
	base.Namespace.Each(func(nm *names.Name, decl names.Decl) {
		fn, ok := decl.(*ir.Node)
		if !ok || fn.Tag != ir.FnDcl {
			return
		}
		if _, overridden := s.Namespace.Lookup(nm); overridden {
			return
		}
		if fn.Body == nil {
			c.errs.Error(diag.Typing, s.Loc, "struct %q: missing implementation of required method %q from basetrait %q", s.NameText(), nm.Text, base.NameText())
			return
		}
		cm := cloneTree(c.b, fn, nil, seen)
		cm.Owner = s
		s.Namespace.Define(nm, cm)
	})
}

func (c *Checker) checkMethodSet(owner *ir.Node) {
	if owner == nil || owner.Namespace == nil {
		return
	}
	prevType := c.curType
	c.curType = owner
	owner.Namespace.Each(func(_ *names.Name, decl names.Decl) {
		fn, ok := decl.(*ir.Node)
		if !ok || fn.Tag != ir.FnDcl {
			return
		}
		for m := fn; m != nil; m = m.Nextnode {
			c.checkFn(m)
		}
	})
	c.curType = prevType
}

// checkFn type-checks a function's body against its declared result type
// (spec.md §4.6, §4.6.1's top-down propagation applied to `return`).
func (c *Checker) checkFn(fn *ir.Node) {
	if fn.Flag.Has(ir.FlagTypeChecked) || fn.Body != nil && fn.Flag.Has(ir.FlagTypeChecking) {
		return
	}
	fn.Flag |= ir.FlagTypeChecking
	prevFn := c.curFn
	c.curFn = fn
	for _, p := range fn.Params {
		if p.Value != nil {
			c.checkExpr(p.Value, p.Vtype)
		}
	}
	for _, s := range fn.Nbody.Slice() {
		c.checkStmt(s, fn.Result)
	}
	c.curFn = prevFn
	fn.Flag &^= ir.FlagTypeChecking
	fn.Flag |= ir.FlagTypeChecked
}

func (c *Checker) checkStmt(n *ir.Node, fnResult *ir.Node) {
	if n == nil {
		return
	}
	switch n.Tag {
	case ir.Return:
		if n.Left != nil {
			c.checkExpr(n.Left, fnResult)
		}
	case ir.Break, ir.Continue:
	case ir.VarDcl, ir.ConstDcl:
		c.checkVarDcl(n)
	case ir.Swap:
		lt := c.checkExpr(n.Left, nil)
		if n.Right != nil {
			c.checkExpr(n.Right, lt)
		}
	case ir.FnDcl:
		c.checkFn(n)
	case ir.Typedef:
	case ir.Block:
		c.checkBlock(n, fnResult)
	case ir.LoopBlock:
		if n.Left != nil {
			c.checkExpr(n.Left, c.lib.Numerics["bool"])
		}
		for _, s := range n.Nbody.Slice() {
			c.checkStmt(s, fnResult)
		}
	case ir.If:
		c.checkIf(n, fnResult)
	default:
		c.checkExpr(n, nil)
	}
}

func (c *Checker) checkBlock(n *ir.Node, fnResult *ir.Node) {
	for _, s := range n.Ninit.Slice() {
		c.checkStmt(s, fnResult)
	}
	for _, s := range n.Nbody.Slice() {
		c.checkStmt(s, fnResult)
	}
}

// checkIf type-checks one `if`/`elif`/`else` link, then — per spec.md
// §4.6.10 — decides whether this chain is a closed-variant exhaustiveness
// match: every condition in the chain is `is Variant` against the same
// scrutinee and the variant set equals the base trait's derived list.
func (c *Checker) checkIf(n *ir.Node, fnResult *ir.Node) {
	for _, cond := range n.List.Slice() {
		c.checkExpr(cond, c.lib.Numerics["bool"])
	}
	for _, v := range n.Rlist.Slice() {
		c.checkExpr(v, nil) // suffix-if: `EXPR if COND` keeps EXPR here
	}
	for _, s := range n.Nbody.Slice() {
		c.checkStmt(s, fnResult)
	}
	if n.Right != nil {
		if n.Right.Tag == ir.If {
			c.checkIf(n.Right, fnResult)
		} else {
			c.checkStmt(n.Right, fnResult)
		}
	}
	c.checkExhaustive(n)
}

// checkExhaustive decides whether an if-chain is a complete closed-variant
// match (spec.md §4.6.10): every arm's condition is `is Variant` against the
// same scrutinee, all variants share one base trait, and together they cover
// the base's derived list. A complete chain is marked FlagExhaustive and its
// last arm is rewritten into the else-sentinel, so the generator need not
// test the final condition. Chains the parser already closed with an
// explicit `else` keep their parser-set flag untouched.
func (c *Checker) checkExhaustive(chainHead *ir.Node) {
	var arms []*ir.Node
	for arm := chainHead; arm != nil && arm.Tag == ir.If; {
		arms = append(arms, arm)
		if arm.Right == nil || arm.Right.Tag != ir.If {
			break
		}
		arm = arm.Right
	}
	var scrutinee, base *ir.Node
	variants := make(map[*ir.Node]bool)
	for _, arm := range arms {
		cond := firstIsCond(arm)
		if cond == nil {
			return
		}
		if scrutinee == nil {
			scrutinee = scrutineeIdentity(cond.Left)
		} else if scrutineeIdentity(cond.Left) != scrutinee {
			return
		}
		variantTy := underlyingType(cond.Right)
		if variantTy == nil {
			return
		}
		variantBase := underlyingType(variantTy.Basetrait)
		if variantBase == nil {
			return
		}
		if base == nil {
			base = variantBase
		} else if variantBase != base {
			return
		}
		variants[variantTy] = true
	}
	if base == nil || len(variants) != len(base.Derived) {
		return
	}
	for _, d := range base.Derived {
		if !variants[d] {
			return
		}
	}
	chainHead.Flag |= ir.FlagExhaustive
	last := arms[len(arms)-1]
	if last.Right != nil || len(arms) < 2 {
		return // an explicit else already serves as the sentinel
	}
	prev := arms[len(arms)-2]
	elseBlk := c.b.New(ir.Block, last.Loc)
	elseBlk.Nbody = last.Nbody
	prev.Right = elseBlk
	prev.Flag |= ir.FlagExhaustive
}

func firstIsCond(arm *ir.Node) *ir.Node {
	if arm.List.Len() == 0 {
		return nil
	}
	cond := arm.List.Slice()[0]
	if cond.Tag != ir.Is {
		return nil
	}
	return cond
}

// scrutineeIdentity resolves what a condition's scrutinee refers to, so two
// `is` tests against the same bound name compare equal even if each `is`
// node carries its own copy of the scrutinee subtree (spec.md §4.3's
// `parseCondGuard` doc: "harmless ... data-flow walks each occurrence
// independently" — exhaustiveness only needs identity, not evaluation).
func scrutineeIdentity(e *ir.Node) *ir.Node {
	if e == nil {
		return nil
	}
	if e.Tag == ir.VarNameUse || e.Tag == ir.NameUse {
		return e.Dclnode
	}
	return e
}

func underlyingType(t *ir.Node) *ir.Node {
	if t == nil {
		return nil
	}
	if t.Tag == ir.TypeNameUse {
		return t.Dclnode
	}
	return t
}

func derivedContains(base, s *ir.Node) bool {
	for _, d := range base.Derived {
		if d == s {
			return true
		}
	}
	return false
}

// checkExpr computes n's vtype bottom-up, then — if expected is non-nil —
// attempts top-down coercion against it (spec.md §4.6.1). Returns the
// expression's final vtype (post-coercion, if any).
func (c *Checker) checkExpr(n *ir.Node, expected *ir.Node) *ir.Node {
	if n == nil {
		return nil
	}
	if n.Flag.Has(ir.FlagTypeChecked) {
		// Already typed bottom-up (argument lists are typed once for
		// overload scoring, then revisited with the winning parameter
		// type); only the top-down coercion step still applies.
		if expected != nil && n.Vtype != nil {
			c.coerceTo(n, n.Vtype, expected)
		}
		return n.Vtype
	}
	var vt *ir.Node
	switch n.Tag {
	case ir.UIntLit:
		vt = c.lib.Numerics["i32"]
	case ir.FloatLit:
		vt = c.lib.Numerics["f64"]
	case ir.StringLit:
		vt = c.b.ArrayRef(n.Loc, nil, c.lib.Perms["ro"], c.lib.Numerics["u8"])
	case ir.NilLit, ir.NullLit:
		// Typed in place against a nullable ref/ptr target (spec.md
		// §4.6.1's null row); otherwise left untyped.
		if exp := underlyingType(expected); exp != nil &&
			(exp.Tag == ir.Ref || exp.Tag == ir.Ptr) && exp.Flag.Has(ir.FlagNullable) {
			vt = exp
		}
	case ir.ArrayLit:
		vt = c.checkArrayLit(n)
	case ir.VTuple:
		elems := make([]*ir.Node, 0, n.List.Len())
		for _, e := range n.List.Slice() {
			elems = append(elems, c.checkExpr(e, nil))
		}
		vt = c.b.TTuple(n.Loc, elems...)
	case ir.NameUse, ir.VarNameUse, ir.TypeNameUse:
		vt = c.checkNameUse(n)
	case ir.FnCall:
		vt = c.checkFnCall(n, expected)
	case ir.ArrIndex:
		vt = c.checkIndex(n)
	case ir.FldAccess:
		if n.Dclnode != nil {
			vt = n.Dclnode.Vtype
		}
	case ir.Assign:
		vt = c.checkAssign(n)
	case ir.Cast:
		c.checkExpr(n.Left, nil)
		c.typeOperand(n.Vtype)
		vt = n.Vtype
	case ir.Is:
		// The tested type rides on Right; Vtype is the expression's own
		// type, Bool, once checked.
		c.checkExpr(n.Left, nil)
		c.typeOperand(n.Right)
		vt = c.lib.Numerics["bool"]
	case ir.Deref:
		lt := c.checkExpr(n.Left, nil)
		vt = pointeeOf(lt)
	case ir.Borrow:
		// A borrow is always a borrow-region reference to its operand's
		// type; its actual scope/lifetime is a data-flow concern
		// (internal/sema/dataflow.go).
		lt := c.checkExpr(n.Left, nil)
		if lt != nil {
			perm := n.Perm
			if perm == nil {
				perm = c.lib.Perms["imm"]
			}
			vt = c.b.Ref(n.Loc, nil, perm, lt)
		}
	case ir.ArrayBorrow:
		lt := c.checkExpr(n.Left, nil)
		if lt != nil {
			perm := n.Perm
			if perm == nil {
				perm = c.lib.Perms["imm"]
			}
			vt = c.b.ArrayRef(n.Loc, nil, perm, lt)
		}
	case ir.Allocate:
		lt := c.checkExpr(n.Left, nil)
		if lt != nil {
			vt = c.b.Ref(n.Loc, n.Region, n.Perm, lt)
		}
	case ir.ArrayAlloc:
		lt := c.checkExpr(n.Left, nil)
		if lt != nil && lt.Tag == ir.Array {
			vt = c.b.ArrayRef(n.Loc, n.Region, n.Perm, lt.Left)
		}
	case ir.Sizeof:
		if n.Left != nil {
			c.checkExpr(n.Left, nil)
		}
		vt = c.lib.Numerics["usize"]
	case ir.LogicNot:
		c.checkExpr(n.Left, c.lib.Numerics["bool"])
		vt = c.lib.Numerics["bool"]
	case ir.LogicAnd, ir.LogicOr:
		c.checkExpr(n.Left, c.lib.Numerics["bool"])
		c.checkExpr(n.Right, c.lib.Numerics["bool"])
		vt = c.lib.Numerics["bool"]
	case ir.Alias:
		vt = c.checkExpr(n.Left, nil)
	case ir.Block:
		c.checkBlock(n, nil)
		if n.Nbody.Len() > 0 {
			if last := n.Nbody.Slice()[n.Nbody.Len()-1]; last.IsExpNode() {
				vt = last.Vtype // a block used as an expression yields its last expression
			}
		}
	case ir.LoopBlock, ir.If:
		c.checkStmt(n, nil)
	case ir.GenVarUse:
		// Left unresolved outside an instantiation; a generic body is only
		// ever type-checked post-substitution (internal/sema/generics.go).
	}
	n.Vtype = vt
	if expected != nil && vt != nil {
		c.coerceTo(n, vt, expected)
	}
	n.Flag |= ir.FlagTypeChecked
	return n.Vtype
}

// coerceTo applies the top-down half of bidirectional typing (spec.md
// §4.6.1): coerce n's computed vtype against the context's expected type,
// wrapping an implicit Cast when a conversion is needed and reporting a
// typing error when none is possible.
func (c *Checker) coerceTo(n *ir.Node, vt, expected *ir.Node) {
	res := c.coerce(n, vt, expected)
	if res.kind != coerceNone {
		if res.kind != coerceEqMatch {
			c.wrapCast(n, res.vtype)
		}
		n.Vtype = res.vtype
		return
	}
	if underlyingType(vt) != underlyingType(expected) {
		c.errs.Error(diag.Typing, n.Loc, "cannot use value of type %q where %q is expected", typeName(vt), typeName(expected))
	}
}

// typeOperand resolves a type-position operand (an `is`/`as` right side):
// a TypeNameUse naming a generic with explicit arguments is instantiated in
// place (spec.md §4.6.8 (1)), re-pointing its Dclnode at the memoized
// instance so two mentions of Some[i32] compare equal by pointer.
func (c *Checker) typeOperand(t *ir.Node) {
	if t == nil || t.Tag != ir.TypeNameUse || t.Dclnode == nil {
		return
	}
	if t.Dclnode.Tag != ir.Generic || t.List.Len() == 0 {
		return
	}
	args := make([]*ir.Node, 0, t.List.Len())
	for _, a := range t.List.Slice() {
		args = append(args, typeOfTypeExpr(a))
	}
	if inst := c.Instantiate(t.Dclnode, args); inst != nil {
		t.Dclnode = inst
	}
}

// wrapCast inserts an implicit Cast node between n and its parent by cloning
// n's current identity into a fresh leaf and turning n itself into the Cast
// (so any parent pointer already holding n sees the wrapped form without
// needing to be revisited).
func (c *Checker) wrapCast(n *ir.Node, to *ir.Node) {
	inner := c.b.New(n.Tag, n.Loc)
	*inner = *n
	n.Tag = ir.Cast
	n.Left = inner
	n.Vtype = to
	n.Flag = ir.FlagTypeChecked
}

func typeName(t *ir.Node) string {
	if t == nil {
		return "<unknown>"
	}
	if t.NameText() != "" {
		return t.NameText()
	}
	return t.Tag.String()
}

func pointeeOf(t *ir.Node) *ir.Node {
	if t == nil {
		return nil
	}
	switch t.Tag {
	case ir.Ptr, ir.Ref, ir.ArrayRef, ir.VirtRef:
		return t.Left
	}
	return nil
}

func (c *Checker) checkArrayLit(n *ir.Node) *ir.Node {
	var elemTy *ir.Node
	for _, e := range n.List.Slice() {
		et := c.checkExpr(e, elemTy)
		if elemTy == nil {
			elemTy = et
		}
	}
	if elemTy == nil {
		return nil
	}
	return c.b.Array(n.Loc, int64(n.List.Len()), elemTy)
}

func (c *Checker) checkNameUse(n *ir.Node) *ir.Node {
	if n.Dclnode == nil {
		return nil
	}
	switch n.Dclnode.Tag {
	case ir.VarDcl, ir.FieldDcl, ir.ConstDcl:
		return n.Dclnode.Vtype
	case ir.FnDcl:
		return c.fnSigType(n.Dclnode)
	}
	if n.Dclnode.IsTypeNode() || n.Dclnode.Tag == ir.Generic {
		return nil // a type used as a value only appears as a TypeLit/Instantiate head
	}
	return nil
}

func (c *Checker) fnSigType(fn *ir.Node) *ir.Node {
	return c.b.FnSigType(fn.Loc, fn.Params, fn.Result)
}

func (c *Checker) checkAssign(n *ir.Node) *ir.Node {
	if n.Ninit.Len() > 0 {
		// `:=` sugar: the synthetic VarDcl stashed by resolve.go carries the
		// binding but not the initializer (the parser left that on the
		// Assign's own Right, per resolveAssign); type-check it there and
		// give both the VarDcl and the (now VarNameUse) left side its type.
		decl := n.Ninit.Slice()[0]
		rt := c.checkExpr(n.Right, nil)
		decl.Vtype = rt
		decl.Value = n.Right
		decl.Flag |= ir.FlagTypeChecked
		n.Left.Vtype = rt
		n.Left.Flag |= ir.FlagTypeChecked
		return rt
	}
	lt := c.checkExpr(n.Left, nil)
	c.checkExpr(n.Right, lt)
	return lt
}

func (c *Checker) checkIndex(n *ir.Node) *ir.Node {
	ot := c.checkExpr(n.Left, nil)
	c.checkExpr(n.Right, nil)
	switch {
	case ot == nil:
		return nil
	case ot.Tag == ir.Array:
		return ot.Left
	case ot.Tag == ir.ArrayRef, ot.Tag == ir.Ptr:
		return ot.Left
	case ot.Tag == ir.Ref && ot.Left != nil && ot.Left.Tag == ir.Array:
		return ot.Left.Left
	}
	c.errs.Error(diag.Typing, n.Loc, "type %q does not support indexing", typeName(ot))
	return nil
}
