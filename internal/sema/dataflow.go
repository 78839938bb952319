package sema

import (
	"github.com/golang/glog"

	"cone-lang.dev/conec/internal/corelib"
	"cone-lang.dev/conec/internal/diag"
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
)

// varFlow is the per-VarDcl bookkeeping the data-flow pass maintains on its
// variable stack (spec.md §4.7): whether the binding has been assigned yet,
// whether it has been moved out from under its name, and the scope depth it
// was declared at (needed for the borrow-lifetime check).
type varFlow struct {
	decl        *ir.Node
	initialized bool
	moved       bool
	depth       int
}

// Flow runs the ownership/move/alias/borrow/initialization pass over a
// single function body (spec.md §4.7), sharing one instance per function the
// way Checker/Resolver do per compilation. curFnResult is never set or
// read; the "return escape" dealias exclusion is computed per terminating
// Return by returnEscapee.
type Flow struct {
	b           *ir.Builder
	lib         *corelib.Lib
	errs        *diag.Bag
	vars        map[*ir.Node]*varFlow
	depth       int
	aliasFrames []int
	curFnResult *ir.Node
}

// DataFlow runs the pass over every function body in mods (cmd/conec only
// calls this once name resolution and type-check both produced zero errors,
// spec.md §5's pass-ordering rule).
func DataFlow(b *ir.Builder, lib *corelib.Lib, errs *diag.Bag, mods []*ir.Node) {
	for _, m := range mods {
		for _, d := range m.Decls {
			flowDecl(b, lib, errs, d)
		}
	}
}

func flowDecl(b *ir.Builder, lib *corelib.Lib, errs *diag.Bag, d *ir.Node) {
	switch d.Tag {
	case ir.FnDcl:
		for m := d; m != nil; m = m.Nextnode {
			flowFn(b, lib, errs, m)
		}
	case ir.Struct:
		flowMethodSet(b, lib, errs, d.Namespace)
		for _, v := range d.Derived {
			flowDecl(b, lib, errs, v)
		}
	case ir.Region:
		flowMethodSet(b, lib, errs, d.Namespace)
	}
}

func flowMethodSet(b *ir.Builder, lib *corelib.Lib, errs *diag.Bag, ns *names.Namespace) {
	if ns == nil {
		return
	}
	ns.Each(func(_ *names.Name, decl names.Decl) {
		fn, ok := decl.(*ir.Node)
		if !ok || fn.Tag != ir.FnDcl {
			return
		}
		for m := fn; m != nil; m = m.Nextnode {
			flowFn(b, lib, errs, m)
		}
	})
}

// flowFn walks one function's body. Intrinsics (corelib operator methods)
// and bodyless required-trait methods have no Nbody and are skipped.
func flowFn(b *ir.Builder, lib *corelib.Lib, errs *diag.Bag, fn *ir.Node) {
	if fn.Nbody.Len() == 0 {
		return
	}
	glog.V(2).Infof("data_flow: fn %q", fn.NameText())
	f := &Flow{b: b, lib: lib, errs: errs, vars: make(map[*ir.Node]*varFlow)}
	for _, p := range fn.Params {
		f.vars[p] = &varFlow{decl: p, initialized: true, depth: 0}
	}
	f.checkScope(fn.Nbody.Slice(), fn.Loc)
}

// checkScope walks one nested list of statements as a scope: entering
// increases depth, and on exit every own/rc variable declared at this depth
// that is still live is collected into a dealias list attached to the
// scope's terminating control statement, per spec.md §4.7.
func (f *Flow) checkScope(stmts []*ir.Node, loc ir.Loc) {
	f.depth++
	depth := f.depth
	declared := make([]*ir.Node, 0, 4)
	var term *ir.Node
	for _, s := range stmts {
		if s.Tag == ir.VarDcl || s.Tag == ir.ConstDcl {
			declared = append(declared, s)
		}
		f.checkStmt(s)
		switch s.Tag {
		case ir.Return, ir.Break, ir.Continue, ir.BlockReturn:
			term = s
		}
	}
	f.attachDealias(term, declared, depth)
	f.depth--
}

// attachDealias implements the "ordered dealias list" step of spec.md §4.7:
// every own/rc variable declared at depth, still initialized and not moved,
// excluding the variable that is itself the terminating Return's value (the
// "return escape" optimization), stored on term's otherwise-unused List
// field in declaration order.
func (f *Flow) attachDealias(term *ir.Node, declared []*ir.Node, depth int) {
	if term == nil {
		return
	}
	escapee := returnEscapee(term)
	var list []*ir.Node
	for _, d := range declared {
		vf := f.vars[d]
		if vf == nil || !vf.initialized || vf.moved {
			continue
		}
		if d.Vtype == nil {
			continue
		}
		if refRegionName(d.Vtype) != "rc" && !d.Vtype.Flag.Has(ir.FlagMoveType) {
			continue
		}
		if (d.Vtype.Tag == ir.Ref || d.Vtype.Tag == ir.ArrayRef || d.Vtype.Tag == ir.VirtRef) && d.Vtype.Region == nil {
			continue // a borrowed reference owns nothing
		}
		if d == escapee {
			continue
		}
		list = append(list, d)
	}
	if len(list) > 0 {
		term.List.Append(list...)
	}
}

// returnEscapee resolves the variable a terminating Return directly hands
// back (a bare name, not a larger expression), so it is excluded from its
// own scope's dealias list.
func returnEscapee(term *ir.Node) *ir.Node {
	if term.Tag != ir.Return || term.Left == nil {
		return nil
	}
	if term.Left.Tag == ir.VarNameUse {
		return term.Left.Dclnode
	}
	return nil
}

func (f *Flow) checkStmt(n *ir.Node) {
	if n == nil {
		return
	}
	switch n.Tag {
	case ir.VarDcl, ir.ConstDcl:
		f.checkVarDcl(n)
	case ir.Assign:
		f.checkAssign(n)
	case ir.Swap:
		f.loadExpr(n.Left)
		f.loadExpr(n.Right)
	case ir.Return:
		if n.Left != nil {
			f.loadExpr(n.Left)
		}
	case ir.Break, ir.Continue, ir.Typedef:
	case ir.FnDcl:
		// Nested/overload-chain entries are walked from their owning
		// namespace, not re-entered here.
	case ir.Block:
		stmts := append(append([]*ir.Node{}, n.Ninit.Slice()...), n.Nbody.Slice()...)
		f.checkScope(stmts, n.Loc)
	case ir.LoopBlock:
		if n.Left != nil {
			f.pushAliasFrame()
			f.loadExpr(n.Left)
			f.popAliasFrame()
		}
		f.checkScope(n.Nbody.Slice(), n.Loc)
	case ir.If:
		f.checkIf(n)
	default:
		f.loadExpr(n)
	}
}

func (f *Flow) checkIf(n *ir.Node) {
	f.pushAliasFrame()
	for _, cond := range n.List.Slice() {
		f.loadExpr(cond)
	}
	f.popAliasFrame()
	for _, v := range n.Rlist.Slice() {
		f.loadExpr(v) // suffix-if value
	}
	f.checkScope(n.Nbody.Slice(), n.Loc)
	if n.Right != nil {
		if n.Right.Tag == ir.If {
			f.checkIf(n.Right)
		} else {
			f.checkStmt(n.Right)
		}
	}
}

// checkVarDcl registers a new binding on the variable stack (spec.md §4.7's
// Initialized tracking) and, if it has an initializer, treats that
// initializer as a move/alias source the same way an assignment's
// right-hand side is.
func (f *Flow) checkVarDcl(n *ir.Node) {
	f.vars[n] = &varFlow{decl: n, initialized: n.Value != nil, depth: f.depth}
	if n.Value != nil {
		f.pushAliasFrame()
		f.loadExpr(n.Value)
		f.popAliasFrame()
		f.applyMove(n.Value, n)
	}
}

// checkAssign implements spec.md §4.7's store rule: the lval's permission
// must allow writing, `_` is a sink (never a use), and a `:=`'s synthetic
// VarDcl (stashed on Ninit by resolve.go) is registered exactly like an
// ordinary declaration.
func (f *Flow) checkAssign(n *ir.Node) {
	if n.Ninit.Len() > 0 {
		f.checkVarDcl(n.Ninit.Slice()[0])
		return
	}
	if isSinkLval(n.Left) {
		f.pushAliasFrame()
		f.loadExpr(n.Right)
		f.popAliasFrame()
		return
	}
	if n.Left != nil && n.Left.Tag == ir.VarNameUse && n.Left.Dclnode != nil {
		if perm := n.Left.Dclnode.Perm; perm != nil && !perm.PermCaps.Has(ir.PermWrite) {
			f.errs.Error(diag.Flow, n.Loc, "cannot assign to %q: permission does not allow writing", n.Left.NameText())
		}
	}
	f.pushAliasFrame()
	f.loadExpr(n.Right)
	f.popAliasFrame()
	f.checkBorrowScope(n)
	f.applyMove(n.Right, n.Left)
}

func isSinkLval(e *ir.Node) bool {
	return e != nil && (e.Tag == ir.NameUse || e.Tag == ir.VarNameUse) && e.NameText() == "_"
}

// checkBorrowScope implements spec.md §4.7/§8's borrow-lifetime boundary
// (scenario 4): assigning a `&local` taken inside a nested scope to a name
// bound in an outer scope is an error, since the borrow would outlive its
// referent.
func (f *Flow) checkBorrowScope(n *ir.Node) {
	rhs := stripCasts(n.Right)
	if rhs == nil || rhs.Tag != ir.Borrow {
		return
	}
	target := n.Left
	if target == nil || target.Tag != ir.VarNameUse || target.Dclnode == nil {
		return
	}
	lvalVf := f.vars[target.Dclnode]
	if lvalVf == nil {
		return
	}
	src := stripCasts(rhs.Left)
	if src == nil || (src.Tag != ir.VarNameUse && src.Tag != ir.NameUse) || src.Dclnode == nil {
		return
	}
	srcVf := f.vars[src.Dclnode]
	if srcVf != nil && srcVf.depth > lvalVf.depth {
		f.errs.Error(diag.Flow, n.Loc, "%q outlives %q: borrow does not live long enough", target.NameText(), src.NameText())
	}
}

// applyMove implements spec.md §4.7's move rule: if value's type is
// move-typed (FlagMoveType on the Ref type: its region is `so` or its
// permission does not allow aliasing, internal/ir/build.go's inferRefFlags)
// and value is a bare variable use, that variable's binding is deactivated; any
// later use is a use-after-move error. dest, when itself a variable
// (a `let`/`:=`/plain assign target), is marked initialized.
func (f *Flow) applyMove(value, dest *ir.Node) {
	if dest != nil {
		if dn := destDecl(dest); dn != nil {
			if vf := f.vars[dn]; vf != nil {
				vf.initialized = true
			}
		}
	}
	value = stripCasts(value)
	if value == nil || (value.Tag != ir.VarNameUse && value.Tag != ir.NameUse) || value.Dclnode == nil {
		return
	}
	if value.Vtype == nil || !value.Vtype.Flag.Has(ir.FlagMoveType) {
		return
	}
	if vf, ok := f.vars[value.Dclnode]; ok {
		vf.moved = true
	}
}

func destDecl(dest *ir.Node) *ir.Node {
	if dest == nil {
		return nil
	}
	if dest.Tag == ir.VarDcl || dest.Tag == ir.ConstDcl {
		return dest
	}
	if dest.Tag == ir.VarNameUse {
		return dest.Dclnode
	}
	return nil
}

// loadExpr walks an expression recording uses (spec.md §4.7's use-before-
// init and alias-count bookkeeping), without itself applying move semantics
// — callers that consume the whole expression as a move source call
// applyMove separately once the walk finishes.
func (f *Flow) loadExpr(n *ir.Node) {
	if n == nil {
		return
	}
	switch n.Tag {
	case ir.VarNameUse, ir.NameUse:
		f.checkUse(n)
	case ir.FnCall:
		if n.Objfn != nil {
			f.loadExpr(n.Objfn)
		}
		if n.Flag.Has(ir.FlagLvalOp) {
			f.checkMutableLval(n)
		}
		if n.Left != nil {
			f.loadExpr(n.Left)
		}
		f.pushAliasFrame()
		for _, a := range n.Rlist.Slice() {
			f.loadExpr(a)
		}
		f.popAliasFrame()
	case ir.ArrIndex, ir.FldAccess:
		f.loadExpr(n.Left)
		f.loadExpr(n.Right)
	case ir.Cast, ir.Deref, ir.LogicNot, ir.Alias, ir.ArrayBorrow:
		f.loadExpr(n.Left)
	case ir.Borrow:
		f.loadExpr(n.Left)
	case ir.Is:
		f.loadExpr(n.Left)
	case ir.LogicAnd, ir.LogicOr:
		f.loadExpr(n.Left)
		f.loadExpr(n.Right)
	case ir.Allocate, ir.ArrayAlloc:
		if n.Left != nil {
			f.loadExpr(n.Left)
		}
	case ir.Sizeof:
		if n.Left != nil {
			f.loadExpr(n.Left)
		}
	case ir.ArrayLit, ir.VTuple:
		for _, e := range n.List.Slice() {
			f.loadExpr(e)
		}
	case ir.TypeLit:
		for _, e := range n.Rlist.Slice() {
			if e != nil {
				f.loadExpr(e)
			}
		}
	case ir.Assign:
		f.checkAssign(n)
	case ir.Block, ir.LoopBlock, ir.If:
		f.checkStmt(n)
	}
}

// checkUse implements spec.md §4.7's use-before-init and use-after-move
// errors. Inside an active alias frame, a use of an rc-region reference is
// counted on the innermost frame and wrapped in the Alias node recording the
// refcount increment the code generator needs (spec.md §4.7: "an Alias node
// is inserted before the use recording the delta"); a use of any other
// move-typed reference is counted on the frame but not wrapped.
func (f *Flow) checkUse(n *ir.Node) {
	decl := n.Dclnode
	if decl == nil {
		return
	}
	vf, ok := f.vars[decl]
	if !ok {
		return
	}
	if vf.moved {
		f.errs.Error(diag.Flow, n.Loc, "use of %q after it was moved", n.NameText())
		return
	}
	if !vf.initialized {
		f.errs.Error(diag.Flow, n.Loc, "use of %q before it is initialized", n.NameText())
		return
	}
	if len(f.aliasFrames) == 0 || n.Vtype == nil {
		return
	}
	if refRegionName(n.Vtype) == "rc" {
		f.aliasFrames[len(f.aliasFrames)-1]++
		f.wrapAlias(n, 1)
		return
	}
	if n.Vtype.Flag.Has(ir.FlagMoveType) {
		f.aliasFrames[len(f.aliasFrames)-1]++
	}
}

// wrapAlias wraps a use of an rc-regioned reference in an Alias node
// recording the refcount delta the code generator must emit (spec.md §4.7:
// "an Alias node is inserted before the use recording the delta"), reusing
// the use node's identity so the parent pointer needs no fixup.
func (f *Flow) wrapAlias(n *ir.Node, delta uint64) {
	inner := f.b.New(n.Tag, n.Loc)
	*inner = *n
	n.Tag = ir.Alias
	n.Left = inner
	n.UIntVal = delta
	n.Vtype = inner.Vtype
	n.Dclnode = nil
	n.Name = nil
}

func refRegionName(t *ir.Node) string {
	if t == nil || (t.Tag != ir.Ref && t.Tag != ir.ArrayRef && t.Tag != ir.VirtRef) || t.Region == nil {
		return ""
	}
	return t.Region.NameText()
}

// checkMutableLval enforces spec.md §4.6.4's flow-side requirement for
// compound assignment and postfix increment/decrement: the operated-on
// lval's permission must allow writing.
func (f *Flow) checkMutableLval(n *ir.Node) {
	lval := n.Left
	if lval == nil && n.Rlist.Len() > 0 {
		lval = n.Rlist.Slice()[0]
	}
	lval = stripCasts(lval)
	if lval == nil || lval.Tag != ir.VarNameUse || lval.Dclnode == nil {
		return
	}
	if perm := lval.Dclnode.Perm; perm != nil && !perm.PermCaps.Has(ir.PermWrite) {
		f.errs.Error(diag.Flow, n.Loc, "cannot mutate %q: permission does not allow writing", lval.NameText())
	}
}

// stripCasts peels the implicit Cast wrappers type-check inserts around a
// coerced expression, so flow rules keyed on the underlying shape (a Borrow
// right-hand side, a bare variable move source) still see it.
func stripCasts(e *ir.Node) *ir.Node {
	for e != nil && e.Tag == ir.Cast {
		e = e.Left
	}
	return e
}

func (f *Flow) pushAliasFrame() { f.aliasFrames = append(f.aliasFrames, 0) }
func (f *Flow) popAliasFrame()  { f.aliasFrames = f.aliasFrames[:len(f.aliasFrames)-1] }
