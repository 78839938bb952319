// Package sema implements the semantic analyzer: name resolution, bidirectional
// type-check/lowering, vtable/impl construction, generic/macro instantiation,
// and the move/alias/borrow/init data-flow pass (spec.md §4.5-§4.8). Each pass
// is its own file but all share one Bag of diagnostics and the Builder that
// owns the arena, name table, and type table, matching the "sole execution
// thread, process-wide shared state" model of spec.md §5.
//
// Grounded on original_source/src/c-compiler's ir/nameuse.c and ast/nametbl.h
// for the hook/unhook scoping discipline, cross-checked against
// other_examples/vovakirdan-surge's internal/sema/check.go for how a modern Go
// semantic pass over a similarly-shaped borrow-checked language structures its
// walker state.
package sema

import (
	"github.com/golang/glog"

	"cone-lang.dev/conec/internal/corelib"
	"cone-lang.dev/conec/internal/diag"
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
)

// Resolver carries the state one name-resolution run over a set of modules
// needs (spec.md §9's "NameResState carries only a few fields"): the shared
// builder/diagnostics, the module currently being walked (for qualified
// lookup's "current module" leg), and the enclosing type whose namespace a
// bare name may fall back to (spec.md §4.5's self/field rewrite).
type Resolver struct {
	b       *ir.Builder
	lib     *corelib.Lib
	errs    *diag.Bag
	modules map[string]*ir.Node
	root    *ir.Node
	curType *ir.Node
}

// Resolve runs name resolution over mods, in the order given (spec.md §4.5:
// "modules are visited in dependency order so that import resolution finds
// the imported module already parsed"; ordering those is the driver's job —
// cmd/conec parses a single source file, so the common case is one module).
// The first module in mods is treated as the root program module for
// leading-`::`-anchored qualified references.
func Resolve(b *ir.Builder, lib *corelib.Lib, errs *diag.Bag, mods []*ir.Node) {
	r := &Resolver{b: b, lib: lib, errs: errs, modules: make(map[string]*ir.Node, len(mods))}
	for _, m := range mods {
		r.modules[m.NameText()] = m
	}
	if len(mods) > 0 {
		r.root = mods[0]
	}
	for _, m := range mods {
		r.resolveModule(m)
	}
}

// resolveModule hooks every module-level declaration plus any wildcard
// (`import mod::*`) names, walks the module's declarations, then unhooks
// exactly what it hooked (spec.md §5's balanced push/pop invariant, checked
// by spec.md §8 invariant 7).
func (r *Resolver) resolveModule(mod *ir.Node) {
	glog.V(2).Infof("name_resolve: module %q, %d decl(s)", mod.NameText(), len(mod.Decls))
	mark := r.b.Names.Depth()
	r.b.Names.HookNamespace(mod.Namespace)
	for _, imp := range mod.Imports {
		if !imp.Flag.Has(ir.FlagPublic) {
			continue // plain `import mod`: qualified lookup only, no namespace fold-in
		}
		if other, ok := r.modules[imp.StringVal]; ok {
			r.b.Names.HookNamespace(other.Namespace)
		}
	}
	for _, d := range mod.Decls {
		r.resolveDecl(mod, d)
	}
	r.b.Names.UnhookAllInScope(mark)
}

func (r *Resolver) resolveDecl(mod *ir.Node, d *ir.Node) {
	switch d.Tag {
	case ir.FnDcl:
		r.resolveFn(d)
	case ir.VarDcl, ir.ConstDcl:
		r.resolveVtype(d.Vtype)
		if d.Value != nil {
			r.resolveExpr(d.Value)
		}
	case ir.Struct:
		r.resolveStruct(d)
	case ir.Region:
		r.resolveRegion(d)
	case ir.Typedef:
		r.resolveVtype(d.Left)
	case ir.Generic, ir.Macro:
		// Bodies are resolved fresh at each instantiation (generics.go) or
		// expansion (expandMacroUse), not against the declaring scope.
	case ir.Import:
		// Already folded in by resolveModule.
	}
}

// resolveFn pushes one scope mark for the whole function (spec.md §4.5:
// "Each Fn pushes a mark and hooks every parameter; then walks the body"),
// hooking each parameter right after its type and default value are
// resolved, so a default sees only the parameters before it; all parameters
// are in scope for the result type and the body.
func (r *Resolver) resolveFn(fn *ir.Node) {
	mark := r.b.Names.Depth()
	prevType := r.curType
	r.curType = fn.Owner
	for _, p := range fn.Params {
		r.resolveVtype(p.Vtype)
		if p.Value != nil {
			r.resolveExpr(p.Value)
		}
		r.b.Names.Hook(p.Name, p)
	}
	r.resolveVtype(fn.Result)
	for _, stmt := range fn.Nbody.Slice() {
		r.resolveStmt(stmt)
	}
	r.b.Names.UnhookAllInScope(mark)
	r.curType = prevType
}

// resolveStruct resolves a type's basetrait reference, field types/defaults,
// and every method body (spec.md §4.6.9's mixin and §4.6.3's method lookup
// both need fields/methods name-resolved first). Closed-trait variants
// (Derived) are resolved recursively since the parser never adds them to any
// module's Decls list directly (spec.md §3: "every derived struct... must be
// declared in the same module as the trait").
func (r *Resolver) resolveStruct(s *ir.Node) {
	prevType := r.curType
	r.curType = s
	if s.Basetrait != nil {
		r.resolveVtype(s.Basetrait)
	}
	for _, f := range s.Fields {
		r.resolveVtype(f.Vtype)
		if f.Value != nil {
			r.resolveExpr(f.Value)
		}
	}
	r.resolveMethodSet(s.Namespace)
	r.curType = prevType
	for _, v := range s.Derived {
		r.resolveStruct(v)
	}
}

func (r *Resolver) resolveRegion(rg *ir.Node) {
	prevType := r.curType
	r.curType = rg
	r.resolveMethodSet(rg.Namespace)
	r.curType = prevType
}

// resolveMethodSet walks every FnDcl overload chain in ns. Namespace.Each
// yields one decl per name (the last one Define saw), so every earlier
// overload is only reachable via Nextnode — the chain the parser built when
// it saw a duplicate method name (spec.md §9's design note on overload
// chains).
func (r *Resolver) resolveMethodSet(ns *names.Namespace) {
	if ns == nil {
		return
	}
	ns.Each(func(_ *names.Name, decl names.Decl) {
		fn, ok := decl.(*ir.Node)
		if !ok || fn.Tag != ir.FnDcl {
			return
		}
		for m := fn; m != nil; m = m.Nextnode {
			r.resolveFn(m)
		}
	})
}

func (r *Resolver) resolveStmt(n *ir.Node) {
	if n == nil {
		return
	}
	switch n.Tag {
	case ir.Return:
		if n.Left != nil {
			r.resolveExpr(n.Left)
		}
	case ir.Break, ir.Continue:
	case ir.VarDcl, ir.ConstDcl:
		r.resolveVtype(n.Vtype)
		if n.Value != nil {
			r.resolveExpr(n.Value)
		}
		r.b.Names.Hook(n.Name, n)
	case ir.Swap:
		r.resolveExpr(n.Left)
		if n.Right != nil {
			r.resolveExpr(n.Right)
		}
	case ir.FnDcl:
		r.resolveFn(n)
	case ir.Typedef:
		r.resolveVtype(n.Left)
	case ir.Block:
		r.resolveBlock(n)
	case ir.LoopBlock:
		mark := r.b.Names.Depth()
		if n.Left != nil {
			r.resolveExpr(n.Left)
		}
		for _, s := range n.Nbody.Slice() {
			r.resolveStmt(s)
		}
		r.b.Names.UnhookAllInScope(mark)
	case ir.If:
		mark := r.b.Names.Depth()
		for _, c := range n.List.Slice() {
			r.resolveExpr(c)
		}
		for _, v := range n.Rlist.Slice() {
			r.resolveExpr(v) // suffix-if: `EXPR if COND` keeps EXPR here
		}
		for _, s := range n.Nbody.Slice() {
			r.resolveStmt(s)
		}
		r.b.Names.UnhookAllInScope(mark)
		if n.Right != nil {
			r.resolveStmt(n.Right)
		}
	default:
		r.resolveExpr(n)
	}
}

// resolveBlock pushes one scope mark for the block's `with` head (Ninit) and
// body together, per spec.md §4.5: "Each Block pushes a name-stack mark at
// entry; every VarDcl encountered hooks itself; block exit pops back".
func (r *Resolver) resolveBlock(n *ir.Node) {
	mark := r.b.Names.Depth()
	for _, s := range n.Ninit.Slice() {
		r.resolveStmt(s)
	}
	for _, s := range n.Nbody.Slice() {
		r.resolveStmt(s)
	}
	r.b.Names.UnhookAllInScope(mark)
}

func (r *Resolver) resolveExpr(n *ir.Node) {
	if n == nil {
		return
	}
	switch n.Tag {
	case ir.NameUse:
		r.resolveNameUse(n)
	case ir.VarNameUse, ir.TypeNameUse:
		// Already resolved (e.g. a shared subtree reused by match/if-guard
		// desugaring, spec.md §4.3); resolving twice is harmless but
		// pointless, so only recurse into un-resolved generic args.
		for _, a := range n.List.Slice() {
			r.resolveVtype(a)
		}
	case ir.UIntLit, ir.FloatLit, ir.StringLit, ir.NilLit, ir.NullLit:
	case ir.ArrayLit:
		for _, e := range n.List.Slice() {
			r.resolveExpr(e)
		}
	case ir.NamedVal:
		r.resolveExpr(n.Left)
	case ir.VTuple:
		for _, e := range n.List.Slice() {
			r.resolveExpr(e)
		}
	case ir.FnCall:
		if mac := r.macroCallee(n); mac != nil {
			r.expandMacroUse(n, mac)
			return
		}
		if n.Left != nil {
			r.resolveExpr(n.Left)
		}
		for _, a := range n.Rlist.Slice() {
			r.resolveExpr(a)
		}
	case ir.ArrIndex:
		r.resolveExpr(n.Left)
		if n.Right != nil {
			r.resolveExpr(n.Right)
		}
	case ir.FldAccess:
		r.resolveExpr(n.Left)
	case ir.Assign:
		r.resolveAssign(n)
	case ir.Cast:
		r.resolveExpr(n.Left)
		r.resolveVtype(n.Vtype)
	case ir.Is:
		r.resolveExpr(n.Left)
		r.resolveVtype(n.Right)
	case ir.Deref, ir.Borrow, ir.ArrayBorrow:
		r.resolveExpr(n.Left)
	case ir.Allocate, ir.ArrayAlloc:
		r.resolveVtype(n.Vtype)
		if n.Left != nil {
			r.resolveExpr(n.Left)
		}
	case ir.Sizeof:
		if n.Vtype != nil {
			r.resolveVtype(n.Vtype)
		} else {
			r.resolveExpr(n.Left)
		}
	case ir.LogicNot:
		r.resolveExpr(n.Left)
	case ir.LogicAnd, ir.LogicOr:
		r.resolveExpr(n.Left)
		r.resolveExpr(n.Right)
	case ir.Alias:
		r.resolveExpr(n.Left)
	case ir.Block:
		r.resolveBlock(n)
	case ir.LoopBlock, ir.If:
		r.resolveStmt(n)
	case ir.GenVarUse:
		// Resolved by substitution at instantiation time, not here.
	}
}

// macroCallee reports the Macro declaration a `name(args)` call names, or
// nil if the callee is anything else.
func (r *Resolver) macroCallee(n *ir.Node) *ir.Node {
	if n.Methfld == nil || n.Methfld.Text != "()" || n.Left == nil {
		return nil
	}
	if n.Left.Tag != ir.NameUse || n.Left.Left != nil {
		return nil
	}
	if binding, ok := n.Left.Name.Binding().(*ir.Node); ok && binding != nil && binding.Tag == ir.Macro {
		return binding
	}
	return nil
}

// expandMacroUse splices a macro's body over its call site (spec.md §4.6.8:
// macros are "the same substitution mechanism but do not take type
// parameters; their body is re-type-checked in place at each use"): the body
// is cloned per use, parameter names are substituted with the call's
// argument expressions, and the expansion is resolved here — while the use
// site's scope bindings are still hooked — so later passes see ordinary IR.
func (r *Resolver) expandMacroUse(call *ir.Node, mac *ir.Node) {
	args := call.Rlist.Slice()
	if len(args) != len(mac.GenParams) {
		r.errs.Error(diag.Binding, call.Loc, "macro %q expects %d argument(s), got %d", mac.NameText(), len(mac.GenParams), len(args))
		return
	}
	for _, a := range args {
		r.resolveExpr(a)
	}
	body := cloneTree(r.b, mac.Body, nil, make(map[*ir.Node]*ir.Node))
	r.substMacroParams(body, mac.GenParams, args, make(map[*ir.Node]bool))
	*call = *body
	r.resolveExpr(call)
}

// substMacroParams replaces every unresolved bare NameUse naming one of the
// macro's parameters with a clone of the corresponding argument expression.
func (r *Resolver) substMacroParams(n *ir.Node, parms []*ir.Node, args []*ir.Node, walked map[*ir.Node]bool) {
	if n == nil || walked[n] {
		return
	}
	walked[n] = true
	if n.Tag == ir.NameUse && n.Left == nil && n.Dclnode == nil {
		for i, p := range parms {
			if p.Name == n.Name {
				*n = *cloneTree(r.b, args[i], nil, make(map[*ir.Node]*ir.Node))
				return
			}
		}
	}
	r.substMacroParams(n.Left, parms, args, walked)
	r.substMacroParams(n.Right, parms, args, walked)
	r.substMacroParams(n.Value, parms, args, walked)
	for _, c := range n.Ninit.Slice() {
		r.substMacroParams(c, parms, args, walked)
	}
	for _, c := range n.Nbody.Slice() {
		r.substMacroParams(c, parms, args, walked)
	}
	for _, c := range n.List.Slice() {
		r.substMacroParams(c, parms, args, walked)
	}
	for _, c := range n.Rlist.Slice() {
		r.substMacroParams(c, parms, args, walked)
	}
}

// resolveAssign handles `:=`'s implicit-declaration sugar (spec.md §4.3): a
// bare new name on the left becomes a synthetic VarDcl (inferred type, filled
// in by type-check), stashed in the Assign node's otherwise-unused Ninit so
// later passes can find it without re-deriving it from the lowered shape.
func (r *Resolver) resolveAssign(n *ir.Node) {
	if n.Flag.Has(ir.FlagColas) && n.Left != nil && n.Left.Tag == ir.NameUse && n.Left.Dclnode == nil {
		decl := r.b.NewNamed(ir.VarDcl, n.Left.Loc, n.Left.NameText())
		decl.Perm = r.lib.Perms["mut1"]
		n.Ninit.Append(decl)
		n.Left.Dclnode = decl
		n.Left.Tag = ir.VarNameUse
		r.b.Names.Hook(decl.Name, decl)
		r.resolveExpr(n.Right)
		return
	}
	r.resolveExpr(n.Left)
	r.resolveExpr(n.Right)
}

// resolveNameUse resolves a bare variable-position name use (spec.md §4.5):
// a qualified chain, a root-anchored `::x`, an ordinary binding-stack lookup,
// or — failing those — a field/method of the enclosing type, rewritten in
// place into a `self.name` FnCall so later passes treat it uniformly with an
// explicit dotted access.
func (r *Resolver) resolveNameUse(n *ir.Node) {
	if n.Left != nil {
		r.resolveQualified(n)
		return
	}
	if n.Flag.Has(ir.FlagPublic) {
		if r.root == nil {
			r.errs.Error(diag.Binding, n.Loc, "no root module for qualified reference %q", n.NameText())
			return
		}
		if d, ok := lookupNamespace(r.root, n.Name); ok {
			bindNameUse(n, d)
			return
		}
		r.errs.Error(diag.Binding, n.Loc, "unknown name %q", n.NameText())
		return
	}
	if binding, ok := n.Name.Binding().(*ir.Node); ok && binding != nil {
		bindNameUse(n, binding)
		return
	}
	if r.curType != nil {
		if d, ok := lookupNamespace(r.curType, n.Name); ok {
			r.rewriteToSelfCall(n, d)
			return
		}
	}
	r.errs.Error(diag.Binding, n.Loc, "unknown name %q", n.NameText())
}

// rewriteToSelfCall turns a bare NameUse that resolved to a field/method of
// the enclosing type into `self.name` (spec.md §4.5), reusing n's identity so
// any parent node already holding a pointer to it sees the rewrite.
func (r *Resolver) rewriteToSelfCall(n *ir.Node, _ *ir.Node) {
	selfUse := r.b.NewNamed(ir.NameUse, n.Loc, "self")
	r.resolveNameUse(selfUse)
	methfld := n.Name
	n.Tag = ir.FnCall
	n.Left = selfUse
	n.Methfld = methfld
}

// resolveQualified resolves a `a::b::c` chain (spec.md §4.5): n.Left is the
// qualifier, itself possibly chained; each leg's declaration must expose a
// Namespace (a Module, or a method-bearing type for nested lookup).
func (r *Resolver) resolveQualified(n *ir.Node) {
	owner := r.resolveQualifier(n.Left)
	if owner == nil {
		return
	}
	if d, ok := lookupNamespace(owner, n.Name); ok {
		bindNameUse(n, d)
		return
	}
	r.errs.Error(diag.Binding, n.Loc, "unknown qualified name %q", n.NameText())
}

func (r *Resolver) resolveQualifier(q *ir.Node) *ir.Node {
	if q.Left == nil {
		if m, ok := r.modules[q.NameText()]; ok {
			q.Dclnode = m
			q.Tag = ir.TypeNameUse
			return m
		}
		if binding, ok := q.Name.Binding().(*ir.Node); ok && binding != nil {
			bindNameUse(q, binding)
			return binding
		}
		r.errs.Error(diag.Binding, q.Loc, "unknown module or type %q", q.NameText())
		return nil
	}
	owner := r.resolveQualifier(q.Left)
	if owner == nil {
		return nil
	}
	d, ok := lookupNamespace(owner, q.Name)
	if !ok {
		r.errs.Error(diag.Binding, q.Loc, "unknown qualified name %q", q.NameText())
		return nil
	}
	bindNameUse(q, d)
	return d
}

func lookupNamespace(owner *ir.Node, n *names.Name) (*ir.Node, bool) {
	if owner == nil || owner.Namespace == nil {
		return nil, false
	}
	d, ok := owner.Namespace.Lookup(n)
	if !ok {
		return nil, false
	}
	node, ok := d.(*ir.Node)
	return node, ok
}

// bindNameUse sets dclnode and re-tags a resolved NameUse into its
// VarNameUse/TypeNameUse specialization (spec.md §4.5), the global invariant
// spec.md §8 (1) checks: "every NameUse has a non-null dclnode".
func bindNameUse(n *ir.Node, decl *ir.Node) {
	n.Dclnode = decl
	if isTypeDecl(decl) {
		n.Tag = ir.TypeNameUse
	} else {
		n.Tag = ir.VarNameUse
	}
	for _, a := range n.List.Slice() {
		_ = a // generic argument types are resolved by resolveVtype's caller, not here
	}
}

func isTypeDecl(decl *ir.Node) bool {
	if decl == nil {
		return false
	}
	return decl.IsTypeNode() || decl.Tag == ir.Generic || decl.Tag == ir.Typedef || decl.Tag == ir.Module
}

// resolveVtype resolves every NameUse-shaped reference reachable from a
// type-position subtree (spec.md §4.5). Structural type nodes (Ref, Array,
// ...) the parser already built via ir.Builder need only their nested value
// types walked; TypeNameUse leaves are the only things that need an actual
// lookup.
func (r *Resolver) resolveVtype(t *ir.Node) {
	if t == nil {
		return
	}
	switch t.Tag {
	case ir.TypeNameUse:
		if t.Dclnode != nil {
			break // already resolved (shared subtree, or re-visited)
		}
		if t.Left != nil {
			r.resolveQualified(t)
		} else if binding, ok := t.Name.Binding().(*ir.Node); ok && binding != nil {
			t.Dclnode = binding
		} else {
			r.errs.Error(diag.Binding, t.Loc, "unknown type %q", t.NameText())
		}
		for _, a := range t.List.Slice() {
			r.resolveVtype(a)
		}
	case ir.Ref, ir.ArrayRef, ir.VirtRef, ir.Ptr, ir.Array, ir.ArrayDeref:
		r.resolveVtype(t.Left)
	case ir.TTuple:
		for _, e := range t.List.Slice() {
			r.resolveVtype(e)
		}
	case ir.FnSig:
		for _, p := range t.Params {
			r.resolveVtype(p.Vtype)
		}
		r.resolveVtype(t.Result)
	case ir.GenVarUse:
		// Resolved by substitution at instantiation (internal/sema/generics.go).
	}
}
