package sema

import (
	"fmt"

	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
)

// cloneTree deep-copies the subtree rooted at n, used both by generic/macro
// instantiation (spec.md §4.6.8) and by trait-mixin field/method duplication
// (spec.md §4.6.9). Grounded on original_source/src/c-compiler/ir/clone.c's
// "clone with an old->new substitution map" shape; this port collapses the
// source's LIFO push/pop map into one map per call (a fresh instantiation or
// mixin expansion never needs entries from a previous one to fall back to
// once its own walk ends, so there is nothing to pop back to), and adds a
// seen map so a node reachable two ways in the original tree (e.g. a derived
// struct reachable from both a trait's Derived slice and its Namespace) is
// cloned exactly once and every reference converges on that one copy.
func cloneTree(b *ir.Builder, n *ir.Node, subst map[*ir.Node]*ir.Node, seen map[*ir.Node]*ir.Node) *ir.Node {
	if n == nil {
		return nil
	}
	if r, ok := subst[n]; ok {
		return r
	}
	if c, ok := seen[n]; ok {
		return c
	}
	cp := b.New(n.Tag, n.Loc)
	seen[n] = cp
	*cp = *n
	cp.Left = cloneTree(b, n.Left, subst, seen)
	cp.Right = cloneTree(b, n.Right, subst, seen)
	cp.Ninit = cloneNodes(b, n.Ninit, subst, seen)
	cp.Nbody = cloneNodes(b, n.Nbody, subst, seen)
	cp.List = cloneNodes(b, n.List, subst, seen)
	cp.Rlist = cloneNodes(b, n.Rlist, subst, seen)
	cp.Value = cloneTree(b, n.Value, subst, seen)
	cp.Dclnode = remapNode(n.Dclnode, subst, seen)

	if len(n.Params) > 0 {
		cp.Params = make([]*ir.Node, len(n.Params))
		for i, p := range n.Params {
			cp.Params[i] = cloneTree(b, p, subst, seen)
		}
	}
	if len(n.Fields) > 0 {
		cp.Fields = make([]*ir.Node, len(n.Fields))
		for i, f := range n.Fields {
			cp.Fields[i] = cloneTree(b, f, subst, seen)
		}
	}
	if len(n.GenParams) > 0 {
		cp.GenParams = make([]*ir.Node, len(n.GenParams))
		for i, g := range n.GenParams {
			cp.GenParams[i] = cloneTree(b, g, subst, seen)
		}
	}
	cp.Body = cloneTree(b, n.Body, subst, seen)

	// An overload chain and a method/field namespace are per-declaring-scope
	// bookkeeping, not part of the value being cloned; both are rebuilt by
	// the caller once the new copy is wired into its destination scope.
	cp.Nextnode = nil
	cp.Namespace = nil
	cp.Vtable = nil
	cp.ImplCache = nil
	cp.InstCache = nil
	if n.Namespace != nil {
		cp.Namespace = names.NewNamespace()
		n.Namespace.Each(func(nm *names.Name, decl names.Decl) {
			dn, ok := decl.(*ir.Node)
			if !ok {
				return
			}
			cp.Namespace.Define(nm, cloneTree(b, dn, subst, seen))
		})
	}
	if len(n.Derived) > 0 {
		cp.Derived = make([]*ir.Node, len(n.Derived))
		for i, d := range n.Derived {
			cp.Derived[i] = cloneTree(b, d, subst, seen)
		}
	}
	cp.Owner = remapNode(n.Owner, subst, seen)
	cp.Basetrait = remapNode(n.Basetrait, subst, seen)
	return cp
}

func cloneNodes(b *ir.Builder, ns ir.Nodes, subst, seen map[*ir.Node]*ir.Node) ir.Nodes {
	var out ir.Nodes
	for _, c := range ns.Slice() {
		out.Append(cloneTree(b, c, subst, seen))
	}
	return out
}

// remapNode redirects a pointer that is not itself walked recursively (an
// "outward" reference such as Owner or Dclnode): if the target was itself
// cloned as part of this same walk, follow the clone; if it is explicitly
// substituted, follow the substitution; otherwise the pointer is left
// pointing at the original (it refers to something outside the cloned
// subtree, e.g. a corelib numeric type).
func remapNode(n *ir.Node, subst, seen map[*ir.Node]*ir.Node) *ir.Node {
	if n == nil {
		return nil
	}
	if r, ok := subst[n]; ok {
		return r
	}
	if c, ok := seen[n]; ok {
		return c
	}
	return n
}

// instKeyFor builds a memoization key for a generic instantiation from the
// pointer identity of its type arguments (spec.md §4.6.8: "memoizes on the
// tuple of argument types"); since every distinct type is either hash-consed
// or its own nominal declaration (spec.md §4.8), pointer identity is a valid
// key.
func instKeyFor(args []*ir.Node) string {
	key := ""
	for _, a := range args {
		key += fmt.Sprintf("%p;", a)
	}
	return key
}

// Instantiate resolves one use of a Generic declaration against explicit or
// inferred type arguments, caching the result on the generic's InstCache
// (spec.md §4.6.8). argTypes may contain nils for parameters still to be
// inferred from value-argument types by the caller before calling
// Instantiate; Instantiate itself does not infer, only clones and
// substitutes.
func (c *Checker) Instantiate(gen *ir.Node, argTypes []*ir.Node) *ir.Node {
	// A closed-enum variant generic (corelib's Some/None/Ok/Err) delegates to
	// its base generic so every variant of one instantiation shares the same
	// cloned trait family — Some[i32].Basetrait and None[i32].Basetrait must
	// be the same node for exhaustiveness checking (spec.md §4.6.10).
	if gen.Owner != nil && gen.Owner.Tag == ir.Generic {
		baseInst := c.Instantiate(gen.Owner, argTypes)
		if baseInst == nil || gen.VariantTag >= len(baseInst.Derived) {
			return nil
		}
		return baseInst.Derived[gen.VariantTag]
	}
	if gen.InstCache == nil {
		gen.InstCache = make(map[string]*ir.Node)
	}
	key := instKeyFor(argTypes)
	if cached, ok := gen.InstCache[key]; ok {
		return cached
	}
	seen := make(map[*ir.Node]*ir.Node)
	cloned := cloneTree(c.b, gen.Body, nil, seen)
	substGenVarUses(cloned, gen.GenParams, argTypes, make(map[*ir.Node]bool))
	gen.InstCache[key] = cloned
	c.checkDecl(cloned)
	return cloned
}

// substGenVarUses walks a freshly cloned subtree and mutates every GenVarUse
// leaf whose name matches one of gparams into a TypeNameUse bound to the
// corresponding concrete type argument, in place. A bound TypeNameUse (not a
// copy of the argument node itself) preserves the argument's canonical
// identity — spec.md §8 invariant 6 needs every reference to i32 to be the
// one i32 declaration, and the underlyingType unwrap used throughout
// coercion and method dispatch already sees through the wrapper. Mutating in
// place is safe only because every GenVarUse reachable from the clone was
// itself just cloned by this same Instantiate call, so no other part of the
// program can be holding a pointer to it yet.
func substGenVarUses(n *ir.Node, gparams []*ir.Node, args []*ir.Node, walked map[*ir.Node]bool) {
	if n == nil || walked[n] {
		return
	}
	walked[n] = true
	if n.Tag == ir.GenVarUse {
		for i, gp := range gparams {
			if i < len(args) && args[i] != nil && gp.NameText() == n.StringVal {
				n.Tag = ir.TypeNameUse
				n.Name = args[i].Name
				n.Dclnode = args[i]
				n.StringVal = ""
			}
		}
		return
	}
	substGenVarUses(n.Left, gparams, args, walked)
	substGenVarUses(n.Right, gparams, args, walked)
	substGenVarUses(n.Vtype, gparams, args, walked)
	substGenVarUses(n.Value, gparams, args, walked)
	substGenVarUses(n.Result, gparams, args, walked)
	substGenVarUses(n.Body, gparams, args, walked)
	for _, c := range n.Ninit.Slice() {
		substGenVarUses(c, gparams, args, walked)
	}
	for _, c := range n.Nbody.Slice() {
		substGenVarUses(c, gparams, args, walked)
	}
	for _, c := range n.List.Slice() {
		substGenVarUses(c, gparams, args, walked)
	}
	for _, c := range n.Rlist.Slice() {
		substGenVarUses(c, gparams, args, walked)
	}
	for _, p := range n.Params {
		substGenVarUses(p, gparams, args, walked)
	}
	for _, f := range n.Fields {
		substGenVarUses(f, gparams, args, walked)
	}
	for _, d := range n.Derived {
		substGenVarUses(d, gparams, args, walked)
	}
}

// inferGenericArgs infers a function generic's type parameters from the
// types of arguments already type-checked at a call site (spec.md §4.6.8.2):
// a GenVarUse inside a parameter's vtype captures the matching argument's
// vtype; nils remain where nothing captured a parameter.
func inferGenericArgs(gen *ir.Node, argTypes []*ir.Node) []*ir.Node {
	inferred := make([]*ir.Node, len(gen.GenParams))
	fn := gen.Body
	if fn == nil || fn.Tag != ir.FnDcl {
		return inferred
	}
	for i, p := range fn.Params {
		if i >= len(argTypes) {
			break
		}
		captureGenVarUse(p.Vtype, argTypes[i], gen.GenParams, inferred)
	}
	return inferred
}

// inferGenericFieldArgs infers type parameters from a struct literal's
// (already field-order-matched) argument types against the generic struct's
// field vtypes (spec.md §4.6.8.3).
func inferGenericFieldArgs(gen *ir.Node, fieldTypes []*ir.Node) []*ir.Node {
	inferred := make([]*ir.Node, len(gen.GenParams))
	base := gen.Body
	if base == nil {
		return inferred
	}
	for i, f := range base.Fields {
		if i >= len(fieldTypes) {
			break
		}
		captureGenVarUse(f.Vtype, fieldTypes[i], gen.GenParams, inferred)
	}
	return inferred
}

func captureGenVarUse(paramType, argType *ir.Node, gparams, inferred []*ir.Node) {
	if paramType == nil || argType == nil {
		return
	}
	if paramType.Tag == ir.GenVarUse {
		for i, gp := range gparams {
			if gp.NameText() == paramType.StringVal {
				if inferred[i] == nil {
					inferred[i] = argType
				}
			}
		}
		return
	}
	switch paramType.Tag {
	case ir.Ref, ir.ArrayRef, ir.VirtRef, ir.Ptr:
		captureGenVarUse(paramType.Left, stripOneRef(argType), gparams, inferred)
	case ir.Array:
		captureGenVarUse(paramType.Left, stripOneRef(argType), gparams, inferred)
	}
}

// stripOneRef peels one layer of reference/pointer/array wrapping off argType
// if its tag matches a wrapped-value shape, so a `&T` parameter matched
// against a `&Concrete` argument captures `Concrete`, not `&Concrete`.
func stripOneRef(t *ir.Node) *ir.Node {
	if t == nil {
		return nil
	}
	switch t.Tag {
	case ir.Ref, ir.ArrayRef, ir.VirtRef, ir.Ptr, ir.Array:
		return t.Left
	}
	return t
}
