package sema

import (
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
)

// buildVtable lazily computes trait's virtual dispatch layout (spec.md
// §4.6.7): every public (non `_`-prefixed) method and field, in declaration
// order, each assigned the next slot index. Cached on trait.Vtable so a
// trait used as a VirtRef target from many call sites is only walked once.
func (c *Checker) buildVtable(trait *ir.Node) *ir.Vtable {
	if trait.Vtable != nil {
		return trait.Vtable
	}
	vt := &ir.Vtable{Trait: trait}
	if trait.Namespace != nil {
		trait.Namespace.Each(func(_ *names.Name, decl names.Decl) {
			m, ok := decl.(*ir.Node)
			if !ok {
				return
			}
			if m.Tag != ir.FnDcl && m.Tag != ir.FieldDcl {
				return
			}
			if len(m.NameText()) > 0 && m.NameText()[0] == '_' {
				return
			}
			vt.Entries = append(vt.Entries, ir.VtableEntry{Name: m, Index: len(vt.Entries)})
		})
	}
	trait.Vtable = vt
	return vt
}

// buildVtableImpl maps structType's members onto trait's vtable slots
// (spec.md §4.6.7), caching the result on structType.ImplCache so repeated
// ref->virtref coercions for the same pair don't rebuild it.
func (c *Checker) buildVtableImpl(structType, trait *ir.Node) *ir.VtableImpl {
	if structType.ImplCache == nil {
		structType.ImplCache = make(map[*ir.Node]*ir.VtableImpl)
	}
	if impl, ok := structType.ImplCache[trait]; ok {
		return impl
	}
	vt := c.buildVtable(trait)
	impl := &ir.VtableImpl{Trait: trait, Struct: structType, Members: make([]*ir.Node, len(vt.Entries))}
	for i, e := range vt.Entries {
		if m, ok := lookupNamespace(structType, e.Name.Name); ok && m.Tag == e.Name.Tag && vrefCompatible(e.Name, m) {
			impl.Members[i] = m
		}
	}
	structType.ImplCache[trait] = impl
	return impl
}

// vrefCompatible reports whether a concrete member can fill a trait's vtable
// slot (spec.md §4.6.7): fields need an identical type; methods need the
// same arity and identical non-self parameter and result types (the self
// parameter necessarily differs — it is the concrete struct on one side and
// the trait on the other).
func vrefCompatible(want, got *ir.Node) bool {
	if want.Tag == ir.FieldDcl {
		return vrefTypesMatch(want.Vtype, got.Vtype)
	}
	if len(want.Params) != len(got.Params) {
		return false
	}
	for i := 1; i < len(want.Params); i++ {
		if !vrefTypesMatch(want.Params[i].Vtype, got.Params[i].Vtype) {
			return false
		}
	}
	return vrefTypesMatch(want.Result, got.Result)
}

// vrefTypesMatch compares two type annotations through their TypeNameUse
// wrappers: identical underlying declarations match, as do references that
// agree on region/permission and match on their value types.
func vrefTypesMatch(a, b *ir.Node) bool {
	ua, ub := underlyingType(a), underlyingType(b)
	if ua == ub {
		return true
	}
	if ua == nil || ub == nil || ua.Tag != ub.Tag {
		return false
	}
	switch ua.Tag {
	case ir.Void:
		return true
	case ir.Ref, ir.ArrayRef, ir.VirtRef:
		return ua.Region == ub.Region && ua.Perm == ub.Perm && vrefTypesMatch(ua.Left, ub.Left)
	case ir.Ptr:
		return vrefTypesMatch(ua.Left, ub.Left)
	}
	return false
}

// canBuildVtableImpl reports whether structType can satisfy every slot of
// trait's vtable (spec.md §4.6.1's ref->virtref coercion precondition),
// building and caching the impl as a side effect so a subsequent lowering
// pass reuses it instead of recomputing.
func (c *Checker) canBuildVtableImpl(structType, trait *ir.Node) bool {
	if structType == nil || trait == nil || structType.Tag != ir.Struct {
		return false
	}
	if !trait.Flag.Has(ir.FlagTraitType) {
		return false
	}
	return c.buildVtableImpl(structType, trait).Complete()
}
