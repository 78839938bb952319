package sema

import "cone-lang.dev/conec/internal/ir"

// coerceKind classifies the outcome of attempting to coerce one vtype to
// another (spec.md §4.6.1's coercion table).
type coerceKind int

const (
	coerceNone coerceKind = iota
	coerceEqMatch
	coerceConvert     // integer widening, integer-to-float, or bool test: insert a Cast
	coerceConvSubtype // ref->virtref, arrayref->ptr, struct->trait, etc: insert a Cast
)

// coerceResult is what a successful coercion produces: whether a Cast needs
// wrapping around the expression and what vtype the result carries.
type coerceResult struct {
	kind  coerceKind
	vtype *ir.Node
}

// coerce decides whether from can flow into a to-typed context, per spec.md
// §4.6.1's table. The only change it makes to the expression is retyping an
// untyped literal (integer, float, or nil) in place to the target type;
// callers (typecheck.go) wrap the expression in a Cast node when
// kind != coerceEqMatch.
func (c *Checker) coerce(expr *ir.Node, from, to *ir.Node) coerceResult {
	from = underlyingType(from)
	to = underlyingType(to)
	if from == nil || to == nil {
		return coerceResult{coerceNone, nil}
	}
	if from == to {
		return coerceResult{coerceEqMatch, to}
	}
	if expr != nil && expr.Tag == ir.UIntLit && isNumeric(to) {
		expr.Vtype = to
		return coerceResult{coerceEqMatch, to}
	}
	if expr != nil && expr.Tag == ir.FloatLit && isFloat(to) {
		expr.Vtype = to
		return coerceResult{coerceEqMatch, to}
	}
	if isInt(from) && isInt(to) && sameSignedness(from, to) && width(to) >= width(from) {
		return coerceResult{coerceConvert, to}
	}
	if (isInt(from) || isUint(from)) && isFloat(to) {
		return coerceResult{coerceConvert, to}
	}
	if isNumeric(from) && isBool(to) {
		return coerceResult{coerceConvert, to}
	}
	if from.Tag == ir.Ref && to.Tag == ir.Ref {
		// A reference whose target is a (non-same-size) trait is a virtual
		// reference in disguise: `&T` for trait T means a fat pointer, so a
		// concrete `&S` flowing into it builds S's impl and coerces to the
		// canonical VirtRef (spec.md §4.6.2, §4.6.7).
		if toElem := underlyingType(to.Left); toElem != nil && toElem.Tag == ir.Struct &&
			toElem.Flag.Has(ir.FlagTraitType) && !toElem.Flag.Has(ir.FlagSameSize) {
			if c.canBuildVtableImpl(underlyingType(from.Left), toElem) {
				virt := c.b.VirtRef(to.Loc, to.Region, to.Perm, toElem)
				return coerceResult{coerceConvSubtype, virt}
			}
			return coerceResult{coerceNone, nil}
		}
		if r := c.refSubtype(from, to); r.kind != coerceNone {
			return r
		}
	}
	if from.Tag == ir.Ref && to.Tag == ir.VirtRef {
		if c.canBuildVtableImpl(underlyingType(from.Left), underlyingType(to.Left)) {
			return coerceResult{coerceConvSubtype, to}
		}
	}
	if from.Tag == ir.ArrayRef && to.Tag == ir.Ptr {
		return coerceResult{coerceConvSubtype, to}
	}
	if from.Tag == ir.Ref && from.Left != nil && from.Left.Tag == ir.Array && to.Tag == ir.ArrayRef {
		return coerceResult{coerceConvSubtype, to}
	}
	if expr != nil && (expr.Tag == ir.NilLit || expr.Tag == ir.NullLit) && (to.Tag == ir.Ref || to.Tag == ir.Ptr) && to.Flag.Has(ir.FlagNullable) {
		expr.Vtype = to
		return coerceResult{coerceEqMatch, to}
	}
	if from.Tag == ir.Struct && to.Tag == ir.Struct && to.Flag.Has(ir.FlagTraitType) && to.Flag.Has(ir.FlagSameSize) {
		if isDerivedOf(from, to) {
			return coerceResult{coerceConvSubtype, to}
		}
	}
	return coerceResult{coerceNone, nil}
}

// refSubtype implements spec.md §4.6.2's region/permission/value-type
// variance table for ref->ref coercion.
func (c *Checker) refSubtype(from, to *ir.Node) coerceResult {
	if !c.regionCoercible(from.Region, to.Region) {
		return coerceResult{coerceNone, nil}
	}
	if !c.permCoercible(from.Perm, to.Perm) {
		return coerceResult{coerceNone, nil}
	}
	fromElem, toElem := underlyingType(from.Left), underlyingType(to.Left)
	switch valueVariance(to.Perm) {
	case varianceCovariant:
		if fromElem == toElem || c.coerce(nil, fromElem, toElem).kind != coerceNone {
			return coerceResult{coerceConvSubtype, to}
		}
	case varianceContravariant:
		if toElem == fromElem || c.coerce(nil, toElem, fromElem).kind != coerceNone {
			return coerceResult{coerceConvSubtype, to}
		}
	default: // invariant
		if fromElem == toElem {
			return coerceResult{coerceEqMatch, to}
		}
	}
	return coerceResult{coerceNone, nil}
}

// regionCoercible: identity, plus any region may downgrade to a `borrow`
// (spec.md §4.6.2).
func (c *Checker) regionCoercible(from, to *ir.Node) bool {
	if from == to {
		return true
	}
	// A borrow is represented by a nil region (parseAllocPerm, typecheck's
	// `&x`), or by an explicit lifetime.
	return to == nil || to.Tag == ir.Lifetime
}

// permCoercible: identity, plus `uni -> {imm,mut,const,mut1}` and
// `{mut,imm,mut1} -> const` (spec.md §4.6.2). "const" is spelled `ro` in
// this front-end's permission table (the four explicit names plus mut1;
// ro is the read-only/"const" permission).
func (c *Checker) permCoercible(from, to *ir.Node) bool {
	if from == to {
		return true
	}
	if from == nil || to == nil {
		return false
	}
	fn, tn := from.NameText(), to.NameText()
	if fn == "uni" && (tn == "imm" || tn == "mut" || tn == "ro" || tn == "mut1") {
		return true
	}
	if (fn == "mut" || fn == "imm" || fn == "mut1") && tn == "ro" {
		return true
	}
	return false
}

type variance int

const (
	varianceInvariant variance = iota
	varianceCovariant
	varianceContravariant
)

// valueVariance reports value-type variance for a reference carrying perm,
// per spec.md §4.6.2: read-only permission is covariant, write-only is
// contravariant, read-write is invariant.
func valueVariance(perm *ir.Node) variance {
	if perm == nil {
		return varianceInvariant
	}
	canRead := perm.PermCaps.Has(ir.PermRead)
	canWrite := perm.PermCaps.Has(ir.PermWrite)
	switch {
	case canRead && !canWrite:
		return varianceCovariant
	case canWrite && !canRead:
		return varianceContravariant
	default:
		return varianceInvariant
	}
}

func isDerivedOf(variant, base *ir.Node) bool {
	for _, d := range base.Derived {
		if d == variant {
			return true
		}
	}
	return false
}

func isNumeric(t *ir.Node) bool {
	return t != nil && (t.Tag == ir.IntNbr || t.Tag == ir.UintNbr || t.Tag == ir.FloatNbr)
}
func isInt(t *ir.Node) bool   { return t != nil && (t.Tag == ir.IntNbr || t.Tag == ir.UintNbr) }
func isUint(t *ir.Node) bool  { return t != nil && t.Tag == ir.UintNbr }
func isFloat(t *ir.Node) bool { return t != nil && t.Tag == ir.FloatNbr }
func isBool(t *ir.Node) bool  { return t != nil && t.Tag == ir.UintNbr && t.NameText() == "bool" }

func sameSignedness(a, b *ir.Node) bool { return a.Tag == b.Tag }
func width(t *ir.Node) int64            { return t.Count }
