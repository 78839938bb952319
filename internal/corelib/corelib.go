// Package corelib registers the built-in types every Cone module implicitly
// imports (spec.md §4.4) before any user source is parsed: permissions,
// regions, numeric primitives with their intrinsic operator methods, and
// the Option/Result generics. Grounded on
// original_source/src/c-compiler/corelib/corelib.c, which performs the same
// bootstrap: permissions first (the parser's parsePerm/parseAllocPerm look
// identifiers up against them while parsing user source), the numeric types
// and their operator methods next, the regions (whose _alloc signatures
// mention usize and *u8 and therefore need the numerics in place), and
// Option/Result last since they are expressed in terms of the earlier pieces.
package corelib

import (
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
)

// Lib holds every declaration corelib registers, keyed by name, so later
// passes (parser permission lookup, name resolution's "every module
// implicitly imports the core library" rule) can find them without a
// textual import.
type Lib struct {
	Namespace *names.Namespace
	Perms     map[string]*ir.Node
	Regions   map[string]*ir.Node
	Numerics  map[string]*ir.Node
	Option    *ir.Node
	Result    *ir.Node
}

// Bootstrap builds the core library against b, hooking every declaration
// into the name table so ordinary identifier lookup (including the
// parser's perm/region recognition, spec.md §4.2) finds them immediately.
func Bootstrap(b *ir.Builder) *Lib {
	lib := &Lib{
		Namespace: names.NewNamespace(),
		Perms:     make(map[string]*ir.Node),
		Regions:   make(map[string]*ir.Node),
		Numerics:  make(map[string]*ir.Node),
	}
	lib.addPerms(b)
	lib.addNumerics(b)
	lib.addRegions(b)
	lib.addOptionResult(b)
	return lib
}

func (lib *Lib) define(b *ir.Builder, n *ir.Node) {
	lib.Namespace.Define(n.Name, n)
	b.Names.Hook(n.Name, n)
}

// permSpec is one entry of spec.md §4.4's permission table.
type permSpec struct {
	name string
	caps ir.PermFlags
}

var permSpecs = []permSpec{
	{"uni", ir.PermRead | ir.PermWrite | ir.PermRaceSafe | ir.PermMayIntRefSum | ir.PermLockless},
	{"mut", ir.PermRead | ir.PermWrite | ir.PermAlias | ir.PermAliasWrite | ir.PermLockless},
	{"imm", ir.PermRead | ir.PermAlias | ir.PermRaceSafe | ir.PermMayIntRefSum | ir.PermLockless},
	{"ro", ir.PermRead | ir.PermAlias | ir.PermLockless},
	{"mut1", ir.PermRead | ir.PermWrite | ir.PermAlias | ir.PermMayIntRefSum | ir.PermLockless},
	{"opaq", ir.PermAlias | ir.PermRaceSafe | ir.PermLockless},
}

func (lib *Lib) addPerms(b *ir.Builder) {
	for _, spec := range permSpecs {
		n := b.NewNamed(ir.Perm, ir.Loc{File: "<corelib>"}, spec.name)
		n.PermCaps = spec.caps
		lib.Perms[spec.name] = n
		lib.define(b, n)
	}
}

// addRegions registers `so` (single-owner, move-only) and `rc`
// (reference-counted) as alloc-capable nodes carrying a `_alloc(size usize)
// *u8` method (spec.md §4.4). The method bodies are Intrinsic value-nodes:
// the region's actual allocation strategy is a code-generator concern, out of
// scope here (spec.md §1).
func (lib *Lib) addRegions(b *ir.Builder) {
	usize := lib.Numerics["usize"]
	for _, name := range []string{"so", "rc"} {
		n := b.NewNamed(ir.Region, ir.Loc{File: "<corelib>"}, name)
		n.Namespace = names.NewNamespace()
		alloc := b.NewNamed(ir.FnDcl, ir.Loc{File: "<corelib>"}, "_alloc")
		alloc.Owner = n
		alloc.Result = b.Ptr(ir.Loc{File: "<corelib>"}, lib.Numerics["u8"])
		sizeParm := b.NewNamed(ir.VarDcl, ir.Loc{File: "<corelib>"}, "size")
		sizeParm.Vtype = usize
		alloc.Params = []*ir.Node{sizeParm}
		alloc.Body = intrinsic(b, "region."+name+"._alloc")
		n.Namespace.Define(alloc.Name, alloc)
		lib.Regions[name] = n
		lib.define(b, n)
	}
}

// intrinsic wraps a builtin operation as an Intrinsic value-node, the
// placeholder spec.md §4.4 uses for operator/method bodies that the code
// generator (out of scope here) implements directly rather than from
// Cone-level statements.
func intrinsic(b *ir.Builder, opName string) *ir.Node {
	n := b.New(ir.Intrinsic, ir.Loc{File: "<corelib>"})
	n.StringVal = opName
	return n
}

var intWidths = []struct {
	name   string
	bits   int
	signed bool
}{
	{"i8", 8, true}, {"i16", 16, true}, {"i32", 32, true}, {"i64", 64, true},
	{"u8", 8, false}, {"u16", 16, false}, {"u32", 32, false}, {"u64", 64, false},
	{"isize", 64, true}, {"usize", 64, false}, // target pointer size; fixed at 64 for this front-end
}

var floatWidths = []int{32, 64}

// opSpec is one intrinsic operator method: its interned spelling, whether it
// takes a right-hand operand besides self, and whether it compares (result
// bool) rather than computes (result = the owning type).
type opSpec struct {
	name   string
	binary bool
	cmp    bool
}

// intOps is the fixed operator/intrinsic suite every integer type receives
// (spec.md §4.4): arithmetic, comparison, bitwise/shift, unary negation and
// complement, postfix increment/decrement.
var intOps = []opSpec{
	{"+", true, false}, {"-", true, false}, {"*", true, false}, {"/", true, false}, {"%", true, false},
	{"&", true, false}, {"|", true, false}, {"^", true, false}, {"<<", true, false}, {">>", true, false},
	{"==", true, true}, {"!=", true, true}, {"<", true, true}, {"<=", true, true}, {">", true, true}, {">=", true, true},
	{"neg", false, false}, {"~", false, false}, {"_++", false, false}, {"_--", false, false},
}

var floatOps = []opSpec{
	{"+", true, false}, {"-", true, false}, {"*", true, false}, {"/", true, false},
	{"==", true, true}, {"!=", true, true}, {"<", true, true}, {"<=", true, true}, {">", true, true}, {">=", true, true},
	{"neg", false, false}, {"sqrt", false, false}, {"sin", false, false}, {"cos", false, false},
}

var boolOps = []opSpec{
	{"==", true, true}, {"!=", true, true}, {"!", false, false},
}

func (lib *Lib) addNumerics(b *ir.Builder) {
	boolTy := b.NewNamed(ir.UintNbr, ir.Loc{File: "<corelib>"}, "bool")
	boolTy.Count = 1
	boolTy.Namespace = names.NewNamespace()
	addIntrinsicMethods(b, boolTy, boolOps, boolTy)
	lib.Numerics["bool"] = boolTy
	lib.define(b, boolTy)
	for _, w := range intWidths {
		tag := ir.IntNbr
		if !w.signed {
			tag = ir.UintNbr
		}
		n := b.NewNamed(tag, ir.Loc{File: "<corelib>"}, w.name)
		n.Count = int64(w.bits)
		n.Namespace = names.NewNamespace()
		addIntrinsicMethods(b, n, intOps, boolTy)
		lib.Numerics[w.name] = n
		lib.define(b, n)
	}
	for _, bits := range floatWidths {
		name := map[int]string{32: "f32", 64: "f64"}[bits]
		n := b.NewNamed(ir.FloatNbr, ir.Loc{File: "<corelib>"}, name)
		n.Count = int64(bits)
		n.Namespace = names.NewNamespace()
		addIntrinsicMethods(b, n, floatOps, boolTy)
		lib.Numerics[name] = n
		lib.define(b, n)
	}
}

// addIntrinsicMethods registers one FnDcl per operator on owner, each with a
// real signature (self, plus a same-typed right operand for binary ops;
// result bool for comparisons, owner otherwise) so overload scoring and
// result typing (spec.md §4.6.3) treat intrinsics exactly like source-level
// methods.
func addIntrinsicMethods(b *ir.Builder, owner *ir.Node, ops []opSpec, boolTy *ir.Node) {
	loc := ir.Loc{File: "<corelib>"}
	for _, op := range ops {
		fn := b.NewNamed(ir.FnDcl, loc, op.name)
		fn.Owner = owner
		self := b.NewNamed(ir.VarDcl, loc, "self")
		self.Vtype = owner
		fn.Params = []*ir.Node{self}
		if op.binary {
			rhs := b.NewNamed(ir.VarDcl, loc, "rhs")
			rhs.Vtype = owner
			fn.Params = append(fn.Params, rhs)
		}
		fn.Result = owner
		if op.cmp {
			fn.Result = boolTy
		}
		fn.Body = intrinsic(b, owner.NameText()+"."+op.name)
		owner.Namespace.Define(fn.Name, fn)
	}
}

// RefIntrinOps is the intrinsic method suite for Ref/Ptr/ArrayRef (spec.md
// §4.4): pointer arithmetic, pointer compare, pointer-difference (scaled by
// element size, returning usize), and array-ref element count. Ref/Ptr/
// ArrayRef are structural (hash-consed per instantiation, not nominal
// declarations), so there is no single owner Namespace to register these
// against at bootstrap time; the type-check pass looks these op names up by
// tag directly (internal/sema/methcall.go's checkRefIntrinOp) instead.
var RefIntrinOps = []string{"+", "-", "+=", "-=", "_++", "_--", "==", "!=", "diff", "count"}

// addOptionResult registers Option[T] (Some[T]{value T}, None) and
// Result[T,E] as generics over a closed SameSize|TraitType base (spec.md
// §4.4). Each variant is additionally registered as its own Generic so a
// bare `Some[i32]` use resolves without naming Option; variant generics
// delegate instantiation to their base (internal/sema/generics.go) so
// `Some[i32]` and `None[i32]` share one memoized Option[i32] family.
func (lib *Lib) addOptionResult(b *ir.Builder) {
	var optVariants, resVariants []*ir.Node
	lib.Option, optVariants = buildClosedEnumGeneric(b, "Option", []string{"T"},
		[]variantSpec{{"Some", []fieldSpec{{"value", "T"}}}, {"None", nil}})
	lib.Result, resVariants = buildClosedEnumGeneric(b, "Result", []string{"T", "E"},
		[]variantSpec{{"Ok", []fieldSpec{{"value", "T"}}}, {"Err", []fieldSpec{{"error", "E"}}}})
	lib.define(b, lib.Option)
	lib.define(b, lib.Result)
	for _, vg := range optVariants {
		lib.define(b, vg)
	}
	for _, vg := range resVariants {
		lib.define(b, vg)
	}
}

type fieldSpec struct {
	name  string
	gparm string
}

type variantSpec struct {
	name   string
	fields []fieldSpec
}

// buildClosedEnumGeneric constructs a Generic node wrapping a closed trait
// (the base) plus one derived Struct per variant, matching spec.md §4.4 and
// §3's closed-trait tag-assignment invariant (monotonically increasing tag
// numbers starting at 0, all derived structs declared alongside the trait).
// The second result is one Generic per variant, each carrying Owner = the
// base generic and VariantTag = its slot, the shape Instantiate's variant
// delegation keys off.
func buildClosedEnumGeneric(b *ir.Builder, name string, gparmNames []string, variants []variantSpec) (*ir.Node, []*ir.Node) {
	loc := ir.Loc{File: "<corelib>"}
	base := b.NewNamed(ir.Struct, loc, name)
	base.Flag |= ir.FlagTraitType | ir.FlagSameSize
	base.Namespace = names.NewNamespace()

	gparms := make([]*ir.Node, len(gparmNames))
	for i, gn := range gparmNames {
		gparms[i] = b.NewNamed(ir.GenVarDcl, loc, gn)
	}

	for i, v := range variants {
		variant := b.NewNamed(ir.Struct, loc, v.name)
		variant.Basetrait = base
		variant.VariantTag = i
		variant.Namespace = names.NewNamespace()
		for _, f := range v.fields {
			fld := b.NewNamed(ir.FieldDcl, loc, f.name)
			fld.Owner = variant
			fld.Vtype = genVarUse(b, gparmNames, f.gparm)
			variant.Fields = append(variant.Fields, fld)
			variant.Namespace.Define(fld.Name, fld)
		}
		base.Derived = append(base.Derived, variant)
		base.Namespace.Define(variant.Name, variant)
	}

	gen := b.NewNamed(ir.Generic, loc, name)
	gen.GenParams = gparms
	gen.Body = base

	variantGens := make([]*ir.Node, len(base.Derived))
	for i, d := range base.Derived {
		vg := b.NewNamed(ir.Generic, loc, d.NameText())
		vg.GenParams = gparms
		vg.Owner = gen
		vg.VariantTag = i
		vg.Body = d
		variantGens[i] = vg
	}
	return gen, variantGens
}

// genVarUse returns a GenVarUse node for gparmName if it is one of the
// generic's own parameters (resolved against gparmNames by text, since the
// actual GenVarDcl nodes aren't threaded through this helper), or nil if the
// field has no declared type (e.g. a zero-field variant).
func genVarUse(b *ir.Builder, gparmNames []string, gparmName string) *ir.Node {
	if gparmName == "" {
		return nil
	}
	for _, gn := range gparmNames {
		if gn == gparmName {
			n := b.New(ir.GenVarUse, ir.Loc{File: "<corelib>"})
			n.StringVal = gparmName
			return n
		}
	}
	return nil
}
