package sema

import (
	"strings"
	"testing"

	"cone-lang.dev/conec/internal/corelib"
	"cone-lang.dev/conec/internal/diag"
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
	"cone-lang.dev/conec/internal/parser"
)

// pipeline runs parse -> resolve -> type-check -> data-flow over a single
// source string, the same order cmd/conec's driver uses, and returns the
// parsed module plus the diagnostics collected across every stage that ran.
func pipeline(t *testing.T, src string) (*ir.Node, *diag.Bag) {
	t.Helper()
	var sb strings.Builder
	errs := diag.NewBag(&sb)
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)
	p := parser.New("t.cone", src, b, lib, errs)
	mod := p.ParseModule("t")
	mods := []*ir.Node{mod}
	if errs.HasErrors() {
		return mod, errs
	}
	Resolve(b, lib, errs, mods)
	if errs.HasErrors() {
		return mod, errs
	}
	TypeCheck(b, lib, errs, mods)
	if errs.HasErrors() {
		return mod, errs
	}
	DataFlow(b, lib, errs, mods)
	if errs.HasErrors() {
		t.Logf("diagnostics:\n%s", sb.String())
	}
	return mod, errs
}

func findDecl(mod *ir.Node, name string) *ir.Node {
	for _, d := range mod.Decls {
		if d.NameText() == name {
			return d
		}
	}
	return nil
}

func TestArithmeticExpressionChecksCleanEndToEnd(t *testing.T) {
	mod, errs := pipeline(t, "fn main() i32 { return 2 + 3 * 4 }")
	if errs.HasErrors() {
		t.Fatalf("unexpected diagnostics (%d errors)", errs.ErrorCount())
	}
	fn := findDecl(mod, "main")
	ret := fn.Nbody.Slice()[0]
	if ret.Left.Vtype == nil || ret.Left.Vtype.NameText() != "i32" {
		t.Fatalf("return expr vtype = %v, want i32", ret.Left.Vtype)
	}
}

func TestUnknownNameIsBindingError(t *testing.T) {
	_, errs := pipeline(t, "fn main() i32 { return undefinedName }")
	if !errs.HasErrors() {
		t.Fatalf("expected a binding error for an undefined name")
	}
}

func TestFieldAccessRewritesToSelfCall(t *testing.T) {
	mod, errs := pipeline(t, `struct S { n i32
fn getN(self) i32 { return n }
}`)
	if errs.HasErrors() {
		t.Fatalf("unexpected diagnostics (%d errors)", errs.ErrorCount())
	}
	s := findDecl(mod, "S")
	var getN *ir.Node
	s.Namespace.Each(func(nm *names.Name, decl names.Decl) {
		if nm.Text == "getN" {
			getN = decl.(*ir.Node)
		}
	})
	if getN == nil {
		t.Fatalf("method getN not found")
	}
	ret := getN.Nbody.Slice()[0]
	// Resolve rewrites `n` to a field call on self; type-check lowers that
	// call to a FldAccess whose Left is still self.
	if ret.Left.Tag != ir.FldAccess || ret.Left.Left == nil || ret.Left.Left.NameText() != "self" {
		t.Fatalf("bare field reference %q was not rewritten to self.n: %+v", "n", ret.Left)
	}
}

func TestUseBeforeInitIsDataFlowError(t *testing.T) {
	_, errs := pipeline(t, `fn main() i32 {
	a i32
	return a
}`)
	if !errs.HasErrors() {
		t.Fatalf("expected a use-before-initialization data-flow error")
	}
}

func TestNumericWideningCoerces(t *testing.T) {
	_, errs := pipeline(t, `fn takesI64(x i64) {}
fn main() { takesI64(1) }`)
	if errs.HasErrors() {
		t.Fatalf("unexpected diagnostics widening an i32 literal to i64 (%d errors)", errs.ErrorCount())
	}
}

func TestMismatchedArgumentTypeIsTypingError(t *testing.T) {
	_, errs := pipeline(t, `fn takesF64(x f64) {}
fn main() { takesF64("nope") }`)
	if !errs.HasErrors() {
		t.Fatalf("expected a typing error passing a string literal where f64 is expected")
	}
}

func TestDefaultParamFillsTrailingOmittedArg(t *testing.T) {
	mod, errs := pipeline(t, `fn greet(times i32 = 1) i32 { return times }
fn main() i32 { return greet() }`)
	if errs.HasErrors() {
		t.Fatalf("unexpected diagnostics (%d errors)", errs.ErrorCount())
	}
	main := findDecl(mod, "main")
	ret := main.Nbody.Slice()[0]
	call := ret.Left
	if call.Rlist.Len() != 1 {
		t.Fatalf("call to greet() was not filled with its default argument: %d args", call.Rlist.Len())
	}
}

func TestGenericOptionLiteralMemoizesInstance(t *testing.T) {
	mod, errs := pipeline(t, `fn f(x i32) {
	let o = Some[i32]{x}
	if o is Some[i32] {
		return
	}
}`)
	if errs.HasErrors() {
		t.Fatalf("unexpected diagnostics (%d errors)", errs.ErrorCount())
	}
	fn := findDecl(mod, "f")
	oDecl := fn.Nbody.Slice()[0]
	inst := underlyingType(oDecl.Vtype)
	if inst == nil || inst.Tag != ir.Struct || inst.Basetrait == nil {
		t.Fatalf("o's type is not an instantiated Option variant: %+v", inst)
	}
	if len(inst.Basetrait.Derived) != 2 {
		t.Fatalf("Some[i32]'s base has %d variants, want 2", len(inst.Basetrait.Derived))
	}
	ifStmt := fn.Nbody.Slice()[1]
	cond := ifStmt.List.Slice()[0]
	if underlyingType(cond.Right) != inst {
		t.Fatalf("the `is Some[i32]` test did not reuse the memoized instance")
	}
	if ifStmt.Flag.Has(ir.FlagExhaustive) {
		t.Fatalf("a single-variant test over a two-variant base must not be exhaustive")
	}
}

func TestClosedVariantMatchBecomesExhaustive(t *testing.T) {
	mod, errs := pipeline(t, `fn f(x i32) {
	let o = Some[i32]{x}
	match o {
	case is Some[i32]: x
	case is None[i32]: x
	}
}`)
	if errs.HasErrors() {
		t.Fatalf("unexpected diagnostics (%d errors)", errs.ErrorCount())
	}
	fn := findDecl(mod, "f")
	matchBlk := fn.Nbody.Slice()[1]
	if matchBlk.Tag != ir.Block || matchBlk.Nbody.Len() != 2 {
		t.Fatalf("match did not desugar to a scrutinee-binding block: %+v", matchBlk)
	}
	head := matchBlk.Nbody.Slice()[1]
	if head.Tag != ir.If || !head.Flag.Has(ir.FlagExhaustive) {
		t.Fatalf("complete variant coverage was not marked exhaustive: %+v", head)
	}
	if head.Right == nil || head.Right.Tag != ir.Block {
		t.Fatalf("last arm was not rewritten to the else-sentinel: %+v", head.Right)
	}
}

func TestVtableCoercionBuildsTraitImpl(t *testing.T) {
	mod, errs := pipeline(t, `trait T {
	fn m(self &) i32
}
struct S {
	n i32
	fn m(self &) i32 { return self.n }
}
fn u(r &T) i32 { return r.m() }
fn main() i32 {
	let s = S{3}
	return u(&s)
}`)
	if errs.HasErrors() {
		t.Fatalf("unexpected diagnostics (%d errors)", errs.ErrorCount())
	}
	trait := findDecl(mod, "T")
	if trait.Vtable == nil || len(trait.Vtable.Entries) != 1 {
		t.Fatalf("T's vtable was not built with one entry: %+v", trait.Vtable)
	}
	s := findDecl(mod, "S")
	impl, ok := s.ImplCache[trait]
	if !ok || !impl.Complete() {
		t.Fatalf("S -> T impl was not built/complete: %+v", impl)
	}
}

func TestCompoundAssignLowersToUnderlyingOp(t *testing.T) {
	mod, errs := pipeline(t, `fn f() i32 {
	mut x i32 = 1
	x += 2
	return x
}`)
	if errs.HasErrors() {
		t.Fatalf("unexpected diagnostics (%d errors)", errs.ErrorCount())
	}
	fn := findDecl(mod, "f")
	call := fn.Nbody.Slice()[1]
	if call.Tag != ir.FnCall || call.Objfn == nil || call.Objfn.Dclnode.NameText() != "+" {
		t.Fatalf("x += 2 did not lower to i32's + method: %+v", call)
	}
	if !call.Flag.Has(ir.FlagLvalOp) {
		t.Fatalf("lowered compound assign lost FlagLvalOp (flow needs it for the store check)")
	}
}

func TestMoveMakesSourceUnusable(t *testing.T) {
	_, errs := pipeline(t, `struct X { v i32 }
fn g(a &uni X) {
	let b = a
	let c = a
}`)
	if !errs.HasErrors() {
		t.Fatalf("expected a use-after-move error on the second use of a")
	}
}

func TestBorrowMayNotOutliveReferent(t *testing.T) {
	_, errs := pipeline(t, `struct X { v i32 }
fn h() {
	mut outer &X
	{
	let inner X = X{1}
	outer = &inner
	}
}`)
	if !errs.HasErrors() {
		t.Fatalf("expected a borrow-outlives-referent error")
	}
}

func TestMacroExpandsAtEachUse(t *testing.T) {
	mod, errs := pipeline(t, `macro twice(v) { v + v }
fn main() i32 { return twice(4) }`)
	if errs.HasErrors() {
		t.Fatalf("unexpected diagnostics (%d errors)", errs.ErrorCount())
	}
	fn := findDecl(mod, "main")
	ret := fn.Nbody.Slice()[0]
	if ret.Left.Tag != ir.Block {
		t.Fatalf("macro call was not expanded into its body block: %+v", ret.Left)
	}
	if ret.Left.Vtype == nil || ret.Left.Vtype.NameText() != "i32" {
		t.Fatalf("expanded macro body's value type = %v, want i32", ret.Left.Vtype)
	}
}
