package sema

import (
	"strings"
	"testing"

	"cone-lang.dev/conec/internal/corelib"
	"cone-lang.dev/conec/internal/diag"
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
)

// moveRefType builds a &so uni i32 type, the simplest shape build.go's
// inferRefFlags marks FlagMoveType on (region "so"), matching the move-typed
// reference spec.md §4.7's move rule keys off.
func moveRefType(b *ir.Builder) *ir.Node {
	i32 := b.NewNamed(ir.IntNbr, ir.Loc{}, "i32")
	so := b.NewNamed(ir.Region, ir.Loc{}, "so")
	uni := b.NewNamed(ir.Perm, ir.Loc{}, "uni")
	uni.PermCaps = ir.PermRead | ir.PermWrite | ir.PermRaceSafe
	return b.Ref(ir.Loc{}, so, uni, i32)
}

// TestMoveAfterMoveIsFlowError builds the IR by hand, exercising data-flow
// alone: a move-typed variable, a second variable initialized from it
// (which moves it), then a second use of the original.
func TestMoveAfterMoveIsFlowError(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)
	var sb strings.Builder
	errs := diag.NewBag(&sb)

	mrt := moveRefType(b)
	fn := b.NewNamed(ir.FnDcl, ir.Loc{}, "main")

	a := b.NewNamed(ir.VarDcl, ir.Loc{}, "a")
	a.Vtype = mrt
	a.Value = b.New(ir.UIntLit, ir.Loc{}) // any non-nil initializer marks a initialized

	bDecl := b.NewNamed(ir.VarDcl, ir.Loc{}, "b")
	bDecl.Vtype = mrt
	aUse1 := b.NewNamed(ir.VarNameUse, ir.Loc{}, "a")
	aUse1.Dclnode = a
	aUse1.Vtype = mrt
	bDecl.Value = aUse1

	aUse2 := b.NewNamed(ir.VarNameUse, ir.Loc{}, "a")
	aUse2.Dclnode = a
	aUse2.Vtype = mrt

	fn.Nbody.Append(a, bDecl, aUse2)

	mod := b.NewNamed(ir.Module, ir.Loc{}, "t")
	mod.Decls = []*ir.Node{fn}

	DataFlow(b, lib, errs, []*ir.Node{mod})
	if !errs.HasErrors() {
		t.Fatalf("expected a use-after-move error for the second use of a")
	}
	if !strings.Contains(sb.String(), "after it was moved") {
		t.Fatalf("diagnostic text missing move-after-move wording: %q", sb.String())
	}
}

// TestDealiasListExcludesMovedAndReturnedVars checks spec.md §4.7's
// terminating-statement dealias list: a moved-out variable and the variable
// directly returned are both excluded, leaving only the untouched one.
func TestDealiasListExcludesMovedAndReturnedVars(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)
	var sb strings.Builder
	errs := diag.NewBag(&sb)

	mrt := moveRefType(b)
	fn := b.NewNamed(ir.FnDcl, ir.Loc{}, "main")
	fn.Result = mrt

	a := b.NewNamed(ir.VarDcl, ir.Loc{}, "a") // moved into b, excluded
	a.Vtype = mrt
	a.Value = b.New(ir.UIntLit, ir.Loc{})

	bDecl := b.NewNamed(ir.VarDcl, ir.Loc{}, "b") // returned, excluded
	bDecl.Vtype = mrt
	aUse := b.NewNamed(ir.VarNameUse, ir.Loc{}, "a")
	aUse.Dclnode = a
	aUse.Vtype = mrt
	bDecl.Value = aUse

	c := b.NewNamed(ir.VarDcl, ir.Loc{}, "c") // untouched, must dealias
	c.Vtype = mrt
	c.Value = b.New(ir.UIntLit, ir.Loc{})

	ret := b.New(ir.Return, ir.Loc{})
	bUse := b.NewNamed(ir.VarNameUse, ir.Loc{}, "b")
	bUse.Dclnode = bDecl
	bUse.Vtype = mrt
	ret.Left = bUse

	fn.Nbody.Append(a, bDecl, c, ret)

	mod := b.NewNamed(ir.Module, ir.Loc{}, "t")
	mod.Decls = []*ir.Node{fn}

	DataFlow(b, lib, errs, []*ir.Node{mod})
	if errs.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", sb.String())
	}
	if ret.List.Len() != 1 || ret.List.Slice()[0] != c {
		t.Fatalf("dealias list = %+v, want exactly [c]", ret.List.Slice())
	}
}

// TestBorrowOutlivingReferentIsFlowError builds spec.md §8 scenario 4
// directly: a borrow taken from a variable declared in a nested (deeper)
// scope assigned to a name bound in an outer (shallower) scope.
func TestBorrowOutlivingReferentIsFlowError(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)
	var sb strings.Builder
	errs := diag.NewBag(&sb)

	i32 := b.NewNamed(ir.IntNbr, ir.Loc{}, "i32")
	mut := b.NewNamed(ir.Perm, ir.Loc{}, "mut")
	mut.PermCaps = ir.PermRead | ir.PermWrite | ir.PermAlias | ir.PermAliasWrite
	borrowTy := b.Ref(ir.Loc{}, nil, mut, i32)

	fn := b.NewNamed(ir.FnDcl, ir.Loc{}, "main")
	outer := b.NewNamed(ir.VarDcl, ir.Loc{}, "outer")
	outer.Vtype = borrowTy

	inner := b.NewNamed(ir.VarDcl, ir.Loc{}, "inner")
	inner.Vtype = i32
	inner.Value = b.New(ir.UIntLit, ir.Loc{})

	innerUse := b.NewNamed(ir.VarNameUse, ir.Loc{}, "inner")
	innerUse.Dclnode = inner
	innerUse.Vtype = i32
	borrow := b.New(ir.Borrow, ir.Loc{})
	borrow.Left = innerUse

	assign := b.New(ir.Assign, ir.Loc{})
	outerUse := b.NewNamed(ir.VarNameUse, ir.Loc{}, "outer")
	outerUse.Dclnode = outer
	assign.Left = outerUse
	assign.Right = borrow

	innerScope := b.New(ir.Block, ir.Loc{})
	innerScope.Nbody.Append(inner, assign)

	fn.Nbody.Append(outer, innerScope)

	mod := b.NewNamed(ir.Module, ir.Loc{}, "t")
	mod.Decls = []*ir.Node{fn}

	DataFlow(b, lib, errs, []*ir.Node{mod})
	if !errs.HasErrors() {
		t.Fatalf("expected a borrow-outlives-referent error")
	}
	if !strings.Contains(sb.String(), "outlives") {
		t.Fatalf("diagnostic text missing outlives wording: %q", sb.String())
	}
}
