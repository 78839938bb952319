package ir

import (
	"testing"

	"cone-lang.dev/conec/internal/names"
)

func newTestBuilder() *Builder {
	return NewBuilder(names.NewTable())
}

// TestCanonHashConsesStructuralTypes exercises spec.md §8 invariant 6:
// "for any two canonical types t1, t2, structural equality implies pointer
// equality."
func TestCanonHashConsesStructuralTypes(t *testing.T) {
	b := newTestBuilder()
	i32 := b.NewNamed(IntNbr, Loc{}, "i32")
	perm := b.NewNamed(Perm, Loc{}, "imm")

	r1 := b.Ref(Loc{}, nil, perm, i32)
	r2 := b.Ref(Loc{}, nil, perm, i32)
	if r1 != r2 {
		t.Fatalf("two structurally identical Ref types were not canonicalized to one pointer")
	}

	u32 := b.NewNamed(IntNbr, Loc{}, "u32")
	r3 := b.Ref(Loc{}, nil, perm, u32)
	if r1 == r3 {
		t.Fatalf("Ref(imm i32) and Ref(imm u32) canonicalized to the same pointer")
	}
}

func TestCanonArrayDistinguishesCount(t *testing.T) {
	b := newTestBuilder()
	i32 := b.NewNamed(IntNbr, Loc{}, "i32")
	a3 := b.Array(Loc{}, 3, i32)
	a4 := b.Array(Loc{}, 4, i32)
	a3again := b.Array(Loc{}, 3, i32)
	if a3 == a4 {
		t.Fatalf("[3]i32 and [4]i32 canonicalized to the same pointer")
	}
	if a3 != a3again {
		t.Fatalf("[3]i32 was not canonicalized across two Array() calls")
	}
}

func TestCanonTTupleOrderMatters(t *testing.T) {
	b := newTestBuilder()
	i32 := b.NewNamed(IntNbr, Loc{}, "i32")
	f64 := b.NewNamed(FloatNbr, Loc{}, "f64")
	t1 := b.TTuple(Loc{}, i32, f64)
	t2 := b.TTuple(Loc{}, f64, i32)
	t3 := b.TTuple(Loc{}, i32, f64)
	if t1 == t2 {
		t.Fatalf("(i32,f64) and (f64,i32) canonicalized to the same pointer")
	}
	if t1 != t3 {
		t.Fatalf("(i32,f64) was not canonicalized across two TTuple() calls")
	}
}

func TestCanonNominalTypesNeverUnify(t *testing.T) {
	// Struct is a nominal family: two distinct declarations sharing the same
	// name text must never be treated as structurally equal by TypeTable
	// (only Ref/ArrayRef/VirtRef/Ptr/Array/TTuple/FnSig are hash-consed).
	b := newTestBuilder()
	s1 := b.New(Struct, Loc{})
	s1.Name = b.Names.Intern("Point")
	s2 := b.New(Struct, Loc{})
	s2.Name = b.Names.Intern("Point")
	if structEqual(s1, s2) {
		t.Fatalf("structEqual treated two distinct Struct declarations as equal")
	}
}

func TestRefMoveTypeFlag(t *testing.T) {
	b := newTestBuilder()
	i32 := b.NewNamed(IntNbr, Loc{}, "i32")
	so := b.NewNamed(Region, Loc{}, "so")
	uni := b.NewNamed(Perm, Loc{}, "uni")
	uni.PermCaps = PermRead | PermWrite | PermRaceSafe

	r := b.Ref(Loc{}, so, uni, i32)
	if !r.Flag.Has(FlagMoveType) {
		t.Fatalf("&so uni i32 did not get FlagMoveType (region=so)")
	}

	mut := b.NewNamed(Perm, Loc{}, "mut")
	mut.PermCaps = PermRead | PermWrite | PermAlias | PermAliasWrite
	borrowed := b.Ref(Loc{}, nil, mut, i32)
	if borrowed.Flag.Has(FlagMoveType) {
		t.Fatalf("&mut i32 (borrow region, aliasing perm) unexpectedly got FlagMoveType")
	}
	if !borrowed.Flag.Has(FlagThreadBound) {
		t.Fatalf("&mut i32 did not get FlagThreadBound")
	}
}
