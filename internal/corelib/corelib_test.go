package corelib

import (
	"testing"

	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
)

func TestBootstrapRegistersPermsRegionsNumerics(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := Bootstrap(b)

	for _, p := range []string{"uni", "mut", "imm", "ro", "mut1", "opaq"} {
		if _, ok := lib.Perms[p]; !ok {
			t.Errorf("permission %q not registered", p)
		}
	}
	for _, r := range []string{"so", "rc"} {
		if _, ok := lib.Regions[r]; !ok {
			t.Errorf("region %q not registered", r)
		}
	}
	for _, n := range []string{"bool", "i8", "i32", "i64", "u8", "u32", "usize", "isize", "f32", "f64"} {
		if _, ok := lib.Numerics[n]; !ok {
			t.Errorf("numeric type %q not registered", n)
		}
	}
}

func TestUniPermCannotAlias(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := Bootstrap(b)
	uni := lib.Perms["uni"]
	if !uni.PermCaps.Has(ir.PermRead) || !uni.PermCaps.Has(ir.PermWrite) {
		t.Fatalf("uni PermCaps = %v, want read+write", uni.PermCaps)
	}
	if uni.PermCaps.Has(ir.PermAlias) {
		t.Fatalf("uni should not be aliasable (it is the move-only permission)")
	}
}

func TestIntNumericsCarryArithmeticIntrinsics(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := Bootstrap(b)
	i32 := lib.Numerics["i32"]
	if i32.Count != 32 {
		t.Fatalf("i32.Count = %d, want 32", i32.Count)
	}
	for _, op := range []string{"+", "-", "*", "/", "=="} {
		if _, ok := i32.Namespace.Lookup(lookupOpName(i32, op)); !ok {
			t.Errorf("i32 is missing intrinsic operator %q", op)
		}
	}
}

func lookupOpName(owner *ir.Node, text string) *names.Name {
	var found *names.Name
	owner.Namespace.Each(func(n *names.Name, _ names.Decl) {
		if n.Text == text {
			found = n
		}
	})
	return found
}

func TestBoolHasLogicalIntrinsicsOnly(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := Bootstrap(b)
	boolTy := lib.Numerics["bool"]
	if _, ok := boolTy.Namespace.Lookup(lookupOpName(boolTy, "==")); !ok {
		t.Fatalf("bool is missing == intrinsic")
	}
	if lookupOpName(boolTy, "+") != nil {
		t.Fatalf("bool should not carry arithmetic + intrinsic")
	}
}

func TestOptionResultAreClosedGenericEnums(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := Bootstrap(b)

	if lib.Option == nil || lib.Option.Tag != ir.Generic {
		t.Fatalf("Option is not registered as a Generic node")
	}
	base := lib.Option.Body
	if !base.Flag.Has(ir.FlagTraitType) || !base.Flag.Has(ir.FlagSameSize) {
		t.Fatalf("Option's base is missing FlagTraitType|FlagSameSize")
	}
	if len(base.Derived) != 2 {
		t.Fatalf("Option has %d variants, want 2 (Some, None)", len(base.Derived))
	}
	if base.Derived[0].VariantTag != 0 || base.Derived[1].VariantTag != 1 {
		t.Fatalf("Option variant tags are not sequential from 0")
	}

	if lib.Result == nil || lib.Result.Tag != ir.Generic {
		t.Fatalf("Result is not registered as a Generic node")
	}
	if len(lib.Result.GenParams) != 2 {
		t.Fatalf("Result has %d generic params, want 2 (T, E)", len(lib.Result.GenParams))
	}
}
