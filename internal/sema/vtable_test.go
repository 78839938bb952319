package sema

import (
	"strings"
	"testing"

	"cone-lang.dev/conec/internal/corelib"
	"cone-lang.dev/conec/internal/diag"
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
)

func newChecker(b *ir.Builder, lib *corelib.Lib) *Checker {
	var sb strings.Builder
	return &Checker{b: b, lib: lib, errs: diag.NewBag(&sb)}
}

// buildTraitAndImpl builds a two-method trait and one struct that implements
// both methods, the minimal shape spec.md §4.6.7's vtable construction needs.
func buildTraitAndImpl(b *ir.Builder) (trait, impl *ir.Node) {
	trait = b.NewNamed(ir.Struct, ir.Loc{}, "Shape")
	trait.Flag |= ir.FlagTraitType | ir.FlagSameSize
	trait.Namespace = names.NewNamespace()
	area := b.NewNamed(ir.FnDcl, ir.Loc{}, "area")
	area.Owner = trait
	perimeter := b.NewNamed(ir.FnDcl, ir.Loc{}, "perimeter")
	perimeter.Owner = trait
	trait.Namespace.Define(area.Name, area)
	trait.Namespace.Define(perimeter.Name, perimeter)

	impl = b.NewNamed(ir.Struct, ir.Loc{}, "Square")
	impl.Namespace = names.NewNamespace()
	implArea := b.NewNamed(ir.FnDcl, ir.Loc{}, "area")
	implArea.Owner = impl
	implPerimeter := b.NewNamed(ir.FnDcl, ir.Loc{}, "perimeter")
	implPerimeter.Owner = impl
	impl.Namespace.Define(implArea.Name, implArea)
	impl.Namespace.Define(implPerimeter.Name, implPerimeter)
	trait.Derived = append(trait.Derived, impl)
	return trait, impl
}

func TestBuildVtableAssignsSequentialSlots(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)
	c := newChecker(b, lib)
	trait, _ := buildTraitAndImpl(b)

	vt := c.buildVtable(trait)
	if len(vt.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(vt.Entries))
	}
	for i, e := range vt.Entries {
		if e.Index != i {
			t.Errorf("entry %d has Index %d", i, e.Index)
		}
	}
	if vt2 := c.buildVtable(trait); vt2 != vt {
		t.Fatalf("buildVtable did not reuse the cached trait.Vtable")
	}
}

func TestBuildVtableSkipsPrivateMembers(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)
	c := newChecker(b, lib)
	trait, _ := buildTraitAndImpl(b)
	priv := b.NewNamed(ir.FnDcl, ir.Loc{}, "_helper")
	priv.Owner = trait
	trait.Namespace.Define(priv.Name, priv)

	vt := c.buildVtable(trait)
	for _, e := range vt.Entries {
		if e.Name.NameText() == "_helper" {
			t.Fatalf("private member _helper leaked into the vtable")
		}
	}
}

func TestCanBuildVtableImplCompleteMatch(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)
	c := newChecker(b, lib)
	trait, impl := buildTraitAndImpl(b)

	if !c.canBuildVtableImpl(impl, trait) {
		t.Fatalf("Square implementing both area and perimeter should satisfy Shape's vtable")
	}
	cached, ok := impl.ImplCache[trait]
	if !ok || !cached.Complete() {
		t.Fatalf("ImplCache not populated with a complete impl after canBuildVtableImpl")
	}
}

func TestCanBuildVtableImplMissingMethodFails(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)
	c := newChecker(b, lib)
	trait := b.NewNamed(ir.Struct, ir.Loc{}, "Shape2")
	trait.Flag |= ir.FlagTraitType | ir.FlagSameSize
	trait.Namespace = names.NewNamespace()
	area := b.NewNamed(ir.FnDcl, ir.Loc{}, "area")
	area.Owner = trait
	trait.Namespace.Define(area.Name, area)

	incomplete := b.NewNamed(ir.Struct, ir.Loc{}, "Triangle")
	incomplete.Namespace = names.NewNamespace()

	if c.canBuildVtableImpl(incomplete, trait) {
		t.Fatalf("a struct with no area method should not satisfy Shape2's vtable")
	}
}

func TestCanBuildVtableImplRejectsNonTrait(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)
	c := newChecker(b, lib)
	notATrait := b.NewNamed(ir.Struct, ir.Loc{}, "Plain")
	notATrait.Namespace = names.NewNamespace()
	other := b.NewNamed(ir.Struct, ir.Loc{}, "Other")
	other.Namespace = names.NewNamespace()

	if c.canBuildVtableImpl(other, notATrait) {
		t.Fatalf("canBuildVtableImpl should reject a target lacking FlagTraitType")
	}
}
