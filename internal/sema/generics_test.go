package sema

import (
	"testing"

	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
)

// buildIdentityGeneric builds `fn id[T](x T) T { return x }` directly in IR,
// the minimal shape internal/sema/generics.go's clone-and-substitute
// machinery needs to exercise instantiation.
func buildIdentityGeneric(b *ir.Builder) *ir.Node {
	gp := b.NewNamed(ir.GenVarDcl, ir.Loc{}, "T")
	genVarT := func() *ir.Node {
		n := b.New(ir.GenVarUse, ir.Loc{})
		n.StringVal = "T"
		return n
	}

	fn := b.NewNamed(ir.FnDcl, ir.Loc{}, "id")
	param := b.NewNamed(ir.VarDcl, ir.Loc{}, "x")
	param.Vtype = genVarT()
	fn.Params = []*ir.Node{param}
	fn.Result = genVarT()

	ret := b.New(ir.Return, ir.Loc{})
	xUse := b.NewNamed(ir.VarNameUse, ir.Loc{}, "x")
	xUse.Dclnode = param
	ret.Left = xUse
	fn.Nbody.Append(ret)

	gen := b.NewNamed(ir.Generic, ir.Loc{}, "id")
	gen.GenParams = []*ir.Node{gp}
	gen.Body = fn
	return gen
}

func TestCloneTreeProducesIndependentCopy(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	gen := buildIdentityGeneric(b)
	seen := make(map[*ir.Node]*ir.Node)
	cloned := cloneTree(b, gen.Body, nil, seen)
	if cloned == gen.Body {
		t.Fatalf("cloneTree returned the same pointer as the original")
	}
	if cloned.Tag != ir.FnDcl || cloned.NameText() != "id" {
		t.Fatalf("clone lost its tag/name: %+v", cloned)
	}
	clonedRet := cloned.Nbody.Slice()[0]
	origRet := gen.Body.Nbody.Slice()[0]
	if clonedRet == origRet {
		t.Fatalf("cloneTree shared the Nbody statement instead of copying it")
	}
}

func TestInstantiateSubstitutesGenVarUse(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	c := &Checker{b: b}
	gen := buildIdentityGeneric(b)
	i32 := b.NewNamed(ir.IntNbr, ir.Loc{}, "i32")

	inst := c.Instantiate(gen, []*ir.Node{i32})
	if underlyingType(inst.Result) != i32 {
		t.Fatalf("instantiated fn's Result = %v, want a use bound to the i32 node", inst.Result)
	}
	if underlyingType(inst.Params[0].Vtype) != i32 {
		t.Fatalf("instantiated fn's param vtype = %v, want a use bound to i32", inst.Params[0].Vtype)
	}
}

func TestInstantiateMemoizesOnArgumentIdentity(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	c := &Checker{b: b}
	gen := buildIdentityGeneric(b)
	i32 := b.NewNamed(ir.IntNbr, ir.Loc{}, "i32")
	f64 := b.NewNamed(ir.FloatNbr, ir.Loc{}, "f64")

	inst1 := c.Instantiate(gen, []*ir.Node{i32})
	inst2 := c.Instantiate(gen, []*ir.Node{i32})
	if inst1 != inst2 {
		t.Fatalf("two instantiations with the same type argument were not memoized to one node")
	}
	inst3 := c.Instantiate(gen, []*ir.Node{f64})
	if inst3 == inst1 {
		t.Fatalf("instantiations with different type arguments returned the same node")
	}
}

func TestInferGenericArgsCapturesParamType(t *testing.T) {
	b := ir.NewBuilder(names.NewTable())
	gen := buildIdentityGeneric(b)
	i32 := b.NewNamed(ir.IntNbr, ir.Loc{}, "i32")

	inferred := inferGenericArgs(gen, []*ir.Node{i32})
	if len(inferred) != 1 || inferred[0] != i32 {
		t.Fatalf("inferGenericArgs = %+v, want [i32]", inferred)
	}
}
