package ir

import "testing"

func TestTagGroupPredicates(t *testing.T) {
	cases := []struct {
		tag                        Tag
		stmt, exp, typ, meta, name bool
	}{
		{Module, true, false, false, false, false},
		{FnDcl, true, false, false, false, true},
		{UIntLit, false, true, false, false, false},
		{FnCall, false, true, false, false, false},
		{Ref, false, false, true, false, false},
		{Struct, false, false, true, false, true},
		{Generic, false, false, false, true, true},
	}
	for _, c := range cases {
		if got := c.tag.IsStmtNode(); got != c.stmt {
			t.Errorf("%s.IsStmtNode() = %v, want %v", c.tag, got, c.stmt)
		}
		if got := c.tag.IsExpNode(); got != c.exp {
			t.Errorf("%s.IsExpNode() = %v, want %v", c.tag, got, c.exp)
		}
		if got := c.tag.IsTypeNode(); got != c.typ {
			t.Errorf("%s.IsTypeNode() = %v, want %v", c.tag, got, c.typ)
		}
		if got := c.tag.IsMetaNode(); got != c.meta {
			t.Errorf("%s.IsMetaNode() = %v, want %v", c.tag, got, c.meta)
		}
		if got := c.tag.IsNamedNode(); got != c.name {
			t.Errorf("%s.IsNamedNode() = %v, want %v", c.tag, got, c.name)
		}
	}
}

func TestTagGroupsArePartitioned(t *testing.T) {
	// spec.md §3: "Tags are partitioned by high bits into four groups" -- no
	// tag may satisfy more than one of IsStmtNode/IsExpNode/IsTypeNode/IsMetaNode.
	all := []Tag{Module, Import, Return, FnDcl, VarDcl,
		UIntLit, NameUse, FnCall, Assign, Block,
		Ref, Struct, Enum, Perm, Void,
		Generic, Macro, GenVarDcl}
	for _, tag := range all {
		n := 0
		for _, pred := range []bool{tag.IsStmtNode(), tag.IsExpNode(), tag.IsTypeNode(), tag.IsMetaNode()} {
			if pred {
				n++
			}
		}
		if n != 1 {
			t.Errorf("tag %s belongs to %d groups, want exactly 1", tag, n)
		}
	}
}

func TestIsMethodType(t *testing.T) {
	for _, tag := range []Tag{Ref, ArrayRef, VirtRef, Ptr, IntNbr, UintNbr, FloatNbr, Struct, Region} {
		if !tag.IsMethodType() {
			t.Errorf("%s.IsMethodType() = false, want true", tag)
		}
	}
	for _, tag := range []Tag{Enum, Void, Perm, Lifetime} {
		if tag.IsMethodType() {
			t.Errorf("%s.IsMethodType() = true, want false", tag)
		}
	}
}

func TestTagStringUnknown(t *testing.T) {
	if got := Tag(0xFFFF).String(); got != "Tag(?)" {
		t.Errorf("String() of an unregistered tag = %q, want %q", got, "Tag(?)")
	}
}
