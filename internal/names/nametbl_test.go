package names

import "testing"

func TestInternReturnsSamePointer(t *testing.T) {
	tbl := NewTable()
	a := tbl.Intern("foo")
	b := tbl.Intern("foo")
	if a != b {
		t.Fatalf("Intern(%q) returned distinct pointers on second call", "foo")
	}
	if tbl.Intern("bar") == a {
		t.Fatalf("Intern(%q) and Intern(%q) aliased the same Name", "foo", "bar")
	}
}

func TestLookupWithoutIntern(t *testing.T) {
	tbl := NewTable()
	if _, ok := tbl.Lookup("never-interned"); ok {
		t.Fatalf("Lookup found a name that was never interned")
	}
	tbl.Intern("now-interned")
	if _, ok := tbl.Lookup("now-interned"); !ok {
		t.Fatalf("Lookup did not find a name that was interned")
	}
}

func TestHookUnhookRestoresPriorBinding(t *testing.T) {
	tbl := NewTable()
	n := tbl.Intern("x")

	mark0 := tbl.Depth()
	tbl.Hook(n, "outer")
	if n.Binding() != "outer" {
		t.Fatalf("Binding() = %v, want outer", n.Binding())
	}

	mark1 := tbl.Depth()
	tbl.Hook(n, "inner")
	if n.Binding() != "inner" {
		t.Fatalf("Binding() = %v, want inner", n.Binding())
	}

	tbl.UnhookAllInScope(mark1)
	if n.Binding() != "outer" {
		t.Fatalf("after inner scope exit, Binding() = %v, want outer", n.Binding())
	}

	tbl.UnhookAllInScope(mark0)
	if n.Binding() != nil {
		t.Fatalf("after outer scope exit, Binding() = %v, want nil", n.Binding())
	}
	if tbl.Depth() != mark0 {
		t.Fatalf("Depth() = %d after full unwind, want %d (spec.md §8 invariant 7)", tbl.Depth(), mark0)
	}
}

func TestHookNamespaceBindsEveryEntry(t *testing.T) {
	tbl := NewTable()
	ns := NewNamespace()
	a, b := tbl.Intern("a"), tbl.Intern("b")
	ns.Define(a, "decl-a")
	ns.Define(b, "decl-b")

	mark := tbl.Depth()
	tbl.HookNamespace(ns)
	if a.Binding() != "decl-a" || b.Binding() != "decl-b" {
		t.Fatalf("HookNamespace did not bind every entry: a=%v b=%v", a.Binding(), b.Binding())
	}
	tbl.UnhookAllInScope(mark)
	if a.Binding() != nil || b.Binding() != nil {
		t.Fatalf("UnhookAllInScope left bindings: a=%v b=%v", a.Binding(), b.Binding())
	}
}

func TestNamespaceDefineOverwritesButPreservesOrder(t *testing.T) {
	ns := NewNamespace()
	tbl := NewTable()
	a, b := tbl.Intern("a"), tbl.Intern("b")
	ns.Define(a, 1)
	ns.Define(b, 2)
	ns.Define(a, 3) // redefinition: overwrite value, no duplicate order entry

	if ns.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after redefining an existing name", ns.Len())
	}
	got, ok := ns.Lookup(a)
	if !ok || got != 3 {
		t.Fatalf("Lookup(a) = %v, %v; want 3, true", got, ok)
	}

	var order []string
	ns.Each(func(n *Name, _ Decl) { order = append(order, n.Text) })
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("Each order = %v, want [a b]", order)
	}
}
