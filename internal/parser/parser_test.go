package parser

import (
	"strings"
	"testing"

	"cone-lang.dev/conec/internal/corelib"
	"cone-lang.dev/conec/internal/diag"
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
)

func parse(t *testing.T, src string) (*ir.Node, *diag.Bag) {
	t.Helper()
	var sb strings.Builder
	errs := diag.NewBag(&sb)
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)
	p := New("t.cone", src, b, lib, errs)
	mod := p.ParseModule("t")
	if errs.HasErrors() {
		t.Logf("parse diagnostics:\n%s", sb.String())
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

func TestParseIntegerExpressionFnDcl(t *testing.T) {
	mod, errs := parse(t, "fn main() i32 { return 2 + 3 * 4 }")
	if errs.HasErrors() {
		t.Fatalf("unexpected parse errors (%d)", errs.ErrorCount())
	}
	fn := findDecl(mod, "main")
	if fn == nil || fn.Tag != ir.FnDcl {
		t.Fatalf("expected a FnDcl named main, got %v", fn)
	}
	if fn.Nbody.Len() != 1 {
		t.Fatalf("fn body has %d statements, want 1", fn.Nbody.Len())
	}
	ret := fn.Nbody.Slice()[0]
	if ret.Tag != ir.Return {
		t.Fatalf("body[0].Tag = %v, want Return", ret.Tag)
	}
	plus := ret.Left
	if plus.Tag != ir.FnCall || plus.Methfld == nil || plus.Methfld.Text != "+" {
		t.Fatalf("return value is not a %q FnCall: %+v", "+", plus)
	}
	if plus.Left.Tag != ir.UIntLit || plus.Left.UIntVal != 2 {
		t.Fatalf("left operand of + is not literal 2: %+v", plus.Left)
	}
	if plus.Rlist.Len() != 1 {
		t.Fatalf("+ call has %d args, want 1", plus.Rlist.Len())
	}
	mul := plus.Rlist.Slice()[0]
	if mul.Tag != ir.FnCall || mul.Methfld == nil || mul.Methfld.Text != "*" {
		t.Fatalf("right operand of + is not a %q FnCall: %+v", "*", mul)
	}
}

func TestParseStructWithMethod(t *testing.T) {
	mod, errs := parse(t, `struct S { n i32
fn m(self) i32 { return self.n }
}`)
	if errs.HasErrors() {
		t.Fatalf("unexpected parse errors (%d)", errs.ErrorCount())
	}
	s := findDecl(mod, "S")
	if s == nil || s.Tag != ir.Struct {
		t.Fatalf("expected a Struct named S, got %v", s)
	}
	if len(s.Fields) != 1 || s.Fields[0].NameText() != "n" {
		t.Fatalf("S.Fields = %+v, want one field named n", s.Fields)
	}
	if _, ok := s.Namespace.Lookup(s.Fields[0].Name); !ok {
		t.Fatalf("field n not registered in S's namespace")
	}
	mDecl, ok := s.Namespace.Lookup(mustIntern(t, s, "m"))
	if !ok {
		t.Fatalf("method m not registered in S's namespace")
	}
	m := mDecl.(*ir.Node)
	if len(m.Params) == 0 || m.Params[0].NameText() != "self" {
		t.Fatalf("method m's first parameter is not self: %+v", m.Params)
	}
}

func mustIntern(t *testing.T, owner *ir.Node, text string) *names.Name {
	t.Helper()
	// owner.Namespace keys are *names.Name pointers, so fetch the same
	// table entry the parser interned rather than creating a new one.
	for n := range namespaceNames(owner) {
		if n.Text == text {
			return n
		}
	}
	t.Fatalf("no interned name %q found under %s's namespace", text, owner.NameText())
	return nil
}

func namespaceNames(owner *ir.Node) map[*names.Name]struct{} {
	out := make(map[*names.Name]struct{})
	owner.Namespace.Each(func(n *names.Name, _ names.Decl) { out[n] = struct{}{} })
	return out
}

func TestParseImportWildcard(t *testing.T) {
	mod, errs := parse(t, "import other::*\nfn f() {}")
	if errs.HasErrors() {
		t.Fatalf("unexpected parse errors (%d)", errs.ErrorCount())
	}
	if len(mod.Imports) != 1 {
		t.Fatalf("len(Imports) = %d, want 1", len(mod.Imports))
	}
	imp := mod.Imports[0]
	if imp.StringVal != "other" {
		t.Fatalf("import name = %q, want %q", imp.StringVal, "other")
	}
	if !imp.Flag.Has(ir.FlagPublic) {
		t.Fatalf("import other::* missing FlagPublic (wildcard marker)")
	}
}

func TestParseBadGlobalStatementRecovers(t *testing.T) {
	mod, errs := parse(t, "???\nfn f() {}")
	if !errs.HasErrors() {
		t.Fatalf("expected a syntactic error for %q", "???")
	}
	if findDecl(mod, "f") == nil {
		t.Fatalf("parser did not recover and continue parsing fn f after the bad token")
	}
}
