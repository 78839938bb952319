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

// parseModule parses one source string into its own named module, sharing
// the builder/corelib so multiple modules can be resolved together the way
// a multi-file program would be (spec.md §4.5's "modules visited in
// dependency order").
func parseModule(t *testing.T, b *ir.Builder, lib *corelib.Lib, errs *diag.Bag, name, src string) *ir.Node {
	t.Helper()
	p := parser.New(name+".cone", src, b, lib, errs)
	return p.ParseModule(name)
}

func TestResolveQualifiedCrossModuleCall(t *testing.T) {
	var sb strings.Builder
	errs := diag.NewBag(&sb)
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)

	other := parseModule(t, b, lib, errs, "other", "fn f() i32 { return 7 }")
	mainMod := parseModule(t, b, lib, errs, "t", "fn main() i32 { return other::f() }")
	if errs.HasErrors() {
		t.Fatalf("unexpected parse diagnostics:\n%s", sb.String())
	}

	Resolve(b, lib, errs, []*ir.Node{mainMod, other})
	if errs.HasErrors() {
		t.Fatalf("unexpected resolve diagnostics:\n%s", sb.String())
	}

	fn := findDecl(mainMod, "main")
	ret := fn.Nbody.Slice()[0]
	call := ret.Left
	if call.Tag != ir.FnCall || call.Left == nil {
		t.Fatalf("other::f() did not parse to a call of a qualified callee: %+v", call)
	}
	callee := call.Left
	if callee.Tag != ir.VarNameUse || callee.Dclnode == nil || callee.Dclnode.NameText() != "f" {
		t.Fatalf("other::f did not resolve to f's declaration: %+v", callee)
	}
	if callee.Dclnode.Owner != nil {
		t.Fatalf("other::f() resolved to a method, want the module-level fn: %+v", callee.Dclnode)
	}
	// the qualifier itself is rewritten in place from a NameUse into a
	// TypeNameUse pointing at the "other" module (resolveQualifier).
	if callee.Left.Tag != ir.TypeNameUse || callee.Left.Dclnode != other {
		t.Fatalf("qualifier %q was not rewritten to reference module %q: %+v", "other", "other", callee.Left)
	}
}

func TestResolveWildcardImportFoldsNamesIntoScope(t *testing.T) {
	var sb strings.Builder
	errs := diag.NewBag(&sb)
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)

	other := parseModule(t, b, lib, errs, "other", "fn helper() i32 { return 9 }")
	mainMod := parseModule(t, b, lib, errs, "t", "import other::*\nfn main() i32 { return helper() }")
	if errs.HasErrors() {
		t.Fatalf("unexpected parse diagnostics:\n%s", sb.String())
	}

	Resolve(b, lib, errs, []*ir.Node{mainMod, other})
	if errs.HasErrors() {
		t.Fatalf("unexpected resolve diagnostics (wildcard import should fold helper into scope):\n%s", sb.String())
	}

	fn := findDecl(mainMod, "main")
	ret := fn.Nbody.Slice()[0]
	call := ret.Left
	if call.Tag != ir.FnCall || call.Left == nil || call.Left.Dclnode == nil || call.Left.Dclnode.NameText() != "helper" {
		t.Fatalf("bare helper() call was not resolved via the wildcard import: %+v", call)
	}
}

func TestResolvePlainImportDoesNotFoldNamesIntoScope(t *testing.T) {
	var sb strings.Builder
	errs := diag.NewBag(&sb)
	b := ir.NewBuilder(names.NewTable())
	lib := corelib.Bootstrap(b)

	other := parseModule(t, b, lib, errs, "other", "fn helper() i32 { return 9 }")
	mainMod := parseModule(t, b, lib, errs, "t", "import other\nfn main() i32 { return helper() }")
	if errs.HasErrors() {
		t.Fatalf("unexpected parse diagnostics:\n%s", sb.String())
	}

	Resolve(b, lib, errs, []*ir.Node{mainMod, other})
	if !errs.HasErrors() {
		t.Fatalf("expected a binding error: a plain (non-wildcard) import must not fold the other module's names into scope")
	}
}
