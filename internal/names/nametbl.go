// Package names implements the interned identifier table and the
// name-binding stack used by name resolution (spec.md §4.1).
//
// Every identifier the lexer sees is interned exactly once into a *Name, so
// the rest of the compiler can compare names by pointer. Each *Name also
// carries the "currently bound declaration" used while walking scopes: a
// LIFO stack of (name, previous binding) entries records shadowing so scope
// exit can restore exactly what scope entry pushed.
package names

// Decl is the minimal interface a name-resolution target must satisfy. The
// concrete type is *ir.Node, but this package must not import ir (ir already
// imports names for Sym/Name interning), so binding targets are carried as
// opaque `any` and type-asserted by callers that know the concrete node type.
type Decl = any

// maxIdentLen matches the source compiler's identifier length cap
// (spec.md §4.1: "≤255 chars"). The cap is not enforced: neither this
// package nor the lexer rejects a longer identifier, which is interned like
// any other.
const maxIdentLen = 255

// Name is one interned identifier plus its current name-resolution binding.
type Name struct {
	Text    string
	binding Decl
}

// Binding returns the declaration currently bound to this name, or nil.
func (n *Name) Binding() Decl { return n.binding }

// bindEntry is one LIFO stack slot: which Name was rebound, and what it was
// bound to immediately before the rebind (nil if it was previously unbound).
type bindEntry struct {
	name *Name
	prev Decl
}

// Table is the process-wide name table: an intern map plus the binding
// stack. One Table is created at compiler init and lives for the run.
type Table struct {
	interned map[string]*Name
	stack    []bindEntry
}

// NewTable creates an empty name table.
func NewTable() *Table {
	return &Table{interned: make(map[string]*Name, 1024)}
}

// Intern returns the unique *Name for text, creating it on first use.
func (t *Table) Intern(text string) *Name {
	if n, ok := t.interned[text]; ok {
		return n
	}
	n := &Name{Text: text}
	t.interned[text] = n
	return n
}

// Lookup returns the interned Name for text if it has ever been interned,
// without creating it.
func (t *Table) Lookup(text string) (*Name, bool) {
	n, ok := t.interned[text]
	return n, ok
}

// Mark is an opaque snapshot of the binding stack's depth, taken at scope
// entry and passed back to UnhookAllInScope at scope exit.
type Mark int

// Depth returns the current binding-stack depth, used by tests asserting the
// global invariant that stack depth is identical before and after a pass
// (spec.md §8, invariant 7).
func (t *Table) Depth() Mark { return Mark(len(t.stack)) }

// Hook pushes (name, previous binding) and rebinds name to decl. Every Hook
// must be balanced by an UnhookAllInScope (or a manual Unhook) on every
// code path, including error returns — the source compiler never longjmps
// out of a scope, and neither does this pass (spec.md §5).
func (t *Table) Hook(n *Name, decl Decl) {
	t.stack = append(t.stack, bindEntry{name: n, prev: n.binding})
	n.binding = decl
}

// UnhookAllInScope pops the binding stack back to mark, restoring whatever
// each entry's name was bound to immediately beforehand.
func (t *Table) UnhookAllInScope(mark Mark) {
	for len(t.stack) > int(mark) {
		top := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		top.name.binding = top.prev
	}
}

// HookNamespace hooks every entry of a namespace map in the namespace's
// declaration order, a convenience used when entering a
// module or function body that binds many names at once (spec.md §4.1).
func (t *Table) HookNamespace(ns *Namespace) {
	for _, n := range ns.ordered {
		t.Hook(n, ns.decls[n])
	}
}

// Namespace is a namespace's own name->decl map, used for qualified lookup
// (module::x) and for per-type method/field lookup (spec.md §4.1). Unlike
// the global binding stack, a Namespace's contents are not shadowed by
// scoping; they are simply a set.
type Namespace struct {
	decls   map[*Name]Decl
	ordered []*Name
}

// NewNamespace creates an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{decls: make(map[*Name]Decl)}
}

// Define adds name->decl to the namespace, overwriting any earlier entry for
// the same name, as the source compiler's namespace insert does. No pass
// reports a duplicate name: the parser chains same-named methods through
// Nextnode before calling Define, and any other redefinition silently
// replaces the earlier entry.
func (ns *Namespace) Define(n *Name, decl Decl) {
	if _, exists := ns.decls[n]; !exists {
		ns.ordered = append(ns.ordered, n)
	}
	ns.decls[n] = decl
}

// Lookup finds decl bound to n within this namespace only (no stack
// shadowing, no outer scopes).
func (ns *Namespace) Lookup(n *Name) (Decl, bool) {
	d, ok := ns.decls[n]
	return d, ok
}

// Len reports the number of distinct names defined in the namespace.
func (ns *Namespace) Len() int { return len(ns.ordered) }

// Each calls fn for every (name, decl) pair in declaration order. Used by
// callers that walk a whole namespace (data-flow's method-set walk, mixin
// expansion, vtable layout) and by tests; qualified lookup uses Lookup.
func (ns *Namespace) Each(fn func(n *Name, decl Decl)) {
	for _, n := range ns.ordered {
		fn(n, ns.decls[n])
	}
}
