package ir

// VtableEntry is one ordered slot of a trait's virtual dispatch table
// (spec.md §4.6.7): either a public method or a non-enum field, in the
// trait's declaration order.
type VtableEntry struct {
	Name  *Node // FnDcl or FieldDcl, whichever was declared
	Index int
}

// Vtable is a trait's virtual-reference layout, built lazily the first time
// the trait is used as a VirtRef target.
type Vtable struct {
	Trait   *Node
	Entries []VtableEntry
}

// IndexOf returns the vtable slot index for a method/field name, or -1.
func (v *Vtable) IndexOf(nameText string) int {
	for _, e := range v.Entries {
		if e.Name.NameText() == nameText {
			return e.Index
		}
	}
	return -1
}

// VtableImpl maps a concrete struct's members onto one trait's vtable slots
// (spec.md §4.6.7), built once per (struct, trait) pair and cached on the
// struct node (Node.ImplCache).
type VtableImpl struct {
	Trait  *Node
	Struct *Node
	// Members[i] is the concrete FnDcl/FieldDcl implementing Trait's
	// vtable entry i; nil means the coercion that would have built this
	// impl failed (a missing entry), which callers must treat as an
	// error, not a partially-usable impl.
	Members []*Node
}

// Complete reports whether every vtable slot has a concrete implementation.
func (impl *VtableImpl) Complete() bool {
	for _, m := range impl.Members {
		if m == nil {
			return false
		}
	}
	return true
}
