package ir

import (
	"cone-lang.dev/conec/internal/arena"
	"cone-lang.dev/conec/internal/names"
)

// Builder owns the arena and type table shared by every pass: the lexer and
// parser allocate nodes through it, and the semantic passes canonicalize
// structural types through its TypeTable. One Builder is created per
// compiler run (spec.md §5: "arena ... process-wide, initialized once").
type Builder struct {
	nodes *arena.Arena[Node]
	Types *TypeTable
	Names *names.Table
}

// NewBuilder creates a Builder backed by a fresh arena, type table, and name
// table.
func NewBuilder(nt *names.Table) *Builder {
	return &Builder{
		nodes: arena.New[Node](0),
		Types: NewTypeTable(),
		Names: nt,
	}
}

// NodeCount reports how many nodes have been allocated, used for verbose
// compiler summaries (cmd/conec).
func (b *Builder) NodeCount() int { return b.nodes.Len() }

// ArenaBytes approximates the arena's footprint for verbose summaries.
func (b *Builder) ArenaBytes() int64 { return b.nodes.Bytes() }

// New allocates a zero-valued node of the given tag at loc.
func (b *Builder) New(tag Tag, loc Loc) *Node {
	n := b.nodes.Alloc()
	n.Tag = tag
	n.Loc = loc
	return n
}

// NewNamed allocates a named node and interns/binds its identifier text,
// leaving the actual scope Hook to the caller (declarations are hooked by
// whichever pass introduces the scope: parser for immediate shadowing
// within a block is not done at parse time, only at name-resolution, per
// spec.md §4.5).
func (b *Builder) NewNamed(tag Tag, loc Loc, nameText string) *Node {
	n := b.New(tag, loc)
	n.Name = b.Names.Intern(nameText)
	return n
}

// Ref returns the canonical reference type (region, perm, value).
func (b *Builder) Ref(loc Loc, region, perm, value *Node) *Node {
	n := b.New(Ref, loc)
	n.Region, n.Perm, n.Left = region, perm, value
	n.Flag |= inferRefFlags(region, perm, value)
	return b.Types.Canon(n)
}

// ArrayRef returns the canonical array-reference (slice) type.
func (b *Builder) ArrayRef(loc Loc, region, perm, elem *Node) *Node {
	n := b.New(ArrayRef, loc)
	n.Region, n.Perm, n.Left = region, perm, elem
	n.Flag |= inferRefFlags(region, perm, elem)
	return b.Types.Canon(n)
}

// VirtRef returns the canonical fat-pointer (trait virtual reference) type.
func (b *Builder) VirtRef(loc Loc, region, perm, trait *Node) *Node {
	n := b.New(VirtRef, loc)
	n.Region, n.Perm, n.Left = region, perm, trait
	n.Flag |= inferRefFlags(region, perm, trait)
	return b.Types.Canon(n)
}

// Ptr returns the canonical raw-pointer type.
func (b *Builder) Ptr(loc Loc, value *Node) *Node {
	n := b.New(Ptr, loc)
	n.Left = value
	return b.Types.Canon(n)
}

// Array returns the canonical fixed-size array type. count<0 means
// `[...]` (size inferred from the initializer at parse/type-check time).
func (b *Builder) Array(loc Loc, count int64, elem *Node) *Node {
	n := b.New(Array, loc)
	n.Count, n.Left = count, elem
	return b.Types.Canon(n)
}

// TTuple returns the canonical tuple type over elems.
func (b *Builder) TTuple(loc Loc, elems ...*Node) *Node {
	n := b.New(TTuple, loc)
	n.List.Set(elems)
	return b.Types.Canon(n)
}

// FnSigType returns the canonical function-signature type.
func (b *Builder) FnSigType(loc Loc, params []*Node, result *Node) *Node {
	n := b.New(FnSig, loc)
	n.Params, n.Result = params, result
	return b.Types.Canon(n)
}

// inferRefFlags computes MoveType/ThreadBound (spec.md §3) from a
// reference's region, permission, and value type.
func inferRefFlags(region, perm, value *Node) Flags {
	var f Flags
	if (region != nil && region.NameText() == "so") || (perm != nil && !permAllowsAlias(perm)) {
		f |= FlagMoveType
	}
	if perm != nil && (perm.NameText() == "mut" || perm.NameText() == "const") {
		f |= FlagThreadBound
	}
	if value != nil && value.Flag.Has(FlagThreadBound) {
		f |= FlagThreadBound
	}
	return f
}

func permAllowsAlias(perm *Node) bool {
	return perm.PermCaps.Has(PermAlias)
}
