package ir

import "cone-lang.dev/conec/internal/names"

// Loc is a node's source location: file, line, the column of the token that
// starts the node, and the column of the start of its source line (the
// second is kept separately because the lexer needs it to compute
// indentation independent of where a continuation token begins).
type Loc struct {
	File    string
	Line    int32
	ColTok  int32
	ColLine int32
}

// Flags is the small per-node flag set from spec.md §3 (e.g. TraitType,
// SameSize, MoveType, ThreadBound) plus the two re-entrancy flags used by
// type-check (§4.6: TypeChecking/TypeChecked).
type Flags uint32

const (
	FlagTraitType    Flags = 1 << iota // Struct is a trait
	FlagSameSize                       // closed trait: variants share one size
	FlagHasTagField                    // closed trait: discriminator field present
	FlagOpaqueType                     // struct has no fields after inheritance expansion
	FlagMoveType                       // Ref: region so, or non-aliasing perm
	FlagThreadBound                    // Ref: mut/const perm, or value thread-bound
	FlagTypeChecking                   // re-entrancy guard, types only (ErrorRecurse)
	FlagTypeChecked                    // type-check completed successfully
	FlagLvalOp                         // compound-assign method call (+= etc.)
	FlagOpAssgn                        // same; kept distinct per spec naming
	FlagInline                         // fn marked for inlining at codegen (preserved, unread here)
	FlagExhaustive                     // if/match rewritten so its last arm is the else-sentinel
	FlagColas                          // Assign from := (new binding); on LoopBlock, a post-tested do/while
	FlagVariadic                       // fn parameter declared with trailing ...
	FlagPublic                         // declaration visible outside its module
	FlagNullable                       // ref/ptr type accepts null
)

// Has reports whether all bits in mask are set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// PermFlags is a Perm node's capability set (spec.md §4.4): which
// operations a reference carrying this permission allows. Kept as its own
// bit type, distinct from Flags, because a Perm node's capabilities and a
// Ref node's general-purpose flags (MoveType, ThreadBound, ...) are
// orthogonal concerns that happen to both be small bitsets.
type PermFlags uint16

const (
	PermRead PermFlags = 1 << iota
	PermWrite
	PermAlias
	PermAliasWrite
	PermRaceSafe
	PermMayIntRefSum
	PermLockless
)

// Has reports whether all bits in mask are set.
func (f PermFlags) Has(mask PermFlags) bool { return f&mask == mask }

// CopyTrait classifies how a value of a type must be duplicated on a move
// context (spec.md §4.7).
type CopyTrait uint8

const (
	CopyBitwise CopyTrait = iota // default: plain bitwise copy, no bookkeeping
	CopyMove                     // bitwise-copy-unsafe (e.g. uni refs): source deactivated
	CopyMethod                   // reserved: would inject a clone-method call (unused, see DESIGN.md)
)

// Node is the single concrete type backing every IR entity: statements,
// typed expressions, types, and generics/macros. A Tag selects which of the
// family-specific fields below are meaningful, the same discipline the
// source Go compiler's own gc.Node and Cone's C IR both use (see the
// package doc comment).
type Node struct {
	Loc  Loc
	Tag  Tag
	Flag Flags

	// Generic recursive tree fields. Not every tag uses every field; each
	// pass's walk switch documents the shape it expects per tag.
	Left  *Node
	Right *Node
	Ninit Nodes
	Nbody Nodes
	List  Nodes
	Rlist Nodes

	// Typed-expression header (valid when Tag.IsExpNode()).
	Vtype *Node

	// Named-node header (valid when Tag.IsNamedNode()).
	Name  *names.Name
	Owner *Node

	// NameUse / VarNameUse / TypeNameUse.
	Dclnode *Node

	// FnCall: Methfld is the looked-up member name before lowering;
	// Objfn is the resolved callee (method NameUse or plain function
	// NameUse) after lowering. Exactly one is meaningful at a time
	// (spec.md §3 invariants).
	Methfld *names.Name
	Objfn   *Node

	// FnDcl: singly-linked overload chain, source-compiler style
	// (design note, spec.md §9: "a language-neutral redesign represents
	// the set as Vec<FnDcl>"; this module keeps the teacher's
	// nextnode-as-linked-list shape because Namespace already stores one
	// decl per name and the overload set needs to live alongside it
	// without changing Namespace's contract).
	Nextnode *Node
	Params   []*Node // FnDcl/FnSig: parameter VarDcls, in order
	Result   *Node   // FnDcl/FnSig: return type node (Void if none declared)

	// Struct/trait.
	Basetrait  *Node
	Derived    []*Node // trait: derived structs, in declaration order
	Fields     []*Node // Struct: FieldDcl list, in (post-inheritance) order
	VariantTag int     // assigned tag number when Basetrait is a closed trait
	Namespace  *names.Namespace
	Vtable     *Vtable
	ImplCache  map[*Node]*VtableImpl // concrete struct -> trait vtable impl

	// Ref / ArrayRef / VirtRef / Ptr.
	Region *Node // Region struct (so/rc) or Lifetime node for `borrow`
	Perm   *Node // Perm node

	// Perm: this permission's own capability bits.
	PermCaps PermFlags

	// Array.
	Count int64 // fixed element count; -1 if from `[...]`

	// VarDcl / FieldDcl / ConstDcl.
	Value *Node // initializer, or nil if uninitialized

	// Generic / Macro.
	GenParams []*Node          // GenVarDcl list
	Body      *Node            // closed subtree, cloned at each instantiation
	InstCache map[string]*Node // memoized instantiations, keyed on argument-type identity

	// Literal payloads.
	UIntVal   uint64
	FloatVal  float64
	StringVal string

	// Module.
	Imports []*Node
	Decls   []*Node // ordered declaration list (spec.md §8 invariant 4)

	// Module-level program tracking (used for qualified `a::b::c`, §4.5).
	Program *Node // the root Module (program module), non-nil on every Module

	Comment string // doc comment text; not set by the parser, not printed by Dump, never semantically meaningful
}

// Nodes is an ordered list of *Node, mirroring the source compiler's
// slice-backed Nodes type (kept distinct from []*Node only for symmetry with
// the teacher IR's named list type and to give call sites a self-documenting
// field type).
type Nodes struct {
	s []*Node
}

// Slice exposes the underlying slice for range loops.
func (n Nodes) Slice() []*Node { return n.s }

// Len reports the number of entries.
func (n Nodes) Len() int { return len(n.s) }

// Append adds nodes to the end of the list.
func (n *Nodes) Append(nodes ...*Node) { n.s = append(n.s, nodes...) }

// Set replaces the list's contents outright.
func (n *Nodes) Set(nodes []*Node) { n.s = nodes }

// IsExpNode reports whether the node is a typed expression.
func (n *Node) IsExpNode() bool { return n.Tag.IsExpNode() }

// IsTypeNode reports whether the node is a type.
func (n *Node) IsTypeNode() bool { return n.Tag.IsTypeNode() }

// IsNamedNode reports whether the node carries a Name/Owner header.
func (n *Node) IsNamedNode() bool { return n.Tag.IsNamedNode() }

// IsMethodType reports whether the node is a type that may own methods.
func (n *Node) IsMethodType() bool { return n.Tag.IsMethodType() }

// NameText returns the node's interned name text, or "" if unnamed.
func (n *Node) NameText() string {
	if n.Name == nil {
		return ""
	}
	return n.Name.Text
}

// IsPrivateName reports whether the node's name is `_`-prefixed, the
// convention §4.6.3 uses to gate method/field access to the declaring type.
func (n *Node) IsPrivateName() bool {
	t := n.NameText()
	return len(t) > 0 && t[0] == '_'
}
