// Package ir implements the Cone intermediate representation: the tagged
// node model (spec.md §3), its structural type table (§4.8), and the IR dump
// printer consumed by --print-ir (§6).
//
// The node model follows the shape of the real Go compiler's own IR
// (cmd/compile/internal/gc: one flat Node struct, a big Op enum, generic
// Left/Right/List tree fields) rather than one Go type per AST node kind:
// that is how a systems-language compiler with no sum types represents a
// tagged union cheaply, and the source Cone compiler (original_source/
// src/c-compiler/ir/*) does the same in C. Go has sum types via interfaces,
// but cloning (§4.6.8, generics/macros) and arena allocation are much
// simpler against one concrete struct type, so this package keeps the
// single-struct shape and uses the Tag to select behavior, the same
// trade-off the source project made.
package ir

// Tag identifies a node's concrete variant. The high bits partition tags
// into four families (spec.md §3): statement, typed-expression, type, and
// meta (generics/macros). Two further predicates, IsNamedNode and
// IsMethodType, are orthogonal to family and are looked up per-tag via
// tagInfo rather than stored as per-node flags, since they are a property of
// the variant, not of any one instance.
type Tag uint16

const (
	groupShift = 12
	groupMask  = 0xF << groupShift

	groupStmt = Tag(1) << groupShift
	groupExpr = Tag(2) << groupShift
	groupType = Tag(3) << groupShift
	groupMeta = Tag(4) << groupShift
)

// Statement tags.
const (
	Module Tag = groupStmt + iota
	Import
	Return
	BlockReturn
	Break
	Continue
	FnDcl
	VarDcl
	FieldDcl
	ConstDcl
	Swap
	Intrinsic
	Typedef
)

// Typed-expression tags.
const (
	UIntLit Tag = groupExpr + iota
	FloatLit
	StringLit
	NilLit
	NullLit
	ArrayLit
	TypeLit
	NamedVal
	VTuple
	NameUse // re-tagged to VarNameUse/TypeNameUse by name resolution
	VarNameUse
	TypeNameUse
	FnCall // overloaded: call, method call, index, field access, type literal
	ArrIndex
	FldAccess
	Assign
	Cast
	Is
	Deref
	Borrow
	ArrayBorrow
	Allocate
	ArrayAlloc
	Sizeof
	LogicNot
	LogicAnd
	LogicOr
	Alias
	Block
	LoopBlock
	If
)

// Type tags.
const (
	FnSig Tag = groupType + iota
	Ref
	ArrayRef
	VirtRef
	Ptr
	Array
	ArrayDeref
	TTuple
	Void
	IntNbr
	UintNbr
	FloatNbr
	Struct
	Enum
	Perm
	Region
	Lifetime
	TypedefType
)

// Meta tags.
const (
	Generic Tag = groupMeta + iota
	Macro
	GenVarDcl
	GenVarUse
)

// Group returns the tag's statement/expression/type/meta partition.
func (t Tag) Group() Tag { return t & groupMask }

// IsStmtNode reports whether t belongs to the statement family.
func (t Tag) IsStmtNode() bool { return t.Group() == groupStmt }

// IsExpNode reports whether t belongs to the typed-expression family.
func (t Tag) IsExpNode() bool { return t.Group() == groupExpr }

// IsTypeNode reports whether t belongs to the type family.
func (t Tag) IsTypeNode() bool { return t.Group() == groupType }

// IsMetaNode reports whether t belongs to the generic/macro family.
func (t Tag) IsMetaNode() bool { return t.Group() == groupMeta }

// tagInfo carries the two orthogonal predicates from spec.md §3 ("named"
// and "method-bearing-type") plus a human-readable name for the IR printer.
type tagInfo struct {
	name          string
	named         bool
	methodBearing bool
}

var tagTable = map[Tag]tagInfo{
	Module:      {name: "Module"},
	Import:      {name: "Import"},
	Return:      {name: "Return"},
	BlockReturn: {name: "BlockReturn"},
	Break:       {name: "Break"},
	Continue:    {name: "Continue"},
	FnDcl:       {name: "FnDcl", named: true, methodBearing: false},
	VarDcl:      {name: "VarDcl", named: true},
	FieldDcl:    {name: "FieldDcl", named: true},
	ConstDcl:    {name: "ConstDcl", named: true},
	Swap:        {name: "Swap"},
	Intrinsic:   {name: "Intrinsic"},
	Typedef:     {name: "Typedef", named: true},

	UIntLit:     {name: "UIntLit"},
	FloatLit:    {name: "FloatLit"},
	StringLit:   {name: "StringLit"},
	NilLit:      {name: "NilLit"},
	NullLit:     {name: "NullLit"},
	ArrayLit:    {name: "ArrayLit"},
	TypeLit:     {name: "TypeLit"},
	NamedVal:    {name: "NamedVal"},
	VTuple:      {name: "VTuple"},
	NameUse:     {name: "NameUse"},
	VarNameUse:  {name: "VarNameUse"},
	TypeNameUse: {name: "TypeNameUse"},
	FnCall:      {name: "FnCall"},
	ArrIndex:    {name: "ArrIndex"},
	FldAccess:   {name: "FldAccess"},
	Assign:      {name: "Assign"},
	Cast:        {name: "Cast"},
	Is:          {name: "Is"},
	Deref:       {name: "Deref"},
	Borrow:      {name: "Borrow"},
	ArrayBorrow: {name: "ArrayBorrow"},
	Allocate:    {name: "Allocate"},
	ArrayAlloc:  {name: "ArrayAlloc"},
	Sizeof:      {name: "Sizeof"},
	LogicNot:    {name: "LogicNot"},
	LogicAnd:    {name: "LogicAnd"},
	LogicOr:     {name: "LogicOr"},
	Alias:       {name: "Alias"},
	Block:       {name: "Block"},
	LoopBlock:   {name: "LoopBlock"},
	If:          {name: "If"},

	FnSig:       {name: "FnSig", methodBearing: false},
	Ref:         {name: "Ref", methodBearing: true},
	ArrayRef:    {name: "ArrayRef", methodBearing: true},
	VirtRef:     {name: "VirtRef", methodBearing: true},
	Ptr:         {name: "Ptr", methodBearing: true},
	Array:       {name: "Array", methodBearing: false},
	ArrayDeref:  {name: "ArrayDeref"},
	TTuple:      {name: "TTuple"},
	Void:        {name: "Void"},
	IntNbr:      {name: "IntNbr", named: true, methodBearing: true},
	UintNbr:     {name: "UintNbr", named: true, methodBearing: true},
	FloatNbr:    {name: "FloatNbr", named: true, methodBearing: true},
	Struct:      {name: "Struct", named: true, methodBearing: true},
	Enum:        {name: "Enum", named: true, methodBearing: false},
	Perm:        {name: "Perm", named: true},
	Region:      {name: "Region", named: true, methodBearing: true},
	Lifetime:    {name: "Lifetime", named: true},
	TypedefType: {name: "TypedefType", named: true},

	Generic:   {name: "Generic", named: true},
	Macro:     {name: "Macro", named: true},
	GenVarDcl: {name: "GenVarDcl", named: true},
	GenVarUse: {name: "GenVarUse"},
}

// IsNamedNode reports whether nodes of tag t carry a Name/Owner header
// (spec.md §3, "named-node header").
func (t Tag) IsNamedNode() bool { return tagTable[t].named }

// IsMethodType reports whether tag t identifies a type that may own a
// method/field namespace (numeric types, Ref/Ptr/ArrayRef/VirtRef, Struct,
// Region).
func (t Tag) IsMethodType() bool { return tagTable[t].methodBearing }

// String renders the tag's name, used by the IR printer and by error
// messages.
func (t Tag) String() string {
	if info, ok := tagTable[t]; ok {
		return info.name
	}
	return "Tag(?)"
}
