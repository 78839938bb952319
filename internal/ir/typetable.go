package ir

import "hash/maphash"

// TypeTable hash-conses the structural type families named in spec.md §4.8:
// Ref, ArrayRef, VirtRef, Ptr, Array, TTuple, FnSig. Any two structurally
// equal types share one canonical *Node, so later passes and the code
// generator can compare types by pointer (spec.md §8, invariant 6).
//
// The spec describes an open-addressed table that "doubles on high
// utilization"; Go's built-in map already gives that amortized-doubling
// behavior for the bucket index, so this table is a thin wrapper around
// map[uint64][]*Node (buckets keyed by structural hash, linear scan within
// a bucket for the rare genuine collision) rather than a hand-rolled probe
// sequence — the same "let the host language's map do the table-growth
// bookkeeping" choice the teacher makes throughout backend/types/types.go
// (DeclMap, unsignedSubtypes) instead of writing its own hash table.
type TypeTable struct {
	seed    maphash.Seed
	buckets map[uint64][]*Node
}

// NewTypeTable creates an empty, append-only type table.
func NewTypeTable() *TypeTable {
	return &TypeTable{seed: maphash.MakeSeed(), buckets: make(map[uint64][]*Node, 256)}
}

// Canon returns the canonical representative for a freshly built structural
// type node: either an existing structurally-equal node, or n itself if none
// exists yet (in which case n is recorded as the new canonical instance).
// Canon never mutates n's structural fields, only consults them.
func (tt *TypeTable) Canon(n *Node) *Node {
	h := tt.hash(n)
	for _, cand := range tt.buckets[h] {
		if structEqual(cand, n) {
			return cand
		}
	}
	tt.buckets[h] = append(tt.buckets[h], n)
	return n
}

// Len reports how many distinct canonical types are recorded.
func (tt *TypeTable) Len() int {
	n := 0
	for _, b := range tt.buckets {
		n += len(b)
	}
	return n
}

func (tt *TypeTable) hash(n *Node) uint64 {
	var h maphash.Hash
	h.SetSeed(tt.seed)
	hashNode(&h, n)
	return h.Sum64()
}

func hashNode(h *maphash.Hash, n *Node) {
	if n == nil {
		h.WriteByte(0)
		return
	}
	var tagBuf [2]byte
	tagBuf[0] = byte(n.Tag)
	tagBuf[1] = byte(n.Tag >> 8)
	h.Write(tagBuf[:])
	switch n.Tag {
	case Ref, ArrayRef, VirtRef:
		hashNode(h, n.Region)
		hashNode(h, n.Perm)
		hashNode(h, n.Left) // value type
	case Ptr:
		hashNode(h, n.Left)
	case Array:
		var cbuf [8]byte
		putI64(&cbuf, n.Count)
		h.Write(cbuf[:])
		hashNode(h, n.Left)
	case TTuple:
		for _, e := range n.List.Slice() {
			hashNode(h, e)
		}
	case FnSig:
		for _, p := range n.Params {
			hashNode(h, p.Vtype)
		}
		hashNode(h, n.Result)
	default:
		// Nominal types (Struct, Enum, IntNbr, ...) canonicalize by
		// declaration identity, not structure: hash the pointer's
		// interned name text, since two distinct declarations never
		// share a type even with identical shape (spec.md §4.8 only
		// names the structural families above as hash-consed).
		h.WriteString(n.NameText())
	}
}

func putI64(b *[8]byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

// structEqual reports whether two type nodes are structurally identical
// per the families hash-consed by TypeTable. Nominal types compare by
// pointer identity (they are never hash-consed: each declaration is its own
// canonical instance).
func structEqual(a, b *Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case Ref, ArrayRef, VirtRef:
		return a.Region == b.Region && a.Perm == b.Perm && structEqual(a.Left, b.Left)
	case Ptr:
		return structEqual(a.Left, b.Left)
	case Array:
		return a.Count == b.Count && structEqual(a.Left, b.Left)
	case TTuple:
		al, bl := a.List.Slice(), b.List.Slice()
		if len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !structEqual(al[i], bl[i]) {
				return false
			}
		}
		return true
	case FnSig:
		if len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !structEqual(a.Params[i].Vtype, b.Params[i].Vtype) {
				return false
			}
		}
		return structEqual(a.Result, b.Result)
	default:
		return false // nominal types never structurally-equal unless pointer-equal (handled above)
	}
}
