package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a human-readable IR dump to w: one node per line, `|  ` of
// indent per nesting level (spec.md §6), in the order Ninit, Left, Right,
// List, Nbody, Rlist — the same order the passes walk children in.
func Dump(w io.Writer, n *Node) {
	dump(w, n, 0)
}

func dump(w io.Writer, n *Node, depth int) {
	if n == nil {
		return
	}
	fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("|  ", depth), n.Tag.String(), describe(n))
	for _, c := range n.Ninit.Slice() {
		dump(w, c, depth+1)
	}
	dump(w, n.Left, depth+1)
	dump(w, n.Right, depth+1)
	for _, c := range n.List.Slice() {
		dump(w, c, depth+1)
	}
	for _, c := range n.Nbody.Slice() {
		dump(w, c, depth+1)
	}
	for _, c := range n.Rlist.Slice() {
		dump(w, c, depth+1)
	}
}

// describe renders a short " name : Type" suffix for named/typed nodes, kept
// terse so a dump of a real program stays legible.
func describe(n *Node) string {
	var b strings.Builder
	if n.Name != nil {
		b.WriteString(" ")
		b.WriteString(n.Name.Text)
	}
	if n.Vtype != nil && n.Vtype != n {
		b.WriteString(" : ")
		b.WriteString(typeString(n.Vtype))
	}
	return b.String()
}

// typeString renders a type node's short name, used by both the printer and
// diagnostics (e.g. "type mismatch: want i32, got bool").
func typeString(t *Node) string {
	if t == nil {
		return "<nil>"
	}
	switch t.Tag {
	case Ref:
		return "&" + permName(t.Perm) + typeString(t.Left)
	case ArrayRef:
		return "&" + permName(t.Perm) + "[]" + typeString(t.Left)
	case VirtRef:
		return "&" + permName(t.Perm) + "dyn " + typeString(t.Left)
	case Ptr:
		return "*" + typeString(t.Left)
	case Array:
		return fmt.Sprintf("[%d]%s", t.Count, typeString(t.Left))
	case TTuple:
		parts := make([]string, 0, t.List.Len())
		for _, e := range t.List.Slice() {
			parts = append(parts, typeString(e))
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case Void:
		return "void"
	default:
		return t.NameText()
	}
}

func permName(p *Node) string {
	if p == nil {
		return ""
	}
	if p.NameText() == "mut" {
		return ""
	}
	return p.NameText() + " "
}
