package ir

import (
	"strings"
	"testing"
)

func TestDumpIndentsOneLevelPerChild(t *testing.T) {
	b := newTestBuilder()
	root := b.New(Block, Loc{})
	child := b.New(UIntLit, Loc{})
	child.UIntVal = 42
	grandchild := b.New(UIntLit, Loc{})
	root.Nbody.Append(child)
	child.Left = grandchild

	var sb strings.Builder
	Dump(&sb, root)
	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Dump produced %d lines, want 3:\n%s", len(lines), sb.String())
	}
	if strings.HasPrefix(lines[0], "|  ") {
		t.Errorf("root line has indent: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "|  ") || strings.HasPrefix(lines[1], "|  |  ") {
		t.Errorf("child line indent wrong: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "|  |  ") {
		t.Errorf("grandchild line indent wrong: %q", lines[2])
	}
}

func TestDumpNilIsNoop(t *testing.T) {
	var sb strings.Builder
	Dump(&sb, nil)
	if sb.String() != "" {
		t.Fatalf("Dump(nil) wrote %q, want empty", sb.String())
	}
}

func TestTypeStringRenders(t *testing.T) {
	b := newTestBuilder()
	i32 := b.NewNamed(IntNbr, Loc{}, "i32")
	mut := b.NewNamed(Perm, Loc{}, "mut")
	ref := b.Ref(Loc{}, nil, mut, i32)
	if got := typeString(ref); got != "&i32" {
		t.Errorf("typeString(&mut i32) = %q, want %q (mut elides its name)", got, "&i32")
	}

	arr := b.Array(Loc{}, 3, i32)
	if got := typeString(arr); got != "[3]i32" {
		t.Errorf("typeString([3]i32) = %q, want %q", got, "[3]i32")
	}

	tup := b.TTuple(Loc{}, i32, i32)
	if got := typeString(tup); got != "(i32, i32)" {
		t.Errorf("typeString((i32,i32)) = %q, want %q", got, "(i32, i32)")
	}
}
