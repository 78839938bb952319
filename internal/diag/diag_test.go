package diag

import (
	"strings"
	"testing"

	"cone-lang.dev/conec/internal/ir"
)

func TestErrorAndWarningCounted(t *testing.T) {
	var sb strings.Builder
	b := NewBag(&sb)
	b.AddSource("f.cone", "fn main() i32 {\n    return x\n}\n")

	b.Error(Binding, ir.Loc{File: "f.cone", Line: 2, ColTok: 11}, "unknown name %q", "x")
	if b.ErrorCount() != 1 || b.WarningCount() != 0 {
		t.Fatalf("ErrorCount=%d WarningCount=%d, want 1, 0", b.ErrorCount(), b.WarningCount())
	}
	if !b.HasErrors() {
		t.Fatalf("HasErrors() = false after reporting an error")
	}

	b.Warning(Typing, ir.Loc{File: "f.cone", Line: 2}, "unused value")
	if b.WarningCount() != 1 {
		t.Fatalf("WarningCount() = %d, want 1", b.WarningCount())
	}

	out := sb.String()
	if !strings.Contains(out, `Error: unknown name "x"`) {
		t.Errorf("output missing error line: %q", out)
	}
	if !strings.Contains(out, "    return x") {
		t.Errorf("output missing offending source line: %q", out)
	}
	if !strings.Contains(out, strings.Repeat(" ", 11)+"^") {
		t.Errorf("output missing caret at column 11: %q", out)
	}
}

func TestSummaryLines(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(b *Bag)
		wantSub string
	}{
		{"clean", func(b *Bag) {}, "Compilation successful."},
		{"warnings only", func(b *Bag) { b.Warning(Lexical, ir.Loc{}, "x") }, "Compilation successful, 1 warnings."},
		{"errors", func(b *Bag) { b.Error(Syntactic, ir.Loc{}, "x") }, "Unsuccessful compile: 1 errors, 0 warnings"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var sb strings.Builder
			b := NewBag(&sb)
			c.setup(b)
			b.Summary()
			if !strings.Contains(sb.String(), c.wantSub) {
				t.Errorf("Summary() output = %q, want substring %q", sb.String(), c.wantSub)
			}
		})
	}
}

func TestErrFoldsOnlyErrorsViaMultierr(t *testing.T) {
	var sb strings.Builder
	b := NewBag(&sb)
	b.Warning(Lexical, ir.Loc{}, "warn only")
	if err := b.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil (warnings must not fold into the error)", err)
	}
	b.Error(Typing, ir.Loc{}, "boom")
	if err := b.Err(); err == nil {
		t.Fatalf("Err() = nil, want a non-nil error after Error() was reported")
	}
}

func TestSourceLineMissingFileIsSilent(t *testing.T) {
	var sb strings.Builder
	b := NewBag(&sb)
	b.Error(Lexical, ir.Loc{File: "unknown.cone", Line: 5, ColTok: 0}, "oops")
	// No AddSource call: the line/caret should simply be omitted, not panic
	// or print garbage.
	if strings.Contains(sb.String(), "^") {
		t.Errorf("caret printed despite no registered source: %q", sb.String())
	}
}
