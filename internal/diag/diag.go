// Package diag implements the compiler's diagnostic model (spec.md §7):
// accumulate-and-continue error/warning reporting with process-wide
// counters, source-span text, and a final summary line. The
// accumulate-then-fold shape is grounded on backend.go's didError flag
// (collect failures from every generator, decide pass/fail once at the
// end), generalized from a single bool to full error/warning counts and
// folded into one error via go.uber.org/multierr so callers that want a
// single `error` (e.g. the package's tests) can still get one while the
// per-diagnostic stream is still printed as it happens.
package diag

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/multierr"

	"cone-lang.dev/conec/internal/ir"
)

// Kind classifies a diagnostic per spec.md §7's abstract error taxonomy.
type Kind uint8

const (
	Lexical Kind = iota
	Syntactic
	Binding
	Typing
	Flow
	Structural
)

// Severity distinguishes an error (counts toward pipeline failure) from a
// warning (counted separately, never halts the pipeline).
type Severity uint8

const (
	SevError Severity = iota
	SevWarning
)

// Diagnostic is one reported problem: its severity/kind, message, and
// source location for the caret-pointing source-span print.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Message  string
	Loc      ir.Loc
}

func (d Diagnostic) label() string {
	if d.Severity == SevWarning {
		return "Warning"
	}
	return "Error"
}

// Error implements the error interface so a Diagnostic can be folded with
// multierr.Append/Combine alongside plain errors.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s (%s:%d:%d)", d.label(), d.Message, d.Loc.File, d.Loc.Line, d.Loc.ColTok)
}

// Bag accumulates diagnostics for one compiler run. Every pass shares one
// Bag; passes never halt on an individual error, only the driver (cmd/conec)
// consults ErrorCount after each pass to decide whether to run the next one
// (spec.md §7: "short-circuits the pipeline if any error was raised").
type Bag struct {
	w        io.Writer
	sources  map[string][]string // file -> lines, for caret printing
	errors   int
	warnings int
	all      []Diagnostic
}

// NewBag creates an empty diagnostic bag that prints to w as diagnostics
// are reported.
func NewBag(w io.Writer) *Bag {
	return &Bag{w: w, sources: make(map[string][]string)}
}

// AddSource registers a file's text so later diagnostics against it can
// print their offending source line; the lexer/parser/driver call this once
// per file before reporting anything against it.
func (b *Bag) AddSource(file, text string) {
	b.sources[file] = strings.Split(text, "\n")
}

// Error reports an error-severity diagnostic and prints it immediately.
func (b *Bag) Error(kind Kind, loc ir.Loc, format string, args ...any) {
	b.report(Diagnostic{Severity: SevError, Kind: kind, Message: fmt.Sprintf(format, args...), Loc: loc})
}

// Warning reports a warning-severity diagnostic and prints it immediately.
func (b *Bag) Warning(kind Kind, loc ir.Loc, format string, args ...any) {
	b.report(Diagnostic{Severity: SevWarning, Kind: kind, Message: fmt.Sprintf(format, args...), Loc: loc})
}

func (b *Bag) report(d Diagnostic) {
	if d.Severity == SevError {
		b.errors++
	} else {
		b.warnings++
	}
	b.all = append(b.all, d)
	b.print(d)
}

func (b *Bag) print(d Diagnostic) {
	fmt.Fprintf(b.w, "%s: %s\n", d.label(), d.Message)
	line := b.sourceLine(d.Loc)
	if line == "" {
		return
	}
	fmt.Fprintln(b.w, line)
	col := int(d.Loc.ColTok)
	if col < 0 {
		col = 0
	}
	fmt.Fprintln(b.w, strings.Repeat(" ", col)+"^")
}

func (b *Bag) sourceLine(loc ir.Loc) string {
	lines, ok := b.sources[loc.File]
	if !ok || loc.Line < 1 || int(loc.Line) > len(lines) {
		return ""
	}
	return lines[loc.Line-1]
}

// ErrorCount reports the number of errors reported so far.
func (b *Bag) ErrorCount() int { return b.errors }

// WarningCount reports the number of warnings reported so far.
func (b *Bag) WarningCount() int { return b.warnings }

// HasErrors reports whether any error-severity diagnostic has been
// reported; passes use this to decide whether to skip a subtree (spec.md
// §7).
func (b *Bag) HasErrors() bool { return b.errors > 0 }

// Summary prints the final "Unsuccessful compile: X errors, Y warnings" or
// "Compilation successful." line (spec.md §7).
func (b *Bag) Summary() {
	if b.errors > 0 {
		fmt.Fprintf(b.w, "Unsuccessful compile: %d errors, %d warnings\n", b.errors, b.warnings)
		return
	}
	if b.warnings > 0 {
		fmt.Fprintf(b.w, "Compilation successful, %d warnings.\n", b.warnings)
		return
	}
	fmt.Fprintln(b.w, "Compilation successful.")
}

// Err folds every reported diagnostic into a single error via
// go.uber.org/multierr, for callers (e.g. tests) that want one error value
// to propagate up while the per-diagnostic text has already been streamed
// by report/print above.
func (b *Bag) Err() error {
	var err error
	for _, d := range b.all {
		if d.Severity == SevError {
			err = multierr.Append(err, d)
		}
	}
	return err
}
