// Command conec is the Cone compiler's front-end driver (spec.md §6): it
// reads a source file, runs the pipeline parse_program -> name_resolve ->
// type_check_and_lower -> data_flow, and prints the compile summary, preceded
// by a dump of the resulting IR when --print-ir is given and every pass
// succeeded. Code generation is an
// external collaborator (spec.md §1) this driver never invokes.
//
// Flag/exit-code shape grounded on
// garnet/go/src/fidl/compiler/backend/backend.go's flag-parse-then-os.Exit
// pattern and cmd/botanist/main.go's leveled-logging driver; ported here from
// that package's stdlib `flag` to `pflag` per DESIGN.md (GNU-style long
// flags for `--print-ir`/`--output` match the CLI contract spec.md §6
// already specifies).
package main

import (
	goflag "flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/google/shlex"
	flag "github.com/spf13/pflag"

	"cone-lang.dev/conec/internal/corelib"
	"cone-lang.dev/conec/internal/diag"
	"cone-lang.dev/conec/internal/ir"
	"cone-lang.dev/conec/internal/names"
	"cone-lang.dev/conec/internal/parser"
	"cone-lang.dev/conec/internal/sema"
)

// Exit codes (spec.md §6).
const (
	ExitOK    = 0
	ExitError = 1
	ExitNF    = 2
	ExitMem   = 3
	ExitOpts  = 4
)

var (
	printIR       = flag.Bool("print-ir", false, "dump the fully analyzed IR before the compile summary")
	verbose       = flag.BoolP("verbose", "v", false, "raise glog verbosity (equivalent to -v=1)")
	outputDir     = flag.String("output", "", "directory the external code generator should write to (passed through, unused by this front-end)")
	extraLinkArgs = flag.String("extra-link-args", "", "space-separated linker arguments passed through to the external code generator")
)

func main() {
	// glog registers its own flags (-v, -logtostderr, ...) on the stdlib
	// flag.CommandLine; fold that set into pflag's so `--verbose`/`-v` here
	// can drive glog's verbosity threshold directly, matching cmd/botanist's
	// own glog-plus-flag wiring.
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
	if *verbose {
		goflag.Lookup("v").Value.Set("1") //nolint:errcheck // glog's own flag, always registered
	}

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: conec <source> [--print-ir] [-v] [--output DIR]")
		os.Exit(ExitOpts)
	}
	if *extraLinkArgs != "" {
		// Validated the same way a shell would split a passthrough string
		// (spec.md §6: these are handed to the external linker, never
		// interpreted here); a parse error is a bad-options exit, not a
		// compile error.
		if _, err := shlex.Split(*extraLinkArgs); err != nil {
			fmt.Fprintf(os.Stderr, "bad --extra-link-args: %v\n", err)
			os.Exit(ExitOpts)
		}
	}

	os.Exit(run(args[0], *outputDir))
}

func run(sourcePath, outputDir string) int {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "file not found: %s\n", sourcePath)
			return ExitNF
		}
		fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", sourcePath, err)
		return ExitNF
	}

	errs := diag.NewBag(os.Stdout)
	errs.AddSource(sourcePath, string(src))
	if outputDir != "" {
		glog.V(1).Infof("codegen output directory (unused by this front-end): %s", outputDir)
	}

	nt := names.NewTable()
	b := ir.NewBuilder(nt)
	lib := corelib.Bootstrap(b)
	glog.V(1).Infof("corelib bootstrapped: %d node(s) allocated", b.NodeCount())

	moduleName := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	p := parser.New(sourcePath, string(src), b, lib, errs)
	mod := p.ParseModule(moduleName)
	glog.V(1).Infof("parse_program: %d top-level decl(s), %s allocated",
		len(mod.Decls), humanize.Bytes(uint64(b.ArenaBytes())))
	if errs.HasErrors() {
		return finish(errs, nil, false)
	}

	mods := []*ir.Node{mod}

	sema.Resolve(b, lib, errs, mods)
	glog.V(1).Infof("name_resolve complete: %d error(s)", errs.ErrorCount())
	if errs.HasErrors() {
		return finish(errs, nil, false)
	}

	sema.TypeCheck(b, lib, errs, mods)
	glog.V(1).Infof("type_check_and_lower complete: %d error(s)", errs.ErrorCount())
	if errs.HasErrors() {
		return finish(errs, nil, false)
	}

	sema.DataFlow(b, lib, errs, mods)
	glog.V(1).Infof("data_flow complete: %d error(s)", errs.ErrorCount())
	if errs.HasErrors() {
		return finish(errs, nil, false)
	}

	glog.V(2).Infof("final node count: %d (%s)", b.NodeCount(), humanize.Bytes(uint64(b.ArenaBytes())))
	return finish(errs, mod, *printIR)
}

func finish(errs *diag.Bag, mod *ir.Node, dumpIR bool) int {
	if dumpIR && mod != nil {
		ir.Dump(os.Stdout, mod)
	}
	errs.Summary()
	if errs.HasErrors() {
		return ExitError
	}
	return ExitOK
}
