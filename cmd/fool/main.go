// FOOL CLI - compiles FOOL programs and runs them on the stack VM
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/fool/compiler"
	"github.com/chazu/fool/manifest"
	"github.com/chazu/fool/server"
	"github.com/chazu/fool/vm"
)

var log = commonlog.GetLogger("fool.cli")

// Exit statuses.
const (
	exitOK      = 0
	exitCompile = 1 // usage, I/O or compile errors
	exitRuntime = 2 // fatal VM error
)

// imageExt marks image outputs of -o.
const imageExt = ".fimg"

type options struct {
	showAsm   bool
	showAST   bool
	checkOnly bool
	output    string
	asmInput  bool
	imgInput  bool
	lsp       bool
	verbose   bool
	trace     bool
	memSize   int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "build" {
		return runBuild(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("fool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.BoolVar(&opts.showAsm, "S", false, "Print the generated assembly instead of running")
	fs.BoolVar(&opts.showAST, "ast", false, "Print the resolved AST instead of running")
	fs.BoolVar(&opts.checkOnly, "check", false, "Only report syntax, scope and type errors")
	fs.StringVar(&opts.output, "o", "", "Write assembly (or an image, for "+imageExt+" paths) instead of running")
	fs.BoolVar(&opts.asmInput, "asm", false, "Input is SVM assembly")
	fs.BoolVar(&opts.imgInput, "image", false, "Input is a compiled image")
	fs.BoolVar(&opts.lsp, "lsp", false, "Start the language server on stdio")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output")
	fs.BoolVar(&opts.trace, "trace", false, "Log every executed instruction")
	fs.IntVar(&opts.memSize, "mem", 0, "Number of VM memory cells (default from fool.toml or 10000)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: fool [options] [file]\n")
		fmt.Fprintf(stderr, "       fool build\n\n")
		fmt.Fprintf(stderr, "Compiles a FOOL program and runs it. Without a file, the entry of\n")
		fmt.Fprintf(stderr, "the nearest fool.toml is used.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  fool prog.fool              # compile and run\n")
		fmt.Fprintf(stderr, "  fool -S prog.fool           # show assembly\n")
		fmt.Fprintf(stderr, "  fool -o prog.fimg prog.fool # save an image\n")
		fmt.Fprintf(stderr, "  fool -image prog.fimg       # run an image\n")
		fmt.Fprintf(stderr, "  fool -lsp                   # language server\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitCompile
	}

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(stderr, "Error loading %s: %v\n", manifest.FileName, err)
		return exitCompile
	}
	if m == nil {
		cwd, _ := os.Getwd()
		m = manifest.Default(cwd)
	}
	configureLogging(m, opts.verbose)

	if opts.lsp {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(stderr, "LSP error: %v\n", err)
			return exitCompile
		}
		return exitOK
	}

	if opts.memSize <= 0 {
		opts.memSize = m.VM.Memory
	}
	opts.trace = opts.trace || m.VM.Trace

	path := m.EntryPath()
	if fs.NArg() > 1 {
		fs.Usage()
		return exitCompile
	}
	if fs.NArg() == 1 {
		path = fs.Arg(0)
	}

	switch {
	case opts.imgInput:
		return runImage(path, opts, stdout, stderr)
	case opts.asmInput:
		return runAsm(path, opts, stdout, stderr)
	}
	return runSource(path, opts, stdout, stderr)
}

func configureLogging(m *manifest.Manifest, verbose bool) {
	verbosity := m.Log.Verbosity
	if verbose && verbosity < 1 {
		verbosity = 1
	}
	var path *string
	if p := m.LogPath(); p != "" {
		path = &p
	}
	commonlog.Configure(verbosity, path)
}

// compileFile compiles the FOOL program at path and reports diagnostics on
// stderr. It returns nil when compilation failed.
func compileFile(path string, stderr io.Writer) (string, *compiler.Result) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return "", nil
	}
	src := string(data)

	res, err := compiler.Compile(src)
	if err != nil {
		var list compiler.ErrorList
		if errors.As(err, &list) {
			for _, d := range list {
				fmt.Fprintf(stderr, "%s: %s\n", path, d)
			}
			fmt.Fprintf(stderr, "%d error(s), compilation stopped\n", len(list))
		} else {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
		}
		return src, nil
	}
	log.Infof("compiled %s: program has type %s", path, compiler.TypeString(res.Type))
	return src, res
}

func runSource(path string, opts options, stdout, stderr io.Writer) int {
	src, res := compileFile(path, stderr)
	if res == nil {
		return exitCompile
	}

	switch {
	case opts.checkOnly:
		if opts.verbose {
			fmt.Fprintf(stdout, "%s: ok, type %s\n", path, compiler.TypeString(res.Type))
		}
		return exitOK
	case opts.showAST:
		compiler.Dump(stdout, res.Program)
		return exitOK
	case opts.showAsm:
		fmt.Fprint(stdout, res.Asm)
		return exitOK
	}

	prog, err := vm.Assemble(res.Asm)
	if err != nil {
		fmt.Fprintf(stderr, "Internal error: %v\n", err)
		return exitCompile
	}

	if opts.output != "" {
		return writeOutput(opts.output, isImagePath(opts.output), prog, src, opts, stdout, stderr)
	}
	return execute(prog, opts, stdout, stderr)
}

func isImagePath(path string) bool {
	return strings.HasSuffix(path, imageExt)
}

func writeOutput(path string, image bool, prog *vm.Program, src string, opts options, stdout, stderr io.Writer) int {
	var err error
	if image {
		err = vm.SaveImage(path, vm.NewImage(prog, src, opts.memSize))
	} else {
		err = os.WriteFile(path, []byte(prog.Text()), 0o644)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCompile
	}
	if opts.verbose {
		fmt.Fprintf(stdout, "Wrote %s (%d cells)\n", path, len(prog.Code))
	}
	return exitOK
}

func runAsm(path string, opts options, stdout, stderr io.Writer) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCompile
	}
	prog, err := vm.Assemble(string(data))
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", path, err)
		return exitCompile
	}
	if opts.output != "" {
		return writeOutput(opts.output, isImagePath(opts.output), prog, "", opts, stdout, stderr)
	}
	return execute(prog, opts, stdout, stderr)
}

func runImage(path string, opts options, stdout, stderr io.Writer) int {
	img, err := vm.LoadImage(path)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", path, err)
		return exitCompile
	}
	prog, err := img.Program()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", path, err)
		return exitCompile
	}
	if img.MemSize > 0 {
		opts.memSize = img.MemSize
	}
	log.Infof("loaded image %s (build %s)", path, img.BuildID)
	return execute(prog, opts, stdout, stderr)
}

func execute(prog *vm.Program, opts options, stdout, stderr io.Writer) int {
	machine := vm.New(vm.Config{MemSize: opts.memSize, Trace: opts.trace, Output: stdout})
	if err := machine.Run(prog); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitRuntime
	}
	if opts.verbose {
		regs := machine.Registers()
		fmt.Fprintf(stderr, "halted: sp=%d hp=%d\n", regs.SP, regs.HP)
	}
	return exitOK
}

// runBuild processes the `fool build` subcommand: it compiles the manifest
// entry and writes the configured assembly and image outputs.
func runBuild(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fool build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("C", ".", "Project directory")
	verbose := fs.Bool("v", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return exitCompile
	}

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading %s: %v\n", manifest.FileName, err)
		return exitCompile
	}
	if m == nil {
		fmt.Fprintf(stderr, "Error: no %s found\n", manifest.FileName)
		return exitCompile
	}
	configureLogging(m, *verbose)

	if m.Build.Asm == "" && m.Build.Image == "" {
		fmt.Fprintf(stderr, "Nothing to build: set [build] asm or image in %s\n", manifest.FileName)
		return exitCompile
	}

	opts := options{memSize: m.VM.Memory, verbose: *verbose}
	src, res := compileFile(m.EntryPath(), stderr)
	if res == nil {
		return exitCompile
	}
	prog, err := vm.Assemble(res.Asm)
	if err != nil {
		fmt.Fprintf(stderr, "Internal error: %v\n", err)
		return exitCompile
	}

	outputs := []struct {
		path  string
		image bool
	}{
		{m.AsmPath(), false},
		{m.ImagePath(), true},
	}
	for _, out := range outputs {
		if out.path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(out.path), 0o755); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitCompile
		}
		if code := writeOutput(out.path, out.image, prog, src, opts, stdout, stderr); code != exitOK {
			return code
		}
	}
	if *verbose {
		fmt.Fprintf(stdout, "Built %s\n", m.Project.Name)
	}
	return exitOK
}
