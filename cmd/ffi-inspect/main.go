package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-ffi/bindings/icu"
	"github.com/wippyai/wasm-ffi/manifest"
	"github.com/wippyai/wasm-ffi/runtime"
)

type options struct {
	wasmFile     string
	manifestFile string
	op           string
	texts        string
	ints         string
	icu          bool
	wasi         bool
	list         bool
	schema       bool
	verbose      bool
	interactive  bool
}

func main() {
	var o options
	flag.StringVar(&o.wasmFile, "wasm", "", "Path to core wasm module")
	flag.StringVar(&o.manifestFile, "manifest", "", "Path to YAML manifest")
	flag.BoolVar(&o.icu, "icu", false, "Use the built-in ICU4X manifest")
	flag.StringVar(&o.op, "op", "", "Operation (or export, without a manifest) to call")
	flag.StringVar(&o.texts, "text", "", "String arguments, comma-separated, in declared order")
	flag.StringVar(&o.ints, "int", "", "Integer parameters appended after the strings, comma-separated")
	flag.BoolVar(&o.wasi, "wasi", false, "Provide wasi_snapshot_preview1")
	flag.BoolVar(&o.list, "list", false, "List exports and manifest operations and exit")
	flag.BoolVar(&o.schema, "schema", false, "Print the manifest JSON Schema and exit")
	flag.BoolVar(&o.verbose, "v", false, "Debug logging")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	if o.schema {
		out, err := manifest.Schema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	if o.wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: ffi-inspect -wasm <file.wasm> [-manifest m.yaml | -icu] [-op name] [-text a,b] [-int 1,2]")
		fmt.Fprintln(os.Stderr, "       ffi-inspect -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       ffi-inspect -wasm <file.wasm> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       ffi-inspect -schema")
		os.Exit(1)
	}

	logger := zap.NewNop()
	if o.verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
	defer func() { _ = logger.Sync() }()

	if o.interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(o, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(context.Background(), os.Stdout, o, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadManifest(o options) (*manifest.Manifest, error) {
	switch {
	case o.manifestFile != "" && o.icu:
		return nil, fmt.Errorf("-manifest and -icu are exclusive")
	case o.manifestFile != "":
		return manifest.Load(o.manifestFile)
	case o.icu:
		return icu.Manifest()
	}
	return nil, nil
}

func newRuntime(ctx context.Context, o options, man *manifest.Manifest, logger *zap.Logger) (*runtime.Runtime, error) {
	opts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithWASI(o.wasi),
		runtime.WithStdio(os.Stdout, os.Stderr),
	}
	if man != nil {
		opts = append(opts, runtime.WithManifest(man))
	}
	return runtime.New(ctx, opts...)
}

func run(ctx context.Context, w io.Writer, o options, logger *zap.Logger) error {
	man, err := loadManifest(o)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	rt, err := newRuntime(ctx, o, man, logger)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	mod, err := rt.LoadFile(ctx, o.wasmFile)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}

	exports := mod.Exports()
	fmt.Fprintf(w, "Module: %s\n", o.wasmFile)
	fmt.Fprintf(w, "Imports: %d\n", len(mod.Imports()))
	for _, name := range mod.Imports() {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintf(w, "Exports: %d\n", len(exports))
	for _, name := range exports {
		fmt.Fprintf(w, "  %s\n", name)
	}
	if man != nil {
		printOperations(w, man, exports)
	}

	if o.list {
		return nil
	}
	if o.op == "" {
		fmt.Fprintf(w, "\nNo operation specified. Use -op to call one.\n")
		return nil
	}

	ints, err := parseInts(o.ints)
	if err != nil {
		return err
	}

	inst, err := mod.Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer inst.Close(ctx)

	call := newCall(man, o.op)
	fmt.Fprintf(w, "\nCalling %s...\n", call.describe())
	result, err := call.run(ctx, inst.Bridge(), splitList(o.texts), ints)
	if err != nil {
		return fmt.Errorf("call %s: %w", o.op, err)
	}
	fmt.Fprintf(w, "Result: %s\n", result)
	return nil
}

func printOperations(w io.Writer, man *manifest.Manifest, exports []string) {
	have := make(map[string]bool, len(exports))
	for _, e := range exports {
		have[e] = true
	}
	fmt.Fprintf(w, "\nOperations (%s):\n", man.Module)
	for _, op := range man.Operations {
		mark := "ok"
		if !have[op.Export] {
			mark = "missing"
		}
		fmt.Fprintf(w, "  %-7s %s -> %s\n", mark, newCall(man, op.Name).describe(), op.Export)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseInts(s string) ([]uint64, error) {
	var out []uint64
	for _, f := range splitList(s) {
		f = strings.TrimSpace(f)
		if v, err := strconv.ParseInt(f, 0, 64); err == nil {
			out = append(out, uint64(v))
			continue
		}
		v, err := strconv.ParseUint(f, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("integer parameter %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}
