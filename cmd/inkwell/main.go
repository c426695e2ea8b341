// Package main is a command-line driver for the Inkwell document engine.
//
// It builds a small document through transactions, prints the tree, the
// per-commit dirty sets and the revision changes, then exports the
// document, imports it into a second editor and checks the two agree.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dshills/inkwell/internal/config"
	"github.com/dshills/inkwell/internal/engine"
	"github.com/dshills/inkwell/internal/engine/codec"
	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/logging"
	"github.com/dshills/inkwell/internal/reconcile"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	ConfigPath string
	LogLevel   string
	Output     string
	Indent     bool
	Quiet      bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.NewLoader().Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Prefix: "inkwell",
	})

	out := io.Writer(os.Stdout)
	if opts.Quiet {
		out = io.Discard
	}

	if err := demo(cfg, log, out, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// printer is a binding that reports every view it creates or patches.
type printer struct {
	w io.Writer
}

func (p printer) Create(n node.Node) any {
	fmt.Fprintf(p.w, "  + %s %s\n", n.Type(), n.Key())
	return n.Key()
}

func (p printer) Update(prev, next node.Node, view any) any {
	fmt.Fprintf(p.w, "  ~ %s %s\n", next.Type(), next.Key())
	return view
}

func demo(cfg config.Config, log *logging.Logger, out io.Writer, opts options) error {
	e := engine.New(engine.WithConfig(cfg), engine.WithLogger(log))
	for _, tag := range []node.Type{node.TypeParagraph, node.TypeText, node.TypeDecorator} {
		if err := e.Registry().SetBinding(tag, printer{w: out}); err != nil {
			return err
		}
	}
	rec := reconcile.New(e.Registry(), reconcile.WithLogger(log))
	detach := rec.Attach(e)
	defer detach()

	start := e.State().ID()

	fmt.Fprintln(out, "commit: build")
	var title, body node.Key
	if _, err := e.Update(func(tx *engine.Txn) error {
		tx.Tag("build")
		p, err := tx.NewParagraph()
		if err != nil {
			return err
		}
		if title, err = tx.NewText("Hello, world"); err != nil {
			return err
		}
		if err := tx.Append(p, title); err != nil {
			return err
		}
		q, err := tx.NewParagraph()
		if err != nil {
			return err
		}
		if body, err = tx.NewText("Inkwell keeps every version."); err != nil {
			return err
		}
		hr, err := tx.NewDecorator(`{"kind":"rule"}`, false)
		if err != nil {
			return err
		}
		if err := tx.Append(q, body); err != nil {
			return err
		}
		if err := tx.Append(node.RootKey, p, hr, q); err != nil {
			return err
		}
		return tx.SetElementFormat(p, node.AlignCenter)
	}); err != nil {
		return err
	}

	fmt.Fprintln(out, "commit: format")
	u, err := e.Update(func(tx *engine.Txn) error {
		tx.Tag("format")
		parts, err := tx.SplitText(title, 5)
		if err != nil {
			return err
		}
		if err := tx.ToggleFormat(parts[0], node.FormatBold); err != nil {
			return err
		}
		return tx.Select(body, 0, 7)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "dirty: %s\n", joinKeys(u.Dirty().Keys()))

	fmt.Fprintln(out, "commit: edit")
	if _, err := e.Update(func(tx *engine.Txn) error {
		tx.Tag("edit")
		return tx.SpliceText(body, 0, 7, "It")
	}); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s\n", e.Reader().Dump(node.RootKey))
	changes, err := e.Changes(start, e.State().ID())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "changes since version %d:\n", start)
	for _, c := range changes {
		fmt.Fprintf(out, "  %s\n", c)
	}

	data, err := codec.Encode(e.State(), codec.Options{
		Meta:   codec.Meta{Editor: e.ID(), Namespace: e.Namespace()},
		Indent: opts.Indent,
	})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		log.Info("wrote %d bytes to %s", len(data), opts.Output)
	}

	s, err := codec.Decode(data, e.Registry())
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	copyEd := engine.New(engine.WithConfig(cfg), engine.WithLogger(log))
	if err := copyEd.SetState(s); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	want := e.Reader().TextContent(node.RootKey)
	got := copyEd.Reader().TextContent(node.RootKey)
	if want != got {
		return fmt.Errorf("import: text mismatch: %q != %q", want, got)
	}
	fmt.Fprintf(out, "\nround trip ok: %q\n", got)

	st := rec.Stats()
	fmt.Fprintf(out, "views: %d (created %d, updated %d, dropped %d)\n",
		rec.Len(), st.Created, st.Updated, st.Dropped)
	return nil
}

func joinKeys(ks []node.Key) string {
	parts := make([]string, len(ks))
	for i, k := range ks {
		parts[i] = string(k)
	}
	return strings.Join(parts, " ")
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml or .yaml)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
	flag.StringVar(&opts.Output, "o", "", "Write the exported document to this file")
	flag.BoolVar(&opts.Indent, "indent", false, "Indent the exported document")
	flag.BoolVar(&opts.Quiet, "q", false, "Suppress demo output")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Inkwell - rich-text document engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: inkwell [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  inkwell                          Run the demo\n")
		fmt.Fprintf(os.Stderr, "  inkwell -o doc.json -indent      Also export the document\n")
		fmt.Fprintf(os.Stderr, "  inkwell -c inkwell.toml          Use a config file\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Inkwell %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	return opts
}
