// expandc compiles a text expander manifest into the static trie tables
// linked into keyboard firmware.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/tliron/commonlog"
	"github.com/tliron/commonlog/simple"

	"github.com/chazu/textexpander/manifest"
	"github.com/chazu/textexpander/pkg/emit"
	"github.com/chazu/textexpander/pkg/trie"
)

var log = commonlog.GetLogger("expandc")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	manifestPath string
	prefix       string
	include      string
	imagePath    string
	bundlePath   string
	dump         bool
	verbose      int
	quiet        bool
}

func newFlagSet(opts *options, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("expandc", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.manifestPath, "manifest", "f", "", "manifest file (default: search the build directory)")
	fs.StringVarP(&opts.prefix, "prefix", "p", "", "C symbol prefix (default: "+emit.DefaultPrefix+")")
	fs.StringVar(&opts.include, "include", "", "trie header included by the source (default: "+emit.DefaultInclude+")")
	fs.StringVar(&opts.imagePath, "image", "", "also write a binary trie image to this path")
	fs.StringVar(&opts.bundlePath, "bundle", "", "also write a CBOR trie bundle to this path")
	fs.BoolVar(&opts.dump, "dump", false, "print a listing of the compiled trie to stdout")
	fs.CountVarP(&opts.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "only log errors")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: expandc [options] <build-dir> [<output.c> <output.h>]\n\n")
		fmt.Fprintf(stderr, "Compiles the expansions manifest found in <build-dir> into C trie tables.\n")
		fmt.Fprintf(stderr, "Output paths default to the manifest's [output] section.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  expandc build/ generated_trie.c generated_trie.h\n")
		fmt.Fprintf(stderr, "  expandc -f expansions.yaml --dump build/\n")
		fmt.Fprintf(stderr, "  expandc --image trie.bin -p kb_text build/ out.c out.h\n")
	}
	return fs
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	verbosity := opts.verbose
	if opts.quiet {
		verbosity = -2
	}
	configureLogging(verbosity, stderr)

	positional := fs.Args()
	if len(positional) != 1 && len(positional) != 3 {
		fs.Usage()
		return 2
	}
	buildDir := positional[0]
	var out outputs
	if len(positional) == 3 {
		out.source, out.header = positional[1], positional[2]
	}

	m, err := loadManifest(buildDir, opts.manifestPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		// Downstream build steps expect both files to exist.
		if out.source != "" {
			if stubErr := writeStubs(out, emit.Options{Prefix: opts.prefix, Include: opts.include}); stubErr != nil {
				fmt.Fprintf(stderr, "Error: %v\n", stubErr)
			}
		}
		return 1
	}

	out.applyDefaults(m, opts)
	if out.source == "" || out.header == "" {
		fmt.Fprintf(stderr, "Error: no output paths given and %s has no [output] source/header\n", m.Path)
		return 2
	}
	emitOpts := emit.Options{Prefix: opts.prefix, Include: opts.include}
	if emitOpts.Prefix == "" {
		emitOpts.Prefix = m.Output.Prefix
	}

	defs := m.Definitions()
	tbl, err := trie.Compile(defs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	sum := trie.Fingerprint(tbl)
	log.Infof("compiled %d definitions from %s: %d nodes, %d entries, %d pool bytes, fingerprint %x",
		len(defs), m.Path, tbl.NumNodes(), len(tbl.Entries), len(tbl.StringPool), sum[:8])

	files, err := render(tbl, out, emitOpts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, f := range files {
		if err := writeFile(f.path, f.data); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		log.Debugf("wrote %s (%d bytes)", f.path, len(f.data))
	}

	if opts.dump {
		fmt.Fprint(stdout, tbl.Disassemble())
	}
	return 0
}

// configureLogging writes log messages to w as they are emitted. A buffered
// simple backend is only flushed by kutil's exit hooks.
func configureLogging(verbosity int, w io.Writer) {
	backend := simple.NewBackend()
	backend.Buffered = false
	commonlog.SetBackend(backend)
	commonlog.Configure(verbosity, nil)
	backend.Writer = w
}

type outputs struct {
	source string
	header string
	image  string
	bundle string
}

// applyDefaults fills unset paths from the manifest. Manifest paths are
// relative to the manifest file.
func (o *outputs) applyDefaults(m *manifest.Manifest, opts options) {
	dir := filepath.Dir(m.Path)
	rel := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	if o.source == "" {
		o.source = rel(m.Output.Source)
	}
	if o.header == "" {
		o.header = rel(m.Output.Header)
	}
	o.image = opts.imagePath
	if o.image == "" {
		o.image = rel(m.Output.Image)
	}
	o.bundle = opts.bundlePath
	if o.bundle == "" {
		o.bundle = rel(m.Output.Bundle)
	}
}

func loadManifest(buildDir, explicit string) (*manifest.Manifest, error) {
	if explicit != "" {
		return manifest.Load(explicit)
	}
	return manifest.FindAndLoad(buildDir)
}

type outputFile struct {
	path string
	data []byte
}

// render produces every requested output in memory so nothing is written
// unless all of them succeed.
func render(tbl *trie.Table, out outputs, opts emit.Options) ([]outputFile, error) {
	var src, hdr bytes.Buffer
	if err := emit.WriteSource(&src, tbl, opts); err != nil {
		return nil, err
	}
	if err := emit.WriteHeader(&hdr, tbl, opts); err != nil {
		return nil, err
	}
	files := []outputFile{
		{out.source, src.Bytes()},
		{out.header, hdr.Bytes()},
	}
	if out.image != "" {
		files = append(files, outputFile{out.image, trie.MarshalImage(tbl)})
	}
	if out.bundle != "" {
		data, err := trie.MarshalBundle(tbl)
		if err != nil {
			return nil, err
		}
		files = append(files, outputFile{out.bundle, data})
	}
	return files, nil
}

func writeStubs(out outputs, opts emit.Options) error {
	var src, hdr bytes.Buffer
	if err := emit.WriteEmptySource(&src, opts); err != nil {
		return err
	}
	if err := emit.WriteHeader(&hdr, nil, opts); err != nil {
		return err
	}
	if err := writeFile(out.source, src.Bytes()); err != nil {
		return err
	}
	return writeFile(out.header, hdr.Bytes())
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
