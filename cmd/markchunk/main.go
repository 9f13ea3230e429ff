package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dgallion1/markchunk/internal/chunker"
	"github.com/dgallion1/markchunk/internal/markup"
	"github.com/dgallion1/markchunk/internal/source"
	"github.com/dgallion1/markchunk/internal/style"
	"github.com/dgallion1/markchunk/internal/textrender"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

type options struct {
	width        float64
	maxText      int
	stylePath    string
	measurer     string
	advancedMath bool
	watch        bool
	outPath      string
	verbose      bool
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("markchunk", pflag.ExitOnError)
	flags.Float64VarP(&opts.width, "width", "w", 0, "Container width in points (0 keeps the style width)")
	flags.IntVar(&opts.maxText, "max-text", chunker.DefaultMaxTextLength, "Runes per text chunk before a new chunk starts")
	flags.StringVarP(&opts.stylePath, "style", "s", "", "Style sheet file")
	flags.StringVar(&opts.measurer, "measurer", "canvas", "Text measurer: canvas|grid")
	flags.BoolVar(&opts.advancedMath, "advanced-math", true, "Route complex formulas through the vector renderer")
	flags.BoolVar(&opts.watch, "watch", false, "Regenerate whenever an input file changes")
	flags.StringVarP(&opts.outPath, "output", "o", "", "Output file instead of stdout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log generation details to stderr")

	flags.SetInterspersed(true)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: markchunk [flags] [inputs...]\n")
		fmt.Fprintln(os.Stderr, "\nConverts documents into measured display chunks, written as JSON.")
		fmt.Fprintln(os.Stderr, "If no input is provided, Markdown is read from stdin.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	gen, err := newGenerator(opts, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	writer, closeOut, err := resolveOutput(opts.outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open output: %v\n", err)
		os.Exit(1)
	}
	if closeOut != nil {
		defer func() { _ = closeOut.Close() }()
	}
	enc := newEncoder(writer)

	args := flags.Args()
	if len(args) == 0 {
		if opts.watch {
			fmt.Fprintln(os.Stderr, "--watch needs at least one input file")
			os.Exit(2)
		}
		res, err := convert(gen, os.Stdin, "stdin.md")
		if err != nil {
			fmt.Fprintf(os.Stderr, "convert stdin: %v\n", err)
			os.Exit(1)
		}
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		return
	}

	failed := false
	for _, path := range args {
		if err := convertPath(gen, enc, path); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		}
	}
	if opts.watch {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := watch(ctx, args, log, func(path string) {
			if err := convertPath(gen, enc, path); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			}
		}); err != nil {
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if failed {
		os.Exit(1)
	}
}

func newGenerator(opts options, log *slog.Logger) (*chunker.Generator, error) {
	st := style.Default()
	if opts.stylePath != "" {
		var err error
		if st, err = style.LoadFile(opts.stylePath); err != nil {
			return nil, err
		}
	}
	if opts.width > 0 {
		st.ContainerWidth = opts.width
	}
	st.Math.Advanced = opts.advancedMath

	var m textrender.Measurer
	switch opts.measurer {
	case "grid":
		m = textrender.NewGridMeasurer()
	case "canvas":
		cm, err := textrender.NewCanvasMeasurer()
		if err != nil {
			log.Warn("canvas measurer unavailable, using grid", "error", err)
			m = textrender.NewGridMeasurer()
		} else {
			m = cm
		}
	default:
		return nil, fmt.Errorf("unknown measurer %q (want canvas or grid)", opts.measurer)
	}

	return chunker.New(
		chunker.WithStyle(st),
		chunker.WithMaxTextLength(opts.maxText),
		chunker.WithMeasurer(m),
		chunker.WithLogger(log),
	), nil
}

// result is one converted input.
type result struct {
	File       string          `json:"file"`
	Title      string          `json:"title"`
	Identifier string          `json:"identifier"`
	Chunks     []chunker.Chunk `json:"chunks"`
}

func convertPath(gen *chunker.Generator, enc *json.Encoder, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	res, err := convert(gen, f, path)
	if err != nil {
		return err
	}
	return enc.Encode(res)
}

func convert(gen *chunker.Generator, r io.Reader, filename string) (*result, error) {
	conv, err := source.ForFile(filename, source.Options{PDFFallbackPdftotext: true})
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc, err := conv.Convert(bytes.NewReader(data), filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	chunks := gen.GenerateDocument(markup.NewParser().ParseString(doc.Markdown))
	res := &result{File: filename, Title: doc.Title, Chunks: chunks}
	if len(chunks) > 0 {
		res.Identifier = chunks[0].Identifier
	}
	return res, nil
}

// newEncoder indents output for terminals and writes one document per
// line otherwise.
func newEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	if isTerminal(w) {
		enc.SetIndent("", "  ")
	}
	return enc
}

func resolveOutput(path string) (io.Writer, io.Closer, error) {
	if path == "" {
		return os.Stdout, nil, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
