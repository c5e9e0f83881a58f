// Package main is the entry point for the partscan command.
//
// partscan partitions a file with a language scanner and prints the
// partitions. With -watch it keeps running and prints the partitions of
// every region that changes when the file is saved.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/dshills/partscan/internal/config"
	"github.com/dshills/partscan/internal/logging"
	"github.com/dshills/partscan/internal/partition"
	"github.com/dshills/partscan/internal/watch"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

// options holds the command line.
type options struct {
	configPath string
	lang       string
	logLevel   string
	watch      bool
	validate   bool
	tree       bool
	noColor    bool
	list       bool
	file       string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, code, ok := parseFlags(os.Args[1:], os.Stderr)
	if !ok {
		return code
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		return 1
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.validate {
		cfg.Partition.Validate = true
	}

	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closer.Close()

	if opts.noColor {
		color.NoColor = true
	}

	langs := newLanguages(cfg, log)
	if opts.list {
		for _, name := range langs.registry.Languages() {
			fmt.Println(name)
		}
		return 0
	}

	if err := scan(opts, cfg, langs, log, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func scan(opts options, cfg *config.Config, langs *languages, log *logrus.Logger, out io.Writer) error {
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return err
	}

	sc, release, err := langs.resolve(opts.lang, opts.file)
	if err != nil {
		return err
	}
	defer release()

	p := partition.New(sc,
		partition.WithLogger(log),
		partition.WithAutoBreak(cfg.Partition.AutoBreak),
		partition.WithValidation(cfg.Partition.Validate),
	)
	doc, err := watch.NewDocument(p, string(data))
	if err != nil {
		return err
	}

	pr := newPrinter(out)
	text := doc.Buffer().Text()
	if opts.tree {
		pr.tree(p.Root(), text)
	} else if err := pr.partitions(p, text, partition.Region{Length: len(text)}); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	w, err := watch.New(opts.file, doc, func(doc *watch.Document, regions []partition.Region) {
		text := doc.Buffer().Text()
		for _, r := range regions {
			pr.header(r)
			if err := pr.partitions(doc.Partitioner(), text, r); err != nil {
				log.WithError(err).Warn("printing region")
			}
		}
	}, watch.WithDebounce(cfg.Watch.Debounce.Duration), watch.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log.WithField("file", opts.file).Info("watching for changes")
	return w.Run(ctx)
}

// parseFlags parses args. When ok is false the command exits with code.
func parseFlags(args []string, stderr io.Writer) (opts options, code int, ok bool) {
	fs := flag.NewFlagSet("partscan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var showVersion bool
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.lang, "lang", "", "Language name, definition file (.toml, .yaml) or Lua scanner (.lua)")
	fs.StringVar(&opts.lang, "l", "", "Language (shorthand)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	fs.BoolVar(&opts.watch, "watch", false, "Keep running and print changed regions")
	fs.BoolVar(&opts.watch, "w", false, "Watch (shorthand)")
	fs.BoolVar(&opts.validate, "validate", false, "Check the partition tree after every update")
	fs.BoolVar(&opts.tree, "tree", false, "Print the partition tree instead of the partitions")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&opts.list, "languages", false, "List the available languages")
	fs.BoolVar(&showVersion, "version", false, "Show version information")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "partscan - incremental document partitioning\n\n")
		fmt.Fprintf(stderr, "Usage: partscan [options] file\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  partscan main.c                 Print the partitions of a C file\n")
		fmt.Fprintf(stderr, "  partscan -tree page.tmpl        Print the partition tree\n")
		fmt.Fprintf(stderr, "  partscan -l md.lua -w notes.md  Scan with a Lua scanner and watch\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, 0, false
		}
		return opts, 2, false
	}

	if showVersion {
		fmt.Fprintf(stderr, "partscan %s (%s)\n", version, commit)
		return opts, 0, false
	}
	if opts.logLevel != "" {
		if _, err := logrus.ParseLevel(opts.logLevel); err != nil {
			fmt.Fprintf(stderr, "Error: invalid log level %q\n", opts.logLevel)
			return opts, 2, false
		}
	}
	if opts.list {
		return opts, 0, true
	}

	switch fs.NArg() {
	case 1:
		opts.file = fs.Arg(0)
	case 0:
		fmt.Fprintf(stderr, "Error: no file given\n")
		fs.Usage()
		return opts, 2, false
	default:
		fmt.Fprintf(stderr, "Error: expected one file, got %s\n", strings.Join(fs.Args(), " "))
		return opts, 2, false
	}
	return opts, 0, true
}
