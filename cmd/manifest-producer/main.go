// Package main provides the manifest-producer command. It analyzes an ELF
// binary and writes the basic info, flow call and feature manifests.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/isseis/go-manifest-producer/internal/apilist"
	"github.com/isseis/go-manifest-producer/internal/config"
	"github.com/isseis/go-manifest-producer/internal/dwarflang"
	"github.com/isseis/go-manifest-producer/internal/elfanalyzer"
	"github.com/isseis/go-manifest-producer/internal/elfimage"
	"github.com/isseis/go-manifest-producer/internal/logging"
	"github.com/isseis/go-manifest-producer/internal/manifest"
	"github.com/isseis/go-manifest-producer/internal/safefileio"
	"github.com/isseis/go-manifest-producer/internal/terminal"
)

var (
	errNoBinary      = errors.New("an ELF file path must be provided as the first positional argument")
	errTooManyArgs   = errors.New("too many positional arguments")
	errEmptyAPIFlag  = errors.New("-api needs a non-empty name")
	errAnalysis      = errors.New("analysis failed")
	errWriteManifest = errors.New("failed to write manifests")
)

// options holds parsed command line arguments. Fields left at their zero
// value do not override the configuration file.
type options struct {
	binary     string
	apiList    string
	configPath string

	apis []string
	set  map[string]bool

	mode            string
	outputDir       string
	workers         int
	maxBackwardScan int
	logLevel        string
	logFormat       string
	logFile         string

	terminal terminal.Options
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		printUsage(fs, stderr)
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	logger, closeLog, err := logging.Setup(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		LogFile:  cfg.Logging.File,
		Console:  stderr,
		Terminal: opts.terminal,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error setting up logging: %v\n", err)
		return 1
	}
	defer func() {
		if err := closeLog(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: failed to close log file: %v\n", err)
		}
	}()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := produce(ctx, opts.binary, cfg, stdout); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", describeError(err))
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("manifest-producer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs, stderr) }
	fs.StringVar(&opts.configPath, "config", "", "Path to a TOML configuration file")
	fs.StringVar(&opts.configPath, "c", "", "Short alias for -config")
	fs.StringVar(&opts.mode, "mode", "", `Analysis mode: "all" or "requested" (default "all")`)
	fs.Func("api", "API name of interest; repeat the flag for more names", func(s string) error {
		if s == "" {
			return errEmptyAPIFlag
		}
		opts.apis = append(opts.apis, s)
		return nil
	})
	fs.StringVar(&opts.outputDir, "output", "", "Directory receiving the manifests (default \""+config.DefaultOutputDir+"\")")
	fs.StringVar(&opts.outputDir, "o", "", "Short alias for -output")
	fs.IntVar(&opts.workers, "workers", 0, "Number of functions analyzed concurrently (default 1)")
	fs.IntVar(&opts.maxBackwardScan, "max-backward-scan", 0, "Instructions scanned backwards for a syscall number (default 50)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default \"info\")")
	fs.StringVar(&opts.logFormat, "log-format", "", "Log format for non-interactive output: text or json (default \"text\")")
	fs.StringVar(&opts.logFile, "log-file", "", "Append debug level JSON logs to this file")
	fs.BoolVar(&opts.terminal.ForceInteractive, "interactive", false, "Force human-oriented console output")
	fs.BoolVar(&opts.terminal.ForceNonInteractive, "non-interactive", false, "Force machine-oriented console output")
	fs.BoolVar(&opts.terminal.ForceColor, "color", false, "Force colored console output")
	fs.BoolVar(&opts.terminal.DisableColor, "no-color", false, "Disable colored console output")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	switch rest := fs.Args(); len(rest) {
	case 0:
		return nil, fs, errNoBinary
	case 1:
		opts.binary = rest[0]
	case 2:
		opts.binary, opts.apiList = rest[0], rest[1]
	default:
		return nil, fs, fmt.Errorf("%w: %s", errTooManyArgs, strings.Join(rest[2:], " "))
	}
	return opts, fs, nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	if fs == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "Usage: %s [flags] <elf-file> [<api-list.json>]\n", filepath.Base(os.Args[0]))
	fs.PrintDefaults()
}

// loadConfig reads the configuration file, if any, and applies flag
// overrides on top of it.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.set["mode"] {
		cfg.Analysis.Mode = opts.mode
	}
	if opts.set["workers"] {
		cfg.Analysis.Workers = opts.workers
	}
	if opts.set["max-backward-scan"] {
		cfg.Analysis.MaxBackwardScan = opts.maxBackwardScan
	}
	if opts.set["output"] || opts.set["o"] {
		cfg.Output.Dir = opts.outputDir
	}
	if opts.set["log-level"] {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.set["log-format"] {
		cfg.Logging.Format = opts.logFormat
	}
	if opts.set["log-file"] {
		cfg.Logging.File = opts.logFile
	}
	if opts.apiList != "" {
		cfg.Analysis.APIList = opts.apiList
	}
	cfg.Analysis.APIs = apilist.Merge(cfg.Analysis.APIs, opts.apis)

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// produce analyzes binary and writes its manifests.
func produce(ctx context.Context, binary string, cfg *config.Config, stdout io.Writer) error {
	apis := cfg.Analysis.APIs
	if cfg.Analysis.APIList != "" {
		listed, err := apilist.Load(cfg.Analysis.APIList)
		if err != nil {
			return err
		}
		apis = apilist.Merge(apis, listed)
	}

	analyzer, err := elfanalyzer.NewAnalyzer(elfanalyzer.Options{
		Mode:            elfanalyzer.Mode(cfg.Analysis.Mode),
		APIs:            apis,
		Workers:         cfg.Analysis.Workers,
		MaxBackwardScan: cfg.Analysis.MaxBackwardScan,
		ExtraWrappers:   cfg.Wrappers,
	})
	if err != nil {
		return err
	}

	result, err := analyzer.AnalyzeFile(ctx, binary)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errAnalysis, binary, err)
	}

	finished := time.Now().UTC()
	runID, err := manifest.NewRunID(finished, nil)
	if err != nil {
		return err
	}
	m := manifest.Build(result, analyzer.SyscallTable(), runID, finished)

	store, err := manifest.NewStore(cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("%w: %w", errWriteManifest, err)
	}
	if err := store.Save(m); err != nil {
		return fmt.Errorf("%w: %w", errWriteManifest, err)
	}

	printSummary(stdout, result, m, store)
	return nil
}

func printSummary(w io.Writer, result *elfanalyzer.Result, m *manifest.Manifest, store *manifest.Store) {
	_, _ = fmt.Fprintf(w, "Analyzed %d of %d functions in %s (%s, %s)\n",
		len(result.Analyses), len(result.Functions), result.Binary.Name,
		m.BasicInfo.Language, m.BasicInfo.Linkage)
	for _, name := range result.Unmatched {
		_, _ = fmt.Fprintf(w, "API not found: %s\n", name)
	}
	_, _ = fmt.Fprintf(w, "Manifests written to %s (run %s)\n", store.Dir(), m.BasicInfo.RunID)
}

// describeError turns a fatal error into a message naming what the user can
// do about it.
func describeError(err error) string {
	var arch *elfimage.UnsupportedArchitectureError
	switch {
	case errors.Is(err, elfimage.ErrNotELF):
		return fmt.Sprintf("input is not an ELF binary: %v", err)
	case errors.Is(err, elfimage.ErrStripped):
		return fmt.Sprintf("binary is stripped; rebuild it with symbols and debug information (-g): %v", err)
	case errors.Is(err, dwarflang.ErrNoDebugInfo):
		return fmt.Sprintf("binary has no DWARF debug information; rebuild it with -g: %v", err)
	case errors.Is(err, dwarflang.ErrLanguageNotFound):
		return fmt.Sprintf("debug information names no known source language: %v", err)
	case errors.Is(err, elfanalyzer.ErrEmptyFunctionList):
		return fmt.Sprintf("binary defines no functions to analyze: %v", err)
	case errors.As(err, &arch):
		return fmt.Sprintf("only x86-64 binaries can be analyzed, got %s", arch.Machine)
	case errors.Is(err, safefileio.ErrIsSymlink):
		return fmt.Sprintf("refusing to follow a symbolic link; pass the real path: %v", err)
	case errors.Is(err, elfanalyzer.ErrNoAPIs):
		return fmt.Sprintf("requested mode needs API names (-api, an API list file or analysis.apis): %v", err)
	}
	return err.Error()
}
