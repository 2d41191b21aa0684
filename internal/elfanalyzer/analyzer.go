package elfanalyzer

import (
	"context"
	"debug/elf"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/isseis/go-manifest-producer/internal/dwarflang"
	"github.com/isseis/go-manifest-producer/internal/elfimage"
)

// Mode selects which discovered functions are analyzed.
type Mode string

const (
	// ModeAll analyzes every discovered function.
	ModeAll Mode = "all"

	// ModeRequested analyzes only functions matched from Options.APIs.
	ModeRequested Mode = "requested"
)

// ParseMode converts a configuration string to a Mode. The empty string
// selects ModeAll.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAll:
		return ModeAll, nil
	case ModeRequested:
		return ModeRequested, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Options configures an Analyzer.
type Options struct {
	Mode Mode

	// APIs are the names of interest. They are matched in both modes; in
	// ModeRequested they also select the functions to analyze.
	APIs []string

	// Workers bounds the number of functions analyzed concurrently.
	// Values below 1 mean sequential analysis.
	Workers int

	// MaxBackwardScan bounds the backward scan for a syscall number.
	MaxBackwardScan int

	// ExtraWrappers extends the import name to syscall table.
	ExtraWrappers map[string][]string
}

// Result is the outcome of analyzing one binary.
type Result struct {
	Binary    elfimage.Info      `json:"binary"`
	Language  dwarflang.Language `json:"-"`
	Mode      Mode               `json:"mode"`
	Functions []Function         `json:"functions"`

	// Analyses holds one entry per analyzed function: discovery order in
	// ModeAll, match order in ModeRequested.
	Analyses  []FunctionAnalysis `json:"analyses"`
	Matches   []Match            `json:"matches,omitempty"`
	Unmatched []string           `json:"unmatched,omitempty"`
}

// Analyzer runs the full pipeline: load, classify, discover, resolve and
// compute syscall sets.
type Analyzer struct {
	opts     Options
	wrappers *WrapperTable
	table    *X86_64SyscallTable
}

// NewAnalyzer validates opts and creates an Analyzer.
func NewAnalyzer(opts Options) (*Analyzer, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	opts.Mode = mode
	if opts.Mode == ModeRequested && len(opts.APIs) == 0 {
		return nil, ErrNoAPIs
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Analyzer{
		opts:     opts,
		wrappers: NewWrapperTable(opts.ExtraWrappers),
		table:    NewX86_64SyscallTable(),
	}, nil
}

// SyscallTable returns the syscall number table used for naming.
func (a *Analyzer) SyscallTable() *X86_64SyscallTable { return a.table }

// AnalyzeFile opens path and analyzes it. The file is closed before
// AnalyzeFile returns on every path.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (result *Result, err error) {
	img, err := elfimage.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := img.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, closeErr)
		}
	}()
	return a.AnalyzeImage(ctx, img)
}

// AnalyzeImage analyzes an already loaded image. Fatal conditions are
// returned as errors; per-function problems are recorded in the result.
func (a *Analyzer) AnalyzeImage(ctx context.Context, img *elfimage.Image) (*Result, error) {
	started := time.Now()

	if err := img.RequireMachine(elf.EM_X86_64); err != nil {
		return nil, err
	}
	if img.IsStripped() {
		return nil, elfimage.ErrStripped
	}

	lang, err := dwarflang.Classify(img.File())
	if err != nil {
		return nil, err
	}

	funcs, err := DiscoverFunctions(img.File(), lang)
	if err != nil {
		return nil, err
	}

	resolver, err := NewRegionResolver(img)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Binary:    img.Info(),
		Language:  lang,
		Mode:      a.opts.Mode,
		Functions: funcs,
	}
	result.Matches, result.Unmatched = MatchAPIs(funcs, a.opts.APIs)
	for _, api := range result.Unmatched {
		slog.Warn("No function matches requested API", slog.String("api", api))
	}

	targets := funcs
	if a.opts.Mode == ModeRequested {
		targets = matchedFunctions(result.Matches)
	}

	engine := NewFlowEngine(resolver, funcs, FlowConfig{
		Language:        lang,
		Wrappers:        a.wrappers,
		Table:           a.table,
		MaxBackwardScan: a.opts.MaxBackwardScan,
	})
	analyses, err := a.AnalyzeFunctions(ctx, engine, targets)
	if err != nil {
		return nil, err
	}
	result.Analyses = analyses

	slog.Info("Binary analyzed",
		slog.String("binary", img.Path()),
		slog.String("language", lang.String()),
		slog.Bool("static", resolver.Static()),
		slog.Int("functions", len(funcs)),
		slog.Int("analyzed", len(analyses)),
		slog.Int64("duration_ms", time.Since(started).Milliseconds()))
	return result, nil
}

// AnalyzeFunctions runs engine over targets on a bounded worker pool.
// Results keep the order of targets. Only cancellation of ctx stops the
// batch; per-function problems never do.
func (a *Analyzer) AnalyzeFunctions(ctx context.Context, engine *FlowEngine, targets []Function) ([]FunctionAnalysis, error) {
	analyses := make([]FunctionAnalysis, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, fn := range targets {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			analyses[i] = engine.Analyze(fn)
			logAnalysis(analyses[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return analyses, nil
}

func logAnalysis(fa FunctionAnalysis) {
	switch {
	case fa.Unresolved:
		slog.Warn("Function left unresolved",
			slog.String("function", fa.Function.Name),
			slog.String("error", fa.Error))
	case fa.Partial:
		slog.Debug("Function analyzed partially",
			slog.String("function", fa.Function.Name),
			slog.Int("syscalls", fa.Syscalls.Len()))
	default:
		slog.Debug("Function analyzed",
			slog.String("function", fa.Function.Name),
			slog.Int("syscalls", fa.Syscalls.Len()))
	}
}

// matchedFunctions returns the distinct functions of matches, keeping the
// order of first appearance.
func matchedFunctions(matches []Match) []Function {
	seen := make(map[rangeKey]struct{}, len(matches))
	var out []Function
	for _, m := range matches {
		k := keyOf(m.Function)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, m.Function)
	}
	return out
}
