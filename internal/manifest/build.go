package manifest

import (
	"io"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/isseis/go-manifest-producer/internal/elfanalyzer"
)

// Categorizer maps a syscall name to its capability category.
type Categorizer interface {
	Category(name string) elfanalyzer.SyscallCategory
}

// NewRunID returns a new ULID for a run started at t. A nil entropy source
// selects the ulid package default.
func NewRunID(t time.Time, entropy io.Reader) (string, error) {
	if entropy == nil {
		entropy = ulid.DefaultEntropy()
	}
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Build assembles the manifests of one analysis result.
func Build(result *elfanalyzer.Result, categories Categorizer, runID string, generatedAt time.Time) *Manifest {
	header := Header{
		SchemaVersion: CurrentSchemaVersion,
		RunID:         runID,
		GeneratedAt:   generatedAt.UTC(),
	}

	linkage := "dynamic"
	if result.Binary.Static {
		linkage = "static"
	}

	apisByFunction := make(map[uint64][]string)
	for _, m := range result.Matches {
		apisByFunction[m.Function.Start] = append(apisByFunction[m.Function.Start], m.API)
	}

	flow := &FlowCall{
		Header:    header,
		Functions: make([]FunctionFlow, 0, len(result.Analyses)),
		Unmatched: result.Unmatched,
	}
	features := &FeatureManifest{
		Header:    header,
		Functions: make([]FunctionFeatures, 0, len(result.Analyses)),
	}
	all := make(map[string]struct{})

	for _, fa := range result.Analyses {
		flow.Functions = append(flow.Functions, FunctionFlow{
			Name:            fa.Function.Name,
			Symbol:          fa.Function.Symbol,
			Start:           fa.Function.Start,
			End:             fa.Function.End,
			APIs:            apisByFunction[fa.Function.Start],
			Syscalls:        fa.Syscalls.Sorted(),
			Indeterminate:   fa.Indeterminate,
			Partial:         fa.Partial,
			Unresolved:      fa.Unresolved,
			UnresolvedCalls: fa.UnresolvedCalls,
			Error:           fa.Error,
			Calls:           fa.Edges,
		})

		ff := functionFeatures(fa, categories)
		for _, c := range ff.Capabilities {
			all[c] = struct{}{}
		}
		features.Functions = append(features.Functions, ff)
	}
	features.Capabilities = sortedKeys(all)

	return &Manifest{
		BasicInfo: &BasicInfo{
			Header:         header,
			Binary:         result.Binary,
			Language:       result.Language.String(),
			LanguageFamily: result.Language.Family().String(),
			Linkage:        linkage,
			Mode:           string(result.Mode),
			FunctionCount:  len(result.Functions),
			AnalyzedCount:  len(result.Analyses),
		},
		FlowCall: flow,
		Features: features,
	}
}

func functionFeatures(fa elfanalyzer.FunctionAnalysis, categories Categorizer) FunctionFeatures {
	byCap := make(map[string][]string)
	for _, sc := range fa.Syscalls.Sorted() {
		c := string(categories.Category(sc))
		byCap[c] = append(byCap[c], sc)
	}
	caps := make(map[string]struct{}, len(byCap))
	for c := range byCap {
		caps[c] = struct{}{}
	}
	return FunctionFeatures{
		Name:                 fa.Function.Name,
		Capabilities:         sortedKeys(caps),
		SyscallsByCapability: byCap,
		Incomplete:           fa.Indeterminate || fa.Partial || fa.Unresolved || fa.UnresolvedCalls > 0,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
