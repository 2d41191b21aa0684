package manifest

import (
	"time"

	"github.com/isseis/go-manifest-producer/internal/elfanalyzer"
	"github.com/isseis/go-manifest-producer/internal/elfimage"
)

const (
	// CurrentSchemaVersion is the current manifest schema version.
	// Increment this when making breaking changes to any manifest format.
	CurrentSchemaVersion = 1
)

// File names written by Store.
const (
	BasicInfoFile       = "basic_info.json"
	FlowCallFile        = "flow_call.json"
	FeatureManifestFile = "feature_manifest.json"
)

// Header is shared by every manifest file. All files of one run carry the
// same RunID.
type Header struct {
	// SchemaVersion identifies the manifest format version.
	SchemaVersion int `json:"schema_version"`

	// RunID is a ULID identifying the producing run.
	RunID string `json:"run_id"`

	// GeneratedAt is when the run finished analysis.
	GeneratedAt time.Time `json:"generated_at"`
}

func (h Header) header() Header { return h }

// BasicInfo describes the binary as a whole.
type BasicInfo struct {
	Header

	Binary elfimage.Info `json:"binary"`

	// Language is the classified source language, e.g. "C99" or "Rust".
	Language string `json:"language"`

	// LanguageFamily groups dialects, e.g. "c" for C89 through C17.
	LanguageFamily string `json:"language_family"`

	// Linkage is "static" or "dynamic".
	Linkage string `json:"linkage"`

	Mode string `json:"mode"`

	FunctionCount int `json:"function_count"`
	AnalyzedCount int `json:"analyzed_count"`
}

// FlowCall holds the per-function syscall sets and the call edges found in
// each function body.
type FlowCall struct {
	Header

	Functions []FunctionFlow `json:"functions"`

	// Unmatched lists requested API names that matched no function.
	Unmatched []string `json:"unmatched,omitempty"`
}

// FunctionFlow is the flow call entry for one analyzed function.
type FunctionFlow struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Start  uint64 `json:"start"`
	End    uint64 `json:"end"`

	// APIs lists the requested names that selected this function.
	APIs []string `json:"apis,omitempty"`

	// Syscalls is the sorted transitive syscall set.
	Syscalls []string `json:"syscalls"`

	Indeterminate   bool   `json:"indeterminate"`
	Partial         bool   `json:"partial"`
	Unresolved      bool   `json:"unresolved"`
	UnresolvedCalls int    `json:"unresolved_calls"`
	Error           string `json:"error,omitempty"`

	Calls []elfanalyzer.CallEdge `json:"calls"`
}

// FeatureManifest answers which kinds of resources each function touches.
type FeatureManifest struct {
	Header

	// Capabilities is the union over all functions.
	Capabilities []string `json:"capabilities"`

	Functions []FunctionFeatures `json:"functions"`
}

// FunctionFeatures maps one function's syscalls onto capability categories.
type FunctionFeatures struct {
	Name string `json:"name"`

	// Capabilities are the sorted categories of the function's syscalls.
	Capabilities []string `json:"capabilities"`

	// SyscallsByCapability lists the syscalls behind each capability.
	SyscallsByCapability map[string][]string `json:"syscalls_by_capability"`

	// Incomplete is set when the syscall set may be missing members
	// (indeterminate numbers, partial decode, unresolved code or calls).
	Incomplete bool `json:"incomplete"`
}

// Manifest bundles the three files of one run.
type Manifest struct {
	BasicInfo *BasicInfo
	FlowCall  *FlowCall
	Features  *FeatureManifest
}
