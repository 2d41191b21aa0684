package elfanalyzer

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/arch/x86/x86asm"

	"github.com/isseis/go-manifest-producer/internal/dwarflang"
)

// defaultMaxBackwardScan is the default maximum number of instructions to
// scan backward from a syscall instruction.
const defaultMaxBackwardScan = 50

// maxWrapperArgScan bounds the backward scan before a wrapper call. Argument
// setup sits right before the call; a longer scan only finds stale values.
const maxWrapperArgScan = 6

// maxValidSyscallNumber is the maximum valid syscall number on x86_64.
// Immediates above it are treated as indirect settings.
const maxValidSyscallNumber = 500

// Determination method constants describe how a syscall number was found,
// or why it could not be.
const (
	DeterminationMethodImmediate                  = "immediate"
	DeterminationMethodGoWrapper                  = "go_wrapper"
	DeterminationMethodLibcSyscall                = "libc_syscall"
	DeterminationMethodWrapperTable               = "wrapper_table"
	DeterminationMethodUnknownDecodeFailed        = "unknown:decode_failed"
	DeterminationMethodUnknownControlFlowBoundary = "unknown:control_flow_boundary"
	DeterminationMethodUnknownIndirectSetting     = "unknown:indirect_setting"
	DeterminationMethodUnknownScanLimitExceeded   = "unknown:scan_limit_exceeded"
	DeterminationMethodUnknownLegacyABI           = "unknown:legacy_abi"
)

// ResolutionKind classifies a call edge.
type ResolutionKind string

const (
	KindLocalFunction      ResolutionKind = "local-function"
	KindDynamicImport      ResolutionKind = "dynamic-import"
	KindSyscallInstruction ResolutionKind = "direct-syscall-instruction"
	KindGoWrapper          ResolutionKind = "go-wrapper"
	KindUnresolved         ResolutionKind = "unresolved"
)

// CallEdge is one control transfer or kernel entry found in a function body.
type CallEdge struct {
	// Site is the address of the instruction.
	Site uint64 `json:"site"`

	// Target is the branch target, 0 when unknown or for syscall instructions.
	Target uint64 `json:"target,omitempty"`

	// Name is the callee, import or syscall name.
	Name string `json:"name,omitempty"`

	Kind ResolutionKind `json:"kind"`

	// TailCall is set for jmp instructions treated as calls.
	TailCall bool `json:"tail_call,omitempty"`

	// Syscalls lists what the edge contributes directly.
	Syscalls []string `json:"syscalls,omitempty"`

	// Method is a DeterminationMethod* value for edges that carry a
	// syscall number.
	Method string `json:"determination_method,omitempty"`
}

// FunctionAnalysis is the result for one function.
type FunctionAnalysis struct {
	Function Function `json:"function"`

	// Syscalls is the transitive syscall set.
	Syscalls SyscallSet `json:"syscalls"`

	// Indeterminate is set when a reachable syscall site has an unknown number.
	Indeterminate bool `json:"indeterminate"`

	// Partial is set when decoding stopped early in this function or in a
	// function it reaches.
	Partial bool `json:"partial"`

	// Unresolved is set when the function's own code could not be located.
	Unresolved bool `json:"unresolved"`

	// UnresolvedCalls counts call sites in this function whose target is unknown.
	UnresolvedCalls int `json:"unresolved_calls"`

	// Reached is the number of distinct local functions followed.
	Reached int `json:"reached"`

	// Edges are the direct edges of this function only.
	Edges []CallEdge `json:"edges"`

	// Error describes why Unresolved or Partial was set.
	Error string `json:"error,omitempty"`
}

// FlowConfig parameterizes a FlowEngine.
type FlowConfig struct {
	Language        dwarflang.Language
	Wrappers        *WrapperTable
	Table           SyscallNumberTable
	MaxBackwardScan int
}

// FlowEngine computes transitive syscall sets. Per-function facts are
// computed once and shared, so Analyze is safe for concurrent use.
type FlowEngine struct {
	resolver        *RegionResolver
	index           *functionIndex
	decoder         *X86Decoder
	table           SyscallNumberTable
	wrappers        *WrapperTable
	goABI           bool
	maxBackwardScan int

	mu    sync.Mutex
	facts map[rangeKey]*functionFacts
}

type rangeKey struct {
	start, end uint64
}

func keyOf(fn Function) rangeKey { return rangeKey{fn.Start, fn.End} }

// functionFacts are what one function body contributes on its own.
type functionFacts struct {
	syscalls        SyscallSet
	indeterminate   bool
	partial         bool
	err             error
	regionErr       bool
	unresolvedCalls int
	edges           []CallEdge
	callees         []Function
}

// NewFlowEngine creates an engine over the functions of one image.
func NewFlowEngine(resolver *RegionResolver, funcs []Function, cfg FlowConfig) *FlowEngine {
	if cfg.Wrappers == nil {
		cfg.Wrappers = NewWrapperTable(nil)
	}
	if cfg.Table == nil {
		cfg.Table = NewX86_64SyscallTable()
	}
	if cfg.MaxBackwardScan <= 0 {
		cfg.MaxBackwardScan = defaultMaxBackwardScan
	}
	return &FlowEngine{
		resolver:        resolver,
		index:           newFunctionIndex(funcs),
		decoder:         NewX86Decoder(),
		table:           cfg.Table,
		wrappers:        cfg.Wrappers,
		goABI:           cfg.Language.Family() == dwarflang.FamilyGo,
		maxBackwardScan: cfg.MaxBackwardScan,
		facts:           make(map[rangeKey]*functionFacts),
	}
}

// Analyze returns the transitive syscall set of fn. Local callees are
// visited breadth first; each function is visited at most once, which
// terminates recursion.
func (e *FlowEngine) Analyze(fn Function) FunctionAnalysis {
	root := e.factsFor(fn)
	result := FunctionAnalysis{
		Function:        fn,
		Partial:         root.partial,
		Unresolved:      root.regionErr,
		UnresolvedCalls: root.unresolvedCalls,
		Edges:           root.edges,
	}
	if root.err != nil {
		result.Error = root.err.Error()
	}

	visited := map[rangeKey]struct{}{keyOf(fn): {}}
	queue := []*functionFacts{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		result.Syscalls.Merge(cur.syscalls)
		if cur.indeterminate {
			result.Indeterminate = true
		}
		if cur != root && (cur.partial || cur.regionErr) {
			result.Partial = true
		}

		for _, callee := range cur.callees {
			k := keyOf(callee)
			if _, seen := visited[k]; seen {
				continue
			}
			visited[k] = struct{}{}
			result.Reached++
			queue = append(queue, e.factsFor(callee))
		}
	}
	return result
}

func (e *FlowEngine) factsFor(fn Function) *functionFacts {
	k := keyOf(fn)
	e.mu.Lock()
	ff, ok := e.facts[k]
	e.mu.Unlock()
	if ok {
		return ff
	}

	ff = e.scan(fn)

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.facts[k]; ok {
		return existing
	}
	e.facts[k] = ff
	return ff
}

// scan decodes fn linearly and records its direct edges.
func (e *FlowEngine) scan(fn Function) *functionFacts {
	ff := &functionFacts{}

	code, err := e.resolver.Code(fn)
	if err != nil {
		ff.err = err
		ff.regionErr = true
		slog.Warn("Code region unavailable",
			slog.String("function", fn.Name),
			slog.Any("error", err))
		return ff
	}

	var recent []DecodedInstruction
	pos := 0
	for pos < len(code) {
		addr := fn.Start + uint64(pos) //nolint:gosec // G115: pos is non-negative
		inst, err := e.decoder.Decode(code[pos:], addr)
		if err != nil {
			ff.partial = true
			ff.err = fmt.Errorf("decode failed at 0x%x: %w", addr, err)
			slog.Debug("Decoding stopped",
				slog.String("function", fn.Name),
				slog.String("address", fmt.Sprintf("0x%x", addr)),
				slog.Any("error", err))
			break
		}
		pos += inst.Len

		switch {
		case e.decoder.IsSyscallInstruction(inst):
			e.onSyscall(ff, inst, recent)
		case inst.Op == x86asm.CALL:
			e.onTransfer(ff, fn, inst, recent, false)
		case inst.Op == x86asm.JMP:
			e.onTransfer(ff, fn, inst, recent, true)
		}

		recent = append(recent, inst)
		if len(recent) > e.maxBackwardScan {
			recent = recent[1:]
		}
	}
	return ff
}

func (e *FlowEngine) onSyscall(ff *functionFacts, inst DecodedInstruction, recent []DecodedInstruction) {
	edge := CallEdge{Site: inst.Offset, Kind: KindSyscallInstruction}

	if e.decoder.IsLegacySyscall(inst) {
		edge.Method = DeterminationMethodUnknownLegacyABI
		ff.indeterminate = true
		ff.edges = append(ff.edges, edge)
		return
	}

	number, method := e.backwardScan(recent, e.maxBackwardScan, e.decoder.ModifiesEAXorRAX, e.decoder.IsImmediateMove, true)
	edge.Method = method
	if number < 0 {
		ff.indeterminate = true
	} else {
		name := e.syscallName(number)
		edge.Name = name
		edge.Syscalls = []string{name}
		ff.syscalls.Add(name)
	}
	ff.edges = append(ff.edges, edge)
}

// onTransfer classifies a CALL, or a JMP leaving the function.
func (e *FlowEngine) onTransfer(ff *functionFacts, fn Function, inst DecodedInstruction, recent []DecodedInstruction, isJump bool) {
	if target, ok := e.decoder.BranchTarget(inst); ok {
		if callee, ok := e.index.at(target); ok {
			e.onLocalCall(ff, inst, callee, target, recent, isJump)
			return
		}
		if fn.Contains(target) {
			// Intra-function branch, or call to the next instruction for PIC.
			return
		}
		if name, ok := e.stubImport(target); ok {
			e.onImportCall(ff, inst, name, target, recent, isJump)
			return
		}
		if isJump {
			// Jumps into the middle of other code are not calls.
			return
		}
		edge := CallEdge{Site: inst.Offset, Target: target, Kind: KindUnresolved}
		if owner, ok := e.index.containing(target); ok {
			edge.Name = owner.Name
		}
		ff.unresolvedCalls++
		ff.edges = append(ff.edges, edge)
		return
	}

	if slot, ok := e.decoder.MemorySlot(inst); ok {
		if name, ok := e.slotImport(slot); ok {
			e.onImportCall(ff, inst, name, slot, recent, isJump)
			return
		}
	}

	if isJump {
		// Jump tables and other computed jumps stay within the function.
		return
	}
	ff.unresolvedCalls++
	ff.edges = append(ff.edges, CallEdge{Site: inst.Offset, Kind: KindUnresolved})
}

// stubImport names the import behind a PLT stub. Static images have no
// dynamic imports: their call targets are local or unresolved.
func (e *FlowEngine) stubImport(target uint64) (string, bool) {
	if e.resolver.Static() {
		return "", false
	}
	return e.resolver.Imports().StubName(target)
}

// slotImport names the import whose GOT slot an indirect call reads.
func (e *FlowEngine) slotImport(slot uint64) (string, bool) {
	if e.resolver.Static() {
		return "", false
	}
	return e.resolver.Imports().SlotName(slot)
}

func (e *FlowEngine) onLocalCall(ff *functionFacts, inst DecodedInstruction, callee Function, target uint64, recent []DecodedInstruction, isJump bool) {
	if e.goABI {
		if wrapper := goWrapperFor(callee); wrapper != NoWrapper {
			edge := CallEdge{Site: inst.Offset, Target: target, Name: string(wrapper), Kind: KindGoWrapper, TailCall: isJump}
			number, method := e.backwardScan(recent, maxWrapperArgScan, e.decoder.ModifiesEAXorRAX, e.decoder.IsImmediateMove, false)
			if number >= 0 {
				method = DeterminationMethodGoWrapper
				name := e.syscallName(number)
				edge.Syscalls = []string{name}
				ff.syscalls.Add(name)
			} else {
				ff.indeterminate = true
			}
			edge.Method = method
			ff.edges = append(ff.edges, edge)
			return
		}
	}

	ff.edges = append(ff.edges, CallEdge{Site: inst.Offset, Target: target, Name: callee.Name, Kind: KindLocalFunction, TailCall: isJump})
	ff.callees = append(ff.callees, callee)
}

func (e *FlowEngine) onImportCall(ff *functionFacts, inst DecodedInstruction, name string, target uint64, recent []DecodedInstruction, isJump bool) {
	edge := CallEdge{Site: inst.Offset, Target: target, Name: name, Kind: KindDynamicImport, TailCall: isJump}

	if normalizeImportName(name) == rawSyscallImport {
		number, method := e.backwardScan(recent, maxWrapperArgScan, e.decoder.ModifiesEDIorRDI, e.decoder.IsImmediateMoveToEDI, false)
		if number >= 0 {
			method = DeterminationMethodLibcSyscall
			sc := e.syscallName(number)
			edge.Syscalls = []string{sc}
			ff.syscalls.Add(sc)
		} else {
			ff.indeterminate = true
		}
		edge.Method = method
		ff.edges = append(ff.edges, edge)
		return
	}

	if syscalls, ok := e.wrappers.Lookup(name); ok {
		edge.Method = DeterminationMethodWrapperTable
		edge.Syscalls = append([]string(nil), syscalls...)
		for _, sc := range syscalls {
			ff.syscalls.Add(sc)
		}
	}
	ff.edges = append(ff.edges, edge)
}

// backwardScan walks recent instructions from newest to oldest looking for
// the immediate that defines a register. Any control flow instruction ends
// the scan when stopAtControlFlow is set; otherwise only calls, returns and
// unconditional jumps do, since argument setup for a wrapper call may sit
// across a conditional branch.
func (e *FlowEngine) backwardScan(
	recent []DecodedInstruction,
	limit int,
	modifies func(DecodedInstruction) bool,
	immediate func(DecodedInstruction) (bool, int64),
	stopAtControlFlow bool,
) (int, string) {
	if len(recent) == 0 {
		return -1, DeterminationMethodUnknownDecodeFailed
	}

	scanned := 0
	for i := len(recent) - 1; i >= 0 && scanned < limit; i-- {
		inst := recent[i]
		scanned++

		if e.decoder.IsControlFlowInstruction(inst) {
			if stopAtControlFlow || inst.Op == x86asm.CALL || inst.Op == x86asm.RET || inst.Op == x86asm.JMP {
				return -1, DeterminationMethodUnknownControlFlowBoundary
			}
		}

		if !modifies(inst) {
			continue
		}

		if isImm, value := immediate(inst); isImm {
			if value >= 0 && value <= maxValidSyscallNumber {
				return int(value), DeterminationMethodImmediate
			}
			return -1, DeterminationMethodUnknownIndirectSetting
		}
		return -1, DeterminationMethodUnknownIndirectSetting
	}
	return -1, DeterminationMethodUnknownScanLimitExceeded
}

func (e *FlowEngine) syscallName(number int) string {
	if name := e.table.GetSyscallName(number); name != "" {
		return name
	}
	return fmt.Sprintf("syscall_%d", number)
}
