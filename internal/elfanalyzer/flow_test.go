package elfanalyzer

import (
	"debug/elf"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isseis/go-manifest-producer/internal/elftest"
)

func TestFlowEngine_DirectSyscall(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{{Name: "turnLampOn", Body: []elftest.Op{elftest.Syscall(1), elftest.Ret()}}},
	})

	fa := te.analyze(t, "turnLampOn")
	assert.Equal(t, []string{"write"}, fa.Syscalls.Sorted())
	assert.False(t, fa.Indeterminate)
	assert.False(t, fa.Partial)
	assert.False(t, fa.Unresolved)

	edges := edgesOfKind(fa, KindSyscallInstruction)
	require.Len(t, edges, 1)
	assert.Equal(t, te.byName["turnLampOn"].Start+5, edges[0].Site)
	assert.Equal(t, DeterminationMethodImmediate, edges[0].Method)
	assert.Equal(t, []string{"write"}, edges[0].Syscalls)
}

func TestFlowEngine_SyscallNumberDetermination(t *testing.T) {
	tests := []struct {
		name              string
		body              []elftest.Op
		wantSyscalls      []string
		wantIndeterminate bool
		wantMethod        string
	}{
		{
			name:         "xor zeroes eax",
			body:         []elftest.Op{elftest.XorEAX(), elftest.SyscallInsn(), elftest.Ret()},
			wantSyscalls: []string{"read"},
			wantMethod:   DeterminationMethodImmediate,
		},
		{
			name:         "number missing from table",
			body:         []elftest.Op{elftest.Syscall(400), elftest.Ret()},
			wantSyscalls: []string{"syscall_400"},
			wantMethod:   DeterminationMethodImmediate,
		},
		{
			name:              "register move",
			body:              []elftest.Op{elftest.Raw(0x48, 0x89, 0xd8), elftest.SyscallInsn(), elftest.Ret()},
			wantSyscalls:      []string{},
			wantIndeterminate: true,
			wantMethod:        DeterminationMethodUnknownIndirectSetting,
		},
		{
			name:              "out of range immediate",
			body:              []elftest.Op{elftest.MovEAX(0xffffffff), elftest.SyscallInsn(), elftest.Ret()},
			wantSyscalls:      []string{},
			wantIndeterminate: true,
			wantMethod:        DeterminationMethodUnknownIndirectSetting,
		},
		{
			name:              "branch between load and syscall",
			body:              []elftest.Op{elftest.MovEAX(1), elftest.Raw(0x74, 0x00), elftest.SyscallInsn(), elftest.Ret()},
			wantSyscalls:      []string{},
			wantIndeterminate: true,
			wantMethod:        DeterminationMethodUnknownControlFlowBoundary,
		},
		{
			name:              "syscall at function entry",
			body:              []elftest.Op{elftest.SyscallInsn(), elftest.Ret()},
			wantSyscalls:      []string{},
			wantIndeterminate: true,
			wantMethod:        DeterminationMethodUnknownDecodeFailed,
		},
		{
			name:              "legacy int 0x80",
			body:              []elftest.Op{elftest.MovEAX(4), elftest.Raw(0xcd, 0x80), elftest.Ret()},
			wantSyscalls:      []string{},
			wantIndeterminate: true,
			wantMethod:        DeterminationMethodUnknownLegacyABI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, &elftest.Builder{Funcs: []elftest.Func{{Name: "f", Body: tt.body}}})

			fa := te.analyze(t, "f")
			assert.Equal(t, tt.wantSyscalls, fa.Syscalls.Sorted())
			assert.Equal(t, tt.wantIndeterminate, fa.Indeterminate)
			assert.False(t, fa.Partial)

			edges := edgesOfKind(fa, KindSyscallInstruction)
			require.Len(t, edges, 1)
			assert.Equal(t, tt.wantMethod, edges[0].Method)
		})
	}
}

func TestFlowEngine_SecondSyscallReadsReturnValue(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{Funcs: []elftest.Func{
		{Name: "f", Body: []elftest.Op{elftest.MovEAX(1), elftest.SyscallInsn(), elftest.SyscallInsn(), elftest.Ret()}},
	}})

	fa := te.analyze(t, "f")
	assert.Equal(t, []string{"write"}, fa.Syscalls.Sorted())
	assert.True(t, fa.Indeterminate)

	edges := edgesOfKind(fa, KindSyscallInstruction)
	require.Len(t, edges, 2)
	assert.Equal(t, DeterminationMethodImmediate, edges[0].Method)
	assert.Equal(t, DeterminationMethodUnknownIndirectSetting, edges[1].Method)
}

func TestFlowEngine_BackwardScanLimit(t *testing.T) {
	body := []elftest.Op{elftest.MovEAX(1)}
	for range 5 {
		body = append(body, elftest.Nop())
	}
	body = append(body, elftest.SyscallInsn(), elftest.Ret())

	img := newTestImage(t, &elftest.Builder{Funcs: []elftest.Func{{Name: "f", Body: body}}})
	funcs, err := DiscoverFunctions(img.File(), 0)
	require.NoError(t, err)
	resolver, err := NewRegionResolver(img)
	require.NoError(t, err)

	engine := NewFlowEngine(resolver, funcs, FlowConfig{MaxBackwardScan: 3})
	fa := engine.Analyze(funcs[0])
	assert.True(t, fa.Indeterminate)
	assert.Equal(t, DeterminationMethodUnknownScanLimitExceeded, edgesOfKind(fa, KindSyscallInstruction)[0].Method)
}

func TestFlowEngine_TransitiveClosure(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "main", Body: []elftest.Op{elftest.CallFunc("turnLampOn"), elftest.CallFunc("shutdown"), elftest.Ret()}},
			{Name: "turnLampOn", Body: []elftest.Op{elftest.CallFunc("writeOnDrive"), elftest.Ret()}},
			{Name: "writeOnDrive", Body: []elftest.Op{elftest.Syscall(1), elftest.Ret()}},
			{Name: "shutdown", Body: []elftest.Op{elftest.Syscall(60), elftest.Ret()}},
		},
	})

	fa := te.analyze(t, "main")
	assert.Equal(t, []string{"exit", "write"}, fa.Syscalls.Sorted())
	assert.Equal(t, 3, fa.Reached)

	local := edgesOfKind(fa, KindLocalFunction)
	require.Len(t, local, 2)
	assert.Equal(t, "turnLampOn", local[0].Name)
	assert.Equal(t, te.byName["turnLampOn"].Start, local[0].Target)
	assert.Equal(t, "shutdown", local[1].Name)

	// Edges are direct only.
	assert.Empty(t, edgesOfKind(fa, KindSyscallInstruction))

	assert.Equal(t, []string{"write"}, te.analyze(t, "turnLampOn").Syscalls.Sorted())
}

func TestFlowEngine_Recursion(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "ping", Body: []elftest.Op{elftest.CallFunc("ping"), elftest.CallFunc("pong"), elftest.Syscall(0), elftest.Ret()}},
			{Name: "pong", Body: []elftest.Op{elftest.CallFunc("ping"), elftest.Syscall(1), elftest.Ret()}},
		},
	})

	ping := te.analyze(t, "ping")
	pong := te.analyze(t, "pong")

	assert.Equal(t, []string{"read", "write"}, ping.Syscalls.Sorted())
	assert.Equal(t, []string{"read", "write"}, pong.Syscalls.Sorted())
	assert.Equal(t, 1, ping.Reached)
	assert.Equal(t, 1, pong.Reached)
}

func TestFlowEngine_RecursionMatchesAcyclicResult(t *testing.T) {
	cyclic := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "a", Body: []elftest.Op{elftest.CallFunc("b"), elftest.Syscall(1), elftest.Ret()}},
			{Name: "b", Body: []elftest.Op{elftest.CallFunc("a"), elftest.Syscall(3), elftest.Ret()}},
		},
	})
	acyclic := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "a", Body: []elftest.Op{elftest.CallFunc("b"), elftest.Syscall(1), elftest.Ret()}},
			{Name: "b", Body: []elftest.Op{elftest.Nop(), elftest.Nop(), elftest.Nop(), elftest.Nop(), elftest.Nop(), elftest.Syscall(3), elftest.Ret()}},
		},
	})

	assert.True(t, cyclic.analyze(t, "a").Syscalls.Equal(acyclic.analyze(t, "a").Syscalls))
}

func TestFlowEngine_AnalyzeIsIdempotent(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "a", Body: []elftest.Op{elftest.CallFunc("b"), elftest.Syscall(1), elftest.Ret()}},
			{Name: "b", Body: []elftest.Op{elftest.Syscall(2), elftest.Ret()}},
		},
	})

	first := te.analyze(t, "a")
	second := te.analyze(t, "a")
	assert.Equal(t, first, second)
}

func TestFlowEngine_ConcurrentAnalyze(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "a", Body: []elftest.Op{elftest.CallFunc("c"), elftest.Ret()}},
			{Name: "b", Body: []elftest.Op{elftest.CallFunc("c"), elftest.Ret()}},
			{Name: "c", Body: []elftest.Op{elftest.Syscall(41), elftest.Ret()}},
		},
	})

	var wg sync.WaitGroup
	results := make([]FunctionAnalysis, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = te.engine.Analyze(te.funcs[i%2])
		}()
	}
	wg.Wait()

	for _, fa := range results {
		assert.Equal(t, []string{"socket"}, fa.Syscalls.Sorted())
	}
}

func TestFlowEngine_ZeroSizeLabelAtCalleeStart(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "main", Body: []elftest.Op{elftest.CallFunc("worker"), elftest.Ret()}},
			{Name: "worker_label", ZeroSize: true},
			{Name: "worker", Body: []elftest.Op{elftest.Syscall(1), elftest.Ret()}},
		},
	})
	require.Equal(t, te.byName["worker_label"].Start, te.byName["worker"].Start)

	fa := te.analyze(t, "main")
	assert.Equal(t, []string{"write"}, fa.Syscalls.Sorted())

	local := edgesOfKind(fa, KindLocalFunction)
	require.Len(t, local, 1)
	assert.Equal(t, "worker", local[0].Name)
	assert.Equal(t, 1, fa.Reached)
}

func TestFlowEngine_EmptyFunction(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "stub", Body: []elftest.Op{elftest.Ret()}, ZeroSize: true},
			{Name: "caller", Body: []elftest.Op{elftest.CallFunc("stub"), elftest.Ret()}},
		},
	})

	fa := te.analyze(t, "stub")
	assert.Equal(t, 0, fa.Syscalls.Len())
	assert.False(t, fa.Partial)
	assert.False(t, fa.Unresolved)
	assert.Empty(t, fa.Error)

	caller := te.analyze(t, "caller")
	assert.Equal(t, 0, caller.Syscalls.Len())
	assert.False(t, caller.Partial)
}

func TestFlowEngine_TruncatedInstruction(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "broken", Body: []elftest.Op{elftest.Syscall(60), elftest.Raw(0xe8, 0x00)}},
			{Name: "caller", Body: []elftest.Op{elftest.CallFunc("broken"), elftest.Syscall(1), elftest.Ret()}},
		},
	})

	fa := te.analyze(t, "broken")
	assert.Equal(t, []string{"exit"}, fa.Syscalls.Sorted())
	assert.True(t, fa.Partial)
	assert.False(t, fa.Unresolved)
	assert.Contains(t, fa.Error, "decode failed")

	caller := te.analyze(t, "caller")
	assert.Equal(t, []string{"exit", "write"}, caller.Syscalls.Sorted())
	assert.True(t, caller.Partial)
	assert.Empty(t, caller.Error)
}

func TestFlowEngine_RegionOutsideSections(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "caller", Body: []elftest.Op{elftest.CallAddr(0x900000), elftest.Syscall(1), elftest.Ret()}},
		},
		Symbols: []elftest.Symbol{{Name: "ghost", Value: 0x900000, Size: 16, Type: elf.STT_FUNC}},
	})

	ghost := te.analyze(t, "ghost")
	assert.True(t, ghost.Unresolved)
	assert.Contains(t, ghost.Error, "outside every executable section")
	assert.Equal(t, 0, ghost.Syscalls.Len())

	caller := te.analyze(t, "caller")
	assert.False(t, caller.Unresolved)
	assert.True(t, caller.Partial)
	assert.Equal(t, []string{"write"}, caller.Syscalls.Sorted())
}

func TestFlowEngine_UnresolvedCalls(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "dispatch", Body: []elftest.Op{elftest.CallReg(), elftest.CallAddr(0x300000), elftest.Syscall(1), elftest.Ret()}},
		},
	})

	fa := te.analyze(t, "dispatch")
	assert.Equal(t, []string{"write"}, fa.Syscalls.Sorted())
	assert.Equal(t, 2, fa.UnresolvedCalls)
	assert.False(t, fa.Partial)
	assert.Len(t, edgesOfKind(fa, KindUnresolved), 2)
}

func TestFlowEngine_IntraFunctionJumpIgnored(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			// jmp +0 lands on the next instruction.
			{Name: "loop", Body: []elftest.Op{elftest.Raw(0xeb, 0x00), elftest.Syscall(39), elftest.Ret()}},
		},
	})

	fa := te.analyze(t, "loop")
	assert.Equal(t, []string{"getpid"}, fa.Syscalls.Sorted())
	assert.Equal(t, 0, fa.UnresolvedCalls)
	assert.Len(t, fa.Edges, 1)
}

func TestFlowEngine_DynamicImports(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Type: elf.ET_DYN,
		Funcs: []elftest.Func{
			{Name: "accessNetwork", Body: []elftest.Op{elftest.CallImport("socket"), elftest.CallImport("connect"), elftest.Ret()}},
			{Name: "logLine", Body: []elftest.Op{elftest.CallGOT("printf"), elftest.Ret()}},
			{Name: "openConfig", Body: []elftest.Op{elftest.JmpImport("open64")}},
			{Name: "custom", Body: []elftest.Op{elftest.CallImport("lamp_ioctl"), elftest.Ret()}},
		},
		Imports: []string{"socket", "connect", "printf", "open64", "lamp_ioctl"},
	})
	require.False(t, te.resolver.Static())

	tests := []struct {
		name         string
		function     string
		wantSyscalls []string
		wantImports  []string
		wantTailCall bool
	}{
		{
			name:         "PLT calls",
			function:     "accessNetwork",
			wantSyscalls: []string{"connect", "socket"},
			wantImports:  []string{"socket", "connect"},
		},
		{
			name:         "GOT call",
			function:     "logLine",
			wantSyscalls: []string{"write"},
			wantImports:  []string{"printf"},
		},
		{
			name:         "tail call to PLT stub",
			function:     "openConfig",
			wantSyscalls: []string{"openat"},
			wantImports:  []string{"open64"},
			wantTailCall: true,
		},
		{
			name:         "import without wrapper entry",
			function:     "custom",
			wantSyscalls: []string{},
			wantImports:  []string{"lamp_ioctl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := te.analyze(t, tt.function)
			assert.Equal(t, tt.wantSyscalls, fa.Syscalls.Sorted())
			assert.False(t, fa.Indeterminate)
			assert.Equal(t, 0, fa.UnresolvedCalls)

			imports := edgesOfKind(fa, KindDynamicImport)
			var names []string
			for _, e := range imports {
				names = append(names, e.Name)
				assert.Equal(t, tt.wantTailCall, e.TailCall)
			}
			assert.Equal(t, tt.wantImports, names)
			assert.Empty(t, edgesOfKind(fa, KindSyscallInstruction))
		})
	}
}

func TestFlowEngine_StaticImageSkipsImportLookups(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Type: elf.ET_DYN,
		Funcs: []elftest.Func{
			{Name: "accessNetwork", Body: []elftest.Op{elftest.CallImport("socket"), elftest.Ret()}},
			{Name: "logLine", Body: []elftest.Op{elftest.CallGOT("printf"), elftest.Ret()}},
		},
		Imports: []string{"socket", "printf"},
	})
	te.resolver.static = true

	for _, name := range []string{"accessNetwork", "logLine"} {
		fa := te.analyze(t, name)
		assert.Equal(t, 0, fa.Syscalls.Len(), name)
		assert.Equal(t, 1, fa.UnresolvedCalls, name)
		assert.Empty(t, edgesOfKind(fa, KindDynamicImport), name)
	}
}

func TestFlowEngine_LibcSyscallImport(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Type: elf.ET_DYN,
		Funcs: []elftest.Func{
			{Name: "whoami", Body: []elftest.Op{elftest.MovEDI(39), elftest.CallImport("syscall"), elftest.Ret()}},
			{Name: "opaque", Body: []elftest.Op{elftest.Raw(0x48, 0x89, 0xdf), elftest.CallImport("syscall"), elftest.Ret()}},
		},
		Imports: []string{"syscall"},
	})

	fa := te.analyze(t, "whoami")
	assert.Equal(t, []string{"getpid"}, fa.Syscalls.Sorted())
	assert.False(t, fa.Indeterminate)
	edges := edgesOfKind(fa, KindDynamicImport)
	require.Len(t, edges, 1)
	assert.Equal(t, DeterminationMethodLibcSyscall, edges[0].Method)

	opaque := te.analyze(t, "opaque")
	assert.Equal(t, 0, opaque.Syscalls.Len())
	assert.True(t, opaque.Indeterminate)
}

func TestFlowEngine_TailCallToLocalFunction(t *testing.T) {
	te := newTestEngine(t, &elftest.Builder{
		Funcs: []elftest.Func{
			{Name: "entry", Body: []elftest.Op{elftest.JmpFunc("worker")}},
			{Name: "worker", Body: []elftest.Op{elftest.Syscall(35), elftest.Ret()}},
		},
	})

	fa := te.analyze(t, "entry")
	assert.Equal(t, []string{"nanosleep"}, fa.Syscalls.Sorted())
	local := edgesOfKind(fa, KindLocalFunction)
	require.Len(t, local, 1)
	assert.True(t, local[0].TailCall)
}

func TestFlowEngine_GoWrappers(t *testing.T) {
	funcs := []elftest.Func{
		{Name: "main.dial", Body: []elftest.Op{elftest.MovEAX(41), elftest.CallFunc("syscall.Syscall"), elftest.Ret()}},
		{Name: "main.unknown", Body: []elftest.Op{elftest.Raw(0x48, 0x89, 0xd8), elftest.CallFunc("syscall.Syscall"), elftest.Ret()}},
		// Loads the trap number from the stack, as the real wrapper does.
		{Name: "syscall.Syscall", Body: []elftest.Op{elftest.Raw(0x48, 0x8b, 0x44, 0x24, 0x08), elftest.SyscallInsn(), elftest.Ret()}},
	}

	t.Run("go binary", func(t *testing.T) {
		te := newTestEngine(t, &elftest.Builder{Funcs: funcs, Languages: []uint16{elftest.LangGo}})

		fa := te.analyze(t, "main.dial")
		assert.Equal(t, []string{"socket"}, fa.Syscalls.Sorted())
		assert.False(t, fa.Indeterminate)
		assert.Equal(t, 0, fa.Reached)

		edges := edgesOfKind(fa, KindGoWrapper)
		require.Len(t, edges, 1)
		assert.Equal(t, "syscall.Syscall", edges[0].Name)
		assert.Equal(t, DeterminationMethodGoWrapper, edges[0].Method)

		unknown := te.analyze(t, "main.unknown")
		assert.Equal(t, 0, unknown.Syscalls.Len())
		assert.True(t, unknown.Indeterminate)
	})

	t.Run("non-go binary descends into the function", func(t *testing.T) {
		te := newTestEngine(t, &elftest.Builder{Funcs: funcs, Languages: []uint16{elftest.LangC99}})

		fa := te.analyze(t, "main.dial")
		assert.Equal(t, 0, fa.Syscalls.Len())
		assert.True(t, fa.Indeterminate)
		assert.Equal(t, 1, fa.Reached)
		assert.Empty(t, edgesOfKind(fa, KindGoWrapper))
	})
}

func TestFlowEngine_ExtraWrappers(t *testing.T) {
	img := newTestImage(t, &elftest.Builder{
		Type:    elf.ET_DYN,
		Funcs:   []elftest.Func{{Name: "blink", Body: []elftest.Op{elftest.CallImport("lamp_ioctl"), elftest.Ret()}}},
		Imports: []string{"lamp_ioctl"},
	})
	funcs, err := DiscoverFunctions(img.File(), 0)
	require.NoError(t, err)
	resolver, err := NewRegionResolver(img)
	require.NoError(t, err)

	engine := NewFlowEngine(resolver, funcs, FlowConfig{
		Wrappers: NewWrapperTable(map[string][]string{"lamp_ioctl": {"ioctl"}}),
	})
	fa := engine.Analyze(funcs[0])
	assert.Equal(t, []string{"ioctl"}, fa.Syscalls.Sorted())
}
