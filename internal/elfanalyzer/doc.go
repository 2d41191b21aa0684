// Package elfanalyzer computes, for each function defined in an x86_64 ELF
// binary, the set of Linux syscalls the function can reach.
//
// The analysis discovers functions from the symbol table, disassembles each
// function's bytes with golang.org/x/arch/x86/x86asm and classifies every
// instruction:
//
//   - syscall instructions contribute the number found by a backward scan
//     for an immediate load into eax/rax
//   - calls and tail jumps to other local functions are followed
//     transitively, with a visited set guarding against recursion
//   - calls through the PLT or GOT resolve to an imported name, which the
//     wrapper table maps to syscalls (open -> openat)
//   - in Go binaries, calls to runtime syscall wrappers contribute the trap
//     number loaded into rax before the call
//   - any other indirect call is counted as unresolved
//
// # Usage
//
//	analyzer := elfanalyzer.NewAnalyzer(elfanalyzer.Options{Workers: 4})
//	result, err := analyzer.AnalyzeFile(ctx, "/usr/bin/lamp")
//	if err != nil {
//	    return err
//	}
//	for _, fa := range result.Analyses {
//	    fmt.Println(fa.Function.Name, fa.Syscalls.Sorted())
//	}
//
// # Limitations
//
//   - Only EM_X86_64 images are supported.
//   - The binary must carry .symtab and DWARF compile units; stripped
//     binaries are rejected.
//   - Syscalls issued through code reached by register-indirect calls
//     (function pointers, vtables) are not found.
package elfanalyzer
