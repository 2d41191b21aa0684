package elfanalyzer

// GoSyscallWrapper represents the name of a known Go syscall wrapper function.
// The zero value (NoWrapper) means no wrapper was found.
type GoSyscallWrapper string

// NoWrapper is the zero value of GoSyscallWrapper, indicating no wrapper was found.
const NoWrapper GoSyscallWrapper = ""

// knownGoWrappers lists Go functions that take the trap number as their first
// argument. With the register ABI (Go 1.17+) that argument is passed in RAX.
var knownGoWrappers = map[GoSyscallWrapper]struct{}{
	"syscall.Syscall":                         {},
	"syscall.Syscall6":                        {},
	"syscall.RawSyscall":                      {},
	"syscall.RawSyscall6":                     {},
	"syscall.rawSyscallNoError":               {},
	"syscall.runtime_doAllThreadsSyscall":     {},
	"runtime.syscall":                         {},
	"runtime.syscall6":                        {},
	"runtime/internal/syscall.Syscall6":       {},
	"internal/runtime/syscall.Syscall6":       {},
	"internal/runtime/syscall/linux.Syscall6": {},
	"golang.org/x/sys/unix.Syscall":           {},
	"golang.org/x/sys/unix.Syscall6":          {},
	"golang.org/x/sys/unix.RawSyscall":        {},
	"golang.org/x/sys/unix.RawSyscall6":       {},
	"golang.org/x/sys/unix.RawSyscallNoError": {},
}

// goWrapperFor returns the wrapper name if fn is a known Go syscall wrapper.
func goWrapperFor(fn Function) GoSyscallWrapper {
	w := GoSyscallWrapper(fn.Name)
	if _, ok := knownGoWrappers[w]; ok {
		return w
	}
	return NoWrapper
}
