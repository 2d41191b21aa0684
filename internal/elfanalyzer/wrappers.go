package elfanalyzer

import (
	"sort"
	"strings"
)

// rawSyscallImport is the libc function that takes the syscall number as its
// first argument.
const rawSyscallImport = "syscall"

// defaultWrapperTable maps library function names to the syscalls they issue.
//
// Symbol names should NOT include version suffixes (e.g., @GLIBC_2.2.5);
// lookups strip them. Fortified (__*_chk) and 64-bit (*64) variants are
// folded onto the base name by normalizeImportName.
var defaultWrapperTable = map[string][]string{
	// Sockets
	"socket":      {"socket"},
	"socketpair":  {"socketpair"},
	"connect":     {"connect"},
	"bind":        {"bind"},
	"listen":      {"listen"},
	"accept":      {"accept"},
	"accept4":     {"accept4"},
	"send":        {"sendto"},
	"sendto":      {"sendto"},
	"sendmsg":     {"sendmsg"},
	"sendmmsg":    {"sendmmsg"},
	"recv":        {"recvfrom"},
	"recvfrom":    {"recvfrom"},
	"recvmsg":     {"recvmsg"},
	"recvmmsg":    {"recvmmsg"},
	"shutdown":    {"shutdown"},
	"getsockname": {"getsockname"},
	"getpeername": {"getpeername"},
	"setsockopt":  {"setsockopt"},
	"getsockopt":  {"getsockopt"},

	// DNS resolution
	"getaddrinfo":    {"socket", "connect", "sendto", "recvfrom", "openat", "read", "close"},
	"getnameinfo":    {"socket", "connect", "sendto", "recvfrom"},
	"gethostbyname":  {"socket", "connect", "sendto", "recvfrom", "openat", "read", "close"},
	"gethostbyname2": {"socket", "connect", "sendto", "recvfrom", "openat", "read", "close"},

	// File descriptors
	"open":      {"openat"},
	"openat":    {"openat"},
	"creat":     {"openat"},
	"close":     {"close"},
	"read":      {"read"},
	"write":     {"write"},
	"pread":     {"pread64"},
	"pwrite":    {"pwrite64"},
	"readv":     {"readv"},
	"writev":    {"writev"},
	"lseek":     {"lseek"},
	"dup":       {"dup"},
	"dup2":      {"dup2"},
	"dup3":      {"dup3"},
	"fcntl":     {"fcntl"},
	"ioctl":     {"ioctl"},
	"fsync":     {"fsync"},
	"fdatasync": {"fdatasync"},
	"sendfile":  {"sendfile"},
	"pipe":      {"pipe2"},
	"pipe2":     {"pipe2"},
	"poll":      {"poll"},
	"ppoll":     {"ppoll"},
	"select":    {"select"},

	// Filesystem
	"stat":      {"newfstatat"},
	"fstat":     {"fstat"},
	"lstat":     {"newfstatat"},
	"fstatat":   {"newfstatat"},
	"statx":     {"statx"},
	"access":    {"faccessat"},
	"faccessat": {"faccessat"},
	"mkdir":     {"mkdir"},
	"mkdirat":   {"mkdirat"},
	"rmdir":     {"rmdir"},
	"unlink":    {"unlink"},
	"unlinkat":  {"unlinkat"},
	"rename":    {"rename"},
	"renameat":  {"renameat"},
	"link":      {"link"},
	"symlink":   {"symlink"},
	"readlink":  {"readlink"},
	"chmod":     {"chmod"},
	"fchmod":    {"fchmod"},
	"chown":     {"chown"},
	"fchown":    {"fchown"},
	"truncate":  {"truncate"},
	"ftruncate": {"ftruncate"},
	"chdir":     {"chdir"},
	"fchdir":    {"fchdir"},
	"getcwd":    {"getcwd"},
	"mount":     {"mount"},
	"umount":    {"umount2"},
	"umount2":   {"umount2"},
	"chroot":    {"chroot"},
	"opendir":   {"openat", "fstat"},
	"readdir":   {"getdents64"},
	"closedir":  {"close"},
	"sync":      {"sync"},

	// stdio
	"fopen":    {"openat"},
	"fdopen":   {"fcntl"},
	"freopen":  {"openat", "dup3", "close"},
	"fclose":   {"close"},
	"fread":    {"read"},
	"fwrite":   {"write"},
	"fgets":    {"read"},
	"fputs":    {"write"},
	"fputc":    {"write"},
	"fflush":   {"write"},
	"fseek":    {"lseek"},
	"ftell":    {"lseek"},
	"fprintf":  {"write"},
	"vfprintf": {"write"},
	"printf":   {"write"},
	"vprintf":  {"write"},
	"puts":     {"write"},
	"putchar":  {"write"},
	"perror":   {"write"},
	"getchar":  {"read"},
	"scanf":    {"read"},
	"fscanf":   {"read"},
	"getline":  {"read"},

	// Memory
	"mmap":     {"mmap"},
	"munmap":   {"munmap"},
	"mprotect": {"mprotect"},
	"mremap":   {"mremap"},
	"madvise":  {"madvise"},
	"mlock":    {"mlock"},
	"munlock":  {"munlock"},
	"brk":      {"brk"},
	"sbrk":     {"brk"},
	"malloc":   {"brk", "mmap"},
	"calloc":   {"brk", "mmap"},
	"realloc":  {"brk", "mmap", "mremap"},
	"free":     {"munmap"},

	// Processes
	"fork":           {"clone"},
	"vfork":          {"vfork"},
	"clone":          {"clone"},
	"execve":         {"execve"},
	"execv":          {"execve"},
	"execvp":         {"execve"},
	"execl":          {"execve"},
	"execlp":         {"execve"},
	"fexecve":        {"execveat"},
	"system":         {"clone", "execve", "wait4", "rt_sigaction", "rt_sigprocmask"},
	"popen":          {"pipe2", "clone", "execve"},
	"pclose":         {"wait4", "close"},
	"posix_spawn":    {"clone", "execve"},
	"posix_spawnp":   {"clone", "execve"},
	"wait":           {"wait4"},
	"waitpid":        {"wait4"},
	"wait4":          {"wait4"},
	"waitid":         {"waitid"},
	"exit":           {"exit_group"},
	"_exit":          {"exit_group"},
	"_Exit":          {"exit_group"},
	"abort":          {"rt_sigprocmask", "tgkill", "exit_group"},
	"getpid":         {"getpid"},
	"getppid":        {"getppid"},
	"gettid":         {"gettid"},
	"setsid":         {"setsid"},
	"setpgid":        {"setpgid"},
	"prctl":          {"prctl"},
	"ptrace":         {"ptrace"},
	"getrlimit":      {"prlimit64"},
	"setrlimit":      {"prlimit64"},
	"sched_yield":    {"sched_yield"},
	"pthread_create": {"clone3", "mmap", "mprotect", "rt_sigprocmask"},

	// Signals
	"kill":        {"kill"},
	"raise":       {"tgkill"},
	"signal":      {"rt_sigaction"},
	"sigaction":   {"rt_sigaction"},
	"sigprocmask": {"rt_sigprocmask"},
	"pause":       {"pause"},
	"alarm":       {"alarm"},

	// Time
	"sleep":           {"clock_nanosleep"},
	"usleep":          {"clock_nanosleep"},
	"nanosleep":       {"clock_nanosleep"},
	"clock_nanosleep": {"clock_nanosleep"},
	"clock_gettime":   {"clock_gettime"},
	"clock_settime":   {"clock_settime"},
	"gettimeofday":    {"gettimeofday"},
	"settimeofday":    {"settimeofday"},
	"time":            {"time"},
	"timer_create":    {"timer_create"},
	"setitimer":       {"setitimer"},

	// Credentials
	"getuid":    {"getuid"},
	"geteuid":   {"geteuid"},
	"getgid":    {"getgid"},
	"getegid":   {"getegid"},
	"setuid":    {"setuid"},
	"setgid":    {"setgid"},
	"seteuid":   {"setresuid"},
	"setegid":   {"setresgid"},
	"setreuid":  {"setreuid"},
	"setregid":  {"setregid"},
	"setresuid": {"setresuid"},
	"setresgid": {"setresgid"},
	"setgroups": {"setgroups"},
	"capset":    {"capset"},
	"capget":    {"capget"},

	// IPC
	"shmget":  {"shmget"},
	"shmat":   {"shmat"},
	"shmdt":   {"shmdt"},
	"semget":  {"semget"},
	"semop":   {"semop"},
	"msgget":  {"msgget"},
	"msgsnd":  {"msgsnd"},
	"msgrcv":  {"msgrcv"},
	"mq_open": {"mq_open"},
	"eventfd": {"eventfd2"},

	// Misc
	"uname":     {"uname"},
	"getrandom": {"getrandom"},
	"reboot":    {"reboot"},
	"syslog":    {"socket", "connect", "sendto"},
	"openlog":   {"socket", "connect"},
}

// WrapperTable resolves imported function names to the syscalls they issue.
type WrapperTable struct {
	entries map[string][]string
}

// NewWrapperTable returns the built-in table extended with extra. Entries in
// extra replace built-in ones with the same name.
func NewWrapperTable(extra map[string][]string) *WrapperTable {
	entries := make(map[string][]string, len(defaultWrapperTable)+len(extra))
	for name, syscalls := range defaultWrapperTable {
		entries[name] = syscalls
	}
	for name, syscalls := range extra {
		entries[normalizeImportName(name)] = append([]string(nil), syscalls...)
	}
	return &WrapperTable{entries: entries}
}

// Lookup returns the syscalls issued by the import name.
func (t *WrapperTable) Lookup(name string) ([]string, bool) {
	syscalls, ok := t.entries[normalizeImportName(name)]
	return syscalls, ok
}

// Names returns all known wrapper names, sorted.
func (t *WrapperTable) Names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeImportName strips symbol versions and folds glibc aliases onto
// the public name: __open64_2 and open64@GLIBC_2.2.5 both become open.
func normalizeImportName(name string) string {
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if strings.HasPrefix(name, "__") {
		name = strings.TrimPrefix(name, "__")
		if base, ok := strings.CutSuffix(name, "_chk"); ok {
			name = base
		} else {
			name = strings.TrimSuffix(name, "_2")
		}
	}
	if base, ok := strings.CutSuffix(name, "64"); ok {
		if _, known := defaultWrapperTable[base]; known {
			name = base
		}
	}
	return name
}
