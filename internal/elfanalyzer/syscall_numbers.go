package elfanalyzer

// SyscallCategory groups syscalls by the kind of resource they touch.
type SyscallCategory string

const (
	CategoryNetwork    SyscallCategory = "network"
	CategoryFilesystem SyscallCategory = "filesystem"
	CategoryProcess    SyscallCategory = "process"
	CategoryMemory     SyscallCategory = "memory"
	CategoryIPC        SyscallCategory = "ipc"
	CategoryTime       SyscallCategory = "time"
	CategoryDevice     SyscallCategory = "device"
	CategorySecurity   SyscallCategory = "security"
	CategoryOther      SyscallCategory = "other"
)

// SyscallNumberTable maps syscall numbers to names and categories.
type SyscallNumberTable interface {
	// GetSyscallName returns the syscall name for the given number.
	// Returns empty string if the number is unknown.
	GetSyscallName(number int) string

	// GetSyscallNumber returns the number of a named syscall.
	GetSyscallNumber(name string) (int, bool)

	// Category returns the category of a named syscall. Unknown names
	// are CategoryOther.
	Category(name string) SyscallCategory
}

// SyscallDefinition defines a single syscall.
type SyscallDefinition struct {
	Number   int
	Name     string
	Category SyscallCategory
}

// x86_64Syscalls is the Linux x86-64 syscall table (arch/x86/entry/syscalls/syscall_64.tbl).
var x86_64Syscalls = []SyscallDefinition{
	{0, "read", CategoryFilesystem},
	{1, "write", CategoryFilesystem},
	{2, "open", CategoryFilesystem},
	{3, "close", CategoryFilesystem},
	{4, "stat", CategoryFilesystem},
	{5, "fstat", CategoryFilesystem},
	{6, "lstat", CategoryFilesystem},
	{7, "poll", CategoryOther},
	{8, "lseek", CategoryFilesystem},
	{9, "mmap", CategoryMemory},
	{10, "mprotect", CategoryMemory},
	{11, "munmap", CategoryMemory},
	{12, "brk", CategoryMemory},
	{13, "rt_sigaction", CategoryIPC},
	{14, "rt_sigprocmask", CategoryIPC},
	{15, "rt_sigreturn", CategoryIPC},
	{16, "ioctl", CategoryDevice},
	{17, "pread64", CategoryFilesystem},
	{18, "pwrite64", CategoryFilesystem},
	{19, "readv", CategoryFilesystem},
	{20, "writev", CategoryFilesystem},
	{21, "access", CategoryFilesystem},
	{22, "pipe", CategoryIPC},
	{23, "select", CategoryOther},
	{24, "sched_yield", CategoryProcess},
	{25, "mremap", CategoryMemory},
	{26, "msync", CategoryMemory},
	{27, "mincore", CategoryMemory},
	{28, "madvise", CategoryMemory},
	{29, "shmget", CategoryIPC},
	{30, "shmat", CategoryIPC},
	{31, "shmctl", CategoryIPC},
	{32, "dup", CategoryFilesystem},
	{33, "dup2", CategoryFilesystem},
	{34, "pause", CategoryIPC},
	{35, "nanosleep", CategoryTime},
	{36, "getitimer", CategoryTime},
	{37, "alarm", CategoryTime},
	{38, "setitimer", CategoryTime},
	{39, "getpid", CategoryProcess},
	{40, "sendfile", CategoryFilesystem},
	{41, "socket", CategoryNetwork},
	{42, "connect", CategoryNetwork},
	{43, "accept", CategoryNetwork},
	{44, "sendto", CategoryNetwork},
	{45, "recvfrom", CategoryNetwork},
	{46, "sendmsg", CategoryNetwork},
	{47, "recvmsg", CategoryNetwork},
	{48, "shutdown", CategoryNetwork},
	{49, "bind", CategoryNetwork},
	{50, "listen", CategoryNetwork},
	{51, "getsockname", CategoryNetwork},
	{52, "getpeername", CategoryNetwork},
	{53, "socketpair", CategoryNetwork},
	{54, "setsockopt", CategoryNetwork},
	{55, "getsockopt", CategoryNetwork},
	{56, "clone", CategoryProcess},
	{57, "fork", CategoryProcess},
	{58, "vfork", CategoryProcess},
	{59, "execve", CategoryProcess},
	{60, "exit", CategoryProcess},
	{61, "wait4", CategoryProcess},
	{62, "kill", CategoryIPC},
	{63, "uname", CategoryOther},
	{64, "semget", CategoryIPC},
	{65, "semop", CategoryIPC},
	{66, "semctl", CategoryIPC},
	{67, "shmdt", CategoryIPC},
	{68, "msgget", CategoryIPC},
	{69, "msgsnd", CategoryIPC},
	{70, "msgrcv", CategoryIPC},
	{71, "msgctl", CategoryIPC},
	{72, "fcntl", CategoryFilesystem},
	{73, "flock", CategoryFilesystem},
	{74, "fsync", CategoryFilesystem},
	{75, "fdatasync", CategoryFilesystem},
	{76, "truncate", CategoryFilesystem},
	{77, "ftruncate", CategoryFilesystem},
	{78, "getdents", CategoryFilesystem},
	{79, "getcwd", CategoryFilesystem},
	{80, "chdir", CategoryFilesystem},
	{81, "fchdir", CategoryFilesystem},
	{82, "rename", CategoryFilesystem},
	{83, "mkdir", CategoryFilesystem},
	{84, "rmdir", CategoryFilesystem},
	{85, "creat", CategoryFilesystem},
	{86, "link", CategoryFilesystem},
	{87, "unlink", CategoryFilesystem},
	{88, "symlink", CategoryFilesystem},
	{89, "readlink", CategoryFilesystem},
	{90, "chmod", CategoryFilesystem},
	{91, "fchmod", CategoryFilesystem},
	{92, "chown", CategoryFilesystem},
	{93, "fchown", CategoryFilesystem},
	{94, "lchown", CategoryFilesystem},
	{95, "umask", CategoryFilesystem},
	{96, "gettimeofday", CategoryTime},
	{97, "getrlimit", CategoryProcess},
	{98, "getrusage", CategoryProcess},
	{99, "sysinfo", CategoryOther},
	{100, "times", CategoryTime},
	{101, "ptrace", CategoryProcess},
	{102, "getuid", CategorySecurity},
	{103, "syslog", CategoryOther},
	{104, "getgid", CategorySecurity},
	{105, "setuid", CategorySecurity},
	{106, "setgid", CategorySecurity},
	{107, "geteuid", CategorySecurity},
	{108, "getegid", CategorySecurity},
	{109, "setpgid", CategoryProcess},
	{110, "getppid", CategoryProcess},
	{111, "getpgrp", CategoryProcess},
	{112, "setsid", CategoryProcess},
	{113, "setreuid", CategorySecurity},
	{114, "setregid", CategorySecurity},
	{115, "getgroups", CategorySecurity},
	{116, "setgroups", CategorySecurity},
	{117, "setresuid", CategorySecurity},
	{118, "getresuid", CategorySecurity},
	{119, "setresgid", CategorySecurity},
	{120, "getresgid", CategorySecurity},
	{121, "getpgid", CategoryProcess},
	{122, "setfsuid", CategorySecurity},
	{123, "setfsgid", CategorySecurity},
	{124, "getsid", CategoryProcess},
	{125, "capget", CategorySecurity},
	{126, "capset", CategorySecurity},
	{127, "rt_sigpending", CategoryIPC},
	{128, "rt_sigtimedwait", CategoryIPC},
	{129, "rt_sigqueueinfo", CategoryIPC},
	{130, "rt_sigsuspend", CategoryIPC},
	{131, "sigaltstack", CategoryIPC},
	{132, "utime", CategoryFilesystem},
	{133, "mknod", CategoryFilesystem},
	{134, "uselib", CategoryProcess},
	{135, "personality", CategoryProcess},
	{136, "ustat", CategoryFilesystem},
	{137, "statfs", CategoryFilesystem},
	{138, "fstatfs", CategoryFilesystem},
	{139, "sysfs", CategoryFilesystem},
	{140, "getpriority", CategoryProcess},
	{141, "setpriority", CategoryProcess},
	{142, "sched_setparam", CategoryProcess},
	{143, "sched_getparam", CategoryProcess},
	{144, "sched_setscheduler", CategoryProcess},
	{145, "sched_getscheduler", CategoryProcess},
	{146, "sched_get_priority_max", CategoryProcess},
	{147, "sched_get_priority_min", CategoryProcess},
	{148, "sched_rr_get_interval", CategoryProcess},
	{149, "mlock", CategoryMemory},
	{150, "munlock", CategoryMemory},
	{151, "mlockall", CategoryMemory},
	{152, "munlockall", CategoryMemory},
	{153, "vhangup", CategoryDevice},
	{154, "modify_ldt", CategoryMemory},
	{155, "pivot_root", CategoryFilesystem},
	{156, "_sysctl", CategoryOther},
	{157, "prctl", CategoryProcess},
	{158, "arch_prctl", CategoryProcess},
	{159, "adjtimex", CategoryTime},
	{160, "setrlimit", CategoryProcess},
	{161, "chroot", CategoryFilesystem},
	{162, "sync", CategoryFilesystem},
	{163, "acct", CategoryOther},
	{164, "settimeofday", CategoryTime},
	{165, "mount", CategoryFilesystem},
	{166, "umount2", CategoryFilesystem},
	{167, "swapon", CategoryMemory},
	{168, "swapoff", CategoryMemory},
	{169, "reboot", CategoryOther},
	{170, "sethostname", CategoryOther},
	{171, "setdomainname", CategoryOther},
	{172, "iopl", CategoryDevice},
	{173, "ioperm", CategoryDevice},
	{174, "create_module", CategoryOther},
	{175, "init_module", CategoryOther},
	{176, "delete_module", CategoryOther},
	{177, "get_kernel_syms", CategoryOther},
	{178, "query_module", CategoryOther},
	{179, "quotactl", CategoryFilesystem},
	{180, "nfsservctl", CategoryOther},
	{181, "getpmsg", CategoryOther},
	{182, "putpmsg", CategoryOther},
	{183, "afs_syscall", CategoryOther},
	{184, "tuxcall", CategoryOther},
	{185, "security", CategorySecurity},
	{186, "gettid", CategoryProcess},
	{187, "readahead", CategoryFilesystem},
	{188, "setxattr", CategoryFilesystem},
	{189, "lsetxattr", CategoryFilesystem},
	{190, "fsetxattr", CategoryFilesystem},
	{191, "getxattr", CategoryFilesystem},
	{192, "lgetxattr", CategoryFilesystem},
	{193, "fgetxattr", CategoryFilesystem},
	{194, "listxattr", CategoryFilesystem},
	{195, "llistxattr", CategoryFilesystem},
	{196, "flistxattr", CategoryFilesystem},
	{197, "removexattr", CategoryFilesystem},
	{198, "lremovexattr", CategoryFilesystem},
	{199, "fremovexattr", CategoryFilesystem},
	{200, "tkill", CategoryIPC},
	{201, "time", CategoryTime},
	{202, "futex", CategoryIPC},
	{203, "sched_setaffinity", CategoryProcess},
	{204, "sched_getaffinity", CategoryProcess},
	{205, "set_thread_area", CategoryProcess},
	{206, "io_setup", CategoryFilesystem},
	{207, "io_destroy", CategoryFilesystem},
	{208, "io_getevents", CategoryFilesystem},
	{209, "io_submit", CategoryFilesystem},
	{210, "io_cancel", CategoryFilesystem},
	{211, "get_thread_area", CategoryProcess},
	{212, "lookup_dcookie", CategoryOther},
	{213, "epoll_create", CategoryOther},
	{214, "epoll_ctl_old", CategoryOther},
	{215, "epoll_wait_old", CategoryOther},
	{216, "remap_file_pages", CategoryMemory},
	{217, "getdents64", CategoryFilesystem},
	{218, "set_tid_address", CategoryProcess},
	{219, "restart_syscall", CategoryOther},
	{220, "semtimedop", CategoryIPC},
	{221, "fadvise64", CategoryFilesystem},
	{222, "timer_create", CategoryTime},
	{223, "timer_settime", CategoryTime},
	{224, "timer_gettime", CategoryTime},
	{225, "timer_getoverrun", CategoryTime},
	{226, "timer_delete", CategoryTime},
	{227, "clock_settime", CategoryTime},
	{228, "clock_gettime", CategoryTime},
	{229, "clock_getres", CategoryTime},
	{230, "clock_nanosleep", CategoryTime},
	{231, "exit_group", CategoryProcess},
	{232, "epoll_wait", CategoryOther},
	{233, "epoll_ctl", CategoryOther},
	{234, "tgkill", CategoryIPC},
	{235, "utimes", CategoryFilesystem},
	{236, "vserver", CategoryOther},
	{237, "mbind", CategoryMemory},
	{238, "set_mempolicy", CategoryMemory},
	{239, "get_mempolicy", CategoryMemory},
	{240, "mq_open", CategoryIPC},
	{241, "mq_unlink", CategoryIPC},
	{242, "mq_timedsend", CategoryIPC},
	{243, "mq_timedreceive", CategoryIPC},
	{244, "mq_notify", CategoryIPC},
	{245, "mq_getsetattr", CategoryIPC},
	{246, "kexec_load", CategoryOther},
	{247, "waitid", CategoryProcess},
	{248, "add_key", CategorySecurity},
	{249, "request_key", CategorySecurity},
	{250, "keyctl", CategorySecurity},
	{251, "ioprio_set", CategoryProcess},
	{252, "ioprio_get", CategoryProcess},
	{253, "inotify_init", CategoryFilesystem},
	{254, "inotify_add_watch", CategoryFilesystem},
	{255, "inotify_rm_watch", CategoryFilesystem},
	{256, "migrate_pages", CategoryMemory},
	{257, "openat", CategoryFilesystem},
	{258, "mkdirat", CategoryFilesystem},
	{259, "mknodat", CategoryFilesystem},
	{260, "fchownat", CategoryFilesystem},
	{261, "futimesat", CategoryFilesystem},
	{262, "newfstatat", CategoryFilesystem},
	{263, "unlinkat", CategoryFilesystem},
	{264, "renameat", CategoryFilesystem},
	{265, "linkat", CategoryFilesystem},
	{266, "symlinkat", CategoryFilesystem},
	{267, "readlinkat", CategoryFilesystem},
	{268, "fchmodat", CategoryFilesystem},
	{269, "faccessat", CategoryFilesystem},
	{270, "pselect6", CategoryOther},
	{271, "ppoll", CategoryOther},
	{272, "unshare", CategoryProcess},
	{273, "set_robust_list", CategoryIPC},
	{274, "get_robust_list", CategoryIPC},
	{275, "splice", CategoryFilesystem},
	{276, "tee", CategoryFilesystem},
	{277, "sync_file_range", CategoryFilesystem},
	{278, "vmsplice", CategoryFilesystem},
	{279, "move_pages", CategoryMemory},
	{280, "utimensat", CategoryFilesystem},
	{281, "epoll_pwait", CategoryOther},
	{282, "signalfd", CategoryIPC},
	{283, "timerfd_create", CategoryTime},
	{284, "eventfd", CategoryIPC},
	{285, "fallocate", CategoryFilesystem},
	{286, "timerfd_settime", CategoryTime},
	{287, "timerfd_gettime", CategoryTime},
	{288, "accept4", CategoryNetwork},
	{289, "signalfd4", CategoryIPC},
	{290, "eventfd2", CategoryIPC},
	{291, "epoll_create1", CategoryOther},
	{292, "dup3", CategoryFilesystem},
	{293, "pipe2", CategoryIPC},
	{294, "inotify_init1", CategoryFilesystem},
	{295, "preadv", CategoryFilesystem},
	{296, "pwritev", CategoryFilesystem},
	{297, "rt_tgsigqueueinfo", CategoryIPC},
	{298, "perf_event_open", CategoryDevice},
	{299, "recvmmsg", CategoryNetwork},
	{300, "fanotify_init", CategoryFilesystem},
	{301, "fanotify_mark", CategoryFilesystem},
	{302, "prlimit64", CategoryProcess},
	{303, "name_to_handle_at", CategoryFilesystem},
	{304, "open_by_handle_at", CategoryFilesystem},
	{305, "clock_adjtime", CategoryTime},
	{306, "syncfs", CategoryFilesystem},
	{307, "sendmmsg", CategoryNetwork},
	{308, "setns", CategoryProcess},
	{309, "getcpu", CategoryProcess},
	{310, "process_vm_readv", CategoryMemory},
	{311, "process_vm_writev", CategoryMemory},
	{312, "kcmp", CategoryProcess},
	{313, "finit_module", CategoryOther},
	{314, "sched_setattr", CategoryProcess},
	{315, "sched_getattr", CategoryProcess},
	{316, "renameat2", CategoryFilesystem},
	{317, "seccomp", CategorySecurity},
	{318, "getrandom", CategoryDevice},
	{319, "memfd_create", CategoryMemory},
	{320, "kexec_file_load", CategoryOther},
	{321, "bpf", CategorySecurity},
	{322, "execveat", CategoryProcess},
	{323, "userfaultfd", CategoryMemory},
	{324, "membarrier", CategoryMemory},
	{325, "mlock2", CategoryMemory},
	{326, "copy_file_range", CategoryFilesystem},
	{327, "preadv2", CategoryFilesystem},
	{328, "pwritev2", CategoryFilesystem},
	{329, "pkey_mprotect", CategoryMemory},
	{330, "pkey_alloc", CategoryMemory},
	{331, "pkey_free", CategoryMemory},
	{332, "statx", CategoryFilesystem},
	{333, "io_pgetevents", CategoryFilesystem},
	{334, "rseq", CategoryProcess},
	{424, "pidfd_send_signal", CategoryIPC},
	{425, "io_uring_setup", CategoryFilesystem},
	{426, "io_uring_enter", CategoryFilesystem},
	{427, "io_uring_register", CategoryFilesystem},
	{428, "open_tree", CategoryFilesystem},
	{429, "move_mount", CategoryFilesystem},
	{430, "fsopen", CategoryFilesystem},
	{431, "fsconfig", CategoryFilesystem},
	{432, "fsmount", CategoryFilesystem},
	{433, "fspick", CategoryFilesystem},
	{434, "pidfd_open", CategoryProcess},
	{435, "clone3", CategoryProcess},
	{436, "close_range", CategoryFilesystem},
	{437, "openat2", CategoryFilesystem},
	{438, "pidfd_getfd", CategoryProcess},
	{439, "faccessat2", CategoryFilesystem},
	{440, "process_madvise", CategoryMemory},
	{441, "epoll_pwait2", CategoryOther},
	{442, "mount_setattr", CategoryFilesystem},
	{443, "quotactl_fd", CategoryFilesystem},
	{444, "landlock_create_ruleset", CategorySecurity},
	{445, "landlock_add_rule", CategorySecurity},
	{446, "landlock_restrict_self", CategorySecurity},
	{447, "memfd_secret", CategoryMemory},
	{448, "process_mrelease", CategoryMemory},
	{449, "futex_waitv", CategoryIPC},
	{450, "set_mempolicy_home_node", CategoryMemory},
	{451, "cachestat", CategoryFilesystem},
	{452, "fchmodat2", CategoryFilesystem},
	{453, "map_shadow_stack", CategoryMemory},
	{454, "futex_wake", CategoryIPC},
	{455, "futex_wait", CategoryIPC},
	{456, "futex_requeue", CategoryIPC},
	{457, "statmount", CategoryFilesystem},
	{458, "listmount", CategoryFilesystem},
	{459, "lsm_get_self_attr", CategorySecurity},
	{460, "lsm_set_self_attr", CategorySecurity},
	{461, "lsm_list_modules", CategorySecurity},
	{462, "mseal", CategoryMemory},
}

// X86_64SyscallTable implements SyscallNumberTable for x86_64 Linux.
type X86_64SyscallTable struct {
	byNumber map[int]SyscallDefinition
	byName   map[string]SyscallDefinition
}

// NewX86_64SyscallTable creates a new syscall table for x86_64 Linux.
func NewX86_64SyscallTable() *X86_64SyscallTable {
	t := &X86_64SyscallTable{
		byNumber: make(map[int]SyscallDefinition, len(x86_64Syscalls)),
		byName:   make(map[string]SyscallDefinition, len(x86_64Syscalls)),
	}
	for _, def := range x86_64Syscalls {
		t.byNumber[def.Number] = def
		t.byName[def.Name] = def
	}
	return t
}

// GetSyscallName returns the syscall name for the given number.
func (t *X86_64SyscallTable) GetSyscallName(number int) string {
	return t.byNumber[number].Name
}

// GetSyscallNumber returns the number of a named syscall.
func (t *X86_64SyscallTable) GetSyscallNumber(name string) (int, bool) {
	def, ok := t.byName[name]
	return def.Number, ok
}

// Category returns the category of a named syscall.
func (t *X86_64SyscallTable) Category(name string) SyscallCategory {
	if def, ok := t.byName[name]; ok {
		return def.Category
	}
	return CategoryOther
}
